//go:build !integration

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/model"
)

func colIndex(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	return col
}

func TestLeadFromRow(t *testing.T) {
	t.Parallel()
	col := colIndex([]string{"tenant_id", "email", "email_verified", "title", "employee_count", "domain", "ignored"})
	row := []string{"acme", "jane@bigco.com", "true", "CEO", "42", "HTTPS://www.BigCo.com/about", "x"}

	lead := leadFromRow(col, row)
	assert.Equal(t, "acme", lead.TenantID)
	assert.Equal(t, "jane@bigco.com", lead.Email)
	assert.True(t, lead.EmailVerified)
	assert.Equal(t, "CEO", lead.Title)
	assert.Equal(t, 42, lead.EmployeeCount)
	assert.Equal(t, "bigco.com", lead.Domain)
	assert.Empty(t, lead.ID)
}

func TestLeadFromRowShortRow(t *testing.T) {
	t.Parallel()
	col := colIndex([]string{"tenant_id", "email", "domain"})
	lead := leadFromRow(col, []string{"acme"})
	assert.Equal(t, "acme", lead.TenantID)
	assert.Empty(t, lead.Email)
	assert.Empty(t, lead.Domain)
}

func TestOutcomeFromRow(t *testing.T) {
	t.Parallel()
	col := colIndex([]string{
		"tenant_id", "lead_id", "channel", "template_key", "sequence_pos",
		"sent_at", "opened", "replied", "tier",
	})
	row := []string{"acme", "lead-1", "email", "tpl-a", "2", "2026-08-03T14:30:00+02:00", "true", "false", "warm"}

	rec, err := outcomeFromRow(col, row)
	require.NoError(t, err)
	assert.Equal(t, "acme", rec.TenantID)
	assert.Equal(t, "lead-1", rec.LeadID)
	assert.Equal(t, model.ChannelEmail, rec.Channel)
	assert.Equal(t, "tpl-a", rec.TemplateKey)
	assert.Equal(t, 2, rec.SequencePos)
	assert.True(t, rec.Opened)
	assert.False(t, rec.Replied)
	assert.Equal(t, model.TierWarm, rec.Tier)

	// Buckets derive from the UTC send time.
	assert.Equal(t, time.Date(2026, 8, 3, 12, 30, 0, 0, time.UTC), rec.SentAt)
	assert.Equal(t, time.Monday, rec.Weekday)
	assert.Equal(t, 12, rec.Hour)
}

func TestOutcomeFromRowRejectsBadRows(t *testing.T) {
	t.Parallel()
	col := colIndex([]string{"tenant_id", "lead_id", "channel", "sent_at"})

	cases := []struct {
		name string
		row  []string
	}{
		{"missing tenant", []string{"", "lead-1", "email", "2026-08-03T09:00:00Z"}},
		{"missing lead", []string{"acme", "", "email", "2026-08-03T09:00:00Z"}},
		{"missing channel", []string{"acme", "lead-1", "", "2026-08-03T09:00:00Z"}},
		{"bad sent_at", []string{"acme", "lead-1", "email", "yesterday"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			_, err := outcomeFromRow(col, c.row)
			assert.Error(t, err)
		})
	}
}
