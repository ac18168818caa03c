package alloc

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/config"
	"github.com/sells-group/outreach-engine/internal/ledger"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/patterns"
	"github.com/sells-group/outreach-engine/internal/store"
)

// Monday noon UTC.
var testNow = time.Date(2026, 8, 24, 12, 30, 0, 0, time.UTC)

type fakeCompliance struct {
	blocked map[string]bool
	err     error
}

func (f *fakeCompliance) IsDoNotContact(_ context.Context, phone string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.blocked[phone], nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "alloc_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testAllocConfig() config.AllocationConfig {
	return config.AllocationConfig{
		Eligibility: map[string][]string{
			"hot":      {"email", "linkedin", "sms", "voice"},
			"warm":     {"email", "linkedin", "sms"},
			"lukewarm": {"email", "linkedin"},
			"cold":     {"email"},
			"dead":     {},
		},
		Priority:        []string{"email", "linkedin", "sms", "voice"},
		ConfidenceFloor: 0.5,
		Schedules: map[string]config.ChannelSchedule{
			"email": {Days: []int{int(time.Tuesday)}, Hour: 9, Tzone: "UTC"},
		},
	}
}

func newTestEngine(t *testing.T, st *store.SQLiteStore, compliance ComplianceChecker) *Engine {
	t.Helper()
	ld := ledger.New(st).WithNow(func() time.Time { return testNow })
	pc := patterns.NewCache(st, time.Minute)
	return NewEngine(ld, pc, compliance, testAllocConfig()).
		WithNow(func() time.Time { return testNow })
}

func addResource(t *testing.T, st store.Store, tenantID string, channel model.Channel, identity string, limit int) model.Resource {
	t.Helper()
	r := model.Resource{
		TenantID:   tenantID,
		Channel:    channel,
		Identity:   identity,
		DailyLimit: limit,
		Status:     model.ResourceActive,
	}
	require.NoError(t, st.UpsertResource(context.Background(), &r))
	return r
}

func promotePattern(t *testing.T, st store.Store, tenantID string, kind model.PatternKind, payload any, confidence float64) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, st.PromotePattern(context.Background(), &model.Pattern{
		TenantID:   tenantID,
		Kind:       kind,
		Payload:    data,
		SampleSize: 100,
		Confidence: confidence,
		ValidFrom:  testNow.Add(-time.Hour),
		ValidUntil: testNow.Add(30 * 24 * time.Hour),
	}))
}

func testLead(tier model.Tier) *model.Lead {
	return &model.Lead{
		ID:       "lead-1",
		TenantID: "acme",
		Email:    "jordan@acme.io",
		Phone:    "+15550100",
		Tier:     tier,
	}
}

func TestAllocateDeadTierIneligible(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, &fakeCompliance{})

	d, err := eng.Allocate(context.Background(), testLead(model.TierDead))
	require.NoError(t, err)
	assert.Equal(t, model.AllocationIneligible, d.Status)
	assert.Empty(t, d.Assignments)
}

func TestAllocateFullAcrossChannels(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, &fakeCompliance{})

	addResource(t, st, "acme", model.ChannelEmail, "mail.acme.io", 50)
	addResource(t, st, "acme", model.ChannelLinkedIn, "seat-1", 20)
	addResource(t, st, "acme", model.ChannelSMS, "+15550200", 30)
	addResource(t, st, "acme", model.ChannelVoice, "+15550300", 10)

	d, err := eng.Allocate(context.Background(), testLead(model.TierHot))
	require.NoError(t, err)
	assert.Equal(t, model.AllocationFull, d.Status)
	require.Len(t, d.Assignments, 4)
	assert.Equal(t, model.ChannelEmail, d.Assignments[0].Channel)
	assert.Empty(t, d.Skipped)
	for _, a := range d.Assignments {
		assert.NotEmpty(t, a.ResourceID)
		assert.NotEmpty(t, a.Identity)
		assert.True(t, a.SendAt.After(testNow))
	}
}

func TestAllocateRegulatedWithoutPhone(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, &fakeCompliance{})

	addResource(t, st, "acme", model.ChannelEmail, "mail.acme.io", 50)
	addResource(t, st, "acme", model.ChannelSMS, "+15550200", 30)

	lead := testLead(model.TierWarm)
	lead.Phone = ""

	d, err := eng.Allocate(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, model.AllocationPartial, d.Status)
	assert.Equal(t, model.SkipComplianceBlocked, d.Skipped[model.ChannelSMS])
	for _, a := range d.Assignments {
		assert.NotEqual(t, model.ChannelSMS, a.Channel)
	}
}

func TestAllocateComplianceCheckerMissingFailsClosed(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, nil)

	addResource(t, st, "acme", model.ChannelEmail, "mail.acme.io", 50)
	addResource(t, st, "acme", model.ChannelSMS, "+15550200", 30)

	d, err := eng.Allocate(context.Background(), testLead(model.TierWarm))
	require.NoError(t, err)
	assert.Equal(t, model.SkipComplianceUnavailable, d.Skipped[model.ChannelSMS])
}

func TestAllocateComplianceErrorFailsClosed(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, &fakeCompliance{err: eris.New("registry down")})

	addResource(t, st, "acme", model.ChannelEmail, "mail.acme.io", 50)
	addResource(t, st, "acme", model.ChannelSMS, "+15550200", 30)

	d, err := eng.Allocate(context.Background(), testLead(model.TierWarm))
	require.NoError(t, err)
	assert.Equal(t, model.AllocationPartial, d.Status)
	assert.Equal(t, model.SkipComplianceUnavailable, d.Skipped[model.ChannelSMS])
}

func TestAllocateDoNotContactMatch(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, &fakeCompliance{blocked: map[string]bool{"+15550100": true}})

	addResource(t, st, "acme", model.ChannelEmail, "mail.acme.io", 50)
	addResource(t, st, "acme", model.ChannelSMS, "+15550200", 30)

	d, err := eng.Allocate(context.Background(), testLead(model.TierWarm))
	require.NoError(t, err)
	assert.Equal(t, model.SkipComplianceBlocked, d.Skipped[model.ChannelSMS])
}

func TestAllocateExhaustedChannelSkipped(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, &fakeCompliance{})

	r := addResource(t, st, "acme", model.ChannelEmail, "mail.acme.io", 1)
	day := testNow.UTC().Format(model.UsageDayFormat)
	_, err := st.AcquireResourceSlot(context.Background(), r.ID, day)
	require.NoError(t, err)

	d, err := eng.Allocate(context.Background(), testLead(model.TierCold))
	require.NoError(t, err)
	assert.Equal(t, model.AllocationNoResources, d.Status)
	assert.Equal(t, model.SkipResourceExhausted, d.Skipped[model.ChannelEmail])
	assert.Empty(t, d.Assignments)
}

func TestAllocateHowPatternReordersChannels(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, &fakeCompliance{})

	addResource(t, st, "acme", model.ChannelEmail, "mail.acme.io", 50)
	addResource(t, st, "acme", model.ChannelLinkedIn, "seat-1", 20)

	promotePattern(t, st, "acme", model.PatternHow, model.HowPayload{
		Tier:     model.TierLukewarm,
		Sequence: []model.Channel{model.ChannelLinkedIn, model.ChannelEmail},
	}, 0.9)

	d, err := eng.Allocate(context.Background(), testLead(model.TierLukewarm))
	require.NoError(t, err)
	require.Len(t, d.Assignments, 2)
	assert.Equal(t, model.ChannelLinkedIn, d.Assignments[0].Channel)
	assert.Equal(t, model.ChannelEmail, d.Assignments[1].Channel)
}

func TestAllocateHowPatternBelowFloorIgnored(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, &fakeCompliance{})

	addResource(t, st, "acme", model.ChannelEmail, "mail.acme.io", 50)
	addResource(t, st, "acme", model.ChannelLinkedIn, "seat-1", 20)

	promotePattern(t, st, "acme", model.PatternHow, model.HowPayload{
		Tier:     model.TierLukewarm,
		Sequence: []model.Channel{model.ChannelLinkedIn, model.ChannelEmail},
	}, 0.3)

	d, err := eng.Allocate(context.Background(), testLead(model.TierLukewarm))
	require.NoError(t, err)
	require.Len(t, d.Assignments, 2)
	assert.Equal(t, model.ChannelEmail, d.Assignments[0].Channel)
}

func TestAllocateHowPatternOtherTierIgnored(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, &fakeCompliance{})

	addResource(t, st, "acme", model.ChannelEmail, "mail.acme.io", 50)
	addResource(t, st, "acme", model.ChannelLinkedIn, "seat-1", 20)

	promotePattern(t, st, "acme", model.PatternHow, model.HowPayload{
		Tier:     model.TierHot,
		Sequence: []model.Channel{model.ChannelLinkedIn, model.ChannelEmail},
	}, 0.9)

	d, err := eng.Allocate(context.Background(), testLead(model.TierLukewarm))
	require.NoError(t, err)
	require.Len(t, d.Assignments, 2)
	assert.Equal(t, model.ChannelEmail, d.Assignments[0].Channel)
}

func TestAllocateNilLead(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, &fakeCompliance{})

	_, err := eng.Allocate(context.Background(), nil)
	assert.Error(t, err)
	_, err = eng.Allocate(context.Background(), &model.Lead{})
	assert.Error(t, err)
}
