package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceRemaining(t *testing.T) {
	t.Parallel()

	r := &Resource{DailyLimit: 50, UsedToday: 20, UsageDay: "2026-08-24"}
	assert.Equal(t, 30, r.Remaining("2026-08-24"))

	// A stale counter has not rolled over; the full limit is available.
	assert.Equal(t, 50, r.Remaining("2026-08-25"))

	over := &Resource{DailyLimit: 10, UsedToday: 12, UsageDay: "2026-08-24"}
	assert.Equal(t, 0, over.Remaining("2026-08-24"))
}

func TestRegulatedChannels(t *testing.T) {
	t.Parallel()
	reg := RegulatedChannels()
	assert.True(t, reg[ChannelSMS])
	assert.True(t, reg[ChannelVoice])
	assert.False(t, reg[ChannelEmail])
	assert.False(t, reg[ChannelLinkedIn])
}

func TestLeadHasContactIdentity(t *testing.T) {
	t.Parallel()
	assert.False(t, (&Lead{}).HasContactIdentity())
	assert.True(t, (&Lead{Email: "a@b.c"}).HasContactIdentity())
	assert.True(t, (&Lead{Phone: "+15550100"}).HasContactIdentity())
	assert.True(t, (&Lead{LinkedInURL: "https://linkedin.com/in/x"}).HasContactIdentity())
}
