package alloc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/model"
)

func TestNextOccurrenceSameWeek(t *testing.T) {
	t.Parallel()
	// Monday noon; next Tuesday 10:00 is tomorrow.
	got, ok := nextOccurrence(testNow, []time.Weekday{time.Tuesday}, 10, "UTC")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC), got)
}

func TestNextOccurrenceSkipsPastHourToday(t *testing.T) {
	t.Parallel()
	// Monday 12:30, Monday 09:00 already passed; next Monday it is.
	got, ok := nextOccurrence(testNow, []time.Weekday{time.Monday}, 9, "UTC")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC), got)
}

func TestNextOccurrenceAnyDay(t *testing.T) {
	t.Parallel()
	got, ok := nextOccurrence(testNow, nil, 14, "UTC")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC), got)
}

func TestNextOccurrenceInvalidHour(t *testing.T) {
	t.Parallel()
	_, ok := nextOccurrence(testNow, nil, 24, "UTC")
	assert.False(t, ok)
	_, ok = nextOccurrence(testNow, nil, -1, "UTC")
	assert.False(t, ok)
}

func TestNextOccurrenceUnknownTimezoneFallsBackToUTC(t *testing.T) {
	t.Parallel()
	got, ok := nextOccurrence(testNow, nil, 14, "Not/AZone")
	require.True(t, ok)
	assert.Equal(t, time.UTC, got.Location())
}

func TestPickHour(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 10, pickHour([]int{10, 14}))
	assert.Equal(t, 9, pickHour(nil))
}

func TestSendAtUsesWhenPattern(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, &fakeCompliance{})

	addResource(t, st, "acme", model.ChannelEmail, "mail.acme.io", 50)
	promotePattern(t, st, "acme", model.PatternWhen, model.WhenPayload{
		Days:     []time.Weekday{time.Thursday},
		Hours:    []int{15},
		Timezone: "UTC",
	}, 0.9)

	d, err := eng.Allocate(context.Background(), testLead(model.TierCold))
	require.NoError(t, err)
	require.Len(t, d.Assignments, 1)
	assert.Equal(t, time.Date(2026, 8, 27, 15, 0, 0, 0, time.UTC), d.Assignments[0].SendAt)
}

func TestSendAtWhenPatternBelowFloorUsesSchedule(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, &fakeCompliance{})

	addResource(t, st, "acme", model.ChannelEmail, "mail.acme.io", 50)
	promotePattern(t, st, "acme", model.PatternWhen, model.WhenPayload{
		Days:     []time.Weekday{time.Thursday},
		Hours:    []int{15},
		Timezone: "UTC",
	}, 0.2)

	d, err := eng.Allocate(context.Background(), testLead(model.TierCold))
	require.NoError(t, err)
	require.Len(t, d.Assignments, 1)
	// Email schedule: Tuesday 09:00 UTC.
	assert.Equal(t, time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC), d.Assignments[0].SendAt)
}

func TestSendAtNoScheduleTopOfNextHour(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	eng := newTestEngine(t, st, &fakeCompliance{})

	addResource(t, st, "acme", model.ChannelLinkedIn, "seat-1", 20)

	d, err := eng.Allocate(context.Background(), testLead(model.TierLukewarm))
	require.NoError(t, err)

	var linkedIn *model.ChannelAssignment
	for i := range d.Assignments {
		if d.Assignments[i].Channel == model.ChannelLinkedIn {
			linkedIn = &d.Assignments[i]
		}
	}
	require.NotNil(t, linkedIn)
	assert.Equal(t, time.Date(2026, 8, 24, 13, 0, 0, 0, time.UTC), linkedIn.SendAt)
}
