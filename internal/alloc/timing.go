package alloc

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/model"
)

// sendTime picks the scheduled send time for a channel: the next
// occurrence of a confident WHEN pattern's preferred day and hour in the
// tenant's timezone, else the channel's default schedule.
func (e *Engine) sendTime(ctx context.Context, tenantID string, channel model.Channel) (time.Time, error) {
	now := e.now()

	if e.patterns != nil {
		p, err := e.patterns.Active(ctx, tenantID, model.PatternWhen)
		if err != nil {
			return time.Time{}, eris.Wrap(err, "alloc: read when pattern")
		}
		if p != nil && p.Confidence >= e.cfg.ConfidenceFloor {
			payload, err := p.When()
			if err != nil {
				zap.L().Warn("alloc: bad when payload, using default schedule",
					zap.String("pattern_id", p.ID),
					zap.Error(err),
				)
			} else if t, ok := nextOccurrence(now, payload.Days, pickHour(payload.Hours), payload.Timezone); ok {
				return t, nil
			}
		}
	}

	sched, ok := e.cfg.Schedules[string(channel)]
	if !ok {
		// No schedule configured: send at the top of the next hour.
		return now.Truncate(time.Hour).Add(time.Hour), nil
	}
	days := make([]time.Weekday, 0, len(sched.Days))
	for _, d := range sched.Days {
		days = append(days, time.Weekday(d))
	}
	if t, ok := nextOccurrence(now, days, sched.Hour, sched.Tzone); ok {
		return t, nil
	}
	return now.Truncate(time.Hour).Add(time.Hour), nil
}

func pickHour(hours []int) int {
	if len(hours) == 0 {
		return 9
	}
	return hours[0]
}

// nextOccurrence finds the earliest future time matching one of the
// given weekdays at the given hour in tz. Empty days means any day.
func nextOccurrence(now time.Time, days []time.Weekday, hour int, tz string) (time.Time, bool) {
	if hour < 0 || hour > 23 {
		return time.Time{}, false
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	local := now.In(loc)
	dayOK := func(d time.Weekday) bool {
		if len(days) == 0 {
			return true
		}
		for _, w := range days {
			if w == d {
				return true
			}
		}
		return false
	}

	for offset := 0; offset <= 7; offset++ {
		day := local.AddDate(0, 0, offset)
		candidate := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
		if candidate.After(now) && dayOK(candidate.Weekday()) {
			return candidate, true
		}
	}
	return time.Time{}, false
}
