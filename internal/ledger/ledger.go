// Package ledger arbitrates shared, rate-limited sending resources.
// Selection is least-used-first with a deterministic ID tiebreak, and
// every usage increment goes through the store's atomic conditional
// update, so the daily limit holds under concurrent allocation across
// processes.
package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

// ErrExhausted is returned by Select when no resource for the channel has
// capacity left today.
var ErrExhausted = eris.New("ledger: no resource available")

// Ledger selects and meters sending resources.
type Ledger struct {
	store store.Store
	now   func() time.Time
}

// New creates a Ledger.
func New(st store.Store) *Ledger {
	return &Ledger{store: st, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (l *Ledger) WithNow(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Select picks the least-used active resource for (tenant, channel) and
// atomically consumes one slot on it. A resource lost to a concurrent
// caller falls through to the next candidate. Returns ErrExhausted when
// every candidate is at its limit.
func (l *Ledger) Select(ctx context.Context, tenantID string, channel model.Channel) (*model.Resource, error) {
	day := l.today()

	resources, err := l.store.ListResources(ctx, tenantID, channel)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: list %s resources", channel)
	}

	candidates := make([]model.Resource, 0, len(resources))
	for _, r := range resources {
		if r.Status != model.ResourceActive {
			continue
		}
		if r.Remaining(day) <= 0 {
			continue
		}
		candidates = append(candidates, r)
	}

	// Least effective usage first, ID as deterministic tiebreak. A stale
	// usage day counts as zero used.
	sort.Slice(candidates, func(i, j int) bool {
		ui, uj := effectiveUsed(&candidates[i], day), effectiveUsed(&candidates[j], day)
		if ui != uj {
			return ui < uj
		}
		return candidates[i].ID < candidates[j].ID
	})

	for i := range candidates {
		r := candidates[i]
		used, err := l.store.AcquireResourceSlot(ctx, r.ID, day)
		if errors.Is(err, store.ErrLimitReached) {
			// Raced out by a concurrent allocation; try the next one.
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ledger: acquire slot on %s", r.ID)
		}
		r.UsedToday = used
		r.UsageDay = day
		zap.L().Debug("ledger: slot acquired",
			zap.String("resource_id", r.ID),
			zap.String("channel", string(channel)),
			zap.Int("used_today", used),
			zap.Int("daily_limit", r.DailyLimit),
		)
		return &r, nil
	}

	return nil, ErrExhausted
}

// RecordUsage consumes one additional slot on a specific resource and
// returns the new count. Fails with store.ErrLimitReached at the limit.
func (l *Ledger) RecordUsage(ctx context.Context, resourceID string) (int, error) {
	return l.store.AcquireResourceSlot(ctx, resourceID, l.today())
}

func (l *Ledger) today() string {
	return l.now().UTC().Format(model.UsageDayFormat)
}

func effectiveUsed(r *model.Resource, day string) int {
	if r.UsageDay != day {
		return 0
	}
	return r.UsedToday
}
