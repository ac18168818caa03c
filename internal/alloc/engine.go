// Package alloc decides which channels, which sending resources, and what
// timing to use for a scored lead. Tier gates channel eligibility before
// any resource is consulted; resource exhaustion skips a channel rather
// than failing the allocation; regulated channels pass a do-not-contact
// check before a resource is assigned.
package alloc

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/config"
	"github.com/sells-group/outreach-engine/internal/ledger"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/patterns"
)

// ComplianceChecker reports whether a phone number is on a do-not-contact
// register. Queried synchronously before SMS/voice assignment.
type ComplianceChecker interface {
	IsDoNotContact(ctx context.Context, phone string) (bool, error)
}

// Engine allocates outreach for scored leads.
type Engine struct {
	ledger     *ledger.Ledger
	patterns   *patterns.Cache
	compliance ComplianceChecker
	cfg        config.AllocationConfig
	now        func() time.Time
}

// NewEngine creates an allocation engine.
func NewEngine(ld *ledger.Ledger, pc *patterns.Cache, compliance ComplianceChecker, cfg config.AllocationConfig) *Engine {
	return &Engine{
		ledger:     ld,
		patterns:   pc,
		compliance: compliance,
		cfg:        cfg,
		now:        time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Allocate produces an allocation decision for one lead. The caller must
// have scored (and persisted) the lead first. LeadIneligible and
// NoResourcesAvailable are expected outcomes, not errors.
func (e *Engine) Allocate(ctx context.Context, lead *model.Lead) (*model.AllocationDecision, error) {
	if lead == nil || lead.ID == "" {
		return nil, eris.New("alloc: lead has no identity")
	}

	decision := &model.AllocationDecision{
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
		Tier:      lead.Tier,
		Skipped:   make(map[model.Channel]model.SkipReason),
		DecidedAt: e.now(),
	}

	eligible := e.eligibleChannels(lead.Tier)
	if len(eligible) == 0 {
		decision.Status = model.AllocationIneligible
		return decision, nil
	}

	order, err := e.channelOrder(ctx, lead, eligible)
	if err != nil {
		return nil, err
	}

	for _, channel := range order {
		if model.RegulatedChannels()[channel] {
			reason, ok := e.clearCompliance(ctx, lead, channel)
			if !ok {
				decision.Skipped[channel] = reason
				continue
			}
		}

		resource, err := e.ledger.Select(ctx, lead.TenantID, channel)
		if errors.Is(err, ledger.ErrExhausted) {
			decision.Skipped[channel] = model.SkipResourceExhausted
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "alloc: select %s resource", channel)
		}

		sendAt, err := e.sendTime(ctx, lead.TenantID, channel)
		if err != nil {
			return nil, err
		}

		decision.Assignments = append(decision.Assignments, model.ChannelAssignment{
			Channel:    channel,
			ResourceID: resource.ID,
			Identity:   resource.Identity,
			SendAt:     sendAt,
		})
	}

	switch {
	case len(decision.Assignments) == 0:
		decision.Status = model.AllocationNoResources
	case len(decision.Skipped) > 0:
		decision.Status = model.AllocationPartial
	default:
		decision.Status = model.AllocationFull
	}

	zap.L().Info("alloc: decision",
		zap.String("lead_id", lead.ID),
		zap.String("tier", string(lead.Tier)),
		zap.String("status", string(decision.Status)),
		zap.Int("assignments", len(decision.Assignments)),
	)

	return decision, nil
}

// eligibleChannels returns the channels the lead's tier permits.
func (e *Engine) eligibleChannels(tier model.Tier) map[model.Channel]bool {
	out := make(map[model.Channel]bool)
	for _, ch := range e.cfg.Eligibility[string(tier)] {
		out[model.Channel(ch)] = true
	}
	return out
}

// channelOrder returns the eligible channels in attempt order: a
// confident HOW pattern's winning sequence for the lead's tier, else the
// configured default priority.
func (e *Engine) channelOrder(ctx context.Context, lead *model.Lead, eligible map[model.Channel]bool) ([]model.Channel, error) {
	defaultOrder := make([]model.Channel, 0, len(e.cfg.Priority))
	for _, ch := range e.cfg.Priority {
		if eligible[model.Channel(ch)] {
			defaultOrder = append(defaultOrder, model.Channel(ch))
		}
	}

	if e.patterns == nil {
		return defaultOrder, nil
	}

	p, err := e.patterns.Active(ctx, lead.TenantID, model.PatternHow)
	if err != nil {
		return nil, eris.Wrap(err, "alloc: read how pattern")
	}
	if p == nil || p.Confidence < e.cfg.ConfidenceFloor {
		return defaultOrder, nil
	}

	payload, err := p.How()
	if err != nil {
		zap.L().Warn("alloc: bad how payload, using default order",
			zap.String("pattern_id", p.ID),
			zap.Error(err),
		)
		return defaultOrder, nil
	}
	if payload.Tier != lead.Tier || len(payload.Sequence) == 0 {
		return defaultOrder, nil
	}

	// Learned sequence first, then any eligible channels it omits.
	seen := make(map[model.Channel]bool, len(payload.Sequence))
	order := make([]model.Channel, 0, len(defaultOrder))
	for _, ch := range payload.Sequence {
		if eligible[ch] && !seen[ch] {
			order = append(order, ch)
			seen[ch] = true
		}
	}
	for _, ch := range defaultOrder {
		if !seen[ch] {
			order = append(order, ch)
		}
	}
	return order, nil
}

// clearCompliance runs the do-not-contact check for a regulated channel.
// A match or an unavailable checker both fail closed.
func (e *Engine) clearCompliance(ctx context.Context, lead *model.Lead, channel model.Channel) (model.SkipReason, bool) {
	if lead.Phone == "" {
		return model.SkipComplianceBlocked, false
	}
	if e.compliance == nil {
		return model.SkipComplianceUnavailable, false
	}

	blocked, err := e.compliance.IsDoNotContact(ctx, lead.Phone)
	if err != nil {
		zap.L().Warn("alloc: compliance check unavailable, skipping channel",
			zap.String("lead_id", lead.ID),
			zap.String("channel", string(channel)),
			zap.Error(err),
		)
		return model.SkipComplianceUnavailable, false
	}
	if blocked {
		zap.L().Info("alloc: do-not-contact match",
			zap.String("lead_id", lead.ID),
			zap.String("channel", string(channel)),
		)
		return model.SkipComplianceBlocked, false
	}
	return "", true
}
