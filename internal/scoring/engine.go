// Package scoring computes the 0-100 composite priority score and tier
// for leads, resolving component weights through a fallback hierarchy
// and reading enrichment signals through the signal cache.
package scoring

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-engine/internal/config"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/signals"
	"github.com/sells-group/outreach-engine/internal/store"
)

// Result is the outcome of scoring one lead.
type Result struct {
	LeadID      string                `json:"lead_id"`
	Score       int                   `json:"score"`
	Tier        model.Tier            `json:"tier"`
	Components  model.ComponentScores `json:"components"`
	Provenance  model.Provenance      `json:"weight_provenance"`
	WeightSetID string                `json:"weight_set_id"`
}

// Engine scores leads. Safe for concurrent use; scoring different leads
// has no ordering requirements.
type Engine struct {
	store    store.Store
	signals  *signals.Cache
	resolver *WeightResolver
	tiers    *TierTable
	cfg      config.ScoringConfig
}

// NewEngine creates a scoring engine.
func NewEngine(st store.Store, sc *signals.Cache, cfg config.ScoringConfig) (*Engine, error) {
	tiers, err := NewTierTable(cfg.Tiers)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:    st,
		signals:  sc,
		resolver: NewWeightResolver(st, cfg.ConfidenceFloor, cfg.MinSampleSize),
		tiers:    tiers,
		cfg:      cfg,
	}, nil
}

// Score computes the composite score for a lead without persisting it.
// It always returns a deterministic result for any lead with identity
// fields present; missing enrichment degrades the affected component to
// zero.
func (e *Engine) Score(ctx context.Context, lead *model.Lead) (*Result, error) {
	if lead == nil || lead.ID == "" {
		return nil, eris.New("scoring: lead has no identity")
	}

	ws, err := e.resolver.Resolve(ctx, lead.TenantID, lead.Industry)
	if err != nil {
		return nil, err
	}

	var sig *model.DomainSignal
	if e.signals != nil && lead.Domain != "" {
		sig, err = e.signals.DomainAuthority(ctx, lead.Domain)
		if err != nil {
			return nil, err
		}
	}

	comps := model.ComponentScores{
		Quality:   scoreQuality(lead),
		Authority: scoreAuthority(sig),
		Fit:       scoreFit(lead, e.cfg.TargetCountries),
		Timing:    scoreTiming(lead),
		Risk:      scoreRisk(lead, e.cfg.TargetCountries),
	}

	score := Composite(comps, ws.Weights)

	return &Result{
		LeadID:      lead.ID,
		Score:       score,
		Tier:        e.tiers.TierFor(score),
		Components:  comps,
		Provenance:  ws.Provenance,
		WeightSetID: ws.ID,
	}, nil
}

// ScoreLead loads a lead by ID, scores it, and persists the result onto
// the lead row.
func (e *Engine) ScoreLead(ctx context.Context, leadID string) (*Result, error) {
	lead, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: load lead %s", leadID)
	}

	res, err := e.Score(ctx, lead)
	if err != nil {
		return nil, err
	}

	if err := e.store.SaveScore(ctx, lead.ID, res.Score, res.Tier, res.Components, res.WeightSetID); err != nil {
		return nil, eris.Wrapf(err, "scoring: persist score for %s", leadID)
	}

	zap.L().Info("scoring: lead scored",
		zap.String("lead_id", lead.ID),
		zap.Int("score", res.Score),
		zap.String("tier", string(res.Tier)),
		zap.String("provenance", string(res.Provenance)),
	)

	return res, nil
}

// ScoreBatch scores many leads concurrently with bounded parallelism.
// Individual lead failures are logged and reported as nil entries; one
// bad lead never fails the batch.
func (e *Engine) ScoreBatch(ctx context.Context, leadIDs []string) ([]*Result, error) {
	results := make([]*Result, len(leadIDs))

	g, gctx := errgroup.WithContext(ctx)
	concurrency := e.cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	g.SetLimit(concurrency)

	for i, id := range leadIDs {
		g.Go(func() error {
			res, err := e.ScoreLead(gctx, id)
			if err != nil {
				zap.L().Warn("scoring: batch lead failed",
					zap.String("lead_id", id),
					zap.Error(err),
				)
				return nil
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, eris.Wrap(err, "scoring: batch")
	}
	return results, nil
}

// TierFor exposes the engine's tier mapping.
func (e *Engine) TierFor(score int) model.Tier {
	return e.tiers.TierFor(score)
}
