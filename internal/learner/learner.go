// Package learner mines historical outreach outcomes into versioned,
// confidence-scored patterns. Each detector enforces a minimum sample
// size before writing anything; low-confidence results are written
// inactive (advisory); promotion atomically supersedes the previous
// active pattern.
package learner

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/config"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/patterns"
	"github.com/sells-group/outreach-engine/internal/store"
)

// UpdateStatus classifies the outcome of one learn run.
type UpdateStatus string

const (
	StatusPromoted           UpdateStatus = "promoted"
	StatusAdvisory           UpdateStatus = "advisory"
	StatusInsufficientSample UpdateStatus = "insufficient_sample"
	StatusRejectedProposal   UpdateStatus = "rejected_proposal"
	StatusNoSignal           UpdateStatus = "no_signal"
)

// Result reports what a learn run did.
type Result struct {
	TenantID   string            `json:"tenant_id"`
	Kind       model.PatternKind `json:"kind"`
	Status     UpdateStatus      `json:"status"`
	Pattern    *model.Pattern    `json:"pattern,omitempty"`
	SampleSize int               `json:"sample_size"`
	Confidence float64           `json:"confidence"`
	Reason     string            `json:"reason,omitempty"`
}

// detection is a detector's raw output before confidence gating.
type detection struct {
	payload any
	// sample is the kind-specific sample size backing the payload.
	sample int
	// halfStats are the detector's headline statistic computed over the
	// first and second half of the window, for stability estimation.
	halfStats [2]float64
}

// Learner runs the four detectors. Single-writer per (tenant, kind);
// different tenants or kinds may learn concurrently.
type Learner struct {
	store store.Store
	cache *patterns.Cache
	cfg   config.LearnerConfig
	now   func() time.Time
}

// New creates a Learner. cache may be nil; when set, a promotion
// invalidates the tenant's pattern snapshot.
func New(st store.Store, cache *patterns.Cache, cfg config.LearnerConfig) *Learner {
	return &Learner{store: st, cache: cache, cfg: cfg, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (l *Learner) WithNow(now func() time.Time) *Learner {
	l.now = now
	return l
}

// Learn runs one detector for a tenant. Below the kind's minimum sample
// size it is a no-op: the existing pattern, if any, stays active.
func (l *Learner) Learn(ctx context.Context, tenantID string, kind model.PatternKind) (*Result, error) {
	log := zap.L().With(
		zap.String("tenant_id", tenantID),
		zap.String("kind", string(kind)),
	)

	lookback := l.cfg.LookbackDays
	if lookback <= 0 {
		lookback = 180
	}
	since := l.now().AddDate(0, 0, -lookback)

	records, err := l.store.ListOutcomes(ctx, tenantID, since)
	if err != nil {
		return nil, eris.Wrapf(err, "learner: list outcomes for %s", tenantID)
	}

	var det *detection
	switch kind {
	case model.PatternWho:
		det = detectWho(records)
	case model.PatternWhat:
		det = detectWhat(records)
	case model.PatternWhen:
		det = detectWhen(records)
	case model.PatternHow:
		det = detectHow(records)
	default:
		return nil, eris.Errorf("learner: unknown kind %q", kind)
	}

	minSample := l.minSample(kind)
	if det == nil || det.sample < minSample {
		sample := 0
		if det != nil {
			sample = det.sample
		}
		log.Info("learner: insufficient sample, no-op",
			zap.Int("sample_size", sample),
			zap.Int("required", minSample),
		)
		return &Result{
			TenantID:   tenantID,
			Kind:       kind,
			Status:     StatusInsufficientSample,
			SampleSize: sample,
		}, nil
	}

	if det.payload == nil {
		log.Info("learner: no usable signal in window", zap.Int("sample_size", det.sample))
		return &Result{
			TenantID:   tenantID,
			Kind:       kind,
			Status:     StatusNoSignal,
			SampleSize: det.sample,
		}, nil
	}

	confidence := l.confidence(det, minSample)

	floor := l.cfg.ConfidenceFloor
	if floor <= 0 {
		floor = 0.5
	}

	// The weight optimizer validates its proposal against the score-range
	// invariant before anything is written. The new weight set is built
	// here so the pattern payload can reference its ID, but written only
	// at promotion, in the same transaction as the pattern.
	var whoWeights *model.WeightSet
	if kind == model.PatternWho {
		if res := l.validateWhoProposal(det, tenantID, confidence); res != nil {
			log.Warn("learner: weight proposal rejected", zap.String("reason", res.Reason))
			return res, nil
		}
		if confidence >= floor {
			ws, err := l.buildWeightSet(det, tenantID, confidence)
			if err != nil {
				return nil, err
			}
			whoWeights = ws
		}
	}

	payload, err := json.Marshal(det.payload)
	if err != nil {
		return nil, eris.Wrap(err, "learner: encode payload")
	}

	validity := l.cfg.ValidityDays
	if validity <= 0 {
		validity = 90
	}
	now := l.now().UTC()
	pattern := &model.Pattern{
		TenantID:   tenantID,
		Kind:       kind,
		Payload:    payload,
		SampleSize: det.sample,
		Confidence: confidence,
		ValidFrom:  now,
		ValidUntil: now.AddDate(0, 0, validity),
	}

	if confidence < floor {
		// Advisory: recorded for review, never drives live decisions.
		pattern.Active = false
		if err := l.store.InsertPattern(ctx, pattern); err != nil {
			return nil, eris.Wrap(err, "learner: write advisory pattern")
		}
		log.Info("learner: advisory pattern written",
			zap.Float64("confidence", confidence),
			zap.Int("sample_size", det.sample),
		)
		return &Result{
			TenantID:   tenantID,
			Kind:       kind,
			Status:     StatusAdvisory,
			Pattern:    pattern,
			SampleSize: det.sample,
			Confidence: confidence,
		}, nil
	}

	if whoWeights != nil {
		if err := l.store.PromoteWeightSetAndPattern(ctx, whoWeights, pattern); err != nil {
			return nil, eris.Wrap(err, "learner: promote weights and pattern")
		}
	} else {
		if err := l.store.PromotePattern(ctx, pattern); err != nil {
			return nil, eris.Wrap(err, "learner: promote pattern")
		}
	}
	if l.cache != nil {
		l.cache.Invalidate(tenantID)
	}

	log.Info("learner: pattern promoted",
		zap.String("pattern_id", pattern.ID),
		zap.Float64("confidence", confidence),
		zap.Int("sample_size", det.sample),
	)

	return &Result{
		TenantID:   tenantID,
		Kind:       kind,
		Status:     StatusPromoted,
		Pattern:    pattern,
		SampleSize: det.sample,
		Confidence: confidence,
	}, nil
}

// LearnAll runs every detector for a tenant in order.
func (l *Learner) LearnAll(ctx context.Context, tenantID string) ([]Result, error) {
	out := make([]Result, 0, len(model.Kinds()))
	for _, kind := range model.Kinds() {
		res, err := l.Learn(ctx, tenantID, kind)
		if err != nil {
			return out, err
		}
		out = append(out, *res)
	}
	return out, nil
}

func (l *Learner) minSample(kind model.PatternKind) int {
	if n, ok := l.cfg.MinSamples[string(kind)]; ok && n > 0 {
		return n
	}
	// Conservative fallback when a kind is missing from config.
	return 50
}

// confidence combines sample mass with effect stability across the two
// halves of the window. Sample mass saturates at twice the minimum; a
// pattern at exactly the minimum sample can reach at most 0.5 from mass
// alone, so it is never marked high-confidence regardless of the
// computed statistic.
func (l *Learner) confidence(det *detection, minSample int) float64 {
	mass := float64(det.sample) / float64(2*minSample)
	if mass > 1 {
		mass = 1
	}
	return mass * stability(det.halfStats[0], det.halfStats[1])
}

// stability measures agreement of a statistic across sub-periods, in
// [0,1]. Identical halves score 1; a statistic present in only one half
// scores 0.
func stability(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	s := 1 - math.Abs(a-b)/scale
	if s < 0 {
		return 0
	}
	return s
}

// halves splits records into first and second half by send order.
// ListOutcomes returns them oldest first.
func halves(records []model.OutcomeRecord) ([]model.OutcomeRecord, []model.OutcomeRecord) {
	mid := len(records) / 2
	return records[:mid], records[mid:]
}

func conversionRate(records []model.OutcomeRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var converted int
	for _, r := range records {
		if r.Converted {
			converted++
		}
	}
	return float64(converted) / float64(len(records))
}
