package scoring

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

// ErrInvalidWeights marks a weight proposal that violates the score-range
// invariant. Proposals failing validation are rejected, never clamped.
var ErrInvalidWeights = eris.New("scoring: invalid weight proposal")

// ValidateWeights checks that a weight set can only ever produce composite
// scores inside [0,100] before clamping: all weights non-negative, some
// positive-component mass, and a risk deduction that cannot exceed the
// full range.
func ValidateWeights(w model.Weights) error {
	for name, v := range map[string]float64{
		"quality": w.Quality, "authority": w.Authority, "fit": w.Fit,
		"timing": w.Timing, "risk": w.Risk,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Wrapf(ErrInvalidWeights, "component %s = %v", name, v)
		}
	}
	posSum := w.PositiveSum()
	if posSum <= 0 {
		return eris.Wrap(ErrInvalidWeights, "no positive component mass")
	}
	if w.Risk > posSum {
		return eris.Wrapf(ErrInvalidWeights, "risk weight %v exceeds positive mass %v", w.Risk, posSum)
	}
	return nil
}

// Composite combines raw component scores under a weight set: weighted
// mean of the cap-normalized additive components scaled to 0-100, minus
// the weighted risk deduction, clamped and rounded.
func Composite(c model.ComponentScores, w model.Weights) int {
	posSum := w.PositiveSum()
	if posSum <= 0 {
		return 0
	}

	base := (clampCap(c.Quality, capQuality)/capQuality*w.Quality +
		clampCap(c.Authority, capAuthority)/capAuthority*w.Authority +
		clampCap(c.Fit, capFit)/capFit*w.Fit +
		clampCap(c.Timing, capTiming)/capTiming*w.Timing) / posSum * 100

	deduction := clampCap(c.Risk, capRisk) / capRisk * w.Risk / posSum * 100

	score := math.Round(base - deduction)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

func clampCap(v, cap float64) float64 {
	if v < 0 {
		return 0
	}
	if v > cap {
		return cap
	}
	return v
}

// resolverRung is one link in the weight fallback chain.
type resolverRung struct {
	name  string
	fetch func(ctx context.Context, tenantID, industry string) (*model.WeightSet, error)
	// gated rungs must meet the confidence and sample floors; only the
	// terminal default rung is ungated, so it stays reachable under
	// floors stricter than the shipped benchmark's.
	gated bool
}

// WeightResolver resolves the active weight set for a lead through the
// fallback hierarchy: tenant-learned, industry-platform, global-platform,
// prior-benchmark, hardcoded default. The first rung meeting the floors
// short-circuits; resolution is deterministic given the same stored
// weight sets.
type WeightResolver struct {
	confidenceFloor float64
	minSample       int
	rungs           []resolverRung
}

// NewWeightResolver builds the resolver chain over a store.
func NewWeightResolver(st store.Store, confidenceFloor float64, minSample int) *WeightResolver {
	return &WeightResolver{
		confidenceFloor: confidenceFloor,
		minSample:       minSample,
		rungs: []resolverRung{
			{
				name:  "tenant",
				gated: true,
				fetch: func(ctx context.Context, tenantID, _ string) (*model.WeightSet, error) {
					if tenantID == "" {
						return nil, nil
					}
					return st.ActiveWeightSet(ctx, model.ProvenanceTenantLearned, tenantID)
				},
			},
			{
				name:  "industry",
				gated: true,
				fetch: func(ctx context.Context, _, industry string) (*model.WeightSet, error) {
					if industry == "" {
						return nil, nil
					}
					return st.ActiveWeightSet(ctx, model.ProvenanceIndustryPlatform, industry)
				},
			},
			{
				name:  "global",
				gated: true,
				fetch: func(ctx context.Context, _, _ string) (*model.WeightSet, error) {
					return st.ActiveWeightSet(ctx, model.ProvenanceGlobalPlatform, "")
				},
			},
			{
				name:  "benchmark",
				gated: true,
				fetch: func(context.Context, string, string) (*model.WeightSet, error) {
					ws := model.BenchmarkWeights()
					return &ws, nil
				},
			},
			{
				name: "default",
				fetch: func(context.Context, string, string) (*model.WeightSet, error) {
					return &model.WeightSet{
						ID:         "default-v1",
						Name:       "hardcoded-default",
						Provenance: model.ProvenanceDefault,
						Weights:    model.DefaultWeights(),
						Confidence: 1,
						Active:     true,
					}, nil
				},
			},
		},
	}
}

// Resolve walks the chain and returns the winning weight set. It never
// fails to resolve: the default rung always matches.
func (r *WeightResolver) Resolve(ctx context.Context, tenantID, industry string) (*model.WeightSet, error) {
	for _, rung := range r.rungs {
		ws, err := rung.fetch(ctx, tenantID, industry)
		if err != nil {
			return nil, eris.Wrapf(err, "scoring: resolve %s weights", rung.name)
		}
		if ws == nil {
			continue
		}
		if rung.gated && (ws.Confidence < r.confidenceFloor || ws.SampleSize < r.minSample) {
			zap.L().Debug("scoring: weight set below floors, falling through",
				zap.String("rung", rung.name),
				zap.String("weight_set", ws.ID),
				zap.Float64("confidence", ws.Confidence),
				zap.Int("sample_size", ws.SampleSize),
			)
			continue
		}
		return ws, nil
	}
	// Unreachable: the default rung always returns a weight set.
	return nil, eris.New("scoring: weight resolution exhausted")
}
