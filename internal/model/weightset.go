package model

import "time"

// Provenance identifies where a weight set came from. Resolution falls back
// through provenances in this order: tenant-learned, industry-platform,
// global-platform, prior-benchmark, hardcoded default.
type Provenance string

const (
	ProvenanceTenantLearned    Provenance = "tenant_learned"
	ProvenanceIndustryPlatform Provenance = "industry_platform"
	ProvenanceGlobalPlatform   Provenance = "global_platform"
	ProvenancePriorBenchmark   Provenance = "prior_benchmark"
	ProvenanceDefault          Provenance = "default"
)

// Weights maps the five scoring components to proportional weights.
// Positive components are combined as a weighted mean of their
// cap-normalized values; Risk scales the deduction.
type Weights struct {
	Quality   float64 `json:"quality"`
	Authority float64 `json:"authority"`
	Fit       float64 `json:"fit"`
	Timing    float64 `json:"timing"`
	Risk      float64 `json:"risk"`
}

// PositiveSum returns the total weight mass of the additive components.
func (w Weights) PositiveSum() float64 {
	return w.Quality + w.Authority + w.Fit + w.Timing
}

// WeightSet is a named, versioned weight mapping. Immutable once written;
// the learner supersedes rather than edits. Exactly one is active per
// (tenant, scope) at a time.
type WeightSet struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	TenantID   string     `json:"tenant_id,omitempty"`
	Industry   string     `json:"industry,omitempty"`
	Provenance Provenance `json:"provenance"`
	Weights    Weights    `json:"weights"`
	Confidence float64    `json:"confidence"`
	SampleSize int        `json:"sample_size"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DefaultWeights returns the hardcoded fallback weights, proportional to
// the component caps (20/25/25/15, risk 15).
func DefaultWeights() Weights {
	return Weights{
		Quality:   0.20,
		Authority: 0.25,
		Fit:       0.25,
		Timing:    0.15,
		Risk:      0.15,
	}
}

// BenchmarkWeights returns the prior-benchmark weights shipped with the
// platform, derived from pre-launch conversion studies. They sit one rung
// above the hardcoded default in the fallback chain.
func BenchmarkWeights() WeightSet {
	return WeightSet{
		ID:         "benchmark-v1",
		Name:       "prior-benchmark",
		Provenance: ProvenancePriorBenchmark,
		Weights: Weights{
			Quality:   0.22,
			Authority: 0.28,
			Fit:       0.25,
			Timing:    0.10,
			Risk:      0.15,
		},
		Confidence: 0.75,
		SampleSize: 1200,
		Active:     true,
	}
}
