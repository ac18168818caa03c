package scoring

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/config"
	"github.com/sells-group/outreach-engine/internal/model"
)

// TierTable maps integer scores onto tiers. Boundaries come from
// configuration and are validated to be total and non-overlapping: every
// score in [0,100] maps to exactly one tier.
type TierTable struct {
	// sorted by MinScore descending for first-match lookup
	bands []config.TierBoundary
}

// NewTierTable builds a tier table from configured boundaries.
func NewTierTable(boundaries []config.TierBoundary) (*TierTable, error) {
	if len(boundaries) == 0 {
		return nil, eris.New("scoring: no tier boundaries configured")
	}
	bands := make([]config.TierBoundary, len(boundaries))
	copy(bands, boundaries)
	sort.Slice(bands, func(i, j int) bool { return bands[i].MinScore > bands[j].MinScore })

	if bands[len(bands)-1].MinScore != 0 {
		return nil, eris.Errorf("scoring: lowest tier %q must start at 0", bands[len(bands)-1].Tier)
	}
	for i := 1; i < len(bands); i++ {
		if bands[i].MinScore == bands[i-1].MinScore {
			return nil, eris.Errorf("scoring: tiers %q and %q overlap at %d",
				bands[i-1].Tier, bands[i].Tier, bands[i].MinScore)
		}
	}
	return &TierTable{bands: bands}, nil
}

// TierFor returns the tier claiming the given score. Scores are clamped
// into [0,100] first, so the mapping is total on any input.
func (t *TierTable) TierFor(score int) model.Tier {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	for _, b := range t.bands {
		if score >= b.MinScore {
			return model.Tier(b.Tier)
		}
	}
	// Unreachable: the lowest band starts at 0.
	return model.Tier(t.bands[len(t.bands)-1].Tier)
}
