package learner

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/scoring"
)

// Lift clamps keep one noisy component from dominating a proposal.
const (
	minLift = 0.25
	maxLift = 4.0

	liftEpsilon = 1e-3
)

// detectWho runs the weight optimizer: it compares the cap-normalized
// component profile of converted leads against the whole population and
// scales the default weights by the observed lift. The sample is the
// number of conversions, not sends; weights learned from a handful of
// wins are worthless.
func detectWho(records []model.OutcomeRecord) *detection {
	var converted []model.OutcomeRecord
	for _, r := range records {
		if r.Converted {
			converted = append(converted, r)
		}
	}

	det := &detection{sample: len(converted)}
	if len(converted) == 0 || len(converted) == len(records) {
		// No contrast between winners and the population.
		return det
	}

	caps := scoring.Caps()
	base := model.DefaultWeights()

	proposed := model.Weights{
		Quality:   base.Quality * lift(converted, records, func(c model.ComponentScores) float64 { return c.Quality / caps.Quality }),
		Authority: base.Authority * lift(converted, records, func(c model.ComponentScores) float64 { return c.Authority / caps.Authority }),
		Fit:       base.Fit * lift(converted, records, func(c model.ComponentScores) float64 { return c.Fit / caps.Fit }),
		Timing:    base.Timing * lift(converted, records, func(c model.ComponentScores) float64 { return c.Timing / caps.Timing }),
		// Risk lift is inverted: converted leads carrying LESS risk than
		// the population means risk was predictive, so the deduction
		// weight goes up.
		Risk: base.Risk / lift(converted, records, func(c model.ComponentScores) float64 { return c.Risk / caps.Risk }),
	}
	proposed = renormalize(proposed, base.PositiveSum())

	first, second := halves(records)
	det.halfStats = [2]float64{conversionRate(first), conversionRate(second)}
	det.payload = &model.WhoPayload{Weights: proposed}
	return det
}

// lift is the ratio of the mean normalized component over converted
// records to the mean over all records, clamped.
func lift(converted, all []model.OutcomeRecord, norm func(model.ComponentScores) float64) float64 {
	r := (meanOf(converted, norm) + liftEpsilon) / (meanOf(all, norm) + liftEpsilon)
	if r < minLift {
		return minLift
	}
	if r > maxLift {
		return maxLift
	}
	return r
}

func meanOf(records []model.OutcomeRecord, norm func(model.ComponentScores) float64) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		sum += norm(r.Components)
	}
	return sum / float64(len(records))
}

// renormalize rescales the positive components back to the base mass so
// lift changes the mix, not the overall score scale. Risk is left as
// proposed.
func renormalize(w model.Weights, targetPosSum float64) model.Weights {
	posSum := w.PositiveSum()
	if posSum <= 0 {
		return w
	}
	f := targetPosSum / posSum
	w.Quality *= f
	w.Authority *= f
	w.Fit *= f
	w.Timing *= f
	return w
}

// validateWhoProposal rejects a proposal violating the score-range
// invariant. Rejection is a terminal result for the run: the previous
// active weight set stays in force, nothing is clamped or written.
func (l *Learner) validateWhoProposal(det *detection, tenantID string, confidence float64) *Result {
	payload, ok := det.payload.(*model.WhoPayload)
	if !ok {
		return nil
	}
	if err := scoring.ValidateWeights(payload.Weights); err != nil {
		return &Result{
			TenantID:   tenantID,
			Kind:       model.PatternWho,
			Status:     StatusRejectedProposal,
			SampleSize: det.sample,
			Confidence: confidence,
			Reason:     eris.ToString(err, false),
		}
	}
	return nil
}

// buildWeightSet shapes the proposed weights into the tenant's next
// active set and stamps its ID into the pattern payload. Nothing is
// written here; the weight set and its pattern are promoted together in
// one store transaction so neither can become active without the other.
func (l *Learner) buildWeightSet(det *detection, tenantID string, confidence float64) (*model.WeightSet, error) {
	payload, ok := det.payload.(*model.WhoPayload)
	if !ok {
		return nil, eris.New("learner: who detection missing weight payload")
	}

	ws := &model.WeightSet{
		ID:         uuid.NewString(),
		Name:       fmt.Sprintf("%s-learned-%s", tenantID, l.now().UTC().Format("2006-01-02")),
		TenantID:   tenantID,
		Provenance: model.ProvenanceTenantLearned,
		Weights:    payload.Weights,
		Confidence: confidence,
		SampleSize: det.sample,
		Active:     true,
	}
	payload.WeightSetID = ws.ID
	return ws, nil
}
