package learner

import (
	"strings"

	"github.com/sells-group/outreach-engine/internal/model"
)

// SequenceKeySeparator joins channel names into a sequence key, e.g.
// "email>linkedin>sms". Outcome ingestion writes keys in this form.
const SequenceKeySeparator = ">"

// minJourneys is the floor of distinct lead journeys a sequence needs
// before its conversion rate counts.
const minJourneys = 5

type journeyKey struct {
	tier   model.Tier
	seq    string
	leadID string
}

type sequenceStats struct {
	journeys  int
	converted int
}

func (s sequenceStats) rate() float64 {
	if s.journeys == 0 {
		return 0
	}
	return float64(s.converted) / float64(s.journeys)
}

// detectHow finds the winning channel sequence per tier. Touches are
// rolled up into per-lead journeys first; a sequence that sent five
// touches to one lead is one journey, not five data points.
func detectHow(records []model.OutcomeRecord) *detection {
	tagged := make([]model.OutcomeRecord, 0, len(records))
	journeys := map[journeyKey]bool{}
	for _, r := range records {
		if r.SequenceKey == "" || r.Tier == "" {
			continue
		}
		tagged = append(tagged, r)
		k := journeyKey{tier: r.Tier, seq: r.SequenceKey, leadID: r.LeadID}
		journeys[k] = journeys[k] || r.Converted
	}

	det := &detection{sample: len(tagged)}
	if len(journeys) == 0 {
		return det
	}

	type groupKey struct {
		tier model.Tier
		seq  string
	}
	groups := map[groupKey]*sequenceStats{}
	for k, converted := range journeys {
		gk := groupKey{tier: k.tier, seq: k.seq}
		st := groups[gk]
		if st == nil {
			st = &sequenceStats{}
			groups[gk] = st
		}
		st.journeys++
		if converted {
			st.converted++
		}
	}

	var bestKey groupKey
	var best *sequenceStats
	for gk, st := range groups {
		if st.journeys < minJourneys || st.converted == 0 {
			continue
		}
		if best == nil || betterSequence(st, gk.seq, best, bestKey.seq) {
			bestKey, best = gk, st
		}
	}
	if best == nil {
		return det
	}

	sequence, ok := parseSequence(bestKey.seq)
	if !ok {
		return det
	}

	first, second := halves(tagged)
	det.halfStats = [2]float64{
		sequenceRate(first, bestKey.tier, bestKey.seq),
		sequenceRate(second, bestKey.tier, bestKey.seq),
	}
	det.payload = &model.HowPayload{
		Tier:           bestKey.tier,
		Sequence:       sequence,
		ConversionRate: best.rate(),
	}
	return det
}

func betterSequence(a *sequenceStats, aSeq string, b *sequenceStats, bSeq string) bool {
	ra, rb := a.rate(), b.rate()
	if ra != rb {
		return ra > rb
	}
	if a.journeys != b.journeys {
		return a.journeys > b.journeys
	}
	return aSeq < bSeq
}

// parseSequence decodes a sequence key into channels, rejecting keys
// containing anything that is not a known channel.
func parseSequence(key string) ([]model.Channel, bool) {
	parts := strings.Split(key, SequenceKeySeparator)
	out := make([]model.Channel, 0, len(parts))
	for _, p := range parts {
		ch := model.Channel(strings.TrimSpace(p))
		switch ch {
		case model.ChannelEmail, model.ChannelLinkedIn, model.ChannelSMS, model.ChannelVoice:
			out = append(out, ch)
		default:
			return nil, false
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func sequenceRate(records []model.OutcomeRecord, tier model.Tier, seq string) float64 {
	var sends, converted int
	for _, r := range records {
		if r.Tier != tier || r.SequenceKey != seq {
			continue
		}
		sends++
		if r.Converted {
			converted++
		}
	}
	if sends == 0 {
		return 0
	}
	return float64(converted) / float64(sends)
}
