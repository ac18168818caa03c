package learner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/config"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/patterns"
	"github.com/sells-group/outreach-engine/internal/store"
)

var testNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "learner_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testLearnerConfig() config.LearnerConfig {
	return config.LearnerConfig{
		MinSamples: map[string]int{
			"who":  5,
			"what": 10,
			"when": 20,
			"how":  10,
		},
		ConfidenceFloor: 0.5,
		ValidityDays:    90,
		LookbackDays:    180,
	}
}

func newTestLearner(t *testing.T, st store.Store, cache *patterns.Cache) *Learner {
	t.Helper()
	return New(st, cache, testLearnerConfig()).
		WithNow(func() time.Time { return testNow })
}

// insertOutcomes writes records with strictly increasing send times so
// the window halves split in insertion order.
func insertOutcomes(t *testing.T, st store.Store, tenantID string, records []model.OutcomeRecord) {
	t.Helper()
	base := testNow.AddDate(0, 0, -60)
	for i := range records {
		records[i].TenantID = tenantID
		records[i].SentAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, st.InsertOutcome(context.Background(), &records[i]))
	}
}

// whenOutcomes alternates Tuesday-10am sends converting half the time
// with Monday-3pm sends that never convert, evenly across the window.
func whenOutcomes(n int) []model.OutcomeRecord {
	out := make([]model.OutcomeRecord, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = model.OutcomeRecord{
				LeadID:    "lead-even",
				Channel:   model.ChannelEmail,
				Weekday:   time.Tuesday,
				Hour:      10,
				Converted: i%4 == 0,
			}
		} else {
			out[i] = model.OutcomeRecord{
				LeadID:  "lead-odd",
				Channel: model.ChannelEmail,
				Weekday: time.Monday,
				Hour:    15,
			}
		}
	}
	return out
}

func TestLearnWhenPromotes(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	l := newTestLearner(t, st, nil)
	ctx := context.Background()

	insertOutcomes(t, st, "acme", whenOutcomes(40))

	res, err := l.Learn(ctx, "acme", model.PatternWhen)
	require.NoError(t, err)
	assert.Equal(t, StatusPromoted, res.Status)
	assert.Equal(t, 40, res.SampleSize)
	assert.InDelta(t, 1.0, res.Confidence, 0.01)
	require.NotNil(t, res.Pattern)

	active, err := st.ActivePattern(ctx, "acme", model.PatternWhen)
	require.NoError(t, err)
	require.NotNil(t, active)

	payload, err := active.When()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Tuesday}, payload.Days)
	assert.Equal(t, []int{10}, payload.Hours)
	assert.Equal(t, "UTC", payload.Timezone)
	assert.InDelta(t, 0.5, payload.ConversionRate, 0.01)
	assert.Equal(t, testNow.AddDate(0, 0, 90), active.ValidUntil)
}

func TestLearnMinimumSampleBoundary(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	l := newTestLearner(t, st, nil)
	ctx := context.Background()

	insertOutcomes(t, st, "acme", whenOutcomes(19))

	res, err := l.Learn(ctx, "acme", model.PatternWhen)
	require.NoError(t, err)
	assert.Equal(t, StatusInsufficientSample, res.Status)
	assert.Equal(t, 19, res.SampleSize)

	active, err := st.ActivePattern(ctx, "acme", model.PatternWhen)
	require.NoError(t, err)
	assert.Nil(t, active)

	// One more record reaches the floor and the run writes a pattern.
	insertOutcomes(t, st, "acme", whenOutcomes(1))
	res, err = l.Learn(ctx, "acme", model.PatternWhen)
	require.NoError(t, err)
	assert.NotEqual(t, StatusInsufficientSample, res.Status)
}

func TestLearnNoOpKeepsExistingPattern(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	l := newTestLearner(t, st, nil)
	ctx := context.Background()

	insertOutcomes(t, st, "acme", whenOutcomes(40))
	first, err := l.Learn(ctx, "acme", model.PatternWhen)
	require.NoError(t, err)
	require.Equal(t, StatusPromoted, first.Status)

	// A second tenant with thin history must not disturb acme.
	insertOutcomes(t, st, "globex", whenOutcomes(4))
	res, err := l.Learn(ctx, "globex", model.PatternWhen)
	require.NoError(t, err)
	assert.Equal(t, StatusInsufficientSample, res.Status)

	active, err := st.ActivePattern(ctx, "acme", model.PatternWhen)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.Pattern.ID, active.ID)
}

func TestLearnAdvisoryWhenUnstable(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	l := newTestLearner(t, st, nil)
	ctx := context.Background()

	// All conversions land in the first half of the window: the effect
	// does not replicate, so confidence collapses to zero.
	records := make([]model.OutcomeRecord, 40)
	for i := range records {
		records[i] = model.OutcomeRecord{
			LeadID:    "lead-1",
			Channel:   model.ChannelEmail,
			Weekday:   time.Tuesday,
			Hour:      10,
			Converted: i < 10,
		}
	}
	insertOutcomes(t, st, "acme", records)

	res, err := l.Learn(ctx, "acme", model.PatternWhen)
	require.NoError(t, err)
	assert.Equal(t, StatusAdvisory, res.Status)
	require.NotNil(t, res.Pattern)
	assert.False(t, res.Pattern.Active)

	// Advisory patterns never reach readers.
	active, err := st.ActivePattern(ctx, "acme", model.PatternWhen)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestLearnPromotionVisibleThroughCache(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	cache := patterns.NewCache(st, time.Hour)
	l := newTestLearner(t, st, cache)
	ctx := context.Background()

	p, err := cache.Active(ctx, "acme", model.PatternWhen)
	require.NoError(t, err)
	require.Nil(t, p)

	insertOutcomes(t, st, "acme", whenOutcomes(40))
	res, err := l.Learn(ctx, "acme", model.PatternWhen)
	require.NoError(t, err)
	require.Equal(t, StatusPromoted, res.Status)

	// Invalidation bypasses the snapshot max age.
	p, err = cache.Active(ctx, "acme", model.PatternWhen)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, res.Pattern.ID, p.ID)
}

func TestLearnUnknownKind(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	l := newTestLearner(t, st, nil)

	_, err := l.Learn(context.Background(), "acme", model.PatternKind("why"))
	assert.Error(t, err)
}

func TestLearnAllRunsEveryDetector(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	l := newTestLearner(t, st, nil)

	results, err := l.LearnAll(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, kind := range model.Kinds() {
		assert.Equal(t, kind, results[i].Kind)
		assert.Equal(t, StatusInsufficientSample, results[i].Status)
	}
}

func TestStability(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1.0, stability(0.5, 0.5))
	assert.Equal(t, 0.0, stability(0, 0))
	assert.Equal(t, 0.0, stability(0.5, 0))
	assert.InDelta(t, 0.5, stability(0.5, 0.25), 0.001)
}

func TestConfidenceSaturatesAtTwiceMinimum(t *testing.T) {
	t.Parallel()
	l := newTestLearner(t, newTestStore(t), nil)

	det := &detection{sample: 20, halfStats: [2]float64{0.4, 0.4}}
	assert.InDelta(t, 0.5, l.confidence(det, 20), 0.001)

	det.sample = 40
	assert.InDelta(t, 1.0, l.confidence(det, 20), 0.001)

	det.sample = 400
	assert.InDelta(t, 1.0, l.confidence(det, 20), 0.001)
}
