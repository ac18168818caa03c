package scoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/config"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/signals"
	"github.com/sells-group/outreach-engine/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "scoring_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Tiers:           testBoundaries(),
		ConfidenceFloor: 0.7,
		MinSampleSize:   50,
		TargetCountries: []string{"US", "CA"},
	}
}

func newSignalCache(t *testing.T, st store.Store) *signals.Cache {
	t.Helper()
	sc, err := signals.New(st, nil, config.SignalsConfig{TTLDays: 30})
	require.NoError(t, err)
	return sc
}

func strongLead(tenantID string) *model.Lead {
	return &model.Lead{
		TenantID:      tenantID,
		Email:         "jordan@acme.io",
		EmailVerified: true,
		Phone:         "+15550100",
		LinkedInURL:   "https://linkedin.com/in/jordan",
		Title:         "CEO",
		Industry:      "saas",
		EmployeeCount: 25,
		Country:       "US",
		Hiring:        true,
		RecentFunding: true,
		Domain:        "acme.io",
	}
}

func TestScoreStrongLeadIsHot(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutSignal(ctx, model.SignalDomainAuthority, &model.DomainSignal{
		Domain:          "acme.io",
		Rank:            50_000,
		MonthlyTraffic:  20_000,
		IndexedKeywords: 1_000,
		FetchedAt:       time.Now(),
	}, time.Hour))

	eng, err := NewEngine(st, newSignalCache(t, st), testScoringConfig())
	require.NoError(t, err)

	lead := strongLead("acme")
	require.NoError(t, st.UpsertLead(ctx, lead))

	res, err := eng.Score(ctx, lead)
	require.NoError(t, err)

	assert.Equal(t, 20.0, res.Components.Quality)
	assert.Equal(t, 25.0, res.Components.Authority)
	assert.Equal(t, 25.0, res.Components.Fit)
	assert.Equal(t, 15.0, res.Components.Timing)
	assert.Equal(t, 0.0, res.Components.Risk)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, model.TierHot, res.Tier)
}

func TestScoreIsDeterministic(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	eng, err := NewEngine(st, newSignalCache(t, st), testScoringConfig())
	require.NoError(t, err)

	lead := strongLead("acme")
	require.NoError(t, st.UpsertLead(ctx, lead))

	first, err := eng.Score(ctx, lead)
	require.NoError(t, err)
	second, err := eng.Score(ctx, lead)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScoreMissingEnrichmentDegradesAuthority(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	// No cached signal and no provider: authority scores at the floor,
	// the lead still gets a deterministic composite.
	eng, err := NewEngine(st, newSignalCache(t, st), testScoringConfig())
	require.NoError(t, err)

	lead := strongLead("acme")
	require.NoError(t, st.UpsertLead(ctx, lead))

	res, err := eng.Score(ctx, lead)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Components.Authority)
	assert.Less(t, res.Score, 100)
}

func TestScoreLeadWithoutIdentity(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	eng, err := NewEngine(st, newSignalCache(t, st), testScoringConfig())
	require.NoError(t, err)

	_, err = eng.Score(context.Background(), nil)
	assert.Error(t, err)
	_, err = eng.Score(context.Background(), &model.Lead{})
	assert.Error(t, err)
}

func TestScoreLeadPersists(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	eng, err := NewEngine(st, newSignalCache(t, st), testScoringConfig())
	require.NoError(t, err)

	lead := strongLead("acme")
	require.NoError(t, st.UpsertLead(ctx, lead))

	res, err := eng.ScoreLead(ctx, lead.ID)
	require.NoError(t, err)

	stored, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Score, stored.Score)
	assert.Equal(t, res.Tier, stored.Tier)
	assert.Equal(t, res.Components, stored.Components)
	assert.Equal(t, res.WeightSetID, stored.WeightSetID)
}

func TestScoreBatchToleratesMissingLeads(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	eng, err := NewEngine(st, newSignalCache(t, st), testScoringConfig())
	require.NoError(t, err)

	a := strongLead("acme")
	b := strongLead("acme")
	require.NoError(t, st.UpsertLead(ctx, a))
	require.NoError(t, st.UpsertLead(ctx, b))

	results, err := eng.ScoreBatch(ctx, []string{a.ID, "no-such-lead", b.ID})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.NotNil(t, results[2])
}

func TestResolveFallsBackToBenchmark(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	r := NewWeightResolver(st, 0.7, 50)
	ws, err := r.Resolve(context.Background(), "acme", "saas")
	require.NoError(t, err)
	assert.Equal(t, model.ProvenancePriorBenchmark, ws.Provenance)
}

func TestResolvePrefersTenantLearned(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PromoteWeightSet(ctx, &model.WeightSet{
		Name:       "acme-learned",
		TenantID:   "acme",
		Provenance: model.ProvenanceTenantLearned,
		Weights:    model.DefaultWeights(),
		Confidence: 0.9,
		SampleSize: 120,
	}))

	r := NewWeightResolver(st, 0.7, 50)
	ws, err := r.Resolve(ctx, "acme", "saas")
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceTenantLearned, ws.Provenance)

	// A different tenant never sees it.
	other, err := r.Resolve(ctx, "globex", "saas")
	require.NoError(t, err)
	assert.Equal(t, model.ProvenancePriorBenchmark, other.Provenance)
}

func TestResolveSkipsLowConfidenceRungs(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PromoteWeightSet(ctx, &model.WeightSet{
		Name:       "acme-learned",
		TenantID:   "acme",
		Provenance: model.ProvenanceTenantLearned,
		Weights:    model.DefaultWeights(),
		Confidence: 0.3,
		SampleSize: 120,
	}))
	require.NoError(t, st.PromoteWeightSet(ctx, &model.WeightSet{
		Name:       "saas-platform",
		Industry:   "saas",
		Provenance: model.ProvenanceIndustryPlatform,
		Weights:    model.DefaultWeights(),
		Confidence: 0.9,
		SampleSize: 400,
	}))

	r := NewWeightResolver(st, 0.7, 50)
	ws, err := r.Resolve(ctx, "acme", "saas")
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceIndustryPlatform, ws.Provenance)
}

func TestResolveSkipsSmallSampleRungs(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PromoteWeightSet(ctx, &model.WeightSet{
		Name:       "acme-learned",
		TenantID:   "acme",
		Provenance: model.ProvenanceTenantLearned,
		Weights:    model.DefaultWeights(),
		Confidence: 0.9,
		SampleSize: 10,
	}))

	r := NewWeightResolver(st, 0.7, 50)
	ws, err := r.Resolve(ctx, "acme", "")
	require.NoError(t, err)
	assert.Equal(t, model.ProvenancePriorBenchmark, ws.Provenance)
}

func TestResolveFloorsGateBenchmarkRung(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	// The benchmark rung is gated like every store-backed rung; floors
	// above its shipped confidence fall through to the default.
	floor := model.BenchmarkWeights().Confidence + 0.05
	r := NewWeightResolver(st, floor, 50)
	ws, err := r.Resolve(context.Background(), "acme", "saas")
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceDefault, ws.Provenance)
	assert.Equal(t, model.DefaultWeights(), ws.Weights)
}
