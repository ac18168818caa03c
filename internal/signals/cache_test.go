package signals

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/config"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

type fakeProvider struct {
	sig   *model.DomainSignal
	err   error
	calls int
}

func (f *fakeProvider) DomainAuthority(_ context.Context, _ string) (*model.DomainSignal, error) {
	f.calls++
	return f.sig, f.err
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "signals_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestCache(t *testing.T, st store.Store, p Provider) *Cache {
	t.Helper()
	c, err := New(st, p, config.SignalsConfig{TTLDays: 30})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func validSignal(domain string) *model.DomainSignal {
	return &model.DomainSignal{
		Domain:          domain,
		Rank:            120_000,
		MonthlyTraffic:  8_000,
		IndexedKeywords: 300,
		FetchedAt:       time.Now().UTC(),
	}
}

func TestDomainAuthorityFetchesAndCaches(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	p := &fakeProvider{sig: validSignal("acme.io")}
	c := newTestCache(t, st, p)
	ctx := context.Background()

	sig, err := c.DomainAuthority(ctx, "acme.io")
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "acme.io", sig.Domain)
	assert.Equal(t, 1, p.calls)

	// Write-through landed in the store.
	stored, err := st.GetSignal(ctx, model.SignalDomainAuthority, "acme.io")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, sig.Rank, stored.Rank)

	// Subsequent reads never re-pay the provider.
	sig, err = c.DomainAuthority(ctx, "acme.io")
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, 1, p.calls)
}

func TestDomainAuthorityStoreHitSkipsProvider(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	p := &fakeProvider{sig: validSignal("acme.io")}
	c := newTestCache(t, st, p)
	ctx := context.Background()

	require.NoError(t, st.PutSignal(ctx, model.SignalDomainAuthority, validSignal("acme.io"), time.Hour))

	sig, err := c.DomainAuthority(ctx, "acme.io")
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, 0, p.calls)
}

func TestDomainAuthorityNormalizesLookups(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	p := &fakeProvider{sig: validSignal("acme.io")}
	c := newTestCache(t, st, p)
	ctx := context.Background()

	sig, err := c.DomainAuthority(ctx, "https://WWW.Acme.IO/pricing?q=1")
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "acme.io", sig.Domain)
	assert.Equal(t, 1, p.calls)

	// The variant spellings share one cache entry.
	_, err = c.DomainAuthority(ctx, "acme.io:443")
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestDomainAuthorityProviderFailureDegrades(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	p := &fakeProvider{err: eris.New("upstream 500")}
	c := newTestCache(t, st, p)

	sig, err := c.DomainAuthority(context.Background(), "acme.io")
	require.NoError(t, err, "provider failure is degradation, not an error")
	assert.Nil(t, sig)
}

func TestDomainAuthorityInvalidProviderSignal(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	p := &fakeProvider{sig: &model.DomainSignal{Domain: "acme.io", Rank: 0}}
	c := newTestCache(t, st, p)

	sig, err := c.DomainAuthority(context.Background(), "acme.io")
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestDomainAuthorityNoProvider(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	c := newTestCache(t, st, nil)

	sig, err := c.DomainAuthority(context.Background(), "acme.io")
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestDomainAuthorityEmptyDomain(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	p := &fakeProvider{sig: validSignal("acme.io")}
	c := newTestCache(t, st, p)

	sig, err := c.DomainAuthority(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, sig)
	assert.Equal(t, 0, p.calls)
}
