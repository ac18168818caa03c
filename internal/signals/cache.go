// Package signals deduplicates and caches third-party enrichment lookups
// so repeated scoring of leads sharing a domain does not re-pay lookup
// cost. Reads go L1 (in-process) -> L2 (store) -> provider, writing
// through on fetch.
package signals

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/config"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

// Provider fetches authority signals for a domain from the external
// enrichment source. Implementations handle their own rate limiting and
// retries.
type Provider interface {
	DomainAuthority(ctx context.Context, domain string) (*model.DomainSignal, error)
}

// Cache is the two-level signal cache. Invalid cached entries are treated
// as misses; a provider failure yields a nil signal, never an error, so
// scoring can degrade the affected component instead of failing.
type Cache struct {
	l1       *ristretto.Cache[string, []byte]
	store    store.Store
	provider Provider
	ttl      time.Duration
}

// New creates a signal cache over the given store and provider.
func New(st store.Store, provider Provider, cfg config.SignalsConfig) (*Cache, error) {
	maxBytes := cfg.L1MaxBytes
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	l1, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, eris.Wrap(err, "signals: create l1 cache")
	}

	ttlDays := cfg.TTLDays
	if ttlDays <= 0 {
		ttlDays = 30
	}

	return &Cache{
		l1:       l1,
		store:    st,
		provider: provider,
		ttl:      time.Duration(ttlDays) * 24 * time.Hour,
	}, nil
}

// DomainAuthority returns the authority signal for a domain, fetching and
// write-through caching on miss. A nil signal with nil error means the
// signal is unavailable and the caller should score at the floor.
func (c *Cache) DomainAuthority(ctx context.Context, domain string) (*model.DomainSignal, error) {
	norm := model.NormalizeDomain(domain)
	if norm == "" {
		return nil, nil
	}
	key := string(model.SignalDomainAuthority) + ":" + norm

	if data, ok := c.l1.Get(key); ok {
		var sig model.DomainSignal
		if err := json.Unmarshal(data, &sig); err == nil && sig.Valid() {
			return &sig, nil
		}
		// Soft-invalid L1 entry: drop and fall through.
		c.l1.Del(key)
	}

	sig, err := c.store.GetSignal(ctx, model.SignalDomainAuthority, norm)
	if err != nil {
		return nil, eris.Wrap(err, "signals: read cache")
	}
	if sig != nil && sig.Valid() {
		c.setL1(key, sig)
		return sig, nil
	}

	if c.provider == nil {
		return nil, nil
	}

	fetched, err := c.provider.DomainAuthority(ctx, norm)
	if err != nil {
		// Degraded input: the affected component scores at its floor.
		zap.L().Warn("signals: provider fetch failed",
			zap.String("domain", norm),
			zap.Error(err),
		)
		return nil, nil
	}
	if fetched == nil || !fetched.Valid() {
		zap.L().Debug("signals: provider returned invalid signal", zap.String("domain", norm))
		return nil, nil
	}
	fetched.Domain = norm

	if err := c.store.PutSignal(ctx, model.SignalDomainAuthority, fetched, c.ttl); err != nil {
		// Write-through failure is non-fatal; the signal is still usable.
		zap.L().Warn("signals: write-through failed",
			zap.String("domain", norm),
			zap.Error(err),
		)
	}
	c.setL1(key, fetched)

	return fetched, nil
}

func (c *Cache) setL1(key string, sig *model.DomainSignal) {
	data, err := json.Marshal(sig)
	if err != nil {
		return
	}
	c.l1.SetWithTTL(key, data, int64(len(data)), c.ttl)
}

// Close releases the in-process cache.
func (c *Cache) Close() {
	c.l1.Close()
}
