// Package patterns gives the scoring and allocation engines a consistent
// read view of learned patterns. Each tenant's active patterns are held
// in an immutable snapshot behind an atomic pointer: a refresh builds a
// new snapshot and swaps it in whole, so a reader never observes a
// half-updated pattern set while the learner promotes.
package patterns

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/model"
)

// Source is the store subset the cache reads from.
type Source interface {
	ActivePatterns(ctx context.Context, tenantID string) ([]model.Pattern, error)
}

// snapshot is an immutable view of one tenant's active patterns.
type snapshot struct {
	byKind  map[model.PatternKind]*model.Pattern
	takenAt time.Time
}

// Cache holds per-tenant pattern snapshots with a refresh interval.
type Cache struct {
	source  Source
	maxAge  time.Duration
	now     func() time.Time
	mu      sync.Mutex // serializes refreshes, not reads
	tenants sync.Map   // tenantID -> *atomic.Pointer[snapshot]
}

// NewCache creates a pattern cache. maxAge bounds snapshot staleness; a
// learner promotion becomes visible to readers within maxAge at worst.
func NewCache(source Source, maxAge time.Duration) *Cache {
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	return &Cache{source: source, maxAge: maxAge, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (c *Cache) WithNow(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Active returns the tenant's active pattern of the given kind, or nil
// when none exists or the pattern's validity window has passed. Expiry is
// evaluated here, at decision start; callers keep the pattern they read.
func (c *Cache) Active(ctx context.Context, tenantID string, kind model.PatternKind) (*model.Pattern, error) {
	snap, err := c.current(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	p := snap.byKind[kind]
	if p == nil || p.Expired(c.now()) {
		return nil, nil
	}
	return p, nil
}

// Invalidate drops a tenant's snapshot so the next read refreshes. The
// learner calls this after a promotion.
func (c *Cache) Invalidate(tenantID string) {
	c.tenants.Delete(tenantID)
}

func (c *Cache) current(ctx context.Context, tenantID string) (*snapshot, error) {
	ptr := c.pointer(tenantID)
	if snap := ptr.Load(); snap != nil && c.now().Sub(snap.takenAt) < c.maxAge {
		return snap, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another refresher may have won while we waited.
	if snap := ptr.Load(); snap != nil && c.now().Sub(snap.takenAt) < c.maxAge {
		return snap, nil
	}

	active, err := c.source.ActivePatterns(ctx, tenantID)
	if err != nil {
		// A stale snapshot beats a failed read.
		if snap := ptr.Load(); snap != nil {
			return snap, nil
		}
		return nil, eris.Wrapf(err, "patterns: refresh tenant %s", tenantID)
	}

	byKind := make(map[model.PatternKind]*model.Pattern, len(active))
	for i := range active {
		p := active[i]
		byKind[p.Kind] = &p
	}
	snap := &snapshot{byKind: byKind, takenAt: c.now()}
	ptr.Store(snap)
	return snap, nil
}

func (c *Cache) pointer(tenantID string) *atomic.Pointer[snapshot] {
	if v, ok := c.tenants.Load(tenantID); ok {
		return v.(*atomic.Pointer[snapshot])
	}
	ptr := &atomic.Pointer[snapshot]{}
	actual, _ := c.tenants.LoadOrStore(tenantID, ptr)
	return actual.(*atomic.Pointer[snapshot])
}
