package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrLimitReached is returned by AcquireResourceSlot when the increment
// would exceed the resource's daily limit (or the resource is not active).
var ErrLimitReached = eris.New("store: resource limit reached")

// Store defines the persistence interface for the scoring, allocation, and
// learning loop. Implementations must provide atomic increment-and-check on
// resource counters and atomic active-flag swaps on weight sets and
// patterns.
type Store interface {
	// Leads
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	UpsertLead(ctx context.Context, lead *model.Lead) error
	// UpsertLeadBatch inserts or replaces many lead rows in bulk. Returns
	// the number of rows written.
	UpsertLeadBatch(ctx context.Context, leads []*model.Lead) (int64, error)
	// SaveScore persists a scoring result onto the lead row.
	SaveScore(ctx context.Context, leadID string, score int, tier model.Tier, components model.ComponentScores, weightSetID string) error

	// Weight sets. Scope is the tenant ID for tenant-learned sets, the
	// industry name for industry sets, and empty for global sets.
	ActiveWeightSet(ctx context.Context, provenance model.Provenance, scope string) (*model.WeightSet, error)
	// PromoteWeightSet inserts ws and makes it the single active set for
	// its (provenance, scope) in one transaction.
	PromoteWeightSet(ctx context.Context, ws *model.WeightSet) error
	// PromoteWeightSetAndPattern promotes both records in one transaction
	// so a learned weight set can never become active without the pattern
	// that references it.
	PromoteWeightSetAndPattern(ctx context.Context, ws *model.WeightSet, p *model.Pattern) error

	// Patterns
	ActivePattern(ctx context.Context, tenantID string, kind model.PatternKind) (*model.Pattern, error)
	ActivePatterns(ctx context.Context, tenantID string) ([]model.Pattern, error)
	// InsertPattern writes a pattern without touching active flags
	// (advisory patterns below the confidence floor).
	InsertPattern(ctx context.Context, p *model.Pattern) error
	// PromotePattern inserts p active and deactivates the previous active
	// pattern for (tenant, kind) in one transaction. A reader never
	// observes zero or two active patterns during the swap.
	PromotePattern(ctx context.Context, p *model.Pattern) error

	// Resources
	ListResources(ctx context.Context, tenantID string, channel model.Channel) ([]model.Resource, error)
	UpsertResource(ctx context.Context, r *model.Resource) error
	// AcquireResourceSlot atomically rolls the counter over to day if
	// stale and increments it, failing with ErrLimitReached when the
	// increment would exceed the daily limit. Returns the new count.
	AcquireResourceSlot(ctx context.Context, resourceID string, day string) (int, error)

	// Signal cache
	GetSignal(ctx context.Context, sigType model.SignalType, domain string) (*model.DomainSignal, error)
	PutSignal(ctx context.Context, sigType model.SignalType, sig *model.DomainSignal, ttl time.Duration) error

	// Outcomes
	InsertOutcome(ctx context.Context, rec *model.OutcomeRecord) error
	// InsertOutcomeBatch bulk-writes outcome records, assigning missing
	// IDs. Returns the number of rows written.
	InsertOutcomeBatch(ctx context.Context, recs []model.OutcomeRecord) (int64, error)
	ListOutcomes(ctx context.Context, tenantID string, since time.Time) ([]model.OutcomeRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
