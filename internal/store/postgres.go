package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/db"
	"github.com/sells-group/outreach-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// acquireSlotSQL is the single-statement conditional increment behind
// AcquireResourceSlot. Rolling the day over and incrementing happen in the
// same UPDATE, so a rollover can never race an in-flight increment, and
// two concurrent acquisitions can never both pass a stale limit check.
// The daily_limit guard keeps the rollover branch from granting a slot on
// a zero-limit resource.
const acquireSlotSQL = `
UPDATE resources SET
	used_today = CASE WHEN usage_day = $2 THEN used_today + 1 ELSE 1 END,
	usage_day  = $2
WHERE id = $1
  AND status = 'active'
  AND daily_limit >= 1
  AND (usage_day <> $2 OR used_today < daily_limit)
RETURNING used_today`

// preparedStatements lists queries to prepare on each new connection for
// the hottest store operations.
var preparedStatements = map[string]string{
	"acquire_slot":   acquireSlotSQL,
	"get_signal":     `SELECT data, fetched_at FROM signal_cache WHERE signal_type = $1 AND domain = $2 AND expires_at > now()`,
	"active_pattern": `SELECT id, tenant_id, kind, payload, sample_size, confidence, valid_from, valid_until, active, created_at FROM patterns WHERE tenant_id = $1 AND kind = $2 AND active ORDER BY created_at DESC LIMIT 1`,
	"get_lead":       `SELECT data, score, tier, components, weight_set_id FROM leads WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Tests use it with a mock
// pool; Close is a no-op since the caller owns the pool's lifecycle.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk outcome import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id            TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	data          JSONB NOT NULL,
	score         INT NOT NULL DEFAULT 0,
	tier          TEXT NOT NULL DEFAULT 'dead',
	components    JSONB,
	weight_set_id TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS weight_sets (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	tenant_id   TEXT NOT NULL DEFAULT '',
	industry    TEXT NOT NULL DEFAULT '',
	provenance  TEXT NOT NULL,
	weights     JSONB NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	sample_size INT NOT NULL,
	active      BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS patterns (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	kind        TEXT NOT NULL,
	payload     JSONB NOT NULL,
	sample_size INT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	valid_from  TIMESTAMPTZ NOT NULL,
	valid_until TIMESTAMPTZ NOT NULL,
	active      BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS resources (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	channel     TEXT NOT NULL,
	identity    TEXT NOT NULL,
	daily_limit INT NOT NULL,
	used_today  INT NOT NULL DEFAULT 0,
	usage_day   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'active',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS signal_cache (
	signal_type TEXT NOT NULL,
	domain      TEXT NOT NULL,
	data        JSONB NOT NULL,
	fetched_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (signal_type, domain)
);

CREATE TABLE IF NOT EXISTS outcomes (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	lead_id      TEXT NOT NULL,
	channel      TEXT NOT NULL,
	template_key TEXT NOT NULL DEFAULT '',
	sequence_key TEXT NOT NULL DEFAULT '',
	sequence_pos INT NOT NULL DEFAULT 0,
	sent_at      TIMESTAMPTZ NOT NULL,
	weekday      INT NOT NULL,
	hour         INT NOT NULL,
	opened       BOOLEAN NOT NULL DEFAULT false,
	clicked      BOOLEAN NOT NULL DEFAULT false,
	replied      BOOLEAN NOT NULL DEFAULT false,
	meeting      BOOLEAN NOT NULL DEFAULT false,
	converted    BOOLEAN NOT NULL DEFAULT false,
	components   JSONB,
	tier         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_leads_tenant ON leads(tenant_id);
CREATE INDEX IF NOT EXISTS idx_weight_sets_scope ON weight_sets(provenance, tenant_id, industry) WHERE active;
CREATE INDEX IF NOT EXISTS idx_patterns_active ON patterns(tenant_id, kind) WHERE active;
CREATE INDEX IF NOT EXISTS idx_resources_tenant_channel ON resources(tenant_id, channel);
CREATE INDEX IF NOT EXISTS idx_signal_cache_expires ON signal_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_outcomes_tenant_sent ON outcomes(tenant_id, sent_at);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// GetLead fetches a lead by ID. Returns ErrNotFound when missing.
func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	var (
		data        []byte
		score       int
		tier        string
		components  []byte
		weightSetID *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT data, score, tier, components, weight_set_id FROM leads WHERE id = $1`, id,
	).Scan(&data, &score, &tier, &components, &weightSetID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get lead")
	}

	var lead model.Lead
	if err := json.Unmarshal(data, &lead); err != nil {
		return nil, eris.Wrap(err, "postgres: decode lead")
	}
	// Scoring columns are authoritative over the JSON snapshot.
	lead.Score = score
	lead.Tier = model.Tier(tier)
	if len(components) > 0 {
		if err := json.Unmarshal(components, &lead.Components); err != nil {
			return nil, eris.Wrap(err, "postgres: decode components")
		}
	}
	if weightSetID != nil {
		lead.WeightSetID = *weightSetID
	}
	return &lead, nil
}

// UpsertLead inserts or replaces a lead row.
func (s *PostgresStore) UpsertLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	data, err := json.Marshal(lead)
	if err != nil {
		return eris.Wrap(err, "postgres: encode lead")
	}
	components, err := json.Marshal(lead.Components)
	if err != nil {
		return eris.Wrap(err, "postgres: encode components")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO leads (id, tenant_id, data, score, tier, components, weight_set_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			data = EXCLUDED.data,
			score = EXCLUDED.score,
			tier = EXCLUDED.tier,
			components = EXCLUDED.components,
			weight_set_id = EXCLUDED.weight_set_id,
			updated_at = EXCLUDED.updated_at`,
		lead.ID, lead.TenantID, data, lead.Score, string(lead.Tier), components,
		nullIfEmpty(lead.WeightSetID), lead.CreatedAt, lead.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: upsert lead")
}

// leadColumns is the column order for bulk lead writes.
var leadColumns = []string{
	"id", "tenant_id", "data", "score", "tier", "components",
	"weight_set_id", "created_at", "updated_at",
}

// UpsertLeadBatch bulk-upserts leads through a temp table, one COPY and
// one INSERT ... ON CONFLICT instead of a round trip per row.
func (s *PostgresStore) UpsertLeadBatch(ctx context.Context, leads []*model.Lead) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(leads))
	for _, lead := range leads {
		if lead.ID == "" {
			lead.ID = uuid.NewString()
		}
		if lead.CreatedAt.IsZero() {
			lead.CreatedAt = now
		}
		lead.UpdatedAt = now

		data, err := json.Marshal(lead)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: encode lead")
		}
		components, err := json.Marshal(lead.Components)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: encode components")
		}
		rows = append(rows, []any{
			lead.ID, lead.TenantID, data, lead.Score, string(lead.Tier),
			components, nullIfEmpty(lead.WeightSetID), lead.CreatedAt, lead.UpdatedAt,
		})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      leadColumns,
		ConflictKeys: []string{"id"},
	}, rows)
}

// SaveScore persists a scoring result onto an existing lead row.
func (s *PostgresStore) SaveScore(ctx context.Context, leadID string, score int, tier model.Tier, components model.ComponentScores, weightSetID string) error {
	comps, err := json.Marshal(components)
	if err != nil {
		return eris.Wrap(err, "postgres: encode components")
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE leads SET score = $1, tier = $2, components = $3, weight_set_id = $4, updated_at = $5
		WHERE id = $6`,
		score, string(tier), comps, nullIfEmpty(weightSetID), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: save score")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveWeightSet returns the single active weight set for (provenance,
// scope), or nil when none exists.
func (s *PostgresStore) ActiveWeightSet(ctx context.Context, provenance model.Provenance, scope string) (*model.WeightSet, error) {
	tenant, industry := scopeColumns(provenance, scope)
	var (
		ws      model.WeightSet
		weights []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, tenant_id, industry, provenance, weights, confidence, sample_size, active, created_at
		FROM weight_sets
		WHERE provenance = $1 AND tenant_id = $2 AND industry = $3 AND active
		ORDER BY created_at DESC LIMIT 1`,
		string(provenance), tenant, industry,
	).Scan(&ws.ID, &ws.Name, &ws.TenantID, &ws.Industry, &ws.Provenance, &weights,
		&ws.Confidence, &ws.SampleSize, &ws.Active, &ws.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active weight set")
	}
	if err := json.Unmarshal(weights, &ws.Weights); err != nil {
		return nil, eris.Wrap(err, "postgres: decode weights")
	}
	return &ws, nil
}

// PromoteWeightSet inserts ws as the active set for its scope, retiring
// the previous one in the same transaction.
func (s *PostgresStore) PromoteWeightSet(ctx context.Context, ws *model.WeightSet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin promote weight set")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := promoteWeightSetTx(ctx, tx, ws); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit promote weight set")
}

// PromoteWeightSetAndPattern swaps in a learned weight set and its
// pattern record in one transaction, so neither can become active
// without the other.
func (s *PostgresStore) PromoteWeightSetAndPattern(ctx context.Context, ws *model.WeightSet, p *model.Pattern) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin promote weights and pattern")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := promoteWeightSetTx(ctx, tx, ws); err != nil {
		return err
	}
	if err := promotePatternTx(ctx, tx, p); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit promote weights and pattern")
}

func promoteWeightSetTx(ctx context.Context, tx pgx.Tx, ws *model.WeightSet) error {
	if ws.ID == "" {
		ws.ID = uuid.NewString()
	}
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now().UTC()
	}
	ws.Active = true

	weights, err := json.Marshal(ws.Weights)
	if err != nil {
		return eris.Wrap(err, "postgres: encode weights")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE weight_sets SET active = false
		WHERE provenance = $1 AND tenant_id = $2 AND industry = $3 AND active`,
		string(ws.Provenance), ws.TenantID, ws.Industry,
	); err != nil {
		return eris.Wrap(err, "postgres: retire weight set")
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO weight_sets (id, name, tenant_id, industry, provenance, weights, confidence, sample_size, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, $9)`,
		ws.ID, ws.Name, ws.TenantID, ws.Industry, string(ws.Provenance), weights,
		ws.Confidence, ws.SampleSize, ws.CreatedAt,
	); err != nil {
		return eris.Wrap(err, "postgres: insert weight set")
	}
	return nil
}

// ActivePattern returns the active pattern for (tenant, kind), or nil.
func (s *PostgresStore) ActivePattern(ctx context.Context, tenantID string, kind model.PatternKind) (*model.Pattern, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, kind, payload, sample_size, confidence, valid_from, valid_until, active, created_at
		FROM patterns
		WHERE tenant_id = $1 AND kind = $2 AND active
		ORDER BY created_at DESC LIMIT 1`,
		tenantID, string(kind),
	)
	p, err := scanPattern(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active pattern")
	}
	return p, nil
}

// ActivePatterns returns all active patterns for a tenant.
func (s *PostgresStore) ActivePatterns(ctx context.Context, tenantID string) ([]model.Pattern, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, kind, payload, sample_size, confidence, valid_from, valid_until, active, created_at
		FROM patterns
		WHERE tenant_id = $1 AND active`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active patterns")
	}
	defer rows.Close()

	var out []model.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan pattern")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: active patterns rows")
}

// InsertPattern writes a pattern without touching active flags.
func (s *PostgresStore) InsertPattern(ctx context.Context, p *model.Pattern) error {
	preparePattern(p)
	_, err := s.pool.Exec(ctx, insertPatternSQL,
		p.ID, p.TenantID, string(p.Kind), []byte(p.Payload), p.SampleSize,
		p.Confidence, p.ValidFrom, p.ValidUntil, p.Active, p.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert pattern")
}

const insertPatternSQL = `
INSERT INTO patterns (id, tenant_id, kind, payload, sample_size, confidence, valid_from, valid_until, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// PromotePattern inserts p active and retires the previous active pattern
// for (tenant, kind) in one transaction.
func (s *PostgresStore) PromotePattern(ctx context.Context, p *model.Pattern) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin promote pattern")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := promotePatternTx(ctx, tx, p); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit promote pattern")
}

func promotePatternTx(ctx context.Context, tx pgx.Tx, p *model.Pattern) error {
	preparePattern(p)
	p.Active = true

	if _, err := tx.Exec(ctx, `
		UPDATE patterns SET active = false
		WHERE tenant_id = $1 AND kind = $2 AND active`,
		p.TenantID, string(p.Kind),
	); err != nil {
		return eris.Wrap(err, "postgres: retire pattern")
	}

	if _, err := tx.Exec(ctx, insertPatternSQL,
		p.ID, p.TenantID, string(p.Kind), []byte(p.Payload), p.SampleSize,
		p.Confidence, p.ValidFrom, p.ValidUntil, true, p.CreatedAt,
	); err != nil {
		return eris.Wrap(err, "postgres: insert pattern")
	}
	return nil
}

// ListResources returns all resources for (tenant, channel), lowest usage
// first with ID as a deterministic tiebreak.
func (s *PostgresStore) ListResources(ctx context.Context, tenantID string, channel model.Channel) ([]model.Resource, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, channel, identity, daily_limit, used_today, usage_day, status, created_at
		FROM resources
		WHERE tenant_id = $1 AND channel = $2
		ORDER BY used_today ASC, id ASC`,
		tenantID, string(channel),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list resources")
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		var r model.Resource
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Channel, &r.Identity, &r.DailyLimit,
			&r.UsedToday, &r.UsageDay, &r.Status, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan resource")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list resources rows")
}

// UpsertResource inserts or replaces a resource definition. Usage counters
// are preserved on conflict; only definition fields update.
func (s *PostgresStore) UpsertResource(ctx context.Context, r *model.Resource) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO resources (id, tenant_id, channel, identity, daily_limit, used_today, usage_day, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			identity = EXCLUDED.identity,
			daily_limit = EXCLUDED.daily_limit,
			status = EXCLUDED.status`,
		r.ID, r.TenantID, string(r.Channel), r.Identity, r.DailyLimit,
		r.UsedToday, r.UsageDay, string(r.Status), r.CreatedAt,
	)
	return eris.Wrap(err, "postgres: upsert resource")
}

// AcquireResourceSlot performs the atomic conditional increment. Returns
// ErrLimitReached when the resource is at its limit or not active.
func (s *PostgresStore) AcquireResourceSlot(ctx context.Context, resourceID string, day string) (int, error) {
	var used int
	err := s.pool.QueryRow(ctx, acquireSlotSQL, resourceID, day).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrLimitReached
	}
	if err != nil {
		return 0, eris.Wrap(err, "postgres: acquire slot")
	}
	return used, nil
}

// GetSignal returns a cached, unexpired signal or nil on miss.
func (s *PostgresStore) GetSignal(ctx context.Context, sigType model.SignalType, domain string) (*model.DomainSignal, error) {
	var (
		data      []byte
		fetchedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT data, fetched_at FROM signal_cache WHERE signal_type = $1 AND domain = $2 AND expires_at > now()`,
		string(sigType), domain,
	).Scan(&data, &fetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get signal")
	}

	var sig model.DomainSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, eris.Wrap(err, "postgres: decode signal")
	}
	sig.FetchedAt = fetchedAt
	return &sig, nil
}

// PutSignal writes through a freshly fetched signal with the given TTL.
func (s *PostgresStore) PutSignal(ctx context.Context, sigType model.SignalType, sig *model.DomainSignal, ttl time.Duration) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return eris.Wrap(err, "postgres: encode signal")
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO signal_cache (signal_type, domain, data, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (signal_type, domain) DO UPDATE SET
			data = EXCLUDED.data,
			fetched_at = EXCLUDED.fetched_at,
			expires_at = EXCLUDED.expires_at`,
		string(sigType), sig.Domain, data, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: put signal")
}

// InsertOutcome writes one outreach outcome record.
func (s *PostgresStore) InsertOutcome(ctx context.Context, rec *model.OutcomeRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	comps, err := json.Marshal(rec.Components)
	if err != nil {
		return eris.Wrap(err, "postgres: encode outcome components")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO outcomes (id, tenant_id, lead_id, channel, template_key, sequence_key, sequence_pos,
			sent_at, weekday, hour, opened, clicked, replied, meeting, converted, components, tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		rec.ID, rec.TenantID, rec.LeadID, string(rec.Channel), rec.TemplateKey, rec.SequenceKey,
		rec.SequencePos, rec.SentAt, int(rec.Weekday), rec.Hour, rec.Opened, rec.Clicked,
		rec.Replied, rec.Meeting, rec.Converted, comps, string(rec.Tier),
	)
	return eris.Wrap(err, "postgres: insert outcome")
}

// outcomeColumns is the column order for bulk outcome writes.
var outcomeColumns = []string{
	"id", "tenant_id", "lead_id", "channel", "template_key", "sequence_key",
	"sequence_pos", "sent_at", "weekday", "hour", "opened", "clicked",
	"replied", "meeting", "converted", "components", "tier",
}

// InsertOutcomeBatch bulk-writes outcome records over the COPY protocol.
// Event batches routinely run to tens of thousands of rows.
func (s *PostgresStore) InsertOutcomeBatch(ctx context.Context, recs []model.OutcomeRecord) (int64, error) {
	rows := make([][]any, 0, len(recs))
	for i := range recs {
		rec := &recs[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		comps, err := json.Marshal(rec.Components)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: encode outcome components")
		}
		rows = append(rows, []any{
			rec.ID, rec.TenantID, rec.LeadID, string(rec.Channel), rec.TemplateKey,
			rec.SequenceKey, rec.SequencePos, rec.SentAt, int(rec.Weekday), rec.Hour,
			rec.Opened, rec.Clicked, rec.Replied, rec.Meeting, rec.Converted,
			comps, string(rec.Tier),
		})
	}

	return db.CopyRows(ctx, s.pool, "outcomes", outcomeColumns, rows)
}

// ListOutcomes returns a tenant's outcome records sent at or after since,
// oldest first.
func (s *PostgresStore) ListOutcomes(ctx context.Context, tenantID string, since time.Time) ([]model.OutcomeRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, lead_id, channel, template_key, sequence_key, sequence_pos,
			sent_at, weekday, hour, opened, clicked, replied, meeting, converted, components, tier
		FROM outcomes
		WHERE tenant_id = $1 AND sent_at >= $2
		ORDER BY sent_at ASC`,
		tenantID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list outcomes")
	}
	defer rows.Close()

	var out []model.OutcomeRecord
	for rows.Next() {
		var (
			rec     model.OutcomeRecord
			weekday int
			comps   []byte
		)
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.LeadID, &rec.Channel, &rec.TemplateKey,
			&rec.SequenceKey, &rec.SequencePos, &rec.SentAt, &weekday, &rec.Hour,
			&rec.Opened, &rec.Clicked, &rec.Replied, &rec.Meeting, &rec.Converted,
			&comps, &rec.Tier); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome")
		}
		rec.Weekday = time.Weekday(weekday)
		if len(comps) > 0 {
			if err := json.Unmarshal(comps, &rec.Components); err != nil {
				return nil, eris.Wrap(err, "postgres: decode outcome components")
			}
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list outcomes rows")
}

// scanPattern scans one pattern row from either a Row or Rows.
func scanPattern(row pgx.Row) (*model.Pattern, error) {
	var (
		p       model.Pattern
		payload []byte
	)
	if err := row.Scan(&p.ID, &p.TenantID, &p.Kind, &payload, &p.SampleSize,
		&p.Confidence, &p.ValidFrom, &p.ValidUntil, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Payload = json.RawMessage(payload)
	return &p, nil
}

func preparePattern(p *model.Pattern) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.ValidFrom.IsZero() {
		p.ValidFrom = p.CreatedAt
	}
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// scopeColumns maps a (provenance, scope) pair onto the tenant/industry
// columns used for uniqueness.
func scopeColumns(provenance model.Provenance, scope string) (tenant, industry string) {
	switch provenance {
	case model.ProvenanceTenantLearned:
		return scope, ""
	case model.ProvenanceIndustryPlatform:
		return "", scope
	default:
		return "", ""
	}
}
