package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local
// development and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id            TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	data          TEXT NOT NULL,
	score         INTEGER NOT NULL DEFAULT 0,
	tier          TEXT NOT NULL DEFAULT 'dead',
	components    TEXT,
	weight_set_id TEXT,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS weight_sets (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	tenant_id   TEXT NOT NULL DEFAULT '',
	industry    TEXT NOT NULL DEFAULT '',
	provenance  TEXT NOT NULL,
	weights     TEXT NOT NULL,
	confidence  REAL NOT NULL,
	sample_size INTEGER NOT NULL,
	active      INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS patterns (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	kind        TEXT NOT NULL,
	payload     TEXT NOT NULL,
	sample_size INTEGER NOT NULL,
	confidence  REAL NOT NULL,
	valid_from  DATETIME NOT NULL,
	valid_until DATETIME NOT NULL,
	active      INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS resources (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	channel     TEXT NOT NULL,
	identity    TEXT NOT NULL,
	daily_limit INTEGER NOT NULL,
	used_today  INTEGER NOT NULL DEFAULT 0,
	usage_day   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'active',
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS signal_cache (
	signal_type TEXT NOT NULL,
	domain      TEXT NOT NULL,
	data        TEXT NOT NULL,
	fetched_at  DATETIME NOT NULL,
	expires_at  DATETIME NOT NULL,
	PRIMARY KEY (signal_type, domain)
);

CREATE TABLE IF NOT EXISTS outcomes (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	lead_id      TEXT NOT NULL,
	channel      TEXT NOT NULL,
	template_key TEXT NOT NULL DEFAULT '',
	sequence_key TEXT NOT NULL DEFAULT '',
	sequence_pos INTEGER NOT NULL DEFAULT 0,
	sent_at      DATETIME NOT NULL,
	weekday      INTEGER NOT NULL,
	hour         INTEGER NOT NULL,
	opened       INTEGER NOT NULL DEFAULT 0,
	clicked      INTEGER NOT NULL DEFAULT 0,
	replied      INTEGER NOT NULL DEFAULT 0,
	meeting      INTEGER NOT NULL DEFAULT 0,
	converted    INTEGER NOT NULL DEFAULT 0,
	components   TEXT,
	tier         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_leads_tenant ON leads(tenant_id);
CREATE INDEX IF NOT EXISTS idx_weight_sets_scope ON weight_sets(provenance, tenant_id, industry, active);
CREATE INDEX IF NOT EXISTS idx_patterns_active ON patterns(tenant_id, kind, active);
CREATE INDEX IF NOT EXISTS idx_resources_tenant_channel ON resources(tenant_id, channel);
CREATE INDEX IF NOT EXISTS idx_outcomes_tenant_sent ON outcomes(tenant_id, sent_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	var (
		data        string
		score       int
		tier        string
		components  sql.NullString
		weightSetID sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, score, tier, components, weight_set_id FROM leads WHERE id = ?`, id,
	).Scan(&data, &score, &tier, &components, &weightSetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get lead")
	}

	var lead model.Lead
	if err := json.Unmarshal([]byte(data), &lead); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode lead")
	}
	lead.Score = score
	lead.Tier = model.Tier(tier)
	if components.Valid && components.String != "" {
		if err := json.Unmarshal([]byte(components.String), &lead.Components); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode components")
		}
	}
	lead.WeightSetID = weightSetID.String
	return &lead, nil
}

const sqliteUpsertLeadSQL = `
	INSERT INTO leads (id, tenant_id, data, score, tier, components, weight_set_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		tenant_id = excluded.tenant_id,
		data = excluded.data,
		score = excluded.score,
		tier = excluded.tier,
		components = excluded.components,
		weight_set_id = excluded.weight_set_id,
		updated_at = excluded.updated_at`

func (s *SQLiteStore) UpsertLead(ctx context.Context, lead *model.Lead) error {
	args, err := sqliteLeadArgs(lead)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteUpsertLeadSQL, args...)
	return eris.Wrap(err, "sqlite: upsert lead")
}

// UpsertLeadBatch writes all leads in one transaction. SQLite has no COPY
// protocol; a single transaction is the bulk path here.
func (s *SQLiteStore) UpsertLeadBatch(ctx context.Context, leads []*model.Lead) (int64, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin lead batch")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, lead := range leads {
		args, err := sqliteLeadArgs(lead)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, sqliteUpsertLeadSQL, args...); err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert lead batch")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit lead batch")
	}
	return int64(len(leads)), nil
}

func sqliteLeadArgs(lead *model.Lead) ([]any, error) {
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
		return nil, eris.Wrap(err, "sqlite: encode lead")
	}
	components, err := json.Marshal(lead.Components)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: encode components")
	}
	return []any{
		lead.ID, lead.TenantID, string(data), lead.Score, string(lead.Tier),
		string(components), lead.WeightSetID, lead.CreatedAt, lead.UpdatedAt,
	}, nil
}

func (s *SQLiteStore) SaveScore(ctx context.Context, leadID string, score int, tier model.Tier, components model.ComponentScores, weightSetID string) error {
	comps, err := json.Marshal(components)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode components")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE leads SET score = ?, tier = ?, components = ?, weight_set_id = ?, updated_at = ?
		WHERE id = ?`,
		score, string(tier), string(comps), weightSetID, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: save score")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: save score rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ActiveWeightSet(ctx context.Context, provenance model.Provenance, scope string) (*model.WeightSet, error) {
	tenant, industry := scopeColumns(provenance, scope)
	var (
		ws      model.WeightSet
		weights string
		active  int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, tenant_id, industry, provenance, weights, confidence, sample_size, active, created_at
		FROM weight_sets
		WHERE provenance = ? AND tenant_id = ? AND industry = ? AND active = 1
		ORDER BY created_at DESC LIMIT 1`,
		string(provenance), tenant, industry,
	).Scan(&ws.ID, &ws.Name, &ws.TenantID, &ws.Industry, &ws.Provenance, &weights,
		&ws.Confidence, &ws.SampleSize, &active, &ws.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active weight set")
	}
	ws.Active = active == 1
	if err := json.Unmarshal([]byte(weights), &ws.Weights); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode weights")
	}
	return &ws, nil
}

func (s *SQLiteStore) PromoteWeightSet(ctx context.Context, ws *model.WeightSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin promote weight set")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := sqlitePromoteWeightSetTx(ctx, tx, ws); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit promote weight set")
}

func (s *SQLiteStore) PromoteWeightSetAndPattern(ctx context.Context, ws *model.WeightSet, p *model.Pattern) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin promote weights and pattern")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := sqlitePromoteWeightSetTx(ctx, tx, ws); err != nil {
		return err
	}
	if err := sqlitePromotePatternTx(ctx, tx, p); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit promote weights and pattern")
}

func sqlitePromoteWeightSetTx(ctx context.Context, tx *sql.Tx, ws *model.WeightSet) error {
	if ws.ID == "" {
		ws.ID = uuid.NewString()
	}
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now().UTC()
	}
	ws.Active = true

	weights, err := json.Marshal(ws.Weights)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode weights")
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE weight_sets SET active = 0
		WHERE provenance = ? AND tenant_id = ? AND industry = ? AND active = 1`,
		string(ws.Provenance), ws.TenantID, ws.Industry,
	); err != nil {
		return eris.Wrap(err, "sqlite: retire weight set")
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO weight_sets (id, name, tenant_id, industry, provenance, weights, confidence, sample_size, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		ws.ID, ws.Name, ws.TenantID, ws.Industry, string(ws.Provenance), string(weights),
		ws.Confidence, ws.SampleSize, ws.CreatedAt,
	); err != nil {
		return eris.Wrap(err, "sqlite: insert weight set")
	}
	return nil
}

const sqlitePatternCols = `id, tenant_id, kind, payload, sample_size, confidence, valid_from, valid_until, active, created_at`

func (s *SQLiteStore) ActivePattern(ctx context.Context, tenantID string, kind model.PatternKind) (*model.Pattern, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqlitePatternCols+` FROM patterns
		WHERE tenant_id = ? AND kind = ? AND active = 1
		ORDER BY created_at DESC LIMIT 1`,
		tenantID, string(kind),
	)
	p, err := scanSQLitePattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active pattern")
	}
	return p, nil
}

func (s *SQLiteStore) ActivePatterns(ctx context.Context, tenantID string) ([]model.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqlitePatternCols+` FROM patterns
		WHERE tenant_id = ? AND active = 1`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active patterns")
	}
	defer rows.Close()

	var out []model.Pattern
	for rows.Next() {
		p, err := scanSQLitePattern(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pattern")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: active patterns rows")
}

func (s *SQLiteStore) InsertPattern(ctx context.Context, p *model.Pattern) error {
	preparePattern(p)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns (`+sqlitePatternCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TenantID, string(p.Kind), string(p.Payload), p.SampleSize,
		p.Confidence, p.ValidFrom, p.ValidUntil, boolToInt(p.Active), p.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert pattern")
}

func (s *SQLiteStore) PromotePattern(ctx context.Context, p *model.Pattern) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin promote pattern")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := sqlitePromotePatternTx(ctx, tx, p); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit promote pattern")
}

func sqlitePromotePatternTx(ctx context.Context, tx *sql.Tx, p *model.Pattern) error {
	preparePattern(p)
	p.Active = true

	if _, err := tx.ExecContext(ctx, `
		UPDATE patterns SET active = 0 WHERE tenant_id = ? AND kind = ? AND active = 1`,
		p.TenantID, string(p.Kind),
	); err != nil {
		return eris.Wrap(err, "sqlite: retire pattern")
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO patterns (`+sqlitePatternCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		p.ID, p.TenantID, string(p.Kind), string(p.Payload), p.SampleSize,
		p.Confidence, p.ValidFrom, p.ValidUntil, p.CreatedAt,
	); err != nil {
		return eris.Wrap(err, "sqlite: insert pattern")
	}
	return nil
}

func (s *SQLiteStore) ListResources(ctx context.Context, tenantID string, channel model.Channel) ([]model.Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, channel, identity, daily_limit, used_today, usage_day, status, created_at
		FROM resources
		WHERE tenant_id = ? AND channel = ?
		ORDER BY used_today ASC, id ASC`,
		tenantID, string(channel),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list resources")
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		var r model.Resource
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Channel, &r.Identity, &r.DailyLimit,
			&r.UsedToday, &r.UsageDay, &r.Status, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan resource")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list resources rows")
}

func (s *SQLiteStore) UpsertResource(ctx context.Context, r *model.Resource) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (id, tenant_id, channel, identity, daily_limit, used_today, usage_day, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			identity = excluded.identity,
			daily_limit = excluded.daily_limit,
			status = excluded.status`,
		r.ID, r.TenantID, string(r.Channel), r.Identity, r.DailyLimit,
		r.UsedToday, r.UsageDay, string(r.Status), r.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert resource")
}

func (s *SQLiteStore) AcquireResourceSlot(ctx context.Context, resourceID string, day string) (int, error) {
	var used int
	err := s.db.QueryRowContext(ctx, `
		UPDATE resources SET
			used_today = CASE WHEN usage_day = ?1 THEN used_today + 1 ELSE 1 END,
			usage_day  = ?1
		WHERE id = ?2
		  AND status = 'active'
		  AND daily_limit >= 1
		  AND (usage_day <> ?1 OR used_today < daily_limit)
		RETURNING used_today`,
		day, resourceID,
	).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrLimitReached
	}
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: acquire slot")
	}
	return used, nil
}

func (s *SQLiteStore) GetSignal(ctx context.Context, sigType model.SignalType, domain string) (*model.DomainSignal, error) {
	var (
		data      string
		fetchedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, fetched_at FROM signal_cache WHERE signal_type = ? AND domain = ? AND expires_at > ?`,
		string(sigType), domain, time.Now().UTC(),
	).Scan(&data, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get signal")
	}

	var sig model.DomainSignal
	if err := json.Unmarshal([]byte(data), &sig); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode signal")
	}
	sig.FetchedAt = fetchedAt
	return &sig, nil
}

func (s *SQLiteStore) PutSignal(ctx context.Context, sigType model.SignalType, sig *model.DomainSignal, ttl time.Duration) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode signal")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO signal_cache (signal_type, domain, data, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (signal_type, domain) DO UPDATE SET
			data = excluded.data,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at`,
		string(sigType), sig.Domain, string(data), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: put signal")
}

const sqliteInsertOutcomeSQL = `
	INSERT INTO outcomes (id, tenant_id, lead_id, channel, template_key, sequence_key, sequence_pos,
		sent_at, weekday, hour, opened, clicked, replied, meeting, converted, components, tier)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) InsertOutcome(ctx context.Context, rec *model.OutcomeRecord) error {
	args, err := sqliteOutcomeArgs(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteInsertOutcomeSQL, args...)
	return eris.Wrap(err, "sqlite: insert outcome")
}

// InsertOutcomeBatch writes all records in one transaction.
func (s *SQLiteStore) InsertOutcomeBatch(ctx context.Context, recs []model.OutcomeRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin outcome batch")
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range recs {
		args, err := sqliteOutcomeArgs(&recs[i])
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, sqliteInsertOutcomeSQL, args...); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert outcome batch")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit outcome batch")
	}
	return int64(len(recs)), nil
}

func sqliteOutcomeArgs(rec *model.OutcomeRecord) ([]any, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	comps, err := json.Marshal(rec.Components)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: encode outcome components")
	}
	return []any{
		rec.ID, rec.TenantID, rec.LeadID, string(rec.Channel), rec.TemplateKey, rec.SequenceKey,
		rec.SequencePos, rec.SentAt, int(rec.Weekday), rec.Hour, boolToInt(rec.Opened),
		boolToInt(rec.Clicked), boolToInt(rec.Replied), boolToInt(rec.Meeting),
		boolToInt(rec.Converted), string(comps), string(rec.Tier),
	}, nil
}

func (s *SQLiteStore) ListOutcomes(ctx context.Context, tenantID string, since time.Time) ([]model.OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, lead_id, channel, template_key, sequence_key, sequence_pos,
			sent_at, weekday, hour, opened, clicked, replied, meeting, converted, components, tier
		FROM outcomes
		WHERE tenant_id = ? AND sent_at >= ?
		ORDER BY sent_at ASC`,
		tenantID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list outcomes")
	}
	defer rows.Close()

	var out []model.OutcomeRecord
	for rows.Next() {
		var (
			rec                                       model.OutcomeRecord
			weekday                                   int
			opened, clicked, replied, meeting, convtd int
			comps                                     sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.LeadID, &rec.Channel, &rec.TemplateKey,
			&rec.SequenceKey, &rec.SequencePos, &rec.SentAt, &weekday, &rec.Hour,
			&opened, &clicked, &replied, &meeting, &convtd, &comps, &rec.Tier); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		rec.Weekday = time.Weekday(weekday)
		rec.Opened = opened == 1
		rec.Clicked = clicked == 1
		rec.Replied = replied == 1
		rec.Meeting = meeting == 1
		rec.Converted = convtd == 1
		if comps.Valid && comps.String != "" {
			if err := json.Unmarshal([]byte(comps.String), &rec.Components); err != nil {
				return nil, eris.Wrap(err, "sqlite: decode outcome components")
			}
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list outcomes rows")
}

// rowScanner matches both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePattern(row rowScanner) (*model.Pattern, error) {
	var (
		p       model.Pattern
		payload string
		active  int
	)
	if err := row.Scan(&p.ID, &p.TenantID, &p.Kind, &payload, &p.SampleSize,
		&p.Confidence, &p.ValidFrom, &p.ValidUntil, &active, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Payload = json.RawMessage(payload)
	p.Active = active == 1
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
