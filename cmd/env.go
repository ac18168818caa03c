package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/alloc"
	"github.com/sells-group/outreach-engine/internal/learner"
	"github.com/sells-group/outreach-engine/internal/ledger"
	"github.com/sells-group/outreach-engine/internal/patterns"
	"github.com/sells-group/outreach-engine/internal/scoring"
	"github.com/sells-group/outreach-engine/internal/signals"
	"github.com/sells-group/outreach-engine/internal/store"
	"github.com/sells-group/outreach-engine/pkg/dnc"
	"github.com/sells-group/outreach-engine/pkg/domainrank"
)

// env bundles the wired components behind every command.
type env struct {
	Store    store.Store
	Signals  *signals.Cache
	Scorer   *scoring.Engine
	Ledger   *ledger.Ledger
	Patterns *patterns.Cache
	Alloc    *alloc.Engine
	Learner  *learner.Learner
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "outreach.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv wires the full component stack. Commands that only touch the
// store should use initStore directly.
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	var provider signals.Provider
	if cfg.Enrich.Key != "" {
		provider = domainrank.NewClient(cfg.Enrich.Key,
			domainrank.WithBaseURL(cfg.Enrich.BaseURL),
			domainrank.WithRateLimit(cfg.Enrich.RatePerSec),
			domainrank.WithMaxRetries(cfg.Enrich.MaxRetries),
		)
	}

	sc, err := signals.New(st, provider, cfg.Signals)
	if err != nil {
		st.Close()
		return nil, err
	}

	scorer, err := scoring.NewEngine(st, sc, cfg.Scoring)
	if err != nil {
		sc.Close()
		st.Close()
		return nil, err
	}

	var compliance alloc.ComplianceChecker
	if cfg.Compliance.Key != "" {
		compliance = dnc.NewClient(cfg.Compliance.Key,
			dnc.WithBaseURL(cfg.Compliance.BaseURL),
			dnc.WithMaxRetries(cfg.Compliance.MaxRetries),
		)
	}

	ld := ledger.New(st)
	pc := patterns.NewCache(st, 5*time.Minute)

	return &env{
		Store:    st,
		Signals:  sc,
		Scorer:   scorer,
		Ledger:   ld,
		Patterns: pc,
		Alloc:    alloc.NewEngine(ld, pc, compliance, cfg.Allocation),
		Learner:  learner.New(st, pc, cfg.Learner),
	}, nil
}

// Close releases everything initEnv opened.
func (e *env) Close() {
	if e.Signals != nil {
		e.Signals.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}
