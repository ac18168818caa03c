package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           apiRouter(e),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("api listening", zap.Int("port", port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default: config server.port)")
	rootCmd.AddCommand(serveCmd)
}

func apiRouter(e *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/leads", handleUpsertLead(e))
		r.Get("/leads/{leadID}", handleGetLead(e))
		r.Post("/leads/{leadID}/score", handleScoreLead(e))
		r.Post("/score/batch", handleScoreBatch(e))
		r.Post("/leads/{leadID}/allocate", handleAllocate(e))
		r.Post("/outcomes", handleRecordOutcome(e))
		r.Post("/tenants/{tenantID}/learn", handleLearn(e))
		r.Get("/tenants/{tenantID}/patterns", handleListPatterns(e))
	})

	return r
}

func handleUpsertLead(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var lead model.Lead
		if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if lead.TenantID == "" {
			writeError(w, http.StatusBadRequest, "tenant_id is required")
			return
		}
		lead.Domain = model.NormalizeDomain(lead.Domain)

		if err := e.Store.UpsertLead(r.Context(), &lead); err != nil {
			zap.L().Error("api: upsert lead failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "upsert failed")
			return
		}
		writeJSON(w, http.StatusOK, &lead)
	}
}

func handleGetLead(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lead, err := e.Store.GetLead(r.Context(), chi.URLParam(r, "leadID"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		if err != nil {
			zap.L().Error("api: get lead failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, lead)
	}
}

func handleScoreLead(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := e.Scorer.ScoreLead(r.Context(), chi.URLParam(r, "leadID"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		if err != nil {
			zap.L().Error("api: score failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "scoring failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleScoreBatch(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			LeadIDs []string `json:"lead_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.LeadIDs) == 0 {
			writeError(w, http.StatusBadRequest, "lead_ids is required")
			return
		}

		results, err := e.Scorer.ScoreBatch(r.Context(), req.LeadIDs)
		if err != nil {
			zap.L().Error("api: batch score failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "scoring failed")
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func handleAllocate(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lead, err := e.Store.GetLead(r.Context(), chi.URLParam(r, "leadID"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		if err != nil {
			zap.L().Error("api: get lead failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}

		decision, err := e.Alloc.Allocate(r.Context(), lead)
		if err != nil {
			zap.L().Error("api: allocate failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "allocation failed")
			return
		}
		writeJSON(w, http.StatusOK, decision)
	}
}

func handleRecordOutcome(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec model.OutcomeRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if rec.TenantID == "" || rec.LeadID == "" || rec.Channel == "" {
			writeError(w, http.StatusBadRequest, "tenant_id, lead_id, and channel are required")
			return
		}
		if rec.SentAt.IsZero() {
			rec.SentAt = time.Now().UTC()
		}
		rec.Weekday = rec.SentAt.UTC().Weekday()
		rec.Hour = rec.SentAt.UTC().Hour()

		if err := e.Store.InsertOutcome(r.Context(), &rec); err != nil {
			zap.L().Error("api: record outcome failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "insert failed")
			return
		}
		writeJSON(w, http.StatusCreated, &rec)
	}
}

func handleLearn(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		results, err := e.Learner.LearnAll(r.Context(), tenantID)
		if err != nil {
			zap.L().Error("api: learn failed",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "learn failed")
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func handleListPatterns(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patternsList, err := e.Store.ActivePatterns(r.Context(), chi.URLParam(r, "tenantID"))
		if err != nil {
			zap.L().Error("api: list patterns failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, patternsList)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
