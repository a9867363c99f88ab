/*
[AI GENERATED - GOVERNANCE PROTOCOL]
──────────────────────────────────────────────────────────────
Model:       Claude Opus 4.6
Tier:        L3
Logic:       Admin HTTP router with middleware chain: CORS → security
             headers → request ID → panic recovery → request logger →
             body size limit → admin-token auth. Routes: /api/keys,
             /api/sync/*, /api/health.
Root Cause:  A single operator-facing surface for credential management
             and sync control, with no per-provider routing concerns.
Context:     Router design affects all downstream handlers.
Suitability: L3 model for middleware chain design.
──────────────────────────────────────────────────────────────
*/

package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/radialgames/salessync/config"
	"github.com/radialgames/salessync/handler"
	syncmw "github.com/radialgames/salessync/middleware"
	"github.com/radialgames/salessync/orchestrator"
	"github.com/radialgames/salessync/secretprovider"
	"github.com/radialgames/salessync/store"
	"github.com/radialgames/salessync/taskqueue"
)

// NewRouter returns a configured chi Router with the full middleware
// chain and every admin route mounted.
func NewRouter(cfg *config.Config, appLogger zerolog.Logger, db *store.Store, secrets *secretprovider.Provider, queue *taskqueue.Queue, orch *orchestrator.Orchestrator) http.Handler {
	r := chi.NewRouter()

	// --- Middleware chain (order matters) ---
	// 1. CORS — must be first so preflight responses succeed.
	r.Use(syncmw.CORSMiddleware([]string{"*"}))

	// 2. Security headers.
	r.Use(syncmw.SecurityHeadersMiddleware)

	// 3. Request ID injection.
	r.Use(syncmw.RequestIDMiddleware)

	// 4. Panic recovery.
	r.Use(chimw.Recoverer)

	// 5. Request logger.
	r.Use(mwRequestLogger(appLogger))

	// 6. Body size limit.
	r.Use(mwMaxBodySize(cfg.AdminMaxBodyBytes))

	// --- Health endpoint (no auth required) ---
	healthHandler := handler.NewHealthHandler(db)
	r.Get("/api/health", healthHandler.Check)

	// --- Admin API (token auth + timeout + rate limit on the hot route) ---
	authMW := syncmw.NewAuthMiddleware(appLogger, cfg.AdminToken)
	timeoutMW := syncmw.NewTimeoutMiddleware(appLogger, cfg.AdminRequestTimeout)
	startLimiter := syncmw.NewRateLimiter(appLogger, true, 6, 2)

	keysHandler := handler.NewKeysHandler(appLogger, db, secrets, queue)
	syncHandler := handler.NewSyncHandler(appLogger, db, queue, orch)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMW.Handler)
		r.Use(timeoutMW.Handler)

		r.Route("/keys", func(r chi.Router) {
			r.Get("/", keysHandler.List)
			r.Post("/", keysHandler.Create)
			r.Put("/{id}", keysHandler.Rename)
			r.Delete("/{id}", keysHandler.Delete)
			r.Get("/{id}/stats", keysHandler.Stats)
		})

		r.Route("/sync", func(r chi.Router) {
			r.With(startLimiter.Handler).Post("/start", syncHandler.Start)
			r.Get("/status/{syncId}", syncHandler.Status)
			r.Post("/pause/{syncId}", syncHandler.Pause)
			r.Post("/resume/{syncId}", syncHandler.Resume)
			r.Get("/tasks", syncHandler.TaskCounts)
			r.Get("/tasks/{apiKeyId}", syncHandler.TaskCountsForCredential)
			r.Get("/failed", syncHandler.Failed)
			r.Post("/retry/{apiKeyId}", syncHandler.Retry)
		})
	})

	return r
}

// mwMaxBodySize returns middleware that limits the request body size.
func mwMaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 1 * 1024 * 1024 // default 1MB
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > 0 && r.ContentLength > maxBytes {
				http.Error(w, `{"error":"request_too_large","message":"request body too large"}`, http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func mwRequestLogger(appLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			dur := time.Since(start)
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", r.Header.Get("X-Request-ID")).
				Int("status", rw.Status()).
				Dur("duration", dur).
				Msg("request completed")
		})
	}
}
