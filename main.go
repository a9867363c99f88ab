/*
[AI GENERATED - GOVERNANCE PROTOCOL]
──────────────────────────────────────────────────────────────
Model:       Claude Opus 4.6
Tier:        L3
Logic:       Sync engine entry point with graceful shutdown. Wires
             config → logger → store (pool + schema bootstrap) →
             secret provider → remote client → task queue → lookups/
             records writers → discovery/fetch phases → sync status
             store → orchestrator → router → HTTP server, then performs
             graceful shutdown on SIGINT/SIGTERM.
Root Cause:  Entry point wiring config → store → collaborators →
             router → HTTP server with OS signal handling.
Suitability: L3 model for graceful shutdown and system wiring.
──────────────────────────────────────────────────────────────
*/

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/radialgames/salessync/config"
	"github.com/radialgames/salessync/discovery"
	"github.com/radialgames/salessync/fetch"
	"github.com/radialgames/salessync/logger"
	"github.com/radialgames/salessync/lookups"
	"github.com/radialgames/salessync/orchestrator"
	"github.com/radialgames/salessync/records"
	"github.com/radialgames/salessync/remoteclient"
	"github.com/radialgames/salessync/router"
	"github.com/radialgames/salessync/secretprovider"
	"github.com/radialgames/salessync/store"
	"github.com/radialgames/salessync/syncstatus"
	"github.com/radialgames/salessync/taskqueue"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("sales sync engine starting")

	if cfg.IsProduction() {
		if err := secretprovider.RequireKeyInProduction(cfg.EncryptionKey); err != nil {
			log.Fatal().Err(err).Msg("refusing to start in production without ENCRYPTION_KEY")
		}
	}
	secrets, err := secretprovider.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("secret provider init failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := store.Open(ctx, store.Config{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DBMaxConns,
		AcquireTimeout: cfg.DBAcquireTimeout,
	})
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureSchema(schemaCtx); err != nil {
		schemaCancel()
		log.Fatal().Err(err).Msg("schema bootstrap failed")
	}
	schemaCancel()
	log.Info().Msg("database connected and schema ensured")

	remote := remoteclient.New(remoteclient.Config{
		BaseURL:        cfg.RemoteBaseURL,
		UserAgent:      cfg.RemoteUserAgent,
		AttemptTimeout: cfg.RemoteAttemptTimeout,
		MaxRetries:     cfg.RemoteMaxRetries,
	})

	queue := taskqueue.New(db)
	upserter := lookups.New(db)
	writer := records.New(db, cfg.RecordBatchSize)
	disc := discovery.New(db, remote, queue, writer)
	ft := fetch.New(remote, queue, upserter, writer, cfg.TaskBatchSize, cfg.ConcurrentTasks)

	status := syncstatus.New(log, cfg.RedisURL, cfg.SyncStatusTTL)
	orch := orchestrator.New(db, secrets, queue, disc, ft, status, log)

	// Optional stale in_progress sweeper — off by default.
	sweepDone := make(chan struct{})
	if cfg.StaleSweepEnabled {
		go runStaleSweeper(queue, log, cfg, sweepDone)
	}

	r := router.NewRouter(cfg, log, db, secrets, queue, orch)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.AdminRequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("sync engine listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	if cfg.StaleSweepEnabled {
		close(sweepDone)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("sync engine stopped gracefully")
	}

	db.Close()
}

// runStaleSweeper periodically resets in_progress tasks abandoned by a
// worker that crashed without marking them failed. Both the sweep
// interval and the age threshold are StaleSweepMultiplier times the
// attempt timeout; a task still running after that long is reset too.
func runStaleSweeper(queue *taskqueue.Queue, log zerolog.Logger, cfg *config.Config, done chan struct{}) {
	maxAge := time.Duration(cfg.StaleSweepMultiplier) * cfg.RemoteAttemptTimeout
	ticker := time.NewTicker(maxAge)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := queue.SweepStale(ctx, maxAge)
			cancel()
			if err != nil {
				log.Warn().Err(err).Msg("stale task sweep failed")
				continue
			}
			if n > 0 {
				log.Warn().Int("count", n).Msg("reset stale in_progress tasks back to pending")
			}
		case <-done:
			return
		}
	}
}
