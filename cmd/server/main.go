// Package main is the entry point for the battlegrounds stats API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"bg-stats-tracker/internal/config"
	"bg-stats-tracker/internal/handler"
	"bg-stats-tracker/internal/pkg/db"
	"bg-stats-tracker/internal/pkg/lock"
	"bg-stats-tracker/internal/refdata"
	"bg-stats-tracker/internal/repository"
	"bg-stats-tracker/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Load hero and minion reference tables. Missing or unreadable tables
	// degrade to empty lookups rather than blocking imports.
	refs := refdata.LoadBundle(cfg.Tracker.HeroesFile, cfg.Tracker.MinionsFile)

	// Initialize repositories
	matchRepo := repository.NewMatchRepository(dbPool.Pool)
	syncRepo := repository.NewSyncRepository(dbPool.Pool)

	// Initialize services
	importer := service.NewImporter(
		matchRepo,
		syncRepo,
		refs,
		cfg.Tracker.SourceFile,
		cfg.Tracker.ReadRetries,
		cfg.Tracker.ReadRetryWait,
	)
	statsService := service.NewStatsService(matchRepo)

	// Initialize run lock shared between HTTP-triggered and watcher imports
	runLock := lock.NewRunLock()

	handlers := &handler.Handlers{
		Stats:    statsService,
		Importer: importer,
		Matches:  matchRepo,
		Sync:     syncRepo,
		RunLock:  runLock,
		DB:       dbPool,
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: handlers.Router(),
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server is starting...")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create bg_matches table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bg_matches (
			id BIGSERIAL PRIMARY KEY,
			player_id TEXT NOT NULL,
			hero_id TEXT NOT NULL,
			hero_name TEXT NOT NULL DEFAULT '',
			hero_image TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ,
			placement INT,
			rating INT NOT NULL DEFAULT 0,
			rating_after INT NOT NULL DEFAULT 0,
			rating_delta INT NOT NULL DEFAULT 0,
			duration_min DOUBLE PRECISION,
			game_result VARCHAR(10) NOT NULL DEFAULT 'unknown',
			board JSONB,
			minion_count INT NOT NULL DEFAULT 0,
			minion_names TEXT NOT NULL DEFAULT '',
			minion_types TEXT NOT NULL DEFAULT '',
			minion_images TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT bg_matches_player_start_key UNIQUE (player_id, start_time)
		);
		CREATE INDEX IF NOT EXISTS idx_bg_matches_start_time ON bg_matches(start_time DESC);
		CREATE INDEX IF NOT EXISTS idx_bg_matches_hero_name ON bg_matches(hero_name);
		CREATE INDEX IF NOT EXISTS idx_bg_matches_minion_types ON bg_matches(minion_types);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: bg_matches table created")

	// Migration 2: Create import_log table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS import_log (
			id BIGSERIAL PRIMARY KEY,
			matches_imported INT NOT NULL,
			status VARCHAR(20) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_import_log_created ON import_log(created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: import_log table created")

	// Migration 3: Create sync_status singleton table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sync_status (
			id SMALLINT PRIMARY KEY CHECK (id = 1),
			last_import_time TIMESTAMPTZ NOT NULL,
			last_status VARCHAR(20) NOT NULL
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: sync_status table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
