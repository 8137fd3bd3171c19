// Package main is the entry point for the import watcher. It watches the
// deck tracker's export file and triggers an import whenever it changes,
// with a periodic poll as a fallback for missed filesystem events.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"bg-stats-tracker/internal/config"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	refs := refdata.LoadBundle(cfg.Tracker.HeroesFile, cfg.Tracker.MinionsFile)

	matchRepo := repository.NewMatchRepository(dbPool.Pool)
	syncRepo := repository.NewSyncRepository(dbPool.Pool)

	importer := service.NewImporter(
		matchRepo,
		syncRepo,
		refs,
		cfg.Tracker.SourceFile,
		cfg.Tracker.ReadRetries,
		cfg.Tracker.ReadRetryWait,
	)

	runLock := lock.NewRunLock()

	// Watch the parent directory: the tracker replaces the export file on
	// save, which unregisters a watch placed on the file itself.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create filesystem watcher")
	}
	defer watcher.Close()

	sourceDir := filepath.Dir(cfg.Tracker.SourceFile)
	if err := watcher.Add(sourceDir); err != nil {
		log.Fatal().Err(err).Str("dir", sourceDir).Msg("Failed to watch source directory")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Watcher.PollInterval)
	defer ticker.Stop()

	// settle collapses bursts of write events into one import: each event
	// resets the timer, and only the quiet period after the last write fires.
	settle := time.NewTimer(cfg.Watcher.SettleDelay)
	if !settle.Stop() {
		<-settle.C
	}

	log.Info().
		Str("source", cfg.Tracker.SourceFile).
		Dur("poll_interval", cfg.Watcher.PollInterval).
		Dur("settle_delay", cfg.Watcher.SettleDelay).
		Msg("Watcher is starting...")

	// Import once at startup to pick up anything written while we were down.
	runImport(ctx, importer, runLock)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				log.Error().Msg("Watcher event channel closed")
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(cfg.Tracker.SourceFile) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug().Str("op", event.Op.String()).Msg("Source file changed")
			settle.Reset(cfg.Watcher.SettleDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")

		case <-settle.C:
			runImport(ctx, importer, runLock)

		case <-ticker.C:
			if hasNewData(ctx, matchRepo, cfg.Tracker.SourceFile) {
				runImport(ctx, importer, runLock)
			}

		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			return
		}
	}
}

// hasNewData reports whether the source file was modified after the most
// recent persisted match. Keeps the periodic poll from re-parsing a file
// that cannot contain anything new.
func hasNewData(ctx context.Context, matches *repository.MatchRepository, sourceFile string) bool {
	info, err := os.Stat(sourceFile)
	if err != nil {
		log.Debug().Err(err).Msg("Source file not statable, skipping poll")
		return false
	}
	latest, err := matches.LatestEndTime(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read latest end time, importing anyway")
		return true
	}
	return latest.IsZero() || info.ModTime().After(latest)
}

func runImport(ctx context.Context, importer *service.Importer, runLock *lock.RunLock) {
	err := runLock.WithLock(func() error {
		imported, err := importer.Run(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("imported", imported).Msg("Import finished")
		return nil
	})
	switch {
	case errors.Is(err, lock.ErrRunInProgress):
		log.Debug().Msg("Import already in progress, skipping")
	case errors.Is(err, service.ErrSourceUnavailable):
		log.Warn().Err(err).Msg("Source file unavailable")
	case err != nil:
		log.Error().Err(err).Msg("Import failed")
	}
}
