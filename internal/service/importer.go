// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"bg-stats-tracker/internal/hdt"
	"bg-stats-tracker/internal/model"
	"bg-stats-tracker/internal/refdata"
	"bg-stats-tracker/internal/repository"
)

// Common errors for import operations.
var (
	// ErrSourceUnavailable means the deck-tracker export file is missing.
	// Fatal to the individual run, never to the process.
	ErrSourceUnavailable = errors.New("source file unavailable")
)

// reanalysisTolerance is the window for matching a persisted row back to its
// source element by start time. The exporter occasionally rewrites
// timestamps with second-level jitter.
const reanalysisTolerance = 10 * time.Second

// Importer orchestrates one full import run: parse the source export, enrich
// each record against the reference snapshot, persist with deduplication,
// and record the run's outcome.
//
// It does not decide when to run; that belongs to its callers (watcher,
// timer, manual trigger).
type Importer struct {
	matches *repository.MatchRepository
	sync    *repository.SyncRepository
	refs    *refdata.Bundle

	sourceFile    string
	readRetries   int
	readRetryWait time.Duration
}

// NewImporter creates a new Importer instance. refs is the immutable
// reference snapshot loaded at startup and shared by every run.
func NewImporter(
	matches *repository.MatchRepository,
	syncRepo *repository.SyncRepository,
	refs *refdata.Bundle,
	sourceFile string,
	readRetries int,
	readRetryWait time.Duration,
) *Importer {
	if readRetries <= 0 {
		readRetries = 3
	}
	if readRetryWait <= 0 {
		readRetryWait = 500 * time.Millisecond
	}
	return &Importer{
		matches:       matches,
		sync:          syncRepo,
		refs:          refs,
		sourceFile:    sourceFile,
		readRetries:   readRetries,
		readRetryWait: readRetryWait,
	}
}

// Run executes one import pass and returns the count of newly persisted
// matches. A missing source file or a document-level parse error finalizes
// the run as ERROR with zero imports; per-record failures are skipped with a
// diagnostic and do not abort the run.
func (s *Importer) Run(ctx context.Context) (int, error) {
	data, err := os.ReadFile(s.sourceFile)
	if err != nil {
		log.Error().Err(err).Str("file", s.sourceFile).Msg("Source file unavailable")
		s.finalize(ctx, 0, model.StatusError)
		return 0, fmt.Errorf("%w: %s", ErrSourceUnavailable, s.sourceFile)
	}

	records, err := hdt.ParseGames(data)
	if err != nil {
		log.Error().Err(err).Str("file", s.sourceFile).Msg("Source document malformed")
		s.finalize(ctx, 0, model.StatusError)
		return 0, err
	}

	imported := 0
	for _, raw := range records {
		// Dedupe pre-check; the store constraint remains the guarantee.
		exists, err := s.matches.Exists(ctx, raw.PlayerID, raw.StartTime)
		if err != nil {
			log.Warn().Err(err).
				Str("player", raw.PlayerID).
				Time("start_time", raw.StartTime).
				Msg("Skipping record, existence check failed")
			continue
		}
		if exists {
			continue
		}

		match := hdt.Enrich(raw, s.refs)
		inserted, err := s.matches.Insert(ctx, &match)
		if err != nil {
			log.Warn().Err(err).
				Str("player", raw.PlayerID).
				Time("start_time", raw.StartTime).
				Msg("Skipping record, insert failed")
			continue
		}
		if !inserted {
			// Lost the race against a concurrent writer; same as a duplicate.
			continue
		}

		imported++
		log.Debug().
			Str("hero", match.HeroName).
			Interface("placement", match.Placement).
			Int("rating_delta", match.RatingDelta).
			Msg("Match imported")
	}

	status := model.StatusNoNewMatches
	if imported > 0 {
		status = model.StatusOK
	}
	s.finalize(ctx, imported, status)

	log.Info().Int("imported", imported).Str("status", status).Msg("Import run finished")
	return imported, nil
}

// finalize records the run outcome. Audit write failures are logged and
// swallowed: they must not mask the outcome of the match inserts themselves.
func (s *Importer) finalize(ctx context.Context, imported int, status string) {
	if err := s.sync.RecordImport(ctx, imported, status); err != nil {
		log.Error().Err(err).
			Int("imported", imported).
			Str("status", status).
			Msg("Failed to record import outcome")
	}
}

// Reanalyze re-derives enrichment for persisted rows that are incomplete
// (placement null or zero, unknown outcome, or an empty board), matching each
// row back to its source element by player and start time within a small
// tolerance. Complete rows are never touched. Returns the number of rows
// updated.
func (s *Importer) Reanalyze(ctx context.Context) (int, error) {
	records, err := s.readSourceWithRetry(ctx)
	if err != nil {
		return 0, err
	}

	incomplete, err := s.matches.ListIncomplete(ctx)
	if err != nil {
		return 0, err
	}
	if len(incomplete) == 0 {
		log.Info().Msg("No incomplete matches to reanalyze")
		return 0, nil
	}

	fixed := 0
	for _, m := range incomplete {
		raw, ok := findSourceRecord(records, m.PlayerID, m.StartTime)
		if !ok {
			log.Warn().
				Str("hero", m.HeroName).
				Time("start_time", m.StartTime).
				Msg("No source record found for incomplete match")
			continue
		}

		updated := hdt.Enrich(raw, s.refs)
		if updated.Incomplete() {
			// Source record still lacks the data; rewriting changes nothing.
			log.Debug().
				Str("player", m.PlayerID).
				Time("start_time", m.StartTime).
				Msg("Source record still incomplete, leaving row as is")
			continue
		}
		if err := s.matches.UpdateEnrichment(ctx, m.ID, &updated); err != nil {
			log.Warn().Err(err).Int64("id", m.ID).Msg("Failed to update match during reanalysis")
			continue
		}

		fixed++
		log.Info().
			Str("hero", updated.HeroName).
			Interface("placement", updated.Placement).
			Int("minions", updated.MinionCount).
			Msg("Match reanalyzed")
	}

	log.Info().Int("fixed", fixed).Int("incomplete", len(incomplete)).Msg("Reanalysis finished")
	return fixed, nil
}

// readSourceWithRetry reads and parses the source file, retrying a bounded
// number of times with a fixed delay. The exporter rewrites the whole file on
// each game, so a reanalysis triggered off a change event can observe a
// partial write.
func (s *Importer) readSourceWithRetry(ctx context.Context) ([]model.RawMatch, error) {
	var lastErr error
	for attempt := 0; attempt < s.readRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.readRetryWait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, err := os.ReadFile(s.sourceFile)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, s.sourceFile)
			}
			lastErr = err
			continue
		}

		records, err := hdt.ParseGames(data)
		if err != nil {
			lastErr = err
			continue
		}
		return records, nil
	}

	return nil, fmt.Errorf("source not readable after %d attempts: %w", s.readRetries, lastErr)
}

func findSourceRecord(records []model.RawMatch, playerID string, start time.Time) (model.RawMatch, bool) {
	for _, r := range records {
		if r.PlayerID != playerID {
			continue
		}
		delta := r.StartTime.Sub(start)
		if delta < 0 {
			delta = -delta
		}
		if delta < reanalysisTolerance {
			return r, true
		}
	}
	return model.RawMatch{}, false
}
