// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bg-stats-tracker/internal/model"
)

// Common errors for repository operations.
var (
	ErrMatchNotFound = errors.New("match not found")
)

// matchColumns is the canonical select list for bg_matches rows.
const matchColumns = `
	id, player_id, hero_id, hero_name, hero_image, start_time, end_time,
	placement, rating, rating_after, rating_delta, duration_min, game_result,
	board, minion_count, minion_names, minion_types, minion_images,
	created_at, updated_at`

// MatchRepository handles persisted match entities.
type MatchRepository struct {
	pool *pgxpool.Pool
}

// NewMatchRepository creates a new MatchRepository instance.
func NewMatchRepository(pool *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

// Insert writes one enriched match unless a row with the same
// (player_id, start_time) natural key already exists. The unique constraint
// is the enforced invariant; a conflict reports inserted=false, never an
// error, so a racing writer is indistinguishable from an earlier import.
func (r *MatchRepository) Insert(ctx context.Context, m *model.Match) (bool, error) {
	const query = `
		INSERT INTO bg_matches (
			player_id, hero_id, hero_name, hero_image, start_time, end_time,
			placement, rating, rating_after, rating_delta, duration_min,
			game_result, board, minion_count, minion_names, minion_types,
			minion_images, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
		ON CONFLICT (player_id, start_time) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		m.PlayerID, m.HeroID, m.HeroName, m.HeroImage, m.StartTime, m.EndTime,
		m.Placement, m.Rating, m.RatingAfter, m.RatingDelta, m.DurationMin,
		m.Result, m.Board, m.MinionCount, m.MinionNames, m.MinionTypes,
		m.MinionImages,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert match: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Exists checks whether a match with the given natural key is already
// persisted. This is an optimization for skipping enrichment work; Insert
// remains safe without it.
func (r *MatchRepository) Exists(ctx context.Context, playerID string, startTime time.Time) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM bg_matches WHERE player_id = $1 AND start_time = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, playerID, startTime).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check match existence: %w", err)
	}

	return exists, nil
}

// MatchFilter narrows match listings.
type MatchFilter struct {
	Hero         string
	MaxPlacement *int
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// List retrieves matches newest first, applying the filter.
func (r *MatchRepository) List(ctx context.Context, f MatchFilter) ([]*model.Match, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Hero != "" {
		p := arg(f.Hero)
		conds = append(conds, "(hero_id = "+p+" OR LOWER(hero_name) = LOWER("+p+"))")
	}
	if f.MaxPlacement != nil {
		conds = append(conds, "placement <= "+arg(*f.MaxPlacement))
	}
	if f.From != nil {
		conds = append(conds, "start_time >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "start_time <= "+arg(*f.To))
	}

	query := "SELECT" + matchColumns + " FROM bg_matches"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY start_time DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query += " LIMIT " + arg(limit)
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	return r.queryMatches(ctx, query, args...)
}

// ListChronological retrieves all matches ordered by start time ascending,
// the order streak and progression scans require.
func (r *MatchRepository) ListChronological(ctx context.Context) ([]*model.Match, error) {
	query := "SELECT" + matchColumns + " FROM bg_matches ORDER BY start_time ASC"
	return r.queryMatches(ctx, query)
}

// ListIncomplete retrieves rows eligible for reanalysis: placement null or
// zero, unknown outcome, or an empty enriched board.
func (r *MatchRepository) ListIncomplete(ctx context.Context) ([]*model.Match, error) {
	query := "SELECT" + matchColumns + ` FROM bg_matches
		WHERE placement IS NULL OR placement = 0
			OR game_result = 'unknown' OR minion_count = 0
		ORDER BY start_time ASC`
	return r.queryMatches(ctx, query)
}

// UpdateEnrichment rewrites the derived fields of one persisted row from a
// freshly re-enriched match. Identity fields (player_id, start_time) are
// never touched.
func (r *MatchRepository) UpdateEnrichment(ctx context.Context, id int64, m *model.Match) error {
	const query = `
		UPDATE bg_matches
		SET hero_id = $2, hero_name = $3, hero_image = $4, end_time = $5,
			placement = $6, rating = $7, rating_after = $8, rating_delta = $9,
			duration_min = $10, game_result = $11, board = $12,
			minion_count = $13, minion_names = $14, minion_types = $15,
			minion_images = $16, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		id, m.HeroID, m.HeroName, m.HeroImage, m.EndTime,
		m.Placement, m.Rating, m.RatingAfter, m.RatingDelta,
		m.DurationMin, m.Result, m.Board,
		m.MinionCount, m.MinionNames, m.MinionTypes, m.MinionImages,
	)
	if err != nil {
		return fmt.Errorf("failed to update match enrichment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMatchNotFound
	}

	return nil
}

// LatestEndTime returns the most recent persisted end time, or the zero time
// when the store is empty. The watcher uses it to cheaply decide whether the
// source file carries anything new.
func (r *MatchRepository) LatestEndTime(ctx context.Context) (time.Time, error) {
	const query = `SELECT end_time FROM bg_matches WHERE end_time IS NOT NULL ORDER BY end_time DESC LIMIT 1`

	var t time.Time
	err := r.pool.QueryRow(ctx, query).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest end time: %w", err)
	}

	return t, nil
}

func (r *MatchRepository) queryMatches(ctx context.Context, query string, args ...any) ([]*model.Match, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*model.Match
	for rows.Next() {
		var m model.Match
		err := rows.Scan(
			&m.ID, &m.PlayerID, &m.HeroID, &m.HeroName, &m.HeroImage,
			&m.StartTime, &m.EndTime, &m.Placement, &m.Rating, &m.RatingAfter,
			&m.RatingDelta, &m.DurationMin, &m.Result, &m.Board,
			&m.MinionCount, &m.MinionNames, &m.MinionTypes, &m.MinionImages,
			&m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	return matches, nil
}
