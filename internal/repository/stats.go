package repository

import (
	"context"
	"fmt"

	"bg-stats-tracker/internal/model"
)

// Aggregate queries over persisted matches. All of them treat an empty store
// as a defined zero-valued result rather than an error.

// GlobalStats computes the global rate and average set.
func (r *MatchRepository) GlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE game_result = 'win'),
			COALESCE(AVG(CASE WHEN game_result = 'win' THEN 1.0 ELSE 0.0 END), 0),
			COALESCE(AVG(CASE WHEN game_result IN ('win', 'top4') THEN 1.0 ELSE 0.0 END), 0),
			COALESCE(AVG(placement), 0),
			AVG(duration_min),
			AVG(rating_delta::float)
		FROM bg_matches
	`

	var s model.GlobalStats
	err := r.pool.QueryRow(ctx, query).Scan(
		&s.Total, &s.Wins, &s.WinRate, &s.Top4Rate,
		&s.AvgPlacement, &s.AvgDuration, &s.AvgRatingDelta,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute global stats: %w", err)
	}

	return &s, nil
}

// HeroStats computes the per-hero breakdown, grouped by resolved hero name.
// Ordering is deterministic: win rate desc, then match count desc, then hero
// name asc.
func (r *MatchRepository) HeroStats(ctx context.Context) ([]*model.HeroStats, error) {
	const query = `
		SELECT
			hero_name,
			COUNT(*) AS games,
			AVG(CASE WHEN game_result = 'win' THEN 1.0 ELSE 0.0 END) AS win_rate,
			AVG(CASE WHEN game_result IN ('win', 'top4') THEN 1.0 ELSE 0.0 END) AS top4_rate,
			COALESCE(AVG(placement), 0),
			COALESCE(AVG(rating_after::float), 0)
		FROM bg_matches
		GROUP BY hero_name
		ORDER BY win_rate DESC, games DESC, hero_name ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to compute hero stats: %w", err)
	}
	defer rows.Close()

	var stats []*model.HeroStats
	for rows.Next() {
		var h model.HeroStats
		if err := rows.Scan(&h.HeroName, &h.Games, &h.WinRate, &h.Top4Rate, &h.AvgPlacement, &h.AvgRating); err != nil {
			return nil, fmt.Errorf("failed to scan hero stats: %w", err)
		}
		stats = append(stats, &h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hero stats: %w", err)
	}

	return stats, nil
}

// CompositionStats computes the rate set for one unit-type-set group,
// matched case-insensitively against the deduplicated-sorted types string.
// Returns nil when the group has no matches.
func (r *MatchRepository) CompositionStats(ctx context.Context, minionTypes string) (*model.CompositionStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COALESCE(AVG(CASE WHEN game_result = 'win' THEN 1.0 ELSE 0.0 END), 0),
			COALESCE(AVG(CASE WHEN game_result IN ('win', 'top4') THEN 1.0 ELSE 0.0 END), 0),
			COALESCE(AVG(placement), 0),
			COALESCE(AVG(rating_after::float), 0)
		FROM bg_matches
		WHERE LOWER(minion_types) = LOWER($1)
	`

	var s model.CompositionStats
	s.MinionTypes = minionTypes
	err := r.pool.QueryRow(ctx, query, minionTypes).Scan(
		&s.Games, &s.WinRate, &s.Top4Rate, &s.AvgPlacement, &s.AvgRating,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute composition stats: %w", err)
	}
	if s.Games == 0 {
		return nil, nil
	}

	trend, err := r.compositionTrend(ctx, minionTypes)
	if err != nil {
		return nil, err
	}
	s.Trend = trend

	return &s, nil
}

func (r *MatchRepository) compositionTrend(ctx context.Context, minionTypes string) ([]model.TrendPoint, error) {
	const query = `
		SELECT end_time, rating_after
		FROM bg_matches
		WHERE LOWER(minion_types) = LOWER($1) AND end_time IS NOT NULL
		ORDER BY end_time ASC
	`

	rows, err := r.pool.Query(ctx, query, minionTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to query composition trend: %w", err)
	}
	defer rows.Close()

	var trend []model.TrendPoint
	for rows.Next() {
		var p model.TrendPoint
		if err := rows.Scan(&p.Time, &p.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		trend = append(trend, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trend points: %w", err)
	}

	return trend, nil
}

// Compositions lists every unit-type-set group with its rate set, ordered
// like HeroStats for determinism.
func (r *MatchRepository) Compositions(ctx context.Context) ([]*model.CompositionStats, error) {
	const query = `
		SELECT
			minion_types,
			COUNT(*) AS games,
			AVG(CASE WHEN game_result = 'win' THEN 1.0 ELSE 0.0 END) AS win_rate,
			AVG(CASE WHEN game_result IN ('win', 'top4') THEN 1.0 ELSE 0.0 END) AS top4_rate,
			COALESCE(AVG(placement), 0),
			COALESCE(AVG(rating_after::float), 0)
		FROM bg_matches
		WHERE minion_types <> ''
		GROUP BY minion_types
		ORDER BY win_rate DESC, games DESC, minion_types ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list compositions: %w", err)
	}
	defer rows.Close()

	var stats []*model.CompositionStats
	for rows.Next() {
		var c model.CompositionStats
		if err := rows.Scan(&c.MinionTypes, &c.Games, &c.WinRate, &c.Top4Rate, &c.AvgPlacement, &c.AvgRating); err != nil {
			return nil, fmt.Errorf("failed to scan composition: %w", err)
		}
		stats = append(stats, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating compositions: %w", err)
	}

	return stats, nil
}

// PlacementDistribution counts matches per placement value, over matches with
// a known placement only. Fractions are relative to that known-placement
// total.
func (r *MatchRepository) PlacementDistribution(ctx context.Context) ([]*model.PlacementBucket, error) {
	const query = `
		SELECT placement, COUNT(*)
		FROM bg_matches
		WHERE placement IS NOT NULL
		GROUP BY placement
		ORDER BY placement ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to compute placement distribution: %w", err)
	}
	defer rows.Close()

	var buckets []*model.PlacementBucket
	total := 0
	for rows.Next() {
		var b model.PlacementBucket
		if err := rows.Scan(&b.Placement, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan placement bucket: %w", err)
		}
		total += b.Count
		buckets = append(buckets, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating placement buckets: %w", err)
	}

	if total > 0 {
		for _, b := range buckets {
			b.Fraction = float64(b.Count) / float64(total)
		}
	}

	return buckets, nil
}

// DurationStats summarizes match durations in minutes.
func (r *MatchRepository) DurationStats(ctx context.Context) (*model.DurationStats, error) {
	const query = `
		SELECT
			COALESCE(AVG(duration_min), 0),
			COALESCE(MIN(duration_min), 0),
			COALESCE(MAX(duration_min), 0)
		FROM bg_matches
	`

	var s model.DurationStats
	if err := r.pool.QueryRow(ctx, query).Scan(&s.Avg, &s.Min, &s.Max); err != nil {
		return nil, fmt.Errorf("failed to compute duration stats: %w", err)
	}

	return &s, nil
}
