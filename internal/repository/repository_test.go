// Package repository provides data access layer implementations.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"bg-stats-tracker/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	err = runTestMigrations(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// runTestMigrations applies the database schema
func runTestMigrations(ctx context.Context, pool *pgxpool.Pool) error {
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
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS import_log (
			id BIGSERIAL PRIMARY KEY,
			matches_imported INT NOT NULL,
			status VARCHAR(20) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sync_status (
			id SMALLINT PRIMARY KEY CHECK (id = 1),
			last_import_time TIMESTAMPTZ NOT NULL,
			last_status VARCHAR(20) NOT NULL
		);
	`)
	return err
}

func testMatch(player string, start time.Time, placement int) *model.Match {
	end := start.Add(12 * time.Minute)
	d := 12.0
	m := &model.Match{
		PlayerID:    player,
		HeroID:      "HERO_01",
		HeroName:    "Ragnaros",
		StartTime:   start,
		EndTime:     &end,
		Rating:      5000,
		RatingAfter: 5050,
		RatingDelta: 50,
		DurationMin: &d,
		Result:      model.ResultUnknown,
		Board: []model.BoardMinion{
			{ID: "BGS_028", Name: "Pogo-Hopper", Type: "Mech", Tier: 2},
		},
		MinionCount: 1,
		MinionNames: "Pogo-Hopper",
		MinionTypes: "Mech",
	}
	if placement > 0 {
		m.Placement = &placement
		switch {
		case placement == 1:
			m.Result = model.ResultWin
		case placement <= 4:
			m.Result = model.ResultTop4
		default:
			m.Result = model.ResultLoss
		}
	}
	return m
}

// ============================================================================
// MatchRepository Tests
// ============================================================================

func TestMatchRepository_Insert_Dedupe(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	inserted, err := repo.Insert(ctx, testMatch("player-1", start, 1))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same natural key again: silently skipped, not an error
	inserted, err = repo.Insert(ctx, testMatch("player-1", start, 1))
	require.NoError(t, err)
	assert.False(t, inserted)

	// Same start time, different player: distinct natural key
	inserted, err = repo.Insert(ctx, testMatch("player-2", start, 3))
	require.NoError(t, err)
	assert.True(t, inserted)

	exists, err := repo.Exists(ctx, "player-1", start)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, "player-1", start.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMatchRepository_List(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	for i, placement := range []int{1, 3, 6} {
		m := testMatch("player-1", t0.Add(time.Duration(i)*time.Hour), placement)
		if i == 2 {
			m.HeroName = "Patches"
			m.HeroID = "HERO_02"
		}
		_, err := repo.Insert(ctx, m)
		require.NoError(t, err)
	}

	// Newest first by default
	matches, err := repo.List(ctx, MatchFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.True(t, matches[0].StartTime.After(matches[1].StartTime))

	// JSONB board round-trips
	require.Len(t, matches[0].Board, 1)
	assert.Equal(t, "Pogo-Hopper", matches[0].Board[0].Name)

	// Hero filter matches name case-insensitively
	matches, err = repo.List(ctx, MatchFilter{Hero: "patches"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "HERO_02", matches[0].HeroID)

	// Placement ceiling
	maxP := 4
	matches, err = repo.List(ctx, MatchFilter{MaxPlacement: &maxP})
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	// Time window
	from := t0.Add(30 * time.Minute)
	matches, err = repo.List(ctx, MatchFilter{From: &from})
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = repo.List(ctx, MatchFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestMatchRepository_ListIncomplete_UpdateEnrichment(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	_, err := repo.Insert(ctx, testMatch("player-1", t0, 1))
	require.NoError(t, err)

	// No placement makes the row incomplete
	incomplete := testMatch("player-1", t0.Add(time.Hour), 0)
	_, err = repo.Insert(ctx, incomplete)
	require.NoError(t, err)

	rows, err := repo.ListIncomplete(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Placement)

	// Reanalysis fills in the derived fields
	fixed := testMatch("player-1", t0.Add(time.Hour), 2)
	err = repo.UpdateEnrichment(ctx, rows[0].ID, fixed)
	require.NoError(t, err)

	rows, err = repo.ListIncomplete(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	err = repo.UpdateEnrichment(ctx, 99999, fixed)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestMatchRepository_LatestEndTime(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()

	// Empty store yields the zero time, not an error
	latest, err := repo.LatestEndTime(ctx)
	require.NoError(t, err)
	assert.True(t, latest.IsZero())

	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	_, err = repo.Insert(ctx, testMatch("player-1", t0, 1))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, testMatch("player-1", t0.Add(time.Hour), 2))
	require.NoError(t, err)

	latest, err = repo.LatestEndTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour).Add(12*time.Minute), latest.UTC())
}

// ============================================================================
// Stats Tests
// ============================================================================

func TestMatchRepository_GlobalStats_Empty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()

	stats, err := repo.GlobalStats(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.WinRate)
	assert.Zero(t, stats.Top4Rate)
	assert.Zero(t, stats.AvgPlacement)
	assert.Nil(t, stats.AvgDuration)
	assert.Nil(t, stats.AvgRatingDelta)
}

func TestMatchRepository_GlobalStats(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	for i, placement := range []int{1, 3, 6, 8} {
		_, err := repo.Insert(ctx, testMatch("player-1", t0.Add(time.Duration(i)*time.Hour), placement))
		require.NoError(t, err)
	}

	stats, err := repo.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Wins)
	assert.InDelta(t, 0.25, stats.WinRate, 1e-9)
	assert.InDelta(t, 0.5, stats.Top4Rate, 1e-9)
	assert.InDelta(t, 4.5, stats.AvgPlacement, 1e-9)
	require.NotNil(t, stats.AvgDuration)
	assert.InDelta(t, 12.0, *stats.AvgDuration, 1e-9)
	require.NotNil(t, stats.AvgRatingDelta)
	assert.InDelta(t, 50.0, *stats.AvgRatingDelta, 1e-9)
}

func TestMatchRepository_HeroStats(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	insert := func(hour, placement int, hero string) {
		m := testMatch("player-1", t0.Add(time.Duration(hour)*time.Hour), placement)
		m.HeroName = hero
		_, err := repo.Insert(ctx, m)
		require.NoError(t, err)
	}
	insert(0, 1, "Ragnaros")
	insert(1, 5, "Ragnaros")
	insert(2, 2, "Patches")

	stats, err := repo.HeroStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	// Ordered by win rate descending
	assert.Equal(t, "Ragnaros", stats[0].HeroName)
	assert.Equal(t, 2, stats[0].Games)
	assert.InDelta(t, 0.5, stats[0].WinRate, 1e-9)
	assert.InDelta(t, 3.0, stats[0].AvgPlacement, 1e-9)

	assert.Equal(t, "Patches", stats[1].HeroName)
	assert.Zero(t, stats[1].WinRate)
	assert.InDelta(t, 1.0, stats[1].Top4Rate, 1e-9)
}

func TestMatchRepository_CompositionStats(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	insert := func(hour, placement int, types string) {
		m := testMatch("player-1", t0.Add(time.Duration(hour)*time.Hour), placement)
		m.MinionTypes = types
		_, err := repo.Insert(ctx, m)
		require.NoError(t, err)
	}
	insert(0, 1, "Mech")
	insert(1, 4, "Mech")
	insert(2, 7, "Mech, Undead")

	// Lookup is case-insensitive
	stats, err := repo.CompositionStats(ctx, "mech")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, "Mech", stats.MinionTypes)
	assert.Equal(t, 2, stats.Games)
	assert.InDelta(t, 0.5, stats.WinRate, 1e-9)
	require.Len(t, stats.Trend, 2)
	assert.True(t, stats.Trend[0].Time.Before(stats.Trend[1].Time))

	// Unknown group yields nil, not an error
	stats, err = repo.CompositionStats(ctx, "Dragon")
	require.NoError(t, err)
	assert.Nil(t, stats)

	all, err := repo.Compositions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMatchRepository_PlacementDistribution(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	// Empty store yields an empty distribution
	buckets, err := repo.PlacementDistribution(ctx)
	require.NoError(t, err)
	assert.Empty(t, buckets)

	for i, placement := range []int{1, 1, 4, 0} {
		_, err := repo.Insert(ctx, testMatch("player-1", t0.Add(time.Duration(i)*time.Hour), placement))
		require.NoError(t, err)
	}

	buckets, err = repo.PlacementDistribution(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	// Fractions are computed over matches with a known placement only
	assert.Equal(t, 1, buckets[0].Placement)
	assert.Equal(t, 2, buckets[0].Count)
	assert.InDelta(t, 2.0/3.0, buckets[0].Fraction, 1e-9)
	assert.Equal(t, 4, buckets[1].Placement)
	assert.InDelta(t, 1.0/3.0, buckets[1].Fraction, 1e-9)
}

// ============================================================================
// SyncRepository Tests
// ============================================================================

func TestSyncRepository_RecordImport(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSyncRepository(pool)
	ctx := context.Background()

	// No status before the first import
	_, err := repo.Status(ctx)
	assert.ErrorIs(t, err, ErrNoSyncStatus)

	require.NoError(t, repo.RecordImport(ctx, 5, model.StatusOK))
	require.NoError(t, repo.RecordImport(ctx, 0, model.StatusNoNewMatches))

	// The singleton row is upserted, never duplicated
	var count int
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM sync_status`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	status, err := repo.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoNewMatches, status.LastStatus)
	assert.False(t, status.LastImportTime.IsZero())

	// The audit log keeps every run, newest first
	entries, err := repo.RecentImports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.StatusNoNewMatches, entries[0].Status)
	assert.Equal(t, 0, entries[0].MatchesImported)
	assert.Equal(t, model.StatusOK, entries[1].Status)
	assert.Equal(t, 5, entries[1].MatchesImported)
}
