package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bg-stats-tracker/internal/model"
)

// ErrNoSyncStatus is returned before the first import has ever run.
var ErrNoSyncStatus = errors.New("no sync status recorded yet")

// SyncRepository handles the import audit log and the sync-status singleton.
type SyncRepository struct {
	pool *pgxpool.Pool
}

// NewSyncRepository creates a new SyncRepository instance.
func NewSyncRepository(pool *pgxpool.Pool) *SyncRepository {
	return &SyncRepository{pool: pool}
}

// RecordImport appends one import log entry and upserts the sync-status
// singleton in a single transaction, so the audit trail and the "last import"
// marker can never disagree.
func (r *SyncRepository) RecordImport(ctx context.Context, imported int, status string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin import record tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO import_log (matches_imported, status, created_at)
		VALUES ($1, $2, NOW())
	`, imported, status)
	if err != nil {
		return fmt.Errorf("failed to append import log: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sync_status (id, last_import_time, last_status)
		VALUES (1, NOW(), $1)
		ON CONFLICT (id) DO UPDATE SET
			last_import_time = EXCLUDED.last_import_time,
			last_status = EXCLUDED.last_status
	`, status)
	if err != nil {
		return fmt.Errorf("failed to upsert sync status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit import record: %w", err)
	}

	return nil
}

// Status returns the sync-status singleton.
// Returns ErrNoSyncStatus when no import has run yet.
func (r *SyncRepository) Status(ctx context.Context) (*model.SyncStatus, error) {
	const query = `SELECT last_import_time, last_status FROM sync_status WHERE id = 1`

	var s model.SyncStatus
	err := r.pool.QueryRow(ctx, query).Scan(&s.LastImportTime, &s.LastStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSyncStatus
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}

	return &s, nil
}

// RecentImports lists the newest import log entries.
func (r *SyncRepository) RecentImports(ctx context.Context, limit int) ([]*model.ImportLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, matches_imported, status, created_at
		FROM import_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import log: %w", err)
	}
	defer rows.Close()

	var entries []*model.ImportLogEntry
	for rows.Next() {
		var e model.ImportLogEntry
		if err := rows.Scan(&e.ID, &e.MatchesImported, &e.Status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import log entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating import log: %w", err)
	}

	return entries, nil
}
