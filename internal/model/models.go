// Package model defines the data models for the Battlegrounds match tracker.
package model

import "time"

// Outcome classifications derived from final placement.
const (
	ResultWin     = "win"     // placement 1
	ResultTop4    = "top4"    // placement 2-4
	ResultLoss    = "loss"    // placement 5-8
	ResultUnknown = "unknown" // placement absent or invalid
)

// Import run status tags written to the import log.
const (
	StatusOK           = "OK"
	StatusNoNewMatches = "NO_NEW_MATCHES"
	StatusError        = "ERROR"
)

// RawMatch is one game element as extracted from the deck-tracker XML export,
// before enrichment. Optional fields stay nil rather than holding sentinel
// values so downstream derivation can tell "absent" from "zero".
type RawMatch struct {
	PlayerID    string
	HeroID      string
	StartTime   time.Time
	EndTime     *time.Time
	Placement   *int // 1..8 when present
	Rating      int
	RatingAfter int
	MinionIDs   []string // normalized card IDs, board order, premium suffix stripped
}

// BoardMinion is one resolved unit on the final board.
type BoardMinion struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Tier  int    `json:"tier,omitempty"`
	Image string `json:"image"`
}

// Match is the persisted, enriched match entity.
// (player_id, start_time) is the natural key; rows are written once and only
// mutated by an explicit reanalysis pass.
type Match struct {
	ID           int64         `db:"id" json:"id"`
	PlayerID     string        `db:"player_id" json:"player_id"`
	HeroID       string        `db:"hero_id" json:"hero_id"`
	HeroName     string        `db:"hero_name" json:"hero_name"`
	HeroImage    string        `db:"hero_image" json:"hero_image"`
	StartTime    time.Time     `db:"start_time" json:"start_time"`
	EndTime      *time.Time    `db:"end_time" json:"end_time"`
	Placement    *int          `db:"placement" json:"placement"`
	Rating       int           `db:"rating" json:"rating"`
	RatingAfter  int           `db:"rating_after" json:"rating_after"`
	RatingDelta  int           `db:"rating_delta" json:"rating_delta"`
	DurationMin  *float64      `db:"duration_min" json:"duration_min"`
	Result       string        `db:"game_result" json:"game_result"`
	Board        []BoardMinion `db:"board" json:"board"`
	MinionCount  int           `db:"minion_count" json:"minion_count"`
	MinionNames  string        `db:"minion_names" json:"minion_names"`   // ", " joined, board order
	MinionTypes  string        `db:"minion_types" json:"minion_types"`   // ", " joined, deduplicated and sorted
	MinionImages string        `db:"minion_images" json:"minion_images"` // "|" joined
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// Incomplete reports whether the row should be picked up by a reanalysis pass:
// the source file was read mid-write or carried a data-quality defect, leaving
// placement, outcome or the final board unresolved.
func (m *Match) Incomplete() bool {
	if m.Placement == nil || *m.Placement == 0 {
		return true
	}
	return m.Result == ResultUnknown || m.MinionCount == 0
}

// ImportLogEntry is one append-only audit row per import run.
type ImportLogEntry struct {
	ID              int64     `db:"id" json:"id"`
	MatchesImported int       `db:"matches_imported" json:"matches_imported"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// SyncStatus is the singleton record of the most recent import.
type SyncStatus struct {
	LastImportTime time.Time `db:"last_import_time" json:"last_import_time"`
	LastStatus     string    `db:"last_status" json:"last_status"`
}
