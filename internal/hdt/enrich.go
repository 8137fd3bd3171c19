package hdt

import (
	"math"
	"sort"
	"strings"
	"time"

	"bg-stats-tracker/internal/model"
	"bg-stats-tracker/internal/refdata"
)

// Classify maps a validated placement to its outcome classification.
// Absent placement classifies as unknown.
func Classify(placement *int) string {
	if placement == nil {
		return model.ResultUnknown
	}
	switch p := *placement; {
	case p == 1:
		return model.ResultWin
	case p >= 2 && p <= 4:
		return model.ResultTop4
	case p >= 5 && p <= maxPlacement:
		return model.ResultLoss
	default:
		return model.ResultUnknown
	}
}

// Duration returns the match duration in minutes rounded to one decimal
// place, or nil if either timestamp is missing. A negative duration (end
// before start) is surfaced as-is; it is a data-quality signal, not an error.
func Duration(start time.Time, end *time.Time) *float64 {
	if start.IsZero() || end == nil {
		return nil
	}
	d := math.Round(end.Sub(start).Minutes()*10) / 10
	return &d
}

// Enrich resolves one raw match against the reference snapshot and derives
// the computed fields, assembling the persistable match entity. Reference
// misses degrade per-field to identifier-as-name; Enrich never fails.
func Enrich(raw model.RawMatch, refs *refdata.Bundle) model.Match {
	hero, ok := refs.Heroes.Lookup(raw.HeroID)
	if !ok {
		hero = refdata.Entry{Name: raw.HeroID}
	}

	board := make([]model.BoardMinion, 0, len(raw.MinionIDs))
	names := make([]string, 0, len(raw.MinionIDs))
	images := make([]string, 0, len(raw.MinionIDs))
	typeSet := make(map[string]struct{})
	for _, id := range raw.MinionIDs {
		info, ok := refs.Minions.Lookup(id)
		if !ok {
			info = refdata.Entry{Name: id}
		}
		board = append(board, model.BoardMinion{
			ID:    id,
			Name:  info.Name,
			Type:  info.Type,
			Tier:  info.Tier,
			Image: info.Image,
		})
		names = append(names, info.Name)
		if info.Type != "" {
			typeSet[info.Type] = struct{}{}
		}
		if info.Image != "" {
			images = append(images, info.Image)
		}
	}

	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}
	sort.Strings(types)

	return model.Match{
		PlayerID:     raw.PlayerID,
		HeroID:       raw.HeroID,
		HeroName:     hero.Name,
		HeroImage:    hero.Image,
		StartTime:    raw.StartTime,
		EndTime:      raw.EndTime,
		Placement:    raw.Placement,
		Rating:       raw.Rating,
		RatingAfter:  raw.RatingAfter,
		RatingDelta:  raw.RatingAfter - raw.Rating,
		DurationMin:  Duration(raw.StartTime, raw.EndTime),
		Result:       Classify(raw.Placement),
		Board:        board,
		MinionCount:  len(board),
		MinionNames:  strings.Join(names, ", "),
		MinionTypes:  strings.Join(types, ", "),
		MinionImages: strings.Join(images, "|"),
	}
}
