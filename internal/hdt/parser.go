// Package hdt parses and enriches match records exported by the Hearthstone
// Deck Tracker BgsLastGames.xml file.
//
// The export format has known quirks that must be tolerated rather than fixed
// upstream: an occasionally misspelled placement attribute, absent rating
// fields, and premium ("golden") unit identifiers that share reference
// metadata with their base form.
package hdt

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"bg-stats-tracker/internal/model"
)

// premiumSuffix marks the golden variant of a unit. The stripped identifier
// is the reference lookup key for both variants.
const premiumSuffix = "_G"

// maxPlacement is the lobby size; placements outside 1..maxPlacement are
// treated as absent.
const maxPlacement = 8

type xmlDoc struct {
	Games []xmlGame `xml:"Game"`
}

type xmlGame struct {
	Player      string `xml:"Player,attr"`
	Hero        string `xml:"Hero,attr"`
	StartTime   string `xml:"StartTime,attr"`
	EndTime     string `xml:"EndTime,attr"`
	Rating      string `xml:"Rating,attr"`
	RatingAfter string `xml:"RatingAfter,attr"`

	// Placement fallback chain, in order: the primary attribute, a
	// misspelled variant observed in real exports, then the alternate
	// final-placement attribute.
	Placement      string `xml:"Placement,attr"`
	PlacementTypo  string `xml:"Placemenent,attr"`
	FinalPlacement string `xml:"FinalPlacement,attr"`

	FinalBoard xmlBoard `xml:"FinalBoard"`
}

type xmlBoard struct {
	Minions []xmlMinion `xml:"Minion"`
}

type xmlMinion struct {
	CardID string `xml:"CardId"`
}

// ParseGames parses the XML source into raw match records, one per Game
// element. A document-level XML error fails the whole parse; malformed or
// missing individual fields degrade per-field. Records without a parseable
// start time are skipped entirely, since they can neither be deduplicated nor
// ordered.
func ParseGames(data []byte) ([]model.RawMatch, error) {
	var doc xmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse games xml: %w", err)
	}

	records := make([]model.RawMatch, 0, len(doc.Games))
	for _, g := range doc.Games {
		start, ok := parseTime(g.StartTime)
		if !ok {
			log.Warn().
				Str("player", g.Player).
				Str("hero", g.Hero).
				Str("start_time", g.StartTime).
				Msg("Skipping game without parseable start time")
			continue
		}

		raw := model.RawMatch{
			PlayerID:    strings.TrimSpace(g.Player),
			HeroID:      strings.TrimSpace(g.Hero),
			StartTime:   start,
			Placement:   parsePlacement(g.Placement, g.PlacementTypo, g.FinalPlacement),
			Rating:      parseRating(g.Rating),
			RatingAfter: parseRating(g.RatingAfter),
		}
		if end, ok := parseTime(g.EndTime); ok {
			raw.EndTime = &end
		}
		for _, m := range g.FinalBoard.Minions {
			if id := NormalizeCardID(m.CardID); id != "" {
				raw.MinionIDs = append(raw.MinionIDs, id)
			}
		}

		records = append(records, raw)
	}

	return records, nil
}

// timeLayouts are the accepted timestamp shapes: RFC 3339 (a trailing literal
// "Z" parses as UTC) and the offset-less form some exports write, read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parsePlacement walks the attribute fallback chain; the first present,
// digit-parseable value in 1..maxPlacement wins. Out-of-range values (the
// exporter writes 0 for aborted games) keep the chain going, and exhausting
// it yields absent, not zero.
func parsePlacement(candidates ...string) *int {
	for _, c := range candidates {
		p, err := strconv.Atoi(strings.TrimSpace(c))
		if err != nil || p <= 0 || p > maxPlacement {
			continue
		}
		return &p
	}
	return nil
}

// parseRating reads a rating attribute, tolerating absent or empty values
// (default 0) and fractional encodings ("5432.0").
func parseRating(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// NormalizeCardID trims, upper-cases and strips the premium-variant suffix
// from a unit identifier, yielding the reference lookup key.
func NormalizeCardID(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	return strings.TrimSuffix(id, premiumSuffix)
}
