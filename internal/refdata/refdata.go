// Package refdata loads the static hero and minion reference tables.
//
// The tables are flat JSON objects exported by third-party tooling, which has
// shipped them in several text encodings over time. Loading tries a fixed
// preference order of encodings and uses the first that yields valid JSON.
package refdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrUndecodable is returned when a reference file cannot be decoded with any
// supported encoding.
var ErrUndecodable = errors.New("reference file not decodable with any supported encoding")

// Entry is the metadata record for one hero or minion identifier.
type Entry struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Tier   int    `json:"tier,omitempty"`
	Attack int    `json:"attack,omitempty"`
	Health int    `json:"health,omitempty"`
	Image  string `json:"image"`
}

// Table maps upper-cased identifiers to their metadata.
type Table map[string]Entry

// Lookup returns the entry for an identifier, case-insensitively.
func (t Table) Lookup(id string) (Entry, bool) {
	e, ok := t[strings.ToUpper(strings.TrimSpace(id))]
	return e, ok
}

// decodeAttempt transforms raw file bytes into UTF-8 JSON input.
// Attempts run in order; the first whose output unmarshals wins.
type decodeAttempt struct {
	name      string
	transform func([]byte) ([]byte, error)
}

var decodeAttempts = []decodeAttempt{
	{"utf-8", func(b []byte) ([]byte, error) {
		if !utf8.Valid(b) {
			return nil, errors.New("invalid utf-8")
		}
		return b, nil
	}},
	{"utf-8-bom", func(b []byte) ([]byte, error) {
		out, err := unicode.UTF8BOM.NewDecoder().Bytes(b)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(out) {
			return nil, errors.New("invalid utf-8 after BOM strip")
		}
		return out, nil
	}},
	{"latin-1", func(b []byte) ([]byte, error) {
		return charmap.ISO8859_1.NewDecoder().Bytes(b)
	}},
}

// Load reads one reference table from path. Identifier keys are normalized to
// upper case. The file is decoded with the first encoding in the preference
// order (UTF-8, UTF-8 with BOM, Latin-1) that produces valid JSON; if none
// does, the error wraps ErrUndecodable.
func Load(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference file: %w", err)
	}

	var lastErr error
	for _, attempt := range decodeAttempts {
		decoded, err := attempt.transform(raw)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", attempt.name, err)
			continue
		}
		var entries map[string]Entry
		if err := json.Unmarshal(decoded, &entries); err != nil {
			lastErr = fmt.Errorf("%s: %w", attempt.name, err)
			continue
		}

		table := make(Table, len(entries))
		for id, e := range entries {
			table[strings.ToUpper(strings.TrimSpace(id))] = e
		}
		return table, nil
	}

	return nil, fmt.Errorf("%w (%s): %v", ErrUndecodable, path, lastErr)
}

// Bundle is the immutable reference snapshot passed into the import pipeline.
type Bundle struct {
	Heroes  Table
	Minions Table
}

// LoadBundle loads both reference tables. A table that is missing or
// malformed degrades to an empty mapping with a warning; enrichment then
// falls back to identifier-as-name. The import pipeline never aborts here.
func LoadBundle(heroesPath, minionsPath string) *Bundle {
	b := &Bundle{
		Heroes:  loadOrEmpty(heroesPath, "heroes"),
		Minions: loadOrEmpty(minionsPath, "minions"),
	}
	log.Info().
		Int("heroes", len(b.Heroes)).
		Int("minions", len(b.Minions)).
		Msg("Reference tables loaded")
	return b
}

func loadOrEmpty(path, kind string) Table {
	table, err := Load(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).
			Msgf("Failed to load %s reference table, enrichment degrades to identifiers", kind)
		return Table{}
	}
	return table
}
