package model

import "time"

// GlobalStats aggregates rates and averages over a set of matches.
// All fields are defined (zero-valued) for an empty set.
type GlobalStats struct {
	Total          int      `json:"total"`
	Wins           int      `json:"wins"`
	WinRate        float64  `json:"win_rate"`
	Top4Rate       float64  `json:"top4_rate"`
	AvgPlacement   float64  `json:"avg_placement"`
	AvgDuration    *float64 `json:"avg_duration"`
	AvgRatingDelta *float64 `json:"avg_rating_delta"`
}

// HeroStats is the per-hero breakdown row, keyed by resolved hero name.
type HeroStats struct {
	HeroName     string  `json:"hero"`
	Games        int     `json:"games"`
	WinRate      float64 `json:"win_rate"`
	Top4Rate     float64 `json:"top4_rate"`
	AvgPlacement float64 `json:"avg_placement"`
	AvgRating    float64 `json:"avg_rating"`
}

// CompositionStats groups matches by their deduplicated-sorted unit-type set.
type CompositionStats struct {
	MinionTypes  string       `json:"minion_types"`
	Games        int          `json:"games"`
	WinRate      float64      `json:"win_rate"`
	Top4Rate     float64      `json:"top4_rate"`
	AvgPlacement float64      `json:"avg_placement"`
	AvgRating    float64      `json:"avg_rating"`
	Trend        []TrendPoint `json:"trend"`
}

// TrendPoint is one point of a composition's rating-over-time trend.
type TrendPoint struct {
	Time   time.Time `json:"time"`
	Rating int       `json:"rating"`
}

// Streak is a maximal run of consecutive matches sharing one outcome.
type Streak struct {
	Result string     `json:"result"`
	Length int        `json:"length"`
	Start  time.Time  `json:"start"`
	End    *time.Time `json:"end"`
}

// TimelinePoint is one charting tuple of the rating timeline.
type TimelinePoint struct {
	Time      time.Time `json:"time"`
	Rating    int       `json:"rating"`
	Delta     int       `json:"delta"`
	Hero      string    `json:"hero"`
	Placement *int      `json:"placement"`
}

// EloPoint is one step of the rating progression; Diff is relative to the
// previous point and 0 for the first.
type EloPoint struct {
	Time   time.Time `json:"time"`
	Rating int       `json:"rating"`
	Diff   int       `json:"diff"`
}

// PlacementBucket is the count and fraction of matches finishing at one
// placement, over matches with a known placement only.
type PlacementBucket struct {
	Placement int     `json:"placement"`
	Count     int     `json:"count"`
	Fraction  float64 `json:"fraction"`
}

// DurationStats summarizes match duration in minutes.
type DurationStats struct {
	Avg float64 `json:"avg_duration"`
	Min float64 `json:"min_duration"`
	Max float64 `json:"max_duration"`
}

// SummaryStats is the recent-N dashboard summary.
type SummaryStats struct {
	MatchesAnalyzed int      `json:"matches_analyzed"`
	WinRate         float64  `json:"win_rate"`
	Top4Rate        float64  `json:"top4_rate"`
	AvgPlacement    float64  `json:"avg_placement"`
	AvgDuration     *float64 `json:"avg_duration_min"`
	AvgRatingDelta  *float64 `json:"avg_rating_delta"`
	MostPlayedHero  string   `json:"most_played_hero"`
	MostPlayedComp  string   `json:"most_played_comp"`
	BestHero        string   `json:"best_hero"`
	BestHeroWinRate float64  `json:"best_hero_winrate"`
}
