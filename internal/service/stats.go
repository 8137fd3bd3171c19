package service

import (
	"context"

	"bg-stats-tracker/internal/model"
	"bg-stats-tracker/internal/repository"
)

// StatsService exposes the read-side aggregations over persisted matches.
// It never mutates persisted entities, and every operation over an empty
// store yields a defined empty or zero-valued result.
type StatsService struct {
	matches *repository.MatchRepository
}

// NewStatsService creates a new StatsService instance.
func NewStatsService(matches *repository.MatchRepository) *StatsService {
	return &StatsService{matches: matches}
}

// Global computes the global rate and average set over all matches.
func (s *StatsService) Global(ctx context.Context) (*model.GlobalStats, error) {
	return s.matches.GlobalStats(ctx)
}

// Heroes computes the per-hero breakdown.
func (s *StatsService) Heroes(ctx context.Context) ([]*model.HeroStats, error) {
	return s.matches.HeroStats(ctx)
}

// Composition computes the rate set and rating trend for one unit-type-set
// group; nil when the group has no matches.
func (s *StatsService) Composition(ctx context.Context, minionTypes string) (*model.CompositionStats, error) {
	return s.matches.CompositionStats(ctx, minionTypes)
}

// Compositions lists the rate set of every unit-type-set group.
func (s *StatsService) Compositions(ctx context.Context) ([]*model.CompositionStats, error) {
	return s.matches.Compositions(ctx)
}

// Placements computes the placement distribution over matches with a known
// placement.
func (s *StatsService) Placements(ctx context.Context) ([]*model.PlacementBucket, error) {
	return s.matches.PlacementDistribution(ctx)
}

// Durations summarizes match durations.
func (s *StatsService) Durations(ctx context.Context) (*model.DurationStats, error) {
	return s.matches.DurationStats(ctx)
}

// Streaks scans matches in chronological order and returns the maximal runs
// of consecutive matches sharing one outcome.
func (s *StatsService) Streaks(ctx context.Context) ([]model.Streak, error) {
	matches, err := s.matches.ListChronological(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeStreaks(matches), nil
}

// Timeline returns the chronologically ordered rating timeline for charting.
func (s *StatsService) Timeline(ctx context.Context) ([]model.TimelinePoint, error) {
	matches, err := s.matches.ListChronological(ctx)
	if err != nil {
		return nil, err
	}

	points := make([]model.TimelinePoint, 0, len(matches))
	for _, m := range matches {
		if m.EndTime == nil {
			continue
		}
		points = append(points, model.TimelinePoint{
			Time:      *m.EndTime,
			Rating:    m.RatingAfter,
			Delta:     m.RatingDelta,
			Hero:      m.HeroName,
			Placement: m.Placement,
		})
	}

	return points, nil
}

// Elo returns the rating progression with per-step differences.
func (s *StatsService) Elo(ctx context.Context) ([]model.EloPoint, error) {
	matches, err := s.matches.ListChronological(ctx)
	if err != nil {
		return nil, err
	}
	return EloProgression(matches), nil
}

// Summary reports the dashboard summary over the most recent limit matches.
func (s *StatsService) Summary(ctx context.Context, limit int) (*model.SummaryStats, error) {
	if limit <= 0 {
		limit = 20
	}
	recent, err := s.matches.List(ctx, repository.MatchFilter{Limit: limit})
	if err != nil {
		return nil, err
	}
	return Summarize(recent), nil
}

// ComputeStreaks folds chronologically ordered matches into maximal runs of
// one outcome. A single match is a streak of length 1.
func ComputeStreaks(matches []*model.Match) []model.Streak {
	streaks := make([]model.Streak, 0)
	for _, m := range matches {
		n := len(streaks)
		if n > 0 && streaks[n-1].Result == m.Result {
			streaks[n-1].Length++
			streaks[n-1].End = m.EndTime
			continue
		}
		streaks = append(streaks, model.Streak{
			Result: m.Result,
			Length: 1,
			Start:  m.StartTime,
			End:    m.EndTime,
		})
	}
	return streaks
}

// EloProgression maps chronologically ordered matches to rating steps; the
// first step's diff is 0 by definition.
func EloProgression(matches []*model.Match) []model.EloPoint {
	points := make([]model.EloPoint, 0, len(matches))
	var last *int
	for _, m := range matches {
		if m.EndTime == nil {
			continue
		}
		diff := 0
		if last != nil {
			diff = m.RatingAfter - *last
		}
		rating := m.RatingAfter
		last = &rating
		points = append(points, model.EloPoint{
			Time:   *m.EndTime,
			Rating: rating,
			Diff:   diff,
		})
	}
	return points
}

// Summarize computes the recent-N summary over the given matches (newest
// first). An empty input yields a zero-valued summary.
func Summarize(matches []*model.Match) *model.SummaryStats {
	out := &model.SummaryStats{MatchesAnalyzed: len(matches)}
	if len(matches) == 0 {
		return out
	}

	total := float64(len(matches))
	wins, top4 := 0, 0
	placementSum, placementN := 0, 0
	var durationSum float64
	durationN := 0
	var deltaSum float64

	heroGames := make(map[string]int)
	heroWins := make(map[string]int)
	compGames := make(map[string]int)

	for _, m := range matches {
		switch m.Result {
		case model.ResultWin:
			wins++
			top4++
		case model.ResultTop4:
			top4++
		}
		if m.Placement != nil {
			placementSum += *m.Placement
			placementN++
		}
		if m.DurationMin != nil {
			durationSum += *m.DurationMin
			durationN++
		}
		deltaSum += float64(m.RatingDelta)

		if m.HeroName != "" {
			heroGames[m.HeroName]++
			if m.Result == model.ResultWin {
				heroWins[m.HeroName]++
			}
		}
		if m.MinionTypes != "" {
			compGames[m.MinionTypes]++
		}
	}

	out.WinRate = float64(wins) / total
	out.Top4Rate = float64(top4) / total
	if placementN > 0 {
		out.AvgPlacement = float64(placementSum) / float64(placementN)
	}
	if durationN > 0 {
		avg := durationSum / float64(durationN)
		out.AvgDuration = &avg
	}
	avgDelta := deltaSum / total
	out.AvgRatingDelta = &avgDelta

	out.MostPlayedHero = maxByCount(heroGames)
	out.MostPlayedComp = maxByCount(compGames)

	for hero, games := range heroGames {
		rate := float64(heroWins[hero]) / float64(games)
		if rate > out.BestHeroWinRate || (rate == out.BestHeroWinRate && (out.BestHero == "" || hero < out.BestHero)) {
			out.BestHeroWinRate = rate
			out.BestHero = hero
		}
	}

	return out
}

// maxByCount returns the key with the highest count, ties broken by the
// lexicographically smaller key for determinism.
func maxByCount(counts map[string]int) string {
	best := ""
	bestN := 0
	for k, n := range counts {
		if n > bestN || (n == bestN && (best == "" || k < best)) {
			best = k
			bestN = n
		}
	}
	return best
}
