package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"bg-stats-tracker/internal/model"
)

func matchAt(t0 time.Time, minutesIn int, result string, ratingAfter int) *model.Match {
	start := t0.Add(time.Duration(minutesIn) * time.Minute)
	end := start.Add(10 * time.Minute)
	return &model.Match{
		StartTime:   start,
		EndTime:     &end,
		Result:      result,
		RatingAfter: ratingAfter,
	}
}

func TestComputeStreaks(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	matches := []*model.Match{
		matchAt(t0, 0, model.ResultWin, 5060),
		matchAt(t0, 20, model.ResultWin, 5120),
		matchAt(t0, 40, model.ResultTop4, 5140),
		matchAt(t0, 60, model.ResultTop4, 5160),
		matchAt(t0, 80, model.ResultTop4, 5180),
		matchAt(t0, 100, model.ResultLoss, 5120),
	}

	streaks := ComputeStreaks(matches)
	require.Len(t, streaks, 3)

	assert.Equal(t, model.ResultWin, streaks[0].Result)
	assert.Equal(t, 2, streaks[0].Length)
	assert.Equal(t, t0, streaks[0].Start)

	assert.Equal(t, model.ResultTop4, streaks[1].Result)
	assert.Equal(t, 3, streaks[1].Length)

	assert.Equal(t, model.ResultLoss, streaks[2].Result)
	assert.Equal(t, 1, streaks[2].Length)
	require.NotNil(t, streaks[2].End)
}

func TestComputeStreaks_Empty(t *testing.T) {
	streaks := ComputeStreaks(nil)
	require.NotNil(t, streaks)
	assert.Empty(t, streaks)
}

func TestEloProgression(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	matches := []*model.Match{
		matchAt(t0, 0, model.ResultWin, 5060),
		matchAt(t0, 20, model.ResultLoss, 5010),
		matchAt(t0, 40, model.ResultTop4, 5035),
	}
	// An unfinished match contributes no point
	matches = append(matches, &model.Match{StartTime: t0.Add(time.Hour), RatingAfter: 9999})

	points := EloProgression(matches)
	require.Len(t, points, 3)

	assert.Equal(t, 5060, points[0].Rating)
	assert.Equal(t, 0, points[0].Diff)

	assert.Equal(t, 5010, points[1].Rating)
	assert.Equal(t, -50, points[1].Diff)

	assert.Equal(t, 5035, points[2].Rating)
	assert.Equal(t, 25, points[2].Diff)
}

func TestSummarize(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	p1, p3, p6 := 1, 3, 6
	d1, d2 := 10.0, 14.0

	matches := []*model.Match{
		{StartTime: t0, Placement: &p1, Result: model.ResultWin, HeroName: "Ragnaros", MinionTypes: "Mech", DurationMin: &d1, RatingDelta: 60},
		{StartTime: t0, Placement: &p3, Result: model.ResultTop4, HeroName: "Ragnaros", MinionTypes: "Mech, Undead", DurationMin: &d2, RatingDelta: 20},
		{StartTime: t0, Placement: &p6, Result: model.ResultLoss, HeroName: "Patches", MinionTypes: "Mech"},
		{StartTime: t0, Result: model.ResultUnknown, HeroName: "Patches"},
	}

	s := Summarize(matches)
	assert.Equal(t, 4, s.MatchesAnalyzed)
	assert.InDelta(t, 0.25, s.WinRate, 1e-9)
	assert.InDelta(t, 0.5, s.Top4Rate, 1e-9)
	// Average placement only over matches with a known placement
	assert.InDelta(t, (1.0+3.0+6.0)/3.0, s.AvgPlacement, 1e-9)
	require.NotNil(t, s.AvgDuration)
	assert.InDelta(t, 12.0, *s.AvgDuration, 1e-9)
	require.NotNil(t, s.AvgRatingDelta)
	assert.InDelta(t, 20.0, *s.AvgRatingDelta, 1e-9)

	// Ragnaros and Patches both have 2 games; ties break lexicographically
	assert.Equal(t, "Patches", s.MostPlayedHero)
	assert.Equal(t, "Mech", s.MostPlayedComp)
	assert.Equal(t, "Ragnaros", s.BestHero)
	assert.InDelta(t, 0.5, s.BestHeroWinRate, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	require.NotNil(t, s)
	assert.Equal(t, 0, s.MatchesAnalyzed)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.Top4Rate)
	assert.Zero(t, s.AvgPlacement)
	assert.Nil(t, s.AvgDuration)
	assert.Nil(t, s.AvgRatingDelta)
	assert.Empty(t, s.MostPlayedHero)
	assert.Empty(t, s.BestHero)
}

// Property: streak lengths always sum to the number of matches, and adjacent
// streaks never share an outcome.
func TestComputeStreaks_Property(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	outcomes := []string{model.ResultWin, model.ResultTop4, model.ResultLoss, model.ResultUnknown}

	rapid.Check(t, func(t *rapid.T) {
		results := rapid.SliceOfN(rapid.SampledFrom(outcomes), 0, 50).Draw(t, "results")

		matches := make([]*model.Match, len(results))
		for i, r := range results {
			matches[i] = matchAt(t0, i*20, r, 5000)
		}

		streaks := ComputeStreaks(matches)

		total := 0
		for i, s := range streaks {
			assert.Greater(t, s.Length, 0)
			total += s.Length
			if i > 0 {
				assert.NotEqual(t, streaks[i-1].Result, s.Result)
			}
		}
		assert.Equal(t, len(matches), total)
	})
}
