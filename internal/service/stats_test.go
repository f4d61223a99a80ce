package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestStreak(t *testing.T) {
	tests := []struct {
		name  string
		dates []time.Time
		want  int
	}{
		{name: "empty", want: 0},
		{name: "single", dates: []time.Time{day(4)}, want: 1},
		{name: "gap resets", dates: []time.Time{day(1), day(2), day(3), day(5)}, want: 3},
		{name: "unordered with duplicates", dates: []time.Time{day(10), day(9), day(9).Add(20 * time.Hour), day(11), day(1)}, want: 3},
		{
			name:  "across month end",
			dates: []time.Time{day(31), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)},
			want:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BestStreak(tt.dates))
		})
	}
}

func TestCountByDayIsDense(t *testing.T) {
	counts := CountByDay([]time.Time{day(3), day(3).Add(2 * time.Hour)}, day(1), day(7))

	require.Len(t, counts, 7)
	zeros := 0
	for _, c := range counts {
		if c.Completions == 0 {
			zeros++
		}
	}
	assert.Equal(t, 6, zeros)
	assert.Equal(t, DayCount{Date: "2024-01-03", Completions: 2}, counts[2])
	assert.Equal(t, "2024-01-01", counts[0].Date)
	assert.Equal(t, "2024-01-07", counts[6].Date)

	assert.Empty(t, CountByDay(nil, day(7), day(1)))
}

func TestWeeklyAverageByWeek(t *testing.T) {
	month := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	daily := CountByDay([]time.Time{
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
	}, month, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))

	today := time.Date(2024, 2, 6, 9, 0, 0, 0, time.UTC)
	got := WeeklyAverageByWeek(daily, month, today)

	// 2月1日是周四：第一周只计 1..4 日，第二周只计 5..6 日
	require.Len(t, got, 2)
	assert.Equal(t, WeekAverage{WeekStart: "2024-01-29", Days: 4, Average: 0.8}, got[0])
	assert.Equal(t, WeekAverage{WeekStart: "2024-02-05", Days: 2, Average: 0.5}, got[1])

	future := WeeklyAverageByWeek(daily, month, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	assert.Empty(t, future, "weeks without elapsed days are omitted")
}

func TestStatsServiceRangeCountsAndTotals(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()
	lire := mustCreateHabit(t, f.habits, "user_1", dailyHabit("Lire", 1))
	eau := mustCreateHabit(t, f.habits, "user_1", dailyHabit("Eau", 8))
	other := mustCreateHabit(t, f.habits, "user_2", dailyHabit("Autre", 1))

	for _, c := range []struct {
		habit string
		owner string
		date  time.Time
	}{
		{lire.ID, "user_1", day(3)},
		{eau.ID, "user_1", day(3)},
		{lire.ID, "user_1", day(4)},
		{lire.ID, "user_1", day(20)},
		{other.ID, "user_2", day(3)},
	} {
		_, err := f.progress.RecordProgress(ctx, c.owner, c.habit, c.date, 1)
		require.NoError(t, err)
	}

	stats := NewStatsService(f.habits, f.store, nil).WithClock(func() time.Time { return day(21) })

	counts, err := stats.RangeCounts(ctx, "user_1", day(1), day(7))
	require.NoError(t, err)
	require.Len(t, counts, 7)
	assert.Equal(t, 2, counts[2].Completions)
	assert.Equal(t, 1, counts[3].Completions)

	empty, err := stats.RangeCounts(ctx, "user_1", day(7), day(1))
	require.NoError(t, err)
	assert.Empty(t, empty)

	totals, err := stats.Totals(ctx, "user_1", StatsRangeAll)
	require.NoError(t, err)
	assert.Equal(t, Totals{TotalHabits: 2, TotalCompletions: 4}, totals)

	totals, err = stats.Totals(ctx, "user_1", StatsRange7Days)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.TotalCompletions)

	totals, err = stats.Totals(ctx, "user_1", StatsRange30Days)
	require.NoError(t, err)
	assert.Equal(t, 4, totals.TotalCompletions)

	monthly, err := stats.Monthly(ctx, "user_1", day(15))
	require.NoError(t, err)
	assert.Equal(t, "2024-01", monthly.Month)
	assert.Len(t, monthly.Days, 31)
	assert.Equal(t, 2, monthly.BestStreak)
	assert.Len(t, monthly.WeeklyAverage, 3)
}

func TestParseStatsRange(t *testing.T) {
	for raw, want := range map[string]StatsRange{"": StatsRangeAll, "all": StatsRangeAll, "7d": StatsRange7Days, "30d": StatsRange30Days} {
		got, err := ParseStatsRange(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseStatsRange("1y")
	assert.ErrorIs(t, err, ErrValidation)
}
