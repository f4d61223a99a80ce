package calendar

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestISODayOfWeek(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want int
	}{
		{name: "monday", date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), want: 1},
		{name: "wednesday", date: time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), want: 3},
		{name: "saturday", date: time.Date(2024, 1, 6, 23, 59, 0, 0, time.UTC), want: 6},
		{name: "sunday", date: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), want: 7},
		{name: "non utc input uses utc day", date: time.Date(2024, 1, 8, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)), want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ISODayOfWeek(tt.date))
		})
	}
}

func TestWeekStart(t *testing.T) {
	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for offset := 0; offset < 7; offset++ {
		date := monday.AddDate(0, 0, offset).Add(15 * time.Hour)
		start := WeekStart(date)
		assert.Equal(t, monday, start, "offset %d", offset)
		assert.Equal(t, 1, ISODayOfWeek(start))
		assert.Equal(t, offset+1, ISODayOfWeek(date))
	}

	// 周日属于前一周
	sunday := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), WeekStart(sunday))
}

func TestWeekBounds(t *testing.T) {
	start, end := WeekBounds(time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2024, 3, 3, 23, 59, 59, int(999*time.Millisecond), time.UTC), end)
}

func TestDayRange(t *testing.T) {
	start := time.Date(2024, 2, 27, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	keys := make([]string, 0)
	for day := range DayRange(start, end) {
		keys = append(keys, DayKey(day))
	}
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02"}, keys)

	seq := DayRange(start, end)
	assert.Len(t, slices.Collect(seq), 5)
	assert.Len(t, slices.Collect(seq), 5, "sequence should be restartable")

	assert.Empty(t, slices.Collect(DayRange(end, start)))
	assert.Len(t, slices.Collect(DayRange(start, start)), 1)
}

func TestDayKeyRoundTrip(t *testing.T) {
	day, err := ParseDayKey("2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", DayKey(day))
	assert.Equal(t, 4, DaysBetween(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC), day))

	_, err = ParseDayKey("2024-13-01")
	assert.Error(t, err)
}

func TestMonthBounds(t *testing.T) {
	first, last := MonthBounds(time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), first)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), last)
}
