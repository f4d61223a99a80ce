package service

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/siyavash-momeni/tracker/internal/calendar"
)

// DayCount 是按天统计的打卡记录数
type DayCount struct {
	Date        string `json:"date"`
	Completions int    `json:"completions"`
}

// WeekAverage 是某个 ISO 周在当月范围内的日均打卡数
type WeekAverage struct {
	WeekStart string  `json:"weekStart"`
	Days      int     `json:"days"`
	Average   float64 `json:"average"`
}

// BestStreak 返回连续有打卡的最长天数；同一天的多条记录只算一次
func BestStreak(dates []time.Time) int {
	if len(dates) == 0 {
		return 0
	}

	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		days = append(days, calendar.StartOfDay(d))
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	days = slices.CompactFunc(days, func(a, b time.Time) bool { return a.Equal(b) })

	best, current := 1, 1
	for i := 1; i < len(days); i++ {
		if calendar.DaysBetween(days[i-1], days[i]) == 1 {
			current++
		} else {
			current = 1
		}
		best = max(best, current)
	}
	return best
}

// CountByDay 把打卡日期按天计数，输出 start..end 的稠密序列，没有记录的日子计 0
func CountByDay(dates []time.Time, start, end time.Time) []DayCount {
	byDay := make(map[string]int, len(dates))
	for _, d := range dates {
		byDay[calendar.DayKey(d)]++
	}

	counts := make([]DayCount, 0, max(calendar.DaysBetween(start, end)+1, 0))
	for day := range calendar.DayRange(start, end) {
		key := calendar.DayKey(day)
		counts = append(counts, DayCount{Date: key, Completions: byDay[key]})
	}
	return counts
}

// WeeklyAverageByWeek 按 ISO 周对 month 内的每日计数求平均（保留一位小数）
// 每周只计入同时落在本月且不晚于 today 的日子；没有可计入日子的周不输出
func WeeklyAverageByWeek(daily []DayCount, month, today time.Time) []WeekAverage {
	monthStart, monthEnd := calendar.MonthBounds(month)
	cutoff := calendar.StartOfDay(today)
	if cutoff.Before(monthEnd) {
		monthEnd = cutoff
	}

	byDay := make(map[string]int, len(daily))
	for _, d := range daily {
		byDay[d.Date] += d.Completions
	}

	var (
		result  []WeekAverage
		current *WeekAverage
		sum     int
	)
	flush := func() {
		if current == nil || current.Days == 0 {
			return
		}
		current.Average = math.Round(float64(sum)/float64(current.Days)*10) / 10
		result = append(result, *current)
	}

	for day := range calendar.DayRange(monthStart, monthEnd) {
		weekKey := calendar.DayKey(calendar.WeekStart(day))
		if current == nil || current.WeekStart != weekKey {
			flush()
			current = &WeekAverage{WeekStart: weekKey}
			sum = 0
		}
		current.Days++
		sum += byDay[calendar.DayKey(day)]
	}
	flush()

	if result == nil {
		return []WeekAverage{}
	}
	return result
}

// StatsRange 是总览统计的时间范围
type StatsRange string

// 支持的范围
const (
	StatsRange7Days  StatsRange = "7d"
	StatsRange30Days StatsRange = "30d"
	StatsRangeAll    StatsRange = "all"
)

// ParseStatsRange 解析 range 参数，空值视为 all
func ParseStatsRange(raw string) (StatsRange, error) {
	switch StatsRange(raw) {
	case "", StatsRangeAll:
		return StatsRangeAll, nil
	case StatsRange7Days, StatsRange30Days:
		return StatsRange(raw), nil
	default:
		return "", validationError(InvalidDate, "range must be one of 7d, 30d, all")
	}
}

// Totals 是总览统计
type Totals struct {
	TotalHabits      int64 `json:"totalHabits"`
	TotalCompletions int   `json:"totalCompletions"`
}

// MonthlyStats 是月度图表数据
type MonthlyStats struct {
	Month         string        `json:"month"`
	Days          []DayCount    `json:"days"`
	WeeklyAverage []WeekAverage `json:"weeklyAverageByWeek"`
	BestStreak    int           `json:"bestStreak"`
}

// StatsService 提供区间计数、连续天数与总览统计
type StatsService struct {
	habits *HabitService
	store  CompletionStore
	cache  RangeCache
	now    func() time.Time
}

// NewStatsService 构造 StatsService；cache 为空时不缓存
func NewStatsService(habits *HabitService, store CompletionStore, cache RangeCache) *StatsService {
	if cache == nil {
		cache = NoopRangeCache{}
	}
	return &StatsService{habits: habits, store: store, cache: cache, now: time.Now}
}

// WithClock 替换时间来源，用于测试
func (s *StatsService) WithClock(now func() time.Time) *StatsService {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *StatsService) completionDates(ctx context.Context, ownerID string, start, end time.Time) ([]time.Time, error) {
	completions, err := s.store.FindMany(ctx, CompletionFilter{OwnerID: ownerID, Start: start, End: end})
	if err != nil {
		return nil, upstream("list completions", err)
	}
	dates := make([]time.Time, 0, len(completions))
	for _, c := range completions {
		dates = append(dates, c.CompletedDate)
	}
	return dates, nil
}

// RangeCounts 返回 start..end（含）每天的打卡记录数
func (s *StatsService) RangeCounts(ctx context.Context, ownerID string, start, end time.Time) ([]DayCount, error) {
	start, end = calendar.StartOfDay(start), calendar.StartOfDay(end)
	if start.After(end) {
		return []DayCount{}, nil
	}

	if counts, ok := s.cache.Get(ctx, ownerID, start, end); ok {
		return counts, nil
	}

	dates, err := s.completionDates(ctx, ownerID, start, end)
	if err != nil {
		return nil, err
	}
	counts := CountByDay(dates, start, end)
	s.cache.Set(ctx, ownerID, start, end, counts)
	return counts, nil
}

// BestStreak 计算用户全部历史打卡的最长连续天数
func (s *StatsService) BestStreak(ctx context.Context, ownerID string) (int, error) {
	dates, err := s.completionDates(ctx, ownerID, time.Time{}, time.Time{})
	if err != nil {
		return 0, err
	}
	return BestStreak(dates), nil
}

// Totals 返回习惯总数与范围内的打卡记录数；7d/30d 均包含今天
func (s *StatsService) Totals(ctx context.Context, ownerID string, r StatsRange) (Totals, error) {
	habits, err := s.habits.Count(ctx, ownerID)
	if err != nil {
		return Totals{}, err
	}

	var start, end time.Time
	today := calendar.StartOfDay(s.now())
	switch r {
	case StatsRange7Days:
		start, end = today.AddDate(0, 0, -6), today
	case StatsRange30Days:
		start, end = today.AddDate(0, 0, -29), today
	}

	dates, err := s.completionDates(ctx, ownerID, start, end)
	if err != nil {
		return Totals{}, err
	}
	return Totals{TotalHabits: habits, TotalCompletions: len(dates)}, nil
}

// Monthly 返回 month 所在月份的每日计数、周均值与最长连续天数
func (s *StatsService) Monthly(ctx context.Context, ownerID string, month time.Time) (MonthlyStats, error) {
	start, end := calendar.MonthBounds(month)

	days, err := s.RangeCounts(ctx, ownerID, start, end)
	if err != nil {
		return MonthlyStats{}, err
	}
	streak, err := s.BestStreak(ctx, ownerID)
	if err != nil {
		return MonthlyStats{}, err
	}

	return MonthlyStats{
		Month:         start.Format("2006-01"),
		Days:          days,
		WeeklyAverage: WeeklyAverageByWeek(days, start, s.now()),
		BestStreak:    streak,
	}, nil
}
