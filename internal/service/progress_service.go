package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/siyavash-momeni/tracker/internal/calendar"
	"github.com/siyavash-momeni/tracker/internal/db"
	"github.com/siyavash-momeni/tracker/internal/eventbus"
	"github.com/siyavash-momeni/tracker/internal/logger"
)

// Progress 是某习惯在某天的进度快照
// DAILY 习惯的 CurrentProgress 等于当天值；WEEKLY 习惯为所在 ISO 周的累计值
type Progress struct {
	HabitID         string
	Date            time.Time
	Frequency       Frequency
	Active          bool
	ValueForDate    int
	CurrentProgress int
	Target          int
	IsCompleted     bool
}

// HabitDayProgress 将习惯与其当天进度配对，供按日期浏览使用
type HabitDayProgress struct {
	Habit    db.Habit
	Progress Progress
}

// ProgressService 是进度聚合引擎：读取、写入并重新计算习惯进度
type ProgressService struct {
	habits *HabitService
	store  CompletionStore
	cache  RangeCache
	events eventbus.Publisher
	logger *log.Logger
	now    func() time.Time
}

// NewProgressService 构造 ProgressService；cache/events/logger 可为空
func NewProgressService(habits *HabitService, store CompletionStore, cache RangeCache, events eventbus.Publisher, l *log.Logger) *ProgressService {
	if cache == nil {
		cache = NoopRangeCache{}
	}
	return &ProgressService{
		habits: habits,
		store:  store,
		cache:  cache,
		events: events,
		logger: logger.OrDiscard(l),
		now:    time.Now,
	}
}

// ValidateProgressValue 校验单日进度值在 [0, 1000]
func ValidateProgressValue(value int) error {
	if value < 0 || value > MaxProgressValue {
		return validationError(InvalidValue, "value must be an integer between 0 and %d", MaxProgressValue)
	}
	return nil
}

// ParseProgressValue 解析边界层收到的原始数值；非整数或越界都属于客户端错误，不做截断
func ParseProgressValue(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// 允许 "3.0" 这类整数值的浮点表示
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, validationError(InvalidValue, "value must be an integer")
		}
		value = int64(f)
	}
	if value < 0 || value > MaxProgressValue {
		return 0, validationError(InvalidValue, "value must be an integer between 0 and %d", MaxProgressValue)
	}
	return int(value), nil
}

// Evaluate 根据习惯配置与存储计算 date 当天的进度
func Evaluate(ctx context.Context, store CompletionStore, habit db.Habit, date time.Time) (Progress, error) {
	cfg := ConfigFromHabit(habit)
	day := calendar.StartOfDay(date)

	progress := Progress{
		HabitID:   habit.ID,
		Date:      day,
		Frequency: cfg.Frequency,
		Active:    cfg.IsActiveOn(day),
		Target:    cfg.TargetValue,
	}

	record, err := store.FindOne(ctx, habit.ID, day)
	if err != nil {
		return Progress{}, upstream("read progress", err)
	}
	if record != nil {
		progress.ValueForDate = record.Value
	}

	switch cfg.Frequency {
	case FrequencyWeekly:
		weekStart, weekEnd := calendar.WeekBounds(day)
		completions, err := store.FindMany(ctx, CompletionFilter{
			HabitIDs: []string{habit.ID},
			Start:    weekStart,
			End:      weekEnd,
		})
		if err != nil {
			return Progress{}, upstream("read weekly progress", err)
		}
		for _, completion := range completions {
			if completion.HabitID == habit.ID {
				progress.CurrentProgress += completion.Value
			}
		}
	default:
		progress.CurrentProgress = progress.ValueForDate
	}

	progress.IsCompleted = progress.CurrentProgress >= progress.Target
	return progress, nil
}

// GetProgress 读取用户自己某习惯在 date 的进度
func (s *ProgressService) GetProgress(ctx context.Context, ownerID, habitID string, date time.Time) (Progress, error) {
	habit, err := s.habits.Get(ctx, ownerID, habitID)
	if err != nil {
		return Progress{}, err
	}
	return Evaluate(ctx, s.store, *habit, date)
}

// RecordProgress 写入某天的进度值：大于 0 时 upsert，等于 0 时删除，随后重新计算进度
// 校验、归属与活跃日检查都在写入之前完成，失败时不产生任何修改
func (s *ProgressService) RecordProgress(ctx context.Context, ownerID, habitID string, date time.Time, value int) (Progress, error) {
	if err := ValidateProgressValue(value); err != nil {
		return Progress{}, err
	}

	habit, err := s.habits.Get(ctx, ownerID, habitID)
	if err != nil {
		return Progress{}, err
	}

	day := calendar.StartOfDay(date)
	if !ConfigFromHabit(*habit).IsActiveOn(day) {
		return Progress{}, ErrInactiveDay
	}

	if value > 0 {
		if _, err := s.store.Upsert(ctx, habit.ID, day, value); err != nil {
			return Progress{}, upstream("record progress", err)
		}
	} else {
		if err := s.store.Delete(ctx, habit.ID, day); err != nil {
			return Progress{}, upstream("clear progress", err)
		}
	}
	s.cache.Invalidate(ctx, ownerID)

	progress, err := Evaluate(ctx, s.store, *habit, day)
	if err != nil {
		return Progress{}, err
	}

	eventbus.PublishJSON(ctx, s.events, s.logger, eventbus.RoutingProgressRecorded, eventbus.ProgressRecorded{
		OwnerID:         ownerID,
		HabitID:         habit.ID,
		Date:            calendar.DayKey(day),
		Value:           value,
		CurrentProgress: progress.CurrentProgress,
		Target:          progress.Target,
		IsCompleted:     progress.IsCompleted,
		OccurredAt:      s.now().UTC(),
	})

	return progress, nil
}

// ProgressForDate 返回用户在 date 当天活跃的习惯及其进度
func (s *ProgressService) ProgressForDate(ctx context.Context, ownerID string, date time.Time) ([]HabitDayProgress, error) {
	habits, err := s.habits.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	day := calendar.StartOfDay(date)
	result := make([]HabitDayProgress, 0, len(habits))
	for _, habit := range habits {
		if !ConfigFromHabit(habit).IsActiveOn(day) {
			continue
		}
		progress, err := Evaluate(ctx, s.store, habit, day)
		if err != nil {
			return nil, err
		}
		result = append(result, HabitDayProgress{Habit: habit, Progress: progress})
	}
	return result, nil
}
