package service

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/siyavash-momeni/tracker/internal/calendar"
	"github.com/siyavash-momeni/tracker/internal/db"
)

const (
	maxHabitTitleRunes = 100
	minTargetValue     = 1
	maxTargetValue     = 1000
	// MaxProgressValue 是单日可记录的最大进度值
	MaxProgressValue = 1000
)

// Frequency 表示习惯目标的统计周期
type Frequency string

const (
	FrequencyDaily  Frequency = db.FrequencyDaily
	FrequencyWeekly Frequency = db.FrequencyWeekly
)

// HabitInput 定义创建习惯时可配置字段
type HabitInput struct {
	Title       string
	Emoji       string
	TargetValue int
	Frequency   string
	ActiveDays  []int
}

// HabitConfig 是经过校验的习惯配置：频率、目标值与活跃日
// ActiveDays 非空、去重、升序，取值 1..7
type HabitConfig struct {
	Title       string
	Emoji       string
	TargetValue int
	Frequency   Frequency
	ActiveDays  []int
}

// NewHabitConfig 校验输入并构造 HabitConfig
func NewHabitConfig(input HabitInput) (HabitConfig, error) {
	title := cleanText(input.Title)
	if title == "" {
		return HabitConfig{}, validationError(InvalidTitle, "title is required")
	}
	if utf8.RuneCountInString(title) > maxHabitTitleRunes {
		return HabitConfig{}, validationError(InvalidTitle, "title must be at most %d characters", maxHabitTitleRunes)
	}

	if input.TargetValue < minTargetValue || input.TargetValue > maxTargetValue {
		return HabitConfig{}, validationError(InvalidTarget, "target value must be between %d and %d", minTargetValue, maxTargetValue)
	}

	frequency := Frequency(strings.ToUpper(strings.TrimSpace(input.Frequency)))
	if frequency != FrequencyDaily && frequency != FrequencyWeekly {
		return HabitConfig{}, validationError(InvalidFrequency, "unsupported frequency %q", input.Frequency)
	}

	days := normalizeActiveDays(input.ActiveDays)
	if len(days) == 0 {
		return HabitConfig{}, validationError(InvalidActiveDays, "at least one active day between 1 and 7 is required")
	}

	return HabitConfig{
		Title:       title,
		Emoji:       cleanText(input.Emoji),
		TargetValue: input.TargetValue,
		Frequency:   frequency,
		ActiveDays:  days,
	}, nil
}

// ConfigFromHabit 从已持久化的习惯还原配置，存储中的数据视为已校验
func ConfigFromHabit(habit db.Habit) HabitConfig {
	return HabitConfig{
		Title:       habit.Title,
		Emoji:       habit.Emoji,
		TargetValue: habit.TargetValue,
		Frequency:   Frequency(habit.Frequency),
		ActiveDays:  normalizeActiveDays(habit.ActiveDays),
	}
}

// WeeklyTarget 返回一周的目标总量：WEEKLY 为目标值本身，DAILY 为目标值乘以活跃天数
func (c HabitConfig) WeeklyTarget() int {
	if c.Frequency == FrequencyWeekly {
		return c.TargetValue
	}

	days := len(c.ActiveDays)
	if days == 0 {
		days = 7
	}
	return c.TargetValue * days
}

// IsActiveOn 判断习惯在 date 所在的 UTC 日是否活跃
func (c HabitConfig) IsActiveOn(date time.Time) bool {
	_, found := slices.BinarySearch(c.ActiveDays, calendar.ISODayOfWeek(date))
	return found
}

func normalizeActiveDays(days []int) []int {
	result := make([]int, 0, len(days))
	for _, day := range days {
		if day < 1 || day > 7 {
			continue
		}
		result = append(result, day)
	}
	slices.Sort(result)
	return slices.Compact(result)
}
