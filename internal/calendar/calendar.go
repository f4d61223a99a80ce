// Package calendar 提供基于 UTC 的日期工具：ISO 周边界、星期归一化与按天遍历。
package calendar

import (
	"iter"
	"time"
)

// DayKeyLayout 是按天分组时使用的规范格式
const DayKeyLayout = "2006-01-02"

// Day 是一个 UTC 日的时长
const Day = 24 * time.Hour

// StartOfDay 返回 date 所在 UTC 日的零点
func StartOfDay(date time.Time) time.Time {
	u := date.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ISODayOfWeek 将 UTC 星期映射为 1(周一)..7(周日)
func ISODayOfWeek(date time.Time) int {
	native := int(date.UTC().Weekday())
	if native == 0 {
		return 7
	}
	return native
}

// WeekStart 返回 date 所在 ISO 周的周一零点（UTC）
func WeekStart(date time.Time) time.Time {
	day := StartOfDay(date)
	return day.AddDate(0, 0, -(ISODayOfWeek(day) - 1))
}

// WeekBounds 返回 ISO 周的首尾：周一 00:00:00.000 到周日 23:59:59.999
func WeekBounds(date time.Time) (time.Time, time.Time) {
	start := WeekStart(date)
	end := start.AddDate(0, 0, 7).Add(-time.Millisecond)
	return start, end
}

// DayKey 返回 YYYY-MM-DD 形式的 UTC 日期键
func DayKey(date time.Time) string {
	return date.UTC().Format(DayKeyLayout)
}

// ParseDayKey 将 YYYY-MM-DD 解析为 UTC 零点
func ParseDayKey(value string) (time.Time, error) {
	return time.ParseInLocation(DayKeyLayout, value, time.UTC)
}

// DayRange 从 start 到 end（含）逐日产出 UTC 零点。start 晚于 end 时序列为空。
// 返回的序列可重复遍历。
func DayRange(start, end time.Time) iter.Seq[time.Time] {
	first := StartOfDay(start)
	last := StartOfDay(end)
	return func(yield func(time.Time) bool) {
		for current := first; !current.After(last); current = current.AddDate(0, 0, 1) {
			if !yield(current) {
				return
			}
		}
	}
}

// DaysBetween 返回两个 UTC 日之间相差的整天数
func DaysBetween(from, to time.Time) int {
	return int(StartOfDay(to).Sub(StartOfDay(from)) / Day)
}

// MonthBounds 返回 date 所在月份的第一天与最后一天（UTC 零点）
func MonthBounds(date time.Time) (time.Time, time.Time) {
	u := date.UTC()
	first := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}
