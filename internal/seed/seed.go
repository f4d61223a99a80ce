// Package seed 为本地开发环境生成演示数据。
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/siyavash-momeni/tracker/internal/calendar"
	"github.com/siyavash-momeni/tracker/internal/db"
	"github.com/siyavash-momeni/tracker/internal/logger"
	"github.com/siyavash-momeni/tracker/internal/service"
	"gorm.io/gorm"
)

const (
	DefaultUserID = "demo_user"
	DefaultEmail  = "demo@example.com"
	DefaultWeeks  = 8
)

// Options 控制生成的数据量
type Options struct {
	UserID string
	Email  string
	Weeks  int
	// Now 为空时使用当前时间
	Now time.Time
	// Cache 非空时写入后使该用户的区间计数缓存失效
	Cache  service.RangeCache
	Logger *log.Logger
}

// Summary 汇总本次写入的记录数
type Summary struct {
	Skipped     bool
	Habits      int
	Completions int
	Notes       int
}

var demoHabits = []service.HabitInput{
	{Title: "冥想", Emoji: "🧘", TargetValue: 1, Frequency: db.FrequencyDaily, ActiveDays: []int{1, 2, 3, 4, 5, 6, 7}},
	{Title: "喝水", Emoji: "💧", TargetValue: 8, Frequency: db.FrequencyDaily, ActiveDays: []int{1, 2, 3, 4, 5, 6, 7}},
	{Title: "跑步", Emoji: "🏃", TargetValue: 3, Frequency: db.FrequencyWeekly, ActiveDays: []int{1, 3, 5, 6}},
	{Title: "阅读", Emoji: "📚", TargetValue: 1, Frequency: db.FrequencyDaily, ActiveDays: []int{1, 2, 3, 4, 5}},
}

var demoNotes = []service.NoteInput{
	{Title: "本周复盘", Content: "早起冥想坚持得不错，周末跑步需要提前安排。"},
	{Title: "下周计划", Content: "每天 8 杯水，周三和周六跑步。"},
}

// Run 为演示用户生成习惯、最近 Weeks 周的打卡与笔记；用户已有习惯时跳过
func Run(ctx context.Context, gdb *gorm.DB, opts Options) (Summary, error) {
	if opts.UserID == "" {
		opts.UserID = DefaultUserID
	}
	if opts.Email == "" {
		opts.Email = DefaultEmail
	}
	if opts.Weeks <= 0 {
		opts.Weeks = DefaultWeeks
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	l := logger.OrDiscard(opts.Logger)

	users := service.NewUserService(gdb).WithCache(opts.Cache)
	if err := users.SyncUser(ctx, service.UserEvent{Type: service.UserEventCreated, ID: opts.UserID, Email: opts.Email}); err != nil {
		return Summary{}, fmt.Errorf("create demo user: %w", err)
	}

	habitService := service.NewHabitService(gdb).WithCache(opts.Cache)
	existing, err := habitService.List(ctx, opts.UserID)
	if err != nil {
		return Summary{}, err
	}
	if len(existing) > 0 {
		l.Info("demo habits already exist, skipping", "user_id", opts.UserID)
		return Summary{Skipped: true}, nil
	}

	progress := service.NewProgressService(habitService, service.NewGormCompletionStore(gdb), opts.Cache, nil, l)

	var summary Summary
	today := calendar.StartOfDay(opts.Now)
	start := today.AddDate(0, 0, -(opts.Weeks*7 - 1))

	for i, input := range demoHabits {
		habit, err := habitService.Create(ctx, opts.UserID, input)
		if err != nil {
			return summary, fmt.Errorf("create habit %q: %w", input.Title, err)
		}
		summary.Habits++

		cfg := service.ConfigFromHabit(*habit)
		for date := range calendar.DayRange(start, today) {
			if !cfg.IsActiveOn(date) {
				continue
			}
			value := demoValue(i, calendar.DaysBetween(start, date), input.TargetValue, cfg.Frequency)
			if value == 0 {
				continue
			}
			if _, err := progress.RecordProgress(ctx, opts.UserID, habit.ID, date, value); err != nil {
				return summary, fmt.Errorf("record progress for %q on %s: %w", input.Title, calendar.DayKey(date), err)
			}
			summary.Completions++
		}
	}

	notes := service.NewNoteService(gdb)
	for _, input := range demoNotes {
		if _, err := notes.Create(ctx, opts.UserID, input); err != nil {
			return summary, fmt.Errorf("create note: %w", err)
		}
		summary.Notes++
	}

	l.Info("demo data generated",
		"user_id", opts.UserID,
		"habits", summary.Habits,
		"completions", summary.Completions,
		"notes", summary.Notes,
	)
	return summary, nil
}

// demoValue 按固定节奏生成进度，每隔几天留一次空白，保证连续天数与完成率有起伏
func demoValue(habitIndex, dayIndex, target int, frequency service.Frequency) int {
	if (dayIndex+habitIndex)%5 == 4 {
		return 0
	}
	if frequency == service.FrequencyWeekly {
		return 1
	}
	if target == 1 {
		return 1
	}
	// 多数日子达标，偶尔只完成一半
	if dayIndex%3 == 0 {
		return target / 2
	}
	return target
}
