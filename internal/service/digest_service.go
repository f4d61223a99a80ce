package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/siyavash-momeni/tracker/internal/calendar"
	"github.com/siyavash-momeni/tracker/internal/db"
	"github.com/siyavash-momeni/tracker/internal/eventbus"
	"github.com/siyavash-momeni/tracker/internal/logger"
	"gorm.io/gorm"
)

// DispatchLogStore 保存每周摘要的派发状态
type DispatchLogStore interface {
	// Lock 插入 PROCESSING 记录；记录已存在时返回 ErrDispatchConflict
	Lock(ctx context.Context, userID string, weekStart time.Time) error
	MarkSent(ctx context.Context, userID string, weekStart, sentAt time.Time) error
	MarkFailed(ctx context.Context, userID string, weekStart time.Time) error
}

// GormDispatchLogStore 基于唯一索引 (user_id, week_start_date) 实现派发锁
type GormDispatchLogStore struct {
	db *gorm.DB
}

// NewGormDispatchLogStore 构造 GormDispatchLogStore，gdb 需开启 TranslateError
func NewGormDispatchLogStore(gdb *gorm.DB) *GormDispatchLogStore {
	return &GormDispatchLogStore{db: gdb}
}

// Lock 插入派发记录
func (s *GormDispatchLogStore) Lock(ctx context.Context, userID string, weekStart time.Time) error {
	entry := db.EmailDispatchLog{
		UserID:        userID,
		WeekStartDate: calendar.StartOfDay(weekStart),
		Status:        db.DispatchProcessing,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDispatchConflict
		}
		return fmt.Errorf("lock dispatch log: %w", err)
	}
	return nil
}

// MarkSent 记录发送成功
func (s *GormDispatchLogStore) MarkSent(ctx context.Context, userID string, weekStart, sentAt time.Time) error {
	return s.update(ctx, userID, weekStart, map[string]any{"status": db.DispatchSent, "sent_at": sentAt.UTC()})
}

// MarkFailed 记录发送失败
func (s *GormDispatchLogStore) MarkFailed(ctx context.Context, userID string, weekStart time.Time) error {
	return s.update(ctx, userID, weekStart, map[string]any{"status": db.DispatchFailed})
}

func (s *GormDispatchLogStore) update(ctx context.Context, userID string, weekStart time.Time, values map[string]any) error {
	if err := s.db.WithContext(ctx).
		Model(&db.EmailDispatchLog{}).
		Where("user_id = ? AND week_start_date = ?", userID, calendar.StartOfDay(weekStart)).
		Updates(values).Error; err != nil {
		return fmt.Errorf("update dispatch log: %w", err)
	}
	return nil
}

// Recipient 是一个接收周报的用户
type Recipient struct {
	UserID string
	Email  string
}

// RecipientLister 列出开启周报且有邮箱的用户
type RecipientLister interface {
	ListDigestRecipients(ctx context.Context) ([]Recipient, error)
}

// HabitLister 列出用户的习惯
type HabitLister interface {
	List(ctx context.Context, ownerID string) ([]db.Habit, error)
}

// BatchResult 汇总一次批量派发
type BatchResult struct {
	WeekStartDate    time.Time `json:"weekStartDate"`
	ProcessedUsers   int       `json:"processedUsers"`
	Sent             int       `json:"sent"`
	SkippedDuplicate int       `json:"skippedDuplicate"`
	Failed           int       `json:"failed"`
}

// DispatchOutcome 是单个用户的派发结果
type DispatchOutcome string

const (
	OutcomeSent    DispatchOutcome = "sent"
	OutcomeSkipped DispatchOutcome = "skipped"
	OutcomeFailed  DispatchOutcome = "failed"
)

// TestSendResult 是测试发送的结果
type TestSendResult struct {
	SentTo    string `json:"sentTo"`
	MessageID string `json:"messageId"`
}

// DigestOptions 配置 DigestDispatcher
type DigestOptions struct {
	From      string
	SiteURL   string
	UserDelay time.Duration
	Retry     RetryPolicy
	Events    eventbus.Publisher
	Logger    *log.Logger
}

// DigestDispatcher 计算每周统计并发送周报，每个 (用户, 周) 至多发送一次
type DigestDispatcher struct {
	logs       DispatchLogStore
	recipients RecipientLister
	habits     HabitLister
	store      CompletionStore
	sender     EmailSender
	from       string
	siteURL    string
	userDelay  time.Duration
	retry      RetryPolicy
	events     eventbus.Publisher
	logger     *log.Logger
	now        func() time.Time
}

// NewDigestDispatcher 构造派发器；sender 为空或未配置发件人时派发返回 ErrDigestNotConfigured
func NewDigestDispatcher(logs DispatchLogStore, recipients RecipientLister, habits HabitLister, store CompletionStore, sender EmailSender, opts DigestOptions) *DigestDispatcher {
	retry := opts.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &DigestDispatcher{
		logs:       logs,
		recipients: recipients,
		habits:     habits,
		store:      store,
		sender:     sender,
		from:       strings.TrimSpace(opts.From),
		siteURL:    opts.SiteURL,
		userDelay:  opts.UserDelay,
		retry:      retry,
		events:     opts.Events,
		logger:     logger.OrDiscard(opts.Logger),
		now:        time.Now,
	}
}

// WithClock 替换时间来源
func (d *DigestDispatcher) WithClock(now func() time.Time) *DigestDispatcher {
	if now != nil {
		d.now = now
	}
	return d
}

func (d *DigestDispatcher) configured() error {
	if d.sender == nil || d.from == "" {
		return ErrDigestNotConfigured
	}
	return nil
}

// ComputeWeeklyStats 计算用户在 weekStart 所在 ISO 周的统计
func (d *DigestDispatcher) ComputeWeeklyStats(ctx context.Context, userID string, weekStart time.Time) (WeeklyStats, error) {
	start, end := calendar.WeekBounds(weekStart)

	habits, err := d.habits.List(ctx, userID)
	if err != nil {
		return WeeklyStats{}, upstream("list habits", err)
	}
	weekly, err := d.store.FindMany(ctx, CompletionFilter{OwnerID: userID, Start: start, End: end})
	if err != nil {
		return WeeklyStats{}, upstream("list weekly completions", err)
	}
	all, err := d.store.FindMany(ctx, CompletionFilter{OwnerID: userID})
	if err != nil {
		return WeeklyStats{}, upstream("list completions", err)
	}

	stats := WeeklyStats{TotalHabits: len(habits)}
	byHabit := make(map[string]int, len(habits))
	for _, c := range weekly {
		stats.TotalCheckIns += c.Value
		byHabit[c.HabitID] += c.Value
	}

	totalTarget := 0
	for _, habit := range habits {
		target := ConfigFromHabit(habit).WeeklyTarget()
		totalTarget += target
		if target > 0 && byHabit[habit.ID] >= target {
			stats.GoalsReached++
		}
	}
	if totalTarget > 0 {
		rate := math.Round(float64(stats.TotalCheckIns) / float64(totalTarget) * 100)
		stats.CompletionRate = int(min(100, rate))
	}

	dates := make([]time.Time, 0, len(all))
	for _, c := range all {
		dates = append(dates, c.CompletedDate)
	}
	stats.BestStreak = BestStreak(dates)

	return stats, nil
}

func (d *DigestDispatcher) send(ctx context.Context, to string, stats WeeklyStats, weekStart time.Time) (string, error) {
	content, err := BuildDigestContent(stats, weekStart, d.siteURL)
	if err != nil {
		return "", err
	}
	return SendWithRetry(ctx, d.sender, EmailMessage{
		From:    d.from,
		To:      to,
		Subject: content.Subject,
		Text:    content.Text,
		HTML:    content.HTML,
	}, d.retry)
}

// DispatchUser 为单个用户执行 PROCESSING → SENT/FAILED
// 派发锁已被占用时返回 OutcomeSkipped 且不发送
func (d *DigestDispatcher) DispatchUser(ctx context.Context, recipient Recipient, weekStart time.Time) (DispatchOutcome, error) {
	if err := d.configured(); err != nil {
		return OutcomeFailed, err
	}
	weekStart = calendar.WeekStart(weekStart)
	weekKey := calendar.DayKey(weekStart)

	if err := d.logs.Lock(ctx, recipient.UserID, weekStart); err != nil {
		if errors.Is(err, ErrDispatchConflict) {
			d.logger.Info("weekly digest already claimed", "user_id", recipient.UserID, "week_start", weekKey)
			return OutcomeSkipped, nil
		}
		d.logger.Error("unable to lock dispatch log", "user_id", recipient.UserID, "week_start", weekKey, "error", err)
		return OutcomeFailed, upstream("lock dispatch log", err)
	}

	messageID, err := d.computeAndSend(ctx, recipient, weekStart)
	if err != nil {
		d.logger.Error("weekly digest send failed", "user_id", recipient.UserID, "week_start", weekKey, "error", err)
		if markErr := d.logs.MarkFailed(ctx, recipient.UserID, weekStart); markErr != nil {
			d.logger.Error("unable to mark dispatch failed", "user_id", recipient.UserID, "week_start", weekKey, "error", markErr)
		}
		d.publish(ctx, eventbus.RoutingDigestFailed, recipient.UserID, weekKey, db.DispatchFailed, "")
		return OutcomeFailed, err
	}

	if err := d.logs.MarkSent(ctx, recipient.UserID, weekStart, d.now()); err != nil {
		d.logger.Error("unable to mark dispatch sent", "user_id", recipient.UserID, "week_start", weekKey, "error", err)
	}
	d.publish(ctx, eventbus.RoutingDigestSent, recipient.UserID, weekKey, db.DispatchSent, messageID)
	return OutcomeSent, nil
}

func (d *DigestDispatcher) computeAndSend(ctx context.Context, recipient Recipient, weekStart time.Time) (string, error) {
	stats, err := d.ComputeWeeklyStats(ctx, recipient.UserID, weekStart)
	if err != nil {
		return "", err
	}
	messageID, err := d.send(ctx, recipient.Email, stats, weekStart)
	if err != nil {
		return "", upstream("send weekly digest", err)
	}
	return messageID, nil
}

func (d *DigestDispatcher) publish(ctx context.Context, key, userID, weekKey, status, messageID string) {
	eventbus.PublishJSON(ctx, d.events, d.logger, key, eventbus.DigestDispatched{
		UserID:        userID,
		WeekStartDate: weekKey,
		Status:        status,
		MessageID:     messageID,
		OccurredAt:    d.now().UTC(),
	})
}

// RunWeekly 依次处理所有接收者，单个用户失败不影响后续用户
func (d *DigestDispatcher) RunWeekly(ctx context.Context) (BatchResult, error) {
	if err := d.configured(); err != nil {
		return BatchResult{}, err
	}

	weekStart := calendar.WeekStart(d.now())
	result := BatchResult{WeekStartDate: weekStart}

	recipients, err := d.recipients.ListDigestRecipients(ctx)
	if err != nil {
		return result, upstream("list digest recipients", err)
	}
	result.ProcessedUsers = len(recipients)

	for i, recipient := range recipients {
		outcome, _ := d.DispatchUser(ctx, recipient, weekStart)
		switch outcome {
		case OutcomeSent:
			result.Sent++
		case OutcomeSkipped:
			result.SkippedDuplicate++
			continue
		default:
			result.Failed++
		}

		if i < len(recipients)-1 {
			if err := sleepContext(ctx, d.userDelay); err != nil {
				return result, err
			}
		}
	}

	d.logger.Info("weekly digest batch finished",
		"week_start", calendar.DayKey(weekStart),
		"processed", result.ProcessedUsers,
		"sent", result.Sent,
		"skipped", result.SkippedDuplicate,
		"failed", result.Failed,
	)
	return result, nil
}

// SendTest 使用固定统计数据向指定地址发送一封周报，不经过派发锁
func (d *DigestDispatcher) SendTest(ctx context.Context, to string) (TestSendResult, error) {
	if err := d.configured(); err != nil {
		return TestSendResult{}, err
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return TestSendResult{}, validationError(InvalidValue, "recipient is required")
	}

	messageID, err := d.send(ctx, to, SampleWeeklyStats(), calendar.WeekStart(d.now()))
	if err != nil {
		return TestSendResult{}, upstream("send test digest", err)
	}
	return TestSendResult{SentTo: to, MessageID: messageID}, nil
}
