package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/siyavash-momeni/tracker/internal/calendar"
	"github.com/siyavash-momeni/tracker/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompletionFilter 指定批量查询条件；Start/End 为闭区间的 UTC 日，零值表示不限
type CompletionFilter struct {
	HabitIDs []string
	OwnerID  string
	Start    time.Time
	End      time.Time
}

// CompletionStore 是进度引擎依赖的打卡存储，按 (habitID, 日期) 唯一
type CompletionStore interface {
	// FindOne 在记录不存在时返回 nil, nil
	FindOne(ctx context.Context, habitID string, date time.Time) (*db.HabitCompletion, error)
	// Upsert 对同一键原子执行，后提交者生效
	Upsert(ctx context.Context, habitID string, date time.Time, value int) (*db.HabitCompletion, error)
	// Delete 幂等，删除不存在的记录不视为错误
	Delete(ctx context.Context, habitID string, date time.Time) error
	// FindMany 不保证顺序
	FindMany(ctx context.Context, filter CompletionFilter) ([]db.HabitCompletion, error)
}

// GormCompletionStore 基于 gorm 实现 CompletionStore
type GormCompletionStore struct {
	db *gorm.DB
}

// NewGormCompletionStore 构造 GormCompletionStore
func NewGormCompletionStore(gdb *gorm.DB) *GormCompletionStore {
	return &GormCompletionStore{db: gdb}
}

// FindOne 查询单日记录
func (s *GormCompletionStore) FindOne(ctx context.Context, habitID string, date time.Time) (*db.HabitCompletion, error) {
	var record db.HabitCompletion
	err := s.db.WithContext(ctx).
		Where("habit_id = ? AND completed_date = ?", habitID, calendar.StartOfDay(date)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find completion: %w", err)
	}
	return &record, nil
}

// Upsert 以 (habit_id, completed_date) 冲突时更新 value
func (s *GormCompletionStore) Upsert(ctx context.Context, habitID string, date time.Time, value int) (*db.HabitCompletion, error) {
	day := calendar.StartOfDay(date)
	record := db.HabitCompletion{
		HabitID:       habitID,
		CompletedDate: day,
		Value:         value,
	}

	tx := s.db.WithContext(ctx)
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_id"}, {Name: "completed_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("upsert completion: %w", err)
	}

	// 冲突更新时已有行保留原 ID，record 上的新 ID 不可用于回查
	var stored db.HabitCompletion
	if err := tx.Where("habit_id = ? AND completed_date = ?", habitID, day).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("reload completion: %w", err)
	}

	return &stored, nil
}

// Delete 删除单日记录
func (s *GormCompletionStore) Delete(ctx context.Context, habitID string, date time.Time) error {
	if err := s.db.WithContext(ctx).
		Where("habit_id = ? AND completed_date = ?", habitID, calendar.StartOfDay(date)).
		Delete(&db.HabitCompletion{}).Error; err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}

// FindMany 按习惯、所有者与日期区间过滤
func (s *GormCompletionStore) FindMany(ctx context.Context, filter CompletionFilter) ([]db.HabitCompletion, error) {
	query := s.db.WithContext(ctx).Model(&db.HabitCompletion{})

	if filter.HabitIDs != nil {
		if len(filter.HabitIDs) == 0 {
			return []db.HabitCompletion{}, nil
		}
		query = query.Where("habit_completions.habit_id IN ?", filter.HabitIDs)
	}
	if filter.OwnerID != "" {
		query = query.Joins("JOIN habits ON habits.id = habit_completions.habit_id").
			Where("habits.user_id = ?", filter.OwnerID)
	}
	if !filter.Start.IsZero() {
		query = query.Where("habit_completions.completed_date >= ?", calendar.StartOfDay(filter.Start))
	}
	if !filter.End.IsZero() {
		// 记录均为零点，闭区间的末日换算为次日零点的开区间
		query = query.Where("habit_completions.completed_date < ?", calendar.StartOfDay(filter.End).AddDate(0, 0, 1))
	}

	var records []db.HabitCompletion
	if err := query.Select("habit_completions.*").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return records, nil
}
