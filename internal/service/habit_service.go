package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/siyavash-momeni/tracker/internal/db"
	"gorm.io/gorm"
)

// HabitService 负责 Habit 数据的增删查，所有操作都限定在所有者范围内
// 习惯创建后不可修改，只能删除；删除时级联删除打卡记录
type HabitService struct {
	db    *gorm.DB
	cache RangeCache
}

// NewHabitService 构造 HabitService
func NewHabitService(gdb *gorm.DB) *HabitService {
	return &HabitService{db: gdb, cache: NoopRangeCache{}}
}

// WithCache 设置按天计数缓存，删除习惯时使其失效
func (s *HabitService) WithCache(cache RangeCache) *HabitService {
	if cache != nil {
		s.cache = cache
	}
	return s
}

// List 返回用户的习惯，按创建时间倒序
func (s *HabitService) List(ctx context.Context, ownerID string) ([]db.Habit, error) {
	var habits []db.Habit
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return habits, nil
}

// Count 返回用户的习惯数量
func (s *HabitService) Count(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&db.Habit{}).Where("user_id = ?", ownerID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count habits: %w", err)
	}
	return count, nil
}

// Get 根据 ID 获取用户自己的习惯；不属于该用户的习惯同样返回 ErrHabitNotFound
func (s *HabitService) Get(ctx context.Context, ownerID, id string) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}

// Create 校验输入并新建习惯
func (s *HabitService) Create(ctx context.Context, ownerID string, input HabitInput) (*db.Habit, error) {
	cfg, err := NewHabitConfig(input)
	if err != nil {
		return nil, err
	}

	habit := db.Habit{
		UserID:      ownerID,
		Title:       cfg.Title,
		Emoji:       cfg.Emoji,
		TargetValue: cfg.TargetValue,
		Frequency:   string(cfg.Frequency),
		ActiveDays:  cfg.ActiveDays,
	}

	if err := s.db.WithContext(ctx).Create(&habit).Error; err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}
	return &habit, nil
}

// Delete 删除习惯及其全部打卡记录
func (s *HabitService) Delete(ctx context.Context, ownerID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var habit db.Habit
		if err := tx.Where("id = ? AND user_id = ?", id, ownerID).First(&habit).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrHabitNotFound
			}
			return fmt.Errorf("find habit: %w", err)
		}

		if err := tx.Where("habit_id = ?", habit.ID).Delete(&db.HabitCompletion{}).Error; err != nil {
			return fmt.Errorf("delete habit completions: %w", err)
		}
		if err := tx.Delete(&habit).Error; err != nil {
			return fmt.Errorf("delete habit: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, ownerID)
	return nil
}
