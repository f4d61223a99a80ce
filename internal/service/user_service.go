package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/siyavash-momeni/tracker/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 身份提供方推送的用户事件类型
const (
	UserEventCreated = "user.created"
	UserEventUpdated = "user.updated"
	UserEventDeleted = "user.deleted"
)

// UserEvent 是一次用户同步事件
type UserEvent struct {
	Type  string
	ID    string
	Email string
}

// UserService 维护本地用户记录与周报偏好
type UserService struct {
	db    *gorm.DB
	cache RangeCache
}

// NewUserService 构造 UserService
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb, cache: NoopRangeCache{}}
}

// WithCache 设置按天计数缓存，删除用户时使其失效
func (s *UserService) WithCache(cache RangeCache) *UserService {
	if cache != nil {
		s.cache = cache
	}
	return s
}

// EnsureUser 用户首次访问时创建占位记录，已存在时不做修改
func (s *UserService) EnsureUser(ctx context.Context, id string) (*db.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, validationError(InvalidValue, "user id is required")
	}

	tx := s.db.WithContext(ctx)
	user := db.User{ID: id, WeeklyEmailEnabled: true}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	if err := tx.First(&user, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// SyncUser 应用身份提供方的用户事件；未知类型直接忽略
func (s *UserService) SyncUser(ctx context.Context, event UserEvent) error {
	id := strings.TrimSpace(event.ID)
	if id == "" {
		return validationError(InvalidValue, "user id is required")
	}
	email := strings.TrimSpace(event.Email)

	switch event.Type {
	case UserEventCreated, UserEventUpdated:
		user := db.User{ID: id, Email: email, WeeklyEmailEnabled: true}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "updated_at"}),
		}).Create(&user).Error; err != nil {
			return fmt.Errorf("sync user: %w", err)
		}
		return nil
	case UserEventDeleted:
		return s.Delete(ctx, id)
	default:
		return nil
	}
}

// Delete 删除用户及其习惯、打卡记录与笔记；派发日志作为审计记录保留
func (s *UserService) Delete(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var habitIDs []string
		if err := tx.Model(&db.Habit{}).Where("user_id = ?", id).Pluck("id", &habitIDs).Error; err != nil {
			return fmt.Errorf("list user habits: %w", err)
		}
		if len(habitIDs) > 0 {
			if err := tx.Where("habit_id IN ?", habitIDs).Delete(&db.HabitCompletion{}).Error; err != nil {
				return fmt.Errorf("delete user completions: %w", err)
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&db.Habit{}).Error; err != nil {
			return fmt.Errorf("delete user habits: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&db.Note{}).Error; err != nil {
			return fmt.Errorf("delete user notes: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&db.User{}).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, id)
	return nil
}

// SetWeeklyEmail 修改周报订阅
func (s *UserService) SetWeeklyEmail(ctx context.Context, id string, enabled bool) (*db.User, error) {
	user, err := s.EnsureUser(ctx, id)
	if err != nil {
		return nil, err
	}
	// 布尔零值不会被 Updates(struct) 写入，按列更新
	if err := s.db.WithContext(ctx).Model(user).Update("weekly_email_enabled", enabled).Error; err != nil {
		return nil, fmt.Errorf("update weekly email preference: %w", err)
	}
	user.WeeklyEmailEnabled = enabled
	return user, nil
}

// ListDigestRecipients 返回开启周报且填写了邮箱的用户
func (s *UserService) ListDigestRecipients(ctx context.Context) ([]Recipient, error) {
	var users []db.User
	if err := s.db.WithContext(ctx).
		Where("weekly_email_enabled = ? AND email <> ?", true, "").
		Order("created_at ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list digest recipients: %w", err)
	}

	recipients := make([]Recipient, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, Recipient{UserID: u.ID, Email: u.Email})
	}
	return recipients, nil
}
