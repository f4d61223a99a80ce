package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 每周摘要派发状态
const (
	DispatchProcessing = "PROCESSING"
	DispatchSent       = "SENT"
	DispatchFailed     = "FAILED"
)

// EmailDispatchLog 记录每个用户每周摘要的派发情况。
// UserID + WeekStartDate 唯一，插入本身即是派发锁；记录只更新不删除。
type EmailDispatchLog struct {
	ID            string    `gorm:"primaryKey;size:36"`
	UserID        string    `gorm:"size:191;not null;uniqueIndex:idx_dispatch_user_week,priority:1"`
	WeekStartDate time.Time `gorm:"not null;uniqueIndex:idx_dispatch_user_week,priority:2"`
	Status        string    `gorm:"size:16;not null"`
	SentAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BeforeCreate 分配 UUID
func (l *EmailDispatchLog) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
