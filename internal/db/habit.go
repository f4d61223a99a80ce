package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 习惯频率
const (
	FrequencyDaily  = "DAILY"
	FrequencyWeekly = "WEEKLY"
)

// Habit 定义了习惯模型
// ActiveDays 以 JSON 数组存储 ISO 星期（1=周一..7=周日），升序去重
// 创建后不可修改，只能整体删除；删除时级联删除打卡记录
type Habit struct {
	ID          string `gorm:"primaryKey;size:36"`
	UserID      string `gorm:"size:191;not null;index"`
	Title       string `gorm:"size:100;not null"`
	Emoji       string
	TargetValue int                      `gorm:"not null"`
	Frequency   string                   `gorm:"size:16;not null"`
	ActiveDays  datatypes.JSONSlice[int] `gorm:"not null"`
	CreatedAt   time.Time
	Completions []HabitCompletion `gorm:"constraint:OnDelete:CASCADE"`
}

// BeforeCreate 为新习惯分配 UUID
func (h *Habit) BeforeCreate(*gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// HabitCompletion 记录某习惯在某个 UTC 日的进度值
// HabitID + CompletedDate 采用唯一索引，保证每天至多一条；Value 为 0 时记录不存在
type HabitCompletion struct {
	ID            string    `gorm:"primaryKey;size:36"`
	HabitID       string    `gorm:"size:36;not null;uniqueIndex:idx_habit_completion_unique,priority:1"`
	CompletedDate time.Time `gorm:"not null;index;uniqueIndex:idx_habit_completion_unique,priority:2"`
	Value         int       `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName 重写确保唯一索引作用到 habit_id + completed_date
func (HabitCompletion) TableName() string {
	return "habit_completions"
}

// BeforeCreate 为新打卡记录分配 UUID
func (c *HabitCompletion) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
