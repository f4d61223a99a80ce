package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Note 是用户的自由文本笔记
type Note struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:191;not null;index"`
	Title     string `gorm:"size:200;not null"`
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate 分配 UUID
func (n *Note) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
