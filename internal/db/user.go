package db

import "time"

// User 对应身份提供方中的一个用户，ID 即提供方的 subject
// WeeklyEmailEnabled 控制是否接收每周摘要邮件
type User struct {
	ID                 string `gorm:"primaryKey;size:191"`
	Email              string `gorm:"size:320"`
	WeeklyEmailEnabled bool   `gorm:"not null;default:true"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
