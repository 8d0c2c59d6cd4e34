package model

import (
	"time"
)

// StudyLog 每用户每逻辑日一条阅读记录
// 首次确认阅读时创建，之后仅累加计数与更新 lastReadAt
type StudyLog struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	UserID      int64     `gorm:"not null;uniqueIndex:idx_studylog_user_date,priority:1" json:"user_id"`
	DateKey     string    `gorm:"size:10;not null;uniqueIndex:idx_studylog_user_date,priority:2" json:"date_key"`
	FirstReadAt time.Time `gorm:"not null" json:"first_read_at"`
	LastReadAt  time.Time `gorm:"not null" json:"last_read_at"`
	ReadCount   int       `gorm:"not null;default:1" json:"read_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func (StudyLog) TableName() string {
	return "study_logs"
}
