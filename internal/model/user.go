package model

import (
	"time"
)

type User struct {
	ID           int64   `gorm:"primaryKey" json:"id"`
	Email        string  `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash *string `gorm:"size:255" json:"-"`
	Nickname     string  `gorm:"size:50" json:"nickname"`
	GoogleID     *string `gorm:"column:google_id;size:100;uniqueIndex" json:"-"`

	// 学习设置
	ContentLevel string `gorm:"size:20;default:intermediate" json:"content_level"` // beginner, intermediate, advanced
	WordTarget   int    `gorm:"default:200" json:"word_target"`

	// 配信设置
	DeliveryHour   int  `gorm:"default:7" json:"delivery_hour"`
	DeliveryMinute int  `gorm:"default:0" json:"delivery_minute"`
	DeliverMon     bool `gorm:"default:true" json:"deliver_mon"`
	DeliverTue     bool `gorm:"default:true" json:"deliver_tue"`
	DeliverWed     bool `gorm:"default:true" json:"deliver_wed"`
	DeliverThu     bool `gorm:"default:true" json:"deliver_thu"`
	DeliverFri     bool `gorm:"default:true" json:"deliver_fri"`
	DeliverSat     bool `gorm:"default:true" json:"deliver_sat"`
	DeliverSun     bool `gorm:"default:true" json:"deliver_sun"`

	// 暂停状态：暂停中时记录起始 dateKey，恢复时落盘为 PauseInterval
	PausedSince *string `gorm:"size:10" json:"paused_since,omitempty"`

	// 配信邮箱（可与登录邮箱不同），变更需经确认链接验证
	DeliveryEmail   string `gorm:"size:100" json:"delivery_email"`
	DeliveryEmailOK bool   `gorm:"default:false" json:"delivery_email_verified"`

	EmailVerified         bool       `gorm:"default:false" json:"email_verified"`
	VerificationCode      *string    `gorm:"size:100" json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// DeliverOn 返回指定星期的配信开关
func (u *User) DeliverOn(weekday time.Weekday) bool {
	switch weekday {
	case time.Monday:
		return u.DeliverMon
	case time.Tuesday:
		return u.DeliverTue
	case time.Wednesday:
		return u.DeliverWed
	case time.Thursday:
		return u.DeliverThu
	case time.Friday:
		return u.DeliverFri
	case time.Saturday:
		return u.DeliverSat
	default:
		return u.DeliverSun
	}
}

// WeekdayOverride 某星期被关闭的记录
// 生效日期用于统计口径：关闭当天不回溯豁免（防止漏读后再关闭当天的星期来刷完成率）
type WeekdayOverride struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	UserID        int64     `gorm:"not null;uniqueIndex:idx_weekday_override_user_day,priority:1" json:"user_id"`
	Weekday       int       `gorm:"not null;uniqueIndex:idx_weekday_override_user_day,priority:2" json:"weekday"` // time.Weekday 数值
	DisabledSince string    `gorm:"size:10;not null" json:"disabled_since"`                                       // dateKey
	CreatedAt     time.Time `json:"created_at"`
}

func (WeekdayOverride) TableName() string {
	return "weekday_overrides"
}

// PauseInterval 已结束的暂停区间（闭区间，dateKey）
type PauseInterval struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	StartKey  string    `gorm:"size:10;not null" json:"start_key"`
	EndKey    string    `gorm:"size:10;not null" json:"end_key"`
	CreatedAt time.Time `json:"created_at"`
}

func (PauseInterval) TableName() string {
	return "pause_intervals"
}
