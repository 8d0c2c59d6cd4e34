package model

import (
	"time"
)

// 配信记录状态
const (
	DeliveryStatusReserved = "reserved"
	DeliveryStatusSent     = "sent"
)

// DeliveryRecord 每用户每逻辑日至多一条
// 先以 reserved 占位再发送：即使进程在发送途中崩溃也能留下尝试痕迹，
// 宁可漏发一封也不重复发送
type DeliveryRecord struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	UserID     int64  `gorm:"not null;uniqueIndex:idx_delivery_user_date,priority:1" json:"user_id"`
	DateKey    string `gorm:"size:10;not null;uniqueIndex:idx_delivery_user_date,priority:2" json:"date_key"`
	Status     string `gorm:"size:20;not null;default:reserved" json:"status"`
	Topic      string `gorm:"size:100" json:"topic"`
	Level      string `gorm:"size:20" json:"level"`
	WordTarget int    `json:"word_target"`
	IsTrial    bool   `gorm:"default:false" json:"is_trial"`

	// 生成内容：正文存库，归档后记 URL
	ContentJSON string `gorm:"type:text" json:"-"`
	ContentURL  string `gorm:"size:500" json:"content_url,omitempty"`

	// 邮件服务商返回的 message id
	MessageID string     `gorm:"size:200" json:"message_id,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DeliveryRecord) TableName() string {
	return "delivery_records"
}

// Article 生成的阅读材料（配信记录中以 JSON 落盘）
type Article struct {
	EnglishText         string   `json:"english_text"`
	ImportantWords      []string `json:"important_words"`
	JapaneseTranslation string   `json:"japanese_translation"`
}

// Topic 每日主题池，rand 字段用于加权抽取
type Topic struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Rand      float64   `gorm:"not null;index" json:"rand"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (Topic) TableName() string {
	return "topics"
}
