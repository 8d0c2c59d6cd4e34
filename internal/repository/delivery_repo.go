package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mika2333/daily_english_server/internal/model"
)

type DeliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Reserve 以 (user_id, date_key) 唯一键占位
// 返回 false 表示当日已有记录（已发送或已在发送中），调用方应放弃本次发送
func (r *DeliveryRepository) Reserve(record *model.DeliveryRecord) (bool, error) {
	record.Status = model.DeliveryStatusReserved
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date_key"}},
		DoNothing: true,
	}).Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkSent 发送成功后补全记录
func (r *DeliveryRepository) MarkSent(id int64, messageID, contentJSON, contentURL string, sentAt time.Time) error {
	return r.db.Model(&model.DeliveryRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       model.DeliveryStatusSent,
		"message_id":   messageID,
		"content_json": contentJSON,
		"content_url":  contentURL,
		"sent_at":      sentAt,
	}).Error
}

func (r *DeliveryRepository) GetByID(id int64) (*model.DeliveryRecord, error) {
	var record model.DeliveryRecord
	err := r.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *DeliveryRepository) GetByUserAndDate(userID int64, dateKey string) (*model.DeliveryRecord, error) {
	var record model.DeliveryRecord
	err := r.db.Where("user_id = ? AND date_key = ?", userID, dateKey).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// HasTrial 用户是否发送过试用配信
func (r *DeliveryRepository) HasTrial(userID int64) (bool, error) {
	var count int64
	err := r.db.Model(&model.DeliveryRecord{}).
		Where("user_id = ? AND is_trial = ?", userID, true).
		Count(&count).Error
	return count > 0, err
}

// DeleteStaleReserved 删除指定 dateKey 之前遗留的占位记录
// 进程在发送途中崩溃时会留下 reserved 记录，当日之内保留（维持不重发语义），过日后清理
func (r *DeliveryRepository) DeleteStaleReserved(beforeKey string) (int64, error) {
	result := r.db.
		Where("status = ? AND date_key < ?", model.DeliveryStatusReserved, beforeKey).
		Delete(&model.DeliveryRecord{})
	return result.RowsAffected, result.Error
}
