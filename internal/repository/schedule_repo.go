package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mika2333/daily_english_server/internal/model"
)

// ScheduleRepository 配信日历的持久化：星期关闭记录与暂停区间
type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// UpsertWeekdayOverride 记录某星期被关闭及生效日
// 已存在则保留原生效日（关闭时间以首次关闭为准）
func (r *ScheduleRepository) UpsertWeekdayOverride(userID int64, weekday int, disabledSince string) error {
	override := model.WeekdayOverride{
		UserID:        userID,
		Weekday:       weekday,
		DisabledSince: disabledSince,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "weekday"}},
		DoNothing: true,
	}).Create(&override).Error
}

// DeleteWeekdayOverride 星期重新开启时移除关闭记录
func (r *ScheduleRepository) DeleteWeekdayOverride(userID int64, weekday int) error {
	return r.db.Where("user_id = ? AND weekday = ?", userID, weekday).
		Delete(&model.WeekdayOverride{}).Error
}

func (r *ScheduleRepository) ListWeekdayOverrides(userID int64) ([]model.WeekdayOverride, error) {
	var overrides []model.WeekdayOverride
	err := r.db.Where("user_id = ?", userID).Find(&overrides).Error
	return overrides, err
}

// CreatePauseInterval 暂停结束时落盘区间（闭区间）
func (r *ScheduleRepository) CreatePauseInterval(userID int64, startKey, endKey string) error {
	interval := model.PauseInterval{
		UserID:   userID,
		StartKey: startKey,
		EndKey:   endKey,
	}
	return r.db.Create(&interval).Error
}

// ListPauseIntervals 查询与 [fromKey, toKey] 有交集的暂停区间
func (r *ScheduleRepository) ListPauseIntervals(userID int64, fromKey, toKey string) ([]model.PauseInterval, error) {
	var intervals []model.PauseInterval
	err := r.db.
		Where("user_id = ?", userID).
		Where("start_key <= ? AND end_key >= ?", toKey, fromKey).
		Find(&intervals).Error
	return intervals, err
}
