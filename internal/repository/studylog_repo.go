package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mika2333/daily_english_server/internal/model"
)

type StudyLogRepository struct {
	db *gorm.DB
}

func NewStudyLogRepository(db *gorm.DB) *StudyLogRepository {
	return &StudyLogRepository{db: db}
}

// RecordRead 记一次阅读，返回记录与是否首读
// 首读判定以插入是否成功为准：唯一约束保证并发确认下恰好一次首读，
// 冲突路径在同一事务内原子累加并回读，计数不丢不重
func (r *StudyLogRepository) RecordRead(userID int64, dateKey string, at time.Time) (*model.StudyLog, bool, error) {
	entry := model.StudyLog{
		UserID:      userID,
		DateKey:     dateKey,
		FirstReadAt: at,
		LastReadAt:  at,
		ReadCount:   1,
	}
	first := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date_key"}},
			DoNothing: true,
		}).Create(&entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			first = true
			return nil
		}

		if err := tx.Model(&model.StudyLog{}).
			Where("user_id = ? AND date_key = ?", userID, dateKey).
			Updates(map[string]interface{}{
				"read_count":   gorm.Expr("read_count + 1"),
				"last_read_at": at,
			}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND date_key = ?", userID, dateKey).First(&entry).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &entry, first, nil
}

func (r *StudyLogRepository) GetByUserAndDate(userID int64, dateKey string) (*model.StudyLog, error) {
	var entry model.StudyLog
	err := r.db.Where("user_id = ? AND date_key = ?", userID, dateKey).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListReadKeys 查询 [fromKey, toKey] 内有阅读记录的 dateKey 列表
func (r *StudyLogRepository) ListReadKeys(userID int64, fromKey, toKey string) ([]string, error) {
	var keys []string
	err := r.db.Model(&model.StudyLog{}).
		Where("user_id = ?", userID).
		Where("date_key >= ? AND date_key <= ?", fromKey, toKey).
		Order("date_key").
		Pluck("date_key", &keys).Error
	return keys, err
}

// CountReadDays 用户累计阅读天数
func (r *StudyLogRepository) CountReadDays(userID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.StudyLog{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
