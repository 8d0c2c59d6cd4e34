package repository

import (
	"gorm.io/gorm"

	"github.com/mika2333/daily_english_server/internal/model"
)

type TopicRepository struct {
	db *gorm.DB
}

func NewTopicRepository(db *gorm.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

func (r *TopicRepository) Create(topic *model.Topic) error {
	return r.db.Create(topic).Error
}

func (r *TopicRepository) ListActive() ([]model.Topic, error) {
	var topics []model.Topic
	err := r.db.Where("active = ?", true).Order("rand").Find(&topics).Error
	return topics, err
}

// PickByRand 取 rand 字段不小于抽签值的第一个主题，没有则回绕到最小值
func (r *TopicRepository) PickByRand(draw float64) (*model.Topic, error) {
	var topic model.Topic
	err := r.db.Where("active = ? AND rand >= ?", true, draw).
		Order("rand").First(&topic).Error
	if err == gorm.ErrRecordNotFound {
		err = r.db.Where("active = ?", true).Order("rand").First(&topic).Error
	}
	if err != nil {
		return nil, err
	}
	return &topic, nil
}
