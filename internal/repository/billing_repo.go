package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mika2333/daily_english_server/internal/model"
)

type BillingRepository struct {
	db *gorm.DB
}

func NewBillingRepository(db *gorm.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

func (r *BillingRepository) GetByUserID(userID int64) (*model.BillingState, error) {
	var state model.BillingState
	err := r.db.Where("user_id = ?", userID).First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *BillingRepository) GetBySubscriptionID(subscriptionID string) (*model.BillingState, error) {
	var state model.BillingState
	err := r.db.Where("stripe_subscription_id = ?", subscriptionID).First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *BillingRepository) GetByCustomerID(customerID string) (*model.BillingState, error) {
	var state model.BillingState
	err := r.db.Where("stripe_customer_id = ?", customerID).First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Save 写入账务状态，trial_used 一旦置位不允许回退
func (r *BillingRepository) Save(state *model.BillingState) error {
	if !state.TrialUsed && state.ID != 0 {
		var current model.BillingState
		if err := r.db.Select("trial_used").Where("id = ?", state.ID).First(&current).Error; err == nil {
			state.TrialUsed = current.TrialUsed
		}
	}
	return r.db.Save(state).Error
}

func (r *BillingRepository) Create(state *model.BillingState) error {
	return r.db.Create(state).Error
}

// ClaimTrial 以邮箱哈希登记试用已消耗，重复登记视为成功
func (r *BillingRepository) ClaimTrial(emailHash string) error {
	claim := model.TrialClaim{EmailHash: emailHash}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email_hash"}},
		DoNothing: true,
	}).Create(&claim).Error
}

// TrialClaimed 该邮箱哈希是否已消耗过试用
func (r *BillingRepository) TrialClaimed(emailHash string) (bool, error) {
	var count int64
	err := r.db.Model(&model.TrialClaim{}).Where("email_hash = ?", emailHash).Count(&count).Error
	return count > 0, err
}

// UpsertEvent 以 Stripe 事件 id 为键幂等写入审计记录
// 重试到达时覆盖处理结果而不是追加
func (r *BillingRepository) UpsertEvent(event *model.WebhookEvent) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"event_type", "outcome", "detail", "updated_at",
		}),
	}).Create(event).Error
}

func (r *BillingRepository) GetEvent(eventID string) (*model.WebhookEvent, error) {
	var event model.WebhookEvent
	err := r.db.Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListEvents 按时间倒序分页返回审计记录
func (r *BillingRepository) ListEvents(limit, offset int) ([]model.WebhookEvent, int64, error) {
	var total int64
	if err := r.db.Model(&model.WebhookEvent{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []model.WebhookEvent
	err := r.db.Order("id DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}
