package model

import (
	"time"
)

// 套餐
const (
	PlanFree     = "free"
	PlanStandard = "standard"
)

// Stripe 订阅状态（枚举归 Stripe 所有，这里仅镜像字符串）
const (
	SubStatusTrialing = "trialing"
	SubStatusActive   = "active"
	SubStatusPastDue  = "past_due"
	SubStatusCanceled = "canceled"
)

// BillingState 每用户一条，镜像支付方的权威状态
// 只允许 webhook 对账逻辑写入，客户端请求绝不直接改动（防止自行升级套餐）
type BillingState struct {
	ID                 int64      `gorm:"primaryKey" json:"id"`
	UserID             int64      `gorm:"not null;uniqueIndex" json:"user_id"`
	Plan               string     `gorm:"size:20;not null;default:free" json:"plan"`
	SubscriptionStatus string     `gorm:"size:32" json:"subscription_status"`
	CancelAtPeriodEnd  bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	TrialUsed          bool       `gorm:"default:false" json:"trial_used"` // 单向：一旦为 true 永不重置

	StripeCustomerID     string `gorm:"size:100;index" json:"-"`
	StripeSubscriptionID string `gorm:"size:100;index" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BillingState) TableName() string {
	return "billing_states"
}

// webhook 事件处理结果分类
const (
	OutcomeApplied = "applied" // 状态已写入
	OutcomeIgnored = "ignored" // 过期订阅的残留事件，未做任何改动
	OutcomeSkipped = "skipped" // 不关心的事件类型
	OutcomeNoUID   = "no_uid"  // 所有解析策略都未能定位用户
	OutcomeNoSub   = "no_sub"  // 事件中无订阅对象
	OutcomeNoop    = "noop"    // 状态与现存完全一致
	OutcomeError   = "error"   // 处理途中抛错（可能已部分写入，重试可补完）
)

// WebhookEvent 入站事件审计记录，以 Stripe 事件 id 为键幂等 upsert
// 仅是审计痕迹，不是状态来源
type WebhookEvent struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"size:100;not null;uniqueIndex" json:"event_id"`
	EventType string    `gorm:"size:100;not null" json:"event_type"`
	Outcome   string    `gorm:"size:20;not null" json:"outcome"`
	Detail    string    `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// TrialClaim 试用已被使用的邮箱哈希（SHA-256）
// 删号重建同邮箱账号也无法再次获得试用
type TrialClaim struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	EmailHash string    `gorm:"size:64;not null;uniqueIndex" json:"email_hash"`
	CreatedAt time.Time `json:"created_at"`
}

func (TrialClaim) TableName() string {
	return "trial_claims"
}
