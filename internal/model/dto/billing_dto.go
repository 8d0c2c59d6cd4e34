package dto

// BillingStateResponse 账单状态（只读镜像，客户端不可写）
type BillingStateResponse struct {
	Plan               string `json:"plan"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd   string `json:"current_period_end,omitempty"`
	TrialEndsAt        string `json:"trial_ends_at,omitempty"`
	TrialUsed          bool   `json:"trial_used"`
}

// CheckoutResponse 支付页跳转
type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// ReadResult 阅读确认结果
type ReadResult struct {
	FirstRead bool   `json:"first_read"`
	ReadCount int    `json:"read_count"`
	DateKey   string `json:"date_key"`
}
