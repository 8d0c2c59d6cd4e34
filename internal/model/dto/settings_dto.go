package dto

// SettingsResponse 学习设置
type SettingsResponse struct {
	Nickname        string   `json:"nickname"`
	ContentLevel    string   `json:"content_level"`
	WordTarget      int      `json:"word_target"`
	DeliveryHour    int      `json:"delivery_hour"`
	DeliveryMinute  int      `json:"delivery_minute"`
	DeliverWeekdays [7]bool  `json:"deliver_weekdays"` // 周日起始，与 time.Weekday 对齐
	Paused          bool     `json:"paused"`
	PausedSince     string   `json:"paused_since,omitempty"`
	DeliveryEmail   string   `json:"delivery_email"`
	DeliveryEmailOK bool     `json:"delivery_email_verified"`
}

// UpdateSettingsRequest 更新学习设置请求（缺省字段不改动）
type UpdateSettingsRequest struct {
	Nickname        *string  `json:"nickname,omitempty" binding:"omitempty,max=50"`
	ContentLevel    *string  `json:"content_level,omitempty" binding:"omitempty,oneof=beginner intermediate advanced"`
	WordTarget      *int     `json:"word_target,omitempty" binding:"omitempty,min=50,max=1000"`
	DeliveryHour    *int     `json:"delivery_hour,omitempty" binding:"omitempty,min=0,max=23"`
	DeliveryMinute  *int     `json:"delivery_minute,omitempty" binding:"omitempty,min=0,max=59"`
	DeliverWeekdays *[7]bool `json:"deliver_weekdays,omitempty"`
}

// EmailChangeRequest 配信邮箱变更请求
type EmailChangeRequest struct {
	NewEmail string `json:"new_email" binding:"required,email"`
}
