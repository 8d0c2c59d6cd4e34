package dto

// WindowStats 单个统计窗口（本周 / 本月）
// Failed 为 true 时其余字段为降级零值，前端按失败态展示
type WindowStats struct {
	HitDays   int     `json:"hit_days"`
	TotalDays int     `json:"total_days"`
	Rate      float64 `json:"rate"`
	Rank      string  `json:"rank"`
	Failed    bool    `json:"failed,omitempty"`
}

// MonthStats 过去 12 个月的单月统计
type MonthStats struct {
	Month     string  `json:"month"` // YYYY-MM
	HitDays   int     `json:"hit_days"`
	TotalDays int     `json:"total_days"`
	Rate      float64 `json:"rate"`
	Rank      string  `json:"rank"`
	Failed    bool    `json:"failed,omitempty"`
}

// StatsResponse 统计聚合响应：任一窗口失败都不影响整体返回
type StatsResponse struct {
	Week          WindowStats  `json:"week"`
	Month         WindowStats  `json:"month"`
	Months        []MonthStats `json:"months"`
	TotalReadDays int64        `json:"total_read_days"`
}
