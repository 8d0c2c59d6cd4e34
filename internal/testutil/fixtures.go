package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/mika2333/daily_english_server/internal/model"
)

var fixtureSeq int64

func nextSeq() int64 {
	return atomic.AddInt64(&fixtureSeq, 1)
}

// TestUser 创建测试用户（默认全周配信、已验证邮箱）
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	seq := nextSeq()
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	user := &model.User{
		Email:           fmt.Sprintf("test_%d@example.com", seq),
		PasswordHash:    &passwordHash,
		Nickname:        fmt.Sprintf("testuser_%d", seq),
		ContentLevel:    "intermediate",
		WordTarget:      200,
		DeliveryHour:    7,
		DeliveryMinute:  0,
		DeliverMon:      true,
		DeliverTue:      true,
		DeliverWed:      true,
		DeliverThu:      true,
		DeliverFri:      true,
		DeliverSat:      true,
		DeliverSun:      true,
		EmailVerified:   true,
		DeliveryEmailOK: true,
	}
	user.DeliveryEmail = user.Email

	for _, opt := range opts {
		opt(user)
	}

	// 带 default 标签的 false 值在 Create 时被 gorm 省略并回填为 true，
	// 先记下星期开关，创建后用 map 更新强制落盘，再恢复内存值
	weekdays := map[string]interface{}{
		"deliver_mon": user.DeliverMon,
		"deliver_tue": user.DeliverTue,
		"deliver_wed": user.DeliverWed,
		"deliver_thu": user.DeliverThu,
		"deliver_fri": user.DeliverFri,
		"deliver_sat": user.DeliverSat,
		"deliver_sun": user.DeliverSun,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	if err := db.Model(user).Updates(weekdays).Error; err != nil {
		t.Fatalf("Failed to apply weekday flags to test user: %v", err)
	}
	user.DeliverMon = weekdays["deliver_mon"].(bool)
	user.DeliverTue = weekdays["deliver_tue"].(bool)
	user.DeliverWed = weekdays["deliver_wed"].(bool)
	user.DeliverThu = weekdays["deliver_thu"].(bool)
	user.DeliverFri = weekdays["deliver_fri"].(bool)
	user.DeliverSat = weekdays["deliver_sat"].(bool)
	user.DeliverSun = weekdays["deliver_sun"].(bool)

	return user
}

// WithEmail 设置登录邮箱（同时同步配信邮箱）
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
		u.DeliveryEmail = email
	}
}

// WithNickname 设置昵称
func WithNickname(nickname string) func(*model.User) {
	return func(u *model.User) {
		u.Nickname = nickname
	}
}

// WithDeliveryTime 设置配信时刻
func WithDeliveryTime(hour, minute int) func(*model.User) {
	return func(u *model.User) {
		u.DeliveryHour = hour
		u.DeliveryMinute = minute
	}
}

// WithWeekdays 按 [日,一,二,三,四,五,六] 设置配信星期
func WithWeekdays(days [7]bool) func(*model.User) {
	return func(u *model.User) {
		u.DeliverSun = days[0]
		u.DeliverMon = days[1]
		u.DeliverTue = days[2]
		u.DeliverWed = days[3]
		u.DeliverThu = days[4]
		u.DeliverFri = days[5]
		u.DeliverSat = days[6]
	}
}

// WithPausedSince 设置暂停起始日
func WithPausedSince(dateKey string) func(*model.User) {
	return func(u *model.User) {
		u.PausedSince = &dateKey
	}
}

// WithLevel 设置内容难度与单词目标
func WithLevel(level string, wordTarget int) func(*model.User) {
	return func(u *model.User) {
		u.ContentLevel = level
		u.WordTarget = wordTarget
	}
}

// WithGoogleID 设置为 Google 登录用户
func WithGoogleID(googleID string) func(*model.User) {
	return func(u *model.User) {
		u.GoogleID = &googleID
		u.PasswordHash = nil
	}
}

// TestDelivery 创建配信记录（默认已发送）
func TestDelivery(t *testing.T, db *gorm.DB, userID int64, dateKey string, opts ...func(*model.DeliveryRecord)) *model.DeliveryRecord {
	t.Helper()

	now := time.Now()
	record := &model.DeliveryRecord{
		UserID:     userID,
		DateKey:    dateKey,
		Status:     model.DeliveryStatusSent,
		Topic:      "travel",
		Level:      "intermediate",
		WordTarget: 200,
		SentAt:     &now,
	}

	for _, opt := range opts {
		opt(record)
	}

	if err := db.Create(record).Error; err != nil {
		t.Fatalf("Failed to create test delivery: %v", err)
	}

	return record
}

// WithReserved 保持占位状态（未发送）
func WithReserved() func(*model.DeliveryRecord) {
	return func(r *model.DeliveryRecord) {
		r.Status = model.DeliveryStatusReserved
		r.SentAt = nil
	}
}

// WithTrial 标记为试用配信
func WithTrial() func(*model.DeliveryRecord) {
	return func(r *model.DeliveryRecord) {
		r.IsTrial = true
	}
}

// TestStudyLog 创建阅读记录
func TestStudyLog(t *testing.T, db *gorm.DB, userID int64, dateKey string) *model.StudyLog {
	t.Helper()

	now := time.Now()
	logEntry := &model.StudyLog{
		UserID:      userID,
		DateKey:     dateKey,
		FirstReadAt: now,
		LastReadAt:  now,
		ReadCount:   1,
	}

	if err := db.Create(logEntry).Error; err != nil {
		t.Fatalf("Failed to create test study log: %v", err)
	}

	return logEntry
}

// TestTopic 创建主题
func TestTopic(t *testing.T, db *gorm.DB, name string, rand float64) *model.Topic {
	t.Helper()

	topic := &model.Topic{
		Name:   name,
		Rand:   rand,
		Active: true,
	}

	if err := db.Create(topic).Error; err != nil {
		t.Fatalf("Failed to create test topic: %v", err)
	}

	return topic
}

// TestBillingState 创建账务状态
func TestBillingState(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.BillingState)) *model.BillingState {
	t.Helper()

	state := &model.BillingState{
		UserID: userID,
		Plan:   model.PlanFree,
	}

	for _, opt := range opts {
		opt(state)
	}

	if err := db.Create(state).Error; err != nil {
		t.Fatalf("Failed to create test billing state: %v", err)
	}

	return state
}

// WithPlan 设置套餐与订阅状态
func WithPlan(plan, status string) func(*model.BillingState) {
	return func(s *model.BillingState) {
		s.Plan = plan
		s.SubscriptionStatus = status
	}
}

// WithStripeIDs 设置 Stripe 侧标识
func WithStripeIDs(customerID, subscriptionID string) func(*model.BillingState) {
	return func(s *model.BillingState) {
		s.StripeCustomerID = customerID
		s.StripeSubscriptionID = subscriptionID
	}
}

// WithTrialUsed 标记试用已消耗
func WithTrialUsed() func(*model.BillingState) {
	return func(s *model.BillingState) {
		s.TrialUsed = true
	}
}
