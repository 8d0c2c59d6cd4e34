package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v78"
	"gorm.io/gorm"

	"github.com/mika2333/daily_english_server/config"
	"github.com/mika2333/daily_english_server/internal/model"
	"github.com/mika2333/daily_english_server/internal/model/dto"
	"github.com/mika2333/daily_english_server/internal/repository"
)

var (
	ErrBadWebhookSignature   = errors.New("webhook 签名校验失败")
	ErrDuplicateSubscription = errors.New("已存在生效中的订阅")
	ErrNoActiveSubscription  = errors.New("当前没有可取消的订阅")
)

// PaymentProvider Stripe 侧操作（payment.Client 实现，测试注入假实现）
type PaymentProvider interface {
	VerifyEvent(payload []byte, sigHeader string) (*stripe.Event, error)
	GetSubscription(id string) (*stripe.Subscription, error)
	CancelNow(id string) (*stripe.Subscription, error)
	CancelAtPeriodEnd(id string) (*stripe.Subscription, error)
	GetCustomer(id string) (*stripe.Customer, error)
	CreateCheckoutSession(customerEmail string, userID int64, trialDays int) (*stripe.CheckoutSession, error)
}

// TrialNoticeMailer 试用开始通知（nil 则不发）
type TrialNoticeMailer interface {
	SendTrialNotice(to string, trialEnd *time.Time) error
}

// BillingService webhook 对账
// 状态机归 Stripe 所有，这里只是把可能乱序、可能重复的事件流
// 收敛为每用户一份镜像状态
type BillingService struct {
	billingRepo *repository.BillingRepository
	userRepo    *repository.UserRepository
	provider    PaymentProvider
	mailer      TrialNoticeMailer
	cfg         *config.Config
}

func NewBillingService(
	billingRepo *repository.BillingRepository,
	userRepo *repository.UserRepository,
	provider PaymentProvider,
	mailer TrialNoticeMailer,
	cfg *config.Config,
) *BillingService {
	return &BillingService{
		billingRepo: billingRepo,
		userRepo:    userRepo,
		provider:    provider,
		mailer:      mailer,
		cfg:         cfg,
	}
}

// DerivePlan (订阅状态, 是否已排定取消) → 套餐
// 试用期内排定取消立即降级；付费期内排定取消仍保留到期末
func DerivePlan(status string, cancelScheduled bool) string {
	switch status {
	case model.SubStatusTrialing:
		if cancelScheduled {
			return model.PlanFree
		}
		return model.PlanStandard
	case model.SubStatusActive:
		return model.PlanStandard
	default:
		return model.PlanFree
	}
}

// ProcessWebhook 入口：验签、对账、落审计
// 验签失败硬拒（400 不处理不记录）；处理中出错仍落审计并返回错误，
// 由 Stripe 凭 500 重投，幂等 upsert 容忍部分写入后的重试补完
func (s *BillingService) ProcessWebhook(payload []byte, sigHeader string) (string, error) {
	event, err := s.provider.VerifyEvent(payload, sigHeader)
	if err != nil {
		return "", ErrBadWebhookSignature
	}

	outcome, procErr := s.reconcile(event)

	audit := &model.WebhookEvent{
		EventID:   event.ID,
		EventType: string(event.Type),
		Outcome:   outcome,
	}
	if procErr != nil {
		audit.Outcome = model.OutcomeError
		audit.Detail = procErr.Error()
	}
	if err := s.billingRepo.UpsertEvent(audit); err != nil {
		log.Printf("Billing: failed to write audit for event %s: %v", event.ID, err)
		if procErr == nil {
			procErr = err
		}
	}

	return audit.Outcome, procErr
}

func isLifecycleEvent(t string) bool {
	switch t {
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		return true
	}
	return false
}

func (s *BillingService) reconcile(event *stripe.Event) (string, error) {
	if !isLifecycleEvent(string(event.Type)) {
		return model.OutcomeSkipped, nil
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil || sub.ID == "" {
		return model.OutcomeNoSub, nil
	}

	// 事件载荷可能比当前状态薄，活跃订阅以重新拉取的对象为准
	// deleted 事件的对象已不存在，沿用载荷
	if event.Type != "customer.subscription.deleted" {
		if fresh, err := s.provider.GetSubscription(sub.ID); err == nil {
			sub = *fresh
		} else {
			log.Printf("Billing: refetch of subscription %s failed, using payload: %v", sub.ID, err)
		}
	}

	userID, ok := s.resolveUserID(event, &sub)
	if !ok {
		log.Printf("Billing: could not resolve user for event %s (sub %s)", event.ID, sub.ID)
		return model.OutcomeNoUID, nil
	}

	state, err := s.billingRepo.GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = &model.BillingState{UserID: userID, Plan: model.PlanFree}
		if err := s.billingRepo.Create(state); err != nil {
			return model.OutcomeError, err
		}
	} else if err != nil {
		return model.OutcomeError, err
	}

	// 残留事件抑制：已被新订阅取代的旧订阅还会继续来事件，一律忽略
	// 新建订阅本身是换代动作，允许接管当前订阅 id
	if state.StripeSubscriptionID != "" && state.StripeSubscriptionID != sub.ID &&
		event.Type != "customer.subscription.created" {
		return model.OutcomeIgnored, nil
	}

	status := string(sub.Status)
	cancelScheduled := sub.CancelAtPeriodEnd
	plan := DerivePlan(status, cancelScheduled)

	customerID := state.StripeCustomerID
	if sub.Customer != nil && sub.Customer.ID != "" {
		customerID = sub.Customer.ID
	}

	var periodEnd, trialEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0)
		periodEnd = &t
	}
	if sub.TrialEnd > 0 {
		t := time.Unix(sub.TrialEnd, 0)
		trialEnd = &t
	}

	firstTrial := status == model.SubStatusTrialing && !state.TrialUsed

	trialUsed := state.TrialUsed
	if status == model.SubStatusTrialing {
		trialUsed = true
	}

	if s.isNoop(state, plan, status, cancelScheduled, sub.ID, customerID, trialUsed, periodEnd, trialEnd) {
		return model.OutcomeNoop, nil
	}

	state.Plan = plan
	state.SubscriptionStatus = status
	state.CancelAtPeriodEnd = cancelScheduled
	state.CurrentPeriodEnd = periodEnd
	state.TrialEndsAt = trialEnd
	state.StripeSubscriptionID = sub.ID
	state.StripeCustomerID = customerID
	state.TrialUsed = trialUsed

	if err := s.billingRepo.Save(state); err != nil {
		return model.OutcomeError, err
	}

	// 试用消耗按邮箱哈希另行登记：删号重建同邮箱也拿不到第二次试用
	if status == model.SubStatusTrialing {
		if user, err := s.userRepo.GetByID(userID); err == nil {
			if err := s.billingRepo.ClaimTrial(EmailHash(user.Email)); err != nil {
				return model.OutcomeError, err
			}
			// 通知只在首次进入试用时发一封，失败不影响对账
			if firstTrial && s.mailer != nil {
				if err := s.mailer.SendTrialNotice(user.Email, trialEnd); err != nil {
					log.Printf("Billing: trial notice to %s failed: %v", user.Email, err)
				}
			}
		}
	}

	// 试用期内排定取消 → 替 Stripe 把「期末取消」转为「立即取消」
	if status == model.SubStatusTrialing && cancelScheduled {
		if _, err := s.provider.CancelNow(sub.ID); err != nil {
			log.Printf("Billing: immediate cancel of trial subscription %s failed: %v", sub.ID, err)
		}
	}

	return model.OutcomeApplied, nil
}

// resolveUserID 多级回退定位用户：
// 订阅 metadata → 事件对象 metadata → 客户 metadata → 反查本地记录
func (s *BillingService) resolveUserID(event *stripe.Event, sub *stripe.Subscription) (int64, bool) {
	if uid, ok := parseUID(sub.Metadata["uid"]); ok {
		return uid, true
	}

	if meta, ok := event.Data.Object["metadata"].(map[string]interface{}); ok {
		if raw, ok := meta["uid"].(string); ok {
			if uid, ok := parseUID(raw); ok {
				return uid, true
			}
		}
	}

	if sub.Customer != nil && sub.Customer.ID != "" {
		if customer, err := s.provider.GetCustomer(sub.Customer.ID); err == nil {
			if uid, ok := parseUID(customer.Metadata["uid"]); ok {
				return uid, true
			}
		}

		if state, err := s.billingRepo.GetByCustomerID(sub.Customer.ID); err == nil {
			return state.UserID, true
		}
	}

	if state, err := s.billingRepo.GetBySubscriptionID(sub.ID); err == nil {
		return state.UserID, true
	}

	return 0, false
}

func (s *BillingService) isNoop(state *model.BillingState, plan, status string, cancelScheduled bool,
	subID, customerID string, trialUsed bool, periodEnd, trialEnd *time.Time) bool {
	return state.Plan == plan &&
		state.SubscriptionStatus == status &&
		state.CancelAtPeriodEnd == cancelScheduled &&
		state.StripeSubscriptionID == subID &&
		state.StripeCustomerID == customerID &&
		state.TrialUsed == trialUsed &&
		timePtrEqual(state.CurrentPeriodEnd, periodEnd) &&
		timePtrEqual(state.TrialEndsAt, trialEnd)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Unix() == b.Unix()
}

// GetState 账单状态只读镜像
func (s *BillingService) GetState(userID int64) (*dto.BillingStateResponse, error) {
	state, err := s.billingRepo.GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &dto.BillingStateResponse{Plan: model.PlanFree}, nil
	}
	if err != nil {
		return nil, err
	}

	resp := &dto.BillingStateResponse{
		Plan:               state.Plan,
		SubscriptionStatus: state.SubscriptionStatus,
		CancelAtPeriodEnd:  state.CancelAtPeriodEnd,
		TrialUsed:          state.TrialUsed,
	}
	if state.CurrentPeriodEnd != nil {
		resp.CurrentPeriodEnd = state.CurrentPeriodEnd.Format(time.RFC3339)
	}
	if state.TrialEndsAt != nil {
		resp.TrialEndsAt = state.TrialEndsAt.Format(time.RFC3339)
	}
	return resp, nil
}

// CreateCheckout 创建支付页会话
// 已是付费套餐则拒绝；试用资格按账务状态与邮箱哈希双重判断
func (s *BillingService) CreateCheckout(userID int64) (*dto.CheckoutResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	trialDays := s.cfg.Stripe.TrialDays
	state, err := s.billingRepo.GetByUserID(userID)
	if err == nil {
		if state.Plan == model.PlanStandard {
			return nil, ErrDuplicateSubscription
		}
		if state.TrialUsed {
			trialDays = 0
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if trialDays > 0 {
		claimed, err := s.billingRepo.TrialClaimed(EmailHash(user.Email))
		if err != nil {
			return nil, err
		}
		if claimed {
			trialDays = 0
		}
	}

	session, err := s.provider.CreateCheckoutSession(user.Email, userID, trialDays)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &dto.CheckoutResponse{
		URL:       session.URL,
		SessionID: session.ID,
	}, nil
}

// CancelSubscription 预约期末取消当前订阅
// 只向 Stripe 发起预约，本地镜像等 webhook 对账回写；试用期订阅会在
// 对账时被转为立即取消
func (s *BillingService) CancelSubscription(userID int64) error {
	state, err := s.billingRepo.GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoActiveSubscription
	}
	if err != nil {
		return err
	}
	if state.Plan != model.PlanStandard || state.StripeSubscriptionID == "" {
		return ErrNoActiveSubscription
	}
	if state.CancelAtPeriodEnd {
		return nil
	}

	if _, err := s.provider.CancelAtPeriodEnd(state.StripeSubscriptionID); err != nil {
		return fmt.Errorf("failed to schedule cancellation: %w", err)
	}
	return nil
}

// GetEvent 按 Stripe 事件 id 查单条审计记录（管理接口用）
func (s *BillingService) GetEvent(eventID string) (*model.WebhookEvent, error) {
	return s.billingRepo.GetEvent(eventID)
}

// ListEvents 审计记录分页（管理接口用）
func (s *BillingService) ListEvents(limit, offset int) ([]model.WebhookEvent, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.billingRepo.ListEvents(limit, offset)
}

// EmailHash 邮箱的单向哈希（小写规整后 SHA-256）
func EmailHash(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

func parseUID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || uid <= 0 {
		return 0, false
	}
	return uid, true
}
