package payment

import (
	"fmt"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/mika2333/daily_english_server/config"
)

// Client Stripe 封装
// 订阅状态以 Stripe 为权威，这里只提供取数与少量指令
type Client struct {
	sc  *client.API
	cfg *config.StripeConfig
}

func NewClient(cfg *config.StripeConfig) *Client {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return &Client{sc: sc, cfg: cfg}
}

// VerifyEvent 校验 webhook 签名并解出事件
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, c.cfg.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}

// GetSubscription 重新拉取订阅对象（事件载荷可能比当前状态旧）
func (c *Client) GetSubscription(id string) (*stripe.Subscription, error) {
	return c.sc.Subscriptions.Get(id, nil)
}

// CancelNow 立即取消订阅
func (c *Client) CancelNow(id string) (*stripe.Subscription, error) {
	return c.sc.Subscriptions.Cancel(id, nil)
}

// CancelAtPeriodEnd 预约期末取消，付费期内继续可用
func (c *Client) CancelAtPeriodEnd(id string) (*stripe.Subscription, error) {
	return c.sc.Subscriptions.Update(id, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
}

func (c *Client) GetCustomer(id string) (*stripe.Customer, error) {
	return c.sc.Customers.Get(id, nil)
}

// CreateCheckoutSession 创建订阅支付页会话
// uid 写入 subscription metadata，webhook 对账时作为首选的用户定位手段
func (c *Client) CreateCheckoutSession(customerEmail string, userID int64, trialDays int) (*stripe.CheckoutSession, error) {
	uid := fmt.Sprintf("%d", userID)

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(customerEmail),
		SuccessURL:    stripe.String(c.cfg.SuccessURL),
		CancelURL:     stripe.String(c.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"uid": uid},
		},
	}
	if trialDays > 0 {
		params.SubscriptionData.TrialPeriodDays = stripe.Int64(int64(trialDays))
	}
	params.AddMetadata("uid", uid)

	return c.sc.CheckoutSessions.New(params)
}
