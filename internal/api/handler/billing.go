package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mika2333/daily_english_server/internal/api/middleware"
	"github.com/mika2333/daily_english_server/internal/pkg/response"
	"github.com/mika2333/daily_english_server/internal/service"
)

type BillingHandler struct {
	billingService *service.BillingService
}

func NewBillingHandler(billingService *service.BillingService) *BillingHandler {
	return &BillingHandler{billingService: billingService}
}

// GetState 账单状态
// GET /api/v1/billing
func (h *BillingHandler) GetState(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	state, err := h.billingService.GetState(userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, state)
}

// CreateCheckout 创建支付页会话
// POST /api/v1/billing/checkout
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.billingService.CreateCheckout(userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateSubscription):
			response.Error(c, response.CodeDuplicateSub, "")
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFoundError(c, "")
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// Cancel 预约期末取消订阅
// POST /api/v1/billing/cancel
func (h *BillingHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	if err := h.billingService.CancelSubscription(userID); err != nil {
		if errors.Is(err, service.ErrNoActiveSubscription) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, nil)
}

// Webhook Stripe webhook 入口
// POST /stripe/webhook
// 不走统一信封：Stripe 只认 HTTP 状态码
// 验签失败 400（不重投）；处理失败 500（Stripe 按策略重投）
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.String(http.StatusBadRequest, "cannot read body")
		return
	}

	outcome, err := h.billingService.ProcessWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, service.ErrBadWebhookSignature) {
			c.String(http.StatusBadRequest, "invalid signature")
			return
		}
		c.String(http.StatusInternalServerError, "processing failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}
