package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mika2333/daily_english_server/internal/api/middleware"
	"github.com/mika2333/daily_english_server/internal/pkg/response"
	"github.com/mika2333/daily_english_server/internal/service"
)

type DeliveryHandler struct {
	deliveryService *service.DeliveryService
}

func NewDeliveryHandler(deliveryService *service.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{deliveryService: deliveryService}
}

// SendTrial 体验配信（即时发送一期，终身一次）
// POST /api/v1/trial/send
func (h *DeliveryHandler) SendTrial(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	record, err := h.deliveryService.SendTrial(c.Request.Context(), userID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTrialAlreadySent):
			response.Error(c, response.CodeTrialUsed, err.Error())
		case errors.Is(err, service.ErrAlreadyDelivered):
			response.Error(c, response.CodeAlreadySent, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFoundError(c, "")
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "体验邮件已发送", gin.H{
		"date_key": record.DateKey,
		"topic":    record.Topic,
	})
}
