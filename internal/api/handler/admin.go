package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mika2333/daily_english_server/internal/model"
	"github.com/mika2333/daily_english_server/internal/pkg/response"
	"github.com/mika2333/daily_english_server/internal/service"
)

// DispatchTrigger 手工触发一轮配信调度（cron.Service 实现）
type DispatchTrigger interface {
	RunNow() (int, error)
}

// TopicLister 生效中的主题列表（repository.TopicRepository 实现）
type TopicLister interface {
	ListActive() ([]model.Topic, error)
}

type AdminHandler struct {
	billingService *service.BillingService
	topics         TopicLister
	trigger        DispatchTrigger
}

func NewAdminHandler(billingService *service.BillingService, topics TopicLister, trigger DispatchTrigger) *AdminHandler {
	return &AdminHandler{
		billingService: billingService,
		topics:         topics,
		trigger:        trigger,
	}
}

// ListWebhookEvents webhook 审计记录（新到旧）
// GET /api/v1/admin/webhook-events
func (h *AdminHandler) ListWebhookEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, total, err := h.billingService.ListEvents(limit, offset)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{
		"events": events,
		"total":  total,
	})
}

// GetWebhookEvent 按 Stripe 事件 id 查单条审计记录
// GET /api/v1/admin/webhook-events/:id
func (h *AdminHandler) GetWebhookEvent(c *gin.Context) {
	event, err := h.billingService.GetEvent(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundError(c, "")
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, event)
}

// ListTopics 生效中的配信主题（按抽签区间排序）
// GET /api/v1/admin/topics
func (h *AdminHandler) ListTopics(c *gin.Context) {
	topics, err := h.topics.ListActive()
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{
		"topics": topics,
		"total":  len(topics),
	})
}

// TriggerDispatch 手工触发当前分钟的配信调度
// POST /api/v1/admin/dispatch
func (h *AdminHandler) TriggerDispatch(c *gin.Context) {
	if h.trigger == nil {
		response.ServerError(c, "调度器未运行")
		return
	}

	enqueued, err := h.trigger.RunNow()
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{"enqueued": enqueued})
}
