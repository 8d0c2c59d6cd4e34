package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mika2333/daily_english_server/internal/api/middleware"
	"github.com/mika2333/daily_english_server/internal/pkg/response"
	"github.com/mika2333/daily_english_server/internal/service"
)

type StatsHandler struct {
	statsService *service.StatsService
}

func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// Get 学习统计
// GET /api/v1/stats
// 恒定 200：部分窗口查询失败以 failed 标记降级，不整体报错
func (h *StatsHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	response.Success(c, h.statsService.GetStats(userID, time.Now()))
}
