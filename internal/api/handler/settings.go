package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mika2333/daily_english_server/internal/api/middleware"
	"github.com/mika2333/daily_english_server/internal/model/dto"
	"github.com/mika2333/daily_english_server/internal/pkg/response"
	"github.com/mika2333/daily_english_server/internal/service"
)

type SettingsHandler struct {
	settingsService    *service.SettingsService
	emailChangeService *service.EmailChangeService
}

func NewSettingsHandler(
	settingsService *service.SettingsService,
	emailChangeService *service.EmailChangeService,
) *SettingsHandler {
	return &SettingsHandler{
		settingsService:    settingsService,
		emailChangeService: emailChangeService,
	}
}

// Get 获取学习设置
// GET /api/v1/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.settingsService.GetSettings(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, "")
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, resp)
}

// Update 更新学习设置（缺省字段不改动）
// PUT /api/v1/settings
func (h *SettingsHandler) Update(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.settingsService.UpdateSettings(userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, "")
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, resp)
}

// Pause 暂停配信
// POST /api/v1/settings/pause
func (h *SettingsHandler) Pause(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.settingsService.Pause(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, "")
			return
		}
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "配信已暂停", resp)
}

// Resume 恢复配信
// POST /api/v1/settings/resume
func (h *SettingsHandler) Resume(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.settingsService.Resume(userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotPaused):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFoundError(c, "")
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "配信已恢复", resp)
}

// RequestEmailChange 发起配信邮箱变更（确认邮件发往新地址）
// POST /api/v1/settings/email
func (h *SettingsHandler) RequestEmailChange(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.EmailChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.emailChangeService.RequestChange(userID, &req); err != nil {
		switch {
		case errors.Is(err, service.ErrEmailInUse):
			response.Error(c, response.CodeEmailInUse, "")
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFoundError(c, "")
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "确认邮件已发送至新地址", nil)
}

// ConfirmEmailChange 确认邮箱变更（邮件内链接，免登录）
// POST /api/v1/settings/email/confirm
func (h *SettingsHandler) ConfirmEmailChange(c *gin.Context) {
	token := c.Query("t")
	if token == "" {
		var body struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.ParamError(c, "缺少确认令牌")
			return
		}
		token = body.Token
	}

	if err := h.emailChangeService.ConfirmChange(token); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidChangeToken):
			response.Error(c, response.CodeInvalidToken, "")
		case errors.Is(err, service.ErrEmailInUse):
			response.Error(c, response.CodeEmailInUse, "")
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "配信邮箱已更新", nil)
}

// ConfirmEmailChangeLanding 确认邮件内链接的浏览器落地页
// GET /email-change/confirm?t=
// 邮件里的链接由浏览器直接打开，返回 HTML 而非统一 JSON 信封
func (h *SettingsHandler) ConfirmEmailChangeLanding(c *gin.Context) {
	token := c.Query("t")
	if token == "" {
		renderLandingPage(c, http.StatusBadRequest, "链接无效", "缺少确认参数，请从邮件内的链接打开。")
		return
	}

	if err := h.emailChangeService.ConfirmChange(token); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidChangeToken):
			renderLandingPage(c, http.StatusBadRequest, "链接无效或已过期", "请重新发起邮箱变更。")
		case errors.Is(err, service.ErrEmailInUse):
			renderLandingPage(c, http.StatusConflict, "该邮箱已被占用", "此地址已被其他账号使用，请换一个地址重新发起变更。")
		default:
			renderLandingPage(c, http.StatusInternalServerError, "出错了", "处理变更时出现问题，请稍后重试。")
		}
		return
	}

	renderLandingPage(c, http.StatusOK, "变更完成", "配信邮箱已更新，下一期邮件将发送到新地址。")
}
