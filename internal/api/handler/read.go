package handler

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mika2333/daily_english_server/internal/service"
)

type ReadHandler struct {
	readService *service.ReadService
}

func NewReadHandler(readService *service.ReadService) *ReadHandler {
	return &ReadHandler{readService: readService}
}

// Confirm 邮件内「我读完了」链接的落地页
// GET /read?t=
// 浏览器直接打开，返回 HTML 而非统一 JSON 信封
func (h *ReadHandler) Confirm(c *gin.Context) {
	token := c.Query("t")
	if token == "" {
		renderLandingPage(c, http.StatusBadRequest, "链接无效", "缺少确认参数，请从邮件内的链接打开。")
		return
	}

	result, err := h.readService.ConfirmRead(token, time.Now())
	if err != nil {
		if errors.Is(err, service.ErrInvalidReadToken) {
			renderLandingPage(c, http.StatusBadRequest, "链接无效或已过期", "请从最新一期邮件内的链接打开。")
			return
		}
		renderLandingPage(c, http.StatusInternalServerError, "出错了", "记录打卡时出现问题，请稍后重试。")
		return
	}

	if result.FirstRead {
		renderLandingPage(c, http.StatusOK, "打卡成功", fmt.Sprintf("已记录 %s 的阅读打卡，继续保持！", result.DateKey))
		return
	}
	renderLandingPage(c, http.StatusOK, "今日已打卡", fmt.Sprintf("%s 的阅读已经记录过了。", result.DateKey))
}

// renderLandingPage 邮件内链接的浏览器落地页
func renderLandingPage(c *gin.Context, status int, title, body string) {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html lang="ja">
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width,initial-scale=1"><title>%s</title></head>
<body style="font-family:sans-serif;max-width:480px;margin:80px auto;text-align:center">
<h1>%s</h1>
<p>%s</p>
</body>
</html>`, html.EscapeString(title), html.EscapeString(title), html.EscapeString(body))

	c.Data(status, "text/html; charset=utf-8", []byte(page))
}
