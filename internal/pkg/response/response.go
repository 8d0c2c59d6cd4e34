package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误码定义
const (
	CodeSuccess        = 0
	CodeParamError     = 1000
	CodeAuthFailed     = 1001
	CodeNotFound       = 1003
	CodeRateLimited    = 1004
	CodeAlreadySent    = 1005
	CodeEmailInUse     = 1006
	CodeTrialUsed      = 1007
	CodeDuplicateSub   = 1008
	CodeInvalidToken   = 1009
	CodeServerError    = 5000
)

// 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:      "success",
	CodeParamError:   "参数错误",
	CodeAuthFailed:   "认证失败",
	CodeNotFound:     "资源不存在",
	CodeRateLimited:  "请求过于频繁",
	CodeAlreadySent:  "今日已配信",
	CodeEmailInUse:   "邮箱已被使用",
	CodeTrialUsed:    "试用已被使用",
	CodeDuplicateSub: "已存在有效订阅",
	CodeInvalidToken: "链接无效或已过期",
	CodeServerError:  "服务器内部错误",
}

// 错误码对应的 HTTP 状态
// 认证失败必须是 401、参数类 400、限流 429、依赖故障 500（对外重试语义依赖真实状态码）
var codeStatus = map[int]int{
	CodeSuccess:      http.StatusOK,
	CodeParamError:   http.StatusBadRequest,
	CodeAuthFailed:   http.StatusUnauthorized,
	CodeNotFound:     http.StatusNotFound,
	CodeRateLimited:  http.StatusTooManyRequests,
	CodeAlreadySent:  http.StatusConflict,
	CodeEmailInUse:   http.StatusConflict,
	CodeTrialUsed:    http.StatusConflict,
	CodeDuplicateSub: http.StatusConflict,
	CodeInvalidToken: http.StatusBadRequest,
	CodeServerError:  http.StatusInternalServerError,
}

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	if message == "" {
		message = codeMessages[code]
	}
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// AuthError 认证失败
func AuthError(c *gin.Context, message string) {
	Error(c, CodeAuthFailed, message)
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, message string) {
	Error(c, CodeNotFound, message)
}

// RateLimitError 限流
func RateLimitError(c *gin.Context, message string) {
	Error(c, CodeRateLimited, message)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}
