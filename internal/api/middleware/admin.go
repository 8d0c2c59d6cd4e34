package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/mika2333/daily_english_server/internal/pkg/response"
)

// Admin 管理接口鉴权
// 校验失败返回 404 而非 401，对外不暴露管理端点的存在
func Admin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-Admin-Secret")
		if provided == "" {
			provided = c.Query("secret")
		}
		if secret == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			response.NotFoundError(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
