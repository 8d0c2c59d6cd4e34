package middleware

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/mika2333/daily_english_server/internal/pkg/ratelimit"
	"github.com/mika2333/daily_english_server/internal/pkg/response"
)

// RateLimit 按客户端 IP 的固定窗口限流
// 限流器自身出错时放行：防滥用设施不应把正常流量一并拖垮
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Printf("RateLimit: limiter error for %s: %v", c.ClientIP(), err)
			c.Next()
			return
		}

		if !allowed {
			response.RateLimitError(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
