package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mika2333/daily_english_server/config"
	"github.com/mika2333/daily_english_server/internal/api/handler"
	"github.com/mika2333/daily_english_server/internal/api/middleware"
	"github.com/mika2333/daily_english_server/internal/pkg/ratelimit"
)

type Router struct {
	authHandler     *handler.AuthHandler
	settingsHandler *handler.SettingsHandler
	readHandler     *handler.ReadHandler
	statsHandler    *handler.StatsHandler
	billingHandler  *handler.BillingHandler
	deliveryHandler *handler.DeliveryHandler
	legalHandler    *handler.LegalHandler
	adminHandler    *handler.AdminHandler
	limiter         ratelimit.Limiter
	cfg             *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	settingsHandler *handler.SettingsHandler,
	readHandler *handler.ReadHandler,
	statsHandler *handler.StatsHandler,
	billingHandler *handler.BillingHandler,
	deliveryHandler *handler.DeliveryHandler,
	legalHandler *handler.LegalHandler,
	adminHandler *handler.AdminHandler,
	limiter ratelimit.Limiter,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:     authHandler,
		settingsHandler: settingsHandler,
		readHandler:     readHandler,
		statsHandler:    statsHandler,
		billingHandler:  billingHandler,
		deliveryHandler: deliveryHandler,
		legalHandler:    legalHandler,
		adminHandler:    adminHandler,
		limiter:         limiter,
		cfg:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	// 邮件链接落地页与 Stripe 回调都不在 /api/v1 信封之下
	engine.GET("/read", r.readHandler.Confirm)
	engine.GET("/email-change/confirm", r.settingsHandler.ConfirmEmailChangeLanding)
	engine.POST("/stripe/webhook", r.billingHandler.Webhook)

	api := engine.Group("/api/v1")
	{
		// 公开接口 - 认证（限流防注册与撞库滥用）
		auth := api.Group("/auth")
		if r.cfg.RateLimit.Enabled {
			auth.Use(middleware.RateLimit(r.limiter))
		}
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/verify-email", r.authHandler.VerifyEmail)
			auth.GET("/google", r.authHandler.GoogleLogin)
			auth.GET("/google/callback", r.authHandler.GoogleCallback)
		}

		// 公开接口 - 邮箱变更确认（令牌即凭证）与法务页
		api.POST("/settings/email/confirm", r.settingsHandler.ConfirmEmailChange)
		api.POST("/legal/decode", r.legalHandler.Decode)

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			settings := authenticated.Group("/settings")
			{
				settings.GET("", r.settingsHandler.Get)
				settings.PUT("", r.settingsHandler.Update)
				settings.POST("/pause", r.settingsHandler.Pause)
				settings.POST("/resume", r.settingsHandler.Resume)
				settings.POST("/email", r.settingsHandler.RequestEmailChange)
			}

			authenticated.GET("/stats", r.statsHandler.Get)

			billing := authenticated.Group("/billing")
			{
				billing.GET("", r.billingHandler.GetState)
				billing.POST("/checkout", r.billingHandler.CreateCheckout)
				billing.POST("/cancel", r.billingHandler.Cancel)
			}

			authenticated.POST("/trial/send", r.deliveryHandler.SendTrial)
		}

		// 管理接口（口令错误一律 404，不暴露端点存在）
		admin := api.Group("/admin")
		admin.Use(middleware.Admin(r.cfg.Admin.Secret))
		{
			admin.GET("/webhook-events", r.adminHandler.ListWebhookEvents)
			admin.GET("/webhook-events/:id", r.adminHandler.GetWebhookEvent)
			admin.GET("/topics", r.adminHandler.ListTopics)
			admin.POST("/dispatch", r.adminHandler.TriggerDispatch)
		}
	}

	return engine
}
