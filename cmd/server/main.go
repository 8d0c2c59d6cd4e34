package main

import (
	"fmt"
	"log"
	"time"

	"github.com/mika2333/daily_english_server/config"
	"github.com/mika2333/daily_english_server/internal/api"
	"github.com/mika2333/daily_english_server/internal/api/handler"
	"github.com/mika2333/daily_english_server/internal/database"
	"github.com/mika2333/daily_english_server/internal/pkg/cipher"
	"github.com/mika2333/daily_english_server/internal/pkg/cron"
	"github.com/mika2333/daily_english_server/internal/pkg/datekey"
	"github.com/mika2333/daily_english_server/internal/pkg/email"
	"github.com/mika2333/daily_english_server/internal/pkg/llm"
	"github.com/mika2333/daily_english_server/internal/pkg/oauth"
	"github.com/mika2333/daily_english_server/internal/pkg/oss"
	"github.com/mika2333/daily_english_server/internal/pkg/payment"
	"github.com/mika2333/daily_english_server/internal/pkg/queue"
	"github.com/mika2333/daily_english_server/internal/pkg/ratelimit"
	"github.com/mika2333/daily_english_server/internal/repository"
	"github.com/mika2333/daily_english_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 逻辑日历（固定时区 + 日界）
	calendar, err := datekey.New(cfg.Delivery.Timezone, cfg.Delivery.DayBoundaryHour)
	if err != nil {
		log.Fatalf("Failed to init calendar: %v", err)
	}

	// 初始化 OSS（可选）
	var archiver service.ArticleArchiver
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			archiver = ossClient
			log.Println("OSS client initialized")
		}
	}

	// 外部服务客户端
	mailer := email.NewService(&cfg.Email)
	generator := llm.NewClient(&cfg.OpenAI)
	paymentClient := payment.NewClient(&cfg.Stripe)
	jobQueue := queue.NewQueue(rdb, cfg.Queue.DeliveryQueue)

	codec, err := cipher.New(cfg.Cipher.Key, cfg.Cipher.Alphabet)
	if err != nil {
		log.Fatalf("Failed to init cipher codec: %v", err)
	}

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	topicRepo := repository.NewTopicRepository(db)
	studyLogRepo := repository.NewStudyLogRepository(db)
	billingRepo := repository.NewBillingRepository(db)

	// 初始化 Service
	authService := service.NewAuthService(userRepo, billingRepo, mailer, cfg)
	settingsService := service.NewSettingsService(userRepo, scheduleRepo, calendar, cfg)
	emailChangeService := service.NewEmailChangeService(userRepo, mailer, cfg)
	readService := service.NewReadService(studyLogRepo, cfg)
	statsService := service.NewStatsService(userRepo, studyLogRepo, scheduleRepo, calendar)
	deliveryService := service.NewDeliveryService(
		userRepo, deliveryRepo, topicRepo, billingRepo,
		jobQueue, calendar, generator, mailer, archiver, cfg,
	)
	billingService := service.NewBillingService(billingRepo, userRepo, paymentClient, mailer, cfg)

	// 管理端手工触发走与 dispatcher 相同的一轮调度
	dispatchTrigger := cron.NewService(deliveryService)

	// 限流器：多实例部署依赖 Redis 共享计数
	window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
	limiter := ratelimit.Limiter(ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.Limit, window))

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService, oauth.NewStateStore(rdb))
	settingsHandler := handler.NewSettingsHandler(settingsService, emailChangeService)
	readHandler := handler.NewReadHandler(readService)
	statsHandler := handler.NewStatsHandler(statsService)
	billingHandler := handler.NewBillingHandler(billingService)
	deliveryHandler := handler.NewDeliveryHandler(deliveryService)
	legalHandler := handler.NewLegalHandler(codec)
	adminHandler := handler.NewAdminHandler(billingService, topicRepo, dispatchTrigger)

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		settingsHandler,
		readHandler,
		statsHandler,
		billingHandler,
		deliveryHandler,
		legalHandler,
		adminHandler,
		limiter,
		cfg,
	)

	engine := router.Setup()
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server listening on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
