package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mika2333/daily_english_server/config"
	"github.com/mika2333/daily_english_server/internal/database"
	"github.com/mika2333/daily_english_server/internal/pkg/cron"
	"github.com/mika2333/daily_english_server/internal/pkg/datekey"
	"github.com/mika2333/daily_english_server/internal/pkg/queue"
	"github.com/mika2333/daily_english_server/internal/repository"
	"github.com/mika2333/daily_english_server/internal/service"
)

// dispatcher 单实例运行：每分钟把到点用户的配信任务入队，
// 实际发送由 worker 消费；当日去重靠配信占位记录兜底
func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	calendar, err := datekey.New(cfg.Delivery.Timezone, cfg.Delivery.DayBoundaryHour)
	if err != nil {
		log.Fatalf("Failed to init calendar: %v", err)
	}

	deliveryService := service.NewDeliveryService(
		repository.NewUserRepository(db),
		repository.NewDeliveryRepository(db),
		repository.NewTopicRepository(db),
		repository.NewBillingRepository(db),
		queue.NewQueue(rdb, cfg.Queue.DeliveryQueue),
		calendar,
		nil, // 调度只入队，不生成
		nil, // 也不发信
		nil,
		cfg,
	)

	cronService := cron.NewService(deliveryService)
	cronService.Start()
	log.Println("Dispatcher started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal")
	cronService.Stop()
	log.Println("Dispatcher shutdown complete")
}
