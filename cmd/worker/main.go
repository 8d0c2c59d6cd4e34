package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mika2333/daily_english_server/config"
	"github.com/mika2333/daily_english_server/internal/database"
	"github.com/mika2333/daily_english_server/internal/pkg/datekey"
	"github.com/mika2333/daily_english_server/internal/pkg/email"
	"github.com/mika2333/daily_english_server/internal/pkg/llm"
	"github.com/mika2333/daily_english_server/internal/pkg/oss"
	"github.com/mika2333/daily_english_server/internal/pkg/queue"
	"github.com/mika2333/daily_english_server/internal/repository"
	"github.com/mika2333/daily_english_server/internal/service"
	"github.com/mika2333/daily_english_server/internal/worker"
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

	jobQueue := queue.NewQueue(rdb, cfg.Queue.DeliveryQueue)

	deliveryService := service.NewDeliveryService(
		repository.NewUserRepository(db),
		repository.NewDeliveryRepository(db),
		repository.NewTopicRepository(db),
		repository.NewBillingRepository(db),
		jobQueue,
		calendar,
		llm.NewClient(&cfg.OpenAI),
		email.NewService(&cfg.Email),
		archiver,
		cfg,
	)

	processor := worker.NewProcessor(deliveryService)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	if backlog, err := jobQueue.Length(ctx); err != nil {
		log.Printf("Warning: failed to read queue backlog: %v", err)
	} else {
		log.Printf("Queue backlog at startup: %d jobs", backlog)
	}

	log.Printf("Worker started, max workers: %d", cfg.Queue.MaxWorkers)

	// 启动 worker 循环
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					job, err := jobQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop job: %v", workerID, err)
						continue
					}

					if job == nil {
						continue // 超时，继续等待
					}

					log.Printf("Worker %d: delivering to user %d on %s", workerID, job.UserID, job.DateKey)
					if err := processor.Process(ctx, job); err != nil {
						log.Printf("Worker %d: delivery to user %d failed: %v", workerID, job.UserID, err)
					}
				}
			}
		}(i)
	}

	<-ctx.Done()
	log.Println("Worker shutdown complete")
}
