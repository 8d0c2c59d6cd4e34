package cron

import (
	"context"
	"log"
	"time"
)

// Dispatcher 由 DeliveryService 实现
type Dispatcher interface {
	// DispatchDue 扫描当前时刻到点的用户并入队，返回入队数量
	DispatchDue(ctx context.Context, now time.Time) (int, error)
	// ReleaseStaleReservations 清理过期的未发送占位记录，返回清理数量
	ReleaseStaleReservations(ctx context.Context, now time.Time) (int64, error)
}

type Service struct {
	dispatcher Dispatcher
	stopChan   chan struct{}
}

func NewService(dispatcher Dispatcher) *Service {
	return &Service{
		dispatcher: dispatcher,
		stopChan:   make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runDispatchLoop()
	go s.runStaleCleanup()
	log.Println("Cron service started (delivery dispatch + stale cleanup)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runDispatchLoop 每分钟整点扫描一次到点用户
func (s *Service) runDispatchLoop() {
	now := time.Now()
	nextMinute := now.Truncate(time.Minute).Add(time.Minute)
	timer := time.NewTimer(nextMinute.Sub(now))

	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case tick := <-timer.C:
			s.dispatchDue(tick)
			timer.Reset(time.Until(time.Now().Truncate(time.Minute).Add(time.Minute)))
		}
	}
}

func (s *Service) dispatchDue(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.dispatcher.DispatchDue(ctx, now)
	if err != nil {
		log.Printf("Dispatch failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("Dispatched %d deliveries", count)
	}
}

// runStaleCleanup 每小时清理一次遗留的占位记录
func (s *Service) runStaleCleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanupStale()
		}
	}
}

func (s *Service) cleanupStale() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cleaned, err := s.dispatcher.ReleaseStaleReservations(ctx, time.Now())
	if err != nil {
		log.Printf("Stale reservation cleanup failed: %v", err)
		return
	}
	if cleaned > 0 {
		log.Printf("Cleaned %d stale reservations", cleaned)
	}
}

// RunNow 立即执行一次扫描，供管理接口手动触发
func (s *Service) RunNow() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.dispatcher.DispatchDue(ctx, time.Now())
}
