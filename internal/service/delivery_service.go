package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"time"

	"gorm.io/gorm"

	"github.com/mika2333/daily_english_server/config"
	"github.com/mika2333/daily_english_server/internal/model"
	"github.com/mika2333/daily_english_server/internal/pkg/datekey"
	"github.com/mika2333/daily_english_server/internal/pkg/queue"
	"github.com/mika2333/daily_english_server/internal/pkg/readtoken"
	"github.com/mika2333/daily_english_server/internal/repository"
)

var (
	ErrAlreadyDelivered = errors.New("今日已配信")
	ErrTrialAlreadySent = errors.New("试用邮件已发送过")
	ErrNoTopics         = errors.New("主题池为空")
)

// ArticleGenerator 教材生成
type ArticleGenerator interface {
	Generate(ctx context.Context, topic, level string, wordTarget int) (*model.Article, error)
}

// DailyMailer 配信邮件发送，返回服务商 message id
type DailyMailer interface {
	SendDaily(to, nickname, topic string, article *model.Article, readLink string) (string, error)
}

// ArticleArchiver 教材归档（可为 nil，归档失败不阻断配信）
type ArticleArchiver interface {
	UploadArticle(dateKey string, deliveryID int64, data []byte) (string, error)
}

type DeliveryService struct {
	userRepo     *repository.UserRepository
	deliveryRepo *repository.DeliveryRepository
	topicRepo    *repository.TopicRepository
	billingRepo  *repository.BillingRepository
	jobQueue     *queue.Queue
	calendar     *datekey.Calendar
	generator    ArticleGenerator
	mailer       DailyMailer
	archiver     ArticleArchiver
	cfg          *config.Config

	// 主题抽签，测试中注入固定值
	drawFn func() float64
}

func NewDeliveryService(
	userRepo *repository.UserRepository,
	deliveryRepo *repository.DeliveryRepository,
	topicRepo *repository.TopicRepository,
	billingRepo *repository.BillingRepository,
	jobQueue *queue.Queue,
	calendar *datekey.Calendar,
	generator ArticleGenerator,
	mailer DailyMailer,
	archiver ArticleArchiver,
	cfg *config.Config,
) *DeliveryService {
	return &DeliveryService{
		userRepo:     userRepo,
		deliveryRepo: deliveryRepo,
		topicRepo:    topicRepo,
		billingRepo:  billingRepo,
		jobQueue:     jobQueue,
		calendar:     calendar,
		generator:    generator,
		mailer:       mailer,
		archiver:     archiver,
		cfg:          cfg,
		drawFn:       rand.Float64,
	}
}

// DispatchDue 扫描配信时刻恰为当前 hh:mm 的用户并入队
func (s *DeliveryService) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	hour, minute := s.calendar.ClockIn(now)
	todayKey := s.calendar.Key(now)

	users, err := s.userRepo.ListDueAt(hour, minute)
	if err != nil {
		return 0, err
	}

	weekday, err := s.calendar.Weekday(todayKey)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range users {
		user := &users[i]
		if !user.DeliverOn(weekday) || !user.DeliveryEmailOK {
			continue
		}

		// 日次配信仅限付费套餐，免费用户只有一次试用
		state, err := s.billingRepo.GetByUserID(user.ID)
		if err != nil || state.Plan != model.PlanStandard {
			continue
		}

		if err := s.jobQueue.Push(ctx, &queue.DeliveryJob{
			UserID:  user.ID,
			DateKey: todayKey,
		}); err != nil {
			log.Printf("Dispatch: failed to enqueue user %d: %v", user.ID, err)
			continue
		}
		count++
	}

	return count, nil
}

// ReleaseStaleReservations 清理过日仍处于占位状态的记录
func (s *DeliveryService) ReleaseStaleReservations(_ context.Context, now time.Time) (int64, error) {
	return s.deliveryRepo.DeleteStaleReserved(s.calendar.Key(now))
}

// SendTrial 注册后的一次性试用配信
// 试用终生一次，与当日去重相互独立
func (s *DeliveryService) SendTrial(ctx context.Context, userID int64, now time.Time) (*model.DeliveryRecord, error) {
	has, err := s.deliveryRepo.HasTrial(userID)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, ErrTrialAlreadySent
	}

	return s.Deliver(ctx, userID, s.calendar.Key(now), true)
}

// Deliver 给单个用户发送一封当日邮件
// 先以 reserved 占位再生成、发送：崩溃留痕，宁可漏发不重发
func (s *DeliveryService) Deliver(ctx context.Context, userID int64, dateKey string, isTrial bool) (*model.DeliveryRecord, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	topic, err := s.topicRepo.PickByRand(s.drawFn())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoTopics
		}
		return nil, err
	}

	record := &model.DeliveryRecord{
		UserID:     user.ID,
		DateKey:    dateKey,
		Topic:      topic.Name,
		Level:      user.ContentLevel,
		WordTarget: user.WordTarget,
		IsTrial:    isTrial,
	}
	created, err := s.deliveryRepo.Reserve(record)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrAlreadyDelivered
	}

	article, err := s.generator.Generate(ctx, topic.Name, user.ContentLevel, user.WordTarget)
	if err != nil {
		return nil, fmt.Errorf("failed to generate article: %w", err)
	}

	readLink, err := s.buildReadLink(user.ID, dateKey, record.ID)
	if err != nil {
		return nil, err
	}

	messageID, err := s.mailer.SendDaily(user.DeliveryEmail, user.Nickname, topic.Name, article, readLink)
	if err != nil {
		return nil, fmt.Errorf("failed to send mail: %w", err)
	}

	contentJSON, err := json.Marshal(article)
	if err != nil {
		return nil, err
	}

	contentURL := ""
	if s.archiver != nil {
		if uploaded, err := s.archiver.UploadArticle(dateKey, record.ID, contentJSON); err != nil {
			log.Printf("Deliver: archive failed for delivery %d: %v", record.ID, err)
		} else {
			contentURL = uploaded
		}
	}

	if err := s.deliveryRepo.MarkSent(record.ID, messageID, string(contentJSON), contentURL, time.Now()); err != nil {
		return nil, err
	}

	return s.deliveryRepo.GetByID(record.ID)
}

func (s *DeliveryService) buildReadLink(userID int64, dateKey string, deliveryID int64) (string, error) {
	token, err := readtoken.Sign(&readtoken.Payload{
		UserID:     userID,
		DateKey:    dateKey,
		DeliveryID: deliveryID,
		Purpose:    readtoken.PurposeRead,
		ExpiresAt:  time.Now().Add(time.Duration(s.cfg.ReadToken.ExpireHours) * time.Hour).Unix(),
	}, s.cfg.ReadToken.Secret)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/read?t=%s", s.cfg.Server.BaseURL, url.QueryEscape(token)), nil
}
