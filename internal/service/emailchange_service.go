package service

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"gorm.io/gorm"

	"github.com/mika2333/daily_english_server/config"
	"github.com/mika2333/daily_english_server/internal/model/dto"
	"github.com/mika2333/daily_english_server/internal/pkg/readtoken"
	"github.com/mika2333/daily_english_server/internal/repository"
)

var (
	ErrEmailInUse         = errors.New("该邮箱已被其他账号使用")
	ErrInvalidChangeToken = errors.New("确认链接无效或已过期")
)

// ChangeMailer 变更确认邮件发送
type ChangeMailer interface {
	SendEmailChangeConfirmation(to, confirmLink string) error
}

// EmailChangeService 配信邮箱两段式变更
// 请求段在旧会话内签发带 purpose 的令牌并发往新地址（证明新地址归属），
// 确认段无需登录，凭令牌生效，允许在另一台设备上完成
type EmailChangeService struct {
	userRepo *repository.UserRepository
	mailer   ChangeMailer
	cfg      *config.Config
}

func NewEmailChangeService(userRepo *repository.UserRepository, mailer ChangeMailer, cfg *config.Config) *EmailChangeService {
	return &EmailChangeService{
		userRepo: userRepo,
		mailer:   mailer,
		cfg:      cfg,
	}
}

// RequestChange 发起变更：校验新地址未被占用后发送确认链接
func (s *EmailChangeService) RequestChange(userID int64, req *dto.EmailChangeRequest) error {
	if _, err := s.userRepo.GetByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	taken, err := s.userRepo.ExistsByEmail(req.NewEmail)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailInUse
	}

	token, err := readtoken.Sign(&readtoken.Payload{
		UserID:    userID,
		Email:     req.NewEmail,
		Purpose:   readtoken.PurposeEmailChange,
		ExpiresAt: time.Now().Add(24 * time.Hour).Unix(),
	}, s.cfg.ReadToken.Secret)
	if err != nil {
		return err
	}

	confirmLink := fmt.Sprintf("%s/email-change/confirm?t=%s", s.cfg.Server.BaseURL, url.QueryEscape(token))
	return s.mailer.SendEmailChangeConfirmation(req.NewEmail, confirmLink)
}

// ConfirmChange 凭令牌生效变更
// 生效前重查地址占用情况：请求与确认之间可能有别的账号抢注了该邮箱
func (s *EmailChangeService) ConfirmChange(token string) error {
	payload, err := readtoken.Verify(token, s.cfg.ReadToken.Secret, readtoken.PurposeEmailChange, time.Now())
	if err != nil {
		return ErrInvalidChangeToken
	}

	user, err := s.userRepo.GetByID(payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidChangeToken
		}
		return err
	}

	taken, err := s.userRepo.ExistsByEmail(payload.Email)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailInUse
	}

	return s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"email":             payload.Email,
		"delivery_email":    payload.Email,
		"delivery_email_ok": true,
	})
}
