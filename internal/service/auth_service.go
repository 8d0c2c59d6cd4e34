package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mika2333/daily_english_server/config"
	"github.com/mika2333/daily_english_server/internal/model"
	"github.com/mika2333/daily_english_server/internal/model/dto"
	"github.com/mika2333/daily_english_server/internal/pkg/jwt"
	"github.com/mika2333/daily_english_server/internal/pkg/oauth"
	"github.com/mika2333/daily_english_server/internal/repository"
)

var (
	ErrEmailExists        = errors.New("邮箱已被注册")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrEmailNotVerified   = errors.New("邮箱尚未验证")
	ErrInvalidVerifyCode  = errors.New("验证码无效或已过期")
	ErrUserNotFound       = errors.New("用户不存在")
)

// VerificationMailer 注册验证邮件发送（便于测试替换）
type VerificationMailer interface {
	SendVerificationCode(to, code string) error
}

type AuthService struct {
	userRepo    *repository.UserRepository
	billingRepo *repository.BillingRepository
	mailer      VerificationMailer
	cfg         *config.Config
	googleOAuth *oauth.GoogleOAuth
}

func NewAuthService(
	userRepo *repository.UserRepository,
	billingRepo *repository.BillingRepository,
	mailer VerificationMailer,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		billingRepo: billingRepo,
		mailer:      mailer,
		cfg:         cfg,
		googleOAuth: oauth.NewGoogleOAuth(
			cfg.OAuth.Google.ClientID,
			cfg.OAuth.Google.ClientSecret,
			cfg.OAuth.Google.RedirectURI,
		),
	}
}

// Register 用户注册
func (s *AuthService) Register(req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	exists, err := s.userRepo.ExistsByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	verifyCode, err := generateRandomCode(32)
	if err != nil {
		return nil, err
	}

	nickname := req.Nickname
	if nickname == "" {
		nickname = strings.SplitN(req.Email, "@", 2)[0]
	}

	passwordStr := string(hashedPassword)
	expiresAt := time.Now().Add(24 * time.Hour)

	user := &model.User{
		Email:                 req.Email,
		PasswordHash:          &passwordStr,
		Nickname:              nickname,
		ContentLevel:          s.cfg.Delivery.DefaultLevel,
		WordTarget:            s.cfg.Delivery.DefaultWords,
		DeliveryHour:          s.cfg.Delivery.DefaultHour,
		DeliveryMinute:        s.cfg.Delivery.DefaultMinute,
		DeliverMon:            true,
		DeliverTue:            true,
		DeliverWed:            true,
		DeliverThu:            true,
		DeliverFri:            true,
		DeliverSat:            true,
		DeliverSun:            true,
		DeliveryEmail:         req.Email,
		VerificationCode:      &verifyCode,
		VerificationExpiresAt: &expiresAt,
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	// 账务状态随用户创建，套餐只允许对账逻辑改写
	if err := s.billingRepo.Create(&model.BillingState{
		UserID: user.ID,
		Plan:   model.PlanFree,
	}); err != nil {
		return nil, err
	}

	if s.cfg.Server.Mode == "debug" {
		// 开发环境跳过验证邮件
		user.EmailVerified = true
		user.DeliveryEmailOK = true
		if err := s.userRepo.Update(user); err != nil {
			return nil, err
		}
	} else if err := s.mailer.SendVerificationCode(req.Email, verifyCode); err != nil {
		return nil, fmt.Errorf("failed to send verification email: %w", err)
	}

	return &dto.RegisterResponse{UserID: user.ID}, nil
}

// Login 用户登录
func (s *AuthService) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.EmailVerified && s.cfg.Server.Mode != "debug" {
		return nil, ErrEmailNotVerified
	}

	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := jwt.GenerateToken(user.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token: token,
		User:  s.buildUserInfo(user),
	}, nil
}

// VerifyEmail 验证邮箱
func (s *AuthService) VerifyEmail(code string) (*dto.LoginResponse, error) {
	user, err := s.userRepo.GetByVerificationCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidVerifyCode
		}
		return nil, err
	}

	if user.VerificationExpiresAt == nil || time.Now().After(*user.VerificationExpiresAt) {
		return nil, ErrInvalidVerifyCode
	}

	user.EmailVerified = true
	// 注册时配信邮箱即登录邮箱，一并视为已验证
	if user.DeliveryEmail == user.Email {
		user.DeliveryEmailOK = true
	}
	user.VerificationCode = nil
	user.VerificationExpiresAt = nil
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	token, err := jwt.GenerateToken(user.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token: token,
		User:  s.buildUserInfo(user),
	}, nil
}

// GetUserByID 根据 ID 获取用户
func (s *AuthService) GetUserByID(id int64) (*model.User, error) {
	return s.userRepo.GetByID(id)
}

// GetGoogleAuthURL 获取 Google 授权 URL
func (s *AuthService) GetGoogleAuthURL(state string) string {
	return s.googleOAuth.GetAuthURL(state)
}

// GoogleCallback 处理 Google OAuth 回调
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (*dto.LoginResponse, error) {
	token, err := s.googleOAuth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	googleUser, err := s.googleOAuth.GetUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get google user: %w", err)
	}

	user, err := s.userRepo.GetByGoogleID(googleUser.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if user == nil {
		// 同邮箱已有密码账号则绑定，否则新建
		user, err = s.userRepo.GetByEmail(googleUser.Email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		if user != nil {
			user.GoogleID = &googleUser.ID
			user.EmailVerified = true
			if err := s.userRepo.Update(user); err != nil {
				return nil, err
			}
		} else {
			nickname := googleUser.Name
			if nickname == "" {
				nickname = strings.SplitN(googleUser.Email, "@", 2)[0]
			}
			user = &model.User{
				Email:           googleUser.Email,
				GoogleID:        &googleUser.ID,
				Nickname:        nickname,
				ContentLevel:    s.cfg.Delivery.DefaultLevel,
				WordTarget:      s.cfg.Delivery.DefaultWords,
				DeliveryHour:    s.cfg.Delivery.DefaultHour,
				DeliveryMinute:  s.cfg.Delivery.DefaultMinute,
				DeliverMon:      true,
				DeliverTue:      true,
				DeliverWed:      true,
				DeliverThu:      true,
				DeliverFri:      true,
				DeliverSat:      true,
				DeliverSun:      true,
				DeliveryEmail:   googleUser.Email,
				DeliveryEmailOK: true,
				EmailVerified:   true, // OAuth 用户默认已验证
			}
			if err := s.userRepo.Create(user); err != nil {
				return nil, err
			}
			if err := s.billingRepo.Create(&model.BillingState{
				UserID: user.ID,
				Plan:   model.PlanFree,
			}); err != nil {
				return nil, err
			}
		}
	}

	jwtToken, err := jwt.GenerateToken(user.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token: jwtToken,
		User:  s.buildUserInfo(user),
	}, nil
}

func (s *AuthService) buildUserInfo(user *model.User) *dto.UserInfo {
	plan := model.PlanFree
	if state, err := s.billingRepo.GetByUserID(user.ID); err == nil {
		plan = state.Plan
	}

	return &dto.UserInfo{
		ID:            user.ID,
		Email:         user.Email,
		Nickname:      user.Nickname,
		ContentLevel:  user.ContentLevel,
		Plan:          plan,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
	}
}

func generateRandomCode(length int) (string, error) {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
