package service

import (
	"errors"
	"time"

	"github.com/mika2333/daily_english_server/config"
	"github.com/mika2333/daily_english_server/internal/model/dto"
	"github.com/mika2333/daily_english_server/internal/pkg/readtoken"
	"github.com/mika2333/daily_english_server/internal/repository"
)

var ErrInvalidReadToken = errors.New("阅读链接无效或已过期")

// ReadService 阅读确认
// 邮件里的链接是无状态能力令牌，点开即记一次阅读，无需登录
type ReadService struct {
	studyLogRepo *repository.StudyLogRepository
	cfg          *config.Config
}

func NewReadService(studyLogRepo *repository.StudyLogRepository, cfg *config.Config) *ReadService {
	return &ReadService{
		studyLogRepo: studyLogRepo,
		cfg:          cfg,
	}
}

// ConfirmRead 校验令牌并记录阅读
// 并发重复点击（邮件客户端预取）下计数不丢不重
func (s *ReadService) ConfirmRead(token string, now time.Time) (*dto.ReadResult, error) {
	payload, err := readtoken.Verify(token, s.cfg.ReadToken.Secret, readtoken.PurposeRead, now)
	if err != nil {
		return nil, ErrInvalidReadToken
	}

	entry, first, err := s.studyLogRepo.RecordRead(payload.UserID, payload.DateKey, now)
	if err != nil {
		return nil, err
	}

	return &dto.ReadResult{
		FirstRead: first,
		ReadCount: entry.ReadCount,
		DateKey:   payload.DateKey,
	}, nil
}
