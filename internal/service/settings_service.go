package service

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mika2333/daily_english_server/config"
	"github.com/mika2333/daily_english_server/internal/model"
	"github.com/mika2333/daily_english_server/internal/model/dto"
	"github.com/mika2333/daily_english_server/internal/pkg/datekey"
	"github.com/mika2333/daily_english_server/internal/repository"
)

var ErrNotPaused = errors.New("配信未处于暂停状态")

type SettingsService struct {
	userRepo     *repository.UserRepository
	scheduleRepo *repository.ScheduleRepository
	calendar     *datekey.Calendar
	cfg          *config.Config
}

func NewSettingsService(
	userRepo *repository.UserRepository,
	scheduleRepo *repository.ScheduleRepository,
	calendar *datekey.Calendar,
	cfg *config.Config,
) *SettingsService {
	return &SettingsService{
		userRepo:     userRepo,
		scheduleRepo: scheduleRepo,
		calendar:     calendar,
		cfg:          cfg,
	}
}

// GetSettings 获取学习设置
func (s *SettingsService) GetSettings(userID int64) (*dto.SettingsResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return buildSettings(user), nil
}

// UpdateSettings 更新学习设置，缺省字段保持不变
// 星期开关变化时维护 disabled_since 记录：统计口径按当时生效的开关计算，
// 当天漏读后再关闭当天星期不能回溯豁免
func (s *SettingsService) UpdateSettings(userID int64, req *dto.UpdateSettingsRequest) (*dto.SettingsResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Nickname != nil {
		fields["nickname"] = *req.Nickname
	}
	if req.ContentLevel != nil {
		fields["content_level"] = *req.ContentLevel
	}
	if req.WordTarget != nil {
		fields["word_target"] = *req.WordTarget
	}
	if req.DeliveryHour != nil {
		fields["delivery_hour"] = *req.DeliveryHour
	}
	if req.DeliveryMinute != nil {
		fields["delivery_minute"] = *req.DeliveryMinute
	}

	if req.DeliverWeekdays != nil {
		current := weekdayFlags(user)
		todayKey := s.calendar.Key(time.Now())

		for wd := 0; wd < 7; wd++ {
			next := req.DeliverWeekdays[wd]
			if next == current[wd] {
				continue
			}
			if !next {
				// 关闭自下一天起生效（记录生效日供统计判断）
				since, err := s.calendar.AddDays(todayKey, 1)
				if err != nil {
					return nil, err
				}
				if err := s.scheduleRepo.UpsertWeekdayOverride(userID, wd, since); err != nil {
					return nil, err
				}
			} else if err := s.scheduleRepo.DeleteWeekdayOverride(userID, wd); err != nil {
				return nil, err
			}
		}

		fields["deliver_sun"] = req.DeliverWeekdays[0]
		fields["deliver_mon"] = req.DeliverWeekdays[1]
		fields["deliver_tue"] = req.DeliverWeekdays[2]
		fields["deliver_wed"] = req.DeliverWeekdays[3]
		fields["deliver_thu"] = req.DeliverWeekdays[4]
		fields["deliver_fri"] = req.DeliverWeekdays[5]
		fields["deliver_sat"] = req.DeliverWeekdays[6]
	}

	if len(fields) > 0 {
		if err := s.userRepo.UpdateFields(userID, fields); err != nil {
			return nil, err
		}
	}

	updated, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	return buildSettings(updated), nil
}

// Pause 暂停配信，重复暂停为幂等操作
func (s *SettingsService) Pause(userID int64) (*dto.SettingsResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if user.PausedSince == nil {
		todayKey := s.calendar.Key(time.Now())
		if err := s.userRepo.UpdateFields(userID, map[string]interface{}{
			"paused_since": todayKey,
		}); err != nil {
			return nil, err
		}
		user.PausedSince = &todayKey
	}

	return buildSettings(user), nil
}

// Resume 恢复配信，并把本次暂停落盘为闭区间
// 当天暂停又当天恢复则不产生区间（当天配信仍可能照常进行）
func (s *SettingsService) Resume(userID int64) (*dto.SettingsResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if user.PausedSince == nil {
		return nil, ErrNotPaused
	}

	todayKey := s.calendar.Key(time.Now())
	endKey, err := s.calendar.AddDays(todayKey, -1)
	if err != nil {
		return nil, err
	}

	if *user.PausedSince <= endKey {
		if err := s.scheduleRepo.CreatePauseInterval(userID, *user.PausedSince, endKey); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.UpdateFields(userID, map[string]interface{}{
		"paused_since": nil,
	}); err != nil {
		return nil, err
	}

	user.PausedSince = nil
	return buildSettings(user), nil
}

func weekdayFlags(user *model.User) [7]bool {
	return [7]bool{
		user.DeliverSun,
		user.DeliverMon,
		user.DeliverTue,
		user.DeliverWed,
		user.DeliverThu,
		user.DeliverFri,
		user.DeliverSat,
	}
}

func buildSettings(user *model.User) *dto.SettingsResponse {
	resp := &dto.SettingsResponse{
		Nickname:        user.Nickname,
		ContentLevel:    user.ContentLevel,
		WordTarget:      user.WordTarget,
		DeliveryHour:    user.DeliveryHour,
		DeliveryMinute:  user.DeliveryMinute,
		DeliverWeekdays: weekdayFlags(user),
		Paused:          user.PausedSince != nil,
		DeliveryEmail:   user.DeliveryEmail,
		DeliveryEmailOK: user.DeliveryEmailOK,
	}
	if user.PausedSince != nil {
		resp.PausedSince = *user.PausedSince
	}
	return resp
}
