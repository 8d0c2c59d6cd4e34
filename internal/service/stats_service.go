package service

import (
	"log"
	"time"

	"github.com/mika2333/daily_english_server/internal/model"
	"github.com/mika2333/daily_english_server/internal/model/dto"
	"github.com/mika2333/daily_english_server/internal/pkg/datekey"
	"github.com/mika2333/daily_english_server/internal/repository"
)

// StatsService 学习统计聚合
// 各窗口独立查询、独立降级：单个窗口失败不拖垮整个响应
type StatsService struct {
	userRepo     *repository.UserRepository
	studyLogRepo *repository.StudyLogRepository
	scheduleRepo *repository.ScheduleRepository
	calendar     *datekey.Calendar
}

func NewStatsService(
	userRepo *repository.UserRepository,
	studyLogRepo *repository.StudyLogRepository,
	scheduleRepo *repository.ScheduleRepository,
	calendar *datekey.Calendar,
) *StatsService {
	return &StatsService{
		userRepo:     userRepo,
		studyLogRepo: studyLogRepo,
		scheduleRepo: scheduleRepo,
		calendar:     calendar,
	}
}

// GetStats 返回本周、本月与过去 12 个月的完成率
// 永不整体失败：内部错误降级为带 failed 标记的零值窗口
func (s *StatsService) GetStats(userID int64, now time.Time) *dto.StatsResponse {
	resp := &dto.StatsResponse{}
	todayKey := s.calendar.Key(now)

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		log.Printf("Stats: failed to load user %d: %v", userID, err)
		resp.Week.Failed = true
		resp.Month.Failed = true
		return resp
	}

	overrides, err := s.scheduleRepo.ListWeekdayOverrides(userID)
	if err != nil {
		log.Printf("Stats: failed to load weekday overrides for user %d: %v", userID, err)
		resp.Week.Failed = true
		resp.Month.Failed = true
		return resp
	}

	// 本周（周一起始）
	if weekStart, err := s.calendar.WeekStart(todayKey); err != nil {
		resp.Week.Failed = true
	} else {
		resp.Week = s.windowStats(user, overrides, weekStart, todayKey)
	}

	// 本月（1 日起始）
	if monthStart, err := s.calendar.MonthStart(todayKey); err != nil {
		resp.Month.Failed = true
	} else {
		resp.Month = s.windowStats(user, overrides, monthStart, todayKey)
	}

	// 过去 12 个月，当月按已过天数、往月按整月
	resp.Months = s.monthlyStats(user, overrides, todayKey)

	// 累计阅读天数，失败降级为 0 不标记整体失败
	if total, err := s.studyLogRepo.CountReadDays(userID); err != nil {
		log.Printf("Stats: total read-day count failed for user %d: %v", userID, err)
	} else {
		resp.TotalReadDays = total
	}

	return resp
}

func (s *StatsService) monthlyStats(user *model.User, overrides []model.WeekdayOverride, todayKey string) []dto.MonthStats {
	months := make([]dto.MonthStats, 0, 12)

	t, err := s.calendar.Parse(todayKey)
	if err != nil {
		return months
	}

	for i := 0; i < 12; i++ {
		first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, -i, 0)
		fromKey := first.Format("2006-01-02")
		label := first.Format("2006-01")

		var toKey string
		if i == 0 {
			toKey = todayKey
		} else {
			days, derr := s.calendar.DaysInMonth(fromKey)
			if derr != nil {
				months = append(months, dto.MonthStats{Month: label, Rank: "C", Failed: true})
				continue
			}
			toKey = first.AddDate(0, 0, days-1).Format("2006-01-02")
		}

		window := s.windowStats(user, overrides, fromKey, toKey)
		months = append(months, dto.MonthStats{
			Month:     label,
			HitDays:   window.HitDays,
			TotalDays: window.TotalDays,
			Rate:      window.Rate,
			Rank:      window.Rank,
			Failed:    window.Failed,
		})
	}

	return months
}

// windowStats 单窗口统计，查询失败降级为 failed 零值
func (s *StatsService) windowStats(user *model.User, overrides []model.WeekdayOverride, fromKey, toKey string) dto.WindowStats {
	failed := dto.WindowStats{Rank: "C", Failed: true}

	days, err := s.calendar.Range(fromKey, toKey)
	if err != nil {
		return failed
	}

	readKeys, err := s.studyLogRepo.ListReadKeys(user.ID, fromKey, toKey)
	if err != nil {
		log.Printf("Stats: read-key query failed for user %d [%s, %s]: %v", user.ID, fromKey, toKey, err)
		return failed
	}
	readSet := make(map[string]struct{}, len(readKeys))
	for _, k := range readKeys {
		readSet[k] = struct{}{}
	}

	pauses, err := s.scheduleRepo.ListPauseIntervals(user.ID, fromKey, toKey)
	if err != nil {
		log.Printf("Stats: pause query failed for user %d [%s, %s]: %v", user.ID, fromKey, toKey, err)
		return failed
	}

	hit, total := 0, 0
	for _, day := range days {
		included, err := s.dayIncluded(user, overrides, pauses, day)
		if err != nil {
			return failed
		}
		if !included {
			continue
		}
		total++
		if _, ok := readSet[day]; ok {
			hit++
		}
	}

	rate := 0.0
	if total > 0 {
		rate = float64(hit) / float64(total)
	}

	return dto.WindowStats{
		HitDays:   hit,
		TotalDays: total,
		Rate:      rate,
		Rank:      Rank(rate),
	}
}

// dayIncluded 该日是否计入完成率分母
// 星期关闭只对生效日之后的日期豁免：漏读后当天再关闭该星期不能回溯
func (s *StatsService) dayIncluded(user *model.User, overrides []model.WeekdayOverride, pauses []model.PauseInterval, day string) (bool, error) {
	weekday, err := s.calendar.Weekday(day)
	if err != nil {
		return false, err
	}

	if !user.DeliverOn(weekday) {
		for _, o := range overrides {
			if o.Weekday == int(weekday) && day >= o.DisabledSince {
				return false, nil
			}
		}
	}

	for _, p := range pauses {
		if day >= p.StartKey && day <= p.EndKey {
			return false, nil
		}
	}
	if user.PausedSince != nil && day >= *user.PausedSince {
		return false, nil
	}

	return true, nil
}

// Rank 完成率分档
func Rank(rate float64) string {
	switch {
	case rate >= 0.95:
		return "S"
	case rate >= 0.80:
		return "A"
	case rate >= 0.50:
		return "B"
	default:
		return "C"
	}
}
