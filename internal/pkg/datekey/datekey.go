package datekey

import (
	"fmt"
	"time"
)

const layout = "2006-01-02"

// Calendar 逻辑日历：一天从固定时区的 boundaryHour 点开始
// 例如 boundaryHour=4 时，4/1 3:59 仍属于 3/31
type Calendar struct {
	loc          *time.Location
	boundaryHour int
}

func New(timezone string, boundaryHour int) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	if boundaryHour < 0 || boundaryHour > 23 {
		return nil, fmt.Errorf("invalid day boundary hour %d", boundaryHour)
	}
	return &Calendar{loc: loc, boundaryHour: boundaryHour}, nil
}

// Key 计算时刻 t 所属逻辑日的 dateKey（YYYY-MM-DD）
func (c *Calendar) Key(t time.Time) string {
	shifted := t.In(c.loc).Add(-time.Duration(c.boundaryHour) * time.Hour)
	return shifted.Format(layout)
}

// Parse 将 dateKey 解析为该逻辑日在本时区的零点
func (c *Calendar) Parse(key string) (time.Time, error) {
	t, err := time.ParseInLocation(layout, key, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", key, err)
	}
	return t, nil
}

// Weekday 返回 dateKey 对应的星期
func (c *Calendar) Weekday(key string) (time.Weekday, error) {
	t, err := c.Parse(key)
	if err != nil {
		return 0, err
	}
	return t.Weekday(), nil
}

// AddDays 在 dateKey 上加减天数
func (c *Calendar) AddDays(key string, days int) (string, error) {
	t, err := c.Parse(key)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, days).Format(layout), nil
}

// WeekStart 返回 dateKey 所在周的周一
func (c *Calendar) WeekStart(key string) (string, error) {
	t, err := c.Parse(key)
	if err != nil {
		return "", err
	}
	// time.Weekday 以周日为 0，周起点按周一计算
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(layout), nil
}

// MonthStart 返回 dateKey 所在月的 1 号
func (c *Calendar) MonthStart(key string) (string, error) {
	t, err := c.Parse(key)
	if err != nil {
		return "", err
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, c.loc).Format(layout), nil
}

// DaysInMonth 返回 dateKey 所在月的总天数
func (c *Calendar) DaysInMonth(key string) (int, error) {
	t, err := c.Parse(key)
	if err != nil {
		return 0, err
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, c.loc)
	return first.AddDate(0, 1, -1).Day(), nil
}

// Range 枚举 [fromKey, toKey] 闭区间内的所有 dateKey
func (c *Calendar) Range(fromKey, toKey string) ([]string, error) {
	from, err := c.Parse(fromKey)
	if err != nil {
		return nil, err
	}
	to, err := c.Parse(toKey)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("date range reversed: %s > %s", fromKey, toKey)
	}

	var keys []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		keys = append(keys, d.Format(layout))
	}
	return keys, nil
}

// Location 返回产品时区
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// ClockIn 返回时刻 t 在产品时区内的 时、分
func (c *Calendar) ClockIn(t time.Time) (hour, minute int) {
	local := t.In(c.loc)
	return local.Hour(), local.Minute()
}

// Valid 校验 dateKey 格式
func Valid(key string) bool {
	_, err := time.Parse(layout, key)
	return err == nil
}
