package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule 日程，返回给定时间之后的下一次触发时间.
type Schedule interface {
	Next(time.Time) time.Time
}

// ParseOption Cron 解析选项.
type ParseOption func(*parseOptions)

type parseOptions struct {
	seconds  bool
	location *time.Location
}

// WithSeconds 设置是否支持秒字段.
//
// 启用后秒字段可选: "秒 分 时 日 月 周" 与 "分 时 日 月 周" 均可解析.
// 默认: 启用.
func WithSeconds(enabled bool) ParseOption {
	return func(o *parseOptions) {
		o.seconds = enabled
	}
}

// WithLocation 设置日程时区，表达式自带 CRON_TZ= 前缀时以前缀为准.
//
// 默认: time.Local
func WithLocation(loc *time.Location) ParseOption {
	return func(o *parseOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// ParseCron 解析 Cron 表达式.
//
// 支持标准字段、描述符 (@hourly, @daily, @every 1h30m) 与 CRON_TZ= 前缀.
//
//	s, err := calendar.ParseCron("0 30 9 * * 1-5", calendar.WithLocation(shanghai))
func ParseCron(expr string, opts ...ParseOption) (Schedule, error) {
	o := &parseOptions{seconds: true, location: time.Local}
	for _, opt := range opts {
		opt(o)
	}

	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, ErrEmptyExpression
	}

	fields := cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor
	if o.seconds {
		fields |= cron.SecondOptional
	}

	sched, err := cron.NewParser(fields).Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expr, err)
	}

	if spec, ok := sched.(*cron.SpecSchedule); ok && !hasZonePrefix(expr) {
		spec.Location = o.location
	}
	return sched, nil
}

// hasZonePrefix 判断表达式是否自带时区.
func hasZonePrefix(expr string) bool {
	return strings.HasPrefix(expr, "CRON_TZ=") || strings.HasPrefix(expr, "TZ=")
}
