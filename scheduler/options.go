package scheduler

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Tsukikage7/nebulas/calendar"
	"github.com/Tsukikage7/nebulas/logger"
	"github.com/Tsukikage7/nebulas/metrics"
	"github.com/Tsukikage7/nebulas/semaphore"
)

// Delivery 事件投递模式.
type Delivery string

const (
	// DeliveryCompeting 竞争消费：所有控制循环共享一个接收队列，
	// 每个事件只被一个循环取走，同标识的多个循环中至多一个响应.
	// 取走非本任务事件的循环会丢弃该事件.
	DeliveryCompeting Delivery = "competing"

	// DeliveryFanout 扇出：路由任务从共享队列取事件，
	// 复制给所有以该标识注册的控制循环.
	DeliveryFanout Delivery = "fanout"
)

// DefaultCalendarTick 日历任务重新读取时钟的最大间隔.
const DefaultCalendarTick = time.Second

// defaultMailboxSize 扇出模式下每个控制循环的信箱容量.
const defaultMailboxSize = 16

// Option 调度器配置选项.
type Option func(*options)

// options 调度器内部配置.
type options struct {
	logger       logger.Logger
	metrics      metrics.Collector
	tracer       trace.Tracer
	hooks        *Hooks
	clock        calendar.Clock
	calendarTick time.Duration
	delivery     Delivery
	mailboxSize  int
	workTimeout  time.Duration
	limiter      semaphore.Semaphore
	withSeconds  bool
	location     *time.Location
}

// defaultOptions 返回默认配置.
func defaultOptions() *options {
	return &options{
		calendarTick: DefaultCalendarTick,
		delivery:     DeliveryCompeting,
		mailboxSize:  defaultMailboxSize,
		withSeconds:  true,
		location:     time.Local,
	}
}

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// WithMetrics 设置指标收集器.
func WithMetrics(c metrics.Collector) Option {
	return func(o *options) {
		o.metrics = c
	}
}

// WithTracer 设置链路追踪器，每次执行任务生成一个 span.
//
//	tp, _ := tracing.NewTracer(cfg, "billing", "1.0.0")
//	s, _ := scheduler.New(rt, scheduler.WithTracer(tp.Tracer("scheduler")))
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithHooks 设置全局钩子，对所有任务生效.
func WithHooks(hooks *Hooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithClock 设置日历时钟，On 与 Cron 依赖此能力.
func WithClock(c calendar.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithCalendarTick 设置日历任务重新读取时钟的最大间隔.
//
// 等待期间系统时钟可能跳变，日历任务至少每隔 d 重新比较一次当前时间.
// 默认: 1 秒.
func WithCalendarTick(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.calendarTick = d
		}
	}
}

// WithDelivery 设置事件投递模式.
//
// 默认: DeliveryCompeting.
func WithDelivery(d Delivery) Option {
	return func(o *options) {
		if d == DeliveryCompeting || d == DeliveryFanout {
			o.delivery = d
		}
	}
}

// WithMailboxSize 设置扇出模式下每个控制循环的信箱容量.
//
// 信箱已满时新事件被丢弃并记录告警.
// 默认: 16.
func WithMailboxSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.mailboxSize = n
		}
	}
}

// WithWorkTimeout 设置单次任务执行的超时时间，0 表示不限制.
//
// 超时只取消任务的 ctx，任务是否提前结束取决于任务自身.
func WithWorkTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.workTimeout = d
		}
	}
}

// WithConcurrencyLimit 限制同时执行的任务数量.
//
// 每次执行前获取一个许可，执行结束后释放.等待许可期间不响应控制事件，
// 调度器关闭或获取失败时跳过本次执行.
func WithConcurrencyLimit(sem semaphore.Semaphore) Option {
	return func(o *options) {
		o.limiter = sem
	}
}

// WithSeconds 设置 Cron 表达式是否支持秒字段.
//
// 启用后秒字段可选；禁用后仅接受 "分 时 日 月 周".
// 默认: 启用.
func WithSeconds(enabled bool) Option {
	return func(o *options) {
		o.withSeconds = enabled
	}
}

// WithLocation 设置 Cron 表达式的时区.
//
// 默认: time.Local
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}
