package app

import (
	"fmt"
	"time"

	"github.com/Tsukikage7/nebulas/channel"
	"github.com/Tsukikage7/nebulas/config"
	"github.com/Tsukikage7/nebulas/logger"
	"github.com/Tsukikage7/nebulas/metrics"
	"github.com/Tsukikage7/nebulas/scheduler"
	"github.com/Tsukikage7/nebulas/tracing"
)

// 默认配置值.
const (
	DefaultName            = "nebulas"
	DefaultVersion         = "1.0.0"
	DefaultGracefulTimeout = 30 * time.Second
)

// Config 应用配置.
//
//	name: billing
//	logger:
//	  level: info
//	channel:
//	  type: redis
//	  redis:
//	    addr: localhost:6379
//	scheduler:
//	  delivery: fanout
//	  location: Asia/Shanghai
type Config struct {
	Name            string        `json:"name" yaml:"name" mapstructure:"name"`
	Version         string        `json:"version" yaml:"version" mapstructure:"version"`
	GracefulTimeout time.Duration `json:"graceful_timeout" yaml:"graceful_timeout" mapstructure:"graceful_timeout"`

	Logger    *logger.Config  `json:"logger" yaml:"logger" mapstructure:"logger"`
	Metrics   *metrics.Config `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Tracing   *tracing.Config `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
	Channel   *channel.Config `json:"channel" yaml:"channel" mapstructure:"channel"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler" mapstructure:"scheduler"`
}

// SchedulerConfig 调度器配置.
type SchedulerConfig struct {
	// Delivery 事件投递方式，competing 或 fanout.
	Delivery string `json:"delivery" yaml:"delivery" mapstructure:"delivery"`
	// CalendarTick On 与 Cron 重新读取时钟的最大间隔.
	CalendarTick time.Duration `json:"calendar_tick" yaml:"calendar_tick" mapstructure:"calendar_tick"`
	// WorkTimeout 单次执行超时，0 表示不限.
	WorkTimeout time.Duration `json:"work_timeout" yaml:"work_timeout" mapstructure:"work_timeout"`
	// MailboxSize 扇出模式下每个控制循环的信箱容量.
	MailboxSize int `json:"mailbox_size" yaml:"mailbox_size" mapstructure:"mailbox_size"`
	// Location 日历时区，如 Asia/Shanghai，为空使用本地时区.
	Location string `json:"location" yaml:"location" mapstructure:"location"`
	// MaxConcurrentRuns 同时执行的任务上限，0 表示不限.
	MaxConcurrentRuns int `json:"max_concurrent_runs" yaml:"max_concurrent_runs" mapstructure:"max_concurrent_runs"`
	// ConcurrencyKey 非空时上限由共享该键的所有进程共同遵守，需要 redis 控制通道.
	ConcurrencyKey string `json:"concurrency_key" yaml:"concurrency_key" mapstructure:"concurrency_key"`
}

// ApplyDefaults 填充默认值.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.GracefulTimeout <= 0 {
		c.GracefulTimeout = DefaultGracefulTimeout
	}
	if c.Logger == nil {
		c.Logger = &logger.Config{}
	}
	if c.Logger.ServiceName == "" {
		c.Logger.ServiceName = c.Name
	}
	c.Logger.ApplyDefaults()
	if c.Channel == nil {
		c.Channel = &channel.Config{}
	}
	c.Channel.ApplyDefaults()
	if c.Scheduler.Delivery == "" {
		c.Scheduler.Delivery = string(scheduler.DeliveryCompeting)
	}
	if c.Scheduler.CalendarTick <= 0 {
		c.Scheduler.CalendarTick = scheduler.DefaultCalendarTick
	}
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Logger != nil {
		if err := c.Logger.Validate(); err != nil {
			return err
		}
	}
	if c.Channel != nil {
		if err := c.Channel.Validate(); err != nil {
			return err
		}
	}

	switch scheduler.Delivery(c.Scheduler.Delivery) {
	case "", scheduler.DeliveryCompeting, scheduler.DeliveryFanout:
	default:
		return fmt.Errorf("%w: delivery=%q", ErrInvalidConfig, c.Scheduler.Delivery)
	}
	if c.Scheduler.MaxConcurrentRuns < 0 {
		return fmt.Errorf("%w: max_concurrent_runs=%d", ErrInvalidConfig, c.Scheduler.MaxConcurrentRuns)
	}
	if c.Scheduler.ConcurrencyKey != "" && (c.Channel == nil || c.Channel.Type != channel.TypeRedis) {
		return fmt.Errorf("%w: concurrency_key requires redis channel", ErrInvalidConfig)
	}
	if _, err := c.Scheduler.location(); err != nil {
		return fmt.Errorf("%w: location=%q: %v", ErrInvalidConfig, c.Scheduler.Location, err)
	}
	return nil
}

func (c *SchedulerConfig) location() (*time.Location, error) {
	if c.Location == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Location)
}

// LoadConfig 从文件加载应用配置，环境变量以 NEBULAS_ 为前缀覆盖.
func LoadConfig(path string, opts ...config.Option) (*Config, error) {
	opts = append([]config.Option{config.WithEnvPrefix("NEBULAS")}, opts...)
	return config.Load[Config](path, opts...)
}
