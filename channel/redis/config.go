package redis

import (
	"errors"
	"time"
)

// 默认配置值.
const (
	DefaultKey          = "nebulas:control"
	DefaultPollTimeout  = time.Second
	DefaultDialTimeout  = 5 * time.Second
	DefaultPoolSize     = 10
	DefaultRetryBackoff = 500 * time.Millisecond
)

// Config Redis 控制通道配置.
type Config struct {
	// Addr 服务器地址，host:port.
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
	// Password 密码[可选].
	Password string `json:"password" yaml:"password" mapstructure:"password"`
	// DB 数据库编号.
	DB int `json:"db" yaml:"db" mapstructure:"db"`
	// Key 承载事件的列表键.
	Key string `json:"key" yaml:"key" mapstructure:"key"`
	// PollTimeout 单次 BRPOP 的阻塞时长，决定接收端关闭后的最长退出延迟.
	PollTimeout time.Duration `json:"poll_timeout" yaml:"poll_timeout" mapstructure:"poll_timeout"`
	// DialTimeout 连接超时.
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout" mapstructure:"dial_timeout"`
	// PoolSize 连接池大小.
	PoolSize int `json:"pool_size" yaml:"pool_size" mapstructure:"pool_size"`
}

// ApplyDefaults 填充默认值.
func (c *Config) ApplyDefaults() {
	if c.Key == "" {
		c.Key = DefaultKey
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Addr == "" {
		return ErrEmptyAddr
	}
	if c.DB < 0 {
		return errors.Join(ErrInvalidConfig, errors.New("db must not be negative"))
	}
	return nil
}
