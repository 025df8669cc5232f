package config

import "strings"

// Options 配置加载选项.
type Options struct {
	// EnvPrefix 环境变量前缀，例如 "NEBULAS" 会将 NEBULAS_CHANNEL_TYPE 映射到 channel.type.
	EnvPrefix string

	// AutomaticEnv 是否自动绑定环境变量.
	AutomaticEnv bool

	// ConfigType 显式指定配置类型（yaml、json、toml）.
	ConfigType string

	// Defaults 默认配置值.
	Defaults map[string]any
}

// Option 配置选项函数.
type Option func(*Options)

// DefaultOptions 返回默认选项.
func DefaultOptions() *Options {
	return &Options{AutomaticEnv: true}
}

// WithEnvPrefix 设置环境变量前缀.
func WithEnvPrefix(prefix string) Option {
	return func(o *Options) {
		o.EnvPrefix = prefix
	}
}

// WithoutEnv 禁用环境变量覆盖.
func WithoutEnv() Option {
	return func(o *Options) {
		o.AutomaticEnv = false
	}
}

// WithDefaults 设置默认值.
func WithDefaults(defaults map[string]any) Option {
	return func(o *Options) {
		o.Defaults = defaults
	}
}

// WithConfigType 显式指定配置类型.
func WithConfigType(configType string) Option {
	return func(o *Options) {
		o.ConfigType = configType
	}
}

// envKeyReplacer 将配置键中的 . 映射为环境变量中的 _.
var envKeyReplacer = strings.NewReplacer(".", "_")
