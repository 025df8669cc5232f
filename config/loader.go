package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Load 从文件加载配置，类型根据扩展名识别.
func Load[T any](path string, opts ...Option) (*T, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	o := buildOptions(opts)
	if o.ConfigType == "" && GetConfigType(path) == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, path)
	}

	v := newViper(o)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadConfig, err)
	}
	return decode[T](v)
}

// MustLoad 加载配置，失败时 panic.
func MustLoad[T any](path string, opts ...Option) *T {
	cfg, err := Load[T](path, opts...)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadFromBytes 从字节加载配置.
func LoadFromBytes[T any](data []byte, configType string, opts ...Option) (*T, error) {
	o := buildOptions(append(opts, WithConfigType(configType)))

	v := newViper(o)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadConfig, err)
	}
	return decode[T](v)
}

func buildOptions(opts []Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// newViper 按选项创建 viper 实例.
func newViper(o *Options) *viper.Viper {
	v := viper.New()
	if o.ConfigType != "" {
		v.SetConfigType(o.ConfigType)
	}
	for key, value := range o.Defaults {
		v.SetDefault(key, value)
	}
	if o.AutomaticEnv {
		if o.EnvPrefix != "" {
			v.SetEnvPrefix(o.EnvPrefix)
		}
		v.SetEnvKeyReplacer(envKeyReplacer)
		v.AutomaticEnv()
	}
	return v
}

// decode 解析配置，依次填充默认值与校验.
func decode[T any](v *viper.Viper) (*T, error) {
	cfg := new(T)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnmarshal, err)
	}

	if d, ok := any(cfg).(Defaulter); ok {
		d.ApplyDefaults()
	}
	if val, ok := any(cfg).(Validatable); ok {
		if err := val.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return cfg, nil
}
