// Package config 提供基于 viper 的配置加载.
//
// 支持 yaml、json、toml 文件及环境变量覆盖，
// 目标类型实现 Validatable 时自动校验.
//
// 示例:
//
//	cfg, err := config.Load[app.Config]("nebulas.yaml", config.WithEnvPrefix("NEBULAS"))
package config

import (
	"path/filepath"
	"strings"
)

// Validatable 可验证的配置接口.
type Validatable interface {
	Validate() error
}

// Defaulter 可填充默认值的配置接口，在校验前调用.
type Defaulter interface {
	ApplyDefaults()
}

// GetConfigType 根据文件扩展名获取配置类型.
func GetConfigType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	case ".env":
		return "env"
	default:
		return ""
	}
}
