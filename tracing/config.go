// Package tracing 提供基于 OpenTelemetry 的链路追踪初始化.
package tracing

// Config 链路追踪配置.
type Config struct {
	// Enabled 是否启用链路追踪
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// OTLP OTLP 导出配置
	OTLP *OTLPConfig `json:"otlp" yaml:"otlp" mapstructure:"otlp"`
	// SamplingRate 采样率 (0.0-1.0)，越界时按 1.0 处理
	SamplingRate float64 `json:"sampling_rate" yaml:"sampling_rate" mapstructure:"sampling_rate"`
}

// OTLPConfig OTLP 配置.
type OTLPConfig struct {
	// Endpoint OTLP Collector 端点，可带 http:// 前缀
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure 是否使用明文 HTTP
	Insecure bool `json:"insecure" yaml:"insecure" mapstructure:"insecure"`
	// Headers 请求头[可选]
	Headers map[string]string `json:"headers" yaml:"headers" mapstructure:"headers"`
}

// samplingRate 返回修正后的采样率.
func (c *Config) samplingRate() float64 {
	if c.SamplingRate <= 0 || c.SamplingRate > 1 {
		return 1.0
	}
	return c.SamplingRate
}
