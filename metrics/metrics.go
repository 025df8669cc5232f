// Package metrics 提供 Prometheus 指标收集功能.
//
// 调度器与运行时通过 PrometheusCollector 记录控制循环、事件与任务执行指标，
// 指标按名称在首次使用时自动注册到独立的注册表.
package metrics

import "net/http"

// Collector 指标收集器接口.
type Collector interface {
	// RecordPanic 记录 panic 事件.
	RecordPanic(component, operation string)

	// Counter 增加计数器.
	Counter(name string, labels map[string]string)
	// Histogram 观察直方图.
	Histogram(name string, value float64, labels map[string]string)
	// Gauge 设置仪表盘.
	Gauge(name string, value float64, labels map[string]string)
	// AddGauge 调整仪表盘.
	AddGauge(name string, delta float64, labels map[string]string)

	// Handler 返回 /metrics 处理器.
	Handler() http.Handler
	// Path 返回指标暴露路径.
	Path() string
}

// NewMetrics 创建指标收集器.
func NewMetrics(cfg *Config) (*PrometheusCollector, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	return NewPrometheus(cfg)
}

// MustNewMetrics 创建指标收集器，失败时 panic.
func MustNewMetrics(cfg *Config) *PrometheusCollector {
	c, err := NewMetrics(cfg)
	if err != nil {
		panic(err)
	}
	return c
}
