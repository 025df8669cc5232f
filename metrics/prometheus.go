package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector Prometheus 指标收集器实现.
type PrometheusCollector struct {
	config     *Config
	namespace  string
	panicTotal *prometheus.CounterVec

	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
	mu         sync.Mutex

	registry *prometheus.Registry
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus 创建 Prometheus 指标收集器.
func NewPrometheus(cfg *Config) (*PrometheusCollector, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "nebulas"
	}

	c := &PrometheusCollector{
		config:     cfg,
		namespace:  namespace,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		registry:   prometheus.NewRegistry(),
	}

	c.panicTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "panic_total",
			Help:      "Total number of panics recovered",
		},
		[]string{"component", "operation"},
	)
	if err := c.registry.Register(c.panicTotal); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegisterMetric, err)
	}

	return c, nil
}

// RecordPanic 记录 panic 事件.
func (c *PrometheusCollector) RecordPanic(component, operation string) {
	c.panicTotal.WithLabelValues(component, operation).Inc()
}

// Counter 增加计数器.
//
//	collector.Counter("scheduler_runs_total", map[string]string{"kind": "every", "status": "ok"})
func (c *PrometheusCollector) Counter(name string, labels map[string]string) {
	names, values := extractLabels(labels)

	c.mu.Lock()
	counter, ok := c.counters[name]
	if !ok {
		counter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      name,
			Help:      "Counter " + name,
		}, names)
		if c.registry.Register(counter) != nil {
			counter = nil
		}
		c.counters[name] = counter
	}
	c.mu.Unlock()

	if counter != nil {
		counter.WithLabelValues(values...).Inc()
	}
}

// Histogram 观察直方图.
func (c *PrometheusCollector) Histogram(name string, value float64, labels map[string]string) {
	names, values := extractLabels(labels)

	c.mu.Lock()
	histogram, ok := c.histograms[name]
	if !ok {
		histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: c.namespace,
			Name:      name,
			Help:      "Histogram " + name,
			Buckets:   prometheus.DefBuckets,
		}, names)
		if c.registry.Register(histogram) != nil {
			histogram = nil
		}
		c.histograms[name] = histogram
	}
	c.mu.Unlock()

	if histogram != nil {
		histogram.WithLabelValues(values...).Observe(value)
	}
}

// Gauge 设置仪表盘.
func (c *PrometheusCollector) Gauge(name string, value float64, labels map[string]string) {
	if gauge, values := c.gauge(name, labels); gauge != nil {
		gauge.WithLabelValues(values...).Set(value)
	}
}

// AddGauge 调整仪表盘，delta 可为负.
func (c *PrometheusCollector) AddGauge(name string, delta float64, labels map[string]string) {
	if gauge, values := c.gauge(name, labels); gauge != nil {
		gauge.WithLabelValues(values...).Add(delta)
	}
}

func (c *PrometheusCollector) gauge(name string, labels map[string]string) (*prometheus.GaugeVec, []string) {
	names, values := extractLabels(labels)

	c.mu.Lock()
	defer c.mu.Unlock()

	gauge, ok := c.gauges[name]
	if !ok {
		gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      name,
			Help:      "Gauge " + name,
		}, names)
		if c.registry.Register(gauge) != nil {
			gauge = nil
		}
		c.gauges[name] = gauge
	}
	return gauge, values
}

// extractLabels 按 key 排序提取 label 名称和值，保证顺序稳定.
func extractLabels(labels map[string]string) ([]string, []string) {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	values := make([]string, len(names))
	for i, k := range names {
		values[i] = labels[k]
	}
	return names, values
}

// Handler 返回 metrics 的 HTTP 处理器.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Path 返回 metrics 路径.
func (c *PrometheusCollector) Path() string {
	if c.config.Path == "" {
		return "/metrics"
	}
	return c.config.Path
}
