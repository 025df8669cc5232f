package scheduler

import (
	"time"

	"github.com/Tsukikage7/nebulas/event"
	"github.com/Tsukikage7/nebulas/metrics"
)

// schedulerMetrics 调度器指标记录器.
//
// 未配置收集器时所有方法为空操作.
type schedulerMetrics struct {
	collector metrics.Collector
}

func newSchedulerMetrics(c metrics.Collector) *schedulerMetrics {
	return &schedulerMetrics{collector: c}
}

// RecordSpawn 记录控制循环派生.
func (m *schedulerMetrics) RecordSpawn(kind Kind) {
	if m.collector == nil {
		return
	}
	m.collector.Counter("scheduler_tasks_spawned_total", map[string]string{"kind": string(kind)})
	m.collector.AddGauge("scheduler_active_loops", 1, nil)
}

// RecordExit 记录控制循环结束.
func (m *schedulerMetrics) RecordExit() {
	if m.collector == nil {
		return
	}
	m.collector.AddGauge("scheduler_active_loops", -1, nil)
}

// RecordSent 记录事件发送.
func (m *schedulerMetrics) RecordSent(kind event.Kind) {
	if m.collector == nil {
		return
	}
	m.collector.Counter("scheduler_events_sent_total", map[string]string{"kind": kind.String()})
}

// RecordReceived 记录控制循环收到发往自身的事件.
func (m *schedulerMetrics) RecordReceived(kind event.Kind) {
	if m.collector == nil {
		return
	}
	m.collector.Counter("scheduler_events_received_total", map[string]string{"kind": kind.String()})
}

// RecordDiscard 记录被丢弃的事件.
func (m *schedulerMetrics) RecordDiscard() {
	if m.collector == nil {
		return
	}
	m.collector.Counter("scheduler_events_discarded_total", nil)
}

// RecordRun 记录任务执行，status 为 ok、error 或 skipped.
func (m *schedulerMetrics) RecordRun(kind Kind, status string, d time.Duration) {
	if m.collector == nil {
		return
	}
	m.collector.Counter("scheduler_runs_total", map[string]string{"kind": string(kind), "status": status})
	if status != runSkipped {
		m.collector.Histogram("scheduler_run_duration_seconds", d.Seconds(), map[string]string{"kind": string(kind)})
	}
}
