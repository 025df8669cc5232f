package scheduler

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tsukikage7/nebulas/logger"
)

// schedulerTracer 调度器追踪器.
//
// 未显式设置 Tracer 时使用全局 TracerProvider，
// 需要先通过 tracing.NewTracer 初始化.
type schedulerTracer struct {
	tracer trace.Tracer
}

func newSchedulerTracer(t trace.Tracer) *schedulerTracer {
	if t == nil {
		t = otel.Tracer("github.com/Tsukikage7/nebulas/scheduler")
	}
	return &schedulerTracer{tracer: t}
}

// startRunSpan 开始任务执行 span，并把 traceId 与 spanId 注入 context 供日志使用.
func (t *schedulerTracer) startRunSpan(ctx context.Context, tc *TaskContext) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "scheduler.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("task.id", string(tc.ID)),
			attribute.String("task.kind", string(tc.Kind)),
			attribute.Int("task.run", tc.Run),
		),
	)
	if sc := span.SpanContext(); sc.IsValid() {
		ctx = logger.ContextWithSpan(ctx, sc.TraceID().String(), sc.SpanID().String())
	}
	return ctx, span
}

// endRunSpan 结束 span，记录错误.
func (t *schedulerTracer) endRunSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
