// Package logger 提供结构化日志记录功能.
//
// 调度器、运行时与通道绑定通过 Logger 接口记录日志，
// 未配置 Logger 时各组件保持静默.
package logger

import "context"

// 日志类型常量.
const (
	TypeZap = "zap"
)

// 日志级别常量.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
	LevelPanic = "panic"
)

// 输出格式常量.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// 输出目标常量.
const (
	OutputConsole = "console"
	OutputFile    = "file"
	OutputBoth    = "both"
)

// Field 表示一个日志字段.
type Field struct {
	Key   string
	Value any
}

// Logger 日志记录器接口.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Panic(args ...any)
	Panicf(format string, args ...any)

	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger

	Sync() error
	Close() error
}

// 写入 context 的字段名.
const (
	FieldTraceID = "traceId"
	FieldSpanID  = "spanId"
	FieldTaskID  = "taskId"
)

type fieldsKey struct{}

// ContextWithFields 将字段附加到 context，WithContext 时输出.
//
// 同名字段以后写入的为准.
func ContextWithFields(ctx context.Context, fields ...Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	prev := FieldsFromContext(ctx)
	merged := make([]Field, 0, len(prev)+len(fields))
	for _, f := range prev {
		if !hasKey(fields, f.Key) {
			merged = append(merged, f)
		}
	}
	merged = append(merged, fields...)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// FieldsFromContext 返回 context 中附加的字段.
func FieldsFromContext(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(fieldsKey{}).([]Field)
	return fields
}

// ContextWithSpan 注入 span 的 traceId 与 spanId.
func ContextWithSpan(ctx context.Context, traceID, spanID string) context.Context {
	return ContextWithFields(ctx,
		Field{Key: FieldTraceID, Value: traceID},
		Field{Key: FieldSpanID, Value: spanID},
	)
}

// ContextWithTaskID 注入任务标识.
func ContextWithTaskID(ctx context.Context, taskID string) context.Context {
	return ContextWithFields(ctx, Field{Key: FieldTaskID, Value: taskID})
}

func hasKey(fields []Field, key string) bool {
	for _, f := range fields {
		if f.Key == key {
			return true
		}
	}
	return false
}

// NewLogger 创建 logger 实例.
func NewLogger(config *Config) (Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	switch config.Type {
	case TypeZap, "":
		return newZapLogger(config)
	default:
		return nil, &ConfigError{Field: "type", Message: "unsupported logger type: " + config.Type}
	}
}

// MustNewLogger 创建 logger 实例，失败时 panic.
func MustNewLogger(config *Config) Logger {
	l, err := NewLogger(config)
	if err != nil {
		panic(err)
	}
	return l
}
