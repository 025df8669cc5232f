package event

import "errors"

// 预定义错误.
var (
	// ErrUnknownKind 未知事件类型.
	ErrUnknownKind = errors.New("event: unknown event kind")

	// ErrNegativeFreeze 冻结时长为负.
	ErrNegativeFreeze = errors.New("event: freeze duration must not be negative")

	// ErrMalformed 事件编码格式错误.
	ErrMalformed = errors.New("event: malformed event payload")
)
