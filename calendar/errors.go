package calendar

import "errors"

// 预定义错误.
var (
	// ErrEmptyExpression Cron 表达式为空.
	ErrEmptyExpression = errors.New("calendar: cron expression is empty")

	// ErrInvalidExpression 无效的 Cron 表达式.
	ErrInvalidExpression = errors.New("calendar: invalid cron expression")
)
