package logger

import "errors"

// 预定义错误.
var (
	// ErrCreateDir 创建日志目录失败.
	ErrCreateDir = errors.New("logger: failed to create log directory")

	// ErrOpenFile 打开日志文件失败.
	ErrOpenFile = errors.New("logger: failed to open log file")
)
