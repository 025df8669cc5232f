package rt

import "errors"

// 预定义错误.
//
// 通道绑定必须区分 ErrEmpty 与 ErrClosed，调用方通过 errors.Is 判断:
//
//	if errors.Is(err, rt.ErrClosed) {
//	    // 控制平面已不可用
//	}
var (
	// ErrEmpty 通道当前没有事件.
	ErrEmpty = errors.New("rt: channel is empty")

	// ErrClosed 通道已关闭.
	ErrClosed = errors.New("rt: channel is closed")
)
