// Package event 定义控制平面事件.
//
// 事件通过调度器持有的共享通道投递给各控制循环，
// 用于终止（Shutdown）或冻结（Freeze）指定标识的任务.
//
// 示例:
//
//	s.SendEvent(ctx, event.Shutdown("report"))
//	s.SendEvent(ctx, event.Freeze("report", 30*time.Second))
package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskID 任务标识，由调用方选择.
//
// 调度器从不分配也不校验标识，唯一性由调用方负责.
// 多个任务共用同一标识时，都会响应发往该标识的事件.
type TaskID string

// NewTaskID 生成随机任务标识.
//
// 仅为调用方提供便利，调度器内部不会调用.
func NewTaskID() TaskID {
	return TaskID(uuid.NewString())
}

// Kind 事件类型.
type Kind uint8

const (
	// KindShutdown 终止任务.
	KindShutdown Kind = iota + 1
	// KindFreeze 冻结任务，在下一次动作前追加一段等待.
	KindFreeze
)

// String 返回事件类型字符串.
func (k Kind) String() string {
	switch k {
	case KindShutdown:
		return "shutdown"
	case KindFreeze:
		return "freeze"
	default:
		return "unknown"
	}
}

// Event 控制事件.
//
// 值类型，可自由复制.On 仅对 KindFreeze 有意义.
type Event struct {
	Kind Kind
	To   TaskID
	On   time.Duration
}

// Shutdown 创建终止事件.
func Shutdown(to TaskID) Event {
	return Event{Kind: KindShutdown, To: to}
}

// Freeze 创建冻结事件.
func Freeze(to TaskID, on time.Duration) Event {
	return Event{Kind: KindFreeze, To: to, On: on}
}

// For 判断事件是否发往指定任务.
func (e Event) For(id TaskID) bool {
	return e.To == id
}

// Validate 验证事件.
func (e Event) Validate() error {
	switch e.Kind {
	case KindShutdown:
		return nil
	case KindFreeze:
		if e.On < 0 {
			return ErrNegativeFreeze
		}
		return nil
	default:
		return ErrUnknownKind
	}
}

// String 返回事件描述.
func (e Event) String() string {
	if e.Kind == KindFreeze {
		return fmt.Sprintf("freeze{to=%s, on=%s}", e.To, e.On)
	}
	return fmt.Sprintf("%s{to=%s}", e.Kind, e.To)
}
