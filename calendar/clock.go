// Package calendar 提供日历能力：读取当前时间与解析 Cron 日程.
//
// 调度器的 On 和 Cron 需要日历能力；仅使用 Via/Every 时无需配置.
package calendar

import (
	"sync"
	"time"
)

// Clock 时钟接口.
type Clock interface {
	// Now 返回当前时间.
	Now() time.Time
}

// SystemClock 系统时钟.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock 创建系统时钟，loc 为空时使用 time.Local.
func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.Local
	}
	return &SystemClock{loc: loc}
}

// Now 返回当前时间.
func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location 返回时钟所在时区.
func (c *SystemClock) Location() *time.Location {
	return c.loc
}

// ManualClock 手动时钟，时间只在 Set/Advance 时变化.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock 创建手动时钟.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

// Now 返回当前时间.
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set 设置当前时间，允许回拨.
func (c *ManualClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Advance 前进 d 并返回新的时间.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

var (
	_ Clock = (*SystemClock)(nil)
	_ Clock = (*ManualClock)(nil)
)
