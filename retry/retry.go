// Package retry 提供带退避的重试.
//
//	err := retry.Do(ctx, connect).
//	    WithMaxAttempts(5).
//	    WithDelay(time.Second).
//	    WithBackoff(retry.ExponentialBackoff).
//	    Run()
package retry

import (
	"context"
	"errors"
	"time"
)

// 默认配置值.
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 100 * time.Millisecond
)

// ErrMaxAttempts 已达到最大尝试次数.
var ErrMaxAttempts = errors.New("retry: max attempts reached")

// BackoffFunc 计算第 attempt 次失败后的等待时间，attempt 从 0 开始.
type BackoffFunc func(attempt int, delay time.Duration) time.Duration

// RetryableFunc 判断错误是否应该重试.
type RetryableFunc func(err error) bool

// FixedBackoff 固定间隔.
func FixedBackoff(_ int, delay time.Duration) time.Duration {
	return delay
}

// ExponentialBackoff 指数退避，最长一分钟.
func ExponentialBackoff(attempt int, delay time.Duration) time.Duration {
	const limit = time.Minute
	if attempt > 16 {
		return limit
	}
	return min(delay*time.Duration(1<<uint(attempt)), limit)
}

// LinearBackoff 线性退避.
func LinearBackoff(attempt int, delay time.Duration) time.Duration {
	return delay * time.Duration(attempt+1)
}

// AlwaysRetry 总是重试.
func AlwaysRetry(error) bool {
	return true
}

// Retry 重试器.
type Retry struct {
	ctx         context.Context
	fn          func() error
	maxAttempts int
	delay       time.Duration
	backoff     BackoffFunc
	retryable   RetryableFunc
	onRetry     func(attempt int, err error)
}

// Do 创建重试器.
func Do(ctx context.Context, fn func() error) *Retry {
	return &Retry{
		ctx:         ctx,
		fn:          fn,
		maxAttempts: DefaultMaxAttempts,
		delay:       DefaultDelay,
		backoff:     FixedBackoff,
		retryable:   AlwaysRetry,
	}
}

// WithMaxAttempts 设置最大尝试次数，小于等于 0 表示直到成功或 ctx 结束.
func (r *Retry) WithMaxAttempts(n int) *Retry {
	r.maxAttempts = n
	return r
}

// WithDelay 设置重试间隔.
func (r *Retry) WithDelay(d time.Duration) *Retry {
	r.delay = d
	return r
}

// WithBackoff 设置退避策略.
func (r *Retry) WithBackoff(fn BackoffFunc) *Retry {
	if fn != nil {
		r.backoff = fn
	}
	return r
}

// WithRetryable 设置重试判断，返回 false 的错误立即返回.
func (r *Retry) WithRetryable(fn RetryableFunc) *Retry {
	if fn != nil {
		r.retryable = fn
	}
	return r
}

// OnRetry 设置每次失败后、等待前的回调.
func (r *Retry) OnRetry(fn func(attempt int, err error)) *Retry {
	r.onRetry = fn
	return r
}

// Run 执行重试.
//
// 次数耗尽时返回同时匹配 ErrMaxAttempts 与最后一次错误的错误.
func (r *Retry) Run() error {
	var lastErr error
	for attempt := 0; r.maxAttempts <= 0 || attempt < r.maxAttempts; attempt++ {
		if err := r.ctx.Err(); err != nil {
			return err
		}

		lastErr = r.fn()
		if lastErr == nil {
			return nil
		}
		if !r.retryable(lastErr) {
			return lastErr
		}
		if r.onRetry != nil {
			r.onRetry(attempt+1, lastErr)
		}

		if r.maxAttempts > 0 && attempt == r.maxAttempts-1 {
			break
		}

		timer := time.NewTimer(r.backoff(attempt, r.delay))
		select {
		case <-timer.C:
		case <-r.ctx.Done():
			timer.Stop()
			return r.ctx.Err()
		}
	}

	return errors.Join(ErrMaxAttempts, lastErr)
}
