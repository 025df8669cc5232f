package semaphore

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// 默认配置值.
const (
	DefaultTTL       = 30 * time.Second
	DefaultRetryWait = 100 * time.Millisecond
	keyPrefix        = "nebulas:semaphore:"
)

// acquireScript 计数未达上限时加一并刷新过期时间，返回 1 表示成功.
var acquireScript = goredis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n >= tonumber(ARGV[1]) then
  return 0
end
redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return 1
`)

// releaseScript 计数大于零时减一.
var releaseScript = goredis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n > 0 then
  return redis.call("DECR", KEYS[1])
end
return 0
`)

// Redis 分布式信号量.
//
// 许可计数保存在一个键中，TTL 防止持有方崩溃后许可永久丢失.
type Redis struct {
	client    goredis.UniversalClient
	key       string
	size      int64
	ttl       time.Duration
	retryWait time.Duration
}

var _ Semaphore = (*Redis)(nil)

// RedisOption Redis 信号量配置选项.
type RedisOption func(*Redis)

// WithTTL 设置许可计数的过期时间，默认 30 秒.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *Redis) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithRetryWait 设置无可用许可时的重试间隔，默认 100ms.
func WithRetryWait(wait time.Duration) RedisOption {
	return func(s *Redis) {
		if wait > 0 {
			s.retryWait = wait
		}
	}
}

// NewRedis 创建分布式信号量.
func NewRedis(client goredis.UniversalClient, key string, size int64, opts ...RedisOption) (*Redis, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	s := &Redis{
		client:    client,
		key:       keyPrefix + key,
		size:      size,
		ttl:       DefaultTTL,
		retryWait: DefaultRetryWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Acquire 获取一个许可，Redis 出错时返回错误.
func (s *Redis) Acquire(ctx context.Context) error {
	for {
		ok, err := s.tryAcquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryWait):
		}
	}
}

// TryAcquire 尝试获取一个许可.
func (s *Redis) TryAcquire(ctx context.Context) bool {
	ok, err := s.tryAcquire(ctx)
	return err == nil && ok
}

func (s *Redis) tryAcquire(ctx context.Context) (bool, error) {
	n, err := acquireScript.Run(ctx, s.client, []string{s.key}, s.size, s.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release 释放一个许可.
func (s *Redis) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, s.client, []string{s.key}).Err()
}

// Available 返回当前可用的许可数量.
func (s *Redis) Available(ctx context.Context) (int64, error) {
	n, err := s.client.Get(ctx, s.key).Int64()
	if errors.Is(err, goredis.Nil) {
		return s.size, nil
	}
	if err != nil {
		return 0, err
	}
	return max(s.size-n, 0), nil
}

// Size 返回信号量的总大小.
func (s *Redis) Size() int64 {
	return s.size
}
