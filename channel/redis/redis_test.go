package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Tsukikage7/nebulas/event"
	"github.com/Tsukikage7/nebulas/rt"
)

func TestConfig_Validate(t *testing.T) {
	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)
	assert.ErrorIs(t, (&Config{}).Validate(), ErrEmptyAddr)
	assert.ErrorIs(t, (&Config{Addr: "localhost:6379", DB: -1}).Validate(), ErrInvalidConfig)
	assert.NoError(t, (&Config{Addr: "localhost:6379"}).Validate())
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{Addr: "localhost:6379"}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultKey, cfg.Key)
	assert.Equal(t, DefaultPollTimeout, cfg.PollTimeout)
	assert.Equal(t, DefaultDialTimeout, cfg.DialTimeout)
	assert.Equal(t, DefaultPoolSize, cfg.PoolSize)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, _, err := New(&Config{})
	assert.ErrorIs(t, err, ErrEmptyAddr)

	_, _, err = NewFactory(nil)()
	assert.ErrorIs(t, err, ErrNilConfig)
}

// Redis 集成测试
// 需要设置环境变量 REDIS_ADDR 指向 Redis 服务器
// 例如: export REDIS_ADDR=localhost:6379

type RedisTestSuite struct {
	suite.Suite
	addr string
	cfg  *Config
}

func TestRedisSuite(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration tests")
	}
	suite.Run(t, &RedisTestSuite{addr: addr})
}

func (s *RedisTestSuite) SetupTest() {
	s.cfg = &Config{
		Addr:        s.addr,
		Key:         "nebulas:test:" + uuid.NewString(),
		PollTimeout: 100 * time.Millisecond,
	}
}

func (s *RedisTestSuite) TestSendRecv() {
	tx, rx, err := New(s.cfg)
	s.Require().NoError(err)
	defer tx.Close()
	defer rx.Close()

	ctx := context.Background()
	s.Require().NoError(tx.Send(ctx, event.Freeze("a", time.Second)))
	s.Require().NoError(tx.Send(ctx, event.Shutdown("b")))

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	ev, err := rx.Recv(recvCtx)
	s.Require().NoError(err)
	s.Equal(event.Freeze("a", time.Second), ev)

	ev, err = rx.Clone().Recv(recvCtx)
	s.Require().NoError(err)
	s.Equal(event.Shutdown("b"), ev)
}

func (s *RedisTestSuite) TestTryRecvEmpty() {
	tx, rx, err := New(s.cfg)
	s.Require().NoError(err)
	defer tx.Close()
	defer rx.Close()

	_, err = rx.TryRecv(context.Background())
	s.ErrorIs(err, rt.ErrEmpty)
}

func (s *RedisTestSuite) TestSendAfterClose() {
	tx, rx, err := New(s.cfg)
	s.Require().NoError(err)
	defer rx.Close()

	s.Require().NoError(tx.Close())
	s.ErrorIs(tx.Send(context.Background(), event.Shutdown("a")), rt.ErrClosed)
}

func TestNewClient_Unreachable(t *testing.T) {
	if os.Getenv("REDIS_ADDR") != "" {
		t.Skip("covered by integration suite")
	}
	_, err := NewClient(&Config{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	require.ErrorIs(t, err, ErrConnect)
}

func TestSend_ReceiversGone(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	defer client.Close()

	tx, rx := NewWithClient(client, &Config{Addr: "127.0.0.1:1", Key: "nebulas:test"})
	defer tx.Close()

	require.NoError(t, rx.Close())
	assert.ErrorIs(t, tx.Send(context.Background(), event.Shutdown("a")), rt.ErrClosed)
}
