package kafka

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Tsukikage7/nebulas/event"
	"github.com/Tsukikage7/nebulas/rt"
)

// fakeGroup 以内存消息驱动 ConsumerGroupHandler.
type fakeGroup struct {
	msgs   chan *sarama.ConsumerMessage
	errs   chan error
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	marked []int64
}

func newFakeGroup() *fakeGroup {
	return &fakeGroup{
		msgs:   make(chan *sarama.ConsumerMessage, 8),
		errs:   make(chan error),
		closed: make(chan struct{}),
	}
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, h sarama.ConsumerGroupHandler) error {
	select {
	case <-g.closed:
		return sarama.ErrClosedConsumerGroup
	default:
	}
	s := &fakeSession{ctx: ctx, group: g}
	if err := h.Setup(s); err != nil {
		return err
	}
	err := h.ConsumeClaim(s, &fakeClaim{msgs: g.msgs})
	_ = h.Cleanup(s)
	return err
}

func (g *fakeGroup) Errors() <-chan error { return g.errs }

func (g *fakeGroup) Close() error {
	g.once.Do(func() { close(g.closed) })
	return nil
}

func (g *fakeGroup) Pause(map[string][]int32)  {}
func (g *fakeGroup) Resume(map[string][]int32) {}
func (g *fakeGroup) PauseAll()                 {}
func (g *fakeGroup) ResumeAll()                {}

func (g *fakeGroup) markedOffsets() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.marked...)
}

type fakeSession struct {
	ctx   context.Context
	group *fakeGroup
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.group.mu.Lock()
	s.group.marked = append(s.group.marked, msg.Offset)
	s.group.mu.Unlock()
}

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return DefaultTopic }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func encoded(t *testing.T, ev event.Event) []byte {
	t.Helper()
	data, err := event.Encode(ev)
	require.NoError(t, err)
	return data
}

func TestConfig(t *testing.T) {
	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)
	assert.ErrorIs(t, (&Config{}).Validate(), ErrNoBrokers)

	bad := &Config{Brokers: []string{"localhost:9092"}, InitialOffset: "latest"}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = &Config{Brokers: []string{"localhost:9092"}, Version: "not-a-version"}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	cfg := &Config{Brokers: []string{"localhost:9092"}, InitialOffset: OffsetOldest, Version: "2.8.0"}
	require.NoError(t, cfg.Validate())
	cfg.ApplyDefaults()
	assert.Equal(t, DefaultTopic, cfg.Topic)
	assert.Equal(t, DefaultGroupID, cfg.GroupID)
	assert.Equal(t, DefaultRetryBackoff, cfg.RetryBackoff)

	sc := cfg.saramaConfig()
	assert.Equal(t, sarama.OffsetOldest, sc.Consumer.Offsets.Initial)
	assert.Equal(t, sarama.V2_8_0_0, sc.Version)
	assert.True(t, sc.Producer.Return.Successes)
}

func TestSender(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		ev, err := event.Decode(val)
		if err != nil {
			return err
		}
		if ev != event.Shutdown("report") {
			return errors.New("unexpected event " + ev.String())
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	s := &Sender{producer: producer, topic: DefaultTopic}
	ctx := context.Background()

	require.NoError(t, s.Send(ctx, event.Shutdown("report")))
	assert.ErrorIs(t, s.Send(ctx, event.Freeze("report", time.Second)), sarama.ErrOutOfBrokers)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.Send(canceled, event.Shutdown("report")), context.Canceled)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Send(ctx, event.Shutdown("report")), rt.ErrClosed)
}

func TestChannel_Forward(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	group := newFakeGroup()
	tx, rx := NewWithClients(&Config{RetryBackoff: 10 * time.Millisecond}, producer, group)
	defer tx.Close()

	group.msgs <- &sarama.ConsumerMessage{Offset: 1, Value: []byte("{")}
	group.msgs <- &sarama.ConsumerMessage{Offset: 2, Value: encoded(t, event.Freeze("a", time.Second))}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ev, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, event.Freeze("a", time.Second), ev)

	assert.Eventually(t, func() bool {
		return len(group.markedOffsets()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{1, 2}, group.markedOffsets())

	require.NoError(t, rx.Close())
	select {
	case <-group.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer group not closed after receivers dropped")
	}
}

func TestClaimHandler_ReceiversGone(t *testing.T) {
	group := newFakeGroup()
	_, rx := NewWithClients(nil, mocks.NewSyncProducer(t, nil), group)
	require.NoError(t, rx.Close())

	select {
	case <-group.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer group not closed")
	}
	assert.Empty(t, group.markedOffsets())
}

func TestNew_Errors(t *testing.T) {
	_, _, err := New(nil)
	assert.ErrorIs(t, err, ErrNilConfig)

	_, _, err = NewFactory(&Config{Brokers: []string{"127.0.0.1:1"}})()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCreateProducer)
}

// Kafka 集成测试
// 需要设置环境变量 KAFKA_BROKERS 指向 Kafka 集群，多个地址以逗号分隔
// 例如: export KAFKA_BROKERS=localhost:9092

type KafkaTestSuite struct {
	suite.Suite
	brokers []string
}

func TestKafkaSuite(t *testing.T) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_BROKERS not set, skipping integration tests")
	}
	suite.Run(t, &KafkaTestSuite{brokers: strings.Split(brokers, ",")})
}

func (s *KafkaTestSuite) TestSendRecv() {
	cfg := &Config{
		Brokers:       s.brokers,
		Topic:         "nebulas.test." + uuid.NewString(),
		GroupID:       "nebulas-test-" + uuid.NewString(),
		InitialOffset: OffsetOldest,
	}
	tx, rx, err := New(cfg)
	s.Require().NoError(err)
	defer tx.Close()
	defer rx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.Require().NoError(tx.Send(ctx, event.Shutdown("a")))

	ev, err := rx.Recv(ctx)
	s.Require().NoError(err)
	s.Equal(event.Shutdown("a"), ev)
}
