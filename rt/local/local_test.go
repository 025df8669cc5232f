package local

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsukikage7/nebulas/event"
	"github.com/Tsukikage7/nebulas/rt"
)

type mockCollector struct {
	mu     sync.Mutex
	panics int
	gauge  float64
}

func (m *mockCollector) RecordPanic(component, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics++
}
func (m *mockCollector) Counter(string, map[string]string)            {}
func (m *mockCollector) Histogram(string, float64, map[string]string) {}
func (m *mockCollector) Gauge(string, float64, map[string]string)     {}
func (m *mockCollector) AddGauge(_ string, delta float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauge += delta
}
func (m *mockCollector) Handler() http.Handler { return http.NotFoundHandler() }
func (m *mockCollector) Path() string          { return "/metrics" }

func TestSpawn(t *testing.T) {
	r := New()

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		r.Spawn(func() { n.Add(1) })
	}

	require.NoError(t, r.Wait(context.Background()))
	assert.Equal(t, int32(10), n.Load())
}

func TestSpawn_PanicIsContained(t *testing.T) {
	m := &mockCollector{}
	r := New(WithMetrics(m))

	r.Spawn(func() { panic("boom") })
	r.Spawn(func() {})

	require.NoError(t, r.Wait(context.Background()))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.panics)
	assert.Zero(t, m.gauge)
}

func TestWait_ContextEnds(t *testing.T) {
	r := New()
	release := make(chan struct{})
	r.Spawn(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, r.Wait(context.Background()))
}

func TestSleep(t *testing.T) {
	r := New()

	start := time.Now()
	require.NoError(t, r.Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	assert.NoError(t, r.Sleep(context.Background(), 0))
}

func TestSleep_Cancelled(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	start := time.Now()
	err := r.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.ErrorIs(t, r.Sleep(ctx, 0), context.Canceled)
}

func TestChannel_Default(t *testing.T) {
	r := New(WithCapacity(1))

	tx, rx, err := r.Channel()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, tx.Send(ctx, event.Shutdown("a")))

	full, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tx.Send(full, event.Shutdown("b")), context.DeadlineExceeded)

	ev, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, event.TaskID("a"), ev.To)
}

func TestChannel_Factory(t *testing.T) {
	boom := errors.New("dial failed")
	r := New(WithChannelFactory(func() (rt.Sender, rt.Receiver, error) {
		return nil, nil, boom
	}))

	_, _, err := r.Channel()
	assert.ErrorIs(t, err, boom)
}
