package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsukikage7/nebulas/event"
	"github.com/Tsukikage7/nebulas/rt"
)

func TestSendRecv_FIFO(t *testing.T) {
	ctx := context.Background()
	tx, rx := New()

	require.NoError(t, tx.Send(ctx, event.Shutdown("a")))
	require.NoError(t, tx.Send(ctx, event.Freeze("b", time.Second)))
	assert.Equal(t, 2, tx.Len())

	ev, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, event.Shutdown("a"), ev)

	ev, err = rx.TryRecv(ctx)
	require.NoError(t, err)
	assert.Equal(t, event.Freeze("b", time.Second), ev)
}

func TestTryRecv_Empty(t *testing.T) {
	_, rx := New()

	_, err := rx.TryRecv(context.Background())
	assert.ErrorIs(t, err, rt.ErrEmpty)
}

func TestRecv_ContextCancelled(t *testing.T) {
	_, rx := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := rx.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSend_AllReceiversClosed(t *testing.T) {
	tx, rx := New()
	clone := rx.Clone()

	require.NoError(t, rx.Close())
	require.NoError(t, tx.Send(context.Background(), event.Shutdown("a")))

	require.NoError(t, clone.Close())
	assert.ErrorIs(t, tx.Send(context.Background(), event.Shutdown("a")), rt.ErrClosed)

	select {
	case <-tx.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestSend_BlocksWhenFull(t *testing.T) {
	tx, rx := New(WithCapacity(1))
	ctx := context.Background()

	require.NoError(t, tx.Send(ctx, event.Shutdown("a")))

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tx.Send(timeout, event.Shutdown("b")), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- tx.Send(ctx, event.Shutdown("c")) }()

	_, err := rx.Recv(ctx)
	require.NoError(t, err)
	require.NoError(t, <-done)

	ev, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, event.TaskID("c"), ev.To)
}

func TestSend_UnblockedByReceiverClose(t *testing.T) {
	tx, rx := New(WithCapacity(0))

	done := make(chan error, 1)
	go func() { done <- tx.Send(context.Background(), event.Shutdown("a")) }()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, rx.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, rt.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("send not released by receiver close")
	}
}

func TestSenderClose_DrainsThenClosed(t *testing.T) {
	ctx := context.Background()
	tx, rx := New()

	require.NoError(t, tx.Send(ctx, event.Shutdown("a")))
	require.NoError(t, tx.Close())
	require.NoError(t, tx.Close())

	assert.ErrorIs(t, tx.Send(ctx, event.Shutdown("b")), rt.ErrClosed)

	ev, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, event.TaskID("a"), ev.To)

	_, err = rx.Recv(ctx)
	assert.ErrorIs(t, err, rt.ErrClosed)
	_, err = rx.TryRecv(ctx)
	assert.ErrorIs(t, err, rt.ErrClosed)
}

func TestReceiver_ClosedHandle(t *testing.T) {
	_, rx := New()
	clone := rx.Clone()

	require.NoError(t, rx.Close())
	require.NoError(t, rx.Close())

	_, err := rx.Recv(context.Background())
	assert.ErrorIs(t, err, rt.ErrClosed)

	_, err = rx.Clone().TryRecv(context.Background())
	assert.ErrorIs(t, err, rt.ErrClosed)

	_, err = clone.TryRecv(context.Background())
	assert.ErrorIs(t, err, rt.ErrEmpty)
}

func TestClones_CompeteForEvents(t *testing.T) {
	ctx := context.Background()
	tx, rx := New()
	clones := []rt.Receiver{rx, rx.Clone(), rx.Clone()}

	const total = 30
	for i := 0; i < total; i++ {
		require.NoError(t, tx.Send(ctx, event.Shutdown("a")))
	}
	require.NoError(t, tx.Close())

	var (
		mu       sync.Mutex
		received int
		wg       sync.WaitGroup
	)
	for _, c := range clones {
		wg.Add(1)
		go func(r rt.Receiver) {
			defer wg.Done()
			for {
				if _, err := r.Recv(ctx); err != nil {
					return
				}
				mu.Lock()
				received++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	assert.Equal(t, total, received)
}

func TestNewFactory(t *testing.T) {
	tx, rx, err := NewFactory(WithCapacity(2))()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, tx.Send(ctx, event.Shutdown("a")))
	require.NoError(t, tx.Send(ctx, event.Shutdown("b")))

	full, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tx.Send(full, event.Shutdown("c")), context.DeadlineExceeded)

	_, err = rx.TryRecv(ctx)
	assert.NoError(t, err)
}
