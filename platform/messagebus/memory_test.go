package messagebus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryBus_DeliversOncePerGroup(t *testing.T) {
	bus := NewMemoryBus(zap.NewNop())
	ctx := context.Background()

	var a, b, other atomic.Int32
	require.NoError(t, bus.Subscribe(ctx, "ordering.order", "notification", func(context.Context, *Message) error {
		a.Add(1)
		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx, "ordering.order", "notification", func(context.Context, *Message) error {
		b.Add(1)
		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx, "ordering.order", "audit", func(context.Context, *Message) error {
		other.Add(1)
		return nil
	}))

	for i := 0; i < 4; i++ {
		require.NoError(t, bus.Publish(ctx, "ordering.order", Message{Data: []byte("x")}))
	}
	bus.Wait()

	assert.Equal(t, int32(4), a.Load()+b.Load())
	assert.Equal(t, int32(2), a.Load())
	assert.Equal(t, int32(4), other.Load())
	assert.Equal(t, MemoryStats{Published: 4, Acked: 8}, bus.Stats())
}

func TestMemoryBus_HeadersAndSubject(t *testing.T) {
	bus := NewMemoryBus(zap.NewNop())

	var (
		mu  sync.Mutex
		got *Message
	)
	require.NoError(t, bus.Subscribe(context.Background(), "ordering.order", "g", func(_ context.Context, m *Message) error {
		mu.Lock()
		defer mu.Unlock()
		got = m
		return nil
	}))

	headers := map[string]string{"correlation-id": "c-1"}
	require.NoError(t, bus.Publish(context.Background(), "ordering.order", Message{Data: []byte("{}"), Headers: headers}))
	headers["correlation-id"] = "mutated"
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	assert.Equal(t, "ordering.order", got.Subject)
	assert.Equal(t, "c-1", got.Header("correlation-id"))
}

func TestMemoryBus_Redelivery(t *testing.T) {
	bus := NewMemoryBus(zap.NewNop())
	bus.MaxDeliveries = 3

	var calls atomic.Int32
	require.NoError(t, bus.Subscribe(context.Background(), "s", "g", func(context.Context, *Message) error {
		if calls.Add(1) < 3 {
			return errors.New("temporary")
		}
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), "s", Message{}))
	bus.Wait()

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, MemoryStats{Published: 1, Acked: 1, Nacked: 2}, bus.Stats())
}

func TestMemoryBus_PanicIsNack(t *testing.T) {
	bus := NewMemoryBus(zap.NewNop())
	require.NoError(t, bus.Subscribe(context.Background(), "s", "g", func(context.Context, *Message) error {
		panic("boom")
	}))

	require.NoError(t, bus.Publish(context.Background(), "s", Message{}))
	bus.Wait()

	assert.Equal(t, int64(1), bus.Stats().Nacked)
}

func TestMemoryBus_CancelledSubscriptionSkipped(t *testing.T) {
	bus := NewMemoryBus(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	require.NoError(t, bus.Subscribe(ctx, "s", "g", func(context.Context, *Message) error {
		calls.Add(1)
		return nil
	}))
	cancel()

	require.NoError(t, bus.Publish(context.Background(), "s", Message{}))
	bus.Wait()
	assert.Zero(t, calls.Load())
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus(zap.NewNop())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), "s", Message{}), ErrClosed)
	assert.ErrorIs(t, bus.Subscribe(context.Background(), "s", "g", nil), ErrClosed)
}
