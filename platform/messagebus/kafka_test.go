package messagebus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKafkaMessageConversion(t *testing.T) {
	headers := map[string]string{
		"correlation-id": "5f0c5e0a-3f7b-4d0b-9a59-7d0c0c3c9d11",
		"message-type":   "ordering.messages:Order",
	}

	km := kafka.Message{
		Topic:     "ordering.order",
		Partition: 2,
		Offset:    42,
		Key:       []byte("k"),
		Value:     []byte(`{"orderNumber":"PO-1"}`),
		Headers:   toKafkaHeaders(headers),
	}

	msg := fromKafkaMessage(km)
	assert.Equal(t, "ordering.order", msg.Subject)
	assert.Equal(t, 2, msg.Partition)
	assert.Equal(t, int64(42), msg.Offset)
	assert.Equal(t, headers, msg.Headers)
	assert.Equal(t, km.Value, msg.Data)
}

func TestToKafkaHeaders_Empty(t *testing.T) {
	assert.Nil(t, toKafkaHeaders(nil))
}

// partitionLog одна партиция с offset группы; readers читают с закоммиченного offset
type partitionLog struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed int64
	opened    int
}

func (p *partitionLog) newReader() kafkaReader {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened++
	return &fakeReader{log: p, next: p.committed}
}

func (p *partitionLog) committedOffset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.committed
}

func (p *partitionLog) readers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

type fakeReader struct {
	log  *partitionLog
	next int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.log.mu.Lock()
	if r.next < int64(len(r.log.messages)) {
		m := r.log.messages[r.next]
		r.next++
		r.log.mu.Unlock()
		return m, nil
	}
	r.log.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	for _, m := range msgs {
		if m.Offset+1 > r.log.committed {
			r.log.committed = m.Offset + 1
		}
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func newPartitionLog(n int) *partitionLog {
	p := &partitionLog{}
	for i := 0; i < n; i++ {
		p.messages = append(p.messages, kafka.Message{Topic: "ordering.order", Offset: int64(i), Value: []byte{byte(i)}})
	}
	return p
}

func newTestKafkaBus(maxAttempts int) *KafkaBus {
	return NewKafkaBus(zap.NewNop(), KafkaConfig{
		Brokers:       []string{"localhost:19092"},
		CommitTimeout: time.Second,
		MaxAttempts:   maxAttempts,
		BackoffBase:   time.Millisecond,
	}, 1)
}

func runConsume(t *testing.T, bus *KafkaBus, log *partitionLog, handler Handler) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.consume(ctx, log.newReader, handler, 0)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestKafkaConsume_RetriesBeforeCommit(t *testing.T) {
	log := newPartitionLog(2)
	bus := newTestKafkaBus(3)

	var mu sync.Mutex
	calls := map[int64]int{}
	handler := func(_ context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls[msg.Offset]++
		if msg.Offset == 0 && calls[0] < 3 {
			return errors.New("smtp unavailable")
		}
		return nil
	}

	stop := runConsume(t, bus, log, handler)
	defer stop()

	require.Eventually(t, func() bool { return log.committedOffset() == 2 }, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls[0])
	assert.Equal(t, 1, calls[1])
	assert.Equal(t, 1, log.readers())
}

func TestKafkaConsume_FailedMessageIsNotSkipped(t *testing.T) {
	log := newPartitionLog(2)
	bus := newTestKafkaBus(2)

	var mu sync.Mutex
	failing := true
	calls := map[int64]int{}
	handler := func(_ context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls[msg.Offset]++
		if msg.Offset == 0 && failing {
			return errors.New("smtp unavailable")
		}
		return nil
	}

	stop := runConsume(t, bus, log, handler)
	defer stop()

	// после исчерпания попыток reader пересоздаётся и offset 0 читается снова
	require.Eventually(t, func() bool { return log.readers() >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(0), log.committedOffset())

	mu.Lock()
	assert.Zero(t, calls[1], "next message must not be handled while offset 0 is pending")
	failing = false
	mu.Unlock()

	require.Eventually(t, func() bool { return log.committedOffset() == 2 }, time.Second, time.Millisecond)
}

func TestKafkaConsume_StopDuringBackoffDoesNotCommit(t *testing.T) {
	log := newPartitionLog(1)
	bus := NewKafkaBus(zap.NewNop(), KafkaConfig{
		Brokers:       []string{"localhost:19092"},
		CommitTimeout: time.Second,
		MaxAttempts:   3,
		BackoffBase:   time.Hour,
	}, 1)

	handled := make(chan struct{}, 1)
	handler := func(context.Context, *Message) error {
		handled <- struct{}{}
		return errors.New("boom")
	}

	stop := runConsume(t, bus, log, handler)
	<-handled
	stop()

	assert.Equal(t, int64(0), log.committedOffset())
}
