package messagebus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// MemoryBus шина в памяти процесса: для local запуска и тестов.
// Каждое сообщение доставляется одному подписчику каждой group (round-robin внутри group).
// При ошибке handler сообщение доставляется повторно, пока не исчерпаны MaxDeliveries.
type MemoryBus struct {
	logger *zap.Logger
	// MaxDeliveries сколько раз доставлять сообщение, на которое handler вернул ошибку; default 1
	MaxDeliveries int

	mu     sync.Mutex
	closed bool
	subs   map[string]map[string]*memoryGroup
	wg     sync.WaitGroup

	published atomic.Int64
	acked     atomic.Int64
	nacked    atomic.Int64
}

type memoryGroup struct {
	members []memorySub
	next    int
}

type memorySub struct {
	ctx     context.Context
	handler Handler
}

// MemoryStats счётчики доставки
type MemoryStats struct {
	Published int64
	Acked     int64
	Nacked    int64
}

// NewMemoryBus создаёт шину в памяти
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	return &MemoryBus{
		logger:        logger,
		MaxDeliveries: 1,
		subs:          make(map[string]map[string]*memoryGroup),
	}
}

// Publish асинхронно доставляет сообщение подписчикам subject
func (b *MemoryBus) Publish(_ context.Context, subject string, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	b.published.Add(1)
	msg.Subject = subject

	for _, g := range b.subs[subject] {
		alive := g.members[:0]
		for _, s := range g.members {
			if s.ctx.Err() == nil {
				alive = append(alive, s)
			}
		}
		g.members = alive
		if len(g.members) == 0 {
			continue
		}

		sub := g.members[g.next%len(g.members)]
		g.next++

		b.wg.Add(1)
		go b.deliver(sub, cloneMessage(msg))
	}
	return nil
}

func (b *MemoryBus) deliver(sub memorySub, msg Message) {
	defer b.wg.Done()

	attempts := b.MaxDeliveries
	if attempts <= 0 {
		attempts = 1
	}

	ctx := context.WithoutCancel(sub.ctx)
	for attempt := 1; attempt <= attempts; attempt++ {
		err := b.invoke(ctx, sub.handler, &msg)
		if err == nil {
			b.acked.Add(1)
			return
		}
		b.nacked.Add(1)
		b.logger.Warn("handler failed, message not acknowledged",
			zap.String("subject", msg.Subject),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}

func (b *MemoryBus) invoke(ctx context.Context, h Handler, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, msg)
}

// Subscribe регистрирует handler в group
func (b *MemoryBus) Subscribe(ctx context.Context, subject, group string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	groups, ok := b.subs[subject]
	if !ok {
		groups = make(map[string]*memoryGroup)
		b.subs[subject] = groups
	}
	g, ok := groups[group]
	if !ok {
		g = &memoryGroup{}
		groups[group] = g
	}
	g.members = append(g.members, memorySub{ctx: ctx, handler: handler})
	return nil
}

// Wait блокируется, пока все начатые доставки не завершатся
func (b *MemoryBus) Wait() {
	b.wg.Wait()
}

// Stats возвращает снимок счётчиков
func (b *MemoryBus) Stats() MemoryStats {
	return MemoryStats{
		Published: b.published.Load(),
		Acked:     b.acked.Load(),
		Nacked:    b.nacked.Load(),
	}
}

// Close запрещает новые публикации и ждёт in-flight доставки
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

func cloneMessage(m Message) Message {
	headers := make(map[string]string, len(m.Headers))
	for k, v := range m.Headers {
		headers[k] = v
	}
	m.Headers = headers
	m.Data = append([]byte(nil), m.Data...)
	return m
}
