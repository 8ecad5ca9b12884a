package messagebus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSBus шина поверх core NATS с queue groups.
// Core NATS не знает про ack: ошибка handler логируется, повторной доставки нет.
type NATSBus struct {
	logger *zap.Logger
	conn   *nats.Conn
	sem    chan struct{}

	mu     sync.Mutex
	closed bool
	subs   []*nats.Subscription
	wg     sync.WaitGroup
}

// NewNATSBus подключается к NATS
func NewNATSBus(logger *zap.Logger, cfg NATSConfig, concurrency int) (*NATSBus, error) {
	if !strings.HasPrefix(cfg.URL, "nats://") && !strings.HasPrefix(cfg.URL, "tls://") {
		return nil, fmt.Errorf("NATS_URL must start with nats:// or tls://, got %q", cfg.URL)
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &NATSBus{
		logger: logger,
		conn:   conn,
		sem:    make(chan struct{}, concurrency),
	}, nil
}

// Publish публикует сообщение с заголовками
func (b *NATSBus) Publish(_ context.Context, subject string, msg Message) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	m := nats.NewMsg(subject)
	m.Data = msg.Data
	for k, v := range msg.Headers {
		m.Header.Set(k, v)
	}
	if err := b.conn.PublishMsg(m); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe подписывает handler в queue group; обработка идёт не более чем в concurrency горутинах
func (b *NATSBus) Subscribe(ctx context.Context, subject, group string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	handlerCtx := context.WithoutCancel(ctx)
	sub, err := b.conn.QueueSubscribe(subject, group, func(m *nats.Msg) {
		if !b.track() {
			return
		}
		b.sem <- struct{}{}
		go func() {
			defer func() {
				<-b.sem
				b.wg.Done()
			}()
			msg := fromNATSMessage(m)
			if err := handler(handlerCtx, &msg); err != nil {
				b.logger.Warn("handler failed",
					zap.String("subject", m.Subject),
					zap.Error(err),
				)
			}
		}()
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	b.subs = append(b.subs, sub)

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()

	b.logger.Info("nats subscription started",
		zap.String("subject", subject),
		zap.String("queue_group", group),
	)
	return nil
}

// track регистрирует in-flight обработку; false если шина уже закрывается
func (b *NATSBus) track() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.wg.Add(1)
	return true
}

// Close снимает подписки, ждёт in-flight обработчики и закрывает соединение
func (b *NATSBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed && err != nats.ErrBadSubscription {
			b.logger.Warn("failed to unsubscribe", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	b.wg.Wait()

	b.logger.Info("closing nats connection")
	b.conn.Close()
	return nil
}

func fromNATSMessage(m *nats.Msg) Message {
	headers := make(map[string]string, len(m.Header))
	for k := range m.Header {
		headers[k] = m.Header.Get(k)
	}
	return Message{
		Subject: m.Subject,
		Data:    m.Data,
		Headers: headers,
	}
}
