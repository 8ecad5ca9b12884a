package messagebus

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// kafkaReader часть *kafka.Reader, которой пользуется цикл потребления
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaBus шина поверх segmentio/kafka-go.
// Подписка запускает concurrency readers в одной consumer group.
// Offset коммитится только после успешного handler (at-least-once).
// Handler с ошибкой повторяется с экспоненциальным backoff; после MaxAttempts reader
// пересоздаётся и группа заново читает с последнего закоммиченного offset.
type KafkaBus struct {
	logger      *zap.Logger
	cfg         KafkaConfig
	concurrency int
	writer      *kafka.Writer

	mu      sync.Mutex
	closed  bool
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

// NewKafkaBus создаёт Kafka шину. Topic у writer не задан: он берётся из subject каждого сообщения.
func NewKafkaBus(logger *zap.Logger, cfg KafkaConfig, concurrency int) *KafkaBus {
	if concurrency <= 0 {
		concurrency = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &KafkaBus{
		logger:      logger,
		cfg:         cfg,
		concurrency: concurrency,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish записывает сообщение в топик subject
func (b *KafkaBus) Publish(ctx context.Context, subject string, msg Message) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	err := b.writer.WriteMessages(ctx, kafka.Message{
		Topic:   subject,
		Key:     msg.Key,
		Value:   msg.Data,
		Headers: toKafkaHeaders(msg.Headers),
	})
	if err != nil {
		b.logger.Error("failed to publish message",
			zap.String("topic", subject),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Subscribe запускает readers и сразу возвращает управление
func (b *KafkaBus) Subscribe(ctx context.Context, subject, group string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	loopCtx, cancel := context.WithCancel(ctx)
	b.cancels = append(b.cancels, cancel)

	newReader := func() kafkaReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  b.cfg.Brokers,
			GroupID:  group,
			Topic:    subject,
			MinBytes: 1,
			MaxBytes: 10e6, // 10MB
		})
	}

	for i := 0; i < b.concurrency; i++ {
		b.wg.Add(1)
		go func(worker int) {
			defer b.wg.Done()
			b.consume(loopCtx, newReader, handler, worker)
		}(i)
	}

	b.logger.Info("kafka subscription started",
		zap.String("topic", subject),
		zap.String("group_id", group),
		zap.Int("readers", b.concurrency),
	)
	return nil
}

// consume цикл одного reader: FetchMessage -> handler (с повторами) -> CommitMessages.
// Handler получает контекст без отмены, чтобы начатая обработка доходила до конца при shutdown.
// Пока сообщение не обработано, следующие не читаются, поэтому offset не уходит дальше него.
func (b *KafkaBus) consume(ctx context.Context, newReader func() kafkaReader, handler Handler, worker int) {
	log := b.logger.With(zap.Int("worker", worker))

	reader := newReader()
	defer func() {
		if err := reader.Close(); err != nil {
			log.Warn("failed to close kafka reader", zap.Error(err))
		}
	}()

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer context cancelled, stopping")
				return
			}
			log.Error("failed to fetch message from kafka", zap.Error(err))
			continue
		}

		fields := []zap.Field{
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		}

		if !b.handleWithRetry(ctx, log, handler, m) {
			if ctx.Err() != nil {
				log.Info("consumer context cancelled, offset not committed", fields...)
				return
			}
			log.Error("handler failed after all retries, reopening reader to redeliver from last committed offset",
				append(fields, zap.Int("max_attempts", b.cfg.MaxAttempts))...)
			if err := reader.Close(); err != nil {
				log.Warn("failed to close kafka reader", zap.Error(err))
			}
			reader = newReader()
			continue
		}

		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.CommitTimeout)
		err = reader.CommitMessages(commitCtx, m)
		cancel()
		if err != nil {
			log.Error("failed to commit message offset", append(fields, zap.Error(err))...)
			continue
		}

		log.Debug("message offset committed", fields...)
	}
}

// handleWithRetry вызывает handler до MaxAttempts раз; backoff BackoffBase, 2*BackoffBase, ...
// Возвращает true, если handler вернул nil.
func (b *KafkaBus) handleWithRetry(ctx context.Context, log *zap.Logger, handler Handler, m kafka.Message) bool {
	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := b.cfg.BackoffBase * time.Duration(1<<uint(attempt-2))
			log.Info("retrying message",
				zap.Int64("offset", m.Offset),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", b.cfg.MaxAttempts),
				zap.Duration("backoff", backoff),
			)

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false
			case <-timer.C:
			}
		}

		msg := fromKafkaMessage(m)
		err := handler(context.WithoutCancel(ctx), &msg)
		if err == nil {
			if attempt > 1 {
				log.Info("message processed successfully after retry",
					zap.Int64("offset", m.Offset),
					zap.Int("attempt", attempt),
				)
			}
			return true
		}

		log.Warn("handler failed, offset not committed",
			zap.Error(err),
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
		)
	}
	return false
}

// Close останавливает readers, ждёт in-flight обработчики и закрывает writer
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	cancels := b.cancels
	b.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	b.wg.Wait()

	b.logger.Info("closing kafka writer")
	return b.writer.Close()
}

func toKafkaHeaders(headers map[string]string) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

func fromKafkaMessage(m kafka.Message) Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	return Message{
		Subject:   m.Topic,
		Key:       m.Key,
		Data:      m.Value,
		Headers:   headers,
		Partition: m.Partition,
		Offset:    m.Offset,
	}
}
