package messagebus

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	TransportKafka  = "kafka"
	TransportNATS   = "nats"
	TransportMemory = "memory"
)

// Config конфигурация шины; заполняется из env через LoadEnv
type Config struct {
	// Transport kafka | nats | memory
	Transport string `env:"MESSAGEBUS_TRANSPORT" envDefault:"kafka"`
	// OrderQueue subject, в который публикуются сообщения Order
	OrderQueue string `env:"ORDER_QUEUE" envDefault:"ordering.order"`
	// DeadLetterQueue subject для сообщений, которые не удалось разобрать
	DeadLetterQueue string `env:"ORDER_DLQ" envDefault:"ordering.order.dlq"`
	// Concurrency сколько сообщений обрабатывается параллельно одним подписчиком
	Concurrency int `env:"MESSAGEBUS_CONCURRENCY" envDefault:"4"`

	Kafka KafkaConfig
	NATS  NATSConfig
}

// KafkaConfig параметры Kafka транспорта
type KafkaConfig struct {
	// Brokers список брокеров: локально localhost:19092, в Docker kafka:9092
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:19092"`
	// CommitTimeout таймаут коммита offset после обработки
	CommitTimeout time.Duration `env:"KAFKA_COMMIT_TIMEOUT" envDefault:"5s"`
	// MaxAttempts сколько раз handler вызывается для сообщения до пересоздания reader
	MaxAttempts int `env:"KAFKA_HANDLER_MAX_ATTEMPTS" envDefault:"3"`
	// BackoffBase пауза перед второй попыткой; дальше удваивается
	BackoffBase time.Duration `env:"KAFKA_HANDLER_BACKOFF_BASE" envDefault:"1s"`
}

// NATSConfig параметры NATS транспорта
type NATSConfig struct {
	URL           string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	Name          string        `env:"NATS_CLIENT_NAME" envDefault:"ordering"`
	MaxReconnects int           `env:"NATS_MAX_RECONNECTS" envDefault:"10"`
	ReconnectWait time.Duration `env:"NATS_RECONNECT_WAIT" envDefault:"2s"`
	Timeout       time.Duration `env:"NATS_TIMEOUT" envDefault:"5s"`
}

// LoadEnv загружает конфигурацию из переменных окружения (caarlos0/env/v10) и валидирует её
func LoadEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse messagebus env: %w", err)
	}
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	return cfg.Validate()
}

// Validate проверяет, что выбранный транспорт сконфигурирован
func (c Config) Validate() error {
	if c.OrderQueue == "" {
		return fmt.Errorf("ORDER_QUEUE is required")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("MESSAGEBUS_CONCURRENCY must be > 0, got %d", c.Concurrency)
	}

	switch c.Transport {
	case TransportKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for kafka transport")
		}
		if c.Kafka.MaxAttempts <= 0 {
			return fmt.Errorf("KAFKA_HANDLER_MAX_ATTEMPTS must be > 0, got %d", c.Kafka.MaxAttempts)
		}
		if c.Kafka.BackoffBase < 0 {
			return fmt.Errorf("KAFKA_HANDLER_BACKOFF_BASE must be >= 0, got %s", c.Kafka.BackoffBase)
		}
	case TransportNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("NATS_URL is required for nats transport")
		}
	case TransportMemory:
	default:
		return fmt.Errorf("invalid MESSAGEBUS_TRANSPORT: %q (must be kafka/nats/memory)", c.Transport)
	}
	return nil
}
