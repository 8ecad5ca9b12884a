package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shestoi/ordering/platform/messagebus"
)

// Env представляет окружение приложения
type Env string

const (
	// EnvLocal - локальное окружение (для разработки на хосте)
	EnvLocal Env = "local"
	// EnvDocker - Docker окружение (для запуска в контейнерах)
	EnvDocker Env = "docker"
)

// Политики подтверждения сообщения Order
const (
	// AckAlways сообщение подтверждается всегда, ошибка отправки только логируется
	AckAlways = "always"
	// AckOnSuccess при ошибке отправки сообщение не подтверждается и доставляется повторно
	AckOnSuccess = "on-success"
)

// Хранилище ключей дедупликации
const (
	DedupStoreMemory = "memory"
	DedupStoreRedis  = "redis"
)

// Config содержит конфигурацию Notification Service
type Config struct {
	AppEnv          Env
	ShutdownTimeout time.Duration
	HealthAddr      string

	// Consumer
	ConsumerGroup   string
	ProcessingDelay time.Duration
	AckPolicy       string
	DLQEnabled      bool

	// Дедупликация писем; DedupTTL == 0 выключает её
	DedupTTL   time.Duration
	DedupStore string
	RedisAddr  string

	// Email
	EmailEnabled   bool
	EmailRecipient string
	EmailFrom      string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string

	// OpenTelemetry
	OTelEnabled       bool
	OTelEndpoint      string
	OTelSamplingRatio float64

	Bus messagebus.Config
}

// Load загружает конфигурацию из переменных окружения
func Load() (Config, error) {
	cfg := Config{}

	// Читаем APP_ENV
	appEnvStr := getString("APP_ENV", string(EnvLocal))
	appEnv := Env(appEnvStr)
	if appEnv != EnvLocal && appEnv != EnvDocker {
		return Config{}, fmt.Errorf("invalid APP_ENV: %s (must be 'local' or 'docker')", appEnvStr)
	}
	cfg.AppEnv = appEnv

	var err error
	// SHUTDOWN_TIMEOUT
	if cfg.ShutdownTimeout, err = time.ParseDuration(getString("SHUTDOWN_TIMEOUT", "10s")); err != nil {
		return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	cfg.HealthAddr = getString("NOTIFICATION_HEALTH_ADDR", ":8082")

	cfg.ConsumerGroup = getString("NOTIFICATION_CONSUMER_GROUP", "notification-order")
	if cfg.ProcessingDelay, err = time.ParseDuration(getString("NOTIFICATION_PROCESSING_DELAY", "0s")); err != nil {
		return Config{}, fmt.Errorf("invalid NOTIFICATION_PROCESSING_DELAY: %w", err)
	}
	cfg.AckPolicy = strings.ToLower(getString("NOTIFICATION_ACK_POLICY", AckAlways))
	if cfg.DLQEnabled, err = getBool("NOTIFICATION_DLQ_ENABLED", true); err != nil {
		return Config{}, err
	}

	if cfg.DedupTTL, err = time.ParseDuration(getString("NOTIFICATION_DEDUP_TTL", "0s")); err != nil {
		return Config{}, fmt.Errorf("invalid NOTIFICATION_DEDUP_TTL: %w", err)
	}
	cfg.DedupStore = strings.ToLower(getString("NOTIFICATION_DEDUP_STORE", DedupStoreMemory))

	// Email
	if cfg.EmailEnabled, err = getBool("EMAIL_ENABLED", false); err != nil {
		return Config{}, err
	}
	cfg.EmailRecipient = getString("EMAIL_RECIPIENT", "testing@domain.com")
	cfg.EmailFrom = getString("EMAIL_FROM", "ordering@domain.com")
	if cfg.AppEnv == EnvLocal {
		cfg.SMTPHost = getString("SMTP_HOST", "127.0.0.1")
		cfg.RedisAddr = getString("REDIS_ADDR", "127.0.0.1:16379")
		cfg.OTelEndpoint = getString("OTEL_EXPORTER_OTLP_ENDPOINT", "127.0.0.1:4317")
	} else {
		cfg.SMTPHost = getString("SMTP_HOST", "mailhog")
		cfg.RedisAddr = getString("REDIS_ADDR", "redis:6379")
		cfg.OTelEndpoint = getString("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317")
	}
	if cfg.SMTPPort, err = strconv.Atoi(getString("SMTP_PORT", "1025")); err != nil {
		return Config{}, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	cfg.SMTPUsername = getString("SMTP_USERNAME", "")
	cfg.SMTPPassword = getString("SMTP_PASSWORD", "")

	if cfg.OTelEnabled, err = getBool("OTEL_ENABLED", false); err != nil {
		return Config{}, err
	}
	if cfg.OTelSamplingRatio, err = strconv.ParseFloat(getString("OTEL_SAMPLING_RATIO", "1.0"), 64); err != nil {
		return Config{}, fmt.Errorf("invalid OTEL_SAMPLING_RATIO: %w", err)
	}

	if err := messagebus.LoadEnv(&cfg.Bus); err != nil {
		return Config{}, err
	}

	// Валидация
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.ConsumerGroup == "" {
		return fmt.Errorf("NOTIFICATION_CONSUMER_GROUP is required")
	}
	if c.ProcessingDelay < 0 {
		return fmt.Errorf("NOTIFICATION_PROCESSING_DELAY must not be negative")
	}
	if c.AckPolicy != AckAlways && c.AckPolicy != AckOnSuccess {
		return fmt.Errorf("invalid NOTIFICATION_ACK_POLICY: %s (must be always/on-success)", c.AckPolicy)
	}
	if c.DedupTTL < 0 {
		return fmt.Errorf("NOTIFICATION_DEDUP_TTL must not be negative")
	}
	if c.DedupTTL > 0 {
		switch c.DedupStore {
		case DedupStoreMemory:
		case DedupStoreRedis:
			if c.RedisAddr == "" {
				return fmt.Errorf("REDIS_ADDR is required for NOTIFICATION_DEDUP_STORE=redis")
			}
		default:
			return fmt.Errorf("invalid NOTIFICATION_DEDUP_STORE: %s (must be memory/redis)", c.DedupStore)
		}
	}
	if c.EmailRecipient == "" {
		return fmt.Errorf("EMAIL_RECIPIENT is required")
	}
	// Валидация SMTP: если email включён, то host и from обязательны
	if c.EmailEnabled {
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when EMAIL_ENABLED=true")
		}
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			return fmt.Errorf("SMTP_PORT must be in 1..65535")
		}
		if c.EmailFrom == "" {
			return fmt.Errorf("EMAIL_FROM is required when EMAIL_ENABLED=true")
		}
	}
	if c.OTelSamplingRatio < 0 || c.OTelSamplingRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be in [0, 1]")
	}
	return c.Bus.Validate()
}

// Log выводит конфигурацию в лог
func (c Config) Log() {
	log.Printf("Config loaded:")
	log.Printf("  APP_ENV: %s", c.AppEnv)
	log.Printf("  SHUTDOWN_TIMEOUT: %s", c.ShutdownTimeout)
	log.Printf("  NOTIFICATION_HEALTH_ADDR: %s", c.HealthAddr)
	log.Printf("  MESSAGEBUS_TRANSPORT: %s", c.Bus.Transport)
	log.Printf("  ORDER_QUEUE: %s", c.Bus.OrderQueue)
	log.Printf("  ORDER_DLQ: %s", c.Bus.DeadLetterQueue)
	log.Printf("  NOTIFICATION_CONSUMER_GROUP: %s", c.ConsumerGroup)
	log.Printf("  NOTIFICATION_PROCESSING_DELAY: %s", c.ProcessingDelay)
	log.Printf("  NOTIFICATION_ACK_POLICY: %s", c.AckPolicy)
	log.Printf("  NOTIFICATION_DLQ_ENABLED: %v", c.DLQEnabled)
	log.Printf("  NOTIFICATION_DEDUP_TTL: %s", c.DedupTTL)
	if c.DedupTTL > 0 {
		log.Printf("  NOTIFICATION_DEDUP_STORE: %s", c.DedupStore)
	}
	log.Printf("  EMAIL_ENABLED: %v", c.EmailEnabled)
	log.Printf("  EMAIL_RECIPIENT: %s", c.EmailRecipient)
	if c.EmailEnabled {
		log.Printf("  SMTP: %s:%d", c.SMTPHost, c.SMTPPort)
		log.Printf("  SMTP_USERNAME: %s", c.SMTPUsername)
		log.Printf("  SMTP_PASSWORD: %s", maskSecret(c.SMTPPassword))
	}
	log.Printf("  OTEL_ENABLED: %v", c.OTelEnabled)
}

// getString читает переменную окружения или возвращает дефолт
func getString(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// maskSecret маскирует пароль для безопасного логирования
func maskSecret(secret string) string {
	if len(secret) == 0 {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:2] + "***" + secret[len(secret)-2:]
}
