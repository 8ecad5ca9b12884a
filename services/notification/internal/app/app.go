package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	platformhealth "github.com/shestoi/ordering/platform/health/http"
	platformlogging "github.com/shestoi/ordering/platform/logging"
	"github.com/shestoi/ordering/platform/messagebus"
	"github.com/shestoi/ordering/platform/observability"
	platformshutdown "github.com/shestoi/ordering/platform/shutdown"
	httpapi "github.com/shestoi/ordering/services/notification/internal/api/http"
	"github.com/shestoi/ordering/services/notification/internal/config"
	"github.com/shestoi/ordering/services/notification/internal/consumer"
	"github.com/shestoi/ordering/services/notification/internal/email"
	eventbus "github.com/shestoi/ordering/services/notification/internal/event/bus"
	"github.com/shestoi/ordering/services/notification/internal/idempotency"
)

// App содержит все зависимости для запуска и корректного shutdown Notification Service
type App struct {
	logger        *zap.Logger
	cfg           config.Config
	bus           messagebus.Bus
	orderConsumer *consumer.OrderConsumer
	healthServer  *http.Server
	shutdownMgr   *platformshutdown.Manager
	subscribed    atomic.Bool
	wg            sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Notification Service
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	const op = "app.Build"

	// Создаём logger
	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "notification",
		Env:         string(cfg.AppEnv),
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building Notification service",
		zap.String("transport", cfg.Bus.Transport),
		zap.String("order_queue", cfg.Bus.OrderQueue),
		zap.String("consumer_group", cfg.ConsumerGroup),
		zap.String("ack_policy", cfg.AckPolicy),
	)

	// Создаём shutdown manager; функции выполняются в обратном порядке регистрации
	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	ok := false
	defer func() {
		if !ok {
			shutdownMgr.Shutdown()
		}
	}()

	otelShutdown, err := observability.Init(ctx, observability.Config{
		Enabled:               cfg.OTelEnabled,
		OTLPEndpoint:          cfg.OTelEndpoint,
		SamplingRatio:         cfg.OTelSamplingRatio,
		ServiceName:           "notification",
		DeploymentEnvironment: string(cfg.AppEnv),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	shutdownMgr.Add("otel", otelShutdown)

	// Создаём email sender
	var sender email.Sender
	if cfg.EmailEnabled {
		sender = email.NewSMTPSender(logger, email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		})
		logger.Info("SMTP sender enabled", zap.String("host", cfg.SMTPHost), zap.Int("port", cfg.SMTPPort))
	} else {
		sender = email.NewNoOpSender(logger)
		logger.Warn("Email disabled, using no-op sender")
	}

	// Store дедупликации создаётся до шины: закрывается после неё
	opts := []consumer.Option{}
	if cfg.DedupTTL > 0 {
		var store idempotency.ProcessedStore
		if cfg.DedupStore == config.DedupStoreRedis {
			client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			shutdownMgr.Add("redis", platformshutdown.CloseFunc(client))
			store = idempotency.NewRedisStore(client, "notification:sent:")
		} else {
			store = idempotency.NewMemoryStore()
		}
		opts = append(opts, consumer.WithDeduplication(store, cfg.DedupTTL))
		logger.Info("Order notification deduplication enabled",
			zap.String("store", cfg.DedupStore),
			zap.Duration("ttl", cfg.DedupTTL),
		)
	}

	messageBus, err := messagebus.New(cfg.Bus, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// Шина закрывается раньше otel: in-flight обработчики успевают записать span
	shutdownMgr.Add("message_bus", func(context.Context) error { return messageBus.Close() })

	ackPolicy, err := consumer.ParseAckPolicy(cfg.AckPolicy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.DLQEnabled {
		opts = append(opts, consumer.WithDeadLetter(eventbus.NewDLQPublisher(logger, messageBus, cfg.Bus.DeadLetterQueue)))
	}

	orderConsumer, err := consumer.NewOrderConsumer(logger, sender, consumer.Config{
		Recipient:       cfg.EmailRecipient,
		ProcessingDelay: cfg.ProcessingDelay,
		AckPolicy:       ackPolicy,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{
		logger:        logger,
		cfg:           cfg,
		bus:           messageBus,
		orderConsumer: orderConsumer,
		shutdownMgr:   shutdownMgr,
	}

	// HTTP сервер health/readiness
	router := httpapi.NewRouter(map[string]platformhealth.Check{
		"order_consumer": func(context.Context) error {
			if !a.subscribed.Load() {
				return errors.New("order consumer is not subscribed")
			}
			return nil
		},
	}, logger)
	a.healthServer = &http.Server{
		Addr:         cfg.HealthAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	// Health сервер останавливается первым
	shutdownMgr.Add("health_http_server", platformshutdown.ShutdownHTTPServer(a.healthServer))

	ok = true
	return a, nil
}

// Run запускает сервис и блокируется до получения сигнала shutdown
func (a *App) Run() error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting Notification service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("health HTTP server error", zap.Error(err))
		}
	}()
	a.logger.Info("Health server listening", zap.String("addr", a.healthServer.Addr))

	if err := a.orderConsumer.Start(ctx, a.bus, a.cfg.Bus.OrderQueue, a.cfg.ConsumerGroup); err != nil {
		a.shutdownMgr.Shutdown()
		a.wg.Wait()
		return fmt.Errorf("subscribe order consumer: %w", err)
	}
	a.subscribed.Store(true)
	a.logger.Info("Order consumer started")

	// Ожидаем сигнал и выполняем shutdown
	a.shutdownMgr.Wait()
	a.subscribed.Store(false)

	cancel()
	a.wg.Wait()

	a.logger.Info("Notification service stopped")
	return nil
}
