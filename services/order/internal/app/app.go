package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	platformlogging "github.com/shestoi/ordering/platform/logging"
	"github.com/shestoi/ordering/platform/messagebus"
	"github.com/shestoi/ordering/platform/observability"
	platformshutdown "github.com/shestoi/ordering/platform/shutdown"
	"github.com/shestoi/ordering/services/order/internal/config"
	"github.com/shestoi/ordering/services/order/internal/event/bus"
	"github.com/shestoi/ordering/services/order/internal/hilo"
	"github.com/shestoi/ordering/services/order/internal/mapping"
	"github.com/shestoi/ordering/services/order/internal/orderingmap"
	"github.com/shestoi/ordering/services/order/internal/repository"
	"github.com/shestoi/ordering/services/order/internal/repository/memory"
	"github.com/shestoi/ordering/services/order/internal/repository/postgres"
	"github.com/shestoi/ordering/services/order/internal/service"
	"github.com/shestoi/ordering/services/order/migrations"
)

// App содержит все зависимости Order Service и порядок их закрытия
type App struct {
	logger      *zap.Logger
	orders      *service.OrderService
	bus         messagebus.Bus
	shutdownMgr *platformshutdown.Manager
}

// Build создаёт и настраивает все зависимости Order Service.
// Ошибка конфигурации отображения или схемы БД возвращается сразу, до первой записи.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	const op = "app.Build"

	// Создаём logger
	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "order",
		Env:         string(cfg.AppEnv),
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building Order service",
		zap.String("storage", cfg.Storage),
		zap.String("id_source", cfg.IDSource),
		zap.String("transport", cfg.Bus.Transport),
	)

	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	// При ошибке сборки закрываем всё, что уже успели открыть
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
		ServiceName:           "order",
		DeploymentEnvironment: string(cfg.AppEnv),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	shutdownMgr.Add("otel", otelShutdown)

	// Отображение регистрируется один раз на процесс
	registry := mapping.NewRegistry()
	orderMapping, err := orderingmap.Register(registry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var pool *pgxpool.Pool
	if cfg.Storage == config.StoragePostgres {
		pool, err = connectPostgres(ctx, logger, cfg, orderMapping.Describe())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		shutdownMgr.Add("postgres_pool", platformshutdown.ClosePool(pool))
	}

	source, err := newSequenceSource(cfg, pool, orderMapping.Describe(), shutdownMgr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ids := hilo.NewGenerator(source, cfg.HiLoBlockSize)

	var orderRepo repository.OrderRepository
	if pool != nil {
		orderRepo = postgres.NewRepository(pool, orderMapping, ids)
	} else {
		orderRepo = memory.NewMemoryRepository(orderMapping, ids)
	}

	messageBus, err := messagebus.New(cfg.Bus, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// Шина закрывается первой: до пула и otel
	shutdownMgr.Add("message_bus", func(context.Context) error { return messageBus.Close() })

	publisher := bus.NewOrderPublisher(logger, messageBus, cfg.Bus.OrderQueue)
	orderService := service.NewOrderService(logger, orderRepo, publisher)

	ok = true
	return &App{
		logger:      logger,
		orders:      orderService,
		bus:         messageBus,
		shutdownMgr: shutdownMgr,
	}, nil
}

// connectPostgres открывает пул, при необходимости применяет миграции и сверяет схему с отображением
func connectPostgres(ctx context.Context, logger *zap.Logger, cfg config.Config, desc mapping.EntityMapping) (*pgxpool.Pool, error) {
	logger.Info("Connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("PostgreSQL connection established")

	if cfg.MigrateOnStart {
		db := stdlib.OpenDBFromPool(pool)
		err := migrations.Up(ctx, db)
		_ = db.Close()
		if err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("Migrations applied")
	}

	if err := postgres.VerifySchema(ctx, pool, desc); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// newSequenceSource выбирает источник HiLo блоков по cfg.IDSource
func newSequenceSource(cfg config.Config, pool *pgxpool.Pool, desc mapping.EntityMapping, shutdownMgr *platformshutdown.Manager) (hilo.SequenceSource, error) {
	switch cfg.IDSource {
	case config.IDSourcePostgres:
		if desc.Sequence == nil {
			return nil, fmt.Errorf("entity %s has no hilo sequence", desc.Entity)
		}
		return hilo.NewPostgresSequence(pool, desc.Sequence.Schema, desc.Sequence.Name), nil
	case config.IDSourceRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		shutdownMgr.Add("redis", platformshutdown.CloseFunc(client))
		return hilo.NewRedisSequence(client, cfg.RedisSequence), nil
	case config.IDSourceMemory:
		return hilo.NewMemorySequence(), nil
	default:
		return nil, fmt.Errorf("unknown id source %q", cfg.IDSource)
	}
}

// Orders возвращает сервис сценариев заказа
func (a *App) Orders() *service.OrderService {
	return a.orders
}

// Bus возвращает шину, через которую публикуются сообщения Order
func (a *App) Bus() messagebus.Bus {
	return a.bus
}

// Logger возвращает корневой logger приложения
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Close закрывает зависимости в обратном порядке регистрации
func (a *App) Close() {
	a.logger.Info("Shutting down Order service")
	a.shutdownMgr.Shutdown()
	platformlogging.Sync(a.logger)
}
