// Package main применяет goose миграции схемы ordering и сверяет её с отображением Order.
//
// Использование: migrate [up|status]; DSN берётся из ORDER_POSTGRES_DSN.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/shestoi/ordering/services/order/internal/config"
	"github.com/shestoi/ordering/services/order/internal/orderingmap"
	"github.com/shestoi/ordering/services/order/internal/repository/postgres"
	"github.com/shestoi/ordering/services/order/migrations"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Storage != config.StoragePostgres {
		log.Fatalf("migrate requires ORDER_STORAGE=postgres, got %s", cfg.Storage)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	switch command {
	case "up":
		if err := migrations.Up(ctx, db); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
	case "status":
		if err := migrations.Status(ctx, db); err != nil {
			log.Fatalf("failed to read migration status: %v", err)
		}
		return
	default:
		log.Fatalf("unknown command %q (must be up/status)", command)
	}

	m, err := orderingmap.OrderMapping()
	if err != nil {
		log.Fatalf("invalid order mapping: %v", err)
	}
	if err := postgres.VerifySchema(ctx, pool, m.Describe()); err != nil {
		log.Fatalf("schema does not match order mapping: %v", err)
	}

	log.Printf("Migrations applied, schema matches order mapping")
}
