package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/ordering/services/order/internal/domain"
	"github.com/shestoi/ordering/services/order/internal/mapping"
	"github.com/shestoi/ordering/services/order/internal/orderingmap"
	"github.com/shestoi/ordering/services/order/internal/repository"
)

// коды ошибок PostgreSQL
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Repository реализует OrderRepository поверх PostgreSQL.
// SQL строится из отображения orderingmap, заказ и адрес пишутся в одной транзакции.
type Repository struct {
	pool    *pgxpool.Pool
	mapping *mapping.Mapping[domain.OrderState]
	ids     repository.IDGenerator
	stmts   statements
}

// NewRepository создаёт репозиторий; ids выдаёт id новым заказам
func NewRepository(pool *pgxpool.Pool, m *mapping.Mapping[domain.OrderState], ids repository.IDGenerator) *Repository {
	return &Repository{
		pool:    pool,
		mapping: m,
		ids:     ids,
		stmts:   buildStatements(m.Describe()),
	}
}

// Save сохраняет заказ. Новому заказу сначала выдаётся id из HiLo, затем вставляются строки заказа и адреса.
// Уже сохранённый заказ обновляется (upsert). Заказ с id, но без успешной фиксации, снова идёт через INSERT.
func (r *Repository) Save(ctx context.Context, order *domain.Order) error {
	isNew := !order.IsPersisted()
	if order.IsTransient() {
		id, err := r.ids.Next(ctx)
		if err != nil {
			return fmt.Errorf("allocate order id: %w", err)
		}
		if err := order.AssignID(id); err != nil {
			return err
		}
	}

	state := order.State()
	ownedValues, err := r.mapping.OwnedValues(orderingmap.AddressNavigation, &state)
	if err != nil {
		return err
	}

	ownerSQL, addressSQL := r.stmts.upsertOwner, r.stmts.owned[orderingmap.AddressNavigation].upsert
	if isNew {
		ownerSQL, addressSQL = r.stmts.insertOwner, r.stmts.owned[orderingmap.AddressNavigation].insert
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, ownerSQL, r.mapping.Values(&state)...); err != nil {
		return mapPgError(state.ID, err)
	}
	if _, err := tx.Exec(ctx, addressSQL, ownedValues...); err != nil {
		return mapPgError(state.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(state.ID, err)
	}
	order.MarkPersisted()
	return nil
}

// GetByID загружает заказ и его адрес
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var state domain.OrderState

	err := r.pool.QueryRow(ctx, r.stmts.selectOwner, id).Scan(r.mapping.Targets(&state)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	var addressKey int64
	targets, err := r.mapping.OwnedTargets(orderingmap.AddressNavigation, &state, &addressKey)
	if err != nil {
		return nil, err
	}
	err = r.pool.QueryRow(ctx, r.stmts.owned[orderingmap.AddressNavigation].sel, id).Scan(targets...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, repository.ErrMissingAddress)
		}
		return nil, err
	}
	if addressKey != state.ID {
		return nil, fmt.Errorf("order %d: address key %d does not match order id", state.ID, addressKey)
	}

	return domain.RestoreOrder(state)
}

func mapPgError(orderID int64, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation, foreignKeyViolation:
			return fmt.Errorf("%w: order %d: %s (%s)", repository.ErrConflict, orderID, pgErr.Message, pgErr.ConstraintName)
		}
	}
	return err
}
