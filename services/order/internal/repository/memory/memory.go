package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shestoi/ordering/services/order/internal/domain"
	"github.com/shestoi/ordering/services/order/internal/mapping"
	"github.com/shestoi/ordering/services/order/internal/orderingmap"
	"github.com/shestoi/ordering/services/order/internal/repository"
)

// row строки заказа как их увидела бы БД: колонки владельца и owned таблиц
type row struct {
	owner map[string]any
	owned map[string]map[string]any
}

// MemoryRepository реализует OrderRepository в памяти.
// Использует то же отображение и тот же HiLo генератор, что и PostgreSQL репозиторий.
type MemoryRepository struct {
	mapping *mapping.Mapping[domain.OrderState]
	ids     repository.IDGenerator

	mu   sync.RWMutex
	rows map[int64]row
}

// NewMemoryRepository создаёт in-memory репозиторий
func NewMemoryRepository(m *mapping.Mapping[domain.OrderState], ids repository.IDGenerator) *MemoryRepository {
	return &MemoryRepository{
		mapping: m,
		ids:     ids,
		rows:    make(map[int64]row),
	}
}

// Save сохраняет заказ; новый заказ получает id из генератора.
// Пока заказ не сохранён успешно, он вставляется заново и конфликтует с чужой строкой того же id.
func (r *MemoryRepository) Save(ctx context.Context, order *domain.Order) error {
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
	address, err := r.mapping.OwnedRow(orderingmap.AddressNavigation, &state)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rows[state.ID]; exists && isNew {
		return fmt.Errorf("%w: order %d already exists", repository.ErrConflict, state.ID)
	}

	r.rows[state.ID] = row{
		owner: r.mapping.Row(&state),
		owned: map[string]map[string]any{orderingmap.AddressNavigation: address},
	}
	order.MarkPersisted()
	return nil
}

// GetByID восстанавливает заказ из сохранённых строк
func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	r.mu.RLock()
	stored, ok := r.rows[id]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}

	var state domain.OrderState
	if err := r.mapping.Load(&state, stored.owner); err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}

	address, ok := stored.owned[orderingmap.AddressNavigation]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, repository.ErrMissingAddress)
	}
	if key, _ := address[orderingmap.AddressShadowKey].(int64); key != state.ID {
		return nil, fmt.Errorf("order %d: address key %v does not match order id", id, address[orderingmap.AddressShadowKey])
	}
	if err := r.mapping.LoadOwned(orderingmap.AddressNavigation, &state, address); err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}

	return domain.RestoreOrder(state)
}
