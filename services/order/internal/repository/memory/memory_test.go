package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shestoi/ordering/services/order/internal/domain"
	"github.com/shestoi/ordering/services/order/internal/hilo"
	"github.com/shestoi/ordering/services/order/internal/orderingmap"
	"github.com/shestoi/ordering/services/order/internal/repository"
)

func newTestRepository(t *testing.T) *MemoryRepository {
	t.Helper()
	m, err := orderingmap.OrderMapping()
	require.NoError(t, err)
	return NewMemoryRepository(m, hilo.NewGenerator(hilo.NewMemorySequence(), hilo.DefaultBlockSize))
}

func newOrder(t *testing.T) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder(
		domain.NewAddress("1 Main St", "Seattle", "WA", "US", "98101"),
		time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		nil, nil,
	)
	require.NoError(t, err)
	return o
}

func TestMemoryRepository_SaveNewOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	order := newOrder(t)

	require.NoError(t, repo.Save(ctx, order))
	assert.Equal(t, int64(1), order.ID())

	stored := repo.rows[order.ID()]
	assert.Equal(t, order.ID(), stored.owned[orderingmap.AddressNavigation][orderingmap.AddressShadowKey])
	assert.Equal(t, domain.StatusSubmitted.ID, stored.owner["order_status_id"])

	got, err := repo.GetByID(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, order.State(), got.State())
	assert.Equal(t, order.Address(), got.Address())
}

func TestMemoryRepository_UpdateKeepsID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	order := newOrder(t)

	require.NoError(t, repo.Save(ctx, order))
	id := order.ID()

	require.NoError(t, order.SetAwaitingValidationStatus())
	order.SetBuyerID(9)
	require.NoError(t, repo.Save(ctx, order))
	assert.Equal(t, id, order.ID())

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingValidation, got.Status())
	assert.Equal(t, int64(9), *got.BuyerID())
}

func TestMemoryRepository_NotFound(t *testing.T) {
	_, err := newTestRepository(t).GetByID(context.Background(), 404)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

type fixedIDs struct{ id int64 }

func (f fixedIDs) Next(context.Context) (int64, error) { return f.id, nil }

func TestMemoryRepository_DuplicateIDIsConflict(t *testing.T) {
	ctx := context.Background()
	m, err := orderingmap.OrderMapping()
	require.NoError(t, err)
	repo := NewMemoryRepository(m, fixedIDs{id: 7})

	require.NoError(t, repo.Save(ctx, newOrder(t)))
	err = repo.Save(ctx, newOrder(t))
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestMemoryRepository_RetryAfterConflictKeepsOtherOrder(t *testing.T) {
	ctx := context.Background()
	m, err := orderingmap.OrderMapping()
	require.NoError(t, err)
	repo := NewMemoryRepository(m, fixedIDs{id: 7})

	first := newOrder(t)
	require.NoError(t, repo.Save(ctx, first))
	assert.True(t, first.IsPersisted())

	second, err := domain.NewOrder(
		domain.NewAddress("2 Other Rd", "Portland", "OR", "US", "97201"),
		time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
		nil, nil,
	)
	require.NoError(t, err)

	require.ErrorIs(t, repo.Save(ctx, second), repository.ErrConflict)
	assert.Equal(t, int64(7), second.ID())
	assert.False(t, second.IsPersisted())

	require.ErrorIs(t, repo.Save(ctx, second), repository.ErrConflict)

	got, err := repo.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", got.Address().Street)
	assert.Equal(t, first.State(), got.State())
}

func TestMemoryRepository_MissingAddressRow(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	order := newOrder(t)
	require.NoError(t, repo.Save(ctx, order))

	stored := repo.rows[order.ID()]
	delete(stored.owned, orderingmap.AddressNavigation)

	_, err := repo.GetByID(ctx, order.ID())
	require.ErrorIs(t, err, repository.ErrMissingAddress)
}

func TestMemoryRepository_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	const n = 50
	orders := make([]*domain.Order, n)
	for i := range orders {
		orders[i] = newOrder(t)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, o := range orders {
		wg.Add(1)
		go func(o *domain.Order) {
			defer wg.Done()
			errs <- repo.Save(ctx, o)
		}(o)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	seen := make(map[int64]bool, n)
	for _, o := range orders {
		assert.False(t, seen[o.ID()], "duplicate id %d", o.ID())
		seen[o.ID()] = true
	}
	assert.Len(t, repo.rows, n)
}
