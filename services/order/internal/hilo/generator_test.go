package hilo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSequenceSource struct {
	mock.Mock
}

func (m *MockSequenceSource) NextBlock(ctx context.Context, size int64) (int64, error) {
	args := m.Called(ctx, size)
	return args.Get(0).(int64), args.Error(1)
}

func TestGenerator_BlockSequence(t *testing.T) {
	ctx := context.Background()
	source := new(MockSequenceSource)
	source.On("NextBlock", ctx, int64(10)).Return(int64(1), nil).Once()
	source.On("NextBlock", ctx, int64(10)).Return(int64(41), nil).Once()

	g := NewGenerator(source, 10)

	var ids []int64
	for i := 0; i < 12; i++ {
		id, err := g.Next(ctx)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 41, 42}, ids)
	source.AssertExpectations(t)
}

func TestGenerator_DefaultBlockSize(t *testing.T) {
	assert.Equal(t, DefaultBlockSize, NewGenerator(NewMemorySequence(), 0).BlockSize())
}

func TestGenerator_SourceErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		starts  []int64
		err     error
		calls   int
		wantErr error
	}{
		{name: "non-positive start", starts: []int64{0}, calls: 1, wantErr: ErrSequenceExhausted},
		{name: "overlapping block", starts: []int64{11, 15}, calls: 11, wantErr: ErrInvalidBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := new(MockSequenceSource)
			for _, s := range tt.starts {
				source.On("NextBlock", ctx, int64(10)).Return(s, nil).Once()
			}
			g := NewGenerator(source, 10)

			var err error
			for i := 0; i < tt.calls; i++ {
				_, err = g.Next(ctx)
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGenerator_SourceFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	source := new(MockSequenceSource)
	source.On("NextBlock", ctx, int64(10)).Return(int64(0), errors.New("connection refused")).Once()
	source.On("NextBlock", ctx, int64(10)).Return(int64(21), nil).Once()

	g := NewGenerator(source, 10)

	_, err := g.Next(ctx)
	require.Error(t, err)

	id, err := g.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(21), id)
}

func TestGenerator_ConcurrentCallersGetDistinctIDs(t *testing.T) {
	const (
		workers   = 16
		perWorker = 250
	)

	seq := NewMemorySequence()
	// два генератора на одной последовательности, как два экземпляра сервиса
	generators := []*Generator{NewGenerator(seq, 10), NewGenerator(seq, 10)}

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(g *Generator) {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				id, err := g.Next(context.Background())
				if err != nil {
					t.Error(err)
					return
				}
				local = append(local, id)
			}
			for i := 1; i < len(local); i++ {
				if local[i] <= local[i-1] {
					t.Errorf("ids from one caller are not increasing: %d after %d", local[i], local[i-1])
				}
			}

			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if _, dup := seen[id]; dup {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = struct{}{}
			}
		}(generators[w%len(generators)])
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}
