package consumer

import (
	"context"
	"time"
)

// Sleeper определяет интерфейс для задержки (используется для тестирования)
type Sleeper interface {
	// Sleep выполняет задержку на указанное время или до отмены контекста
	Sleep(ctx context.Context, d time.Duration) error
}

// DefaultSleeper реализует Sleeper через таймер
type DefaultSleeper struct{}

// Sleep ждёт d или отмены ctx
func (s *DefaultSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
