package hilo

import (
	"context"
	"sync/atomic"
)

// MemorySequence последовательность в памяти процесса (local, тесты)
type MemorySequence struct {
	value atomic.Int64
}

// NewMemorySequence создаёт последовательность; первый блок начинается с 1
func NewMemorySequence() *MemorySequence {
	return &MemorySequence{}
}

// NextBlock сдвигает последовательность на size
func (s *MemorySequence) NextBlock(_ context.Context, size int64) (int64, error) {
	end := s.value.Add(size)
	return end - size + 1, nil
}
