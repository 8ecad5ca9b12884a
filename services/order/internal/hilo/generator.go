// Package hilo выдаёт id блоками из общей последовательности.
// Каждый процесс забирает блок [start, start+size-1] и раздаёт id локально,
// поэтому несколько экземпляров сервиса не пересекаются.
package hilo

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultBlockSize совпадает с INCREMENT BY последовательности ordering.orderseq
const DefaultBlockSize int64 = 10

var (
	// ErrSequenceExhausted источник вернул неположительное начало блока
	ErrSequenceExhausted = errors.New("hilo: sequence exhausted")
	// ErrInvalidBlock блок пересекается с уже выданным или размер блока не совпадает с шагом последовательности
	ErrInvalidBlock = errors.New("hilo: invalid block")
)

// SequenceSource выдаёт начало следующего блока размера size
type SequenceSource interface {
	NextBlock(ctx context.Context, size int64) (int64, error)
}

// Generator раздаёт id из текущего блока; новый блок берётся, только когда текущий исчерпан
type Generator struct {
	source    SequenceSource
	blockSize int64

	mu   sync.Mutex
	next int64
	high int64 // последний id текущего блока
}

// NewGenerator создаёт генератор; blockSize <= 0 = DefaultBlockSize
func NewGenerator(source SequenceSource, blockSize int64) *Generator {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Generator{source: source, blockSize: blockSize}
}

// BlockSize размер блока
func (g *Generator) BlockSize() int64 {
	return g.blockSize
}

// Next возвращает следующий id. Безопасен для конкурентного вызова.
func (g *Generator) Next(ctx context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.high == 0 || g.next > g.high {
		if err := g.refill(ctx); err != nil {
			return 0, err
		}
	}

	id := g.next
	g.next++
	return id, nil
}

func (g *Generator) refill(ctx context.Context) error {
	start, err := g.source.NextBlock(ctx, g.blockSize)
	if err != nil {
		return fmt.Errorf("hilo next block: %w", err)
	}
	if start <= 0 {
		return fmt.Errorf("%w: block start %d", ErrSequenceExhausted, start)
	}
	if g.high != 0 && start <= g.high {
		return fmt.Errorf("%w: block start %d overlaps previous block ending at %d", ErrInvalidBlock, start, g.high)
	}

	g.next = start
	g.high = start + g.blockSize - 1
	return nil
}
