package hilo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Querier подмножество pgxpool.Pool / pgx.Tx, нужное источнику
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSequence берёт блоки через nextval.
// Шаг последовательности (INCREMENT BY) должен равняться размеру блока; это проверяется при первом обращении.
type PostgresSequence struct {
	db     Querier
	schema string
	name   string

	mu       sync.Mutex
	verified bool
}

// NewPostgresSequence создаёт источник для последовательности schema.name
func NewPostgresSequence(db Querier, schema, name string) *PostgresSequence {
	return &PostgresSequence{db: db, schema: schema, name: name}
}

// NextBlock возвращает nextval: начало блока [v, v+size-1]
func (s *PostgresSequence) NextBlock(ctx context.Context, size int64) (int64, error) {
	if err := s.verify(ctx, size); err != nil {
		return 0, err
	}

	var start int64
	qualified := pgx.Identifier{s.schema, s.name}.Sanitize()
	if err := s.db.QueryRow(ctx, "SELECT nextval($1::regclass)", qualified).Scan(&start); err != nil {
		return 0, fmt.Errorf("nextval %s.%s: %w", s.schema, s.name, err)
	}
	return start, nil
}

func (s *PostgresSequence) verify(ctx context.Context, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verified {
		return nil
	}

	var increment int64
	err := s.db.QueryRow(ctx,
		`SELECT increment_by FROM pg_sequences WHERE schemaname = $1 AND sequencename = $2`,
		s.schema, s.name,
	).Scan(&increment)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: sequence %s.%s does not exist", ErrInvalidBlock, s.schema, s.name)
	}
	if err != nil {
		return fmt.Errorf("read sequence %s.%s: %w", s.schema, s.name, err)
	}
	if increment != size {
		return fmt.Errorf("%w: sequence %s.%s increments by %d, block size is %d", ErrInvalidBlock, s.schema, s.name, increment, size)
	}

	s.verified = true
	return nil
}
