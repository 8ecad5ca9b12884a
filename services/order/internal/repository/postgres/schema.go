package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/ordering/services/order/internal/mapping"
)

// VerifySchema проверяет, что все колонки отображения есть в БД.
// Вызывается при старте, чтобы расхождение схемы и отображения не всплыло на первой записи.
func VerifySchema(ctx context.Context, pool *pgxpool.Pool, desc mapping.EntityMapping) error {
	tables := map[mapping.Table][]string{desc.Table: desc.ColumnNames()}
	for _, o := range desc.Owned {
		tables[o.Table] = o.ColumnNames()
	}
	for _, ref := range desc.References {
		if _, ok := tables[ref.Target]; !ok {
			tables[ref.Target] = nil
		}
	}

	for table, columns := range tables {
		existing, err := tableColumns(ctx, pool, table)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return fmt.Errorf("%w: table %s does not exist", mapping.ErrInvalidMapping, table)
		}

		var missing []string
		for _, c := range columns {
			if !existing[c] {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("%w: table %s is missing columns %v", mapping.ErrInvalidMapping, table, missing)
		}
	}
	return nil
}

func tableColumns(ctx context.Context, pool *pgxpool.Pool, table mapping.Table) (map[string]bool, error) {
	rows, err := pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2`,
		table.Schema, table.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}
