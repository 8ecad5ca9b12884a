package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/shestoi/ordering/services/order/internal/mapping"
)

// statements SQL, сгенерированный из описания отображения
type statements struct {
	insertOwner string
	upsertOwner string
	selectOwner string

	owned map[string]ownedStatements
}

type ownedStatements struct {
	insert string
	upsert string
	sel    string
}

func buildStatements(desc mapping.EntityMapping) statements {
	st := statements{
		insertOwner: insertSQL(desc.Table, desc.ColumnNames()),
		upsertOwner: upsertSQL(desc.Table, desc.ColumnNames()),
		selectOwner: selectSQL(desc.Table, desc.ColumnNames()),
		owned:       make(map[string]ownedStatements, len(desc.Owned)),
	}
	for _, o := range desc.Owned {
		cols := o.ColumnNames()
		st.owned[o.Navigation] = ownedStatements{
			insert: insertSQL(o.Table, cols),
			upsert: upsertSQL(o.Table, cols),
			sel:    selectSQL(o.Table, cols),
		}
	}
	return st
}

func tableIdent(t mapping.Table) string {
	if t.Schema == "" {
		return pgx.Identifier{t.Name}.Sanitize()
	}
	return pgx.Identifier{t.Schema, t.Name}.Sanitize()
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(ph, ", ")
}

// insertSQL первая колонка ключевая
func insertSQL(t mapping.Table, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tableIdent(t), columnList(cols), placeholders(len(cols)))
}

func upsertSQL(t mapping.Table, cols []string) string {
	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		ident := pgx.Identifier{c}.Sanitize()
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", ident, ident))
	}
	conflict := fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", pgx.Identifier{cols[0]}.Sanitize())
	if len(sets) > 0 {
		conflict = fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", pgx.Identifier{cols[0]}.Sanitize(), strings.Join(sets, ", "))
	}
	return insertSQL(t, cols) + " " + conflict
}

func selectSQL(t mapping.Table, cols []string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", columnList(cols), tableIdent(t), pgx.Identifier{cols[0]}.Sanitize())
}
