package postgres

import (
	"context"

	"github.com/frahmantamala/expense-insights/internal/core/dialect"
	"github.com/frahmantamala/expense-insights/internal/query"
	"github.com/jmoiron/sqlx"
)

type Executor struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

func NewExecutor(db *sqlx.DB) query.Executor {
	return &Executor{db: db, dialect: dialect.FromDriver(db.DriverName())}
}

func (e *Executor) Dialect() dialect.Dialect {
	return e.dialect
}

// Query expands :named parameters and rebinds them to the driver's placeholder style.
func (e *Executor) Query(ctx context.Context, sql string, args map[string]interface{}) ([]query.Row, error) {
	bound, values, err := sqlx.Named(sql, args)
	if err != nil {
		return nil, err
	}
	rows, err := e.db.QueryxContext(ctx, e.db.Rebind(bound), values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []query.Row
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		out = append(out, query.Row(row))
	}
	return out, rows.Err()
}
