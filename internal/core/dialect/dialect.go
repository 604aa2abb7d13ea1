// Package dialect holds the few SQL fragments that differ between postgres and sqlite.
package dialect

import "gorm.io/gorm"

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func FromGorm(db *gorm.DB) Dialect {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return SQLite
	}
	return Postgres
}

// FromDriver maps a database/sql driver name onto a dialect.
func FromDriver(driver string) Dialect {
	switch driver {
	case "sqlite", "sqlite3":
		return SQLite
	}
	return Postgres
}

func (d Dialect) YearExpr(column string) string {
	if d == SQLite {
		return "CAST(strftime('%Y', " + column + ") AS INTEGER)"
	}
	return "CAST(EXTRACT(YEAR FROM " + column + ") AS INTEGER)"
}

func (d Dialect) MonthExpr(column string) string {
	if d == SQLite {
		return "CAST(strftime('%m', " + column + ") AS INTEGER)"
	}
	return "CAST(EXTRACT(MONTH FROM " + column + ") AS INTEGER)"
}
