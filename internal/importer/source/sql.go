package source

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// QuerySource runs a configured SQL statement against a named data source.
type QuerySource struct {
	URL string
	SQL string
}

func (s QuerySource) Kind() Kind { return KindQuery }

func (s QuerySource) Load(ctx context.Context) (*Table, error) {
	return loadSQL(ctx, s.URL, s.SQL)
}

// TableSource copies every row of one table. The name may be schema-qualified.
type TableSource struct {
	URL   string
	Table string
}

func (s TableSource) Kind() Kind { return KindTable }

func (s TableSource) Load(ctx context.Context) (*Table, error) {
	if err := ValidateTableName(s.Table); err != nil {
		return nil, err
	}
	parts := strings.Split(s.Table, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return loadSQL(ctx, s.URL, "SELECT * FROM "+strings.Join(parts, "."))
}

func ValidateTableName(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// Driver picks the database/sql driver and DSN for a connection URL.
func Driver(rawURL string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(rawURL, "postgres://"), strings.HasPrefix(rawURL, "postgresql://"):
		return "pgx", rawURL, nil
	case strings.HasPrefix(rawURL, "sqlite://"):
		return "sqlite", strings.TrimPrefix(rawURL, "sqlite://"), nil
	case strings.HasPrefix(rawURL, "file:"):
		return "sqlite", rawURL, nil
	}
	return "", "", fmt.Errorf("%w: connection URL scheme", ErrUnsupported)
}

// Redact hides credentials in a connection URL so it can be logged or stored.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	return u.Redacted()
}

func loadSQL(ctx context.Context, rawURL, query string) (*Table, error) {
	driver, dsn, err := Driver(rawURL)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", Redact(rawURL), err)
	}
	defer db.Close()

	rows, err := db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", Redact(rawURL), err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var records [][]string
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = cellString(v)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewTable(columns, records), nil
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
