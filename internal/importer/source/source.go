// Package source reads tabular expense data from uploaded files and external SQL databases.
package source

import (
	"context"
	"errors"
	"strings"
)

type Kind string

const (
	KindFile  Kind = "file"
	KindQuery Kind = "query"
	KindTable Kind = "table"
)

var ErrUnsupported = errors.New("unsupported import source")

// Table is raw tabular data. Column names are lower-cased and trimmed; every row has one cell
// per column.
type Table struct {
	Columns []string
	Rows    [][]string
}

type Source interface {
	Kind() Kind
	Load(ctx context.Context) (*Table, error)
}

// NewTable normalises the header and pads or truncates rows to its width. Fully blank rows are
// dropped.
func NewTable(header []string, rows [][]string) *Table {
	t := &Table{Columns: make([]string, len(header))}
	for i, h := range header {
		t.Columns[i] = normaliseColumn(h)
	}
	for _, row := range rows {
		if blank(row) {
			continue
		}
		cells := make([]string, len(t.Columns))
		for i := range cells {
			if i < len(row) {
				cells[i] = strings.TrimSpace(row[i])
			}
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// Index returns the position of each column by name.
func (t *Table) Index() map[string]int {
	idx := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, seen := idx[c]; !seen {
			idx[c] = i
		}
	}
	return idx
}

func normaliseColumn(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
