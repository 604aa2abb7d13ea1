package importer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/expense-insights/internal/core/common/validation"
	"github.com/frahmantamala/expense-insights/internal/core/money"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/expense"
	"github.com/frahmantamala/expense-insights/internal/importer/source"
)

var RequiredColumns = []string{"date", "amount", "category", "description"}

// dateLayouts are tried in order; month-first wins over day-first for ambiguous slashes.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"1/2/2006",
	"2/1/2006",
	"2006-01-02 15:04:05",
	"01-02-06",
}

type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}

// Rejection explains why one source row was skipped. Row is the 1-based line including the header.
type Rejection struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type ParseResult struct {
	Rows     []expense.CreateExpenseDTO
	Rejected []Rejection
}

func CheckColumns(t *source.Table) error {
	idx := t.Index()
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}

// ParseTable turns source rows into expense inputs. Rows that fail validation are counted and
// skipped; only a missing required column fails the whole table.
func ParseTable(t *source.Table, now time.Time) (*ParseResult, error) {
	if err := CheckColumns(t); err != nil {
		return nil, err
	}
	idx := t.Index()
	cell := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok {
			return ""
		}
		return row[i]
	}

	result := &ParseResult{}
	for i, row := range t.Rows {
		line := i + 2
		dto, reason := parseRow(row, cell, now)
		if reason != "" {
			result.Rejected = append(result.Rejected, Rejection{Row: line, Reason: reason})
			continue
		}
		result.Rows = append(result.Rows, dto)
	}
	return result, nil
}

func parseRow(row []string, cell func([]string, string) string, now time.Time) (expense.CreateExpenseDTO, string) {
	date, err := ParseDate(cell(row, "date"))
	if err != nil {
		return expense.CreateExpenseDTO{}, err.Error()
	}
	amount, err := money.Parse(cell(row, "amount"))
	if err != nil {
		return expense.CreateExpenseDTO{}, "amount: " + err.Error()
	}

	dto := expense.CreateExpenseDTO{
		Date:          timeframe.NewDate(date),
		Description:   cell(row, "description"),
		Category:      cell(row, "category"),
		Amount:        amount,
		PaymentMethod: optional(cell(row, "payment_method")),
		Merchant:      optional(cell(row, "merchant")),
	}
	dto.Normalize()
	if appErr := validation.ValidateExpense(validation.ExpenseFields{
		Description: dto.Description,
		Category:    dto.Category,
		Amount:      dto.Amount,
		Date:        dto.Date.Time,
	}, now); appErr != nil {
		return expense.CreateExpenseDTO{}, appErr.GetDetailedMessage()
	}
	return dto, ""
}

func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if money.IsEmpty(s) {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return timeframe.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func optional(s string) *string {
	if money.IsEmpty(s) {
		return nil
	}
	return &s
}
