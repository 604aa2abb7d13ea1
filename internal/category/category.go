// Package category lists the categories a user has spent in, for pickers and autocompletion.
// Categories are free text on expenses; this package only reads them.
package category

import (
	"github.com/frahmantamala/expense-insights/internal/budget"
	"github.com/frahmantamala/expense-insights/internal/expense"
	"github.com/shopspring/decimal"
)

type Category struct {
	Name   string          `json:"name"`
	Bucket budget.Bucket   `json:"bucket"`
	Total  decimal.Decimal `json:"total"`
	Count  int64           `json:"count"`
}

func FromTotal(t expense.CategoryTotal) *Category {
	return &Category{
		Name:   t.Category,
		Bucket: budget.StandardBucket(t.Category),
		Total:  t.Total,
		Count:  t.Count,
	}
}
