package expense

import (
	"strings"

	"github.com/frahmantamala/expense-insights/internal/core/money"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/shopspring/decimal"
)

type CreateExpenseDTO struct {
	// UserID lets an admin record an expense for someone else; zero means the caller.
	UserID        int64           `json:"user_id,omitempty"`
	Date          timeframe.Date  `json:"date"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod *string         `json:"payment_method,omitempty"`
	Merchant      *string         `json:"merchant,omitempty"`
	AllowFuture   bool            `json:"allow_future,omitempty"`
}

// Normalize trims text and rounds the amount to cents, so validation sees the stored value.
func (dto *CreateExpenseDTO) Normalize() {
	dto.Description = strings.TrimSpace(dto.Description)
	dto.Category = strings.TrimSpace(dto.Category)
	dto.Amount = money.Round(dto.Amount)
}

type UpdateExpenseDTO struct {
	Date        *timeframe.Date  `json:"date,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
}

type SortField string

const (
	SortByDate        SortField = "date"
	SortByAmount      SortField = "amount"
	SortByCategory    SortField = "category"
	SortByDescription SortField = "description"
)

type Sort struct {
	Field SortField
	Desc  bool
}

// ParseSort reads "amount", "-date" and similar; unknown fields fall back to newest first.
func ParseSort(s string) Sort {
	s = strings.TrimSpace(strings.ToLower(s))
	desc := false
	if strings.HasPrefix(s, "-") {
		desc = true
		s = s[1:]
	}
	switch f := SortField(s); f {
	case SortByDate, SortByAmount, SortByCategory, SortByDescription:
		return Sort{Field: f, Desc: desc}
	}
	return Sort{Field: SortByDate, Desc: true}
}

type ListFilter struct {
	Search         string
	Category       string
	Period         *timeframe.Period
	ExcludeImports bool
}

type PageRequest struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (p PageRequest) Normalize() PageRequest {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p PageRequest) Offset() int {
	return (p.Number - 1) * p.Size
}

type Page struct {
	Items      []*Expense `json:"items"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// MonthFilter narrows monthly aggregates. Imported rows are excluded unless IncludeImports.
type MonthFilter struct {
	IncludeImports bool
	Category       *string
}
