package expense

import (
	"fmt"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	expenseDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/expense"
	"github.com/frahmantamala/expense-insights/internal/core/money"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/shopspring/decimal"
)

type Expense struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Date          timeframe.Date  `json:"date"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod *string         `json:"payment_method,omitempty"`
	Merchant      *string         `json:"merchant,omitempty"`
	ImportBatchID *int64          `json:"import_batch_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (e *Expense) IsImported() bool {
	return e.ImportBatchID != nil
}

// Scope selects whose rows an aggregate or listing covers. AllUsers is the admin-only view.
type Scope struct {
	UserID   int64
	AllUsers bool
}

func UserScope(userID int64) Scope {
	return Scope{UserID: userID}
}

// ResolveScope checks the actor may see the requested rows.
func ResolveScope(actor internal.Actor, userID int64, allUsers bool) (Scope, error) {
	if allUsers {
		if !actor.IsAdmin {
			return Scope{}, internal.ErrPermissionDenied
		}
		return Scope{AllUsers: true}, nil
	}
	id, err := internal.ResolveUser(actor, userID)
	if err != nil {
		return Scope{}, err
	}
	return Scope{UserID: id}, nil
}

type MonthTotal struct {
	Year  int             `json:"year"`
	Month time.Month      `json:"month"`
	Total decimal.Decimal `json:"total"`
	Count int64           `json:"count"`
}

func (m MonthTotal) Label() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int64           `json:"count"`
}

type MonthCategoryTotal struct {
	Year     int             `json:"year"`
	Month    time.Month      `json:"month"`
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int64           `json:"count"`
}

type Total struct {
	Total decimal.Decimal `json:"total"`
	Count int64           `json:"count"`
}

func NewExpense(userID int64, dto CreateExpenseDTO) *Expense {
	return &Expense{
		UserID:        userID,
		Date:          timeframe.NewDate(dto.Date.Time),
		Description:   dto.Description,
		Category:      dto.Category,
		Amount:        money.Round(dto.Amount),
		PaymentMethod: dto.PaymentMethod,
		Merchant:      dto.Merchant,
	}
}

func ToDataModel(e *Expense) *expenseDatamodel.Expense {
	return &expenseDatamodel.Expense{
		ID:            e.ID,
		UserID:        e.UserID,
		Date:          timeframe.Day(e.Date.Time),
		Description:   e.Description,
		Category:      e.Category,
		AmountCents:   money.ToCents(e.Amount),
		PaymentMethod: e.PaymentMethod,
		Merchant:      e.Merchant,
		ImportBatchID: e.ImportBatchID,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func FromDataModel(e *expenseDatamodel.Expense) *Expense {
	return &Expense{
		ID:            e.ID,
		UserID:        e.UserID,
		Date:          timeframe.NewDate(e.Date),
		Description:   e.Description,
		Category:      e.Category,
		Amount:        money.FromCents(e.AmountCents),
		PaymentMethod: e.PaymentMethod,
		Merchant:      e.Merchant,
		ImportBatchID: e.ImportBatchID,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func FromDataModelSlice(expenses []*expenseDatamodel.Expense) []*Expense {
	result := make([]*Expense, len(expenses))
	for i, e := range expenses {
		result[i] = FromDataModel(e)
	}
	return result
}
