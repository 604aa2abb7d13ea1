package budget

import (
	"strings"
	"time"

	budgetDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/budget"
	"github.com/frahmantamala/expense-insights/internal/core/money"
	"github.com/shopspring/decimal"
)

// Caps holds the monthly limit per standard bucket plus the overall total. Zero means no cap.
type Caps struct {
	Total          decimal.Decimal `json:"total"`
	Food           decimal.Decimal `json:"food"`
	Transportation decimal.Decimal `json:"transportation"`
	Entertainment  decimal.Decimal `json:"entertainment"`
	Bills          decimal.Decimal `json:"bills"`
	Shopping       decimal.Decimal `json:"shopping"`
	Other          decimal.Decimal `json:"other"`
}

func (c Caps) For(b Bucket) decimal.Decimal {
	switch b {
	case BucketFood:
		return c.Food
	case BucketTransportation:
		return c.Transportation
	case BucketEntertainment:
		return c.Entertainment
	case BucketBills:
		return c.Bills
	case BucketShopping:
		return c.Shopping
	}
	return c.Other
}

func (c Caps) Validate() error {
	for _, v := range []decimal.Decimal{c.Total, c.Food, c.Transportation, c.Entertainment, c.Bills, c.Shopping, c.Other} {
		if v.IsNegative() {
			return errNegativeCap
		}
		if !money.InRange(v) {
			return errCapTooLarge
		}
	}
	return nil
}

type CustomCategory struct {
	ID       int64           `json:"id"`
	BudgetID int64           `json:"budget_id"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Icon     *string         `json:"icon,omitempty"`
	Color    *string         `json:"color,omitempty"`
}

type Budget struct {
	ID               int64            `json:"id"`
	UserID           int64            `json:"user_id"`
	Month            int              `json:"month"`
	Year             int              `json:"year"`
	Caps             Caps             `json:"caps"`
	CustomCategories []CustomCategory `json:"custom_categories"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Classify returns the custom category a spending category belongs to, or the standard bucket
// when no custom category claims it.
func (b *Budget) Classify(category string) (custom *CustomCategory, bucket Bucket) {
	for i := range b.CustomCategories {
		if matchesCustom(category, b.CustomCategories[i].Name) {
			return &b.CustomCategories[i], ""
		}
	}
	return nil, StandardBucket(category)
}

func (b *Budget) HasCustomCategory(name string) bool {
	key := nameKey(name)
	for _, c := range b.CustomCategories {
		if nameKey(c.Name) == key {
			return true
		}
	}
	return false
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func ToDataModel(b *Budget) *budgetDatamodel.Budget {
	return &budgetDatamodel.Budget{
		ID:                  b.ID,
		UserID:              b.UserID,
		Month:               b.Month,
		Year:                b.Year,
		TotalCents:          money.ToCents(b.Caps.Total),
		FoodCents:           money.ToCents(b.Caps.Food),
		TransportationCents: money.ToCents(b.Caps.Transportation),
		EntertainmentCents:  money.ToCents(b.Caps.Entertainment),
		BillsCents:          money.ToCents(b.Caps.Bills),
		ShoppingCents:       money.ToCents(b.Caps.Shopping),
		OtherCents:          money.ToCents(b.Caps.Other),
		UpdatedAt:           b.UpdatedAt,
	}
}

func FromDataModel(row *budgetDatamodel.Budget) *Budget {
	b := &Budget{
		ID:     row.ID,
		UserID: row.UserID,
		Month:  row.Month,
		Year:   row.Year,
		Caps: Caps{
			Total:          money.FromCents(row.TotalCents),
			Food:           money.FromCents(row.FoodCents),
			Transportation: money.FromCents(row.TransportationCents),
			Entertainment:  money.FromCents(row.EntertainmentCents),
			Bills:          money.FromCents(row.BillsCents),
			Shopping:       money.FromCents(row.ShoppingCents),
			Other:          money.FromCents(row.OtherCents),
		},
		CustomCategories: make([]CustomCategory, 0, len(row.CustomCategories)),
		UpdatedAt:        row.UpdatedAt,
	}
	for _, c := range row.CustomCategories {
		b.CustomCategories = append(b.CustomCategories, CustomCategoryFromDataModel(&c))
	}
	return b
}

func CustomCategoryToDataModel(c *CustomCategory) *budgetDatamodel.CustomBudgetCategory {
	return &budgetDatamodel.CustomBudgetCategory{
		ID:          c.ID,
		BudgetID:    c.BudgetID,
		Name:        c.Name,
		NameKey:     nameKey(c.Name),
		AmountCents: money.ToCents(c.Amount),
		Icon:        c.Icon,
		Color:       c.Color,
	}
}

func CustomCategoryFromDataModel(row *budgetDatamodel.CustomBudgetCategory) CustomCategory {
	return CustomCategory{
		ID:       row.ID,
		BudgetID: row.BudgetID,
		Name:     row.Name,
		Amount:   money.FromCents(row.AmountCents),
		Icon:     row.Icon,
		Color:    row.Color,
	}
}

type ColorHint string

const (
	HintInfo    ColorHint = "info"
	HintSuccess ColorHint = "success"
	HintWarning ColorHint = "warning"
	HintDanger  ColorHint = "danger"
)

type BucketUsage struct {
	// CategoryID is set on custom category lines.
	CategoryID int64           `json:"category_id,omitempty"`
	Name       string          `json:"name"`
	Spent      decimal.Decimal `json:"spent"`
	Cap        decimal.Decimal `json:"cap"`
	Percentage decimal.Decimal `json:"percentage"`
	ColorHint  ColorHint       `json:"color_hint"`
}

var hundred = decimal.NewFromInt(100)

func newBucketUsage(name string, spent, limit decimal.Decimal) BucketUsage {
	u := BucketUsage{Name: name, Spent: money.Round(spent), Cap: limit, Percentage: decimal.Zero, ColorHint: HintInfo}
	if !limit.IsPositive() {
		return u
	}
	pct := spent.Div(limit).Mul(hundred)
	switch {
	case pct.LessThan(decimal.NewFromInt(70)):
		u.ColorHint = HintSuccess
	case pct.LessThan(decimal.NewFromInt(90)):
		u.ColorHint = HintWarning
	default:
		u.ColorHint = HintDanger
	}
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	u.Percentage = pct.Round(1)
	return u
}

// Exceeded reports spend strictly above a positive cap.
func (u BucketUsage) Exceeded() bool {
	return u.Cap.IsPositive() && u.Spent.GreaterThan(u.Cap)
}

type Usage struct {
	UserID  int64                  `json:"user_id"`
	Month   int                    `json:"month"`
	Year    int                    `json:"year"`
	Total   BucketUsage            `json:"total"`
	Buckets map[Bucket]BucketUsage `json:"buckets"`
	Custom  []BucketUsage          `json:"custom"`
}
