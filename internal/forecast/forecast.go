// Package forecast projects future spending from monthly history. The projections are
// heuristics: a short moving average with a flat drift, no seasonality.
package forecast

import (
	"time"

	"github.com/frahmantamala/expense-insights/internal/budget"
	"github.com/shopspring/decimal"
)

const (
	MinHistoryMonths = 3
	DefaultHorizon   = 3
	MaxHorizon       = 12
	baselineWindow   = 3
)

var (
	// monthlyDrift is added per projected month: month i is baseline × (1 + drift × i).
	monthlyDrift = decimal.RequireFromString("0.03")
	// lastMonthGrowth scales last month's spend into this month's expectation.
	lastMonthGrowth = decimal.RequireFromString("1.05")
	hundred         = decimal.NewFromInt(100)
)

type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Point struct {
	Year   int             `json:"year"`
	Month  time.Month      `json:"month"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

type Forecast struct {
	Category    *string         `json:"category,omitempty"`
	Baseline    decimal.Decimal `json:"baseline"`
	Historical  []Point         `json:"historical"`
	Forecast    []Point         `json:"forecast"`
	BudgetLines []Point         `json:"budget_lines"`
}

type CategoryProjection struct {
	Category  string          `json:"category"`
	Bucket    string          `json:"bucket"`
	LastMonth decimal.Decimal `json:"last_month"`
	Projected decimal.Decimal `json:"projected"`
}

type BudgetAlert struct {
	Bucket         string          `json:"bucket"`
	Projected      decimal.Decimal `json:"projected"`
	Cap            decimal.Decimal `json:"cap"`
	Overage        decimal.Decimal `json:"overage"`
	OveragePercent decimal.Decimal `json:"overage_percent"`
	Severity       Severity        `json:"severity"`
}

type Projections struct {
	Categories     []CategoryProjection `json:"categories"`
	TotalProjected decimal.Decimal      `json:"total_projected"`
	BudgetAlerts   []BudgetAlert        `json:"budget_alerts"`
}

type Prediction struct {
	MonthAnalyzed       string          `json:"month_analyzed"`
	TotalLastMonth      decimal.Decimal `json:"total_last_month"`
	Categories          []CategorySpend `json:"categories"`
	Predictions         Projections     `json:"predictions"`
	SignificantOverages []BudgetAlert   `json:"significant_overages"`
}

type CategorySpend struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// capFor returns the cap that governs a category: its custom category, else its bucket.
func capFor(b *budget.Budget, category string) (string, decimal.Decimal) {
	custom, bucket := b.Classify(category)
	if custom != nil {
		return custom.Name, custom.Amount
	}
	return bucket.Title(), b.Caps.For(bucket)
}
