package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/budget"
	"github.com/frahmantamala/expense-insights/internal/core/money"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/expense"
	"github.com/shopspring/decimal"
)

type SpendingReader interface {
	AggregateByMonth(ctx context.Context, scope expense.Scope, filter expense.MonthFilter) ([]expense.MonthTotal, error)
	AggregateByCategory(ctx context.Context, scope expense.Scope, period *timeframe.Period) ([]expense.CategoryTotal, error)
}

type BudgetReader interface {
	GetBudget(ctx context.Context, userID int64, month, year int) (*budget.Budget, error)
}

type Options struct {
	// HighSeverityPercent is the overage above which an alert is high severity.
	HighSeverityPercent decimal.Decimal
	// SignificantPercent is the overage above which an alert is listed as significant.
	SignificantPercent decimal.Decimal
}

func OptionsFromConfig(cfg internal.ForecastConfig) Options {
	return Options{
		HighSeverityPercent: decimal.NewFromFloat(cfg.HighSeverityPercent),
		SignificantPercent:  decimal.NewFromFloat(cfg.SignificantPercent),
	}
}

type Service struct {
	spending SpendingReader
	budgets  BudgetReader
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(spending SpendingReader, budgets BudgetReader, opts Options, logger *slog.Logger) *Service {
	return &Service{
		spending: spending,
		budgets:  budgets,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Forecast projects the next horizon months from the mean of the last three. Imported rows are
// part of the history.
func (s *Service) Forecast(ctx context.Context, userID int64, category *string, horizon int) (*Forecast, error) {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if horizon > MaxHorizon {
		horizon = MaxHorizon
	}

	history, err := s.spending.AggregateByMonth(ctx, expense.UserScope(userID), expense.MonthFilter{
		IncludeImports: true,
		Category:       category,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate monthly history: %w", err)
	}
	if len(history) < MinHistoryMonths {
		return nil, internal.NewInsufficientDataError(
			fmt.Sprintf("At least %d months of spending are needed for a forecast, found %d", MinHistoryMonths, len(history)))
	}

	f := &Forecast{
		Category:    category,
		Historical:  make([]Point, len(history)),
		Forecast:    make([]Point, 0, horizon),
		BudgetLines: []Point{},
	}
	for i, m := range history {
		f.Historical[i] = point(m.Year, m.Month, m.Total)
	}

	window := history[len(history)-baselineWindow:]
	sum := decimal.Zero
	for _, m := range window {
		sum = sum.Add(m.Total)
	}
	baseline := sum.Div(decimal.NewFromInt(int64(len(window))))
	f.Baseline = money.Round(baseline)

	last := history[len(history)-1]
	for i := 1; i <= horizon; i++ {
		y, m := timeframe.AddMonths(last.Year, last.Month, i)
		factor := decimal.NewFromInt(1).Add(monthlyDrift.Mul(decimal.NewFromInt(int64(i))))
		f.Forecast = append(f.Forecast, point(y, m, baseline.Mul(factor)))
	}

	limit, err := s.capLine(ctx, userID, category)
	if err != nil {
		return nil, err
	}
	if limit.IsPositive() {
		for _, p := range f.Forecast {
			f.BudgetLines = append(f.BudgetLines, point(p.Year, p.Month, limit))
		}
	}
	return f, nil
}

// capLine is the current month's cap for the category's bucket, or the total cap.
func (s *Service) capLine(ctx context.Context, userID int64, category *string) (decimal.Decimal, error) {
	now := s.now()
	b, err := s.budgets.GetBudget(ctx, userID, int(now.Month()), now.Year())
	if err != nil {
		return decimal.Zero, err
	}
	if category == nil {
		return b.Caps.Total, nil
	}
	_, limit := capFor(b, *category)
	return limit, nil
}

// PredictCurrentFromLast expects this month to run 5% above last month, category by category,
// and flags the budget buckets that projection would overrun.
func (s *Service) PredictCurrentFromLast(ctx context.Context, userID int64) (*Prediction, error) {
	now := s.now()
	lastMonth := timeframe.Previous(timeframe.Month, now)
	totals, err := s.spending.AggregateByCategory(ctx, expense.UserScope(userID), &lastMonth)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate last month: %w", err)
	}
	if len(totals) == 0 {
		return nil, internal.NewInsufficientDataError("No expenses were recorded last month")
	}

	b, err := s.budgets.GetBudget(ctx, userID, int(now.Month()), now.Year())
	if err != nil {
		return nil, err
	}

	p := &Prediction{
		MonthAnalyzed:       lastMonth.Label(),
		TotalLastMonth:      decimal.Zero,
		Categories:          make([]CategorySpend, len(totals)),
		SignificantOverages: []BudgetAlert{},
		Predictions: Projections{
			Categories:     make([]CategoryProjection, len(totals)),
			TotalProjected: decimal.Zero,
			BudgetAlerts:   []BudgetAlert{},
		},
	}

	projected := make(map[string]decimal.Decimal)
	caps := make(map[string]decimal.Decimal)
	var order []string
	for i, t := range totals {
		name, limit := capFor(b, t.Category)
		proj := money.Round(t.Total.Mul(lastMonthGrowth))

		p.TotalLastMonth = p.TotalLastMonth.Add(t.Total)
		p.Predictions.TotalProjected = p.Predictions.TotalProjected.Add(proj)
		p.Categories[i] = CategorySpend{Category: t.Category, Total: t.Total}
		p.Predictions.Categories[i] = CategoryProjection{
			Category:  t.Category,
			Bucket:    name,
			LastMonth: t.Total,
			Projected: proj,
		}

		if _, seen := projected[name]; !seen {
			order = append(order, name)
			caps[name] = limit
		}
		projected[name] = projected[name].Add(proj)
	}

	for _, name := range order {
		alert, ok := s.alert(name, projected[name], caps[name])
		if !ok {
			continue
		}
		p.Predictions.BudgetAlerts = append(p.Predictions.BudgetAlerts, alert)
		if alert.OveragePercent.GreaterThan(s.opts.SignificantPercent) {
			p.SignificantOverages = append(p.SignificantOverages, alert)
		}
	}
	sortAlerts(p.Predictions.BudgetAlerts)
	sortAlerts(p.SignificantOverages)

	s.logger.Debug("prediction computed", "user_id", userID, "month", p.MonthAnalyzed, "alerts", len(p.Predictions.BudgetAlerts))
	return p, nil
}

func (s *Service) alert(name string, projected, limit decimal.Decimal) (BudgetAlert, bool) {
	if !limit.IsPositive() || !projected.GreaterThan(limit) {
		return BudgetAlert{}, false
	}
	overage := projected.Sub(limit)
	percent := overage.Div(limit).Mul(hundred).Round(1)
	severity := SeverityMedium
	if percent.GreaterThan(s.opts.HighSeverityPercent) {
		severity = SeverityHigh
	}
	return BudgetAlert{
		Bucket:         name,
		Projected:      projected,
		Cap:            limit,
		Overage:        money.Round(overage),
		OveragePercent: percent,
		Severity:       severity,
	}, true
}

func sortAlerts(alerts []BudgetAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].OveragePercent.GreaterThan(alerts[j].OveragePercent)
	})
}

func point(year int, month time.Month, amount decimal.Decimal) Point {
	return Point{
		Year:   year,
		Month:  month,
		Label:  fmt.Sprintf("%04d-%02d", year, int(month)),
		Amount: money.Round(amount),
	}
}
