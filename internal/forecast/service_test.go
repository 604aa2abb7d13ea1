package forecast_test

import (
	"context"
	"testing"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/budget"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/expense"
	"github.com/frahmantamala/expense-insights/internal/forecast"
	"github.com/frahmantamala/expense-insights/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func TestForecast(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Forecast Suite")
}

type fakeSpending struct {
	months     []expense.MonthTotal
	categories []expense.CategoryTotal
	lastFilter expense.MonthFilter
	lastPeriod *timeframe.Period
}

func (f *fakeSpending) AggregateByMonth(_ context.Context, _ expense.Scope, filter expense.MonthFilter) ([]expense.MonthTotal, error) {
	f.lastFilter = filter
	return f.months, nil
}

func (f *fakeSpending) AggregateByCategory(_ context.Context, _ expense.Scope, period *timeframe.Period) ([]expense.CategoryTotal, error) {
	f.lastPeriod = period
	return f.categories, nil
}

type fakeBudgets struct {
	budget *budget.Budget
}

func (f *fakeBudgets) GetBudget(_ context.Context, userID int64, month, year int) (*budget.Budget, error) {
	b := *f.budget
	b.UserID, b.Month, b.Year = userID, month, year
	return &b, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func month(y int, m time.Month, total string) expense.MonthTotal {
	return expense.MonthTotal{Year: y, Month: m, Total: d(total), Count: 1}
}

func amounts(points []forecast.Point) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.Label + "=" + p.Amount.StringFixed(2)
	}
	return out
}

var _ = Describe("Forecast Service", func() {
	var (
		spending *fakeSpending
		budgets  *fakeBudgets
		service  *forecast.Service
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		spending = &fakeSpending{}
		budgets = &fakeBudgets{budget: &budget.Budget{
			ID: 1,
			Caps: budget.Caps{
				Total:          d("2500"),
				Food:           d("500"),
				Transportation: d("100"),
				Bills:          d("800"),
			},
		}}
		service = forecast.NewService(spending, budgets, forecast.Options{
			HighSeverityPercent: d("20"),
			SignificantPercent:  d("15"),
		}, logger.Discard()).WithClock(func() time.Time {
			return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
		})
	})

	Describe("Forecast", func() {
		It("projects the mean of the last three months with a monthly drift", func() {
			spending.months = []expense.MonthTotal{
				month(2025, time.January, "1000"),
				month(2025, time.February, "1100"),
				month(2025, time.March, "1200"),
			}
			f, err := service.Forecast(ctx, 1, nil, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Baseline.StringFixed(2)).To(Equal("1100.00"))
			Expect(amounts(f.Forecast)).To(Equal([]string{
				"2025-04=1133.00", "2025-05=1166.00", "2025-06=1199.00",
			}))
			Expect(f.Historical).To(HaveLen(3))
			Expect(amounts(f.BudgetLines)).To(Equal([]string{
				"2025-04=2500.00", "2025-05=2500.00", "2025-06=2500.00",
			}))
			Expect(spending.lastFilter.IncludeImports).To(BeTrue())
		})

		It("averages only the most recent three months and rolls over the year", func() {
			spending.months = []expense.MonthTotal{
				month(2024, time.September, "9000"),
				month(2024, time.October, "300"),
				month(2024, time.November, "300"),
				month(2024, time.December, "300"),
			}
			f, err := service.Forecast(ctx, 1, nil, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(amounts(f.Forecast)).To(Equal([]string{"2025-01=309.00"}))
		})

		It("uses the bucket cap for a category forecast", func() {
			spending.months = []expense.MonthTotal{
				month(2025, time.January, "100"),
				month(2025, time.February, "100"),
				month(2025, time.March, "100"),
			}
			category := "Groceries"
			f, err := service.Forecast(ctx, 1, &category, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(*spending.lastFilter.Category).To(Equal("Groceries"))
			Expect(amounts(f.BudgetLines)).To(Equal([]string{"2025-04=500.00", "2025-05=500.00"}))

			other := "Veterinarian"
			f, err = service.Forecast(ctx, 1, &other, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.BudgetLines).To(BeEmpty())
		})

		It("clamps the horizon", func() {
			spending.months = []expense.MonthTotal{
				month(2025, time.January, "1"), month(2025, time.February, "1"), month(2025, time.March, "1"),
			}
			f, err := service.Forecast(ctx, 1, nil, 40)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Forecast).To(HaveLen(forecast.MaxHorizon))

			f, err = service.Forecast(ctx, 1, nil, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Forecast).To(HaveLen(forecast.DefaultHorizon))
		})

		It("needs three months of history", func() {
			spending.months = []expense.MonthTotal{month(2025, time.January, "1"), month(2025, time.February, "1")}
			_, err := service.Forecast(ctx, 1, nil, 3)
			Expect(internal.IsType(err, internal.ErrorTypeInsufficientData)).To(BeTrue())
		})
	})

	Describe("PredictCurrentFromLast", func() {
		It("projects last month forward and flags overrun buckets", func() {
			spending.categories = []expense.CategoryTotal{
				{Category: "Rent", Total: d("700")},
				{Category: "Groceries", Total: d("300")},
				{Category: "Dining", Total: d("200")},
				{Category: "Uber", Total: d("130")},
				{Category: "Veterinarian", Total: d("50")},
			}
			p, err := service.PredictCurrentFromLast(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(spending.lastPeriod.Start).To(Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
			Expect(p.MonthAnalyzed).To(Equal("February 2025"))
			Expect(p.TotalLastMonth.StringFixed(2)).To(Equal("1380.00"))
			Expect(p.Predictions.TotalProjected.StringFixed(2)).To(Equal("1449.00"))
			Expect(p.Predictions.Categories[3].Projected.StringFixed(2)).To(Equal("136.50"))
			Expect(p.Predictions.Categories[3].Bucket).To(Equal("Transportation"))

			alerts := p.Predictions.BudgetAlerts
			Expect(alerts).To(HaveLen(2))
			Expect(alerts[0].Bucket).To(Equal("Transportation"))
			Expect(alerts[0].OveragePercent.String()).To(Equal("36.5"))
			Expect(alerts[0].Severity).To(Equal(forecast.SeverityHigh))
			Expect(alerts[1].Bucket).To(Equal("Food"))
			Expect(alerts[1].Projected.StringFixed(2)).To(Equal("525.00"))
			Expect(alerts[1].Severity).To(Equal(forecast.SeverityMedium))

			Expect(p.SignificantOverages).To(HaveLen(1))
			Expect(p.SignificantOverages[0].Bucket).To(Equal("Transportation"))
		})

		It("checks custom categories against their own cap", func() {
			budgets.budget.CustomCategories = []budget.CustomCategory{{ID: 9, Name: "Coffee", Amount: d("20")}}
			spending.categories = []expense.CategoryTotal{{Category: "coffee", Total: d("30")}}

			p, err := service.PredictCurrentFromLast(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Predictions.BudgetAlerts).To(HaveLen(1))
			Expect(p.Predictions.BudgetAlerts[0].Bucket).To(Equal("Coffee"))
			Expect(p.Predictions.BudgetAlerts[0].Overage.StringFixed(2)).To(Equal("11.50"))
		})

		It("is deterministic for a fixed clock and ledger", func() {
			spending.categories = []expense.CategoryTotal{{Category: "Groceries", Total: d("600")}}
			a, err := service.PredictCurrentFromLast(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			b, err := service.PredictCurrentFromLast(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(a))
		})

		It("reports insufficient data when last month is empty", func() {
			_, err := service.PredictCurrentFromLast(ctx, 1)
			Expect(internal.IsType(err, internal.ErrorTypeInsufficientData)).To(BeTrue())
		})
	})
})
