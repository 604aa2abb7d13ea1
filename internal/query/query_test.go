package query_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/frahmantamala/expense-insights/internal/core/dialect"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/expense"
	expensePostgres "github.com/frahmantamala/expense-insights/internal/expense/postgres"
	"github.com/frahmantamala/expense-insights/internal/query"
	queryPostgres "github.com/frahmantamala/expense-insights/internal/query/postgres"
	"github.com/frahmantamala/expense-insights/internal/testsupport"
	"github.com/frahmantamala/expense-insights/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestQuery(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Query Suite")
}

var _ = Describe("Classify", func() {
	DescribeTable("routes utterances to intents",
		func(utterance string, want query.Intent, captures map[string]string) {
			m := query.Classify(utterance)
			Expect(m.Intent).To(Equal(want))
			for k, v := range captures {
				Expect(m.Captures).To(HaveKeyWithValue(k, v))
			}
		},
		Entry("category in timeframe", "How much did I spend on coffee this month?", query.IntentCategoryInTimeframe,
			map[string]string{"category": "coffee", "timeframe": "this month"}),
		Entry("category total", "how much did i spend on my groceries", query.IntentCategoryTotal,
			map[string]string{"category": "groceries"}),
		Entry("timeframe total", "How much did I spend last week?", query.IntentTimeframeTotal,
			map[string]string{"timeframe": "last week"}),
		Entry("top with count and timeframe", "show my top 3 expenses last month", query.IntentTopExpenses,
			map[string]string{"count": "3", "timeframe": "last month"}),
		Entry("top without count", "What are my biggest purchases?", query.IntentTopExpenses, nil),
		Entry("category comparison", "compare my spending", query.IntentCategoryComparison, nil),
		Entry("breakdown", "breakdown by category this year", query.IntentCategoryComparison,
			map[string]string{"timeframe": "this year"}),
		Entry("month comparison", "Compare monthly spending", query.IntentMonthComparison, nil),
		Entry("explosion", "which category exploded this month", query.IntentCategoryExplosion,
			map[string]string{"timeframe": "this month"}),
		Entry("category with the timeframe", "how much did I spend on food in the last month", query.IntentCategoryInTimeframe,
			map[string]string{"category": "food", "timeframe": "last month"}),
		Entry("timeframe total with the", "how much did I spend during the past week", query.IntentTimeframeTotal,
			map[string]string{"timeframe": "past week"}),
		Entry("category with an unknown time phrase", "how much did I spend on food in january", query.IntentCategoryTotal,
			map[string]string{"category": "food"}),
		Entry("unmatched", "should I buy a boat", query.IntentUnmatched, nil),
	)

	It("prefers the pattern with more captures", func() {
		m := query.Classify("how much did I spend on dining last month")
		Expect(m.Intent).To(Equal(query.IntentCategoryInTimeframe))
		Expect(m.Captures).To(HaveLen(2))
	})
})

var _ = Describe("Compile", func() {
	ref := time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC)

	It("binds the caller and wraps the category", func() {
		c, err := query.Compile(query.Classify("how much did I spend on Dining_Out"), 42, ref, dialect.Postgres)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Args).To(HaveKeyWithValue("user_id", int64(42)))
		Expect(c.Args).To(HaveKeyWithValue("category", `%dining\_out%`))
		Expect(c.SQL).To(ContainSubstring("LOWER(category) LIKE :category"))
		Expect(c.SQL).NotTo(ContainSubstring("{"))
		Expect(c.Period).To(BeNil())
	})

	It("resolves last month across a year boundary", func() {
		c, err := query.Compile(query.Classify("how much did I spend last month"), 1, ref, dialect.SQLite)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Period.Start).To(Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
		Expect(c.Args["end"]).To(Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	})

	It("starts weeks on Monday", func() {
		// 1 Jan 2025 is a Wednesday
		c, err := query.Compile(query.Classify("how much did I spend this week"), 1, ref, dialect.SQLite)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Period.Start).To(Equal(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)))
		Expect(c.Previous.Start).To(Equal(time.Date(2024, 12, 23, 0, 0, 0, 0, time.UTC)))
	})

	It("defaults and caps the count", func() {
		c, err := query.Compile(query.Classify("top expenses"), 1, ref, dialect.SQLite)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Args["count"]).To(Equal(query.DefaultCount))

		c, err = query.Compile(query.Classify("top 500 expenses"), 1, ref, dialect.SQLite)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Count).To(Equal(query.MaxCount))
	})

	It("fills the dialect expressions for monthly comparisons", func() {
		c, err := query.Compile(query.Classify("compare monthly spending"), 1, ref, dialect.SQLite)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.SQL).To(ContainSubstring("strftime('%Y'"))
	})

	It("defaults explosions to this month against last month", func() {
		c, err := query.Compile(query.Classify("which category spiked"), 1, ref, dialect.Postgres)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Period.Kind).To(Equal(timeframe.Month))
		Expect(c.Args["previous_start"]).To(Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
	})
})

var _ = Describe("Router", func() {
	var (
		db     *gorm.DB
		ctx    context.Context
		exec   query.Executor
		userID int64
		now    = time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)
	)

	spend := func(m time.Month, d int, category, amount string) {
		repo := expensePostgres.NewExpenseRepository(db)
		Expect(repo.Create(ctx, &expense.Expense{
			UserID:      userID,
			Date:        timeframe.NewDate(time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)),
			Description: category + " spend",
			Category:    category,
			Amount:      decimal.RequireFromString(amount),
		})).To(Succeed())
	}

	router := func(opts query.Options) *query.Router {
		return query.NewRouter(exec, opts, logger.Discard()).WithClock(func() time.Time { return now })
	}

	BeforeEach(func() {
		var err error
		db, err = testsupport.OpenSQLite()
		Expect(err).NotTo(HaveOccurred())
		u, err := testsupport.CreateUser(db, "ana", false)
		Expect(err).NotTo(HaveOccurred())
		userID = u.ID
		ctx = context.Background()
		sx, err := testsupport.SQLX(db)
		Expect(err).NotTo(HaveOccurred())
		exec = queryPostgres.NewExecutor(sx)
	})

	AfterEach(func() {
		Expect(testsupport.Close(db)).To(Succeed())
	})

	It("names the category that exploded this month", func() {
		spend(time.February, 10, "Dining", "100.00")
		spend(time.March, 2, "Dining", "200.00")
		spend(time.March, 9, "dining", "50.00")
		spend(time.March, 12, "Transport", "50.00")

		answer, err := router(query.Options{}).Answer(ctx, userID, "which category exploded this month")
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Intent).To(Equal(query.IntentCategoryExplosion))
		rows := answer.Data.([]query.ExplosionRow)
		Expect(rows).To(HaveLen(2))
		Expect(rows[0].Line()).To(Equal("Dining, current 250.00, previous 100.00, delta +150.00, change +150.0%"))
		Expect(rows[1].ChangePercent).To(BeNil())
		Expect(answer.Response).To(ContainSubstring("Tip: Dining"))
	})

	It("keeps shrinking categories in the explosion ranking", func() {
		spend(time.February, 10, "Dining", "100.00")
		spend(time.March, 2, "Dining", "70.00")
		spend(time.February, 11, "Travel", "50.00")
		spend(time.March, 4, "Books", "20.00")

		answer, err := router(query.Options{}).Answer(ctx, userID, "which category exploded this month")
		Expect(err).NotTo(HaveOccurred())
		rows := answer.Data.([]query.ExplosionRow)
		Expect(rows).To(HaveLen(3))
		Expect(rows[0].Category).To(Equal("Books"))
		Expect(rows[1].Line()).To(Equal("Dining, current 70.00, previous 100.00, delta -30.00, change -30.0%"))
		Expect(rows[2].Line()).To(Equal("Travel, current 0.00, previous 50.00, delta -50.00, change -100.0%"))
		Expect(answer.Response).To(ContainSubstring("Tip: Books"))
	})

	It("says nothing grew when every category shrank", func() {
		spend(time.February, 10, "Dining", "100.00")
		spend(time.March, 2, "Dining", "40.00")

		answer, err := router(query.Options{}).Answer(ctx, userID, "which category exploded this month")
		Expect(err).NotTo(HaveOccurred())
		rows := answer.Data.([]query.ExplosionRow)
		Expect(rows).To(HaveLen(1))
		Expect(answer.Response).To(HavePrefix("No category grew in March 2025"))
		Expect(answer.Response).To(ContainSubstring("Dining, current 40.00, previous 100.00, delta -60.00, change -60.0%"))
		Expect(answer.Response).NotTo(ContainSubstring("Tip:"))
	})

	It("totals a category within a timeframe", func() {
		spend(time.March, 1, "Coffee", "4.50")
		spend(time.March, 3, "coffee beans", "12.00")
		spend(time.February, 3, "Coffee", "9.00")

		answer, err := router(query.Options{}).Answer(ctx, userID, "How much did I spend on coffee this month?")
		Expect(err).NotTo(HaveOccurred())
		res := answer.Data.(query.TotalResult)
		Expect(res.Total.StringFixed(2)).To(Equal("16.50"))
		Expect(answer.Response).To(Equal("You spent $16.50 on coffee in March 2025 across 2 expenses."))

		answer, err = router(query.Options{}).Answer(ctx, userID, "how much did I spend on coffee in the last month")
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Response).To(Equal("You spent $9.00 on coffee in February 2025 across 1 expense."))
	})

	It("answers the same regardless of category casing", func() {
		spend(time.March, 1, "Coffee", "4.50")
		lower, err := router(query.Options{}).Answer(ctx, userID, "how much did I spend on coffee")
		Expect(err).NotTo(HaveOccurred())
		upper, err := router(query.Options{}).Answer(ctx, userID, "How much did I spend on COFFEE")
		Expect(err).NotTo(HaveOccurred())
		Expect(upper.Response).To(Equal(lower.Response))
		Expect(upper.Data).To(Equal(lower.Data))
	})

	It("lists top expenses largest first", func() {
		spend(time.March, 1, "Rent", "1200.00")
		spend(time.March, 2, "Food", "30.00")
		spend(time.March, 3, "Travel", "450.00")

		answer, err := router(query.Options{}).Answer(ctx, userID, "top 2 expenses this month")
		Expect(err).NotTo(HaveOccurred())
		items := answer.Data.([]query.ExpenseRow)
		Expect(items).To(HaveLen(2))
		Expect(items[0].Category).To(Equal("Rent"))
		Expect(items[0].Date).To(Equal("2025-03-01"))
		Expect(answer.Response).To(ContainSubstring("1. 2025-03-01 Rent spend (Rent) $1,200.00"))
	})

	It("answers an empty top expenses query with a sentence", func() {
		answer, err := router(query.Options{}).Answer(ctx, userID, "top expenses last week")
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Matched).To(BeTrue())
		Expect(answer.Response).To(HavePrefix("You don't have any expenses"))
	})

	It("breaks spending down by category and month", func() {
		spend(time.January, 5, "Food", "75.00")
		spend(time.March, 5, "food", "25.00")
		spend(time.March, 6, "Bills", "100.00")

		answer, err := router(query.Options{}).Answer(ctx, userID, "compare my spending")
		Expect(err).NotTo(HaveOccurred())
		shares := answer.Data.([]query.CategoryShare)
		Expect(shares).To(HaveLen(2))
		Expect(shares[0].Share.StringFixed(1)).To(Equal("50.0"))

		answer, err = router(query.Options{}).Answer(ctx, userID, "compare monthly spending")
		Expect(err).NotTo(HaveOccurred())
		months := answer.Data.([]query.MonthRow)
		Expect(months).To(HaveLen(2))
		Expect(months[0].Month).To(Equal(time.January))
		Expect(months[1].Total.StringFixed(2)).To(Equal("125.00"))
	})

	It("leaves unmatched utterances to the assistant", func() {
		answer, err := router(query.Options{}).Answer(ctx, userID, "tell me a joke")
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Intent).To(Equal(query.IntentUnmatched))
		Expect(answer.Matched).To(BeFalse())
	})

	It("appends general tips deterministically for a seed", func() {
		spend(time.March, 1, "Food", "10.00")
		always := query.Options{TipProbability: 1, Seed: 7}
		a, err := router(always).Answer(ctx, userID, "how much did I spend this month")
		Expect(err).NotTo(HaveOccurred())
		b, err := router(always).Answer(ctx, userID, "how much did I spend this month")
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Response).To(ContainSubstring("\n\nTip: "))
		Expect(a.Response).To(Equal(b.Response))

		never, err := router(query.Options{TipProbability: 0, Seed: 7}).Answer(ctx, userID, "how much did I spend this month")
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Contains(never.Response, "Tip:")).To(BeFalse())
	})
})
