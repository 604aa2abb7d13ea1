package insights_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/budget"
	budgetPostgres "github.com/frahmantamala/expense-insights/internal/budget/postgres"
	"github.com/frahmantamala/expense-insights/internal/core/events"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/expense"
	expensePostgres "github.com/frahmantamala/expense-insights/internal/expense/postgres"
	"github.com/frahmantamala/expense-insights/internal/forecast"
	"github.com/frahmantamala/expense-insights/internal/insights"
	"github.com/frahmantamala/expense-insights/internal/llm"
	"github.com/frahmantamala/expense-insights/internal/notification"
	notificationPostgres "github.com/frahmantamala/expense-insights/internal/notification/postgres"
	"github.com/frahmantamala/expense-insights/internal/query"
	queryPostgres "github.com/frahmantamala/expense-insights/internal/query/postgres"
	"github.com/frahmantamala/expense-insights/internal/testsupport"
	"github.com/frahmantamala/expense-insights/internal/user"
	userPostgres "github.com/frahmantamala/expense-insights/internal/user/postgres"
	"github.com/frahmantamala/expense-insights/pkg/logger"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestInsights(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Insights Suite")
}

type stubTranscriber struct{ text string }

func (s stubTranscriber) Transcribe(context.Context, string) (string, error) {
	return s.text, nil
}

var _ = Describe("Insights Service", func() {
	var (
		db       *gorm.DB
		ctx      context.Context
		now      time.Time
		ana      internal.Actor
		ben      internal.Actor
		admin    internal.Actor
		expenses *expense.Service
		budgets  *budget.Service
		notifier *notification.Service
		service  *insights.Service
	)

	spend := func(m time.Month, d int, description, category, amount string) {
		_, err := expenses.CreateExpense(ctx, ana, expense.CreateExpenseDTO{
			Date:        timeframe.NewDate(time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)),
			Description: description,
			Category:    category,
			Amount:      decimal.RequireFromString(amount),
		})
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		var err error
		db, err = testsupport.OpenSQLite()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
		now = time.Date(2025, 3, 31, 18, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		lg := logger.Discard()

		for _, u := range []struct {
			name  string
			admin bool
			actor *internal.Actor
		}{{"ana", false, &ana}, {"ben", false, &ben}, {"root", true, &admin}} {
			row, err := testsupport.CreateUser(db, u.name, u.admin)
			Expect(err).NotTo(HaveOccurred())
			*u.actor = internal.Actor{UserID: row.ID, IsAdmin: u.admin}
		}

		bus := events.NewEventBus(lg)
		expenses = expense.NewService(expensePostgres.NewExpenseRepository(db), bus, lg).WithClock(clock)
		notifier = notification.NewService(notificationPostgres.NewNotificationRepository(db), lg).WithClock(clock)
		users := user.NewService(userPostgres.NewUserRepository(db), 4, lg)
		budgets = budget.NewService(budgetPostgres.NewBudgetRepository(db), expenses, users, notifier, budget.Options{
			Defaults: budget.Caps{Total: decimal.NewFromInt(2500), Food: decimal.NewFromInt(500)},
		}, lg).WithClock(clock)

		sx, err := testsupport.SQLX(db)
		Expect(err).NotTo(HaveOccurred())
		router := query.NewRouter(queryPostgres.NewExecutor(sx), query.Options{}, lg).WithClock(clock)

		client := llm.NewOpenAIClient(llm.ClientOptions{})
		snapshots := llm.NewSnapshotBuilder(expenses, 10, time.Minute, lg).WithClock(clock)
		snapshots.Subscribe(bus)
		assistant := llm.NewService(client, stubTranscriber{text: "top 2 expenses this month"}, snapshots, llm.Options{}, lg)

		forecaster := forecast.NewService(expenses, budgets, forecast.Options{
			HighSeverityPercent: decimal.NewFromInt(20),
			SignificantPercent:  decimal.NewFromInt(15),
		}, lg).WithClock(clock)

		service = insights.NewService(expenses, router, assistant, forecaster, budgets, lg).WithClock(clock)

		spend(time.January, 10, "January rent", "Rent", "1000")
		spend(time.February, 10, "February rent", "Rent", "1000")
		spend(time.February, 12, "Market", "Groceries", "100")
		spend(time.March, 10, "March rent", "Rent", "1000")
		spend(time.March, 15, "Whole Foods", "Groceries", "150")
		spend(time.March, 20, "Bistro", "Dining", "50")
	})

	AfterEach(func() {
		Expect(testsupport.Close(db)).To(Succeed())
	})

	It("gathers totals, shares and commentary for the month", func() {
		out, err := service.Insights(ctx, ana, 0, timeframe.Month)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Label).To(Equal("March 2025"))
		Expect(out.Total.StringFixed(2)).To(Equal("1200.00"))
		Expect(out.Count).To(Equal(int64(3)))
		Expect(out.PreviousTotal.StringFixed(2)).To(Equal("1100.00"))
		Expect(out.ChangePercent.StringFixed(1)).To(Equal("9.1"))
		Expect(out.TopCategories).To(HaveLen(3))
		Expect(out.Categories[0].Category).To(Equal("Rent"))
		Expect(out.Categories[1].Share.StringFixed(1)).To(Equal("12.5"))
		Expect(out.Fallback).To(BeTrue())
		Expect(out.Commentary).NotTo(BeEmpty())
	})

	It("answers matched questions through the router", func() {
		ans, err := service.Answer(ctx, ana, 0, "How much did I spend on groceries this month?", "low")
		Expect(err).NotTo(HaveOccurred())
		Expect(ans.Success).To(BeTrue())
		Expect(ans.QueryType).To(Equal("category_in_timeframe"))
		Expect(ans.Response).To(ContainSubstring("$150.00"))
		Expect(ans.Fallback).To(BeFalse())
	})

	It("hands unmatched questions to the assistant", func() {
		ans, err := service.Answer(ctx, ana, 0, "How do I save money on groceries?", "medium")
		Expect(err).NotTo(HaveOccurred())
		Expect(ans.QueryType).To(Equal("unmatched"))
		Expect(ans.Fallback).To(BeTrue())
		Expect(ans.Response).To(BeElementOf(llm.TopicAnswers(llm.TopicFood)))
	})

	It("rejects empty questions", func() {
		_, err := service.Answer(ctx, ana, 0, "   ", "")
		Expect(internal.IsType(err, internal.ErrorTypeValidation)).To(BeTrue())
		_, err = service.Chat(ctx, ana, 0, llm.ChatRequest{})
		Expect(internal.IsType(err, internal.ErrorTypeValidation)).To(BeTrue())
	})

	It("lets only admins act for other users", func() {
		_, err := service.Answer(ctx, ben, ana.UserID, "how much did I spend this month", "")
		Expect(errors.Is(err, internal.ErrPermissionDenied)).To(BeTrue())

		ans, err := service.Answer(ctx, admin, ana.UserID, "how much did I spend this month", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(ans.Response).To(ContainSubstring("$1,200.00"))
	})

	It("answers a voice question from its transcript", func() {
		ans, err := service.VoiceAnswer(ctx, ana, 0, strings.NewReader("audio"), "memo.webm", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(ans.Transcript).To(Equal("top 2 expenses this month"))
		Expect(ans.QueryType).To(Equal("top_expenses"))
		Expect(ans.Data).To(HaveLen(2))
	})

	It("forecasts from three months of history", func() {
		out, err := service.Forecast(ctx, ana, 0, nil, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Success).To(BeTrue())
		Expect(out.Forecast.Forecast[0].Label).To(Equal("2025-04"))
		Expect(out.Forecast.Forecast[0].Amount.StringFixed(2)).To(Equal("1133.00"))
		Expect(out.Forecast.BudgetLines[0].Amount.StringFixed(2)).To(Equal("2500.00"))
	})

	It("reports missing history as an unsuccessful answer", func() {
		f, err := service.Forecast(ctx, ben, 0, nil, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Success).To(BeFalse())
		Expect(f.Message).NotTo(BeEmpty())

		p, err := service.PredictCurrentFromLast(ctx, ben, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Success).To(BeFalse())
	})

	It("predicts this month from last month", func() {
		p, err := service.PredictCurrentFromLast(ctx, ana, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Success).To(BeTrue())
		Expect(p.Prediction.MonthAnalyzed).To(Equal("February 2025"))
		Expect(p.Prediction.Predictions.TotalProjected.StringFixed(2)).To(Equal("1155.00"))
	})

	Describe("BudgetUsage", func() {
		titles := func() []string {
			items, err := notifier.List(ctx, ana.UserID, false)
			Expect(err).NotTo(HaveOccurred())
			out := make([]string, len(items))
			for i, n := range items {
				out[i] = n.Title
			}
			return out
		}

		It("re-checks overages for the current month", func() {
			food := decimal.NewFromInt(100)
			_, err := budgets.UpdateBudget(ctx, ana, 0, 3, 2025, budget.UpdateBudgetDTO{Food: &food})
			Expect(err).NotTo(HaveOccurred())

			usage, err := service.BudgetUsage(ctx, ana, 0, 3, 2025)
			Expect(err).NotTo(HaveOccurred())
			Expect(usage.Buckets[budget.BucketFood].Spent.StringFixed(2)).To(Equal("200.00"))
			Expect(titles()).To(ConsistOf("Food Budget Exceeded"))
		})

		It("only reads past months", func() {
			food := decimal.NewFromInt(50)
			_, err := budgets.UpdateBudget(ctx, ana, 0, 2, 2025, budget.UpdateBudgetDTO{Food: &food})
			Expect(err).NotTo(HaveOccurred())

			usage, err := service.BudgetUsage(ctx, ana, 0, 2, 2025)
			Expect(err).NotTo(HaveOccurred())
			Expect(usage.Buckets[budget.BucketFood].Exceeded()).To(BeTrue())
			Expect(titles()).To(BeEmpty())
		})
	})

	Describe("Handler", func() {
		var mux *chi.Mux

		as := func(actor internal.Actor) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					next.ServeHTTP(w, r.WithContext(internal.ContextWithActor(r.Context(), actor)))
				})
			}
		}

		route := func(actor *internal.Actor) {
			h := insights.NewHandler(service, 1<<20, logger.Discard())
			mux = chi.NewRouter()
			if actor != nil {
				mux.Use(as(*actor))
			}
			mux.Post("/query", h.Query)
			mux.Post("/query/voice", h.VoiceQuery)
			mux.Post("/chat", h.Chat)
			mux.Get("/insights", h.Insights)
			mux.Get("/forecast", h.Forecast)
			mux.Get("/budgets/{year}/{month}/usage", h.BudgetUsage)
		}

		do := func(req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			var body map[string]interface{}
			_ = json.Unmarshal(rec.Body.Bytes(), &body)
			return rec, body
		}

		It("returns the query answer shape", func() {
			route(&ana)
			rec, body := do(httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"compare monthly spending"}`)))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(body).To(HaveKeyWithValue("success", true))
			Expect(body).To(HaveKeyWithValue("query_type", "month_comparison"))
			Expect(body).To(HaveKey("data"))
		})

		It("returns the chat shape with the fallback marker", func() {
			route(&ana)
			rec, body := do(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"How do I save money on groceries?","humor_level":"medium"}`)))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(body).To(HaveKeyWithValue("fallback", true))
			Expect(body).To(HaveKey("suggestions"))
		})

		It("accepts voice uploads", func() {
			route(&ana)
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, err := mw.CreateFormFile("audio", "memo.webm")
			Expect(err).NotTo(HaveOccurred())
			_, _ = part.Write([]byte("audio"))
			Expect(mw.Close()).To(Succeed())

			req := httptest.NewRequest(http.MethodPost, "/query/voice", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			rec, body := do(req)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(body).To(HaveKeyWithValue("transcript", "top 2 expenses this month"))
		})

		It("answers insufficient history with success false and a 200", func() {
			route(&ben)
			rec, body := do(httptest.NewRequest(http.MethodGet, "/forecast", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(body).To(HaveKeyWithValue("success", false))
		})

		It("rejects unknown periods and other users", func() {
			route(&ana)
			rec, _ := do(httptest.NewRequest(http.MethodGet, "/insights?period=decade", nil))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))

			rec, _ = do(httptest.NewRequest(http.MethodGet, "/budgets/2025/3/usage?user_id=999", nil))
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("requires an authenticated caller", func() {
			route(nil)
			rec, _ := do(httptest.NewRequest(http.MethodGet, "/insights", nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
