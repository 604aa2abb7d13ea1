package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-insights/internal/auth"
	"github.com/frahmantamala/expense-insights/internal/budget"
	"github.com/frahmantamala/expense-insights/internal/category"
	"github.com/frahmantamala/expense-insights/internal/expense"
	"github.com/frahmantamala/expense-insights/internal/importer"
	"github.com/frahmantamala/expense-insights/internal/insights"
	"github.com/frahmantamala/expense-insights/internal/notification"
	"github.com/frahmantamala/expense-insights/internal/transport/middleware"
	"github.com/frahmantamala/expense-insights/internal/transport/swagger"
	"github.com/frahmantamala/expense-insights/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups everything RegisterAllRoutes mounts. A nil handler leaves its routes out.
type Handlers struct {
	Health       *HealthHandler
	Auth         *auth.Handler
	User         *user.Handler
	Expense      *expense.Handler
	Budget       *budget.Handler
	Category     *category.Handler
	Import       *importer.Handler
	Insights     *insights.Handler
	Notification *notification.Handler
	OpenAPI      []byte
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, allowedOrigins []string, logger *slog.Logger) {
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	if h.OpenAPI != nil {
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(h.OpenAPI)
		})
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
		})

		if h.User != nil {
			r.Post("/users", h.User.Register)
		}

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
				pr.Put("/users/me/preferences", h.User.UpdatePreferences)
			}

			if h.Expense != nil {
				pr.Route("/expenses", func(er chi.Router) {
					er.Post("/", h.Expense.CreateExpense)
					er.Get("/", h.Expense.ListExpenses)
					er.Get("/{id}", h.Expense.GetExpense)
					er.Put("/{id}", h.Expense.UpdateExpense)
					er.Delete("/{id}", h.Expense.DeleteExpense)
				})
			}

			if h.Budget != nil || h.Insights != nil {
				pr.Route("/budgets/{year}/{month}", func(br chi.Router) {
					if h.Budget != nil {
						br.Get("/", h.Budget.GetBudget)
						br.Put("/", h.Budget.UpdateBudget)
						br.Post("/categories", h.Budget.AddCustomCategory)
						br.Delete("/categories/{id}", h.Budget.RemoveCustomCategory)
					}
					if h.Insights != nil {
						br.Get("/usage", h.Insights.BudgetUsage)
					}
				})
			}

			if h.Import != nil {
				pr.Route("/imports", func(ir chi.Router) {
					ir.Post("/", h.Import.Upload)
					ir.Get("/", h.Import.ListBatches)
					ir.Post("/query", h.Import.CreateQueryBatch)
					ir.Post("/table", h.Import.CreateTableBatch)
					ir.Get("/{id}", h.Import.GetBatch)
					ir.Delete("/{id}", h.Import.DeleteBatch)
					ir.Post("/{id}/recover", h.Import.Recover)
				})
			}

			if h.Insights != nil {
				pr.Post("/chat", h.Insights.Chat)
				pr.Post("/query", h.Insights.Query)
				pr.Post("/query/voice", h.Insights.VoiceQuery)
				pr.Get("/insights", h.Insights.Insights)
				pr.Get("/forecast", h.Insights.Forecast)
				pr.Get("/predictions", h.Insights.Predictions)
			}

			if h.Category != nil {
				pr.Get("/categories", h.Category.GetCategories)
			}

			if h.Notification != nil {
				pr.Get("/notifications", h.Notification.List)
				pr.Post("/notifications/{id}/read", h.Notification.MarkRead)
			}
		})
	})
}
