package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/expense-insights/api"
	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/auth"
	"github.com/frahmantamala/expense-insights/internal/budget"
	budgetPostgres "github.com/frahmantamala/expense-insights/internal/budget/postgres"
	"github.com/frahmantamala/expense-insights/internal/category"
	"github.com/frahmantamala/expense-insights/internal/core/events"
	"github.com/frahmantamala/expense-insights/internal/expense"
	expensePostgres "github.com/frahmantamala/expense-insights/internal/expense/postgres"
	"github.com/frahmantamala/expense-insights/internal/forecast"
	"github.com/frahmantamala/expense-insights/internal/importer"
	importerPostgres "github.com/frahmantamala/expense-insights/internal/importer/postgres"
	"github.com/frahmantamala/expense-insights/internal/insights"
	"github.com/frahmantamala/expense-insights/internal/llm"
	"github.com/frahmantamala/expense-insights/internal/notification"
	notificationPostgres "github.com/frahmantamala/expense-insights/internal/notification/postgres"
	"github.com/frahmantamala/expense-insights/internal/query"
	queryPostgres "github.com/frahmantamala/expense-insights/internal/query/postgres"
	"github.com/frahmantamala/expense-insights/internal/queue"
	"github.com/frahmantamala/expense-insights/internal/transport/rest"
	"github.com/frahmantamala/expense-insights/internal/user"
	userPostgres "github.com/frahmantamala/expense-insights/internal/user/postgres"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// App holds the wired services shared by the server, the workers and the CLI commands.
type App struct {
	Config *internal.Config
	Logger *slog.Logger
	SQL    *sqlx.DB
	DB     *gorm.DB
	Bus    *events.EventBus

	Users         *user.Service
	Auth          *auth.Service
	Expenses      *expense.Service
	Notifications *notification.Service
	Budgets       *budget.Service
	Categories    *category.Service
	Forecasts     *forecast.Service
	Imports       *importer.Service
	Assistant     *llm.Service
	Insights      *insights.Service

	pool  *importer.WorkerPool
	queue *queue.Client
}

func newApp(cfg *internal.Config, lg *slog.Logger) (*App, error) {
	sqlDB, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to open gorm session: %w", err)
	}

	app := &App{Config: cfg, Logger: lg, SQL: sqlDB, DB: gdb, Bus: events.NewEventBus(lg)}

	app.Users = user.NewService(userPostgres.NewUserRepository(gdb), cfg.Security.BCryptCost, lg)
	app.Auth = auth.NewService(app.Users, auth.NewJWTTokenGenerator(cfg.Security), lg)
	app.Expenses = expense.NewService(expensePostgres.NewExpenseRepository(gdb), app.Bus, lg)
	app.Notifications = notification.NewService(notificationPostgres.NewNotificationRepository(gdb), lg)
	app.Budgets = budget.NewService(budgetPostgres.NewBudgetRepository(gdb), app.Expenses, app.Users,
		app.Notifications, budget.OptionsFromConfig(cfg.Budget), lg)
	app.Budgets.Subscribe(app.Bus)
	app.Categories = category.NewService(app.Expenses, lg)
	app.Forecasts = forecast.NewService(app.Expenses, app.Budgets, forecast.OptionsFromConfig(cfg.Forecast), lg)
	app.Imports = importer.NewService(importerPostgres.NewImportBatchRepository(gdb), app.Expenses, app.Bus,
		importer.OptionsFromConfig(cfg.Import), lg)

	snapshots := llm.NewSnapshotBuilder(app.Expenses, cfg.LLM.SnapshotCacheSize, cfg.LLM.SnapshotTTL, lg)
	snapshots.Subscribe(app.Bus)
	client := llm.NewOpenAIClient(llm.ClientOptionsFromConfig(cfg.LLM))
	app.Assistant = llm.NewService(client, client, snapshots, llm.OptionsFromConfig(cfg.LLM), lg)
	if cfg.LLM.APIKey == "" {
		lg.Warn("llm api key not configured; chat answers come from the fallback set")
	}

	router := query.NewRouter(queryPostgres.NewExecutor(sqlDB), query.OptionsFromConfig(cfg.Router), lg)
	app.Insights = insights.NewService(app.Expenses, router, app.Assistant, app.Forecasts, app.Budgets, lg)

	return app, nil
}

// startImportDispatch wires the RabbitMQ queue when configured and the in-process worker pool
// otherwise.
func (a *App) startImportDispatch() error {
	if a.Config.Queue.URL != "" {
		client, err := a.queueClient()
		if err != nil {
			return err
		}
		a.Imports.SetDispatcher(client)
		a.Logger.Info("import batches dispatched to queue", "queue", a.Config.Queue.Queue)
		return nil
	}
	a.pool = importer.NewWorkerPool(a.Config.Import.Workers, a.Config.Import.QueueSize, a.Imports.Handle, a.Logger)
	a.pool.Start()
	a.Imports.SetDispatcher(a.pool)
	return nil
}

func (a *App) queueClient() (*queue.Client, error) {
	if a.queue != nil {
		return a.queue, nil
	}
	client, err := queue.NewClient(a.Config.Queue.URL, a.Config.Queue.Exchange, a.Config.Queue.Queue, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to import queue: %w", err)
	}
	a.queue = client
	return client, nil
}

func (a *App) handlers() rest.Handlers {
	health := rest.NewHealthHandler(a.SQL)
	if a.queue != nil {
		health.AddCheck("queue", func(context.Context) error { return a.queue.Healthy() }, nil)
	}
	health.AddCheck("llm", func(context.Context) error { return nil },
		map[string]any{"configured": a.Config.LLM.APIKey != "", "model": a.Config.LLM.Model})

	return rest.Handlers{
		Health:       health,
		Auth:         auth.NewHandler(a.Auth, a.Logger),
		User:         user.NewHandler(a.Users, a.Logger),
		Expense:      expense.NewHandler(a.Expenses, a.Logger),
		Budget:       budget.NewHandler(a.Budgets, a.Logger),
		Category:     category.NewHandler(a.Categories, a.Logger),
		Import:       importer.NewHandler(a.Imports, a.Config.Import.MaxUploadBytes, a.Logger),
		Insights:     insights.NewHandler(a.Insights, a.Config.Import.MaxUploadBytes, a.Logger),
		Notification: notification.NewHandler(a.Notifications, a.Logger),
		OpenAPI:      api.Document(),
	}
}

func (a *App) allowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(a.Config.Server.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (a *App) Close() {
	if a.pool != nil {
		a.pool.Shutdown()
	}
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			a.Logger.Error("queue close error", "error", err)
		}
	}
	if err := a.SQL.Close(); err != nil {
		a.Logger.Error("database close error", "error", err)
	}
}

// initDB opens the pgx pool shared by gorm and sqlx.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}
