package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/expense"
	"github.com/frahmantamala/expense-insights/internal/user"
	"github.com/frahmantamala/expense-insights/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	clearData     bool
	seedPassword  string
	seedMonthBack int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample users and a few months of expenses for development.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configDir)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		app, err := newApp(cfg, logger.LoggerWrapper())
		if err != nil {
			return err
		}
		defer app.Close()
		return seed(cmd.Context(), app)
	},
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")
	seedCmd.Flags().StringVar(&seedPassword, "password", "password123", "password for the seeded users")
	seedCmd.Flags().IntVar(&seedMonthBack, "months", 3, "months of history to generate")
}

type seedUser struct {
	username string
	admin    bool
}

// monthly is the template replayed for every seeded month; day is clamped to the month length.
var monthly = []struct {
	day         int
	description string
	category    string
	amount      string
}{
	{1, "Monthly rent", "Rent", "1200.00"},
	{3, "Whole Foods", "Groceries", "84.20"},
	{5, "Morning coffee", "Coffee", "4.75"},
	{8, "Electric bill", "Utilities", "96.40"},
	{11, "Dinner at Luigi's", "Dining", "58.00"},
	{14, "Uber to airport", "Transportation", "42.30"},
	{17, "Netflix", "Entertainment", "15.49"},
	{19, "Trader Joe's", "Groceries", "63.15"},
	{22, "Morning coffee", "Coffee", "5.25"},
	{26, "Amazon order", "Shopping", "129.99"},
}

func seed(ctx context.Context, app *App) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if clearData {
		for _, table := range []string{"notifications", "custom_budget_categories", "budgets", "expenses", "import_batches", "users"} {
			if err := app.DB.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		app.Logger.Info("cleared existing data")
	}

	now := time.Now().UTC()
	for _, su := range []seedUser{{"demo", false}, {"admin", true}} {
		u, err := app.Users.Register(ctx, user.RegisterDTO{
			Username: su.username,
			Email:    su.username + "@example.com",
			Password: seedPassword,
		})
		if internal.IsType(err, internal.ErrorTypeConflict) {
			app.Logger.Info("seed user already exists", "username", su.username)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to seed user %s: %w", su.username, err)
		}
		if su.admin {
			if err := app.DB.Exec("UPDATE users SET is_admin = TRUE WHERE id = ?", u.ID).Error; err != nil {
				return fmt.Errorf("failed to promote %s: %w", su.username, err)
			}
		}

		actor := internal.Actor{UserID: u.ID, IsAdmin: su.admin}
		created := 0
		for back := seedMonthBack - 1; back >= 0; back-- {
			first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -back, 0)
			last := first.AddDate(0, 1, -1).Day()
			for _, m := range monthly {
				day := min(m.day, last)
				date := first.AddDate(0, 0, day-1)
				if date.After(now) {
					continue
				}
				if _, err := app.Expenses.CreateExpense(ctx, actor, expense.CreateExpenseDTO{
					Date:        timeframe.NewDate(date),
					Description: m.description,
					Category:    m.category,
					Amount:      decimal.RequireFromString(m.amount),
				}); err != nil {
					return fmt.Errorf("failed to seed expense for %s: %w", su.username, err)
				}
				created++
			}
		}
		app.Logger.Info("seeded user", "username", su.username, "admin", su.admin, "expenses", created)
	}
	return nil
}
