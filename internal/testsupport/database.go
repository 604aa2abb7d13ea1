// Package testsupport opens throwaway databases for repository and integration tests.
package testsupport

import (
	"fmt"

	budgetDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/budget"
	expenseDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/expense"
	importDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/importbatch"
	notificationDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/notification"
	userDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenSQLite returns a private in-memory database with the full schema migrated. Each call gets
// its own named database so parallel suites never share rows.
func OpenSQLite() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one connection keeps the shared in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&userDatamodel.User{},
		&expenseDatamodel.Expense{},
		&budgetDatamodel.Budget{},
		&budgetDatamodel.CustomBudgetCategory{},
		&importDatamodel.ImportBatch{},
		&notificationDatamodel.Notification{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

// SQLX wraps the gorm connection pool for code that runs raw named queries.
func SQLX(db *gorm.DB) (*sqlx.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return sqlx.NewDb(sqlDB, "sqlite3"), nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser inserts an active user with alerts enabled.
func CreateUser(db *gorm.DB, username string, admin bool) (*userDatamodel.User, error) {
	u := &userDatamodel.User{
		Username:            username,
		Email:               username + "@example.com",
		PasswordHash:        "x",
		IsAdmin:             admin,
		IsActive:            true,
		AlertsEnabled:       true,
		AlertBudgetExceeded: true,
	}
	if err := db.Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}
