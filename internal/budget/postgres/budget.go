package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/budget"
	budgetDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/budget"
	"github.com/frahmantamala/expense-insights/internal/core/money"
	"gorm.io/gorm"
)

type BudgetRepository struct {
	db *gorm.DB
}

func NewBudgetRepository(db *gorm.DB) budget.RepositoryAPI {
	return &BudgetRepository{db: db}
}

func (r *BudgetRepository) GetOrCreate(ctx context.Context, userID int64, month, year int, defaults budget.Caps) (*budget.Budget, error) {
	row, err := r.find(ctx, userID, month, year)
	if err == nil {
		return budget.FromDataModel(row), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := budget.ToDataModel(&budget.Budget{UserID: userID, Month: month, Year: year, Caps: defaults})
	if createErr := r.db.WithContext(ctx).Create(fresh).Error; createErr != nil {
		// lost a race with a concurrent first query; the unique index kept one row
		row, err = r.find(ctx, userID, month, year)
		if err != nil {
			return nil, createErr
		}
		return budget.FromDataModel(row), nil
	}
	return budget.FromDataModel(fresh), nil
}

func (r *BudgetRepository) find(ctx context.Context, userID int64, month, year int) (*budgetDatamodel.Budget, error) {
	var row budgetDatamodel.Budget
	err := r.db.WithContext(ctx).
		Preload("CustomCategories", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("user_id = ? AND year = ? AND month = ?", userID, year, month).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *BudgetRepository) UpdateCaps(ctx context.Context, budgetID int64, caps budget.Caps) error {
	return r.db.WithContext(ctx).Model(&budgetDatamodel.Budget{}).
		Where("id = ?", budgetID).
		Updates(map[string]interface{}{
			"total_cents":          money.ToCents(caps.Total),
			"food_cents":           money.ToCents(caps.Food),
			"transportation_cents": money.ToCents(caps.Transportation),
			"entertainment_cents":  money.ToCents(caps.Entertainment),
			"bills_cents":          money.ToCents(caps.Bills),
			"shopping_cents":       money.ToCents(caps.Shopping),
			"other_cents":          money.ToCents(caps.Other),
			"updated_at":           time.Now(),
		}).Error
}

func (r *BudgetRepository) AddCustomCategory(ctx context.Context, c *budget.CustomCategory) error {
	row := budget.CustomCategoryToDataModel(c)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	c.ID = row.ID
	return nil
}

func (r *BudgetRepository) RemoveCustomCategory(ctx context.Context, budgetID, categoryID int64) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND budget_id = ?", categoryID, budgetID).
		Delete(&budgetDatamodel.CustomBudgetCategory{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrCategoryNotFound
	}
	return nil
}
