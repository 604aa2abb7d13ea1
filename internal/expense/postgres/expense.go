package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/core/dialect"
	expenseDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/expense"
	userDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-insights/internal/core/money"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/expense"
	"gorm.io/gorm"
)

const batchInsertSize = 200

var sortColumns = map[expense.SortField]string{
	expense.SortByDate:        `"date"`,
	expense.SortByAmount:      "amount_cents",
	expense.SortByCategory:    "LOWER(category)",
	expense.SortByDescription: "LOWER(description)",
}

// ExpenseRepository implements expense.RepositoryAPI using GORM
type ExpenseRepository struct {
	db      *gorm.DB
	dialect dialect.Dialect
}

func NewExpenseRepository(db *gorm.DB) expense.RepositoryAPI {
	return &ExpenseRepository{db: db, dialect: dialect.FromGorm(db)}
}

// Create inserts the row after confirming the owner exists, in one transaction.
func (r *ExpenseRepository) Create(ctx context.Context, exp *expense.Expense) error {
	row := expense.ToDataModel(exp)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, exp.UserID); err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return err
	}
	*exp = *expense.FromDataModel(row)
	return nil
}

func (r *ExpenseRepository) CreateBatch(ctx context.Context, userID, batchID int64, expenses []*expense.Expense) (int, error) {
	if len(expenses) == 0 {
		return 0, nil
	}
	rows := make([]*expenseDatamodel.Expense, len(expenses))
	for i, e := range expenses {
		row := expense.ToDataModel(e)
		row.UserID = userID
		row.ImportBatchID = &batchID
		rows[i] = row
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, userID); err != nil {
			return err
		}
		return tx.CreateInBatches(rows, batchInsertSize).Error
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func ensureUser(tx *gorm.DB, userID int64) error {
	var count int64
	if err := tx.Model(&userDatamodel.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*expense.Expense, error) {
	var row expenseDatamodel.Expense
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrExpenseNotFound
		}
		return nil, err
	}
	return expense.FromDataModel(&row), nil
}

func (r *ExpenseRepository) Update(ctx context.Context, exp *expense.Expense) error {
	res := r.db.WithContext(ctx).Model(&expenseDatamodel.Expense{}).
		Where("id = ?", exp.ID).
		Updates(map[string]interface{}{
			"date":         timeframe.Day(exp.Date.Time),
			"description":  exp.Description,
			"category":     exp.Category,
			"amount_cents": money.ToCents(exp.Amount),
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrExpenseNotFound
	}
	return nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&expenseDatamodel.Expense{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrExpenseNotFound
	}
	return nil
}

func (r *ExpenseRepository) DeleteByImportBatch(ctx context.Context, batchID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("import_batch_id = ?", batchID).Delete(&expenseDatamodel.Expense{})
	return res.RowsAffected, res.Error
}

func (r *ExpenseRepository) CountByImportBatch(ctx context.Context, batchID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&expenseDatamodel.Expense{}).
		Where("import_batch_id = ?", batchID).
		Count(&count).Error
	return count, err
}

func (r *ExpenseRepository) List(ctx context.Context, scope expense.Scope, filter expense.ListFilter, sort expense.Sort, page expense.PageRequest) ([]*expense.Expense, int64, error) {
	q := r.scoped(ctx, scope)
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		q = q.Where(`(LOWER(description) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if filter.Category != "" {
		q = q.Where("LOWER(category) = ?", strings.ToLower(strings.TrimSpace(filter.Category)))
	}
	q = withPeriod(q, filter.Period)
	if filter.ExcludeImports {
		q = q.Where("import_batch_id IS NULL")
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[sort.Field]
	if !ok {
		column = sortColumns[expense.SortByDate]
	}
	direction := " ASC"
	if sort.Desc {
		direction = " DESC"
	}

	var rows []*expenseDatamodel.Expense
	err := q.Order(column + direction).
		Order("id" + direction).
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return expense.FromDataModelSlice(rows), total, nil
}

type monthRow struct {
	Year         int    `gorm:"column:year"`
	Month        int    `gorm:"column:month"`
	Category     string `gorm:"column:category"`
	TotalCents   int64  `gorm:"column:total_cents"`
	ExpenseCount int64  `gorm:"column:expense_count"`
}

func (r *ExpenseRepository) MonthlyTotals(ctx context.Context, scope expense.Scope, filter expense.MonthFilter) ([]expense.MonthTotal, error) {
	year, month := r.dialect.YearExpr(`"date"`), r.dialect.MonthExpr(`"date"`)

	q := r.scoped(ctx, scope)
	if !filter.IncludeImports {
		q = q.Where("import_batch_id IS NULL")
	}
	if filter.Category != nil {
		q = q.Where("LOWER(category) = ?", strings.ToLower(strings.TrimSpace(*filter.Category)))
	}

	var rows []monthRow
	err := q.Select(year + " AS year, " + month + " AS month, " +
		"CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) AS total_cents, COUNT(*) AS expense_count").
		Group(year + ", " + month).
		Order("year ASC, month ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]expense.MonthTotal, len(rows))
	for i, row := range rows {
		out[i] = expense.MonthTotal{
			Year:  row.Year,
			Month: time.Month(row.Month),
			Total: money.FromCents(row.TotalCents),
			Count: row.ExpenseCount,
		}
	}
	return out, nil
}

func (r *ExpenseRepository) CategoryTotals(ctx context.Context, scope expense.Scope, period *timeframe.Period) ([]expense.CategoryTotal, error) {
	q := withPeriod(r.scoped(ctx, scope), period)

	var rows []monthRow
	err := q.Select("MIN(category) AS category, " +
		"CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) AS total_cents, COUNT(*) AS expense_count").
		Group("LOWER(category)").
		Order("total_cents DESC, category ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]expense.CategoryTotal, len(rows))
	for i, row := range rows {
		out[i] = expense.CategoryTotal{
			Category: row.Category,
			Total:    money.FromCents(row.TotalCents),
			Count:    row.ExpenseCount,
		}
	}
	return out, nil
}

func (r *ExpenseRepository) MonthCategoryTotals(ctx context.Context, scope expense.Scope) ([]expense.MonthCategoryTotal, error) {
	year, month := r.dialect.YearExpr(`"date"`), r.dialect.MonthExpr(`"date"`)

	var rows []monthRow
	err := r.scoped(ctx, scope).
		Select(year + " AS year, " + month + " AS month, MIN(category) AS category, " +
			"CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) AS total_cents, COUNT(*) AS expense_count").
		Group(year + ", " + month + ", LOWER(category)").
		Order("year ASC, month ASC, total_cents DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]expense.MonthCategoryTotal, len(rows))
	for i, row := range rows {
		out[i] = expense.MonthCategoryTotal{
			Year:     row.Year,
			Month:    time.Month(row.Month),
			Category: row.Category,
			Total:    money.FromCents(row.TotalCents),
			Count:    row.ExpenseCount,
		}
	}
	return out, nil
}

func (r *ExpenseRepository) Total(ctx context.Context, scope expense.Scope, period *timeframe.Period) (expense.Total, error) {
	var row monthRow
	err := withPeriod(r.scoped(ctx, scope), period).
		Select("CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) AS total_cents, COUNT(*) AS expense_count").
		Scan(&row).Error
	if err != nil {
		return expense.Total{}, err
	}
	return expense.Total{Total: money.FromCents(row.TotalCents), Count: row.ExpenseCount}, nil
}

func (r *ExpenseRepository) scoped(ctx context.Context, scope expense.Scope) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&expenseDatamodel.Expense{})
	if !scope.AllUsers {
		q = q.Where("user_id = ?", scope.UserID)
	}
	return q
}

func withPeriod(q *gorm.DB, period *timeframe.Period) *gorm.DB {
	if period == nil {
		return q
	}
	return q.Where(`"date" >= ? AND "date" < ?`, period.Start, period.End)
}

// likePattern lower-cases s and escapes LIKE wildcards so user input matches literally.
func likePattern(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}
