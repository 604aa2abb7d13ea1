package expense

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/core/common/validation"
	"github.com/frahmantamala/expense-insights/internal/core/events"
	"github.com/frahmantamala/expense-insights/internal/core/money"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
)

// RepositoryAPI is the persistence surface of the ledger.
type RepositoryAPI interface {
	Create(ctx context.Context, exp *Expense) error
	CreateBatch(ctx context.Context, userID, batchID int64, expenses []*Expense) (int, error)
	GetByID(ctx context.Context, id int64) (*Expense, error)
	Update(ctx context.Context, exp *Expense) error
	Delete(ctx context.Context, id int64) error
	DeleteByImportBatch(ctx context.Context, batchID int64) (int64, error)
	CountByImportBatch(ctx context.Context, batchID int64) (int64, error)
	List(ctx context.Context, scope Scope, filter ListFilter, sort Sort, page PageRequest) ([]*Expense, int64, error)
	MonthlyTotals(ctx context.Context, scope Scope, filter MonthFilter) ([]MonthTotal, error)
	CategoryTotals(ctx context.Context, scope Scope, period *timeframe.Period) ([]CategoryTotal, error)
	MonthCategoryTotals(ctx context.Context, scope Scope) ([]MonthCategoryTotal, error)
	Total(ctx context.Context, scope Scope, period *timeframe.Period) (Total, error)
}

type Service struct {
	repo      RepositoryAPI
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for the future-date check.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) CreateExpense(ctx context.Context, actor internal.Actor, dto CreateExpenseDTO) (*Expense, error) {
	userID, err := internal.ResolveUser(actor, dto.UserID)
	if err != nil {
		s.logger.Warn("create expense denied", "actor_id", actor.UserID, "target_user_id", dto.UserID)
		return nil, err
	}

	dto.Normalize()
	if err := s.validate(dto); err != nil {
		return nil, err
	}

	exp := NewExpense(userID, dto)
	if err := s.repo.Create(ctx, exp); err != nil {
		s.logger.Error("failed to create expense", "error", err, "user_id", userID)
		return nil, err
	}

	s.logger.Info("expense created",
		"expense_id", exp.ID,
		"user_id", userID,
		"category", exp.Category,
		"amount", exp.Amount.StringFixed(2))

	s.publish(ctx, events.NewExpenseCreatedEvent(exp.ID, userID, exp.Category, exp.Date.Time))
	return exp, nil
}

// CreateImportedExpenses inserts already validated rows tagged with the batch. It does not
// publish per row; the importer announces the batch once it completes.
func (s *Service) CreateImportedExpenses(ctx context.Context, userID, batchID int64, rows []CreateExpenseDTO) (int, error) {
	expenses := make([]*Expense, len(rows))
	for i, dto := range rows {
		dto.Normalize()
		expenses[i] = NewExpense(userID, dto)
	}
	n, err := s.repo.CreateBatch(ctx, userID, batchID, expenses)
	if err != nil {
		s.logger.Error("failed to insert imported expenses", "error", err, "batch_id", batchID)
		return 0, err
	}
	return n, nil
}

func (s *Service) GetExpense(ctx context.Context, actor internal.Actor, id int64) (*Expense, error) {
	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(exp.UserID) {
		s.logger.Warn("unauthorized access to expense", "expense_id", id, "actor_id", actor.UserID)
		return nil, internal.ErrPermissionDenied
	}
	return exp, nil
}

func (s *Service) UpdateExpense(ctx context.Context, actor internal.Actor, id int64, dto UpdateExpenseDTO) (*Expense, error) {
	exp, err := s.GetExpense(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	update := CreateExpenseDTO{
		Date:        exp.Date,
		Description: exp.Description,
		Category:    exp.Category,
		Amount:      exp.Amount,
	}
	if dto.Date != nil {
		update.Date = *dto.Date
	}
	if dto.Description != nil {
		update.Description = *dto.Description
	}
	if dto.Category != nil {
		update.Category = *dto.Category
	}
	if dto.Amount != nil {
		update.Amount = *dto.Amount
	}
	update.Normalize()
	if err := s.validate(update); err != nil {
		return nil, err
	}

	exp.Date = timeframe.NewDate(update.Date.Time)
	exp.Description = update.Description
	exp.Category = update.Category
	exp.Amount = money.Round(update.Amount)
	exp.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, exp); err != nil {
		s.logger.Error("failed to update expense", "error", err, "expense_id", id)
		return nil, err
	}
	s.publish(ctx, events.NewExpenseUpdatedEvent(exp.ID, exp.UserID, exp.Category, exp.Date.Time))
	return exp, nil
}

func (s *Service) DeleteExpense(ctx context.Context, actor internal.Actor, id int64) error {
	exp, err := s.GetExpense(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete expense", "error", err, "expense_id", id)
		return err
	}
	s.logger.Info("expense deleted", "expense_id", id, "user_id", exp.UserID)
	s.publish(ctx, events.NewExpenseDeletedEvent(id, exp.UserID))
	return nil
}

func (s *Service) ListExpenses(ctx context.Context, actor internal.Actor, userID int64, allUsers bool, filter ListFilter, sort Sort, page PageRequest) (*Page, error) {
	scope, err := ResolveScope(actor, userID, allUsers)
	if err != nil {
		return nil, err
	}
	page = page.Normalize()

	items, total, err := s.repo.List(ctx, scope, filter, sort, page)
	if err != nil {
		s.logger.Error("failed to list expenses", "error", err, "user_id", scope.UserID)
		return nil, err
	}
	return &Page{
		Items:      items,
		Total:      total,
		Page:       page.Number,
		PageSize:   page.Size,
		TotalPages: int(math.Ceil(float64(total) / float64(page.Size))),
	}, nil
}

// AggregateByMonth returns one row per calendar month with spending, oldest first.
func (s *Service) AggregateByMonth(ctx context.Context, scope Scope, filter MonthFilter) ([]MonthTotal, error) {
	return s.repo.MonthlyTotals(ctx, scope, filter)
}

// AggregateByCategory groups case-insensitively, largest total first. A nil period covers all time.
func (s *Service) AggregateByCategory(ctx context.Context, scope Scope, period *timeframe.Period) ([]CategoryTotal, error) {
	return s.repo.CategoryTotals(ctx, scope, period)
}

func (s *Service) AggregateByMonthCategory(ctx context.Context, scope Scope) ([]MonthCategoryTotal, error) {
	return s.repo.MonthCategoryTotals(ctx, scope)
}

func (s *Service) AggregateTotal(ctx context.Context, scope Scope, period *timeframe.Period) (Total, error) {
	return s.repo.Total(ctx, scope, period)
}

func (s *Service) DeleteByImportBatch(ctx context.Context, batchID int64) (int64, error) {
	n, err := s.repo.DeleteByImportBatch(ctx, batchID)
	if err != nil {
		s.logger.Error("failed to delete batch rows", "error", err, "batch_id", batchID)
		return 0, err
	}
	return n, nil
}

func (s *Service) CountByImportBatch(ctx context.Context, batchID int64) (int64, error) {
	return s.repo.CountByImportBatch(ctx, batchID)
}

func (s *Service) validate(dto CreateExpenseDTO) error {
	if err := validation.ValidateExpense(validation.ExpenseFields{
		Description: dto.Description,
		Category:    dto.Category,
		Amount:      dto.Amount,
		Date:        dto.Date.Time,
		AllowFuture: dto.AllowFuture,
	}, s.now()); err != nil {
		return err
	}
	return nil
}

// publish runs subscribers inline; their failures never undo the write.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSync(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", "error", err, "event_type", event.EventType())
	}
}
