package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/core/common/validation"
	"github.com/frahmantamala/expense-insights/internal/core/events"
	"github.com/frahmantamala/expense-insights/internal/core/money"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/expense"
	"github.com/frahmantamala/expense-insights/internal/notification"
	"github.com/frahmantamala/expense-insights/internal/user"
	"github.com/shopspring/decimal"
)

const relatedTypeBudget = "budget"

type RepositoryAPI interface {
	// GetOrCreate loads the budget for the period, inserting one with defaults if none exists.
	GetOrCreate(ctx context.Context, userID int64, month, year int, defaults Caps) (*Budget, error)
	UpdateCaps(ctx context.Context, budgetID int64, caps Caps) error
	AddCustomCategory(ctx context.Context, c *CustomCategory) error
	RemoveCustomCategory(ctx context.Context, budgetID, categoryID int64) error
}

type SpendingReader interface {
	AggregateByCategory(ctx context.Context, scope expense.Scope, period *timeframe.Period) ([]expense.CategoryTotal, error)
}

type UserReader interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, in notification.NotifyInput) (bool, error)
}

type Options struct {
	Defaults Caps
	// WarningRatio is the share of a cap at which a warning is raised; zero disables warnings.
	WarningRatio decimal.Decimal
}

// OptionsFromConfig converts the float caps from configuration into money.
func OptionsFromConfig(cfg internal.BudgetConfig) Options {
	d := func(v float64) decimal.Decimal { return money.Round(decimal.NewFromFloat(v)) }
	return Options{
		Defaults: Caps{
			Total:          d(cfg.DefaultTotal),
			Food:           d(cfg.DefaultFood),
			Transportation: d(cfg.DefaultTransportation),
			Entertainment:  d(cfg.DefaultEntertainment),
			Bills:          d(cfg.DefaultBills),
			Shopping:       d(cfg.DefaultShopping),
			Other:          d(cfg.DefaultOther),
		},
		WarningRatio: decimal.NewFromFloat(cfg.WarningRatio),
	}
}

type Service struct {
	repo     RepositoryAPI
	spending SpendingReader
	users    UserReader
	notifier Notifier
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo RepositoryAPI, spending SpendingReader, users UserReader, notifier Notifier, opts Options, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		spending: spending,
		users:    users,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) GetBudget(ctx context.Context, userID int64, month, year int) (*Budget, error) {
	if err := validation.ValidateMonth(month, year); err != nil {
		return nil, err
	}
	b, err := s.repo.GetOrCreate(ctx, userID, month, year, s.opts.Defaults)
	if err != nil {
		s.logger.Error("failed to load budget", "error", err, "user_id", userID, "month", month, "year", year)
		return nil, err
	}
	return b, nil
}

func (s *Service) UpdateBudget(ctx context.Context, actor internal.Actor, userID int64, month, year int, dto UpdateBudgetDTO) (*Budget, error) {
	target, err := internal.ResolveUser(actor, userID)
	if err != nil {
		return nil, err
	}
	b, err := s.GetBudget(ctx, target, month, year)
	if err != nil {
		return nil, err
	}
	caps := dto.Apply(b.Caps)
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCaps(ctx, b.ID, caps); err != nil {
		s.logger.Error("failed to update budget", "error", err, "budget_id", b.ID)
		return nil, err
	}
	b.Caps = caps
	s.logger.Info("budget updated", "budget_id", b.ID, "user_id", target, "month", month, "year", year)
	return b, nil
}

func (s *Service) AddCustomCategory(ctx context.Context, actor internal.Actor, userID int64, month, year int, dto CustomCategoryDTO) (*CustomCategory, error) {
	target, err := internal.ResolveUser(actor, userID)
	if err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	b, err := s.GetBudget(ctx, target, month, year)
	if err != nil {
		return nil, err
	}
	if b.HasCustomCategory(dto.Name) {
		return nil, internal.NewConflictError(
			fmt.Sprintf("custom category %q already exists for this budget", dto.Name),
			internal.ErrCodeDuplicateCategory)
	}

	c := &CustomCategory{
		BudgetID: b.ID,
		Name:     dto.Name,
		Amount:   money.Round(dto.Amount),
		Icon:     dto.Icon,
		Color:    dto.Color,
	}
	if err := s.repo.AddCustomCategory(ctx, c); err != nil {
		s.logger.Error("failed to add custom category", "error", err, "budget_id", b.ID)
		return nil, err
	}
	return c, nil
}

func (s *Service) RemoveCustomCategory(ctx context.Context, actor internal.Actor, userID int64, month, year int, categoryID int64) error {
	target, err := internal.ResolveUser(actor, userID)
	if err != nil {
		return err
	}
	b, err := s.GetBudget(ctx, target, month, year)
	if err != nil {
		return err
	}
	return s.repo.RemoveCustomCategory(ctx, b.ID, categoryID)
}

// ComputeUsage classifies the month's spending into buckets and compares it with the caps.
// Imported rows count toward spend.
func (s *Service) ComputeUsage(ctx context.Context, userID int64, month, year int) (*Usage, error) {
	b, err := s.GetBudget(ctx, userID, month, year)
	if err != nil {
		return nil, err
	}
	period := timeframe.MonthOf(year, time.Month(month))
	totals, err := s.spending.AggregateByCategory(ctx, expense.UserScope(userID), &period)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate spending: %w", err)
	}

	spent := make(map[Bucket]decimal.Decimal)
	customSpent := make(map[int64]decimal.Decimal)
	total := decimal.Zero
	for _, t := range totals {
		total = total.Add(t.Total)
		custom, bucket := b.Classify(t.Category)
		if custom != nil {
			customSpent[custom.ID] = customSpent[custom.ID].Add(t.Total)
			continue
		}
		spent[bucket] = spent[bucket].Add(t.Total)
	}

	usage := &Usage{
		UserID:  userID,
		Month:   month,
		Year:    year,
		Total:   newBucketUsage("Total", total, b.Caps.Total),
		Buckets: make(map[Bucket]BucketUsage),
		Custom:  make([]BucketUsage, 0, len(b.CustomCategories)),
	}
	for _, bucket := range Buckets() {
		usage.Buckets[bucket] = newBucketUsage(bucket.Title(), spent[bucket], b.Caps.For(bucket))
	}
	for _, c := range b.CustomCategories {
		line := newBucketUsage(c.Name, customSpent[c.ID], c.Amount)
		line.CategoryID = c.ID
		usage.Custom = append(usage.Custom, line)
	}
	return usage, nil
}

// CheckOverages raises one alert per bucket over (or near) its cap. The notifier keeps one alert
// per bucket and day: an exceeded alert replaces that day's warning, so repeated checks are
// harmless. It returns how many alerts were created or upgraded.
func (s *Service) CheckOverages(ctx context.Context, userID int64, month, year int) (int, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !u.WantsBudgetAlerts() {
		return 0, nil
	}

	usage, err := s.ComputeUsage(ctx, userID, month, year)
	if err != nil {
		return 0, err
	}

	type alertLine struct {
		key  string
		line BucketUsage
	}
	period := timeframe.MonthOf(year, time.Month(month))
	prefix := "budget:" + period.Start.Format("2006-01") + ":"
	lines := make([]alertLine, 0, len(usage.Buckets)+len(usage.Custom)+1)
	for _, bucket := range Buckets() {
		lines = append(lines, alertLine{prefix + string(bucket), usage.Buckets[bucket]})
	}
	for _, c := range usage.Custom {
		lines = append(lines, alertLine{fmt.Sprintf("%scustom:%d", prefix, c.CategoryID), c})
	}
	lines = append(lines, alertLine{prefix + "total", usage.Total})

	label := period.Label()
	created := 0
	var errs []error
	for _, l := range lines {
		in, ok := s.alertFor(userID, l.line, label)
		if !ok {
			continue
		}
		in.DedupKey = l.key
		fresh, err := s.notifier.Notify(ctx, in)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if fresh {
			created++
		}
	}
	return created, errors.Join(errs...)
}

func (s *Service) alertFor(userID int64, line BucketUsage, label string) (notification.NotifyInput, bool) {
	if !line.Cap.IsPositive() {
		return notification.NotifyInput{}, false
	}
	relatedType := relatedTypeBudget
	in := notification.NotifyInput{UserID: userID, RelatedType: &relatedType}
	switch {
	case line.Exceeded():
		in.Title = line.Name + " Budget Exceeded"
		in.Kind = notification.KindDanger
		in.Body = fmt.Sprintf("You have spent %s of your %s %s budget for %s.",
			money.Format(line.Spent), money.Format(line.Cap), line.Name, label)
	case s.opts.WarningRatio.IsPositive() && line.Spent.GreaterThanOrEqual(line.Cap.Mul(s.opts.WarningRatio)):
		in.Title = line.Name + " Budget Warning"
		in.Kind = notification.KindWarning
		in.Body = fmt.Sprintf("You have used %s of your %s %s budget for %s.",
			money.Format(line.Spent), money.Format(line.Cap), line.Name, label)
	default:
		return notification.NotifyInput{}, false
	}
	return in, true
}

// Subscribe re-checks the current month whenever spending lands in it.
func (s *Service) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeExpenseCreated, s.onExpenseChanged)
	bus.Subscribe(events.EventTypeExpenseUpdated, s.onExpenseChanged)
	bus.Subscribe(events.EventTypeImportCompleted, s.onImportCompleted)
}

func (s *Service) onExpenseChanged(ctx context.Context, event events.Event) error {
	var userID int64
	var date time.Time
	switch e := event.(type) {
	case *events.ExpenseCreatedEvent:
		userID, date = e.UserID, e.Date
	case *events.ExpenseUpdatedEvent:
		userID, date = e.UserID, e.Date
	default:
		return nil
	}
	current := timeframe.Current(timeframe.Month, s.now())
	if !current.Contains(date) {
		return nil
	}
	return s.checkCurrent(ctx, userID, current)
}

func (s *Service) onImportCompleted(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.ImportCompletedEvent)
	if !ok {
		return nil
	}
	return s.checkCurrent(ctx, e.UserID, timeframe.Current(timeframe.Month, s.now()))
}

func (s *Service) checkCurrent(ctx context.Context, userID int64, current timeframe.Period) error {
	created, err := s.CheckOverages(ctx, userID, int(current.Start.Month()), current.Start.Year())
	if err != nil {
		s.logger.Warn("budget overage check failed", "error", err, "user_id", userID)
		return err
	}
	if created > 0 {
		s.logger.Info("budget alerts raised", "user_id", userID, "count", created)
	}
	return nil
}
