package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/expense-insights/internal/cache"
	"github.com/frahmantamala/expense-insights/internal/core/events"
	"github.com/frahmantamala/expense-insights/internal/core/money"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/expense"
	"github.com/shopspring/decimal"
)

const (
	snapshotDays = 30
	topN         = 3
)

type SpendingReader interface {
	AggregateTotal(ctx context.Context, scope expense.Scope, period *timeframe.Period) (expense.Total, error)
	AggregateByCategory(ctx context.Context, scope expense.Scope, period *timeframe.Period) ([]expense.CategoryTotal, error)
}

// Snapshot summarises a user's recent spending for the system prompt.
type Snapshot struct {
	Period     timeframe.Period        `json:"period"`
	Total      decimal.Decimal         `json:"total"`
	Count      int64                   `json:"count"`
	Categories []expense.CategoryTotal `json:"categories"`
	Top        []expense.CategoryTotal `json:"top"`
}

func (s *Snapshot) Render() string {
	var b strings.Builder
	from := s.Period.Start.Format("2006-01-02")
	to := s.Period.End.AddDate(0, 0, -1).Format("2006-01-02")
	fmt.Fprintf(&b, "Spending summary for the last %d days (%s to %s):\n", snapshotDays, from, to)
	if s.Count == 0 {
		b.WriteString("- No expenses recorded.")
		return b.String()
	}
	fmt.Fprintf(&b, "- Total: %s across %d expenses\n", money.Format(s.Total), s.Count)

	top := make([]string, len(s.Top))
	for i, c := range s.Top {
		top[i] = fmt.Sprintf("%s (%s)", c.Category, money.Format(c.Total))
	}
	fmt.Fprintf(&b, "- Top categories: %s\n", strings.Join(top, ", "))

	b.WriteString("- By category:")
	for _, c := range s.Categories {
		fmt.Fprintf(&b, "\n  - %s: %s (%d)", c.Category, money.Format(c.Total), c.Count)
	}
	return b.String()
}

// SnapshotBuilder caches one snapshot per user until it expires or the ledger changes.
type SnapshotBuilder struct {
	spending SpendingReader
	cache    *cache.LRU[int64, *Snapshot]
	logger   *slog.Logger
	now      func() time.Time
}

func NewSnapshotBuilder(spending SpendingReader, size int, ttl time.Duration, logger *slog.Logger) *SnapshotBuilder {
	return &SnapshotBuilder{
		spending: spending,
		cache:    cache.NewLRU[int64, *Snapshot](size, ttl),
		logger:   logger,
		now:      time.Now,
	}
}

func (b *SnapshotBuilder) WithClock(now func() time.Time) *SnapshotBuilder {
	b.now = now
	b.cache.WithClock(now)
	return b
}

func (b *SnapshotBuilder) Build(ctx context.Context, userID int64) (*Snapshot, error) {
	if s, ok := b.cache.Get(userID); ok {
		return s, nil
	}

	period := timeframe.LastDays(snapshotDays, b.now())
	scope := expense.UserScope(userID)
	total, err := b.spending.AggregateTotal(ctx, scope, &period)
	if err != nil {
		return nil, fmt.Errorf("failed to total recent spending: %w", err)
	}
	categories, err := b.spending.AggregateByCategory(ctx, scope, &period)
	if err != nil {
		return nil, fmt.Errorf("failed to group recent spending: %w", err)
	}

	s := &Snapshot{
		Period:     period,
		Total:      total.Total,
		Count:      total.Count,
		Categories: categories,
		Top:        categories[:min(topN, len(categories))],
	}
	b.cache.Set(userID, s)
	return s, nil
}

func (b *SnapshotBuilder) Invalidate(userID int64) {
	b.cache.Delete(userID)
}

// Subscribe drops a user's snapshot on every ledger change.
func (b *SnapshotBuilder) Subscribe(bus *events.EventBus) {
	for _, t := range []string{
		events.EventTypeExpenseCreated,
		events.EventTypeExpenseUpdated,
		events.EventTypeExpenseDeleted,
		events.EventTypeImportCompleted,
		events.EventTypeImportDeleted,
	} {
		bus.Subscribe(t, b.onLedgerChanged)
	}
}

func (b *SnapshotBuilder) onLedgerChanged(_ context.Context, event events.Event) error {
	userID := event.AffectedUser()
	b.Invalidate(userID)
	b.logger.Debug("snapshot invalidated", "user_id", userID, "event_type", event.EventType())
	return nil
}
