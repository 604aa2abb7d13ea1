package category

import (
	"context"
	"log/slog"
	"strings"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/budget"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/expense"
)

type SpendingReader interface {
	AggregateByCategory(ctx context.Context, scope expense.Scope, period *timeframe.Period) ([]expense.CategoryTotal, error)
}

type Service struct {
	spending SpendingReader
	logger   *slog.Logger
}

func NewService(spending SpendingReader, logger *slog.Logger) *Service {
	return &Service{spending: spending, logger: logger}
}

// GetAllCategories returns the user's categories by all-time spend, optionally filtered by a
// case-insensitive prefix, plus the standard budget buckets.
func (s *Service) GetAllCategories(ctx context.Context, actor internal.Actor, userID int64, prefix string) (*CategoriesResponse, error) {
	target, err := internal.ResolveUser(actor, userID)
	if err != nil {
		return nil, err
	}
	totals, err := s.spending.AggregateByCategory(ctx, expense.UserScope(target), nil)
	if err != nil {
		s.logger.Error("failed to aggregate categories", "error", err, "user_id", target)
		return nil, err
	}

	prefix = strings.ToLower(strings.TrimSpace(prefix))
	resp := &CategoriesResponse{Categories: make([]*Category, 0, len(totals))}
	for _, t := range totals {
		if prefix != "" && !strings.HasPrefix(strings.ToLower(t.Category), prefix) {
			continue
		}
		resp.Categories = append(resp.Categories, FromTotal(t))
	}
	for _, b := range budget.Buckets() {
		resp.Buckets = append(resp.Buckets, BucketResponse{Name: b, Title: b.Title()})
	}

	s.logger.Debug("retrieved categories", "user_id", target, "count", len(resp.Categories))
	return resp, nil
}
