package notification

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
)

type RepositoryAPI interface {
	// CreateOrEscalate inserts n unless the user already has a row with the same dedup key and
	// created day. An existing row of lower severity is rewritten to n instead. It reports whether
	// the user now sees a new alert.
	CreateOrEscalate(ctx context.Context, n *Notification) (bool, error)
	ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]*Notification, error)
	GetByID(ctx context.Context, id int64) (*Notification, error)
	MarkRead(ctx context.Context, id int64) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Notify records an alert at most once per user, dedup key and calendar day. A more severe alert
// for the same key upgrades the day's row in place.
func (s *Service) Notify(ctx context.Context, in NotifyInput) (bool, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return false, internal.NewValidationFieldError("title", "title is required", internal.ErrCodeValidationFailed)
	}
	if in.Kind == "" {
		in.Kind = KindInfo
	}
	if in.DedupKey == "" {
		in.DedupKey = in.Title
	}

	now := s.now().UTC()
	n := &Notification{
		UserID:      in.UserID,
		Title:       in.Title,
		Body:        in.Body,
		Kind:        in.Kind,
		DedupKey:    in.DedupKey,
		CreatedDay:  timeframe.Day(now),
		RelatedID:   in.RelatedID,
		RelatedType: in.RelatedType,
		CreatedAt:   now,
	}
	created, err := s.repo.CreateOrEscalate(ctx, n)
	if err != nil {
		s.logger.Error("failed to store notification", "error", err, "user_id", in.UserID, "title", in.Title)
		return false, err
	}
	if created {
		s.logger.Info("notification created", "user_id", in.UserID, "title", in.Title, "kind", in.Kind)
	}
	return created, nil
}

func (s *Service) List(ctx context.Context, userID int64, unreadOnly bool) ([]*Notification, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, actor internal.Actor, id int64) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanAccess(n.UserID) {
		return internal.ErrPermissionDenied
	}
	return s.repo.MarkRead(ctx, id)
}
