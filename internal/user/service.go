package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"golang.org/x/crypto/bcrypt"
)

type RepositoryAPI interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByLogin(ctx context.Context, usernameOrEmail string) (*User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdatePreferences(ctx context.Context, id int64, alertsEnabled, alertBudgetExceeded bool) error
	TouchLogin(ctx context.Context, id int64, at time.Time) error
}

type Service struct {
	repo       RepositoryAPI
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, bcryptCost: bcryptCost, logger: logger}
}

func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*User, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, dto.Username, dto.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		s.logger.Warn("registration rejected: duplicate user", "username", dto.Username)
		return nil, internal.NewConflictError("username or email is already registered", internal.ErrCodeDuplicateUser)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &User{
		Username:            dto.Username,
		Email:               dto.Email,
		PasswordHash:        string(hash),
		IsBusiness:          dto.IsBusiness,
		IsActive:            true,
		AlertsEnabled:       true,
		AlertBudgetExceeded: true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		s.logger.Error("failed to create user", "error", err, "username", dto.Username)
		return nil, err
	}

	s.logger.Info("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, actor internal.Actor, id int64, dto PreferencesDTO) (*User, error) {
	if !actor.CanAccess(id) {
		return nil, internal.ErrPermissionDenied
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if dto.AlertsEnabled != nil {
		u.AlertsEnabled = *dto.AlertsEnabled
	}
	if dto.AlertBudgetExceeded != nil {
		u.AlertBudgetExceeded = *dto.AlertBudgetExceeded
	}
	if err := s.repo.UpdatePreferences(ctx, id, u.AlertsEnabled, u.AlertBudgetExceeded); err != nil {
		s.logger.Error("failed to update preferences", "error", err, "user_id", id)
		return nil, err
	}
	return u, nil
}

// Authenticate checks credentials against the stored bcrypt hash and refuses inactive or
// suspended accounts.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	u, err := s.repo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, internal.ErrInvalidCredentials
	}
	if !u.CanLogin() {
		s.logger.Warn("login refused for disabled account", "user_id", u.ID)
		return nil, internal.ErrUserInactive
	}
	now := time.Now()
	if err := s.repo.TouchLogin(ctx, u.ID, now); err != nil {
		s.logger.Warn("failed to record last login", "error", err, "user_id", u.ID)
	} else {
		u.LastLogin = &now
	}
	return u, nil
}
