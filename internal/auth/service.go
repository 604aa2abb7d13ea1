package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/user"
)

type UserAuthenticator interface {
	Authenticate(ctx context.Context, login, password string) (*user.User, error)
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type Service struct {
	users  UserAuthenticator
	tokens TokenGenerator
	logger *slog.Logger
}

func NewService(users UserAuthenticator, tokens TokenGenerator, logger *slog.Logger) *Service {
	return &Service{users: users, tokens: tokens, logger: logger}
}

// Authenticate validates credentials and returns tokens
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (*AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	u, err := s.users.Authenticate(ctx, strings.TrimSpace(dto.Login), dto.Password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", "user_id", u.ID)
	return s.issue(u)
}

// RefreshTokens reloads the user so disabled accounts cannot keep refreshing.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if internal.IsType(err, internal.ErrorTypeNotFound) {
			return nil, internal.ErrInvalidToken
		}
		return nil, err
	}
	if !u.CanLogin() {
		return nil, internal.ErrUserInactive
	}
	return s.issue(u)
}

func (s *Service) ValidateAccessToken(token string) (*Claims, error) {
	return s.tokens.ValidateAccessToken(token)
}

func (s *Service) issue(u *user.User) (*AuthTokens, error) {
	sub := Subject{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
	access, expiresAt, err := s.tokens.GenerateAccessToken(sub)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.tokens.GenerateRefreshToken(sub)
	if err != nil {
		return nil, err
	}
	return &AuthTokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}
