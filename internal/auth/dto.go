package auth

import (
	"strings"

	"github.com/frahmantamala/expense-insights/internal"
)

// LoginDTO accepts either the username or the email in Login.
type LoginDTO struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token"`
}

func (d LoginDTO) Validate() error {
	if strings.TrimSpace(d.Login) == "" {
		return internal.NewValidationFieldError("login", "login is required", internal.ErrCodeValidationFailed)
	}
	if d.Password == "" {
		return internal.NewValidationFieldError("password", "password is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

func (d RefreshTokenDTO) Validate() error {
	if d.RefreshToken == "" {
		return internal.NewValidationFieldError("refresh_token", "refresh_token is required", internal.ErrCodeValidationFailed)
	}
	return nil
}
