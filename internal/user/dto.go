package user

import (
	"net/mail"
	"strings"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/core/common/validation"
)

type RegisterDTO struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	IsBusiness bool   `json:"is_business"`
}

func (dto *RegisterDTO) Normalize() {
	dto.Username = strings.TrimSpace(dto.Username)
	dto.Email = strings.ToLower(strings.TrimSpace(dto.Email))
}

func (dto RegisterDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("username", dto.Username).Required().MaxLength(80)
	v.Field("email", dto.Email).Required().MaxLength(255).Custom(func(value interface{}) *internal.AppError {
		if s, _ := value.(string); s != "" {
			if _, err := mail.ParseAddress(s); err != nil {
				return internal.NewValidationFieldError("email", "email is not a valid address", internal.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	v.Field("password", dto.Password).Required().Custom(func(value interface{}) *internal.AppError {
		if s, _ := value.(string); s != "" && len(s) < 8 {
			return internal.NewValidationFieldError("password", "password must be at least 8 characters", internal.ErrCodeValidationFailed)
		}
		return nil
	})
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type PreferencesDTO struct {
	AlertsEnabled       *bool `json:"alerts_enabled"`
	AlertBudgetExceeded *bool `json:"alert_budget_exceeded"`
}
