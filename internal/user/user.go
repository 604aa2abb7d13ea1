package user

import (
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	userDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/user"
)

type User struct {
	ID                  int64      `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	IsAdmin             bool       `json:"is_admin"`
	IsBusiness          bool       `json:"is_business"`
	IsActive            bool       `json:"is_active"`
	IsSuspended         bool       `json:"is_suspended"`
	SuspensionReason    *string    `json:"suspension_reason,omitempty"`
	AlertsEnabled       bool       `json:"alerts_enabled"`
	AlertBudgetExceeded bool       `json:"alert_budget_exceeded"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// CanLogin is false for inactive or suspended accounts.
func (u *User) CanLogin() bool {
	return u.IsActive && !u.IsSuspended
}

// WantsBudgetAlerts gates budget-overage notifications.
func (u *User) WantsBudgetAlerts() bool {
	return u.AlertsEnabled && u.AlertBudgetExceeded
}

func (u *User) Actor() internal.Actor {
	return internal.Actor{UserID: u.ID, IsAdmin: u.IsAdmin}
}

var ErrNotFound = internal.ErrUserNotFound

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:                  u.ID,
		Username:            u.Username,
		Email:               u.Email,
		PasswordHash:        u.PasswordHash,
		IsAdmin:             u.IsAdmin,
		IsBusiness:          u.IsBusiness,
		IsActive:            u.IsActive,
		IsSuspended:         u.IsSuspended,
		SuspensionReason:    u.SuspensionReason,
		AlertsEnabled:       u.AlertsEnabled,
		AlertBudgetExceeded: u.AlertBudgetExceeded,
		LastLogin:           u.LastLogin,
		CreatedAt:           u.CreatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:                  u.ID,
		Username:            u.Username,
		Email:               u.Email,
		PasswordHash:        u.PasswordHash,
		IsAdmin:             u.IsAdmin,
		IsBusiness:          u.IsBusiness,
		IsActive:            u.IsActive,
		IsSuspended:         u.IsSuspended,
		SuspensionReason:    u.SuspensionReason,
		AlertsEnabled:       u.AlertsEnabled,
		AlertBudgetExceeded: u.AlertBudgetExceeded,
		LastLogin:           u.LastLogin,
		CreatedAt:           u.CreatedAt,
	}
}
