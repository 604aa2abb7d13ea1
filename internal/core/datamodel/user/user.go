package user

import "time"

type User struct {
	ID                  int64      `gorm:"primaryKey"`
	Username            string     `gorm:"column:username;size:80;uniqueIndex;not null"`
	Email               string     `gorm:"column:email;size:255;uniqueIndex;not null"`
	PasswordHash        string     `gorm:"column:password_hash;not null"`
	IsAdmin             bool       `gorm:"column:is_admin;not null"`
	IsBusiness          bool       `gorm:"column:is_business;not null"`
	IsActive            bool       `gorm:"column:is_active;not null"`
	IsSuspended         bool       `gorm:"column:is_suspended;not null"`
	SuspensionReason    *string    `gorm:"column:suspension_reason"`
	AlertsEnabled       bool       `gorm:"column:alerts_enabled;not null"`
	AlertBudgetExceeded bool       `gorm:"column:alert_budget_exceeded;not null"`
	LastLogin           *time.Time `gorm:"column:last_login"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
