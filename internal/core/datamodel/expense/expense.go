package expense

import "time"

// Expense is one ledger row. Amounts are stored as integer cents.
type Expense struct {
	ID            int64     `gorm:"primaryKey"`
	UserID        int64     `gorm:"column:user_id;not null;index:idx_expenses_user_date,priority:1"`
	Date          time.Time `gorm:"column:date;type:date;not null;index:idx_expenses_user_date,priority:2"`
	Description   string    `gorm:"column:description;size:255;not null"`
	Category      string    `gorm:"column:category;size:100;not null"`
	AmountCents   int64     `gorm:"column:amount_cents;not null"`
	PaymentMethod *string   `gorm:"column:payment_method;size:50"`
	Merchant      *string   `gorm:"column:merchant;size:255"`
	ImportBatchID *int64    `gorm:"column:import_batch_id;index"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Expense) TableName() string {
	return "expenses"
}
