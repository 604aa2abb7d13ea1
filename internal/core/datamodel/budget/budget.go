package budget

import "time"

type Budget struct {
	ID                  int64     `gorm:"primaryKey"`
	UserID              int64     `gorm:"column:user_id;not null;uniqueIndex:idx_budgets_user_period,priority:1"`
	Month               int       `gorm:"column:month;not null;uniqueIndex:idx_budgets_user_period,priority:3"`
	Year                int       `gorm:"column:year;not null;uniqueIndex:idx_budgets_user_period,priority:2"`
	TotalCents          int64     `gorm:"column:total_cents;not null"`
	FoodCents           int64     `gorm:"column:food_cents;not null"`
	TransportationCents int64     `gorm:"column:transportation_cents;not null"`
	EntertainmentCents  int64     `gorm:"column:entertainment_cents;not null"`
	BillsCents          int64     `gorm:"column:bills_cents;not null"`
	ShoppingCents       int64     `gorm:"column:shopping_cents;not null"`
	OtherCents          int64     `gorm:"column:other_cents;not null"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`

	CustomCategories []CustomBudgetCategory `gorm:"foreignKey:BudgetID;constraint:OnDelete:CASCADE"`
}

func (Budget) TableName() string {
	return "budgets"
}

// CustomBudgetCategory is a user-defined bucket. NameKey is the lower-cased name and carries
// the per-budget uniqueness constraint.
type CustomBudgetCategory struct {
	ID          int64     `gorm:"primaryKey"`
	BudgetID    int64     `gorm:"column:budget_id;not null;uniqueIndex:idx_custom_categories_budget_name,priority:1"`
	Name        string    `gorm:"column:name;size:100;not null"`
	NameKey     string    `gorm:"column:name_key;size:100;not null;uniqueIndex:idx_custom_categories_budget_name,priority:2"`
	AmountCents int64     `gorm:"column:amount_cents;not null"`
	Icon        *string   `gorm:"column:icon;size:50"`
	Color       *string   `gorm:"column:color;size:20"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CustomBudgetCategory) TableName() string {
	return "custom_budget_categories"
}
