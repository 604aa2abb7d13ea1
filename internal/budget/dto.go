package budget

import (
	"strings"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

var (
	errNegativeCap = internal.NewValidationFieldError("caps", "budget caps cannot be negative", internal.ErrCodeInvalidBudget)
	errCapTooLarge = internal.NewValidationFieldError("caps", "budget cap is too large", internal.ErrCodeInvalidBudget)
)

// UpdateBudgetDTO changes the caps that are present and leaves the others alone.
type UpdateBudgetDTO struct {
	Total          *decimal.Decimal `json:"total,omitempty"`
	Food           *decimal.Decimal `json:"food,omitempty"`
	Transportation *decimal.Decimal `json:"transportation,omitempty"`
	Entertainment  *decimal.Decimal `json:"entertainment,omitempty"`
	Bills          *decimal.Decimal `json:"bills,omitempty"`
	Shopping       *decimal.Decimal `json:"shopping,omitempty"`
	Other          *decimal.Decimal `json:"other,omitempty"`
}

func (dto UpdateBudgetDTO) Apply(c Caps) Caps {
	set := func(dst *decimal.Decimal, v *decimal.Decimal) {
		if v != nil {
			*dst = v.Round(2)
		}
	}
	set(&c.Total, dto.Total)
	set(&c.Food, dto.Food)
	set(&c.Transportation, dto.Transportation)
	set(&c.Entertainment, dto.Entertainment)
	set(&c.Bills, dto.Bills)
	set(&c.Shopping, dto.Shopping)
	set(&c.Other, dto.Other)
	return c
}

type CustomCategoryDTO struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Icon   *string         `json:"icon,omitempty"`
	Color  *string         `json:"color,omitempty"`
}

func (dto *CustomCategoryDTO) Validate() error {
	dto.Name = strings.TrimSpace(dto.Name)
	v := validation.NewValidator()
	v.Field("name", dto.Name).
		Required().
		MaxLength(validation.MaxCategoryLength)
	v.Field("amount", dto.Amount).
		NonNegativeDecimal(internal.ErrCodeInvalidBudget).
		StorableAmount(internal.ErrCodeInvalidBudget)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}
