package validation_test

import (
	"strings"
	"testing"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/core/common/validation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func TestValidation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Validation Suite")
}

var _ = Describe("ValidateExpense", func() {
	now := time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC)

	valid := func() validation.ExpenseFields {
		return validation.ExpenseFields{
			Description: "Weekly groceries",
			Category:    "Groceries",
			Amount:      decimal.RequireFromString("75.25"),
			Date:        time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		}
	}

	It("accepts a well formed expense", func() {
		Expect(validation.ValidateExpense(valid(), now)).To(BeNil())
	})

	It("accepts tomorrow but not the day after", func() {
		f := valid()
		f.Date = time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
		Expect(validation.ValidateExpense(f, now)).To(BeNil())

		f.Date = time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)
		err := validation.ValidateExpense(f, now)
		Expect(err).NotTo(BeNil())
		Expect(err.GetDetailedMessage()).To(ContainSubstring("date cannot be in the future"))
	})

	It("allows future dates when explicitly permitted", func() {
		f := valid()
		f.Date = now.AddDate(1, 0, 0)
		f.AllowFuture = true
		Expect(validation.ValidateExpense(f, now)).To(BeNil())
	})

	It("collects one error per invalid field", func() {
		f := valid()
		f.Description = strings.Repeat("x", 256)
		f.Category = ""
		f.Amount = decimal.Zero

		err := validation.ValidateExpense(f, now)
		Expect(err).NotTo(BeNil())
		Expect(err.Type).To(Equal(internal.ErrorTypeValidation))
		details := err.Details.(internal.ValidationErrors)
		Expect(details.Errors).To(HaveLen(3))
		Expect(details.Errors[0].Field).To(Equal("description"))
		Expect(details.Errors[1].Field).To(Equal("category"))
		Expect(details.Errors[2].Field).To(Equal("amount"))
	})

	It("rejects negative amounts", func() {
		f := valid()
		f.Amount = decimal.RequireFromString("-1")
		Expect(validation.ValidateExpense(f, now)).NotTo(BeNil())
	})
})

var _ = Describe("ValidateMonth", func() {
	It("bounds the month", func() {
		Expect(validation.ValidateMonth(12, 2025)).To(BeNil())
		Expect(validation.ValidateMonth(13, 2025)).NotTo(BeNil())
		Expect(validation.ValidateMonth(0, 2025)).NotTo(BeNil())
	})
})
