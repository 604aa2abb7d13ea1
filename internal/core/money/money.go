// Package money converts between decimal amounts and the integer cents stored in the ledger.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyAmount      = errors.New("empty amount")
	ErrAmountOutOfRange = errors.New("amount out of range")
)

var hundred = decimal.NewFromInt(100)

// MaxAmount is the largest magnitude the ledger stores: 1e13 cents, well inside BIGINT.
var MaxAmount = decimal.New(1, 11)

// InRange reports whether d fits the ledger once rounded to cents.
func InRange(d decimal.Decimal) bool {
	return Round(d).Abs().LessThanOrEqual(MaxAmount)
}

// emptyTokens are spreadsheet and database renderings of a missing value.
var emptyTokens = map[string]struct{}{
	"":     {},
	"nan":  {},
	"null": {},
	"none": {},
	"n/a":  {},
	"na":   {},
	"-":    {},
}

// Round rounds half-up to two fractional digits.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func ToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// IsEmpty reports whether s is one of the empty-cell tokens.
func IsEmpty(s string) bool {
	_, ok := emptyTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Parse reads a user or file supplied amount. A leading currency symbol and thousands
// separators are accepted ("$1,234.50"). The result is rounded to cents and must be within
// MaxAmount.
func Parse(s string) (decimal.Decimal, error) {
	if IsEmpty(s) {
		return decimal.Zero, ErrEmptyAmount
	}
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if negative {
		d = d.Neg()
	}
	if !InRange(d) {
		return decimal.Zero, ErrAmountOutOfRange
	}
	return Round(d), nil
}

// Format renders an amount as dollars with thousands separators, e.g. "$1,234.56".
func Format(d decimal.Decimal) string {
	d = Round(d)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	intPart, frac := fixed[:len(fixed)-3], fixed[len(fixed)-2:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}

// Sum adds amounts exactly.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
