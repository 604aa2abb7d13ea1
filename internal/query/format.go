package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/expense-insights/internal/core/money"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/shopspring/decimal"
)

// Row is one result row keyed by column name.
type Row map[string]interface{}

type TotalResult struct {
	Category string          `json:"category,omitempty"`
	Total    decimal.Decimal `json:"total"`
	Count    int64           `json:"count"`
}

type ExpenseRow struct {
	ID          int64           `json:"id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
}

type CategoryShare struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int64           `json:"count"`
	Share    decimal.Decimal `json:"share"`
}

type MonthRow struct {
	Year  int             `json:"year"`
	Month time.Month      `json:"month"`
	Total decimal.Decimal `json:"total"`
	Count int64           `json:"count"`
}

type ExplosionRow struct {
	Category      string           `json:"category"`
	Current       decimal.Decimal  `json:"current"`
	Previous      decimal.Decimal  `json:"previous"`
	Delta         decimal.Decimal  `json:"delta"`
	ChangePercent *decimal.Decimal `json:"change_percent,omitempty"`
}

// formatted is a sentence plus the structured rows behind it. tip is set when the intent has
// its own advice.
type formatted struct {
	text string
	data interface{}
	tip  string
}

func format(c *Compiled, rows []Row) formatted {
	when := describePeriod(c.Period)
	switch c.Intent {
	case IntentCategoryTotal, IntentCategoryInTimeframe, IntentTimeframeTotal:
		return formatTotal(c, rows, when)
	case IntentTopExpenses:
		return formatTop(c, rows, when)
	case IntentCategoryComparison:
		return formatComparison(rows, when)
	case IntentMonthComparison:
		return formatMonths(rows, when)
	case IntentCategoryExplosion:
		return formatExplosion(rows, when)
	}
	return formatted{}
}

func formatTotal(c *Compiled, rows []Row, when string) formatted {
	res := TotalResult{Category: c.Category, Total: decimal.Zero}
	if len(rows) > 0 {
		res.Total = money.FromCents(asInt64(rows[0]["total_cents"]))
		res.Count = asInt64(rows[0]["expense_count"])
	}
	subject := ""
	if c.Category != "" {
		subject = " on " + c.Category
	}
	if res.Count == 0 {
		return formatted{text: fmt.Sprintf("You haven't spent anything%s%s.", subject, when), data: res}
	}
	return formatted{
		text: fmt.Sprintf("You spent %s%s%s across %d %s.", money.Format(res.Total), subject, when, res.Count, plural(res.Count, "expense")),
		data: res,
	}
}

func formatTop(c *Compiled, rows []Row, when string) formatted {
	items := make([]ExpenseRow, len(rows))
	for i, r := range rows {
		items[i] = ExpenseRow{
			ID:          asInt64(r["id"]),
			Date:        asDate(r["date"]),
			Description: asString(r["description"]),
			Category:    asString(r["category"]),
			Amount:      money.FromCents(asInt64(r["amount_cents"])),
		}
	}
	if len(items) == 0 {
		return formatted{text: fmt.Sprintf("You don't have any expenses%s yet.", when), data: items}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your top %d %s%s:", len(items), plural(int64(len(items)), "expense"), when)
	for i, e := range items {
		fmt.Fprintf(&b, "\n%d. %s %s (%s) %s", i+1, e.Date, e.Description, e.Category, money.Format(e.Amount))
	}
	return formatted{text: b.String(), data: items}
}

func formatComparison(rows []Row, when string) formatted {
	shares := make([]CategoryShare, len(rows))
	total := decimal.Zero
	for i, r := range rows {
		shares[i] = CategoryShare{
			Category: asString(r["category"]),
			Total:    money.FromCents(asInt64(r["total_cents"])),
			Count:    asInt64(r["expense_count"]),
		}
		total = total.Add(shares[i].Total)
	}
	if len(shares) == 0 {
		return formatted{text: fmt.Sprintf("You don't have any expenses%s yet.", when), data: shares}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Spending by category%s (%s total):", when, money.Format(total))
	for i := range shares {
		if total.IsPositive() {
			shares[i].Share = shares[i].Total.Div(total).Mul(decimal.NewFromInt(100)).Round(1)
		}
		fmt.Fprintf(&b, "\n- %s: %s (%s%%)", shares[i].Category, money.Format(shares[i].Total), shares[i].Share.StringFixed(1))
	}
	return formatted{text: b.String(), data: shares}
}

func formatMonths(rows []Row, when string) formatted {
	months := make([]MonthRow, len(rows))
	for i, r := range rows {
		months[i] = MonthRow{
			Year:  int(asInt64(r["year"])),
			Month: time.Month(asInt64(r["month"])),
			Total: money.FromCents(asInt64(r["total_cents"])),
			Count: asInt64(r["expense_count"]),
		}
	}
	if len(months) == 0 {
		return formatted{text: fmt.Sprintf("You don't have any expenses%s yet.", when), data: months}
	}

	var b strings.Builder
	b.WriteString("Monthly spending:")
	for _, m := range months {
		fmt.Fprintf(&b, "\n- %s: %s (%d %s)", timeframe.MonthOf(m.Year, m.Month).Label(), money.Format(m.Total), m.Count, plural(m.Count, "expense"))
	}
	return formatted{text: b.String(), data: months}
}

func formatExplosion(rows []Row, when string) formatted {
	var out []ExplosionRow
	for _, r := range rows {
		e := ExplosionRow{
			Category: asString(r["category"]),
			Current:  money.FromCents(asInt64(r["current_cents"])),
			Previous: money.FromCents(asInt64(r["previous_cents"])),
		}
		e.Delta = e.Current.Sub(e.Previous)
		if e.Previous.IsPositive() {
			pct := e.Delta.Div(e.Previous).Mul(decimal.NewFromInt(100)).Round(1)
			e.ChangePercent = &pct
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Delta.Equal(out[j].Delta) {
			return out[i].Delta.GreaterThan(out[j].Delta)
		}
		return out[i].Category < out[j].Category
	})

	if len(out) == 0 {
		return formatted{text: fmt.Sprintf("No category grew%s compared with the period before.", when), data: []ExplosionRow{}}
	}

	var b strings.Builder
	if !out[0].Delta.IsPositive() {
		fmt.Fprintf(&b, "No category grew%s compared with the period before.", when)
		for _, e := range out {
			b.WriteString("\n" + e.Line())
		}
		return formatted{text: b.String(), data: out}
	}

	fmt.Fprintf(&b, "Categories ranked by growth%s:", when)
	for _, e := range out {
		b.WriteString("\n" + e.Line())
	}
	return formatted{
		text: b.String(),
		data: out,
		tip:  fmt.Sprintf("Tip: %s drove most of the increase; a cap for it would flag the next jump early.", out[0].Category),
	}
}

// Line renders "Dining, current 250.00, previous 100.00, delta +150.00, change +150.0%".
func (e ExplosionRow) Line() string {
	change := "n/a"
	if e.ChangePercent != nil {
		change = signed(*e.ChangePercent, 1) + "%"
	}
	return fmt.Sprintf("%s, current %s, previous %s, delta %s, change %s",
		e.Category, e.Current.StringFixed(2), e.Previous.StringFixed(2), signed(e.Delta, 2), change)
}

func signed(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	if !d.IsNegative() {
		return "+" + s
	}
	return s
}

// describePeriod renders " in March 2025" with its leading space, or nothing for all time.
func describePeriod(p *timeframe.Period) string {
	if p == nil {
		return ""
	}
	if p.Kind == timeframe.Week {
		return " during " + p.Label()
	}
	return " in " + p.Label()
}

func plural(n int64, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func asInt64(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case []byte:
		n, _ := strconv.ParseInt(string(x), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	}
	return 0
}

func asString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func asDate(v interface{}) string {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format("2006-01-02")
	case nil:
		return ""
	}
	s := asString(v)
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}
