package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/expense-insights/internal/core/dialect"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
)

const (
	DefaultCount = 5
	MaxCount     = 50
)

const totalTemplate = `SELECT CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) AS total_cents, COUNT(*) AS expense_count
FROM expenses
WHERE user_id = :user_id AND {category_filter} AND {time_filter}`

const topExpensesTemplate = `SELECT id, "date", description, category, amount_cents
FROM expenses
WHERE user_id = :user_id AND {time_filter}
ORDER BY amount_cents DESC, id DESC
LIMIT :count`

const categoryComparisonTemplate = `SELECT MIN(category) AS category, CAST(SUM(amount_cents) AS BIGINT) AS total_cents, COUNT(*) AS expense_count
FROM expenses
WHERE user_id = :user_id AND {time_filter}
GROUP BY LOWER(category)
ORDER BY total_cents DESC, category`

const monthComparisonTemplate = `SELECT {year_expr} AS year, {month_expr} AS month, CAST(SUM(amount_cents) AS BIGINT) AS total_cents, COUNT(*) AS expense_count
FROM expenses
WHERE user_id = :user_id AND {time_filter}
GROUP BY 1, 2
ORDER BY 1, 2`

const explosionTemplate = `SELECT MIN(category) AS category,
  CAST(COALESCE(SUM(CASE WHEN {current_time_filter} THEN amount_cents ELSE 0 END), 0) AS BIGINT) AS current_cents,
  CAST(COALESCE(SUM(CASE WHEN {previous_time_filter} THEN amount_cents ELSE 0 END), 0) AS BIGINT) AS previous_cents
FROM expenses
WHERE user_id = :user_id AND "date" >= :previous_start AND "date" < :current_end
GROUP BY LOWER(category)`

// Compiled is a ready-to-run aggregate. SQL uses :named parameters; Args always binds user_id.
type Compiled struct {
	Intent   Intent
	SQL      string
	Args     map[string]interface{}
	Category string
	Count    int
	// Period is the window the question asked about; nil means all time.
	Period   *timeframe.Period
	Previous *timeframe.Period
}

// Compile turns a match into SQL for the dialect. The user is always the caller, never the
// utterance.
func Compile(m Match, userID int64, now time.Time, d dialect.Dialect) (*Compiled, error) {
	def, ok := lookup(m.Intent)
	if !ok {
		return nil, fmt.Errorf("intent %q has no template", m.Intent)
	}

	c := &Compiled{
		Intent: m.Intent,
		Args:   map[string]interface{}{"user_id": userID},
	}

	if raw, ok := m.Captures[captureTimeframe]; ok {
		rel, err := timeframe.ParseRelative(raw)
		if err != nil {
			return nil, err
		}
		current, previous := rel.Resolve(now)
		c.Period, c.Previous = &current, &previous
	} else if m.Intent == IntentCategoryExplosion {
		current, previous := timeframe.Relative{Kind: timeframe.Month}.Resolve(now)
		c.Period, c.Previous = &current, &previous
	}

	replacements := map[string]string{
		"{year_expr}":       d.YearExpr(`"date"`),
		"{month_expr}":      d.MonthExpr(`"date"`),
		"{category_filter}": "1 = 1",
		"{time_filter}":     "1 = 1",
	}

	if category, ok := m.Captures[captureCategory]; ok {
		c.Category = category
		c.Args["category"] = "%" + escapeLike(strings.ToLower(category)) + "%"
		replacements["{category_filter}"] = `LOWER(category) LIKE :category ESCAPE '\'`
	}

	if c.Period != nil {
		c.Args["start"] = c.Period.Start
		c.Args["end"] = c.Period.End
		replacements["{time_filter}"] = `"date" >= :start AND "date" < :end`
	}
	if m.Intent == IntentCategoryExplosion {
		c.Args["current_start"] = c.Period.Start
		c.Args["current_end"] = c.Period.End
		c.Args["previous_start"] = c.Previous.Start
		c.Args["previous_end"] = c.Previous.End
		replacements["{current_time_filter}"] = `"date" >= :current_start AND "date" < :current_end`
		replacements["{previous_time_filter}"] = `"date" >= :previous_start AND "date" < :previous_end`
	}

	if m.Intent == IntentTopExpenses {
		c.Count = DefaultCount
		if raw, ok := m.Captures[captureCount]; ok {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				c.Count = n
			}
		}
		if c.Count > MaxCount {
			c.Count = MaxCount
		}
		c.Args["count"] = c.Count
	}

	sql := def.template
	for placeholder, fragment := range replacements {
		sql = strings.ReplaceAll(sql, placeholder, fragment)
	}
	c.SQL = sql
	return c, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
