// Package query answers structured spending questions without a language model: an utterance
// is matched against a fixed intent table, compiled to a parameterised aggregate and formatted.
package query

import (
	"regexp"
	"strings"
)

type Intent string

const (
	IntentCategoryInTimeframe Intent = "category_in_timeframe"
	IntentCategoryTotal       Intent = "category_total"
	IntentTimeframeTotal      Intent = "timeframe_total"
	IntentTopExpenses         Intent = "top_expenses"
	IntentCategoryComparison  Intent = "category_comparison"
	IntentMonthComparison     Intent = "month_comparison"
	IntentCategoryExplosion   Intent = "category_explosion"
	IntentUnmatched           Intent = "unmatched"
)

const (
	captureCategory  = "category"
	captureTimeframe = "timeframe"
	captureCount     = "count"
)

const timeframePattern = `(?:the )?(?P<timeframe>(?:this|last|past|previous|current) (?:week|month|year))`

type intentDef struct {
	name     Intent
	pattern  *regexp.Regexp
	template string
}

// intents is ordered: on equal specificity the earlier entry wins.
var intents = []intentDef{
	{
		name:     IntentCategoryInTimeframe,
		pattern:  regexp.MustCompile(`how much (?:did|have|do) i (?:spend|spent) on (?P<category>[a-z][\w &'-]*?) (?:in |during |for )?` + timeframePattern + `$`),
		template: totalTemplate,
	},
	{
		name:     IntentCategoryTotal,
		pattern:  regexp.MustCompile(`how much (?:did|have|do) i (?:spend|spent) on (?P<category>[a-z][\w &'-]*?)$`),
		template: totalTemplate,
	},
	{
		name:     IntentTimeframeTotal,
		pattern:  regexp.MustCompile(`(?:how much (?:did|have|do) i (?:spend|spent)|(?:what(?:'s| is| was) )?my (?:total )?spending)(?: in| during| for)? ` + timeframePattern + `$`),
		template: totalTemplate,
	},
	{
		name:     IntentTopExpenses,
		pattern:  regexp.MustCompile(`\b(?:top|biggest|largest) (?:(?P<count>\d{1,3}) )?(?:expenses|purchases|transactions)(?:.*?` + timeframePattern + `)?`),
		template: topExpensesTemplate,
	},
	{
		name:     IntentCategoryComparison,
		pattern:  regexp.MustCompile(`(?:compare (?:my )?(?:spending|expenses)(?: (?:by|across|between) categor(?:y|ies))?|breakdown by category|category breakdown|spending by category)(?:.*?` + timeframePattern + `)?$`),
		template: categoryComparisonTemplate,
	},
	{
		name:     IntentMonthComparison,
		pattern:  regexp.MustCompile(`compare (?:my )?monthly (?:spending|expenses)|compare (?:my )?(?:spending|expenses) by month|month (?:by|over) month|monthly (?:spending|breakdown|comparison)`),
		template: monthComparisonTemplate,
	},
	{
		name:     IntentCategoryExplosion,
		pattern:  regexp.MustCompile(`which categor(?:y|ies) (?:exploded|blew up|spiked|jumped|grew|increased)(?: the most)?(?: (?:in |during )?` + timeframePattern + `)?`),
		template: explosionTemplate,
	},
}

// Match is the chosen intent and the named captures it satisfied.
type Match struct {
	Intent   Intent
	Captures map[string]string
}

// Classify picks the intent whose pattern satisfies the most named captures, falling back to
// table order. Unmatched utterances get IntentUnmatched.
func Classify(utterance string) Match {
	text := normalise(utterance)
	best := Match{Intent: IntentUnmatched, Captures: map[string]string{}}
	bestScore := -1
	for _, def := range intents {
		sub := def.pattern.FindStringSubmatch(text)
		if sub == nil {
			continue
		}
		captures := make(map[string]string)
		for i, name := range def.pattern.SubexpNames() {
			if name != "" && sub[i] != "" {
				captures[name] = strings.TrimSpace(sub[i])
			}
		}
		if len(captures) > bestScore {
			best = Match{Intent: def.name, Captures: captures}
			bestScore = len(captures)
		}
	}
	if c, ok := best.Captures[captureCategory]; ok {
		if best.Intent == IntentCategoryTotal {
			c = trailingQualifier.ReplaceAllString(c, "")
		}
		best.Captures[captureCategory] = trimArticles(c)
	}
	return best
}

// trailingQualifier is an unrecognised time phrase left on a category, as in "food in january".
var trailingQualifier = regexp.MustCompile(` (?:in|during|for) .*$`)

func normalise(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, "?!. ")
	return strings.Join(strings.Fields(s), " ")
}

func trimArticles(s string) string {
	for _, p := range []string{"my ", "the "} {
		s = strings.TrimPrefix(s, p)
	}
	return s
}

func lookup(name Intent) (intentDef, bool) {
	for _, def := range intents {
		if def.name == name {
			return def, true
		}
	}
	return intentDef{}, false
}
