// Package timeframe resolves calendar periods used by aggregates and the query router.
// All periods are half-open [Start, End) over UTC calendar days.
package timeframe

import (
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	Week  Kind = "week"
	Month Kind = "month"
	Year  Kind = "year"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Week:
		return Week, nil
	case Month, "":
		return Month, nil
	case Year:
		return Year, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

type Period struct {
	Kind  Kind      `json:"kind"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (p Period) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(p.Start) && d.Before(p.End)
}

func (p Period) Label() string {
	switch p.Kind {
	case Week:
		return "the week of " + p.Start.Format("Jan 2, 2006")
	case Year:
		return p.Start.Format("2006")
	case Month:
		return p.Start.Format("January 2006")
	}
	return p.Start.Format("2006-01-02") + " to " + p.End.AddDate(0, 0, -1).Format("2006-01-02")
}

// Day truncates t to its calendar date expressed as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Current returns the period of the given kind containing ref. Weeks start on Monday.
func Current(kind Kind, ref time.Time) Period {
	d := Day(ref)
	switch kind {
	case Week:
		offset := (int(d.Weekday()) + 6) % 7
		start := d.AddDate(0, 0, -offset)
		return Period{Kind: Week, Start: start, End: start.AddDate(0, 0, 7)}
	case Year:
		start := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return Period{Kind: Year, Start: start, End: start.AddDate(1, 0, 0)}
	default:
		return MonthOf(d.Year(), d.Month())
	}
}

// Previous returns the period of the same kind that ends where the current one starts.
func Previous(kind Kind, ref time.Time) Period {
	cur := Current(kind, ref)
	return Current(kind, cur.Start.AddDate(0, 0, -1))
}

func MonthOf(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Kind: Month, Start: start, End: start.AddDate(0, 1, 0)}
}

// AddMonths moves (year, month) by n calendar months.
func AddMonths(year int, month time.Month, n int) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return t.Year(), t.Month()
}

// LastDays covers the n calendar days ending with ref, inclusive.
func LastDays(n int, ref time.Time) Period {
	end := Day(ref).AddDate(0, 0, 1)
	return Period{Start: end.AddDate(0, 0, -n), End: end}
}

// Relative is a phrase such as "this month" or "last week" split into kind and offset.
type Relative struct {
	Kind   Kind
	Offset int
}

func ParseRelative(phrase string) (Relative, error) {
	fields := strings.Fields(strings.ToLower(phrase))
	if len(fields) != 2 {
		return Relative{}, fmt.Errorf("unrecognised timeframe %q", phrase)
	}
	kind, err := ParseKind(fields[1])
	if err != nil {
		return Relative{}, err
	}
	switch fields[0] {
	case "this", "current":
		return Relative{Kind: kind}, nil
	case "last", "past", "previous":
		return Relative{Kind: kind, Offset: -1}, nil
	}
	return Relative{}, fmt.Errorf("unrecognised timeframe %q", phrase)
}

// Resolve returns the period the relative phrase names, plus the period abutting it before.
func (r Relative) Resolve(ref time.Time) (current, previous Period) {
	current = Current(r.Kind, ref)
	if r.Offset < 0 {
		current = Previous(r.Kind, ref)
	}
	previous = Previous(r.Kind, current.Start)
	return current, previous
}

// Date is a calendar day that decodes from "2006-01-02" as well as RFC 3339.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{Day(t)}
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return NewDate(t), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}
