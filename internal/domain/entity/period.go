package entity

import (
	"fmt"
	"strings"
	"time"
)

// Period is a reporting month in canonical YYYY-MM form.
// The zero value means "no period".
type Period string

const periodLayout = "2006-01"

// ParsePeriod validates and canonicalises a YYYY-MM string.
// A trailing day component (YYYY-MM-DD) is accepted and dropped.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if len(s) == len("2006-01-02") {
		s = s[:len(periodLayout)]
	}
	s = strings.ReplaceAll(s, "_", "-")
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid reporting period %q: expected YYYY-MM", s)
	}
	return PeriodOf(t), nil
}

// MustParsePeriod is ParsePeriod for literals known to be valid.
func MustParsePeriod(s string) Period {
	p, err := ParsePeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period(t.UTC().Format(periodLayout))
}

func (p Period) String() string { return string(p) }

// IsZero reports whether p is unset.
func (p Period) IsZero() bool { return p == "" }

// Start returns the first instant of the month in UTC.
func (p Period) Start() time.Time {
	t, err := time.Parse(periodLayout, string(p))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Index is a monotonic month counter (year*12 + month-1), usable for
// window arithmetic.
func (p Period) Index() int {
	t := p.Start()
	return t.Year()*12 + int(t.Month()) - 1
}

// AddMonths shifts p by n calendar months.
func (p Period) AddMonths(n int) Period {
	return PeriodOf(p.Start().AddDate(0, n, 0))
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool { return p.Index() < o.Index() }

// After reports whether p is strictly later than o.
func (p Period) After(o Period) bool { return p.Index() > o.Index() }

// PeriodRange is an inclusive range filter; a zero bound is open.
type PeriodRange struct {
	From Period
	To   Period
}

// Contains reports whether p lies inside the range.
func (r PeriodRange) Contains(p Period) bool {
	if !r.From.IsZero() && p.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && p.After(r.To) {
		return false
	}
	return true
}
