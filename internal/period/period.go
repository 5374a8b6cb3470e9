// Package period holds the calendar arithmetic shared by every billing job.
// A period is a calendar month written as "YYYY-MM".
package period

import (
	"fmt"
	"time"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

const layout = "2006-01"

// Format renders the period containing t, in t's location.
func Format(t time.Time) string {
	return t.Format(layout)
}

// Parse returns midnight UTC on the first day of the period.
func Parse(p string) (time.Time, error) {
	if !domain.IsPeriod(p) {
		return time.Time{}, fmt.Errorf("Parse: %q: %w", p, domain.ErrInvalidPeriod)
	}
	t, err := time.Parse(layout, p)
	if err != nil {
		return time.Time{}, fmt.Errorf("Parse: %q: %w", p, domain.ErrInvalidPeriod)
	}
	return t, nil
}

// Current resolves the period of now as seen in loc.
func Current(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return Format(now.In(loc))
}

// Resolve returns p when set, otherwise the current period. Callers resolve
// once at the request or task boundary and pass the result down.
func Resolve(p string, now time.Time, loc *time.Location) (string, error) {
	if p == "" {
		return Current(now, loc), nil
	}
	if _, err := Parse(p); err != nil {
		return "", err
	}
	return p, nil
}

// DaysIn returns the number of days in the period's month.
func DaysIn(p string) (int, error) {
	start, err := Parse(p)
	if err != nil {
		return 0, err
	}
	return daysInMonth(start.Year(), start.Month()), nil
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysInMonthOf returns the length of the month containing t.
func DaysInMonthOf(t time.Time) int {
	return daysInMonth(t.Year(), t.Month())
}

// Bounds returns [start, next) for the period in loc.
func Bounds(p string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := Parse(p)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0), nil
}

// Deadline is the last calendar day on which rent for p may be paid without a
// late fee: the due day (clamped to the month length) plus graceDays.
func Deadline(p string, dueDay, graceDays int, loc *time.Location) (time.Time, error) {
	start, err := Parse(p)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	last := daysInMonth(start.Year(), start.Month())
	if dueDay < 1 {
		dueDay = 1
	}
	if dueDay > last {
		dueDay = last
	}
	due := time.Date(start.Year(), start.Month(), dueDay, 0, 0, 0, 0, loc)
	return due.AddDate(0, 0, graceDays), nil
}

// PastDeadline compares at calendar-day granularity: the whole deadline day is
// still within grace.
func PastDeadline(now, deadline time.Time) bool {
	n := now.In(deadline.Location())
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, deadline.Location())
	return today.After(deadline)
}

// MonthLabel renders "March 2024".
func MonthLabel(p string) (string, error) {
	start, err := Parse(p)
	if err != nil {
		return "", err
	}
	return start.Format("January 2006"), nil
}
