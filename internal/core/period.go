package core

import (
	"math"
	"time"
)

// Budget window limits. Duration is capped at a month-ish window; the
// minimum budget keeps the progress math meaningful.
const (
	MinDurationDays = 1
	MaxDurationDays = 31

	DefaultDurationDays = 30
	DefaultBudgetCents  = 10000 * 100
	MinBudgetCents      = 100 * 100
)

// Period is the active rolling budget window. Exactly one period is active
// per user at a time; changing its duration or budget never touches
// already-recorded expenses.
type Period struct {
	StartDate    Date
	DurationDays int
	BudgetCents  int64
}

// DefaultPeriod returns the window a fresh account starts with.
func DefaultPeriod(today Date) Period {
	return Period{
		StartDate:    today,
		DurationDays: DefaultDurationDays,
		BudgetCents:  DefaultBudgetCents,
	}
}

// Update returns a copy with new duration and budget, keeping the start
// date. Out-of-range values fail with a ValidationError naming the fields.
func (p Period) Update(durationDays int, budgetCents int64) (Period, error) {
	var fields []string
	if durationDays < MinDurationDays || durationDays > MaxDurationDays {
		fields = append(fields, "durationDays")
	}
	if budgetCents < MinBudgetCents {
		fields = append(fields, "budgetAmount")
	}
	if len(fields) > 0 {
		return Period{}, NewValidationError(fields...)
	}
	p.DurationDays = durationDays
	p.BudgetCents = budgetCents
	return p, nil
}

// Restart returns a copy beginning at newStart with the same duration and
// budget. Used when a period is reset.
func (p Period) Restart(newStart Date) Period {
	p.StartDate = newStart
	return p
}

// EndDate is startDate + durationDays.
func (p Period) EndDate() Date {
	return p.StartDate.AddDays(p.DurationDays)
}

// DaysElapsed is max(1, ceil((asOf - startDate) / 1 day)), so the first
// day of a period always counts as one elapsed day.
func (p Period) DaysElapsed(asOf Date) int {
	days := ceilDays(asOf.Sub(p.StartDate.Time))
	if days < 1 {
		return 1
	}
	return days
}

// DaysRemaining is max(0, ceil((endDate - asOf) / 1 day)).
func (p Period) DaysRemaining(asOf Date) int {
	days := ceilDays(p.EndDate().Sub(asOf.Time))
	if days < 0 {
		return 0
	}
	return days
}

// Contains reports whether a date falls inside [startDate, endDate).
func (p Period) Contains(d Date) bool {
	return !d.Before(p.StartDate.Time) && d.Before(p.EndDate().Time)
}

func ceilDays(dur time.Duration) int {
	return int(math.Ceil(dur.Hours() / 24))
}
