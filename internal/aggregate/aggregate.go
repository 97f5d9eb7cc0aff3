// Package aggregate derives presentation views from a ledger snapshot and
// a budget period. Everything here is a pure function over its inputs.
package aggregate

import (
	"strings"

	"studyspend/internal/core"
)

// DefaultRecentLimit is how many records RecentActivity returns when the
// caller does not say otherwise.
const DefaultRecentLimit = 5

// Dashboard is the home-screen summary for one period.
type Dashboard struct {
	TotalSpentCents   int64
	BudgetCents       int64
	RemainingCents    int64
	ProgressPercent   float64
	TodaySpentCents   int64
	TodayCount        int
	DailyAverageCents int64
	DaysElapsed       int
	DaysLeft          int
}

// DashboardSummary computes the dashboard figures for a record set as of a
// given date. With no records all monetary figures are zero, remaining
// equals the budget, and daysLeft follows the period clock.
func DashboardSummary(records []core.Expense, p core.Period, asOf core.Date) Dashboard {
	d := Dashboard{
		BudgetCents: p.BudgetCents,
		DaysElapsed: p.DaysElapsed(asOf),
		DaysLeft:    p.DaysRemaining(asOf),
	}

	for _, r := range records {
		d.TotalSpentCents += r.Amount.Cents
		if r.Date.SameDay(asOf) {
			d.TodaySpentCents += r.Amount.Cents
			d.TodayCount++
		}
	}

	d.RemainingCents = p.BudgetCents - d.TotalSpentCents
	if d.RemainingCents < 0 {
		d.RemainingCents = 0
	}
	if p.BudgetCents > 0 {
		d.ProgressPercent = float64(d.TotalSpentCents) / float64(p.BudgetCents) * 100
		if d.ProgressPercent > 100 {
			d.ProgressPercent = 100
		}
	}
	if d.DaysElapsed > 0 {
		d.DailyAverageCents = roundedDiv(d.TotalSpentCents, int64(d.DaysElapsed))
	}
	return d
}

// CategoryBreakdown sums amounts per category, only for categories that
// appear in the record set. Order is up to the consumer.
func CategoryBreakdown(records []core.Expense) map[core.Category]int64 {
	out := make(map[core.Category]int64)
	for _, r := range records {
		out[r.Category] += r.Amount.Cents
	}
	return out
}

// HistoryQuery filters the history view. Zero values mean "no constraint".
type HistoryQuery struct {
	Search   string
	Category core.Category
	DateFrom core.Date
	DateTo   core.Date
}

// HistoryResult is the filtered subset plus its summary line.
type HistoryResult struct {
	Records      []core.Expense
	Count        int
	TotalCents   int64
	AverageCents int64
}

// FilterHistory returns the records matching the query, in the same
// relative order as the input. Search matches case-insensitively against
// description or category; empty search matches everything. Date bounds
// are inclusive.
func FilterHistory(records []core.Expense, q HistoryQuery) HistoryResult {
	search := strings.ToLower(strings.TrimSpace(q.Search))

	var res HistoryResult
	for _, r := range records {
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Description), search) &&
			!strings.Contains(strings.ToLower(string(r.Category)), search) {
			continue
		}
		if q.Category != "" && r.Category != q.Category {
			continue
		}
		if !q.DateFrom.IsZero() && r.Date.Before(q.DateFrom.Time) {
			continue
		}
		if !q.DateTo.IsZero() && r.Date.After(q.DateTo.Time) {
			continue
		}
		res.Records = append(res.Records, r)
		res.TotalCents += r.Amount.Cents
	}

	res.Count = len(res.Records)
	if res.Count > 0 {
		res.AverageCents = roundedDiv(res.TotalCents, int64(res.Count))
	}
	return res
}

// RecentActivity returns the first limit records in the ledger's current
// order. A non-positive limit falls back to DefaultRecentLimit.
func RecentActivity(records []core.Expense, limit int) []core.Expense {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > len(records) {
		limit = len(records)
	}
	out := make([]core.Expense, limit)
	copy(out, records[:limit])
	return out
}

// ExportRow is one flat line of the CSV export.
type ExportRow struct {
	Date        string
	Description string
	Category    string
	Amount      string
	Notes       string
}

// ExportRows flattens records for CSV-style serialization, preserving the
// input order. Amounts keep their exact cents value in decimal form.
func ExportRows(records []core.Expense) []ExportRow {
	rows := make([]ExportRow, len(records))
	for i, r := range records {
		rows[i] = ExportRow{
			Date:        r.Date.String(),
			Description: r.Description,
			Category:    string(r.Category),
			Amount:      core.FormatCents(r.Amount.Cents),
			Notes:       r.Notes,
		}
	}
	return rows
}

// roundedDiv divides cents half-up, keeping averages stable for display.
func roundedDiv(cents, by int64) int64 {
	if by == 0 {
		return 0
	}
	return (cents + by/2) / by
}
