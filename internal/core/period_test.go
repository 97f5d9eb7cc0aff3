package core

import "testing"

func TestDefaultPeriod(t *testing.T) {
	today := NewDate(2024, 3, 1)
	p := DefaultPeriod(today)
	if !p.StartDate.SameDay(today) {
		t.Fatalf("expected start %v, got %v", today, p.StartDate)
	}
	if p.DurationDays != 30 {
		t.Fatalf("expected duration 30, got %d", p.DurationDays)
	}
	if p.BudgetCents != 10000*100 {
		t.Fatalf("expected budget 10000.00, got %d cents", p.BudgetCents)
	}
}

func TestPeriodUpdate(t *testing.T) {
	p := DefaultPeriod(NewDate(2024, 3, 1))

	updated, err := p.Update(14, 500*100)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if updated.DurationDays != 14 || updated.BudgetCents != 500*100 {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if !updated.StartDate.SameDay(p.StartDate) {
		t.Fatalf("update must not move the start date")
	}

	cases := []struct {
		duration int
		budget   int64
	}{
		{0, 500 * 100},
		{45, 500 * 100}, // above the 31-day cap
		{14, 99 * 100},  // below the minimum budget
		{-1, 0},
	}
	for i, tc := range cases {
		_, err := p.Update(tc.duration, tc.budget)
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !IsValidation(err) {
			t.Fatalf("case %d expected ValidationError, got %T", i, err)
		}
	}
}

func TestPeriodRestart(t *testing.T) {
	p := DefaultPeriod(NewDate(2024, 3, 1))
	p.BudgetCents = 777 * 100
	p.DurationDays = 7

	fresh := p.Restart(NewDate(2024, 4, 1))
	if !fresh.StartDate.SameDay(NewDate(2024, 4, 1)) {
		t.Fatalf("expected new start date, got %v", fresh.StartDate)
	}
	if fresh.DurationDays != 7 || fresh.BudgetCents != 777*100 {
		t.Fatalf("restart must keep duration and budget: %+v", fresh)
	}
}

func TestPeriodDays(t *testing.T) {
	start := NewDate(2024, 3, 1)
	p := DefaultPeriod(start)

	if got := p.DaysRemaining(start); got != p.DurationDays {
		t.Fatalf("daysRemaining(start) expected %d, got %d", p.DurationDays, got)
	}
	if got := p.DaysRemaining(start.AddDays(p.DurationDays)); got != 0 {
		t.Fatalf("daysRemaining(end) expected 0, got %d", got)
	}
	if got := p.DaysRemaining(start.AddDays(p.DurationDays + 10)); got != 0 {
		t.Fatalf("daysRemaining past end expected 0, got %d", got)
	}

	if got := p.DaysElapsed(start); got != 1 {
		t.Fatalf("daysElapsed(start) expected 1, got %d", got)
	}
	if got := p.DaysElapsed(start.AddDays(10)); got != 10 {
		t.Fatalf("daysElapsed(+10d) expected 10, got %d", got)
	}
	if got := p.DaysElapsed(start.AddDays(-5)); got != 1 {
		t.Fatalf("daysElapsed before start expected 1, got %d", got)
	}
}

func TestPeriodContains(t *testing.T) {
	p := Period{StartDate: NewDate(2024, 3, 1), DurationDays: 30, BudgetCents: MinBudgetCents}
	if !p.Contains(NewDate(2024, 3, 1)) {
		t.Fatalf("start date should be inside")
	}
	if !p.Contains(NewDate(2024, 3, 30)) {
		t.Fatalf("last day should be inside")
	}
	if p.Contains(NewDate(2024, 3, 31)) {
		t.Fatalf("end date is exclusive")
	}
	if p.Contains(NewDate(2024, 2, 29)) {
		t.Fatalf("before start should be outside")
	}
}
