package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"studyspend/internal/aggregate"
	"studyspend/internal/bus"
	"studyspend/internal/core"
	"studyspend/internal/export"
	"studyspend/internal/session"
)

type expenseResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amountCents"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

func expenseJSON(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Description: e.Description,
		Amount:      core.FormatCents(e.Amount.Cents),
		AmountCents: e.Amount.Cents,
		Category:    string(e.Category),
		Date:        e.Date.String(),
		Notes:       e.Notes,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func expensesJSON(records []core.Expense) []expenseResponse {
	out := make([]expenseResponse, len(records))
	for i, e := range records {
		out[i] = expenseJSON(e)
	}
	return out
}

func (s *Server) handleListExpenses(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	records := sess.Ledger().All()
	writeJSON(w, http.StatusOK, struct {
		Expenses []expenseResponse `json:"expenses"`
		Count    int               `json:"count"`
	}{expensesJSON(records), len(records)})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		Description string `json:"description"`
		Amount      string `json:"amount"`
		Category    string `json:"category"`
		Date        string `json:"date"`
		Notes       string `json:"notes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	draft := core.Draft{
		Description: req.Description,
		Notes:       req.Notes,
	}
	if cents, err := core.ParseDecimalToCents(req.Amount); err == nil {
		draft.Amount = core.Money{Cents: cents}
	}
	if cat, err := core.ParseCategory(req.Category); err == nil {
		draft.Category = cat
	}
	if d, err := core.ParseDate(req.Date); err == nil {
		draft.Date = d
	}

	// Validate against the ledger first; nothing is persisted on failure.
	if _, err := sess.Ledger().Add(draft); err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	periodKey := sess.Period().StartDate.PeriodKey()
	rec, seq, err := s.expenses.CreateExpense(ctx, sess.UID(), periodKey, draft)
	if err != nil {
		writeError(w, fmt.Errorf("create expense: %w", err))
		return
	}
	sess.Ledger().Append(rec)

	s.notifyChange(ctx, sess.UID(), periodKey, seq, bus.KindExpenseCreated)

	writeJSON(w, http.StatusCreated, expenseJSON(rec))
}

// notifyChange fans the write out: local subscribers via the hub, other
// processes via the broker when one is configured.
func (s *Server) notifyChange(ctx context.Context, ownerID, periodKey string, seq uint64, kind string) {
	if err := s.hub.Notify(ctx, ownerID, periodKey); err != nil {
		slog.WarnContext(ctx, "Local change notify failed",
			"owner_id", ownerID,
			"period_key", periodKey,
			"error", err)
	}
	if s.publisher != nil {
		ev := bus.NewChangeEvent(ownerID, periodKey, seq, kind)
		if err := s.publisher.PublishChange(ctx, ev); err != nil {
			slog.WarnContext(ctx, "Change event publish failed",
				"owner_id", ownerID,
				"period_key", periodKey,
				"seq", seq,
				"error", err)
		}
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	records := sess.Ledger().All()
	today := core.DateOf(time.Now())
	d := aggregate.DashboardSummary(records, sess.Period(), today)

	breakdown := aggregate.CategoryBreakdown(records)
	byCategory := make(map[string]string, len(breakdown))
	for cat, cents := range breakdown {
		byCategory[string(cat)] = core.FormatCents(cents)
	}

	writeJSON(w, http.StatusOK, struct {
		TotalSpent      string            `json:"totalSpent"`
		Budget          string            `json:"budget"`
		Remaining       string            `json:"remaining"`
		ProgressPercent float64           `json:"progressPercent"`
		TodaySpent      string            `json:"todaySpent"`
		TodayCount      int               `json:"todayCount"`
		DailyAverage    string            `json:"dailyAverage"`
		DaysElapsed     int               `json:"daysElapsed"`
		DaysLeft        int               `json:"daysLeft"`
		ByCategory      map[string]string `json:"byCategory"`
		Recent          []expenseResponse `json:"recent"`
	}{
		TotalSpent:      core.FormatCents(d.TotalSpentCents),
		Budget:          core.FormatCents(d.BudgetCents),
		Remaining:       core.FormatCents(d.RemainingCents),
		ProgressPercent: d.ProgressPercent,
		TodaySpent:      core.FormatCents(d.TodaySpentCents),
		TodayCount:      d.TodayCount,
		DailyAverage:    core.FormatCents(d.DailyAverageCents),
		DaysElapsed:     d.DaysElapsed,
		DaysLeft:        d.DaysLeft,
		ByCategory:      byCategory,
		Recent:          expensesJSON(aggregate.RecentActivity(records, aggregate.DefaultRecentLimit)),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	q := aggregate.HistoryQuery{Search: r.URL.Query().Get("search")}

	if v := r.URL.Query().Get("category"); v != "" {
		cat, err := core.ParseCategory(v)
		if err != nil {
			writeError(w, core.NewValidationError("category"))
			return
		}
		q.Category = cat
	}
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, core.NewValidationError("from"))
			return
		}
		q.DateFrom = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, core.NewValidationError("to"))
			return
		}
		q.DateTo = d
	}

	res := aggregate.FilterHistory(sess.Ledger().All(), q)
	writeJSON(w, http.StatusOK, struct {
		Expenses []expenseResponse `json:"expenses"`
		Count    int               `json:"count"`
		Total    string            `json:"total"`
		Average  string            `json:"average"`
	}{
		Expenses: expensesJSON(res.Records),
		Count:    res.Count,
		Total:    core.FormatCents(res.TotalCents),
		Average:  core.FormatCents(res.AverageCents),
	})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	rows := aggregate.ExportRows(sess.Ledger().All())
	payload := export.Payload(rows)

	filename := fmt.Sprintf("expenses-%s.csv", sess.Period().StartDate.PeriodKey())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(payload))
}
