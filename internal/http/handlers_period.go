package http

import (
	"net/http"
	"time"

	"studyspend/internal/bus"
	"studyspend/internal/core"
	"studyspend/internal/session"
)

func (s *Server) handleGetPeriod(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, periodJSON(sess.Period(), core.DateOf(time.Now())))
}

func (s *Server) handleUpdatePeriod(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		DurationDays int    `json:"durationDays"`
		BudgetAmount string `json:"budgetAmount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	budgetCents, err := core.ParseDecimalToCents(req.BudgetAmount)
	if err != nil {
		writeError(w, core.NewValidationError("budgetAmount"))
		return
	}

	updated, err := s.sessions.UpdatePeriod(r.Context(), sess.UID(), req.DurationDays, budgetCents)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, periodJSON(updated, core.DateOf(time.Now())))
}

// handleResetPeriod starts a fresh period today: recorded expenses for
// the current bucket are removed, then the window restarts.
func (s *Server) handleResetPeriod(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	ctx := r.Context()
	today := core.DateOf(time.Now())
	oldKey := sess.Period().StartDate.PeriodKey()

	seq, err := s.expenses.DeleteAllExpenses(ctx, sess.UID(), oldKey)
	if err != nil {
		writeError(w, err)
		return
	}

	restarted, err := s.sessions.RestartPeriod(ctx, sess.UID(), today)
	if err != nil {
		writeError(w, err)
		return
	}

	s.notifyChange(ctx, sess.UID(), oldKey, seq, bus.KindPeriodCleared)

	writeJSON(w, http.StatusOK, periodJSON(restarted, today))
}
