package http

import (
	"net/http"
	"time"

	"studyspend/internal/core"
	"studyspend/internal/identity"
	"studyspend/internal/session"
)

type profileResponse struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

type periodResponse struct {
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	DurationDays  int    `json:"durationDays"`
	BudgetCents   int64  `json:"budgetCents"`
	Budget        string `json:"budget"`
	DaysElapsed   int    `json:"daysElapsed"`
	DaysRemaining int    `json:"daysRemaining"`
}

type authResponse struct {
	Token   string          `json:"token"`
	Profile profileResponse `json:"profile"`
	Period  periodResponse  `json:"period"`
}

func profileJSON(p identity.Profile) profileResponse {
	return profileResponse{
		UID:         p.UID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
	}
}

func periodJSON(p core.Period, asOf core.Date) periodResponse {
	return periodResponse{
		StartDate:     p.StartDate.String(),
		EndDate:       p.EndDate().String(),
		DurationDays:  p.DurationDays,
		BudgetCents:   p.BudgetCents,
		Budget:        core.FormatCents(p.BudgetCents),
		DaysElapsed:   p.DaysElapsed(asOf),
		DaysRemaining: p.DaysRemaining(asOf),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
		DisplayName     string `json:"displayName"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	if _, err := s.identity.Register(ctx, req.Email, req.Password, req.ConfirmPassword, req.DisplayName); err != nil {
		writeError(w, err)
		return
	}

	// Registration signs the user straight in.
	profile, token, err := s.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.sessions.SignIn(ctx, profile)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Token:   token,
		Profile: profileJSON(profile),
		Period:  periodJSON(sess.Period(), core.DateOf(time.Now())),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	profile, token, err := s.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.sessions.SignIn(ctx, profile)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token:   token,
		Profile: profileJSON(profile),
		Period:  periodJSON(sess.Period(), core.DateOf(time.Now())),
	})
}

func (s *Server) handleOAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider    string `json:"provider"`
		Subject     string `json:"subject"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		PhotoURL    string `json:"photoURL"`
		Cancelled   bool   `json:"cancelled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	profile, token, err := s.identity.CompleteOAuth(ctx, identity.OAuthCompletion{
		Provider:    req.Provider,
		Subject:     req.Subject,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
		Cancelled:   req.Cancelled,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.sessions.SignIn(ctx, profile)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token:   token,
		Profile: profileJSON(profile),
		Period:  periodJSON(sess.Period(), core.DateOf(time.Now())),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	s.sessions.SignOut(sess.UID())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, struct {
		Status  string          `json:"status"`
		Profile profileResponse `json:"profile"`
		Period  periodResponse  `json:"period"`
	}{
		Status:  sess.Status().String(),
		Profile: profileJSON(sess.Profile()),
		Period:  periodJSON(sess.Period(), core.DateOf(time.Now())),
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		DisplayName string `json:"displayName"`
		PhotoURL    string `json:"photoURL"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := s.identity.UpdateProfile(r.Context(), sess.UID(), req.DisplayName, req.PhotoURL)
	if err != nil {
		writeError(w, err)
		return
	}
	sess.SetProfile(profile)

	writeJSON(w, http.StatusOK, profileJSON(profile))
}
