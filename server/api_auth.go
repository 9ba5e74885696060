package main

import (
	"errors"
	"net/http"
	"strings"
)

// Auth handlers
func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                 string `json:"name" validate:"required,max=255"`
		Email                string `json:"email" validate:"required,email,max=255"`
		Password             string `json:"password" validate:"required,min=8"`
		PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	u, err := a.store.CreateUser(r.Context(), strings.TrimSpace(req.Name), req.Email, req.Password)
	if err != nil {
		a.fail(w, "register", err)
		return
	}
	if !a.startSession(w, r, u.ID) {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User registered successfully", "user": u})
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	u, err := a.store.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		a.fail(w, "login", err)
		return
	}
	if !a.startSession(w, r, u.ID) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Login successful", "user": u})
}

func (a *api) startSession(w http.ResponseWriter, r *http.Request, userID int64) bool {
	token, exp, err := a.sessions.Create(r.Context(), userID, a.cfg.Session.TTL)
	if err != nil {
		a.fail(w, "create session", err)
		return false
	}
	a.setSessionCookie(w, token, exp)
	return true
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	if tok := a.sessionToken(r); tok != "" {
		if err := a.sessions.Revoke(r.Context(), tok); err != nil {
			a.log.Warn("revoke session", "err", err)
		}
	}
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r))
}

// GET /api/users/search?q=&exclude=1,2
func (a *api) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	var exclude []int64
	for _, s := range splitList(r.URL.Query().Get("exclude")) {
		if id, err := parseID(s); err == nil {
			exclude = append(exclude, id)
		}
	}
	users, err := a.store.SearchUsers(r.Context(), userFrom(r).ID, r.URL.Query().Get("q"), exclude, 20)
	if err != nil {
		a.fail(w, "search users", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}
