package main

import (
	"errors"
	"net/http"
	"strings"
)

func (a *api) decodeEmailCard(w http.ResponseWriter, r *http.Request) (EmailCardRequest, bool) {
	var req EmailCardRequest
	if !a.decode(w, r, &req) {
		emailCardsTotal.WithLabelValues("invalid").Inc()
		return req, false
	}
	req.Title = strings.TrimSpace(req.Title)
	return req, true
}

// POST /api/cards/from-email/validate
func (a *api) handleValidateEmailCard(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeEmailCard(w, r)
	if !ok {
		return
	}
	t, err := a.store.ValidateEmailCard(r.Context(), req)
	if err != nil {
		a.fail(w, "validate email card", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Email card request is valid", "valid": true, "target": t})
}

// POST /api/cards/from-email
func (a *api) handleCreateEmailCard(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeEmailCard(w, r)
	if !ok {
		return
	}
	id, err := a.store.CreateCardFromEmail(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		emailCardsTotal.WithLabelValues("rejected").Inc()
		a.fail(w, "email card", err)
		return
	default:
		emailCardsTotal.WithLabelValues("failed").Inc()
		a.log.Error("email card", "from", req.FromEmail, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"message": "Failed to create card from email",
			"error":   err.Error(),
		})
		return
	}
	emailCardsTotal.WithLabelValues("created").Inc()
	const created = "Card created from email successfully"

	if acts, err := a.store.ListActivities(r.Context(), ActivityFilter{CardID: &id, Limit: 1}); err == nil && len(acts) == 1 {
		a.search.Index(acts[0])
	}
	// The card is committed; a failed reload must not turn into a 500.
	c, err := a.store.GetCard(r.Context(), id)
	if err != nil {
		a.log.Warn("email card reload", "card", id, "err", err)
		writeJSON(w, http.StatusCreated, map[string]any{"message": created, "card": map[string]any{"id": id}})
		return
	}
	if c.List != nil {
		a.publish(r, c.List.BoardID, "created", "card", c.ID, c)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": created, "card": a.cardView(c)})
}
