package main

import (
	"net/http"
	"strings"
)

// PATCH /api/me { name, avatar_url }
func (a *api) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      *string `json:"name" validate:"omitempty,max=255"`
		AvatarURL *string `json:"avatar_url" validate:"omitempty,url,max=2048"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if req.Name != nil {
		v := strings.TrimSpace(*req.Name)
		if v == "" {
			writeError(w, http.StatusUnprocessableEntity, "name required")
			return
		}
		req.Name = &v
	}
	if req.Name == nil && req.AvatarURL == nil {
		writeError(w, http.StatusUnprocessableEntity, "nothing to update")
		return
	}
	u, err := a.store.UpdateProfile(r.Context(), userFrom(r).ID, req.Name, req.AvatarURL)
	if err != nil {
		a.fail(w, "update me", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Profile updated", "user": u})
}
