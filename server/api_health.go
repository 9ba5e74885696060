package main

import (
	"context"
	"net/http"
	"time"
)

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	db := "ok"
	if err := a.store.Ping(ctx); err != nil {
		a.log.Warn("health ping", "err", err)
		status, db = http.StatusServiceUnavailable, "down"
	}
	writeJSON(w, status, map[string]any{
		"ok":     status == http.StatusOK,
		"db":     db,
		"search": a.search.Healthy(),
		"ts":     time.Now().UTC().Format(time.RFC3339),
	})
}
