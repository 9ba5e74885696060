package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

func queryTime(r *http.Request, name string) *time.Time {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

// activityScope applies the read gate for an optional board or card filter.
func (a *api) activityScope(w http.ResponseWriter, r *http.Request, f *ActivityFilter) bool {
	f.ScopeUserID = userFrom(r).ID
	if f.CardID != nil {
		if _, ok := a.gateEntity(w, r, entityCard, *f.CardID, false); !ok {
			return false
		}
	}
	if f.BoardID != nil && !a.gateBoard(w, r, *f.BoardID, false) {
		return false
	}
	return true
}

// GET /api/activities?board_id&card_id&user_id&from&to&limit&page
func (a *api) handleListActivities(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1, 100)
	page := queryInt(r, "page", 1, 1, 0)
	f := ActivityFilter{
		BoardID: queryID(r, "board_id"),
		CardID:  queryID(r, "card_id"),
		UserID:  queryID(r, "user_id"),
		From:    queryTime(r, "from"),
		To:      queryTime(r, "to"),
		Limit:   limit,
		Offset:  (page - 1) * limit,
	}
	if !a.activityScope(w, r, &f) {
		return
	}
	items, err := a.store.ListActivities(r.Context(), f)
	if err != nil {
		a.fail(w, "list activities", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": items})
}

// POST /api/activities {board_id?, card_id?, action_type, action_data?}
func (a *api) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BoardID    *int64          `json:"board_id"`
		CardID     *int64          `json:"card_id"`
		ActionType string          `json:"action_type" validate:"required,max=100"`
		ActionData json.RawMessage `json:"action_data"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if req.CardID != nil {
		boardID, ok := a.gateEntity(w, r, entityCard, *req.CardID, true)
		if !ok {
			return
		}
		if req.BoardID != nil && *req.BoardID != boardID {
			writeError(w, http.StatusUnprocessableEntity, "card does not belong to this board")
			return
		}
		req.BoardID = &boardID
	} else if req.BoardID != nil && !a.gateBoard(w, r, *req.BoardID, true) {
		return
	}
	act, err := a.store.CreateActivity(r.Context(), Activity{
		UserID:     userFrom(r).ID,
		BoardID:    req.BoardID,
		CardID:     req.CardID,
		ActionType: strings.TrimSpace(req.ActionType),
		ActionData: req.ActionData,
	})
	if err != nil {
		a.fail(w, "create activity", err)
		return
	}
	a.search.Index(act)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Activity logged successfully", "activity": act})
}

// GET /api/activities/my-activity?limit=30
// Everything on the caller's boards, not only their own actions.
func (a *api) handleMyActivity(w http.ResponseWriter, r *http.Request) {
	uid := userFrom(r).ID
	items, err := a.store.ListActivities(r.Context(), ActivityFilter{
		ScopeUserID: uid,
		Limit:       queryInt(r, "limit", 30, 1, 100),
	})
	if err != nil {
		a.fail(w, "my activity", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": items})
}

// GET /api/boards/{id}/activities?page&per_page
func (a *api) handleBoardActivities(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !a.gateBoard(w, r, id, false) {
		return
	}
	perPage := queryInt(r, "per_page", 20, 1, 100)
	page := queryInt(r, "page", 1, 1, 0)
	f := ActivityFilter{BoardID: &id, Limit: perPage, Offset: (page - 1) * perPage}
	total, err := a.store.CountActivities(r.Context(), f)
	if err != nil {
		a.fail(w, "count activities", err)
		return
	}
	items, err := a.store.ListActivities(r.Context(), f)
	if err != nil {
		a.fail(w, "board activities", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":         items,
		"current_page": page,
		"per_page":     perPage,
		"total":        total,
		"last_page":    lastPage(total, perPage),
	})
}

func lastPage(total, perPage int) int {
	if total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

// GET /api/cards/{id}/activities
func (a *api) handleCardActivities(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := a.gateEntity(w, r, entityCard, id, false); !ok {
		return
	}
	items, err := a.store.ListActivities(r.Context(), ActivityFilter{CardID: &id, Limit: 100})
	if err != nil {
		a.fail(w, "card activities", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": items})
}

// GET /api/activities/stats?board_id&days=30
func (a *api) handleActivityStats(w http.ResponseWriter, r *http.Request) {
	f := ActivityFilter{BoardID: queryID(r, "board_id")}
	if !a.activityScope(w, r, &f) {
		return
	}
	days := queryInt(r, "days", 30, 1, 365)
	since := time.Now().AddDate(0, 0, -days)
	st, err := a.store.ActivityStats(r.Context(), f, since)
	if err != nil {
		a.fail(w, "activity stats", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"period_days": days, "stats": st})
}

// DELETE /api/activities/clear-old {days_old}
func (a *api) handleClearOldActivities(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DaysOld int `json:"days_old" validate:"required,min=1,max=3650"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	boards, err := a.store.ManagedBoardIDs(r.Context(), userFrom(r).ID)
	if err != nil {
		a.fail(w, "managed boards", err)
		return
	}
	if len(boards) == 0 {
		writeError(w, http.StatusForbidden, "You do not manage any boards")
		return
	}
	n, err := a.store.ClearOldActivities(r.Context(), boards, time.Now().AddDate(0, 0, -req.DaysOld))
	if err != nil {
		a.fail(w, "clear activities", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Old activities cleared successfully", "deleted_count": n})
}

// GET /api/activities/search?query&board_id
func (a *api) handleSearchActivities(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if len([]rune(query)) < 2 {
		writeError(w, http.StatusUnprocessableEntity, "The query must be at least 2 characters.")
		return
	}
	boardID := queryID(r, "board_id")
	if boardID != nil && !a.gateBoard(w, r, *boardID, false) {
		return
	}
	const limit = 50
	uid := userFrom(r).ID

	if a.search.Healthy() {
		items, err := a.searchIndexed(r, uid, query, boardID, limit)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]any{"activities": items, "engine": "meilisearch"})
			return
		}
		a.log.Warn("activity search fallback", "err", err)
	}
	items, err := a.store.SearchActivitiesSQL(r.Context(), uid, query, boardID, limit)
	if err != nil {
		a.fail(w, "search activities", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": items, "engine": "sql"})
}

func (a *api) searchIndexed(r *http.Request, userID int64, query string, boardID *int64, limit int) ([]Activity, error) {
	var boards []int64
	if boardID != nil {
		boards = []int64{*boardID}
	} else {
		var err error
		if boards, err = a.store.AccessibleBoardIDs(r.Context(), userID); err != nil {
			return nil, err
		}
	}
	ids, err := a.search.Search(query, boards, limit)
	if err != nil {
		return nil, err
	}
	return a.store.ActivitiesByIDs(r.Context(), ids)
}
