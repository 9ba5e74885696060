package main

import (
	"net/http"
	"strings"
)

func (a *api) handleBoardLabels(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !a.gateBoard(w, r, id, false) {
		return
	}
	labels, err := a.store.BoardLabels(r.Context(), id)
	if err != nil {
		a.fail(w, "board labels", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": labels})
}

func (a *api) handleLabelUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !a.gateBoard(w, r, id, false) {
		return
	}
	labels, err := a.store.LabelUsage(r.Context(), id)
	if err != nil {
		a.fail(w, "label usage", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": labels})
}

func (a *api) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BoardID int64  `json:"board_id" validate:"required"`
		Name    string `json:"name" validate:"max=255"`
		Color   string `json:"color" validate:"required,hexcolor,max=7"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if !a.gateBoard(w, r, req.BoardID, true) {
		return
	}
	l, err := a.store.CreateLabel(r.Context(), req.BoardID, strings.TrimSpace(req.Name), req.Color)
	if err != nil {
		a.fail(w, "create label", err)
		return
	}
	a.record(r, l.BoardID, nil, "label_created", map[string]any{"label_id": l.ID, "label_name": l.Name})
	a.publish(r, l.BoardID, "created", "label", l.ID, l)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Label created successfully", "label": l})
}

func (a *api) handleUpdateLabel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityLabel, id, true)
	if !ok {
		return
	}
	var p LabelPatch
	if !a.decode(w, r, &p) {
		return
	}
	l, err := a.store.UpdateLabel(r.Context(), id, p)
	if err != nil {
		a.fail(w, "update label", err)
		return
	}
	a.publish(r, boardID, "updated", "label", l.ID, l)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Label updated successfully", "label": l})
}

func (a *api) handleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityLabel, id, true)
	if !ok {
		return
	}
	if err := a.store.DeleteLabel(r.Context(), id); err != nil {
		a.fail(w, "delete label", err)
		return
	}
	a.record(r, boardID, nil, "label_deleted", map[string]any{"label_id": id})
	a.publish(r, boardID, "deleted", "label", id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Label deleted successfully"})
}

// POST /api/boards/{id}/labels/bulk {labels:[...]}
func (a *api) handleBulkLabels(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !a.gateBoard(w, r, id, true) {
		return
	}
	var req struct {
		Labels []LabelOp `json:"labels" validate:"required,min=1,dive"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	results := a.store.BulkLabels(r.Context(), id, req.Labels)
	a.publish(r, id, "updated", "label", 0, results)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Bulk label operation completed", "results": results})
}
