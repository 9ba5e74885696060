package main

import (
	"net/http"
	"strings"
)

func (a *api) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BoardID int64  `json:"board_id" validate:"required"`
		Title   string `json:"title" validate:"required,max=255"`
		Color   string `json:"color" validate:"omitempty,max=7"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if !a.gateBoard(w, r, req.BoardID, true) {
		return
	}
	l, err := a.store.CreateList(r.Context(), userFrom(r).ID, req.BoardID, strings.TrimSpace(req.Title), req.Color)
	if err != nil {
		a.fail(w, "create list", err)
		return
	}
	a.record(r, l.BoardID, nil, "list_created", map[string]any{"list_id": l.ID, "list_title": l.Title})
	a.publish(r, l.BoardID, "created", "list", l.ID, l)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "List created successfully", "list": l})
}

func (a *api) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityList, id, true)
	if !ok {
		return
	}
	var p ListPatch
	if !a.decode(w, r, &p) {
		return
	}
	l, err := a.store.UpdateList(r.Context(), id, p)
	if err != nil {
		a.fail(w, "update list", err)
		return
	}
	a.record(r, boardID, nil, "list_updated", map[string]any{"list_id": l.ID, "list_title": l.Title})
	a.publish(r, boardID, "updated", "list", l.ID, l)
	writeJSON(w, http.StatusOK, map[string]any{"message": "List updated successfully", "list": l})
}

func (a *api) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityList, id, true)
	if !ok {
		return
	}
	l, err := a.store.GetList(r.Context(), id)
	if err != nil {
		a.fail(w, "load list", err)
		return
	}
	if err := a.store.DeleteList(r.Context(), id); err != nil {
		a.fail(w, "delete list", err)
		return
	}
	a.record(r, boardID, nil, "list_deleted", map[string]any{"list_id": id, "list_title": l.Title})
	a.publish(r, boardID, "deleted", "list", id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "List deleted successfully"})
}

// POST /api/lists/reorder {lists:[{id, position}]}
func (a *api) handleReorderLists(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lists []PositionUpdate `json:"lists" validate:"required,min=1,dive"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	a.reorder(w, r, listOrder, req.Lists, "Lists reordered successfully")
}

// reorder authorizes every id in the batch, then writes positions as sent.
func (a *api) reorder(w http.ResponseWriter, r *http.Request, set orderedSet, items []PositionUpdate, msg string) {
	boards, ok := a.gateMany(w, r, set.kind, positionIDs(items))
	if !ok {
		return
	}
	if err := a.store.Reorder(r.Context(), set, items); err != nil {
		a.fail(w, "reorder", err)
		return
	}
	for _, boardID := range boards {
		a.publish(r, boardID, "reordered", boardPaths[set.kind].name, 0, items)
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (a *api) handleArchiveList(w http.ResponseWriter, r *http.Request) {
	a.setListArchived(w, r, true)
}

func (a *api) handleRestoreList(w http.ResponseWriter, r *http.Request) {
	a.setListArchived(w, r, false)
}

func (a *api) setListArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityList, id, true)
	if !ok {
		return
	}
	l, err := a.store.SetListArchived(r.Context(), id, archived)
	if err != nil {
		a.fail(w, "archive list", err)
		return
	}
	action, msg := "list_archived", "List archived successfully"
	if !archived {
		action, msg = "list_restored", "List restored successfully"
	}
	a.record(r, boardID, nil, action, map[string]any{"list_id": l.ID, "list_title": l.Title})
	a.publish(r, boardID, "updated", "list", l.ID, l)
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "list": l})
}
