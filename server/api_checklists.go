package main

import (
	"net/http"
	"strings"
)

func (a *api) handleCreateChecklist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardID int64  `json:"card_id" validate:"required"`
		Title  string `json:"title" validate:"required,max=255"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityCard, req.CardID, true)
	if !ok {
		return
	}
	k, err := a.store.CreateChecklist(r.Context(), req.CardID, strings.TrimSpace(req.Title))
	if err != nil {
		a.fail(w, "create checklist", err)
		return
	}
	a.record(r, boardID, &k.CardID, "checklist_created", map[string]any{"checklist_id": k.ID, "checklist_title": k.Title})
	a.publish(r, boardID, "created", "checklist", k.ID, k)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Checklist created successfully", "checklist": k})
}

func (a *api) handleGetChecklist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := a.gateEntity(w, r, entityChecklist, id, false); !ok {
		return
	}
	k, err := a.store.GetChecklist(r.Context(), id)
	if err != nil {
		a.fail(w, "get checklist", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checklist": k})
}

func (a *api) handleUpdateChecklist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityChecklist, id, true)
	if !ok {
		return
	}
	var p ChecklistPatch
	if !a.decode(w, r, &p) {
		return
	}
	k, err := a.store.UpdateChecklist(r.Context(), id, p)
	if err != nil {
		a.fail(w, "update checklist", err)
		return
	}
	a.publish(r, boardID, "updated", "checklist", k.ID, k)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Checklist updated successfully", "checklist": k})
}

func (a *api) handleDeleteChecklist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityChecklist, id, true)
	if !ok {
		return
	}
	k, err := a.store.GetChecklist(r.Context(), id)
	if err != nil {
		a.fail(w, "load checklist", err)
		return
	}
	if err := a.store.DeleteChecklist(r.Context(), id); err != nil {
		a.fail(w, "delete checklist", err)
		return
	}
	a.record(r, boardID, &k.CardID, "checklist_deleted", map[string]any{"checklist_id": id, "checklist_title": k.Title})
	a.publish(r, boardID, "deleted", "checklist", id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Checklist deleted successfully"})
}

// POST /api/checklists/reorder {checklists:[{id, position}]}
func (a *api) handleReorderChecklists(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Checklists []PositionUpdate `json:"checklists" validate:"required,min=1,dive"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	a.reorder(w, r, checklistOrder, req.Checklists, "Checklists reordered successfully")
}

func (a *api) handleDuplicateChecklist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityChecklist, id, true)
	if !ok {
		return
	}
	k, err := a.store.DuplicateChecklist(r.Context(), id)
	if err != nil {
		a.fail(w, "duplicate checklist", err)
		return
	}
	a.record(r, boardID, &k.CardID, "checklist_duplicated", map[string]any{"source_id": id, "checklist_id": k.ID})
	a.publish(r, boardID, "created", "checklist", k.ID, k)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Checklist duplicated successfully", "checklist": k})
}

// assigneeOnBoard rejects an assignee who is not a member of the board.
func (a *api) assigneeOnBoard(w http.ResponseWriter, r *http.Request, boardID int64, userID *int64) bool {
	if userID == nil {
		return true
	}
	ok, err := a.store.IsBoardMember(r.Context(), boardID, *userID)
	if err != nil {
		a.fail(w, "assignee check", err)
		return false
	}
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "user is not a member of this board")
		return false
	}
	return true
}

func (a *api) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var in ItemInput
	if !a.decode(w, r, &in) {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityChecklist, in.ChecklistID, true)
	if !ok || !a.assigneeOnBoard(w, r, boardID, in.AssignedTo) {
		return
	}
	in.Text = strings.TrimSpace(in.Text)
	it, err := a.store.CreateItem(r.Context(), in)
	if err != nil {
		a.fail(w, "create item", err)
		return
	}
	a.publish(r, boardID, "created", "checklist_item", it.ID, it)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Item created successfully", "item": it})
}

func (a *api) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityItem, id, true)
	if !ok {
		return
	}
	var p ItemPatch
	if !a.decode(w, r, &p) {
		return
	}
	if !a.assigneeOnBoard(w, r, boardID, p.AssignedTo) {
		return
	}
	it, err := a.store.UpdateItem(r.Context(), id, p)
	if err != nil {
		a.fail(w, "update item", err)
		return
	}
	a.publish(r, boardID, "updated", "checklist_item", it.ID, it)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Item updated successfully", "item": it})
}

func (a *api) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityItem, id, true)
	if !ok {
		return
	}
	if err := a.store.DeleteItem(r.Context(), id); err != nil {
		a.fail(w, "delete item", err)
		return
	}
	a.publish(r, boardID, "deleted", "checklist_item", id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Item deleted successfully"})
}

// POST /api/checklist-items/reorder {items:[{id, position}]}
func (a *api) handleReorderItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []PositionUpdate `json:"items" validate:"required,min=1,dive"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	a.reorder(w, r, itemOrder, req.Items, "Items reordered successfully")
}

func (a *api) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityItem, id, true)
	if !ok {
		return
	}
	it, err := a.store.ToggleItem(r.Context(), id)
	if err != nil {
		a.fail(w, "toggle item", err)
		return
	}
	if it.Completed {
		if k, err := a.store.GetChecklist(r.Context(), it.ChecklistID); err == nil {
			a.record(r, boardID, &k.CardID, "checklist_item_completed", map[string]any{"item_id": it.ID, "item_text": it.Text})
		}
	}
	a.publish(r, boardID, "updated", "checklist_item", it.ID, it)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Item toggled successfully", "item": it})
}

func (a *api) handleAssignItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityItem, id, true)
	if !ok {
		return
	}
	var req struct {
		UserID int64 `json:"user_id" validate:"required"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if !a.assigneeOnBoard(w, r, boardID, &req.UserID) {
		return
	}
	it, err := a.store.AssignItem(r.Context(), id, &req.UserID)
	if err != nil {
		a.fail(w, "assign item", err)
		return
	}
	a.publish(r, boardID, "updated", "checklist_item", it.ID, it)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Item assigned successfully", "item": it})
}

func (a *api) handleUnassignItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityItem, id, true)
	if !ok {
		return
	}
	it, err := a.store.AssignItem(r.Context(), id, nil)
	if err != nil {
		a.fail(w, "unassign item", err)
		return
	}
	a.publish(r, boardID, "updated", "checklist_item", it.ID, it)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Item unassigned successfully", "item": it})
}

// POST /api/checklists/{id}/items/bulk {items:[...]}
func (a *api) handleBulkItems(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityChecklist, id, true)
	if !ok {
		return
	}
	var req struct {
		Items []ItemOp `json:"items" validate:"required,min=1,dive"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	results := a.store.BulkItems(r.Context(), boardID, id, req.Items)
	a.publish(r, boardID, "updated", "checklist", id, results)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Bulk item operation completed", "results": results})
}
