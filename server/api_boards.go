package main

import (
	"net/http"
	"strings"
)

// boardAdmin requires the caller to hold the admin role on the board.
func (a *api) boardAdmin(w http.ResponseWriter, r *http.Request, boardID int64) bool {
	if _, err := a.store.getBoardRow(r.Context(), a.store.db, boardID); err != nil {
		a.fail(w, "load board", err)
		return false
	}
	role, err := a.store.BoardRoleOf(r.Context(), boardID, userFrom(r).ID)
	if err != nil {
		a.fail(w, "board role", err)
		return false
	}
	if role != BoardAdmin {
		writeError(w, http.StatusForbidden, "Only board admins can do this")
		return false
	}
	return true
}

func (a *api) handleListBoards(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ListBoards(r.Context(), userFrom(r).ID, queryID(r, "workspace_id"))
	if err != nil {
		a.fail(w, "list boards", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": items})
}

func (a *api) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var in BoardInput
	if !a.decode(w, r, &in) {
		return
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.BackgroundType == "" {
		in.BackgroundType = "color"
	}
	if _, err := a.store.getWorkspaceRow(r.Context(), a.store.db, in.WorkspaceID); err != nil {
		a.fail(w, "load workspace", err)
		return
	}
	role, err := a.store.WorkspaceRoleOf(r.Context(), in.WorkspaceID, userFrom(r).ID)
	if err != nil {
		a.fail(w, "workspace role", err)
		return
	}
	if role == "" || role == WorkspaceGuest {
		writeError(w, http.StatusForbidden, "You cannot create boards in this workspace")
		return
	}
	b, err := a.store.CreateBoard(r.Context(), userFrom(r).ID, in)
	if err != nil {
		a.fail(w, "create board", err)
		return
	}
	a.record(r, b.ID, nil, "board_created", map[string]any{"board_title": b.Title})
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Board created successfully", "board": b})
}

func (a *api) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !a.gateBoard(w, r, id, false) {
		return
	}
	b, err := a.store.GetBoard(r.Context(), id)
	if err != nil {
		a.fail(w, "get board", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"board": b})
}

func (a *api) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !a.gateBoard(w, r, id, true) {
		return
	}
	var p BoardPatch
	if !a.decode(w, r, &p) {
		return
	}
	b, err := a.store.UpdateBoard(r.Context(), id, p)
	if err != nil {
		a.fail(w, "update board", err)
		return
	}
	a.record(r, id, nil, "board_updated", map[string]any{"board_title": b.Title})
	a.publish(r, id, "updated", "board", id, b)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Board updated successfully", "board": b})
}

func (a *api) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !a.boardAdmin(w, r, id) {
		return
	}
	if err := a.store.DeleteBoard(r.Context(), id); err != nil {
		a.fail(w, "delete board", err)
		return
	}
	a.publish(r, id, "deleted", "board", id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Board deleted successfully"})
}

func (a *api) handleAddBoardMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !a.boardAdmin(w, r, id) {
		return
	}
	var req struct {
		UserID int64     `json:"user_id" validate:"required"`
		Role   BoardRole `json:"role" validate:"required,oneof=member admin"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	m, err := a.store.AddBoardMember(r.Context(), id, req.UserID, req.Role, userFrom(r).ID)
	if err != nil {
		a.fail(w, "add board member", err)
		return
	}
	a.record(r, id, nil, "member_added", map[string]any{"user_id": m.UserID, "user_name": m.User.Name, "role": m.Role})
	a.publish(r, id, "created", "board_member", m.UserID, m)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Member added successfully", "member": m})
}

func (a *api) handleRemoveBoardMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !a.boardAdmin(w, r, id) {
		return
	}
	target, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	if err := a.store.RemoveBoardMember(r.Context(), id, target, false); err != nil {
		a.fail(w, "remove board member", err)
		return
	}
	a.record(r, id, nil, "member_removed", map[string]any{"user_id": target})
	a.publish(r, id, "deleted", "board_member", target, nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Member removed successfully"})
}

func (a *api) handleBoardMemberRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !a.boardAdmin(w, r, id) {
		return
	}
	target, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	var req struct {
		Role BoardRole `json:"role" validate:"required,oneof=member admin"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	m, err := a.store.ChangeBoardRole(r.Context(), id, target, req.Role)
	if err != nil {
		a.fail(w, "board role", err)
		return
	}
	a.publish(r, id, "updated", "board_member", target, m)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Member role updated successfully", "member": m})
}

func (a *api) handleLeaveBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := a.store.getBoardRow(r.Context(), a.store.db, id); err != nil {
		a.fail(w, "load board", err)
		return
	}
	uid := userFrom(r).ID
	if err := a.store.RemoveBoardMember(r.Context(), id, uid, true); err != nil {
		a.fail(w, "leave board", err)
		return
	}
	a.publish(r, id, "deleted", "board_member", uid, nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "You have left the board"})
}

func (a *api) handleBoardAvailableMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !a.gateBoard(w, r, id, true) {
		return
	}
	users, err := a.store.BoardAvailableMembers(r.Context(), id, userFrom(r).ID)
	if err != nil {
		a.fail(w, "board available members", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// GET /api/boards/{id}/events
func (a *api) handleBoardEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !a.gateBoard(w, r, id, false) {
		return
	}
	a.bus.ServeSSE(w, r, id)
}
