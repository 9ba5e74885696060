package main

import (
	"net/http"
	"strings"
)

// workspaceAccess loads a workspace and the caller's role in it. A missing
// workspace answers 404.
func (a *api) workspaceAccess(w http.ResponseWriter, r *http.Request) (Workspace, WorkspaceRole, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return Workspace{}, "", false
	}
	ws, err := a.store.getWorkspaceRow(r.Context(), a.store.db, id)
	if err != nil {
		a.fail(w, "load workspace", err)
		return Workspace{}, "", false
	}
	role, err := a.store.WorkspaceRoleOf(r.Context(), id, userFrom(r).ID)
	if err != nil {
		a.fail(w, "workspace role", err)
		return Workspace{}, "", false
	}
	return ws, role, true
}

// workspaceManager is workspaceAccess plus the owner/admin requirement.
func (a *api) workspaceManager(w http.ResponseWriter, r *http.Request) (Workspace, WorkspaceRole, bool) {
	ws, role, ok := a.workspaceAccess(w, r)
	if !ok {
		return ws, role, false
	}
	if !role.managesWorkspace() {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return ws, role, false
	}
	return ws, role, true
}

func (a *api) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ListWorkspaces(r.Context(), userFrom(r).ID)
	if err != nil {
		a.fail(w, "list workspaces", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": items})
}

func (a *api) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string     `json:"name" validate:"required,max=255"`
		Description string     `json:"description"`
		Visibility  Visibility `json:"visibility" validate:"required,oneof=private workspace public"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	ws, err := a.store.CreateWorkspace(r.Context(), userFrom(r).ID, strings.TrimSpace(req.Name), req.Description, req.Visibility)
	if err != nil {
		a.fail(w, "create workspace", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Workspace created successfully", "workspace": ws})
}

func (a *api) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := a.workspaceAccess(w, r)
	if !ok {
		return
	}
	if !canAccessWorkspace(ws.Visibility, role) {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	full, err := a.store.GetWorkspace(r.Context(), ws.ID, userFrom(r).ID)
	if err != nil {
		a.fail(w, "get workspace", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspace": full})
}

func (a *api) handleUpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := a.workspaceManager(w, r)
	if !ok {
		return
	}
	var p WorkspacePatch
	if !a.decode(w, r, &p) {
		return
	}
	updated, err := a.store.UpdateWorkspace(r.Context(), ws.ID, p)
	if err != nil {
		a.fail(w, "update workspace", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Workspace updated successfully", "workspace": updated})
}

func (a *api) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := a.workspaceAccess(w, r)
	if !ok {
		return
	}
	if role != WorkspaceOwner {
		writeError(w, http.StatusForbidden, "Only the workspace owner can delete it")
		return
	}
	if err := a.store.DeleteWorkspace(r.Context(), ws.ID); err != nil {
		a.fail(w, "delete workspace", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Workspace deleted successfully"})
}

func (a *api) handleAddWorkspaceMember(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := a.workspaceManager(w, r)
	if !ok {
		return
	}
	var req struct {
		UserID int64         `json:"user_id" validate:"required"`
		Role   WorkspaceRole `json:"role" validate:"required,oneof=member admin guest"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	m, err := a.store.AddWorkspaceMember(r.Context(), ws.ID, req.UserID, req.Role, userFrom(r).ID)
	if err != nil {
		a.fail(w, "add workspace member", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Member added successfully", "member": m})
}

func (a *api) handleRemoveWorkspaceMember(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := a.workspaceManager(w, r)
	if !ok {
		return
	}
	target, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	if err := a.store.RemoveWorkspaceMember(r.Context(), ws.ID, role, target, false); err != nil {
		a.fail(w, "remove workspace member", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Member removed successfully"})
}

func (a *api) handleWorkspaceMemberRole(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := a.workspaceManager(w, r)
	if !ok {
		return
	}
	target, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	var req struct {
		Role WorkspaceRole `json:"role" validate:"required,oneof=member admin owner guest"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	m, err := a.store.ChangeWorkspaceRole(r.Context(), ws.ID, role, target, req.Role)
	if err != nil {
		a.fail(w, "workspace role", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Member role updated successfully", "member": m})
}

func (a *api) handleLeaveWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := a.workspaceAccess(w, r)
	if !ok {
		return
	}
	if err := a.store.RemoveWorkspaceMember(r.Context(), ws.ID, role, userFrom(r).ID, true); err != nil {
		a.fail(w, "leave workspace", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "You have left the workspace"})
}

func (a *api) handleWorkspaceMembership(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := a.workspaceAccess(w, r)
	if !ok {
		return
	}
	if role == "" {
		writeError(w, http.StatusForbidden, "You are not a member of this workspace")
		return
	}
	m, err := a.store.WorkspaceMembership(r.Context(), ws.ID, userFrom(r).ID)
	if err != nil {
		a.fail(w, "workspace membership", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role": m.Role, "joined_at": m.JoinedAt, "is_owner": m.Role == WorkspaceOwner})
}

func (a *api) handleWorkspaceAvailableMembers(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := a.workspaceManager(w, r)
	if !ok {
		return
	}
	users, err := a.store.WorkspaceAvailableMembers(r.Context(), ws.ID, userFrom(r).ID)
	if err != nil {
		a.fail(w, "workspace available members", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}
