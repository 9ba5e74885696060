package main

import (
	"net/http"
	"time"
)

func (a *api) routes(mux *http.ServeMux) {
	auth := a.requireAuth

	// auth
	mux.HandleFunc("POST /api/register", a.withRateLimit("auth", 20, time.Minute, a.handleRegister))
	mux.HandleFunc("POST /api/login", a.withRateLimit("auth", 30, time.Minute, a.handleLogin))
	mux.HandleFunc("POST /api/logout", auth(a.handleLogout))
	mux.HandleFunc("GET /api/me", auth(a.handleMe))
	mux.HandleFunc("GET /api/user", auth(a.handleMe))
	mux.HandleFunc("PATCH /api/me", auth(a.handleUpdateMe))
	mux.HandleFunc("GET /api/users/search", auth(a.handleSearchUsers))

	mux.HandleFunc("GET /api/health", a.handleHealth)

	// workspaces
	mux.HandleFunc("GET /api/workspaces", auth(a.handleListWorkspaces))
	mux.HandleFunc("POST /api/workspaces", auth(a.handleCreateWorkspace))
	mux.HandleFunc("GET /api/workspaces/{id}", auth(a.handleGetWorkspace))
	mux.HandleFunc("PUT /api/workspaces/{id}", auth(a.handleUpdateWorkspace))
	mux.HandleFunc("PATCH /api/workspaces/{id}", auth(a.handleUpdateWorkspace))
	mux.HandleFunc("DELETE /api/workspaces/{id}", auth(a.handleDeleteWorkspace))
	mux.HandleFunc("POST /api/workspaces/{id}/members", auth(a.handleAddWorkspaceMember))
	mux.HandleFunc("DELETE /api/workspaces/{id}/members/{userId}", auth(a.handleRemoveWorkspaceMember))
	mux.HandleFunc("PATCH /api/workspaces/{id}/members/{userId}/role", auth(a.handleWorkspaceMemberRole))
	mux.HandleFunc("POST /api/workspaces/{id}/leave", auth(a.handleLeaveWorkspace))
	mux.HandleFunc("GET /api/workspaces/{id}/membership", auth(a.handleWorkspaceMembership))
	mux.HandleFunc("GET /api/workspaces/{id}/available-members", auth(a.handleWorkspaceAvailableMembers))

	// boards
	mux.HandleFunc("GET /api/boards", auth(a.handleListBoards))
	mux.HandleFunc("POST /api/boards", auth(a.handleCreateBoard))
	mux.HandleFunc("GET /api/boards/{id}", auth(a.handleGetBoard))
	mux.HandleFunc("PUT /api/boards/{id}", auth(a.handleUpdateBoard))
	mux.HandleFunc("PATCH /api/boards/{id}", auth(a.handleUpdateBoard))
	mux.HandleFunc("DELETE /api/boards/{id}", auth(a.handleDeleteBoard))
	mux.HandleFunc("POST /api/boards/{id}/members", auth(a.handleAddBoardMember))
	mux.HandleFunc("DELETE /api/boards/{id}/members/{userId}", auth(a.handleRemoveBoardMember))
	mux.HandleFunc("PATCH /api/boards/{id}/members/{userId}/role", auth(a.handleBoardMemberRole))
	mux.HandleFunc("POST /api/boards/{id}/leave", auth(a.handleLeaveBoard))
	mux.HandleFunc("GET /api/boards/{id}/available-members", auth(a.handleBoardAvailableMembers))
	mux.HandleFunc("GET /api/boards/{id}/events", auth(a.handleBoardEvents))
	mux.HandleFunc("GET /api/boards/{id}/labels", auth(a.handleBoardLabels))
	mux.HandleFunc("GET /api/boards/{id}/labels/usage", auth(a.handleLabelUsage))
	mux.HandleFunc("POST /api/boards/{id}/labels/bulk", auth(a.handleBulkLabels))
	mux.HandleFunc("GET /api/boards/{id}/activities", auth(a.handleBoardActivities))

	// lists
	mux.HandleFunc("POST /api/lists", auth(a.handleCreateList))
	mux.HandleFunc("POST /api/lists/reorder", auth(a.handleReorderLists))
	mux.HandleFunc("PUT /api/lists/{id}", auth(a.handleUpdateList))
	mux.HandleFunc("PATCH /api/lists/{id}", auth(a.handleUpdateList))
	mux.HandleFunc("DELETE /api/lists/{id}", auth(a.handleDeleteList))
	mux.HandleFunc("POST /api/lists/{id}/archive", auth(a.handleArchiveList))
	mux.HandleFunc("POST /api/lists/{id}/restore", auth(a.handleRestoreList))

	// cards
	mux.HandleFunc("POST /api/cards", auth(a.handleCreateCard))
	mux.HandleFunc("POST /api/cards/reorder", auth(a.handleReorderCards))
	mux.HandleFunc("GET /api/cards/{id}", auth(a.handleGetCard))
	mux.HandleFunc("PUT /api/cards/{id}", auth(a.handleUpdateCard))
	mux.HandleFunc("PATCH /api/cards/{id}", auth(a.handleUpdateCard))
	mux.HandleFunc("DELETE /api/cards/{id}", auth(a.handleDeleteCard))
	mux.HandleFunc("POST /api/cards/{id}/move", auth(a.handleMoveCard))
	mux.HandleFunc("POST /api/cards/{id}/archive", auth(a.handleArchiveCard))
	mux.HandleFunc("POST /api/cards/{id}/restore", auth(a.handleRestoreCard))
	mux.HandleFunc("POST /api/cards/{id}/toggle-due", auth(a.handleToggleCardDue))
	mux.HandleFunc("POST /api/cards/{id}/labels", auth(a.handleAttachLabel))
	mux.HandleFunc("DELETE /api/cards/{id}/labels/{labelId}", auth(a.handleDetachLabel))
	mux.HandleFunc("POST /api/cards/{id}/members", auth(a.handleAddCardMember))
	mux.HandleFunc("DELETE /api/cards/{id}/members/{userId}", auth(a.handleRemoveCardMember))
	mux.HandleFunc("GET /api/cards/{id}/available-members", auth(a.handleCardAvailableMembers))
	mux.HandleFunc("GET /api/cards/{id}/comments", auth(a.handleCardComments))
	mux.HandleFunc("GET /api/cards/{id}/attachments", auth(a.handleCardAttachments))
	mux.HandleFunc("GET /api/cards/{id}/attachments/stats", auth(a.handleAttachmentStats))
	mux.HandleFunc("GET /api/cards/{id}/activities", auth(a.handleCardActivities))

	// email ingestion
	mux.HandleFunc("POST /api/cards/from-email", a.requireAPIKey(a.handleCreateEmailCard))
	mux.HandleFunc("POST /api/cards/from-email/validate", a.requireAPIKey(a.handleValidateEmailCard))

	// labels
	mux.HandleFunc("POST /api/labels", auth(a.handleCreateLabel))
	mux.HandleFunc("PUT /api/labels/{id}", auth(a.handleUpdateLabel))
	mux.HandleFunc("PATCH /api/labels/{id}", auth(a.handleUpdateLabel))
	mux.HandleFunc("DELETE /api/labels/{id}", auth(a.handleDeleteLabel))

	// checklists
	mux.HandleFunc("POST /api/checklists", auth(a.handleCreateChecklist))
	mux.HandleFunc("POST /api/checklists/reorder", auth(a.handleReorderChecklists))
	mux.HandleFunc("GET /api/checklists/{id}", auth(a.handleGetChecklist))
	mux.HandleFunc("PUT /api/checklists/{id}", auth(a.handleUpdateChecklist))
	mux.HandleFunc("PATCH /api/checklists/{id}", auth(a.handleUpdateChecklist))
	mux.HandleFunc("DELETE /api/checklists/{id}", auth(a.handleDeleteChecklist))
	mux.HandleFunc("POST /api/checklists/{id}/duplicate", auth(a.handleDuplicateChecklist))
	mux.HandleFunc("POST /api/checklists/{id}/items/bulk", auth(a.handleBulkItems))
	mux.HandleFunc("POST /api/checklist-items", auth(a.handleCreateItem))
	mux.HandleFunc("POST /api/checklist-items/reorder", auth(a.handleReorderItems))
	mux.HandleFunc("PUT /api/checklist-items/{id}", auth(a.handleUpdateItem))
	mux.HandleFunc("PATCH /api/checklist-items/{id}", auth(a.handleUpdateItem))
	mux.HandleFunc("DELETE /api/checklist-items/{id}", auth(a.handleDeleteItem))
	mux.HandleFunc("POST /api/checklist-items/{id}/toggle", auth(a.handleToggleItem))
	mux.HandleFunc("POST /api/checklist-items/{id}/assign", auth(a.handleAssignItem))
	mux.HandleFunc("POST /api/checklist-items/{id}/unassign", auth(a.handleUnassignItem))

	// comments
	mux.HandleFunc("POST /api/comments", auth(a.handleAddComment))
	mux.HandleFunc("GET /api/comments/my-recent", auth(a.handleRecentComments))
	mux.HandleFunc("POST /api/comments/bulk", auth(a.handleBulkComments))
	mux.HandleFunc("GET /api/comments/{id}", auth(a.handleGetComment))
	mux.HandleFunc("PUT /api/comments/{id}", auth(a.handleUpdateComment))
	mux.HandleFunc("PATCH /api/comments/{id}", auth(a.handleUpdateComment))
	mux.HandleFunc("DELETE /api/comments/{id}", auth(a.handleDeleteComment))
	mux.HandleFunc("DELETE /api/comments/{id}/force", auth(a.handleForceDeleteComment))

	// attachments
	mux.HandleFunc("POST /api/attachments", auth(a.handleCreateAttachment))
	mux.HandleFunc("DELETE /api/attachments/bulk", auth(a.handleBulkDeleteAttachments))
	mux.HandleFunc("GET /api/attachments/{id}", auth(a.handleGetAttachment))
	mux.HandleFunc("PATCH /api/attachments/{id}", auth(a.handleUpdateAttachment))
	mux.HandleFunc("GET /api/attachments/{id}/download", auth(a.handleDownloadAttachment))
	mux.HandleFunc("DELETE /api/attachments/{id}", auth(a.handleDeleteAttachment))

	// activity
	mux.HandleFunc("GET /api/activities", auth(a.handleListActivities))
	mux.HandleFunc("POST /api/activities", auth(a.handleCreateActivity))
	mux.HandleFunc("GET /api/activities/my-activity", auth(a.handleMyActivity))
	mux.HandleFunc("GET /api/activities/stats", auth(a.handleActivityStats))
	mux.HandleFunc("GET /api/activities/search", auth(a.handleSearchActivities))
	mux.HandleFunc("DELETE /api/activities/clear-old", auth(a.handleClearOldActivities))
}
