package main

import "net/http"

func (a *api) handleCardComments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := a.gateEntity(w, r, entityCard, id, false); !ok {
		return
	}
	items, err := a.store.CardComments(r.Context(), id)
	if err != nil {
		a.fail(w, "card comments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": items})
}

func (a *api) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardID int64  `json:"card_id" validate:"required"`
		Text   string `json:"text" validate:"required,max=5000"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityCard, req.CardID, true)
	if !ok {
		return
	}
	text := a.text.Sanitize(req.Text)
	if text == "" {
		writeError(w, http.StatusUnprocessableEntity, "The text field is required.")
		return
	}
	c, err := a.store.CreateComment(r.Context(), req.CardID, userFrom(r).ID, text)
	if err != nil {
		a.fail(w, "add comment", err)
		return
	}
	a.record(r, boardID, &c.CardID, "comment_added", map[string]any{"comment_id": c.ID})
	a.publish(r, boardID, "created", "comment", c.ID, c)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Comment added successfully", "comment": c})
}

func (a *api) handleGetComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := a.gateEntity(w, r, entityComment, id, false); !ok {
		return
	}
	c, err := a.store.GetComment(r.Context(), id)
	if err != nil {
		a.fail(w, "get comment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comment": c})
}

// ownComment loads a comment the caller wrote. Other members get 403.
func (a *api) ownComment(w http.ResponseWriter, r *http.Request) (Comment, int64, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return Comment{}, 0, false
	}
	boardID, ok := a.gateEntity(w, r, entityComment, id, true)
	if !ok {
		return Comment{}, 0, false
	}
	c, err := a.store.GetComment(r.Context(), id)
	if err != nil {
		a.fail(w, "load comment", err)
		return Comment{}, 0, false
	}
	if c.UserID != userFrom(r).ID {
		writeError(w, http.StatusForbidden, "You can only modify your own comments")
		return Comment{}, 0, false
	}
	return c, boardID, true
}

func (a *api) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	c, boardID, ok := a.ownComment(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text" validate:"required,max=5000"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	text := a.text.Sanitize(req.Text)
	if text == "" {
		writeError(w, http.StatusUnprocessableEntity, "The text field is required.")
		return
	}
	updated, err := a.store.UpdateComment(r.Context(), c.ID, text)
	if err != nil {
		a.fail(w, "update comment", err)
		return
	}
	a.publish(r, boardID, "updated", "comment", c.ID, updated)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Comment updated successfully", "comment": updated})
}

func (a *api) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	c, boardID, ok := a.ownComment(w, r)
	if !ok {
		return
	}
	a.deleteComment(w, r, c, boardID)
}

// DELETE /api/comments/{id}/force: board admins and workspace managers
// may remove anyone's comment.
func (a *api) handleForceDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, err := a.store.BoardIDOf(r.Context(), entityComment, id)
	if err != nil {
		a.fail(w, "resolve board", err)
		return
	}
	manages, err := a.managesBoard(r, boardID)
	if err != nil {
		a.fail(w, "board role", err)
		return
	}
	if !manages {
		writeError(w, http.StatusForbidden, "Only board admins can force delete comments")
		return
	}
	c, err := a.store.GetComment(r.Context(), id)
	if err != nil {
		a.fail(w, "load comment", err)
		return
	}
	a.deleteComment(w, r, c, boardID)
}

func (a *api) managesBoard(r *http.Request, boardID int64) (bool, error) {
	uid := userFrom(r).ID
	role, err := a.store.BoardRoleOf(r.Context(), boardID, uid)
	if err != nil || role == BoardAdmin {
		return role == BoardAdmin, err
	}
	b, err := a.store.getBoardRow(r.Context(), a.store.db, boardID)
	if err != nil {
		return false, err
	}
	wsRole, err := a.store.WorkspaceRoleOf(r.Context(), b.WorkspaceID, uid)
	return wsRole.managesWorkspace(), err
}

func (a *api) deleteComment(w http.ResponseWriter, r *http.Request, c Comment, boardID int64) {
	if err := a.store.DeleteComment(r.Context(), c.ID); err != nil {
		a.fail(w, "delete comment", err)
		return
	}
	a.record(r, boardID, &c.CardID, "comment_deleted", map[string]any{"comment_id": c.ID, "author_id": c.UserID})
	a.publish(r, boardID, "deleted", "comment", c.ID, nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Comment deleted successfully"})
}

// GET /api/comments/my-recent?limit=10
func (a *api) handleRecentComments(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.RecentComments(r.Context(), userFrom(r).ID, queryInt(r, "limit", 10, 1, 100))
	if err != nil {
		a.fail(w, "recent comments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": items})
}

// POST /api/comments/bulk {card_ids}
func (a *api) handleBulkComments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardIDs []int64 `json:"card_ids" validate:"required,min=1,max=100"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if _, ok := a.gateMany(w, r, entityCard, req.CardIDs); !ok {
		return
	}
	items, err := a.store.CommentsForCards(r.Context(), req.CardIDs)
	if err != nil {
		a.fail(w, "bulk comments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": items})
}
