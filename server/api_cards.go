package main

import (
	"net/http"
	"strings"
)

// cardView adds the rendered description to a card before it is returned.
func (a *api) cardView(c Card) Card {
	c.DescriptionHTML = a.text.Markdown(c.Description)
	return c
}

func (a *api) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var in CardInput
	if !a.decode(w, r, &in) {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityList, in.ListID, true)
	if !ok {
		return
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Source == "" {
		in.Source = sourceWeb
	}
	c, err := a.store.CreateCard(r.Context(), userFrom(r).ID, in)
	if err != nil {
		a.fail(w, "create card", err)
		return
	}
	a.record(r, boardID, &c.ID, "card_created", map[string]any{"card_title": c.Title, "list_id": c.ListID})
	a.publish(r, boardID, "created", "card", c.ID, c)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Card created successfully", "card": a.cardView(c)})
}

func (a *api) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := a.gateEntity(w, r, entityCard, id, false); !ok {
		return
	}
	c, err := a.store.GetCard(r.Context(), id)
	if err != nil {
		a.fail(w, "get card", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"card": a.cardView(c)})
}

func (a *api) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityCard, id, true)
	if !ok {
		return
	}
	var p CardPatch
	if !a.decode(w, r, &p) {
		return
	}
	if p.ListID != nil && !a.sameBoardList(w, r, boardID, *p.ListID) {
		return
	}
	c, err := a.store.UpdateCard(r.Context(), id, p)
	if err != nil {
		a.fail(w, "update card", err)
		return
	}
	a.record(r, boardID, &c.ID, "card_updated", map[string]any{"card_title": c.Title})
	a.publish(r, boardID, "updated", "card", c.ID, c)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Card updated successfully", "card": a.cardView(c)})
}

// sameBoardList rejects a target list that lives on another board.
func (a *api) sameBoardList(w http.ResponseWriter, r *http.Request, boardID, listID int64) bool {
	target, err := a.store.BoardIDOf(r.Context(), entityList, listID)
	if err != nil {
		a.fail(w, "resolve list", conflictIfMissing(err, "the selected list is invalid"))
		return false
	}
	if target != boardID {
		writeError(w, http.StatusUnprocessableEntity, "cannot move a card to a list on another board")
		return false
	}
	return true
}

func (a *api) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityCard, id, true)
	if !ok {
		return
	}
	c, err := a.store.getCardRow(r.Context(), id)
	if err != nil {
		a.fail(w, "load card", err)
		return
	}
	if err := a.store.DeleteCard(r.Context(), id); err != nil {
		a.fail(w, "delete card", err)
		return
	}
	a.record(r, boardID, nil, "card_deleted", map[string]any{"card_id": id, "card_title": c.Title})
	a.publish(r, boardID, "deleted", "card", id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Card deleted successfully"})
}

// POST /api/cards/{id}/move {list_id, position}
func (a *api) handleMoveCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityCard, id, true)
	if !ok {
		return
	}
	var req struct {
		ListID   int64 `json:"list_id" validate:"required"`
		Position *int  `json:"position" validate:"required,min=0"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if !a.sameBoardList(w, r, boardID, req.ListID) {
		return
	}
	before, err := a.store.getCardRow(r.Context(), id)
	if err != nil {
		a.fail(w, "load card", err)
		return
	}
	c, err := a.store.MoveCard(r.Context(), id, req.ListID, *req.Position)
	if err != nil {
		a.fail(w, "move card", err)
		return
	}
	a.record(r, boardID, &c.ID, "card_moved", map[string]any{
		"card_title": c.Title, "from_list_id": before.ListID, "to_list_id": c.ListID, "position": c.Position,
	})
	a.publish(r, boardID, "moved", "card", c.ID, c)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Card moved successfully", "card": a.cardView(c)})
}

// POST /api/cards/reorder {cards:[{id, position}]}
func (a *api) handleReorderCards(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cards []PositionUpdate `json:"cards" validate:"required,min=1,dive"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	a.reorder(w, r, cardOrder, req.Cards, "Cards reordered successfully")
}

func (a *api) handleArchiveCard(w http.ResponseWriter, r *http.Request) {
	a.cardFlag(w, r, "card_archived", "Card archived successfully", func(id int64) (Card, error) {
		return a.store.SetCardArchived(r.Context(), id, true)
	})
}

func (a *api) handleRestoreCard(w http.ResponseWriter, r *http.Request) {
	a.cardFlag(w, r, "card_restored", "Card restored successfully", func(id int64) (Card, error) {
		return a.store.SetCardArchived(r.Context(), id, false)
	})
}

func (a *api) handleToggleCardDue(w http.ResponseWriter, r *http.Request) {
	a.cardFlag(w, r, "card_due_toggled", "Due date status updated", func(id int64) (Card, error) {
		return a.store.ToggleCardDue(r.Context(), id)
	})
}

func (a *api) cardFlag(w http.ResponseWriter, r *http.Request, action, msg string, apply func(int64) (Card, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityCard, id, true)
	if !ok {
		return
	}
	c, err := apply(id)
	if err != nil {
		a.fail(w, action, err)
		return
	}
	a.record(r, boardID, &c.ID, action, map[string]any{"card_title": c.Title})
	a.publish(r, boardID, "updated", "card", c.ID, c)
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "card": a.cardView(c)})
}

// POST /api/cards/{id}/labels {label_id}
func (a *api) handleAttachLabel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityCard, id, true)
	if !ok {
		return
	}
	var req struct {
		LabelID int64 `json:"label_id" validate:"required"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	l, err := a.store.AttachLabel(r.Context(), id, req.LabelID)
	if err != nil {
		a.fail(w, "attach label", err)
		return
	}
	a.record(r, boardID, &id, "label_added", map[string]any{"label_id": l.ID, "label_name": l.Name})
	a.publish(r, boardID, "updated", "card_label", id, l)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Label added to card", "label": l})
}

func (a *api) handleDetachLabel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	labelID, ok := pathID(w, r, "labelId")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityCard, id, true)
	if !ok {
		return
	}
	labels, err := a.store.DetachLabel(r.Context(), id, labelID)
	if err != nil {
		a.fail(w, "detach label", err)
		return
	}
	a.record(r, boardID, &id, "label_removed", map[string]any{"label_id": labelID})
	a.publish(r, boardID, "updated", "card_label", id, labels)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Label removed from card", "labels": labels})
}

// POST /api/cards/{id}/members {user_id}
func (a *api) handleAddCardMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityCard, id, true)
	if !ok {
		return
	}
	var req struct {
		UserID int64 `json:"user_id" validate:"required"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	m, err := a.store.AddCardMember(r.Context(), id, req.UserID, userFrom(r).ID)
	if err != nil {
		a.fail(w, "add card member", err)
		return
	}
	a.record(r, boardID, &id, "card_member_added", map[string]any{"user_id": m.UserID, "user_name": m.User.Name})
	a.publish(r, boardID, "created", "card_member", id, m)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Member assigned to card", "member": m})
}

func (a *api) handleRemoveCardMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	target, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	boardID, ok := a.gateEntity(w, r, entityCard, id, true)
	if !ok {
		return
	}
	if err := a.store.RemoveCardMember(r.Context(), id, target); err != nil {
		a.fail(w, "remove card member", err)
		return
	}
	a.record(r, boardID, &id, "card_member_removed", map[string]any{"user_id": target})
	a.publish(r, boardID, "deleted", "card_member", id, map[string]any{"user_id": target})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Member removed from card"})
}

func (a *api) handleCardAvailableMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := a.gateEntity(w, r, entityCard, id, true); !ok {
		return
	}
	users, err := a.store.CardAvailableMembers(r.Context(), id, userFrom(r).ID)
	if err != nil {
		a.fail(w, "card available members", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}
