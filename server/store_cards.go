package main

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const cardCols = `c.id, c.list_id, c.title, coalesce(c.description,''), c.position, c.due_date,
	c.due_date_completed, c.archived, c.source, c.created_by, c.created_at, c.updated_at`

func scanCard(row scanner) (Card, error) {
	var c Card
	err := row.Scan(&c.ID, &c.ListID, &c.Title, &c.Description, &c.Position, &c.DueDate,
		&c.DueDateCompleted, &c.Archived, &c.Source, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const (
	sourceWeb   = "web"
	sourceEmail = "email"
)

type CardInput struct {
	ListID      int64      `json:"list_id" validate:"required"`
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Source      string     `json:"source" validate:"omitempty,oneof=web api mobile"`
}

// createCard appends a card to its list. q may be a transaction.
func (s *Store) createCard(ctx context.Context, q querier, userID int64, in CardInput) (Card, error) {
	if in.Source == "" {
		in.Source = sourceWeb
	}
	pos, err := nextPosition(ctx, q, cardOrder, in.ListID)
	if err != nil {
		return Card{}, err
	}
	return scanCard(q.QueryRowContext(ctx, `insert into cards(list_id, title, description, position, due_date, source, created_by)
		values($1,$2,$3,$4,$5,$6,$7)
		returning id, list_id, title, coalesce(description,''), position, due_date, due_date_completed, archived, source, created_by, created_at, updated_at`,
		in.ListID, in.Title, nullString(in.Description), pos, in.DueDate, in.Source, userID))
}

func (s *Store) CreateCard(ctx context.Context, userID int64, in CardInput) (Card, error) {
	return s.createCard(ctx, s.db, userID, in)
}

func (s *Store) getCardRow(ctx context.Context, id int64) (Card, error) {
	c, err := scanCard(s.db.QueryRowContext(ctx, `select `+cardCols+` from cards c where c.id=$1`, id))
	if err != nil {
		return Card{}, noRowsMsg(err, "card not found")
	}
	return c, nil
}

// GetCard loads a card with everything the detail view shows.
func (s *Store) GetCard(ctx context.Context, id int64) (Card, error) {
	c, err := s.getCardRow(ctx, id)
	if err != nil {
		return Card{}, err
	}
	l, err := s.GetList(ctx, c.ListID)
	if err != nil {
		return Card{}, err
	}
	c.List = &l
	creator, err := s.GetUser(ctx, c.CreatedBy)
	if err != nil {
		return Card{}, err
	}
	c.Creator = &creator
	cards := []Card{c}
	if err := s.loadCardRelations(ctx, cards); err != nil {
		return Card{}, err
	}
	c = cards[0]
	if c.Attachments, err = s.CardAttachments(ctx, id); err != nil {
		return Card{}, err
	}
	if c.Comments, err = s.CardComments(ctx, id); err != nil {
		return Card{}, err
	}
	return c, nil
}

// boardCards returns the non-archived cards of a board with labels,
// members and checklists attached.
func (s *Store) boardCards(ctx context.Context, boardID int64) ([]Card, error) {
	b := psql.Select(cardCols).From("cards c").Join("lists l on l.id=c.list_id").
		Where(sq.Eq{"l.board_id": boardID, "c.archived": false}).
		OrderBy("c.position", "c.id")
	cards, err := selectAll(ctx, s.db, b, scanCard)
	if err != nil {
		return nil, err
	}
	return cards, s.loadCardRelations(ctx, cards)
}

func (s *Store) loadCardRelations(ctx context.Context, cards []Card) error {
	if len(cards) == 0 {
		return nil
	}
	ids := make([]int64, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	labels, err := s.labelsForCards(ctx, ids)
	if err != nil {
		return err
	}
	members, err := s.membersForCards(ctx, ids)
	if err != nil {
		return err
	}
	checklists, err := s.checklistsForCards(ctx, ids)
	if err != nil {
		return err
	}
	for i := range cards {
		id := cards[i].ID
		cards[i].Labels = labels[id]
		cards[i].Members = members[id]
		cards[i].Checklists = checklists[id]
	}
	return nil
}

func (s *Store) labelsForCards(ctx context.Context, cardIDs []int64) (map[int64][]Label, error) {
	type row struct {
		cardID int64
		label  Label
	}
	b := psql.Select("cl.card_id", labelCols).From("card_labels cl").Join("labels lb on lb.id=cl.label_id").
		Where(sq.Eq{"cl.card_id": cardIDs}).OrderBy("lb.id")
	rows, err := selectAll(ctx, s.db, b, func(sc scanner) (row, error) {
		var r row
		err := sc.Scan(&r.cardID, &r.label.ID, &r.label.BoardID, &r.label.Name, &r.label.Color, &r.label.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, err
	}
	out := map[int64][]Label{}
	for _, r := range rows {
		out[r.cardID] = append(out[r.cardID], r.label)
	}
	return out, nil
}

const cardMemberCols = `cm.card_id, cm.user_id, cm.assigned_by, cm.created_at, ` + userCols

func scanCardMember(sc scanner) (CardMember, error) {
	var m CardMember
	err := sc.Scan(&m.CardID, &m.UserID, &m.AssignedBy, &m.CreatedAt,
		&m.User.ID, &m.User.Name, &m.User.Email, &m.User.AvatarURL, &m.User.CreatedAt)
	return m, err
}

func (s *Store) membersForCards(ctx context.Context, cardIDs []int64) (map[int64][]CardMember, error) {
	b := psql.Select(cardMemberCols).From("card_members cm").Join("users u on u.id=cm.user_id").
		Where(sq.Eq{"cm.card_id": cardIDs}).OrderBy("cm.created_at", "u.id")
	members, err := selectAll(ctx, s.db, b, scanCardMember)
	if err != nil {
		return nil, err
	}
	out := map[int64][]CardMember{}
	for _, m := range members {
		out[m.CardID] = append(out[m.CardID], m)
	}
	return out, nil
}

type CardPatch struct {
	Title            *string      `json:"title" validate:"omitempty,min=1,max=255"`
	Description      *string      `json:"description"`
	DueDate          optionalTime `json:"due_date"`
	DueDateCompleted *bool        `json:"due_date_completed"`
	Archived         *bool        `json:"archived"`
	Position         *int         `json:"position" validate:"omitempty,min=0"`
	ListID           *int64       `json:"list_id"`
}

func (s *Store) UpdateCard(ctx context.Context, id int64, p CardPatch) (Card, error) {
	b := psql.Update("cards").Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": id})
	if p.Title != nil {
		b = b.Set("title", *p.Title)
	}
	if p.Description != nil {
		b = b.Set("description", nullString(*p.Description))
	}
	b = setTime(b, "due_date", p.DueDate)
	if p.DueDateCompleted != nil {
		b = b.Set("due_date_completed", *p.DueDateCompleted)
	}
	if p.Archived != nil {
		b = b.Set("archived", *p.Archived)
	}
	if p.Position != nil {
		b = b.Set("position", *p.Position)
	}
	if p.ListID != nil {
		b = b.Set("list_id", *p.ListID)
	}
	if err := execUpdate(ctx, s.db, b); err != nil {
		return Card{}, err
	}
	return s.getCardRow(ctx, id)
}

// MoveCard reparents the card and sets its position in a single statement.
// The vacated list keeps its gap.
func (s *Store) MoveCard(ctx context.Context, id, listID int64, position int) (Card, error) {
	b := psql.Update("cards").
		Set("list_id", listID).
		Set("position", position).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id})
	if err := execUpdate(ctx, s.db, b); err != nil {
		return Card{}, err
	}
	return s.getCardRow(ctx, id)
}

func (s *Store) SetCardArchived(ctx context.Context, id int64, archived bool) (Card, error) {
	return s.UpdateCard(ctx, id, CardPatch{Archived: &archived})
}

func (s *Store) ToggleCardDue(ctx context.Context, id int64) (Card, error) {
	if _, err := s.db.ExecContext(ctx, `update cards set due_date_completed = not due_date_completed, updated_at=now() where id=$1`, id); err != nil {
		return Card{}, err
	}
	return s.getCardRow(ctx, id)
}

func (s *Store) DeleteCard(ctx context.Context, id int64) error {
	return execDelete(ctx, s.db, `delete from cards where id=$1`, id)
}

// attachLabel is a no-op when the pair already exists.
func (s *Store) attachLabel(ctx context.Context, q querier, cardID, labelID int64) error {
	_, err := q.ExecContext(ctx, `insert into card_labels(card_id, label_id) values($1,$2) on conflict do nothing`, cardID, labelID)
	return err
}

// AttachLabel requires the label to live on the card's board.
func (s *Store) AttachLabel(ctx context.Context, cardID, labelID int64) (Label, error) {
	cardBoard, err := s.BoardIDOf(ctx, entityCard, cardID)
	if err != nil {
		return Label{}, err
	}
	l, err := s.GetLabel(ctx, labelID)
	if err != nil {
		return Label{}, conflictIfMissing(err, "the selected label is invalid")
	}
	if l.BoardID != cardBoard {
		return Label{}, conflict("label does not belong to this board")
	}
	return l, s.attachLabel(ctx, s.db, cardID, labelID)
}

// DetachLabel is a no-op when the label is not attached.
func (s *Store) DetachLabel(ctx context.Context, cardID, labelID int64) ([]Label, error) {
	if _, err := s.db.ExecContext(ctx, `delete from card_labels where card_id=$1 and label_id=$2`, cardID, labelID); err != nil {
		return nil, err
	}
	labels, err := s.labelsForCards(ctx, []int64{cardID})
	if err != nil {
		return nil, err
	}
	if labels[cardID] == nil {
		return []Label{}, nil
	}
	return labels[cardID], nil
}

// addCardMember rejects duplicates, unlike label attach.
func (s *Store) addCardMember(ctx context.Context, q querier, cardID, userID, assignedBy int64) error {
	_, err := q.ExecContext(ctx, `insert into card_members(card_id, user_id, assigned_by) values($1,$2,$3)`, cardID, userID, assignedBy)
	if isUniqueViolation(err) {
		return conflict("user is already assigned to this card")
	}
	return err
}

// AddCardMember only accepts members of the card's board.
func (s *Store) AddCardMember(ctx context.Context, cardID, userID, assignedBy int64) (CardMember, error) {
	boardID, err := s.BoardIDOf(ctx, entityCard, cardID)
	if err != nil {
		return CardMember{}, err
	}
	ok, err := s.IsBoardMember(ctx, boardID, userID)
	if err != nil {
		return CardMember{}, err
	}
	if !ok {
		return CardMember{}, conflict("user is not a member of this board")
	}
	if err := s.addCardMember(ctx, s.db, cardID, userID, assignedBy); err != nil {
		return CardMember{}, err
	}
	return scanCardMember(s.db.QueryRowContext(ctx, `select `+cardMemberCols+`
		from card_members cm join users u on u.id=cm.user_id where cm.card_id=$1 and cm.user_id=$2`, cardID, userID))
}

func (s *Store) RemoveCardMember(ctx context.Context, cardID, userID int64) error {
	err := execDelete(ctx, s.db, `delete from card_members where card_id=$1 and user_id=$2`, cardID, userID)
	if errors.Is(err, ErrNotFound) {
		return notFound("user is not assigned to this card")
	}
	return err
}

// CardAvailableMembers lists board members not yet on the card, caller excluded.
func (s *Store) CardAvailableMembers(ctx context.Context, cardID, callerID int64) ([]User, error) {
	boardID, err := s.BoardIDOf(ctx, entityCard, cardID)
	if err != nil {
		return nil, err
	}
	b := psql.Select(userCols).From("users u").
		Join("board_members bm on bm.user_id=u.id").
		Where(sq.Eq{"bm.board_id": boardID}).
		Where(sq.NotEq{"u.id": callerID}).
		Where(sq.Expr("not exists(select 1 from card_members cm where cm.card_id=? and cm.user_id=u.id)", cardID)).
		OrderBy("u.name", "u.id")
	return s.queryUsers(ctx, b)
}
