package main

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const checklistCols = `k.id, k.card_id, k.title, k.position, k.created_at, k.updated_at`

func scanChecklist(sc scanner) (Checklist, error) {
	var k Checklist
	err := sc.Scan(&k.ID, &k.CardID, &k.Title, &k.Position, &k.CreatedAt, &k.UpdatedAt)
	return k, err
}

// itemCols selects an item aliased i with its optional assignee aliased a.
const itemCols = `i.id, i.checklist_id, i.text, i.position, i.completed, i.due_date, i.assigned_to, i.created_at, i.updated_at,
	a.id, a.name, a.email, coalesce(a.avatar_url,''), a.created_at`

const itemFrom = `checklist_items i left join users a on a.id=i.assigned_to`

func scanItem(sc scanner) (ChecklistItem, error) {
	var it ChecklistItem
	var aID sql.NullInt64
	var aName, aEmail, aAvatar sql.NullString
	var aCreated sql.NullTime
	err := sc.Scan(&it.ID, &it.ChecklistID, &it.Text, &it.Position, &it.Completed, &it.DueDate, &it.AssignedTo,
		&it.CreatedAt, &it.UpdatedAt, &aID, &aName, &aEmail, &aAvatar, &aCreated)
	if err == nil && aID.Valid {
		it.Assignee = &User{ID: aID.Int64, Name: aName.String, Email: aEmail.String, AvatarURL: aAvatar.String, CreatedAt: aCreated.Time}
	}
	return it, err
}

// progressOf summarises completed items; percentage rounds half up.
func progressOf(items []ChecklistItem) Progress {
	p := Progress{Total: len(items)}
	for _, it := range items {
		if it.Completed {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percentage = int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
	}
	return p
}

func (s *Store) checklistsForCards(ctx context.Context, cardIDs []int64) (map[int64][]Checklist, error) {
	b := psql.Select(checklistCols).From("checklists k").Where(sq.Eq{"k.card_id": cardIDs}).OrderBy("k.position", "k.id")
	lists, err := selectAll(ctx, s.db, b, scanChecklist)
	if err != nil {
		return nil, err
	}
	out := map[int64][]Checklist{}
	if len(lists) == 0 {
		return out, nil
	}
	ids := make([]int64, len(lists))
	for i, k := range lists {
		ids[i] = k.ID
	}
	items, err := s.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, k := range lists {
		k.Items = items[k.ID]
		if k.Items == nil {
			k.Items = []ChecklistItem{}
		}
		p := progressOf(k.Items)
		k.Progress = &p
		out[k.CardID] = append(out[k.CardID], k)
	}
	return out, nil
}

func (s *Store) itemsFor(ctx context.Context, checklistIDs []int64) (map[int64][]ChecklistItem, error) {
	b := psql.Select(itemCols).From(itemFrom).Where(sq.Eq{"i.checklist_id": checklistIDs}).OrderBy("i.position", "i.id")
	items, err := selectAll(ctx, s.db, b, scanItem)
	if err != nil {
		return nil, err
	}
	out := map[int64][]ChecklistItem{}
	for _, it := range items {
		out[it.ChecklistID] = append(out[it.ChecklistID], it)
	}
	return out, nil
}

// GetChecklist returns the checklist with its items and progress.
func (s *Store) GetChecklist(ctx context.Context, id int64) (Checklist, error) {
	k, err := scanChecklist(s.db.QueryRowContext(ctx, `select `+checklistCols+` from checklists k where k.id=$1`, id))
	if err != nil {
		return Checklist{}, noRowsMsg(err, "checklist not found")
	}
	items, err := s.itemsFor(ctx, []int64{id})
	if err != nil {
		return Checklist{}, err
	}
	k.Items = items[id]
	if k.Items == nil {
		k.Items = []ChecklistItem{}
	}
	p := progressOf(k.Items)
	k.Progress = &p
	return k, nil
}

func (s *Store) CreateChecklist(ctx context.Context, cardID int64, title string) (Checklist, error) {
	pos, err := nextPosition(ctx, s.db, checklistOrder, cardID)
	if err != nil {
		return Checklist{}, err
	}
	k, err := scanChecklist(s.db.QueryRowContext(ctx, `insert into checklists(card_id, title, position) values($1,$2,$3)
		returning id, card_id, title, position, created_at, updated_at`, cardID, title, pos))
	if err != nil {
		return Checklist{}, err
	}
	k.Items = []ChecklistItem{}
	k.Progress = &Progress{}
	return k, nil
}

type ChecklistPatch struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=255"`
	Position *int    `json:"position" validate:"omitempty,min=0"`
}

func (s *Store) UpdateChecklist(ctx context.Context, id int64, p ChecklistPatch) (Checklist, error) {
	b := psql.Update("checklists").Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": id})
	if p.Title != nil {
		b = b.Set("title", *p.Title)
	}
	if p.Position != nil {
		b = b.Set("position", *p.Position)
	}
	if err := execUpdate(ctx, s.db, b); err != nil {
		return Checklist{}, err
	}
	return s.GetChecklist(ctx, id)
}

func (s *Store) DeleteChecklist(ctx context.Context, id int64) error {
	return execDelete(ctx, s.db, `delete from checklists where id=$1`, id)
}

// DuplicateChecklist appends a copy titled "<title> (Copy)" whose items keep
// their text and positions but start uncompleted.
func (s *Store) DuplicateChecklist(ctx context.Context, id int64) (Checklist, error) {
	src, err := s.GetChecklist(ctx, id)
	if err != nil {
		return Checklist{}, err
	}
	cp, err := s.CreateChecklist(ctx, src.CardID, src.Title+" (Copy)")
	if err != nil {
		return Checklist{}, err
	}
	for _, it := range src.Items {
		if _, err := s.db.ExecContext(ctx, `insert into checklist_items(checklist_id, text, position, completed, due_date, assigned_to)
			values($1,$2,$3,false,$4,$5)`, cp.ID, it.Text, it.Position, it.DueDate, it.AssignedTo); err != nil {
			return Checklist{}, fmt.Errorf("copy item %d: %w", it.ID, err)
		}
	}
	return s.GetChecklist(ctx, cp.ID)
}

type ItemInput struct {
	ChecklistID int64      `json:"checklist_id" validate:"required"`
	Text        string     `json:"text" validate:"required,max=1000"`
	DueDate     *time.Time `json:"due_date"`
	AssignedTo  *int64     `json:"assigned_to"`
}

func (s *Store) getItem(ctx context.Context, id int64) (ChecklistItem, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx, `select `+itemCols+` from `+itemFrom+` where i.id=$1`, id))
	if err != nil {
		return ChecklistItem{}, noRowsMsg(err, "checklist item not found")
	}
	return it, nil
}

func (s *Store) GetItem(ctx context.Context, id int64) (ChecklistItem, error) {
	return s.getItem(ctx, id)
}

func (s *Store) CreateItem(ctx context.Context, in ItemInput) (ChecklistItem, error) {
	pos, err := nextPosition(ctx, s.db, itemOrder, in.ChecklistID)
	if err != nil {
		return ChecklistItem{}, err
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, `insert into checklist_items(checklist_id, text, position, due_date, assigned_to)
		values($1,$2,$3,$4,$5) returning id`, in.ChecklistID, in.Text, pos, in.DueDate, in.AssignedTo).Scan(&id); err != nil {
		return ChecklistItem{}, err
	}
	return s.getItem(ctx, id)
}

type ItemPatch struct {
	Text       *string      `json:"text" validate:"omitempty,min=1,max=1000"`
	Completed  *bool        `json:"completed"`
	DueDate    optionalTime `json:"due_date"`
	AssignedTo *int64       `json:"assigned_to"`
	Position   *int         `json:"position" validate:"omitempty,min=0"`
}

func (s *Store) UpdateItem(ctx context.Context, id int64, p ItemPatch) (ChecklistItem, error) {
	b := psql.Update("checklist_items").Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": id})
	if p.Text != nil {
		b = b.Set("text", *p.Text)
	}
	if p.Completed != nil {
		b = b.Set("completed", *p.Completed)
	}
	b = setTime(b, "due_date", p.DueDate)
	if p.AssignedTo != nil {
		b = b.Set("assigned_to", *p.AssignedTo)
	}
	if p.Position != nil {
		b = b.Set("position", *p.Position)
	}
	if err := execUpdate(ctx, s.db, b); err != nil {
		return ChecklistItem{}, err
	}
	return s.getItem(ctx, id)
}

func (s *Store) ToggleItem(ctx context.Context, id int64) (ChecklistItem, error) {
	if err := execUpdate(ctx, s.db, psql.Update("checklist_items").
		Set("completed", sq.Expr("not completed")).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id})); err != nil {
		return ChecklistItem{}, err
	}
	return s.getItem(ctx, id)
}

// AssignItem sets or clears (userID nil) the assignee.
func (s *Store) AssignItem(ctx context.Context, id int64, userID *int64) (ChecklistItem, error) {
	var v any
	if userID != nil {
		v = *userID
	}
	if err := execUpdate(ctx, s.db, psql.Update("checklist_items").
		Set("assigned_to", v).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id})); err != nil {
		return ChecklistItem{}, err
	}
	return s.getItem(ctx, id)
}

func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	return execDelete(ctx, s.db, `delete from checklist_items where id=$1`, id)
}

type ItemOp struct {
	ID         int64        `json:"id"`
	Text       string       `json:"text" validate:"max=1000"`
	Completed  *bool        `json:"completed"`
	DueDate    optionalTime `json:"due_date"`
	AssignedTo *int64       `json:"assigned_to"`
	Action     string       `json:"action" validate:"omitempty,oneof=create update delete"`
}

// BulkItems mirrors BulkLabels for the items of one checklist on boardID.
// Assignees must be members of that board.
func (s *Store) BulkItems(ctx context.Context, boardID, checklistID int64, ops []ItemOp) []BulkResult {
	out := make([]BulkResult, 0, len(ops))
	for i, op := range ops {
		res := BulkResult{Index: i, ID: op.ID}
		var err error
		switch {
		case op.Action == "delete" && op.ID != 0:
			err = s.ownedItem(ctx, checklistID, op.ID)
			if err == nil {
				err = s.DeleteItem(ctx, op.ID)
			}
			res.Status = "deleted"
		case op.ID != 0:
			err = s.ownedItem(ctx, checklistID, op.ID)
			if err == nil {
				err = s.assignable(ctx, boardID, op.AssignedTo)
			}
			if err == nil {
				p := ItemPatch{Completed: op.Completed, DueDate: op.DueDate, AssignedTo: op.AssignedTo}
				if op.Text != "" {
					p.Text = &op.Text
				}
				res.Data, err = s.UpdateItem(ctx, op.ID, p)
			}
			res.Status = "updated"
		default:
			if op.Text == "" {
				err = fmt.Errorf("text is required")
				break
			}
			if err = s.assignable(ctx, boardID, op.AssignedTo); err != nil {
				break
			}
			var it ChecklistItem
			it, err = s.CreateItem(ctx, ItemInput{ChecklistID: checklistID, Text: op.Text, DueDate: op.DueDate.Value, AssignedTo: op.AssignedTo})
			res.ID, res.Data = it.ID, it
			res.Status = "created"
		}
		if err != nil {
			res.Status, res.Error, res.Data = "failed", messageOf(err, err.Error()), nil
		}
		out = append(out, res)
	}
	return out
}

// assignable accepts no assignee or a member of the board.
func (s *Store) assignable(ctx context.Context, boardID int64, userID *int64) error {
	if userID == nil {
		return nil
	}
	ok, err := s.IsBoardMember(ctx, boardID, *userID)
	if err != nil {
		return err
	}
	if !ok {
		return conflict("user is not a member of this board")
	}
	return nil
}

func (s *Store) ownedItem(ctx context.Context, checklistID, itemID int64) error {
	it, err := s.getItem(ctx, itemID)
	if err != nil {
		return err
	}
	if it.ChecklistID != checklistID {
		return forbidden("item does not belong to this checklist")
	}
	return nil
}
