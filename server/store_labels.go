package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

const labelCols = `lb.id, lb.board_id, coalesce(lb.name,''), lb.color, lb.created_at`

// defaultLabelColor is used for labels created implicitly by name.
const defaultLabelColor = "#6b7280"

func scanLabel(sc scanner) (Label, error) {
	var l Label
	err := sc.Scan(&l.ID, &l.BoardID, &l.Name, &l.Color, &l.CreatedAt)
	return l, err
}

func (s *Store) GetLabel(ctx context.Context, id int64) (Label, error) {
	l, err := scanLabel(s.db.QueryRowContext(ctx, `select `+labelCols+` from labels lb where lb.id=$1`, id))
	if err != nil {
		return Label{}, noRowsMsg(err, "label not found")
	}
	return l, nil
}

func (s *Store) BoardLabels(ctx context.Context, boardID int64) ([]Label, error) {
	b := psql.Select(labelCols).From("labels lb").Where(sq.Eq{"lb.board_id": boardID}).OrderBy("lb.id")
	return selectAll(ctx, s.db, b, scanLabel)
}

// LabelUsage returns the board's labels with the number of cards using each.
func (s *Store) LabelUsage(ctx context.Context, boardID int64) ([]Label, error) {
	b := psql.Select(labelCols, "(select count(*) from card_labels cl where cl.label_id=lb.id)").
		From("labels lb").Where(sq.Eq{"lb.board_id": boardID}).OrderBy("lb.id")
	return selectAll(ctx, s.db, b, func(sc scanner) (Label, error) {
		var l Label
		var n int
		err := sc.Scan(&l.ID, &l.BoardID, &l.Name, &l.Color, &l.CreatedAt, &n)
		l.CardsCount = &n
		return l, err
	})
}

func (s *Store) createLabel(ctx context.Context, q querier, boardID int64, name, color string) (Label, error) {
	return scanLabel(q.QueryRowContext(ctx, `insert into labels(board_id, name, color) values($1,$2,$3)
		returning id, board_id, coalesce(name,''), color, created_at`, boardID, nullString(name), color))
}

func (s *Store) CreateLabel(ctx context.Context, boardID int64, name, color string) (Label, error) {
	return s.createLabel(ctx, s.db, boardID, name, color)
}

type LabelPatch struct {
	Name  *string `json:"name" validate:"omitempty,max=255"`
	Color *string `json:"color" validate:"omitempty,hexcolor,max=7"`
}

func (s *Store) UpdateLabel(ctx context.Context, id int64, p LabelPatch) (Label, error) {
	b := psql.Update("labels").Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": id})
	if p.Name != nil {
		b = b.Set("name", nullString(*p.Name))
	}
	if p.Color != nil {
		b = b.Set("color", *p.Color)
	}
	if err := execUpdate(ctx, s.db, b); err != nil {
		return Label{}, err
	}
	return s.GetLabel(ctx, id)
}

func (s *Store) DeleteLabel(ctx context.Context, id int64) error {
	return execDelete(ctx, s.db, `delete from labels where id=$1`, id)
}

// labelByName finds a board label by case-insensitive name, creating it with
// the default colour when missing.
func (s *Store) labelByName(ctx context.Context, q querier, boardID int64, name string) (Label, error) {
	l, err := scanLabel(q.QueryRowContext(ctx, `select `+labelCols+` from labels lb
		where lb.board_id=$1 and lower(lb.name)=lower($2) order by lb.id limit 1`, boardID, name))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Label{}, err
	}
	return s.createLabel(ctx, q, boardID, name, defaultLabelColor)
}

type LabelOp struct {
	ID     int64  `json:"id"`
	Name   string `json:"name" validate:"max=255"`
	Color  string `json:"color" validate:"omitempty,hexcolor,max=7"`
	Action string `json:"action" validate:"omitempty,oneof=create update delete"`
}

// BulkResult reports the outcome of one item of a bulk request.
type BulkResult struct {
	Index  int    `json:"index"`
	ID     int64  `json:"id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// BulkLabels applies each op in order outside any transaction. A failing op
// is reported and the rest still run.
func (s *Store) BulkLabels(ctx context.Context, boardID int64, ops []LabelOp) []BulkResult {
	out := make([]BulkResult, 0, len(ops))
	for i, op := range ops {
		res := BulkResult{Index: i, ID: op.ID}
		var err error
		switch {
		case op.Action == "delete" && op.ID != 0:
			err = s.ownedLabel(ctx, boardID, op.ID)
			if err == nil {
				err = s.DeleteLabel(ctx, op.ID)
			}
			res.Status = "deleted"
		case op.ID != 0:
			err = s.ownedLabel(ctx, boardID, op.ID)
			if err == nil {
				p := LabelPatch{Name: &op.Name}
				if op.Color != "" {
					p.Color = &op.Color
				}
				res.Data, err = s.UpdateLabel(ctx, op.ID, p)
			}
			res.Status = "updated"
		default:
			if op.Color == "" {
				err = fmt.Errorf("color is required")
				break
			}
			var l Label
			l, err = s.CreateLabel(ctx, boardID, op.Name, op.Color)
			res.ID, res.Data = l.ID, l
			res.Status = "created"
		}
		if err != nil {
			res.Status, res.Error, res.Data = "failed", messageOf(err, err.Error()), nil
		}
		out = append(out, res)
	}
	return out
}

func (s *Store) ownedLabel(ctx context.Context, boardID, labelID int64) error {
	l, err := s.GetLabel(ctx, labelID)
	if err != nil {
		return err
	}
	if l.BoardID != boardID {
		return forbidden("label does not belong to this board")
	}
	return nil
}
