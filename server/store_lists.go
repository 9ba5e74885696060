package main

import (
	"context"

	sq "github.com/Masterminds/squirrel"
)

const listCols = `l.id, l.board_id, l.title, coalesce(l.color,''), l.position, l.archived, l.created_by, l.created_at, l.updated_at`

func scanList(row scanner, l *List) error {
	return row.Scan(&l.ID, &l.BoardID, &l.Title, &l.Color, &l.Position, &l.Archived, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
}

func (s *Store) boardLists(ctx context.Context, boardID int64, withArchived bool) ([]List, error) {
	b := psql.Select(listCols).From("lists l").Where(sq.Eq{"l.board_id": boardID}).OrderBy("l.position", "l.id")
	if !withArchived {
		b = b.Where(sq.Eq{"l.archived": false})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []List{}
	for rows.Next() {
		var l List
		if err := scanList(rows, &l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreateList appends the list to the end of the board.
func (s *Store) CreateList(ctx context.Context, userID, boardID int64, title, color string) (List, error) {
	pos, err := nextPosition(ctx, s.db, listOrder, boardID)
	if err != nil {
		return List{}, err
	}
	var l List
	err = scanList(s.db.QueryRowContext(ctx, `insert into lists(board_id, title, color, position, created_by)
		values($1,$2,$3,$4,$5)
		returning id, board_id, title, coalesce(color,''), position, archived, created_by, created_at, updated_at`,
		boardID, title, nullString(color), pos, userID), &l)
	return l, err
}

func (s *Store) GetList(ctx context.Context, id int64) (List, error) {
	var l List
	if err := scanList(s.db.QueryRowContext(ctx, `select `+listCols+` from lists l where l.id=$1`, id), &l); err != nil {
		return List{}, noRowsMsg(err, "list not found")
	}
	return l, nil
}

type ListPatch struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=255"`
	Color    *string `json:"color" validate:"omitempty,max=7"`
	Position *int    `json:"position" validate:"omitempty,min=0"`
	Archived *bool   `json:"archived"`
}

func (s *Store) UpdateList(ctx context.Context, id int64, p ListPatch) (List, error) {
	b := psql.Update("lists").Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": id})
	if p.Title != nil {
		b = b.Set("title", *p.Title)
	}
	if p.Color != nil {
		b = b.Set("color", nullString(*p.Color))
	}
	if p.Position != nil {
		b = b.Set("position", *p.Position)
	}
	if p.Archived != nil {
		b = b.Set("archived", *p.Archived)
	}
	if err := execUpdate(ctx, s.db, b); err != nil {
		return List{}, err
	}
	return s.GetList(ctx, id)
}

func (s *Store) SetListArchived(ctx context.Context, id int64, archived bool) (List, error) {
	return s.UpdateList(ctx, id, ListPatch{Archived: &archived})
}

func (s *Store) DeleteList(ctx context.Context, id int64) error {
	return execDelete(ctx, s.db, `delete from lists where id=$1`, id)
}
