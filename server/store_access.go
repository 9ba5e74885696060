package main

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
)

type entity int

const (
	entityList entity = iota
	entityCard
	entityLabel
	entityChecklist
	entityItem
	entityComment
	entityAttachment
)

// boardPath is the join chain from an entity (aliased x) up to its board.
type boardPath struct {
	from  string
	board string
	name  string
}

var boardPaths = map[entity]boardPath{
	entityList:      {from: "lists x", board: "x.board_id", name: "list"},
	entityLabel:     {from: "labels x", board: "x.board_id", name: "label"},
	entityCard:      {from: "cards x join lists l on l.id=x.list_id", board: "l.board_id", name: "card"},
	entityChecklist: {from: "checklists x join cards c on c.id=x.card_id join lists l on l.id=c.list_id", board: "l.board_id", name: "checklist"},
	entityItem: {from: "checklist_items x join checklists k on k.id=x.checklist_id join cards c on c.id=k.card_id join lists l on l.id=c.list_id",
		board: "l.board_id", name: "checklist item"},
	entityComment:    {from: "comments x join cards c on c.id=x.card_id join lists l on l.id=c.list_id", board: "l.board_id", name: "comment"},
	entityAttachment: {from: "attachments x join cards c on c.id=x.card_id join lists l on l.id=c.list_id", board: "l.board_id", name: "attachment"},
}

// BoardIDOf walks an entity up to its owning board.
func (s *Store) BoardIDOf(ctx context.Context, e entity, id int64) (int64, error) {
	p := boardPaths[e]
	query, args, err := psql.Select(p.board).From(p.from).Where(sq.Eq{"x.id": id}).ToSql()
	if err != nil {
		return 0, err
	}
	var boardID int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&boardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, notFound(p.name + " not found")
		}
		return 0, err
	}
	return boardID, nil
}

// BoardIDsOf resolves many entities at once. Missing ids are reported as ErrNotFound.
func (s *Store) BoardIDsOf(ctx context.Context, e entity, ids []int64) (map[int64]int64, error) {
	p := boardPaths[e]
	out := make(map[int64]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := psql.Select("x.id", p.board).From(p.from).Where(sq.Eq{"x.id": ids}).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, boardID int64
		if err := rows.Scan(&id, &boardID); err != nil {
			return nil, err
		}
		out[id] = boardID
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, notFound(p.name + " not found")
		}
	}
	return out, nil
}

// WorkspaceRoleOf returns the user's role, or "" when they are not a member.
func (s *Store) WorkspaceRoleOf(ctx context.Context, workspaceID, userID int64) (WorkspaceRole, error) {
	var role WorkspaceRole
	err := s.db.QueryRowContext(ctx, `select role from workspace_members where workspace_id=$1 and user_id=$2`, workspaceID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return role, err
}

// BoardRoleOf returns the user's role, or "" when they are not a member.
func (s *Store) BoardRoleOf(ctx context.Context, boardID, userID int64) (BoardRole, error) {
	var role BoardRole
	err := s.db.QueryRowContext(ctx, `select role from board_members where board_id=$1 and user_id=$2`, boardID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return role, err
}

func (s *Store) IsBoardMember(ctx context.Context, boardID, userID int64) (bool, error) {
	role, err := s.BoardRoleOf(ctx, boardID, userID)
	return role != "", err
}

// CanAccessBoard applies the visibility gate. Missing boards yield ErrNotFound.
func (s *Store) CanAccessBoard(ctx context.Context, boardID, userID int64) (bool, error) {
	return s.canAccessBoard(ctx, s.db, boardID, userID)
}

func (s *Store) canAccessBoard(ctx context.Context, q querier, boardID, userID int64) (bool, error) {
	var vis Visibility
	var boardMember, wsMember bool
	err := q.QueryRowContext(ctx, `select b.visibility,
		exists(select 1 from board_members bm where bm.board_id=b.id and bm.user_id=$2),
		exists(select 1 from workspace_members wm where wm.workspace_id=b.workspace_id and wm.user_id=$2)
		from boards b where b.id=$1`, boardID, userID).Scan(&vis, &boardMember, &wsMember)
	if errors.Is(err, sql.ErrNoRows) {
		return false, notFound("board not found")
	}
	if err != nil {
		return false, err
	}
	return canAccessBoard(vis, boardMember, wsMember), nil
}

func (s *Store) countWorkspaceOwners(ctx context.Context, q querier, workspaceID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `select count(*) from workspace_members where workspace_id=$1 and role='owner'`, workspaceID).Scan(&n)
	return n, err
}

func (s *Store) countBoardAdmins(ctx context.Context, q querier, boardID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `select count(*) from board_members where board_id=$1 and role='admin'`, boardID).Scan(&n)
	return n, err
}

// accessibleBoardsSQL selects ids of boards reachable through board or
// workspace membership. Bind the user id to both placeholders.
const accessibleBoardsSQL = `select b.id from boards b
	where exists(select 1 from board_members bm where bm.board_id=b.id and bm.user_id=?)
	   or exists(select 1 from workspace_members wm where wm.workspace_id=b.workspace_id and wm.user_id=?)`

// ManagedBoardIDs lists boards where the user is a board admin or a
// workspace owner/admin.
func (s *Store) ManagedBoardIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `select b.id from boards b
		where exists(select 1 from board_members bm where bm.board_id=b.id and bm.user_id=$1 and bm.role='admin')
		   or exists(select 1 from workspace_members wm where wm.workspace_id=b.workspace_id and wm.user_id=$1 and wm.role in ('owner','admin'))
		order by b.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) AccessibleBoardIDs(ctx context.Context, userID int64) ([]int64, error) {
	query, args, err := psql.Select("b.id").From("boards b").
		Where(sq.Expr("b.id in ("+accessibleBoardsSQL+")", userID, userID)).
		OrderBy("b.id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
