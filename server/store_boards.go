package main

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

const boardCols = `b.id, b.workspace_id, b.title, coalesce(b.description,''), b.background_type,
	coalesce(b.background_value,''), b.visibility, b.created_by, b.created_at, b.updated_at`

func scanBoard(row scanner, b *Board) error {
	return row.Scan(&b.ID, &b.WorkspaceID, &b.Title, &b.Description, &b.BackgroundType,
		&b.BackgroundValue, &b.Visibility, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
}

const boardMemberCols = `bm.board_id, bm.user_id, bm.role, bm.added_by, bm.created_at, ` + userCols

func scanBoardMember(row scanner, m *BoardMember) error {
	return row.Scan(&m.BoardID, &m.UserID, &m.Role, &m.AddedBy, &m.CreatedAt,
		&m.User.ID, &m.User.Name, &m.User.Email, &m.User.AvatarURL, &m.User.CreatedAt)
}

// listBoardsQuery selects the boards userID can open: every board they are
// a member of and non-private boards of their workspaces. Scoped to one
// workspace it also takes that workspace's public boards.
func listBoardsQuery(userID int64, workspaceID *int64) sq.SelectBuilder {
	visible := sq.Or{
		sq.Expr("exists(select 1 from board_members bm where bm.board_id=b.id and bm.user_id=?)", userID),
		sq.And{
			sq.NotEq{"b.visibility": VisibilityPrivate},
			sq.Expr("exists(select 1 from workspace_members wm where wm.workspace_id=b.workspace_id and wm.user_id=?)", userID),
		},
	}
	if workspaceID != nil {
		visible = append(visible, sq.Eq{"b.visibility": VisibilityPublic})
	}
	b := psql.Select(boardCols).From("boards b").Where(visible).OrderBy("b.created_at desc", "b.id desc")
	if workspaceID != nil {
		b = b.Where(sq.Eq{"b.workspace_id": *workspaceID})
	}
	return b
}

func (s *Store) ListBoards(ctx context.Context, userID int64, workspaceID *int64) ([]Board, error) {
	query, args, err := listBoardsQuery(userID, workspaceID).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Board{}
	for rows.Next() {
		var bd Board
		if err := scanBoard(rows, &bd); err != nil {
			return nil, err
		}
		out = append(out, bd)
	}
	return out, rows.Err()
}

type BoardInput struct {
	WorkspaceID     int64      `json:"workspace_id" validate:"required"`
	Title           string     `json:"title" validate:"required,max=255"`
	Description     string     `json:"description"`
	BackgroundType  string     `json:"background_type" validate:"omitempty,oneof=color image"`
	BackgroundValue string     `json:"background_value"`
	Visibility      Visibility `json:"visibility" validate:"required,oneof=private workspace public"`
}

// CreateBoard inserts the board and makes the creator its admin.
func (s *Store) CreateBoard(ctx context.Context, userID int64, in BoardInput) (Board, error) {
	if in.BackgroundType == "" {
		in.BackgroundType = "color"
	}
	var bd Board
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := scanBoard(tx.QueryRowContext(ctx, `insert into boards(workspace_id, title, description, background_type, background_value, visibility, created_by)
			values($1,$2,$3,$4,$5,$6,$7)
			returning id, workspace_id, title, coalesce(description,''), background_type, coalesce(background_value,''), visibility, created_by, created_at, updated_at`,
			in.WorkspaceID, in.Title, nullString(in.Description), in.BackgroundType, nullString(in.BackgroundValue), in.Visibility, userID), &bd)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `insert into board_members(board_id, user_id, role, added_by) values($1,$2,'admin',$2)`, bd.ID, userID)
		return err
	})
	return bd, err
}

func (s *Store) getBoardRow(ctx context.Context, q querier, id int64) (Board, error) {
	var bd Board
	if err := scanBoard(q.QueryRowContext(ctx, `select `+boardCols+` from boards b where b.id=$1`, id), &bd); err != nil {
		return Board{}, noRowsMsg(err, "board not found")
	}
	return bd, nil
}

// GetBoard loads the full board tree: workspace, members, non-archived
// lists in position order with their cards, and the board's labels.
func (s *Store) GetBoard(ctx context.Context, id int64) (Board, error) {
	bd, err := s.getBoardRow(ctx, s.db, id)
	if err != nil {
		return Board{}, err
	}
	ws, err := s.getWorkspaceRow(ctx, s.db, bd.WorkspaceID)
	if err != nil {
		return Board{}, err
	}
	bd.Workspace = &ws
	if bd.Members, err = s.BoardMembers(ctx, id); err != nil {
		return Board{}, err
	}
	if bd.Labels, err = s.BoardLabels(ctx, id); err != nil {
		return Board{}, err
	}
	lists, err := s.boardLists(ctx, id, false)
	if err != nil {
		return Board{}, err
	}
	cards, err := s.boardCards(ctx, id)
	if err != nil {
		return Board{}, err
	}
	byList := map[int64][]Card{}
	for _, c := range cards {
		byList[c.ListID] = append(byList[c.ListID], c)
	}
	for i := range lists {
		lists[i].Cards = byList[lists[i].ID]
	}
	bd.Lists = lists
	return bd, nil
}

type BoardPatch struct {
	Title           *string     `json:"title" validate:"omitempty,min=1,max=255"`
	Description     *string     `json:"description"`
	BackgroundType  *string     `json:"background_type" validate:"omitempty,oneof=color image"`
	BackgroundValue *string     `json:"background_value"`
	Visibility      *Visibility `json:"visibility" validate:"omitempty,oneof=private workspace public"`
}

func (s *Store) UpdateBoard(ctx context.Context, id int64, p BoardPatch) (Board, error) {
	b := psql.Update("boards").Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": id})
	if p.Title != nil {
		b = b.Set("title", *p.Title)
	}
	if p.Description != nil {
		b = b.Set("description", nullString(*p.Description))
	}
	if p.BackgroundType != nil {
		b = b.Set("background_type", *p.BackgroundType)
	}
	if p.BackgroundValue != nil {
		b = b.Set("background_value", nullString(*p.BackgroundValue))
	}
	if p.Visibility != nil {
		b = b.Set("visibility", *p.Visibility)
	}
	if err := execUpdate(ctx, s.db, b); err != nil {
		return Board{}, err
	}
	return s.getBoardRow(ctx, s.db, id)
}

func (s *Store) DeleteBoard(ctx context.Context, id int64) error {
	return execDelete(ctx, s.db, `delete from boards where id=$1`, id)
}

func (s *Store) BoardMembers(ctx context.Context, boardID int64) ([]BoardMember, error) {
	rows, err := s.db.QueryContext(ctx, `select `+boardMemberCols+`
		from board_members bm join users u on u.id=bm.user_id
		where bm.board_id=$1 order by bm.created_at, u.id`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []BoardMember{}
	for rows.Next() {
		var m BoardMember
		if err := scanBoardMember(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) BoardMembership(ctx context.Context, boardID, userID int64) (BoardMember, error) {
	var m BoardMember
	err := scanBoardMember(s.db.QueryRowContext(ctx, `select `+boardMemberCols+`
		from board_members bm join users u on u.id=bm.user_id
		where bm.board_id=$1 and bm.user_id=$2`, boardID, userID), &m)
	return m, noRows(err)
}

func (s *Store) AddBoardMember(ctx context.Context, boardID, userID int64, role BoardRole, addedBy int64) (BoardMember, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return BoardMember{}, conflictIfMissing(err, "the selected user is invalid")
	}
	_, err := s.db.ExecContext(ctx, `insert into board_members(board_id, user_id, role, added_by) values($1,$2,$3,$4)`,
		boardID, userID, role, addedBy)
	if isUniqueViolation(err) {
		return BoardMember{}, conflict("user is already a member of this board")
	}
	if err != nil {
		return BoardMember{}, err
	}
	return s.BoardMembership(ctx, boardID, userID)
}

// RemoveBoardMember enforces the at-least-one-admin rule before deleting.
func (s *Store) RemoveBoardMember(ctx context.Context, boardID, targetID int64, leaving bool) error {
	target, err := s.BoardRoleOf(ctx, boardID, targetID)
	if err != nil {
		return err
	}
	if target == "" {
		if leaving {
			return conflict("you are not a member of this board")
		}
		return notFound("user is not a member of this board")
	}
	admins, err := s.countBoardAdmins(ctx, s.db, boardID)
	if err != nil {
		return err
	}
	if err := checkBoardMemberRemoval(target, admins, leaving); err != nil {
		return err
	}
	return execDelete(ctx, s.db, `delete from board_members where board_id=$1 and user_id=$2`, boardID, targetID)
}

func (s *Store) ChangeBoardRole(ctx context.Context, boardID, targetID int64, next BoardRole) (BoardMember, error) {
	current, err := s.BoardRoleOf(ctx, boardID, targetID)
	if err != nil {
		return BoardMember{}, err
	}
	if current == "" {
		return BoardMember{}, notFound("user is not a member of this board")
	}
	admins, err := s.countBoardAdmins(ctx, s.db, boardID)
	if err != nil {
		return BoardMember{}, err
	}
	if err := checkBoardRoleChange(current, next, admins); err != nil {
		return BoardMember{}, err
	}
	b := psql.Update("board_members").Set("role", next).Where(sq.Eq{"board_id": boardID, "user_id": targetID})
	if err := execUpdate(ctx, s.db, b); err != nil {
		return BoardMember{}, err
	}
	return s.BoardMembership(ctx, boardID, targetID)
}

// BoardAvailableMembers lists workspace members not yet on the board.
func (s *Store) BoardAvailableMembers(ctx context.Context, boardID, callerID int64) ([]User, error) {
	b := psql.Select(userCols).From("users u").
		Join("workspace_members wm on wm.user_id=u.id").
		Join("boards b on b.workspace_id=wm.workspace_id").
		Where(sq.Eq{"b.id": boardID}).
		Where(sq.NotEq{"u.id": callerID}).
		Where(sq.Expr("not exists(select 1 from board_members bm where bm.board_id=b.id and bm.user_id=u.id)")).
		OrderBy("u.name", "u.id")
	return s.queryUsers(ctx, b)
}
