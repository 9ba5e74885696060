package main

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
)

const workspaceCols = `w.id, w.name, coalesce(w.description,''), w.visibility, w.created_by, w.created_at, w.updated_at`

func scanWorkspace(row scanner, w *Workspace, extra ...any) error {
	dest := append([]any{&w.ID, &w.Name, &w.Description, &w.Visibility, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt}, extra...)
	return row.Scan(dest...)
}

const workspaceMemberCols = `wm.workspace_id, wm.user_id, wm.role, wm.invited_by, wm.joined_at, ` + userCols

func scanWorkspaceMember(row scanner, m *WorkspaceMember) error {
	return row.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.InvitedBy, &m.JoinedAt,
		&m.User.ID, &m.User.Name, &m.User.Email, &m.User.AvatarURL, &m.User.CreatedAt)
}

// ListWorkspaces returns the caller's workspaces with creator and board count.
func (s *Store) ListWorkspaces(ctx context.Context, userID int64) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `select `+workspaceCols+`, `+userCols+`,
		(select count(*) from boards b where b.workspace_id=w.id)
		from workspaces w
		join workspace_members m on m.workspace_id=w.id and m.user_id=$1
		join users u on u.id=w.created_by
		order by w.created_at desc, w.id desc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Workspace{}
	for rows.Next() {
		var w Workspace
		var c User
		if err := scanWorkspace(rows, &w, &c.ID, &c.Name, &c.Email, &c.AvatarURL, &c.CreatedAt, &w.BoardsCount); err != nil {
			return nil, err
		}
		w.Creator = &c
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateWorkspace inserts the workspace and its owner membership together.
func (s *Store) CreateWorkspace(ctx context.Context, userID int64, name, description string, vis Visibility) (Workspace, error) {
	var w Workspace
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := scanWorkspace(tx.QueryRowContext(ctx, `insert into workspaces(name, description, visibility, created_by)
			values($1,$2,$3,$4)
			returning id, name, coalesce(description,''), visibility, created_by, created_at, updated_at`,
			name, nullString(description), vis, userID), &w)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `insert into workspace_members(workspace_id, user_id, role) values($1,$2,'owner')`, w.ID, userID)
		return err
	})
	return w, err
}

func (s *Store) getWorkspaceRow(ctx context.Context, q querier, id int64) (Workspace, error) {
	var w Workspace
	err := scanWorkspace(q.QueryRowContext(ctx, `select `+workspaceCols+` from workspaces w where w.id=$1`, id), &w)
	if err != nil {
		return Workspace{}, noRowsMsg(err, "workspace not found")
	}
	return w, nil
}

// GetWorkspace loads a workspace with members and the boards the viewer can see.
func (s *Store) GetWorkspace(ctx context.Context, id, viewerID int64) (Workspace, error) {
	w, err := s.getWorkspaceRow(ctx, s.db, id)
	if err != nil {
		return Workspace{}, err
	}
	if w.Members, err = s.WorkspaceMembers(ctx, id); err != nil {
		return Workspace{}, err
	}
	boards, err := s.ListBoards(ctx, viewerID, &id)
	if err != nil {
		return Workspace{}, err
	}
	w.Boards = boards
	w.BoardsCount = len(boards)
	return w, nil
}

func (s *Store) WorkspaceMembers(ctx context.Context, id int64) ([]WorkspaceMember, error) {
	rows, err := s.db.QueryContext(ctx, `select `+workspaceMemberCols+`
		from workspace_members wm join users u on u.id=wm.user_id
		where wm.workspace_id=$1 order by wm.joined_at, u.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WorkspaceMember{}
	for rows.Next() {
		var m WorkspaceMember
		if err := scanWorkspaceMember(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type WorkspacePatch struct {
	Name        *string     `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string     `json:"description"`
	Visibility  *Visibility `json:"visibility" validate:"omitempty,oneof=private workspace public"`
}

func (s *Store) UpdateWorkspace(ctx context.Context, id int64, p WorkspacePatch) (Workspace, error) {
	b := psql.Update("workspaces").Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": id})
	if p.Name != nil {
		b = b.Set("name", *p.Name)
	}
	if p.Description != nil {
		b = b.Set("description", nullString(*p.Description))
	}
	if p.Visibility != nil {
		b = b.Set("visibility", *p.Visibility)
	}
	if err := execUpdate(ctx, s.db, b); err != nil {
		return Workspace{}, err
	}
	return s.getWorkspaceRow(ctx, s.db, id)
}

func (s *Store) DeleteWorkspace(ctx context.Context, id int64) error {
	return execDelete(ctx, s.db, `delete from workspaces where id=$1`, id)
}

func (s *Store) WorkspaceMembership(ctx context.Context, workspaceID, userID int64) (WorkspaceMember, error) {
	var m WorkspaceMember
	err := scanWorkspaceMember(s.db.QueryRowContext(ctx, `select `+workspaceMemberCols+`
		from workspace_members wm join users u on u.id=wm.user_id
		where wm.workspace_id=$1 and wm.user_id=$2`, workspaceID, userID), &m)
	return m, noRows(err)
}

// AddWorkspaceMember rejects unknown users and duplicates with a conflict.
func (s *Store) AddWorkspaceMember(ctx context.Context, workspaceID, userID int64, role WorkspaceRole, invitedBy int64) (WorkspaceMember, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return WorkspaceMember{}, conflictIfMissing(err, "the selected user is invalid")
	}
	_, err := s.db.ExecContext(ctx, `insert into workspace_members(workspace_id, user_id, role, invited_by) values($1,$2,$3,$4)`,
		workspaceID, userID, role, invitedBy)
	if isUniqueViolation(err) {
		return WorkspaceMember{}, conflict("user is already a member of this workspace")
	}
	if err != nil {
		return WorkspaceMember{}, err
	}
	return s.WorkspaceMembership(ctx, workspaceID, userID)
}

// RemoveWorkspaceMember deletes targetID after the last-owner and
// owner-removal checks. leaving marks a self-removal.
func (s *Store) RemoveWorkspaceMember(ctx context.Context, workspaceID int64, actor WorkspaceRole, targetID int64, leaving bool) error {
	target, err := s.WorkspaceRoleOf(ctx, workspaceID, targetID)
	if err != nil {
		return err
	}
	if target == "" {
		if leaving {
			return conflict("you are not a member of this workspace")
		}
		return notFound("user is not a member of this workspace")
	}
	owners, err := s.countWorkspaceOwners(ctx, s.db, workspaceID)
	if err != nil {
		return err
	}
	if leaving {
		actor = target
	}
	if err := checkWorkspaceMemberRemoval(actor, target, owners, leaving); err != nil {
		return err
	}
	return execDelete(ctx, s.db, `delete from workspace_members where workspace_id=$1 and user_id=$2`, workspaceID, targetID)
}

func (s *Store) ChangeWorkspaceRole(ctx context.Context, workspaceID int64, actor WorkspaceRole, targetID int64, next WorkspaceRole) (WorkspaceMember, error) {
	current, err := s.WorkspaceRoleOf(ctx, workspaceID, targetID)
	if err != nil {
		return WorkspaceMember{}, err
	}
	if current == "" {
		return WorkspaceMember{}, notFound("user is not a member of this workspace")
	}
	owners, err := s.countWorkspaceOwners(ctx, s.db, workspaceID)
	if err != nil {
		return WorkspaceMember{}, err
	}
	if err := checkWorkspaceRoleChange(actor, current, next, owners); err != nil {
		return WorkspaceMember{}, err
	}
	b := psql.Update("workspace_members").Set("role", next).
		Where(sq.Eq{"workspace_id": workspaceID, "user_id": targetID})
	if err := execUpdate(ctx, s.db, b); err != nil {
		return WorkspaceMember{}, err
	}
	return s.WorkspaceMembership(ctx, workspaceID, targetID)
}

// WorkspaceAvailableMembers lists users outside the workspace, caller excluded.
func (s *Store) WorkspaceAvailableMembers(ctx context.Context, workspaceID, callerID int64) ([]User, error) {
	b := psql.Select(userCols).From("users u").
		Where(sq.NotEq{"u.id": callerID}).
		Where(sq.Expr("not exists(select 1 from workspace_members wm where wm.workspace_id=? and wm.user_id=u.id)", workspaceID)).
		OrderBy("u.name", "u.id")
	return s.queryUsers(ctx, b)
}

// conflictIfMissing turns a lookup miss on a referenced row into a 422.
func conflictIfMissing(err error, msg string) error {
	if errors.Is(err, ErrNotFound) {
		return conflict(msg)
	}
	return err
}
