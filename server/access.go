package main

type Visibility string

const (
	VisibilityPrivate   Visibility = "private"
	VisibilityWorkspace Visibility = "workspace"
	VisibilityPublic    Visibility = "public"
)

type WorkspaceRole string

const (
	WorkspaceOwner      WorkspaceRole = "owner"
	WorkspaceAdmin      WorkspaceRole = "admin"
	WorkspaceRoleMember WorkspaceRole = "member"
	WorkspaceGuest      WorkspaceRole = "guest"
)

type BoardRole string

const (
	BoardAdmin      BoardRole = "admin"
	BoardRoleMember BoardRole = "member"
)

// managesWorkspace reports whether the role may edit a workspace and its members.
func (r WorkspaceRole) managesWorkspace() bool {
	return r == WorkspaceOwner || r == WorkspaceAdmin
}

// canAccessWorkspace is the read gate for a workspace. An empty role means
// the caller holds no membership.
func canAccessWorkspace(v Visibility, role WorkspaceRole) bool {
	return v == VisibilityPublic || role != ""
}

// canAccessBoard is the read gate for a board. Workspace membership only
// opens boards with workspace visibility.
func canAccessBoard(v Visibility, boardMember, workspaceMember bool) bool {
	switch v {
	case VisibilityPublic:
		return true
	case VisibilityWorkspace:
		return boardMember || workspaceMember
	case VisibilityPrivate:
		return boardMember
	}
	return false
}

// checkBoardMemberRemoval guards the "at least one admin" rule for remove and leave.
func checkBoardMemberRemoval(target BoardRole, adminCount int, leaving bool) error {
	if target == BoardAdmin && adminCount <= 1 {
		if leaving {
			return conflict("cannot leave the board as the only admin, transfer the admin role first")
		}
		return conflict("cannot remove the only admin of the board")
	}
	return nil
}

func checkBoardRoleChange(current, next BoardRole, adminCount int) error {
	if current == BoardAdmin && next != BoardAdmin && adminCount <= 1 {
		return conflict("cannot demote the only admin of the board")
	}
	return nil
}

// checkWorkspaceMemberRemoval covers both removal by a manager and leaving.
// For leave the actor is the target.
func checkWorkspaceMemberRemoval(actor, target WorkspaceRole, ownerCount int, leaving bool) error {
	if target == WorkspaceOwner {
		if ownerCount <= 1 {
			if leaving {
				return conflict("cannot leave the workspace as the only owner, transfer ownership first or delete the workspace")
			}
			return conflict("cannot remove the only owner of the workspace")
		}
		if actor != WorkspaceOwner {
			return forbidden("only owners can remove other owners")
		}
	}
	return nil
}

// checkWorkspaceRoleChange enforces that only owners grant or revoke
// ownership and that the last owner is never demoted.
func checkWorkspaceRoleChange(actor, current, next WorkspaceRole, ownerCount int) error {
	if (next == WorkspaceOwner || current == WorkspaceOwner) && actor != WorkspaceOwner {
		return forbidden("only owners can grant or revoke the owner role")
	}
	if current == WorkspaceOwner && next != WorkspaceOwner && ownerCount <= 1 {
		return conflict("cannot demote the only owner of the workspace")
	}
	return nil
}
