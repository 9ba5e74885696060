package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAccessBoard(t *testing.T) {
	cases := []struct {
		name        string
		vis         Visibility
		board, ws   bool
		wantAllowed bool
	}{
		{"public stranger", VisibilityPublic, false, false, true},
		{"workspace member", VisibilityWorkspace, false, true, true},
		{"workspace board member", VisibilityWorkspace, true, false, true},
		{"workspace stranger", VisibilityWorkspace, false, false, false},
		{"private workspace member", VisibilityPrivate, false, true, false},
		{"private board member", VisibilityPrivate, true, false, true},
		{"unknown visibility", Visibility("secret"), true, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantAllowed, canAccessBoard(tc.vis, tc.board, tc.ws))
		})
	}
}

func TestCanAccessWorkspace(t *testing.T) {
	assert.True(t, canAccessWorkspace(VisibilityPublic, ""))
	assert.True(t, canAccessWorkspace(VisibilityPrivate, WorkspaceGuest))
	assert.False(t, canAccessWorkspace(VisibilityPrivate, ""))
	assert.False(t, canAccessWorkspace(VisibilityWorkspace, ""))
}

func TestManagesWorkspace(t *testing.T) {
	assert.True(t, WorkspaceOwner.managesWorkspace())
	assert.True(t, WorkspaceAdmin.managesWorkspace())
	assert.False(t, WorkspaceRoleMember.managesWorkspace())
	assert.False(t, WorkspaceGuest.managesWorkspace())
}

func TestCheckBoardMemberRemoval(t *testing.T) {
	err := checkBoardMemberRemoval(BoardAdmin, 1, false)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "only admin")

	err = checkBoardMemberRemoval(BoardAdmin, 1, true)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "leave")

	assert.NoError(t, checkBoardMemberRemoval(BoardAdmin, 2, false))
	assert.NoError(t, checkBoardMemberRemoval(BoardRoleMember, 1, true))
}

func TestCheckBoardRoleChange(t *testing.T) {
	assert.ErrorIs(t, checkBoardRoleChange(BoardAdmin, BoardRoleMember, 1), ErrConflict)
	assert.NoError(t, checkBoardRoleChange(BoardAdmin, BoardRoleMember, 2))
	assert.NoError(t, checkBoardRoleChange(BoardAdmin, BoardAdmin, 1))
	assert.NoError(t, checkBoardRoleChange(BoardRoleMember, BoardAdmin, 1))
}

func TestCheckWorkspaceMemberRemoval(t *testing.T) {
	assert.ErrorIs(t, checkWorkspaceMemberRemoval(WorkspaceOwner, WorkspaceOwner, 1, true), ErrConflict)
	assert.ErrorIs(t, checkWorkspaceMemberRemoval(WorkspaceOwner, WorkspaceOwner, 1, false), ErrConflict)
	assert.ErrorIs(t, checkWorkspaceMemberRemoval(WorkspaceAdmin, WorkspaceOwner, 2, false), ErrForbidden)
	assert.NoError(t, checkWorkspaceMemberRemoval(WorkspaceOwner, WorkspaceOwner, 2, false))
	assert.NoError(t, checkWorkspaceMemberRemoval(WorkspaceAdmin, WorkspaceRoleMember, 1, false))
}

func TestCheckWorkspaceRoleChange(t *testing.T) {
	assert.ErrorIs(t, checkWorkspaceRoleChange(WorkspaceAdmin, WorkspaceRoleMember, WorkspaceOwner, 1), ErrForbidden)
	assert.ErrorIs(t, checkWorkspaceRoleChange(WorkspaceAdmin, WorkspaceOwner, WorkspaceRoleMember, 2), ErrForbidden)
	assert.ErrorIs(t, checkWorkspaceRoleChange(WorkspaceOwner, WorkspaceOwner, WorkspaceAdmin, 1), ErrConflict)
	assert.NoError(t, checkWorkspaceRoleChange(WorkspaceOwner, WorkspaceOwner, WorkspaceAdmin, 2))
	assert.NoError(t, checkWorkspaceRoleChange(WorkspaceAdmin, WorkspaceGuest, WorkspaceRoleMember, 1))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "label not found", messageOf(notFound("label not found"), "x"))
	assert.Equal(t, "x", messageOf(ErrNotFound, "x"))
}
