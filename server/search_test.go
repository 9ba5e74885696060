package main

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardFilter(t *testing.T) {
	assert.Equal(t, "board_id IN [4]", boardFilter([]int64{4}))
	assert.Equal(t, "board_id IN [1, 2, 30]", boardFilter([]int64{1, 2, 30}))
}

func TestNilSearchIsInert(t *testing.T) {
	var s *activitySearch
	assert.False(t, s.Healthy())
	assert.NotPanics(t, func() { s.Index(Activity{ID: 1}) })
}

func TestSearchActivitiesQuery(t *testing.T) {
	board := int64(5)
	query, args, err := searchActivitiesQuery(9, "move", &board, 50).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, query, "board_members")
	assert.Contains(t, query, "a.board_id = $1")
	assert.Contains(t, query, "a.action_type ILIKE $2")
	assert.Contains(t, query, "LIMIT 50")
	assert.Equal(t, []any{int64(5), "%move%", "%move%"}, args)

	query, args, err = searchActivitiesQuery(9, "move", nil, 50).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "bm.user_id=$1")
	assert.Contains(t, query, "(a.board_id is null and a.user_id = $3)")
	assert.Contains(t, query, "u.name ILIKE $5")
	assert.Equal(t, []any{int64(9), int64(9), int64(9), "%move%", "%move%"}, args)
}

func TestSearchActivitiesSQLOnBoard(t *testing.T) {
	s, mock := newMockStore(t)
	board := int64(5)
	mock.ExpectQuery(`WHERE a.board_id = \$1 AND \(a.action_type ILIKE \$2 OR u.name ILIKE \$3\)`).
		WithArgs(board, "%move%", "%move%").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	items, err := s.SearchActivitiesSQL(context.Background(), 9, "move", &board, 50)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
