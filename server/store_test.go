package main

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestNextPosition(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`select coalesce(max(position), -1) + 1 from cards where list_id=$1`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"pos"}).AddRow(3))

	pos, err := nextPosition(context.Background(), s.db, cardOrder, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReorderStopsOnMissingRow(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE lists SET position = \$1, updated_at = now\(\) WHERE id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE lists SET position`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Reorder(context.Background(), listOrder, []PositionUpdate{{ID: 1, Position: 0}, {ID: 99, Position: 1}, {ID: 2, Position: 2}})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "lists 99")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPositionIDs(t *testing.T) {
	assert.Equal(t, []int64{4, 2}, positionIDs([]PositionUpdate{{ID: 4}, {ID: 2, Position: 1}}))
	assert.Empty(t, positionIDs(nil))
}

func TestRemoveBoardMemberKeepsLastAdmin(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`select role from board_members where board_id=$1 and user_id=$2`)).
		WithArgs(int64(3), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))
	mock.ExpectQuery(regexp.QuoteMeta(`select count(*) from board_members where board_id=$1 and role='admin'`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := s.RemoveBoardMember(context.Background(), 3, 7, true)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "only admin")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveBoardMemberUnknown(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`select role from board_members`).
		WillReturnRows(sqlmock.NewRows([]string{"role"}))

	err := s.RemoveBoardMember(context.Background(), 3, 8, false)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddCardMemberDuplicate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`insert into card_members`).
		WithArgs(int64(10), int64(2), int64(1)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.addCardMember(context.Background(), s.db, 10, 2, 1)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "user is already assigned to this card", err.Error())
}

func TestAttachLabelIgnoresDuplicates(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`insert into card_labels\(card_id, label_id\) values\(\$1,\$2\) on conflict do nothing`).
		WithArgs(int64(10), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, s.attachLabel(context.Background(), s.db, 10, 4))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCardFromEmailUnknownSenderRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`from users u where lower\(u.email\)=lower\(\$1\)`).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "avatar_url", "created_at"}))
	mock.ExpectRollback()

	_, err := s.CreateCardFromEmail(context.Background(), EmailCardRequest{
		FromEmail: "ghost@example.com", Workspace: "Acme", Board: "Roadmap", List: "Inbox", Title: "hi",
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "no user found with email ghost@example.com", err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityFilterQuery(t *testing.T) {
	board := int64(5)
	query, args, err := ActivityFilter{BoardID: &board, Limit: 20, Offset: 40}.query().ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "a.board_id = $1")
	assert.Contains(t, query, "LIMIT 20 OFFSET 40")
	assert.Equal(t, []any{int64(5)}, args)

	query, args, err = ActivityFilter{ScopeUserID: 9}.query().ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "bm.user_id=$1")
	assert.Contains(t, query, "wm.user_id=$2")
	assert.Contains(t, query, "(a.board_id is null and a.user_id = $3)")
	assert.NotContains(t, query, "LIMIT")
	assert.Equal(t, []any{int64(9), int64(9), int64(9)}, args)
}

func TestListBoardsQueryPublicBoards(t *testing.T) {
	ws := int64(4)
	query, args, err := listBoardsQuery(9, &ws).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "b.visibility <> $2")
	assert.Contains(t, query, "b.visibility = $4")
	assert.Contains(t, query, "b.workspace_id = $5")
	assert.Equal(t, []any{int64(9), VisibilityPrivate, int64(9), VisibilityPublic, int64(4)}, args)

	query, args, err = listBoardsQuery(9, nil).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, query, "b.visibility = ")
	assert.NotContains(t, query, "workspace_id =")
	assert.Len(t, args, 3)
}

func TestListBoardsInWorkspaceAsStranger(t *testing.T) {
	s, mock := newMockStore(t)
	ws := int64(4)
	mock.ExpectQuery(`b.visibility = \$4\) AND b.workspace_id = \$5`).
		WithArgs(int64(9), VisibilityPrivate, int64(9), VisibilityPublic, int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	boards, err := s.ListBoards(context.Background(), 9, &ws)
	require.NoError(t, err)
	assert.Empty(t, boards)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkItemsRejectsAssigneeOutsideBoard(t *testing.T) {
	s, mock := newMockStore(t)
	stranger := int64(999)
	mock.ExpectQuery(regexp.QuoteMeta(`select role from board_members where board_id=$1 and user_id=$2`)).
		WithArgs(int64(3), stranger).
		WillReturnRows(sqlmock.NewRows([]string{"role"}))

	out := s.BulkItems(context.Background(), 3, 8, []ItemOp{
		{Text: "ship it", AssignedTo: &stranger},
		{Action: "create"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "failed", out[0].Status)
	assert.Equal(t, "user is not a member of this board", out[0].Error)
	assert.Nil(t, out[0].Data)
	assert.Equal(t, "failed", out[1].Status)
	assert.Equal(t, "text is required", out[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkLabelsReportsEachFailure(t *testing.T) {
	s, mock := newMockStore(t)
	labelRow := func(id, boardID int64) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "board_id", "name", "color", "created_at"}).
			AddRow(id, boardID, "bug", "#ff0000", time.Now())
	}
	mock.ExpectQuery(`from labels lb where lb.id=\$1`).WithArgs(int64(11)).WillReturnRows(labelRow(11, 9))
	mock.ExpectQuery(`from labels lb where lb.id=\$1`).WithArgs(int64(12)).WillReturnRows(labelRow(12, 3))
	mock.ExpectExec(regexp.QuoteMeta(`delete from labels where id=$1`)).
		WithArgs(int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	out := s.BulkLabels(context.Background(), 3, []LabelOp{
		{ID: 11, Name: "stolen", Action: "update"},
		{Name: "colourless"},
		{ID: 12, Action: "delete"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, BulkResult{Index: 0, ID: 11, Status: "failed", Error: "label does not belong to this board"}, out[0])
	assert.Equal(t, "failed", out[1].Status)
	assert.Equal(t, "color is required", out[1].Error)
	assert.Equal(t, BulkResult{Index: 2, ID: 12, Status: "deleted"}, out[2])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressOf(t *testing.T) {
	assert.Equal(t, Progress{}, progressOf(nil))
	assert.Equal(t, Progress{}, progressOf([]ChecklistItem{}))
	items := []ChecklistItem{{Completed: true}, {}, {}}
	assert.Equal(t, Progress{Total: 3, Completed: 1, Percentage: 33}, progressOf(items))
	items[1].Completed = true
	assert.Equal(t, Progress{Total: 3, Completed: 2, Percentage: 67}, progressOf(items))
}

func cardRow(id, listID int64, position int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "list_id", "title", "description", "position", "due_date",
		"due_date_completed", "archived", "source", "created_by", "created_at", "updated_at"}).
		AddRow(id, listID, "Ship", "", position, nil, false, false, sourceWeb, int64(1), now, now)
}

func TestMoveCardAcrossLists(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE cards SET list_id = $1, position = $2, updated_at = now() WHERE id = $3`)).
		WithArgs(int64(20), 0, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`from cards c where c.id=\$1`).
		WithArgs(int64(7)).
		WillReturnRows(cardRow(7, 20, 0))

	c, err := s.MoveCard(context.Background(), 7, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(20), c.ListID)
	assert.Equal(t, 0, c.Position)

	mock.ExpectExec(`UPDATE cards SET list_id`).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = s.MoveCard(context.Background(), 404, 20, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCardDueDate(t *testing.T) {
	s, mock := newMockStore(t)

	var p CardPatch
	require.NoError(t, json.Unmarshal([]byte(`{"due_date":null}`), &p))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE cards SET updated_at = now(), due_date = $1 WHERE id = $2`)).
		WithArgs(nil, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`from cards c where c.id=\$1`).WillReturnRows(cardRow(7, 20, 0))
	c, err := s.UpdateCard(context.Background(), 7, p)
	require.NoError(t, err)
	assert.Nil(t, c.DueDate)

	p = CardPatch{}
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Renamed"}`), &p))
	mock.ExpectExec(`^UPDATE cards SET updated_at = now\(\), title = \$1 WHERE id = \$2$`).
		WithArgs("Renamed", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`from cards c where c.id=\$1`).WillReturnRows(cardRow(7, 20, 0))
	_, err = s.UpdateCard(context.Background(), 7, p)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptionalTimeUnmarshal(t *testing.T) {
	var p ItemPatch
	require.NoError(t, json.Unmarshal([]byte(`{}`), &p))
	assert.False(t, p.DueDate.Set)

	require.NoError(t, json.Unmarshal([]byte(`{"due_date":null}`), &p))
	assert.True(t, p.DueDate.Set)
	assert.Nil(t, p.DueDate.Value)

	p = ItemPatch{}
	require.NoError(t, json.Unmarshal([]byte(`{"due_date":"2026-03-01T10:00:00Z"}`), &p))
	require.NotNil(t, p.DueDate.Value)
	assert.True(t, p.DueDate.Value.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))

	assert.Error(t, json.Unmarshal([]byte(`{"due_date":"tomorrow"}`), &p))
}
