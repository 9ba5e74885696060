//go:build integration

package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var itStore *Store

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("kanban"),
		postgres.WithUsername("kanban"),
		postgres.WithPassword("kanban"),
		testcontainers.WithWaitStrategy(
			// postgres restarts once after init, so the line shows up twice
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("start postgres: %s", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("dsn: %s", err)
	}
	var db *sql.DB
	if db, err = openDB(ctx, dsn); err != nil {
		log.Fatalf("open db: %s", err)
	}
	itStore = NewStore(db)
	if err := itStore.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %s", err)
	}

	code := m.Run()
	db.Close()
	if err := container.Terminate(ctx); err != nil {
		log.Printf("terminate postgres: %s", err)
	}
	os.Exit(code)
}

func TestBoardLifecycle(t *testing.T) {
	ctx := context.Background()
	s := itStore

	ada, err := s.CreateUser(ctx, "Ada", "ada@example.com", "password123")
	require.NoError(t, err)
	bob, err := s.CreateUser(ctx, "Bob", "bob@example.com", "password123")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "Ada again", "ADA@example.com", "password123")
	assert.ErrorIs(t, err, ErrConflict, "emails are unique regardless of case")

	ws, err := s.CreateWorkspace(ctx, ada.ID, "Acme", "", VisibilityPrivate)
	require.NoError(t, err)
	board, err := s.CreateBoard(ctx, ada.ID, BoardInput{WorkspaceID: ws.ID, Title: "Roadmap", Visibility: VisibilityWorkspace})
	require.NoError(t, err)
	list, err := s.CreateList(ctx, ada.ID, board.ID, "Inbox", "")
	require.NoError(t, err)
	assert.Equal(t, 0, list.Position)

	first, err := s.CreateCard(ctx, ada.ID, CardInput{ListID: list.ID, Title: "first"})
	require.NoError(t, err)
	second, err := s.CreateCard(ctx, ada.ID, CardInput{ListID: list.ID, Title: "second"})
	require.NoError(t, err)
	assert.Equal(t, 0, first.Position)
	assert.Equal(t, 1, second.Position)

	t.Run("reorder", func(t *testing.T) {
		require.NoError(t, s.Reorder(ctx, cardOrder, []PositionUpdate{{ID: first.ID, Position: 1}, {ID: second.ID, Position: 0}}))
		got, err := s.GetCard(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Position)
	})

	t.Run("visibility", func(t *testing.T) {
		ok, err := s.CanAccessBoard(ctx, board.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = s.CanAccessBoard(ctx, board.ID, ada.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("last admin stays", func(t *testing.T) {
		err := s.RemoveBoardMember(ctx, board.ID, ada.ID, true)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("last owner stays", func(t *testing.T) {
		err := s.RemoveWorkspaceMember(ctx, ws.ID, WorkspaceOwner, ada.ID, true)
		assert.ErrorIs(t, err, ErrConflict)
		err = s.RemoveWorkspaceMember(ctx, ws.ID, WorkspaceOwner, ada.ID, false)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("deleting a board cascades", func(t *testing.T) {
		scratch, err := s.CreateBoard(ctx, ada.ID, BoardInput{WorkspaceID: ws.ID, Title: "Scratch", Visibility: VisibilityPrivate})
		require.NoError(t, err)
		l, err := s.CreateList(ctx, ada.ID, scratch.ID, "Todo", "")
		require.NoError(t, err)
		c, err := s.CreateCard(ctx, ada.ID, CardInput{ListID: l.ID, Title: "gone soon"})
		require.NoError(t, err)
		lb, err := s.CreateLabel(ctx, scratch.ID, "tmp", "#00ff00")
		require.NoError(t, err)

		require.NoError(t, s.DeleteBoard(ctx, scratch.ID))
		_, err = s.GetList(ctx, l.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetCard(ctx, c.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetLabel(ctx, lb.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteBoard(ctx, scratch.ID), ErrNotFound)
	})

	t.Run("card members come from the board", func(t *testing.T) {
		_, err := s.AddCardMember(ctx, first.ID, bob.ID, ada.ID)
		assert.ErrorIs(t, err, ErrConflict)
		_, err = s.AddCardMember(ctx, first.ID, ada.ID, ada.ID)
		require.NoError(t, err)
		_, err = s.AddCardMember(ctx, first.ID, ada.ID, ada.ID)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("email ingestion", func(t *testing.T) {
		_, err := s.CreateLabel(ctx, board.ID, "bug", "#ff0000")
		require.NoError(t, err)

		cardID, err := s.CreateCardFromEmail(ctx, EmailCardRequest{
			FromEmail:   "Ada@Example.com",
			Workspace:   "acme",
			Board:       "roadmap",
			List:        "inbox",
			Title:       "From the mailbox",
			Members:     []string{"ada@example.com"},
			Labels:      []string{"bug"},
			Attachments: []EmailLink{{Name: "mockup", URL: "https://example.com/mockup.png"}},
		})
		require.NoError(t, err)
		card, err := s.GetCard(ctx, cardID)
		require.NoError(t, err)
		assert.Equal(t, sourceEmail, card.Source)
		assert.Equal(t, 2, card.Position)
		assert.Len(t, card.Labels, 1)
		assert.Len(t, card.Members, 1)

		acts, err := s.ListActivities(ctx, ActivityFilter{CardID: &card.ID, Limit: 10})
		require.NoError(t, err)
		require.Len(t, acts, 1)
		assert.Equal(t, "card_created_from_email", acts[0].ActionType)
	})

	t.Run("email rollback", func(t *testing.T) {
		_, err := s.CreateCardFromEmail(ctx, EmailCardRequest{
			FromEmail: "ada@example.com", Workspace: "Acme", Board: "Roadmap", List: "Inbox",
			Title: "half written", Members: []string{"bob@example.com"},
		})
		require.Error(t, err)
		var n int
		require.NoError(t, s.db.QueryRowContext(ctx, `select count(*) from cards where title='half written'`).Scan(&n))
		assert.Zero(t, n)
	})
}
