package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type EmailLink struct {
	Name string `json:"name" validate:"required,max=255"`
	URL  string `json:"url" validate:"required,url"`
}

// EmailCardRequest is what the inbound mail gateway posts. Workspace, board
// and list are addressed by name, people by email.
type EmailCardRequest struct {
	FromEmail   string      `json:"from_email" validate:"required,email"`
	Workspace   string      `json:"workspace" validate:"required"`
	Board       string      `json:"board" validate:"required"`
	List        string      `json:"list" validate:"required"`
	Title       string      `json:"title" validate:"required,max=255"`
	Description string      `json:"description"`
	DueDate     *time.Time  `json:"due_date"`
	Members     []string    `json:"members" validate:"dive,email"`
	Labels      []string    `json:"labels" validate:"dive,min=1,max=255"`
	Attachments []EmailLink `json:"attachments" validate:"dive"`
}

type EmailTarget struct {
	Creator           User     `json:"creator"`
	WorkspaceID       int64    `json:"workspace_id"`
	BoardID           int64    `json:"board_id"`
	ListID            int64    `json:"list_id"`
	UnresolvedMembers []string `json:"unresolved_members"`
}

// resolveEmailTarget walks creator, workspace, board and list by name.
func (s *Store) resolveEmailTarget(ctx context.Context, q querier, req EmailCardRequest) (EmailTarget, error) {
	var t EmailTarget
	creator, err := s.userByEmail(ctx, q, req.FromEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return t, notFound("no user found with email " + req.FromEmail)
		}
		return t, err
	}
	t.Creator = creator

	err = q.QueryRowContext(ctx, `select w.id from workspaces w
		join workspace_members m on m.workspace_id=w.id and m.user_id=$1
		where lower(w.name)=lower($2) order by w.id limit 1`, creator.ID, req.Workspace).Scan(&t.WorkspaceID)
	if err != nil {
		return t, noRowsMsg(err, "workspace not found: "+req.Workspace)
	}
	err = q.QueryRowContext(ctx, `select b.id from boards b
		where b.workspace_id=$1 and lower(b.title)=lower($2) order by b.id limit 1`, t.WorkspaceID, req.Board).Scan(&t.BoardID)
	if err != nil {
		return t, noRowsMsg(err, "board not found: "+req.Board)
	}
	ok, err := s.canAccessBoard(ctx, q, t.BoardID, creator.ID)
	if err != nil {
		return t, err
	}
	if !ok {
		return t, forbidden("user cannot access board " + req.Board)
	}
	err = q.QueryRowContext(ctx, `select l.id from lists l
		where l.board_id=$1 and lower(l.title)=lower($2) and not l.archived order by l.position, l.id limit 1`, t.BoardID, req.List).Scan(&t.ListID)
	if err != nil {
		return t, noRowsMsg(err, "list not found: "+req.List)
	}

	t.UnresolvedMembers = []string{}
	for _, email := range req.Members {
		if _, err := s.boardMemberByEmail(ctx, q, t.BoardID, email); err != nil {
			if !errors.Is(err, ErrNotFound) {
				return t, err
			}
			t.UnresolvedMembers = append(t.UnresolvedMembers, email)
		}
	}
	return t, nil
}

func (s *Store) boardMemberByEmail(ctx context.Context, q querier, boardID int64, email string) (User, error) {
	var u User
	err := scanUser(q.QueryRowContext(ctx, `select `+userCols+` from users u
		join board_members bm on bm.user_id=u.id and bm.board_id=$1
		where lower(u.email)=lower($2)`, boardID, email), &u)
	return u, noRows(err)
}

// ValidateEmailCard resolves a request without writing anything.
func (s *Store) ValidateEmailCard(ctx context.Context, req EmailCardRequest) (EmailTarget, error) {
	return s.resolveEmailTarget(ctx, s.db, req)
}

// CreateCardFromEmail writes the card, its members, labels, link
// attachments and one activity row in a single transaction, returning the
// new card's id.
func (s *Store) CreateCardFromEmail(ctx context.Context, req EmailCardRequest) (int64, error) {
	var cardID int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		t, err := s.resolveEmailTarget(ctx, tx, req)
		if err != nil {
			return err
		}
		card, err := s.createCard(ctx, tx, t.Creator.ID, CardInput{
			ListID:      t.ListID,
			Title:       req.Title,
			Description: req.Description,
			DueDate:     req.DueDate,
			Source:      sourceEmail,
		})
		if err != nil {
			return fmt.Errorf("insert card: %w", err)
		}
		cardID = card.ID

		for _, email := range req.Members {
			u, err := s.boardMemberByEmail(ctx, tx, t.BoardID, email)
			if err != nil {
				return fmt.Errorf("member %s: not a member of the board", email)
			}
			if err := s.addCardMember(ctx, tx, card.ID, u.ID, t.Creator.ID); err != nil {
				return fmt.Errorf("member %s: %w", email, err)
			}
		}
		for _, name := range req.Labels {
			l, err := s.labelByName(ctx, tx, t.BoardID, name)
			if err != nil {
				return fmt.Errorf("label %s: %w", name, err)
			}
			if err := s.attachLabel(ctx, tx, card.ID, l.ID); err != nil {
				return fmt.Errorf("label %s: %w", name, err)
			}
		}
		for _, link := range req.Attachments {
			display := link.Name
			if _, err := s.createAttachment(ctx, tx, Attachment{
				CardID:      card.ID,
				Type:        attachmentLink,
				FileName:    link.Name,
				FileURL:     link.URL,
				DisplayText: &display,
				UploadedBy:  t.Creator.ID,
			}); err != nil {
				return fmt.Errorf("attachment %s: %w", link.Name, err)
			}
		}

		data, _ := json.Marshal(map[string]any{"card_title": card.Title, "from_email": req.FromEmail, "list_id": t.ListID})
		if _, err := s.createActivity(ctx, tx, Activity{
			UserID:     t.Creator.ID,
			BoardID:    &t.BoardID,
			CardID:     &card.ID,
			ActionType: "card_created_from_email",
			ActionData: data,
		}); err != nil {
			return fmt.Errorf("log activity: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cardID, nil
}
