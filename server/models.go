package main

import (
	"encoding/json"
	"time"
)

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Workspace struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Visibility  Visibility        `json:"visibility"`
	CreatedBy   int64             `json:"created_by"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	BoardsCount int               `json:"boards_count"`
	Creator     *User             `json:"creator,omitempty"`
	Members     []WorkspaceMember `json:"members,omitempty"`
	Boards      []Board           `json:"boards,omitempty"`
}

// WorkspaceMember is a row of workspace_members joined with its user.
type WorkspaceMember struct {
	WorkspaceID int64         `json:"workspace_id"`
	UserID      int64         `json:"user_id"`
	Role        WorkspaceRole `json:"role"`
	InvitedBy   *int64        `json:"invited_by"`
	JoinedAt    time.Time     `json:"joined_at"`
	User        User          `json:"user"`
}

type Board struct {
	ID              int64         `json:"id"`
	WorkspaceID     int64         `json:"workspace_id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	BackgroundType  string        `json:"background_type"`
	BackgroundValue string        `json:"background_value"`
	Visibility      Visibility    `json:"visibility"`
	CreatedBy       int64         `json:"created_by"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Creator         *User         `json:"creator,omitempty"`
	Workspace       *Workspace    `json:"workspace,omitempty"`
	Members         []BoardMember `json:"members,omitempty"`
	Lists           []List        `json:"lists,omitempty"`
	Labels          []Label       `json:"labels,omitempty"`
}

type BoardMember struct {
	BoardID   int64     `json:"board_id"`
	UserID    int64     `json:"user_id"`
	Role      BoardRole `json:"role"`
	AddedBy   *int64    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `json:"user"`
}

type List struct {
	ID        int64     `json:"id"`
	BoardID   int64     `json:"board_id"`
	Title     string    `json:"title"`
	Color     string    `json:"color,omitempty"`
	Position  int       `json:"position"`
	Archived  bool      `json:"archived"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Cards     []Card    `json:"cards,omitempty"`
}

type Card struct {
	ID               int64        `json:"id"`
	ListID           int64        `json:"list_id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	DescriptionHTML  string       `json:"description_html,omitempty"`
	Position         int          `json:"position"`
	DueDate          *time.Time   `json:"due_date"`
	DueDateCompleted bool         `json:"due_date_completed"`
	Archived         bool         `json:"archived"`
	Source           string       `json:"source"`
	CreatedBy        int64        `json:"created_by"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	Creator          *User        `json:"creator,omitempty"`
	List             *List        `json:"list,omitempty"`
	Labels           []Label      `json:"labels,omitempty"`
	Members          []CardMember `json:"members,omitempty"`
	Checklists       []Checklist  `json:"checklists,omitempty"`
	Attachments      []Attachment `json:"attachments,omitempty"`
	Comments         []Comment    `json:"comments,omitempty"`
}

type CardMember struct {
	CardID     int64     `json:"card_id"`
	UserID     int64     `json:"user_id"`
	AssignedBy *int64    `json:"assigned_by"`
	CreatedAt  time.Time `json:"created_at"`
	User       User      `json:"user"`
}

type Label struct {
	ID         int64     `json:"id"`
	BoardID    int64     `json:"board_id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	CreatedAt  time.Time `json:"created_at"`
	CardsCount *int      `json:"cards_count,omitempty"`
}

type Checklist struct {
	ID        int64           `json:"id"`
	CardID    int64           `json:"card_id"`
	Title     string          `json:"title"`
	Position  int             `json:"position"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Items     []ChecklistItem `json:"items"`
	Progress  *Progress       `json:"progress,omitempty"`
}

// Progress is derived from the items on read and never stored.
type Progress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Percentage int `json:"percentage"`
}

type ChecklistItem struct {
	ID          int64      `json:"id"`
	ChecklistID int64      `json:"checklist_id"`
	Text        string     `json:"text"`
	Position    int        `json:"position"`
	Completed   bool       `json:"completed"`
	DueDate     *time.Time `json:"due_date"`
	AssignedTo  *int64     `json:"assigned_to"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Assignee    *User      `json:"assignee,omitempty"`
}

type Comment struct {
	ID        int64     `json:"id"`
	CardID    int64     `json:"card_id"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      *User     `json:"user,omitempty"`
	BoardID   int64     `json:"board_id,omitempty"`
}

const (
	attachmentFile = "file"
	attachmentLink = "link"
)

type Attachment struct {
	ID          int64     `json:"id"`
	CardID      int64     `json:"card_id"`
	Type        string    `json:"type"`
	FileName    string    `json:"file_name"`
	FileURL     string    `json:"file_url"`
	FilePath    string    `json:"-"`
	DisplayText *string   `json:"display_text"`
	FileSize    *int64    `json:"file_size"`
	MimeType    *string   `json:"mime_type"`
	UploadedBy  int64     `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Uploader    *User     `json:"uploader,omitempty"`
}

type Activity struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	BoardID    *int64          `json:"board_id"`
	CardID     *int64          `json:"card_id"`
	ActionType string          `json:"action_type"`
	ActionData json.RawMessage `json:"action_data"`
	CreatedAt  time.Time       `json:"created_at"`
	User       *User           `json:"user,omitempty"`
}

// optionalTime tells an absent JSON field apart from an explicit null, so a
// patch can clear a date.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}
