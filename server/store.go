package main

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// psql builds Postgres-flavoured statements.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ querier = (*sql.DB)(nil)
	_ querier = (*sql.Tx)(nil)
)

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// inTx runs fn inside a transaction and commits only when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// execUpdate runs a built UPDATE and maps zero affected rows to ErrNotFound.
func execUpdate(ctx context.Context, q querier, b sq.UpdateBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func execDelete(ctx context.Context, q querier, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func noRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// selectAll runs a built SELECT and scans every row with scan.
func selectAll[T any](ctx context.Context, q querier, b sq.SelectBuilder, scan func(scanner) (T, error)) ([]T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// setTime applies o to col when the field was present.
func setTime(b sq.UpdateBuilder, col string, o optionalTime) sq.UpdateBuilder {
	if !o.Set {
		return b
	}
	if o.Value == nil {
		return b.Set(col, nil)
	}
	return b.Set(col, *o.Value)
}

func noRowsMsg(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(msg)
	}
	return err
}

const schema = `
create table if not exists users(
    id bigserial primary key,
    name text not null,
    email text unique not null,
    password_hash text not null,
    avatar_url text,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create unique index if not exists users_email_lower_idx on users(lower(email));

create table if not exists sessions(
    id bigserial primary key,
    user_id bigint not null references users(id) on delete cascade,
    token text unique not null,
    created_at timestamptz not null default now(),
    expires_at timestamptz not null
);

create table if not exists workspaces(
    id bigserial primary key,
    name text not null check (length(name) > 0),
    description text,
    visibility text not null default 'private' check (visibility in ('private','workspace','public')),
    created_by bigint not null references users(id) on delete cascade,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create table if not exists workspace_members(
    workspace_id bigint not null references workspaces(id) on delete cascade,
    user_id bigint not null references users(id) on delete cascade,
    role text not null check (role in ('owner','admin','member','guest')),
    invited_by bigint references users(id) on delete set null,
    joined_at timestamptz not null default now(),
    primary key(workspace_id, user_id)
);

create table if not exists boards(
    id bigserial primary key,
    workspace_id bigint not null references workspaces(id) on delete cascade,
    title text not null check (length(title) > 0),
    description text,
    background_type text not null default 'color' check (background_type in ('color','image')),
    background_value text,
    visibility text not null default 'workspace' check (visibility in ('private','workspace','public')),
    created_by bigint not null references users(id) on delete cascade,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create index if not exists boards_workspace_idx on boards(workspace_id);
create table if not exists board_members(
    board_id bigint not null references boards(id) on delete cascade,
    user_id bigint not null references users(id) on delete cascade,
    role text not null check (role in ('admin','member')),
    added_by bigint references users(id) on delete set null,
    created_at timestamptz not null default now(),
    primary key(board_id, user_id)
);

create table if not exists lists(
    id bigserial primary key,
    board_id bigint not null references boards(id) on delete cascade,
    title text not null check (length(title) > 0),
    position integer not null default 0,
    color varchar(7),
    archived boolean not null default false,
    created_by bigint not null references users(id) on delete cascade,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create index if not exists lists_board_idx on lists(board_id);

create table if not exists cards(
    id bigserial primary key,
    list_id bigint not null references lists(id) on delete cascade,
    title text not null check (length(title) > 0),
    description text,
    position integer not null default 0,
    due_date timestamptz,
    due_date_completed boolean not null default false,
    archived boolean not null default false,
    source varchar(20) not null default 'web' check (source in ('web','email','api','mobile')),
    created_by bigint not null references users(id) on delete cascade,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create index if not exists cards_list_idx on cards(list_id);
create index if not exists cards_due_idx on cards(due_date);

create table if not exists labels(
    id bigserial primary key,
    board_id bigint not null references boards(id) on delete cascade,
    name text,
    color varchar(7) not null,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create table if not exists card_labels(
    card_id bigint not null references cards(id) on delete cascade,
    label_id bigint not null references labels(id) on delete cascade,
    created_at timestamptz not null default now(),
    primary key(card_id, label_id)
);
create table if not exists card_members(
    card_id bigint not null references cards(id) on delete cascade,
    user_id bigint not null references users(id) on delete cascade,
    assigned_by bigint references users(id) on delete set null,
    created_at timestamptz not null default now(),
    primary key(card_id, user_id)
);

create table if not exists checklists(
    id bigserial primary key,
    card_id bigint not null references cards(id) on delete cascade,
    title text not null,
    position integer not null default 0,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create table if not exists checklist_items(
    id bigserial primary key,
    checklist_id bigint not null references checklists(id) on delete cascade,
    text text not null,
    position integer not null default 0,
    completed boolean not null default false,
    due_date timestamptz,
    assigned_to bigint references users(id) on delete set null,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create table if not exists comments(
    id bigserial primary key,
    card_id bigint not null references cards(id) on delete cascade,
    user_id bigint not null references users(id) on delete cascade,
    text text not null,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create index if not exists comments_card_idx on comments(card_id);

create table if not exists attachments(
    id bigserial primary key,
    card_id bigint not null references cards(id) on delete cascade,
    type text not null check (type in ('file','link')),
    file_name text not null,
    file_url text not null,
    file_path text,
    display_text text,
    file_size bigint,
    mime_type text,
    uploaded_by bigint not null references users(id) on delete cascade,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create index if not exists attachments_card_idx on attachments(card_id);

create table if not exists activities(
    id bigserial primary key,
    user_id bigint not null references users(id) on delete cascade,
    board_id bigint references boards(id) on delete cascade,
    card_id bigint references cards(id) on delete set null,
    action_type text not null,
    action_data jsonb,
    created_at timestamptz not null default now()
);
create index if not exists activities_board_idx on activities(board_id, created_at desc);
create index if not exists activities_card_idx on activities(card_id);
`
