package main

import (
	"context"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

// userCols selects a user aliased as u; pair it with scanUser.
const userCols = `u.id, u.name, u.email, coalesce(u.avatar_url,''), u.created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, u *User) error {
	return row.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.CreatedAt)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) CreateUser(ctx context.Context, name, email, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	var u User
	err = scanUser(s.db.QueryRowContext(ctx,
		`insert into users(name, email, password_hash) values($1, $2, $3)
		 returning id, name, email, coalesce(avatar_url,''), created_at`,
		name, strings.ToLower(strings.TrimSpace(email)), string(hash)), &u)
	if isUniqueViolation(err) {
		return User{}, conflict("the email has already been taken")
	}
	return u, err
}

// Authenticate returns ErrNotFound for both unknown emails and wrong passwords.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	var u User
	var hash string
	err := s.db.QueryRowContext(ctx,
		`select `+userCols+`, u.password_hash from users u where lower(u.email)=lower($1)`, strings.TrimSpace(email)).
		Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.CreatedAt, &hash)
	if err != nil {
		return User{}, noRows(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := scanUser(s.db.QueryRowContext(ctx, `select `+userCols+` from users u where u.id=$1`, id), &u)
	return u, noRows(err)
}

func (s *Store) userByEmail(ctx context.Context, q querier, email string) (User, error) {
	var u User
	err := scanUser(q.QueryRowContext(ctx, `select `+userCols+` from users u where lower(u.email)=lower($1)`, strings.TrimSpace(email)), &u)
	return u, noRows(err)
}

func (s *Store) UpdateProfile(ctx context.Context, id int64, name, avatarURL *string) (User, error) {
	b := psql.Update("users").Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": id})
	if name != nil {
		b = b.Set("name", *name)
	}
	if avatarURL != nil {
		b = b.Set("avatar_url", nullString(*avatarURL))
	}
	if err := execUpdate(ctx, s.db, b); err != nil {
		return User{}, err
	}
	return s.GetUser(ctx, id)
}

// SearchUsers matches name or email, never returns the caller, and skips
// the excluded ids.
func (s *Store) SearchUsers(ctx context.Context, callerID int64, q string, exclude []int64, limit int) ([]User, error) {
	b := psql.Select(userCols).From("users u").Where(sq.NotEq{"u.id": callerID}).OrderBy("u.name", "u.id").Limit(uint64(limit))
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + q + "%"
		b = b.Where(sq.Or{sq.ILike{"u.name": like}, sq.ILike{"u.email": like}})
	}
	if len(exclude) > 0 {
		b = b.Where(sq.NotEq{"u.id": exclude})
	}
	return s.queryUsers(ctx, b)
}

func (s *Store) queryUsers(ctx context.Context, b sq.SelectBuilder) ([]User, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		var u User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// nullString maps "" to SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
