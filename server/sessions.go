package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionStore maps opaque tokens to user ids.
type sessionStore interface {
	Create(ctx context.Context, userID int64, ttl time.Duration) (token string, expires time.Time, err error)
	UserID(ctx context.Context, token string) (int64, error)
	Revoke(ctx context.Context, token string) error
}

func newSessionToken() (string, error) {
	// 32 random bytes, base64 URL encoded
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type pgSessions struct {
	db *sql.DB
}

func (s *pgSessions) Create(ctx context.Context, userID int64, ttl time.Duration) (string, time.Time, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expires := time.Now().Add(ttl)
	_, err = s.db.ExecContext(ctx, `insert into sessions(user_id, token, expires_at) values($1,$2,$3)`, userID, token, expires)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func (s *pgSessions) UserID(ctx context.Context, token string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `select user_id from sessions where token=$1 and expires_at > now()`, token).Scan(&id)
	return id, noRows(err)
}

func (s *pgSessions) Revoke(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where token=$1`, token)
	return err
}

// redisSessions keeps tokens in Redis with a native TTL.
type redisSessions struct {
	client *redis.Client
	prefix string
}

func newRedisSessions(ctx context.Context, redisURL string) (*redisSessions, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &redisSessions{client: client, prefix: "session:"}, nil
}

func (s *redisSessions) key(token string) string { return s.prefix + token }

func (s *redisSessions) Create(ctx context.Context, userID int64, ttl time.Duration) (string, time.Time, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.client.Set(ctx, s.key(token), strconv.FormatInt(userID, 10), ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("save session: %w", err)
	}
	return token, time.Now().Add(ttl), nil
}

func (s *redisSessions) UserID(ctx context.Context, token string) (int64, error) {
	v, err := s.client.Get(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup session: %w", err)
	}
	return strconv.ParseInt(v, 10, 64)
}

func (s *redisSessions) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *redisSessions) Close() error { return s.client.Close() }
