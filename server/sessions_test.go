package main

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionsRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := newRedisSessions(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	token, exp, err := s.Create(ctx, 42, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)
	assert.True(t, mr.Exists("session:"+token))

	id, err := s.UserID(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	require.NoError(t, s.Revoke(ctx, token))
	_, err = s.UserID(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisSessionsExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := newRedisSessions(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	token, _, err := s.Create(ctx, 7, time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = s.UserID(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewRedisSessionsBadURL(t *testing.T) {
	_, err := newRedisSessions(context.Background(), "://nope")
	assert.Error(t, err)
}

func TestPgSessionsUnknownToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`select user_id from sessions`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	s := &pgSessions{db: db}
	_, err = s.UserID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSessionTokenUnique(t *testing.T) {
	a, err := newSessionToken()
	require.NoError(t, err)
	b, err := newSessionToken()
	require.NoError(t, err)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
