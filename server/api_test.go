package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	api      *api
	mux      *http.ServeMux
	mock     sqlmock.Sqlmock
	sessions *redisSessions
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	sessions, err := newRedisSessions(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	cfg := defaultConfig()
	cfg.Storage.Dir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	blobs, err := newDiskBlobs(cfg.Storage.Dir, cfg.Storage.PublicURL)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := newAPI(cfg, NewStore(db), sessions, blobs, nil, log)
	mux := http.NewServeMux()
	a.routes(mux)
	return &testServer{api: a, mux: mux, mock: mock, sessions: sessions}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

// login stores a session for userID and expects the user lookup that follows.
func (ts *testServer) login(t *testing.T, userID int64, email string) string {
	t.Helper()
	token, _, err := ts.sessions.Create(context.Background(), userID, time.Hour)
	require.NoError(t, err)
	ts.mock.ExpectQuery(`from users u where u.id=\$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "avatar_url", "created_at"}).
			AddRow(userID, "Ada", email, "", time.Now()))
	return token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthenticated.", decodeBody(t, rec)["message"])

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-session")
	assert.Equal(t, http.StatusUnauthorized, ts.do(req).Code)
}

func TestMeWithBearerAndCookie(t *testing.T) {
	ts := newTestServer(t, nil)

	token := ts.login(t, 42, "ada@example.com")
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada@example.com", decodeBody(t, rec)["email"])

	token = ts.login(t, 42, "ada@example.com")
	req = httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(&http.Cookie{Name: ts.api.cfg.Session.CookieName, Value: token})
	assert.Equal(t, http.StatusOK, ts.do(req).Code)
	assert.NoError(t, ts.mock.ExpectationsWereMet())
}

func TestRegisterValidationEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)
	body := `{"name":"","email":"nope","password":"short","password_confirmation":"other"}`
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(body)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	out := decodeBody(t, rec)
	assert.Equal(t, "The given data was invalid.", out["message"])
	errs, ok := out["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "name")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
	assert.Contains(t, errs, "password_confirmation")
	assert.Equal(t, []any{"The name field is required."}, errs["name"])
}

func TestRegisterRejectsUnknownFields(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(`{"admin":true}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmailEndpointsNeedAPIKey(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/cards/from-email/validate", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ts = newTestServer(t, func(c *Config) { c.EmailAPIKey = "s3cret" })
	req := httptest.NewRequest(http.MethodPost, "/api/cards/from-email", strings.NewReader(`{}`))
	req.Header.Set("X-API-Key", "guess")
	rec = ts.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid API key", decodeBody(t, rec)["message"])

	req = httptest.NewRequest(http.MethodPost, "/api/cards/from-email/validate", strings.NewReader(`{}`))
	req.Header.Set("X-API-Key", "s3cret")
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(req).Code)
}

func TestBoardReadGate(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, 7, "eve@example.com")
	ts.mock.ExpectQuery(`select b.visibility`).
		WithArgs(int64(5), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"visibility", "bm", "wm"}).AddRow("private", false, true))

	req := httptest.NewRequest(http.MethodGet, "/api/boards/5/labels", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := ts.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, ts.mock.ExpectationsWereMet())
}

func TestBoardGateMissingBoard(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, 7, "eve@example.com")
	ts.mock.ExpectQuery(`select b.visibility`).
		WillReturnRows(sqlmock.NewRows([]string{"visibility", "bm", "wm"}))

	req := httptest.NewRequest(http.MethodGet, "/api/boards/404/labels", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := ts.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "board not found", decodeBody(t, rec)["message"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody(t, rec)
	assert.Equal(t, "ok", out["db"])
	assert.Equal(t, false, out["search"])
}

func TestPathID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetPathValue("id", "abc")
	rec := httptest.NewRecorder()
	_, ok := pathID(rec, req, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req.SetPathValue("id", "12")
	id, ok := pathID(httptest.NewRecorder(), req, "id")
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&page=-3&junk=x", nil)
	assert.Equal(t, 100, queryInt(req, "limit", 20, 1, 100))
	assert.Equal(t, 1, queryInt(req, "page", 1, 1, 0))
	assert.Equal(t, 20, queryInt(req, "junk", 20, 1, 100))
	assert.Equal(t, 20, queryInt(req, "missing", 20, 1, 100))
}

func TestLastPage(t *testing.T) {
	assert.Equal(t, 1, lastPage(0, 20))
	assert.Equal(t, 1, lastPage(20, 20))
	assert.Equal(t, 2, lastPage(21, 20))
	assert.Equal(t, 5, lastPage(100, 20))
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, nil)
	assert.True(t, ts.api.allow("10.0.0.1", "auth", 2, time.Minute))
	assert.True(t, ts.api.allow("10.0.0.1", "auth", 2, time.Minute))
	assert.False(t, ts.api.allow("10.0.0.1", "auth", 2, time.Minute))
	assert.True(t, ts.api.allow("10.0.0.2", "auth", 2, time.Minute))
}

func TestSearchActivitiesOnPublicBoard(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, 7, "eve@example.com")
	ts.mock.ExpectQuery(`select b.visibility`).
		WithArgs(int64(5), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"visibility", "bm", "wm"}).AddRow("public", false, false))
	ts.mock.ExpectQuery(`WHERE a.board_id = \$1 AND`).
		WithArgs(int64(5), "%card%", "%card%").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest(http.MethodGet, "/api/activities/search?query=card&board_id=5", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody(t, rec)
	assert.Equal(t, "sql", out["engine"])
	assert.Equal(t, []any{}, out["activities"])
	assert.NoError(t, ts.mock.ExpectationsWereMet())
}

func TestMyActivityCoversWholeBoards(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, 7, "eve@example.com")
	ts.mock.ExpectQuery(`FROM activities a join users u`).
		WithArgs(int64(7), int64(7), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest(http.MethodGet, "/api/activities/my-activity", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, ts.do(req).Code)
	assert.NoError(t, ts.mock.ExpectationsWereMet())
}

func TestEmailCardCreatedWhenReloadFails(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.EmailAPIKey = "s3cret" })
	m := ts.mock
	m.ExpectBegin()
	m.ExpectQuery(`from users u where lower\(u.email\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "avatar_url", "created_at"}).
			AddRow(int64(1), "Ada", "ada@example.com", "", time.Now()))
	m.ExpectQuery(`select w.id from workspaces`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
	m.ExpectQuery(`select b.id from boards`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	m.ExpectQuery(`select b.visibility`).
		WillReturnRows(sqlmock.NewRows([]string{"visibility", "bm", "wm"}).AddRow("workspace", true, true))
	m.ExpectQuery(`select l.id from lists`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(4)))
	m.ExpectQuery(`select coalesce\(max\(position\), -1\) \+ 1 from cards`).
		WillReturnRows(sqlmock.NewRows([]string{"pos"}).AddRow(0))
	m.ExpectQuery(`insert into cards`).WillReturnRows(cardRow(12, 4, 0))
	m.ExpectQuery(`insert into activities`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(50)))
	m.ExpectCommit()
	m.ExpectQuery(`FROM activities a join users u`).WillReturnError(errors.New("connection reset"))
	m.ExpectQuery(`from cards c where c.id=\$1`).WithArgs(int64(12)).WillReturnError(errors.New("connection reset"))

	body := `{"from_email":"ada@example.com","workspace":"Acme","board":"Roadmap","list":"Inbox","title":"From the mailbox"}`
	req := httptest.NewRequest(http.MethodPost, "/api/cards/from-email", strings.NewReader(body))
	req.Header.Set("X-API-Key", "s3cret")
	rec := ts.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)
	out := decodeBody(t, rec)
	assert.Equal(t, "Card created from email successfully", out["message"])
	assert.Equal(t, map[string]any{"id": float64(12)}, out["card"])
	assert.NoError(t, m.ExpectationsWereMet())
}
