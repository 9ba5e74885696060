package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

type api struct {
	store    *Store
	log      *slog.Logger
	bus      *EventBus
	sessions sessionStore
	blobs    blobStore
	search   *activitySearch
	text     *textRenderer
	validate *validator.Validate
	cfg      Config
	// rate limiting buckets per IP:key
	rlMu sync.Mutex
	rl   map[string]*rateBucket
}

func newAPI(cfg Config, store *Store, sessions sessionStore, blobs blobStore, search *activitySearch, log *slog.Logger) *api {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &api{
		store:    store,
		log:      log,
		bus:      NewEventBus(),
		sessions: sessions,
		blobs:    blobs,
		search:   search,
		text:     newTextRenderer(),
		validate: v,
		cfg:      cfg,
		rl:       map[string]*rateBucket{},
	}
}

type rateBucket struct {
	count   int
	resetAt time.Time
}

func (a *api) allow(ip, key string, max int, window time.Duration) bool {
	now := time.Now()
	rk := ip + ":" + key
	a.rlMu.Lock()
	defer a.rlMu.Unlock()
	b, ok := a.rl[rk]
	if !ok || now.After(b.resetAt) {
		b = &rateBucket{resetAt: now.Add(window)}
		a.rl[rk] = b
	}
	if b.count >= max {
		return false
	}
	b.count++
	return true
}

func (a *api) withRateLimit(name string, max int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !a.allow(ip, name, max, window) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}

func parseID(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

// pathID reads a numeric path value, answering 404 when it is not a number.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := parseID(r.PathValue(name))
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "not found")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def, min, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

func queryID(r *http.Request, name string) *int64 {
	id, err := parseID(r.URL.Query().Get(name))
	if err != nil {
		return nil
	}
	return &id
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

// decode reads and validates a request body. It writes the error response
// itself and reports whether the handler should continue.
func (a *api) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := readJSON(w, r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return a.check(w, dst)
}

func (a *api) check(w http.ResponseWriter, v any) bool {
	err := a.validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	fields := map[string][]string{}
	for _, fe := range verrs {
		field := strings.SplitN(fe.Namespace(), ".", 2)
		name := fe.Field()
		if len(field) == 2 {
			name = field[1]
		}
		fields[name] = append(fields[name], validationMessage(fe))
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": "The given data was invalid.",
		"errors":  fields,
	})
	return false
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "The " + fe.Field() + " field is required."
	case "email":
		return "The " + fe.Field() + " must be a valid email address."
	case "oneof":
		return "The selected " + fe.Field() + " is invalid."
	case "max":
		return "The " + fe.Field() + " may not be greater than " + fe.Param() + "."
	case "min":
		return "The " + fe.Field() + " must be at least " + fe.Param() + "."
	case "eqfield":
		return "The " + fe.Field() + " confirmation does not match."
	}
	return "The " + fe.Field() + " is invalid."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"message": msg})
}

// fail maps store errors onto the response taxonomy. Anything that is not a
// known rule violation is logged under op and hidden behind a 500.
func (a *api) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, messageOf(err, "not found"))
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, messageOf(err, "Unauthorized"))
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusUnprocessableEntity, messageOf(err, "conflict"))
	default:
		a.log.Error(op, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// cookie/session helpers
func (a *api) sameSite() http.SameSite {
	switch strings.ToLower(a.cfg.Session.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (a *api) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.Session.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cfg.Session.Secure,
		SameSite: a.sameSite(),
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
	})
}

func (a *api) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cfg.Session.Secure,
		SameSite: a.sameSite(),
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// sessionToken takes the cookie first and falls back to a bearer header.
func (a *api) sessionToken(r *http.Request) string {
	if c, err := r.Cookie(a.cfg.Session.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return ""
}

func (a *api) currentUser(r *http.Request) (*User, error) {
	tok := a.sessionToken(r)
	if tok == "" {
		return nil, ErrNotFound
	}
	uid, err := a.sessions.UserID(r.Context(), tok)
	if err != nil {
		return nil, err
	}
	u, err := a.store.GetUser(r.Context(), uid)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type ctxKey int

const userKey ctxKey = 0

// userFrom returns the user stored by requireAuth.
func userFrom(r *http.Request) *User {
	u, _ := r.Context().Value(userKey).(*User)
	return u
}

// requireAuth wraps a handler and enforces a valid session
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := a.currentUser(r)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				a.log.Warn("session lookup", "err", err)
			}
			writeError(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	}
}

// requireAPIKey gates machine endpoints on X-API-Key. An unset key turns
// them off.
func (a *api) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.EmailAPIKey == "" {
			writeError(w, http.StatusServiceUnavailable, "email integration is not configured")
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(a.cfg.EmailAPIKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		next(w, r)
	}
}

// gateBoard checks the caller against a board: the visibility gate for
// reads, membership for writes.
func (a *api) gateBoard(w http.ResponseWriter, r *http.Request, boardID int64, write bool) bool {
	uid := userFrom(r).ID
	ok, err := a.store.CanAccessBoard(r.Context(), boardID, uid)
	if err == nil && ok && write {
		ok, err = a.store.IsBoardMember(r.Context(), boardID, uid)
	}
	if err != nil {
		a.fail(w, "board gate", err)
		return false
	}
	if !ok {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return false
	}
	return true
}

// gateEntity resolves the board that owns an entity and applies gateBoard.
func (a *api) gateEntity(w http.ResponseWriter, r *http.Request, e entity, id int64, write bool) (int64, bool) {
	boardID, err := a.store.BoardIDOf(r.Context(), e, id)
	if err != nil {
		a.fail(w, "resolve board", err)
		return 0, false
	}
	return boardID, a.gateBoard(w, r, boardID, write)
}

// gateMany authorizes a batch of entities, all of which must sit on boards
// the caller is a member of. It returns the distinct board ids.
func (a *api) gateMany(w http.ResponseWriter, r *http.Request, e entity, ids []int64) ([]int64, bool) {
	owners, err := a.store.BoardIDsOf(r.Context(), e, ids)
	if err != nil {
		a.fail(w, "resolve boards", err)
		return nil, false
	}
	seen := map[int64]bool{}
	var boards []int64
	for _, boardID := range owners {
		if seen[boardID] {
			continue
		}
		seen[boardID] = true
		ok, err := a.store.IsBoardMember(r.Context(), boardID, userFrom(r).ID)
		if err != nil {
			a.fail(w, "board gate", err)
			return nil, false
		}
		if !ok {
			writeError(w, http.StatusForbidden, "Unauthorized")
			return nil, false
		}
		boards = append(boards, boardID)
	}
	return boards, true
}

// record appends an activity row and pushes it to search. Failures are
// logged and never fail the request.
func (a *api) record(r *http.Request, boardID int64, cardID *int64, action string, data map[string]any) {
	raw, err := json.Marshal(data)
	if err != nil {
		a.log.Warn("activity encode", "action", action, "err", err)
		return
	}
	act, err := a.store.CreateActivity(r.Context(), Activity{
		UserID:     userFrom(r).ID,
		BoardID:    &boardID,
		CardID:     cardID,
		ActionType: action,
		ActionData: raw,
	})
	if err != nil {
		a.log.Warn("activity", "action", action, "err", err)
		return
	}
	a.search.Index(act)
}

func (a *api) publish(r *http.Request, boardID int64, typ, entity string, id int64, payload any) {
	var actor int64
	if u := userFrom(r); u != nil {
		actor = u.ID
	}
	a.bus.Publish(Event{Type: typ, Entity: entity, BoardID: boardID, ID: id, ActorID: actor, Payload: payload})
}

func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Info("http", "method", r.Method, "path", r.URL.Path, "status", sw.status, "dur_ms", time.Since(start).Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Implement http.Flusher if underlying writer supports it (needed for SSE)
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
