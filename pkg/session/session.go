// Package session keeps visitor state server side. The session data lives
// as JSON in the sessions table; the cookie only carries a signed token
// with the session id and its expiry.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/rubiojr/roost/pkg/log"
	"github.com/rubiojr/roost/pkg/search"
)

// Well-known session keys.
const (
	KeySearchRequest = "listing_search_request"
	KeyCurrency      = "currency"
	keyFlashes       = "_flashes"
)

// Flash kinds.
const (
	FlashError   = "error"
	FlashSuccess = "success"
)

const timeLayout = "2006-01-02 15:04:05"

var logger = log.ForService("session")

// Session is the state of one visitor. It is not safe for concurrent use;
// each request gets its own copy.
type Session struct {
	id      string
	values  map[string]json.RawMessage
	dirty   bool
	fresh   bool
	expires time.Time
}

func newSession(id string) *Session {
	return &Session{id: id, values: make(map[string]json.RawMessage), fresh: true}
}

func (s *Session) ID() string { return s.id }

// IsNew reports whether the visitor had no valid cookie.
func (s *Session) IsNew() bool { return s.fresh }

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool { return s.dirty }

func (s *Session) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Get decodes the value under key into dest. ok is false when key is unset.
func (s *Session) Get(key string, dest any) (bool, error) {
	raw, ok := s.values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return true, fmt.Errorf("decoding session key %s: %w", key, err)
	}
	return true, nil
}

func (s *Session) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding session key %s: %w", key, err)
	}
	s.values[key] = raw
	s.dirty = true
	return nil
}

func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// SearchRequest returns the stored search request, or def when none is
// stored or it cannot be decoded.
func (s *Session) SearchRequest(def search.Request) search.Request {
	var req search.Request
	ok, err := s.Get(KeySearchRequest, &req)
	if err != nil {
		logger.Warnf("session %s: %v", s.id, err)
		return def
	}
	if !ok {
		return def
	}
	return req
}

func (s *Session) SetSearchRequest(req search.Request) error {
	return s.Set(KeySearchRequest, req)
}

// Currency returns the display currency, or def when unset.
func (s *Session) Currency(def string) string {
	var code string
	if ok, err := s.Get(KeyCurrency, &code); !ok || err != nil || code == "" {
		return def
	}
	return code
}

func (s *Session) SetCurrency(code string) error {
	return s.Set(KeyCurrency, code)
}

func (s *Session) flashes() map[string][]string {
	flashes := make(map[string][]string)
	if _, err := s.Get(keyFlashes, &flashes); err != nil {
		logger.Warnf("session %s: %v", s.id, err)
	}
	return flashes
}

// AddFlash queues a message shown once.
func (s *Session) AddFlash(kind, msg string) {
	flashes := s.flashes()
	flashes[kind] = append(flashes[kind], msg)
	// A map of string slices always encodes.
	_ = s.Set(keyFlashes, flashes)
}

// Flashes returns and clears the queued messages of kind.
func (s *Session) Flashes(kind string) []string {
	flashes := s.flashes()
	msgs, ok := flashes[kind]
	if !ok {
		return nil
	}
	delete(flashes, kind)
	if len(flashes) == 0 {
		s.Delete(keyFlashes)
	} else {
		_ = s.Set(keyFlashes, flashes)
	}
	return msgs
}

// Store persists sessions in SQLite and signs session cookies.
type Store struct {
	db     *sql.DB
	secret []byte
	ttl    time.Duration
	cookie string
	secure bool
	now    func() time.Time
}

type Options struct {
	Secret string
	TTL    time.Duration
	Cookie string
	// Secure marks the cookie HTTPS only.
	Secure bool
}

func NewStore(db *sql.DB, opts Options) (*Store, error) {
	if len(opts.Secret) < 16 {
		return nil, errors.New("session secret must be at least 16 characters")
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * 24 * time.Hour
	}
	if opts.Cookie == "" {
		opts.Cookie = "roost_session"
	}
	return &Store{
		db:     db,
		secret: []byte(opts.Secret),
		ttl:    opts.TTL,
		cookie: opts.Cookie,
		secure: opts.Secure,
		now:    time.Now,
	}, nil
}

func (st *Store) CookieName() string { return st.cookie }

// New returns an empty session with a random id.
func (st *Store) New() *Session {
	sess := newSession(uuid.NewString())
	sess.expires = st.now().Add(st.ttl)
	return sess
}

// Token signs the session id.
func (st *Store) Token(sess *Session) (string, error) {
	claims := jwt.StandardClaims{
		Id:        sess.id,
		IssuedAt:  st.now().Unix(),
		ExpiresAt: sess.expires.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(st.secret)
}

func (st *Store) parseToken(token string) (*jwt.StandardClaims, error) {
	claims := &jwt.StandardClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return st.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(claims.Id); err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}
	return claims, nil
}

// Load returns the session of the request cookie, or a new one when the
// cookie is missing, invalid or expired.
func (st *Store) Load(ctx context.Context, r *http.Request) (*Session, error) {
	c, err := r.Cookie(st.cookie)
	if err != nil {
		return st.New(), nil
	}
	claims, err := st.parseToken(c.Value)
	if err != nil {
		logger.Debugf("rejecting session cookie: %v", err)
		return st.New(), nil
	}

	sess := newSession(claims.Id)
	sess.fresh = false
	sess.expires = time.Unix(claims.ExpiresAt, 0)

	var data string
	err = st.db.QueryRowContext(ctx,
		"SELECT data FROM sessions WHERE id = ? AND expires_at > ?",
		claims.Id, st.now().UTC().Format(timeLayout)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &sess.values); err != nil {
		logger.Warnf("discarding corrupt session %s: %v", claims.Id, err)
		sess.values = make(map[string]json.RawMessage)
	}
	return sess, nil
}

// Save writes the session when it changed.
func (st *Store) Save(ctx context.Context, sess *Session) error {
	if !sess.dirty {
		return nil
	}
	data, err := json.Marshal(sess.values)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	now := st.now().UTC()
	_, err = st.db.ExecContext(ctx, `
		INSERT INTO sessions (id, data, expires_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		sess.id, string(data), sess.expires.UTC().Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	sess.dirty = false
	return nil
}

// Destroy removes the session row.
func (st *Store) Destroy(ctx context.Context, sess *Session) error {
	if _, err := st.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sess.id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// GC deletes expired sessions and returns how many were removed.
func (st *Store) GC(ctx context.Context) (int64, error) {
	res, err := st.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", st.now().UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("collecting sessions: %w", err)
	}
	return res.RowsAffected()
}

// RunGC collects expired sessions every interval until ctx is done.
func (st *Store) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.GC(ctx)
			if err != nil {
				logger.Errorf("%v", err)
				continue
			}
			if n > 0 {
				logger.Infof("removed %d expired sessions", n)
			}
		}
	}
}

type contextKey struct{}

// FromContext returns the session loaded by Middleware. Outside of it a
// throwaway session is returned.
func FromContext(ctx context.Context) *Session {
	if sess, ok := ctx.Value(contextKey{}).(*Session); ok {
		return sess
	}
	return newSession("")
}

// WithSession returns a context carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// Middleware loads the session before the handler and saves it after.
// The cookie is written up front, before any body, and renewed when less
// than half of its lifetime is left.
func (st *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := st.Load(r.Context(), r)
		if err != nil {
			logger.Errorf("%v", err)
			sess = st.New()
		}

		if sess.fresh || sess.expires.Sub(st.now()) < st.ttl/2 {
			sess.expires = st.now().Add(st.ttl)
			if !sess.fresh {
				// Keep the row expiry in line with the new cookie.
				sess.dirty = true
			}
			token, err := st.Token(sess)
			if err != nil {
				logger.Errorf("signing session: %v", err)
			} else {
				http.SetCookie(w, &http.Cookie{
					Name:     st.cookie,
					Value:    token,
					Path:     "/",
					Expires:  sess.expires,
					HttpOnly: true,
					Secure:   st.secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))

		// A client gone mid-request still gets its session saved.
		if err := st.Save(context.WithoutCancel(r.Context()), sess); err != nil {
			logger.Errorf("%v", err)
		}
	})
}
