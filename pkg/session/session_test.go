package session

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rubiojr/roost/pkg/db"
	"github.com/rubiojr/roost/pkg/search"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.InitializeDatabase(context.Background(), conn); err != nil {
		t.Fatal(err)
	}
	st, err := NewStore(conn, Options{Secret: testSecret, TTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestNewStoreRequiresSecret(t *testing.T) {
	if _, err := NewStore(nil, Options{Secret: "short"}); err == nil {
		t.Error("expected an error for a short secret")
	}
}

func TestValues(t *testing.T) {
	sess := newSession("id")

	if sess.Has("k") {
		t.Error("empty session has k")
	}
	if err := sess.Set("k", map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	ok, err := sess.Get("k", &got)
	if !ok || err != nil {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got["a"] != 1 || !sess.Dirty() {
		t.Errorf("got %v dirty=%v", got, sess.Dirty())
	}

	sess.Delete("k")
	if sess.Has("k") {
		t.Error("k not deleted")
	}

	var s string
	if ok, err := sess.Get("missing", &s); ok || err != nil {
		t.Errorf("Get(missing) = %v, %v", ok, err)
	}
}

func TestFlashes(t *testing.T) {
	sess := newSession("id")
	sess.AddFlash(FlashError, "one")
	sess.AddFlash(FlashError, "two")
	sess.AddFlash(FlashSuccess, "ok")

	if diff := cmp.Diff([]string{"one", "two"}, sess.Flashes(FlashError)); diff != "" {
		t.Errorf("flashes mismatch (-want +got):\n%s", diff)
	}
	if got := sess.Flashes(FlashError); got != nil {
		t.Errorf("flashes are read once, got %v", got)
	}
	if diff := cmp.Diff([]string{"ok"}, sess.Flashes(FlashSuccess)); diff != "" {
		t.Errorf("success flashes mismatch (-want +got):\n%s", diff)
	}
	if sess.Has(keyFlashes) {
		t.Error("empty flash bag left in the session")
	}
}

func TestTypedHelpers(t *testing.T) {
	sess := newSession("id")
	def := search.NewRequest(20)

	if diff := cmp.Diff(def, sess.SearchRequest(def)); diff != "" {
		t.Errorf("default request mismatch (-want +got):\n%s", diff)
	}

	req := search.NewRequest(10)
	req.Keywords = "loft"
	req.SimilarListings = []int64{4, 2}
	if err := sess.SetSearchRequest(req); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(req, sess.SearchRequest(def)); diff != "" {
		t.Errorf("stored request mismatch (-want +got):\n%s", diff)
	}

	if got := sess.Currency("EUR"); got != "EUR" {
		t.Errorf("Currency default = %q", got)
	}
	if err := sess.SetCurrency("USD"); err != nil {
		t.Fatal(err)
	}
	if got := sess.Currency("EUR"); got != "USD" {
		t.Errorf("Currency = %q", got)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	st := newTestStore(t)
	sess := st.New()

	token, err := st.Token(sess)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := st.parseToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Id != sess.ID() {
		t.Errorf("id = %q, want %q", claims.Id, sess.ID())
	}

	other, err := NewStore(st.db, Options{Secret: strings.Repeat("x", 32)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.parseToken(token); err == nil {
		t.Error("token signed with another secret was accepted")
	}
}

func TestSaveAndLoad(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sess := st.New()
	if err := sess.SetCurrency("GBP"); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if sess.Dirty() {
		t.Error("session still dirty after Save")
	}

	token, err := st.Token(sess)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: st.CookieName(), Value: token})

	loaded, err := st.Load(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.ID() != sess.ID() || loaded.IsNew() {
		t.Errorf("loaded %s new=%v, want %s", loaded.ID(), loaded.IsNew(), sess.ID())
	}
	if got := loaded.Currency("EUR"); got != "GBP" {
		t.Errorf("Currency = %q, want GBP", got)
	}

	bad := httptest.NewRequest("GET", "/", nil)
	bad.AddCookie(&http.Cookie{Name: st.CookieName(), Value: "not-a-token"})
	fresh, err := st.Load(ctx, bad)
	if err != nil {
		t.Fatal(err)
	}
	if !fresh.IsNew() || fresh.ID() == sess.ID() {
		t.Error("invalid cookie must start a new session")
	}
}

func TestGC(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	expired := st.New()
	expired.expires = time.Now().Add(-time.Minute)
	_ = expired.Set("k", 1)
	live := st.New()
	_ = live.Set("k", 1)
	for _, s := range []*Session{expired, live} {
		if err := st.Save(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	n, err := st.GC(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("GC removed %d sessions, want 1", n)
	}
}

func TestMiddleware(t *testing.T) {
	st := newTestStore(t)

	h := st.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := FromContext(r.Context())
		if r.URL.Path == "/set" {
			sess.AddFlash(FlashError, "boom")
			return
		}
		for _, msg := range sess.Flashes(FlashError) {
			w.Write([]byte(msg))
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/set", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "roost_session" || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies: %v", cookies)
	}

	read := func() (string, int) {
		req := httptest.NewRequest("GET", "/get", nil)
		req.AddCookie(cookies[0])
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Body.String(), len(rec.Result().Cookies())
	}

	body, setCookies := read()
	if body != "boom" {
		t.Errorf("first read = %q, want boom", body)
	}
	if setCookies != 0 {
		t.Error("a fresh cookie must not be renewed")
	}
	if body, _ := read(); body != "" {
		t.Errorf("second read = %q, want empty", body)
	}
}
