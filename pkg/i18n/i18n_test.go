package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
)

func newTestTranslator(t *testing.T) *Translator {
	t.Helper()
	tr, err := New("en", []string{"en", "fr"})
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestTrans(t *testing.T) {
	tr := newTestTranslator(t)

	tests := []struct {
		name   string
		key    string
		params map[string]string
		locale string
		want   string
	}{
		{"simple", "search.submit", nil, "en", "Search"},
		{"french", "search.submit", nil, "fr", "Rechercher"},
		{"params", "search.error.price_range", map[string]string{"min": "200", "max": "100"}, "en",
			"The minimum price (200) is higher than the maximum price (100)."},
		{"unknown locale falls back", "search.submit", nil, "de", "Search"},
		{"missing key", "nope.nothing", nil, "en", "nope.nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.Trans(tt.key, tt.params, tt.locale); got != tt.want {
				t.Errorf("Trans = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	tr := newTestTranslator(t)
	for key := range tr.catalogs["en"] {
		if _, ok := tr.catalogs["fr"][key]; !ok {
			t.Errorf("fr catalog misses %s", key)
		}
	}
	for key := range tr.catalogs["fr"] {
		if _, ok := tr.catalogs["en"][key]; !ok {
			t.Errorf("en catalog misses %s", key)
		}
	}
}

func TestLoadFallsBackForMissingCatalog(t *testing.T) {
	fsys := fstest.MapFS{
		"c/messages.en.yaml": {Data: []byte("greeting:\n  hello: Hello %name%\n")},
	}
	tr, err := Load(fsys, "c", "en", []string{"en", "es"})
	if err != nil {
		t.Fatal(err)
	}
	if got := tr.Trans("greeting.hello", map[string]string{"name": "Ana"}, "es"); got != "Hello Ana" {
		t.Errorf("Trans = %q", got)
	}

	if _, err := Load(fsys, "c", "de", []string{"en"}); err == nil {
		t.Error("expected an error for a fallback outside locales")
	}
}

func TestMatch(t *testing.T) {
	tr := newTestTranslator(t)

	tests := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"fr-FR,fr;q=0.9,en;q=0.8", "fr"},
		{"fr-CA", "fr"},
		{"de-DE,en;q=0.5", "en"},
		{"ja", "en"},
		{"garbage;;;", "en"},
	}
	for _, tt := range tests {
		if got := tr.Match(tt.header); got != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	tr := newTestTranslator(t)

	var got string
	h := tr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))

	tests := []struct {
		name       string
		url        string
		cookie     string
		accept     string
		want       string
		wantCookie bool
	}{
		{name: "default", url: "/", want: "en"},
		{name: "accept language", url: "/", accept: "fr", want: "fr"},
		{name: "cookie beats header", url: "/", cookie: "en", accept: "fr", want: "en"},
		{name: "query beats cookie", url: "/?_locale=fr", cookie: "en", want: "fr", wantCookie: true},
		{name: "unsupported query is ignored", url: "/?_locale=de", accept: "fr", want: "fr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LocaleCookie, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got != tt.want {
				t.Errorf("locale = %q, want %q", got, tt.want)
			}
			hasCookie := len(rec.Result().Cookies()) > 0
			if hasCookie != tt.wantCookie {
				t.Errorf("cookie set = %v, want %v", hasCookie, tt.wantCookie)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	if got := Title("maison de ville", "fr"); got != "Maison De Ville" {
		t.Errorf("Title = %q", got)
	}
}
