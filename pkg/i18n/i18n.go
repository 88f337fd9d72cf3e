// Package i18n translates interface messages and picks the locale of each
// request.
//
// Catalogs are YAML files named messages.<locale>.yaml. Nested keys are
// flattened with dots, so
//
//	search:
//	  results: "%count% listings found"
//
// is looked up as "search.results" with a "count" parameter.
package i18n

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/rubiojr/roost/pkg/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed catalogs/*.yaml
var catalogsFS embed.FS

// Query parameter and cookie selecting the locale.
const (
	LocaleParam  = "_locale"
	LocaleCookie = "_locale"
)

var logger = log.ForService("i18n")

type Translator struct {
	fallback string
	locales  []string
	// ordered is locales with the fallback first, as given to matcher.
	ordered  []string
	catalogs map[string]map[string]string
	matcher  language.Matcher
}

// New loads the embedded catalogs for locales. fallback must be one of them.
func New(fallback string, locales []string) (*Translator, error) {
	return Load(catalogsFS, "catalogs", fallback, locales)
}

// Load reads messages.<locale>.yaml from dir in fsys for every locale.
// Locales without a catalog fall back to the fallback locale's messages.
func Load(fsys fs.FS, dir, fallback string, locales []string) (*Translator, error) {
	if len(locales) == 0 {
		locales = []string{fallback}
	}

	t := &Translator{
		fallback: fallback,
		locales:  locales,
		catalogs: make(map[string]map[string]string),
	}

	hasFallback := false
	for _, locale := range locales {
		if _, err := language.Parse(locale); err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
		}
		if locale == fallback {
			hasFallback = true
		}

		data, err := fs.ReadFile(fsys, dir+"/messages."+locale+".yaml")
		if err != nil {
			logger.Warnf("no catalog for locale %s", locale)
			continue
		}
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parsing catalog %s: %w", locale, err)
		}
		messages := make(map[string]string)
		flatten("", tree, messages)
		t.catalogs[locale] = messages
	}
	if !hasFallback {
		return nil, fmt.Errorf("fallback locale %q is not in %v", fallback, locales)
	}

	// The first supported tag is the matcher default.
	t.ordered = append(t.ordered, fallback)
	for _, l := range locales {
		if l != fallback {
			t.ordered = append(t.ordered, l)
		}
	}
	tags := make([]language.Tag, len(t.ordered))
	for i, l := range t.ordered {
		tags[i] = language.Make(l)
	}
	t.matcher = language.NewMatcher(tags)
	return t, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

func (t *Translator) Fallback() string { return t.fallback }

func (t *Translator) Locales() []string { return t.locales }

// Supports reports whether locale is configured.
func (t *Translator) Supports(locale string) bool {
	for _, l := range t.locales {
		if l == locale {
			return true
		}
	}
	return false
}

// Trans returns the message for key in locale, then in the fallback locale,
// then key itself. %name% placeholders are replaced from params.
func (t *Translator) Trans(key string, params map[string]string, locale string) string {
	msg, ok := t.catalogs[locale][key]
	if !ok {
		msg, ok = t.catalogs[t.fallback][key]
	}
	if !ok {
		logger.Debugf("missing translation %s (%s)", key, locale)
		msg = key
	}
	if len(params) == 0 {
		return msg
	}

	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "%"+k+"%", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// Title capitalizes a label the way locale does.
func Title(s, locale string) string {
	return cases.Title(language.Make(locale)).String(s)
}

// Match returns the configured locale best matching an Accept-Language
// header, or the fallback.
func (t *Translator) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return t.fallback
	}
	_, index, confidence := t.matcher.Match(tags...)
	if confidence == language.No || index < 0 || index >= len(t.ordered) {
		return t.fallback
	}
	return t.ordered[index]
}

type contextKey struct{}

// WithLocale returns a context carrying locale.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, contextKey{}, locale)
}

// LocaleFromContext returns the request locale, or "" when unset.
func LocaleFromContext(ctx context.Context) string {
	locale, _ := ctx.Value(contextKey{}).(string)
	return locale
}

// Middleware resolves the locale of each request from the _locale query
// parameter, the _locale cookie, then Accept-Language. An explicit
// _locale is remembered in the cookie.
func (t *Translator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := ""
		if q := r.URL.Query().Get(LocaleParam); q != "" && t.Supports(q) {
			locale = q
			http.SetCookie(w, &http.Cookie{
				Name:     LocaleCookie,
				Value:    q,
				Path:     "/",
				MaxAge:   365 * 24 * 3600,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		if locale == "" {
			if c, err := r.Cookie(LocaleCookie); err == nil && t.Supports(c.Value) {
				locale = c.Value
			}
		}
		if locale == "" {
			locale = t.Match(r.Header.Get("Accept-Language"))
		}
		next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
	})
}
