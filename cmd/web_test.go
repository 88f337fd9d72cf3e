package cmd

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/rubiojr/roost/pkg/config"
	"github.com/rubiojr/roost/pkg/currency"
	"github.com/rubiojr/roost/pkg/marker"
	"github.com/rubiojr/roost/pkg/storage"
)

const testSeed = `
categories:
  - id: 1
    names: {en: House, fr: Maison}
  - id: 2
    names: {en: Apartment, fr: Appartement}
listings:
  - id: 1
    price: 10000
    certified: true
    average_rating: 4.5
    location: {city: Paris, country: FR, coordinate: {lat: 48.8566, lng: 2.3522}}
    translations:
      - locale: en
        title: Sunny loft in Paris
        slug: sunny-loft-in-paris
        description: A bright loft with a <b>view</b>.<script>alert(1)</script>
      - locale: fr
        title: Loft ensoleillé à Paris
        slug: loft-ensoleille-a-paris
    images:
      - {name: loft.png, position: 0}
    categories: [2]
  - id: 2
    price: 5000
    average_rating: 3
    location: {city: Lyon, country: FR, coordinate: {lat: 45.764, lng: 4.8357}}
    translations:
      - {locale: en, title: Quiet house near Lyon, slug: quiet-house-near-lyon}
    categories: [1]
  - id: 3
    price: 20000
    certified: true
    average_rating: 5
    location: {city: Nice, country: FR, coordinate: {lat: 43.7102, lng: 7.262}}
    translations:
      - {locale: en, title: Villa with sea view, slug: villa-with-sea-view}
    categories: [1]
  - id: 4
    price: 1000
    status: hidden
    location: {city: Lille, country: FR, coordinate: {lat: 50.63, lng: 3.06}}
    translations:
      - {locale: en, title: Hidden flat, slug: hidden-flat}
`

type testEnv struct {
	server *httptest.Server
	web    *WebServer
	cfg    *config.Config
}

func setupTestWebServer(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	cfg := &config.Config{
		StorageDir:    dir,
		DefaultLocale: "en",
		Locales:       []string{"en", "fr"},
		MaxPerPage:    2,
		Session:       config.SessionConfig{Secret: "0123456789abcdef0123456789abcdef", TTL: config.Duration{Duration: time.Hour}},
		Currency: config.CurrencyInfo{
			Base:    "EUR",
			Default: "EUR",
			Rates:   map[string]float64{"USD": 2},
		},
		Images: config.ImagesConfig{
			PublicDir: filepath.Join(dir, "public"),
			CacheDir:  filepath.Join(dir, "public", "media", "cache"),
			Filters:   map[string]config.ImageFilter{config.DefaultImageFilter: {Width: 8, Height: 8}},
		},
	}
	cfg.Images.Folder = config.DefaultImageFolder
	cfg.Images.DefaultImage = config.DefaultDefaultImage

	store, err := openStore(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	seed, err := storage.ParseSeed(strings.NewReader(testSeed))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Import(ctx, seed); err != nil {
		t.Fatal(err)
	}

	web, err := newWebServer(cfg, store)
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(web.Handler())
	t.Cleanup(server.Close)

	return &testEnv{server: server, web: web, cfg: cfg}
}

// client keeps cookies and does not follow redirects.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, c *http.Client, url string, header ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func document(t *testing.T, resp *http.Response) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func markersOf(t *testing.T, doc *goquery.Document) []marker.Marker {
	t.Helper()
	var markers []marker.Marker
	if err := json.Unmarshal([]byte(doc.Find("script#markers").Text()), &markers); err != nil {
		t.Fatalf("decoding markers: %v", err)
	}
	return markers
}

func TestSearchResultPage(t *testing.T) {
	env := setupTestWebServer(t)
	c := env.client(t)

	resp := get(t, c, env.server.URL+"/listing/search_result?sort_by=price")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	doc := document(t, resp)

	if got := doc.Find(".nb-results").AttrOr("data-count", ""); got != "3" {
		t.Errorf("nb_results = %s, want 3", got)
	}

	var titles []string
	doc.Find(".search-results .listing-card h3").Each(func(_ int, s *goquery.Selection) {
		titles = append(titles, s.Text())
	})
	if diff := cmp.Diff([]string{"Quiet house near Lyon", "Sunny loft in Paris"}, titles); diff != "" {
		t.Errorf("page titles mismatch (-want +got):\n%s", diff)
	}

	markers := markersOf(t, doc)
	if len(markers) != 3 {
		t.Fatalf("got %d markers, want 3", len(markers))
	}
	inPage := map[int64]bool{1: true, 2: true}
	for _, m := range markers {
		wantOpacity := marker.OpacityOffPage
		if inPage[m.ID] {
			wantOpacity = marker.OpacityInPage
		}
		if m.Opacity != wantOpacity {
			t.Errorf("marker %d opacity = %v, want %v", m.ID, m.Opacity, wantOpacity)
		}
	}
	for _, m := range markers {
		for _, o := range markers {
			if inPage[m.ID] && !inPage[o.ID] && m.ZIndex <= o.ZIndex {
				t.Errorf("in-page marker %d zindex %d not above off-page %d zindex %d", m.ID, m.ZIndex, o.ID, o.ZIndex)
			}
		}
	}
	if markers[0].URL != "/listing/quiet-house-near-lyon" {
		t.Errorf("marker url = %q", markers[0].URL)
	}

	next := doc.Find(".pagination a.next").AttrOr("href", "")
	if next != "/listing/search_result?page=2&sort_by=price" {
		t.Errorf("next page link = %q", next)
	}

	var sessionCookie bool
	for _, ck := range resp.Cookies() {
		if ck.Name == env.cfg.Session.Cookie || ck.Name == "roost_session" {
			sessionCookie = true
		}
	}
	if !sessionCookie {
		t.Error("no session cookie set")
	}
}

func TestSearchResultNotSubmitted(t *testing.T) {
	env := setupTestWebServer(t)
	doc := document(t, get(t, env.client(t), env.server.URL+"/listing/search_result"))

	if got := doc.Find(".nb-results").AttrOr("data-count", ""); got != "0" {
		t.Errorf("nb_results = %s, want 0", got)
	}
	if n := doc.Find(".flash-error").Length(); n != 0 {
		t.Errorf("got %d error flashes, want none", n)
	}
	if n := doc.Find(".no-results").Length(); n != 0 {
		t.Error("empty-result message shown before any search")
	}
	if got := markersOf(t, doc); len(got) != 0 {
		t.Errorf("got %d markers, want none", len(got))
	}
}

func TestSearchResultInvalid(t *testing.T) {
	env := setupTestWebServer(t)
	c := env.client(t)

	resp := get(t, c, env.server.URL+"/listing/search_result?price_min=50&price_max=10&sort_by=nope")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	doc := document(t, resp)

	var flashes []string
	doc.Find(".flash-error").Each(func(_ int, s *goquery.Selection) {
		flashes = append(flashes, s.Text())
	})
	want := []string{
		"The minimum price (50) is higher than the maximum price (10).",
		`"nope" is not a valid sort order.`,
	}
	if diff := cmp.Diff(want, flashes); diff != "" {
		t.Errorf("flashes mismatch (-want +got):\n%s", diff)
	}
	if got := doc.Find(".nb-results").AttrOr("data-count", ""); got != "0" {
		t.Errorf("nb_results = %s, want 0", got)
	}
	if !doc.Find("input[name=price_min]").Parent().HasClass("invalid") {
		t.Error("price_min not flagged invalid")
	}
	if v := doc.Find("input[name=price_min]").AttrOr("value", ""); v != "50" {
		t.Errorf("price_min value = %q, want the submitted 50", v)
	}

	// Flashes are shown once.
	doc = document(t, get(t, c, env.server.URL+"/"))
	if n := doc.Find(".flash-error").Length(); n != 0 {
		t.Errorf("flashes shown again: %d", n)
	}
}

func TestSimilarResult(t *testing.T) {
	env := setupTestWebServer(t)

	t.Run("without previous search", func(t *testing.T) {
		resp := get(t, env.client(t), env.server.URL+"/listing/similar_result/1")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if n := document(t, resp).Find(".listing-card").Length(); n != 0 {
			t.Errorf("got %d similar listings, want 0", n)
		}
	})

	t.Run("after a search", func(t *testing.T) {
		c := env.client(t)
		get(t, c, env.server.URL+"/listing/search_result?sort_by=price&max_per_page=1")

		doc := document(t, get(t, c, env.server.URL+"/listing/similar_result/1"))
		var ids []string
		doc.Find(".listing-card").Each(func(_ int, s *goquery.Selection) {
			ids = append(ids, s.AttrOr("data-id", ""))
		})
		// Every match of the search, not only the first page, minus the listing shown.
		if diff := cmp.Diff([]string{"2", "3"}, ids); diff != "" {
			t.Errorf("similar ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("invalid search keeps the previous one", func(t *testing.T) {
		c := env.client(t)
		get(t, c, env.server.URL+"/listing/search_result?keywords=villa")
		get(t, c, env.server.URL+"/listing/search_result?page=0")

		doc := document(t, get(t, c, env.server.URL+"/listing/similar_result/1"))
		if got := doc.Find(".listing-card").AttrOr("data-id", ""); got != "3" {
			t.Errorf("similar listing = %q, want 3", got)
		}
	})
}

func TestSearchFormFragments(t *testing.T) {
	env := setupTestWebServer(t)
	c := env.client(t)

	doc := document(t, get(t, c, env.server.URL+"/fragments/search_result_form"))
	if v := doc.Find("input[name=keywords]").AttrOr("value", "x"); v != "" {
		t.Errorf("default keywords = %q, want empty", v)
	}
	if doc.Find("header.site-header").Length() != 0 {
		t.Error("fragment rendered with the layout")
	}

	get(t, c, env.server.URL+"/listing/search_result?keywords=loft&categories=2&sort_by=price")

	tests := []struct {
		path   string
		fields []string
	}{
		{"/fragments/search_home_form", []string{"location", "date_start", "date_end", "keywords"}},
		{"/fragments/search_form", []string{"location", "keywords"}},
		{"/fragments/search_result_form", []string{"location", "date_start", "date_end", "keywords", "price_min", "price_max"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			doc := document(t, get(t, c, env.server.URL+tt.path))
			form := doc.Find("form.search-form")
			if form.AttrOr("action", "") != "/listing/search_result" {
				t.Errorf("form action = %q", form.AttrOr("action", ""))
			}
			for _, f := range tt.fields {
				if form.Find("input[name="+f+"]").Length() != 1 {
					t.Errorf("field %s missing", f)
				}
			}
			if v := form.Find("input[name=keywords]").AttrOr("value", ""); v != "loft" {
				t.Errorf("keywords = %q, want loft from the session", v)
			}
		})
	}

	doc = document(t, get(t, c, env.server.URL+"/fragments/search_result_form"))
	if _, checked := doc.Find("input[name=categories][value='2']").Attr("checked"); !checked {
		t.Error("category 2 not checked")
	}
	if v := doc.Find("select[name=sort_by] option[selected]").AttrOr("value", ""); v != "price" {
		t.Errorf("selected sort = %q, want price", v)
	}
}

func TestListingPage(t *testing.T) {
	env := setupTestWebServer(t)
	c := env.client(t)

	resp := get(t, c, env.server.URL+"/listing/sunny-loft-in-paris")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	doc := document(t, resp)

	if got := doc.Find("article.listing h1").Text(); got != "Sunny loft in Paris" {
		t.Errorf("title = %q", got)
	}
	desc, _ := doc.Find(".description").Html()
	if strings.Contains(desc, "script") || !strings.Contains(desc, "<b>view</b>") {
		t.Errorf("description not sanitized: %q", desc)
	}
	if got := doc.Find(".price strong").Text(); got != "€100" {
		t.Errorf("price = %q, want €100", got)
	}
	if got := doc.Find("#similar").AttrOr("data-url", ""); got != "/listing/similar_result/1" {
		t.Errorf("similar url = %q", got)
	}
	if got := doc.Find(".gallery img").AttrOr("src", ""); got != "/media/cache/resolve/listing_medium/uploads/listings/images/loft.png" {
		t.Errorf("image = %q", got)
	}

	for _, slug := range []string{"nope", "hidden-flat"} {
		resp := get(t, c, env.server.URL+"/listing/"+slug)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", slug, resp.StatusCode)
		}
	}
}

func TestCurrencySwitch(t *testing.T) {
	env := setupTestWebServer(t)
	c := env.client(t)

	resp := get(t, c, env.server.URL+"/currency/usd", "Referer", env.server.URL+"/listing/sunny-loft-in-paris?x=1")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/listing/sunny-loft-in-paris?x=1" {
		t.Errorf("Location = %q", loc)
	}

	doc := document(t, get(t, c, env.server.URL+"/listing/sunny-loft-in-paris"))
	if got, want := doc.Find(".price strong").Text(), currency.Format(200, "USD", false, "en"); got != want {
		t.Errorf("price = %q, want %q", got, want)
	}
	if got := doc.Find(".currencies .active").Text(); got != "USD" {
		t.Errorf("active currency = %q", got)
	}

	doc = document(t, get(t, c, env.server.URL+"/listing/search_result?sort_by=price"))
	if got := markersOf(t, doc)[0].Price; got != currency.Format(100, "USD", false, "en") {
		t.Errorf("marker price = %q", got)
	}

	t.Run("foreign referer", func(t *testing.T) {
		resp := get(t, c, env.server.URL+"/currency/EUR", "Referer", "https://example.com/phish")
		if loc := resp.Header.Get("Location"); loc != "/" {
			t.Errorf("Location = %q, want /", loc)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		get(t, c, env.server.URL+"/currency/XYZ")
		doc := document(t, get(t, c, env.server.URL+"/"))
		if got := doc.Find(".flash-error").Text(); got != "The currency XYZ is not supported." {
			t.Errorf("flash = %q", got)
		}
	})
}

func TestLocale(t *testing.T) {
	env := setupTestWebServer(t)
	c := env.client(t)

	doc := document(t, get(t, c, env.server.URL+"/listing/search_result?sort_by=price&_locale=fr"))
	if got := doc.Find("html").AttrOr("lang", ""); got != "fr" {
		t.Errorf("lang = %q, want fr", got)
	}
	if got := doc.Find(".nb-results").Text(); got != "3 annonces trouvées" {
		t.Errorf("results heading = %q", got)
	}

	// The cookie keeps the locale.
	doc = document(t, get(t, c, env.server.URL+"/listing/search_result?sort_by=price"))
	var titles []string
	doc.Find(".search-results .listing-card h3").Each(func(_ int, s *goquery.Selection) {
		titles = append(titles, s.Text())
	})
	if diff := cmp.Diff([]string{"Quiet house near Lyon", "Loft ensoleillé à Paris"}, titles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}

	doc = document(t, get(t, env.client(t), env.server.URL+"/", "Accept-Language", "fr-CA,fr;q=0.9"))
	if got := doc.Find("html").AttrOr("lang", ""); got != "fr" {
		t.Errorf("Accept-Language lang = %q, want fr", got)
	}
}

func TestImageResolve(t *testing.T) {
	env := setupTestWebServer(t)
	c := env.client(t)

	src := filepath.Join(env.cfg.Images.PublicDir, "uploads", "listings", "images", "loft.png")
	if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for x := 0; x < 32; x++ {
		img.Set(x, 4, color.RGBA{R: 255, A: 255})
	}
	f, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	resp := get(t, c, env.server.URL+"/media/cache/resolve/listing_medium/uploads/listings/images/loft.png")
	if resp.StatusCode != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", resp.StatusCode)
	}
	cached := resp.Header.Get("Location")
	if cached != "/media/cache/listing_medium/uploads/listings/images/loft.png" {
		t.Fatalf("Location = %q", cached)
	}

	resp = get(t, c, env.server.URL+cached)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cached status = %d", resp.StatusCode)
	}
	thumb, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if got := thumb.Bounds().Size(); got != image.Pt(8, 4) {
		t.Errorf("thumbnail size = %v, want 8x4", got)
	}

	// Browser paths now point at the cached file.
	doc := document(t, get(t, c, env.server.URL+"/listing/sunny-loft-in-paris"))
	if got := doc.Find(".gallery img").AttrOr("src", ""); got != cached {
		t.Errorf("image = %q, want %q", got, cached)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/media/cache/resolve/huge/uploads/listings/images/loft.png", http.StatusBadRequest},
		{"/media/cache/resolve/listing_medium/uploads/listings/images/missing.png", http.StatusNotFound},
	}
	for _, tt := range tests {
		if resp := get(t, c, env.server.URL+tt.path); resp.StatusCode != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestStaticAndAPI(t *testing.T) {
	env := setupTestWebServer(t)
	c := env.client(t)

	tests := []struct {
		path        string
		contentType string
	}{
		{"/static/style.css", "text/css"},
		{"/static/app.js", "application/javascript"},
		{"/health", "application/json"},
		{"/api/stats", "application/json"},
		{"/api/listing/search_result?keywords=villa", "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := get(t, c, env.server.URL+tt.path)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			if got := resp.Header.Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
		})
	}

	resp := get(t, c, env.server.URL+"/no/such/page")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown page status = %d, want 404", resp.StatusCode)
	}
}

func TestListingURL(t *testing.T) {
	env := setupTestWebServer(t)
	if got := env.web.ListingURL("sunny-loft-in-paris"); got != "/listing/sunny-loft-in-paris" {
		t.Errorf("ListingURL = %q", got)
	}
}
