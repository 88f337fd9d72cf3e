package shared

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rubiojr/roost/pkg/core"
	"github.com/rubiojr/roost/pkg/marker"
	"github.com/rubiojr/roost/pkg/search"
	"github.com/rubiojr/roost/pkg/storage"
)

type stubImages struct{}

func (stubImages) BrowserPath(path, filter string) string { return "/" + filter + "/" + path }

type stubPrices struct{}

func (stubPrices) ConvertAndFormat(amount float64, target string, _ bool, _ string) string {
	return fmt.Sprintf("%.0f %s", amount, target)
}

type stubURLs struct{}

func (stubURLs) ListingURL(slug string) string { return "/listing/" + slug }

func newTestSearch(t *testing.T, n int) *ListingSearch {
	t.Helper()
	ctx := context.Background()

	store, err := storage.Open(filepath.Join(t.TempDir(), "roost.db"), "en")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	seed := &storage.Seed{}
	for i := 1; i <= n; i++ {
		seed.Listings = append(seed.Listings, storage.ListingInput{
			ID:    int64(i),
			Price: int64(i) * 1000,
			Location: core.Location{
				City:       "Paris",
				Coordinate: core.Coordinate{Lat: 48, Lng: 2},
			},
			Translations: []core.Translation{{
				Locale: "en",
				Title:  fmt.Sprintf("Flat %d", i),
				Slug:   fmt.Sprintf("flat-%d", i),
			}},
		})
	}
	if err := store.Import(ctx, seed); err != nil {
		t.Fatal(err)
	}

	return NewListingSearch(
		search.NewManager(store),
		marker.NewBuilder(stubImages{}, stubPrices{}, stubURLs{}),
		search.Defaults{MaxPerPage: 10, Limit: 100},
		marker.Options{FallbackLocale: "en", ImageFolder: "uploads/", DefaultImage: "default.png", ImageFilter: "listing_medium"},
		"/listing/search_result",
	)
}

func TestRunSubmitted(t *testing.T) {
	s := newTestSearch(t, 25)
	values := url.Values{"sort_by": {"price"}, "page": {"2"}}

	page, err := s.Run(context.Background(), values, "en", "EUR")
	if err != nil {
		t.Fatal(err)
	}
	if !page.Valid() {
		t.Fatalf("unexpected errors: %v", page.Errors)
	}

	if page.NbResults != 25 {
		t.Errorf("NbResults = %d, want 25", page.NbResults)
	}
	if page.Pagination.PagesCount != 3 || page.Pagination.Page != 2 {
		t.Errorf("pagination = %+v", page.Pagination)
	}
	if diff := cmp.Diff(values, page.Pagination.RouteParams); diff != "" {
		t.Errorf("route params mismatch (-want +got):\n%s", diff)
	}

	wantPage := []int64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	if diff := cmp.Diff(wantPage, core.IDs(page.Results)); diff != "" {
		t.Errorf("page ids mismatch (-want +got):\n%s", diff)
	}

	if len(page.Markers) != 25 {
		t.Fatalf("got %d markers, want 25", len(page.Markers))
	}
	minIn, maxOff := 1<<30, -1
	for _, m := range page.Markers {
		if m.ID >= 11 && m.ID <= 20 {
			minIn = min(minIn, m.ZIndex)
			if m.Opacity != 1 {
				t.Errorf("marker %d opacity = %v", m.ID, m.Opacity)
			}
		} else {
			maxOff = max(maxOff, m.ZIndex)
			if m.Opacity != 0.4 {
				t.Errorf("marker %d opacity = %v", m.ID, m.Opacity)
			}
		}
	}
	if minIn <= maxOff {
		t.Errorf("in-page zindex %d not above off-page %d", minIn, maxOff)
	}

	if diff := cmp.Diff(marker.IDs(page.Markers), page.Request.SimilarListings); diff != "" {
		t.Errorf("similar listings mismatch (-want +got):\n%s", diff)
	}
	if page.Markers[0].Price != "10 EUR" || page.Markers[0].URL != "/listing/flat-1" {
		t.Errorf("first marker = %+v", page.Markers[0])
	}
}

func TestRunNotSubmitted(t *testing.T) {
	s := newTestSearch(t, 3)

	page, err := s.Run(context.Background(), url.Values{"_locale": {"fr"}}, "en", "EUR")
	if err != nil {
		t.Fatal(err)
	}
	if page.Submitted || page.Valid() || len(page.Errors) != 0 {
		t.Errorf("page = %+v", page)
	}
	if page.NbResults != 0 || len(page.Results) != 0 || len(page.Markers) != 0 {
		t.Errorf("expected empty results, got %d/%d/%d", page.NbResults, len(page.Results), len(page.Markers))
	}
	if page.Pagination.PagesCount != 0 {
		t.Errorf("PagesCount = %d", page.Pagination.PagesCount)
	}
}

func TestRunInvalid(t *testing.T) {
	s := newTestSearch(t, 3)

	page, err := s.Run(context.Background(), url.Values{"price_min": {"9"}, "price_max": {"1"}}, "en", "EUR")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Errors) != 1 || page.Errors[0].Key != "search.error.price_range" {
		t.Errorf("errors = %v", page.Errors)
	}
	if page.NbResults != 0 || len(page.Markers) != 0 || page.Request.SimilarListings != nil {
		t.Error("invalid searches must not produce results")
	}
}

func TestRunRejectsNonFiniteCoordinates(t *testing.T) {
	s := newTestSearch(t, 3)

	for _, values := range []url.Values{
		{"lat": {"NaN"}, "lng": {"2"}, "sort_by": {"distance"}},
		{"ne_lat": {"NaN"}, "ne_lng": {"3"}, "sw_lat": {"47"}, "sw_lng": {"1"}},
	} {
		page, err := s.Run(context.Background(), values, "en", "EUR")
		if err != nil {
			t.Fatal(err)
		}
		if page.Valid() || (!page.Errors.Has(search.FieldLat) && !page.Errors.Has(search.FieldNELat)) {
			t.Errorf("%v: errors = %v", values, page.Errors)
		}
		if _, err := json.Marshal(page.Request); err != nil {
			t.Errorf("%v: request does not encode: %v", values, err)
		}
	}
}

func TestSimilar(t *testing.T) {
	s := newTestSearch(t, 5)
	ctx := context.Background()

	listings, err := s.Similar(ctx, s.DefaultRequest(), "en", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 0 {
		t.Errorf("no previous search must give no listings, got %d", len(listings))
	}

	req := s.DefaultRequest()
	req.SimilarListings = []int64{3, 1, 5}
	listings, err = s.Similar(ctx, req, "en", 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{3, 5}, core.IDs(listings)); diff != "" {
		t.Errorf("similar ids mismatch (-want +got):\n%s", diff)
	}
}
