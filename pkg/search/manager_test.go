package search

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rubiojr/roost/pkg/core"
	"github.com/rubiojr/roost/pkg/storage"
)

// fakeStore serves ids 1..n, paginated like the real store.
type fakeStore struct {
	n       int
	queries []storage.ListingQuery
}

func (f *fakeStore) SearchListings(_ context.Context, q storage.ListingQuery) ([]core.Listing, error) {
	f.queries = append(f.queries, q)
	var out []core.Listing
	for id := 1; id <= f.n; id++ {
		out = append(out, core.Listing{ID: int64(id)})
	}
	if q.Limit > 0 {
		end := min(q.Offset+q.Limit, len(out))
		if q.Offset >= len(out) {
			return []core.Listing{}, nil
		}
		out = out[q.Offset:end]
	}
	return out, nil
}

func (f *fakeStore) CountListings(_ context.Context, _ storage.ListingQuery) (int, error) {
	return f.n, nil
}

func (f *fakeStore) ListingsByIDs(_ context.Context, ids []int64, _ string, exclude []int64) ([]core.Listing, error) {
	skip := map[int64]bool{}
	for _, id := range exclude {
		skip[id] = true
	}
	out := []core.Listing{}
	for _, id := range ids {
		if !skip[id] {
			out = append(out, core.Listing{ID: id})
		}
	}
	return out, nil
}

func TestManagerSearch(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		page      int
		wantIDs   []int64
		wantQuery bool
	}{
		{name: "first page", total: 5, page: 1, wantIDs: []int64{1, 2}, wantQuery: true},
		{name: "last page", total: 5, page: 3, wantIDs: []int64{5}, wantQuery: true},
		{name: "past the end", total: 5, page: 4, wantIDs: []int64{}, wantQuery: false},
		{name: "no results", total: 0, page: 1, wantIDs: []int64{}, wantQuery: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{n: tt.total}
			req := NewRequest(2)
			req.Page = tt.page

			results, err := NewManager(store).Search(context.Background(), req, "en")
			if err != nil {
				t.Fatal(err)
			}
			if results.Total != tt.total {
				t.Errorf("Total = %d, want %d", results.Total, tt.total)
			}
			if diff := cmp.Diff(tt.wantIDs, core.IDs(results.Listings)); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
			if got := len(store.queries) > 0; got != tt.wantQuery {
				t.Errorf("queried store = %v, want %v", got, tt.wantQuery)
			}
		})
	}
}

func TestResultsAll(t *testing.T) {
	store := &fakeStore{n: 5}
	req := NewRequest(2)
	req.Page = 2
	req.Keywords = "loft"

	results, err := NewManager(store).Search(context.Background(), req, "fr")
	if err != nil {
		t.Fatal(err)
	}
	all, err := results.All(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("All returned %d listings, want 5", len(all))
	}

	last := store.queries[len(store.queries)-1]
	if last.Limit != 0 || last.Offset != 0 {
		t.Errorf("All must not paginate: %+v", last)
	}
	if last.Keywords != "loft" || last.Locale != "fr" {
		t.Errorf("All must keep the criteria: %+v", last)
	}
}

func TestManagerListingsByIDs(t *testing.T) {
	m := NewManager(&fakeStore{})

	listings, err := m.ListingsByIDs(context.Background(), []int64{4, 2, 9}, "en", 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{4, 9}, core.IDs(listings)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}
