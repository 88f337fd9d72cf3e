package search

import (
	"context"
	"fmt"

	"github.com/rubiojr/roost/pkg/core"
	"github.com/rubiojr/roost/pkg/log"
	"github.com/rubiojr/roost/pkg/storage"
)

var logger = log.ForService("search")

// Store is the part of the listing store searches need.
type Store interface {
	SearchListings(ctx context.Context, q storage.ListingQuery) ([]core.Listing, error)
	CountListings(ctx context.Context, q storage.ListingQuery) (int, error)
	ListingsByIDs(ctx context.Context, ids []int64, locale string, exclude []int64) ([]core.Listing, error)
}

// Manager runs search requests against a Store.
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Results is one page of a search.
type Results struct {
	Listings []core.Listing
	// Total is the number of matches across all pages.
	Total      int
	Page       int
	MaxPerPage int

	query storage.ListingQuery
	store Store
}

// All runs the search again without pagination.
func (r *Results) All(ctx context.Context) ([]core.Listing, error) {
	listings, err := r.store.SearchListings(ctx, r.query.Unpaginated())
	if err != nil {
		return nil, fmt.Errorf("loading all results: %w", err)
	}
	return listings, nil
}

// Search returns the page of listings matching req, translated in locale.
func (m *Manager) Search(ctx context.Context, req Request, locale string) (*Results, error) {
	q := req.Query(locale)

	total, err := m.store.CountListings(ctx, q)
	if err != nil {
		return nil, err
	}

	listings := []core.Listing{}
	if total > q.Offset {
		listings, err = m.store.SearchListings(ctx, q)
		if err != nil {
			return nil, err
		}
	}

	logger.Debugf("search %q page %d: %d/%d results", req.Keywords, req.Page, len(listings), total)

	return &Results{
		Listings:   listings,
		Total:      total,
		Page:       req.Page,
		MaxPerPage: req.MaxPerPage,
		query:      q,
		store:      m.store,
	}, nil
}

// ListingsByIDs loads listings by id in locale, in the order of ids and
// without the ids in exclude.
func (m *Manager) ListingsByIDs(ctx context.Context, ids []int64, locale string, exclude ...int64) ([]core.Listing, error) {
	return m.store.ListingsByIDs(ctx, ids, locale, exclude)
}
