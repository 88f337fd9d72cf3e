// Package shared holds the listing search flow used by both the HTML pages
// and the JSON API.
package shared

import (
	"context"
	"net/url"

	"github.com/rubiojr/roost/pkg/core"
	"github.com/rubiojr/roost/pkg/marker"
	"github.com/rubiojr/roost/pkg/pagination"
	"github.com/rubiojr/roost/pkg/search"
)

// SearchPage is everything a search result page displays.
type SearchPage struct {
	Request search.Request
	// Submitted is false when the query string carried no form field.
	Submitted  bool
	Errors     search.Errors
	Results    []core.Listing
	NbResults  int
	Markers    []marker.Marker
	Pagination pagination.Pagination
}

// Valid reports whether the search ran.
func (p *SearchPage) Valid() bool {
	return p.Submitted && len(p.Errors) == 0
}

type ListingSearch struct {
	manager  *search.Manager
	markers  *marker.Builder
	defaults search.Defaults
	// opts carries the image settings; locale and currency are per call.
	opts  marker.Options
	route string
}

// NewListingSearch wires a search flow. route is the path page links point to.
func NewListingSearch(manager *search.Manager, markers *marker.Builder, defaults search.Defaults, opts marker.Options, route string) *ListingSearch {
	return &ListingSearch{
		manager:  manager,
		markers:  markers,
		defaults: defaults,
		opts:     opts,
		route:    route,
	}
}

func (s *ListingSearch) Defaults() search.Defaults { return s.defaults }

// DefaultRequest is the request shown when nothing was searched yet.
func (s *ListingSearch) DefaultRequest() search.Request {
	return search.NewRequest(s.defaults.MaxPerPage)
}

// Run binds values and, when they form a valid submission, searches in
// locale with prices in currency. The request's SimilarListings is set to
// the ids of every match. Validation problems are reported in the page,
// only storage failures are returned as errors.
func (s *ListingSearch) Run(ctx context.Context, values url.Values, locale, currency string) (*SearchPage, error) {
	req, errs := search.ParseRequest(values, s.defaults)
	page := &SearchPage{
		Request:   req,
		Submitted: search.IsSubmitted(values),
		Errors:    errs,
		Results:   []core.Listing{},
		Markers:   []marker.Marker{},
	}

	if page.Valid() {
		results, err := s.manager.Search(ctx, req, locale)
		if err != nil {
			return nil, err
		}
		all, err := results.All(ctx)
		if err != nil {
			return nil, err
		}

		opts := s.opts
		opts.Locale = locale
		opts.Currency = currency

		page.Results = results.Listings
		page.NbResults = results.Total
		page.Markers = s.markers.Build(results.Listings, all, opts)
		page.Request.SimilarListings = marker.IDs(page.Markers)
	}

	page.Pagination = pagination.New(page.Request.Page, page.NbResults, page.Request.MaxPerPage, s.route, values)
	return page, nil
}

// Similar returns the listings of the last search except exclude. It is
// empty when req holds no previous results.
func (s *ListingSearch) Similar(ctx context.Context, req search.Request, locale string, exclude int64) ([]core.Listing, error) {
	if len(req.SimilarListings) == 0 {
		return []core.Listing{}, nil
	}
	return s.manager.ListingsByIDs(ctx, req.SimilarListings, locale, exclude)
}
