// Package pagination computes page counts and page links for result lists.
package pagination

import (
	"net/url"
	"strconv"
)

// Pagination describes the pager of a result page. RouteParams are the raw
// query parameters of the current request.
type Pagination struct {
	Page        int        `json:"page"`
	PagesCount  int        `json:"pages_count"`
	Route       string     `json:"route"`
	RouteParams url.Values `json:"route_params"`
}

// PagesCount returns ceil(total / perPage).
func PagesCount(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

func New(page, total, perPage int, route string, params url.Values) Pagination {
	if params == nil {
		params = url.Values{}
	}
	return Pagination{
		Page:        page,
		PagesCount:  PagesCount(total, perPage),
		Route:       route,
		RouteParams: params,
	}
}

func (p Pagination) HasPrevious() bool { return p.Page > 1 }

func (p Pagination) HasNext() bool { return p.Page < p.PagesCount }

// URL returns the link to page, keeping every other parameter.
func (p Pagination) URL(page int) string {
	params := url.Values{}
	for k, v := range p.RouteParams {
		params[k] = append([]string(nil), v...)
	}
	params.Set("page", strconv.Itoa(page))
	return p.Route + "?" + params.Encode()
}

// Pages returns the page numbers to link, at most window pages centered on
// the current one.
func (p Pagination) Pages(window int) []int {
	if p.PagesCount == 0 {
		return nil
	}
	if window <= 0 || window > p.PagesCount {
		window = p.PagesCount
	}
	start := p.Page - window/2
	start = max(start, 1)
	start = min(start, p.PagesCount-window+1)

	pages := make([]int, window)
	for i := range pages {
		pages[i] = start + i
	}
	return pages
}
