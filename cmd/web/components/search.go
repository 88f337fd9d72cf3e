package components

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/rubiojr/roost/cmd/web/components/types"
	"github.com/rubiojr/roost/pkg/pagination"
)

// pageWindow is the number of numbered page links.
const pageWindow = 5

func (h *html) card(t types.Translate, c types.ListingCard) {
	h.open("article", "class", "listing-card", "data-id", itoa64(c.ID))
	h.open("a", "href", c.URL)
	h.open("img", "src", c.Image, "alt", c.Title, "loading", "lazy")
	h.elem("h3", c.Title)
	h.close("a")
	h.open("p", "class", "meta")
	if c.Category != "" {
		h.elem("span", c.Category, "class", "category")
	}
	if c.City != "" {
		h.elem("span", c.City, "class", "city")
	}
	if c.Certified {
		h.elem("span", t("listing.certified", nil), "class", "certified")
	}
	h.close("p")
	h.stars(c.Ratings)
	h.open("p", "class", "price")
	h.elem("strong", c.Price)
	h.text(" " + t("listing.per_night", nil))
	h.close("p")
	h.close("article")
}

func (h *html) stars(ratings [5]string) {
	h.open("span", "class", "rating")
	for _, class := range ratings {
		h.elem("i", "★", "class", "star "+class)
	}
	h.close("span")
}

func (h *html) pager(t types.Translate, p pagination.Pagination) {
	if p.PagesCount <= 1 {
		return
	}
	h.open("nav", "class", "pagination")
	if p.HasPrevious() {
		h.elem("a", t("pagination.previous", nil), "class", "previous", "href", p.URL(p.Page-1), "rel", "prev")
	}
	for _, n := range p.Pages(pageWindow) {
		if n == p.Page {
			h.elem("span", itoa(n), "class", "current")
			continue
		}
		h.elem("a", itoa(n), "class", "page", "href", p.URL(n))
	}
	if p.HasNext() {
		h.elem("a", t("pagination.next", nil), "class", "next", "href", p.URL(p.Page+1), "rel", "next")
	}
	h.close("nav")
}

// SearchResult renders the listing search page: the result form, the
// results of the current page, the pagination and the map markers.
func SearchResult(data types.SearchResultData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		h.open("div", "class", "search-layout")

		h.open("aside", "class", "search-sidebar")
		h.render(SearchResultForm(types.FormData{T: data.T, Form: data.Form}))
		h.close("aside")

		h.open("section", "class", "search-results")
		h.elem("h1", data.T("search.results", map[string]string{"count": itoa(data.NbResults)}), "class", "nb-results", "data-count", itoa(data.NbResults))
		if data.Submitted && len(data.Results) == 0 {
			h.elem("p", data.T("search.no_results", nil), "class", "no-results")
		}
		h.open("div", "class", "listings")
		for _, c := range data.Results {
			h.card(data.T, c)
		}
		h.close("div")
		h.pager(data.T, data.Pagination)
		h.close("section")

		h.open("section", "class", "search-map", "aria-label", data.T("search.map", nil))
		h.raw("<div id=\"map\"></div>")
		h.raw("<script type=\"application/json\" id=\"markers\">")
		h.render(templ.Raw(data.MarkersJSON))
		h.raw("</script>")
		h.close("section")

		h.close("div")
		return h.err
	})
	return Layout(data.PageData, body)
}

// SimilarResult is the fragment listing the other results of the last
// search.
func SimilarResult(data types.SimilarData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		h.open("section", "class", "similar-listings")
		h.elem("h2", data.T("search.similar", nil))
		h.open("div", "class", "listings")
		for _, c := range data.Listings {
			h.card(data.T, c)
		}
		h.close("div")
		h.close("section")
		return h.err
	})
}
