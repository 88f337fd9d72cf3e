package components

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/rubiojr/roost/cmd/web/components/types"
)

func itoa64(i int64) string { return strconv.FormatInt(i, 10) }

// Listing renders a listing page. The similar listings are loaded by the
// page script from SimilarURL.
func Listing(data types.ListingPageData) templ.Component {
	l := data.Listing
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		h.open("article", "class", "listing", "data-id", itoa64(l.ID))
		h.elem("h1", l.Title)
		h.open("p", "class", "meta")
		h.text(l.City)
		if l.Country != "" {
			h.text(", " + l.Country)
		}
		if l.Certified {
			h.elem("span", data.T("listing.certified", nil), "class", "certified")
		}
		h.close("p")

		h.open("div", "class", "gallery")
		for _, src := range l.Images {
			h.open("img", "src", src, "alt", l.Title)
		}
		h.close("div")

		h.open("p", "class", "price")
		h.elem("strong", l.Price)
		h.text(" " + data.T("listing.per_night", nil))
		h.close("p")

		h.open("p", "class", "rating-line")
		h.stars(l.Ratings)
		h.text(" " + data.T("listing.rating", map[string]string{"rating": strconv.FormatFloat(l.Rating, 'f', -1, 64)}))
		h.close("p")

		if len(l.Categories) > 0 {
			h.open("ul", "class", "categories", "aria-label", data.T("listing.categories", nil))
			for _, c := range l.Categories {
				h.elem("li", c)
			}
			h.close("ul")
		}

		h.open("div", "class", "description")
		h.render(templ.Raw(l.Description))
		h.close("div")
		h.close("article")

		h.open("div", "id", "similar", "data-url", data.SimilarURL)
		h.close("div")
		return h.err
	})
	return Layout(data.PageData, body)
}
