package components

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/rubiojr/roost/cmd/web/components/types"
)

// Layout wraps body in the site chrome: header with the locale and
// currency switchers, flash messages and footer.
func Layout(data types.PageData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		h.raw("<!DOCTYPE html>")
		h.open("html", "lang", data.Locale)
		h.raw("<head><meta charset=\"utf-8\"><meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">")
		h.elem("title", data.Title+" | "+data.T("site.name", nil))
		h.raw("<link rel=\"stylesheet\" href=\"/static/style.css\">")
		h.raw("</head><body>")

		h.open("header", "class", "site-header")
		h.open("a", "class", "brand", "href", data.HomeURL)
		h.text(data.T("site.name", nil))
		h.close("a")
		h.open("nav", "class", "switchers")
		h.open("ul", "class", "locales")
		for _, l := range data.Locales {
			h.open("li")
			if l.Active {
				h.elem("span", l.Code, "class", "active")
			} else {
				h.elem("a", l.Code, "href", l.URL, "hreflang", l.Code)
			}
			h.close("li")
		}
		h.close("ul")
		h.open("ul", "class", "currencies", "aria-label", data.T("currency.label", nil))
		for _, c := range data.Currencies {
			h.open("li")
			if c.Active {
				h.elem("span", c.Code, "class", "active")
			} else {
				h.elem("a", c.Code, "href", c.URL, "rel", "nofollow")
			}
			h.close("li")
		}
		h.close("ul")
		h.close("nav")
		h.close("header")

		if len(data.Flashes) > 0 {
			h.open("div", "class", "flashes")
			for _, kind := range []string{"error", "success"} {
				for _, msg := range data.Flashes[kind] {
					h.elem("div", msg, "class", "flash flash-"+kind, "role", "alert")
				}
			}
			h.close("div")
		}

		h.open("main")
		h.render(body)
		h.close("main")

		h.open("footer")
		h.text(data.T("site.tagline", nil) + " · roost " + data.Version)
		h.close("footer")
		h.raw("<script src=\"/static/app.js\" defer></script>")
		h.raw("</body></html>")
		return h.err
	})
}

// Error renders an error page.
func Error(data types.ErrorPageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		h.open("section", "class", "error-page")
		h.elem("h1", itoa(data.Status))
		h.elem("p", data.Message)
		h.elem("a", data.T("search.title", nil), "href", data.HomeURL)
		h.close("section")
		return h.err
	})
	return Layout(data.PageData, body)
}
