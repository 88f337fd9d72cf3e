package components

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/rubiojr/roost/cmd/web/components/types"
	"github.com/rubiojr/roost/pkg/search"
)

type formField struct {
	name  string
	label string
	kind  string
}

// input writes a labelled input bound to the form values.
func (h *html) input(t types.Translate, form types.SearchForm, f formField) {
	class := "field"
	if form.Invalid[f.name] {
		class += " invalid"
	}
	h.open("div", "class", class)
	h.elem("label", t(f.label, nil), "for", "search-"+f.name)
	h.open("input", "type", f.kind, "id", "search-"+f.name, "name", f.name, "value", form.Values.Get(f.name))
	h.close("div")
}

func (h *html) hidden(form types.SearchForm, names ...string) {
	for _, name := range names {
		h.open("input", "type", "hidden", "name", name, "value", form.Values.Get(name))
	}
}

func (h *html) submit(t types.Translate) {
	h.elem("button", t("search.submit", nil), "type", "submit")
}

func searchForm(data types.FormData, class string, body func(h *html)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		h.open("form", "class", "search-form "+class, "method", "get", "action", data.Form.Action)
		body(h)
		h.submit(data.T)
		h.close("form")
		return h.err
	})
}

var (
	locationField  = formField{search.FieldLocation, "search.form.location", "search"}
	keywordsField  = formField{search.FieldKeywords, "search.form.keywords", "search"}
	dateStartField = formField{search.FieldDateStart, "search.form.date_start", "date"}
	dateEndField   = formField{search.FieldDateEnd, "search.form.date_end", "date"}
	priceMinField  = formField{search.FieldPriceMin, "search.form.price_min", "number"}
	priceMaxField  = formField{search.FieldPriceMax, "search.form.price_max", "number"}
)

// SearchHomeForm is the large form of the home page.
func SearchHomeForm(data types.FormData) templ.Component {
	return searchForm(data, "search-home-form", func(h *html) {
		h.input(data.T, data.Form, locationField)
		h.hidden(data.Form, search.FieldLat, search.FieldLng)
		h.input(data.T, data.Form, dateStartField)
		h.input(data.T, data.Form, dateEndField)
		h.input(data.T, data.Form, keywordsField)
	})
}

// SearchForm is the compact form of the page header.
func SearchForm(data types.FormData) templ.Component {
	return searchForm(data, "search-header-form", func(h *html) {
		h.input(data.T, data.Form, locationField)
		h.hidden(data.Form, search.FieldLat, search.FieldLng)
		h.input(data.T, data.Form, keywordsField)
	})
}

// SearchResultForm is the full form shown next to the results. It keeps
// the map viewport and the sort order.
func SearchResultForm(data types.FormData) templ.Component {
	return searchForm(data, "search-result-form", func(h *html) {
		h.input(data.T, data.Form, locationField)
		h.hidden(data.Form,
			search.FieldLat, search.FieldLng,
			search.FieldNELat, search.FieldNELng, search.FieldSWLat, search.FieldSWLng)
		h.input(data.T, data.Form, dateStartField)
		h.input(data.T, data.Form, dateEndField)
		h.input(data.T, data.Form, keywordsField)
		h.input(data.T, data.Form, priceMinField)
		h.input(data.T, data.Form, priceMaxField)

		if len(data.Form.Categories) > 0 {
			h.open("fieldset", "class", "categories")
			h.elem("legend", data.T("search.form.categories", nil))
			for _, c := range data.Form.Categories {
				h.open("label")
				h.raw("<input type=\"checkbox\"")
				h.attr("name", search.FieldCategories)
				h.attr("value", c.Value)
				if c.Selected {
					h.raw(" checked")
				}
				h.raw(">")
				h.text(c.Label)
				h.close("label")
			}
			h.close("fieldset")
		}

		h.open("div", "class", "field")
		h.elem("label", data.T("search.form.sort_by", nil), "for", "search-"+search.FieldSortBy)
		h.open("select", "id", "search-"+search.FieldSortBy, "name", search.FieldSortBy)
		for _, o := range data.Form.SortOrders {
			h.raw("<option")
			h.attr("value", o.Value)
			if o.Selected {
				h.raw(" selected")
			}
			h.raw(">")
			h.text(o.Label)
			h.close("option")
		}
		h.close("select")
		h.close("div")
	})
}
