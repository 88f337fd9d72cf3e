package components

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/rubiojr/roost/cmd/web/components/types"
)

func Home(data types.HomePageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTML(ctx, w)
		h.open("section", "class", "hero")
		h.elem("h1", data.T("site.tagline", nil))
		h.render(SearchHomeForm(types.FormData{T: data.T, Form: data.Form}))
		h.close("section")
		return h.err
	})
	return Layout(data.PageData, body)
}
