package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/gorilla/mux"
	"github.com/rubiojr/roost/cmd/web/components"
	"github.com/rubiojr/roost/cmd/web/components/types"
	"github.com/rubiojr/roost/pkg/core"
	"github.com/rubiojr/roost/pkg/i18n"
	"github.com/rubiojr/roost/pkg/imagecache"
	"github.com/rubiojr/roost/pkg/marker"
	"github.com/rubiojr/roost/pkg/search"
	"github.com/rubiojr/roost/pkg/session"
	"github.com/rubiojr/roost/pkg/storage"
	"github.com/rubiojr/roost/pkg/version"
)

func (s *WebServer) locale(r *http.Request) string {
	if locale := i18n.LocaleFromContext(r.Context()); locale != "" {
		return locale
	}
	return s.translator.Fallback()
}

func (s *WebServer) currency(r *http.Request) string {
	return session.FromContext(r.Context()).Currency(s.converter.Default())
}

func (s *WebServer) translate(locale string) types.Translate {
	return func(key string, params map[string]string) string {
		return s.translator.Trans(key, params, locale)
	}
}

// pageData fills the layout data of r. Pending flashes are consumed.
func (s *WebServer) pageData(r *http.Request, titleKey string) types.PageData {
	locale := s.locale(r)
	current := s.currency(r)
	sess := session.FromContext(r.Context())

	data := types.PageData{
		Title:    s.translator.Trans(titleKey, nil, locale),
		Locale:   locale,
		Currency: current,
		HomeURL:  s.routePath("home"),
		Version:  version.APIVersion(),
		T:        s.translate(locale),
	}

	for _, code := range s.translator.Locales() {
		q := r.URL.Query()
		q.Set(i18n.LocaleParam, code)
		data.Locales = append(data.Locales, types.LocaleLink{
			Code:   code,
			URL:    r.URL.Path + "?" + q.Encode(),
			Active: code == locale,
		})
	}
	for _, code := range s.converter.Supported() {
		data.Currencies = append(data.Currencies, types.CurrencyLink{
			Code:   code,
			URL:    s.routePath("currency_switch", "code", code),
			Active: code == current,
		})
	}

	for _, kind := range []string{session.FlashError, session.FlashSuccess} {
		if msgs := sess.Flashes(kind); len(msgs) > 0 {
			if data.Flashes == nil {
				data.Flashes = make(map[string][]string)
			}
			data.Flashes[kind] = msgs
		}
	}
	return data
}

// routePath returns the path of a named route, "" when it cannot be built.
func (s *WebServer) routePath(name string, pairs ...string) string {
	route := s.router.Get(name)
	if route == nil {
		return ""
	}
	u, err := route.URL(pairs...)
	if err != nil {
		webLogger.Errorf("building %s URL: %v", name, err)
		return ""
	}
	return u.Path
}

func (s *WebServer) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		http.Error(w, fmt.Sprintf("Template error: %v", err), http.StatusInternalServerError)
	}
}

func (s *WebServer) renderError(w http.ResponseWriter, r *http.Request, status int, key string) {
	data := types.ErrorPageData{
		PageData: s.pageData(r, key),
		Status:   status,
		Message:  s.translator.Trans(key, nil, s.locale(r)),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := components.Error(data).Render(r.Context(), w); err != nil {
		webLogger.Errorf("rendering error page: %v", err)
	}
}

// searchForm binds values to a form. invalid lists the fields to flag.
func (s *WebServer) searchForm(r *http.Request, values url.Values, invalid search.Errors) types.SearchForm {
	locale := s.locale(r)
	form := types.SearchForm{
		Action:  s.routePath("listing_search_result"),
		Values:  values,
		Invalid: make(map[string]bool, len(invalid)),
	}
	for _, fe := range invalid {
		form.Invalid[fe.Field] = true
	}

	selected := make(map[string]bool)
	for _, id := range values[search.FieldCategories] {
		selected[id] = true
	}
	categories, err := s.store.Categories(r.Context(), locale)
	if err != nil {
		webLogger.Errorf("loading categories: %v", err)
	}
	for _, c := range categories {
		id := strconv.FormatInt(c.ID, 10)
		form.Categories = append(form.Categories, types.Option{
			Value:    id,
			Label:    c.Name(locale, s.translator.Fallback()),
			Selected: selected[id],
		})
	}

	sortBy := values.Get(search.FieldSortBy)
	if sortBy == "" {
		sortBy = storage.SortRecommended
	}
	for _, o := range search.SortOrders {
		form.SortOrders = append(form.SortOrders, types.Option{
			Value:    o,
			Label:    s.translator.Trans("search.sort."+o, nil, locale),
			Selected: o == sortBy,
		})
	}
	return form
}

func (s *WebServer) markerOptions(r *http.Request) marker.Options {
	opts := s.markerOpts
	opts.Locale = s.locale(r)
	opts.Currency = s.currency(r)
	return opts
}

// cards turns listings into result cards, taking the displayed price,
// image and URL from their markers.
func (s *WebServer) cards(listings []core.Listing, markers []marker.Marker) []types.ListingCard {
	byID := make(map[int64]marker.Marker, len(markers))
	for _, m := range markers {
		byID[m.ID] = m
	}
	cards := make([]types.ListingCard, 0, len(listings))
	for _, l := range listings {
		m := byID[l.ID]
		cards = append(cards, types.ListingCard{
			ID:        l.ID,
			Title:     m.Title,
			URL:       m.URL,
			Image:     m.Image,
			Price:     m.Price,
			Category:  m.Category,
			City:      l.Location.City,
			Certified: l.Certified,
			Ratings:   [5]string{m.Rating1, m.Rating2, m.Rating3, m.Rating4, m.Rating5},
		})
	}
	return cards
}

func (s *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	req := session.FromContext(r.Context()).SearchRequest(s.search.DefaultRequest())
	data := types.HomePageData{
		PageData: s.pageData(r, "site.tagline"),
		Form:     s.searchForm(r, req.Values(), nil),
	}
	s.render(w, r, components.Home(data))
}

// handleSearchResult binds the query string to a search request, runs it
// when it is valid and remembers it in the session. Validation errors are
// shown as flash messages on an empty result page.
func (s *WebServer) handleSearchResult(w http.ResponseWriter, r *http.Request) {
	locale := s.locale(r)
	sess := session.FromContext(r.Context())
	values := r.URL.Query()

	page, err := s.search.Run(r.Context(), values, locale, s.currency(r))
	if err != nil {
		webLogger.Errorf("search: %v", err)
		s.renderError(w, r, http.StatusInternalServerError, "error.internal")
		return
	}

	if page.Valid() {
		if err := sess.SetSearchRequest(page.Request); err != nil {
			webLogger.Errorf("storing search request: %v", err)
		}
	}
	for _, fe := range page.Errors {
		sess.AddFlash(session.FlashError, s.translator.Trans(fe.Key, fe.Params, locale))
	}

	markersJSON, err := json.Marshal(page.Markers)
	if err != nil {
		webLogger.Errorf("encoding markers: %v", err)
		markersJSON = []byte("[]")
	}

	data := types.SearchResultData{
		PageData:    s.pageData(r, "search.title"),
		Form:        s.searchForm(r, values, page.Errors),
		Submitted:   page.Submitted,
		Results:     s.cards(page.Results, page.Markers),
		NbResults:   page.NbResults,
		Markers:     page.Markers,
		MarkersJSON: string(markersJSON),
		Pagination:  page.Pagination,
	}
	s.render(w, r, components.SearchResult(data))
}

// handleSimilarResult lists the other results of the visitor's last search.
func (s *WebServer) handleSimilarResult(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.renderError(w, r, http.StatusNotFound, "error.not_found")
		return
	}

	locale := s.locale(r)
	req := session.FromContext(r.Context()).SearchRequest(s.search.DefaultRequest())
	listings, err := s.search.Similar(r.Context(), req, locale, id)
	if err != nil {
		webLogger.Errorf("similar listings of %d: %v", id, err)
		s.renderError(w, r, http.StatusInternalServerError, "error.internal")
		return
	}

	markers := s.markers.Build(listings, listings, s.markerOptions(r))
	s.render(w, r, components.SimilarResult(types.SimilarData{
		T:        s.translate(locale),
		Listings: s.cards(listings, markers),
	}))
}

// sessionForm is an empty form bound to the session search request.
func (s *WebServer) sessionForm(r *http.Request) types.FormData {
	req := session.FromContext(r.Context()).SearchRequest(s.search.DefaultRequest())
	return types.FormData{
		T:    s.translate(s.locale(r)),
		Form: s.searchForm(r, req.Values(), nil),
	}
}

func (s *WebServer) handleSearchHomeForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, components.SearchHomeForm(s.sessionForm(r)))
}

func (s *WebServer) handleSearchForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, components.SearchForm(s.sessionForm(r)))
}

func (s *WebServer) handleSearchResultForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, components.SearchResultForm(s.sessionForm(r)))
}

func (s *WebServer) handleListing(w http.ResponseWriter, r *http.Request) {
	locale := s.locale(r)
	l, err := s.store.ListingBySlug(r.Context(), mux.Vars(r)["slug"], locale)
	if errors.Is(err, storage.ErrNotFound) {
		s.renderError(w, r, http.StatusNotFound, "listing.not_found")
		return
	}
	if err != nil {
		webLogger.Errorf("loading listing: %v", err)
		s.renderError(w, r, http.StatusInternalServerError, "error.internal")
		return
	}

	fallback := s.translator.Fallback()
	tr, _ := l.Translation(locale, fallback)

	view := types.ListingView{
		ID:          l.ID,
		Title:       tr.Title,
		Description: s.sanitizer.Sanitize(tr.Description),
		Price:       s.converter.ConvertAndFormat(l.PriceUnits(), s.currency(r), false, locale),
		Rating:      l.AverageRating,
		Ratings:     marker.Ratings(l.AverageRating),
		Certified:   l.Certified,
		City:        l.Location.City,
		Country:     l.Location.Country,
		Lat:         l.Location.Coordinate.Lat,
		Lng:         l.Location.Coordinate.Lng,
	}
	for _, img := range l.Images {
		view.Images = append(view.Images, s.images.BrowserPath(s.markerOpts.ImageFolder+img.Name, s.markerOpts.ImageFilter))
	}
	if len(view.Images) == 0 {
		view.Images = []string{s.images.BrowserPath(s.markerOpts.ImageFolder+s.markerOpts.DefaultImage, s.markerOpts.ImageFilter)}
	}
	for _, c := range l.Categories {
		view.Categories = append(view.Categories, c.Name(locale, fallback))
	}

	data := types.ListingPageData{
		PageData:   s.pageData(r, "search.title"),
		Listing:    view,
		SimilarURL: s.routePath("listing_similar_result", "id", strconv.FormatInt(l.ID, 10)),
	}
	data.Title = tr.Title
	s.render(w, r, components.Listing(data))
}

// handleCurrencySwitch stores the display currency and sends the visitor
// back where they came from.
func (s *WebServer) handleCurrencySwitch(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(mux.Vars(r)["code"])
	sess := session.FromContext(r.Context())

	if s.converter.IsSupported(code) {
		if err := sess.SetCurrency(code); err != nil {
			webLogger.Errorf("storing currency: %v", err)
		}
	} else {
		sess.AddFlash(session.FlashError, s.translator.Trans("currency.unsupported", map[string]string{"code": code}, s.locale(r)))
	}

	// The browser follows the redirect before the middleware saves.
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		webLogger.Errorf("saving session: %v", err)
	}
	http.Redirect(w, r, s.backURL(r), http.StatusFound)
}

// backURL is the same-host Referer path, or the home page.
func (s *WebServer) backURL(r *http.Request) string {
	home := s.routePath("home")
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" {
		return home
	}
	if ref.Host != "" && ref.Host != r.Host {
		return home
	}
	return ref.RequestURI()
}

// handleImageResolve generates a filtered image and redirects to it.
func (s *WebServer) handleImageResolve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	target, err := s.images.Resolve(vars["path"], vars["filter"])
	switch {
	case errors.Is(err, imagecache.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, imagecache.ErrUnknownFilter), errors.Is(err, imagecache.ErrInvalidPath):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		webLogger.Errorf("resolving image: %v", err)
		http.Error(w, "image generation failed", http.StatusInternalServerError)
	default:
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	}
}
