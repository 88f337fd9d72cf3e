package search

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rubiojr/roost/pkg/core"
	"github.com/rubiojr/roost/pkg/storage"
)

// Form field names.
const (
	FieldLocation   = "location"
	FieldLat        = "lat"
	FieldLng        = "lng"
	FieldNELat      = "ne_lat"
	FieldNELng      = "ne_lng"
	FieldSWLat      = "sw_lat"
	FieldSWLng      = "sw_lng"
	FieldCategories = "categories"
	FieldPriceMin   = "price_min"
	FieldPriceMax   = "price_max"
	FieldDateStart  = "date_start"
	FieldDateEnd    = "date_end"
	FieldKeywords   = "keywords"
	FieldSortBy     = "sort_by"
	FieldPage       = "page"
	FieldMaxPerPage = "max_per_page"
)

// Fields lists every form field in display order.
var Fields = []string{
	FieldLocation, FieldLat, FieldLng,
	FieldNELat, FieldNELng, FieldSWLat, FieldSWLng,
	FieldCategories, FieldPriceMin, FieldPriceMax,
	FieldDateStart, FieldDateEnd, FieldKeywords,
	FieldSortBy, FieldPage, FieldMaxPerPage,
}

// Sort orders accepted in sort_by.
var SortOrders = []string{storage.SortRecommended, storage.SortPrice, storage.SortDistance}

const DateLayout = "2006-01-02"

// Location is where the visitor wants to stay.
type Location struct {
	Address string           `json:"address,omitempty"`
	Point   *core.Coordinate `json:"point,omitempty"`
	NE      *core.Coordinate `json:"ne,omitempty"`
	SW      *core.Coordinate `json:"sw,omitempty"`
}

// Request holds bound search criteria.
type Request struct {
	Location   Location   `json:"location"`
	Categories []int64    `json:"categories,omitempty"`
	PriceMin   *int64     `json:"price_min,omitempty"`
	PriceMax   *int64     `json:"price_max,omitempty"`
	DateStart  *time.Time `json:"date_start,omitempty"`
	DateEnd    *time.Time `json:"date_end,omitempty"`
	Keywords   string     `json:"keywords,omitempty"`
	SortBy     string     `json:"sort_by"`
	Page       int        `json:"page"`
	MaxPerPage int        `json:"max_per_page"`
	// SimilarListings holds the ids matched by the last search. It is never
	// bound from a form.
	SimilarListings []int64 `json:"similar_listings,omitempty"`
}

// Defaults configures binding.
type Defaults struct {
	MaxPerPage int
	// Limit caps max_per_page. Zero means no cap.
	Limit int
	// Now returns the current time, used to reject past dates.
	Now func() time.Time
}

// NewRequest returns the request used when nothing has been submitted.
func NewRequest(maxPerPage int) Request {
	return Request{
		SortBy:     storage.SortRecommended,
		Page:       1,
		MaxPerPage: maxPerPage,
	}
}

// IsSubmitted reports whether values carry at least one form field.
func IsSubmitted(values url.Values) bool {
	for _, f := range Fields {
		if _, ok := values[f]; ok {
			return true
		}
	}
	return false
}

// FieldError is a validation failure. Key is a translation key and Params
// its placeholders without the surrounding percent signs.
type FieldError struct {
	Field  string
	Key    string
	Params map[string]string
}

func (e FieldError) Error() string {
	if len(e.Params) == 0 {
		return fmt.Sprintf("%s: %s", e.Field, e.Key)
	}
	return fmt.Sprintf("%s: %s %v", e.Field, e.Key, e.Params)
}

// Errors collects every validation failure of a form.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether field failed validation.
func (e Errors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Err returns e as an error, or nil when empty.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// AsErrors extracts validation errors from err.
func AsErrors(err error) (Errors, bool) {
	var errs Errors
	ok := errors.As(err, &errs)
	return errs, ok
}

type binder struct {
	values url.Values
	errs   Errors
}

func (b *binder) fail(field, key string, params map[string]string) {
	b.errs = append(b.errs, FieldError{Field: field, Key: key, Params: params})
}

func (b *binder) get(field string) string {
	return strings.TrimSpace(b.values.Get(field))
}

func (b *binder) float(field string) *float64 {
	s := b.get(field)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		b.fail(field, "search.error.number", map[string]string{"value": s})
		return nil
	}
	return &v
}

func (b *binder) amount(field string) *int64 {
	s := b.get(field)
	if s == "" {
		return nil
	}
	// Amounts are stored in cents.
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 || v > math.MaxInt64/100 {
		b.fail(field, "search.error.price_invalid", map[string]string{"value": s})
		return nil
	}
	return &v
}

func (b *binder) date(field string) *time.Time {
	s := b.get(field)
	if s == "" {
		return nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		b.fail(field, "search.error.date_invalid", map[string]string{"value": s})
		return nil
	}
	return &d
}

func (b *binder) integer(field string, def int) int {
	s := b.get(field)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		b.fail(field, "search.error.integer", map[string]string{"value": s})
		return def
	}
	return v
}

func (b *binder) coordinate(latField, lngField string) *core.Coordinate {
	lat, lng := b.float(latField), b.float(lngField)
	switch {
	case lat == nil && lng == nil:
		return nil
	case lat == nil || lng == nil:
		b.fail(latField, "search.error.coordinates_incomplete", nil)
		return nil
	}
	if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 {
		b.fail(latField, "search.error.coordinates_range", map[string]string{
			"lat": strconv.FormatFloat(*lat, 'f', -1, 64),
			"lng": strconv.FormatFloat(*lng, 'f', -1, 64),
		})
		return nil
	}
	return &core.Coordinate{Lat: *lat, Lng: *lng}
}

// ParseRequest binds values to a Request. The returned request holds every
// value that could be bound, even when errs is not empty, so forms can be
// displayed again.
func ParseRequest(values url.Values, defaults Defaults) (Request, Errors) {
	if defaults.MaxPerPage <= 0 {
		defaults.MaxPerPage = 20
	}
	if defaults.Now == nil {
		defaults.Now = time.Now
	}

	b := &binder{values: values}
	req := NewRequest(defaults.MaxPerPage)

	req.Location.Address = b.get(FieldLocation)
	req.Location.Point = b.coordinate(FieldLat, FieldLng)
	ne := b.coordinate(FieldNELat, FieldNELng)
	sw := b.coordinate(FieldSWLat, FieldSWLng)
	if (ne == nil) != (sw == nil) {
		b.fail(FieldNELat, "search.error.viewport_incomplete", nil)
	} else if ne != nil {
		if sw.Lat > ne.Lat {
			b.fail(FieldNELat, "search.error.viewport_inverted", nil)
		} else {
			req.Location.NE, req.Location.SW = ne, sw
		}
	}

	for _, s := range values[FieldCategories] {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			b.fail(FieldCategories, "search.error.category", map[string]string{"value": s})
			continue
		}
		req.Categories = append(req.Categories, id)
	}

	req.PriceMin = b.amount(FieldPriceMin)
	req.PriceMax = b.amount(FieldPriceMax)
	if req.PriceMin != nil && req.PriceMax != nil && *req.PriceMin > *req.PriceMax {
		b.fail(FieldPriceMin, "search.error.price_range", map[string]string{
			"min": strconv.FormatInt(*req.PriceMin, 10),
			"max": strconv.FormatInt(*req.PriceMax, 10),
		})
	}

	req.DateStart = b.date(FieldDateStart)
	req.DateEnd = b.date(FieldDateEnd)
	if req.DateStart != nil {
		now := defaults.Now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if req.DateStart.Before(today) {
			b.fail(FieldDateStart, "search.error.date_past", map[string]string{
				"date": req.DateStart.Format(DateLayout),
			})
		}
	}
	if req.DateStart != nil && req.DateEnd != nil && req.DateEnd.Before(*req.DateStart) {
		b.fail(FieldDateEnd, "search.error.date_range", map[string]string{
			"start": req.DateStart.Format(DateLayout),
			"end":   req.DateEnd.Format(DateLayout),
		})
	}
	if req.DateStart == nil && req.DateEnd != nil {
		b.fail(FieldDateStart, "search.error.date_start_required", nil)
	}

	req.Keywords = b.get(FieldKeywords)

	if s := b.get(FieldSortBy); s != "" {
		known := false
		for _, o := range SortOrders {
			if s == o {
				known = true
				break
			}
		}
		if known {
			req.SortBy = s
		} else {
			b.fail(FieldSortBy, "search.error.sort_by", map[string]string{"value": s})
		}
	}
	if req.SortBy == storage.SortDistance && req.Location.Point == nil && !b.errs.Has(FieldLat) {
		b.fail(FieldSortBy, "search.error.distance_without_location", nil)
	}

	req.Page = b.integer(FieldPage, 1)
	if req.Page < 1 {
		b.fail(FieldPage, "search.error.page", map[string]string{"value": strconv.Itoa(req.Page)})
		req.Page = 1
	}

	req.MaxPerPage = b.integer(FieldMaxPerPage, defaults.MaxPerPage)
	if req.MaxPerPage < 1 {
		b.fail(FieldMaxPerPage, "search.error.max_per_page", map[string]string{"value": strconv.Itoa(req.MaxPerPage)})
		req.MaxPerPage = defaults.MaxPerPage
	}
	if defaults.Limit > 0 && req.MaxPerPage > defaults.Limit {
		req.MaxPerPage = defaults.Limit
	}
	if req.Page > maxPage(req.MaxPerPage) {
		b.fail(FieldPage, "search.error.page", map[string]string{"value": strconv.Itoa(req.Page)})
		req.Page = 1
	}

	return req, b.errs
}

// Values encodes r back into form values. Defaults are omitted.
func (r Request) Values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	ftoa := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

	set(FieldLocation, r.Location.Address)
	if p := r.Location.Point; p != nil {
		set(FieldLat, ftoa(p.Lat))
		set(FieldLng, ftoa(p.Lng))
	}
	if r.Location.NE != nil && r.Location.SW != nil {
		set(FieldNELat, ftoa(r.Location.NE.Lat))
		set(FieldNELng, ftoa(r.Location.NE.Lng))
		set(FieldSWLat, ftoa(r.Location.SW.Lat))
		set(FieldSWLng, ftoa(r.Location.SW.Lng))
	}
	for _, id := range r.Categories {
		v.Add(FieldCategories, strconv.FormatInt(id, 10))
	}
	if r.PriceMin != nil {
		set(FieldPriceMin, strconv.FormatInt(*r.PriceMin, 10))
	}
	if r.PriceMax != nil {
		set(FieldPriceMax, strconv.FormatInt(*r.PriceMax, 10))
	}
	if r.DateStart != nil {
		set(FieldDateStart, r.DateStart.Format(DateLayout))
	}
	if r.DateEnd != nil {
		set(FieldDateEnd, r.DateEnd.Format(DateLayout))
	}
	set(FieldKeywords, r.Keywords)
	if r.SortBy != "" && r.SortBy != storage.SortRecommended {
		set(FieldSortBy, r.SortBy)
	}
	if r.Page > 1 {
		set(FieldPage, strconv.Itoa(r.Page))
	}
	return v
}

// HasCategory reports whether id is among the selected categories.
func (r Request) HasCategory(id int64) bool {
	for _, c := range r.Categories {
		if c == id {
			return true
		}
	}
	return false
}

// Query converts r into a paginated storage query in locale.
func (r Request) Query(locale string) storage.ListingQuery {
	q := storage.ListingQuery{
		Locale:      locale,
		Keywords:    r.Keywords,
		CategoryIDs: r.Categories,
		DateStart:   r.DateStart,
		DateEnd:     r.DateEnd,
		SortBy:      r.SortBy,
		Near:        r.Location.Point,
	}
	if r.PriceMin != nil {
		cents := *r.PriceMin * 100
		q.PriceMin = &cents
	}
	if r.PriceMax != nil {
		cents := *r.PriceMax * 100
		q.PriceMax = &cents
	}
	if r.Location.NE != nil && r.Location.SW != nil {
		q.Bounds = &storage.Bounds{NE: *r.Location.NE, SW: *r.Location.SW}
	}

	page := min(max(r.Page, 1), maxPage(r.MaxPerPage))
	if r.MaxPerPage > 0 {
		q.Limit = r.MaxPerPage
		q.Offset = (page - 1) * r.MaxPerPage
	}
	return q
}

// maxPage is the last page whose offset fits in an int.
func maxPage(maxPerPage int) int {
	if maxPerPage < 1 {
		return math.MaxInt
	}
	return math.MaxInt/maxPerPage + 1
}
