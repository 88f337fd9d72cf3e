package types

import (
	"net/url"

	"github.com/rubiojr/roost/pkg/marker"
	"github.com/rubiojr/roost/pkg/pagination"
)

// Translate returns the message for key in the page locale.
type Translate func(key string, params map[string]string) string

// PageData represents data shared by every page
type PageData struct {
	Title      string
	Locale     string
	Locales    []LocaleLink
	Currency   string
	Currencies []CurrencyLink
	// Flashes maps a flash kind to its messages, shown once.
	Flashes map[string][]string
	HomeURL string
	Version string
	T       Translate
}

type LocaleLink struct {
	Code   string
	URL    string
	Active bool
}

type CurrencyLink struct {
	Code   string
	URL    string
	Active bool
}

// SearchForm is a search form bound to a request.
type SearchForm struct {
	Action     string
	Values     url.Values
	Categories []Option
	SortOrders []Option
	// Invalid lists the fields that failed validation.
	Invalid map[string]bool
}

type Option struct {
	Value    string
	Label    string
	Selected bool
}

// ListingCard is a listing in a result list.
type ListingCard struct {
	ID        int64
	Title     string
	URL       string
	Image     string
	Price     string
	Category  string
	City      string
	Certified bool
	Ratings   [5]string
}

type SearchResultData struct {
	PageData
	Form        SearchForm
	Submitted   bool
	Results     []ListingCard
	NbResults   int
	Markers     []marker.Marker
	MarkersJSON string
	Pagination  pagination.Pagination
}

type ListingView struct {
	ID    int64
	Title string
	// Description is sanitized HTML.
	Description string
	Images      []string
	Price       string
	Rating      float64
	Ratings     [5]string
	Certified   bool
	Categories  []string
	City        string
	Country     string
	Lat         float64
	Lng         float64
}

type ListingPageData struct {
	PageData
	Listing ListingView
	// SimilarURL is fetched by the page script to fill the similar block.
	SimilarURL string
}

// FormData is a form fragment rendered without the layout.
type FormData struct {
	T    Translate
	Form SearchForm
}

type SimilarData struct {
	T        Translate
	Listings []ListingCard
}

type ErrorPageData struct {
	PageData
	Status  int
	Message string
}

type HomePageData struct {
	PageData
	Form SearchForm
}
