// Package marker builds the map markers of a listing search: one marker per
// matching listing, with the listings of the current page drawn on top.
package marker

import "github.com/rubiojr/roost/pkg/core"

// Opacities of markers inside and outside the current page.
const (
	OpacityInPage  = 1.0
	OpacityOffPage = 0.4
)

// Marker is the JSON record consumed by the map script.
type Marker struct {
	ID        int64   `json:"id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Title     string  `json:"title"`
	Category  string  `json:"category"`
	Image     string  `json:"image"`
	Rating1   string  `json:"rating1"`
	Rating2   string  `json:"rating2"`
	Rating3   string  `json:"rating3"`
	Rating4   string  `json:"rating4"`
	Rating5   string  `json:"rating5"`
	Price     string  `json:"price"`
	Certified string  `json:"certified"`
	URL       string  `json:"url"`
	ZIndex    int     `json:"zindex"`
	Opacity   float64 `json:"opacity"`
}

// ImagePather returns the browser path of an image under a cache filter.
type ImagePather interface {
	BrowserPath(path, filter string) string
}

// PriceFormatter converts an amount of the base currency to target and
// formats it for locale.
type PriceFormatter interface {
	ConvertAndFormat(amount float64, target string, decimals bool, locale string) string
}

// URLGenerator returns the URL of a listing page.
type URLGenerator interface {
	ListingURL(slug string) string
}

type Options struct {
	Locale         string
	FallbackLocale string
	// Currency is the display currency.
	Currency     string
	ImageFolder  string
	DefaultImage string
	ImageFilter  string
}

type Builder struct {
	images ImagePather
	prices PriceFormatter
	urls   URLGenerator
}

func NewBuilder(images ImagePather, prices PriceFormatter, urls URLGenerator) *Builder {
	return &Builder{images: images, prices: prices, urls: urls}
}

// Build returns a marker for every listing in all, in order. Listings also
// present in page get a z-index above every other marker and full opacity.
func (b *Builder) Build(page, all []core.Listing, opts Options) []Marker {
	inPage := make(map[int64]bool, len(page))
	for _, l := range page {
		inPage[l.ID] = true
	}

	nbResults := len(all)
	markers := make([]Marker, 0, nbResults)
	for i := range all {
		l := &all[i]

		image, ok := l.FirstImage()
		if !ok {
			image = opts.DefaultImage
		}

		category := ""
		if len(l.Categories) > 0 {
			category = l.Categories[0].Name(opts.Locale, opts.FallbackLocale)
		}

		tr, _ := l.Translation(opts.Locale, opts.FallbackLocale)

		m := Marker{
			ID:        l.ID,
			Lat:       l.Location.Coordinate.Lat,
			Lng:       l.Location.Coordinate.Lng,
			Title:     tr.Title,
			Category:  category,
			Image:     b.images.BrowserPath(opts.ImageFolder+image, opts.ImageFilter),
			Rating1:   starClass(l.AverageRating, 1),
			Rating2:   starClass(l.AverageRating, 2),
			Rating3:   starClass(l.AverageRating, 3),
			Rating4:   starClass(l.AverageRating, 4),
			Rating5:   starClass(l.AverageRating, 5),
			Price:     b.prices.ConvertAndFormat(l.PriceUnits(), opts.Currency, false, opts.Locale),
			Certified: "hidden",
			URL:       b.urls.ListingURL(tr.Slug),
			ZIndex:    i,
			Opacity:   OpacityOffPage,
		}
		if l.Certified {
			m.Certified = "certified"
		}
		if inPage[l.ID] {
			m.ZIndex = 2*nbResults - i
			m.Opacity = OpacityInPage
		}
		markers = append(markers, m)
	}
	return markers
}

// Ratings returns the five star classes for rating, as used by markers.
func Ratings(rating float64) [5]string {
	var r [5]string
	for i := range r {
		r[i] = starClass(rating, i+1)
	}
	return r
}

func starClass(avg float64, star int) string {
	if avg >= float64(star) {
		return ""
	}
	return "inactive"
}

// IDs returns the listing ids of markers in order.
func IDs(markers []Marker) []int64 {
	ids := make([]int64, len(markers))
	for i, m := range markers {
		ids[i] = m.ID
	}
	return ids
}
