// Package core holds the listing domain types shared by the store, the
// search manager and the web layer.
package core

// Listing statuses. Only published listings are searchable.
const (
	StatusPublished = "published"
	StatusHidden    = "hidden"
)

type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

type Location struct {
	City       string     `json:"city" yaml:"city"`
	Country    string     `json:"country" yaml:"country"`
	Coordinate Coordinate `json:"coordinate" yaml:"coordinate"`
}

// Translation is the per-locale text of a listing.
type Translation struct {
	Locale      string `json:"locale" yaml:"locale"`
	Title       string `json:"title" yaml:"title"`
	Slug        string `json:"slug" yaml:"slug"`
	Description string `json:"description" yaml:"description"`
}

type Image struct {
	Name     string `json:"name" yaml:"name"`
	Position int    `json:"position" yaml:"position"`
}

type Category struct {
	ID int64 `json:"id" yaml:"id"`
	// Names maps a locale to the category label.
	Names map[string]string `json:"names" yaml:"names"`
}

// Name returns the label in locale, then in fallback, then "".
func (c Category) Name(locale, fallback string) string {
	if n, ok := c.Names[locale]; ok {
		return n
	}
	return c.Names[fallback]
}

type Listing struct {
	ID int64 `json:"id"`
	// Price is stored in cents of the base currency.
	Price         int64                  `json:"price"`
	Certified     bool                   `json:"certified"`
	AverageRating float64                `json:"average_rating"`
	Status        string                 `json:"status"`
	Location      Location               `json:"location"`
	Translations  map[string]Translation `json:"translations"`
	Images        []Image                `json:"images"`
	Categories    []Category             `json:"categories"`
}

// Translation returns the translation for locale, falling back to fallback.
// ok is false when neither exists.
func (l *Listing) Translation(locale, fallback string) (Translation, bool) {
	if t, ok := l.Translations[locale]; ok {
		return t, true
	}
	t, ok := l.Translations[fallback]
	return t, ok
}

// FirstImage returns the name of the image with the lowest position.
func (l *Listing) FirstImage() (string, bool) {
	if len(l.Images) == 0 {
		return "", false
	}
	first := l.Images[0]
	for _, img := range l.Images[1:] {
		if img.Position < first.Position {
			first = img
		}
	}
	return first.Name, true
}

// PriceUnits returns the price in whole base-currency units.
func (l *Listing) PriceUnits() float64 {
	return float64(l.Price) / 100
}

// IDs returns the ids of listings in order.
func IDs(listings []Listing) []int64 {
	ids := make([]int64, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
	}
	return ids
}
