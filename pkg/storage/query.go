package storage

import (
	"strings"
	"time"

	"github.com/rubiojr/roost/pkg/core"
)

// Sort orders understood by ListingQuery.
const (
	SortRecommended = "recommended"
	SortPrice       = "price"
	SortDistance    = "distance"
)

const dayLayout = "2006-01-02"

// Bounds is a map viewport. When SW.Lng > NE.Lng the box crosses the
// antimeridian.
type Bounds struct {
	NE core.Coordinate
	SW core.Coordinate
}

// ListingQuery describes a listing search. A zero Limit returns every match.
type ListingQuery struct {
	Locale      string
	Keywords    string
	CategoryIDs []int64
	// PriceMin and PriceMax are in cents of the base currency.
	PriceMin *int64
	PriceMax *int64
	Bounds   *Bounds
	// Near is the reference point for SortDistance.
	Near      *core.Coordinate
	DateStart *time.Time
	DateEnd   *time.Time
	SortBy    string
	Limit     int
	Offset    int
}

// Unpaginated returns a copy of q without limit and offset.
func (q ListingQuery) Unpaginated() ListingQuery {
	q.Limit = 0
	q.Offset = 0
	return q
}

func (q ListingQuery) where(fallbackLocale string) (string, []any) {
	conds := []string{"l.status = ?"}
	args := []any{core.StatusPublished}

	if match := ftsQuery(q.Keywords); match != "" {
		conds = append(conds, `l.id IN (
			SELECT t.listing_id FROM listing_translations t
			JOIN listing_translations_fts f ON f.rowid = t.rowid
			WHERE listing_translations_fts MATCH ? AND t.locale IN (?, ?))`)
		args = append(args, match, q.Locale, fallbackLocale)
	}

	if len(q.CategoryIDs) > 0 {
		conds = append(conds, "l.id IN (SELECT listing_id FROM listing_categories WHERE category_id IN ("+placeholders(len(q.CategoryIDs))+"))")
		for _, id := range q.CategoryIDs {
			args = append(args, id)
		}
	}

	if q.PriceMin != nil {
		conds = append(conds, "l.price >= ?")
		args = append(args, *q.PriceMin)
	}
	if q.PriceMax != nil {
		conds = append(conds, "l.price <= ?")
		args = append(args, *q.PriceMax)
	}

	if b := q.Bounds; b != nil {
		conds = append(conds, "l.lat BETWEEN ? AND ?")
		args = append(args, b.SW.Lat, b.NE.Lat)
		if b.SW.Lng <= b.NE.Lng {
			conds = append(conds, "l.lng BETWEEN ? AND ?")
		} else {
			conds = append(conds, "(l.lng >= ? OR l.lng <= ?)")
		}
		args = append(args, b.SW.Lng, b.NE.Lng)
	}

	if q.DateStart != nil {
		start := *q.DateStart
		end := start.AddDate(0, 0, 1)
		if q.DateEnd != nil && q.DateEnd.After(start) {
			end = *q.DateEnd
		}
		// Nights are [start, end).
		conds = append(conds, `NOT EXISTS (
			SELECT 1 FROM listing_unavailabilities u
			WHERE u.listing_id = l.id AND u.day >= ? AND u.day < ?)`)
		args = append(args, start.Format(dayLayout), end.Format(dayLayout))
	}

	return strings.Join(conds, " AND "), args
}

func (q ListingQuery) orderBy() (string, []any) {
	switch q.SortBy {
	case SortPrice:
		return "l.price ASC, l.id ASC", nil
	case SortDistance:
		if q.Near != nil {
			lat, lng := q.Near.Lat, q.Near.Lng
			return "((l.lat - ?) * (l.lat - ?) + (l.lng - ?) * (l.lng - ?)) ASC, l.id ASC", []any{lat, lat, lng, lng}
		}
	}
	return "l.certified DESC, l.average_rating DESC, l.id ASC", nil
}

// ftsQuery turns free text into an FTS5 query matching every word as a
// prefix. Quoting each word keeps FTS5 operators in user input inert.
func ftsQuery(keywords string) string {
	words := strings.Fields(keywords)
	if len(words) == 0 {
		return ""
	}
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"*`
	}
	return strings.Join(parts, " ")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
