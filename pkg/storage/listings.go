package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rubiojr/roost/pkg/core"
)

// SearchListings returns the listings matching q, hydrated in q.Locale.
func (s *Store) SearchListings(ctx context.Context, q ListingQuery) ([]core.Listing, error) {
	where, args := q.where(s.defaultLocale)
	order, orderArgs := q.orderBy()

	query := "SELECT l.id FROM listings l WHERE " + where + " ORDER BY " + order
	args = append(args, orderArgs...)
	if q.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	logger.Debugf("search: %s %v", query, args)

	ids, err := s.queryIDs(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching listings: %w", err)
	}
	return s.hydrate(ctx, ids, q.Locale)
}

// CountListings returns the number of listings matching q, ignoring
// limit and offset.
func (s *Store) CountListings(ctx context.Context, q ListingQuery) (int, error) {
	where, args := q.where(s.defaultLocale)

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings l WHERE "+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting listings: %w", err)
	}
	return n, nil
}

// ListingsByIDs returns the published listings among ids, in the order of
// ids, skipping any id in exclude.
func (s *Store) ListingsByIDs(ctx context.Context, ids []int64, locale string, exclude []int64) ([]core.Listing, error) {
	skip := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	wanted := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if skip[id] || seen[id] {
			continue
		}
		seen[id] = true
		wanted = append(wanted, id)
	}
	if len(wanted) == 0 {
		return []core.Listing{}, nil
	}

	args := make([]any, 0, len(wanted)+1)
	args = append(args, core.StatusPublished)
	for _, id := range wanted {
		args = append(args, id)
	}
	published, err := s.queryIDs(ctx,
		"SELECT id FROM listings WHERE status = ? AND id IN ("+placeholders(len(wanted))+")", args...)
	if err != nil {
		return nil, fmt.Errorf("loading listings by id: %w", err)
	}

	ok := make(map[int64]bool, len(published))
	for _, id := range published {
		ok[id] = true
	}
	ordered := wanted[:0]
	for _, id := range wanted {
		if ok[id] {
			ordered = append(ordered, id)
		}
	}
	return s.hydrate(ctx, ordered, locale)
}

// ListingBySlug finds a published listing by its slug in locale or in the
// default locale.
func (s *Store) ListingBySlug(ctx context.Context, slug, locale string) (*core.Listing, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT t.listing_id FROM listing_translations t
		JOIN listings l ON l.id = t.listing_id
		WHERE t.slug = ? AND t.locale IN (?, ?) AND l.status = ?
		ORDER BY t.locale = ? DESC
		LIMIT 1`, slug, locale, s.defaultLocale, core.StatusPublished, locale).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding listing %q: %w", slug, err)
	}

	listings, err := s.hydrate(ctx, []int64{id}, locale)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, ErrNotFound
	}
	return &listings[0], nil
}

// Categories returns every category labelled in locale (or the default locale).
func (s *Store) Categories(ctx context.Context, locale string) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, ct.locale, ct.name FROM categories c
		JOIN category_translations ct ON ct.category_id = c.id
		WHERE ct.locale IN (?, ?)
		ORDER BY c.id`, locale, s.defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	index := make(map[int64]int)
	for rows.Next() {
		var id int64
		var loc, name string
		if err := rows.Scan(&id, &loc, &name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		i, ok := index[id]
		if !ok {
			i = len(categories)
			index[id] = i
			categories = append(categories, core.Category{ID: id, Names: make(map[string]string)})
		}
		categories[i].Names[loc] = name
	}
	return categories, rows.Err()
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// hydrate loads listings with their translations (locale and default
// locale), images and categories, preserving the order of ids.
func (s *Store) hydrate(ctx context.Context, ids []int64, locale string) ([]core.Listing, error) {
	if len(ids) == 0 {
		return []core.Listing{}, nil
	}

	idArgs := make([]any, len(ids))
	for i, id := range ids {
		idArgs[i] = id
	}
	in := "(" + placeholders(len(ids)) + ")"

	byID := make(map[int64]*core.Listing, len(ids))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, price, certified, average_rating, status, lat, lng, city, country
		FROM listings WHERE id IN `+in, idArgs...)
	if err != nil {
		return nil, fmt.Errorf("loading listings: %w", err)
	}
	for rows.Next() {
		l := &core.Listing{Translations: make(map[string]core.Translation)}
		if err := rows.Scan(&l.ID, &l.Price, &l.Certified, &l.AverageRating, &l.Status,
			&l.Location.Coordinate.Lat, &l.Location.Coordinate.Lng, &l.Location.City, &l.Location.Country); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		byID[l.ID] = l
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	localeArgs := append([]any{locale, s.defaultLocale}, idArgs...)

	rows, err = s.db.QueryContext(ctx, `
		SELECT listing_id, locale, title, slug, description
		FROM listing_translations WHERE locale IN (?, ?) AND listing_id IN `+in, localeArgs...)
	if err != nil {
		return nil, fmt.Errorf("loading translations: %w", err)
	}
	for rows.Next() {
		var id int64
		var t core.Translation
		if err := rows.Scan(&id, &t.Locale, &t.Title, &t.Slug, &t.Description); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning translation: %w", err)
		}
		if l, ok := byID[id]; ok {
			l.Translations[t.Locale] = t
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT listing_id, name, position FROM listing_images
		WHERE listing_id IN `+in+` ORDER BY listing_id, position, id`, idArgs...)
	if err != nil {
		return nil, fmt.Errorf("loading images: %w", err)
	}
	for rows.Next() {
		var id int64
		var img core.Image
		if err := rows.Scan(&id, &img.Name, &img.Position); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		if l, ok := byID[id]; ok {
			l.Images = append(l.Images, img)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT lc.listing_id, lc.category_id, ct.locale, ct.name
		FROM listing_categories lc
		LEFT JOIN category_translations ct ON ct.category_id = lc.category_id AND ct.locale IN (?, ?)
		WHERE lc.listing_id IN `+in+`
		ORDER BY lc.listing_id, lc.position, lc.category_id`, localeArgs...)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	for rows.Next() {
		var id, categoryID int64
		var loc, name sql.NullString
		if err := rows.Scan(&id, &categoryID, &loc, &name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning listing category: %w", err)
		}
		l, ok := byID[id]
		if !ok {
			continue
		}
		n := len(l.Categories)
		if n == 0 || l.Categories[n-1].ID != categoryID {
			l.Categories = append(l.Categories, core.Category{ID: categoryID, Names: make(map[string]string)})
			n++
		}
		if loc.Valid {
			l.Categories[n-1].Names[loc.String] = name.String
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	listings := make([]core.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			listings = append(listings, *l)
		}
	}
	return listings, nil
}
