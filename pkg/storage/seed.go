package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rubiojr/roost/pkg/core"
	"gopkg.in/yaml.v3"
)

// Seed is the import file format: categories and listings in YAML.
type Seed struct {
	Categories []CategoryInput `yaml:"categories"`
	Listings   []ListingInput  `yaml:"listings"`
}

type CategoryInput struct {
	ID       int64             `yaml:"id"`
	ParentID *int64            `yaml:"parent_id,omitempty"`
	Names    map[string]string `yaml:"names"`
}

type ListingInput struct {
	ID int64 `yaml:"id"`
	// Price is in cents of the base currency.
	Price         int64              `yaml:"price"`
	Certified     bool               `yaml:"certified"`
	AverageRating float64            `yaml:"average_rating"`
	Status        string             `yaml:"status,omitempty"`
	Location      core.Location      `yaml:"location"`
	Translations  []core.Translation `yaml:"translations"`
	Images        []core.Image       `yaml:"images"`
	Categories    []int64            `yaml:"categories"`
	// Unavailable lists booked days as YYYY-MM-DD.
	Unavailable []string `yaml:"unavailable"`
}

// ParseSeed decodes a YAML seed, rejecting unknown fields.
func ParseSeed(r io.Reader) (*Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var seed Seed
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("decoding seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks ids, coordinates, translations and day formats.
func (s *Seed) Validate() error {
	categories := make(map[int64]bool, len(s.Categories))
	for _, c := range s.Categories {
		if c.ID <= 0 {
			return fmt.Errorf("category with invalid id %d", c.ID)
		}
		categories[c.ID] = true
	}

	seen := make(map[int64]bool, len(s.Listings))
	for _, l := range s.Listings {
		if l.ID <= 0 {
			return fmt.Errorf("listing with invalid id %d", l.ID)
		}
		if seen[l.ID] {
			return fmt.Errorf("listing %d defined twice", l.ID)
		}
		seen[l.ID] = true

		c := l.Location.Coordinate
		if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
			return fmt.Errorf("listing %d: coordinates out of range", l.ID)
		}
		if len(l.Translations) == 0 {
			return fmt.Errorf("listing %d: at least one translation is required", l.ID)
		}
		for _, t := range l.Translations {
			if t.Locale == "" || t.Title == "" || t.Slug == "" {
				return fmt.Errorf("listing %d: translations need locale, title and slug", l.ID)
			}
		}
		for _, id := range l.Categories {
			if !categories[id] {
				return fmt.Errorf("listing %d: unknown category %d", l.ID, id)
			}
		}
		for _, day := range l.Unavailable {
			if _, err := time.Parse(dayLayout, day); err != nil {
				return fmt.Errorf("listing %d: invalid unavailable day %q", l.ID, day)
			}
		}
		switch l.Status {
		case "", core.StatusPublished, core.StatusHidden:
		default:
			return fmt.Errorf("listing %d: unknown status %q", l.ID, l.Status)
		}
	}
	return nil
}

// Import upserts the seed in a single transaction. Child rows of imported
// listings (translations, images, categories, unavailabilities) are replaced.
func (s *Store) Import(ctx context.Context, seed *Seed) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback()
	}()

	for _, c := range seed.Categories {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, parent_id) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET parent_id = excluded.parent_id`, c.ID, c.ParentID); err != nil {
			return fmt.Errorf("importing category %d: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM category_translations WHERE category_id = ?", c.ID); err != nil {
			return fmt.Errorf("clearing category %d translations: %w", c.ID, err)
		}
		for locale, name := range c.Names {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO category_translations (category_id, locale, name) VALUES (?, ?, ?)",
				c.ID, locale, name); err != nil {
				return fmt.Errorf("importing category %d translation: %w", c.ID, err)
			}
		}
	}

	for _, l := range seed.Listings {
		status := l.Status
		if status == "" {
			status = core.StatusPublished
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO listings (id, price, certified, average_rating, status, lat, lng, city, country)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				price = excluded.price,
				certified = excluded.certified,
				average_rating = excluded.average_rating,
				status = excluded.status,
				lat = excluded.lat,
				lng = excluded.lng,
				city = excluded.city,
				country = excluded.country`,
			l.ID, l.Price, l.Certified, l.AverageRating, status,
			l.Location.Coordinate.Lat, l.Location.Coordinate.Lng, l.Location.City, l.Location.Country); err != nil {
			return fmt.Errorf("importing listing %d: %w", l.ID, err)
		}

		for _, table := range []string{"listing_translations", "listing_images", "listing_categories", "listing_unavailabilities"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE listing_id = ?", l.ID); err != nil {
				return fmt.Errorf("clearing %s of listing %d: %w", table, l.ID, err)
			}
		}

		for _, t := range l.Translations {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO listing_translations (listing_id, locale, title, slug, description)
				VALUES (?, ?, ?, ?, ?)`, l.ID, t.Locale, t.Title, t.Slug, t.Description); err != nil {
				return fmt.Errorf("importing listing %d translation %s: %w", l.ID, t.Locale, err)
			}
		}
		for _, img := range l.Images {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO listing_images (listing_id, name, position) VALUES (?, ?, ?)",
				l.ID, img.Name, img.Position); err != nil {
				return fmt.Errorf("importing listing %d image: %w", l.ID, err)
			}
		}
		for i, categoryID := range l.Categories {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO listing_categories (listing_id, category_id, position) VALUES (?, ?, ?)",
				l.ID, categoryID, i); err != nil {
				return fmt.Errorf("importing listing %d category: %w", l.ID, err)
			}
		}
		for _, day := range l.Unavailable {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO listing_unavailabilities (listing_id, day) VALUES (?, ?)",
				l.ID, day); err != nil {
				return fmt.Errorf("importing listing %d availability: %w", l.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	logger.Infof("imported %d categories and %d listings", len(seed.Categories), len(seed.Listings))
	return nil
}
