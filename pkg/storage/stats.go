package storage

import (
	"context"
	"fmt"
)

// Stats holds row counts reported by the stats command and API.
type Stats struct {
	Listings          int `json:"listings"`
	PublishedListings int `json:"published_listings"`
	Categories        int `json:"categories"`
	Translations      int `json:"translations"`
	Images            int `json:"images"`
	Sessions          int `json:"sessions"`
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM listings", &st.Listings},
		{"SELECT COUNT(*) FROM listings WHERE status = 'published'", &st.PublishedListings},
		{"SELECT COUNT(*) FROM categories", &st.Categories},
		{"SELECT COUNT(*) FROM listing_translations", &st.Translations},
		{"SELECT COUNT(*) FROM listing_images", &st.Images},
		{"SELECT COUNT(*) FROM sessions", &st.Sessions},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("collecting stats: %w", err)
		}
	}
	return &st, nil
}
