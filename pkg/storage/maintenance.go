package storage

import (
	"context"
	"fmt"
	"strings"
)

const ftsTable = "listing_translations_fts"

// IntegrityCheck runs SQLite's integrity check and, when deep is set, the
// FTS5 index check against listing_translations.
func (s *Store) IntegrityCheck(ctx context.Context, deep bool) error {
	rows, err := s.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return fmt.Errorf("running integrity check: %w", err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return err
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(problems) > 0 {
		return fmt.Errorf("integrity check failed: %s", strings.Join(problems, "; "))
	}

	if deep {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO "+ftsTable+"("+ftsTable+", rank) VALUES('integrity-check', 1)"); err != nil {
			return fmt.Errorf("FTS integrity check: %w", err)
		}
	}
	return nil
}

// RebuildFTS regenerates the full-text index from listing_translations.
func (s *Store) RebuildFTS(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "INSERT INTO "+ftsTable+"("+ftsTable+") VALUES('rebuild')"); err != nil {
		return fmt.Errorf("rebuilding FTS index: %w", err)
	}
	return nil
}

// Optimize merges the FTS index segments and runs PRAGMA optimize.
func (s *Store) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "INSERT INTO "+ftsTable+"("+ftsTable+") VALUES('optimize')"); err != nil {
		return fmt.Errorf("optimizing FTS index: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("running PRAGMA optimize: %w", err)
	}
	return nil
}

func (s *Store) Analyze(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "ANALYZE")
	return err
}

// Vacuum rebuilds the database file and truncates the WAL.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}
