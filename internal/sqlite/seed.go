package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// statusCatalog is the layout of a statuses.toml file:
//
//	[[status]]
//	name = "review"
//	display_name = "In Review"
//	applies_to = ["task", "subtask"]
//	order = 4
//	active = true
//
// A missing active key means the status is active.
type statusCatalog struct {
	Status []catalogStatus `toml:"status"`
}

type catalogStatus struct {
	types.Status
	Active *bool `toml:"active"`
}

// seedStatuses inserts the built-in catalog when the statuses table is empty.
// Existing rows are left alone so edited catalogs survive restarts.
func seedStatuses(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM statuses").Scan(&count); err != nil {
		return fmt.Errorf("counting statuses: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range types.BuiltInStatuses {
		if err := upsertStatus(ctx, tx, s); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// loadStatusCatalog upserts every status in a TOML catalog file.
func loadStatusCatalog(ctx context.Context, db *sql.DB, path string) (int, error) {
	var catalog statusCatalog
	if _, err := toml.DecodeFile(path, &catalog); err != nil {
		return 0, fmt.Errorf("decoding %s: %w", path, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning catalog transaction: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range catalog.Status {
		s := entry.Status
		s.Active = entry.Active == nil || *entry.Active
		s.Name = strings.ToLower(strings.TrimSpace(s.Name))
		if s.Name == "" {
			return 0, fmt.Errorf("%s: %w", path, types.ErrEmptyName)
		}
		if s.DisplayName == "" {
			s.DisplayName = s.Name
		}
		if len(s.AppliesTo) == 0 {
			s.AppliesTo = []string{types.AllKinds}
		}
		if err := upsertStatus(ctx, tx, s); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing catalog: %w", err)
	}
	return len(catalog.Status), nil
}
