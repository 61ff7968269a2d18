package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/worktrack/pkg/types"
)

func upsertStatus(ctx context.Context, q querier, s types.Status) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO statuses (name, display_name, applies_to, color, sort_order, active)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		     display_name = excluded.display_name,
		     applies_to = excluded.applies_to,
		     color = excluded.color,
		     sort_order = excluded.sort_order,
		     active = excluded.active`,
		s.Name, s.DisplayName, strings.Join(s.AppliesTo, ","), s.Color, s.Order, s.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting status %s: %w", s.Name, err)
	}
	return nil
}

func hydrateStatus(row rowScanner) (types.Status, error) {
	var s types.Status
	var appliesTo string
	if err := row.Scan(&s.Name, &s.DisplayName, &appliesTo, &s.Color, &s.Order, &s.Active); err != nil {
		return types.Status{}, err
	}
	s.AppliesTo = strings.Split(appliesTo, ",")
	return s, nil
}

// resolveStatus returns the name of the active status matching token
// (case-insensitively) that applies to kind. ok is false when none matches.
func resolveStatus(ctx context.Context, q querier, token string, kind types.Kind) (name string, ok bool, err error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return "", false, nil
	}
	row := q.QueryRowContext(ctx,
		`SELECT name, display_name, applies_to, color, sort_order, active
		 FROM statuses WHERE name = ? AND active = 1`,
		token,
	)
	s, err := hydrateStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolving status %q: %w", token, err)
	}
	if !s.Applies(kind) {
		return "", false, nil
	}
	return s.Name, true, nil
}

// Statuses returns the catalog ordered by sort order and name.
func (b *Backend) Statuses(ctx context.Context) ([]types.Status, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := b.db.QueryContext(ctx,
		`SELECT name, display_name, applies_to, color, sort_order, active
		 FROM statuses ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("listing statuses: %w", err)
	}
	defer rows.Close()

	statuses := []types.Status{}
	for rows.Next() {
		s, err := hydrateStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating status: %w", err)
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}
