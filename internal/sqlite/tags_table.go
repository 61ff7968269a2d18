package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// tagTable describes one lookup table and its join table.
type tagTable struct {
	table     string
	idCol     string
	linkTable string
	newID     func() string
}

var (
	labelTable = tagTable{
		table:     "labels",
		idCol:     "label_id",
		linkTable: "entity_labels",
		newID:     newUUID,
	}
	personTable = tagTable{
		table:     "people",
		idCol:     "person_id",
		linkTable: "entity_people",
		newID:     types.NewPersonID,
	}
)

// tagRow is one lookup record.
type tagRow struct {
	id        string
	name      string
	key       string
	createdAt time.Time
}

// tagReconciler keeps entity_labels and entity_people equal to the desired
// name sets.
type tagReconciler struct {
	b *Backend
}

func (r *tagReconciler) syncLabels(ctx context.Context, q querier, entityID string, desired []string) (types.TagDiff, error) {
	return r.reconcile(ctx, q, labelTable, entityID, types.NormalizeLabels(desired))
}

func (r *tagReconciler) syncPeople(ctx context.Context, q querier, entityID string, desired []string) (types.TagDiff, error) {
	return r.reconcile(ctx, q, personTable, entityID, types.NormalizePeople(desired))
}

// reconcile links every desired name, unlinks every other name, and creates
// lookup records for names seen for the first time. desired must already be
// normalized.
func (r *tagReconciler) reconcile(ctx context.Context, q querier, t tagTable, entityID string, desired []string) (types.TagDiff, error) {
	current, err := r.linked(ctx, q, t, entityID)
	if err != nil {
		return types.TagDiff{}, err
	}
	currentKeys := make(map[string]bool, len(current))
	for _, row := range current {
		currentKeys[row.key] = true
	}

	var diff types.TagDiff
	desiredKeys := make(map[string]bool, len(desired))
	for _, name := range desired {
		key := types.FoldName(name)
		desiredKeys[key] = true
		if currentKeys[key] {
			continue
		}
		row, err := r.ensure(ctx, q, t, name)
		if err != nil {
			return types.TagDiff{}, err
		}
		_, err = q.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (entity_id, %s) VALUES (?, ?) ON CONFLICT DO NOTHING", t.linkTable, t.idCol),
			entityID, row.id,
		)
		if err != nil {
			return types.TagDiff{}, fmt.Errorf("linking %s %q: %w", t.table, name, err)
		}
		diff.Added = append(diff.Added, row.name)
	}

	for _, row := range current {
		if desiredKeys[row.key] {
			continue
		}
		_, err := q.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE entity_id = ? AND %s = ?", t.linkTable, t.idCol),
			entityID, row.id,
		)
		if err != nil {
			return types.TagDiff{}, fmt.Errorf("unlinking %s %q: %w", t.table, row.name, err)
		}
		diff.Removed = append(diff.Removed, row.name)
	}
	return diff, nil
}

// ensure returns the record whose folded name matches name, creating it on
// first use.
func (r *tagReconciler) ensure(ctx context.Context, q querier, t tagTable, name string) (tagRow, error) {
	key := types.FoldName(name)
	row, err := scanTag(q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s, name, name_key, created_at FROM %s WHERE name_key = ?", t.idCol, t.table),
		key,
	))
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return tagRow{}, fmt.Errorf("looking up %s %q: %w", t.table, name, err)
	}

	row = tagRow{id: t.newID(), name: name, key: key, createdAt: r.b.timestamp()}
	_, err = q.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s, name, name_key, created_at) VALUES (?, ?, ?, ?)", t.table, t.idCol),
		row.id, row.name, row.key, row.createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return tagRow{}, fmt.Errorf("creating %s %q: %w", t.table, name, err)
	}
	return row, nil
}

// linked returns the records linked to entityID ordered by folded name.
func (r *tagReconciler) linked(ctx context.Context, q querier, t tagTable, entityID string) ([]tagRow, error) {
	rows, err := q.QueryContext(ctx,
		fmt.Sprintf(`SELECT t.%[1]s, t.name, t.name_key, t.created_at
		 FROM %[2]s l JOIN %[3]s t ON t.%[1]s = l.%[1]s
		 WHERE l.entity_id = ?
		 ORDER BY t.name_key`, t.idCol, t.linkTable, t.table),
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading %s of %s: %w", t.table, entityID, err)
	}
	return collectTags(rows)
}

// linkedNames returns the display names linked to entityID ordered by folded
// name.
func (r *tagReconciler) linkedNames(ctx context.Context, q querier, t tagTable, entityID string) ([]string, error) {
	rows, err := r.linked(ctx, q, t, entityID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.name
	}
	return names, nil
}

// unlinkAll removes every link of entityID from t's join table.
func (r *tagReconciler) unlinkAll(ctx context.Context, q querier, t tagTable, entityID string) error {
	_, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE entity_id = ?", t.linkTable), entityID)
	if err != nil {
		return fmt.Errorf("unlinking %s of %s: %w", t.table, entityID, err)
	}
	return nil
}

// all lists every record in t ordered by folded name.
func (r *tagReconciler) all(ctx context.Context, q querier, t tagTable) ([]tagRow, error) {
	rows, err := q.QueryContext(ctx,
		fmt.Sprintf("SELECT %s, name, name_key, created_at FROM %s ORDER BY name_key", t.idCol, t.table))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", t.table, err)
	}
	return collectTags(rows)
}

func collectTags(rows *sql.Rows) ([]tagRow, error) {
	defer rows.Close()
	var out []tagRow
	for rows.Next() {
		row, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanTag(row rowScanner) (tagRow, error) {
	var r tagRow
	var createdAt string
	if err := row.Scan(&r.id, &r.name, &r.key, &createdAt); err != nil {
		return tagRow{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return tagRow{}, fmt.Errorf("parsing created_at: %w", err)
	}
	r.createdAt = t
	return r, nil
}
