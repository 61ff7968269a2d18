package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/worktrack/pkg/types"
)

const entityColumns = `id, kind, title, status, status_raw, priority, created_at, updated_at,
    due_date, schedule_start, schedule_end, content, archived, seq_id,
    project_id, epic_id, task_id, color, is_inbox, checklist`

// entityStore holds the canonical record of each work item.
type entityStore struct {
	b *Backend
}

// get returns the entity row for id without read-side projections.
// Returns ErrNotFound if no row exists.
func (s *entityStore) get(ctx context.Context, q querier, id string) (*types.Entity, error) {
	row := q.QueryRowContext(ctx, "SELECT "+entityColumns+" FROM entities WHERE id = ?", id)
	e, err := hydrateEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity %s: %w", id, err)
	}
	return e, nil
}

// lookup is get with a nil result instead of ErrNotFound.
func (s *entityStore) lookup(ctx context.Context, q querier, id string) (*types.Entity, error) {
	e, err := s.get(ctx, q, id)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil
	}
	return e, err
}

// upsert inserts e or replaces every column of the existing row.
func (s *entityStore) upsert(ctx context.Context, q querier, e *types.Entity) error {
	checklist, err := json.Marshal(nonNilChecklist(e.Checklist))
	if err != nil {
		return fmt.Errorf("encoding checklist: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO entities (`+entityColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     title = excluded.title,
		     status = excluded.status,
		     status_raw = excluded.status_raw,
		     priority = excluded.priority,
		     created_at = excluded.created_at,
		     updated_at = excluded.updated_at,
		     due_date = excluded.due_date,
		     schedule_start = excluded.schedule_start,
		     schedule_end = excluded.schedule_end,
		     content = excluded.content,
		     archived = excluded.archived,
		     seq_id = excluded.seq_id,
		     project_id = excluded.project_id,
		     epic_id = excluded.epic_id,
		     task_id = excluded.task_id,
		     color = excluded.color,
		     is_inbox = excluded.is_inbox,
		     checklist = excluded.checklist`,
		e.ID, string(e.Kind), e.Title, nullString(e.Status), e.StatusRaw, nullInt(e.Priority),
		e.CreatedAt.UTC().Format(time.RFC3339), e.UpdatedAt.UTC().Format(time.RFC3339),
		nullTime(e.DueDate, types.DateLayout),
		nullTime(e.ScheduleStart, types.DateTimeLayout),
		nullTime(e.ScheduleEnd, types.DateTimeLayout),
		e.Content, e.Archived, e.SeqID,
		nullString(e.ProjectID), nullString(e.EpicID), nullString(e.TaskID),
		e.Color, e.IsInbox, string(checklist),
	)
	if err != nil {
		return fmt.Errorf("upserting entity %s: %w", e.ID, err)
	}
	return nil
}

// delete removes the entity row only.
func (s *entityStore) delete(ctx context.Context, q querier, id string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting entity %s: %w", id, err)
	}
	return nil
}

// children counts entities whose hierarchy pointers reference id.
func (s *entityStore) children(ctx context.Context, q querier, id string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entities WHERE project_id = ? OR epic_id = ? OR task_id = ?",
		id, id, id,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting children of %s: %w", id, err)
	}
	return n, nil
}

// validateParents checks that every hierarchy pointer references an existing
// entity of the matching kind and that epics and tasks share the child's
// project.
func (s *entityStore) validateParents(ctx context.Context, q querier, kind types.Kind, p types.Parents) error {
	if p.ProjectID != "" {
		if _, err := s.parent(ctx, q, p.ProjectID, types.KindProject); err != nil {
			return err
		}
	}
	if p.EpicID != "" {
		epic, err := s.parent(ctx, q, p.EpicID, types.KindEpic)
		if err != nil {
			return err
		}
		if epic.ProjectID != p.ProjectID {
			return fmt.Errorf("%w: epic %s is in %s, not %s", types.ErrParentMismatch, epic.ID, epic.ProjectID, p.ProjectID)
		}
	}
	if p.TaskID != "" {
		task, err := s.parent(ctx, q, p.TaskID, types.KindTask)
		if err != nil {
			return err
		}
		if task.ProjectID != p.ProjectID {
			return fmt.Errorf("%w: task %s is in %s, not %s", types.ErrParentMismatch, task.ID, task.ProjectID, p.ProjectID)
		}
	}
	return nil
}

func (s *entityStore) parent(ctx context.Context, q querier, id string, kind types.Kind) (*types.Entity, error) {
	e, err := s.lookup(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %s %s", types.ErrParentNotFound, kind, id)
	}
	if e.Kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", types.ErrInvalidParent, id, e.Kind, kind)
	}
	return e, nil
}

// nextSeqID returns the next per-project sequence id for kind, e.g. "t4"
// when the highest existing task sequence in the project is "t3".
func (s *entityStore) nextSeqID(ctx context.Context, q querier, kind types.Kind, projectID string) (string, error) {
	prefix := kind.SeqPrefix()
	if prefix == "" || projectID == "" {
		return "", nil
	}
	rows, err := q.QueryContext(ctx,
		"SELECT seq_id FROM entities WHERE kind = ? AND project_id = ? AND seq_id LIKE ?",
		string(kind), projectID, prefix+"%",
	)
	if err != nil {
		return "", fmt.Errorf("reading sequence ids: %w", err)
	}
	defer rows.Close()

	highest := 0
	for rows.Next() {
		var seq string
		if err := rows.Scan(&seq); err != nil {
			return "", err
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(seq, prefix)); err == nil && n > highest {
			highest = n
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return prefix + strconv.Itoa(highest+1), nil
}

// query returns entities matching f, newest first.
func (s *entityStore) query(ctx context.Context, q querier, f types.EntityQuery) ([]*types.Entity, error) {
	var conditions []string
	var args []any

	if f.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Status != "" {
		// Prefer the typed status; fall back to the raw token for rows
		// whose status never resolved.
		name, ok, err := s.knownStatus(ctx, q, f.Status)
		if err != nil {
			return nil, err
		}
		if ok {
			conditions = append(conditions, "status = ?")
			args = append(args, name)
		} else {
			conditions = append(conditions, "status_raw = ?")
			args = append(args, f.Status)
		}
	}
	if f.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.EpicID != "" {
		conditions = append(conditions, "epic_id = ?")
		args = append(args, f.EpicID)
	}
	if f.DueAfter != nil {
		conditions = append(conditions, "due_date >= ?")
		args = append(args, f.DueAfter.Format(types.DateLayout))
	}
	if f.DueBefore != nil {
		conditions = append(conditions, "due_date <= ?")
		args = append(args, f.DueBefore.Format(types.DateLayout))
	}
	if !f.IncludeArchived {
		conditions = append(conditions, "archived = 0")
	}

	query := "SELECT " + entityColumns + " FROM entities"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	results := []*types.Entity{}
	for rows.Next() {
		e, err := hydrateEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating entity: %w", err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return results, nil
}

// knownStatus reports whether token names a status in the catalog.
func (s *entityStore) knownStatus(ctx context.Context, q querier, token string) (string, bool, error) {
	name := strings.ToLower(strings.TrimSpace(token))
	var found string
	err := q.QueryRowContext(ctx, "SELECT name FROM statuses WHERE name = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up status %q: %w", token, err)
	}
	return found, true, nil
}

// allIDs returns every entity id with its kind.
func (s *entityStore) allIDs(ctx context.Context, q querier) (map[string]types.Kind, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, kind FROM entities")
	if err != nil {
		return nil, fmt.Errorf("listing entity ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]types.Kind)
	for rows.Next() {
		var id, kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, err
		}
		ids[id] = types.Kind(kind)
	}
	return ids, rows.Err()
}

// hydrateEntity converts a row selected with entityColumns into an Entity.
func hydrateEntity(row rowScanner) (*types.Entity, error) {
	var (
		e                                     types.Entity
		kind, createdAt, updatedAt, checklist string
		status, due, start, end               sql.NullString
		project, epic, task                   sql.NullString
		priority                              sql.NullInt64
	)
	err := row.Scan(
		&e.ID, &kind, &e.Title, &status, &e.StatusRaw, &priority, &createdAt, &updatedAt,
		&due, &start, &end, &e.Content, &e.Archived, &e.SeqID,
		&project, &epic, &task, &e.Color, &e.IsInbox, &checklist,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = types.Kind(kind)
	e.Status = status.String
	e.ProjectID, e.EpicID, e.TaskID = project.String, epic.String, task.String
	if priority.Valid {
		p := int(priority.Int64)
		e.Priority = &p
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if e.DueDate, err = parseNullTime(due, types.DateLayout); err != nil {
		return nil, fmt.Errorf("parsing due_date: %w", err)
	}
	if e.ScheduleStart, err = parseNullTime(start, types.DateTimeLayout); err != nil {
		return nil, fmt.Errorf("parsing schedule_start: %w", err)
	}
	if e.ScheduleEnd, err = parseNullTime(end, types.DateTimeLayout); err != nil {
		return nil, fmt.Errorf("parsing schedule_end: %w", err)
	}
	if err := json.Unmarshal([]byte(checklist), &e.Checklist); err != nil {
		return nil, fmt.Errorf("parsing checklist: %w", err)
	}
	if len(e.Checklist) == 0 {
		e.Checklist = nil
	}
	return &e, nil
}

func nonNilChecklist(items []types.ChecklistItem) []types.ChecklistItem {
	if items == nil {
		return []types.ChecklistItem{}
	}
	return items
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullTime(t *time.Time, layout string) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(layout), Valid: true}
}

func parseNullTime(s sql.NullString, layout string) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(layout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
