package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// maxProjectActivity caps ProjectActivity results.
const maxProjectActivity = 50

// activityLedger is the per-entity log of user updates and system notices.
type activityLedger struct {
	b *Backend
}

// appendSystemEntry renders change and appends it as a system entry.
func (l *activityLedger) appendSystemEntry(ctx context.Context, q querier, entityID string, change types.ActivityChange) (types.ActivityEntry, error) {
	entry := types.ActivityEntry{
		EntityID:     entityID,
		Timestamp:    types.ActivityTimestamp(l.b.timestamp()),
		Content:      types.ActivityMessage(change.Type, change.Old, change.New),
		Type:         types.EntrySystem,
		ActivityType: change.Type,
	}
	if err := l.append(ctx, q, &entry); err != nil {
		return types.ActivityEntry{}, err
	}
	return entry, nil
}

// appendUserEntry appends a user-authored update.
func (l *activityLedger) appendUserEntry(ctx context.Context, q querier, entityID, content string) (types.ActivityEntry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return types.ActivityEntry{}, types.ErrEmptyContent
	}
	entry := types.ActivityEntry{
		EntityID:  entityID,
		Timestamp: types.ActivityTimestamp(l.b.timestamp()),
		Content:   content,
		Type:      types.EntryUser,
	}
	if err := l.append(ctx, q, &entry); err != nil {
		return types.ActivityEntry{}, err
	}
	return entry, nil
}

func (l *activityLedger) append(ctx context.Context, q querier, e *types.ActivityEntry) error {
	var position int
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position), 0) + 1 FROM activity WHERE entity_id = ?", e.EntityID,
	).Scan(&position)
	if err != nil {
		return fmt.Errorf("reading activity position: %w", err)
	}
	e.EntryID = newUUID()
	return l.insert(ctx, q, *e, position)
}

func (l *activityLedger) insert(ctx context.Context, q querier, e types.ActivityEntry, position int) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO activity (entry_id, entity_id, timestamp, position, content, entry_type, activity_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EntryID, e.EntityID, e.Timestamp, position, e.Content, e.Type, e.ActivityType,
	)
	if err != nil {
		return fmt.Errorf("inserting activity for %s: %w", e.EntityID, err)
	}
	return nil
}

// reconcile replaces the ledger of entityID with payload. When a payload
// timestamp already has persisted entries, their classification and subtype
// win over the payload's; the n-th payload entry at a timestamp matches the
// n-th persisted entry there and keeps its entry id.
func (l *activityLedger) reconcile(ctx context.Context, q querier, entityID string, payload []types.ActivityEntry) error {
	persisted, err := l.list(ctx, q, entityID)
	if err != nil {
		return err
	}
	byTimestamp := make(map[string][]types.ActivityEntry)
	for _, e := range persisted {
		byTimestamp[e.Timestamp] = append(byTimestamp[e.Timestamp], e)
	}

	now := types.ActivityTimestamp(l.b.timestamp())
	seen := make(map[string]int)
	resolved := make([]types.ActivityEntry, 0, len(payload))
	for _, p := range payload {
		e := types.ActivityEntry{
			EntityID:     entityID,
			Timestamp:    strings.TrimSpace(p.Timestamp),
			Content:      p.Content,
			Type:         p.Type,
			ActivityType: p.ActivityType,
		}
		if e.Timestamp == "" {
			e.Timestamp = now
		}

		n := seen[e.Timestamp]
		seen[e.Timestamp]++
		if prior := byTimestamp[e.Timestamp]; len(prior) > 0 {
			match := prior[min(n, len(prior)-1)]
			e.Type, e.ActivityType = match.Type, match.ActivityType
			if n < len(prior) {
				e.EntryID = prior[n].EntryID
			}
		} else if e.Type != types.EntrySystem {
			e.Type = types.EntryUser
		}
		if e.EntryID == "" {
			e.EntryID = newUUID()
		}
		resolved = append(resolved, e)
	}

	if err := l.deleteAll(ctx, q, entityID); err != nil {
		return err
	}
	for i, e := range resolved {
		if err := l.insert(ctx, q, e, i+1); err != nil {
			return err
		}
	}
	return nil
}

// list returns the ledger of entityID in (timestamp, position) order.
func (l *activityLedger) list(ctx context.Context, q querier, entityID string) ([]types.ActivityEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT entry_id, entity_id, timestamp, content, entry_type, activity_type
		 FROM activity WHERE entity_id = ?
		 ORDER BY timestamp, position`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading activity of %s: %w", entityID, err)
	}
	return collectActivity(rows)
}

// recentForProject returns the newest entries of a project and every entity
// that belongs to it.
func (l *activityLedger) recentForProject(ctx context.Context, q querier, projectID string, limit int) ([]types.ActivityEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT a.entry_id, a.entity_id, a.timestamp, a.content, a.entry_type, a.activity_type
		 FROM activity a JOIN entities e ON e.id = a.entity_id
		 WHERE e.id = ? OR e.project_id = ?
		 ORDER BY a.timestamp DESC, a.position DESC
		 LIMIT ?`,
		projectID, projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("reading activity of project %s: %w", projectID, err)
	}
	return collectActivity(rows)
}

func (l *activityLedger) deleteAll(ctx context.Context, q querier, entityID string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM activity WHERE entity_id = ?", entityID); err != nil {
		return fmt.Errorf("deleting activity of %s: %w", entityID, err)
	}
	return nil
}

func collectActivity(rows *sql.Rows) ([]types.ActivityEntry, error) {
	defer rows.Close()
	entries := []types.ActivityEntry{}
	for rows.Next() {
		var e types.ActivityEntry
		if err := rows.Scan(&e.EntryID, &e.EntityID, &e.Timestamp, &e.Content, &e.Type, &e.ActivityType); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
