package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mesh-intelligence/worktrack/internal/cache"
	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// SyncEntity applies p to the entity record, its labels and people, its
// activity ledger, and its search entry in one transaction. Payload problems
// that can be degraded (an unknown status, an unparsable date) are logged and
// never fail the sync.
func (b *Backend) SyncEntity(ctx context.Context, p types.SyncPayload) error {
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	log := b.logger.With(slog.String("entity_id", p.ID), slog.String("kind", string(p.Kind)))
	if err := p.Validate(); err != nil {
		log.Warn("sync rejected", slog.Any("error", err))
		return err
	}

	var prev, next *types.Entity
	err = b.withTx(ctx, func(tx *sql.Tx) error {
		if err := b.entities.validateParents(ctx, tx, p.Kind, p.Fields.Parents); err != nil {
			return err
		}
		var err error
		if prev, err = b.entities.lookup(ctx, tx, p.ID); err != nil {
			return err
		}
		if next, err = b.buildEntity(ctx, tx, log, p, prev); err != nil {
			return err
		}
		if err := b.entities.upsert(ctx, tx, next); err != nil {
			return err
		}

		if p.Labels != nil {
			diff, err := b.tags.syncLabels(ctx, tx, p.ID, p.Labels)
			if err != nil {
				return err
			}
			logDiff(log, "labels", diff)
		}
		if p.People != nil {
			diff, err := b.tags.syncPeople(ctx, tx, p.ID, p.People)
			if err != nil {
				return err
			}
			logDiff(log, "people", diff)
		}
		if p.Activity != nil {
			if err := b.ledger.reconcile(ctx, tx, p.ID, p.Activity); err != nil {
				return err
			}
		}
		return b.index.write(ctx, tx, p.ID)
	})
	if err != nil {
		if types.IsValidation(err) {
			log.Warn("sync rejected", slog.Any("error", err))
			return err
		}
		log.Error("sync failed", slog.Any("error", err))
		return fmt.Errorf("syncing entity %s: %w", p.ID, err)
	}

	b.invalidateFor(prev, next)
	log.Debug("entity synced", slog.Bool("created", prev == nil))
	return nil
}

// buildEntity resolves p against the previous state of the entity.
func (b *Backend) buildEntity(ctx context.Context, q querier, log *slog.Logger, p types.SyncPayload, prev *types.Entity) (*types.Entity, error) {
	f := p.Fields
	e := &types.Entity{
		ID:        p.ID,
		Kind:      p.Kind,
		Title:     f.Title,
		StatusRaw: strings.TrimSpace(f.Status),
		Priority:  f.Priority,
		Content:   f.Content,
		Archived:  f.Archived,
		SeqID:     strings.TrimSpace(f.SeqID),
		Parents:   f.Parents,
		Color:     f.Color,
		IsInbox:   f.IsInbox,
		Checklist: f.Checklist,
	}

	status, ok, err := resolveStatus(ctx, q, e.StatusRaw, p.Kind)
	if err != nil {
		return nil, err
	}
	switch {
	case ok:
		e.Status = status
	case prev != nil && prev.Status != "":
		e.Status = prev.Status
	default:
		if e.Status, _, err = resolveStatus(ctx, q, p.Kind.DefaultStatus(), p.Kind); err != nil {
			return nil, err
		}
	}
	if !ok && e.StatusRaw != "" {
		log.Warn("status unresolved; keeping fallback",
			slog.String("status", e.StatusRaw),
			slog.String("fallback", e.Status),
		)
	}
	if e.StatusRaw == "" && prev != nil {
		e.StatusRaw = prev.StatusRaw
	}

	now := b.timestamp()
	e.CreatedAt = now
	if prev != nil {
		e.CreatedAt = prev.CreatedAt
	}
	if t := b.parseDate(log, "created", f.Created, nil, false); t != nil {
		e.CreatedAt = *t
	}
	e.UpdatedAt = now
	if t := b.parseDate(log, "updated", f.Updated, nil, false); t != nil {
		e.UpdatedAt = *t
	}

	var prevDue, prevStart, prevEnd *time.Time
	if prev != nil {
		prevDue, prevStart, prevEnd = prev.DueDate, prev.ScheduleStart, prev.ScheduleEnd
	}
	e.DueDate = b.parseDate(log, "due_date", f.DueDate, prevDue, true)
	e.ScheduleStart = b.parseDate(log, "schedule_start", f.ScheduleStart, prevStart, false)
	e.ScheduleEnd = b.parseDate(log, "schedule_end", f.ScheduleEnd, prevEnd, false)

	if e.SeqID == "" && prev != nil {
		e.SeqID = prev.SeqID
	}
	if e.SeqID == "" {
		if e.SeqID, err = b.entities.nextSeqID(ctx, q, p.Kind, e.ProjectID); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// parseDate parses raw best-effort. Empty input clears the field; input that
// does not parse keeps fallback.
func (b *Backend) parseDate(log *slog.Logger, field, raw string, fallback *time.Time, dateOnly bool) *time.Time {
	parse := b.dates.DateTime
	if dateOnly {
		parse = b.dates.Date
	}
	t, err := parse(raw)
	if err != nil {
		log.Debug("dropping unparsable date", slog.String("field", field), slog.String("value", raw))
		return fallback
	}
	return t
}

func logDiff(log *slog.Logger, what string, d types.TagDiff) {
	if d.Empty() {
		return
	}
	log.Debug(what+" reconciled",
		slog.Any("added", d.Added),
		slog.Any("removed", d.Removed),
	)
}

// projectOf is the project an entity's cached listings live under.
func projectOf(e *types.Entity) string {
	if e == nil {
		return ""
	}
	if e.Kind == types.KindProject {
		return e.ID
	}
	return e.ProjectID
}

// invalidateFor drops cached lookups that a write to an entity may have
// changed. It runs after commit.
func (b *Backend) invalidateFor(entities ...*types.Entity) {
	keys := []string{cache.KeyLabels, cache.KeyPeople}
	seen := make(map[string]bool)
	for _, e := range entities {
		p := projectOf(e)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		keys = append(keys, cache.WorkItemsKey(p), cache.ActivityKey(p))
	}
	b.cache.Invalidate(keys...)
}

// DeleteEntity removes the entity with its links, activity, search entry, and
// the dependency rows it owns. Rows on other entities that name it stay in
// place until RepairEdges runs.
func (b *Backend) DeleteEntity(ctx context.Context, id string) error {
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	log := b.logger.With(slog.String("entity_id", id))
	if _, ok := types.KindOf(id); !ok {
		return fmt.Errorf("%w: %q", types.ErrInvalidID, id)
	}

	var gone *types.Entity
	err = b.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if gone, err = b.entities.get(ctx, tx, id); err != nil {
			return err
		}
		n, err := b.entities.children(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s has %d", types.ErrHasChildren, id, n)
		}

		steps := []func(context.Context, querier, string) error{
			func(ctx context.Context, q querier, id string) error { return b.tags.unlinkAll(ctx, q, labelTable, id) },
			func(ctx context.Context, q querier, id string) error { return b.tags.unlinkAll(ctx, q, personTable, id) },
			b.ledger.deleteAll,
			b.index.remove,
			b.graph.deleteOwned,
			b.entities.delete,
		}
		for _, step := range steps {
			if err := step(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if types.IsValidation(err) {
			log.Warn("delete rejected", slog.Any("error", err))
			return err
		}
		log.Error("delete failed", slog.Any("error", err))
		return fmt.Errorf("deleting entity %s: %w", id, err)
	}

	b.invalidateFor(gone)
	log.Debug("entity deleted")
	return nil
}

// GetEntity returns the entity with its labels, people, and edge lists.
func (b *Backend) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	e, err := b.entities.get(ctx, b.db, id)
	if err != nil {
		return nil, err
	}
	if err := b.project(ctx, b.db, e); err != nil {
		return nil, err
	}
	return e, nil
}

// QueryEntities returns entities matching q, newest first.
func (b *Backend) QueryEntities(ctx context.Context, q types.EntityQuery) ([]*types.Entity, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	results, err := b.entities.query(ctx, b.db, q)
	if err != nil {
		return nil, err
	}
	for _, e := range results {
		if err := b.project(ctx, b.db, e); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// project fills the read-side projections of e.
func (b *Backend) project(ctx context.Context, q querier, e *types.Entity) error {
	var err error
	if e.Labels, err = b.tags.linkedNames(ctx, q, labelTable, e.ID); err != nil {
		return err
	}
	if e.People, err = b.tags.linkedNames(ctx, q, personTable, e.ID); err != nil {
		return err
	}
	deps, err := b.graph.list(ctx, q, e.ID)
	if err != nil {
		return err
	}
	if len(deps.Blocks) > 0 {
		e.Blocks = deps.Blocks
	}
	if len(deps.BlockedBy) > 0 {
		e.BlockedBy = deps.BlockedBy
	}
	return nil
}

// AppendActivity records a system event on id and refreshes its search entry.
func (b *Backend) AppendActivity(ctx context.Context, id string, change types.ActivityChange) error {
	return b.appendEntry(ctx, id, func(tx *sql.Tx) error {
		_, err := b.ledger.appendSystemEntry(ctx, tx, id, change)
		return err
	})
}

// AddNote records a user update on id and refreshes its search entry.
func (b *Backend) AddNote(ctx context.Context, id, content string) error {
	return b.appendEntry(ctx, id, func(tx *sql.Tx) error {
		_, err := b.ledger.appendUserEntry(ctx, tx, id, content)
		return err
	})
}

func (b *Backend) appendEntry(ctx context.Context, id string, fn func(tx *sql.Tx) error) error {
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	var e *types.Entity
	err = b.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if e, err = b.entities.get(ctx, tx, id); err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
		return b.index.write(ctx, tx, id)
	})
	if err != nil {
		if !types.IsValidation(err) {
			b.logger.Error("append activity failed", slog.String("entity_id", id), slog.Any("error", err))
		}
		return err
	}
	if p := projectOf(e); p != "" {
		b.cache.Invalidate(cache.ActivityKey(p))
	}
	return nil
}

// Activity returns the ledger of id in chronological order.
func (b *Backend) Activity(ctx context.Context, id string) ([]types.ActivityEntry, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := b.entities.get(ctx, b.db, id); err != nil {
		return nil, err
	}
	return b.ledger.list(ctx, b.db, id)
}

// ProjectActivity returns up to limit of the newest entries across a project
// and its descendants. The limit is capped at 50.
func (b *Backend) ProjectActivity(ctx context.Context, projectID string, limit int) ([]types.ActivityEntry, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if limit <= 0 || limit > maxProjectActivity {
		limit = maxProjectActivity
	}
	recent, err := cache.Load(b.cache, cache.ActivityKey(projectID), b.config.Cache.ActivityTTL,
		func() ([]types.ActivityEntry, error) {
			return b.ledger.recentForProject(ctx, b.db, projectID, maxProjectActivity)
		})
	if err != nil {
		return nil, err
	}
	return append([]types.ActivityEntry{}, recent[:min(limit, len(recent))]...), nil
}

// Labels lists every label, including ones no entity links to.
func (b *Backend) Labels(ctx context.Context) ([]types.Label, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := cache.Load(b.cache, cache.KeyLabels, b.config.Cache.LabelsTTL,
		func() ([]tagRow, error) { return b.tags.all(ctx, b.db, labelTable) })
	if err != nil {
		return nil, err
	}
	labels := make([]types.Label, len(rows))
	for i, r := range rows {
		labels[i] = types.Label{LabelID: r.id, Name: r.name, CreatedAt: r.createdAt}
	}
	return labels, nil
}

// People lists every person.
func (b *Backend) People(ctx context.Context) ([]types.Person, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := cache.Load(b.cache, cache.KeyPeople, b.config.Cache.PeopleTTL,
		func() ([]tagRow, error) { return b.tags.all(ctx, b.db, personTable) })
	if err != nil {
		return nil, err
	}
	people := make([]types.Person, len(rows))
	for i, r := range rows {
		people[i] = types.Person{PersonID: r.id, Name: r.name, CreatedAt: r.createdAt}
	}
	return people, nil
}

// EnsurePerson returns the person named name, creating it on first use.
func (b *Backend) EnsurePerson(ctx context.Context, name string) (*types.Person, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	names := types.NormalizePeople([]string{name})
	if len(names) == 0 {
		return nil, types.ErrEmptyName
	}
	var row tagRow
	err = b.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		row, err = b.tags.ensure(ctx, tx, personTable, names[0])
		return err
	})
	if err != nil {
		return nil, err
	}
	b.cache.Invalidate(cache.KeyPeople)
	return &types.Person{PersonID: row.id, Name: row.name, CreatedAt: row.createdAt}, nil
}
