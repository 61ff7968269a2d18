package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mesh-intelligence/worktrack/internal/cache"
	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// dependencyGraph owns entity_dependencies. Every edge is stored on both
// endpoints: "A blocks B" is A's blocks row plus B's blocked_by row.
type dependencyGraph struct {
	b *Backend
}

func (g *dependencyGraph) insert(ctx context.Context, q querier, entityID string, dir types.Direction, targetID string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO entity_dependencies (entity_id, direction, target_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(entity_id, direction, target_id) DO NOTHING`,
		entityID, string(dir), targetID, g.b.timestamp().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("adding %s %s %s: %w", entityID, dir, targetID, err)
	}
	return nil
}

func (g *dependencyGraph) remove(ctx context.Context, q querier, entityID string, dir types.Direction, targetID string) error {
	_, err := q.ExecContext(ctx,
		"DELETE FROM entity_dependencies WHERE entity_id = ? AND direction = ? AND target_id = ?",
		entityID, string(dir), targetID,
	)
	if err != nil {
		return fmt.Errorf("removing %s %s %s: %w", entityID, dir, targetID, err)
	}
	return nil
}

// list returns the edge lists owned by entityID in insertion order.
func (g *dependencyGraph) list(ctx context.Context, q querier, entityID string) (types.Dependencies, error) {
	deps := types.Dependencies{Blocks: []string{}, BlockedBy: []string{}}
	rows, err := q.QueryContext(ctx,
		`SELECT direction, target_id FROM entity_dependencies
		 WHERE entity_id = ? ORDER BY created_at, target_id`,
		entityID,
	)
	if err != nil {
		return deps, fmt.Errorf("reading dependencies of %s: %w", entityID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var dir, target string
		if err := rows.Scan(&dir, &target); err != nil {
			return deps, err
		}
		if types.Direction(dir) == types.Blocks {
			deps.Blocks = append(deps.Blocks, target)
		} else {
			deps.BlockedBy = append(deps.BlockedBy, target)
		}
	}
	return deps, rows.Err()
}

// deleteOwned removes the rows stored on entityID. Rows on other entities
// that reference it are left alone.
func (g *dependencyGraph) deleteOwned(ctx context.Context, q querier, entityID string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM entity_dependencies WHERE entity_id = ?", entityID); err != nil {
		return fmt.Errorf("deleting dependencies of %s: %w", entityID, err)
	}
	return nil
}

// source loads an edge's source, which must be an existing task or subtask.
func (g *dependencyGraph) source(ctx context.Context, q querier, id string) (*types.Entity, error) {
	e, err := g.b.entities.get(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if !e.Kind.TaskLike() {
		return nil, fmt.Errorf("%w: %s is a %s, not a task or subtask", types.ErrInvalidKind, id, e.Kind)
	}
	return e, nil
}

// resolveTarget returns the reason the target cannot carry the reciprocal
// row, or "" when it can.
func (g *dependencyGraph) resolveTarget(ctx context.Context, q querier, src *types.Entity, targetID string) (string, error) {
	target, err := g.b.entities.lookup(ctx, q, targetID)
	if err != nil {
		return "", err
	}
	switch {
	case target == nil:
		return "not found", nil
	case !target.Kind.TaskLike():
		return "not a task or subtask", nil
	case target.ProjectID != src.ProjectID:
		return "different project", nil
	}
	return "", nil
}

// edit applies fn to the source row and, when the target resolves, to the
// reciprocal row, in one transaction.
func (g *dependencyGraph) edit(ctx context.Context, sourceID, targetID string, dir types.Direction,
	fn func(ctx context.Context, q querier, entityID string, dir types.Direction, targetID string) error,
) error {
	if _, err := types.ParseDirection(string(dir)); err != nil {
		return err
	}
	if sourceID == targetID {
		return fmt.Errorf("%w: %s", types.ErrSelfDependency, sourceID)
	}
	if _, ok := types.KindOf(targetID); !ok {
		return fmt.Errorf("%w: %q", types.ErrInvalidID, targetID)
	}

	var projectID string
	err := g.b.withTx(ctx, func(tx *sql.Tx) error {
		src, err := g.source(ctx, tx, sourceID)
		if err != nil {
			return err
		}
		projectID = src.ProjectID

		if err := fn(ctx, tx, sourceID, dir, targetID); err != nil {
			return err
		}
		reason, err := g.resolveTarget(ctx, tx, src, targetID)
		if err != nil {
			return err
		}
		if reason != "" {
			g.b.logger.Warn("dependency target unresolved; updated source only",
				slog.String("source", sourceID),
				slog.String("target", targetID),
				slog.String("reason", reason),
			)
			return nil
		}
		return fn(ctx, tx, targetID, dir.Reciprocal(), sourceID)
	})
	if err != nil {
		return err
	}
	g.b.cache.Invalidate(cache.WorkItemsKey(projectID))
	return nil
}

// AddEdge records that sourceID dir targetID on both endpoints.
func (b *Backend) AddEdge(ctx context.Context, sourceID, targetID string, dir types.Direction) error {
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()
	return b.graph.edit(ctx, sourceID, targetID, dir, b.graph.insert)
}

// RemoveEdge deletes the edge from both endpoints.
func (b *Backend) RemoveEdge(ctx context.Context, sourceID, targetID string, dir types.Direction) error {
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()
	return b.graph.edit(ctx, sourceID, targetID, dir, b.graph.remove)
}

// Dependencies returns the edge lists stored on id.
func (b *Backend) Dependencies(ctx context.Context, id string) (types.Dependencies, error) {
	release, err := b.acquire()
	if err != nil {
		return types.Dependencies{}, err
	}
	defer release()

	if _, err := b.entities.get(ctx, b.db, id); err != nil {
		return types.Dependencies{}, err
	}
	return b.graph.list(ctx, b.db, id)
}

// ListCandidates lists the project's tasks and subtasks, minus exclude,
// ordered by sequence id and then title. Items without a sequence id sort
// last.
func (b *Backend) ListCandidates(ctx context.Context, projectID string, exclude []string) ([]types.Candidate, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	all, err := cache.Load(b.cache, cache.WorkItemsKey(projectID), b.config.Cache.WorkItemsTTL,
		func() ([]types.Candidate, error) {
			return b.graph.workItems(ctx, b.db, projectID)
		})
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	out := make([]types.Candidate, 0, len(all))
	for _, c := range all {
		if !skip[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (g *dependencyGraph) workItems(ctx context.Context, q querier, projectID string) ([]types.Candidate, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT w.id, w.kind, w.title, COALESCE(w.status, w.status_raw), w.priority, w.seq_id,
		        COALESCE(w.epic_id, ''), COALESCE(e.title, ''),
		        COALESCE(w.task_id, ''), COALESCE(t.title, ''), COALESCE(t.seq_id, '')
		 FROM entities w
		 LEFT JOIN entities e ON e.id = w.epic_id
		 LEFT JOIN entities t ON t.id = w.task_id
		 WHERE w.project_id = ? AND w.kind IN ('task', 'subtask')`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing work items of %s: %w", projectID, err)
	}
	defer rows.Close()

	items := []types.Candidate{}
	for rows.Next() {
		var c types.Candidate
		var kind string
		var priority sql.NullInt64
		err := rows.Scan(&c.ID, &kind, &c.Title, &c.Status, &priority, &c.SeqID,
			&c.EpicID, &c.EpicTitle, &c.TaskID, &c.TaskTitle, &c.TaskSeqID)
		if err != nil {
			return nil, fmt.Errorf("scanning work item: %w", err)
		}
		c.Kind = types.Kind(kind)
		if priority.Valid {
			p := int(priority.Int64)
			c.Priority = &p
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(items, func(a, b types.Candidate) int {
		if (a.SeqID == "") != (b.SeqID == "") {
			if a.SeqID == "" {
				return 1
			}
			return -1
		}
		return cmp.Or(
			cmp.Compare(a.SeqID, b.SeqID),
			cmp.Compare(a.Title, b.Title),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return items, nil
}

const (
	danglingEdges = `SELECT d.entity_id, d.direction, d.target_id
		FROM entity_dependencies d
		LEFT JOIN entities t ON t.id = d.target_id
		WHERE t.id IS NULL
		ORDER BY d.entity_id, d.direction, d.target_id`

	asymmetricEdges = `SELECT d.entity_id, d.direction, d.target_id
		FROM entity_dependencies d
		JOIN entities t ON t.id = d.target_id
		WHERE NOT EXISTS (
		    SELECT 1 FROM entity_dependencies r
		    WHERE r.entity_id = d.target_id
		      AND r.target_id = d.entity_id
		      AND r.direction = CASE d.direction WHEN 'blocks' THEN 'blocked_by' ELSE 'blocks' END
		)
		ORDER BY d.entity_id, d.direction, d.target_id`
)

// VerifyEdges reports dangling and one-sided edges without changing anything.
func (b *Backend) VerifyEdges(ctx context.Context) (types.EdgeReport, error) {
	release, err := b.acquire()
	if err != nil {
		return types.EdgeReport{}, err
	}
	defer release()
	return b.graph.verify(ctx, b.db)
}

func (g *dependencyGraph) verify(ctx context.Context, q querier) (types.EdgeReport, error) {
	dangling, err := queryEdges(ctx, q, danglingEdges)
	if err != nil {
		return types.EdgeReport{}, fmt.Errorf("finding dangling edges: %w", err)
	}
	asymmetric, err := queryEdges(ctx, q, asymmetricEdges)
	if err != nil {
		return types.EdgeReport{}, fmt.Errorf("finding asymmetric edges: %w", err)
	}
	return types.EdgeReport{Dangling: dangling, Asymmetric: asymmetric}, nil
}

// RepairEdges removes dangling rows and restores missing reciprocals. A
// one-sided edge whose target cannot carry the reciprocal (another project,
// or not a task) is removed instead. It returns the report it acted on.
func (b *Backend) RepairEdges(ctx context.Context) (types.EdgeReport, error) {
	release, err := b.acquire()
	if err != nil {
		return types.EdgeReport{}, err
	}
	defer release()

	var report types.EdgeReport
	err = b.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if report, err = b.graph.verify(ctx, tx); err != nil {
			return err
		}
		for _, e := range report.Dangling {
			if err := b.graph.remove(ctx, tx, e.EntityID, e.Direction, e.TargetID); err != nil {
				return err
			}
		}
		for _, e := range report.Asymmetric {
			src, err := b.entities.get(ctx, tx, e.EntityID)
			if err != nil {
				return err
			}
			reason, err := b.graph.resolveTarget(ctx, tx, src, e.TargetID)
			if err != nil {
				return err
			}
			if reason != "" || !src.Kind.TaskLike() {
				b.logger.Info("dropping edge that cannot be made symmetric",
					slog.String("source", e.EntityID),
					slog.String("target", e.TargetID),
					slog.String("reason", reason),
				)
				if err := b.graph.remove(ctx, tx, e.EntityID, e.Direction, e.TargetID); err != nil {
					return err
				}
				continue
			}
			if err := b.graph.insert(ctx, tx, e.TargetID, e.Direction.Reciprocal(), e.EntityID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return types.EdgeReport{}, err
	}
	if !report.Clean() {
		b.cache.InvalidatePrefix(cache.PrefixWorkItems)
	}
	return report, nil
}

func queryEdges(ctx context.Context, q querier, query string) ([]types.EdgeRef, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := []types.EdgeRef{}
	for rows.Next() {
		var e types.EdgeRef
		var dir string
		if err := rows.Scan(&e.EntityID, &dir, &e.TargetID); err != nil {
			return nil, err
		}
		e.Direction = types.Direction(dir)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
