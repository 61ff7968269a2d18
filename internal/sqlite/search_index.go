package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// indexEntry is one row of search_index.
type indexEntry struct {
	entityID   string
	entityType types.Kind
	title      string
	content    string
	updates    string
	people     string
	labels     string
}

// searchIndex keeps search_index derived from the other stores.
type searchIndex struct {
	b *Backend
}

// derive builds the index entry of id from persisted state.
func (s *searchIndex) derive(ctx context.Context, q querier, id string) (indexEntry, error) {
	e, err := s.b.entities.get(ctx, q, id)
	if err != nil {
		return indexEntry{}, err
	}
	activity, err := s.b.ledger.list(ctx, q, id)
	if err != nil {
		return indexEntry{}, err
	}
	updates := make([]string, len(activity))
	for i, a := range activity {
		updates[i] = a.Content
	}
	people, err := s.b.tags.linkedNames(ctx, q, personTable, id)
	if err != nil {
		return indexEntry{}, err
	}
	labels, err := s.b.tags.linkedNames(ctx, q, labelTable, id)
	if err != nil {
		return indexEntry{}, err
	}

	limit := s.b.config.Search.FieldLimit
	return indexEntry{
		entityID:   e.ID,
		entityType: e.Kind,
		title:      e.Title,
		content:    truncate(e.Content, limit),
		updates:    truncate(strings.Join(updates, " "), limit),
		people:     strings.Join(people, " "),
		labels:     strings.Join(labels, " "),
	}, nil
}

// write replaces the index entry of id.
func (s *searchIndex) write(ctx context.Context, q querier, id string) error {
	entry, err := s.derive(ctx, q, id)
	if err != nil {
		return err
	}
	if err := s.remove(ctx, q, id); err != nil {
		return err
	}
	return s.insert(ctx, q, entry)
}

func (s *searchIndex) insert(ctx context.Context, q querier, e indexEntry) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO search_index (entity_id, entity_type, title, content, updates, people, labels)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.entityID, string(e.entityType), e.title, e.content, e.updates, e.people, e.labels,
	)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", e.entityID, err)
	}
	return nil
}

func (s *searchIndex) remove(ctx context.Context, q querier, id string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM search_index WHERE entity_id = ?", id); err != nil {
		return fmt.Errorf("removing index entry %s: %w", id, err)
	}
	return nil
}

// indexed returns every indexed id with its recorded kind.
func (s *searchIndex) indexed(ctx context.Context, q querier) (map[string]types.Kind, error) {
	rows, err := q.QueryContext(ctx, "SELECT entity_id, entity_type FROM search_index")
	if err != nil {
		return nil, fmt.Errorf("listing index entries: %w", err)
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

// verify compares the index with the entity store.
func (s *searchIndex) verify(ctx context.Context, q querier) (types.IndexReport, error) {
	stored, err := s.b.entities.allIDs(ctx, q)
	if err != nil {
		return types.IndexReport{}, err
	}
	indexed, err := s.indexed(ctx, q)
	if err != nil {
		return types.IndexReport{}, err
	}

	report := types.IndexReport{
		Orphaned: make(map[types.Kind][]string),
		Missing:  make(map[types.Kind][]string),
	}
	for id, kind := range indexed {
		if _, ok := stored[id]; !ok {
			report.Orphaned[kind] = append(report.Orphaned[kind], id)
		}
	}
	for id, kind := range stored {
		if _, ok := indexed[id]; !ok {
			report.Missing[kind] = append(report.Missing[kind], id)
		}
	}
	for _, ids := range report.Orphaned {
		slices.Sort(ids)
	}
	for _, ids := range report.Missing {
		slices.Sort(ids)
	}
	return report, nil
}

// Search runs a full-text query and resolves each hit to its entity. Hits
// whose entity no longer exists are skipped.
func (b *Backend) Search(ctx context.Context, text string) ([]types.SearchHit, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	hits := []types.SearchHit{}
	match := ftsQuery(text)
	if match == "" {
		return hits, nil
	}

	type rawHit struct {
		id       string
		snippets types.Snippets
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT entity_id,
		        COALESCE(snippet(search_index, 2, '[', ']', '...', 10), ''),
		        COALESCE(snippet(search_index, 3, '[', ']', '...', 10), ''),
		        COALESCE(snippet(search_index, 4, '[', ']', '...', 10), ''),
		        COALESCE(snippet(search_index, 5, '[', ']', '...', 10), ''),
		        COALESCE(snippet(search_index, 6, '[', ']', '...', 10), '')
		 FROM search_index
		 WHERE search_index MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		match, b.config.Search.MaxResults,
	)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", text, err)
	}
	var raw []rawHit
	for rows.Next() {
		var h rawHit
		sn := &h.snippets
		if err := rows.Scan(&h.id, &sn.Title, &sn.Content, &sn.Updates, &sn.People, &sn.Labels); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		raw = append(raw, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search hits: %w", err)
	}

	for _, h := range raw {
		e, err := b.entities.lookup(ctx, b.db, h.id)
		if err != nil {
			return nil, err
		}
		if e == nil {
			b.logger.Debug("skipping search hit without entity", slog.String("entity_id", h.id))
			continue
		}
		if err := b.project(ctx, b.db, e); err != nil {
			return nil, err
		}
		hits = append(hits, types.SearchHit{Entity: e, Snippets: h.snippets})
	}
	return hits, nil
}

// RebuildIndex clears search_index and rewrites one entry per entity. It
// returns the number of entries written.
func (b *Backend) RebuildIndex(ctx context.Context) (int, error) {
	release, err := b.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	var n int
	err = b.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM search_index"); err != nil {
			return fmt.Errorf("clearing search index: %w", err)
		}
		ids, err := b.entities.allIDs(ctx, tx)
		if err != nil {
			return err
		}
		sorted := make([]string, 0, len(ids))
		for id := range ids {
			sorted = append(sorted, id)
		}
		slices.Sort(sorted)

		for _, id := range sorted {
			entry, err := b.index.derive(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := b.index.insert(ctx, tx, entry); err != nil {
				return err
			}
		}
		n = len(sorted)
		return nil
	})
	if err != nil {
		b.logger.Error("index rebuild failed", slog.Any("error", err))
		return 0, err
	}
	b.logger.Info("search index rebuilt", slog.Int("entries", n))
	return n, nil
}

// VerifyIndex reports orphaned and missing index entries without changing
// anything.
func (b *Backend) VerifyIndex(ctx context.Context) (types.IndexReport, error) {
	release, err := b.acquire()
	if err != nil {
		return types.IndexReport{}, err
	}
	defer release()
	return b.index.verify(ctx, b.db)
}

// FixIndex deletes orphaned entries and writes missing ones. It returns the
// report it acted on.
func (b *Backend) FixIndex(ctx context.Context) (types.IndexReport, error) {
	release, err := b.acquire()
	if err != nil {
		return types.IndexReport{}, err
	}
	defer release()

	var report types.IndexReport
	err = b.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if report, err = b.index.verify(ctx, tx); err != nil {
			return err
		}
		for _, ids := range report.Orphaned {
			for _, id := range ids {
				if err := b.index.remove(ctx, tx, id); err != nil {
					return err
				}
			}
		}
		for _, ids := range report.Missing {
			for _, id := range ids {
				if err := b.index.write(ctx, tx, id); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return types.IndexReport{}, err
	}
	if !report.Clean() {
		b.logger.Info("search index repaired",
			slog.Int("orphaned", report.OrphanedCount()),
			slog.Int("missing", report.MissingCount()),
		)
	}
	return report, nil
}

// ftsQuery turns free text into an FTS5 query: a single token becomes a
// quoted phrase, several tokens are OR-ed.
func ftsQuery(text string) string {
	terms := strings.Fields(text)
	if len(terms) == 0 {
		return ""
	}
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " OR ")
}

// truncate cuts s to at most limit runes. A non-positive limit keeps s whole.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
