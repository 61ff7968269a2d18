package legacy

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mesh-intelligence/worktrack/internal/dates"
	"github.com/mesh-intelligence/worktrack/internal/logging"
	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// Sink receives migrated records. The sqlite backend satisfies it.
type Sink interface {
	SyncEntity(ctx context.Context, p types.SyncPayload) error
	AddEdge(ctx context.Context, sourceID, targetID string, dir types.Direction) error
	EnsurePerson(ctx context.Context, name string) (*types.Person, error)
}

// Report counts the outcome of a migration run.
type Report struct {
	Files   int `json:"files"`
	Synced  int `json:"synced"`
	People  int `json:"people"`
	Edges   int `json:"edges"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Migrator imports a legacy tree into a Sink.
type Migrator struct {
	sink   Sink
	logger *slog.Logger
	dates  *dates.Parser
	dryRun bool
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) { m.logger = l }
}

// WithDryRun makes Run parse and count without writing.
func WithDryRun() Option {
	return func(m *Migrator) { m.dryRun = true }
}

// NewMigrator returns a Migrator writing to sink.
func NewMigrator(sink Sink, opts ...Option) *Migrator {
	m := &Migrator{
		sink:   sink,
		logger: logging.Discard(),
		dates:  dates.NewParser(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// file is one recognized document waiting to be imported.
type file struct {
	path string
	loc  Location
}

// Run walks root parent-first and syncs every document it recognizes, then
// replays frontmatter dependencies once every endpoint exists. Per-file
// failures are counted and logged; only an unreadable root stops the run.
func (m *Migrator) Run(ctx context.Context, root string) (Report, error) {
	var report Report
	files, skipped, err := scan(root)
	if err != nil {
		return report, err
	}
	for _, p := range skipped {
		m.logger.Debug("skipping unrecognized path", slog.String("path", p))
	}
	report.Skipped = len(skipped)

	var pending []pendingEdges
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Files++
		deps, err := m.importFile(ctx, f)
		if err != nil {
			report.Failed++
			m.logger.Warn("legacy file failed", slog.String("path", f.path), slog.Any("error", err))
			continue
		}
		if f.loc.Person {
			report.People++
		} else {
			report.Synced++
		}
		if len(deps.Blocks)+len(deps.BlockedBy) > 0 {
			pending = append(pending, pendingEdges{id: f.loc.ID, deps: deps})
		}
	}

	for _, p := range pending {
		added, failed := m.replayEdges(ctx, p.id, p.deps)
		report.Edges += added
		report.Failed += failed
	}

	m.logger.Info("legacy migration finished",
		slog.String("root", root),
		slog.Bool("dry_run", m.dryRun),
		slog.Int("files", report.Files),
		slog.Int("synced", report.Synced),
		slog.Int("people", report.People),
		slog.Int("edges", report.Edges),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

type pendingEdges struct {
	id   string
	deps Dependencies
}

// ImportFile imports the single document at path, including its edges.
// It reports the location so callers can tell what was written.
func (m *Migrator) ImportFile(ctx context.Context, root, path string) (Location, error) {
	loc, ok := PathInfo(root, path)
	if !ok {
		return Location{}, fmt.Errorf("not a legacy entity path: %s", path)
	}
	deps, err := m.importFile(ctx, file{path: path, loc: loc})
	if err != nil {
		return loc, err
	}
	if _, failed := m.replayEdges(ctx, loc.ID, deps); failed > 0 {
		return loc, fmt.Errorf("importing %s: %d dependency edges failed", loc.ID, failed)
	}
	return loc, nil
}

// importFile parses and writes one document and returns its dependencies.
func (m *Migrator) importFile(ctx context.Context, f file) (Dependencies, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return Dependencies{}, fmt.Errorf("reading %s: %w", f.path, err)
	}
	doc, err := ParseDocument(data)
	if errors.Is(err, ErrMalformedFrontmatter) {
		m.logger.Warn("malformed frontmatter, using defaults", slog.String("path", f.path), slog.Any("error", err))
	}

	if f.loc.Person {
		name := strings.TrimSpace(cmp.Or(doc.Name, doc.Title))
		if name == "" {
			return Dependencies{}, fmt.Errorf("person %s: %w", f.loc.ID, types.ErrEmptyName)
		}
		if m.dryRun {
			return Dependencies{}, nil
		}
		_, err := m.sink.EnsurePerson(ctx, name)
		return Dependencies{}, err
	}

	p := m.payload(f.loc, doc)
	if err := p.Validate(); err != nil {
		return Dependencies{}, fmt.Errorf("validating %s: %w", f.loc.ID, err)
	}
	if !m.dryRun {
		if err := m.sink.SyncEntity(ctx, p); err != nil {
			return Dependencies{}, err
		}
	}
	return doc.AllDependencies(), nil
}

// replayEdges adds every listed edge. Already-present edges are no-ops.
func (m *Migrator) replayEdges(ctx context.Context, id string, deps Dependencies) (added, failed int) {
	edges := []struct {
		dir     types.Direction
		targets []string
	}{
		{types.Blocks, deps.Blocks},
		{types.BlockedBy, deps.BlockedBy},
	}
	for _, e := range edges {
		for _, target := range e.targets {
			if !m.dryRun {
				if err := m.sink.AddEdge(ctx, id, target, e.dir); err != nil {
					failed++
					m.logger.Warn("legacy dependency failed",
						slog.String("entity_id", id),
						slog.String("target_id", target),
						slog.String("direction", string(e.dir)),
						slog.Any("error", err),
					)
					continue
				}
			}
			added++
		}
	}
	return added, failed
}

// payload builds the sync payload for doc. Parents come from the path, with
// frontmatter pointers filling what the path does not say.
func (m *Migrator) payload(loc Location, doc *Document) types.SyncPayload {
	parents := loc.Parents
	if parents.ProjectID == "" && loc.Kind == types.KindNote {
		parents.ProjectID = doc.ProjectID
	}
	if parents.EpicID == "" && loc.Kind.TaskLike() {
		parents.EpicID = doc.EpicID
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = "Untitled " + strings.ToUpper(string(loc.Kind[:1])) + string(loc.Kind[1:])
	}
	status := strings.TrimSpace(doc.Status)
	if status == "" {
		status = loc.Kind.DefaultStatus()
	}

	p := types.SyncPayload{
		ID:   loc.ID,
		Kind: loc.Kind,
		Fields: types.Fields{
			Title:         title,
			Status:        status,
			Priority:      doc.Priority.Value,
			Created:       doc.Created,
			Updated:       doc.Updated,
			DueDate:       doc.DueDate,
			ScheduleStart: doc.ScheduleStart,
			ScheduleEnd:   doc.ScheduleEnd,
			Content:       strings.TrimSpace(doc.Body),
			Archived:      doc.Archived,
			SeqID:         doc.SeqID,
			Color:         doc.Color,
			IsInbox:       doc.IsInbox,
			Checklist:     checklist(doc.Checklist),
			Parents:       parents,
		},
		Labels: doc.Labels,
		People: doc.People,
	}
	if doc.Updates != nil {
		p.Activity = make([]types.ActivityEntry, 0, len(doc.Updates))
		for _, u := range doc.Updates {
			p.Activity = append(p.Activity, types.ActivityEntry{
				Timestamp:    m.timestamp(u.Timestamp),
				Content:      u.Content,
				Type:         u.Type,
				ActivityType: u.ActivityType,
			})
		}
	}
	return p
}

// timestamp normalizes an update timestamp to the ledger format. Values that
// do not parse are passed through unchanged.
func (m *Migrator) timestamp(raw string) string {
	t, err := m.dates.DateTime(raw)
	if err != nil || t == nil {
		return strings.TrimSpace(raw)
	}
	return types.ActivityTimestamp(*t)
}

func checklist(entries []ChecklistEntry) []types.ChecklistItem {
	if len(entries) == 0 {
		return nil
	}
	out := make([]types.ChecklistItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, types.ChecklistItem{
			Text: cmp.Or(e.Text, e.Title),
			Done: e.Done || e.Status == "done",
		})
	}
	return out
}

// scan lists the recognized documents under root in parent-first order, and
// the .md paths it could not place.
func scan(root string) ([]file, []string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("reading legacy root: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("legacy root %s is not a directory", root)
	}

	var files []file
	var skipped []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".md" {
			return nil
		}
		loc, ok := PathInfo(root, path)
		if !ok {
			skipped = append(skipped, path)
			return nil
		}
		files = append(files, file{path: path, loc: loc})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking legacy root: %w", err)
	}

	slices.SortStableFunc(files, func(a, b file) int {
		if d := a.loc.rank() - b.loc.rank(); d != 0 {
			return d
		}
		return strings.Compare(a.path, b.path)
	})
	return files, skipped, nil
}
