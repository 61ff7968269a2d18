package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/worktrack/internal/dates"
	"github.com/mesh-intelligence/worktrack/internal/sqlite"
	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// entityFlags are the field flags shared by new and update.
type entityFlags struct {
	title    string
	status   string
	priority int
	project  string
	epic     string
	task     string
	due      string
	start    string
	end      string
	content  string
	color    string
	seq      string
	labels   []string
	people   []string
	archived bool
	inbox    bool
}

func (f *entityFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.title, "title", "", "title")
	fl.StringVar(&f.status, "status", "", "status name (defaults by kind)")
	fl.IntVar(&f.priority, "priority", 0, "priority from 1 (highest) to 5; 0 clears")
	fl.StringVar(&f.project, "project", "", "parent project id")
	fl.StringVar(&f.epic, "epic", "", "parent epic id")
	fl.StringVar(&f.task, "task", "", "parent task id (subtasks)")
	fl.StringVar(&f.due, "due", "", "due date")
	fl.StringVar(&f.start, "start", "", "schedule start")
	fl.StringVar(&f.end, "end", "", "schedule end")
	fl.StringVar(&f.content, "content", "", "body text")
	fl.StringVar(&f.color, "color", "", "display color (projects)")
	fl.StringVar(&f.seq, "seq", "", "sequence id")
	fl.StringSliceVar(&f.labels, "label", nil, "label, repeatable; an empty value clears")
	fl.StringSliceVar(&f.people, "person", nil, "person, repeatable; an empty value clears")
	fl.BoolVar(&f.archived, "archived", false, "archive or unarchive")
	fl.BoolVar(&f.inbox, "inbox", false, "mark an epic as the project inbox")
}

// Priority range accepted by --priority.
const (
	minPriority = 1
	maxPriority = 5
)

// apply copies every flag the user set onto p.
func (f *entityFlags) apply(cmd *cobra.Command, p *types.SyncPayload) error {
	set := cmd.Flags().Changed
	fields := &p.Fields
	strs := []struct {
		flag  string
		value string
		dst   *string
	}{
		{"title", f.title, &fields.Title},
		{"status", f.status, &fields.Status},
		{"project", f.project, &fields.ProjectID},
		{"epic", f.epic, &fields.EpicID},
		{"task", f.task, &fields.TaskID},
		{"due", f.due, &fields.DueDate},
		{"start", f.start, &fields.ScheduleStart},
		{"end", f.end, &fields.ScheduleEnd},
		{"content", f.content, &fields.Content},
		{"color", f.color, &fields.Color},
		{"seq", f.seq, &fields.SeqID},
	}
	for _, s := range strs {
		if set(s.flag) {
			*s.dst = s.value
		}
	}
	if set("priority") {
		switch {
		case f.priority == 0:
			fields.Priority = nil
		case f.priority < minPriority || f.priority > maxPriority:
			return usageError{fmt.Errorf("--priority must be 0 or between %d and %d, got %d", minPriority, maxPriority, f.priority)}
		default:
			v := f.priority
			fields.Priority = &v
		}
	}
	if set("archived") {
		fields.Archived = f.archived
	}
	if set("inbox") {
		fields.IsInbox = f.inbox
	}
	if set("label") {
		p.Labels = nonEmpty(f.labels)
	}
	if set("person") {
		p.People = nonEmpty(f.people)
	}
	return nil
}

func nonEmpty(values []string) []string {
	out := []string{}
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// recordChanges re-reads id and appends a system entry for each difference
// from before. A note moving between projects is also logged on both projects.
func recordChanges(ctx context.Context, b *sqlite.Backend, before *types.Entity, id string) (*types.Entity, error) {
	after, err := b.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, change := range types.Changes(before, after) {
		if err := b.AppendActivity(ctx, id, change); err != nil {
			return nil, err
		}
	}
	if after.Kind != types.KindNote {
		return after, nil
	}

	var oldProject string
	if before != nil {
		oldProject = before.ProjectID
	}
	if oldProject == after.ProjectID {
		return after, nil
	}
	if oldProject != "" {
		change := types.ActivityChange{Type: types.ActivityNoteUnlinked, Old: before.Title}
		if err := b.AppendActivity(ctx, oldProject, change); err != nil {
			return nil, err
		}
	}
	if after.ProjectID != "" {
		change := types.ActivityChange{Type: types.ActivityNoteLinked, New: after.Title}
		if err := b.AppendActivity(ctx, after.ProjectID, change); err != nil {
			return nil, err
		}
	}
	return after, nil
}

func (a *app) newNewCmd() *cobra.Command {
	var f entityFlags
	cmd := &cobra.Command{
		Use:   "new <kind>",
		Short: "Create an entity of the given kind",
		Long: `Create a project, epic, task, subtask, or note. The id is generated.

  worktrack new project --title "Importer"
  worktrack new task --project project-1a2b3c4d --title "Parse frontmatter" --label backend`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseKind(args[0])
			if err != nil {
				return err
			}
			p := types.SyncPayload{ID: types.NewID(kind), Kind: kind}
			if err := f.apply(cmd, &p); err != nil {
				return err
			}

			return a.withBackend(func(b *sqlite.Backend) error {
				ctx := cmd.Context()
				if err := b.SyncEntity(ctx, p); err != nil {
					return err
				}
				e, err := recordChanges(ctx, b, nil, p.ID)
				if err != nil {
					return err
				}
				return a.emit(cmd, e, func(pr *printer) {
					pr.ok(fmt.Sprintf("created %s %s", e.Kind, e.ID))
				})
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) newUpdateCmd() *cobra.Command {
	var f entityFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an existing entity",
		Long:  "Change the fields named by flags. Unset flags keep their current values.",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				ctx := cmd.Context()
				before, err := b.GetEntity(ctx, args[0])
				if err != nil {
					return err
				}
				p := types.PayloadFor(before)
				p.Fields.Updated = ""
				if err := f.apply(cmd, &p); err != nil {
					return err
				}
				if err := b.SyncEntity(ctx, p); err != nil {
					return err
				}
				e, err := recordChanges(ctx, b, before, p.ID)
				if err != nil {
					return err
				}
				return a.emit(cmd, e, func(pr *printer) {
					pr.ok("updated " + e.ID)
				})
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one entity with its activity",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				ctx := cmd.Context()
				e, err := b.GetEntity(ctx, args[0])
				if err != nil {
					return err
				}
				activity, err := b.Activity(ctx, e.ID)
				if err != nil {
					return err
				}
				result := struct {
					*types.Entity
					Activity []types.ActivityEntry `json:"activity"`
				}{e, activity}
				return a.emit(cmd, result, func(p *printer) {
					p.entity(e)
					if len(activity) > 0 {
						p.linef("")
						p.heading("Activity")
						p.activity(activity)
					}
				})
			})
		},
	}
}

func (a *app) newListCmd() *cobra.Command {
	var (
		kind      string
		q         types.EntityQuery
		dueBefore string
		dueAfter  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if kind != "" {
				k, err := types.ParseKind(kind)
				if err != nil {
					return err
				}
				q.Kind = k
			}
			parser := dates.NewParser()
			if a.settings.Dates.Natural {
				parser = dates.NewParser(dates.WithNatural())
			}
			var err error
			if q.DueBefore, err = optionalDate(parser, "due-before", dueBefore); err != nil {
				return err
			}
			if q.DueAfter, err = optionalDate(parser, "due-after", dueAfter); err != nil {
				return err
			}

			return a.withBackend(func(b *sqlite.Backend) error {
				entities, err := b.QueryEntities(cmd.Context(), q)
				if err != nil {
					return err
				}
				return a.emit(cmd, entities, func(p *printer) {
					if len(entities) == 0 {
						p.warn("no matching entities")
						return
					}
					for _, e := range entities {
						p.entityLine(e)
					}
				})
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&kind, "kind", "", "entity kind")
	fl.StringVar(&q.Status, "status", "", "status name")
	fl.StringVar(&q.ProjectID, "project", "", "project id")
	fl.StringVar(&q.EpicID, "epic", "", "epic id")
	fl.StringVar(&dueBefore, "due-before", "", "due on or before this date")
	fl.StringVar(&dueAfter, "due-after", "", "due on or after this date")
	fl.BoolVar(&q.IncludeArchived, "archived", false, "include archived entities")
	fl.IntVar(&q.Limit, "limit", 0, "maximum results (0 for no limit)")
	return cmd
}

func optionalDate(p *dates.Parser, flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := p.Date(value)
	if err != nil {
		return nil, usageError{fmt.Errorf("--%s: %w", flag, err)}
	}
	return t, nil
}

func (a *app) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entity and everything attached to it",
		Long:  "Delete an entity with its tags, activity, dependency lists, and index row.\nEntities with children are refused.",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				id := args[0]
				if err := b.DeleteEntity(cmd.Context(), id); err != nil {
					return err
				}
				result := map[string]string{"deleted": id}
				return a.emit(cmd, result, func(p *printer) {
					p.ok("deleted " + id)
				})
			})
		},
	}
}
