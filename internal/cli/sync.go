package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/worktrack/internal/sqlite"
	"github.com/mesh-intelligence/worktrack/pkg/types"
)

func (a *app) newSyncCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Apply a stream of JSON sync payloads",
		Long: `Read JSON sync payloads from a file or stdin and apply each one in order.
Each payload is the full desired state of one entity. Processing stops at the
first rejected payload.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("opening payloads: %w", err)
				}
				defer f.Close()
				in = f
			}

			return a.withBackend(func(b *sqlite.Backend) error {
				dec := json.NewDecoder(in)
				synced := 0
				for {
					var p types.SyncPayload
					err := dec.Decode(&p)
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						return usageError{fmt.Errorf("payload %d: %w", synced+1, err)}
					}
					if err := b.SyncEntity(cmd.Context(), p); err != nil {
						return fmt.Errorf("payload %d (%s): %w", synced+1, p.ID, err)
					}
					synced++
				}
				result := map[string]int{"synced": synced}
				return a.emit(cmd, result, func(pr *printer) {
					pr.ok(fmt.Sprintf("synced %d entities", synced))
				})
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "payload file, - for stdin")
	return cmd
}

func (a *app) newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <text...>",
		Short: "Full-text search over titles, content, activity, people, and labels",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				hits, err := b.Search(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				return a.emit(cmd, hits, func(p *printer) {
					if len(hits) == 0 {
						p.warn("no matches")
						return
					}
					for _, h := range hits {
						p.entityLine(h.Entity)
						snippets := []struct{ name, text string }{
							{"content", h.Snippets.Content},
							{"updates", h.Snippets.Updates},
							{"people", h.Snippets.People},
							{"labels", h.Snippets.Labels},
						}
						for _, s := range snippets {
							if s.text != "" && strings.Contains(s.text, "[") {
								p.field("  "+s.name, s.text)
							}
						}
					}
				})
			})
		},
	}
}

func (a *app) newNoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <id> <text...>",
		Short: "Append a user note to an entity's activity",
		Args:  minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, text := args[0], strings.Join(args[1:], " ")
			return a.withBackend(func(b *sqlite.Backend) error {
				if err := b.AddNote(cmd.Context(), id, text); err != nil {
					return err
				}
				result := map[string]string{"entity_id": id, "content": text}
				return a.emit(cmd, result, func(p *printer) {
					p.ok("noted on " + id)
				})
			})
		},
	}
}

func (a *app) newActivityCmd() *cobra.Command {
	var (
		project string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "activity [id]",
		Short: "Show an entity's activity, or recent activity across a project",
		Args:  wrapArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (project == "") == (len(args) == 0) {
				return usageError{errors.New("pass either an entity id or --project")}
			}
			return a.withBackend(func(b *sqlite.Backend) error {
				var (
					entries []types.ActivityEntry
					err     error
				)
				if project != "" {
					entries, err = b.ProjectActivity(cmd.Context(), project, limit)
				} else {
					entries, err = b.Activity(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				return a.emit(cmd, entries, func(p *printer) {
					if project != "" {
						for _, e := range entries {
							p.linef("%s %s %s", labelStyle.Render(e.Timestamp), e.EntityID, e.Content)
						}
						return
					}
					p.activity(entries)
				})
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id for the cross-entity feed")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum feed entries (default 50)")
	return cmd
}
