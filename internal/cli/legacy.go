package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/worktrack/internal/legacy"
	"github.com/mesh-intelligence/worktrack/internal/sqlite"
)

// withLockedBackend holds the migration lock on the data directory while fn
// runs, so a migrate and a watch never write the same database.
func (a *app) withLockedBackend(fn func(b *sqlite.Backend) error) error {
	dir, err := a.dataDir()
	if err != nil {
		return err
	}
	unlock, err := legacy.Lock(dir)
	if err != nil {
		return err
	}
	defer unlock()
	return a.withBackend(fn)
}

func (a *app) newMigrateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate <dir>",
		Short: "Import a markdown tree into the database",
		Long: `Import every project, epic, task, subtask, note, and person file below dir.
Files are read parents first and dependency edges are replayed last. Running
the same tree twice leaves the database unchanged.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []legacy.Option{legacy.WithLogger(a.logger)}
			if dryRun {
				opts = append(opts, legacy.WithDryRun())
			}
			return a.withLockedBackend(func(b *sqlite.Backend) error {
				report, err := legacy.NewMigrator(b, opts...).Run(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, report, func(p *printer) {
					if dryRun {
						p.heading("Dry run")
					}
					p.field("files", fmt.Sprint(report.Files))
					p.field("synced", fmt.Sprint(report.Synced))
					p.field("people", fmt.Sprint(report.People))
					p.field("edges", fmt.Sprint(report.Edges))
					p.field("skipped", fmt.Sprint(report.Skipped))
					if report.Failed > 0 {
						p.warn(fmt.Sprintf("%d files failed, see the log", report.Failed))
					}
				})
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and validate without writing")
	return cmd
}

func (a *app) newWatchCmd() *cobra.Command {
	var initial bool
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Keep the database in step with edits to a markdown tree",
		Long:  "Re-import files as they are written and delete entities whose files are\nremoved. Runs until interrupted.",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.withLockedBackend(func(b *sqlite.Backend) error {
				m := legacy.NewMigrator(b, legacy.WithLogger(a.logger))
				if initial {
					if _, err := m.Run(ctx, root); err != nil {
						return err
					}
				}
				w, err := legacy.NewWatcher(root, m, b, legacy.OnEvent(a.printEvent(cmd)))
				if err != nil {
					return err
				}
				a.logger.Info("watching", slog.String("root", root))
				if err := w.Run(ctx); err != nil && ctx.Err() == nil {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&initial, "migrate", false, "run a full migration before watching")
	return cmd
}

// printEvent renders watcher events, one JSON object per line in --json mode.
func (a *app) printEvent(cmd *cobra.Command) func(legacy.Event) {
	out := cmd.OutOrStdout()
	p := &printer{w: out}
	return func(e legacy.Event) {
		if a.flags.jsonMode {
			record := struct {
				Path  string `json:"path"`
				Op    string `json:"op"`
				ID    string `json:"id,omitempty"`
				Error string `json:"error,omitempty"`
			}{Path: e.Path, Op: e.Op.String(), ID: e.ID}
			if e.Err != nil {
				record.Error = e.Err.Error()
			}
			data, _ := json.Marshal(record)
			fmt.Fprintln(out, string(data))
			return
		}
		if e.Err != nil {
			p.warn(fmt.Sprintf("%-6s %s: %v", e.Op, e.Path, e.Err))
			return
		}
		p.linef("%-6s %s %s", e.Op, e.ID, labelStyle.Render(e.Path))
	}
}
