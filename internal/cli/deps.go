package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/worktrack/internal/sqlite"
	"github.com/mesh-intelligence/worktrack/pkg/types"
)

func (a *app) newDepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Manage blocks and blocked-by edges between tasks",
	}
	cmd.AddCommand(
		a.newDepsEdgeCmd("add", "Add a dependency edge and its reciprocal", true),
		a.newDepsEdgeCmd("remove", "Remove a dependency edge and its reciprocal", false),
		a.newDepsListCmd(),
		a.newDepsCandidatesCmd(),
		a.newDepsVerifyCmd(),
		a.newDepsRepairCmd(),
	)
	return cmd
}

// newDepsEdgeCmd builds add and remove, which differ only in the backend
// call and the activity they record on the source.
func (a *app) newDepsEdgeCmd(use, short string, add bool) *cobra.Command {
	var direction string
	cmd := &cobra.Command{
		Use:   use + " <source> <target>",
		Short: short,
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := types.ParseDirection(direction)
			if err != nil {
				return err
			}
			source, target := args[0], args[1]
			return a.withBackend(func(b *sqlite.Backend) error {
				ctx := cmd.Context()
				change := types.ActivityChange{Type: types.ActivityDependencyAdded, New: target}
				if add {
					err = b.AddEdge(ctx, source, target, dir)
				} else {
					change = types.ActivityChange{Type: types.ActivityDependencyRemoved, Old: target}
					err = b.RemoveEdge(ctx, source, target, dir)
				}
				if err != nil {
					return err
				}
				if err := b.AppendActivity(ctx, source, change); err != nil {
					return err
				}
				deps, err := b.Dependencies(ctx, source)
				if err != nil {
					return err
				}
				return a.emit(cmd, deps, func(p *printer) {
					p.ok(fmt.Sprintf("%s: %s %s %s", use, source, dir, target))
				})
			})
		},
	}
	cmd.Flags().StringVar(&direction, "direction", string(types.Blocks), "blocks or blocked_by, read from the source's side")
	return cmd
}

func (a *app) newDepsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <id>",
		Short: "Show the blocks and blocked-by lists of an entity",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				deps, err := b.Dependencies(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, deps, func(p *printer) {
					p.field("blocks", strings.Join(deps.Blocks, ", "))
					p.field("blocked by", strings.Join(deps.BlockedBy, ", "))
					if len(deps.Blocks)+len(deps.BlockedBy) == 0 {
						p.warn("no dependencies")
					}
				})
			})
		},
	}
}

func (a *app) newDepsCandidatesCmd() *cobra.Command {
	var exclude []string
	cmd := &cobra.Command{
		Use:   "candidates <project>",
		Short: "List tasks and subtasks of a project that can become dependencies",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				candidates, err := b.ListCandidates(cmd.Context(), args[0], exclude)
				if err != nil {
					return err
				}
				return a.emit(cmd, candidates, func(p *printer) {
					for _, c := range candidates {
						parent := c.EpicTitle
						if c.TaskTitle != "" {
							parent = c.TaskTitle
						}
						p.linef("%-18s %-8s %s %s", c.ID, c.SeqID, c.Title, labelStyle.Render(parent))
					}
				})
			})
		},
	}
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "ids to leave out")
	return cmd
}

func (a *app) newDepsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Report dangling and one-sided dependency edges",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				report, err := b.VerifyEdges(cmd.Context())
				if err != nil {
					return err
				}
				if err := a.emit(cmd, report, func(p *printer) { p.edgeReport(report) }); err != nil {
					return err
				}
				if !report.Clean() {
					return fmt.Errorf("dependency graph: %w", types.ErrIndexDrift)
				}
				return nil
			})
		},
	}
}

func (a *app) newDepsRepairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Drop dangling edges and restore missing reciprocals",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				report, err := b.RepairEdges(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(cmd, report, func(p *printer) {
					p.ok(fmt.Sprintf("removed %d dangling, repaired %d one-sided edges",
						len(report.Dangling), len(report.Asymmetric)))
				})
			})
		},
	}
}
