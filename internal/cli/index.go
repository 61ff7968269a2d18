package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/worktrack/internal/sqlite"
	"github.com/mesh-intelligence/worktrack/pkg/types"
)

func (a *app) newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain the full-text search index",
	}
	cmd.AddCommand(a.newIndexRebuildCmd(), a.newIndexVerifyCmd())
	return cmd
}

func (a *app) newIndexRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Drop and rebuild every index row from the entity store",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				n, err := b.RebuildIndex(cmd.Context())
				if err != nil {
					return err
				}
				result := map[string]int{"indexed": n}
				return a.emit(cmd, result, func(p *printer) {
					p.ok(fmt.Sprintf("indexed %d entities", n))
				})
			})
		},
	}
}

func (a *app) newIndexVerifyCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare the index with the entity store",
		Long:  "Report orphaned and missing index rows. Exits 1 on drift unless --fix\nrepairs it.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				if fix {
					report, err := b.FixIndex(cmd.Context())
					if err != nil {
						return err
					}
					return a.emit(cmd, report, func(p *printer) {
						p.ok(fmt.Sprintf("removed %d orphaned, indexed %d missing",
							report.OrphanedCount(), report.MissingCount()))
					})
				}

				report, err := b.VerifyIndex(cmd.Context())
				if err != nil {
					return err
				}
				if err := a.emit(cmd, report, func(p *printer) { p.indexReport(report) }); err != nil {
					return err
				}
				if !report.Clean() {
					return fmt.Errorf("search index: %w", types.ErrIndexDrift)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "repair drift instead of failing")
	return cmd
}
