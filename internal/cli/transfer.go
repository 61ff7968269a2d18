package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/worktrack/internal/sqlite"
)

// defaultExportFile is written when export gets no --output.
const defaultExportFile = "worktrack-export.jsonl"

func (a *app) newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every entity to a JSONL file",
		Long:  "Write one sync payload per line, parents before children, with each\nentity's dependency lists. The file can be read back with import.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				n, err := b.Export(cmd.Context(), output)
				if err != nil {
					return err
				}
				result := struct {
					File    string `json:"file"`
					Records int    `json:"records"`
				}{output, n}
				return a.emit(cmd, result, func(p *printer) {
					p.ok(fmt.Sprintf("exported %d entities to %s", n, output))
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", defaultExportFile, "destination file")
	return cmd
}

func (a *app) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load a JSONL export",
		Long:  "Sync every record of an export file, then replay its dependency edges.\nMalformed lines and rejected records are counted and skipped.",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				report, err := b.Import(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, report, func(p *printer) {
					p.field("synced", fmt.Sprint(report.Synced))
					p.field("edges", fmt.Sprint(report.Edges))
					if report.Failed+report.Malformed > 0 {
						p.warn(fmt.Sprintf("%d rejected, %d malformed", report.Failed, report.Malformed))
					}
				})
			})
		},
	}
}
