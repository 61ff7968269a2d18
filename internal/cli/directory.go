package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/worktrack/internal/sqlite"
)

func (a *app) newLabelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "List known labels",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				labels, err := b.Labels(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(cmd, labels, func(p *printer) {
					for _, l := range labels {
						p.linef("%s", l.Name)
					}
				})
			})
		},
	}
}

func (a *app) newPeopleCmd() *cobra.Command {
	var add string
	cmd := &cobra.Command{
		Use:   "people",
		Short: "List known people, or register one with --add",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				if add != "" {
					person, err := b.EnsurePerson(cmd.Context(), add)
					if err != nil {
						return err
					}
					return a.emit(cmd, person, func(p *printer) {
						p.ok(person.PersonID + " " + person.Name)
					})
				}
				people, err := b.People(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(cmd, people, func(p *printer) {
					for _, person := range people {
						p.linef("%-24s %s", person.PersonID, person.Name)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&add, "add", "", "register a person by name")
	return cmd
}

func (a *app) newStatusesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "statuses",
		Short: "List the status catalog",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				statuses, err := b.Statuses(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(cmd, statuses, func(p *printer) {
					for _, s := range statuses {
						name := statusStyle(s.Name).Render(s.Name)
						if !s.Active {
							name += labelStyle.Render(" (inactive)")
						}
						p.linef("%-14s %-14s %s", s.DisplayName, strings.Join(s.AppliesTo, ","), name)
					}
				})
			})
		},
	}
}
