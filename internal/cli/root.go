// Package cli implements the worktrack command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/worktrack/internal/cache"
	"github.com/mesh-intelligence/worktrack/internal/legacy"
	"github.com/mesh-intelligence/worktrack/internal/logging"
	"github.com/mesh-intelligence/worktrack/internal/paths"
	"github.com/mesh-intelligence/worktrack/internal/sqlite"
	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

// app carries the state shared by one invocation's commands.
type app struct {
	flags     rootFlags
	configDir string
	settings  settings
	logger    *slog.Logger
	logCloser io.Closer
}

// usageError marks bad flags or arguments.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

// NewRootCmd creates the top-level "worktrack" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: logging.Discard()}
	root := &cobra.Command{
		Use:     "worktrack",
		Short:   "A local-first tracker for projects, epics, tasks, and notes",
		Long:    "worktrack keeps work items, their tags, activity, dependencies, and\nsearch index consistent in a single SQLite database.",
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.load,
		PersistentPostRunE: a.close,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/.worktrack-db)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(
		newVersionCmd(),
		a.newInitCmd(),
		a.newNewCmd(),
		a.newUpdateCmd(),
		a.newShowCmd(),
		a.newListCmd(),
		a.newDeleteCmd(),
		a.newSyncCmd(),
		a.newSearchCmd(),
		a.newNoteCmd(),
		a.newActivityCmd(),
		a.newDepsCmd(),
		a.newIndexCmd(),
		a.newLabelsCmd(),
		a.newPeopleCmd(),
		a.newStatusesCmd(),
		a.newMigrateCmd(),
		a.newWatchCmd(),
		a.newExportCmd(),
		a.newImportCmd(),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes args against a fresh command tree and returns the exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("error:"), err)
		return exitCode(err)
	}
	return exitSuccess
}

// exitCode maps rejected requests to 1 and storage or system failures to 2.
func exitCode(err error) int {
	var usage usageError
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &usage),
		types.IsValidation(err),
		errors.Is(err, types.ErrIndexDrift),
		errors.Is(err, legacy.ErrLocked),
		errors.Is(err, types.ErrBackendUnknown),
		errors.Is(err, types.ErrBackendEmpty):
		return exitUserError
	default:
		return exitSysError
	}
}

// load resolves the config directory, reads config.yaml, and builds the logger.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolving config dir: %w", err)
	}
	a.configDir = dir

	s, err := loadSettings(dir)
	if err != nil {
		return err
	}
	a.settings = s

	logger, closer, err := logging.New(s.Log, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}
	a.logger, a.logCloser = logger, closer
	return nil
}

func (a *app) close(*cobra.Command, []string) error {
	if a.logCloser != nil {
		return a.logCloser.Close()
	}
	return nil
}

// dataDir resolves the data directory for this invocation.
func (a *app) dataDir() (string, error) {
	dir, err := paths.ResolveDataDir(a.flags.dataDir, a.settings.DataDir)
	if err != nil {
		return "", fmt.Errorf("resolving data dir: %w", err)
	}
	return dir, nil
}

// open attaches a backend on the resolved data directory.
func (a *app) open() (*sqlite.Backend, error) {
	dir, err := a.dataDir()
	if err != nil {
		return nil, err
	}
	c := cache.New()
	c.OnInvalidate(func(key string) {
		a.logger.Debug("cache invalidated", slog.String("key", key))
	})
	b := sqlite.NewBackend(sqlite.WithLogger(a.logger), sqlite.WithCache(c))
	if err := b.Attach(a.settings.backendConfig(a.configDir, dir)); err != nil {
		return nil, fmt.Errorf("attaching backend: %w", err)
	}
	return b, nil
}

// withBackend runs fn against an attached backend and detaches afterwards.
func (a *app) withBackend(fn func(b *sqlite.Backend) error) error {
	b, err := a.open()
	if err != nil {
		return err
	}
	defer b.Detach()
	return fn(b)
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return wrapArgs(cobra.ExactArgs(n))
}

// minArgs is cobra.MinimumNArgs reporting a usage error.
func minArgs(n int) cobra.PositionalArgs {
	return wrapArgs(cobra.MinimumNArgs(n))
}

func wrapArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
