package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/worktrack/internal/paths"
	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// configFile is the config.yaml written by init. Durations are written as
// strings so the file stays readable.
type configFile struct {
	Backend       string        `yaml:"backend"`
	DataDir       string        `yaml:"data_dir,omitempty"`
	StatusCatalog string        `yaml:"status_catalog,omitempty"`
	Log           logSection    `yaml:"log"`
	Search        searchSection `yaml:"search"`
	Cache         cacheSection  `yaml:"cache"`
	Dates         dateSection   `yaml:"dates"`
}

type logSection struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

type searchSection struct {
	MaxResults int `yaml:"max_results"`
	FieldLimit int `yaml:"field_limit"`
}

type cacheSection struct {
	LabelsTTL    string `yaml:"labels_ttl"`
	PeopleTTL    string `yaml:"people_ttl"`
	WorkItemsTTL string `yaml:"work_items_ttl"`
	ActivityTTL  string `yaml:"activity_ttl"`
}

type dateSection struct {
	Natural bool `yaml:"natural"`
}

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize worktrack storage",
		Long:  "Create the configuration and data directories, write config.yaml if it\nis missing, then create the database schema.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			dataDir, err := a.dataDir()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(a.configDir, 0o755); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}

			path := paths.ConfigFile(a.configDir)
			written, err := writeConfigIfMissing(path, a.flags.dataDir, a.settings)
			if err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			b, err := a.open()
			if err != nil {
				return err
			}
			if err := b.Detach(); err != nil {
				return fmt.Errorf("finalizing storage: %w", err)
			}

			result := struct {
				ConfigFile    string `json:"config_file"`
				ConfigWritten bool   `json:"config_written"`
				DataDir       string `json:"data_dir"`
			}{path, written, dataDir}
			return a.emit(cmd, result, func(p *printer) {
				if written {
					p.field("config", path)
				} else {
					p.field("config", path+" (kept)")
				}
				p.field("data", dataDir)
				p.ok("worktrack initialized")
			})
		},
	}
}

// writeConfigIfMissing creates config.yaml from s unless it already exists.
// It reports whether a file was written.
func writeConfigIfMissing(path, dataDir string, s settings) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	cfg := configFile{
		Backend:       s.Backend,
		DataDir:       dataDir,
		StatusCatalog: s.StatusCatalog,
		Log:           logSection{Level: s.Log.Level, File: s.Log.File},
		Search:        searchSection{MaxResults: s.Search.MaxResults, FieldLimit: s.Search.FieldLimit},
		Cache: cacheSection{
			LabelsTTL:    s.Cache.LabelsTTL.String(),
			PeopleTTL:    s.Cache.PeopleTTL.String(),
			WorkItemsTTL: s.Cache.WorkItemsTTL.String(),
			ActivityTTL:  s.Cache.ActivityTTL.String(),
		},
		Dates: dateSection{Natural: s.Dates.Natural},
	}
	if cfg.Backend == "" {
		cfg.Backend = types.BackendSQLite
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	return true, os.WriteFile(path, data, 0o644)
}
