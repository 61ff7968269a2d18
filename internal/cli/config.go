package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/worktrack/internal/logging"
	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// envLogLevel overrides log.level without editing config.yaml.
const envLogLevel = "WORKTRACK_LOG_LEVEL"

// settings is the decoded config.yaml.
type settings struct {
	Backend       string         `mapstructure:"backend"`
	DataDir       string         `mapstructure:"data_dir"`
	StatusCatalog string         `mapstructure:"status_catalog"`
	Log           logging.Config `mapstructure:"log"`
	Search        searchSettings `mapstructure:"search"`
	Cache         cacheSettings  `mapstructure:"cache"`
	Dates         dateSettings   `mapstructure:"dates"`
}

type searchSettings struct {
	MaxResults int `mapstructure:"max_results"`
	FieldLimit int `mapstructure:"field_limit"`
}

type cacheSettings struct {
	LabelsTTL    time.Duration `mapstructure:"labels_ttl"`
	PeopleTTL    time.Duration `mapstructure:"people_ttl"`
	WorkItemsTTL time.Duration `mapstructure:"work_items_ttl"`
	ActivityTTL  time.Duration `mapstructure:"activity_ttl"`
}

type dateSettings struct {
	Natural bool `mapstructure:"natural"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", types.BackendSQLite)
	v.SetDefault("data_dir", "")
	v.SetDefault("status_catalog", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.json", false)
	v.SetDefault("search.max_results", types.DefaultMaxResults)
	v.SetDefault("search.field_limit", types.DefaultFieldLimit)
	v.SetDefault("cache.labels_ttl", types.DefaultLabelsTTL)
	v.SetDefault("cache.people_ttl", types.DefaultPeopleTTL)
	v.SetDefault("cache.work_items_ttl", types.DefaultWorkItemsTTL)
	v.SetDefault("cache.activity_ttl", types.DefaultActivityTTL)
	v.SetDefault("dates.natural", false)
}

// loadSettings reads config.yaml from configDir. A missing file yields the
// defaults; a malformed one is an error.
func loadSettings(configDir string) (settings, error) {
	v := viper.New()
	setDefaults(v)
	if err := v.BindEnv("log.level", envLogLevel); err != nil {
		return settings{}, err
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("decoding config: %w", err)
	}
	return s, nil
}

// backendConfig builds the Attach configuration. A relative status catalog
// path is taken relative to configDir.
func (s settings) backendConfig(configDir, dataDir string) types.Config {
	catalog := s.StatusCatalog
	if catalog != "" && !filepath.IsAbs(catalog) {
		catalog = filepath.Join(configDir, catalog)
	}
	return types.Config{
		Backend:       s.Backend,
		DataDir:       dataDir,
		StatusCatalog: catalog,
		Search: types.SearchConfig{
			MaxResults: s.Search.MaxResults,
			FieldLimit: s.Search.FieldLimit,
		},
		Cache: types.CacheConfig{
			LabelsTTL:    s.Cache.LabelsTTL,
			PeopleTTL:    s.Cache.PeopleTTL,
			WorkItemsTTL: s.Cache.WorkItemsTTL,
			ActivityTTL:  s.Cache.ActivityTTL,
		},
		NaturalDates: s.Dates.Natural,
	}
}
