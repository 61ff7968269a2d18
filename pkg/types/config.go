package types

import (
	"errors"
	"time"
)

// Config holds backend selection and tuning for Tracker.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// StatusCatalog is an optional TOML file of statuses upserted on attach.
	StatusCatalog string `json:"status_catalog,omitempty" yaml:"status_catalog,omitempty"`

	Search SearchConfig `json:"search" yaml:"search"`
	Cache  CacheConfig  `json:"cache" yaml:"cache"`

	// NaturalDates enables natural-language parsing ("next friday") for date
	// fields that match no fixed layout.
	NaturalDates bool `json:"natural_dates" yaml:"natural_dates"`
}

// SearchConfig bounds search results and indexed text.
type SearchConfig struct {
	MaxResults int `json:"max_results" yaml:"max_results"`
	FieldLimit int `json:"field_limit" yaml:"field_limit"`
}

// CacheConfig holds TTLs for derived lookups.
type CacheConfig struct {
	LabelsTTL    time.Duration `json:"labels_ttl" yaml:"labels_ttl"`
	PeopleTTL    time.Duration `json:"people_ttl" yaml:"people_ttl"`
	WorkItemsTTL time.Duration `json:"work_items_ttl" yaml:"work_items_ttl"`
	ActivityTTL  time.Duration `json:"activity_ttl" yaml:"activity_ttl"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Defaults applied by WithDefaults.
const (
	DefaultMaxResults   = 100
	DefaultFieldLimit   = 10000
	DefaultLabelsTTL    = 300 * time.Second
	DefaultPeopleTTL    = 300 * time.Second
	DefaultWorkItemsTTL = 30 * time.Second
	DefaultActivityTTL  = 30 * time.Second
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrLimitInvalid   = errors.New("search limits must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Search.MaxResults < 0 || c.Search.FieldLimit < 0 {
		return ErrLimitInvalid
	}
	return nil
}

// WithDefaults returns a copy of c with zero tuning values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = DefaultMaxResults
	}
	if c.Search.FieldLimit == 0 {
		c.Search.FieldLimit = DefaultFieldLimit
	}
	if c.Cache.LabelsTTL == 0 {
		c.Cache.LabelsTTL = DefaultLabelsTTL
	}
	if c.Cache.PeopleTTL == 0 {
		c.Cache.PeopleTTL = DefaultPeopleTTL
	}
	if c.Cache.WorkItemsTTL == 0 {
		c.Cache.WorkItemsTTL = DefaultWorkItemsTTL
	}
	if c.Cache.ActivityTTL == 0 {
		c.Cache.ActivityTTL = DefaultActivityTTL
	}
	return c
}
