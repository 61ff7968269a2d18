package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/worktrack/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoadSettings_Defaults(t *testing.T) {
	t.Setenv(envLogLevel, "")
	s, err := loadSettings(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, types.BackendSQLite, s.Backend)
	assert.Equal(t, "warn", s.Log.Level)
	assert.Equal(t, types.DefaultMaxResults, s.Search.MaxResults)
	assert.Equal(t, types.DefaultLabelsTTL, s.Cache.LabelsTTL)
	assert.Equal(t, types.DefaultActivityTTL, s.Cache.ActivityTTL)
	assert.False(t, s.Dates.Natural)
}

func TestLoadSettings_File(t *testing.T) {
	t.Setenv(envLogLevel, "")
	dir := writeConfig(t, `backend: sqlite
data_dir: /srv/worktrack
log:
  level: debug
  file: /var/log/worktrack.log
search:
  max_results: 5
cache:
  labels_ttl: 1m
  work_items_ttl: 10s
dates:
  natural: true
`)
	s, err := loadSettings(dir)
	require.NoError(t, err)

	assert.Equal(t, "/srv/worktrack", s.DataDir)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "/var/log/worktrack.log", s.Log.File)
	assert.Equal(t, 5, s.Search.MaxResults)
	assert.Equal(t, types.DefaultFieldLimit, s.Search.FieldLimit)
	assert.Equal(t, time.Minute, s.Cache.LabelsTTL)
	assert.Equal(t, 10*time.Second, s.Cache.WorkItemsTTL)
	assert.Equal(t, types.DefaultPeopleTTL, s.Cache.PeopleTTL)
	assert.True(t, s.Dates.Natural)
}

func TestLoadSettings_EnvLogLevel(t *testing.T) {
	t.Setenv(envLogLevel, "error")
	s, err := loadSettings(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "error", s.Log.Level)
}

func TestLoadSettings_Malformed(t *testing.T) {
	_, err := loadSettings(writeConfig(t, "search: [unclosed\n"))
	assert.Error(t, err)
}

func TestBackendConfig(t *testing.T) {
	tests := []struct {
		name    string
		catalog string
		want    string
	}{
		{"unset", "", ""},
		{"relative to config dir", "statuses.toml", filepath.Join("/etc/worktrack", "statuses.toml")},
		{"absolute", "/opt/statuses.toml", "/opt/statuses.toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settings{Backend: types.BackendSQLite, StatusCatalog: tt.catalog}
			cfg := s.backendConfig("/etc/worktrack", "/data")
			assert.Equal(t, tt.want, cfg.StatusCatalog)
			assert.Equal(t, "/data", cfg.DataDir)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestUnknownBackendIsRejected(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, "config.yaml"), []byte("backend: postgres\n"), 0o644))
	_, stderr, code := e.run("list")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, types.ErrBackendUnknown.Error())
}
