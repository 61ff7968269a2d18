package cli

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/worktrack/internal/legacy"
	"github.com/mesh-intelligence/worktrack/internal/sqlite"
	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// env is one isolated pair of config and data directories.
type env struct {
	t         *testing.T
	configDir string
	dataDir   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv(envLogLevel, "")
	return &env{t: t, configDir: t.TempDir(), dataDir: t.TempDir()}
}

// run executes args with the env's directories appended.
func (e *env) run(args ...string) (stdout, stderr string, code int) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	full := append(args, "--config-dir", e.configDir, "--data-dir", e.dataDir)
	code = Run(full, &out, &errOut)
	return out.String(), errOut.String(), code
}

// ok runs args and fails the test on a non-zero exit.
func (e *env) ok(args ...string) string {
	e.t.Helper()
	out, stderr, code := e.run(args...)
	require.Equal(e.t, exitSuccess, code, "%v: %s", args, stderr)
	return out
}

// decode runs args in --json mode and decodes the output into v.
func (e *env) decode(v any, args ...string) {
	e.t.Helper()
	out := e.ok(append(args, "--json")...)
	require.NoError(e.t, json.Unmarshal([]byte(out), v), out)
}

func (e *env) create(args ...string) *types.Entity {
	e.t.Helper()
	var ent types.Entity
	e.decode(&ent, append([]string{"new"}, args...)...)
	return &ent
}

type shown struct {
	types.Entity
	Activity []types.ActivityEntry `json:"activity"`
}

func contents(entries []types.ActivityEntry) []string {
	out := make([]string, len(entries))
	for i, a := range entries {
		out[i] = a.Content
	}
	return out
}

func TestVersion(t *testing.T) {
	out := newEnv(t).ok("version")
	assert.Contains(t, out, "worktrack v"+Version)
	assert.Contains(t, out, modulePath)
}

func TestInit(t *testing.T) {
	e := newEnv(t)

	out := e.ok("init")
	assert.Contains(t, out, "worktrack initialized")
	assert.FileExists(t, filepath.Join(e.dataDir, sqlite.DatabaseFile))

	data, err := os.ReadFile(filepath.Join(e.configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend: sqlite")
	assert.Contains(t, string(data), "labels_ttl: 5m0s")

	out = e.ok("init")
	assert.Contains(t, out, "(kept)")
}

func TestEntityLifecycle(t *testing.T) {
	e := newEnv(t)
	project := e.create("project", "--title", "Importer")
	assert.Equal(t, "active", project.Status)

	task := e.create("task", "--project", project.ID, "--title", "Parse", "--label", "api", "--priority", "2")
	assert.Equal(t, "todo", task.Status)
	assert.Equal(t, []string{"api"}, task.Labels)

	var updated types.Entity
	e.decode(&updated, "update", task.ID, "--status", "in_progress", "--label", "")
	assert.Equal(t, "in_progress", updated.Status)
	assert.Empty(t, updated.Labels)
	assert.Equal(t, "Parse", updated.Title)
	require.NotNil(t, updated.Priority)
	assert.Equal(t, 2, *updated.Priority)

	var s shown
	e.decode(&s, "show", task.ID)
	assert.Equal(t, []string{
		"Created",
		"Status changed from todo to in_progress",
		"Label 'api' removed",
	}, contents(s.Activity))

	e.ok("note", task.ID, "waiting", "on", "review")
	var activity []types.ActivityEntry
	e.decode(&activity, "activity", task.ID)
	require.Len(t, activity, 4)
	assert.Equal(t, "waiting on review", activity[3].Content)
	assert.Equal(t, types.EntryUser, activity[3].Type)

	var listed []*types.Entity
	e.decode(&listed, "list", "--kind", "task", "--status", "in_progress")
	require.Len(t, listed, 1)
	assert.Equal(t, task.ID, listed[0].ID)

	_, stderr, code := e.run("delete", project.ID)
	assert.Equal(t, exitUserError, code, stderr)

	e.ok("delete", task.ID)
	_, _, code = e.run("show", task.ID)
	assert.Equal(t, exitUserError, code)
}

func TestNoteLinksToProject(t *testing.T) {
	e := newEnv(t)
	project := e.create("project", "--title", "Importer")
	other := e.create("project", "--title", "Exporter")
	note := e.create("note", "--project", project.ID, "--title", "Retro")

	e.ok("update", note.ID, "--project", other.ID)

	var first, second []types.ActivityEntry
	e.decode(&first, "activity", project.ID)
	e.decode(&second, "activity", other.ID)
	assert.Contains(t, contents(first), "Note 'Retro' linked")
	assert.Contains(t, contents(first), "Note 'Retro' unlinked")
	assert.Contains(t, contents(second), "Note 'Retro' linked")

	var feed []types.ActivityEntry
	e.decode(&feed, "activity", "--project", project.ID, "--limit", "1")
	assert.Len(t, feed, 1)
}

func TestRejectedRequests(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		args []string
	}{
		{"unknown kind", []string{"new", "widget", "--title", "x"}},
		{"task without project", []string{"new", "task", "--title", "x"}},
		{"missing title", []string{"new", "project"}},
		{"unknown entity", []string{"show", "task-00000000"}},
		{"malformed id", []string{"show", "nonsense"}},
		{"unknown flag", []string{"list", "--colour", "red"}},
		{"missing argument", []string{"show"}},
		{"bad direction", []string{"deps", "add", "task-00000001", "task-00000002", "--direction", "sideways"}},
		{"activity without target", []string{"activity"}},
		{"bad due date", []string{"list", "--due-before", "someday"}},
		{"priority out of range", []string{"new", "project", "--title", "x", "--priority", "9"}},
		{"negative priority", []string{"new", "project", "--title", "x", "--priority", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := e.run(tt.args...)
			assert.Equal(t, exitUserError, code, stderr)
			assert.Contains(t, stderr, "error:")
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"usage", usageError{errors.New("bad flag")}, exitUserError},
		{"validation", fmt.Errorf("wrapped: %w", types.ErrMissingTitle), exitUserError},
		{"drift", fmt.Errorf("search index: %w", types.ErrIndexDrift), exitUserError},
		{"locked", legacy.ErrLocked, exitUserError},
		{"storage", errors.New("disk I/O error"), exitSysError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestDependencies(t *testing.T) {
	e := newEnv(t)
	project := e.create("project", "--title", "Importer")
	a := e.create("task", "--project", project.ID, "--title", "Parse")
	b := e.create("task", "--project", project.ID, "--title", "Load")

	var deps types.Dependencies
	e.decode(&deps, "deps", "add", a.ID, b.ID)
	assert.Equal(t, []string{b.ID}, deps.Blocks)

	e.decode(&deps, "deps", "list", b.ID)
	assert.Equal(t, []string{a.ID}, deps.BlockedBy)

	var s shown
	e.decode(&s, "show", a.ID)
	assert.Contains(t, contents(s.Activity), fmt.Sprintf("Dependency '%s' added", b.ID))

	var candidates []types.Candidate
	e.decode(&candidates, "deps", "candidates", project.ID, "--exclude", a.ID)
	require.Len(t, candidates, 1)
	assert.Equal(t, b.ID, candidates[0].ID)

	e.ok("deps", "verify")

	e.decode(&deps, "deps", "remove", a.ID, b.ID)
	assert.Empty(t, deps.Blocks)
	e.decode(&s, "show", a.ID)
	assert.Contains(t, contents(s.Activity), fmt.Sprintf("Dependency '%s' removed", b.ID))
}

func TestDependencies_VerifyAndRepair(t *testing.T) {
	e := newEnv(t)
	project := e.create("project", "--title", "Importer")
	a := e.create("task", "--project", project.ID, "--title", "Parse")
	b := e.create("task", "--project", project.ID, "--title", "Load")
	e.ok("deps", "add", a.ID, b.ID)
	e.ok("delete", b.ID)

	out, _, code := e.run("deps", "verify")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, out, "dangling")

	var report types.EdgeReport
	e.decode(&report, "deps", "repair")
	assert.Len(t, report.Dangling, 1)
	e.ok("deps", "verify")
}

func TestIndex(t *testing.T) {
	e := newEnv(t)
	project := e.create("project", "--title", "Importer")
	task := e.create("task", "--project", project.ID, "--title", "Parse", "--content", "postgres migration")

	var hits []types.SearchHit
	e.decode(&hits, "search", "postgres")
	require.Len(t, hits, 1)
	assert.Equal(t, task.ID, hits[0].Entity.ID)

	e.ok("index", "verify")

	db, err := sql.Open("sqlite", filepath.Join(e.dataDir, sqlite.DatabaseFile))
	require.NoError(t, err)
	_, err = db.Exec("DELETE FROM search_index WHERE entity_id = ?", task.ID)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, stderr, code := e.run("index", "verify")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, out, "missing  "+task.ID)
	assert.Contains(t, stderr, types.ErrIndexDrift.Error())

	var fixed types.IndexReport
	e.decode(&fixed, "index", "verify", "--fix")
	assert.Equal(t, 1, fixed.MissingCount())
	e.ok("index", "verify")

	var rebuilt map[string]int
	e.decode(&rebuilt, "index", "rebuild")
	assert.Equal(t, 2, rebuilt["indexed"])
}

func TestSync(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "payloads.json")
	payloads := `{"id":"project-0000000a","kind":"project","fields":{"title":"Importer"}}
{"id":"task-0000000b","kind":"task","fields":{"title":"Parse","project_id":"project-0000000a"},"labels":["api"]}
`
	require.NoError(t, os.WriteFile(path, []byte(payloads), 0o644))

	var result map[string]int
	e.decode(&result, "sync", "-f", path)
	assert.Equal(t, 2, result["synced"])

	var labels []types.Label
	e.decode(&labels, "labels")
	require.Len(t, labels, 1)
	assert.Equal(t, "api", labels[0].Name)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"id":"task-0000000c","kind":"task","fields":{"title":"x"}}`), 0o644))
	_, stderr, code := e.run("sync", "-f", bad)
	assert.Equal(t, exitUserError, code, stderr)
}

func TestDirectory(t *testing.T) {
	e := newEnv(t)

	var person types.Person
	e.decode(&person, "people", "--add", "Dana Scully")
	assert.Equal(t, "Dana Scully", person.Name)

	var people []types.Person
	e.decode(&people, "people")
	require.Len(t, people, 1)
	assert.Equal(t, person.PersonID, people[0].PersonID)

	var statuses []types.Status
	e.decode(&statuses, "statuses")
	assert.Len(t, statuses, len(types.BuiltInStatuses))
}

func TestExportImport(t *testing.T) {
	src := newEnv(t)
	project := src.create("project", "--title", "Importer")
	a := src.create("task", "--project", project.ID, "--title", "Parse")
	b := src.create("task", "--project", project.ID, "--title", "Load")
	src.ok("deps", "add", a.ID, b.ID)

	file := filepath.Join(t.TempDir(), "export.jsonl")
	var exported struct {
		Records int `json:"records"`
	}
	src.decode(&exported, "export", "-o", file)
	assert.Equal(t, 3, exported.Records)

	dst := newEnv(t)
	var report sqlite.ImportReport
	dst.decode(&report, "import", file)
	assert.Equal(t, sqlite.ImportReport{Synced: 3, Edges: 2}, report)

	var deps types.Dependencies
	dst.decode(&deps, "deps", "list", b.ID)
	assert.Equal(t, []string{a.ID}, deps.BlockedBy)
}

func TestMigrate(t *testing.T) {
	e := newEnv(t)
	root := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("projects/project-a0000001.md", "---\ntitle: Importer\n---\n")
	write("projects/project-a0000001/tasks/task-a0000001.md", "---\ntitle: Parse\nblocks: [task-a0000002]\n---\n")
	write("projects/project-a0000001/tasks/task-a0000002.md", "---\ntitle: Load\n---\n")

	var dry legacy.Report
	e.decode(&dry, "migrate", root, "--dry-run")
	assert.Equal(t, 3, dry.Synced)
	var none []*types.Entity
	e.decode(&none, "list")
	assert.Empty(t, none)

	var report legacy.Report
	e.decode(&report, "migrate", root)
	assert.Equal(t, legacy.Report{Files: 3, Synced: 3, Edges: 1}, report)

	unlock, err := legacy.Lock(e.dataDir)
	require.NoError(t, err)
	defer unlock()
	_, stderr, code := e.run("migrate", root)
	assert.Equal(t, exitUserError, code)
	assert.True(t, strings.Contains(stderr, legacy.ErrLocked.Error()), stderr)
}
