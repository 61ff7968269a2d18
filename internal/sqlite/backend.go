// Package sqlite implements the worktrack engine on SQLite: the entity store,
// tag and assignment links, the activity ledger, the dependency graph, and an
// FTS5 search index, all written together by the sync coordinator.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/worktrack/internal/cache"
	"github.com/mesh-intelligence/worktrack/internal/dates"
	"github.com/mesh-intelligence/worktrack/internal/logging"
	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// DatabaseFile is the SQLite file name inside the data directory.
const DatabaseFile = "worktrack.db"

var _ types.Tracker = (*Backend)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Backend implements types.Tracker on a single SQLite database.
type Backend struct {
	mu       sync.RWMutex
	writeMu  sync.Mutex
	attached bool
	config   types.Config
	db       *sql.DB

	logger *slog.Logger
	cache  *cache.Cache
	dates  *dates.Parser
	now    func() time.Time

	entities *entityStore
	tags     *tagReconciler
	ledger   *activityLedger
	graph    *dependencyGraph
	index    *searchIndex
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithCache shares a cache with the caller, which may register hooks on it.
func WithCache(c *cache.Cache) Option {
	return func(b *Backend) { b.cache = c }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.cache == nil {
		b.cache = cache.New(cache.WithClock(b.now))
	}
	b.entities = &entityStore{b: b}
	b.tags = &tagReconciler{b: b}
	b.ledger = &activityLedger{b: b}
	b.graph = &dependencyGraph{b: b}
	b.index = &searchIndex{b: b}
	return b
}

// Attach opens (or creates) the database in config.DataDir, applies the
// schema, and seeds the status catalog.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	config = config.WithDefaults()

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dsn := "file:" + filepath.Join(dataDir, DatabaseFile) +
		"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	ctx := context.Background()
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return err
	}
	if err := seedStatuses(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("seeding statuses: %w", err)
	}
	if config.StatusCatalog != "" {
		n, err := loadStatusCatalog(ctx, db, config.StatusCatalog)
		if err != nil {
			db.Close()
			return fmt.Errorf("loading status catalog: %w", err)
		}
		b.logger.Debug("status catalog loaded", slog.String("path", config.StatusCatalog), slog.Int("statuses", n))
	}

	var parserOpts []dates.Option
	if config.NaturalDates {
		parserOpts = append(parserOpts, dates.WithNatural())
	}
	parserOpts = append(parserOpts, dates.WithClock(b.now))
	b.dates = dates.NewParser(parserOpts...)

	b.db = db
	b.config = config
	b.attached = true
	return nil
}

// Detach closes the database. After Detach, all operations return
// ErrDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.cache.InvalidatePrefix(cache.PrefixAll)
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// Cache exposes the backend's cache so callers can register hooks.
func (b *Backend) Cache() *cache.Cache {
	return b.cache
}

// initSchema creates tables and indexes and records the schema version.
func initSchema(ctx context.Context, db *sql.DB) error {
	for _, ddl := range schemaDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		schemaVersion,
	)
	if err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

// acquire holds the read lock for the duration of an operation. The returned
// release func must be called when the operation finishes.
func (b *Backend) acquire() (func(), error) {
	b.mu.RLock()
	if !b.attached {
		b.mu.RUnlock()
		return nil, types.ErrDetached
	}
	return b.mu.RUnlock, nil
}

// withTx runs fn in a transaction, committing on success and rolling back on
// any error. Write transactions are serialized; SQLite allows one writer.
func (b *Backend) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// timestamp returns the current time at second resolution in UTC.
func (b *Backend) timestamp() time.Time {
	return b.now().UTC().Truncate(time.Second)
}

// newUUID generates a UUID v7, falling back to v4.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
