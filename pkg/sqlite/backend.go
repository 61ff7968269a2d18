// Package sqlite provides the public constructor for the SQLite worktrack
// engine while keeping its stores internal.
package sqlite

import (
	"github.com/mesh-intelligence/worktrack/internal/sqlite"
	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// Option configures a backend created by NewBackend.
type Option = sqlite.Option

// Re-exported options.
var (
	WithLogger = sqlite.WithLogger
	WithCache  = sqlite.WithCache
	WithClock  = sqlite.WithClock
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	tracker := sqlite.NewBackend()
//	err := tracker.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".worktrack-db",
//	})
//	defer tracker.Detach()
func NewBackend(opts ...Option) types.Tracker {
	return sqlite.NewBackend(opts...)
}
