package legacy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile is created in the data directory while an import runs.
const LockFile = ".migrate.lock"

// ErrLocked is returned when another migrate or watch holds the lock.
var ErrLocked = errors.New("another legacy import is running")

// Lock takes the import lock in dir without blocking. The returned func
// releases it.
func Lock(dir string) (func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring import lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return lock.Unlock, nil
}
