package legacy

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Deleter removes entities whose files disappear.
type Deleter interface {
	DeleteEntity(ctx context.Context, id string) error
}

// Op is what the watcher did with a file event.
type Op int

const (
	// OpImport means the file was (re)imported.
	OpImport Op = iota
	// OpDelete means the entity behind a removed file was deleted.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpImport:
		return "import"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event reports one handled file change.
type Event struct {
	Path string
	Op   Op
	ID   string
	Err  error
}

// DefaultDeleteGrace is how long a removed or renamed file must stay gone
// before its entity is deleted. Editors that save by renaming the old file
// and writing a new one recreate it well within this window.
const DefaultDeleteGrace = 500 * time.Millisecond

// Watcher keeps the database in step with edits to a legacy tree.
type Watcher struct {
	root     string
	migrator *Migrator
	deleter  Deleter
	logger   *slog.Logger
	fs       *fsnotify.Watcher
	onEvent  func(Event)
	grace    time.Duration

	// pending holds delete checks per path; only Run touches it.
	pending map[string]*time.Timer
	due     chan string
	stop    chan struct{}
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// OnEvent registers a hook called after every handled event.
func OnEvent(fn func(Event)) WatchOption {
	return func(w *Watcher) { w.onEvent = fn }
}

// WithDeleteGrace overrides DefaultDeleteGrace.
func WithDeleteGrace(d time.Duration) WatchOption {
	return func(w *Watcher) { w.grace = d }
}

// NewWatcher starts watching every directory under root. Events are not
// handled until Run is called.
func NewWatcher(root string, m *Migrator, d Deleter, opts ...WatchOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{
		root:     root,
		migrator: m,
		deleter:  d,
		logger:   m.logger,
		fs:       fw,
		grace:    DefaultDeleteGrace,
		pending:  make(map[string]*time.Timer),
		due:      make(chan string),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if _, err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Run handles file events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	defer func() {
		close(w.stop)
		for _, t := range w.pending {
			t.Stop()
		}
	}()
	w.logger.Info("watching legacy tree", slog.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)

		case path := <-w.due:
			delete(w.pending, path)
			if fileExists(path) {
				w.logger.Debug("legacy file replaced; keeping entity", slog.String("path", path))
				continue
			}
			w.deleteFile(ctx, path)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create) && isDir(event.Name):
		// Files written before the watch was added are imported here.
		files, err := w.addTree(event.Name)
		if err != nil {
			w.logger.Warn("watching new directory failed", slog.String("path", event.Name), slog.Any("error", err))
		}
		for _, f := range files {
			w.importFile(ctx, f)
		}

	case !strings.HasSuffix(event.Name, ".md"):
		return

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.importFile(ctx, event.Name)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.scheduleDelete(event.Name)
	}
}

// scheduleDelete checks path again after the grace period and deletes its
// entity only if the file is still gone.
func (w *Watcher) scheduleDelete(path string) {
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.grace, func() {
		select {
		case w.due <- path:
		case <-w.stop:
		}
	})
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	loc, err := w.migrator.ImportFile(ctx, w.root, path)
	if err != nil {
		w.logger.Warn("legacy import failed", slog.String("path", path), slog.Any("error", err))
	} else {
		w.logger.Debug("legacy file imported", slog.String("path", path), slog.String("entity_id", loc.ID))
	}
	w.emit(Event{Path: path, Op: OpImport, ID: loc.ID, Err: err})
}

func (w *Watcher) deleteFile(ctx context.Context, path string) {
	loc, ok := PathInfo(w.root, path)
	if !ok || loc.Person {
		return
	}
	err := w.deleter.DeleteEntity(ctx, loc.ID)
	if err != nil {
		w.logger.Warn("legacy delete failed", slog.String("path", path), slog.String("entity_id", loc.ID), slog.Any("error", err))
	} else {
		w.logger.Debug("legacy entity deleted", slog.String("entity_id", loc.ID))
	}
	w.emit(Event{Path: path, Op: OpDelete, ID: loc.ID, Err: err})
}

func (w *Watcher) emit(e Event) {
	if w.onEvent != nil {
		w.onEvent(e)
	}
}

// addTree watches dir and every directory below it, returning the .md files
// already present.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if filepath.Ext(path) == ".md" {
				files = append(files, path)
			}
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
	return files, err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
