// Package watcher observes the vault for document changes and triggers
// incremental re-indexing. Events are debounced per path so the burst of
// notifications a single save produces (especially under atomic-rename
// writes) collapses into one call per logical change. Handler dispatch is
// sequential; there is no parallelism to coordinate.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new document was created.
	OpCreate Operation = iota
	// OpModify indicates an existing document was modified.
	OpModify
	// OpDelete indicates a document was deleted or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Event represents a debounced file system event.
type Event struct {
	// Path is relative to the watched root.
	Path string
	// Operation is the coalesced operation.
	Operation Operation
	// Timestamp is when the last raw event was observed.
	Timestamp time.Time
}

// Handler processes one debounced event. A failing handler is logged and
// does not block other handlers or later events.
type Handler func(Event) error

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet period per path before dispatch.
	// Default: 200ms.
	DebounceWindow time.Duration

	// Extensions are the document extensions to watch (with dot).
	// Default: .md, .txt.
	Extensions []string
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow == 0 {
		o.DebounceWindow = 200 * time.Millisecond
	}
	if len(o.Extensions) == 0 {
		o.Extensions = []string{".md", ".txt"}
	}
	return o
}

// Watcher watches a vault tree via fsnotify.
type Watcher struct {
	opts      Options
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	rootPath  string

	mu       sync.Mutex
	handlers []Handler
	stopCh   chan struct{}
	stopped  bool
}

// New creates a watcher with the given options.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		opts:      opts,
		fsWatcher: fsw,
		debouncer: NewDebouncer(opts.DebounceWindow),
		stopCh:    make(chan struct{}),
	}, nil
}

// OnEvent registers a handler. Handlers run sequentially in registration
// order, once per debounced event.
func (w *Watcher) OnEvent(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Start begins watching the given directory recursively and blocks until
// the context is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	w.rootPath = absRoot

	if err := w.addRecursive(absRoot); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	go w.dispatch()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleRaw(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	return w.fsWatcher.Close()
}

// dispatch runs handlers sequentially for each debounced event.
func (w *Watcher) dispatch() {
	for event := range w.debouncer.Output() {
		w.mu.Lock()
		handlers := make([]Handler, len(w.handlers))
		copy(handlers, w.handlers)
		w.mu.Unlock()

		for _, h := range handlers {
			if err := safeInvoke(h, event); err != nil {
				slog.Warn("watch_handler_failed",
					slog.String("path", event.Path),
					slog.String("op", event.Operation.String()),
					slog.String("error", err.Error()))
			}
		}
	}
}

// safeInvoke runs a handler, converting panics into errors so one bad
// handler cannot take down the dispatch loop.
func safeInvoke(h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(event)
}

// handleRaw translates one raw fsnotify event into the debouncer.
func (w *Watcher) handleRaw(event fsnotify.Event) {
	// New directories must be added to the watch set before their
	// contents produce events.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			return
		}
	}

	if !w.watchable(event.Name) {
		return
	}

	rel, err := filepath.Rel(w.rootPath, event.Name)
	if err != nil {
		return
	}

	var op Operation
	switch {
	case event.Op.Has(fsnotify.Create):
		op = OpCreate
	case event.Op.Has(fsnotify.Write):
		op = OpModify
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(Event{
		Path:      filepath.ToSlash(rel),
		Operation: op,
		Timestamp: time.Now(),
	})
}

// watchable reports whether a path is a document we track.
func (w *Watcher) watchable(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range w.opts.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// addRecursive adds a directory and its subdirectories to the watch set,
// skipping hidden directories and the index data dir.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Unreadable subtrees are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			slog.Warn("watch_add_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}
