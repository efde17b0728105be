package crossdoc

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// eventChannelBuffer is the size of the watch event channel.
const eventChannelBuffer = 64

// WatchEvent signals that a steering document changed on disk.
type WatchEvent struct {
	Path string
	Type DocumentType
}

// Watcher watches steering document files and emits debounced change events
// so callers can re-run cross-document validation.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	pendingMu sync.Mutex
	pending   map[string]struct{}

	events chan WatchEvent
}

// NewWatcher creates a steering document watcher. A zero debounce defaults
// to 500ms.
func NewWatcher(debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		watcher:  fsw,
		logger:   logger,
		debounce: debounce,
		pending:  make(map[string]struct{}),
		events:   make(chan WatchEvent, eventChannelBuffer),
	}, nil
}

// Events returns the channel of document change events.
func (w *Watcher) Events() <-chan WatchEvent {
	return w.events
}

// Add watches the directories containing the given document files.
func (w *Watcher) Add(paths []string) error {
	dirs := make(map[string]struct{})
	for _, path := range paths {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
		w.logger.Debug("Watching directory", "path", dir)
	}
	return nil
}

// Start begins processing file events. The events channel is closed when the
// context is cancelled or the underlying watcher stops.
func (w *Watcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
	w.logger.Info("Steering document watcher started", "debounce", w.debounce)
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if InferType(event.Name) == "" {
				continue
			}
			w.pendingMu.Lock()
			w.pending[event.Name] = struct{}{}
			w.pendingMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// flushPending emits one event per changed document collected since the last
// tick.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	for _, path := range paths {
		select {
		case w.events <- WatchEvent{Path: path, Type: InferType(path)}:
		case <-ctx.Done():
			return
		default:
			w.logger.Warn("Dropping document change event, channel full", "path", path)
		}
	}
}
