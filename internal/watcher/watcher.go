// Package watcher streams filtered, debounced filesystem change events
// into the synchronizer (spec.md §4.9). It recursively watches every
// Markdown-bearing directory under a project root using fsnotify, the way
// the pack's vault-watching services (e.g. the Obsidian cache service)
// translate raw fsnotify events into a higher-level dirty-marker stream,
// adapted here into a single-consumer channel of debounced ChangeEvents.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/basic-memory/internal/ignore"
	"github.com/goliatone/basic-memory/internal/logging"
	"github.com/goliatone/basic-memory/pkg/interfaces"
)

const (
	// DefaultDebounce lies inside the 200-500ms window spec.md §4.9 names
	// for coalescing events on the same path.
	DefaultDebounce = 300 * time.Millisecond
	ringBufferSize  = 100
)

var _ interfaces.Watcher = (*Watcher)(nil)

// Watcher recursively watches root for Markdown file changes, debounces
// them per path, and streams the result on a single-consumer channel
// (spec.md §4.9, §5).
type Watcher struct {
	root      string
	debounce  time.Duration
	filter    *ignore.Filter
	fsWatcher *fsnotify.Watcher
	events    chan interfaces.ChangeEvent
	logger    interfaces.Logger
	now       func() time.Time

	mu       sync.Mutex
	pending  map[string]*pendingEvent
	timers   map[string]*time.Timer
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	statsMu sync.Mutex
	stats   interfaces.WatcherStats
}

type pendingEvent struct {
	kind interfaces.ChangeKind
}

// Config constructs a Watcher.
type Config struct {
	Root           string
	Debounce       time.Duration
	LoggerProvider interfaces.LoggerProvider
}

// New builds a Watcher rooted at cfg.Root. The underlying fsnotify.Watcher
// and directory subscriptions are created lazily in Start.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("watcher: root is required")
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:     cfg.Root,
		debounce: debounce,
		events:   make(chan interfaces.ChangeEvent, 64),
		logger:   logging.WatcherLogger(cfg.LoggerProvider),
		now:      time.Now,
		pending:  make(map[string]*pendingEvent),
		timers:   make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
	}, nil
}

// Events returns the channel the synchronizer drains.
func (w *Watcher) Events() <-chan interfaces.ChangeEvent {
	return w.events
}

// Start performs a full startup scan to catch changes missed while
// offline, subscribes to every non-ignored directory under root, and
// begins dispatching debounced events. Start returns once watches are
// registered; event delivery continues on a background goroutine until
// ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	filter, err := ignore.Load(w.root)
	if err != nil {
		return fmt.Errorf("watcher: load ignore filter: %w", err)
	}
	w.filter = filter

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}
	w.fsWatcher = fsw

	if err := w.watchTree(w.root); err != nil {
		fsw.Close()
		return err
	}

	w.setRunning(true)

	w.wg.Add(1)
	go w.run(ctx)

	if err := w.startupScan(); err != nil {
		w.logger.Warn("startup scan failed", "error", err)
	}

	return nil
}

// Stop tears down the fsnotify subscription and stops the dispatch loop.
// The caller's synchronizer survives independently of this call.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.fsWatcher != nil {
			err = w.fsWatcher.Close()
		}
		w.wg.Wait()
		w.setRunning(false)
	})
	return err
}

// Stats returns a snapshot of the watcher's observable state (spec.md
// §4.9): whether it is running, running counters, and a bounded ring
// buffer of recent events for diagnostics.
func (w *Watcher) Stats() interfaces.WatcherStats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	snapshot := w.stats
	snapshot.RecentEvents = append([]interfaces.ChangeEvent(nil), w.stats.RecentEvents...)
	return snapshot
}

// watchTree registers an fsnotify watch on every non-ignored directory
// under root, recursively. fsnotify is not recursive on its own, so the
// tree is walked once up front and new subdirectories are picked up as
// Create events arrive (mirrored in handleFSEvent).
func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel != "." && w.filter != nil && w.filter.Match(filepath.ToSlash(rel), true) {
			return fs.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watcher: watch %s: %w", path, err)
		}
		return nil
	})
}

// startupScan walks the tree once and enqueues a "modified" event for
// every Markdown file found, so changes missed while the watcher was
// offline are still picked up by the synchronizer (spec.md §4.9).
func (w *Watcher) startupScan() error {
	var files []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if w.filter != nil && w.filter.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return err
	}
	for _, f := range files {
		w.scheduleEvent(f, interfaces.ChangeModified)
	}
	return nil
}

// run drains fsnotify's event and error channels until ctx is cancelled or
// Stop closes stopCh.
func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.recordError()
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// handleFSEvent applies the ignore + extension filters, then schedules a
// debounced dispatch for the affected path (spec.md §4.9 steps 1-2). New
// directories are subscribed to immediately so nested content is covered
// without a restart.
func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
		if ev.Op&fsnotify.Create != 0 {
			if w.filter == nil || !w.filter.Match(rel, true) {
				_ = w.watchTree(ev.Name)
			}
		}
		return
	}

	if filepath.Ext(ev.Name) != ".md" {
		return
	}
	if w.filter != nil && w.filter.Match(rel, false) {
		return
	}

	kind := interfaces.ChangeModified
	switch {
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		kind = interfaces.ChangeDeleted
	case ev.Op&fsnotify.Create != 0:
		kind = interfaces.ChangeCreated
	}

	w.scheduleEvent(rel, kind)
}

// scheduleEvent coalesces events per path within the debounce window; the
// final event's kind wins, with "deleted" always winning over "modified"
// regardless of arrival order within the window (spec.md §4.9 step 2).
func (w *Watcher) scheduleEvent(path string, kind interfaces.ChangeKind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	existing, has := w.pending[path]
	if !has {
		existing = &pendingEvent{}
		w.pending[path] = existing
	}
	existing.kind = mergeKind(existing.kind, kind, has)

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.flush(path) })
}

// mergeKind resolves the "final event wins, but deleted beats modified"
// rule: a later plain modification never downgrades a delete already
// observed in this window.
func mergeKind(prior, incoming interfaces.ChangeKind, hadPrior bool) interfaces.ChangeKind {
	if !hadPrior {
		return incoming
	}
	if prior == interfaces.ChangeDeleted && incoming == interfaces.ChangeModified {
		return interfaces.ChangeDeleted
	}
	return incoming
}

func (w *Watcher) flush(path string) {
	w.mu.Lock()
	ev, ok := w.pending[path]
	if ok {
		delete(w.pending, path)
		delete(w.timers, path)
	}
	w.mu.Unlock()
	if !ok {
		return
	}

	event := interfaces.ChangeEvent{Kind: ev.kind, Path: path, At: w.now()}
	w.recordEvent(event, w.fileSize(path, ev.kind))

	select {
	case w.events <- event:
	case <-w.stopCh:
	}
}

func (w *Watcher) setRunning(running bool) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.Running = running
}

// fileSize reports the on-disk size of a created/modified file for the
// BytesRead diagnostic counter; deleted files have nothing left to read.
func (w *Watcher) fileSize(path string, kind interfaces.ChangeKind) int64 {
	if kind == interfaces.ChangeDeleted {
		return 0
	}
	info, err := os.Stat(filepath.Join(w.root, filepath.FromSlash(path)))
	if err != nil {
		return 0
	}
	return info.Size()
}

func (w *Watcher) recordEvent(ev interfaces.ChangeEvent, bytes int64) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.FilesSynced++
	w.stats.BytesRead += bytes
	w.stats.RecentEvents = append(w.stats.RecentEvents, ev)
	if len(w.stats.RecentEvents) > ringBufferSize {
		w.stats.RecentEvents = w.stats.RecentEvents[len(w.stats.RecentEvents)-ringBufferSize:]
	}
}

func (w *Watcher) recordError() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.Errors++
}
