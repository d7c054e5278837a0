package interfaces

import (
	"context"
	"time"
)

// ChangeKind classifies a filesystem change event (spec.md §4.9).
type ChangeKind int

const (
	ChangeCreated ChangeKind = iota
	ChangeModified
	ChangeDeleted
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "created"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ChangeEvent is one debounced (kind, path) pair emitted by the watcher.
type ChangeEvent struct {
	Kind ChangeKind
	Path string
	At   time.Time
}

// WatcherStats is the observable state spec.md §4.9 requires: whether the
// watcher is running, and running counters for diagnostics.
type WatcherStats struct {
	Running      bool
	FilesSynced  int64
	BytesRead    int64
	Errors       int64
	RecentEvents []ChangeEvent
}

// Watcher streams filtered, debounced change events into the synchronizer.
type Watcher interface {
	Events() <-chan ChangeEvent
	Start(ctx context.Context) error
	Stop() error
	Stats() WatcherStats
}
