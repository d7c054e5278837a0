package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/basic-memory/pkg/interfaces"
)

func waitForEvent(t *testing.T, w *Watcher, timeout time.Duration) interfaces.ChangeEvent {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for a change event")
		return interfaces.ChangeEvent{}
	}
}

func TestStartupScanEmitsExistingMarkdownFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "alpha.md"), []byte("# Alpha\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, err := New(Config{Root: root, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	ev := waitForEvent(t, w, 2*time.Second)
	if ev.Path != "alpha.md" || ev.Kind != interfaces.ChangeModified {
		t.Fatalf("unexpected startup event: %+v", ev)
	}
}

func TestWatcherDebouncesRapidWrites(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "alpha.md")
	if err := os.WriteFile(path, []byte("v1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, err := New(Config{Root: root, Debounce: 150 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	// Drain the startup-scan event for the pre-existing file.
	waitForEvent(t, w, 2*time.Second)

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("rewrite\n"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	ev := waitForEvent(t, w, 2*time.Second)
	if ev.Path != "alpha.md" || ev.Kind != interfaces.ChangeModified {
		t.Fatalf("unexpected coalesced event: %+v", ev)
	}

	select {
	case extra := <-w.Events():
		t.Fatalf("expected the rapid writes to coalesce into one event, got an extra %+v", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherDeletedBeatsModifiedWithinWindow(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "alpha.md")
	if err := os.WriteFile(path, []byte("v1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, err := New(Config{Root: root, Debounce: 150 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	waitForEvent(t, w, 2*time.Second) // startup scan event

	w.scheduleEvent("alpha.md", interfaces.ChangeDeleted)
	w.scheduleEvent("alpha.md", interfaces.ChangeModified)

	ev := waitForEvent(t, w, 2*time.Second)
	if ev.Kind != interfaces.ChangeDeleted {
		t.Fatalf("expected deleted to win over a later modified within the window, got %v", ev.Kind)
	}
}

func TestIgnoredFileNeverEmitsAnEvent(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("skip.md\n"), 0o644); err != nil {
		t.Fatalf("WriteFile .gitignore: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "skip.md"), []byte("ignored\n"), 0o644); err != nil {
		t.Fatalf("WriteFile skip.md: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "keep.md"), []byte("kept\n"), 0o644); err != nil {
		t.Fatalf("WriteFile keep.md: %v", err)
	}

	w, err := New(Config{Root: root, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	ev := waitForEvent(t, w, 2*time.Second)
	if ev.Path != "keep.md" {
		t.Fatalf("expected only keep.md to be scanned at startup, got %+v", ev)
	}

	select {
	case extra := <-w.Events():
		t.Fatalf("expected skip.md to be filtered out, got %+v", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestStatsReportsRunningAndBoundedRingBuffer(t *testing.T) {
	root := t.TempDir()
	w, err := New(Config{Root: root, Debounce: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w.Stats().Running {
		t.Fatalf("expected Running false before Start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.Stats().Running {
		t.Fatalf("expected Running true after Start")
	}

	for i := 0; i < 120; i++ {
		w.scheduleEvent(fmt.Sprintf("synthetic-%d.md", i), interfaces.ChangeModified)
	}
	deadline := time.After(3 * time.Second)
	for {
		if w.Stats().FilesSynced >= 120 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for synthetic events to flush, got %d", w.Stats().FilesSynced)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	stats := w.Stats()
	if stats.Running {
		t.Fatalf("expected Running false after Stop")
	}
	if len(stats.RecentEvents) > ringBufferSize {
		t.Fatalf("expected RecentEvents capped at %d, got %d", ringBufferSize, len(stats.RecentEvents))
	}
}
