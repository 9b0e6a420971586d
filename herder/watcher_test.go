package herder

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherNudgesOnPidfileChange(t *testing.T) {
	j := mockJournal{}
	path := filepath.Join(t.TempDir(), "server.pid")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := TryWatchPidfile(ctx, path, &j)

	// The watcher goroutine races with the write below; give it a moment to
	// install the watch.
	time.Sleep(50 * time.Millisecond)

	if warns := j.OfType("warning"); len(warns) > 0 {
		t.Skipf("pidfile watching unavailable here: %v", warns[0])
	}

	writePidfile(t, path, 42)

	select {
	case <-w.Changed:
	case <-time.After(2 * time.Second):
		t.Error("no nudge after the pidfile was written")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	j := mockJournal{}
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := TryWatchPidfile(ctx, filepath.Join(dir, "server.pid"), &j)
	time.Sleep(50 * time.Millisecond)

	writePidfile(t, filepath.Join(dir, "unrelated.pid"), 1)

	select {
	case <-w.Changed:
		t.Error("nudged by an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}
