package herder

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watcher nudges the monitor loop when the pidfile changes, so a reload or
// death is noticed ahead of the next poll. It is purely a latency
// improvement; the poll remains the source of truth.
type Watcher struct {
	// Changed receives a nudge whenever the pidfile is touched. The channel
	// is never closed and drops nudges the loop hasn't consumed yet.
	Changed chan struct{}

	w    *fsnotify.Watcher
	j    Journaler
	path string
}

// TryWatchPidfile attempts to watch the pidfile asynchronously, but it will
// log into the journaler if, for some reason, it fails to watch. The monitor
// loop works unaided in that case.
func TryWatchPidfile(ctx context.Context, path string, j Journaler) *Watcher {
	w := &Watcher{
		Changed: make(chan struct{}, 1),
		j:       j,
		path:    path,
	}

	go func() {
		if err := w.init(); err != nil {
			j.Write(&EventWarning{
				Component: "watcher",
				Error:     fmt.Sprintf("not watching pidfile because: %v", err),
			})
			return
		}

		w.watch(ctx)
	}()

	return w
}

func (w *Watcher) init() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}

	// Watch the directory, not the file: the pidfile is rewritten and
	// renamed around, and a watch on the file itself would follow the old
	// inode into the void.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return errors.Wrap(err, "failed to watch pidfile dir")
	}

	w.w = watcher
	return nil
}

func (w *Watcher) watch(ctx context.Context) {
	defer w.w.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-w.w.Errors:
			w.j.Write(&EventWarning{
				Component: "watcher",
				Error:     "inotify error: " + err.Error(),
			})

		case evt := <-w.w.Events:
			if evt.Name != w.path {
				continue
			}

			select {
			case w.Changed <- struct{}{}:
			default:
				// A nudge is already pending.
			}
		}
	}
}
