// Package watch follows the tracker files for out-of-process changes
// (git pulls, other dcat invocations) and invokes a callback after each
// burst of writes settles.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/dogcat-dev/dogcat/internal/debug"
)

// debounce absorbs the write/rename bursts produced by an append or a
// compaction rewrite so the callback fires once per logical change.
const debounce = 250 * time.Millisecond

// Watcher follows a .dogcats directory. The directory is watched rather
// than the files because compaction replaces files by rename, which
// silently detaches per-file watches.
type Watcher struct {
	dir      string
	onChange func()
}

// New prepares a watcher over dir invoking onChange after changes to the
// tracker files.
func New(dir string, onChange func()) *Watcher {
	return &Watcher{dir: dir, onChange: onChange}
}

// Run blocks processing filesystem events until the context ends. Watch
// failures are retried with exponential backoff; watching is best-effort
// and never corrupts state, so Run only returns the context's error.
func (w *Watcher) Run(ctx context.Context) error {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	for {
		err := w.watch(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		debug.Warnf("watch interrupted, retrying: %v", err)

		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			return ctx.Err()
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isTrackerFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.onChange)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func isTrackerFile(path string) bool {
	switch filepath.Base(path) {
	case "issues.jsonl", "inbox.jsonl":
		return true
	}
	return false
}
