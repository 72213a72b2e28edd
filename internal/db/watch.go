package db

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of writes a single commit produces.
const watchDebounce = 150 * time.Millisecond

// Watch signals on the returned channel whenever the database at path (or
// its WAL) is written, including by other processes. The shared-memory
// index is ignored because readers touch it too. The channel is closed
// when ctx is done.
func Watch(ctx context.Context, path string, logger *slog.Logger) (<-chan struct{}, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer w.Close()

		timer := time.NewTimer(watchDebounce)
		timer.Stop()

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !isDatabaseFile(path, ev.Name) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
					continue
				}
				timer.Reset(watchDebounce)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("database watcher error", "err", err)

			case <-timer.C:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}

// isDatabaseFile reports whether name belongs to the database at path.
func isDatabaseFile(path, name string) bool {
	base := filepath.Base(path)
	name = filepath.Base(name)
	return name == base || name == base+"-wal"
}
