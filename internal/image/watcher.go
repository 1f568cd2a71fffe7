// internal/image/watcher.go
package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher mirrors a source image (typically on a network share) into a
// local path and reloads the store whenever the source changes.
//
// The directory is watched, not the file, so editors and copy tools that
// replace the file by rename are seen.
type Watcher struct {
	source string
	local  string
	store  *Store
	settle time.Duration
	log    *slog.Logger

	onReload func(*Image)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithSettle sets the quiet period after the last event before syncing.
func WithSettle(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.settle = d }
}

// WithReloadHook is called after every successful reload.
func WithReloadHook(fn func(*Image)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher validates paths. local may equal source, in which case
// nothing is copied.
func NewWatcher(source, local string, store *Store, opts ...WatcherOption) (*Watcher, error) {
	if source == "" {
		return nil, errors.New("image: source path required")
	}
	if local == "" {
		local = source
	}
	if store == nil {
		return nil, errors.New("image: store required")
	}
	w := &Watcher{
		source: filepath.Clean(source),
		local:  filepath.Clean(local),
		store:  store,
		settle: 500 * time.Millisecond,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Sync copies source to local (if they differ) and reloads the store.
func (w *Watcher) Sync() (*Image, error) {
	if w.local != w.source {
		if err := copyAtomic(w.source, w.local); err != nil {
			return nil, err
		}
		w.log.Info("image: copied", "from", w.source, "to", w.local)
	}

	img, err := w.store.Load(w.local)
	if err != nil {
		return nil, err
	}
	w.log.Info("image: loaded", "path", img.Path, "bytes", len(img.Data), "sha256", img.Short())
	if w.onReload != nil {
		w.onReload(img)
	}
	return img, nil
}

// Run syncs once, then on every settled change to the source until ctx ends.
// A missing source is not fatal; the watcher waits for it to appear.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("image: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.source)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("image: watch %s: %w", dir, err)
	}

	if _, err := w.Sync(); err != nil {
		w.log.Warn("image: initial sync failed", "err", err)
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.source {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// restart the quiet period
			timer.Reset(w.settle)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("image: watch error", "err", err)

		case <-timer.C:
			if _, err := w.Sync(); err != nil {
				w.log.Warn("image: sync failed", "err", err)
			}
		}
	}
}

// copyAtomic copies src into a temp file beside dst and renames it over dst,
// so a reader never sees a half-written image.
func copyAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("image: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".image-*")
	if err != nil {
		return fmt.Errorf("image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("image: copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	return nil
}
