package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/pkg/release"
)

// Watcher is a filesystem library: an index of video files under a set of
// roots, kept current by periodic rescans, fsnotify events and webhook
// pushes.
type Watcher struct {
	roots []string
	log   *slog.Logger

	mu    sync.RWMutex
	index map[string]string // lower-case base name -> full path
}

// NewWatcher creates a watcher over roots. Call Rescan or Run to fill the index.
func NewWatcher(roots []string, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	clean := make([]string, 0, len(roots))
	for _, r := range roots {
		if r != "" {
			clean = append(clean, filepath.Clean(r))
		}
	}
	return &Watcher{
		roots: clean,
		log:   log.With("component", "library"),
		index: make(map[string]string),
	}
}

// Len returns the number of indexed files.
func (w *Watcher) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.index)
}

// Rescan walks every root and replaces the index.
func (w *Watcher) Rescan(ctx context.Context) (int, error) {
	index := make(map[string]string)
	for _, root := range w.roots {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if !d.IsDir() && release.IsVideo(p) {
				index[fileKey(p)] = p
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("scan %s: %w", root, err)
		}
	}

	w.mu.Lock()
	w.index = index
	w.mu.Unlock()
	w.log.Debug("library rescanned", "files", len(index))
	return len(index), nil
}

// Notify records a file reported by a library webhook.
func (w *Watcher) Notify(p string) error {
	p = filepath.Clean(p)
	if !w.inRoots(p) {
		return fmt.Errorf("notify %s: %w", p, ErrOutsideLibrary)
	}
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("notify %s: %w", p, err)
	}
	if info.IsDir() {
		_, err := w.indexTree(p)
		return err
	}
	w.add(p)
	return nil
}

// ConfirmCollected looks for the item's filled_by_file in the library.
func (w *Watcher) ConfirmCollected(_ context.Context, it item.MediaItem) (Confirmation, error) {
	file := item.Deref(it.FilledByFile)
	if file == "" {
		return Confirmation{}, nil
	}
	key := fileKey(file)

	w.mu.RLock()
	loc, ok := w.index[key]
	w.mu.RUnlock()

	if ok {
		if _, err := os.Lstat(loc); err != nil {
			w.remove(loc)
			ok = false
		}
	}
	if !ok {
		// Files may appear between scans; probe the roots directly.
		for _, root := range w.roots {
			candidate := filepath.Join(root, filepath.Base(file))
			if _, err := os.Lstat(candidate); err == nil {
				w.add(candidate)
				loc, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return Confirmation{}, nil
	}
	return Confirmation{Collected: true, Location: loc, OriginalPath: resolve(loc)}, nil
}

// RemoveFile deletes a library file replaced by an upgrade. A file that is
// already gone is not an error.
func (w *Watcher) RemoveFile(_ context.Context, title, p, episodeTitle string) error {
	if p == "" {
		return nil
	}
	p = filepath.Clean(p)
	if !w.inRoots(p) {
		return fmt.Errorf("remove %s: %w", p, ErrOutsideLibrary)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	w.remove(p)
	w.log.Info("library file removed", "title", title, "episode_title", episodeTitle, "path", p)
	return nil
}

// Run watches the roots with fsnotify until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	for _, root := range w.roots {
		w.watchTree(fsw, root)
	}
	if _, err := w.Rescan(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.watchTree(fsw, ev.Name)
			_, _ = w.indexTree(ev.Name)
			return
		}
		if release.IsVideo(ev.Name) {
			w.add(ev.Name)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.remove(ev.Name)
	}
}

func (w *Watcher) watchTree(fsw *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(p); err != nil {
				w.log.Warn("cannot watch directory", "path", p, "error", err)
			}
		}
		return nil
	})
}

func (w *Watcher) indexTree(root string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && release.IsVideo(p) {
			w.add(p)
			n++
		}
		return nil
	})
	return n, err
}

func (w *Watcher) add(p string) {
	w.mu.Lock()
	w.index[fileKey(p)] = p
	w.mu.Unlock()
}

func (w *Watcher) remove(p string) {
	key := fileKey(p)
	w.mu.Lock()
	if w.index[key] == p {
		delete(w.index, key)
	}
	w.mu.Unlock()
}

func (w *Watcher) inRoots(p string) bool {
	for _, root := range w.roots {
		if within(root, p) {
			return true
		}
	}
	return false
}
