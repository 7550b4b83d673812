// Package notwanted keeps the persistent sets of torrent hashes and URLs
// that must never be submitted to the debrid backend again.
package notwanted

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/vmunix/reelq/internal/fsutil"
	"github.com/vmunix/reelq/internal/item"
)

const (
	hashesFile = "not_wanted_hashes.json"
	urlsFile   = "not_wanted_urls.json"
	lockFile   = "not_wanted.lock"
)

// Registry is the Not-Wanted registry. Reads are served from memory; every
// write reloads both files under an advisory file lock, applies the change
// and writes the result back atomically.
type Registry struct {
	dir    string
	lock   *flock.Flock
	logger *slog.Logger

	mu     sync.RWMutex
	hashes map[string]struct{}
	urls   map[string]struct{}
}

// Open loads the registry from dir, creating the directory if needed.
func Open(dir string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create not-wanted dir: %w", err)
	}
	r := &Registry{
		dir:    dir,
		lock:   flock.New(filepath.Join(dir, lockFile)),
		logger: logger.With("component", "notwanted"),
	}
	r.hashes = r.load(hashesFile)
	r.urls = r.load(urlsFile)
	return r, nil
}

func normalizeHash(h string) string { return item.NormalizeHash(h) }

// ContainsHash reports whether the info hash is not wanted.
func (r *Registry) ContainsHash(hash string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.hashes[normalizeHash(hash)]
	return ok
}

// ContainsURL reports whether the torrent URL is not wanted.
func (r *Registry) ContainsURL(url string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.urls[strings.TrimSpace(url)]
	return ok
}

// Rejects reports whether either the hash or the url is listed. Empty values never match.
func (r *Registry) Rejects(hash, url string) bool {
	return (hash != "" && r.ContainsHash(hash)) || (url != "" && r.ContainsURL(url))
}

// AddHash marks an info hash as not wanted.
func (r *Registry) AddHash(hash string) error {
	hash = normalizeHash(hash)
	if hash == "" {
		return nil
	}
	return r.modify(func(hashes, _ map[string]struct{}) { hashes[hash] = struct{}{} })
}

// AddURL marks a torrent URL as not wanted.
func (r *Registry) AddURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	return r.modify(func(_, urls map[string]struct{}) { urls[url] = struct{}{} })
}

// Remove drops value from both sets.
func (r *Registry) Remove(value string) error {
	return r.modify(func(hashes, urls map[string]struct{}) {
		delete(hashes, normalizeHash(value))
		delete(urls, strings.TrimSpace(value))
	})
}

// PurgeAll empties both sets.
func (r *Registry) PurgeAll() error {
	return r.modify(func(hashes, urls map[string]struct{}) {
		clear(hashes)
		clear(urls)
	})
}

// Hashes returns the listed hashes in sorted order.
func (r *Registry) Hashes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.hashes)
}

// URLs returns the listed URLs in sorted order.
func (r *Registry) URLs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.urls)
}

// Counts returns the size of each set.
func (r *Registry) Counts() (hashes, urls int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hashes), len(r.urls)
}

func (r *Registry) modify(fn func(hashes, urls map[string]struct{})) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lock.Lock(); err != nil {
		return fmt.Errorf("lock not-wanted registry: %w", err)
	}
	defer func() {
		if err := r.lock.Unlock(); err != nil {
			r.logger.Warn("failed to release not-wanted lock", "error", err)
		}
	}()

	hashes := r.load(hashesFile)
	urls := r.load(urlsFile)
	fn(hashes, urls)

	if err := r.save(hashesFile, hashes); err != nil {
		return err
	}
	if err := r.save(urlsFile, urls); err != nil {
		return err
	}
	r.hashes, r.urls = hashes, urls
	return nil
}

// load reads one set. Missing files are empty; unreadable or corrupt files
// are logged and treated as empty.
func (r *Registry) load(name string) map[string]struct{} {
	set := make(map[string]struct{})
	path := filepath.Join(r.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("failed to read not-wanted file", "path", path, "error", err)
		}
		return set
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		r.logger.Warn("corrupt not-wanted file, starting empty", "path", path, "error", err)
		return set
	}
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func (r *Registry) save(name string, set map[string]struct{}) error {
	data, err := json.MarshalIndent(sortedKeys(set), "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return fsutil.WriteFileAtomic(filepath.Join(r.dir, name), data)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
