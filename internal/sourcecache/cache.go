// Package sourcecache remembers which content-source entries have already
// been ingested so producers can skip them until a randomized expiry passes.
package sourcecache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vmunix/reelq/internal/fsutil"
)

const (
	baseExpiryHours   = 12.0
	expiryJitterHours = 6.0
	minExpiryHours    = 1.0
)

// Key identifies one wanted entry of a content source.
type Key struct {
	IMDBID    string
	TMDBID    int64
	MediaType string
	Seasons   []int
	Source    string
}

// StoredItem is the item data kept alongside an entry.
type StoredItem struct {
	IMDBID    string `json:"imdb_id,omitempty"`
	TMDBID    int64  `json:"tmdb_id,omitempty"`
	MediaType string `json:"media_type"`
	Seasons   []int  `json:"seasons,omitempty"`
}

// Entry is one cached record.
type Entry struct {
	Timestamp      time.Time  `json:"timestamp"`
	ExpiryHours    float64    `json:"expiry_hours"`
	Fingerprint    string     `json:"fingerprint"`
	StoredItemData StoredItem `json:"stored_item_data"`
}

// NormalizeMediaType folds the show aliases onto "tv".
func NormalizeMediaType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "tv", "series", "show", "episode":
		return "tv"
	default:
		return "movie"
	}
}

func sortedSeasons(seasons []int) []int {
	out := slices.Clone(seasons)
	slices.Sort(out)
	return slices.Compact(out)
}

// Fingerprint returns the hex SHA-256 cache key of k.
func Fingerprint(k Key) string {
	id := k.IMDBID
	if id == "" {
		id = "tmdb:" + strconv.FormatInt(k.TMDBID, 10)
	}
	seasons := sortedSeasons(k.Seasons)
	parts := make([]string, len(seasons))
	for i, s := range seasons {
		parts[i] = strconv.Itoa(s)
	}
	sum := sha256.Sum256([]byte(id + "|" + NormalizeMediaType(k.MediaType) + "|" + strings.Join(parts, ",") + "|" + k.Source))
	return hex.EncodeToString(sum[:])
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// WithRand overrides the jitter source. It must return values in [0, 1).
func WithRand(f func() float64) Option { return func(c *Cache) { c.rand = f } }

// Disabled makes every check report that the entry should be processed.
func Disabled(disabled bool) Option { return func(c *Cache) { c.disabled = disabled } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Cache) { c.logger = l } }

// Cache holds one JSON file per content source.
type Cache struct {
	dir      string
	now      func() time.Time
	rand     func() float64
	disabled bool
	logger   *slog.Logger

	mu      sync.Mutex
	sources map[string]map[string]Entry
}

// New returns a cache rooted at dir.
func New(dir string, opts ...Option) (*Cache, error) {
	c := &Cache{
		dir:     dir,
		now:     time.Now,
		rand:    rand.Float64,
		logger:  slog.Default(),
		sources: make(map[string]map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "sourcecache")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return c, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (c *Cache) path(source string) string {
	return filepath.Join(c.dir, "content_source_"+unsafeChars.ReplaceAllString(source, "_")+"_cache.json")
}

// entries returns the loaded map for source. Caller holds mu.
func (c *Cache) entries(source string) map[string]Entry {
	if m, ok := c.sources[source]; ok {
		return m
	}
	m := make(map[string]Entry)
	path := c.path(source)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		c.logger.Warn("failed to read content source cache", "path", path, "error", err)
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			c.logger.Warn("corrupt content source cache, starting empty", "path", path, "error", err)
			m = make(map[string]Entry)
		}
	}
	c.sources[source] = m
	return m
}

// ShouldProcess reports whether the entry must be ingested again.
func (c *Cache) ShouldProcess(k Key) bool {
	if c.disabled {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries(k.Source)[Fingerprint(k)]
	if !ok || e.Timestamp.IsZero() || e.ExpiryHours <= 0 {
		return true
	}
	expiry := time.Duration(e.ExpiryHours * float64(time.Hour))
	if c.now().Sub(e.Timestamp) >= expiry {
		return true
	}
	if NormalizeMediaType(k.MediaType) == "tv" && !slices.Equal(sortedSeasons(k.Seasons), sortedSeasons(e.StoredItemData.Seasons)) {
		return true
	}
	return false
}

// Record stores a fresh entry for k with a randomized expiry.
func (c *Cache) Record(k Key) Entry {
	expiry := baseExpiryHours + (c.rand()*2-1)*expiryJitterHours
	if expiry < minExpiryHours {
		expiry = minExpiryHours
	}
	e := Entry{
		Timestamp:   c.now().UTC(),
		ExpiryHours: expiry,
		Fingerprint: Fingerprint(k),
		StoredItemData: StoredItem{
			IMDBID:    k.IMDBID,
			TMDBID:    k.TMDBID,
			MediaType: NormalizeMediaType(k.MediaType),
			Seasons:   sortedSeasons(k.Seasons),
		},
	}
	c.mu.Lock()
	c.entries(k.Source)[e.Fingerprint] = e
	c.mu.Unlock()
	return e
}

// Save writes the cache of one source to disk.
func (c *Cache) Save(source string) error {
	c.mu.Lock()
	data, err := json.MarshalIndent(c.entries(source), "", "  ")
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode content source cache: %w", err)
	}
	return fsutil.WriteFileAtomic(c.path(source), data)
}

// Len returns the number of entries cached for source.
func (c *Cache) Len(source string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries(source))
}

// Clear drops every entry of source from memory and disk.
func (c *Cache) Clear(source string) error {
	c.mu.Lock()
	c.sources[source] = make(map[string]Entry)
	c.mu.Unlock()
	if err := os.Remove(c.path(source)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove content source cache: %w", err)
	}
	return nil
}
