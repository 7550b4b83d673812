package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/sourcecache"
)

// DefaultInterval is how often a source is fetched when none is configured.
const DefaultInterval = 15 * time.Minute

// Adder inserts new Wanted items. Implemented by queue.Manager.
type Adder interface {
	AddItem(ctx context.Context, it *item.MediaItem) (*item.MediaItem, error)
}

// Source is one configured content source.
type Source struct {
	Name     string
	Versions []string // versions its items are wanted in
	Interval time.Duration
	Producer Producer
}

// Result counts the outcome of one source run.
type Result struct {
	Source     string
	Fetched    int
	Cached     int // skipped, still fresh in the content-source cache
	Added      int
	Duplicates int
	Rejected   int
}

// Ingester fetches every due source and adds the new entries as Wanted items.
type Ingester struct {
	adder   Adder
	cache   *sourcecache.Cache
	sources []Source
	log     *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	lastRun map[string]time.Time
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithClock overrides the time source used for source intervals.
func WithClock(now func() time.Time) IngesterOption {
	return func(in *Ingester) { in.now = now }
}

// NewIngester creates an ingester over sources.
func NewIngester(adder Adder, cache *sourcecache.Cache, sources []Source, log *slog.Logger, opts ...IngesterOption) *Ingester {
	if log == nil {
		log = slog.Default()
	}
	in := &Ingester{
		adder:   adder,
		cache:   cache,
		sources: sources,
		log:     log.With("component", "source"),
		now:     time.Now,
		lastRun: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run processes every source whose interval has elapsed. A failing source
// does not stop the others; their errors are joined.
func (in *Ingester) Run(ctx context.Context) error {
	var errs []error
	for _, src := range in.sources {
		if ctx.Err() != nil {
			break
		}
		if !in.due(src) {
			continue
		}
		if _, err := in.RunSource(ctx, src); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (in *Ingester) due(src Source) bool {
	interval := src.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	last, ok := in.lastRun[src.Name]
	return !ok || in.now().Sub(last) >= interval
}

// RunSource fetches src and adds its entries regardless of its interval.
func (in *Ingester) RunSource(ctx context.Context, src Source) (Result, error) {
	in.mu.Lock()
	in.lastRun[src.Name] = in.now()
	in.mu.Unlock()

	res := Result{Source: src.Name}
	wanted, err := src.Producer.Fetch(ctx)
	if err != nil {
		in.log.Warn("content source fetch failed", "source", src.Name, "error", err)
		return res, fmt.Errorf("source %s: %w", src.Name, err)
	}
	res.Fetched = len(wanted)

	for _, w := range wanted {
		if ctx.Err() != nil {
			break
		}
		if !w.HasIdentifier() {
			res.Rejected++
			in.log.Warn("content source entry rejected", "source", src.Name, "title", w.Title, "error", item.ErrMissingIdentifier)
			continue
		}
		key := w.CacheKey(src.Name)
		if in.cache != nil && !in.cache.ShouldProcess(key) {
			res.Cached++
			continue
		}
		if in.ingest(ctx, src, w, &res) && in.cache != nil {
			in.cache.Record(key)
		}
	}

	if in.cache != nil {
		if err := in.cache.Save(src.Name); err != nil {
			in.log.Warn("save content source cache failed", "source", src.Name, "error", err)
		}
	}
	in.log.Info("content source processed", "source", src.Name,
		"fetched", res.Fetched, "cached", res.Cached, "added", res.Added,
		"duplicates", res.Duplicates, "rejected", res.Rejected)
	return res, nil
}

// ingest adds the items of w. It reports whether w is settled and can be cached.
func (in *Ingester) ingest(ctx context.Context, src Source, w WantedItem, res *Result) bool {
	items, err := w.Items(src.Name, src.Versions)
	if err != nil {
		res.Rejected++
		in.log.Warn("content source entry rejected", "source", src.Name, "title", w.Title, "error", err)
		return false
	}
	settled := true
	for _, it := range items {
		_, err := in.adder.AddItem(ctx, it)
		switch {
		case err == nil:
			res.Added++
		case errors.Is(err, item.ErrDuplicateItem):
			res.Duplicates++
			in.log.Debug("item already known", "source", src.Name, "title", it.DisplayName())
		case errors.Is(err, item.ErrMissingIdentifier), errors.Is(err, item.ErrInvalidItem):
			res.Rejected++
			in.log.Warn("content source item rejected", "source", src.Name, "title", it.DisplayName(), "error", err)
		default:
			settled = false
			in.log.Warn("add item failed", "source", src.Name, "title", it.DisplayName(), "error", err)
		}
	}
	return settled
}
