package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/sourcecache"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAdder records added items and rejects repeated identities.
type fakeAdder struct {
	mu    sync.Mutex
	seen  map[item.Identity]bool
	added []*item.MediaItem
	err   error
}

func (f *fakeAdder) AddItem(_ context.Context, it *item.MediaItem) (*item.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.seen == nil {
		f.seen = make(map[item.Identity]bool)
	}
	id := it.Identity()
	if f.seen[id] {
		return nil, item.ErrDuplicateItem
	}
	f.seen[id] = true
	f.added = append(f.added, it)
	return it, nil
}

func (f *fakeAdder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newCache(t *testing.T, c *clock, opts ...sourcecache.Option) *sourcecache.Cache {
	t.Helper()
	opts = append([]sourcecache.Option{
		sourcecache.WithClock(c.now),
		sourcecache.WithRand(func() float64 { return 0.5 }), // 12h expiry
		sourcecache.WithLogger(testLogger()),
	}, opts...)
	cache, err := sourcecache.New(t.TempDir(), opts...)
	require.NoError(t, err)
	return cache
}

func list(items ...WantedItem) Producer {
	return ProducerFunc(func(context.Context) ([]WantedItem, error) { return items, nil })
}

func TestIngester_AddsAndCaches(t *testing.T) {
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := newCache(t, c)
	adder := &fakeAdder{}
	src := Source{Name: "watchlist", Versions: []string{"1080p"}, Producer: list(
		WantedItem{IMDBID: "tt0111161", MediaType: "movie", Title: "The Shawshank Redemption"},
		theWire(),
		WantedItem{MediaType: "movie", Title: "No ids"},
	)}
	in := NewIngester(adder, cache, []Source{src}, testLogger(), WithClock(c.now))
	ctx := context.Background()

	res, err := in.RunSource(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, Result{Source: "watchlist", Fetched: 3, Added: 4, Rejected: 1}, res)
	assert.Equal(t, 2, cache.Len("watchlist"))

	res, err = in.RunSource(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Cached, "fresh entries are skipped")
	assert.Zero(t, res.Added)
	assert.Equal(t, 4, adder.count())

	c.t = c.t.Add(12 * time.Hour)
	res, err = in.RunSource(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Duplicates, "expired entries are offered again and the store dedupes them")
}

func TestIngester_AddsEveryVersion(t *testing.T) {
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	adder := &fakeAdder{}
	src := Source{Name: "watchlist", Versions: []string{"1080p", "2160p"}, Producer: list(
		WantedItem{IMDBID: "tt0111161", MediaType: "movie", Title: "The Shawshank Redemption"},
	)}
	in := NewIngester(adder, newCache(t, c), []Source{src}, testLogger(), WithClock(c.now))

	res, err := in.RunSource(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 2, adder.count())
}

func TestIngester_NewSeasonBypassesCache(t *testing.T) {
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	adder := &fakeAdder{}
	show := theWire()
	show.Seasons = []int{1}
	current := show
	src := Source{Name: "watchlist", Versions: []string{"1080p"}, Producer: ProducerFunc(func(context.Context) ([]WantedItem, error) {
		return []WantedItem{current}, nil
	})}
	in := NewIngester(adder, newCache(t, c), []Source{src}, testLogger(), WithClock(c.now))

	_, err := in.RunSource(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, adder.count())

	current.Seasons = []int{1, 2}
	res, err := in.RunSource(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 2, res.Duplicates)
}

func TestIngester_DisabledCaching(t *testing.T) {
	c := &clock{t: time.Now()}
	adder := &fakeAdder{}
	src := Source{Name: "watchlist", Versions: []string{"1080p"}, Producer: list(
		WantedItem{IMDBID: "tt0111161", MediaType: "movie"},
	)}
	in := NewIngester(adder, newCache(t, c, sourcecache.Disabled(true)), []Source{src}, testLogger())

	_, err := in.RunSource(context.Background(), src)
	require.NoError(t, err)
	res, err := in.RunSource(context.Background(), src)
	require.NoError(t, err)
	assert.Zero(t, res.Cached)
	assert.Equal(t, 1, res.Duplicates)
}

func TestIngester_StoreFailureIsNotCached(t *testing.T) {
	c := &clock{t: time.Now()}
	cache := newCache(t, c)
	adder := &fakeAdder{err: item.ErrDatabaseLocked}
	src := Source{Name: "watchlist", Versions: []string{"1080p"}, Producer: list(
		WantedItem{IMDBID: "tt0111161", MediaType: "movie"},
	)}
	in := NewIngester(adder, cache, []Source{src}, testLogger())

	_, err := in.RunSource(context.Background(), src)
	require.NoError(t, err)
	assert.Zero(t, cache.Len("watchlist"), "retried on the next run")
}

func TestIngester_RunHonoursIntervalsAndIsolatesFailures(t *testing.T) {
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	adder := &fakeAdder{}
	var fetches int
	good := Source{Name: "good", Versions: []string{"1080p"}, Interval: time.Hour, Producer: ProducerFunc(func(context.Context) ([]WantedItem, error) {
		fetches++
		return []WantedItem{{IMDBID: "tt0111161", MediaType: "movie"}}, nil
	})}
	bad := Source{Name: "bad", Versions: []string{"1080p"}, Producer: ProducerFunc(func(context.Context) ([]WantedItem, error) {
		return nil, errors.New("connection refused")
	})}
	in := NewIngester(adder, nil, []Source{bad, good}, testLogger(), WithClock(c.now))
	ctx := context.Background()

	err := in.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source bad")
	assert.Equal(t, 1, fetches)
	assert.Equal(t, 1, adder.count())

	c.t = c.t.Add(30 * time.Minute)
	_ = in.Run(ctx)
	assert.Equal(t, 1, fetches, "not due yet")

	c.t = c.t.Add(30 * time.Minute)
	_ = in.Run(ctx)
	assert.Equal(t, 2, fetches)
}
