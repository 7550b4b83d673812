package queue

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelq/internal/debrid"
	"github.com/vmunix/reelq/internal/events"
	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/library"
	"github.com/vmunix/reelq/internal/migrations"
	"github.com/vmunix/reelq/internal/notwanted"
	"github.com/vmunix/reelq/internal/scrape"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := migrations.OpenMemory(context.Background())
	require.NoError(t, err, "open db")
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testClock is a settable time source shared by the store and the manager.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func ptr[T any](v T) *T { return &v }

func hash(c byte) string { return strings.Repeat(string(c), 40) }

func magnet(h string) string { return "magnet:?xt=urn:btih:" + h + "&dn=release" }

// fakeScraper answers every scrape with fn, or with nothing.
type fakeScraper struct {
	mu    sync.Mutex
	fn    func(it item.MediaItem, opts scrape.Options) []item.Candidate
	err   error
	calls []scrape.Options
}

func (s *fakeScraper) Scrape(_ context.Context, it item.MediaItem, opts scrape.Options) (scrape.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, opts)
	if s.err != nil {
		return scrape.Result{}, s.err
	}
	if s.fn == nil {
		return scrape.Result{}, nil
	}
	return scrape.Result{Candidates: s.fn(it, opts)}, nil
}

// returns makes every scrape yield cands.
func (s *fakeScraper) returns(cands ...item.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = func(item.MediaItem, scrape.Options) []item.Candidate {
		return append([]item.Candidate(nil), cands...)
	}
}

func (s *fakeScraper) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeTorrent struct {
	id     string
	hash   string
	status string
	files  []debrid.TorrentFile
}

// fakeDebrid serves torrents registered with offer. Links it does not
// know fail as dead torrents.
type fakeDebrid struct {
	mu       sync.Mutex
	torrents map[string]*fakeTorrent // by link
	uncached map[string]bool
	addErr   error
	active   int
	limit    int
	added    []string
	removed  []string
	opts     []debrid.AddOptions
}

func newFakeDebrid() *fakeDebrid {
	return &fakeDebrid{torrents: make(map[string]*fakeTorrent), uncached: make(map[string]bool)}
}

// offer registers a downloaded torrent for link holding files.
func (d *fakeDebrid) offer(link, id string, files ...string) *fakeTorrent {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := &fakeTorrent{id: id, status: debrid.StatusDownloaded}
	for i, f := range files {
		t.files = append(t.files, debrid.TorrentFile{ID: i + 1, Path: "/" + f, Size: int64(1+i) << 30, Selected: true})
	}
	d.torrents[link] = t
	return t
}

func (d *fakeDebrid) AddTorrent(_ context.Context, link string, opts debrid.AddOptions) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts = append(d.opts, opts)
	if d.addErr != nil {
		return "", d.addErr
	}
	if d.uncached[link] && !opts.AllowUncached {
		return "", debrid.ErrUncached
	}
	t, ok := d.torrents[link]
	if !ok {
		return "", fmt.Errorf("%w: dead magnet", debrid.ErrTorrentFailed)
	}
	d.added = append(d.added, t.id)
	return t.id, nil
}

func (d *fakeDebrid) TorrentInfo(_ context.Context, id string) (*debrid.TorrentInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.removed {
		if r == id {
			return nil, debrid.ErrNotFound
		}
	}
	for _, t := range d.torrents {
		if t.id == id {
			return &debrid.TorrentInfo{ID: t.id, Hash: t.hash, Status: t.status, Files: append([]debrid.TorrentFile(nil), t.files...)}, nil
		}
	}
	return nil, debrid.ErrNotFound
}

func (d *fakeDebrid) ActiveDownloads(context.Context) (int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active, d.limit, nil
}

func (d *fakeDebrid) RemoveTorrent(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed = append(d.removed, id)
	return nil
}

func (d *fakeDebrid) removedIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.removed...)
}

// fakeLibrary confirms items whose filled file has been placed with land.
type fakeLibrary struct {
	mu      sync.Mutex
	files   map[string]string // file name -> library location
	removed []string
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{files: make(map[string]string)}
}

func (l *fakeLibrary) land(file string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	loc := "/library/" + file
	l.files[file] = loc
	return loc
}

func (l *fakeLibrary) ConfirmCollected(_ context.Context, it item.MediaItem) (library.Confirmation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	loc, ok := l.files[item.Deref(it.FilledByFile)]
	if !ok {
		return library.Confirmation{}, nil
	}
	return library.Confirmation{Collected: true, Location: loc, OriginalPath: "/mnt/debrid/" + item.Deref(it.FilledByFile)}, nil
}

func (l *fakeLibrary) RemoveFile(_ context.Context, _, p, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removed = append(l.removed, p)
	return nil
}

// traceRecorder keeps the states each item entered, in order.
type traceRecorder struct {
	mu     sync.Mutex
	states map[int64][]item.State
}

func (r *traceRecorder) record(e item.TransitionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[e.ItemID] = append(r.states[e.ItemID], e.To)
}

func (r *traceRecorder) of(id int64) []item.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]item.State(nil), r.states[id]...)
}

type testEnv struct {
	m       *Manager
	store   *item.Store
	clock   *testClock
	scraper *fakeScraper
	debrid  *fakeDebrid
	library *fakeLibrary
	nw      *notwanted.Registry
	trace   *traceRecorder
}

// newTestEnv builds a manager over an in-memory store. The clock starts
// at 2024-03-01 12:00 local time.
func newTestEnv(t *testing.T, tune ...func(*Settings)) *testEnv {
	t.Helper()
	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)}
	store := item.NewStore(setupTestDB(t), item.WithClock(clock.Now))
	nw, err := notwanted.Open(t.TempDir(), testLogger())
	require.NoError(t, err)

	trace := &traceRecorder{states: make(map[int64][]item.State)}
	store.OnTransition(trace.record)

	settings := DefaultSettings()
	for _, fn := range tune {
		fn(&settings)
	}
	env := &testEnv{
		store:   store,
		clock:   clock,
		scraper: &fakeScraper{},
		debrid:  newFakeDebrid(),
		library: newFakeLibrary(),
		nw:      nw,
		trace:   trace,
	}
	env.m = NewManager(Deps{
		Store:     store,
		Bus:       events.NewBus(nil, testLogger()),
		NotWanted: nw,
		Scraper:   env.scraper,
		Debrid:    env.debrid,
		Library:   env.library,
		Settings:  settings,
		Logger:    testLogger(),
		Clock:     clock.Now,
	})
	return env
}

// add stores it and reloads the queues.
func (e *testEnv) add(t *testing.T, it *item.MediaItem) *item.MediaItem {
	t.Helper()
	ctx := context.Background()
	_, err := e.store.Add(ctx, it)
	require.NoError(t, err)
	require.NoError(t, e.m.Update(ctx))
	return e.get(t, it.ID)
}

func (e *testEnv) get(t *testing.T, id int64) *item.MediaItem {
	t.Helper()
	it, err := e.store.Get(context.Background(), id)
	require.NoError(t, err)
	return it
}

// process runs one Process pass of the named queue.
func (e *testEnv) process(t *testing.T, name string) {
	t.Helper()
	q, ok := e.m.Queue(name)
	require.True(t, ok, "queue %s", name)
	require.NoError(t, q.Process(context.Background(), e.m))
}

// holds reports whether the named queue contains id.
func (e *testEnv) holds(t *testing.T, name string, id int64) bool {
	t.Helper()
	q, ok := e.m.Queue(name)
	require.True(t, ok, "queue %s", name)
	for _, it := range q.Contents() {
		if it.ID == id {
			return true
		}
	}
	return false
}

func newMovie(imdb string) *item.MediaItem {
	return &item.MediaItem{
		Type:        item.TypeMovie,
		IMDBID:      ptr(imdb),
		Title:       "The Shawshank Redemption",
		Year:        1994,
		ReleaseDate: ptr(time.Date(1994, 10, 14, 0, 0, 0, 0, time.Local)),
		Version:     "1080p",
	}
}

func newEpisode(imdb string, season, episode int) *item.MediaItem {
	return &item.MediaItem{
		Type:          item.TypeEpisode,
		IMDBID:        ptr(imdb),
		Title:         "The Wire",
		Year:          2002,
		ReleaseDate:   ptr(time.Date(2002, 6, 2, 0, 0, 0, 0, time.Local)),
		Airtime:       "21:00",
		SeasonNumber:  ptr(season),
		EpisodeNumber: ptr(episode),
		Version:       "1080p",
	}
}
