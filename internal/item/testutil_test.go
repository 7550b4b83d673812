package item

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelq/internal/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := migrations.OpenMemory(context.Background())
	require.NoError(t, err, "open db")
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testClock is a settable time source.
type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*Store, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(setupTestDB(t), WithClock(clock.Now)), clock
}

// ptr is a helper to create pointer to value
func ptr[T any](v T) *T {
	return &v
}

func newMovie(imdb, version string) *MediaItem {
	return &MediaItem{
		Type:        TypeMovie,
		IMDBID:      ptr(imdb),
		Title:       "The Shawshank Redemption",
		Year:        1994,
		ReleaseDate: ptr(time.Date(1994, 10, 14, 0, 0, 0, 0, time.Local)),
		Version:     version,
	}
}

func newEpisode(imdb string, season, episode int, version string) *MediaItem {
	return &MediaItem{
		Type:          TypeEpisode,
		IMDBID:        ptr(imdb),
		Title:         "The Wire",
		Year:          2002,
		SeasonNumber:  ptr(season),
		EpisodeNumber: ptr(episode),
		Airtime:       "21:00",
		Version:       version,
	}
}

func mustAdd(t *testing.T, s *Store, it *MediaItem) *MediaItem {
	t.Helper()
	_, err := s.Add(context.Background(), it)
	require.NoError(t, err)
	return it
}
