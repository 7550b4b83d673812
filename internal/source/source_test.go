package source

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelq/internal/item"
)

func theWire() WantedItem {
	return WantedItem{
		IMDBID:    "tt0306414",
		MediaType: "show",
		Title:     "The Wire",
		Year:      2002,
		Episodes: []Episode{
			{Season: 1, Episode: 1, Title: "The Target", AirDate: "2002-06-02", Airtime: "21:00"},
			{Season: 1, Episode: 2, Title: "The Detail", AirDate: "2002-06-09", Airtime: "21:00"},
			{Season: 2, Episode: 1, Title: "Ebb Tide", AirDate: "2003-06-01"},
		},
	}
}

func TestDecodeList(t *testing.T) {
	bare := `[{"imdb_id":"tt0111161","media_type":"movie","title":"The Shawshank Redemption"}]`
	wrapped := `{"items":[{"tmdb_id":278,"media_type":"movie","title":"The Shawshank Redemption"}]}`

	items, err := decodeList(strings.NewReader(bare))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "tt0111161", items[0].IMDBID)

	items, err = decodeList(strings.NewReader("  \n" + wrapped))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(278), items[0].TMDBID)

	_, err = decodeList(strings.NewReader("<html>"))
	assert.Error(t, err)
}

func TestItems_Movie(t *testing.T) {
	w := WantedItem{IMDBID: " tt0111161 ", TMDBID: 278, MediaType: "movie", Title: "The Shawshank Redemption",
		Year: 1994, ReleaseDate: "1994-10-14", Detail: "requested by sam"}
	items, err := w.Items("watchlist", []string{"1080p"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	it := items[0]
	assert.Equal(t, item.TypeMovie, it.Type)
	require.NotNil(t, it.IMDBID)
	assert.Equal(t, "tt0111161", *it.IMDBID)
	require.NotNil(t, it.TMDBID)
	assert.Equal(t, int64(278), *it.TMDBID)
	assert.Equal(t, "1080p", it.Version)
	assert.Equal(t, "watchlist", it.ContentSource)
	assert.Equal(t, "requested by sam", it.ContentSourceDetail)
	require.NotNil(t, it.ReleaseDate)
	assert.Equal(t, time.Date(1994, 10, 14, 0, 0, 0, 0, time.Local), *it.ReleaseDate)
	assert.Nil(t, it.SeasonNumber)
}

func TestItems_EntryVersionWins(t *testing.T) {
	w := WantedItem{TMDBID: 278, MediaType: "movie", Version: "2160p*"}
	items, err := w.Items("watchlist", []string{"1080p"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2160p", items[0].Version)
	assert.Nil(t, items[0].IMDBID)
	assert.Nil(t, items[0].ReleaseDate, "unknown release date")
}

func TestItems_OneRowPerVersion(t *testing.T) {
	w := WantedItem{IMDBID: "tt0111161", MediaType: "movie", Title: "The Shawshank Redemption"}
	items, err := w.Items("watchlist", []string{"1080p", "2160p*", "1080p*"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "1080p", items[0].Version)
	assert.Equal(t, "2160p", items[1].Version)
	assert.NotEqual(t, items[0].Identity(), items[1].Identity())

	shows, err := theWire().Items("watchlist", []string{"720p", "1080p"})
	require.NoError(t, err)
	assert.Len(t, shows, 6)
}

func TestItems_EntryVersionsMap(t *testing.T) {
	w := WantedItem{IMDBID: "tt0111161", MediaType: "movie",
		Versions: map[string]bool{"2160p*": true, "720p": true, "1080p": false}}
	items, err := w.Items("watchlist", []string{"1080p"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "2160p", items[0].Version)
	assert.Equal(t, "720p", items[1].Version)

	w.Versions = map[string]bool{"1080p": false}
	_, err = w.Items("watchlist", []string{"1080p"})
	assert.ErrorIs(t, err, ErrNoVersions)

	_, err = WantedItem{IMDBID: "tt0111161", MediaType: "movie"}.Items("watchlist", nil)
	assert.ErrorIs(t, err, ErrNoVersions)
}

func TestItems_ShowExpandsEpisodes(t *testing.T) {
	items, err := theWire().Items("watchlist", []string{"1080p"})
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, it := range items {
		assert.Equal(t, item.TypeEpisode, it.Type)
		assert.Equal(t, "The Wire", it.Title)
	}
	assert.Equal(t, 1, *items[1].SeasonNumber)
	assert.Equal(t, 2, *items[1].EpisodeNumber)
	assert.Equal(t, "The Detail", items[1].EpisodeTitle)
	assert.Equal(t, "21:00", items[1].Airtime)
	assert.Empty(t, items[2].Airtime)
}

func TestItems_SeasonFilter(t *testing.T) {
	w := theWire()
	w.Seasons = []int{2}
	items, err := w.Items("watchlist", []string{"1080p"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ebb Tide", items[0].EpisodeTitle)

	w.Seasons = []int{5}
	_, err = w.Items("watchlist", []string{"1080p"})
	assert.ErrorIs(t, err, ErrNoEpisodes)
}

func TestItems_Rejections(t *testing.T) {
	_, err := WantedItem{MediaType: "movie", Title: "Nameless"}.Items("s", []string{"1080p"})
	assert.ErrorIs(t, err, item.ErrMissingIdentifier)

	_, err = WantedItem{IMDBID: "tt1", MediaType: "movie", ReleaseDate: "14/10/1994"}.Items("s", []string{"1080p"})
	assert.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	w := theWire()
	k := w.CacheKey("watchlist")
	assert.Equal(t, []int{1, 2}, k.Seasons)
	assert.Equal(t, "watchlist", k.Source)

	w.Seasons = []int{3, 1}
	assert.Equal(t, []int{3, 1}, w.CacheKey("watchlist").Seasons)

	movie := WantedItem{IMDBID: "tt0111161", MediaType: "movie", Seasons: []int{1}}
	assert.Empty(t, movie.CacheKey("watchlist").Seasons)
}
