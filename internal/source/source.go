// Package source fetches wanted-item lists from content sources and turns
// them into Wanted items.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/sourcecache"
)

var (
	// ErrNoEpisodes is returned when a show entry lists no episodes to want.
	ErrNoEpisodes = errors.New("show without episodes")
	// ErrNoVersions is returned when neither the entry nor its source enables a version.
	ErrNoVersions = errors.New("no version enabled")
)

const dateLayout = "2006-01-02"

// Episode is one wanted episode of a show.
type Episode struct {
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
	Title   string `json:"title,omitempty"`
	AirDate string `json:"air_date,omitempty"` // YYYY-MM-DD
	Airtime string `json:"airtime,omitempty"`  // HH:MM
}

// WantedItem is one entry of a content-source list. Shows carry their
// episodes; Seasons, when set, limits which of them are wanted.
// Versions maps version names to enabled and replaces the source's
// versions; Version is the single-version form of the same override.
type WantedItem struct {
	IMDBID      string          `json:"imdb_id,omitempty"`
	TMDBID      int64           `json:"tmdb_id,omitempty"`
	MediaType   string          `json:"media_type"`
	Title       string          `json:"title"`
	Year        int             `json:"year,omitempty"`
	ReleaseDate string          `json:"release_date,omitempty"` // YYYY-MM-DD, movies
	Version     string          `json:"version,omitempty"`
	Versions    map[string]bool `json:"versions,omitempty"`
	Seasons     []int           `json:"seasons,omitempty"`
	Episodes    []Episode       `json:"episodes,omitempty"`
	Detail      string          `json:"detail,omitempty"`
}

// IsShow reports whether the entry is a TV show.
func (w WantedItem) IsShow() bool {
	return sourcecache.NormalizeMediaType(w.MediaType) == "tv"
}

// HasIdentifier reports whether the entry has an imdb or tmdb id.
func (w WantedItem) HasIdentifier() bool {
	return strings.TrimSpace(w.IMDBID) != "" || w.TMDBID > 0
}

// wantedSeasons returns the requested seasons, or every season with a listed episode.
func (w WantedItem) wantedSeasons() []int {
	if len(w.Seasons) > 0 {
		return w.Seasons
	}
	var out []int
	for _, ep := range w.Episodes {
		if !slices.Contains(out, ep.Season) {
			out = append(out, ep.Season)
		}
	}
	return out
}

// versionsFor returns the enabled versions of w, stripped of propagation
// markers and deduplicated. defaults apply when the entry names none.
func (w WantedItem) versionsFor(defaults []string) []string {
	var names []string
	switch {
	case len(w.Versions) > 0:
		for name, on := range w.Versions {
			if on {
				names = append(names, name)
			}
		}
		slices.Sort(names)
	case w.Version != "":
		names = []string{w.Version}
	default:
		names = defaults
	}
	var out []string
	for _, name := range names {
		if v := item.StripVersion(name); v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// CacheKey is the content-source cache key of the entry.
func (w WantedItem) CacheKey(source string) sourcecache.Key {
	k := sourcecache.Key{
		IMDBID:    strings.TrimSpace(w.IMDBID),
		TMDBID:    w.TMDBID,
		MediaType: w.MediaType,
		Source:    source,
	}
	if w.IsShow() {
		k.Seasons = w.wantedSeasons()
	}
	return k
}

// Producer yields the current wanted list of one content source.
type Producer interface {
	Fetch(ctx context.Context) ([]WantedItem, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context) ([]WantedItem, error)

func (f ProducerFunc) Fetch(ctx context.Context) ([]WantedItem, error) { return f(ctx) }

// decodeList reads either a bare JSON array or an object with an "items" array.
func decodeList(r io.Reader) ([]WantedItem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read list: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []WantedItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return items, nil
	}
	var wrapped struct {
		Items []WantedItem `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return wrapped.Items, nil
}

func parseDate(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, v, time.Local)
	if err != nil {
		return nil, fmt.Errorf("release date %q: %w", v, err)
	}
	return &t, nil
}

// Items expands w into media items, one per enabled version and movie or
// wanted episode.
func (w WantedItem) Items(source string, versions []string) ([]*item.MediaItem, error) {
	if !w.HasIdentifier() {
		return nil, item.ErrMissingIdentifier
	}
	enabled := w.versionsFor(versions)
	if len(enabled) == 0 {
		return nil, ErrNoVersions
	}
	var out []*item.MediaItem
	for _, version := range enabled {
		items, err := w.items(source, version)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

func (w WantedItem) items(source, version string) ([]*item.MediaItem, error) {
	base := item.MediaItem{
		Title:               w.Title,
		Year:                w.Year,
		Version:             version,
		ContentSource:       source,
		ContentSourceDetail: w.Detail,
	}
	if id := strings.TrimSpace(w.IMDBID); id != "" {
		base.IMDBID = &id
	}
	if w.TMDBID > 0 {
		tmdb := w.TMDBID
		base.TMDBID = &tmdb
	}

	if !w.IsShow() {
		it := base
		it.Type = item.TypeMovie
		date, err := parseDate(w.ReleaseDate)
		if err != nil {
			return nil, err
		}
		it.ReleaseDate = date
		return []*item.MediaItem{&it}, nil
	}

	seasons := w.wantedSeasons()
	var out []*item.MediaItem
	for _, ep := range w.Episodes {
		if !slices.Contains(seasons, ep.Season) {
			continue
		}
		date, err := parseDate(ep.AirDate)
		if err != nil {
			return nil, fmt.Errorf("S%02dE%02d: %w", ep.Season, ep.Episode, err)
		}
		it := base
		it.Type = item.TypeEpisode
		season, episode := ep.Season, ep.Episode
		it.SeasonNumber, it.EpisodeNumber = &season, &episode
		it.EpisodeTitle = ep.Title
		it.ReleaseDate = date
		it.Airtime = ep.Airtime
		out = append(out, &it)
	}
	if len(out) == 0 {
		return nil, ErrNoEpisodes
	}
	return out, nil
}
