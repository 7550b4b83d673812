// Package item persists media items and their lifecycle state.
//
// The Store is the single writer for the media_items table. Every mutation
// runs in a transaction and state changes go through Transition so the
// invariants on filled_by and upgrading_from fields hold on every path.
package item

import (
	"strings"
	"time"
)

// MediaType distinguishes movies from episodes.
type MediaType string

const (
	TypeMovie   MediaType = "movie"
	TypeEpisode MediaType = "episode"
)

// Valid reports whether t is a known media type.
func (t MediaType) Valid() bool {
	return t == TypeMovie || t == TypeEpisode
}

// MediaItem is one version of one movie or episode.
type MediaItem struct {
	ID     int64     `json:"id"`
	Type   MediaType `json:"type"`
	IMDBID *string   `json:"imdb_id,omitempty"`
	TMDBID *int64    `json:"tmdb_id,omitempty"`

	Title       string     `json:"title"`
	Year        int        `json:"year,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"` // nil means unknown
	Airtime     string     `json:"airtime,omitempty"`      // HH:MM, episodes only

	SeasonNumber  *int   `json:"season_number,omitempty"`
	EpisodeNumber *int   `json:"episode_number,omitempty"`
	EpisodeTitle  string `json:"episode_title,omitempty"`

	Version string `json:"version"`
	State   State  `json:"state"`

	FilledByMagnet    *string `json:"filled_by_magnet,omitempty"`
	FilledByFile      *string `json:"filled_by_file,omitempty"`
	FilledByTitle     *string `json:"filled_by_title,omitempty"`
	FilledByTorrentID *string `json:"filled_by_torrent_id,omitempty"`

	OriginalScrapedTorrentTitle  *string `json:"original_scraped_torrent_title,omitempty"`
	RescrapeOriginalTorrentTitle *string `json:"rescrape_original_torrent_title,omitempty"`

	UpgradingFrom          *string `json:"upgrading_from,omitempty"`
	UpgradingFromTorrentID *string `json:"upgrading_from_torrent_id,omitempty"`
	UpgradingFromVersion   *string `json:"upgrading_from_version,omitempty"`

	LocationOnDisk         *string `json:"location_on_disk,omitempty"`
	OriginalPathForSymlink *string `json:"original_path_for_symlink,omitempty"`

	ScrapeResults []Candidate `json:"scrape_results,omitempty"`

	AddedAt             time.Time  `json:"added_at"`
	LastUpdated         time.Time  `json:"last_updated"`
	StateEnteredAt      time.Time  `json:"state_entered_at"`
	CollectedAt         *time.Time `json:"collected_at,omitempty"`
	OriginalCollectedAt *time.Time `json:"original_collected_at,omitempty"`
	MetadataUpdated     *time.Time `json:"metadata_updated,omitempty"`
	BlacklistedDate     *time.Time `json:"blacklisted_date,omitempty"`
	LastUpgradeCheck    *time.Time `json:"last_upgrade_check,omitempty"`

	WakeCount    int `json:"wake_count"`
	UpgradeCount int `json:"upgrade_count"`

	FallBackToSingleScraper bool `json:"fall_back_to_single_scraper"`
	DisableNotWantedCheck   bool `json:"disable_not_wanted_check"`
	EarlyRelease            bool `json:"early_release"`
	ForcePriority           bool `json:"force_priority"`
	Upgraded                bool `json:"upgraded"`

	ContentSource       string `json:"content_source,omitempty"`
	ContentSourceDetail string `json:"content_source_detail,omitempty"`
}

// Identity is the uniqueness key of a media item row.
type Identity struct {
	ExternalID string // imdb id, or "tmdb:<id>" when only tmdb is known
	Type       MediaType
	Season     int // -1 for movies
	Episode    int // -1 for movies
	Version    string
}

// Identity returns the uniqueness key of the item.
func (m *MediaItem) Identity() Identity {
	id := Identity{Type: m.Type, Season: -1, Episode: -1, Version: StripVersion(m.Version)}
	switch {
	case m.IMDBID != nil && *m.IMDBID != "":
		id.ExternalID = *m.IMDBID
	case m.TMDBID != nil:
		id.ExternalID = "tmdb:" + formatInt(*m.TMDBID)
	}
	if m.SeasonNumber != nil {
		id.Season = *m.SeasonNumber
	}
	if m.EpisodeNumber != nil {
		id.Episode = *m.EpisodeNumber
	}
	return id
}

// IsEpisode reports whether the item is a TV episode.
func (m *MediaItem) IsEpisode() bool { return m.Type == TypeEpisode }

// Season returns the season number or -1.
func (m *MediaItem) Season() int {
	if m.SeasonNumber == nil {
		return -1
	}
	return *m.SeasonNumber
}

// Episode returns the episode number or -1.
func (m *MediaItem) Episode() int {
	if m.EpisodeNumber == nil {
		return -1
	}
	return *m.EpisodeNumber
}

// HasIdentifier reports whether the item carries an imdb or tmdb id.
func (m *MediaItem) HasIdentifier() bool {
	return (m.IMDBID != nil && *m.IMDBID != "") || m.TMDBID != nil
}

// DisplayName is a short human label used in logs and notifications.
func (m *MediaItem) DisplayName() string {
	if m.IsEpisode() {
		return m.Title + " " + episodeTag(m.Season(), m.Episode())
	}
	if m.Year > 0 {
		return m.Title + " (" + formatInt(int64(m.Year)) + ")"
	}
	return m.Title
}

// Clone returns a deep copy of the item.
func (m *MediaItem) Clone() *MediaItem {
	c := *m
	c.IMDBID = cloneString(m.IMDBID)
	c.TMDBID = cloneInt64(m.TMDBID)
	c.ReleaseDate = cloneTime(m.ReleaseDate)
	c.SeasonNumber = cloneInt(m.SeasonNumber)
	c.EpisodeNumber = cloneInt(m.EpisodeNumber)
	c.FilledByMagnet = cloneString(m.FilledByMagnet)
	c.FilledByFile = cloneString(m.FilledByFile)
	c.FilledByTitle = cloneString(m.FilledByTitle)
	c.FilledByTorrentID = cloneString(m.FilledByTorrentID)
	c.OriginalScrapedTorrentTitle = cloneString(m.OriginalScrapedTorrentTitle)
	c.RescrapeOriginalTorrentTitle = cloneString(m.RescrapeOriginalTorrentTitle)
	c.UpgradingFrom = cloneString(m.UpgradingFrom)
	c.UpgradingFromTorrentID = cloneString(m.UpgradingFromTorrentID)
	c.UpgradingFromVersion = cloneString(m.UpgradingFromVersion)
	c.LocationOnDisk = cloneString(m.LocationOnDisk)
	c.OriginalPathForSymlink = cloneString(m.OriginalPathForSymlink)
	c.CollectedAt = cloneTime(m.CollectedAt)
	c.OriginalCollectedAt = cloneTime(m.OriginalCollectedAt)
	c.MetadataUpdated = cloneTime(m.MetadataUpdated)
	c.BlacklistedDate = cloneTime(m.BlacklistedDate)
	c.LastUpgradeCheck = cloneTime(m.LastUpgradeCheck)
	if m.ScrapeResults != nil {
		c.ScrapeResults = append([]Candidate(nil), m.ScrapeResults...)
	}
	return &c
}

// StripVersion removes the trailing propagation markers from a version name.
func StripVersion(v string) string {
	return strings.TrimRight(strings.TrimSpace(v), "*")
}

// Str returns a pointer to s, or nil when s is empty.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
