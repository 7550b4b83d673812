package queue

import (
	"strconv"
	"strings"
	"time"

	"github.com/vmunix/reelq/internal/item"
)

// Defaults for Settings fields left at their zero value.
const (
	DefaultSleepDuration        = 30 * time.Minute
	MinSleepDuration            = 10 * time.Minute
	DefaultBlacklistDuration    = 30 * 24 * time.Hour
	DefaultMovieAirtimeOffset   = 19 * time.Hour
	DefaultEpisodeAirtimeOffset = 0
	DefaultCheckTimeout         = time.Hour
	DefaultWakeLimit            = 24
	DefaultDebridFailureLimit   = 5
	DefaultUpgradeThreshold     = 0.10
	DefaultUpgradeWindow        = 24 * time.Hour
	DefaultUpgradeInterval      = time.Hour

	// NeverSleep as a wake limit sends unscrapable items straight to Blacklisted.
	NeverSleep = -1

	// releaseHorizon is how far ahead of its release an item leaves Unreleased.
	releaseHorizon = 24 * time.Hour
	// siblingBlacklistAge is the minimum age of a sibling episode's release
	// before it is blacklisted together with a missing episode.
	siblingBlacklistAge = 7 * 24 * time.Hour
	// similarityCeiling rejects upgrade candidates that are the same release renamed.
	similarityCeiling = 0.95
	defaultAirtime    = "19:00"
)

// VersionSettings override queue behaviour for one version.
type VersionSettings struct {
	WakeLimit       *int
	EnableUpgrading bool
}

// Settings control queue timing and policy.
type Settings struct {
	SleepDuration        time.Duration
	BlacklistDuration    time.Duration
	MovieAirtimeOffset   time.Duration
	EpisodeAirtimeOffset time.Duration
	CheckTimeout         time.Duration
	WakeLimit            int
	AllowUncached        bool
	DebridFailureLimit   int

	EnableUpgrading  bool
	UpgradeThreshold float64
	UpgradeWindow    time.Duration
	UpgradeInterval  time.Duration

	Versions map[string]VersionSettings
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		SleepDuration:        DefaultSleepDuration,
		BlacklistDuration:    DefaultBlacklistDuration,
		MovieAirtimeOffset:   DefaultMovieAirtimeOffset,
		EpisodeAirtimeOffset: DefaultEpisodeAirtimeOffset,
		CheckTimeout:         DefaultCheckTimeout,
		WakeLimit:            DefaultWakeLimit,
		DebridFailureLimit:   DefaultDebridFailureLimit,
		UpgradeThreshold:     DefaultUpgradeThreshold,
		UpgradeWindow:        DefaultUpgradeWindow,
		UpgradeInterval:      DefaultUpgradeInterval,
	}
}

// normalize fills zero durations with defaults and clamps the sleep duration.
func (s Settings) normalize() Settings {
	d := DefaultSettings()
	if s.SleepDuration <= 0 {
		s.SleepDuration = d.SleepDuration
	}
	if s.SleepDuration < MinSleepDuration {
		s.SleepDuration = MinSleepDuration
	}
	if s.BlacklistDuration <= 0 {
		s.BlacklistDuration = d.BlacklistDuration
	}
	if s.CheckTimeout <= 0 {
		s.CheckTimeout = d.CheckTimeout
	}
	if s.DebridFailureLimit <= 0 {
		s.DebridFailureLimit = d.DebridFailureLimit
	}
	if s.UpgradeThreshold < 0 {
		s.UpgradeThreshold = d.UpgradeThreshold
	}
	if s.UpgradeWindow <= 0 {
		s.UpgradeWindow = d.UpgradeWindow
	}
	if s.UpgradeInterval <= 0 {
		s.UpgradeInterval = d.UpgradeInterval
	}
	return s
}

// WakeLimitFor returns the wake limit of version, honouring overrides.
func (s Settings) WakeLimitFor(version string) int {
	if v, ok := s.Versions[item.StripVersion(version)]; ok && v.WakeLimit != nil {
		return *v.WakeLimit
	}
	return s.WakeLimit
}

// UpgradingEnabled reports whether items of version are rescraped for upgrades.
func (s Settings) UpgradingEnabled(version string) bool {
	if !s.EnableUpgrading {
		return false
	}
	v, ok := s.Versions[item.StripVersion(version)]
	return ok && v.EnableUpgrading
}

// ReleaseInstant returns when it becomes available: release date at local
// midnight, plus airtime for episodes, plus the media type's offset.
// ok is false when the release date is unknown.
func (s Settings) ReleaseInstant(it *item.MediaItem) (time.Time, bool) {
	if it.ReleaseDate == nil {
		return time.Time{}, false
	}
	d := *it.ReleaseDate
	at := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.Local)
	if it.IsEpisode() {
		airtime := it.Airtime
		if airtime == "" {
			airtime = defaultAirtime
		}
		at = at.Add(parseAirtime(airtime))
		return at.Add(s.EpisodeAirtimeOffset), true
	}
	return at.Add(s.MovieAirtimeOffset), true
}

// parseAirtime reads HH:MM. Malformed values count as midnight.
func parseAirtime(v string) time.Duration {
	hh, mm, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return 0
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}
