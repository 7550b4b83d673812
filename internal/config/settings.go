package config

import (
	"time"

	"github.com/vmunix/reelq/internal/queue"
	"github.com/vmunix/reelq/internal/scheduler"
	"github.com/vmunix/reelq/pkg/release/scoring"
)

func hours(h float64) time.Duration { return time.Duration(h * float64(time.Hour)) }

// QueueSettings converts the queue, scraping, versions and debug sections.
// Keys left unset keep the queue defaults.
func (c *Config) QueueSettings() queue.Settings {
	s := queue.DefaultSettings()
	q := c.Queue
	if q.SleepDurationMinutes > 0 {
		s.SleepDuration = time.Duration(q.SleepDurationMinutes) * time.Minute
	}
	if q.BlacklistDurationDays > 0 {
		s.BlacklistDuration = time.Duration(q.BlacklistDurationDays) * 24 * time.Hour
	}
	if q.WakeLimit != nil {
		s.WakeLimit = *q.WakeLimit
	}
	if h := q.MovieAirtimeOffsetHours; h != nil {
		s.MovieAirtimeOffset = hours(*h)
	}
	if h := q.EpisodeAirtimeOffsetHours; h != nil {
		s.EpisodeAirtimeOffset = hours(*h)
	}
	if q.CheckTimeoutMinutes > 0 {
		s.CheckTimeout = time.Duration(q.CheckTimeoutMinutes) * time.Minute
	}
	if q.DebridFailureLimit > 0 {
		s.DebridFailureLimit = q.DebridFailureLimit
	}
	s.AllowUncached = q.AllowUncached

	s.EnableUpgrading = c.Scraping.EnableUpgrading
	if p := c.Scraping.UpgradingPercentageThreshold; p != nil {
		s.UpgradeThreshold = *p
	}
	if c.Scraping.UpgradeCheckIntervalMinutes > 0 {
		s.UpgradeInterval = time.Duration(c.Scraping.UpgradeCheckIntervalMinutes) * time.Minute
	}
	if c.Debug.UpgradeQueueDurationHours > 0 {
		s.UpgradeWindow = hours(c.Debug.UpgradeQueueDurationHours)
	}

	if len(c.Versions) > 0 {
		s.Versions = make(map[string]queue.VersionSettings, len(c.Versions))
		for name, v := range c.Versions {
			s.Versions[name] = queue.VersionSettings{WakeLimit: v.WakeLimit, EnableUpgrading: v.EnableUpgrading}
		}
	}
	return s
}

// ScoringProfiles returns the release profile of every version.
func (c *Config) ScoringProfiles() map[string]scoring.Profile {
	out := make(map[string]scoring.Profile, len(c.Versions))
	for name, v := range c.Versions {
		out[name] = scoring.Profile{
			Resolutions: v.Resolutions,
			Sources:     v.Sources,
			Codecs:      v.Codecs,
			HDR:         v.HDR,
			Audio:       v.Audio,
			PreferRemux: v.PreferRemux,
			Reject:      v.Reject,
			MinSizeMB:   v.MinSizeMB,
			MaxSizeMB:   v.MaxSizeMB,
		}
	}
	return out
}

// TaskOverrides converts the scheduler.tasks section. A not_wanted purge
// schedule is folded in unless the task is configured explicitly.
func (c *Config) TaskOverrides() map[string]scheduler.Override {
	out := make(map[string]scheduler.Override, len(c.Scheduler.Tasks)+1)
	for name, t := range c.Scheduler.Tasks {
		out[name] = scheduler.Override{Schedule: t.Schedule, Enabled: t.Enabled}
	}
	if spec := c.NotWanted.PurgeSchedule; spec != "" {
		if _, ok := out[scheduler.TaskPurgeNotWanted]; !ok {
			out[scheduler.TaskPurgeNotWanted] = scheduler.Override{Schedule: spec}
		}
	}
	return out
}

// PurgeScheduled reports whether the not-wanted purge task has a schedule.
func (c *Config) PurgeScheduled() bool {
	return c.TaskOverrides()[scheduler.TaskPurgeNotWanted].Schedule != ""
}

// Tick is the scheduler's polling interval.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Scheduler.TickSeconds) * time.Second
}
