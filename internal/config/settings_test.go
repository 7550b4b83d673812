package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelq/internal/queue"
	"github.com/vmunix/reelq/internal/scheduler"
)

func TestQueueSettings_Defaults(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, queue.DefaultSettings(), cfg.QueueSettings())
}

func TestQueueSettings_OriginalKeys(t *testing.T) {
	path := writeConfig(t, minimalConfig(t.TempDir())+`
[queue]
blacklist_duration_days = 7
wake_limit = -1
sleep_duration_minutes = 45
movie_airtime_offset_hours = 6.5
episode_airtime_offset_hours = 1
allow_uncached = true

[scraping]
enable_upgrading = true
upgrading_percentage_threshold = 0
upgrade_check_interval_minutes = 90

[versions."720p"]
enable_upgrading = true
wake_limit = 2

[debug]
upgrade_queue_duration_hours = 1.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	s := cfg.QueueSettings()
	assert.Equal(t, 7*24*time.Hour, s.BlacklistDuration)
	assert.Equal(t, queue.NeverSleep, s.WakeLimit)
	assert.Equal(t, 45*time.Minute, s.SleepDuration)
	assert.Equal(t, 6*time.Hour+30*time.Minute, s.MovieAirtimeOffset)
	assert.Equal(t, time.Hour, s.EpisodeAirtimeOffset)
	assert.True(t, s.AllowUncached)
	assert.Zero(t, s.UpgradeThreshold, "an explicit zero accepts any improvement")
	assert.Equal(t, 90*time.Minute, s.UpgradeInterval)
	assert.Equal(t, 90*time.Minute, s.UpgradeWindow)
	assert.Equal(t, 2, s.WakeLimitFor("720p"))
	assert.Equal(t, queue.NeverSleep, s.WakeLimitFor("1080p"))
	assert.True(t, s.UpgradingEnabled("720p*"))
}

func TestQueueSettings_ThresholdIsRatio(t *testing.T) {
	path := writeConfig(t, minimalConfig(t.TempDir())+`
[scraping]
upgrading_percentage_threshold = 0.25
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, cfg.QueueSettings().UpgradeThreshold, 1e-9)
}

func TestQueueSettings_ZeroAirtimeOffsets(t *testing.T) {
	path := writeConfig(t, minimalConfig(t.TempDir())+`
[queue]
movie_airtime_offset_hours = 0
episode_airtime_offset_hours = 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	s := cfg.QueueSettings()
	assert.Zero(t, s.MovieAirtimeOffset, "an explicit zero overrides the 19h default")
	assert.Zero(t, s.EpisodeAirtimeOffset)

	s = (&Config{}).QueueSettings()
	assert.Equal(t, queue.DefaultMovieAirtimeOffset, s.MovieAirtimeOffset)
}

func TestScoringProfiles(t *testing.T) {
	cfg := &Config{Versions: map[string]VersionConfig{
		"premium": {
			Resolutions: []string{"2160p", "1080p"},
			Sources:     []string{"bluray", "webdl"},
			Codecs:      []string{"x265", "x264"},
			HDR:         []string{"dolby-vision", "hdr10+", "hdr10"},
			Audio:       []string{"atmos", "truehd"},
			PreferRemux: true,
			Reject:      []string{"hdtv", "cam"},
			MinSizeMB:   1000,
		},
	}}
	p, ok := cfg.ScoringProfiles()["premium"]
	require.True(t, ok)
	assert.Equal(t, []string{"2160p", "1080p"}, p.Resolutions)
	assert.Equal(t, []string{"x265", "x264"}, p.Codecs)
	assert.Equal(t, []string{"dolby-vision", "hdr10+", "hdr10"}, p.HDR)
	assert.True(t, p.PreferRemux)
	assert.Equal(t, []string{"hdtv", "cam"}, p.Reject)
	assert.Equal(t, int64(1000), p.MinSizeMB)
}

func TestTaskOverrides(t *testing.T) {
	off := false
	cfg := &Config{
		NotWanted: NotWantedConfig{PurgeSchedule: "0 4 * * 0"},
		Scheduler: SchedulerConfig{Tasks: map[string]TaskConfig{
			"heartbeat": {Schedule: "@every 10m"},
			"upgrading": {Enabled: &off},
		}},
	}
	o := cfg.TaskOverrides()
	assert.Equal(t, "@every 10m", o[scheduler.TaskHeartbeat].Schedule)
	require.NotNil(t, o[queue.NameUpgrading].Enabled)
	assert.False(t, *o[queue.NameUpgrading].Enabled)
	assert.Equal(t, "0 4 * * 0", o[scheduler.TaskPurgeNotWanted].Schedule)
	assert.True(t, cfg.PurgeScheduled())

	cfg.Scheduler.Tasks[scheduler.TaskPurgeNotWanted] = TaskConfig{Schedule: "@weekly"}
	assert.Equal(t, "@weekly", cfg.TaskOverrides()[scheduler.TaskPurgeNotWanted].Schedule)
}
