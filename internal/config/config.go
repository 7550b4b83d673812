// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server         ServerConfig                   `toml:"server"`
	Database       DatabaseConfig                 `toml:"database"`
	Storage        StorageConfig                  `toml:"storage"`
	Queue          QueueConfig                    `toml:"queue"`
	Scraping       ScrapingConfig                 `toml:"scraping"`
	Versions       map[string]VersionConfig       `toml:"versions"`
	Debrid         DebridConfig                   `toml:"debrid"`
	Library        LibraryConfig                  `toml:"library"`
	ContentSources map[string]ContentSourceConfig `toml:"content_sources"`
	NotWanted      NotWantedConfig                `toml:"not_wanted"`
	Notifications  NotificationsConfig            `toml:"notifications"`
	Scheduler      SchedulerConfig                `toml:"scheduler"`
	Debug          DebugConfig                    `toml:"debug"`

	warnings []string
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// StorageConfig locates the JSON side files (not-wanted sets, source caches).
type StorageConfig struct {
	DataDir            string `toml:"data_dir"`
	EventRetentionDays int    `toml:"event_retention_days"`
}

type QueueConfig struct {
	SleepDurationMinutes      int      `toml:"sleep_duration_minutes"`
	BlacklistDurationDays     int      `toml:"blacklist_duration_days"`
	WakeLimit                 *int     `toml:"wake_limit"`
	MovieAirtimeOffsetHours   *float64 `toml:"movie_airtime_offset_hours"`
	EpisodeAirtimeOffsetHours *float64 `toml:"episode_airtime_offset_hours"`
	CheckTimeoutMinutes       int      `toml:"check_timeout_minutes"`
	AllowUncached             bool     `toml:"allow_uncached"`
	DebridFailureLimit        int      `toml:"debrid_failure_limit"`
}

type ScrapingConfig struct {
	EnableUpgrading              bool                     `toml:"enable_upgrading"`
	UpgradingPercentageThreshold *float64                 `toml:"upgrading_percentage_threshold"`
	UpgradeCheckIntervalMinutes  int                      `toml:"upgrade_check_interval_minutes"`
	Concurrency                  int                      `toml:"concurrency"`
	TimeoutSeconds               int                      `toml:"timeout_seconds"`
	Indexers                     map[string]IndexerConfig `toml:"indexers"`
}

// IndexerConfig is one Torznab endpoint.
type IndexerConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// VersionConfig is a named quality version: what it accepts and how its
// items behave in the queues.
type VersionConfig struct {
	WakeLimit       *int     `toml:"wake_limit"`
	EnableUpgrading bool     `toml:"enable_upgrading"`
	Resolutions     []string `toml:"resolutions"`
	Sources         []string `toml:"sources"`
	Codecs          []string `toml:"codecs"`
	HDR             []string `toml:"hdr"`
	Audio           []string `toml:"audio"`
	PreferRemux     bool     `toml:"prefer_remux"`
	Reject          []string `toml:"reject"`
	MinSizeMB       int64    `toml:"min_size_mb"`
	MaxSizeMB       int64    `toml:"max_size_mb"`
}

type DebridConfig struct {
	Provider             string  `toml:"provider"`
	URL                  string  `toml:"url"`
	APIToken             string  `toml:"api_token"`
	RequestsPerSecond    float64 `toml:"requests_per_second"`
	Burst                int     `toml:"burst"`
	TimeoutSeconds       int     `toml:"timeout_seconds"`
	CacheCheckAttempts   int     `toml:"cache_check_attempts"`
	CacheCheckIntervalMS int     `toml:"cache_check_interval_ms"`
}

// LibraryConfig selects the collection oracle. In "watch" mode the
// library roots are indexed on disk; in "plex" mode the Plex server is asked.
type LibraryConfig struct {
	Mode  string      `toml:"mode"`
	Roots []string    `toml:"roots"`
	Plex  *PlexConfig `toml:"plex"`
}

type PlexConfig struct {
	URL        string `toml:"url"`
	Token      string `toml:"token"`
	LocalPath  string `toml:"local_path"`
	RemotePath string `toml:"remote_path"`
}

// ContentSourceConfig is one wanted-item list.
type ContentSourceConfig struct {
	Type            string   `toml:"type"` // http or file
	URL             string   `toml:"url"`
	Path            string   `toml:"path"`
	APIKey          string   `toml:"api_key"`
	Version         string   `toml:"version"`
	Versions        []string `toml:"versions"`
	IntervalMinutes int      `toml:"interval_minutes"`
	Enabled         *bool    `toml:"enabled"`
}

// IsEnabled reports whether the source is fetched. Sources are on unless disabled.
func (c ContentSourceConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// VersionNames returns version followed by versions, stripped of
// propagation markers and deduplicated.
func (c ContentSourceConfig) VersionNames() []string {
	var out []string
	for _, name := range append([]string{c.Version}, c.Versions...) {
		if v := strings.TrimRight(strings.TrimSpace(name), "*"); v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

type NotWantedConfig struct {
	// PurgeSchedule is a cron spec for clearing the registry. Empty never purges.
	PurgeSchedule string `toml:"purge_schedule"`
}

type NotificationsConfig struct {
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Collected      bool   `toml:"collected"`
	Upgraded       bool   `toml:"upgraded"`
	UpgradeFailed  bool   `toml:"upgrade_failed"`
	Blacklisted    bool   `toml:"blacklisted"`
	Paused         bool   `toml:"paused"`
}

type SchedulerConfig struct {
	TickSeconds int                   `toml:"tick_seconds"`
	Tasks       map[string]TaskConfig `toml:"tasks"`
}

// TaskConfig overrides the schedule or enablement of one task.
type TaskConfig struct {
	Schedule string `toml:"schedule"`
	Enabled  *bool  `toml:"enabled"`
}

type DebugConfig struct {
	UpgradeQueueDurationHours   float64 `toml:"upgrade_queue_duration_hours"`
	DisableContentSourceCaching bool    `toml:"disable_content_source_caching"`
}

// Load reads, substitutes, parses and validates the configuration file.
// Warnings do not fail the load; they are kept on the returned Config.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithoutValidation(path)
	if err != nil {
		return nil, err
	}
	errs, warnings := splitWarnings(cfg.Validate())
	if len(errs) > 0 {
		return nil, &ConfigError{Path: path, Errors: errs, Warnings: warnings}
	}
	cfg.warnings = warnings
	return cfg, nil
}

// LoadWithoutValidation reads and parses the configuration file and applies
// defaults. Unresolved environment variables are still an error.
func LoadWithoutValidation(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))
	if len(missing) > 0 {
		return nil, &ConfigError{Path: path, Missing: missing}
	}

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Warnings returns the non-fatal validation messages of the last Load.
func (c *Config) Warnings() []string { return c.warnings }

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8585
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "./data"
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.Storage.DataDir, "reelq.db")
	}
	if c.Storage.EventRetentionDays == 0 {
		c.Storage.EventRetentionDays = 30
	}
	if c.Debrid.Provider == "" {
		c.Debrid.Provider = "realdebrid"
	}
	if c.Library.Mode == "" {
		c.Library.Mode = "watch"
	}
	if c.Scraping.TimeoutSeconds == 0 {
		c.Scraping.TimeoutSeconds = 20
	}
	if c.Scraping.Concurrency == 0 {
		c.Scraping.Concurrency = 4
	}
	if c.Scheduler.TickSeconds == 0 {
		c.Scheduler.TickSeconds = 1
	}
}

// Address returns the host:port the HTTP server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SourceCacheDir is where content-source caches are kept.
func (c *Config) SourceCacheDir() string {
	return filepath.Join(c.Storage.DataDir, "content_source_cache")
}

// EventRetention is how long event log rows are kept.
func (c *Config) EventRetention() time.Duration {
	return time.Duration(c.Storage.EventRetentionDays) * 24 * time.Hour
}

// SourceNames returns the enabled content sources in name order.
func (c *Config) SourceNames() []string {
	var names []string
	for name, src := range c.ContentSources {
		if src.IsEnabled() {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR} with the environment value. ${VAR:-def}
// falls back to def when VAR is unset or empty; ${VAR:?msg} reports msg
// in that case. Unresolved references are returned as missing and left in place.
func substituteEnvVars(content string) (string, []string) {
	var missing []string
	report := func(s string) {
		if !slices.Contains(missing, s) {
			missing = append(missing, s)
		}
	}
	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		expr := match[2 : len(match)-1]
		if name, msg, ok := strings.Cut(expr, ":?"); ok {
			if value := os.Getenv(name); value != "" {
				return value
			}
			report(name + ": " + msg)
			return match
		}
		name, def, hasDefault := strings.Cut(expr, ":-")
		if value, ok := os.LookupEnv(name); ok && (value != "" || !hasDefault) {
			return value
		}
		if hasDefault {
			return def
		}
		report(name)
		return match
	})
	return out, missing
}
