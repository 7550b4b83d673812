package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/vmunix/reelq/internal/queue"
	"github.com/vmunix/reelq/internal/scheduler"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

var validDebridProviders = map[string]bool{
	"realdebrid": true,
}

var validLibraryModes = map[string]bool{
	"watch": true, "plex": true,
}

var validSourceTypes = map[string]bool{
	"http": true, "file": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	// Server validation
	if c.Server.Port != 0 && (c.Server.Port < 1 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", c.Server.Port))
	}
	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}

	// Queue validation
	if c.Queue.SleepDurationMinutes < 0 {
		errs = append(errs, "queue.sleep_duration_minutes: must not be negative")
	}
	if c.Queue.BlacklistDurationDays < 0 {
		errs = append(errs, "queue.blacklist_duration_days: must not be negative")
	}
	if c.Queue.WakeLimit != nil && *c.Queue.WakeLimit < queue.NeverSleep {
		errs = append(errs, fmt.Sprintf("queue.wake_limit: must be %d (never sleep) or more, got %d", queue.NeverSleep, *c.Queue.WakeLimit))
	}
	if p := c.Scraping.UpgradingPercentageThreshold; p != nil && *p < 0 {
		errs = append(errs, "scraping.upgrading_percentage_threshold: must not be negative")
	}

	// Indexers validation
	if len(c.Scraping.Indexers) == 0 {
		errs = append(errs, "scraping.indexers: at least one indexer must be configured")
	}
	for name, idx := range c.Scraping.Indexers {
		if idx.URL == "" {
			errs = append(errs, fmt.Sprintf("scraping.indexers.%s.url: required", name))
		}
	}

	for name, v := range c.Versions {
		if v.WakeLimit != nil && *v.WakeLimit < queue.NeverSleep {
			errs = append(errs, fmt.Sprintf("versions.%s.wake_limit: must be %d (never sleep) or more", name, queue.NeverSleep))
		}
		if v.MaxSizeMB > 0 && v.MinSizeMB > v.MaxSizeMB {
			errs = append(errs, fmt.Sprintf("versions.%s: min_size_mb exceeds max_size_mb", name))
		}
	}

	// Debrid validation
	if !validDebridProviders[c.Debrid.Provider] {
		errs = append(errs, fmt.Sprintf("debrid.provider: must be realdebrid; got %q", c.Debrid.Provider))
	}
	if c.Debrid.APIToken == "" {
		errs = append(errs, "debrid.api_token: required")
	}

	// Library validation
	switch {
	case !validLibraryModes[c.Library.Mode]:
		errs = append(errs, fmt.Sprintf("library.mode: must be one of watch, plex; got %q", c.Library.Mode))
	case c.Library.Mode == "watch" && len(c.Library.Roots) == 0:
		errs = append(errs, "library.roots: at least one root is required in watch mode")
	case c.Library.Mode == "plex" && (c.Library.Plex == nil || c.Library.Plex.URL == "" || c.Library.Plex.Token == ""):
		errs = append(errs, "library.plex: url and token are required in plex mode")
	}

	// Content sources
	for _, name := range sortedKeys(c.ContentSources) {
		src := c.ContentSources[name]
		if !validSourceTypes[src.Type] {
			errs = append(errs, fmt.Sprintf("content_sources.%s.type: must be one of http, file; got %q", name, src.Type))
			continue
		}
		if src.Type == "http" && src.URL == "" {
			errs = append(errs, fmt.Sprintf("content_sources.%s.url: required for http sources", name))
		}
		if src.Type == "file" && src.Path == "" {
			errs = append(errs, fmt.Sprintf("content_sources.%s.path: required for file sources", name))
		}
		if len(c.Versions) > 0 {
			for _, v := range src.VersionNames() {
				if _, ok := c.Versions[v]; !ok {
					errs = append(errs, fmt.Sprintf("content_sources.%s.versions: version %q not defined", name, v))
				}
			}
		}
	}

	// Scheduler
	if c.NotWanted.PurgeSchedule != "" {
		if _, err := cron.ParseStandard(c.NotWanted.PurgeSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("not_wanted.purge_schedule: %v", err))
		}
	}
	for _, name := range sortedKeys(c.Scheduler.Tasks) {
		t := c.Scheduler.Tasks[name]
		if _, ok := scheduler.DefaultSchedules[name]; !ok && name != scheduler.TaskPurgeNotWanted {
			errs = append(errs, fmt.Sprintf("scheduler.tasks.%s: unknown task", name))
			continue
		}
		if t.Schedule != "" {
			if _, err := cron.ParseStandard(t.Schedule); err != nil {
				errs = append(errs, fmt.Sprintf("scheduler.tasks.%s.schedule: %v", name, err))
			}
		}
	}

	// Library path warnings (non-fatal)
	if c.Library.Mode == "watch" {
		for _, root := range c.Library.Roots {
			if _, err := os.Stat(root); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("library.roots%sdirectory %q does not exist", warningMarker, root))
			}
		}
	}

	return errs
}

// warningMarker tags validation messages that do not fail Load.
const warningMarker = ": warning: "

func splitWarnings(msgs []string) (errs, warnings []string) {
	for _, m := range msgs {
		if strings.Contains(m, warningMarker) {
			warnings = append(warnings, m)
		} else {
			errs = append(errs, m)
		}
	}
	return errs, warnings
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
