package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/vmunix/reelq/internal/item"
)

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// truncate shortens s to n runes with a trailing ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatAgo renders the age of t, or "-" for zero times.
func formatAgo(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < 0:
		return "in " + formatDuration(-d)
	case d < time.Minute:
		return "just now"
	default:
		return formatDuration(d) + " ago"
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// itemLabel is the display name of an item with its version.
func itemLabel(it item.MediaItem) string {
	return fmt.Sprintf("%s [%s]", it.DisplayName(), it.Version)
}
