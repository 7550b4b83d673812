// Package scrape queries indexers for release candidates and ranks them
// against the quality profile of an item's version.
package scrape

import (
	"errors"

	"github.com/vmunix/reelq/internal/item"
)

// ErrNoIndexers is returned when no indexers are configured.
var ErrNoIndexers = errors.New("no indexers configured")

// ErrAllIndexersFailed is returned when every indexer errored.
var ErrAllIndexersFailed = errors.New("all indexers failed")

// Options tune one scrape.
type Options struct {
	// MultiPack searches for season packs as well as single episodes.
	MultiPack bool
	// SkipFilter keeps releases the version profile or relevance checks
	// would drop. Used by upgrade checks to rank the current release.
	SkipFilter bool
}

// Result is the outcome of one scrape. Candidates are ranked by Score,
// highest first; equal scores keep indexer order.
type Result struct {
	Candidates  []item.Candidate
	FilteredOut []item.Candidate
}

// Empty reports whether no candidate survived.
func (r Result) Empty() bool { return len(r.Candidates) == 0 }
