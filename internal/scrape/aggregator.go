package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/pkg/release"
	"github.com/vmunix/reelq/pkg/release/scoring"
	"github.com/vmunix/reelq/pkg/torznab"
)

// Newznab category ranges.
var (
	movieCategories = []int{2000, 2010, 2030, 2040, 2045, 2050, 2060}
	tvCategories    = []int{5000, 5010, 5030, 5040, 5045, 5070}
)

// DefaultMinSimilarity is the title similarity below which a release is
// considered to be a different show or movie.
const DefaultMinSimilarity = 0.9

// Aggregator searches a pool of indexers and ranks the merged results.
type Aggregator struct {
	pool          *Pool
	profiles      map[string]scoring.Profile
	minSimilarity float64
	log           *slog.Logger
}

// NewAggregator creates an aggregator. profiles is keyed by version name;
// versions without a profile accept any release.
func NewAggregator(pool *Pool, profiles map[string]scoring.Profile, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		pool:          pool,
		profiles:      profiles,
		minSimilarity: DefaultMinSimilarity,
		log:           log.With("component", "scrape"),
	}
}

// Scrape finds candidates for it.
func (a *Aggregator) Scrape(ctx context.Context, it item.MediaItem, opts Options) (Result, error) {
	q := buildQuery(it, opts)
	releases, errs := a.pool.Search(ctx, q)
	if len(errs) > 0 && len(errs) >= a.pool.Len() {
		return Result{}, fmt.Errorf("scrape %s: %w: %w", it.DisplayName(), ErrAllIndexersFailed, errors.Join(errs...))
	}

	version := item.StripVersion(it.Version)
	profile := a.profiles[version]

	var res Result
	seen := make(map[string]bool, len(releases))
	for _, rel := range releases {
		c := toCandidate(rel, version)
		key := c.InfoHash()
		if key == "" {
			key = strings.ToLower(c.Title)
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		info := release.Parse(rel.Title)
		score, ok := scoring.Evaluate(info, rel.Size, profile)
		c.Score = float64(score)
		if !opts.SkipFilter && (!ok || !a.relevant(it, info, opts)) {
			res.FilteredOut = append(res.FilteredOut, c)
			continue
		}
		res.Candidates = append(res.Candidates, c)
	}

	slices.SortStableFunc(res.Candidates, func(x, y item.Candidate) int {
		switch {
		case x.Score > y.Score:
			return -1
		case x.Score < y.Score:
			return 1
		}
		return 0
	})

	a.log.Info("scrape complete", "item", it.DisplayName(), "version", version, "multi_pack", opts.MultiPack,
		"candidates", len(res.Candidates), "filtered", len(res.FilteredOut))
	return res, nil
}

// relevant reports whether info describes the item being scraped.
func (a *Aggregator) relevant(it item.MediaItem, info release.Info, opts Options) bool {
	if release.TitleSimilarity(info.Title, it.Title) < a.minSimilarity {
		return false
	}
	if !it.IsEpisode() {
		if info.Season > 0 || len(info.Episodes) > 0 {
			return false
		}
		if info.Year > 0 && it.Year > 0 && abs(info.Year-it.Year) > 1 {
			return false
		}
		return true
	}
	if opts.MultiPack {
		return coversSeason(info, it.Season())
	}
	return info.HasEpisode(it.Season(), it.Episode())
}

func coversSeason(info release.Info, season int) bool {
	if info.Season == season {
		return true
	}
	return slices.Contains(info.Seasons, season)
}

func buildQuery(it item.MediaItem, opts Options) torznab.Query {
	imdb := item.Deref(it.IMDBID)
	if !it.IsEpisode() {
		q := torznab.Query{Type: torznab.SearchMovie, IMDBID: imdb, Categories: movieCategories}
		if imdb == "" {
			q.Type = torznab.SearchGeneric
			q.Text = strings.TrimSpace(release.NormalizeSearchQuery(it.Title) + " " + yearText(it.Year))
		}
		return q
	}

	q := torznab.Query{Type: torznab.SearchTV, IMDBID: imdb, Season: it.Season(), Categories: tvCategories}
	if !opts.MultiPack {
		q.Episode = it.Episode()
	}
	if imdb == "" {
		q.Type = torznab.SearchGeneric
		tag := fmt.Sprintf("S%02d", it.Season())
		if !opts.MultiPack {
			tag += fmt.Sprintf("E%02d", it.Episode())
		}
		q.Text = release.NormalizeSearchQuery(it.Title) + " " + tag
		q.Season, q.Episode = 0, 0
	}
	return q
}

func toCandidate(rel torznab.Release, version string) item.Candidate {
	c := item.Candidate{
		Title:   rel.Title,
		Magnet:  rel.MagnetURI,
		Hash:    rel.InfoHash,
		Size:    rel.Size,
		Version: version,
		Indexer: rel.Indexer,
	}
	if c.Magnet == "" {
		c.URL = rel.Link
	}
	if c.Hash == "" {
		c.Hash = item.HashFromMagnet(c.Magnet)
	}
	return c
}

func yearText(y int) string {
	if y <= 0 {
		return ""
	}
	return strconv.Itoa(y)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
