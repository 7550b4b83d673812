package scrape

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/reelq/pkg/torznab"
)

// Indexer is one searchable torrent indexer.
type Indexer interface {
	Name() string
	Search(ctx context.Context, q torznab.Query) ([]torznab.Release, error)
}

// Pool searches several indexers in parallel with a bounded number of
// requests in flight.
type Pool struct {
	indexers []Indexer
	limit    int
	timeout  time.Duration
	log      *slog.Logger
}

// NewPool creates a pool. limit <= 0 searches every indexer at once.
func NewPool(indexers []Indexer, limit int, timeout time.Duration, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{indexers: indexers, limit: limit, timeout: timeout, log: log}
}

// Len returns the number of indexers in the pool.
func (p *Pool) Len() int { return len(p.indexers) }

// Search runs q against every indexer and merges the results in indexer
// order. Indexer failures are collected, not fatal; the call only fails
// when every indexer failed.
func (p *Pool) Search(ctx context.Context, q torznab.Query) ([]torznab.Release, []error) {
	if len(p.indexers) == 0 {
		return nil, []error{ErrNoIndexers}
	}
	start := time.Now()

	perIndexer := make([][]torznab.Release, len(p.indexers))
	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}
	for i, idx := range p.indexers {
		g.Go(func() error {
			callCtx := ctx
			if p.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, p.timeout)
				defer cancel()
			}
			indexerStart := time.Now()
			releases, err := idx.Search(callCtx, q)
			if err != nil {
				p.log.Warn("indexer failed", "indexer", idx.Name(), "error", err,
					"duration_ms", time.Since(indexerStart).Milliseconds())
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			perIndexer[i] = releases
			return nil
		})
	}
	_ = g.Wait()

	var all []torznab.Release
	for _, rs := range perIndexer {
		all = append(all, rs...)
	}
	p.log.Debug("indexers searched", "type", q.Type, "imdb_id", q.IMDBID, "query", q.Text,
		"results", len(all), "errors", len(errs), "duration_ms", time.Since(start).Milliseconds())
	return all, errs
}
