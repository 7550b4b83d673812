// Package server wires the long-lived daemon components and runs them.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "github.com/vmunix/reelq/internal/api/v1"
	"github.com/vmunix/reelq/internal/config"
	"github.com/vmunix/reelq/internal/debrid"
	"github.com/vmunix/reelq/internal/events"
	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/library"
	"github.com/vmunix/reelq/internal/migrations"
	"github.com/vmunix/reelq/internal/notify"
	"github.com/vmunix/reelq/internal/notwanted"
	"github.com/vmunix/reelq/internal/queue"
	"github.com/vmunix/reelq/internal/scheduler"
	"github.com/vmunix/reelq/internal/scrape"
	"github.com/vmunix/reelq/internal/source"
	"github.com/vmunix/reelq/internal/sourcecache"
	"github.com/vmunix/reelq/pkg/torznab"
)

const shutdownTimeout = 30 * time.Second

// Option configures a Runner.
type Option func(*options)

type options struct {
	version string
	scraper queue.Scraper
	debrid  queue.Debrid
	library queue.Library
}

// WithVersion sets the version reported by the status endpoint.
func WithVersion(v string) Option { return func(o *options) { o.version = v } }

// WithScraper replaces the Torznab scraper built from the config.
func WithScraper(s queue.Scraper) Option { return func(o *options) { o.scraper = s } }

// WithDebrid replaces the Real-Debrid client built from the config.
func WithDebrid(d queue.Debrid) Option { return func(o *options) { o.debrid = d } }

// WithLibrary replaces the library oracle built from the config.
func WithLibrary(l queue.Library) Option { return func(o *options) { o.library = l } }

// Runner owns every component of the daemon.
type Runner struct {
	cfg *config.Config
	log *slog.Logger

	db        *sql.DB
	store     *item.Store
	eventLog  *events.EventLog
	bus       *events.Bus
	notWanted *notwanted.Registry
	manager   *queue.Manager
	ingester  *source.Ingester
	watcher   *library.Watcher // nil unless library.mode is watch
	scheduler *scheduler.Scheduler
	notifier  *notify.Notifier
	api       *v1.Server
}

// NewRunner opens the database and builds every component from cfg.
// The caller must Close the runner.
func NewRunner(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := migrations.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	r := &Runner{cfg: cfg, log: logger, db: db}
	if err := r.build(o); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Runner) build(o options) error {
	cfg, logger := r.cfg, r.log

	r.store = item.NewStore(r.db)
	r.eventLog = events.NewEventLog(r.db)
	r.bus = events.NewBus(r.eventLog, logger.With("component", "bus"))

	nw, err := notwanted.Open(cfg.Storage.DataDir, logger)
	if err != nil {
		return fmt.Errorf("open not-wanted registry: %w", err)
	}
	r.notWanted = nw

	if o.scraper == nil {
		o.scraper = newScraper(cfg, logger)
	}
	if o.debrid == nil {
		o.debrid = newDebrid(cfg, logger)
	}
	if o.library == nil {
		switch cfg.Library.Mode {
		case "plex":
			p := cfg.Library.Plex
			if p == nil {
				return errors.New("library mode plex requires [library.plex]")
			}
			o.library = library.NewPlex(p.URL, p.Token, p.LocalPath, p.RemotePath, logger)
		default:
			r.watcher = library.NewWatcher(cfg.Library.Roots, logger)
			o.library = r.watcher
		}
	}

	r.manager = queue.NewManager(queue.Deps{
		Store:     r.store,
		Bus:       r.bus,
		NotWanted: nw,
		Scraper:   o.scraper,
		Debrid:    o.debrid,
		Library:   o.library,
		Settings:  cfg.QueueSettings(),
		Logger:    logger,
	})

	cache, err := sourcecache.New(cfg.SourceCacheDir(),
		sourcecache.Disabled(cfg.Debug.DisableContentSourceCaching),
		sourcecache.WithLogger(logger))
	if err != nil {
		return err
	}
	r.ingester = source.NewIngester(r.manager, cache, contentSources(cfg), logger)

	tasks, err := r.taskTable().Tasks()
	if err != nil {
		return err
	}
	r.scheduler, err = scheduler.New(tasks, r.manager, logger, scheduler.WithTick(cfg.Tick()))
	if err != nil {
		return err
	}

	n := cfg.Notifications
	svc := notify.NewService(n.Endpoint, time.Duration(n.TimeoutSeconds)*time.Second)
	r.notifier = notify.NewNotifier(r.bus, svc, notify.Categories{
		Collected:     n.Collected,
		Upgraded:      n.Upgraded,
		UpgradeFailed: n.UpgradeFailed,
		Blacklisted:   n.Blacklisted,
		Paused:        n.Paused,
	}, logger)

	deps := v1.ServerDeps{
		Store:     r.store,
		Manager:   r.manager,
		Scheduler: r.scheduler,
		NotWanted: nw,
		EventLog:  r.eventLog,
		Logger:    logger,
		Version:   o.version,
	}
	if r.watcher != nil {
		deps.Library = r.watcher
	}
	r.api, err = v1.New(deps)
	return err
}

func (r *Runner) taskTable() *scheduler.Table {
	t := scheduler.NewTable(r.cfg.TaskOverrides())
	t.AddQueueTasks(r.manager)
	t.Add(scheduler.TaskContentSources, "", false, nil, r.ingester.Run)
	if r.watcher != nil {
		t.Add(scheduler.TaskLibraryRescan, "", false, nil, func(ctx context.Context) error {
			_, err := r.watcher.Rescan(ctx)
			return err
		})
	}
	if r.cfg.PurgeScheduled() {
		t.Add(scheduler.TaskPurgeNotWanted, "", false, nil, func(context.Context) error {
			return r.notWanted.PurgeAll()
		})
	}
	t.Add(scheduler.TaskPruneEvents, "", false, nil, func(ctx context.Context) error {
		n, err := r.eventLog.Prune(ctx, r.cfg.EventRetention())
		if n > 0 {
			r.log.Info("events pruned", "count", n)
		}
		return err
	})
	return t
}

func newScraper(cfg *config.Config, logger *slog.Logger) *scrape.Aggregator {
	timeout := time.Duration(cfg.Scraping.TimeoutSeconds) * time.Second
	names := make([]string, 0, len(cfg.Scraping.Indexers))
	for name := range cfg.Scraping.Indexers {
		names = append(names, name)
	}
	slices.Sort(names)

	indexers := make([]scrape.Indexer, 0, len(names))
	for _, name := range names {
		ix := cfg.Scraping.Indexers[name]
		indexers = append(indexers, torznab.NewClient(name, ix.URL, ix.APIKey, timeout, logger))
	}
	pool := scrape.NewPool(indexers, cfg.Scraping.Concurrency, timeout, logger)
	return scrape.NewAggregator(pool, cfg.ScoringProfiles(), logger)
}

func newDebrid(cfg *config.Config, logger *slog.Logger) *debrid.RealDebrid {
	d := cfg.Debrid
	opts := []debrid.RealDebridOption{debrid.WithLogger(logger.With("component", "debrid"))}
	if d.RequestsPerSecond > 0 {
		burst := d.Burst
		if burst <= 0 {
			burst = 1
		}
		opts = append(opts, debrid.WithRateLimit(d.RequestsPerSecond, burst))
	}
	if d.TimeoutSeconds > 0 {
		opts = append(opts, debrid.WithHTTPClient(&http.Client{Timeout: time.Duration(d.TimeoutSeconds) * time.Second}))
	}
	if d.CacheCheckAttempts > 0 {
		opts = append(opts, debrid.WithCacheCheck(d.CacheCheckAttempts, time.Duration(d.CacheCheckIntervalMS)*time.Millisecond))
	}
	return debrid.NewRealDebrid(d.URL, d.APIToken, opts...)
}

// contentSources builds the enabled sources. A source without a version
// gets the first configured version.
func contentSources(cfg *config.Config) []source.Source {
	var fallback string
	if versions := sortedVersions(cfg); len(versions) > 0 {
		fallback = versions[0]
	}

	var out []source.Source
	for _, name := range cfg.SourceNames() {
		sc := cfg.ContentSources[name]
		var p source.Producer
		switch sc.Type {
		case "file":
			p = source.NewFileList(sc.Path)
		default:
			var hopts []source.HTTPOption
			if sc.APIKey != "" {
				hopts = append(hopts, source.WithAPIKey(sc.APIKey))
			}
			p = source.NewHTTPList(sc.URL, hopts...)
		}
		versions := sc.VersionNames()
		if len(versions) == 0 && fallback != "" {
			versions = []string{fallback}
		}
		out = append(out, source.Source{
			Name:     name,
			Versions: versions,
			Interval: time.Duration(sc.IntervalMinutes) * time.Minute,
			Producer: p,
		})
	}
	return out
}

func sortedVersions(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Versions))
	for name := range cfg.Versions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Handler returns the HTTP handler serving the API and metrics.
func (r *Runner) Handler() http.Handler {
	mux := http.NewServeMux()
	r.api.RegisterRoutes(mux)
	return mux
}

// Scheduler returns the task scheduler.
func (r *Runner) Scheduler() *scheduler.Scheduler { return r.scheduler }

// Manager returns the queue manager.
func (r *Runner) Manager() *queue.Manager { return r.manager }

// Run loads the queues and runs every component until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.manager.Update(ctx); err != nil {
		return fmt.Errorf("load queues: %w", err)
	}
	sizes := r.manager.Sizes()
	r.log.Info("server starting",
		"addr", r.cfg.Address(),
		"database", r.cfg.Database.Path,
		"library_mode", r.cfg.Library.Mode,
		"indexers", len(r.cfg.Scraping.Indexers),
		"content_sources", len(r.cfg.SourceNames()),
		"wanted", sizes[queue.NameWanted],
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.scheduler.Run(ctx) })
	g.Go(func() error { return r.notifier.Run(ctx) })
	if r.watcher != nil {
		g.Go(func() error { return r.watcher.Run(ctx) })
	}

	srv := &http.Server{
		Addr:              r.cfg.Address(),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	r.log.Info("server stopped")
	return err
}

// Close releases the event bus and the database.
func (r *Runner) Close() error {
	return errors.Join(r.bus.Close(), r.db.Close())
}
