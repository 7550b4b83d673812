package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/vmunix/reelq/internal/events"
	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/metrics"
	"github.com/vmunix/reelq/internal/scrape"
)

// Pause error types.
const (
	PauseTooManyDownloads = "TooManyDownloads"
	PauseUnavailable      = "Unavailable"
	PauseInvalidToken     = "InvalidToken"
	PauseManual           = "Manual"
	PauseBulk             = "Bulk"
)

// PauseInfo describes why processing stopped.
type PauseInfo struct {
	Reason    string    `json:"reason"`
	ErrorType string    `json:"error_type,omitempty"`
	Service   string    `json:"service,omitempty"`
	Since     time.Time `json:"since"`
}

// Fill is what an acquisition writes onto an item.
type Fill struct {
	Title     string
	Magnet    string
	File      string
	TorrentID string
}

// Collection is what the library reported for a confirmed item.
type Collection struct {
	Location     string
	OriginalPath string
}

// Deps are the collaborators of a Manager.
type Deps struct {
	Store     *item.Store
	Bus       *events.Bus
	NotWanted NotWanted
	Scraper   Scraper
	Debrid    Debrid
	Library   Library
	Settings  Settings
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Manager owns the in-memory queues and performs every state transition.
type Manager struct {
	store     *item.Store
	bus       *events.Bus
	notWanted NotWanted
	scraper   Scraper
	debrid    Debrid
	library   Library
	settings  Settings
	log       *slog.Logger
	now       func() time.Time

	// mu serializes transitions so the store and the in-memory queues
	// never disagree.
	mu     sync.Mutex
	lists  map[item.State]*list
	queues []Queue

	upgrading *Upgrading

	ctrlMu         sync.RWMutex
	pause          *PauseInfo
	locks          map[int64]struct{}
	debridFailures int
}

// NewManager wires the nine queues around d.
func NewManager(d Deps) *Manager {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	m := &Manager{
		store:     d.Store,
		bus:       d.Bus,
		notWanted: d.NotWanted,
		scraper:   d.Scraper,
		debrid:    d.Debrid,
		library:   d.Library,
		settings:  d.Settings.normalize(),
		log:       d.Logger.With("component", "queue"),
		now:       d.Clock,
		lists:     make(map[item.State]*list),
		locks:     make(map[int64]struct{}),
	}

	wanted := &Wanted{list: m.newList(NameWanted, item.StateWanted)}
	scraping := &Scraping{list: m.newList(NameScraping, item.StateScraping)}
	adding := &Adding{list: m.newList(NameAdding, item.StateAdding)}
	checking := &Checking{list: m.newList(NameChecking, item.StateChecking)}
	sleeping := &Sleeping{list: m.newList(NameSleeping, item.StateSleeping)}
	unreleased := &Unreleased{list: m.newList(NameUnreleased, item.StateUnreleased)}
	pending := &PendingUncached{list: m.newList(NamePendingUncached, item.StatePendingUncached)}
	blacklisted := &Blacklisted{list: m.newList(NameBlacklisted, item.StateBlacklisted)}
	m.upgrading = &Upgrading{list: newList(NameUpgrading, item.StateCollected, m.store), m: m}

	m.queues = []Queue{wanted, scraping, adding, checking, sleeping, unreleased, pending, blacklisted, m.upgrading}
	return m
}

func (m *Manager) newList(name string, state item.State) *list {
	l := newList(name, state, m.store)
	m.lists[state] = l
	return l
}

// Settings returns the normalized settings in use.
func (m *Manager) Settings() Settings { return m.settings }

// Store returns the item store.
func (m *Manager) Store() *item.Store { return m.store }

// Queues returns every queue in processing order.
func (m *Manager) Queues() []Queue { return m.queues }

// Queue returns the queue called name.
func (m *Manager) Queue(name string) (Queue, bool) {
	for _, q := range m.queues {
		if q.Name() == name {
			return q, true
		}
	}
	return nil, false
}

// Update reloads every queue from the store.
func (m *Manager) Update(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, q := range m.queues {
		if err := q.Update(ctx); err != nil {
			errs = append(errs, fmt.Errorf("update %s: %w", q.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Sizes returns the number of items held by each queue.
func (m *Manager) Sizes() map[string]int {
	out := make(map[string]int, len(m.queues))
	for _, l := range m.lists {
		out[l.name] = l.len()
	}
	out[NameUpgrading] = m.upgrading.len()
	return out
}

// Pause stops pausable processing until Resume.
func (m *Manager) Pause(ctx context.Context, info PauseInfo) {
	m.pauseWith(ctx, info)
}

// pauseWith installs info as the active pause and returns it, so the
// caller can later resume only its own pause.
func (m *Manager) pauseWith(ctx context.Context, info PauseInfo) *PauseInfo {
	if info.Since.IsZero() {
		info.Since = m.now()
	}
	p := &info
	m.ctrlMu.Lock()
	m.pause = p
	m.ctrlMu.Unlock()

	metrics.SetPaused(true)
	m.log.Warn("queue paused", "reason", info.Reason, "error_type", info.ErrorType, "service", info.Service)
	m.publish(ctx, &events.QueuePaused{
		BaseEvent: events.NewBaseEventAt(events.EventQueuePaused, events.EntityQueue, 0, info.Since),
		Reason:    info.Reason,
		ErrorType: info.ErrorType,
		Service:   info.Service,
	})
	return p
}

// Resume restarts processing. Resuming a running queue is a no-op.
func (m *Manager) Resume(ctx context.Context, reason string) {
	m.resume(ctx, reason, nil)
}

// resume clears the active pause. A non-nil own only clears that exact
// pause; a pause raised by someone else in the meantime stays.
func (m *Manager) resume(ctx context.Context, reason string, own *PauseInfo) {
	m.ctrlMu.Lock()
	was := m.pause
	if was == nil || (own != nil && was != own) {
		m.ctrlMu.Unlock()
		return
	}
	m.pause = nil
	m.debridFailures = 0
	m.ctrlMu.Unlock()

	metrics.SetPaused(false)
	m.log.Info("queue resumed", "reason", reason, "paused_for", m.now().Sub(was.Since).Round(time.Second))
	m.publish(ctx, &events.QueueResumed{
		BaseEvent: events.NewBaseEventAt(events.EventQueueResumed, events.EntityQueue, 0, m.now()),
		Reason:    reason,
	})
}

// Paused reports whether processing is paused.
func (m *Manager) Paused() bool {
	m.ctrlMu.RLock()
	defer m.ctrlMu.RUnlock()
	return m.pause != nil
}

// PauseInfo returns the active pause, or nil.
func (m *Manager) PauseInfo() *PauseInfo {
	m.ctrlMu.RLock()
	defer m.ctrlMu.RUnlock()
	if m.pause == nil {
		return nil
	}
	p := *m.pause
	return &p
}

// LockUpgrade marks id as owned by an upgrade attempt.
func (m *Manager) LockUpgrade(id int64) {
	m.ctrlMu.Lock()
	defer m.ctrlMu.Unlock()
	m.locks[id] = struct{}{}
}

// UnlockUpgrade releases the upgrade lock on id.
func (m *Manager) UnlockUpgrade(id int64) {
	m.ctrlMu.Lock()
	defer m.ctrlMu.Unlock()
	delete(m.locks, id)
}

// UpgradeLocked reports whether an upgrade attempt owns id.
func (m *Manager) UpgradeLocked(id int64) bool {
	m.ctrlMu.RLock()
	defer m.ctrlMu.RUnlock()
	_, ok := m.locks[id]
	return ok
}

// debridFailed counts one transient debrid failure and pauses at the limit.
func (m *Manager) debridFailed(ctx context.Context, err error) {
	m.ctrlMu.Lock()
	m.debridFailures++
	n := m.debridFailures
	m.ctrlMu.Unlock()

	m.log.Warn("debrid unavailable", "failures", n, "limit", m.settings.DebridFailureLimit, "error", err)
	if n >= m.settings.DebridFailureLimit && !m.Paused() {
		m.Pause(ctx, PauseInfo{Reason: err.Error(), ErrorType: PauseUnavailable, Service: "debrid"})
	}
}

func (m *Manager) debridOK() {
	m.ctrlMu.Lock()
	m.debridFailures = 0
	m.ctrlMu.Unlock()
}

func (m *Manager) publish(ctx context.Context, e events.Event) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, e); err != nil {
		m.log.Warn("publish event failed", "type", e.EventType(), "error", err)
	}
}

// move performs one transition and keeps the in-memory queues in step.
func (m *Manager) move(ctx context.Context, it *item.MediaItem, from, to item.State, f item.Fields) (*item.MediaItem, error) {
	m.mu.Lock()
	updated, err := m.store.Transition(ctx, it.ID, from, to, f)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("move item %d to %s: %w", it.ID, to, err)
	}
	m.relocateLocked(updated, from)
	m.mu.Unlock()

	m.transitioned(ctx, updated, from, to)
	return updated, nil
}

// relocateLocked moves the in-memory copy of it out of from's queue and into
// the queue of its current state. Callers hold m.mu.
func (m *Manager) relocateLocked(it *item.MediaItem, from item.State) {
	if l, ok := m.lists[from]; ok {
		l.remove(it.ID)
	}
	m.upgrading.remove(it.ID)
	if l, ok := m.lists[it.State]; ok {
		l.put(it.Clone())
	}
	if it.State == item.StateCollected && m.upgrading.eligible(it) {
		m.upgrading.put(it.Clone())
	}
}

func (m *Manager) transitioned(ctx context.Context, it *item.MediaItem, from, to item.State) {
	metrics.IncTransition(string(from), string(to))
	m.log.Debug("item moved", "item_id", it.ID, "title", it.DisplayName(), "from", from, "to", to)
	m.publish(ctx, &events.StateChanged{
		BaseEvent: events.NewBaseEventAt(events.EventStateChanged, events.EntityItem, it.ID, m.now()),
		Title:     it.DisplayName(),
		From:      string(from),
		To:        string(to),
	})
}

// AddItem inserts a new item, Wanted unless it carries another state, and
// places it in its queue.
func (m *Manager) AddItem(ctx context.Context, it *item.MediaItem) (*item.MediaItem, error) {
	m.mu.Lock()
	if _, err := m.store.Add(ctx, it); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.relocateLocked(it, it.State)
	m.mu.Unlock()

	m.log.Info("item added", "item_id", it.ID, "title", it.DisplayName(), "version", it.Version, "source", it.ContentSource)
	m.publish(ctx, &events.ItemAdded{
		BaseEvent:     events.NewBaseEventAt(events.EventItemAdded, events.EntityItem, it.ID, m.now()),
		Title:         it.DisplayName(),
		MediaType:     string(it.Type),
		Version:       it.Version,
		ContentSource: it.ContentSource,
	})
	return it.Clone(), nil
}

// MoveToWanted returns it to Wanted and clears its blacklisted date.
func (m *Manager) MoveToWanted(ctx context.Context, it *item.MediaItem, from item.State) (*item.MediaItem, error) {
	return m.toWanted(ctx, it, from, nil)
}

func (m *Manager) toWanted(ctx context.Context, it *item.MediaItem, from item.State, extra item.Fields) (*item.MediaItem, error) {
	f := item.Fields{item.ColBlacklistedDate: nil}.Merge(extra)
	return m.move(ctx, it, from, item.StateWanted, f)
}

// MoveToScraping queues it for a scrape.
func (m *Manager) MoveToScraping(ctx context.Context, it *item.MediaItem, from item.State) (*item.MediaItem, error) {
	return m.move(ctx, it, from, item.StateScraping, nil)
}

// MoveToAdding stores the ranked candidates and queues it for submission.
func (m *Manager) MoveToAdding(ctx context.Context, it *item.MediaItem, from item.State, results []item.Candidate) (*item.MediaItem, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("move item %d to adding: no candidates", it.ID)
	}
	return m.move(ctx, it, from, item.StateAdding, item.Fields{
		item.ColScrapeResults: results,
		item.ColFilledByTitle: results[0].Title,
	})
}

// MoveToChecking records the acquired torrent and waits for the library.
func (m *Manager) MoveToChecking(ctx context.Context, it *item.MediaItem, from item.State, fill Fill) (*item.MediaItem, error) {
	return m.move(ctx, it, from, item.StateChecking, item.Fields{
		item.ColFilledByTitle:               fill.Title,
		item.ColFilledByMagnet:              item.Str(fill.Magnet),
		item.ColFilledByFile:                item.Str(fill.File),
		item.ColFilledByTorrentID:           item.Str(fill.TorrentID),
		item.ColOriginalScrapedTorrentTitle: fill.Title,
		item.ColScrapeResults:               nil,
	})
}

// MoveToSleeping parks it until the sleep duration has passed.
func (m *Manager) MoveToSleeping(ctx context.Context, it *item.MediaItem, from item.State) (*item.MediaItem, error) {
	return m.move(ctx, it, from, item.StateSleeping, item.ClearFill().Merge(item.Fields{item.ColScrapeResults: nil}))
}

// MoveToUnreleased parks it until its release approaches.
func (m *Manager) MoveToUnreleased(ctx context.Context, it *item.MediaItem, from item.State) (*item.MediaItem, error) {
	return m.move(ctx, it, from, item.StateUnreleased, nil)
}

// MoveToPendingUncached keeps the uncached candidate for a later download.
func (m *Manager) MoveToPendingUncached(ctx context.Context, it *item.MediaItem, from item.State, fill Fill) (*item.MediaItem, error) {
	return m.move(ctx, it, from, item.StatePendingUncached, item.Fields{
		item.ColFilledByTitle:  fill.Title,
		item.ColFilledByMagnet: item.Str(fill.Magnet),
	})
}

// MoveToBlacklisted parks it as unobtainable.
func (m *Manager) MoveToBlacklisted(ctx context.Context, it *item.MediaItem, from item.State) (*item.MediaItem, error) {
	return m.blacklist(ctx, it, from, "")
}

func (m *Manager) blacklist(ctx context.Context, it *item.MediaItem, from item.State, reason string) (*item.MediaItem, error) {
	updated, err := m.move(ctx, it, from, item.StateBlacklisted, item.Fields{item.ColBlacklistedDate: m.now()})
	if err != nil {
		return nil, err
	}
	m.log.Info("item blacklisted", "item_id", it.ID, "title", it.DisplayName(), "reason", reason)
	m.publish(ctx, &events.ItemBlacklisted{
		BaseEvent: events.NewBaseEventAt(events.EventItemBlacklisted, events.EntityItem, it.ID, m.now()),
		Title:     it.DisplayName(),
		Reason:    reason,
	})
	return updated, nil
}

// MoveToCollected records the library location. For an upgrade the
// replaced file and torrent are removed and one snapshot is consumed.
func (m *Manager) MoveToCollected(ctx context.Context, it *item.MediaItem, from item.State, c Collection) (*item.MediaItem, error) {
	now := m.now()
	f := item.Fields{
		item.ColCollectedAt:            now,
		item.ColLocationOnDisk:         item.Str(c.Location),
		item.ColOriginalPathForSymlink: item.Str(c.OriginalPath),
	}
	if it.OriginalCollectedAt == nil {
		f[item.ColOriginalCollectedAt] = now
	}
	upgrade := it.UpgradingFrom != nil

	updated, err := m.move(ctx, it, from, item.StateCollected, f)
	if err != nil {
		return nil, err
	}
	m.log.Info("item collected", "item_id", it.ID, "title", it.DisplayName(), "location", c.Location)
	m.publish(ctx, &events.ItemCollected{
		BaseEvent: events.NewBaseEventAt(events.EventItemCollected, events.EntityItem, it.ID, now),
		Title:     it.DisplayName(),
		Version:   it.Version,
		Torrent:   item.Deref(it.FilledByTitle),
		Location:  c.Location,
	})
	if upgrade {
		m.finishUpgrade(ctx, it, c.Location)
	}
	return updated, nil
}

// InitiateFinalCheckOrBlacklist scrapes it one last time. Results go to
// Adding; nothing found blacklists it along with old siblings.
func (m *Manager) InitiateFinalCheckOrBlacklist(ctx context.Context, it *item.MediaItem, from item.State) (*item.MediaItem, error) {
	results, err := m.scrapeItem(ctx, it, m.isMultiPack(it))
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		m.log.Info("final check found releases", "item_id", it.ID, "title", it.DisplayName(), "candidates", len(results))
		return m.MoveToAdding(ctx, it, from, results)
	}
	updated, err := m.blacklist(ctx, it, from, "no releases after final check")
	if err != nil {
		return nil, err
	}
	m.blacklistSiblings(ctx, it)
	return updated, nil
}

// blacklistSiblings blacklists other episodes of the same season and
// version that are still unfound and released more than a week ago.
func (m *Manager) blacklistSiblings(ctx context.Context, it *item.MediaItem) {
	if !it.IsEpisode() {
		return
	}
	cutoff := m.now().Add(-siblingBlacklistAge)
	for _, st := range []item.State{item.StateWanted, item.StateScraping, item.StateSleeping, item.StateUnreleased} {
		for _, sib := range m.lists[st].snapshot() {
			if !sameSeason(it, sib) || sib.ID == it.ID {
				continue
			}
			if sib.ReleaseDate == nil || !sib.ReleaseDate.Before(cutoff) {
				continue
			}
			if _, err := m.blacklist(ctx, sib, st, "season sibling not found"); err != nil {
				m.log.Warn("blacklist sibling failed", "item_id", sib.ID, "error", err)
			}
		}
	}
}

// sameSeason reports whether a and b are episodes of one season and version.
func sameSeason(a, b *item.MediaItem) bool {
	if !a.IsEpisode() || !b.IsEpisode() {
		return false
	}
	ia, ib := a.Identity(), b.Identity()
	return ia.ExternalID == ib.ExternalID && ia.Season == ib.Season && ia.Version == ib.Version
}

// isMultiPack reports whether another Wanted or Scraping episode shares
// its season and version, so a season pack is worth searching for.
func (m *Manager) isMultiPack(it *item.MediaItem) bool {
	if !it.IsEpisode() || it.FallBackToSingleScraper {
		return false
	}
	for _, st := range []item.State{item.StateWanted, item.StateScraping} {
		for _, other := range m.lists[st].snapshot() {
			if other.ID != it.ID && sameSeason(it, other) {
				return true
			}
		}
	}
	return false
}

// rejected reports whether the not-wanted registry excludes c for it.
func (m *Manager) rejected(it *item.MediaItem, c item.Candidate) bool {
	if it.DisableNotWantedCheck || m.notWanted == nil {
		return false
	}
	url := ""
	if item.IsHTTP(c.URL) {
		url = c.URL
	}
	return m.notWanted.Rejects(c.InfoHash(), url)
}

// markNotWanted records the hash of link and any known hashes of the same
// release, and link itself when it is a URL.
func (m *Manager) markNotWanted(link string, hashes ...string) {
	if m.notWanted == nil || link == "" {
		return
	}
	var seen []string
	for _, h := range append([]string{item.HashFromMagnet(link)}, hashes...) {
		h = item.NormalizeHash(h)
		if h == "" || slices.Contains(seen, h) {
			continue
		}
		seen = append(seen, h)
		if err := m.notWanted.AddHash(h); err != nil {
			m.log.Warn("record not wanted hash failed", "hash", h, "error", err)
		}
	}
	if item.IsHTTP(link) {
		if err := m.notWanted.AddURL(link); err != nil {
			m.log.Warn("record not wanted url failed", "url", link, "error", err)
		}
	}
}

// candidateHash returns the info hash of the stored candidate submitted as
// link, or "".
func candidateHash(it *item.MediaItem, link string) string {
	for _, c := range it.ScrapeResults {
		if c.Link() == link {
			return c.InfoHash()
		}
	}
	return ""
}

// scrapeItem scrapes it and applies the exclusion filters. An empty
// multi-pack scrape is retried once in single mode and the fallback is
// persisted on the item.
func (m *Manager) scrapeItem(ctx context.Context, it *item.MediaItem, multi bool) ([]item.Candidate, error) {
	res, err := m.scraper.Scrape(ctx, *it, scrape.Options{MultiPack: multi})
	if err != nil {
		return nil, fmt.Errorf("scrape item %d: %w", it.ID, err)
	}
	results := m.filter(it, res.Candidates)
	if len(results) > 0 || !multi {
		return results, nil
	}

	res, err = m.scraper.Scrape(ctx, *it, scrape.Options{})
	if err != nil {
		return nil, fmt.Errorf("scrape item %d: %w", it.ID, err)
	}
	results = m.filter(it, res.Candidates)
	if len(results) > 0 {
		if err := m.store.Update(ctx, it.ID, item.Fields{item.ColFallBackToSingleScraper: true}); err != nil {
			m.log.Warn("persist single scraper fallback failed", "item_id", it.ID, "error", err)
		}
		it.FallBackToSingleScraper = true
	}
	return results, nil
}

func (m *Manager) filter(it *item.MediaItem, cands []item.Candidate) []item.Candidate {
	skip := item.Deref(it.RescrapeOriginalTorrentTitle)
	out := make([]item.Candidate, 0, len(cands))
	for _, c := range cands {
		if skip != "" && c.Title == skip {
			continue
		}
		if m.rejected(it, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
