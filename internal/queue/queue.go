// Package queue runs the item lifecycle: one queue per state, a Manager that
// owns every transition, and the upgrade engine that swaps collected files
// for better releases.
package queue

//go:generate mockgen -destination=mocks/debrid_mock.go -package=mocks github.com/vmunix/reelq/internal/queue Debrid

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/vmunix/reelq/internal/debrid"
	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/library"
	"github.com/vmunix/reelq/internal/scrape"
)

// ErrUpgradeFailed is returned when an upgrade attempt was rolled back.
var ErrUpgradeFailed = errors.New("upgrade failed")

// Queue names. Each state queue is named after its state.
const (
	NameWanted          = string(item.StateWanted)
	NameScraping        = string(item.StateScraping)
	NameAdding          = string(item.StateAdding)
	NameChecking        = string(item.StateChecking)
	NameSleeping        = string(item.StateSleeping)
	NameUnreleased      = string(item.StateUnreleased)
	NamePendingUncached = string(item.StatePendingUncached)
	NameBlacklisted     = string(item.StateBlacklisted)
	NameUpgrading       = "upgrading"
)

// Queue is one stage of the lifecycle.
type Queue interface {
	Name() string
	// Update reloads the in-memory contents from the item store.
	Update(ctx context.Context) error
	// Contents returns a copy of the items currently held.
	Contents() []item.MediaItem
	// Process advances items by at most one stage through the manager.
	// It returns immediately while the manager is paused.
	Process(ctx context.Context, m *Manager) error
}

// Scraper finds ranked release candidates for an item.
type Scraper interface {
	Scrape(ctx context.Context, it item.MediaItem, opts scrape.Options) (scrape.Result, error)
}

// Debrid submits torrents to a debrid service.
type Debrid interface {
	AddTorrent(ctx context.Context, link string, opts debrid.AddOptions) (string, error)
	TorrentInfo(ctx context.Context, id string) (*debrid.TorrentInfo, error)
	ActiveDownloads(ctx context.Context) (count, limit int, err error)
	RemoveTorrent(ctx context.Context, id string) error
}

// Library confirms collected files and removes replaced ones.
type Library interface {
	ConfirmCollected(ctx context.Context, it item.MediaItem) (library.Confirmation, error)
	RemoveFile(ctx context.Context, title, path, episodeTitle string) error
}

// NotWanted is the exclusion registry consulted for every candidate.
type NotWanted interface {
	Rejects(hash, url string) bool
	AddHash(hash string) error
	AddURL(url string) error
}

// list is the in-memory contents of one queue, ordered like the store
// lists them: force_priority first, then insertion order.
type list struct {
	name  string
	state item.State
	store *item.Store

	mu    sync.Mutex
	items []*item.MediaItem
}

func newList(name string, state item.State, store *item.Store) *list {
	return &list{name: name, state: state, store: store}
}

func (l *list) Name() string { return l.name }

func (l *list) set(items []*item.MediaItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = items
	l.sortLocked()
}

func (l *list) sortLocked() {
	slices.SortStableFunc(l.items, func(a, b *item.MediaItem) int {
		if a.ForcePriority != b.ForcePriority {
			if a.ForcePriority {
				return -1
			}
			return 1
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

// put inserts or replaces it.
func (l *list) put(it *item.MediaItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, existing := range l.items {
		if existing.ID == it.ID {
			l.items[i] = it
			l.sortLocked()
			return
		}
	}
	l.items = append(l.items, it)
	l.sortLocked()
}

func (l *list) remove(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = slices.DeleteFunc(l.items, func(it *item.MediaItem) bool { return it.ID == id })
}

func (l *list) has(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.ContainsFunc(l.items, func(it *item.MediaItem) bool { return it.ID == id })
}

func (l *list) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// snapshot returns deep copies safe to hand to Process loops.
func (l *list) snapshot() []*item.MediaItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*item.MediaItem, len(l.items))
	for i, it := range l.items {
		out[i] = it.Clone()
	}
	return out
}

func (l *list) Contents() []item.MediaItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]item.MediaItem, len(l.items))
	for i, it := range l.items {
		out[i] = *it.Clone()
	}
	return out
}

// Update replaces the contents with the store's rows in the list's state.
func (l *list) Update(ctx context.Context) error {
	items, err := l.store.ListByState(ctx, l.state, nil)
	if err != nil {
		return err
	}
	l.set(items)
	return nil
}
