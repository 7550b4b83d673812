package queue

import (
	"context"

	"github.com/vmunix/reelq/internal/item"
)

// Scraping holds items due for an indexer search. One item is scraped per tick.
type Scraping struct {
	*list
}

// Process scrapes the first unlocked item. Results go to Adding, an empty
// search goes to Sleeping. Scraper errors leave the item in place.
func (q *Scraping) Process(ctx context.Context, m *Manager) error {
	if m.Paused() {
		return nil
	}
	it := q.next(m)
	if it == nil {
		return nil
	}
	results, err := m.scrapeItem(ctx, it, m.isMultiPack(it))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		m.log.Info("no releases found", "item_id", it.ID, "title", it.DisplayName())
		_, err = m.MoveToSleeping(ctx, it, item.StateScraping)
		return err
	}
	m.log.Info("releases found", "item_id", it.ID, "title", it.DisplayName(), "candidates", len(results), "best", results[0].Title)
	_, err = m.MoveToAdding(ctx, it, item.StateScraping, results)
	return err
}

// next returns the first item not owned by an upgrade attempt.
func (l *list) next(m *Manager) *item.MediaItem {
	for _, it := range l.snapshot() {
		if !m.UpgradeLocked(it.ID) {
			return it
		}
	}
	return nil
}
