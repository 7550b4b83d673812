package queue

import (
	"context"
	"errors"

	"github.com/vmunix/reelq/internal/item"
)

// Checking holds acquired items until the library confirms them.
type Checking struct {
	*list
}

// Process asks the library about every item. Confirmed items are
// collected; items past the check timeout are retried from Wanted with
// their torrent marked not wanted, or have their upgrade rolled back.
func (q *Checking) Process(ctx context.Context, m *Manager) error {
	if m.Paused() {
		return nil
	}
	now := m.now()
	var errs []error
	for _, it := range q.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		conf, err := m.library.ConfirmCollected(ctx, *it)
		if err != nil {
			m.log.Warn("library check failed", "item_id", it.ID, "title", it.DisplayName(), "error", err)
			continue
		}
		if conf.Collected {
			if _, err := m.MoveToCollected(ctx, it, item.StateChecking, Collection{Location: conf.Location, OriginalPath: conf.OriginalPath}); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if now.Sub(it.StateEnteredAt) < m.settings.CheckTimeout {
			continue
		}
		if err := m.checkTimedOut(ctx, it); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) checkTimedOut(ctx context.Context, it *item.MediaItem) error {
	if it.UpgradingFrom != nil {
		failed := []item.Candidate{{Title: item.Deref(it.FilledByTitle), Magnet: item.Deref(it.FilledByMagnet)}}
		return rolledBack(m.failUpgrade(ctx, it, item.StateChecking, failed, "library never confirmed the upgrade"))
	}

	m.log.Info("checking timed out", "item_id", it.ID, "title", it.DisplayName(), "torrent", item.Deref(it.FilledByTitle))
	m.markNotWanted(item.Deref(it.FilledByMagnet))
	m.removeTorrent(ctx, item.Deref(it.FilledByTorrentID))
	_, err := m.toWanted(ctx, it, item.StateChecking, item.Fields{
		item.ColRescrapeOriginalTorrentTitle: item.Str(item.Deref(it.FilledByTitle)),
	})
	return err
}
