package queue

import (
	"context"
	"errors"

	"github.com/vmunix/reelq/internal/debrid"
	"github.com/vmunix/reelq/internal/item"
)

// PendingUncached holds items whose chosen release must be downloaded by
// the debrid service before it can be streamed.
type PendingUncached struct {
	*list
}

// Process submits pending torrents with uncached downloads allowed while
// the debrid account has free slots. The release is recorded as not
// wanted whatever the outcome, so a failed download is never retried.
func (q *PendingUncached) Process(ctx context.Context, m *Manager) error {
	if m.Paused() {
		return nil
	}
	items := q.snapshot()
	if len(items) == 0 {
		return nil
	}
	count, limit, err := m.debrid.ActiveDownloads(ctx)
	if err != nil {
		m.debridError(ctx, err)
		return nil
	}

	var errs []error
	for _, it := range items {
		if limit > 0 && count >= limit {
			m.log.Debug("debrid download slots full", "active", count, "limit", limit)
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		link := item.Deref(it.FilledByMagnet)
		known := candidateHash(it, link)
		id, err := m.debrid.AddTorrent(ctx, link, debrid.AddOptions{AllowUncached: true})
		if errors.Is(err, debrid.ErrTooManyDownloads) {
			m.debridError(ctx, err)
			break
		}
		if err != nil {
			m.log.Info("uncached download failed", "item_id", it.ID, "title", it.DisplayName(), "error", err)
			m.markNotWanted(link, known)
			if _, err := m.MoveToWanted(ctx, it, item.StatePendingUncached); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		count++

		started, err := m.startUncached(ctx, it, id, link)
		if err != nil {
			errs = append(errs, err)
		}
		m.markNotWanted(link, known, started)
	}
	return errors.Join(errs...)
}

// startUncached moves it to Checking on torrent id. It returns the info
// hash reported by the debrid service, when it answered.
func (m *Manager) startUncached(ctx context.Context, it *item.MediaItem, id, link string) (string, error) {
	info, err := m.debrid.TorrentInfo(ctx, id)
	if err != nil {
		m.removeTorrent(ctx, id)
		_, merr := m.MoveToWanted(ctx, it, item.StatePendingUncached)
		return "", errors.Join(err, merr)
	}
	file, ok := matchFile(it, info)
	if !ok {
		m.log.Info("uncached torrent has no matching file", "item_id", it.ID, "torrent_id", id)
		m.removeTorrent(ctx, id)
		_, err := m.MoveToWanted(ctx, it, item.StatePendingUncached)
		return info.Hash, err
	}
	fill := Fill{Title: item.Deref(it.FilledByTitle), Magnet: link, File: debrid.FileName(file.Path), TorrentID: id}
	if _, err := m.MoveToChecking(ctx, it, item.StatePendingUncached, fill); err != nil {
		return info.Hash, err
	}
	m.log.Info("uncached download started", "item_id", it.ID, "title", it.DisplayName(), "torrent_id", id)
	m.adoptRelated(ctx, it, info, fill)
	return info.Hash, nil
}
