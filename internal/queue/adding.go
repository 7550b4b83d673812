package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmunix/reelq/internal/debrid"
	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/pkg/release"
)

// addOutcome is the result of one Adding step.
type addOutcome int

const (
	// addDeferred leaves the item in Adding for the next tick.
	addDeferred addOutcome = iota
	addChecking
	addPending
	addExhausted
)

// Adding holds items with ranked candidates waiting for submission.
type Adding struct {
	*list
}

// Process submits candidates of the first unlocked item until one lands
// on the debrid service. Items that run out of candidates go to Sleeping,
// or fail their upgrade.
func (q *Adding) Process(ctx context.Context, m *Manager) error {
	if m.Paused() {
		return nil
	}
	it := q.next(m)
	if it == nil {
		return nil
	}
	outcome, err := m.add(ctx, it)
	if err != nil {
		return err
	}
	if outcome != addExhausted {
		return nil
	}
	if it.UpgradingFrom != nil {
		return rolledBack(m.failUpgrade(ctx, it, item.StateAdding, it.ScrapeResults, "no candidate could be added"))
	}
	m.log.Info("no candidate could be added", "item_id", it.ID, "title", it.DisplayName(), "candidates", len(it.ScrapeResults))
	_, err = m.MoveToSleeping(ctx, it, item.StateAdding)
	return err
}

// add runs the Adding step for it, which must be in Adding.
func (m *Manager) add(ctx context.Context, it *item.MediaItem) (addOutcome, error) {
	count, limit, err := m.debrid.ActiveDownloads(ctx)
	if err != nil {
		return m.debridError(ctx, err), nil
	}
	if limit > 0 && count >= limit {
		m.Pause(ctx, PauseInfo{
			Reason:    fmt.Sprintf("%d of %d debrid downloads active", count, limit),
			ErrorType: PauseTooManyDownloads,
			Service:   "debrid",
		})
		return addDeferred, nil
	}

	upgrade := it.UpgradingFrom != nil
	for _, c := range it.ScrapeResults {
		if m.rejected(it, c) {
			continue
		}
		link := c.Link()
		id, err := m.debrid.AddTorrent(ctx, link, debrid.AddOptions{})
		switch {
		case err == nil:
		case errors.Is(err, debrid.ErrUncached):
			if m.settings.AllowUncached && !upgrade {
				if _, err := m.MoveToPendingUncached(ctx, it, item.StateAdding, Fill{Title: c.Title, Magnet: link}); err != nil {
					return addDeferred, err
				}
				return addPending, nil
			}
			m.log.Debug("candidate not cached", "item_id", it.ID, "candidate", c.Title)
			continue
		case errors.Is(err, debrid.ErrTorrentFailed):
			m.log.Info("candidate rejected by debrid", "item_id", it.ID, "candidate", c.Title, "error", err)
			m.markNotWanted(link, c.InfoHash())
			continue
		default:
			return m.debridError(ctx, err), nil
		}
		m.debridOK()

		info, err := m.debrid.TorrentInfo(ctx, id)
		if err != nil {
			m.removeTorrent(ctx, id)
			return m.debridError(ctx, err), nil
		}
		file, ok := matchFile(it, info)
		if !ok {
			m.log.Info("torrent has no matching file", "item_id", it.ID, "candidate", c.Title, "torrent_id", id)
			m.removeTorrent(ctx, id)
			m.markNotWanted(link, c.InfoHash(), info.Hash)
			continue
		}

		fill := Fill{Title: c.Title, Magnet: link, File: debrid.FileName(file.Path), TorrentID: id}
		checked, err := m.MoveToChecking(ctx, it, item.StateAdding, fill)
		if err != nil {
			return addDeferred, err
		}
		m.log.Info("torrent added", "item_id", it.ID, "title", it.DisplayName(), "candidate", c.Title, "torrent_id", id, "file", fill.File)
		if upgrade {
			m.upgradeReachedChecking(ctx, checked)
		}
		m.adoptRelated(ctx, it, info, fill)
		return addChecking, nil
	}
	return addExhausted, nil
}

// debridError maps a failed debrid call to a pause or a retry.
func (m *Manager) debridError(ctx context.Context, err error) addOutcome {
	switch {
	case errors.Is(err, debrid.ErrTooManyDownloads):
		m.Pause(ctx, PauseInfo{Reason: err.Error(), ErrorType: PauseTooManyDownloads, Service: "debrid"})
	case errors.Is(err, debrid.ErrInvalidToken):
		m.Pause(ctx, PauseInfo{Reason: err.Error(), ErrorType: PauseInvalidToken, Service: "debrid"})
	default:
		m.debridFailed(ctx, err)
	}
	return addDeferred
}

func (m *Manager) removeTorrent(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := m.debrid.RemoveTorrent(ctx, id); err != nil && !errors.Is(err, debrid.ErrNotFound) {
		m.log.Warn("remove torrent failed", "torrent_id", id, "error", err)
	}
}

// matchFile picks the file of info that belongs to it: the episode's own
// file, or the largest video for a movie.
func matchFile(it *item.MediaItem, info *debrid.TorrentInfo) (release.File, bool) {
	files := info.ReleaseFiles()
	if it.IsEpisode() {
		return release.EpisodeFile(files, it.Season(), it.Episode())
	}
	return release.LargestVideo(files)
}

// adoptRelated moves other wanted episodes of the same season that the
// torrent also contains into Checking. A failed move does not undo the
// primary item.
func (m *Manager) adoptRelated(ctx context.Context, primary *item.MediaItem, info *debrid.TorrentInfo, fill Fill) {
	if !primary.IsEpisode() || primary.UpgradingFrom != nil {
		return
	}
	for _, st := range []item.State{item.StateWanted, item.StateScraping} {
		for _, sib := range m.lists[st].snapshot() {
			if sib.ID == primary.ID || !sameSeason(primary, sib) || m.UpgradeLocked(sib.ID) {
				continue
			}
			file, ok := release.EpisodeFile(info.ReleaseFiles(), sib.Season(), sib.Episode())
			if !ok {
				continue
			}
			f := fill
			f.File = debrid.FileName(file.Path)
			if _, err := m.MoveToChecking(ctx, sib, st, f); err != nil {
				m.log.Warn("adopt related episode failed", "item_id", sib.ID, "torrent_id", fill.TorrentID, "error", err)
				continue
			}
			m.log.Info("related episode adopted", "item_id", sib.ID, "title", sib.DisplayName(), "torrent_id", fill.TorrentID)
		}
	}
}
