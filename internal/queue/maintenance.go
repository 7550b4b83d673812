package queue

import (
	"context"
	"errors"

	"github.com/vmunix/reelq/internal/debrid"
	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/metrics"
)

// ResumeCheck lifts pauses caused by the debrid service once it answers
// again with free download slots. Other pauses are left alone.
func (m *Manager) ResumeCheck(ctx context.Context) error {
	p := m.PauseInfo()
	if p == nil || (p.ErrorType != PauseTooManyDownloads && p.ErrorType != PauseUnavailable) {
		return nil
	}
	count, limit, err := m.debrid.ActiveDownloads(ctx)
	if err != nil {
		m.log.Debug("debrid still unavailable", "error", err)
		return nil
	}
	if limit > 0 && count >= limit {
		m.log.Debug("debrid download slots still full", "active", count, "limit", limit)
		return nil
	}
	m.Resume(ctx, "debrid available")
	return nil
}

// ReconcileDebrid returns Checking items to Wanted when their torrent is
// gone from the debrid service or failed there.
func (m *Manager) ReconcileDebrid(ctx context.Context) error {
	var errs []error
	for _, it := range m.lists[item.StateChecking].snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := item.Deref(it.FilledByTorrentID)
		if id == "" || m.UpgradeLocked(it.ID) {
			continue
		}
		info, err := m.debrid.TorrentInfo(ctx, id)
		gone := errors.Is(err, debrid.ErrNotFound)
		if err != nil && !gone {
			m.log.Debug("reconcile lookup failed", "item_id", it.ID, "torrent_id", id, "error", err)
			continue
		}
		failed := info != nil && debrid.Failed(info.Status)
		if !gone && !failed {
			continue
		}

		m.log.Info("torrent missing on debrid", "item_id", it.ID, "title", it.DisplayName(), "torrent_id", id, "gone", gone)
		if it.UpgradingFrom != nil {
			tried := []item.Candidate{{Title: item.Deref(it.FilledByTitle), Magnet: item.Deref(it.FilledByMagnet)}}
			if err := rolledBack(m.failUpgrade(ctx, it, item.StateChecking, tried, "torrent removed from debrid")); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if failed {
			m.markNotWanted(item.Deref(it.FilledByMagnet))
		}
		if _, err := m.MoveToWanted(ctx, it, item.StateChecking); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Heartbeat logs queue sizes and exports them as gauges.
func (m *Manager) Heartbeat(ctx context.Context) error {
	sizes := m.Sizes()
	args := make([]any, 0, 2*len(sizes)+2)
	for _, q := range m.queues {
		n := sizes[q.Name()]
		metrics.SetItems(q.Name(), n)
		args = append(args, q.Name(), n)
	}
	counts, err := m.store.CountByState(ctx)
	if err != nil {
		return err
	}
	metrics.SetItems(string(item.StateCollected), counts[item.StateCollected])
	args = append(args, "collected", counts[item.StateCollected], "paused", m.Paused())
	m.log.Info("heartbeat", args...)
	return nil
}
