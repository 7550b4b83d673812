package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmunix/reelq/internal/events"
	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/metrics"
	"github.com/vmunix/reelq/internal/scrape"
	"github.com/vmunix/reelq/pkg/release"
)

// Upgrading holds collected items still inside their upgrade window.
type Upgrading struct {
	*list
	m *Manager
}

// eligible reports whether a collected item should be rescraped for upgrades.
func (q *Upgrading) eligible(it *item.MediaItem) bool {
	m := q.m
	if it.State != item.StateCollected || it.Upgraded || it.OriginalCollectedAt == nil {
		return false
	}
	if !m.settings.UpgradingEnabled(it.Version) {
		return false
	}
	return m.now().Before(it.OriginalCollectedAt.Add(m.settings.UpgradeWindow))
}

// Update loads the collected items that are eligible for an upgrade.
func (q *Upgrading) Update(ctx context.Context) error {
	items, err := q.store.ListByState(ctx, item.StateCollected, nil)
	if err != nil {
		return err
	}
	keep := items[:0]
	for _, it := range items {
		if q.eligible(it) {
			keep = append(keep, it)
		}
	}
	q.set(keep)
	return nil
}

// Process attempts an upgrade for every item not checked within the last
// upgrade interval. Items past their window leave the queue.
func (q *Upgrading) Process(ctx context.Context, m *Manager) error {
	if m.Paused() {
		return nil
	}
	now := m.now()
	var errs []error
	for _, it := range q.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !q.eligible(it) {
			q.remove(it.ID)
			continue
		}
		if m.UpgradeLocked(it.ID) {
			continue
		}
		if it.LastUpgradeCheck != nil && now.Sub(*it.LastUpgradeCheck) < m.settings.UpgradeInterval {
			continue
		}
		if err := m.store.Update(ctx, it.ID, item.Fields{item.ColLastUpgradeCheck: now}); err != nil {
			errs = append(errs, err)
			continue
		}
		it.LastUpgradeCheck = &now
		q.put(it.Clone())

		if err := rolledBack(m.Upgrade(ctx, it)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Upgrade looks for a release that beats the one it was collected with and
// swaps it in. A nil error with no state change means no better release.
func (m *Manager) Upgrade(ctx context.Context, it *item.MediaItem) error {
	current := item.Deref(it.OriginalScrapedTorrentTitle)
	if current == "" {
		current = item.Deref(it.FilledByFile)
	}
	multi := it.IsEpisode() && release.Parse(current).IsMultiEpisode()

	res, err := m.scraper.Scrape(ctx, *it, scrape.Options{MultiPack: multi, SkipFilter: true})
	if err != nil {
		return fmt.Errorf("upgrade scrape %d: %w", it.ID, err)
	}
	failed, err := m.store.FailedUpgrades(ctx, it.ID)
	if err != nil {
		return err
	}
	better := m.betterCandidates(it, current, res.Candidates, failed)
	if len(better) == 0 {
		m.log.Debug("no upgrade found", "item_id", it.ID, "title", it.DisplayName(), "current", current)
		return nil
	}
	m.log.Info("upgrade found", "item_id", it.ID, "title", it.DisplayName(), "current", current, "candidate", better[0].Title)

	// The stored row is authoritative; it may be newer than the caller's copy.
	stored, err := m.store.Get(ctx, it.ID)
	if err != nil {
		return err
	}
	if stored.State != item.StateCollected {
		m.log.Debug("upgrade skipped, item left collected", "item_id", it.ID, "state", stored.State)
		return nil
	}
	it = stored
	if err := m.store.PushSnapshot(ctx, it); err != nil {
		return err
	}
	adding, err := m.move(ctx, it, item.StateCollected, item.StateAdding, item.Fields{
		item.ColScrapeResults:          better,
		item.ColFilledByTitle:          better[0].Title,
		item.ColUpgradingFrom:          item.Str(item.Deref(it.FilledByFile)),
		item.ColUpgradingFromTorrentID: item.Str(item.Deref(it.FilledByTorrentID)),
		item.ColUpgradingFromVersion:   item.Str(it.Version),
	})
	if err != nil {
		if _, perr := m.store.PopSnapshot(ctx, it.ID); perr != nil {
			m.log.Warn("drop unused snapshot failed", "item_id", it.ID, "error", perr)
		}
		return err
	}

	m.LockUpgrade(it.ID)
	outcome, err := m.add(ctx, adding)
	m.UnlockUpgrade(it.ID)
	if err != nil {
		return err
	}
	if outcome == addExhausted {
		return m.failUpgrade(ctx, adding, item.StateAdding, better, "no candidate could be added")
	}
	return nil
}

// betterCandidates drops excluded releases and keeps those ranked above
// the current release by more than the threshold. Candidate order is kept.
func (m *Manager) betterCandidates(it *item.MediaItem, current string, cands []item.Candidate, failed []item.FailedUpgrade) []item.Candidate {
	norm := release.DotName(current)
	rank, score := len(cands), 0.0
	for i, c := range cands {
		if release.DotName(c.Title) == norm {
			rank, score = i, c.Score
			break
		}
	}
	if rank == len(cands) {
		// Absent: the current release ranks as if scored 0.
		rank = 0
		for rank < len(cands) && cands[rank].Score > 0 {
			rank++
		}
	}

	var out []item.Candidate
	for i, c := range cands {
		if i >= rank {
			break
		}
		if release.DotName(c.Title) == norm || m.rejected(it, c) || failedBefore(c, failed) {
			continue
		}
		if release.Similarity(c.Title, current) >= similarityCeiling {
			continue
		}
		if !m.improves(c.Score, score) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (m *Manager) improves(candidate, current float64) bool {
	if current <= 0 {
		return candidate > current
	}
	return (candidate-current)/current > m.settings.UpgradeThreshold
}

func failedBefore(c item.Candidate, failed []item.FailedUpgrade) bool {
	hash := c.InfoHash()
	for _, f := range failed {
		if f.Title == c.Title || (hash != "" && f.Hash == hash) || (f.URL != "" && f.URL == c.URL) {
			return true
		}
	}
	return false
}

// upgradeReachedChecking counts a successful upgrade.
func (m *Manager) upgradeReachedChecking(ctx context.Context, it *item.MediaItem) {
	count := it.UpgradeCount + 1
	if err := m.store.Update(ctx, it.ID, item.Fields{item.ColUpgradeCount: count, item.ColUpgraded: true}); err != nil {
		m.log.Warn("record upgrade failed", "item_id", it.ID, "error", err)
		return
	}
	m.mu.Lock()
	if updated, err := m.store.Get(ctx, it.ID); err == nil {
		m.relocateLocked(updated, updated.State)
	}
	m.mu.Unlock()

	metrics.IncUpgrade("succeeded")
	m.log.Info("item upgraded", "item_id", it.ID, "title", it.DisplayName(), "from", item.Deref(it.UpgradingFrom), "to", item.Deref(it.FilledByTitle))
	m.publish(ctx, &events.ItemUpgraded{
		BaseEvent:    events.NewBaseEventAt(events.EventItemUpgraded, events.EntityItem, it.ID, m.now()),
		Title:        it.DisplayName(),
		Version:      it.Version,
		Previous:     item.Deref(it.UpgradingFrom),
		Replacement:  item.Deref(it.FilledByTitle),
		UpgradeCount: count,
	})
}

// finishUpgrade cleans up after an upgraded item is collected: the old
// file and torrent go, and the snapshot taken before the attempt is consumed.
func (m *Manager) finishUpgrade(ctx context.Context, it *item.MediaItem, location string) {
	prev, err := m.store.PopSnapshot(ctx, it.ID)
	if err != nil {
		m.log.Warn("consume upgrade snapshot failed", "item_id", it.ID, "error", err)
	}
	old := item.Deref(it.UpgradingFrom)
	if prev != nil && prev.LocationOnDisk != nil {
		old = *prev.LocationOnDisk
	}
	if old != "" && old != location {
		if err := m.library.RemoveFile(ctx, it.Title, old, it.EpisodeTitle); err != nil {
			m.log.Warn("remove replaced file failed", "item_id", it.ID, "path", old, "error", err)
		}
	}
	if oldID := item.Deref(it.UpgradingFromTorrentID); oldID != "" && oldID != item.Deref(it.FilledByTorrentID) {
		m.removeTorrent(ctx, oldID)
	}
}

// failUpgrade restores the snapshot taken before the attempt and records
// the candidates as failed. The restored item is Collected again.
func (m *Manager) failUpgrade(ctx context.Context, it *item.MediaItem, from item.State, tried []item.Candidate, reason string) error {
	if id := item.Deref(it.FilledByTorrentID); id != "" && id != item.Deref(it.UpgradingFromTorrentID) {
		m.removeTorrent(ctx, id)
	}

	m.mu.Lock()
	restored, err := m.store.RestoreLatest(ctx, it.ID)
	if err == nil {
		m.relocateLocked(restored, from)
	}
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("roll back upgrade of item %d: %w", it.ID, err)
	}
	m.transitioned(ctx, restored, from, restored.State)

	for _, c := range tried {
		f := item.FailedUpgrade{Title: c.Title, Hash: c.InfoHash(), Reason: reason}
		if item.IsHTTP(c.URL) {
			f.URL = c.URL
		}
		if err := m.store.AddFailedUpgrade(ctx, it.ID, f); err != nil {
			m.log.Warn("record failed upgrade failed", "item_id", it.ID, "candidate", c.Title, "error", err)
		}
	}

	candidate := ""
	if len(tried) > 0 {
		candidate = tried[0].Title
	}
	metrics.IncUpgrade("failed")
	m.log.Warn("upgrade rolled back", "item_id", it.ID, "title", it.DisplayName(), "candidate", candidate, "reason", reason)
	m.publish(ctx, &events.UpgradeFailed{
		BaseEvent: events.NewBaseEventAt(events.EventUpgradeFailed, events.EntityItem, it.ID, m.now()),
		Title:     it.DisplayName(),
		Candidate: candidate,
		Reason:    reason,
	})
	return fmt.Errorf("%w: item %d: %s", ErrUpgradeFailed, it.ID, reason)
}

// rolledBack treats a completed rollback as handled.
func rolledBack(err error) error {
	if errors.Is(err, ErrUpgradeFailed) {
		return nil
	}
	return err
}
