package queue

import (
	"context"
	"errors"

	"github.com/vmunix/reelq/internal/item"
)

// Sleeping holds items whose last scrape found nothing.
type Sleeping struct {
	*list
}

// Process wakes items whose sleep has elapsed. Items at their wake limit
// get a final scrape before being blacklisted.
func (q *Sleeping) Process(ctx context.Context, m *Manager) error {
	if m.Paused() {
		return nil
	}
	now := m.now()
	var errs []error
	for _, it := range q.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if now.Sub(it.StateEnteredAt) < m.settings.SleepDuration {
			continue
		}
		if err := m.wake(ctx, it); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) wake(ctx context.Context, it *item.MediaItem) error {
	limit := m.settings.WakeLimitFor(it.Version)
	if limit == NeverSleep {
		_, err := m.blacklist(ctx, it, item.StateSleeping, "wake limit disabled")
		return err
	}

	count, err := m.store.GetWakeCount(ctx, it.ID)
	if err != nil {
		return err
	}
	if count >= limit {
		_, err := m.InitiateFinalCheckOrBlacklist(ctx, it, item.StateSleeping)
		return err
	}
	if count, err = m.store.IncrementWakeCount(ctx, it.ID); err != nil {
		return err
	}
	m.log.Debug("item woken", "item_id", it.ID, "title", it.DisplayName(), "wake_count", count, "wake_limit", limit)
	_, err = m.MoveToWanted(ctx, it, item.StateSleeping)
	return err
}

// Blacklisted holds items given up on. They are retried after the
// blacklist duration.
type Blacklisted struct {
	*list
}

// Process returns items blacklisted longer than the blacklist duration to
// Wanted with a fresh wake count.
func (q *Blacklisted) Process(ctx context.Context, m *Manager) error {
	if m.Paused() {
		return nil
	}
	now := m.now()
	var errs []error
	for _, it := range q.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		since := it.StateEnteredAt
		if it.BlacklistedDate != nil {
			since = *it.BlacklistedDate
		}
		if now.Sub(since) < m.settings.BlacklistDuration {
			continue
		}
		if err := m.store.ResetWakeCount(ctx, it.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		m.log.Info("blacklist expired", "item_id", it.ID, "title", it.DisplayName())
		if _, err := m.MoveToWanted(ctx, it, item.StateBlacklisted); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
