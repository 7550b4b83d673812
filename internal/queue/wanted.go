package queue

import (
	"context"
	"errors"

	"github.com/vmunix/reelq/internal/item"
)

// Wanted holds items waiting for their release.
type Wanted struct {
	*list
}

// Process sends released items to Scraping and far-future or undated
// items to Unreleased.
func (q *Wanted) Process(ctx context.Context, m *Manager) error {
	if m.Paused() {
		return nil
	}
	now := m.now()
	var errs []error
	for _, it := range q.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if it.EarlyRelease {
			if _, err := m.MoveToScraping(ctx, it, item.StateWanted); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		at, ok := m.settings.ReleaseInstant(it)
		var err error
		switch {
		case !ok, at.After(now.Add(releaseHorizon)):
			_, err = m.MoveToUnreleased(ctx, it, item.StateWanted)
		case !at.After(now):
			_, err = m.MoveToScraping(ctx, it, item.StateWanted)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Unreleased holds items whose release is unknown or more than a day away.
type Unreleased struct {
	*list
}

// Process returns items to Wanted once their release is within a day.
func (q *Unreleased) Process(ctx context.Context, m *Manager) error {
	if m.Paused() {
		return nil
	}
	horizon := m.now().Add(releaseHorizon)
	var errs []error
	for _, it := range q.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		at, ok := m.settings.ReleaseInstant(it)
		if !it.EarlyRelease && (!ok || at.After(horizon)) {
			continue
		}
		if _, err := m.MoveToWanted(ctx, it, item.StateUnreleased); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
