package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmunix/reelq/internal/item"
)

// BulkKind is an admin mutation applied to many items at once.
type BulkKind string

const (
	BulkDelete        BulkKind = "delete"
	BulkMove          BulkKind = "move"
	BulkRescrape      BulkKind = "rescrape"
	BulkChangeVersion BulkKind = "change_version"
	BulkEarlyRelease  BulkKind = "early_release"
	BulkForcePriority BulkKind = "force_priority"
	BulkResync        BulkKind = "resync"
)

// ErrInvalidBulkAction is returned for unknown kinds or missing arguments.
var ErrInvalidBulkAction = errors.New("invalid bulk action")

// BulkAction describes a bulk mutation. State is the target of a move,
// Version the new version of change_version.
type BulkAction struct {
	Kind    BulkKind   `json:"action"`
	State   item.State `json:"state,omitempty"`
	Version string     `json:"version,omitempty"`
}

func (a BulkAction) validate() error {
	switch a.Kind {
	case BulkDelete, BulkRescrape, BulkEarlyRelease, BulkForcePriority, BulkResync:
		return nil
	case BulkMove:
		if !a.State.Valid() {
			return fmt.Errorf("%w: unknown state %q", ErrInvalidBulkAction, a.State)
		}
		return nil
	case BulkChangeVersion:
		if item.StripVersion(a.Version) == "" {
			return fmt.Errorf("%w: version required", ErrInvalidBulkAction)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidBulkAction, a.Kind)
}

// Bulk applies a to every id in one store transaction while processing
// is paused, then reloads every queue. Any failure leaves all items unchanged.
func (m *Manager) Bulk(ctx context.Context, ids []int64, a BulkAction) error {
	if err := a.validate(); err != nil {
		return err
	}
	if a.Kind != BulkResync && len(ids) == 0 {
		return fmt.Errorf("%w: no item ids", ErrInvalidBulkAction)
	}
	if !m.Paused() {
		own := m.pauseWith(ctx, PauseInfo{Reason: "bulk action", ErrorType: PauseBulk})
		defer m.resume(ctx, "bulk action finished", own)
	}

	var moved []*item.MediaItem
	var froms []item.State
	if a.Kind != BulkResync {
		var rejects []string
		err := func() error {
			tx, err := m.store.Begin(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback() }()

			for _, id := range ids {
				before, err := tx.Get(ctx, id)
				if err != nil {
					return err
				}
				after, reject, err := m.bulkOne(ctx, tx, before, a)
				if err != nil {
					return fmt.Errorf("%s item %d: %w", a.Kind, id, err)
				}
				if reject != "" {
					rejects = append(rejects, reject)
				}
				if after != nil && after.State != before.State {
					moved = append(moved, after)
					froms = append(froms, before.State)
				}
			}
			return tx.Commit()
		}()
		if err != nil {
			return err
		}
		for _, link := range rejects {
			m.markNotWanted(link)
		}
	}

	if err := m.Update(ctx); err != nil {
		return err
	}
	for i, it := range moved {
		m.transitioned(ctx, it, froms[i], it.State)
	}
	m.log.Info("bulk action applied", "action", a.Kind, "items", len(ids))
	return nil
}

// bulkOne applies a to one item inside tx. It returns the item after the
// change (nil when deleted) and a link to record as not wanted.
func (m *Manager) bulkOne(ctx context.Context, tx *item.Tx, it *item.MediaItem, a BulkAction) (*item.MediaItem, string, error) {
	switch a.Kind {
	case BulkDelete:
		return nil, "", tx.Delete(ctx, it.ID)

	case BulkMove:
		if it.State == a.State {
			return it, "", nil
		}
		f := item.Fields{}
		if a.State == item.StateBlacklisted {
			f[item.ColBlacklistedDate] = m.now()
		}
		if a.State == item.StateWanted {
			f[item.ColBlacklistedDate] = nil
		}
		after, err := tx.Transition(ctx, it.ID, it.State, a.State, f)
		return after, "", err

	case BulkRescrape:
		link := item.Deref(it.FilledByMagnet)
		f := item.Fields{item.ColBlacklistedDate: nil}
		if title := item.Deref(it.FilledByTitle); title != "" {
			f[item.ColRescrapeOriginalTorrentTitle] = title
		}
		if it.State == item.StateWanted {
			return it, link, tx.Update(ctx, it.ID, f.Merge(item.ClearFill()))
		}
		after, err := tx.Transition(ctx, it.ID, it.State, item.StateWanted, f)
		return after, link, err

	case BulkChangeVersion:
		return it, "", tx.Update(ctx, it.ID, item.Fields{item.ColVersion: item.StripVersion(a.Version)})

	case BulkEarlyRelease:
		return it, "", tx.Update(ctx, it.ID, item.Fields{item.ColEarlyRelease: true})

	case BulkForcePriority:
		return it, "", tx.Update(ctx, it.ID, item.Fields{item.ColForcePriority: true})
	}
	return it, "", nil
}
