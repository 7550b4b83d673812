package item

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// FailedUpgrade records a candidate that did not survive an upgrade attempt.
type FailedUpgrade struct {
	Title    string    `json:"title"`
	Hash     string    `json:"hash,omitempty"`
	URL      string    `json:"url,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	FailedAt time.Time `json:"failed_at"`
}

// PushSnapshot appends a full copy of the row to the item's upgrade history.
func (s *Store) PushSnapshot(ctx context.Context, it *MediaItem) error {
	return s.write(ctx, func(tx *Tx) error { return tx.PushSnapshot(ctx, it) })
}

// PushSnapshot appends a snapshot within a transaction.
func (t *Tx) PushSnapshot(ctx context.Context, it *MediaItem) error {
	payload, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", it.ID, err)
	}
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO upgrade_states (item_id, snapshot, created_at) VALUES (?, ?, ?)`,
		it.ID, string(payload), formatTime(t.now()),
	); err != nil {
		return fmt.Errorf("push snapshot %d: %w", it.ID, mapSQLiteError(err))
	}
	return nil
}

func peekSnapshot(ctx context.Context, q querier, id int64) (int64, *MediaItem, error) {
	var (
		rowID   int64
		payload string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, snapshot FROM upgrade_states WHERE item_id = ? ORDER BY id DESC LIMIT 1`, id,
	).Scan(&rowID, &payload)
	if err != nil {
		return 0, nil, fmt.Errorf("peek snapshot %d: %w", id, mapSQLiteError(err))
	}
	var it MediaItem
	if err := json.Unmarshal([]byte(payload), &it); err != nil {
		return 0, nil, fmt.Errorf("decode snapshot %d: %w", id, err)
	}
	return rowID, &it, nil
}

// PeekSnapshot returns the most recent snapshot without consuming it.
// Returns ErrNotFound when the history is empty.
func (s *Store) PeekSnapshot(ctx context.Context, id int64) (*MediaItem, error) {
	_, it, err := peekSnapshot(ctx, s.db, id)
	return it, err
}

// PopSnapshot removes and returns the most recent snapshot.
func (s *Store) PopSnapshot(ctx context.Context, id int64) (*MediaItem, error) {
	var it *MediaItem
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		it, err = tx.PopSnapshot(ctx, id)
		return err
	})
	return it, err
}

// PopSnapshot removes and returns the most recent snapshot within a transaction.
func (t *Tx) PopSnapshot(ctx context.Context, id int64) (*MediaItem, error) {
	rowID, it, err := peekSnapshot(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM upgrade_states WHERE id = ?`, rowID); err != nil {
		return nil, fmt.Errorf("pop snapshot %d: %w", id, mapSQLiteError(err))
	}
	return it, nil
}

// SnapshotCount returns the depth of the item's upgrade history.
func (s *Store) SnapshotCount(ctx context.Context, id int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM upgrade_states WHERE item_id = ?`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots %d: %w", id, mapSQLiteError(err))
	}
	return n, nil
}

// Restore overwrites every column of the row with the snapshot, timestamps
// included. It bypasses the transition table.
func (t *Tx) Restore(ctx context.Context, snap *MediaItem) error {
	var current State
	if err := t.tx.QueryRowContext(ctx, `SELECT state FROM media_items WHERE id = ?`, snap.ID).Scan(&current); err != nil {
		return fmt.Errorf("restore item %d: %w", snap.ID, mapSQLiteError(err))
	}
	args, err := rowValues(snap)
	if err != nil {
		return err
	}
	args = append(args, snap.ID)
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE media_items SET (`+writableColumns+`) = (`+placeholders(len(args)-1)+`) WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("restore item %d: %w", snap.ID, mapSQLiteError(err))
	}
	if current != snap.State {
		t.pending = append(t.pending, TransitionEvent{ItemID: snap.ID, From: current, To: snap.State, At: t.now()})
	}
	return nil
}

// RestoreLatest pops the latest snapshot and writes it back over the row.
func (s *Store) RestoreLatest(ctx context.Context, id int64) (*MediaItem, error) {
	var snap *MediaItem
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		if snap, err = tx.PopSnapshot(ctx, id); err != nil {
			return err
		}
		return tx.Restore(ctx, snap)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// AddFailedUpgrade records a candidate that failed as an upgrade for the item.
// Recording the same title twice is a no-op.
func (s *Store) AddFailedUpgrade(ctx context.Context, id int64, f FailedUpgrade) error {
	return s.write(ctx, func(tx *Tx) error { return tx.AddFailedUpgrade(ctx, id, f) })
}

// AddFailedUpgrade records a failed candidate within a transaction.
func (t *Tx) AddFailedUpgrade(ctx context.Context, id int64, f FailedUpgrade) error {
	if f.FailedAt.IsZero() {
		f.FailedAt = t.now()
	}
	if _, err := t.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO failed_upgrades (item_id, title, hash, url, reason, failed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, f.Title, f.Hash, f.URL, f.Reason, formatTime(f.FailedAt),
	); err != nil {
		return fmt.Errorf("add failed upgrade %d: %w", id, mapSQLiteError(err))
	}
	return nil
}

// FailedUpgrades lists the failed upgrade candidates of an item, oldest first.
func (s *Store) FailedUpgrades(ctx context.Context, id int64) ([]FailedUpgrade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, hash, url, reason, failed_at FROM failed_upgrades
		WHERE item_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list failed upgrades %d: %w", id, mapSQLiteError(err))
	}
	defer rows.Close()

	var out []FailedUpgrade
	for rows.Next() {
		var (
			f   FailedUpgrade
			raw string
		)
		if err := rows.Scan(&f.Title, &f.Hash, &f.URL, &f.Reason, &raw); err != nil {
			return nil, fmt.Errorf("scan failed upgrade: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			f.FailedAt = t
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
