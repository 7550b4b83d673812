package item

import (
	"context"
	"fmt"
)

// GetWakeCount returns how many Sleeping to Wanted cycles the item has had.
func (s *Store) GetWakeCount(ctx context.Context, id int64) (int, error) {
	var n int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `SELECT wake_count FROM media_items WHERE id = ?`, id).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("get wake count %d: %w", id, mapSQLiteError(err))
	}
	return n, nil
}

// IncrementWakeCount atomically adds one to the wake count and returns the new value.
func (s *Store) IncrementWakeCount(ctx context.Context, id int64) (int, error) {
	var n int
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.IncrementWakeCount(ctx, id)
		return err
	})
	return n, err
}

// IncrementWakeCount adds one to the wake count within a transaction.
func (t *Tx) IncrementWakeCount(ctx context.Context, id int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`UPDATE media_items SET wake_count = wake_count + 1, last_updated = ? WHERE id = ? RETURNING wake_count`,
		formatTime(t.now()), id,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment wake count %d: %w", id, mapSQLiteError(err))
	}
	return n, nil
}

// ResetWakeCount sets the wake count back to zero.
func (s *Store) ResetWakeCount(ctx context.Context, id int64) error {
	return s.write(ctx, func(tx *Tx) error { return tx.ResetWakeCount(ctx, id) })
}

// ResetWakeCount sets the wake count back to zero within a transaction.
func (t *Tx) ResetWakeCount(ctx context.Context, id int64) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE media_items SET wake_count = 0, last_updated = ? WHERE id = ?`, formatTime(t.now()), id)
	if err != nil {
		return fmt.Errorf("reset wake count %d: %w", id, mapSQLiteError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("reset wake count %d: %w", id, ErrNotFound)
	}
	return nil
}
