package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// querier abstracts *sql.DB and *sql.Tx for shared query logic.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// TransitionEvent is handed to transition handlers after a state change commits.
type TransitionEvent struct {
	ItemID int64
	From   State
	To     State
	At     time.Time
}

// TransitionHandler is called for every committed transition.
type TransitionHandler func(TransitionEvent)

// Store provides access to media items. All writes are serialized.
type Store struct {
	db  *sql.DB
	now func() time.Time

	writeMu  sync.Mutex
	mu       sync.RWMutex
	handlers []TransitionHandler
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a new item store.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// OnTransition registers a handler to be called on state transitions.
func (s *Store) OnTransition(h TransitionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *Store) emit(events []TransitionEvent) {
	if len(events) == 0 {
		return
	}
	s.mu.RLock()
	handlers := append([]TransitionHandler(nil), s.handlers...)
	s.mu.RUnlock()
	for _, e := range events {
		for _, h := range handlers {
			h(e)
		}
	}
}

// Begin starts a write transaction. The store's writer lock is held until
// Commit or Rollback.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	s.writeMu.Lock()
	var tx *sql.Tx
	err := retryOnBusy(ctx, func() error {
		var err error
		tx, err = s.db.BeginTx(ctx, nil)
		return err
	})
	if err != nil {
		s.writeMu.Unlock()
		return nil, fmt.Errorf("begin transaction: %w", mapSQLiteError(err))
	}
	return &Tx{tx: tx, store: s}, nil
}

// write runs fn in a transaction, retrying the whole unit while SQLite is busy.
func (s *Store) write(ctx context.Context, fn func(*Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.Begin(ctx)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// Tx wraps a database transaction with the same methods as Store.
type Tx struct {
	tx      *sql.Tx
	store   *Store
	pending []TransitionEvent
	done    bool
}

// Commit commits the transaction and notifies transition handlers.
func (t *Tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	defer t.store.writeMu.Unlock()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapSQLiteError(err))
	}
	t.store.emit(t.pending)
	return nil
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.store.writeMu.Unlock()
	return t.tx.Rollback()
}

func (t *Tx) now() time.Time { return t.store.now() }

// mapSQLiteError converts SQLite errors to package errors.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if isSQLiteBusy(err) {
		return fmt.Errorf("%w: %v", ErrDatabaseLocked, err)
	}
	// modernc.org/sqlite wraps errors; check error message for constraint violations
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed") {
		return ErrDuplicateItem
	}
	if strings.Contains(errStr, "FOREIGN KEY constraint failed") ||
		strings.Contains(errStr, "CHECK constraint failed") {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	return err
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseLocked) {
		return true
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	if isSQLiteBusy(lastErr) && !errors.Is(lastErr, ErrDatabaseLocked) {
		return fmt.Errorf("%w: %v", ErrDatabaseLocked, lastErr)
	}
	return lastErr
}
