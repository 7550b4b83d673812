package item

import "errors"

var (
	// ErrNotFound indicates the requested item doesn't exist.
	ErrNotFound = errors.New("item not found")

	// ErrDuplicateItem indicates an item with the same identity already exists.
	ErrDuplicateItem = errors.New("duplicate item")

	// ErrMissingIdentifier indicates an item without imdb or tmdb id.
	ErrMissingIdentifier = errors.New("missing imdb or tmdb identifier")

	// ErrInvalidItem indicates an item that fails field validation.
	ErrInvalidItem = errors.New("invalid item")

	// ErrConstraint indicates a foreign key or check constraint violation.
	ErrConstraint = errors.New("constraint violation")

	// ErrStateMismatch indicates the item is not in the expected source state.
	ErrStateMismatch = errors.New("state mismatch")

	// ErrInvalidTransition indicates a state change outside the transition table.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnknownField indicates an update on a column that is not patchable.
	ErrUnknownField = errors.New("unknown field")

	// ErrDatabaseLocked indicates SQLite stayed busy past the retry budget.
	ErrDatabaseLocked = errors.New("database is locked")
)
