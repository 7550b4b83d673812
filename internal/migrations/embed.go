// Package migrations provides embedded SQL migration files.
package migrations

import (
	_ "embed"
)

// InitialSQL creates the media_items table, upgrade history and the event log.
// Every statement is idempotent so it can run on each start.
//
//go:embed sql/001_initial.sql
var InitialSQL string
