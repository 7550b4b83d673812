package v1

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vmunix/reelq/internal/events"
	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/queue"
	"github.com/vmunix/reelq/internal/scheduler"
)

// ErrMissingDependency is returned when a required dependency is nil.
var ErrMissingDependency = errors.New("missing required dependency")

// TaskRunner lists and triggers scheduler tasks.
type TaskRunner interface {
	Tasks() []scheduler.TaskInfo
	Trigger(name string) (uuid.UUID, error)
	Job(id uuid.UUID) (scheduler.Job, bool)
	Jobs() []scheduler.Job
}

// NotWantedRegistry is the admin view of the not-wanted sets.
type NotWantedRegistry interface {
	Hashes() []string
	URLs() []string
	Remove(value string) error
	PurgeAll() error
}

// LibraryWebhook receives files reported by the media server.
type LibraryWebhook interface {
	Notify(path string) error
}

// ServerDeps contains all dependencies for the API server.
// Required dependencies must be non-nil; optional dependencies may be nil.
type ServerDeps struct {
	// Required dependencies
	Store   *item.Store
	Manager *queue.Manager

	// Optional dependencies (nil if not configured)
	Scheduler TaskRunner
	NotWanted NotWantedRegistry
	Library   LibraryWebhook   // nil unless the library runs in watch mode
	EventLog  *events.EventLog // Optional: for event audit log
	Logger    *slog.Logger
	Version   string
}

// Validate checks that all required dependencies are provided.
func (d ServerDeps) Validate() error {
	if d.Store == nil {
		return errors.Join(ErrMissingDependency, errors.New("item store is required"))
	}
	if d.Manager == nil {
		return errors.Join(ErrMissingDependency, errors.New("queue manager is required"))
	}
	return nil
}
