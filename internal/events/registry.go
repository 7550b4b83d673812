package events

import (
	"encoding/json"
	"fmt"
	"sort"
)

// EventFactory creates a new zero-value event of a specific type.
type EventFactory func() Event

// Registry maps event types to their factories for deserialization.
type Registry struct {
	factories map[string]EventFactory
}

// NewRegistry creates a new event registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]EventFactory),
	}
}

// Register adds an event type to the registry.
func (r *Registry) Register(eventType string, factory EventFactory) {
	r.factories[eventType] = factory
}

// Types returns the registered event types in sorted order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Unmarshal deserializes a raw event into its concrete type.
func (r *Registry) Unmarshal(raw RawEvent) (Event, error) {
	factory, ok := r.factories[raw.EventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", raw.EventType)
	}

	event := factory()
	if err := json.Unmarshal([]byte(raw.Payload), event); err != nil {
		return nil, fmt.Errorf("unmarshal event payload: %w", err)
	}

	return event, nil
}

// DefaultRegistry returns a registry with every lifecycle event registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(EventItemAdded, func() Event { return &ItemAdded{} })
	r.Register(EventStateChanged, func() Event { return &StateChanged{} })
	r.Register(EventItemCollected, func() Event { return &ItemCollected{} })
	r.Register(EventItemUpgraded, func() Event { return &ItemUpgraded{} })
	r.Register(EventUpgradeFailed, func() Event { return &UpgradeFailed{} })
	r.Register(EventItemBlacklisted, func() Event { return &ItemBlacklisted{} })

	r.Register(EventQueuePaused, func() Event { return &QueuePaused{} })
	r.Register(EventQueueResumed, func() Event { return &QueueResumed{} })

	return r
}
