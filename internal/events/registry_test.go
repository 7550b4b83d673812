package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Unmarshal(t *testing.T) {
	registry := NewRegistry()
	registry.Register(EventItemUpgraded, func() Event { return &ItemUpgraded{} })

	raw := RawEvent{
		EventType: EventItemUpgraded,
		Payload:   `{"type":"item.upgraded","entity_type":"item","entity_id":7,"occurred_at":"2024-01-01T00:00:00Z","title":"Heat (1995)","version":"2160p","previous":"Heat.1995.1080p","replacement":"Heat.1995.2160p","upgrade_count":1}`,
	}

	event, err := registry.Unmarshal(raw)
	require.NoError(t, err)

	up, ok := event.(*ItemUpgraded)
	require.True(t, ok)
	assert.Equal(t, int64(7), up.EntityID())
	assert.Equal(t, "Heat.1995.2160p", up.Replacement)
	assert.Equal(t, 1, up.UpgradeCount)
}

func TestRegistry_UnmarshalUnknownType(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Unmarshal(RawEvent{EventType: "unknown.event", Payload: `{}`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestRegistry_UnmarshalInvalidJSON(t *testing.T) {
	registry := NewRegistry()
	registry.Register(EventStateChanged, func() Event { return &StateChanged{} })

	_, err := registry.Unmarshal(RawEvent{EventType: EventStateChanged, Payload: `{invalid json`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal event payload")
}

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	assert.Equal(t, []string{
		EventItemAdded,
		EventItemBlacklisted,
		EventItemCollected,
		EventStateChanged,
		EventUpgradeFailed,
		EventItemUpgraded,
		EventQueuePaused,
		EventQueueResumed,
	}, registry.Types())
}

func TestDefaultRegistry_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	ctx := t.Context()

	_, err := log.Append(ctx, &QueuePaused{
		BaseEvent: NewBaseEvent(EventQueuePaused, EntityQueue, 0),
		Reason:    "debrid unavailable",
		ErrorType: "connection",
		Service:   "realdebrid",
	})
	require.NoError(t, err)

	raws, err := log.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, raws, 1)

	e, err := DefaultRegistry().Unmarshal(raws[0])
	require.NoError(t, err)
	paused, ok := e.(*QueuePaused)
	require.True(t, ok)
	assert.Equal(t, "realdebrid", paused.Service)
}
