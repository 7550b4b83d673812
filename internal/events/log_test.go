package events

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelq/internal/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := migrations.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEventLog_Append(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	ctx := context.Background()

	e := &StateChanged{
		BaseEvent: NewBaseEvent(EventStateChanged, EntityItem, 1),
		From:      "wanted",
		To:        "scraping",
	}

	id, err := log.Append(ctx, e)
	require.NoError(t, err)
	assert.Positive(t, id)

	events, err := log.ForEntity(ctx, EntityItem, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Payload, `"to":"scraping"`)
	assert.Equal(t, EventStateChanged, events[0].EventType)
	assert.Equal(t, EntityItem, events[0].EntityType)
	assert.Equal(t, int64(1), events[0].EntityID)
}

func TestEventLog_Since(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	ctx := context.Background()

	start := time.Now().Add(-time.Hour)

	e1 := &testEvent{BaseEvent: NewBaseEvent("test.first", "test", 1), Message: "first"}
	e2 := &testEvent{BaseEvent: NewBaseEvent("test.second", "test", 2), Message: "second"}

	_, err := log.Append(ctx, e1)
	require.NoError(t, err)
	_, err = log.Append(ctx, e2)
	require.NoError(t, err)

	events, err := log.Since(ctx, start)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "test.first", events[0].EventType)
	assert.Equal(t, "test.second", events[1].EventType)
}

func TestEventLog_ForEntity(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	ctx := context.Background()

	for _, e := range []Event{
		&testEvent{BaseEvent: NewBaseEvent("test.one", EntityItem, 1), Message: "one"},
		&testEvent{BaseEvent: NewBaseEvent("test.two", EntityItem, 2), Message: "two"},
		&testEvent{BaseEvent: NewBaseEvent("test.three", EntityItem, 1), Message: "three"},
	} {
		_, err := log.Append(ctx, e)
		require.NoError(t, err)
	}

	events, err := log.ForEntity(ctx, EntityItem, 1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "test.one", events[0].EventType)
	assert.Equal(t, "test.three", events[1].EventType)

	events, err = log.ForEntity(ctx, EntityItem, 2)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "test.two", events[0].EventType)
}

func TestEventLog_Prune(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	ctx := context.Background()

	old := &testEvent{BaseEvent: NewBaseEventAt("test.old", "test", 1, time.Now().Add(-40*24*time.Hour)), Message: "old"}
	_, err := log.Append(ctx, old)
	require.NoError(t, err)

	e := &testEvent{BaseEvent: NewBaseEvent("test.new", "test", 2), Message: "new"}
	_, err = log.Append(ctx, e)
	require.NoError(t, err)

	count, err := log.Prune(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	events, err := log.Since(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "test.new", events[0].EventType)
}

func TestEventLog_Recent(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		evt := &ItemAdded{
			BaseEvent: NewBaseEvent(EventItemAdded, EntityItem, int64(i+1)),
			Title:     fmt.Sprintf("Movie %d", i+1),
			MediaType: "movie",
			Version:   "1080p",
		}
		_, err := log.Append(ctx, evt)
		require.NoError(t, err)
	}

	events, err := log.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	// newest first
	assert.Equal(t, int64(5), events[0].EntityID)
	assert.Equal(t, int64(4), events[1].EntityID)
	assert.Equal(t, int64(3), events[2].EntityID)
}

// testEvent is a concrete event type for testing
type testEvent struct {
	BaseEvent
	Message string `json:"message"`
}
