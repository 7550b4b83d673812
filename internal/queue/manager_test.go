package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelq/internal/events"
	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/scrape"
)

func TestManager_QueueOrder(t *testing.T) {
	env := newTestEnv(t)
	var names []string
	for _, q := range env.m.Queues() {
		names = append(names, q.Name())
	}
	assert.Equal(t, []string{
		NameWanted, NameScraping, NameAdding, NameChecking, NameSleeping,
		NameUnreleased, NamePendingUncached, NameBlacklisted, NameUpgrading,
	}, names)

	_, ok := env.m.Queue("collected")
	assert.False(t, ok)
}

func TestManager_UpdateLoadsEveryQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i, st := range []item.State{item.StateWanted, item.StateSleeping, item.StateBlacklisted, item.StateUnreleased} {
		it := newMovie("tt000000" + string(rune('1'+i)))
		it.State = st
		_, err := env.store.Add(ctx, it)
		require.NoError(t, err)
	}
	assert.Zero(t, env.m.Sizes()[NameSleeping])

	require.NoError(t, env.m.Update(ctx))
	sizes := env.m.Sizes()
	assert.Equal(t, 1, sizes[NameWanted])
	assert.Equal(t, 1, sizes[NameSleeping])
	assert.Equal(t, 1, sizes[NameBlacklisted])
	assert.Equal(t, 1, sizes[NameUnreleased])
	assert.Zero(t, sizes[NameScraping])
}

func TestManager_MoveKeepsOneQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	it := env.add(t, newMovie("tt0111161"))

	_, err := env.m.MoveToScraping(ctx, it, item.StateWanted)
	require.NoError(t, err)
	assert.False(t, env.holds(t, NameWanted, it.ID))
	assert.True(t, env.holds(t, NameScraping, it.ID))

	// A stale source state is refused and nothing moves.
	_, err = env.m.MoveToScraping(ctx, it, item.StateWanted)
	require.Error(t, err)
	assert.True(t, env.holds(t, NameScraping, it.ID))
}

func TestManager_ContentsAreCopies(t *testing.T) {
	env := newTestEnv(t)
	it := env.add(t, newMovie("tt0111161"))
	q, _ := env.m.Queue(NameWanted)

	contents := q.Contents()
	require.Len(t, contents, 1)
	contents[0].Title = "changed"
	assert.Equal(t, it.Title, q.Contents()[0].Title)
}

func TestManager_PauseEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ch := env.m.bus.Subscribe(4, events.EventQueuePaused, events.EventQueueResumed)

	env.m.Pause(ctx, PauseInfo{Reason: "operator", ErrorType: PauseManual})
	env.m.Resume(ctx, "operator")

	for _, want := range []string{events.EventQueuePaused, events.EventQueueResumed} {
		select {
		case e := <-ch:
			assert.Equal(t, want, e.EventType())
		case <-time.After(time.Second):
			t.Fatalf("no %s event", want)
		}
	}
}

func TestManager_PausedProcessIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	it := env.add(t, newMovie("tt0111161"))
	env.scraper.returns(item.Candidate{Title: shawshank720, Magnet: magnet(hash('a'))})
	env.m.Pause(ctx, PauseInfo{Reason: "operator", ErrorType: PauseManual})

	for _, q := range env.m.Queues() {
		require.NoError(t, q.Process(ctx, env.m), q.Name())
	}
	assert.Equal(t, item.StateWanted, env.get(t, it.ID).State)
	assert.True(t, env.holds(t, NameWanted, it.ID))
	assert.Zero(t, env.scraper.callCount())

	env.m.Resume(ctx, "operator")
	env.process(t, NameWanted)
	assert.Equal(t, item.StateScraping, env.get(t, it.ID).State)
}

func TestManager_StateChangedEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	it := env.add(t, newMovie("tt0111161"))
	ch := env.m.bus.Subscribe(4, events.EventStateChanged)

	_, err := env.m.MoveToScraping(ctx, it, item.StateWanted)
	require.NoError(t, err)

	select {
	case e := <-ch:
		sc, ok := e.(*events.StateChanged)
		require.True(t, ok)
		assert.Equal(t, it.ID, sc.EntityID())
		assert.Equal(t, "wanted", sc.From)
		assert.Equal(t, "scraping", sc.To)
	case <-time.After(time.Second):
		t.Fatal("no state change event")
	}
}

func TestManager_ScrapeFallsBackToSingle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e1 := env.add(t, newEpisode("tt0306414", 1, 1))
	env.add(t, newEpisode("tt0306414", 1, 2))

	c := item.Candidate{Title: "The.Wire.S01E01.1080p.BluRay.x264-GRP", Magnet: magnet(hash('a'))}
	env.scraper.fn = func(_ item.MediaItem, opts scrape.Options) []item.Candidate {
		if opts.MultiPack {
			return nil
		}
		return []item.Candidate{c}
	}

	_, err := env.m.MoveToScraping(ctx, e1, item.StateWanted)
	require.NoError(t, err)
	env.process(t, NameScraping)

	got := env.get(t, e1.ID)
	assert.Equal(t, item.StateAdding, got.State)
	assert.True(t, got.FallBackToSingleScraper)
	require.Equal(t, 2, env.scraper.callCount())
	assert.True(t, env.scraper.calls[0].MultiPack)
}

func TestManager_AddItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ch := env.m.bus.Subscribe(4, events.EventItemAdded)

	it := newMovie("tt0111161")
	it.ContentSource = "watchlist"
	added, err := env.m.AddItem(ctx, it)
	require.NoError(t, err)
	assert.NotZero(t, added.ID)
	assert.Equal(t, item.StateWanted, added.State)
	assert.Equal(t, 1, env.m.Sizes()[NameWanted], "no reload needed")

	select {
	case e := <-ch:
		ev, ok := e.(*events.ItemAdded)
		require.True(t, ok)
		assert.Equal(t, "watchlist", ev.ContentSource)
		assert.Equal(t, added.ID, ev.EntityID())
	case <-time.After(time.Second):
		t.Fatal("no item added event")
	}

	_, err = env.m.AddItem(ctx, newMovie("tt0111161"))
	assert.ErrorIs(t, err, item.ErrDuplicateItem)
	assert.Equal(t, 1, env.m.Sizes()[NameWanted])
}
