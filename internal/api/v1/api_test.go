package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelq/internal/events"
	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/library"
	"github.com/vmunix/reelq/internal/migrations"
	"github.com/vmunix/reelq/internal/notwanted"
	"github.com/vmunix/reelq/internal/queue"
	"github.com/vmunix/reelq/internal/scheduler"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store   *item.Store
	manager *queue.Manager
	sched   *scheduler.Scheduler
	nw      *notwanted.Registry
	log     *events.EventLog
	handler http.Handler
}

func newTestEnv(t *testing.T, tune ...func(*ServerDeps)) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := migrations.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := item.NewStore(db)
	eventLog := events.NewEventLog(db)
	nw, err := notwanted.Open(t.TempDir(), testLogger())
	require.NoError(t, err)

	m := queue.NewManager(queue.Deps{
		Store:     store,
		Bus:       events.NewBus(eventLog, testLogger()),
		NotWanted: nw,
		Settings:  queue.DefaultSettings(),
		Logger:    testLogger(),
	})

	task, err := scheduler.NewTask(queue.NameWanted, "@every 1m", true, func(context.Context) error { return nil })
	require.NoError(t, err)
	sched, err := scheduler.New([]scheduler.Task{task}, m, testLogger())
	require.NoError(t, err)

	deps := ServerDeps{
		Store:     store,
		Manager:   m,
		Scheduler: sched,
		NotWanted: nw,
		EventLog:  eventLog,
		Logger:    testLogger(),
		Version:   "test",
	}
	for _, fn := range tune {
		fn(&deps)
	}
	srv, err := New(deps)
	require.NoError(t, err)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	return &testEnv{store: store, manager: m, sched: sched, nw: nw, log: eventLog, handler: mux}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) addMovie(t *testing.T, imdb string) *item.MediaItem {
	t.Helper()
	it, err := e.manager.AddItem(context.Background(), &item.MediaItem{
		Type:        item.TypeMovie,
		IMDBID:      item.Str(imdb),
		Title:       "Movie " + imdb,
		Year:        2010,
		ReleaseDate: ptr(time.Date(2010, 7, 16, 0, 0, 0, 0, time.Local)),
		Version:     "1080p",
	})
	require.NoError(t, err)
	return it
}

func ptr[T any](v T) *T { return &v }

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestServerDeps_Validate(t *testing.T) {
	_, err := New(ServerDeps{})
	assert.ErrorIs(t, err, ErrMissingDependency)

	env := newTestEnv(t)
	_, err = New(ServerDeps{Store: env.store})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	env.addMovie(t, "tt1375666")

	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[statusResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.False(t, resp.Paused)
	assert.Equal(t, 1, resp.Queues[queue.NameWanted])
	assert.Equal(t, 1, resp.States[item.StateWanted])
}

func TestListItems(t *testing.T) {
	env := newTestEnv(t)
	env.addMovie(t, "tt1375666")
	env.addMovie(t, "tt0816692")
	env.addMovie(t, "tt0468569")

	t.Run("paginated", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/items?limit=2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[listItemsResponse](t, w)
		assert.Len(t, resp.Items, 2)
		assert.Equal(t, 3, resp.Total)
		assert.Equal(t, 2, resp.Limit)
	})

	t.Run("filter by state", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/items?state=collected,blacklisted", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[listItemsResponse](t, w)
		assert.Empty(t, resp.Items)
		assert.NotNil(t, resp.Items, "empty list encodes as []")
	})

	t.Run("filter by imdb", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/items?imdb_id=tt0816692", nil)
		resp := decode[listItemsResponse](t, w)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "tt0816692", item.Deref(resp.Items[0].IMDBID))
	})

	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"unknown state", "state=downloading", "INVALID_STATE"},
		{"unknown type", "type=album", "INVALID_TYPE"},
		{"bad season", "season=one", "INVALID_SEASON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/v1/items?"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decode[errorResponse](t, w).Code)
		})
	}
}

func TestGetItem(t *testing.T) {
	env := newTestEnv(t)
	it := env.addMovie(t, "tt1375666")

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/items/%d", it.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[item.MediaItem](t, w)
	assert.Equal(t, it.ID, got.ID)
	assert.Equal(t, item.StateWanted, got.State)

	w = env.do(t, http.MethodGet, "/api/v1/items/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/items/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkItems(t *testing.T) {
	env := newTestEnv(t)
	a := env.addMovie(t, "tt1375666")
	b := env.addMovie(t, "tt0816692")

	t.Run("move", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/items/bulk", map[string]any{
			"ids": []int64{a.ID}, "action": "move", "state": "blacklisted",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, 1, decode[bulkResponse](t, w).Affected)

		got, err := env.store.Get(context.Background(), a.ID)
		require.NoError(t, err)
		assert.Equal(t, item.StateBlacklisted, got.State)
		assert.False(t, env.manager.Paused(), "bulk pause is released")
	})

	t.Run("delete unknown id", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/items/bulk", map[string]any{
			"ids": []int64{b.ID, 999}, "action": "delete",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
		_, err := env.store.Get(context.Background(), b.ID)
		assert.NoError(t, err, "failed bulk leaves items unchanged")
	})

	t.Run("invalid action", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/items/bulk", map[string]any{
			"ids": []int64{b.ID}, "action": "explode",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/items/bulk", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_JSON", decode[errorResponse](t, w).Code)
	})
}

func TestQueues(t *testing.T) {
	env := newTestEnv(t)
	env.addMovie(t, "tt1375666")

	w := env.do(t, http.MethodGet, "/api/v1/queues", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[listQueuesResponse](t, w)
	require.Len(t, resp.Queues, len(env.manager.Queues()))
	for _, q := range resp.Queues {
		if q.Name == queue.NameWanted {
			assert.Equal(t, 1, q.Size)
		}
	}

	w = env.do(t, http.MethodGet, "/api/v1/queues/wanted", nil)
	require.Equal(t, http.StatusOK, w.Code)
	q := decode[queueResponse](t, w)
	assert.Len(t, q.Items, 1)

	w = env.do(t, http.MethodGet, "/api/v1/queues/downloading", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPauseResume(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/queue/pause", pauseRequest{Reason: "maintenance"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[statusResponse](t, w)
	assert.True(t, resp.Paused)
	require.NotNil(t, resp.Pause)
	assert.Equal(t, "maintenance", resp.Pause.Reason)
	assert.Equal(t, queue.PauseManual, resp.Pause.ErrorType)
	assert.True(t, env.manager.Paused())

	w = env.do(t, http.MethodPost, "/api/v1/queue/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[statusResponse](t, w).Paused)
	assert.False(t, env.manager.Paused())
}

func TestTasks(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tasks struct {
		Tasks []scheduler.TaskInfo `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tasks))
	require.Len(t, tasks.Tasks, 1)
	assert.Equal(t, queue.NameWanted, tasks.Tasks[0].Name)

	w = env.do(t, http.MethodPost, "/api/v1/tasks/"+queue.NameWanted+"/trigger", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	trig := decode[triggerResponse](t, w)
	assert.NotEmpty(t, trig.JobID)

	w = env.do(t, http.MethodGet, "/api/v1/jobs/"+trig.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	job := decode[scheduler.Job](t, w)
	assert.Equal(t, queue.NameWanted, job.Task)
	assert.Equal(t, scheduler.JobQueued, job.Status)

	w = env.do(t, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/tasks/nope/trigger", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "UNKNOWN_TASK", decode[errorResponse](t, w).Code)

	w = env.do(t, http.MethodGet, "/api/v1/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/jobs/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotWanted(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.nw.AddHash("ABCDEF0123456789ABCDEF0123456789ABCDEF01"))
	require.NoError(t, env.nw.AddURL("https://example.com/a.torrent"))

	w := env.do(t, http.MethodGet, "/api/v1/notwanted", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[notWantedResponse](t, w)
	assert.Equal(t, []string{"abcdef0123456789abcdef0123456789abcdef01"}, resp.Hashes)
	assert.Equal(t, []string{"https://example.com/a.torrent"}, resp.URLs)

	w = env.do(t, http.MethodDelete, "/api/v1/notwanted/abcdef0123456789abcdef0123456789abcdef01", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, env.nw.Hashes())

	w = env.do(t, http.MethodDelete, "/api/v1/notwanted", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, env.nw.URLs())
}

func TestLibraryWebhook(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "Inception (2010)", "Inception.2010.1080p.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	watcher := library.NewWatcher([]string{root}, testLogger())
	env := newTestEnv(t, func(d *ServerDeps) { d.Library = watcher })

	w := env.do(t, http.MethodPost, "/api/v1/library/webhook", webhookRequest{Path: file})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, 1, watcher.Len())

	w = env.do(t, http.MethodPost, "/api/v1/library/webhook", webhookRequest{Path: "/elsewhere/file.mkv"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "OUTSIDE_LIBRARY", decode[errorResponse](t, w).Code)

	w = env.do(t, http.MethodPost, "/api/v1/library/webhook", webhookRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvents(t *testing.T) {
	env := newTestEnv(t)
	env.addMovie(t, "tt1375666")

	w := env.do(t, http.MethodGet, "/api/v1/events?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[listEventsResponse](t, w)
	var types []string
	for _, ev := range resp.Events {
		types = append(types, ev.EventType)
	}
	assert.Contains(t, types, events.EventItemAdded)
}

func TestOptionalDependencies(t *testing.T) {
	env := newTestEnv(t, func(d *ServerDeps) {
		d.Scheduler = nil
		d.NotWanted = nil
		d.EventLog = nil
	})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/tasks"},
		{http.MethodPost, "/api/v1/tasks/wanted/trigger"},
		{http.MethodGet, "/api/v1/notwanted"},
		{http.MethodPost, "/api/v1/library/webhook"},
		{http.MethodGet, "/api/v1/events"},
	} {
		w := env.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, tc.path)
	}
}

// failingRunner rejects every trigger.
type failingRunner struct{ TaskRunner }

func (failingRunner) Trigger(string) (uuid.UUID, error) { return uuid.Nil, errors.New("boom") }

func TestTriggerFailure(t *testing.T) {
	env := newTestEnv(t)
	srv, err := New(ServerDeps{Store: env.store, Manager: env.manager, Scheduler: failingRunner{TaskRunner: env.sched}, Logger: testLogger()})
	require.NoError(t, err)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	env.handler = mux

	w := env.do(t, http.MethodPost, "/api/v1/tasks/wanted/trigger", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
