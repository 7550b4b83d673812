// Package v1 implements the native admin REST API.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vmunix/reelq/internal/events"
	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/library"
	"github.com/vmunix/reelq/internal/metrics"
	"github.com/vmunix/reelq/internal/queue"
	"github.com/vmunix/reelq/internal/scheduler"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// Server is the v1 API server.
type Server struct {
	deps ServerDeps
	log  *slog.Logger
}

// New creates a v1 API server with validated dependencies.
func New(deps ServerDeps) (*Server, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{deps: deps, log: deps.Logger.With("component", "api")}, nil
}

// RegisterRoutes registers API routes on the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	api := http.NewServeMux()

	api.HandleFunc("GET /api/v1/status", s.getStatus)

	// Items
	api.HandleFunc("GET /api/v1/items", s.listItems)
	api.HandleFunc("GET /api/v1/items/{id}", s.getItem)
	api.HandleFunc("POST /api/v1/items/bulk", s.bulkItems)

	// Queues
	api.HandleFunc("GET /api/v1/queues", s.listQueues)
	api.HandleFunc("GET /api/v1/queues/{name}", s.getQueue)
	api.HandleFunc("POST /api/v1/queue/pause", s.pauseQueue)
	api.HandleFunc("POST /api/v1/queue/resume", s.resumeQueue)

	// Tasks
	api.HandleFunc("GET /api/v1/tasks", s.requireScheduler(s.listTasks))
	api.HandleFunc("POST /api/v1/tasks/{name}/trigger", s.requireScheduler(s.triggerTask))
	api.HandleFunc("GET /api/v1/jobs", s.requireScheduler(s.listJobs))
	api.HandleFunc("GET /api/v1/jobs/{id}", s.requireScheduler(s.getJob))

	// Not wanted
	api.HandleFunc("GET /api/v1/notwanted", s.requireNotWanted(s.listNotWanted))
	api.HandleFunc("DELETE /api/v1/notwanted", s.requireNotWanted(s.purgeNotWanted))
	api.HandleFunc("DELETE /api/v1/notwanted/{value}", s.requireNotWanted(s.removeNotWanted))

	api.HandleFunc("POST /api/v1/library/webhook", s.requireLibrary(s.libraryWebhook))
	api.HandleFunc("GET /api/v1/events", s.listEvents)

	mux.Handle("/api/v1/", s.logRequests(api))
	mux.Handle("GET /metrics", metrics.Handler())
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: errCode})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// writeStoreError maps store and manager errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, item.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, queue.ErrInvalidBulkAction), errors.Is(err, item.ErrUnknownField),
		errors.Is(err, item.ErrInvalidItem), errors.Is(err, item.ErrMissingIdentifier):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, item.ErrInvalidTransition), errors.Is(err, item.ErrStateMismatch),
		errors.Is(err, item.ErrDuplicateItem):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, item.ErrDatabaseLocked):
		writeError(w, http.StatusServiceUnavailable, "DATABASE_LOCKED", "database is locked")
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// pathID extracts an integer ID from the URL path.
func pathID(r *http.Request, name string) (int64, error) {
	idStr := r.PathValue(name)
	if idStr == "" {
		return 0, fmt.Errorf("missing path parameter: %s", name)
	}
	return strconv.ParseInt(idStr, 10, 64)
}

// queryInt extracts an optional integer from query string.
func queryInt(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

// queryString extracts an optional string from query string.
func queryString(r *http.Request, name string) *string {
	val := r.URL.Query().Get(name)
	if val == "" {
		return nil
	}
	return &val
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Store.CountByState(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	m := s.deps.Manager
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "ok",
		Version: s.deps.Version,
		Paused:  m.Paused(),
		Pause:   m.PauseInfo(),
		Queues:  m.Sizes(),
		States:  counts,
	})
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	f := item.Filter{
		Limit:   queryInt(r, "limit", defaultListLimit),
		Offset:  queryInt(r, "offset", 0),
		IMDBID:  queryString(r, "imdb_id"),
		Version: queryString(r, "version"),
	}
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	// state=wanted,scraping
	if v := queryString(r, "state"); v != nil {
		for _, name := range strings.Split(*v, ",") {
			st := item.State(strings.TrimSpace(name))
			if !st.Valid() {
				writeError(w, http.StatusBadRequest, "INVALID_STATE", fmt.Sprintf("unknown state %q", name))
				return
			}
			f.States = append(f.States, st)
		}
	}
	if v := queryString(r, "type"); v != nil {
		mt := item.MediaType(*v)
		if !mt.Valid() {
			writeError(w, http.StatusBadRequest, "INVALID_TYPE", "type must be 'movie' or 'episode'")
			return
		}
		f.Type = &mt
	}
	if v := queryString(r, "season"); v != nil {
		n, err := strconv.Atoi(*v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SEASON", "season must be a number")
			return
		}
		f.Season = &n
	}

	items, total, err := s.deps.Store.List(r.Context(), f)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if items == nil {
		items = []*item.MediaItem{}
	}
	writeJSON(w, http.StatusOK, listItemsResponse{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset})
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid item ID")
		return
	}
	it, err := s.deps.Store.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) bulkItems(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if err := s.deps.Manager.Bulk(r.Context(), req.IDs, req.BulkAction); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.log.Info("bulk action applied", "action", req.Kind, "items", len(req.IDs))
	writeJSON(w, http.StatusOK, bulkResponse{Action: req.Kind, Affected: len(req.IDs)})
}

func (s *Server) listQueues(w http.ResponseWriter, r *http.Request) {
	m := s.deps.Manager
	sizes := m.Sizes()
	resp := listQueuesResponse{Paused: m.Paused()}
	for _, q := range m.Queues() {
		resp.Queues = append(resp.Queues, queueResponse{Name: q.Name(), Size: sizes[q.Name()]})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getQueue(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	q, ok := s.deps.Manager.Queue(name)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("unknown queue %q", name))
		return
	}
	contents := q.Contents()
	writeJSON(w, http.StatusOK, queueResponse{Name: q.Name(), Size: len(contents), Items: contents})
}

func (s *Server) pauseQueue(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "paused by admin"
	}
	m := s.deps.Manager
	m.Pause(r.Context(), queue.PauseInfo{Reason: req.Reason, ErrorType: queue.PauseManual})
	writeJSON(w, http.StatusOK, statusResponse{Status: "paused", Version: s.deps.Version, Paused: true, Pause: m.PauseInfo(), Queues: m.Sizes()})
}

func (s *Server) resumeQueue(w http.ResponseWriter, r *http.Request) {
	m := s.deps.Manager
	m.Resume(r.Context(), "resumed by admin")
	writeJSON(w, http.StatusOK, statusResponse{Status: "running", Version: s.deps.Version, Paused: m.Paused(), Queues: m.Sizes()})
}

func (s *Server) listTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.deps.Scheduler.Tasks()})
}

func (s *Server) triggerTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	id, err := s.deps.Scheduler.Trigger(name)
	if errors.Is(err, scheduler.ErrUnknownTask) {
		writeError(w, http.StatusNotFound, "UNKNOWN_TASK", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, triggerResponse{JobID: id.String(), Task: name})
}

func (s *Server) listJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := s.deps.Scheduler.Jobs()
	if jobs == nil {
		jobs = []scheduler.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid job ID")
		return
	}
	job, ok := s.deps.Scheduler.Job(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) listNotWanted(w http.ResponseWriter, _ *http.Request) {
	nw := s.deps.NotWanted
	resp := notWantedResponse{Hashes: nw.Hashes(), URLs: nw.URLs()}
	if resp.Hashes == nil {
		resp.Hashes = []string{}
	}
	if resp.URLs == nil {
		resp.URLs = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) purgeNotWanted(w http.ResponseWriter, _ *http.Request) {
	if err := s.deps.NotWanted.PurgeAll(); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	s.log.Info("not-wanted registry purged")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeNotWanted(w http.ResponseWriter, r *http.Request) {
	value := r.PathValue("value")
	if err := s.deps.NotWanted.Remove(value); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) libraryWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PATH", "path is required")
		return
	}
	if err := s.deps.Library.Notify(req.Path); err != nil {
		if errors.Is(err, library.ErrOutsideLibrary) {
			writeError(w, http.StatusBadRequest, "OUTSIDE_LIBRARY", err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "NOTIFY_FAILED", err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.EventLog == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Event log not configured")
		return
	}
	limit := queryInt(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	evs, err := s.deps.EventLog.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	resp := listEventsResponse{Events: evs}
	if resp.Events == nil {
		resp.Events = []events.RawEvent{}
	}
	writeJSON(w, http.StatusOK, resp)
}
