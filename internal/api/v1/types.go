package v1

import (
	"github.com/vmunix/reelq/internal/events"
	"github.com/vmunix/reelq/internal/item"
	"github.com/vmunix/reelq/internal/queue"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type statusResponse struct {
	Status  string             `json:"status"`
	Version string             `json:"version"`
	Paused  bool               `json:"paused"`
	Pause   *queue.PauseInfo   `json:"pause,omitempty"`
	Queues  map[string]int     `json:"queues"`
	States  map[item.State]int `json:"states"`
}

type listItemsResponse struct {
	Items  []*item.MediaItem `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type bulkRequest struct {
	IDs []int64 `json:"ids"`
	queue.BulkAction
}

type bulkResponse struct {
	Action   queue.BulkKind `json:"action"`
	Affected int            `json:"affected"`
}

type queueResponse struct {
	Name  string           `json:"name"`
	Size  int              `json:"size"`
	Items []item.MediaItem `json:"items,omitempty"`
}

type listQueuesResponse struct {
	Queues []queueResponse `json:"queues"`
	Paused bool            `json:"paused"`
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

type triggerResponse struct {
	JobID string `json:"job_id"`
	Task  string `json:"task"`
}

type notWantedResponse struct {
	Hashes []string `json:"hashes"`
	URLs   []string `json:"urls"`
}

type webhookRequest struct {
	Path string `json:"path"`
}

type listEventsResponse struct {
	Events []events.RawEvent `json:"events"`
}
