package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vmunix/reelq/internal/item"
)

// Client wraps HTTP calls to the reelq server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new reelq API client.
func NewClient(serverURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx answer of the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

func (c *Client) do(method, path string, body, result any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			apiErr.Message, apiErr.Code = e.Error, e.Code
		}
		return apiErr
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func (c *Client) get(path string, result any) error {
	return c.do(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.do(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	return c.do(http.MethodDelete, path, nil, nil)
}

// API response types (mirror server types)

type PauseInfo struct {
	Reason    string    `json:"reason"`
	ErrorType string    `json:"error_type,omitempty"`
	Service   string    `json:"service,omitempty"`
	Since     time.Time `json:"since"`
}

type StatusResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Paused  bool           `json:"paused"`
	Pause   *PauseInfo     `json:"pause,omitempty"`
	Queues  map[string]int `json:"queues"`
	States  map[string]int `json:"states"`
}

type ListItemsResponse struct {
	Items  []item.MediaItem `json:"items"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type QueueResponse struct {
	Name  string           `json:"name"`
	Size  int              `json:"size"`
	Items []item.MediaItem `json:"items,omitempty"`
}

type ListQueuesResponse struct {
	Queues []QueueResponse `json:"queues"`
	Paused bool            `json:"paused"`
}

type TaskResponse struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Pausable  bool       `json:"pausable"`
	Enabled   bool       `json:"enabled"`
	NextRun   time.Time  `json:"next_run"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type JobResponse struct {
	ID         string     `json:"id"`
	Task       string     `json:"task"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	QueuedAt   time.Time  `json:"queued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type TriggerResponse struct {
	JobID string `json:"job_id"`
	Task  string `json:"task"`
}

type BulkRequest struct {
	IDs     []int64 `json:"ids"`
	Action  string  `json:"action"`
	State   string  `json:"state,omitempty"`
	Version string  `json:"version,omitempty"`
}

type BulkResponse struct {
	Action   string `json:"action"`
	Affected int    `json:"affected"`
}

type NotWantedResponse struct {
	Hashes []string `json:"hashes"`
	URLs   []string `json:"urls"`
}

// API methods

func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get("/api/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ItemFilter narrows Items.
type ItemFilter struct {
	State  string
	Type   string
	Limit  int
	Offset int
}

func (c *Client) Items(f ItemFilter) (*ListItemsResponse, error) {
	q := url.Values{}
	if f.State != "" {
		q.Set("state", f.State)
	}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	path := "/api/v1/items"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp ListItemsResponse
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Item(id int64) (*item.MediaItem, error) {
	var resp item.MediaItem
	if err := c.get(fmt.Sprintf("/api/v1/items/%d", id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Bulk(req BulkRequest) (*BulkResponse, error) {
	var resp BulkResponse
	if err := c.post("/api/v1/items/bulk", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Queues() (*ListQueuesResponse, error) {
	var resp ListQueuesResponse
	if err := c.get("/api/v1/queues", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Queue(name string) (*QueueResponse, error) {
	var resp QueueResponse
	if err := c.get("/api/v1/queues/"+url.PathEscape(name), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Pause(reason string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.post("/api/v1/queue/pause", map[string]string{"reason": reason}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Resume() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.post("/api/v1/queue/resume", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Tasks() ([]TaskResponse, error) {
	var resp struct {
		Tasks []TaskResponse `json:"tasks"`
	}
	if err := c.get("/api/v1/tasks", &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (c *Client) Trigger(task string) (*TriggerResponse, error) {
	var resp TriggerResponse
	if err := c.post("/api/v1/tasks/"+url.PathEscape(task)+"/trigger", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Job(id string) (*JobResponse, error) {
	var resp JobResponse
	if err := c.get("/api/v1/jobs/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Jobs() ([]JobResponse, error) {
	var resp struct {
		Jobs []JobResponse `json:"jobs"`
	}
	if err := c.get("/api/v1/jobs", &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (c *Client) NotWanted() (*NotWantedResponse, error) {
	var resp NotWantedResponse
	if err := c.get("/api/v1/notwanted", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) PurgeNotWanted() error {
	return c.delete("/api/v1/notwanted")
}

func (c *Client) RemoveNotWanted(value string) error {
	return c.delete("/api/v1/notwanted/" + url.PathEscape(value))
}
