package debrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vmunix/reelq/internal/metrics"
)

// DefaultRealDebridURL is the production REST endpoint.
const DefaultRealDebridURL = "https://api.real-debrid.com/rest/1.0"

// Real-Debrid error codes that map onto package sentinels.
const (
	rdCodeBadToken        = 8
	rdCodeTooManyActive   = 21
	rdCodeUnknownResource = 7
	rdCodeTooManyRequests = 34
	rdCodeServiceDown     = 25
)

// RealDebrid is a Real-Debrid API client. Requests are throttled by a
// token bucket shared by every caller.
type RealDebrid struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger

	cacheChecks   int
	cacheInterval time.Duration
}

// RealDebridOption configures a RealDebrid client.
type RealDebridOption func(*RealDebrid)

// WithRateLimit sets the request rate (per second) and burst.
func WithRateLimit(perSecond float64, burst int) RealDebridOption {
	return func(c *RealDebrid) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) RealDebridOption {
	return func(c *RealDebrid) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) RealDebridOption {
	return func(c *RealDebrid) { c.log = log }
}

// WithCacheCheck sets how many times a freshly added torrent is polled
// before it is declared uncached.
func WithCacheCheck(attempts int, interval time.Duration) RealDebridOption {
	return func(c *RealDebrid) { c.cacheChecks, c.cacheInterval = attempts, interval }
}

// NewRealDebrid creates a client. An empty baseURL uses the production API.
func NewRealDebrid(baseURL, token string, opts ...RealDebridOption) *RealDebrid {
	if baseURL == "" {
		baseURL = DefaultRealDebridURL
	}
	c := &RealDebrid{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		token:         token,
		httpClient:    &http.Client{Timeout: 20 * time.Second},
		limiter:       rate.NewLimiter(rate.Limit(4), 4),
		log:           slog.Default(),
		cacheChecks:   3,
		cacheInterval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "realdebrid")
	return c
}

type rdAddResponse struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

type rdFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

type rdInfo struct {
	ID       string   `json:"id"`
	Filename string   `json:"filename"`
	Hash     string   `json:"hash"`
	Status   string   `json:"status"`
	Progress float64  `json:"progress"`
	Files    []rdFile `json:"files"`
	Links    []string `json:"links"`
}

type rdActiveCount struct {
	Count int `json:"nb"`
	Limit int `json:"limit"`
}

type rdError struct {
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code"`
}

// AddTorrent submits a magnet URI or .torrent URL and selects every file.
// Without opts.AllowUncached a torrent that is not instantly downloaded is
// removed again and ErrUncached returned.
func (c *RealDebrid) AddTorrent(ctx context.Context, link string, opts AddOptions) (string, error) {
	id, err := c.add(ctx, link)
	if err != nil {
		return "", err
	}
	log := c.log.With("torrent_id", id)

	if err := c.do(ctx, http.MethodPost, "/torrents/selectFiles/"+id, url.Values{"files": {"all"}}, nil, nil); err != nil {
		c.cleanup(ctx, id)
		return "", fmt.Errorf("select files %s: %w", id, err)
	}

	for attempt := 0; ; attempt++ {
		info, err := c.TorrentInfo(ctx, id)
		if err != nil {
			c.cleanup(ctx, id)
			return "", err
		}
		switch {
		case Failed(info.Status):
			c.cleanup(ctx, id)
			return "", fmt.Errorf("torrent %s is %s: %w", id, info.Status, ErrTorrentFailed)
		case info.Downloaded():
			log.Info("torrent cached", "filename", info.Filename)
			return id, nil
		case opts.AllowUncached:
			log.Info("uncached torrent accepted", "status", info.Status)
			return id, nil
		}
		if attempt+1 >= c.cacheChecks {
			c.cleanup(ctx, id)
			log.Debug("torrent not cached", "status", info.Status)
			return "", ErrUncached
		}
		select {
		case <-ctx.Done():
			c.cleanup(context.WithoutCancel(ctx), id)
			return "", ctx.Err()
		case <-time.After(c.cacheInterval):
		}
	}
}

func (c *RealDebrid) add(ctx context.Context, link string) (string, error) {
	var resp rdAddResponse
	switch {
	case strings.HasPrefix(link, "magnet:"):
		if err := c.do(ctx, http.MethodPost, "/torrents/addMagnet", url.Values{"magnet": {link}}, nil, &resp); err != nil {
			return "", fmt.Errorf("add magnet: %w", err)
		}
	case strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://"):
		body, err := c.fetchTorrent(ctx, link)
		if err != nil {
			return "", err
		}
		if err := c.do(ctx, http.MethodPut, "/torrents/addTorrent", nil, body, &resp); err != nil {
			return "", fmt.Errorf("add torrent: %w", err)
		}
	default:
		return "", fmt.Errorf("unsupported link %q: %w", link, ErrTorrentFailed)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("add returned no id: %w", ErrTorrentFailed)
	}
	return resp.ID, nil
}

// fetchTorrent downloads a .torrent file from an indexer.
func (c *RealDebrid) fetchTorrent(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch torrent file: %w", ErrUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch torrent file: status %d: %w", resp.StatusCode, ErrTorrentFailed)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read torrent file: %w", err)
	}
	return data, nil
}

// TorrentInfo returns the current state of a torrent.
func (c *RealDebrid) TorrentInfo(ctx context.Context, id string) (*TorrentInfo, error) {
	var resp rdInfo
	if err := c.do(ctx, http.MethodGet, "/torrents/info/"+id, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("torrent info %s: %w", id, err)
	}
	info := &TorrentInfo{
		ID:       resp.ID,
		Filename: resp.Filename,
		Hash:     strings.ToLower(resp.Hash),
		Status:   resp.Status,
		Progress: resp.Progress,
		Links:    resp.Links,
	}
	for _, f := range resp.Files {
		info.Files = append(info.Files, TorrentFile{
			ID:       f.ID,
			Path:     strings.TrimPrefix(f.Path, "/"),
			Size:     f.Bytes,
			Selected: f.Selected == 1,
		})
	}
	return info, nil
}

// ActiveDownloads returns the number of active downloads and the account limit.
func (c *RealDebrid) ActiveDownloads(ctx context.Context) (int, int, error) {
	var resp rdActiveCount
	if err := c.do(ctx, http.MethodGet, "/torrents/activeCount", nil, nil, &resp); err != nil {
		return 0, 0, fmt.Errorf("active downloads: %w", err)
	}
	return resp.Count, resp.Limit, nil
}

// RemoveTorrent deletes a torrent. A torrent that is already gone is not an error.
func (c *RealDebrid) RemoveTorrent(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/torrents/delete/"+id, nil, nil, nil)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("remove torrent %s: %w", id, err)
	}
	return nil
}

func (c *RealDebrid) cleanup(ctx context.Context, id string) {
	if err := c.RemoveTorrent(ctx, id); err != nil {
		c.log.Warn("remove torrent failed", "torrent_id", id, "error", err)
	}
}

// do sends one API request. form is sent url-encoded; raw is sent as the
// body when form is nil.
func (c *RealDebrid) do(ctx context.Context, method, endpoint string, form url.Values, raw []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	label := endpointLabel(endpoint)

	var body io.Reader
	switch {
	case form != nil:
		body = strings.NewReader(form.Encode())
	case raw != nil:
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncDebridRequest(label, "transport_error")
		c.log.Debug("api request failed", "endpoint", label, "error", err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", err, ErrUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		err := classify(resp)
		metrics.IncDebridRequest(label, "error")
		c.log.Debug("api error", "endpoint", label, "status", resp.StatusCode, "error", err)
		return err
	}
	metrics.IncDebridRequest(label, "ok")
	c.log.Debug("api request complete", "endpoint", label, "duration_ms", time.Since(start).Milliseconds())

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classify maps an error response to a package sentinel.
func classify(resp *http.Response) error {
	var apiErr rdError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case apiErr.ErrorCode == rdCodeTooManyActive || resp.StatusCode == 509:
		return fmt.Errorf("%s: %w", msg, ErrTooManyDownloads)
	case apiErr.ErrorCode == rdCodeBadToken || resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", msg, ErrInvalidToken)
	case apiErr.ErrorCode == rdCodeUnknownResource || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	case apiErr.ErrorCode == rdCodeTooManyRequests || apiErr.ErrorCode == rdCodeServiceDown,
		resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("%s: %w", msg, ErrUnavailable)
	}
	return fmt.Errorf("status %d: %s: %w", resp.StatusCode, msg, ErrTorrentFailed)
}

// endpointLabel strips ids from an endpoint for metric labels.
func endpointLabel(endpoint string) string {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, "/")
}
