package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const userAgent = "reelq/1"

// HTTPList fetches a JSON wanted list over HTTP.
type HTTPList struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// HTTPOption configures an HTTPList.
type HTTPOption func(*HTTPList)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(l *HTTPList) { l.httpClient = hc }
}

// WithAPIKey sends key in the X-Api-Key header.
func WithAPIKey(key string) HTTPOption {
	return func(l *HTTPList) { l.apiKey = key }
}

// NewHTTPList creates a producer for the list at url.
func NewHTTPList(url string, opts ...HTTPOption) *HTTPList {
	l := &HTTPList{
		url:        url,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *HTTPList) Fetch(ctx context.Context) ([]WantedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if l.apiKey != "" {
		req.Header.Set("X-Api-Key", l.apiKey)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch %s: %s: %s", l.url, resp.Status, body)
	}
	return decodeList(resp.Body)
}

// FileList reads a JSON wanted list from disk on every fetch.
type FileList struct {
	path string
}

// NewFileList creates a producer for the file at path.
func NewFileList(path string) *FileList { return &FileList{path: path} }

// Fetch returns no items, not an error, while the file does not exist.
func (l *FileList) Fetch(context.Context) ([]WantedItem, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	defer f.Close()
	items, err := decodeList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.path, err)
	}
	return items, nil
}
