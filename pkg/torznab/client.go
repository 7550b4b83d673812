// Package torznab implements the Torznab torrent indexer API, the torrent
// flavour of the Newznab protocol served by Jackett, Prowlarr and friends.
package torznab

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Search types.
const (
	SearchGeneric = "search"
	SearchMovie   = "movie"
	SearchTV      = "tvsearch"
)

// Client is a Torznab API client for a single indexer.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// Release represents a search result from a Torznab indexer.
type Release struct {
	Title       string
	GUID        string
	Link        string // .torrent download URL
	MagnetURI   string
	InfoHash    string
	Size        int64
	Seeders     int
	PublishDate time.Time
	Indexer     string
}

// Query describes one search request.
type Query struct {
	Type       string // SearchGeneric, SearchMovie or SearchTV
	Text       string
	IMDBID     string
	Season     int
	Episode    int
	Categories []int
	Limit      int
	Offset     int
}

// NewClient creates a new Torznab client.
func NewClient(name, baseURL, apiKey string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With("component", "torznab", "indexer", name),
	}
}

// Name returns the indexer name.
func (c *Client) Name() string {
	return c.name
}

// Caps performs a capabilities request to test connectivity.
func (c *Client) Caps(ctx context.Context) error {
	params := url.Values{}
	params.Set("t", "caps")
	params.Set("apikey", c.apiKey)

	resp, err := c.get(ctx, params)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return nil
}

// Torznab RSS response structures
type rssResponse struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title     string        `xml:"title"`
	GUID      string        `xml:"guid"`
	Link      string        `xml:"link"`
	Size      int64         `xml:"size"`
	PubDate   string        `xml:"pubDate"`
	Enclosure rssEnclosure  `xml:"enclosure"`
	Attrs     []torznabAttr `xml:"http://torznab.com/schemas/2015/feed attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// errorResponse is returned by indexers instead of an rss document.
type errorResponse struct {
	XMLName     xml.Name `xml:"error"`
	Code        string   `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

func (c *Client) get(ctx context.Context, params url.Values) (*http.Response, error) {
	reqURL, err := url.Parse(c.baseURL + "/api")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return resp, nil
}

// Search runs q against the indexer.
func (c *Client) Search(ctx context.Context, q Query) ([]Release, error) {
	start := time.Now()

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	kind := q.Type
	if kind == "" {
		kind = SearchGeneric
	}
	params.Set("t", kind)
	if q.Text != "" {
		params.Set("q", q.Text)
	}
	if q.IMDBID != "" {
		params.Set("imdbid", q.IMDBID)
	}
	if q.Season > 0 {
		params.Set("season", strconv.Itoa(q.Season))
	}
	if q.Episode > 0 {
		params.Set("ep", strconv.Itoa(q.Episode))
	}
	if len(q.Categories) > 0 {
		cats := make([]string, len(q.Categories))
		for i, cat := range q.Categories {
			cats[i] = strconv.Itoa(cat)
		}
		params.Set("cat", strings.Join(cats, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	resp, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readAll(resp)
	if err != nil {
		return nil, err
	}

	var rss rssResponse
	if err := xml.Unmarshal(body, &rss); err != nil {
		var apiErr errorResponse
		if xml.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
			return nil, fmt.Errorf("indexer error %s: %s", apiErr.Code, apiErr.Description)
		}
		return nil, fmt.Errorf("parse response: %w", err)
	}

	releases := make([]Release, 0, len(rss.Channel.Items))
	for _, item := range rss.Channel.Items {
		releases = append(releases, c.convert(item))
	}

	c.log.Debug("search complete", "type", kind, "query", q.Text, "imdb_id", q.IMDBID,
		"results", len(releases), "duration_ms", time.Since(start).Milliseconds())
	return releases, nil
}

func (c *Client) convert(item rssItem) Release {
	rel := Release{
		Title:   item.Title,
		GUID:    item.GUID,
		Link:    item.Link,
		Indexer: c.name,
	}

	// Size from enclosure or item
	if item.Enclosure.Length > 0 {
		rel.Size = item.Enclosure.Length
	} else if item.Size > 0 {
		rel.Size = item.Size
	}
	if rel.Link == "" {
		rel.Link = item.Enclosure.URL
	}

	for _, attr := range item.Attrs {
		switch attr.Name {
		case "magneturl":
			rel.MagnetURI = attr.Value
		case "infohash":
			rel.InfoHash = strings.ToLower(attr.Value)
		case "seeders":
			rel.Seeders, _ = strconv.Atoi(attr.Value)
		case "size":
			if rel.Size == 0 {
				rel.Size, _ = strconv.ParseInt(attr.Value, 10, 64)
			}
		}
	}
	// Some indexers put the magnet in <link>.
	if rel.MagnetURI == "" && strings.HasPrefix(rel.Link, "magnet:") {
		rel.MagnetURI, rel.Link = rel.Link, ""
	}

	if item.PubDate != "" {
		for _, format := range []string{
			time.RFC1123Z,
			"Mon, 02 Jan 2006 15:04:05 -0700",
			"Mon, 02 Jan 2006 15:04:05 MST",
			time.RFC1123,
		} {
			if t, err := time.Parse(format, item.PubDate); err == nil {
				rel.PublishDate = t
				break
			}
		}
	}
	return rel
}
