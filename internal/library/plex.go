package library

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmunix/reelq/internal/item"
)

// Plex is a pull-mode library backed by a Plex Media Server. Paths are
// translated between the local filesystem and the server's view.
type Plex struct {
	baseURL    string
	token      string
	remotePath string // Path prefix as seen by Plex
	localPath  string // Corresponding local path
	httpClient *http.Client
	log        *slog.Logger
}

// NewPlex creates a Plex library client. baseURL is canonicalized.
func NewPlex(baseURL, token, localPath, remotePath string, log *slog.Logger) *Plex {
	if log == nil {
		log = slog.Default()
	}
	return &Plex{
		baseURL:    CanonicalURL(baseURL),
		token:      token,
		localPath:  localPath,
		remotePath: remotePath,
		log:        log.With("component", "plex"),
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// CanonicalURL normalizes a user-supplied Plex address: the scheme
// defaults to http, the default port is 32400, the host is lower-cased
// and any path or trailing slash is dropped.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" && u.Scheme == "http" {
		port = "32400"
	}
	if port != "" {
		host += ":" + port
	}
	return u.Scheme + "://" + host
}

// BaseURL returns the canonical server address.
func (c *Plex) BaseURL() string { return c.baseURL }

// translateToRemote converts a local path to the path Plex expects.
func (c *Plex) translateToRemote(path string) string {
	if c.localPath == "" || c.remotePath == "" {
		return path
	}
	if strings.HasPrefix(path, c.localPath) {
		return c.remotePath + path[len(c.localPath):]
	}
	return path
}

// TranslateToLocal converts a Plex path to the local path.
func (c *Plex) TranslateToLocal(path string) string {
	if c.localPath == "" || c.remotePath == "" {
		return path
	}
	if strings.HasPrefix(path, c.remotePath) {
		return c.localPath + path[len(c.remotePath):]
	}
	return path
}

type plexSection struct {
	Key       string `xml:"key,attr"`
	Title     string `xml:"title,attr"`
	Type      string `xml:"type,attr"`
	Locations []struct {
		Path string `xml:"path,attr"`
	} `xml:"Location"`
}

type plexVideo struct {
	RatingKey string `xml:"ratingKey,attr"`
	Title     string `xml:"title,attr"`
	Type      string `xml:"type,attr"`
	Year      int    `xml:"year,attr"`
	Season    int    `xml:"parentIndex,attr"`
	Episode   int    `xml:"index,attr"`
	Media     []struct {
		Part []struct {
			File string `xml:"file,attr"`
		} `xml:"Part"`
	} `xml:"Media"`
}

func (v plexVideo) files() []string {
	var out []string
	for _, m := range v.Media {
		for _, p := range m.Part {
			out = append(out, p.File)
		}
	}
	return out
}

type mediaContainer struct {
	XMLName     xml.Name    `xml:"MediaContainer"`
	Videos      []plexVideo `xml:"Video"`     // Movies, episodes
	Directories []plexVideo `xml:"Directory"` // TV shows
}

type sectionsContainer struct {
	XMLName  xml.Name      `xml:"MediaContainer"`
	Sections []plexSection `xml:"Directory"`
}

func (c *Plex) getXML(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ConfirmCollected searches Plex for the item and matches media parts
// against filled_by_file. Shows are expanded to their episodes.
func (c *Plex) ConfirmCollected(ctx context.Context, it item.MediaItem) (Confirmation, error) {
	file := item.Deref(it.FilledByFile)
	if file == "" {
		return Confirmation{}, nil
	}
	want := fileKey(file)

	var result mediaContainer
	if err := c.getXML(ctx, "/search?query="+url.QueryEscape(it.Title), &result); err != nil {
		return Confirmation{}, fmt.Errorf("plex search %q: %w", it.Title, err)
	}

	videos := result.Videos
	if it.IsEpisode() {
		for _, dir := range result.Directories {
			if dir.Type != "show" {
				continue
			}
			var leaves mediaContainer
			if err := c.getXML(ctx, "/library/metadata/"+dir.RatingKey+"/allLeaves", &leaves); err != nil {
				return Confirmation{}, fmt.Errorf("plex episodes %s: %w", dir.RatingKey, err)
			}
			videos = append(videos, leaves.Videos...)
		}
	}

	for _, v := range videos {
		for _, f := range v.files() {
			if fileKey(f) != want {
				continue
			}
			loc := c.TranslateToLocal(f)
			c.log.Debug("plex confirmed item", "item_id", it.ID, "path", loc)
			return Confirmation{Collected: true, Location: loc, OriginalPath: resolve(loc)}, nil
		}
	}
	return Confirmation{}, nil
}

// RemoveFile deletes a replaced file from local storage and asks Plex to
// rescan its directory.
func (c *Plex) RemoveFile(ctx context.Context, title, p, episodeTitle string) error {
	if p == "" {
		return nil
	}
	local := c.TranslateToLocal(p)
	if err := os.Remove(local); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", local, err)
	}
	c.log.Info("library file removed", "title", title, "episode_title", episodeTitle, "path", local)
	if err := c.ScanPath(ctx, local); err != nil {
		c.log.Warn("plex rescan after removal failed", "path", local, "error", err)
	}
	return nil
}

// ScanPath triggers a partial scan of the directory containing filePath.
func (c *Plex) ScanPath(ctx context.Context, filePath string) error {
	remotePath := c.translateToRemote(filePath)
	remoteDir := filepath.Dir(remotePath)

	var sections sectionsContainer
	if err := c.getXML(ctx, "/library/sections", &sections); err != nil {
		return fmt.Errorf("get sections: %w", err)
	}

	var sectionKey string
	for _, section := range sections.Sections {
		for _, loc := range section.Locations {
			if strings.HasPrefix(remoteDir, loc.Path) || strings.HasPrefix(remotePath, loc.Path) {
				sectionKey = section.Key
				break
			}
		}
		if sectionKey != "" {
			break
		}
	}
	if sectionKey == "" {
		return fmt.Errorf("no library section found for path: %s (translated: %s)", filePath, remotePath)
	}

	endpoint := fmt.Sprintf("/library/sections/%s/refresh?path=%s", sectionKey, url.QueryEscape(remoteDir))
	if err := c.getXML(ctx, endpoint, nil); err != nil {
		return fmt.Errorf("scan section %s: %w", sectionKey, err)
	}
	c.log.Debug("scan triggered", "section", sectionKey, "path", remoteDir)
	return nil
}
