package item

import (
	"encoding/base32"
	"encoding/hex"
	"net/url"
	"strings"
)

// Candidate is one ranked scrape result. Lists of candidates are persisted
// on the item between Scraping and Adding.
type Candidate struct {
	Title   string  `json:"title"`
	Magnet  string  `json:"magnet,omitempty"`
	URL     string  `json:"url,omitempty"` // torrent file URL when no magnet is known
	Hash    string  `json:"hash,omitempty"`
	Size    int64   `json:"size,omitempty"`
	Score   float64 `json:"score"`
	Version string  `json:"version,omitempty"`
	Indexer string  `json:"indexer,omitempty"`
}

// Link returns the value submitted to a debrid backend.
func (c Candidate) Link() string {
	if c.Magnet != "" {
		return c.Magnet
	}
	return c.URL
}

// InfoHash returns the lower-case btih hash of the candidate, or "".
func (c Candidate) InfoHash() string {
	if c.Hash != "" {
		return NormalizeHash(c.Hash)
	}
	return HashFromMagnet(c.Magnet)
}

// HashFromMagnet extracts the btih info hash from a magnet URI.
func HashFromMagnet(magnet string) string {
	if !strings.HasPrefix(magnet, "magnet:") {
		return ""
	}
	u, err := url.Parse(magnet)
	if err != nil {
		return ""
	}
	for _, xt := range u.Query()["xt"] {
		if len(xt) > len("urn:btih:") && strings.EqualFold(xt[:len("urn:btih:")], "urn:btih:") {
			return NormalizeHash(xt[len("urn:btih:"):])
		}
	}
	return ""
}

// NormalizeHash returns a btih hash as lower-case hex. 32-character
// base32 hashes are converted; anything else is only lower-cased.
func NormalizeHash(h string) string {
	h = strings.TrimSpace(h)
	if len(h) == 32 {
		if raw, err := base32.StdEncoding.DecodeString(strings.ToUpper(h)); err == nil && len(raw) == 20 {
			return hex.EncodeToString(raw)
		}
	}
	return strings.ToLower(h)
}

// IsHTTP reports whether link is an http(s) URL.
func IsHTTP(link string) bool {
	return strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://")
}
