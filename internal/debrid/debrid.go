// Package debrid talks to debrid services that fetch torrents on the
// user's behalf and serve the resulting files.
package debrid

import (
	"errors"
	"path"

	"github.com/vmunix/reelq/pkg/release"
)

// Sentinel errors for the debrid package.
var (
	// ErrUncached is returned when a torrent is not instantly available and
	// the caller did not allow uncached downloads.
	ErrUncached = errors.New("torrent not cached")

	// ErrTooManyDownloads is returned when the account is at its active
	// download limit.
	ErrTooManyDownloads = errors.New("too many active downloads")

	// ErrUnavailable is returned for transient failures: network errors,
	// rate limiting and 5xx responses.
	ErrUnavailable = errors.New("debrid service unavailable")

	// ErrTorrentFailed is returned when the service rejected or could not
	// process the torrent itself (dead magnet, virus, bad file).
	ErrTorrentFailed = errors.New("torrent failed")

	// ErrNotFound is returned when the torrent id is unknown to the service.
	ErrNotFound = errors.New("torrent not found")

	// ErrInvalidToken is returned when the API token is rejected.
	ErrInvalidToken = errors.New("invalid debrid api token")
)

// AddOptions control AddTorrent.
type AddOptions struct {
	AllowUncached bool
}

// TorrentFile is one file inside a debrid torrent.
type TorrentFile struct {
	ID       int
	Path     string
	Size     int64
	Selected bool
}

// TorrentInfo describes a torrent on the debrid service.
type TorrentInfo struct {
	ID       string
	Filename string
	Hash     string
	Status   string
	Progress float64
	Files    []TorrentFile
	Links    []string
}

// Downloaded reports whether every selected file is ready.
func (t *TorrentInfo) Downloaded() bool {
	return t.Status == StatusDownloaded
}

// ReleaseFiles returns the selected files for release matching, or every
// file when nothing is selected yet.
func (t *TorrentInfo) ReleaseFiles() []release.File {
	var out []release.File
	for _, f := range t.Files {
		if f.Selected {
			out = append(out, release.File{Path: f.Path, Size: f.Size})
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, f := range t.Files {
		out = append(out, release.File{Path: f.Path, Size: f.Size})
	}
	return out
}

// FileName returns the base name of a torrent file path.
func FileName(p string) string { return path.Base(p) }

// Torrent statuses reported by Real-Debrid.
const (
	StatusMagnetError      = "magnet_error"
	StatusMagnetConversion = "magnet_conversion"
	StatusWaitingSelection = "waiting_files_selection"
	StatusQueued           = "queued"
	StatusDownloading      = "downloading"
	StatusDownloaded       = "downloaded"
	StatusError            = "error"
	StatusVirus            = "virus"
	StatusCompressing      = "compressing"
	StatusUploading        = "uploading"
	StatusDead             = "dead"
)

// Failed reports whether a torrent status is terminal and unusable.
func Failed(s string) bool {
	switch s {
	case StatusMagnetError, StatusError, StatusVirus, StatusDead:
		return true
	}
	return false
}
