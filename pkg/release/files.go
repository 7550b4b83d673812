package release

import (
	"path"
	"strings"
)

// File is one file inside a torrent.
type File struct {
	Path string
	Size int64
}

var videoExtensions = map[string]bool{
	"mkv": true, "mp4": true, "avi": true, "m4v": true, "ts": true,
	"wmv": true, "mov": true, "webm": true, "mpg": true, "mpeg": true,
}

// IsVideo reports whether the path has a video file extension and is not a sample.
func IsVideo(p string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if !videoExtensions[ext] {
		return false
	}
	base := strings.ToLower(path.Base(p))
	return !containsWord(base, "sample") && !containsWord(base, "trailer")
}

// LargestVideo returns the largest video file, or false when there is none.
func LargestVideo(files []File) (File, bool) {
	var (
		best  File
		found bool
	)
	for _, f := range files {
		if !IsVideo(f.Path) {
			continue
		}
		if !found || f.Size > best.Size {
			best, found = f, true
		}
	}
	return best, found
}

// EpisodeFile returns the largest video file naming season and episode.
func EpisodeFile(files []File, season, episode int) (File, bool) {
	var (
		best  File
		found bool
	)
	for _, f := range files {
		if !IsVideo(f.Path) {
			continue
		}
		if !Parse(path.Base(f.Path)).HasEpisode(season, episode) {
			continue
		}
		if !found || f.Size > best.Size {
			best, found = f, true
		}
	}
	return best, found
}
