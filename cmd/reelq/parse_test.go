package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRelease(t *testing.T) {
	r := parseRelease("Dune.Part.Two.2024.2160p.AMZN.WEB-DL.DDP5.1.Atmos.DV.HDR10.H.265-FLUX.mkv")
	assert.Equal(t, "Dune Part Two", r.Title)
	assert.Equal(t, 2024, r.Year)
	assert.Equal(t, "2160p", r.Resolution)
	assert.Equal(t, "webdl", r.Source)
	assert.Equal(t, "FLUX", r.Group)
	assert.NotEmpty(t, r.HDR)
	assert.Nil(t, r.Accepted)
}

func writeParseConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[versions.1080p]
resolutions = ["1080p"]

[versions.2160p]
resolutions = ["2160p"]
`), 0o644))
	return path
}

func TestLoadProfile(t *testing.T) {
	path := writeParseConfig(t)

	p, err := loadProfile(path, "1080p")
	require.NoError(t, err)
	assert.Equal(t, []string{"1080p"}, p.Resolutions)

	_, err = loadProfile(path, "720p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Available: 1080p, 2160p")
}

func TestParseCmd_Score(t *testing.T) {
	path := writeParseConfig(t)
	require.NoError(t, execute(t, "parse", "--config", path, "--version", "1080p",
		"Movie.2024.1080p.WEB-DL.x264-GROUP", "Movie.2024.720p.WEB-DL.x264-GROUP"))
}

func TestParseCmd_UnknownVersion(t *testing.T) {
	path := writeParseConfig(t)
	err := execute(t, "parse", "--config", path, "--version", "4k", "Movie.2024.1080p.WEB-DL.x264-GROUP")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `version "4k" not found`)
}
