package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsVideo(t *testing.T) {
	assert.True(t, IsVideo("Heat.1995.1080p.mkv"))
	assert.True(t, IsVideo("dir/Heat.1995.1080p.MP4"))
	assert.False(t, IsVideo("Heat.1995.1080p.nfo"))
	assert.False(t, IsVideo("Heat.1995.1080p.sample.mkv"))
	assert.False(t, IsVideo("Sample/heat-sample.mkv"))
}

func TestLargestVideo(t *testing.T) {
	files := []File{
		{Path: "Heat/Heat.1995.1080p.nfo", Size: 1 << 10},
		{Path: "Heat/Sample/heat.sample.mkv", Size: 50 << 20},
		{Path: "Heat/Heat.1995.1080p.mkv", Size: 8 << 30},
		{Path: "Heat/Extras/featurette.mkv", Size: 300 << 20},
	}
	got, ok := LargestVideo(files)
	require.True(t, ok)
	assert.Equal(t, "Heat/Heat.1995.1080p.mkv", got.Path)

	_, ok = LargestVideo([]File{{Path: "readme.txt"}})
	assert.False(t, ok)
}

func TestEpisodeFile(t *testing.T) {
	files := []File{
		{Path: "The.Wire.S01/The.Wire.S01E01.720p.mkv", Size: 900 << 20},
		{Path: "The.Wire.S01/The.Wire.S01E02.720p.mkv", Size: 950 << 20},
		{Path: "The.Wire.S01/The.Wire.S01E03.720p.mkv", Size: 910 << 20},
	}

	got, ok := EpisodeFile(files, 1, 2)
	require.True(t, ok)
	assert.Equal(t, "The.Wire.S01/The.Wire.S01E02.720p.mkv", got.Path)

	_, ok = EpisodeFile(files, 1, 4)
	assert.False(t, ok)
	_, ok = EpisodeFile(files, 2, 1)
	assert.False(t, ok)
}
