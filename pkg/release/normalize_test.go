package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"The Matrix", "matrix"},
		{"A Beautiful Mind", "beautiful mind"},
		{"An American Werewolf", "american werewolf"},
		{"Fast & Furious", "fast and furious"},
		{"Léon: The Professional", "leon professional"},
		{"Spider-Man: No Way Home", "spider man no way home"},
		{"Ocean's Eleven", "oceans eleven"},
		{"Rocky III", "rocky 3"},
		{"Back to the Future Part II", "back to the future part 2"},
		{"VII Days", "vii days"},
		{"American History X", "american history x"},
		{"  Extra   Spaces  ", "extra spaces"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTitle(tt.input))
		})
	}
}

func TestDotName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Movie 2020 1080p", "movie.2020.1080p"},
		{"Movie.2020.1080p", "movie.2020.1080p"},
		{" Movie  2020_1080p. ", "movie.2020.1080p"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, DotName(tt.input))
		})
	}
}

func TestNormalizeSearchQuery(t *testing.T) {
	assert.Equal(t, "Fast and Furious", NormalizeSearchQuery("Fast  &  Furious"))
	assert.Equal(t, "Spider-Man: No Way Home", NormalizeSearchQuery(" Spider-Man: No Way Home "))
}
