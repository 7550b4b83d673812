package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		a, b  string
		above float64 // exclusive lower bound, -1 to skip
		below float64 // exclusive upper bound, 2 to skip
	}{
		{"Rocky III", "Rocky 3", 0.99, 2},
		{"Fast & Furious", "Fast and Furious", 0.99, 2},
		{"The Matrix", "Matrix", 0.99, 2},
		{"Amélie", "Amelie", 0.99, 2},
		{"Rocky II", "Rocky III", -1, 0.9},
		{"Heat", "Totally Different Movie", -1, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			got := TitleSimilarity(tt.a, tt.b)
			assert.Greater(t, got, tt.above)
			assert.Less(t, got, tt.below)
			assert.InDelta(t, got, TitleSimilarity(tt.b, tt.a), 1e-9, "symmetric")
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("Heat 1995 1080p", "heat.1995.1080p"), 1e-9)
	assert.GreaterOrEqual(t, Similarity("Heat.1995.1080p.BluRay.x264-GRP", "Heat.1995.1080p.BluRay.x264-GRP2"), 0.95)
	assert.Less(t, Similarity("Heat.1995.1080p.BluRay.x264-GRP", "Heat.1995.2160p.UHD.BluRay.REMUX.HDR.HEVC-FGT"), 0.95)
	assert.Less(t, Similarity("abc", "xyz"), 0.1)
}
