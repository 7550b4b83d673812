package release

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		v    fmt.Stringer
		want string
	}{
		{ResolutionUnknown, "unknown"},
		{Resolution720p, "720p"},
		{Resolution2160p, "2160p"},
		{SourceWEBDL, "webdl"},
		{SourceTelesync, "telesync"},
		{CodecX265, "x265"},
		{CodecXviD, "xvid"},
		{HDRNone, ""},
		{HDR10Plus, "HDR10+"},
		{DolbyVision, "DV"},
		{AudioUnknown, ""},
		{AudioEAC3, "DD+"},
		{AudioDTSHD, "DTS-HD MA"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T/%s", tt.v, tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestParseResolution(t *testing.T) {
	tests := map[string]Resolution{
		"sd":    Resolution480p,
		"720p":  Resolution720p,
		"1080p": Resolution1080p,
		"4k":    Resolution2160p,
		"uhd":   Resolution2160p,
		"8k":    ResolutionUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseResolution(in), in)
	}
}
