// Package release parses torrent and file names into structured release
// information and compares titles for matching and upgrade decisions.
package release

// Resolution represents the video resolution of a release.
type Resolution int

const (
	ResolutionUnknown Resolution = iota
	Resolution480p
	Resolution720p
	Resolution1080p
	Resolution2160p
)

// unknownStr is the string representation for unknown values.
const unknownStr = "unknown"

func (r Resolution) String() string {
	switch r {
	case Resolution480p:
		return "480p"
	case Resolution720p:
		return "720p"
	case Resolution1080p:
		return "1080p"
	case Resolution2160p:
		return "2160p"
	default:
		return unknownStr
	}
}

// ParseResolution maps a resolution label to its value.
func ParseResolution(s string) Resolution {
	switch s {
	case "480p", "sd":
		return Resolution480p
	case "720p":
		return Resolution720p
	case "1080p":
		return Resolution1080p
	case "2160p", "4k", "uhd":
		return Resolution2160p
	default:
		return ResolutionUnknown
	}
}

// Source represents the media source type of a release.
type Source int

const (
	SourceUnknown Source = iota
	SourceBluRay
	SourceWEBDL
	SourceWEBRip
	SourceHDTV
	SourceDVD
	SourceCAM
	SourceTelesync
)

func (s Source) String() string {
	switch s {
	case SourceBluRay:
		return "bluray"
	case SourceWEBDL:
		return "webdl"
	case SourceWEBRip:
		return "webrip"
	case SourceHDTV:
		return "hdtv"
	case SourceDVD:
		return "dvd"
	case SourceCAM:
		return "cam"
	case SourceTelesync:
		return "telesync"
	default:
		return unknownStr
	}
}

// Codec represents the video codec used in a release.
type Codec int

const (
	CodecUnknown Codec = iota
	CodecX264
	CodecX265
	CodecAV1
	CodecXviD
)

func (c Codec) String() string {
	switch c {
	case CodecX264:
		return "x264"
	case CodecX265:
		return "x265"
	case CodecAV1:
		return "av1"
	case CodecXviD:
		return "xvid"
	default:
		return unknownStr
	}
}

// HDRFormat represents HDR/Dolby Vision formats.
type HDRFormat int

const (
	HDRNone    HDRFormat = iota
	HDRGeneric           // "HDR" without specific version
	HDR10
	HDR10Plus
	DolbyVision
	HLG
)

func (h HDRFormat) String() string {
	switch h {
	case HDRGeneric:
		return "HDR"
	case HDR10:
		return "HDR10"
	case HDR10Plus:
		return "HDR10+"
	case DolbyVision:
		return "DV"
	case HLG:
		return "HLG"
	default:
		return ""
	}
}

// AudioCodec represents the audio format of a release.
type AudioCodec int

const (
	AudioUnknown AudioCodec = iota
	AudioAAC
	AudioAC3  // Dolby Digital
	AudioEAC3 // DD+, DDP
	AudioDTS
	AudioDTSHD // DTS-HD MA
	AudioTrueHD
	AudioAtmos // TrueHD Atmos or DD+ Atmos
	AudioFLAC
	AudioOpus
)

func (a AudioCodec) String() string {
	switch a {
	case AudioAAC:
		return "AAC"
	case AudioAC3:
		return "DD"
	case AudioEAC3:
		return "DD+"
	case AudioDTS:
		return "DTS"
	case AudioDTSHD:
		return "DTS-HD MA"
	case AudioTrueHD:
		return "TrueHD"
	case AudioAtmos:
		return "Atmos"
	case AudioFLAC:
		return "FLAC"
	case AudioOpus:
		return "Opus"
	default:
		return ""
	}
}

// Info contains parsed release information.
type Info struct {
	Title      string
	Year       int
	Season     int   // first season, 0 when absent
	Seasons    []int // every season covered by a pack (S01-S03)
	Episode    int   // first episode, 0 when absent
	Episodes   []int // all episodes, e.g. [5 6 7] for S01E05-E07
	DailyDate  string
	Resolution Resolution
	Source     Source
	Codec      Codec
	Group      string
	Proper     bool
	Repack     bool
	Extension  string // lower-case, without the dot

	HDR     HDRFormat
	Audio   AudioCodec
	IsRemux bool
	Edition string // "Directors Cut", "Extended", "IMAX", etc.
	Service string // Streaming service: NF, AMZN, DSNP, etc.

	IsCompleteSeason bool // season pack without episode numbers

	CleanTitle string
}

// HasEpisode reports whether the release names episode ep of season.
func (i Info) HasEpisode(season, ep int) bool {
	if i.Season != season {
		return false
	}
	for _, e := range i.Episodes {
		if e == ep {
			return true
		}
	}
	return false
}

// IsMultiEpisode reports whether the release covers more than one episode.
func (i Info) IsMultiEpisode() bool {
	return len(i.Episodes) > 1 || i.IsCompleteSeason || len(i.Seasons) > 1
}
