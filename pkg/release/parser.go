package release

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

var (
	episodeRe    = regexp.MustCompile(`(?i)\bS(\d{1,2}) ?E(\d{1,3})((?:-?E\d{1,3}|-\d{1,3}\b)*)`)
	episodeNumRe = regexp.MustCompile(`\d{1,3}`)
	crossRe      = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	seasonPackRe = regexp.MustCompile(`(?i)\bS(\d{1,2})(?: ?- ?S?(\d{1,2}))?\b`)
	seasonWordRe = regexp.MustCompile(`(?i)\bSeasons? ?(\d{1,2})(?: ?(?:-|to) ?(\d{1,2}))?\b`)
	dailyRe      = regexp.MustCompile(`\b((?:19|20)\d{2})[ -](\d{2})[ -](\d{2})\b`)
	yearRe       = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	resolutionRe = regexp.MustCompile(`(?i)\b(2160p|4k|uhd|1080[pi]|720p|576p|480p)\b`)
	qualityRe    = regexp.MustCompile(`(?i)\b(bluray|blu ray|bdrip|brrip|remux|web ?dl|webrip|web|hdtv|pdtv|dvdrip|dvd|x264|x265|h ?26[45]|hevc|proper|repack|complete|extended|imax|unrated|multi)\b`)
	groupRe      = regexp.MustCompile(`-([A-Za-z0-9]+)(?:\[[^\]]*\])?$`)
	bracketGrpRe = regexp.MustCompile(`^\[([^\]]+)\]`)
	serviceRe    = regexp.MustCompile(`\b(NF|AMZN|DSNP|HMAX|MAX|ATVP|HULU|PCOK|PMTP|STAN|CRAV|iT)\b`)
)

var knownExtensions = map[string]bool{
	"mkv": true, "mp4": true, "avi": true, "m4v": true, "ts": true, "wmv": true,
	"mov": true, "webm": true, "mpg": true, "mpeg": true, "torrent": true,
}

// Parse extracts release information from a torrent or file name.
func Parse(name string) Info {
	var info Info

	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")); knownExtensions[ext] {
		info.Extension = ext
		name = name[:len(name)-len(ext)-1]
	}
	info.Group = parseGroup(name)

	s := normalizeSeparators(name)

	titleEnd := -1
	mark := func(idx int) {
		if idx >= 0 && (titleEnd < 0 || idx < titleEnd) {
			titleEnd = idx
		}
	}
	strong := -1
	markStrong := func(idx int) {
		if idx >= 0 && (strong < 0 || idx < strong) {
			strong = idx
		}
	}

	if loc := episodeRe.FindStringSubmatchIndex(s); loc != nil {
		info.Season = atoi(s[loc[2]:loc[3]])
		info.Episodes = parseEpisodeList(atoi(s[loc[4]:loc[5]]), s[loc[6]:loc[7]])
		mark(loc[0])
		markStrong(loc[0])
	} else if loc := crossRe.FindStringSubmatchIndex(s); loc != nil {
		info.Season = atoi(s[loc[2]:loc[3]])
		info.Episodes = []int{atoi(s[loc[4]:loc[5]])}
		mark(loc[0])
		markStrong(loc[0])
	} else if loc := firstSeasonPack(s); loc != nil {
		from := atoi(s[loc[2]:loc[3]])
		to := from
		if loc[4] >= 0 {
			to = atoi(s[loc[4]:loc[5]])
		}
		info.Seasons = seasonRange(from, to)
		info.Season = from
		info.IsCompleteSeason = true
		mark(loc[0])
		markStrong(loc[0])
	}
	if len(info.Episodes) > 0 {
		info.Episode = info.Episodes[0]
		info.Seasons = []int{info.Season}
	}

	if loc := dailyRe.FindStringSubmatchIndex(s); loc != nil && loc[0] > 0 {
		info.DailyDate = s[loc[2]:loc[3]] + "-" + s[loc[4]:loc[5]] + "-" + s[loc[6]:loc[7]]
		mark(loc[0])
		markStrong(loc[0])
	}

	resLoc := resolutionRe.FindStringSubmatchIndex(s)
	if resLoc != nil {
		info.Resolution = parseResolutionToken(strings.ToLower(s[resLoc[2]:resLoc[3]]))
		markStrong(resLoc[0])
	}

	// The year is the last one before the first structural marker, so
	// titles that start with or contain a year keep it.
	yearIdx := -1
	for _, loc := range yearRe.FindAllStringSubmatchIndex(s, -1) {
		if loc[0] == 0 || (strong >= 0 && loc[0] >= strong) {
			continue
		}
		info.Year = atoi(s[loc[2]:loc[3]])
		yearIdx = loc[0]
	}
	mark(yearIdx)

	if titleEnd < 0 {
		if resLoc != nil {
			mark(resLoc[0])
		}
		if loc := qualityRe.FindStringIndex(s); loc != nil && loc[0] > 0 {
			mark(loc[0])
		}
	}
	if titleEnd < 0 {
		titleEnd = len(s)
	}
	info.Title = cleanParsedTitle(s[:titleEnd])
	info.CleanTitle = CleanTitle(info.Title)

	tail := strings.ToLower(s[titleEnd:])
	info.Source, info.IsRemux = parseSource(tail)
	info.Codec = parseCodec(tail)
	info.HDR = parseHDR(tail)
	info.Audio = parseAudio(tail)
	info.Proper = containsWord(tail, "proper")
	info.Repack = containsWord(tail, "repack") || containsWord(tail, "rerip")
	info.Edition = parseEdition(tail)
	if m := serviceRe.FindStringSubmatch(s[titleEnd:]); m != nil {
		info.Service = m[1]
	}

	return info
}

// normalizeSeparators turns dots, underscores and brackets into spaces.
func normalizeSeparators(name string) string {
	r := strings.NewReplacer(".", " ", "_", " ", "[", " ", "]", " ", "(", " ", ")", " ", "{", " ", "}", " ")
	return strings.Join(strings.Fields(r.Replace(name)), " ")
}

func parseGroup(name string) string {
	if m := groupRe.FindStringSubmatch(name); m != nil {
		switch strings.ToLower(m[1]) {
		case "dl", "rip", "ray":
		default:
			return m[1]
		}
	}
	if m := bracketGrpRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return ""
}

func firstSeasonPack(s string) []int {
	a := seasonPackRe.FindStringSubmatchIndex(s)
	b := seasonWordRe.FindStringSubmatchIndex(s)
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b[0] < a[0]:
		return b
	default:
		return a
	}
}

func parseEpisodeList(first int, tail string) []int {
	eps := []int{first}
	if tail == "" {
		return eps
	}
	nums := episodeNumRe.FindAllString(tail, -1)
	// A single dash-separated trailer is a range.
	if len(nums) == 1 && strings.HasPrefix(tail, "-") {
		last := atoi(nums[0])
		for e := first + 1; e <= last; e++ {
			eps = append(eps, e)
		}
		return eps
	}
	for _, n := range nums {
		eps = append(eps, atoi(n))
	}
	return eps
}

func seasonRange(from, to int) []int {
	if to < from {
		to = from
	}
	out := make([]int, 0, to-from+1)
	for s := from; s <= to; s++ {
		out = append(out, s)
	}
	return out
}

func cleanParsedTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, " -:~")
	s = strings.TrimLeft(s, " -")
	return strings.Join(strings.Fields(s), " ")
}

func parseResolutionToken(tok string) Resolution {
	switch tok {
	case "1080i":
		return Resolution1080p
	case "576p":
		return Resolution480p
	default:
		return ParseResolution(tok)
	}
}

func parseSource(s string) (Source, bool) {
	remux := containsWord(s, "remux") || containsWord(s, "bdremux")
	switch {
	case remux, containsWord(s, "bluray"), strings.Contains(s, "blu ray"), containsWord(s, "bdrip"), containsWord(s, "brrip"):
		return SourceBluRay, remux
	case containsWord(s, "web dl"), containsWord(s, "webdl"), containsWord(s, "web-dl"):
		return SourceWEBDL, false
	case containsWord(s, "webrip"), containsWord(s, "web rip"):
		return SourceWEBRip, false
	case containsWord(s, "web"):
		return SourceWEBDL, false
	case containsWord(s, "hdtv"), containsWord(s, "pdtv"):
		return SourceHDTV, false
	case containsWord(s, "dvdrip"), containsWord(s, "dvd"):
		return SourceDVD, false
	case containsWord(s, "cam"), containsWord(s, "hdcam"), containsWord(s, "camrip"):
		return SourceCAM, false
	case containsWord(s, "ts"), containsWord(s, "telesync"), containsWord(s, "hdts"):
		return SourceTelesync, false
	}
	return SourceUnknown, false
}

func parseCodec(s string) Codec {
	switch {
	case containsWord(s, "x265"), containsWord(s, "h265"), containsWord(s, "h 265"), containsWord(s, "hevc"):
		return CodecX265
	case containsWord(s, "x264"), containsWord(s, "h264"), containsWord(s, "h 264"), containsWord(s, "avc"):
		return CodecX264
	case containsWord(s, "av1"):
		return CodecAV1
	case containsWord(s, "xvid"), containsWord(s, "divx"):
		return CodecXviD
	}
	return CodecUnknown
}

func parseHDR(s string) HDRFormat {
	switch {
	case containsWord(s, "dv"), containsWord(s, "dovi"), strings.Contains(s, "dolby vision"):
		return DolbyVision
	case strings.Contains(s, "hdr10+"), containsWord(s, "hdr10plus"):
		return HDR10Plus
	case containsWord(s, "hdr10"):
		return HDR10
	case containsWord(s, "hdr"):
		return HDRGeneric
	case containsWord(s, "hlg"):
		return HLG
	}
	return HDRNone
}

func parseAudio(s string) AudioCodec {
	switch {
	case containsWord(s, "atmos"):
		return AudioAtmos
	case containsWord(s, "truehd"):
		return AudioTrueHD
	case strings.Contains(s, "dts-hd"), strings.Contains(s, "dts hd"), containsWord(s, "dtshd"):
		return AudioDTSHD
	case containsWord(s, "dts"):
		return AudioDTS
	case strings.Contains(s, "ddp"), strings.Contains(s, "dd+"), containsWord(s, "eac3"):
		return AudioEAC3
	case containsWord(s, "ac3"), strings.Contains(s, "dd5"), strings.Contains(s, "dd2"):
		return AudioAC3
	case strings.Contains(s, "aac"):
		return AudioAAC
	case containsWord(s, "flac"):
		return AudioFLAC
	case containsWord(s, "opus"):
		return AudioOpus
	}
	return AudioUnknown
}

func parseEdition(s string) string {
	switch {
	case strings.Contains(s, "directors cut"), strings.Contains(s, "director's cut"):
		return "Directors Cut"
	case containsWord(s, "extended"):
		return "Extended"
	case containsWord(s, "imax"):
		return "IMAX"
	case containsWord(s, "unrated"):
		return "Unrated"
	case containsWord(s, "theatrical"):
		return "Theatrical"
	}
	return ""
}

// containsWord reports whether word appears in s bounded by non-alphanumerics.
func containsWord(s, word string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(word)
		if (start == 0 || !isAlnum(s[start-1])) && (end == len(s) || !isAlnum(s[end])) {
			return true
		}
		from = start + 1
	}
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
