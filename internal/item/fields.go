package item

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Column names accepted by Update and Transition patches.
const (
	ColTitle                        = "title"
	ColYear                         = "year"
	ColReleaseDate                  = "release_date"
	ColAirtime                      = "airtime"
	ColEpisodeTitle                 = "episode_title"
	ColVersion                      = "version"
	ColFilledByMagnet               = "filled_by_magnet"
	ColFilledByFile                 = "filled_by_file"
	ColFilledByTitle                = "filled_by_title"
	ColFilledByTorrentID            = "filled_by_torrent_id"
	ColOriginalScrapedTorrentTitle  = "original_scraped_torrent_title"
	ColRescrapeOriginalTorrentTitle = "rescrape_original_torrent_title"
	ColUpgradingFrom                = "upgrading_from"
	ColUpgradingFromTorrentID       = "upgrading_from_torrent_id"
	ColUpgradingFromVersion         = "upgrading_from_version"
	ColLocationOnDisk               = "location_on_disk"
	ColOriginalPathForSymlink       = "original_path_for_symlink"
	ColScrapeResults                = "scrape_results"
	ColCollectedAt                  = "collected_at"
	ColOriginalCollectedAt          = "original_collected_at"
	ColMetadataUpdated              = "metadata_updated"
	ColBlacklistedDate              = "blacklisted_date"
	ColLastUpgradeCheck             = "last_upgrade_check"
	ColUpgradeCount                 = "upgrade_count"
	ColFallBackToSingleScraper      = "fall_back_to_single_scraper"
	ColDisableNotWantedCheck        = "disable_not_wanted_check"
	ColEarlyRelease                 = "early_release"
	ColForcePriority                = "force_priority"
	ColUpgraded                     = "upgraded"
	ColContentSource                = "content_source"
	ColContentSourceDetail          = "content_source_detail"
)

var patchable = map[string]bool{
	ColTitle: true, ColYear: true, ColReleaseDate: true, ColAirtime: true, ColEpisodeTitle: true,
	ColVersion: true, ColFilledByMagnet: true, ColFilledByFile: true, ColFilledByTitle: true,
	ColFilledByTorrentID: true, ColOriginalScrapedTorrentTitle: true, ColRescrapeOriginalTorrentTitle: true,
	ColUpgradingFrom: true, ColUpgradingFromTorrentID: true, ColUpgradingFromVersion: true,
	ColLocationOnDisk: true, ColOriginalPathForSymlink: true, ColScrapeResults: true,
	ColCollectedAt: true, ColOriginalCollectedAt: true, ColMetadataUpdated: true,
	ColBlacklistedDate: true, ColLastUpgradeCheck: true, ColUpgradeCount: true,
	ColFallBackToSingleScraper: true, ColDisableNotWantedCheck: true, ColEarlyRelease: true,
	ColForcePriority: true, ColUpgraded: true, ColContentSource: true, ColContentSourceDetail: true,
}

var fillColumns = []string{ColFilledByMagnet, ColFilledByFile, ColFilledByTitle, ColFilledByTorrentID}

var upgradeColumns = []string{ColUpgradingFrom, ColUpgradingFromTorrentID, ColUpgradingFromVersion}

// Fields is a column patch. A nil value writes NULL.
type Fields map[string]any

// Merge returns a copy of f with other's entries applied on top.
func (f Fields) Merge(other Fields) Fields {
	out := make(Fields, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// ClearFill returns a patch that nulls every filled_by column.
func ClearFill() Fields {
	f := Fields{}
	for _, c := range fillColumns {
		f[c] = nil
	}
	return f
}

// ClearUpgrade returns a patch that nulls every upgrading_from column.
func ClearUpgrade() Fields {
	f := Fields{}
	for _, c := range upgradeColumns {
		f[c] = nil
	}
	return f
}

// sqlSet renders the SET clause and arguments in column order.
func (f Fields) sqlSet() (string, []any, error) {
	cols := make([]string, 0, len(f))
	for c := range f {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	set := ""
	args := make([]any, 0, len(cols))
	for i, c := range cols {
		v, err := dbValue(c, f[c])
		if err != nil {
			return "", nil, err
		}
		if i > 0 {
			set += ", "
		}
		set += c + " = ?"
		args = append(args, v)
	}
	return set, args, nil
}

func (f Fields) validate() error {
	for c := range f {
		if !patchable[c] {
			return fmt.Errorf("%w: %s", ErrUnknownField, c)
		}
	}
	return nil
}

// dbValue converts Go values into their column representation.
func dbValue(col string, v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return boolToInt(val), nil
	case time.Time:
		if col == ColReleaseDate {
			return formatDate(&val), nil
		}
		return formatTime(val), nil
	case *time.Time:
		if val == nil {
			return nil, nil
		}
		if col == ColReleaseDate {
			return formatDate(val), nil
		}
		return formatTime(*val), nil
	case []Candidate:
		if val == nil {
			return nil, nil
		}
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", col, err)
		}
		return string(b), nil
	case string:
		if col == ColVersion {
			return StripVersion(val), nil
		}
		return val, nil
	case *string:
		if val == nil {
			return nil, nil
		}
		if col == ColVersion {
			return StripVersion(*val), nil
		}
		return *val, nil
	case *int:
		if val == nil {
			return nil, nil
		}
		return *val, nil
	case *int64:
		if val == nil {
			return nil, nil
		}
		return *val, nil
	default:
		return v, nil
	}
}
