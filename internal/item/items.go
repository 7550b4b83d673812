package item

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const itemColumns = "id, type, imdb_id, tmdb_id, title, year, release_date, airtime, season_number, episode_number, episode_title, version, state, " +
	"filled_by_magnet, filled_by_file, filled_by_title, filled_by_torrent_id, " +
	"original_scraped_torrent_title, rescrape_original_torrent_title, " +
	"upgrading_from, upgrading_from_torrent_id, upgrading_from_version, " +
	"location_on_disk, original_path_for_symlink, scrape_results, " +
	"added_at, last_updated, state_entered_at, collected_at, original_collected_at, metadata_updated, blacklisted_date, last_upgrade_check, " +
	"wake_count, upgrade_count, " +
	"fall_back_to_single_scraper, disable_not_wanted_check, early_release, force_priority, upgraded, " +
	"content_source, content_source_detail"

// writableColumns is itemColumns without id, in the same order as rowValues.
var writableColumns = strings.TrimPrefix(itemColumns, "id, ")

// Filter specifies criteria for listing items.
type Filter struct {
	IDs     []int64
	States  []State
	Type    *MediaType
	IMDBID  *string
	Season  *int
	Version *string
	Limit   int
	Offset  int
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*MediaItem, error) {
	var (
		it                                                        MediaItem
		imdbID, releaseDate                                       sql.NullString
		tmdbID, season, episode                                   sql.NullInt64
		magnet, file, title, torrentID                            sql.NullString
		origTitle, rescrapeTitle                                  sql.NullString
		upFrom, upFromTorrent, upFromVersion                      sql.NullString
		location, origPath, results                               sql.NullString
		addedAt, lastUpdated, enteredAt                           sql.NullString
		collectedAt, origCollectedAt, metaUpdated, blacklisted    sql.NullString
		lastUpgradeCheck                                          sql.NullString
		fallBack, disableNotWanted, earlyRelease, force, upgraded int
	)
	if err := scanner.Scan(
		&it.ID, &it.Type, &imdbID, &tmdbID, &it.Title, &it.Year, &releaseDate, &it.Airtime,
		&season, &episode, &it.EpisodeTitle, &it.Version, &it.State,
		&magnet, &file, &title, &torrentID,
		&origTitle, &rescrapeTitle,
		&upFrom, &upFromTorrent, &upFromVersion,
		&location, &origPath, &results,
		&addedAt, &lastUpdated, &enteredAt, &collectedAt, &origCollectedAt, &metaUpdated, &blacklisted, &lastUpgradeCheck,
		&it.WakeCount, &it.UpgradeCount,
		&fallBack, &disableNotWanted, &earlyRelease, &force, &upgraded,
		&it.ContentSource, &it.ContentSourceDetail,
	); err != nil {
		return nil, err
	}

	it.IMDBID = stringPtr(imdbID)
	it.TMDBID = int64Ptr(tmdbID)
	it.ReleaseDate = parseDate(releaseDate)
	it.SeasonNumber = intPtr(season)
	it.EpisodeNumber = intPtr(episode)
	it.FilledByMagnet = stringPtr(magnet)
	it.FilledByFile = stringPtr(file)
	it.FilledByTitle = stringPtr(title)
	it.FilledByTorrentID = stringPtr(torrentID)
	it.OriginalScrapedTorrentTitle = stringPtr(origTitle)
	it.RescrapeOriginalTorrentTitle = stringPtr(rescrapeTitle)
	it.UpgradingFrom = stringPtr(upFrom)
	it.UpgradingFromTorrentID = stringPtr(upFromTorrent)
	it.UpgradingFromVersion = stringPtr(upFromVersion)
	it.LocationOnDisk = stringPtr(location)
	it.OriginalPathForSymlink = stringPtr(origPath)
	if results.Valid && results.String != "" {
		if err := json.Unmarshal([]byte(results.String), &it.ScrapeResults); err != nil {
			return nil, fmt.Errorf("decode scrape results for item %d: %w", it.ID, err)
		}
	}
	if t := parseTime(addedAt); t != nil {
		it.AddedAt = *t
	}
	if t := parseTime(lastUpdated); t != nil {
		it.LastUpdated = *t
	}
	if t := parseTime(enteredAt); t != nil {
		it.StateEnteredAt = *t
	}
	it.CollectedAt = parseTime(collectedAt)
	it.OriginalCollectedAt = parseTime(origCollectedAt)
	it.MetadataUpdated = parseTime(metaUpdated)
	it.BlacklistedDate = parseTime(blacklisted)
	it.LastUpgradeCheck = parseTime(lastUpgradeCheck)
	it.FallBackToSingleScraper = fallBack != 0
	it.DisableNotWantedCheck = disableNotWanted != 0
	it.EarlyRelease = earlyRelease != 0
	it.ForcePriority = force != 0
	it.Upgraded = upgraded != 0
	return &it, nil
}

// rowValues returns every writable column value of it in writableColumns order.
func rowValues(it *MediaItem) ([]any, error) {
	var results any
	if it.ScrapeResults != nil {
		b, err := json.Marshal(it.ScrapeResults)
		if err != nil {
			return nil, fmt.Errorf("encode scrape results: %w", err)
		}
		results = string(b)
	}
	return []any{
		it.Type, nullableString(it.IMDBID), nullableInt64(it.TMDBID), it.Title, it.Year,
		formatDate(it.ReleaseDate), it.Airtime, nullableInt(it.SeasonNumber), nullableInt(it.EpisodeNumber),
		it.EpisodeTitle, StripVersion(it.Version), it.State,
		nullableString(it.FilledByMagnet), nullableString(it.FilledByFile), nullableString(it.FilledByTitle), nullableString(it.FilledByTorrentID),
		nullableString(it.OriginalScrapedTorrentTitle), nullableString(it.RescrapeOriginalTorrentTitle),
		nullableString(it.UpgradingFrom), nullableString(it.UpgradingFromTorrentID), nullableString(it.UpgradingFromVersion),
		nullableString(it.LocationOnDisk), nullableString(it.OriginalPathForSymlink), results,
		formatTime(it.AddedAt), formatTime(it.LastUpdated), formatTime(it.StateEnteredAt),
		nullableTime(it.CollectedAt), nullableTime(it.OriginalCollectedAt), nullableTime(it.MetadataUpdated),
		nullableTime(it.BlacklistedDate), nullableTime(it.LastUpgradeCheck),
		it.WakeCount, it.UpgradeCount,
		boolToInt(it.FallBackToSingleScraper), boolToInt(it.DisableNotWantedCheck), boolToInt(it.EarlyRelease),
		boolToInt(it.ForcePriority), boolToInt(it.Upgraded),
		it.ContentSource, it.ContentSourceDetail,
	}, nil
}

func validateNew(it *MediaItem) error {
	if !it.HasIdentifier() {
		return ErrMissingIdentifier
	}
	if it.IMDBID != nil && *it.IMDBID == "" {
		it.IMDBID = nil
	}
	if !it.Type.Valid() {
		return fmt.Errorf("%w: type %q", ErrInvalidItem, it.Type)
	}
	if it.IsEpisode() {
		if it.SeasonNumber == nil || it.EpisodeNumber == nil {
			return fmt.Errorf("%w: episode without season/episode number", ErrInvalidItem)
		}
	} else {
		it.SeasonNumber, it.EpisodeNumber, it.EpisodeTitle = nil, nil, ""
	}
	it.Version = StripVersion(it.Version)
	if it.Version == "" {
		return fmt.Errorf("%w: empty version", ErrInvalidItem)
	}
	if it.State == "" {
		it.State = StateWanted
	}
	if !it.State.Valid() {
		return fmt.Errorf("%w: state %q", ErrInvalidItem, it.State)
	}
	if it.WakeCount < 0 {
		it.WakeCount = 0
	}
	if it.State.holdsNoFill() {
		it.FilledByMagnet, it.FilledByFile, it.FilledByTitle, it.FilledByTorrentID = nil, nil, nil, nil
	}
	return nil
}

func addItem(ctx context.Context, q querier, it *MediaItem, now time.Time) error {
	if err := validateNew(it); err != nil {
		return err
	}
	it.AddedAt, it.LastUpdated, it.StateEnteredAt = now, now, now

	args, err := rowValues(it)
	if err != nil {
		return err
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO media_items (`+writableColumns+`) VALUES (`+placeholders(len(args))+`)`, args...)
	if err != nil {
		return fmt.Errorf("insert item %s: %w", it.DisplayName(), mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	it.ID = id
	return nil
}

// Add inserts a new item and sets its ID and timestamps.
// Returns ErrMissingIdentifier or ErrDuplicateItem on rejection.
func (s *Store) Add(ctx context.Context, it *MediaItem) (int64, error) {
	err := s.write(ctx, func(tx *Tx) error { return addItem(ctx, tx.tx, it, tx.now()) })
	if err != nil {
		return 0, err
	}
	return it.ID, nil
}

// Add inserts a new item within a transaction.
func (t *Tx) Add(ctx context.Context, it *MediaItem) (int64, error) {
	if err := addItem(ctx, t.tx, it, t.now()); err != nil {
		return 0, err
	}
	return it.ID, nil
}

func getItem(ctx context.Context, q querier, id int64) (*MediaItem, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM media_items WHERE id = ?`, id)
	it, err := scanItem(row)
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, mapSQLiteError(err))
	}
	return it, nil
}

// Get retrieves an item by ID.
// Returns ErrNotFound if the item does not exist.
func (s *Store) Get(ctx context.Context, id int64) (*MediaItem, error) {
	var it *MediaItem
	err := retryOnBusy(ctx, func() error {
		var err error
		it, err = getItem(ctx, s.db, id)
		return err
	})
	return it, err
}

// Get retrieves an item by ID within a transaction.
func (t *Tx) Get(ctx context.Context, id int64) (*MediaItem, error) { return getItem(ctx, t.tx, id) }

func listItems(ctx context.Context, q querier, f Filter) ([]*MediaItem, int, error) {
	var conditions []string
	var args []any

	if len(f.IDs) > 0 {
		conditions = append(conditions, "id IN ("+placeholders(len(f.IDs))+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if len(f.States) > 0 {
		conditions = append(conditions, "state IN ("+placeholders(len(f.States))+")")
		for _, st := range f.States {
			args = append(args, st)
		}
	}
	if f.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, *f.Type)
	}
	if f.IMDBID != nil {
		conditions = append(conditions, "imdb_id = ?")
		args = append(args, *f.IMDBID)
	}
	if f.Season != nil {
		conditions = append(conditions, "season_number = ?")
		args = append(args, *f.Season)
	}
	if f.Version != nil {
		conditions = append(conditions, "version = ?")
		args = append(args, StripVersion(*f.Version))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM media_items"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count items: %w", mapSQLiteError(err))
	}

	query := `SELECT ` + itemColumns + ` FROM media_items` + where + ` ORDER BY force_priority DESC, id ASC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list items: %w", mapSQLiteError(err))
	}
	defer rows.Close()

	var items []*MediaItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

// List returns items matching the filter and the total count before paging.
// Items are ordered with force_priority first, then insertion order.
func (s *Store) List(ctx context.Context, f Filter) ([]*MediaItem, int, error) {
	var (
		items []*MediaItem
		total int
	)
	err := retryOnBusy(ctx, func() error {
		var err error
		items, total, err = listItems(ctx, s.db, f)
		return err
	})
	return items, total, err
}

// List returns items matching the filter within a transaction.
func (t *Tx) List(ctx context.Context, f Filter) ([]*MediaItem, int, error) {
	return listItems(ctx, t.tx, f)
}

// ListByState returns every item in state, optionally restricted to one media type.
func (s *Store) ListByState(ctx context.Context, state State, mediaType *MediaType) ([]*MediaItem, error) {
	items, _, err := s.List(ctx, Filter{States: []State{state}, Type: mediaType})
	return items, err
}

// CountByState returns the number of items per state.
func (s *Store) CountByState(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM media_items GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count by state: %w", mapSQLiteError(err))
	}
	defer rows.Close()

	counts := make(map[State]int, len(States))
	for rows.Next() {
		var st State
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

func updateItem(ctx context.Context, q querier, id int64, f Fields, now time.Time) error {
	if err := f.validate(); err != nil {
		return err
	}
	if len(f) == 0 {
		return nil
	}
	set, args, err := f.sqlSet()
	if err != nil {
		return err
	}
	args = append(args, formatTime(now), id)
	result, err := q.ExecContext(ctx, `UPDATE media_items SET `+set+`, last_updated = ? WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update item %d: %w", id, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update item %d: %w", id, ErrNotFound)
	}
	return nil
}

// Update applies a field patch atomically and touches last_updated.
// State changes must go through Transition.
func (s *Store) Update(ctx context.Context, id int64, f Fields) error {
	return s.write(ctx, func(tx *Tx) error { return updateItem(ctx, tx.tx, id, f, tx.now()) })
}

// Update applies a field patch within a transaction.
func (t *Tx) Update(ctx context.Context, id int64, f Fields) error {
	return updateItem(ctx, t.tx, id, f, t.now())
}

func transitionItem(ctx context.Context, q querier, id int64, from, to State, f Fields, now time.Time) (TransitionEvent, error) {
	if err := f.validate(); err != nil {
		return TransitionEvent{}, err
	}

	var current State
	if err := q.QueryRowContext(ctx, `SELECT state FROM media_items WHERE id = ?`, id).Scan(&current); err != nil {
		return TransitionEvent{}, fmt.Errorf("transition item %d: %w", id, mapSQLiteError(err))
	}
	if current != from {
		return TransitionEvent{}, fmt.Errorf("%w: item %d is %s, expected %s", ErrStateMismatch, id, current, from)
	}
	if !from.CanTransitionTo(to) {
		return TransitionEvent{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	patch := f.Merge(nil)
	if to.holdsNoFill() {
		patch = patch.Merge(ClearFill())
		patch[ColScrapeResults] = nil
	}
	if !to.allowsUpgradeSnapshot() {
		patch = patch.Merge(ClearUpgrade())
	}
	set, args, err := patch.sqlSet()
	if err != nil {
		return TransitionEvent{}, err
	}
	ts := formatTime(now)
	args = append(args, to, ts, ts, id)
	if _, err := q.ExecContext(ctx,
		`UPDATE media_items SET `+set+`, state = ?, state_entered_at = ?, last_updated = ? WHERE id = ?`, args...); err != nil {
		return TransitionEvent{}, fmt.Errorf("transition item %d: %w", id, mapSQLiteError(err))
	}
	return TransitionEvent{ItemID: id, From: from, To: to, At: now}, nil
}

// Transition moves an item from one state to another and applies the patch
// in the same statement. It fails with ErrStateMismatch when the stored state
// is not from, and with ErrInvalidTransition for edges outside the table.
func (s *Store) Transition(ctx context.Context, id int64, from, to State, f Fields) (*MediaItem, error) {
	var it *MediaItem
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		it, err = tx.Transition(ctx, id, from, to, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// Transition moves an item within a transaction. Handlers fire on Commit.
func (t *Tx) Transition(ctx context.Context, id int64, from, to State, f Fields) (*MediaItem, error) {
	ev, err := transitionItem(ctx, t.tx, id, from, to, f, t.now())
	if err != nil {
		return nil, err
	}
	t.pending = append(t.pending, ev)
	return getItem(ctx, t.tx, id)
}

// BulkTransition moves every listed item from its current state to to in a
// single transaction. Any failure leaves all items unchanged.
func (s *Store) BulkTransition(ctx context.Context, ids []int64, to State, f Fields) ([]*MediaItem, error) {
	var out []*MediaItem
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.BulkTransition(ctx, ids, to, f)
		return err
	})
	return out, err
}

// BulkTransition moves items within a transaction.
func (t *Tx) BulkTransition(ctx context.Context, ids []int64, to State, f Fields) ([]*MediaItem, error) {
	out := make([]*MediaItem, 0, len(ids))
	for _, id := range ids {
		current, err := getItem(ctx, t.tx, id)
		if err != nil {
			return nil, err
		}
		it, err := t.Transition(ctx, id, current.State, to, f)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func deleteItem(ctx context.Context, q querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM media_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete item %d: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes an item and its upgrade history.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.write(ctx, func(tx *Tx) error { return deleteItem(ctx, tx.tx, id) })
}

// Delete removes an item within a transaction.
func (t *Tx) Delete(ctx context.Context, id int64) error { return deleteItem(ctx, t.tx, id) }

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
