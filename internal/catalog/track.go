package catalog

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/diogo464/sonar-sub000/internal/blob"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// Track is a catalog track owned by an album. The track's artist is defined
// as its album's artist and never stored separately. Duration comes from
// the preferred audio; ListenCount is derived from live scrobbles.
type Track struct {
	ID          TrackID
	Name        string
	Album       AlbumID
	CoverArt    ImageID
	Audio       AudioID // preferred audio, zero when none
	Properties  Properties
	Duration    time.Duration
	ListenCount uint32
	CreatedAt   time.Time
}

// TrackCreate carries the fields of a new track.
type TrackCreate struct {
	Name       string
	Album      AlbumID
	CoverArt   ImageID
	Audio      AudioID // linked and marked preferred when set
	Lyrics     *Lyrics
	Properties Properties
}

// TrackUpdate applies three-valued field updates plus a property update
// list. Album is non-nullable; Unset fails.
type TrackUpdate struct {
	Name       ValueUpdate[string]
	Album      ValueUpdate[AlbumID]
	CoverArt   ValueUpdate[ImageID]
	Lyrics     *Lyrics
	Properties []PropertyUpdate
}

const trackColumns = "id, name, album, cover_art, audio, duration_ms, listen_count, created_at"

func scanTrack(row interface{ Scan(...any) error }) (Track, error) {
	var (
		track      Track
		id, album  int64
		coverArt   sql.NullInt64
		audio      sql.NullInt64
		durationMS int64
		created    int64
	)
	err := row.Scan(&id, &track.Name, &album, &coverArt, &audio, &durationMS, &track.ListenCount, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Track{}, shared.NotFoundf("track")
	}
	if err != nil {
		return Track{}, shared.Internalf("failed to scan track: %v", err)
	}
	track.ID = TrackIDFromDB(id)
	track.Album = AlbumIDFromDB(album)
	if coverArt.Valid {
		track.CoverArt = ImageIDFromDB(coverArt.Int64)
	}
	if audio.Valid {
		track.Audio = AudioIDFromDB(audio.Int64)
	}
	track.Duration = time.Duration(durationMS) * time.Millisecond
	track.CreatedAt = time.Unix(created, 0)
	return track, nil
}

func getTrackTx(ctx context.Context, q querier, id TrackID) (Track, error) {
	row := q.QueryRowContext(ctx, "SELECT "+trackColumns+" FROM track_view WHERE id = ?", id.DB())
	track, err := scanTrack(row)
	if err != nil {
		return Track{}, err
	}
	if track.Properties, err = propertyGet(ctx, q, track.ID.ID()); err != nil {
		return Track{}, err
	}
	return track, nil
}

func (c *Catalog) listTracks(ctx context.Context, query string, args ...any) ([]Track, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, shared.Internalf("failed to list tracks: %v", err)
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Internalf("failed to list tracks: %v", err)
	}
	for i := range tracks {
		if tracks[i].Properties, err = propertyGet(ctx, c.db, tracks[i].ID.ID()); err != nil {
			return nil, err
		}
	}
	return tracks, nil
}

// ListTracks returns tracks ordered by id.
func (c *Catalog) ListTracks(ctx context.Context, params ListParams) ([]Track, error) {
	offset, limit := params.offsetLimit()
	return c.listTracks(ctx,
		"SELECT "+trackColumns+" FROM track_view ORDER BY id ASC LIMIT ? OFFSET ?", limit, offset)
}

// ListTracksByAlbum returns the tracks of an album, ordered by id.
func (c *Catalog) ListTracksByAlbum(ctx context.Context, album AlbumID, params ListParams) ([]Track, error) {
	offset, limit := params.offsetLimit()
	return c.listTracks(ctx,
		"SELECT "+trackColumns+" FROM track_view WHERE album = ? ORDER BY id ASC LIMIT ? OFFSET ?",
		album.DB(), limit, offset)
}

// ListRandomTracks returns up to limit tracks in random order.
func (c *Catalog) ListRandomTracks(ctx context.Context, limit int64) ([]Track, error) {
	if limit <= 0 {
		limit = 10
	}
	return c.listTracks(ctx,
		"SELECT "+trackColumns+" FROM track_view ORDER BY RANDOM() LIMIT ?", limit)
}

// GetTrack returns the track with the given id.
func (c *Catalog) GetTrack(ctx context.Context, id TrackID) (Track, error) {
	return getTrackTx(ctx, c.db, id)
}

// GetTrackBulk returns one track per input id, preserving caller order and
// duplicates. A missing id fails the whole call.
func (c *Catalog) GetTrackBulk(ctx context.Context, ids []TrackID) ([]Track, error) {
	tracks := make([]Track, 0, len(ids))
	for _, id := range ids {
		track, err := getTrackTx(ctx, c.db, id)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// CreateTrack validates and inserts a new track together with its property
// set, lyrics and preferred audio link in one transaction.
func (c *Catalog) CreateTrack(ctx context.Context, create TrackCreate) (Track, error) {
	if strings.TrimSpace(create.Name) == "" {
		return Track{}, shared.Invalidf("track name is empty")
	}
	if create.Album.IsZero() {
		return Track{}, shared.Invalidf("track album is required")
	}

	var track Track
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		track, err = createTrackTx(ctx, tx, create)
		return err
	})
	if err != nil {
		return Track{}, err
	}
	c.indexTrack(ctx, track, create.Lyrics)
	return track, nil
}

func createTrackTx(ctx context.Context, tx *sql.Tx, create TrackCreate) (Track, error) {
	if _, err := getAlbumTx(ctx, tx, create.Album); err != nil {
		return Track{}, err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO track (name, album, cover_art) VALUES (?, ?, ?)",
		create.Name, create.Album.DB(), nullID(create.CoverArt.DB(), !create.CoverArt.IsZero()))
	if err != nil {
		return Track{}, shared.Internalf("failed to insert track: %v", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return Track{}, shared.Internalf("failed to read track id: %v", err)
	}

	id := TrackIDFromDB(rowID)
	if err := propertyReplace(ctx, tx, id.ID(), create.Properties); err != nil {
		return Track{}, err
	}
	if !create.Audio.IsZero() {
		if err := linkAudioTx(ctx, tx, id, create.Audio, true); err != nil {
			return Track{}, err
		}
	}
	if create.Lyrics != nil {
		if err := setLyricsTx(ctx, tx, id, *create.Lyrics); err != nil {
			return Track{}, err
		}
	}
	return getTrackTx(ctx, tx, id)
}

// FindOrCreateTrackByName looks a track up by (album, name), creating it
// when absent, inside a single transaction.
func (c *Catalog) FindOrCreateTrackByName(ctx context.Context, create TrackCreate) (Track, error) {
	if strings.TrimSpace(create.Name) == "" {
		return Track{}, shared.Invalidf("track name is empty")
	}
	if create.Album.IsZero() {
		return Track{}, shared.Invalidf("track album is required")
	}

	var track Track
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var rowID int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM track WHERE album = ? AND name = ?",
			create.Album.DB(), create.Name).Scan(&rowID)
		switch {
		case err == nil:
			track, err = getTrackTx(ctx, tx, TrackIDFromDB(rowID))
			return err
		case errors.Is(err, sql.ErrNoRows):
			track, err = createTrackTx(ctx, tx, create)
			return err
		default:
			return shared.Internalf("failed to look up track by name: %v", err)
		}
	})
	if err != nil {
		return Track{}, err
	}
	c.indexTrack(ctx, track, create.Lyrics)
	return track, nil
}

// UpdateTrack applies the update and returns the post-update track.
func (c *Catalog) UpdateTrack(ctx context.Context, id TrackID, update TrackUpdate) (Track, error) {
	var track Track
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTrackTx(ctx, tx, id); err != nil {
			return err
		}
		if err := valueUpdateString(ctx, tx, "track", "name", id.DB(), update.Name); err != nil {
			return err
		}
		if err := valueUpdateIDNonNull(ctx, tx, "track", "album", id.DB(), mapIDUpdate(update.Album)); err != nil {
			return err
		}
		if err := valueUpdateIDNullable(ctx, tx, "track", "cover_art", id.DB(), mapIDUpdate(update.CoverArt)); err != nil {
			return err
		}
		if update.Lyrics != nil {
			if err := setLyricsTx(ctx, tx, id, *update.Lyrics); err != nil {
				return err
			}
		}
		if err := propertyApply(ctx, tx, id.ID(), update.Properties); err != nil {
			return err
		}
		var err error
		track, err = getTrackTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return Track{}, err
	}
	c.indexTrack(ctx, track, update.Lyrics)
	return track, nil
}

// DeleteTrack removes the track, cascading audio links, lyrics, playlist
// membership, favorites, pins and scrobbles, and clears its property rows.
func (c *Catalog) DeleteTrack(ctx context.Context, id TrackID) error {
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTrackTx(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM track WHERE id = ?", id.DB()); err != nil {
			return shared.Internalf("failed to delete track: %v", err)
		}
		return clearScopedRows(ctx, tx, []ID{id.ID()})
	})
	if err != nil {
		return err
	}
	c.removeFromIndex(ctx, []ID{id.ID()})
	return nil
}

// DownloadTrack resolves the preferred audio and returns a ranged reader
// over its blob along with the audio row. Absence of a preferred audio is a
// not-found.
func (c *Catalog) DownloadTrack(ctx context.Context, id TrackID, rng ByteRange) (io.ReadCloser, Audio, error) {
	track, err := c.GetTrack(ctx, id)
	if err != nil {
		return nil, Audio{}, err
	}
	if track.Audio.IsZero() {
		return nil, Audio{}, shared.NotFoundf("track %s has no preferred audio", id)
	}

	audio, err := c.GetAudio(ctx, track.Audio)
	if err != nil {
		return nil, Audio{}, err
	}
	r, err := c.blobs.Read(ctx, audio.BlobKey, blob.Range{Offset: rng.Offset, Length: rng.Length})
	if err != nil {
		return nil, Audio{}, err
	}
	return r, audio, nil
}

// GetTrackLyrics returns the lyrics attached to a track, or not-found.
func (c *Catalog) GetTrackLyrics(ctx context.Context, id TrackID) (Lyrics, error) {
	var kind sql.NullString
	err := c.db.QueryRowContext(ctx, "SELECT lyrics_kind FROM track WHERE id = ?", id.DB()).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return Lyrics{}, shared.NotFoundf("track")
	}
	if err != nil {
		return Lyrics{}, shared.Internalf("failed to query lyrics: %v", err)
	}
	if !kind.Valid {
		return Lyrics{}, shared.NotFoundf("track %s has no lyrics", id)
	}

	rows, err := c.db.QueryContext(ctx,
		"SELECT offset_ms, duration_ms, text FROM track_lyrics_line WHERE track = ? ORDER BY rowid ASC",
		id.DB())
	if err != nil {
		return Lyrics{}, shared.Internalf("failed to query lyrics lines: %v", err)
	}
	defer rows.Close()

	lyrics := Lyrics{Kind: LyricsKind(kind.String)}
	for rows.Next() {
		var offsetMS, durationMS int64
		var text string
		if err := rows.Scan(&offsetMS, &durationMS, &text); err != nil {
			return Lyrics{}, shared.Internalf("failed to scan lyrics line: %v", err)
		}
		lyrics.Lines = append(lyrics.Lines, LyricsLine{
			Offset:   time.Duration(offsetMS) * time.Millisecond,
			Duration: time.Duration(durationMS) * time.Millisecond,
			Text:     text,
		})
	}
	return lyrics, rows.Err()
}

func setLyricsTx(ctx context.Context, tx *sql.Tx, id TrackID, lyrics Lyrics) error {
	if lyrics.Kind != LyricsKindSynced && lyrics.Kind != LyricsKindUnsynced {
		return shared.Invalidf("lyrics kind %q", lyrics.Kind)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE track SET lyrics_kind = ? WHERE id = ?", string(lyrics.Kind), id.DB()); err != nil {
		return shared.Internalf("failed to set lyrics kind: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM track_lyrics_line WHERE track = ?", id.DB()); err != nil {
		return shared.Internalf("failed to clear lyrics lines: %v", err)
	}
	for _, line := range lyrics.Lines {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO track_lyrics_line (track, offset_ms, duration_ms, text) VALUES (?, ?, ?, ?)",
			id.DB(), line.Offset.Milliseconds(), line.Duration.Milliseconds(), line.Text); err != nil {
			return shared.Internalf("failed to insert lyrics line: %v", err)
		}
	}
	return nil
}
