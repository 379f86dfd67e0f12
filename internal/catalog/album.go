package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

// Album is a catalog album owned by an artist. TrackCount, Duration and
// ListenCount are aggregates derived from live rows.
type Album struct {
	ID          AlbumID
	Name        string
	Artist      ArtistID
	CoverArt    ImageID
	Genres      Genres
	Properties  Properties
	TrackCount  uint32
	Duration    time.Duration
	ListenCount uint32
	CreatedAt   time.Time
}

// AlbumCreate carries the fields of a new album.
type AlbumCreate struct {
	Name       string
	Artist     ArtistID
	CoverArt   ImageID
	Genres     Genres
	Properties Properties
}

// AlbumUpdate applies three-valued field updates plus property and genre
// update lists. Artist is non-nullable; Unset fails.
type AlbumUpdate struct {
	Name       ValueUpdate[string]
	Artist     ValueUpdate[ArtistID]
	CoverArt   ValueUpdate[ImageID]
	Properties []PropertyUpdate
	Genres     []GenreUpdate
}

const albumColumns = "id, name, artist, cover_art, created_at, track_count, duration_ms, listen_count"

func scanAlbum(row interface{ Scan(...any) error }) (Album, error) {
	var (
		album      Album
		id, artist int64
		coverArt   sql.NullInt64
		created    int64
		durationMS int64
	)
	err := row.Scan(&id, &album.Name, &artist, &coverArt, &created, &album.TrackCount, &durationMS, &album.ListenCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Album{}, shared.NotFoundf("album")
	}
	if err != nil {
		return Album{}, shared.Internalf("failed to scan album: %v", err)
	}
	album.ID = AlbumIDFromDB(id)
	album.Artist = ArtistIDFromDB(artist)
	if coverArt.Valid {
		album.CoverArt = ImageIDFromDB(coverArt.Int64)
	}
	album.Duration = time.Duration(durationMS) * time.Millisecond
	album.CreatedAt = time.Unix(created, 0)
	return album, nil
}

func getAlbumTx(ctx context.Context, q querier, id AlbumID) (Album, error) {
	row := q.QueryRowContext(ctx, "SELECT "+albumColumns+" FROM album_view WHERE id = ?", id.DB())
	album, err := scanAlbum(row)
	if err != nil {
		return Album{}, err
	}
	if album.Properties, err = propertyGet(ctx, q, album.ID.ID()); err != nil {
		return Album{}, err
	}
	if album.Genres, err = genreGet(ctx, q, album.ID.ID()); err != nil {
		return Album{}, err
	}
	return album, nil
}

func (c *Catalog) listAlbums(ctx context.Context, query string, args ...any) ([]Album, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, shared.Internalf("failed to list albums: %v", err)
	}
	defer rows.Close()

	var albums []Album
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Internalf("failed to list albums: %v", err)
	}
	for i := range albums {
		if albums[i].Properties, err = propertyGet(ctx, c.db, albums[i].ID.ID()); err != nil {
			return nil, err
		}
		if albums[i].Genres, err = genreGet(ctx, c.db, albums[i].ID.ID()); err != nil {
			return nil, err
		}
	}
	return albums, nil
}

// ListAlbums returns albums ordered by id.
func (c *Catalog) ListAlbums(ctx context.Context, params ListParams) ([]Album, error) {
	offset, limit := params.offsetLimit()
	return c.listAlbums(ctx,
		"SELECT "+albumColumns+" FROM album_view ORDER BY id ASC LIMIT ? OFFSET ?", limit, offset)
}

// ListAlbumsByArtist returns the albums owned by artist, ordered by id.
func (c *Catalog) ListAlbumsByArtist(ctx context.Context, artist ArtistID, params ListParams) ([]Album, error) {
	offset, limit := params.offsetLimit()
	return c.listAlbums(ctx,
		"SELECT "+albumColumns+" FROM album_view WHERE artist = ? ORDER BY id ASC LIMIT ? OFFSET ?",
		artist.DB(), limit, offset)
}

// GetAlbum returns the album with the given id.
func (c *Catalog) GetAlbum(ctx context.Context, id AlbumID) (Album, error) {
	return getAlbumTx(ctx, c.db, id)
}

// GetAlbumBulk returns one album per input id, preserving caller order and
// duplicates. A missing id fails the whole call.
func (c *Catalog) GetAlbumBulk(ctx context.Context, ids []AlbumID) ([]Album, error) {
	albums := make([]Album, 0, len(ids))
	for _, id := range ids {
		album, err := getAlbumTx(ctx, c.db, id)
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}
	return albums, nil
}

// CreateAlbum validates and inserts a new album together with its property
// and genre sets in one transaction.
func (c *Catalog) CreateAlbum(ctx context.Context, create AlbumCreate) (Album, error) {
	if strings.TrimSpace(create.Name) == "" {
		return Album{}, shared.Invalidf("album name is empty")
	}
	if create.Artist.IsZero() {
		return Album{}, shared.Invalidf("album artist is required")
	}

	var album Album
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		album, err = createAlbumTx(ctx, tx, create)
		return err
	})
	if err != nil {
		return Album{}, err
	}
	c.indexAlbum(ctx, album)
	return album, nil
}

func createAlbumTx(ctx context.Context, tx *sql.Tx, create AlbumCreate) (Album, error) {
	if _, err := getArtistTx(ctx, tx, create.Artist); err != nil {
		return Album{}, err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO album (name, artist, cover_art) VALUES (?, ?, ?)",
		create.Name, create.Artist.DB(), nullID(create.CoverArt.DB(), !create.CoverArt.IsZero()))
	if err != nil {
		return Album{}, shared.Internalf("failed to insert album: %v", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return Album{}, shared.Internalf("failed to read album id: %v", err)
	}

	id := AlbumIDFromDB(rowID)
	if err := propertyReplace(ctx, tx, id.ID(), create.Properties); err != nil {
		return Album{}, err
	}
	if err := genreReplace(ctx, tx, id.ID(), create.Genres); err != nil {
		return Album{}, err
	}
	return getAlbumTx(ctx, tx, id)
}

// FindOrCreateAlbumByName looks an album up by (artist, name), creating it
// when absent, inside a single transaction.
func (c *Catalog) FindOrCreateAlbumByName(ctx context.Context, create AlbumCreate) (Album, error) {
	if strings.TrimSpace(create.Name) == "" {
		return Album{}, shared.Invalidf("album name is empty")
	}
	if create.Artist.IsZero() {
		return Album{}, shared.Invalidf("album artist is required")
	}

	var album Album
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		album, err = findOrCreateAlbumTx(ctx, tx, create)
		return err
	})
	if err != nil {
		return Album{}, err
	}
	c.indexAlbum(ctx, album)
	return album, nil
}

func findOrCreateAlbumTx(ctx context.Context, tx *sql.Tx, create AlbumCreate) (Album, error) {
	var rowID int64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM album WHERE artist = ? AND name = ?",
		create.Artist.DB(), create.Name).Scan(&rowID)
	switch {
	case err == nil:
		return getAlbumTx(ctx, tx, AlbumIDFromDB(rowID))
	case errors.Is(err, sql.ErrNoRows):
		return createAlbumTx(ctx, tx, create)
	default:
		return Album{}, shared.Internalf("failed to look up album by name: %v", err)
	}
}

// UpdateAlbum applies the update and returns the post-update album.
func (c *Catalog) UpdateAlbum(ctx context.Context, id AlbumID, update AlbumUpdate) (Album, error) {
	var album Album
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getAlbumTx(ctx, tx, id); err != nil {
			return err
		}
		if err := valueUpdateString(ctx, tx, "album", "name", id.DB(), update.Name); err != nil {
			return err
		}
		if err := valueUpdateIDNonNull(ctx, tx, "album", "artist", id.DB(), mapIDUpdate(update.Artist)); err != nil {
			return err
		}
		if err := valueUpdateIDNullable(ctx, tx, "album", "cover_art", id.DB(), mapIDUpdate(update.CoverArt)); err != nil {
			return err
		}
		if err := propertyApply(ctx, tx, id.ID(), update.Properties); err != nil {
			return err
		}
		if err := genreApply(ctx, tx, id.ID(), update.Genres); err != nil {
			return err
		}
		var err error
		album, err = getAlbumTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return Album{}, err
	}
	c.indexAlbum(ctx, album)
	return album, nil
}

// DeleteAlbum removes the album, cascading tracks, and clears every
// property and genre row scoped to the removed entities.
func (c *Catalog) DeleteAlbum(ctx context.Context, id AlbumID) error {
	var removed []ID
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getAlbumTx(ctx, tx, id); err != nil {
			return err
		}

		trackIDs, err := collectIDs(ctx, tx, "SELECT id FROM track WHERE album = ?", id.DB())
		if err != nil {
			return err
		}
		for _, trackRow := range trackIDs {
			removed = append(removed, TrackIDFromDB(trackRow).ID())
		}
		removed = append(removed, id.ID())

		if _, err := tx.ExecContext(ctx, "DELETE FROM album WHERE id = ?", id.DB()); err != nil {
			return shared.Internalf("failed to delete album: %v", err)
		}
		return clearScopedRows(ctx, tx, removed)
	})
	if err != nil {
		return err
	}
	c.removeFromIndex(ctx, removed)
	return nil
}
