package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

// Artist is a catalog artist. AlbumCount and ListenCount are aggregates
// derived from live rows.
type Artist struct {
	ID          ArtistID
	Name        string
	CoverArt    ImageID
	Genres      Genres
	Properties  Properties
	AlbumCount  uint32
	ListenCount uint32
	CreatedAt   time.Time
}

// ArtistCreate carries the fields of a new artist.
type ArtistCreate struct {
	Name       string
	CoverArt   ImageID
	Genres     Genres
	Properties Properties
}

// ArtistUpdate applies three-valued field updates plus property and genre
// update lists.
type ArtistUpdate struct {
	Name       ValueUpdate[string]
	CoverArt   ValueUpdate[ImageID]
	Properties []PropertyUpdate
	Genres     []GenreUpdate
}

func scanArtist(row interface{ Scan(...any) error }) (Artist, error) {
	var (
		artist   Artist
		id       int64
		coverArt sql.NullInt64
		created  int64
	)
	err := row.Scan(&id, &artist.Name, &coverArt, &created, &artist.AlbumCount, &artist.ListenCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Artist{}, shared.NotFoundf("artist")
	}
	if err != nil {
		return Artist{}, shared.Internalf("failed to scan artist: %v", err)
	}
	artist.ID = ArtistIDFromDB(id)
	if coverArt.Valid {
		artist.CoverArt = ImageIDFromDB(coverArt.Int64)
	}
	artist.CreatedAt = time.Unix(created, 0)
	return artist, nil
}

const artistColumns = "id, name, cover_art, created_at, album_count, listen_count"

func getArtistTx(ctx context.Context, q querier, id ArtistID) (Artist, error) {
	row := q.QueryRowContext(ctx, "SELECT "+artistColumns+" FROM artist_view WHERE id = ?", id.DB())
	artist, err := scanArtist(row)
	if err != nil {
		return Artist{}, err
	}
	if artist.Properties, err = propertyGet(ctx, q, artist.ID.ID()); err != nil {
		return Artist{}, err
	}
	if artist.Genres, err = genreGet(ctx, q, artist.ID.ID()); err != nil {
		return Artist{}, err
	}
	return artist, nil
}

// ListArtists returns artists ordered by id.
func (c *Catalog) ListArtists(ctx context.Context, params ListParams) ([]Artist, error) {
	offset, limit := params.offsetLimit()
	rows, err := c.db.QueryContext(ctx,
		"SELECT "+artistColumns+" FROM artist_view ORDER BY id ASC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, shared.Internalf("failed to list artists: %v", err)
	}
	defer rows.Close()

	var artists []Artist
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		artists = append(artists, artist)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Internalf("failed to list artists: %v", err)
	}
	for i := range artists {
		if artists[i].Properties, err = propertyGet(ctx, c.db, artists[i].ID.ID()); err != nil {
			return nil, err
		}
		if artists[i].Genres, err = genreGet(ctx, c.db, artists[i].ID.ID()); err != nil {
			return nil, err
		}
	}
	return artists, nil
}

// GetArtist returns the artist with the given id.
func (c *Catalog) GetArtist(ctx context.Context, id ArtistID) (Artist, error) {
	return getArtistTx(ctx, c.db, id)
}

// GetArtistBulk returns one artist per input id, preserving caller order
// and duplicates. A missing id fails the whole call.
func (c *Catalog) GetArtistBulk(ctx context.Context, ids []ArtistID) ([]Artist, error) {
	artists := make([]Artist, 0, len(ids))
	for _, id := range ids {
		artist, err := getArtistTx(ctx, c.db, id)
		if err != nil {
			return nil, err
		}
		artists = append(artists, artist)
	}
	return artists, nil
}

// GetArtistByName returns the artist with the given name.
func (c *Catalog) GetArtistByName(ctx context.Context, name string) (Artist, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+artistColumns+" FROM artist_view WHERE name = ?", name)
	artist, err := scanArtist(row)
	if err != nil {
		return Artist{}, err
	}
	return getArtistTx(ctx, c.db, artist.ID)
}

// CreateArtist validates and inserts a new artist together with its
// property and genre sets in one transaction.
func (c *Catalog) CreateArtist(ctx context.Context, create ArtistCreate) (Artist, error) {
	if strings.TrimSpace(create.Name) == "" {
		return Artist{}, shared.Invalidf("artist name is empty")
	}

	var artist Artist
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		artist, err = createArtistTx(ctx, tx, create)
		return err
	})
	if err != nil {
		return Artist{}, err
	}
	c.indexArtist(ctx, artist)
	return artist, nil
}

func createArtistTx(ctx context.Context, tx *sql.Tx, create ArtistCreate) (Artist, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO artist (name, cover_art) VALUES (?, ?)",
		create.Name, nullID(create.CoverArt.DB(), !create.CoverArt.IsZero()))
	if err != nil {
		return Artist{}, shared.Internalf("failed to insert artist: %v", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return Artist{}, shared.Internalf("failed to read artist id: %v", err)
	}

	id := ArtistIDFromDB(rowID)
	if err := propertyReplace(ctx, tx, id.ID(), create.Properties); err != nil {
		return Artist{}, err
	}
	if err := genreReplace(ctx, tx, id.ID(), create.Genres); err != nil {
		return Artist{}, err
	}
	return getArtistTx(ctx, tx, id)
}

// FindOrCreateArtistByName is a read-then-create inside a single
// transaction; a concurrent create resolves to the winning row.
func (c *Catalog) FindOrCreateArtistByName(ctx context.Context, create ArtistCreate) (Artist, error) {
	if strings.TrimSpace(create.Name) == "" {
		return Artist{}, shared.Invalidf("artist name is empty")
	}

	var artist Artist
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		artist, err = findOrCreateArtistTx(ctx, tx, create)
		return err
	})
	if err != nil {
		return Artist{}, err
	}
	c.indexArtist(ctx, artist)
	return artist, nil
}

func findOrCreateArtistTx(ctx context.Context, tx *sql.Tx, create ArtistCreate) (Artist, error) {
	var rowID int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM artist WHERE name = ?", create.Name).Scan(&rowID)
	switch {
	case err == nil:
		return getArtistTx(ctx, tx, ArtistIDFromDB(rowID))
	case errors.Is(err, sql.ErrNoRows):
		return createArtistTx(ctx, tx, create)
	default:
		return Artist{}, shared.Internalf("failed to look up artist by name: %v", err)
	}
}

// UpdateArtist applies the update and returns the post-update artist.
func (c *Catalog) UpdateArtist(ctx context.Context, id ArtistID, update ArtistUpdate) (Artist, error) {
	var artist Artist
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getArtistTx(ctx, tx, id); err != nil {
			return err
		}
		if err := valueUpdateString(ctx, tx, "artist", "name", id.DB(), update.Name); err != nil {
			return err
		}
		cover := mapIDUpdate(update.CoverArt)
		if err := valueUpdateIDNullable(ctx, tx, "artist", "cover_art", id.DB(), cover); err != nil {
			return err
		}
		if err := propertyApply(ctx, tx, id.ID(), update.Properties); err != nil {
			return err
		}
		if err := genreApply(ctx, tx, id.ID(), update.Genres); err != nil {
			return err
		}
		var err error
		artist, err = getArtistTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return Artist{}, err
	}
	c.indexArtist(ctx, artist)
	return artist, nil
}

// DeleteArtist removes the artist, cascading albums and tracks, and clears
// every property and genre row scoped to the removed entities.
func (c *Catalog) DeleteArtist(ctx context.Context, id ArtistID) error {
	var removed []ID
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getArtistTx(ctx, tx, id); err != nil {
			return err
		}

		albumIDs, err := collectIDs(ctx, tx, "SELECT id FROM album WHERE artist = ?", id.DB())
		if err != nil {
			return err
		}
		for _, albumRow := range albumIDs {
			trackIDs, err := collectIDs(ctx, tx, "SELECT id FROM track WHERE album = ?", albumRow)
			if err != nil {
				return err
			}
			for _, trackRow := range trackIDs {
				removed = append(removed, TrackIDFromDB(trackRow).ID())
			}
			removed = append(removed, AlbumIDFromDB(albumRow).ID())
		}
		removed = append(removed, id.ID())

		if _, err := tx.ExecContext(ctx, "DELETE FROM artist WHERE id = ?", id.DB()); err != nil {
			return shared.Internalf("failed to delete artist: %v", err)
		}
		return clearScopedRows(ctx, tx, removed)
	})
	if err != nil {
		return err
	}
	c.removeFromIndex(ctx, removed)
	return nil
}

// collectIDs reads a single int64 column into a slice.
func collectIDs(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, shared.Internalf("failed to query ids: %v", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, shared.Internalf("failed to scan id: %v", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// clearScopedRows drops property and genre rows for every removed entity.
func clearScopedRows(ctx context.Context, q querier, ids []ID) error {
	for _, id := range ids {
		if err := propertyClearAll(ctx, q, id); err != nil {
			return err
		}
		if err := genreClear(ctx, q, id); err != nil {
			return err
		}
	}
	return nil
}

func mapIDUpdate[T interface{ DB() int64 }](update ValueUpdate[T]) ValueUpdate[int64] {
	switch {
	case update.IsUnset():
		return Unset[int64]()
	case update.IsUnchanged():
		return ValueUpdate[int64]{}
	default:
		v, _ := update.Get()
		return Set(v.DB())
	}
}
