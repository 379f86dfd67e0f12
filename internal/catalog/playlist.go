package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

// Playlist is an ordered, user-owned list of tracks. TrackCount and
// Duration are aggregates derived from the membership rows.
type Playlist struct {
	ID         PlaylistID
	Name       string
	Owner      UserID
	CoverArt   ImageID
	Properties Properties
	TrackCount uint32
	Duration   time.Duration
	CreatedAt  time.Time
}

// PlaylistCreate carries the fields of a new playlist, including an
// optional initial track list.
type PlaylistCreate struct {
	Name       string
	Owner      UserID
	Tracks     []TrackID
	Properties Properties
}

// PlaylistUpdate applies three-valued field updates plus a property update
// list. Owner is not updatable.
type PlaylistUpdate struct {
	Name       ValueUpdate[string]
	CoverArt   ValueUpdate[ImageID]
	Properties []PropertyUpdate
}

const playlistColumns = `p.id, p.name, p.owner, p.cover_art, p.created_at,
	(SELECT COUNT(*) FROM playlist_track pt WHERE pt.playlist = p.id),
	COALESCE((SELECT SUM(tv.duration_ms) FROM playlist_track pt JOIN track_view tv ON tv.id = pt.track WHERE pt.playlist = p.id), 0)`

func scanPlaylist(row interface{ Scan(...any) error }) (Playlist, error) {
	var (
		playlist   Playlist
		id, owner  int64
		coverArt   sql.NullInt64
		created    int64
		durationMS int64
	)
	err := row.Scan(&id, &playlist.Name, &owner, &coverArt, &created, &playlist.TrackCount, &durationMS)
	if errors.Is(err, sql.ErrNoRows) {
		return Playlist{}, shared.NotFoundf("playlist")
	}
	if err != nil {
		return Playlist{}, shared.Internalf("failed to scan playlist: %v", err)
	}
	playlist.ID = PlaylistIDFromDB(id)
	playlist.Owner = UserIDFromDB(owner)
	if coverArt.Valid {
		playlist.CoverArt = ImageIDFromDB(coverArt.Int64)
	}
	playlist.Duration = time.Duration(durationMS) * time.Millisecond
	playlist.CreatedAt = time.Unix(created, 0)
	return playlist, nil
}

func getPlaylistTx(ctx context.Context, q querier, id PlaylistID) (Playlist, error) {
	row := q.QueryRowContext(ctx, "SELECT "+playlistColumns+" FROM playlist p WHERE p.id = ?", id.DB())
	playlist, err := scanPlaylist(row)
	if err != nil {
		return Playlist{}, err
	}
	if playlist.Properties, err = propertyGet(ctx, q, playlist.ID.ID()); err != nil {
		return Playlist{}, err
	}
	return playlist, nil
}

func (c *Catalog) listPlaylists(ctx context.Context, query string, args ...any) ([]Playlist, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, shared.Internalf("failed to list playlists: %v", err)
	}
	defer rows.Close()

	var playlists []Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Internalf("failed to list playlists: %v", err)
	}
	for i := range playlists {
		if playlists[i].Properties, err = propertyGet(ctx, c.db, playlists[i].ID.ID()); err != nil {
			return nil, err
		}
	}
	return playlists, nil
}

// ListPlaylists returns playlists ordered by id.
func (c *Catalog) ListPlaylists(ctx context.Context, params ListParams) ([]Playlist, error) {
	offset, limit := params.offsetLimit()
	return c.listPlaylists(ctx,
		"SELECT "+playlistColumns+" FROM playlist p ORDER BY p.id ASC LIMIT ? OFFSET ?", limit, offset)
}

// ListPlaylistsByUser returns the playlists owned by user, ordered by id.
func (c *Catalog) ListPlaylistsByUser(ctx context.Context, user UserID, params ListParams) ([]Playlist, error) {
	offset, limit := params.offsetLimit()
	return c.listPlaylists(ctx,
		"SELECT "+playlistColumns+" FROM playlist p WHERE p.owner = ? ORDER BY p.id ASC LIMIT ? OFFSET ?",
		user.DB(), limit, offset)
}

// GetPlaylist returns the playlist with the given id.
func (c *Catalog) GetPlaylist(ctx context.Context, id PlaylistID) (Playlist, error) {
	return getPlaylistTx(ctx, c.db, id)
}

// GetPlaylistBulk returns one playlist per input id, preserving caller
// order and duplicates. A missing id fails the whole call.
func (c *Catalog) GetPlaylistBulk(ctx context.Context, ids []PlaylistID) ([]Playlist, error) {
	playlists := make([]Playlist, 0, len(ids))
	for _, id := range ids {
		playlist, err := getPlaylistTx(ctx, c.db, id)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}
	return playlists, nil
}

// GetPlaylistByName returns the playlist owned by user with the given name.
func (c *Catalog) GetPlaylistByName(ctx context.Context, user UserID, name string) (Playlist, error) {
	var rowID int64
	err := c.db.QueryRowContext(ctx,
		"SELECT id FROM playlist WHERE owner = ? AND name = ?", user.DB(), name).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return Playlist{}, shared.NotFoundf("playlist %q", name)
	}
	if err != nil {
		return Playlist{}, shared.Internalf("failed to look up playlist by name: %v", err)
	}
	return getPlaylistTx(ctx, c.db, PlaylistIDFromDB(rowID))
}

// CreatePlaylist validates and inserts a new playlist together with its
// initial track list in one transaction.
func (c *Catalog) CreatePlaylist(ctx context.Context, create PlaylistCreate) (Playlist, error) {
	if strings.TrimSpace(create.Name) == "" {
		return Playlist{}, shared.Invalidf("playlist name is empty")
	}
	if create.Owner.IsZero() {
		return Playlist{}, shared.Invalidf("playlist owner is required")
	}

	var playlist Playlist
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		playlist, err = createPlaylistTx(ctx, tx, create)
		return err
	})
	if err != nil {
		return Playlist{}, err
	}
	c.indexPlaylist(ctx, playlist)
	return playlist, nil
}

func createPlaylistTx(ctx context.Context, tx *sql.Tx, create PlaylistCreate) (Playlist, error) {
	if _, err := getUserTx(ctx, tx, create.Owner); err != nil {
		return Playlist{}, err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO playlist (name, owner) VALUES (?, ?)", create.Name, create.Owner.DB())
	if err != nil {
		return Playlist{}, shared.Internalf("failed to insert playlist: %v", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return Playlist{}, shared.Internalf("failed to read playlist id: %v", err)
	}

	id := PlaylistIDFromDB(rowID)
	if err := propertyReplace(ctx, tx, id.ID(), create.Properties); err != nil {
		return Playlist{}, err
	}
	if err := insertPlaylistTracksTx(ctx, tx, id, create.Tracks); err != nil {
		return Playlist{}, err
	}
	return getPlaylistTx(ctx, tx, id)
}

// FindOrCreatePlaylistByName looks a playlist up by (owner, name), creating
// it when absent, inside a single transaction.
func (c *Catalog) FindOrCreatePlaylistByName(ctx context.Context, create PlaylistCreate) (Playlist, error) {
	if strings.TrimSpace(create.Name) == "" {
		return Playlist{}, shared.Invalidf("playlist name is empty")
	}
	if create.Owner.IsZero() {
		return Playlist{}, shared.Invalidf("playlist owner is required")
	}

	var playlist Playlist
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var rowID int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM playlist WHERE owner = ? AND name = ?",
			create.Owner.DB(), create.Name).Scan(&rowID)
		switch {
		case err == nil:
			playlist, err = getPlaylistTx(ctx, tx, PlaylistIDFromDB(rowID))
			return err
		case errors.Is(err, sql.ErrNoRows):
			playlist, err = createPlaylistTx(ctx, tx, create)
			return err
		default:
			return shared.Internalf("failed to look up playlist by name: %v", err)
		}
	})
	if err != nil {
		return Playlist{}, err
	}
	c.indexPlaylist(ctx, playlist)
	return playlist, nil
}

// UpdatePlaylist applies the update and returns the post-update playlist.
func (c *Catalog) UpdatePlaylist(ctx context.Context, id PlaylistID, update PlaylistUpdate) (Playlist, error) {
	var playlist Playlist
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getPlaylistTx(ctx, tx, id); err != nil {
			return err
		}
		if err := valueUpdateString(ctx, tx, "playlist", "name", id.DB(), update.Name); err != nil {
			return err
		}
		if err := valueUpdateIDNullable(ctx, tx, "playlist", "cover_art", id.DB(), mapIDUpdate(update.CoverArt)); err != nil {
			return err
		}
		if err := propertyApply(ctx, tx, id.ID(), update.Properties); err != nil {
			return err
		}
		var err error
		playlist, err = getPlaylistTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return Playlist{}, err
	}
	c.indexPlaylist(ctx, playlist)
	return playlist, nil
}

// DeletePlaylist removes the playlist, its membership rows and its scoped
// property rows.
func (c *Catalog) DeletePlaylist(ctx context.Context, id PlaylistID) error {
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getPlaylistTx(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM playlist WHERE id = ?", id.DB()); err != nil {
			return shared.Internalf("failed to delete playlist: %v", err)
		}
		return clearScopedRows(ctx, tx, []ID{id.ID()})
	})
	if err != nil {
		return err
	}
	c.removeFromIndex(ctx, []ID{id.ID()})
	return nil
}

// DuplicatePlaylist copies a playlist and its track list under a new name
// for the same owner.
func (c *Catalog) DuplicatePlaylist(ctx context.Context, id PlaylistID, name string) (Playlist, error) {
	if strings.TrimSpace(name) == "" {
		return Playlist{}, shared.Invalidf("playlist name is empty")
	}

	var playlist Playlist
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		source, err := getPlaylistTx(ctx, tx, id)
		if err != nil {
			return err
		}
		tracks, err := listPlaylistTracksTx(ctx, tx, id)
		if err != nil {
			return err
		}
		playlist, err = createPlaylistTx(ctx, tx, PlaylistCreate{
			Name:       name,
			Owner:      source.Owner,
			Tracks:     tracks,
			Properties: source.Properties,
		})
		return err
	})
	if err != nil {
		return Playlist{}, err
	}
	c.indexPlaylist(ctx, playlist)
	return playlist, nil
}

// ListPlaylistTracks returns the playlist's tracks in playlist order.
func (c *Catalog) ListPlaylistTracks(ctx context.Context, id PlaylistID, params ListParams) ([]Track, error) {
	if _, err := c.GetPlaylist(ctx, id); err != nil {
		return nil, err
	}
	offset, limit := params.offsetLimit()
	return c.listTracks(ctx,
		`SELECT tv.id, tv.name, tv.album, tv.cover_art, tv.audio, tv.duration_ms, tv.listen_count, tv.created_at
		 FROM playlist_track pt JOIN track_view tv ON tv.id = pt.track
		 WHERE pt.playlist = ? ORDER BY pt.rowid ASC LIMIT ? OFFSET ?`,
		id.DB(), limit, offset)
}

func listPlaylistTracksTx(ctx context.Context, q querier, id PlaylistID) ([]TrackID, error) {
	rows, err := collectIDs(ctx, q,
		"SELECT track FROM playlist_track WHERE playlist = ? ORDER BY rowid ASC", id.DB())
	if err != nil {
		return nil, err
	}
	tracks := make([]TrackID, 0, len(rows))
	for _, row := range rows {
		tracks = append(tracks, TrackIDFromDB(row))
	}
	return tracks, nil
}

// InsertPlaylistTracks appends tracks to the end of the playlist.
// Duplicates are allowed.
func (c *Catalog) InsertPlaylistTracks(ctx context.Context, id PlaylistID, tracks []TrackID) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getPlaylistTx(ctx, tx, id); err != nil {
			return err
		}
		return insertPlaylistTracksTx(ctx, tx, id, tracks)
	})
}

func insertPlaylistTracksTx(ctx context.Context, tx *sql.Tx, id PlaylistID, tracks []TrackID) error {
	for _, track := range tracks {
		if _, err := getTrackTx(ctx, tx, track); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO playlist_track (playlist, track) VALUES (?, ?)",
			id.DB(), track.DB()); err != nil {
			return shared.Internalf("failed to insert playlist track: %v", err)
		}
	}
	return nil
}

// RemovePlaylistTracks removes every occurrence of the given tracks.
func (c *Catalog) RemovePlaylistTracks(ctx context.Context, id PlaylistID, tracks []TrackID) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getPlaylistTx(ctx, tx, id); err != nil {
			return err
		}
		for _, track := range tracks {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM playlist_track WHERE playlist = ? AND track = ?",
				id.DB(), track.DB()); err != nil {
				return shared.Internalf("failed to remove playlist track: %v", err)
			}
		}
		return nil
	})
}

// ClearPlaylistTracks empties the playlist.
func (c *Catalog) ClearPlaylistTracks(ctx context.Context, id PlaylistID) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getPlaylistTx(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM playlist_track WHERE playlist = ?", id.DB()); err != nil {
			return shared.Internalf("failed to clear playlist tracks: %v", err)
		}
		return nil
	})
}
