package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/diogo464/sonar-sub000/internal/blob"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// ImportCreate materializes a complete import: the owning artist and
// album (resolved by id when given, found-or-created by name otherwise),
// the track, its audio and optional cover art. Blobs are written first;
// every row is inserted in one transaction, so a failed import leaves no
// rows behind.
type ImportCreate struct {
	Artist     ArtistID // resolved instead of ArtistName when set
	ArtistName string
	Album      AlbumID // resolved instead of AlbumName when set
	AlbumName  string
	TrackName  string
	Genres     Genres
	Properties Properties
	Cover      []byte
	CoverMime  string
	Audio      AudioCreate
}

// ImportTrack materializes an import. Re-importing into an existing track
// links the new audio without touching the preferred one.
func (c *Catalog) ImportTrack(ctx context.Context, create ImportCreate) (Track, error) {
	if strings.TrimSpace(create.TrackName) == "" {
		return Track{}, shared.Invalidf("track name is empty")
	}
	if create.Artist.IsZero() && strings.TrimSpace(create.ArtistName) == "" {
		return Track{}, shared.Invalidf("import artist is required")
	}
	if create.Album.IsZero() && strings.TrimSpace(create.AlbumName) == "" {
		return Track{}, shared.Invalidf("import album is required")
	}
	if create.Audio.MimeType == "" {
		return Track{}, shared.Invalidf("audio mime type is empty")
	}
	if create.Audio.Content == nil {
		return Track{}, shared.Invalidf("audio content is required")
	}

	audioKey := blob.RandomKey("audio")
	audioSize, err := c.blobs.Write(ctx, audioKey, create.Audio.Content)
	if err != nil {
		return Track{}, shared.Internalf("failed to store audio blob: %v", err)
	}
	var imageKey string
	var imageSize int64
	if len(create.Cover) > 0 && create.CoverMime != "" {
		imageKey = blob.RandomKey("image")
		imageSize, err = c.blobs.Write(ctx, imageKey, bytes.NewReader(create.Cover))
		if err != nil {
			c.blobs.Delete(ctx, audioKey)
			return Track{}, shared.Internalf("failed to store cover blob: %v", err)
		}
	}

	var artist Artist
	var album Album
	var track Track
	err = c.withTx(ctx, func(tx *sql.Tx) error {
		var coverArt ImageID
		if imageKey != "" {
			res, err := tx.ExecContext(ctx,
				"INSERT INTO image (mime_type, blob_key, blob_size) VALUES (?, ?, ?)",
				create.CoverMime, imageKey, imageSize)
			if err != nil {
				return shared.Internalf("failed to insert image: %v", err)
			}
			rowID, err := res.LastInsertId()
			if err != nil {
				return shared.Internalf("failed to read image id: %v", err)
			}
			coverArt = ImageIDFromDB(rowID)
		}

		var err error
		if !create.Artist.IsZero() {
			artist, err = getArtistTx(ctx, tx, create.Artist)
		} else {
			artist, err = findOrCreateArtistTx(ctx, tx, ArtistCreate{
				Name:     create.ArtistName,
				CoverArt: coverArt,
				Genres:   create.Genres,
			})
		}
		if err != nil {
			return err
		}
		if !create.Album.IsZero() {
			album, err = getAlbumTx(ctx, tx, create.Album)
		} else {
			album, err = findOrCreateAlbumTx(ctx, tx, AlbumCreate{
				Name:     create.AlbumName,
				Artist:   artist.ID,
				CoverArt: coverArt,
				Genres:   create.Genres,
			})
		}
		if err != nil {
			return err
		}

		audio, err := insertAudioTx(ctx, tx, create.Audio, audioKey, audioSize)
		if err != nil {
			return err
		}

		var rowID int64
		err = tx.QueryRowContext(ctx,
			"SELECT id FROM track WHERE album = ? AND name = ?",
			album.ID.DB(), create.TrackName).Scan(&rowID)
		switch {
		case err == nil:
			id := TrackIDFromDB(rowID)
			if err := linkAudioTx(ctx, tx, id, audio.ID, false); err != nil {
				return err
			}
			track, err = getTrackTx(ctx, tx, id)
			return err
		case errors.Is(err, sql.ErrNoRows):
			track, err = createTrackTx(ctx, tx, TrackCreate{
				Name:       create.TrackName,
				Album:      album.ID,
				CoverArt:   coverArt,
				Audio:      audio.ID,
				Properties: create.Properties,
			})
			return err
		default:
			return shared.Internalf("failed to look up track by name: %v", err)
		}
	})
	if err != nil {
		c.blobs.Delete(ctx, audioKey)
		if imageKey != "" {
			c.blobs.Delete(ctx, imageKey)
		}
		return Track{}, err
	}

	c.indexArtist(ctx, artist)
	c.indexAlbum(ctx, album)
	c.indexTrack(ctx, track, nil)
	return track, nil
}
