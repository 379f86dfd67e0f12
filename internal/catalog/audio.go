package catalog

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/diogo464/sonar-sub000/internal/blob"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// Audio is an encoded audio stream stored in the blob store. A track may
// have any number of audios; at most one of them is preferred and backs
// streaming and duration.
type Audio struct {
	ID          AudioID
	Bitrate     uint32
	Duration    time.Duration
	NumChannels uint32
	SampleFreq  uint32
	MimeType    string
	Filename    string
	BlobKey     string
	Size        int64
	CreatedAt   time.Time
}

// AudioCreate carries the metadata and content of a new audio. Content is
// drained into the blob store.
type AudioCreate struct {
	Bitrate     uint32
	Duration    time.Duration
	NumChannels uint32
	SampleFreq  uint32
	MimeType    string
	Filename    string
	Content     io.Reader
}

const audioColumns = "id, bitrate, duration_ms, num_channels, sample_freq, mime_type, filename, blob_key, blob_size, created_at"

func scanAudio(row interface{ Scan(...any) error }) (Audio, error) {
	var (
		audio      Audio
		id         int64
		durationMS int64
		filename   sql.NullString
		created    int64
	)
	err := row.Scan(&id, &audio.Bitrate, &durationMS, &audio.NumChannels, &audio.SampleFreq,
		&audio.MimeType, &filename, &audio.BlobKey, &audio.Size, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Audio{}, shared.NotFoundf("audio")
	}
	if err != nil {
		return Audio{}, shared.Internalf("failed to scan audio: %v", err)
	}
	audio.ID = AudioIDFromDB(id)
	audio.Duration = time.Duration(durationMS) * time.Millisecond
	audio.Filename = filename.String
	audio.CreatedAt = time.Unix(created, 0)
	return audio, nil
}

// GetAudio returns the audio with the given id.
func (c *Catalog) GetAudio(ctx context.Context, id AudioID) (Audio, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+audioColumns+" FROM audio WHERE id = ?", id.DB())
	return scanAudio(row)
}

// ListAudiosByTrack returns every audio linked to the track, preferred
// first.
func (c *Catalog) ListAudiosByTrack(ctx context.Context, track TrackID) ([]Audio, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+audioColumnsPrefixed("a")+` FROM audio a
		 JOIN track_audio ta ON ta.audio = a.id
		 WHERE ta.track = ? ORDER BY ta.preferred DESC, a.id ASC`, track.DB())
	if err != nil {
		return nil, shared.Internalf("failed to list audios: %v", err)
	}
	defer rows.Close()

	var audios []Audio
	for rows.Next() {
		audio, err := scanAudio(rows)
		if err != nil {
			return nil, err
		}
		audios = append(audios, audio)
	}
	return audios, rows.Err()
}

func audioColumnsPrefixed(alias string) string {
	return alias + ".id, " + alias + ".bitrate, " + alias + ".duration_ms, " + alias + ".num_channels, " +
		alias + ".sample_freq, " + alias + ".mime_type, " + alias + ".filename, " +
		alias + ".blob_key, " + alias + ".blob_size, " + alias + ".created_at"
}

// CreateAudio drains the content into the blob store and inserts the audio
// row. The blob is removed again if the insert fails.
func (c *Catalog) CreateAudio(ctx context.Context, create AudioCreate) (Audio, error) {
	if create.MimeType == "" {
		return Audio{}, shared.Invalidf("audio mime type is empty")
	}
	if create.Content == nil {
		return Audio{}, shared.Invalidf("audio content is required")
	}

	key := blob.RandomKey("audio")
	size, err := c.blobs.Write(ctx, key, create.Content)
	if err != nil {
		return Audio{}, shared.Internalf("failed to store audio blob: %v", err)
	}

	var audio Audio
	err = c.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		audio, err = insertAudioTx(ctx, tx, create, key, size)
		return err
	})
	if err != nil {
		c.blobs.Delete(ctx, key)
		return Audio{}, err
	}
	return audio, nil
}

// insertAudioTx inserts the audio row for an already written blob.
func insertAudioTx(ctx context.Context, tx *sql.Tx, create AudioCreate, key string, size int64) (Audio, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO audio (bitrate, duration_ms, num_channels, sample_freq, mime_type, filename, blob_key, blob_size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		create.Bitrate, create.Duration.Milliseconds(), create.NumChannels, create.SampleFreq,
		create.MimeType, nullString(create.Filename), key, size)
	if err != nil {
		return Audio{}, shared.Internalf("failed to insert audio: %v", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return Audio{}, shared.Internalf("failed to read audio id: %v", err)
	}
	row := tx.QueryRowContext(ctx, "SELECT "+audioColumns+" FROM audio WHERE id = ?", rowID)
	return scanAudio(row)
}

// LinkAudio attaches an audio to a track. Linking is idempotent; the first
// audio linked to a track becomes its preferred audio.
func (c *Catalog) LinkAudio(ctx context.Context, track TrackID, audio AudioID) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTrackTx(ctx, tx, track); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, "SELECT "+audioColumns+" FROM audio WHERE id = ?", audio.DB())
		if _, err := scanAudio(row); err != nil {
			return err
		}
		return linkAudioTx(ctx, tx, track, audio, false)
	})
}

func linkAudioTx(ctx context.Context, tx *sql.Tx, track TrackID, audio AudioID, preferred bool) error {
	if !preferred {
		var links int64
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM track_audio WHERE track = ?", track.DB()).Scan(&links)
		if err != nil {
			return shared.Internalf("failed to count audio links: %v", err)
		}
		preferred = links == 0
	}
	if preferred {
		if _, err := tx.ExecContext(ctx,
			"UPDATE track_audio SET preferred = 0 WHERE track = ?", track.DB()); err != nil {
			return shared.Internalf("failed to clear preferred audio: %v", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO track_audio (track, audio, preferred) VALUES (?, ?, ?)
		 ON CONFLICT (track, audio) DO UPDATE SET preferred = excluded.preferred`,
		track.DB(), audio.DB(), preferred); err != nil {
		return shared.Internalf("failed to link audio: %v", err)
	}
	return nil
}

// UnlinkAudio detaches an audio from a track. The audio row and its blob
// survive until garbage collection.
func (c *Catalog) UnlinkAudio(ctx context.Context, track TrackID, audio AudioID) error {
	_, err := c.db.ExecContext(ctx,
		"DELETE FROM track_audio WHERE track = ? AND audio = ?", track.DB(), audio.DB())
	if err != nil {
		return shared.Internalf("failed to unlink audio: %v", err)
	}
	return nil
}

// SetPreferredAudio makes audio the track's preferred audio, linking it
// first when necessary.
func (c *Catalog) SetPreferredAudio(ctx context.Context, track TrackID, audio AudioID) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTrackTx(ctx, tx, track); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, "SELECT "+audioColumns+" FROM audio WHERE id = ?", audio.DB())
		if _, err := scanAudio(row); err != nil {
			return err
		}
		return linkAudioTx(ctx, tx, track, audio, true)
	})
}

// DownloadAudio returns a ranged reader over the audio blob.
func (c *Catalog) DownloadAudio(ctx context.Context, id AudioID, rng ByteRange) (io.ReadCloser, Audio, error) {
	audio, err := c.GetAudio(ctx, id)
	if err != nil {
		return nil, Audio{}, err
	}
	r, err := c.blobs.Read(ctx, audio.BlobKey, blob.Range{Offset: rng.Offset, Length: rng.Length})
	if err != nil {
		return nil, Audio{}, err
	}
	return r, audio, nil
}

// DeleteAudio removes the audio row, its track links and its blob.
func (c *Catalog) DeleteAudio(ctx context.Context, id AudioID) error {
	audio, err := c.GetAudio(ctx, id)
	if err != nil {
		return err
	}
	err = c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM audio WHERE id = ?", id.DB()); err != nil {
			return shared.Internalf("failed to delete audio: %v", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := c.blobs.Delete(ctx, audio.BlobKey); err != nil {
		c.logger.Warn("failed to delete audio blob", "key", audio.BlobKey, "err", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
