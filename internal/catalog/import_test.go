package catalog

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

func TestImportTrack(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesHierarchy", func(t *testing.T) {
		c := newTestCatalog(t)

		track, err := c.ImportTrack(ctx, ImportCreate{
			ArtistName: "Metallica",
			AlbumName:  "Ride the Lightning",
			TrackName:  "Fade to Black",
			Cover:      []byte("fake-png-bytes"),
			CoverMime:  "image/png",
			Audio: AudioCreate{
				MimeType: "audio/mpeg",
				Filename: "fade-to-black.mp3",
				Content:  strings.NewReader("0123456789"),
			},
		})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if track.Name != "Fade to Black" {
			t.Errorf("expected track name Fade to Black, got %s", track.Name)
		}
		if track.Audio.IsZero() {
			t.Error("expected imported track to have a preferred audio")
		}
		if track.CoverArt.IsZero() {
			t.Error("expected imported track to carry the cover")
		}

		album, err := c.GetAlbum(ctx, track.Album)
		if err != nil {
			t.Fatalf("failed to get album: %v", err)
		}
		if album.Name != "Ride the Lightning" {
			t.Errorf("expected album Ride the Lightning, got %s", album.Name)
		}
		artist, err := c.GetArtist(ctx, album.Artist)
		if err != nil {
			t.Fatalf("failed to get artist: %v", err)
		}
		if artist.Name != "Metallica" {
			t.Errorf("expected artist Metallica, got %s", artist.Name)
		}

		reader, _, err := c.DownloadAudio(ctx, track.Audio, ByteRange{})
		if err != nil {
			t.Fatalf("failed to download audio: %v", err)
		}
		defer reader.Close()
		data, err := io.ReadAll(reader)
		if err != nil || string(data) != "0123456789" {
			t.Errorf("unexpected audio content %q (%v)", data, err)
		}
	})

	t.Run("ReusesExistingRows", func(t *testing.T) {
		c := newTestCatalog(t)
		artist := createTestArtist(t, c, "Metallica")
		album := createTestAlbum(t, c, artist.ID, "Ride the Lightning")

		track, err := c.ImportTrack(ctx, ImportCreate{
			ArtistName: "Metallica",
			AlbumName:  "Ride the Lightning",
			TrackName:  "Fade to Black",
			Audio: AudioCreate{
				MimeType: "audio/mpeg",
				Content:  strings.NewReader("audio"),
			},
		})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if track.Album != album.ID {
			t.Errorf("expected track under existing album %s, got %s", album.ID, track.Album)
		}
		artists, err := c.ListArtists(ctx, ListParams{})
		if err != nil {
			t.Fatalf("failed to list artists: %v", err)
		}
		if len(artists) != 1 {
			t.Errorf("expected the existing artist to be reused, got %d artists", len(artists))
		}
	})

	t.Run("MissingArtistRejected", func(t *testing.T) {
		c := newTestCatalog(t)

		_, err := c.ImportTrack(ctx, ImportCreate{
			AlbumName: "Ride the Lightning",
			TrackName: "Fade to Black",
			Audio:     AudioCreate{MimeType: "audio/mpeg", Content: strings.NewReader("audio")},
		})
		if shared.KindOf(err) != shared.KindInvalid {
			t.Errorf("expected invalid error, got %v", err)
		}
	})

	t.Run("FailureLeavesNoRows", func(t *testing.T) {
		c := newTestCatalog(t)

		// the album override points nowhere, failing the import after the
		// artist would have been created
		_, err := c.ImportTrack(ctx, ImportCreate{
			ArtistName: "Metallica",
			Album:      AlbumIDFromDB(999),
			TrackName:  "Fade to Black",
			Audio:      AudioCreate{MimeType: "audio/mpeg", Content: strings.NewReader("audio")},
		})
		if shared.KindOf(err) != shared.KindNotFound {
			t.Fatalf("expected not found error, got %v", err)
		}

		artists, err := c.ListArtists(ctx, ListParams{})
		if err != nil {
			t.Fatalf("failed to list artists: %v", err)
		}
		if len(artists) != 0 {
			t.Errorf("expected no artists after a failed import, got %d", len(artists))
		}
		tracks, err := c.ListTracks(ctx, ListParams{})
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}
		if len(tracks) != 0 {
			t.Errorf("expected no tracks after a failed import, got %d", len(tracks))
		}
	})
}
