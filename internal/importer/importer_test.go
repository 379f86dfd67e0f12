package importer

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/diogo464/sonar-sub000/internal/blob"
	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/search"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// fakeExtractor returns fixed metadata, or an error when broken.
type fakeExtractor struct {
	name     string
	metadata Metadata
	broken   bool
}

func (f fakeExtractor) Name() string { return f.name }

func (f fakeExtractor) Extract(string) (Metadata, error) {
	if f.broken {
		return Metadata{}, io.ErrUnexpectedEOF
	}
	return f.metadata, nil
}

// meetingExtractor answers only after meeting a peer on the barrier, so a
// pair of them succeeds only when both run at the same time.
type meetingExtractor struct {
	fakeExtractor
	barrier chan struct{}
}

func (f meetingExtractor) Extract(path string) (Metadata, error) {
	select {
	case f.barrier <- struct{}{}:
	case <-f.barrier:
	case <-time.After(5 * time.Second):
		return Metadata{}, io.ErrUnexpectedEOF
	}
	return f.fakeExtractor.Extract(path)
}

// failingStorage rejects every write; reads and deletes pass through.
type failingStorage struct {
	blob.Storage
}

func (failingStorage) Write(context.Context, string, io.Reader) (int64, error) {
	return 0, shared.Internalf("storage is full")
}

func newTestImporter(t *testing.T, config Config, extractors ...Extractor) (*Importer, *catalog.Catalog) {
	t.Helper()
	return newTestImporterStorage(t, config, blob.NewMemoryStorage(), extractors...)
}

func newTestImporterStorage(t *testing.T, config Config, storage blob.Storage, extractors ...Extractor) (*Importer, *catalog.Catalog) {
	t.Helper()

	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.MigrateUp(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	logger := shared.NewLogger(io.Discard)
	c := catalog.New(db, storage, search.NewBuiltinEngine(), logger)
	return New(c, config, logger, extractors...), c
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("ExtractedMetadata", func(t *testing.T) {
		imp, c := newTestImporter(t, Config{}, fakeExtractor{
			name: "fake",
			metadata: Metadata{
				Artist: "Metallica",
				Album:  "Ride the Lightning",
				Title:  "Fade to Black",
			},
		})

		track, err := imp.Import(ctx, Request{Filename: "upload.mp3", Content: bytes.NewReader([]byte("audio"))})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if track.Name != "Fade to Black" {
			t.Errorf("expected track name Fade to Black, got %s", track.Name)
		}
		if track.Audio.IsZero() {
			t.Error("expected imported track to have a preferred audio")
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
	})

	t.Run("PathFallback", func(t *testing.T) {
		imp, c := newTestImporter(t, Config{})

		track, err := imp.Import(ctx, Request{
			Filename: "Queen/A Night at the Opera/Bohemian Rhapsody.mp3",
			Content:  bytes.NewReader([]byte("audio")),
		})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if track.Name != "Bohemian Rhapsody" {
			t.Errorf("expected title from path, got %s", track.Name)
		}
		album, err := c.GetAlbum(ctx, track.Album)
		if err != nil {
			t.Fatalf("failed to get album: %v", err)
		}
		if album.Name != "A Night at the Opera" {
			t.Errorf("expected album from path, got %s", album.Name)
		}
		artist, err := c.GetArtist(ctx, album.Artist)
		if err != nil {
			t.Fatalf("failed to get artist: %v", err)
		}
		if artist.Name != "Queen" {
			t.Errorf("expected artist from path, got %s", artist.Name)
		}
	})

	t.Run("UnderivableArtistRejected", func(t *testing.T) {
		imp, c := newTestImporter(t, Config{})

		_, err := imp.Import(ctx, Request{Filename: "song.mp3", Content: bytes.NewReader([]byte("audio"))})
		if shared.KindOf(err) != shared.KindInvalid {
			t.Fatalf("expected invalid error, got %v", err)
		}

		artists, err := c.ListArtists(ctx, catalog.ListParams{})
		if err != nil {
			t.Fatalf("failed to list artists: %v", err)
		}
		if len(artists) != 0 {
			t.Errorf("expected no artists, got %d", len(artists))
		}
	})

	t.Run("UnderivableAlbumRejected", func(t *testing.T) {
		imp, _ := newTestImporter(t, Config{})

		_, err := imp.Import(ctx, Request{Filename: "Queen/song.mp3", Content: bytes.NewReader([]byte("audio"))})
		if shared.KindOf(err) != shared.KindInvalid {
			t.Errorf("expected invalid error, got %v", err)
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		imp, c := newTestImporter(t, Config{})

		artist, err := c.CreateArtist(ctx, catalog.ArtistCreate{Name: "Queen"})
		if err != nil {
			t.Fatalf("failed to create artist: %v", err)
		}
		album, err := c.CreateAlbum(ctx, catalog.AlbumCreate{Name: "A Night at the Opera", Artist: artist.ID})
		if err != nil {
			t.Fatalf("failed to create album: %v", err)
		}

		track, err := imp.Import(ctx, Request{
			Filename: "song.mp3",
			Artist:   artist.ID,
			Album:    album.ID,
			Content:  bytes.NewReader([]byte("audio")),
		})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if track.Name != "song" {
			t.Errorf("expected title from filename, got %s", track.Name)
		}
		if track.Album != album.ID {
			t.Errorf("expected track under album %s, got %s", album.ID, track.Album)
		}

		artists, err := c.ListArtists(ctx, catalog.ListParams{})
		if err != nil {
			t.Fatalf("failed to list artists: %v", err)
		}
		if len(artists) != 1 {
			t.Errorf("expected the existing artist to be reused, got %d artists", len(artists))
		}
	})

	t.Run("UnknownOverrideRejected", func(t *testing.T) {
		imp, c := newTestImporter(t, Config{})

		artist, err := c.CreateArtist(ctx, catalog.ArtistCreate{Name: "Queen"})
		if err != nil {
			t.Fatalf("failed to create artist: %v", err)
		}
		if err := c.DeleteArtist(ctx, artist.ID); err != nil {
			t.Fatalf("failed to delete artist: %v", err)
		}

		_, err = imp.Import(ctx, Request{
			Filename: "x/y/song.mp3",
			Artist:   artist.ID,
			Content:  bytes.NewReader([]byte("audio")),
		})
		if shared.KindOf(err) != shared.KindNotFound {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("EmptyUploadRejected", func(t *testing.T) {
		imp, _ := newTestImporter(t, Config{})

		_, err := imp.Import(ctx, Request{Filename: "a/b/song.mp3", Content: bytes.NewReader(nil)})
		if shared.KindOf(err) != shared.KindInvalid {
			t.Errorf("expected invalid error, got %v", err)
		}
	})

	t.Run("FirstExtractorWins", func(t *testing.T) {
		imp, _ := newTestImporter(t, Config{},
			fakeExtractor{name: "first", metadata: Metadata{Title: "First Title"}},
			fakeExtractor{name: "second", metadata: Metadata{Title: "Second Title", Album: "Second Album"}},
		)

		track, err := imp.Import(ctx, Request{Filename: "a/b/c.mp3", Content: bytes.NewReader([]byte("audio"))})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if track.Name != "First Title" {
			t.Errorf("expected first extractor to win, got %s", track.Name)
		}
	})

	t.Run("ExtractorsRunConcurrently", func(t *testing.T) {
		barrier := make(chan struct{})
		imp, _ := newTestImporter(t, Config{},
			meetingExtractor{fakeExtractor{name: "first", metadata: Metadata{Title: "Parallel"}}, barrier},
			meetingExtractor{fakeExtractor{name: "second"}, barrier},
		)

		track, err := imp.Import(ctx, Request{Filename: "a/b/c.mp3", Content: bytes.NewReader([]byte("audio"))})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if track.Name != "Parallel" {
			t.Errorf("expected both extractors to answer, got %s", track.Name)
		}
	})

	t.Run("BrokenExtractorSkipped", func(t *testing.T) {
		imp, _ := newTestImporter(t, Config{},
			fakeExtractor{name: "broken", broken: true},
			fakeExtractor{name: "working", metadata: Metadata{Title: "Recovered"}},
		)

		track, err := imp.Import(ctx, Request{Filename: "a/b/x.mp3", Content: bytes.NewReader([]byte("audio"))})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if track.Name != "Recovered" {
			t.Errorf("expected working extractor result, got %s", track.Name)
		}
	})

	t.Run("MaxSizeRejected", func(t *testing.T) {
		imp, _ := newTestImporter(t, Config{MaxSize: 4})

		_, err := imp.Import(ctx, Request{Filename: "a/b/big.mp3", Content: bytes.NewReader([]byte("way too large"))})
		if shared.KindOf(err) != shared.KindInvalid {
			t.Errorf("expected invalid error, got %v", err)
		}
	})

	t.Run("FailedImportLeavesNoRows", func(t *testing.T) {
		imp, c := newTestImporterStorage(t, Config{}, failingStorage{blob.NewMemoryStorage()})

		_, err := imp.Import(ctx, Request{Filename: "a/b/song.mp3", Content: bytes.NewReader([]byte("audio"))})
		if err == nil {
			t.Fatal("expected import to fail")
		}

		artists, err := c.ListArtists(ctx, catalog.ListParams{})
		if err != nil {
			t.Fatalf("failed to list artists: %v", err)
		}
		if len(artists) != 0 {
			t.Errorf("expected no artists after a failed import, got %d", len(artists))
		}
		albums, err := c.ListAlbums(ctx, catalog.ListParams{})
		if err != nil {
			t.Fatalf("failed to list albums: %v", err)
		}
		if len(albums) != 0 {
			t.Errorf("expected no albums after a failed import, got %d", len(albums))
		}
		tracks, err := c.ListTracks(ctx, catalog.ListParams{})
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}
		if len(tracks) != 0 {
			t.Errorf("expected no tracks after a failed import, got %d", len(tracks))
		}
	})

	t.Run("MimeTypeFromContainer", func(t *testing.T) {
		imp, c := newTestImporter(t, Config{})

		// a flac stream marker wins over a lying extension
		content := append([]byte("fLaC"), make([]byte, 16)...)
		track, err := imp.Import(ctx, Request{Filename: "a/b/song.mp3", Content: bytes.NewReader(content)})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		audio, err := c.GetAudio(ctx, track.Audio)
		if err != nil {
			t.Fatalf("failed to get audio: %v", err)
		}
		if audio.MimeType != "audio/flac" {
			t.Errorf("expected audio/flac from the container, got %s", audio.MimeType)
		}
	})

	t.Run("MimeTypeFromExtension", func(t *testing.T) {
		imp, c := newTestImporter(t, Config{})

		// unidentifiable content falls back to the filename extension
		track, err := imp.Import(ctx, Request{Filename: "a/b/song.ogg", Content: bytes.NewReader([]byte("not audio at all"))})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		audio, err := c.GetAudio(ctx, track.Audio)
		if err != nil {
			t.Fatalf("failed to get audio: %v", err)
		}
		if audio.MimeType != "audio/ogg" {
			t.Errorf("expected audio/ogg from the extension, got %s", audio.MimeType)
		}
	})

	t.Run("ReimportLinksSecondAudio", func(t *testing.T) {
		imp, c := newTestImporter(t, Config{})

		first, err := imp.Import(ctx, Request{Filename: "a/b/song.mp3", Content: bytes.NewReader([]byte("one"))})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		second, err := imp.Import(ctx, Request{Filename: "a/b/song.mp3", Content: bytes.NewReader([]byte("two"))})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if first.ID != second.ID {
			t.Errorf("expected reimport to reuse the track, got %s and %s", first.ID, second.ID)
		}

		audios, err := c.ListAudiosByTrack(ctx, first.ID)
		if err != nil {
			t.Fatalf("failed to list audios: %v", err)
		}
		if len(audios) != 2 {
			t.Errorf("expected 2 audios, got %d", len(audios))
		}
		// the first imported audio stays preferred
		if second.Audio != first.Audio {
			t.Errorf("expected preferred audio to stay %s, got %s", first.Audio, second.Audio)
		}
	})
}
