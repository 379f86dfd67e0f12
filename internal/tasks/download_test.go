package tasks

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diogo464/sonar-sub000/internal/blob"
	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/search"
	"github.com/diogo464/sonar-sub000/internal/services"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// fakeService serves a small in-memory catalog under ids of the form
// `fake:<kind>:<n>`.
type fakeService struct {
	mu        sync.Mutex
	artists   map[services.ExternalMediaID]services.ExternalArtist
	albums    map[services.ExternalMediaID]services.ExternalAlbum
	tracks    map[services.ExternalMediaID]services.ExternalTrack
	playlists map[services.ExternalMediaID]services.ExternalPlaylist
	audio     map[services.ExternalMediaID]string
	downloads int
}

func newFakeService() *fakeService {
	s := &fakeService{
		artists:   make(map[services.ExternalMediaID]services.ExternalArtist),
		albums:    make(map[services.ExternalMediaID]services.ExternalAlbum),
		tracks:    make(map[services.ExternalMediaID]services.ExternalTrack),
		playlists: make(map[services.ExternalMediaID]services.ExternalPlaylist),
		audio:     make(map[services.ExternalMediaID]string),
	}
	s.artists["fake:artist:1"] = services.ExternalArtist{
		Name:   "Metallica",
		Albums: []services.ExternalMediaID{"fake:album:1"},
	}
	s.albums["fake:album:1"] = services.ExternalAlbum{
		Name:   "Ride the Lightning",
		Artist: "fake:artist:1",
		Tracks: []services.ExternalMediaID{"fake:track:1", "fake:track:2"},
	}
	s.tracks["fake:track:1"] = services.ExternalTrack{
		Name:     "Fight Fire with Fire",
		Artist:   "fake:artist:1",
		Album:    "fake:album:1",
		Duration: 285 * time.Second,
	}
	s.tracks["fake:track:2"] = services.ExternalTrack{
		Name:     "Fade to Black",
		Artist:   "fake:artist:1",
		Album:    "fake:album:1",
		Duration: 417 * time.Second,
	}
	s.playlists["fake:playlist:1"] = services.ExternalPlaylist{
		Name:   "thrash",
		Tracks: []services.ExternalMediaID{"fake:track:2", "fake:track:1"},
	}
	s.audio["fake:track:1"] = "audio-bytes-one"
	s.audio["fake:track:2"] = "audio-bytes-two"
	return s
}

func (s *fakeService) Name() string { return "fake" }

func (s *fakeService) Enrich(context.Context, *services.ExternalMediaRequest) (bool, error) {
	return false, nil
}

func (s *fakeService) Extract(ctx context.Context, req *services.ExternalMediaRequest) (catalog.MediaType, services.ExternalMediaID, error) {
	for _, id := range req.ExternalIDs {
		rest, ok := strings.CutPrefix(string(id), "fake:")
		if !ok {
			continue
		}
		kind, _, _ := strings.Cut(rest, ":")
		mediaType, err := catalog.ParseMediaType(kind)
		if err != nil {
			continue
		}
		return mediaType, id, nil
	}
	return "", "", shared.NotFoundf("no fake id")
}

func (s *fakeService) FetchArtist(ctx context.Context, id services.ExternalMediaID) (services.ExternalArtist, error) {
	if artist, ok := s.artists[id]; ok {
		return artist, nil
	}
	return services.ExternalArtist{}, shared.NotFoundf("artist %q", id)
}

func (s *fakeService) FetchAlbum(ctx context.Context, id services.ExternalMediaID) (services.ExternalAlbum, error) {
	if album, ok := s.albums[id]; ok {
		return album, nil
	}
	return services.ExternalAlbum{}, shared.NotFoundf("album %q", id)
}

func (s *fakeService) FetchTrack(ctx context.Context, id services.ExternalMediaID) (services.ExternalTrack, error) {
	if track, ok := s.tracks[id]; ok {
		return track, nil
	}
	return services.ExternalTrack{}, shared.NotFoundf("track %q", id)
}

func (s *fakeService) FetchPlaylist(ctx context.Context, id services.ExternalMediaID) (services.ExternalPlaylist, error) {
	if playlist, ok := s.playlists[id]; ok {
		return playlist, nil
	}
	return services.ExternalPlaylist{}, shared.NotFoundf("playlist %q", id)
}

func (s *fakeService) DownloadTrack(ctx context.Context, id services.ExternalMediaID) (io.ReadCloser, error) {
	content, ok := s.audio[id]
	if !ok {
		return nil, shared.NotFoundf("audio %q", id)
	}
	s.mu.Lock()
	s.downloads++
	s.mu.Unlock()
	return io.NopCloser(strings.NewReader(content)), nil
}

func (s *fakeService) downloadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads
}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.MigrateUp(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return catalog.New(db, blob.NewMemoryStorage(), search.NewBuiltinEngine(), shared.NewLogger(io.Discard))
}

func newTestDownloader(t *testing.T) (*Downloader, *catalog.Catalog, *fakeService) {
	t.Helper()

	c := newTestCatalog(t)
	service := newFakeService()
	registry := services.NewRegistry(shared.NewLogger(io.Discard))
	registry.Register(service, 1, 0)

	downloader := NewDownloader(c, registry, shared.NewLogger(io.Discard))
	t.Cleanup(downloader.Close)
	return downloader, c, service
}

func createTestUser(t *testing.T, c *catalog.Catalog) catalog.User {
	t.Helper()
	user, err := c.CreateUser(context.Background(), catalog.UserCreate{
		Username: "listener",
		Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func waitForDownload(t *testing.T, downloader *Downloader, user catalog.UserID, id services.ExternalMediaID) Download {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, download := range downloader.List(user) {
			if download.ExternalID == id && download.Status != DownloadStatusDownloading {
				return download
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("download %q did not finish", id)
	return Download{}
}

func TestDownloader(t *testing.T) {
	ctx := context.Background()

	t.Run("ArtistRecursion", func(t *testing.T) {
		downloader, c, _ := newTestDownloader(t)
		user := createTestUser(t, c)

		downloader.Request(user.ID, "fake:artist:1")
		download := waitForDownload(t, downloader, user.ID, "fake:artist:1")
		if download.Status != DownloadStatusComplete {
			t.Fatalf("expected complete, got %s (%s)", download.Status, download.Description)
		}
		if download.Description != "Metallica" {
			t.Errorf("expected artist name as description, got %q", download.Description)
		}

		artist, err := c.GetArtistByName(ctx, "Metallica")
		if err != nil {
			t.Fatalf("artist was not materialized: %v", err)
		}
		albums, err := c.ListAlbumsByArtist(ctx, artist.ID, catalog.ListParams{})
		if err != nil || len(albums) != 1 {
			t.Fatalf("expected one album, got %d (%v)", len(albums), err)
		}
		tracks, err := c.ListTracksByAlbum(ctx, albums[0].ID, catalog.ListParams{})
		if err != nil || len(tracks) != 2 {
			t.Fatalf("expected two tracks, got %d (%v)", len(tracks), err)
		}
		for _, track := range tracks {
			if track.Audio.IsZero() {
				t.Errorf("track %q has no preferred audio", track.Name)
			}
		}
	})

	t.Run("TrackAudioRoundTrip", func(t *testing.T) {
		downloader, c, service := newTestDownloader(t)
		user := createTestUser(t, c)

		downloader.Request(user.ID, "fake:track:1")
		download := waitForDownload(t, downloader, user.ID, "fake:track:1")
		if download.Status != DownloadStatusComplete {
			t.Fatalf("expected complete, got %s (%s)", download.Status, download.Description)
		}

		artist, err := c.GetArtistByName(ctx, "Metallica")
		if err != nil {
			t.Fatalf("artist was not materialized: %v", err)
		}
		albums, err := c.ListAlbumsByArtist(ctx, artist.ID, catalog.ListParams{})
		if err != nil || len(albums) != 1 {
			t.Fatalf("expected one album, got %d (%v)", len(albums), err)
		}
		tracks, err := c.ListTracksByAlbum(ctx, albums[0].ID, catalog.ListParams{})
		if err != nil || len(tracks) != 1 {
			t.Fatalf("expected one track, got %d (%v)", len(tracks), err)
		}

		content, _, err := c.DownloadTrack(ctx, tracks[0].ID, catalog.ByteRange{})
		if err != nil {
			t.Fatalf("failed to download track: %v", err)
		}
		defer content.Close()
		data, err := io.ReadAll(content)
		if err != nil {
			t.Fatalf("failed to read audio: %v", err)
		}
		if string(data) != "audio-bytes-one" {
			t.Errorf("unexpected audio content %q", data)
		}

		// a second request finds the linked audio and skips the download
		downloader.Request(user.ID, "fake:track:1")
		waitForDownload(t, downloader, user.ID, "fake:track:1")
		if service.downloadCount() != 1 {
			t.Errorf("expected one download, got %d", service.downloadCount())
		}
	})

	t.Run("PlaylistKeepsFetchedOrder", func(t *testing.T) {
		downloader, c, _ := newTestDownloader(t)
		user := createTestUser(t, c)

		downloader.Request(user.ID, "fake:playlist:1")
		download := waitForDownload(t, downloader, user.ID, "fake:playlist:1")
		if download.Status != DownloadStatusComplete {
			t.Fatalf("expected complete, got %s (%s)", download.Status, download.Description)
		}

		playlist, err := c.GetPlaylistByName(ctx, user.ID, "thrash")
		if err != nil {
			t.Fatalf("playlist was not materialized: %v", err)
		}
		tracks, err := c.ListPlaylistTracks(ctx, playlist.ID, catalog.ListParams{})
		if err != nil || len(tracks) != 2 {
			t.Fatalf("expected two playlist tracks, got %d (%v)", len(tracks), err)
		}
		if tracks[0].Name != "Fade to Black" || tracks[1].Name != "Fight Fire with Fire" {
			t.Errorf("playlist order does not match the fetched order: %q, %q", tracks[0].Name, tracks[1].Name)
		}
	})

	t.Run("UnknownIDFails", func(t *testing.T) {
		downloader, c, _ := newTestDownloader(t)
		user := createTestUser(t, c)

		downloader.Request(user.ID, "other:artist:1")
		download := waitForDownload(t, downloader, user.ID, "other:artist:1")
		if download.Status != DownloadStatusFailed {
			t.Fatalf("expected failed, got %s", download.Status)
		}
		if download.Description == "" {
			t.Error("expected the failure message as description")
		}
	})

	t.Run("DeleteRemovesEntry", func(t *testing.T) {
		downloader, c, _ := newTestDownloader(t)
		user := createTestUser(t, c)

		downloader.Request(user.ID, "fake:track:2")
		waitForDownload(t, downloader, user.ID, "fake:track:2")
		downloader.Delete(user.ID, "fake:track:2")
		if len(downloader.List(user.ID)) != 0 {
			t.Error("expected no entries after delete")
		}
	})
}
