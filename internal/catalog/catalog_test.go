package catalog

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/diogo464/sonar-sub000/internal/blob"
	"github.com/diogo464/sonar-sub000/internal/search"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// newTestCatalog creates a catalog over a fresh migrated database.
func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()

	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.MigrateUp(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return New(db, blob.NewMemoryStorage(), search.NewBuiltinEngine(), shared.NewLogger(io.Discard))
}

func createTestArtist(t *testing.T, c *Catalog, name string) Artist {
	t.Helper()
	artist, err := c.CreateArtist(context.Background(), ArtistCreate{Name: name})
	if err != nil {
		t.Fatalf("failed to create artist: %v", err)
	}
	return artist
}

func createTestAlbum(t *testing.T, c *Catalog, artist ArtistID, name string) Album {
	t.Helper()
	album, err := c.CreateAlbum(context.Background(), AlbumCreate{Name: name, Artist: artist})
	if err != nil {
		t.Fatalf("failed to create album: %v", err)
	}
	return album
}

func createTestTrack(t *testing.T, c *Catalog, album AlbumID, name string) Track {
	t.Helper()
	track, err := c.CreateTrack(context.Background(), TrackCreate{Name: name, Album: album})
	if err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	return track
}

func createTestUser(t *testing.T, c *Catalog, username string) User {
	t.Helper()
	user, err := c.CreateUser(context.Background(), UserCreate{
		Username: Username(username),
		Password: "password",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func TestArtist(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		c := newTestCatalog(t)
		created := createTestArtist(t, c, "Metallica")

		artist, err := c.GetArtist(ctx, created.ID)
		if err != nil {
			t.Fatalf("failed to get artist: %v", err)
		}
		if artist.Name != "Metallica" {
			t.Errorf("expected name Metallica, got %s", artist.Name)
		}
		if artist.ID.ID().Kind() != KindArtist {
			t.Errorf("expected artist kind, got %s", artist.ID.ID().Kind())
		}
	})

	t.Run("CreateEmptyName", func(t *testing.T) {
		c := newTestCatalog(t)
		if _, err := c.CreateArtist(ctx, ArtistCreate{Name: "  "}); shared.KindOf(err) != shared.KindInvalid {
			t.Errorf("expected invalid error, got %v", err)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		c := newTestCatalog(t)
		if _, err := c.GetArtist(ctx, ArtistIDFromDB(42)); shared.KindOf(err) != shared.KindNotFound {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("GetBulkPreservesOrderAndDuplicates", func(t *testing.T) {
		c := newTestCatalog(t)
		a := createTestArtist(t, c, "a")
		b := createTestArtist(t, c, "b")

		artists, err := c.GetArtistBulk(ctx, []ArtistID{b.ID, a.ID, b.ID})
		if err != nil {
			t.Fatalf("failed to get bulk: %v", err)
		}
		if len(artists) != 3 {
			t.Fatalf("expected 3 artists, got %d", len(artists))
		}
		if artists[0].ID != b.ID || artists[1].ID != a.ID || artists[2].ID != b.ID {
			t.Error("bulk get did not preserve order and duplicates")
		}
	})

	t.Run("GetBulkMissingFailsWholeCall", func(t *testing.T) {
		c := newTestCatalog(t)
		a := createTestArtist(t, c, "a")

		if _, err := c.GetArtistBulk(ctx, []ArtistID{a.ID, ArtistIDFromDB(99)}); shared.KindOf(err) != shared.KindNotFound {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("FindOrCreate", func(t *testing.T) {
		c := newTestCatalog(t)
		first, err := c.FindOrCreateArtistByName(ctx, ArtistCreate{Name: "Queen"})
		if err != nil {
			t.Fatalf("failed to find or create: %v", err)
		}
		second, err := c.FindOrCreateArtistByName(ctx, ArtistCreate{Name: "Queen"})
		if err != nil {
			t.Fatalf("failed to find or create: %v", err)
		}
		if first.ID != second.ID {
			t.Errorf("expected same artist, got %s and %s", first.ID, second.ID)
		}
	})

	t.Run("UpdateNameAndGenres", func(t *testing.T) {
		c := newTestCatalog(t)
		artist := createTestArtist(t, c, "old")

		updated, err := c.UpdateArtist(ctx, artist.ID, ArtistUpdate{
			Name:   Set("new"),
			Genres: []GenreUpdate{GenreSet("rock"), GenreSet("metal")},
		})
		if err != nil {
			t.Fatalf("failed to update artist: %v", err)
		}
		if updated.Name != "new" {
			t.Errorf("expected name new, got %s", updated.Name)
		}
		if !updated.Genres.Contains("rock") || !updated.Genres.Contains("metal") {
			t.Errorf("expected genres rock and metal, got %v", updated.Genres)
		}

		updated, err = c.UpdateArtist(ctx, artist.ID, ArtistUpdate{
			Genres: []GenreUpdate{GenreRemove("rock")},
		})
		if err != nil {
			t.Fatalf("failed to update artist: %v", err)
		}
		if updated.Genres.Contains("rock") {
			t.Error("expected rock genre to be removed")
		}
		if updated.Name != "new" {
			t.Errorf("unchanged update modified name to %s", updated.Name)
		}
	})

	t.Run("UpdateProperties", func(t *testing.T) {
		c := newTestCatalog(t)
		artist := createTestArtist(t, c, "props")

		updated, err := c.UpdateArtist(ctx, artist.ID, ArtistUpdate{
			Properties: []PropertyUpdate{
				PropertySet("external/spotify", "spotify:artist:123"),
				PropertySet("musicbrainz/id", "mbid"),
			},
		})
		if err != nil {
			t.Fatalf("failed to update artist: %v", err)
		}
		if updated.Properties["external/spotify"] != "spotify:artist:123" {
			t.Errorf("unexpected properties: %v", updated.Properties)
		}

		updated, err = c.UpdateArtist(ctx, artist.ID, ArtistUpdate{
			Properties: []PropertyUpdate{PropertyRemove("musicbrainz/id")},
		})
		if err != nil {
			t.Fatalf("failed to update artist: %v", err)
		}
		if _, ok := updated.Properties["musicbrainz/id"]; ok {
			t.Error("expected property to be removed")
		}
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		c := newTestCatalog(t)
		artist := createTestArtist(t, c, "gone")
		album := createTestAlbum(t, c, artist.ID, "album")
		track := createTestTrack(t, c, album.ID, "track")

		if err := c.DeleteArtist(ctx, artist.ID); err != nil {
			t.Fatalf("failed to delete artist: %v", err)
		}
		if _, err := c.GetAlbum(ctx, album.ID); shared.KindOf(err) != shared.KindNotFound {
			t.Errorf("expected album to be deleted, got %v", err)
		}
		if _, err := c.GetTrack(ctx, track.ID); shared.KindOf(err) != shared.KindNotFound {
			t.Errorf("expected track to be deleted, got %v", err)
		}
	})
}

func TestAlbum(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateRequiresArtist", func(t *testing.T) {
		c := newTestCatalog(t)
		if _, err := c.CreateAlbum(ctx, AlbumCreate{Name: "x"}); shared.KindOf(err) != shared.KindInvalid {
			t.Errorf("expected invalid error, got %v", err)
		}
		if _, err := c.CreateAlbum(ctx, AlbumCreate{Name: "x", Artist: ArtistIDFromDB(9)}); shared.KindOf(err) != shared.KindNotFound {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("UpdateCannotUnsetArtist", func(t *testing.T) {
		c := newTestCatalog(t)
		artist := createTestArtist(t, c, "a")
		album := createTestAlbum(t, c, artist.ID, "x")

		if _, err := c.UpdateAlbum(ctx, album.ID, AlbumUpdate{Artist: Unset[ArtistID]()}); shared.KindOf(err) != shared.KindInvalid {
			t.Errorf("expected invalid error, got %v", err)
		}
	})

	t.Run("Aggregates", func(t *testing.T) {
		c := newTestCatalog(t)
		artist := createTestArtist(t, c, "a")
		album := createTestAlbum(t, c, artist.ID, "x")
		createTestTrack(t, c, album.ID, "one")
		createTestTrack(t, c, album.ID, "two")

		album, err := c.GetAlbum(ctx, album.ID)
		if err != nil {
			t.Fatalf("failed to get album: %v", err)
		}
		if album.TrackCount != 2 {
			t.Errorf("expected track count 2, got %d", album.TrackCount)
		}

		artist, err = c.GetArtist(ctx, artist.ID)
		if err != nil {
			t.Fatalf("failed to get artist: %v", err)
		}
		if artist.AlbumCount != 1 {
			t.Errorf("expected album count 1, got %d", artist.AlbumCount)
		}
	})

	t.Run("ListByArtist", func(t *testing.T) {
		c := newTestCatalog(t)
		a := createTestArtist(t, c, "a")
		b := createTestArtist(t, c, "b")
		createTestAlbum(t, c, a.ID, "one")
		createTestAlbum(t, c, a.ID, "two")
		createTestAlbum(t, c, b.ID, "three")

		albums, err := c.ListAlbumsByArtist(ctx, a.ID, ListParams{})
		if err != nil {
			t.Fatalf("failed to list albums: %v", err)
		}
		if len(albums) != 2 {
			t.Errorf("expected 2 albums, got %d", len(albums))
		}
	})
}

func TestTrack(t *testing.T) {
	ctx := context.Background()

	t.Run("PreferredAudioAndDownload", func(t *testing.T) {
		c := newTestCatalog(t)
		artist := createTestArtist(t, c, "a")
		album := createTestAlbum(t, c, artist.ID, "x")
		track := createTestTrack(t, c, album.ID, "song")

		if _, _, err := c.DownloadTrack(ctx, track.ID, ByteRange{}); shared.KindOf(err) != shared.KindNotFound {
			t.Errorf("expected not found for track without audio, got %v", err)
		}

		content := []byte("audio-bytes")
		audio, err := c.CreateAudio(ctx, AudioCreate{
			MimeType: "audio/mpeg",
			Duration: 3 * time.Second,
			Content:  bytes.NewReader(content),
		})
		if err != nil {
			t.Fatalf("failed to create audio: %v", err)
		}
		if err := c.LinkAudio(ctx, track.ID, audio.ID); err != nil {
			t.Fatalf("failed to link audio: %v", err)
		}

		track, err = c.GetTrack(ctx, track.ID)
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}
		if track.Audio != audio.ID {
			t.Errorf("expected first linked audio to be preferred, got %s", track.Audio)
		}
		if track.Duration != 3*time.Second {
			t.Errorf("expected duration 3s, got %s", track.Duration)
		}

		r, got, err := c.DownloadTrack(ctx, track.ID, ByteRange{})
		if err != nil {
			t.Fatalf("failed to download track: %v", err)
		}
		defer r.Close()
		if got.ID != audio.ID {
			t.Errorf("expected audio %s, got %s", audio.ID, got.ID)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("failed to read audio: %v", err)
		}
		if !bytes.Equal(data, content) {
			t.Errorf("expected %q, got %q", content, data)
		}
	})

	t.Run("DownloadRange", func(t *testing.T) {
		c := newTestCatalog(t)
		artist := createTestArtist(t, c, "a")
		album := createTestAlbum(t, c, artist.ID, "x")
		track := createTestTrack(t, c, album.ID, "song")

		audio, err := c.CreateAudio(ctx, AudioCreate{
			MimeType: "audio/mpeg",
			Content:  bytes.NewReader([]byte("0123456789")),
		})
		if err != nil {
			t.Fatalf("failed to create audio: %v", err)
		}
		if err := c.SetPreferredAudio(ctx, track.ID, audio.ID); err != nil {
			t.Fatalf("failed to set preferred audio: %v", err)
		}

		r, _, err := c.DownloadTrack(ctx, track.ID, ByteRange{Offset: 2, Length: 4})
		if err != nil {
			t.Fatalf("failed to download range: %v", err)
		}
		defer r.Close()
		data, _ := io.ReadAll(r)
		if string(data) != "2345" {
			t.Errorf("expected 2345, got %q", data)
		}
	})

	t.Run("Lyrics", func(t *testing.T) {
		c := newTestCatalog(t)
		artist := createTestArtist(t, c, "a")
		album := createTestAlbum(t, c, artist.ID, "x")

		lyrics := Lyrics{
			Kind: LyricsKindSynced,
			Lines: []LyricsLine{
				{Offset: 0, Duration: time.Second, Text: "first line"},
				{Offset: time.Second, Duration: time.Second, Text: "second line"},
			},
		}
		track, err := c.CreateTrack(ctx, TrackCreate{Name: "song", Album: album.ID, Lyrics: &lyrics})
		if err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		got, err := c.GetTrackLyrics(ctx, track.ID)
		if err != nil {
			t.Fatalf("failed to get lyrics: %v", err)
		}
		if got.Kind != LyricsKindSynced || len(got.Lines) != 2 {
			t.Fatalf("unexpected lyrics: %+v", got)
		}
		if got.Lines[1].Text != "second line" {
			t.Errorf("expected second line, got %q", got.Lines[1].Text)
		}
	})

	t.Run("LyricsMissing", func(t *testing.T) {
		c := newTestCatalog(t)
		artist := createTestArtist(t, c, "a")
		album := createTestAlbum(t, c, artist.ID, "x")
		track := createTestTrack(t, c, album.ID, "song")

		if _, err := c.GetTrackLyrics(ctx, track.ID); shared.KindOf(err) != shared.KindNotFound {
			t.Errorf("expected not found error, got %v", err)
		}
	})
}

func TestPlaylist(t *testing.T) {
	ctx := context.Background()

	t.Run("TrackOrdering", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")
		artist := createTestArtist(t, c, "a")
		album := createTestAlbum(t, c, artist.ID, "x")
		one := createTestTrack(t, c, album.ID, "one")
		two := createTestTrack(t, c, album.ID, "two")

		playlist, err := c.CreatePlaylist(ctx, PlaylistCreate{
			Name:   "mix",
			Owner:  user.ID,
			Tracks: []TrackID{two.ID, one.ID, two.ID},
		})
		if err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		if playlist.TrackCount != 3 {
			t.Errorf("expected track count 3, got %d", playlist.TrackCount)
		}

		tracks, err := c.ListPlaylistTracks(ctx, playlist.ID, ListParams{})
		if err != nil {
			t.Fatalf("failed to list playlist tracks: %v", err)
		}
		if len(tracks) != 3 || tracks[0].ID != two.ID || tracks[1].ID != one.ID || tracks[2].ID != two.ID {
			t.Error("playlist did not preserve insertion order and duplicates")
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")
		artist := createTestArtist(t, c, "a")
		album := createTestAlbum(t, c, artist.ID, "x")
		track := createTestTrack(t, c, album.ID, "one")

		source, err := c.CreatePlaylist(ctx, PlaylistCreate{
			Name:   "mix",
			Owner:  user.ID,
			Tracks: []TrackID{track.ID},
		})
		if err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		copy, err := c.DuplicatePlaylist(ctx, source.ID, "mix copy")
		if err != nil {
			t.Fatalf("failed to duplicate playlist: %v", err)
		}
		if copy.ID == source.ID {
			t.Error("duplicate returned the source playlist")
		}
		if copy.Owner != user.ID || copy.TrackCount != 1 {
			t.Errorf("unexpected duplicate: %+v", copy)
		}
	})

	t.Run("RemoveAndClear", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")
		artist := createTestArtist(t, c, "a")
		album := createTestAlbum(t, c, artist.ID, "x")
		one := createTestTrack(t, c, album.ID, "one")
		two := createTestTrack(t, c, album.ID, "two")

		playlist, err := c.CreatePlaylist(ctx, PlaylistCreate{
			Name:   "mix",
			Owner:  user.ID,
			Tracks: []TrackID{one.ID, two.ID, one.ID},
		})
		if err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		if err := c.RemovePlaylistTracks(ctx, playlist.ID, []TrackID{one.ID}); err != nil {
			t.Fatalf("failed to remove playlist tracks: %v", err)
		}
		tracks, err := c.ListPlaylistTracks(ctx, playlist.ID, ListParams{})
		if err != nil {
			t.Fatalf("failed to list playlist tracks: %v", err)
		}
		if len(tracks) != 1 || tracks[0].ID != two.ID {
			t.Errorf("expected only track two, got %d tracks", len(tracks))
		}

		if err := c.ClearPlaylistTracks(ctx, playlist.ID); err != nil {
			t.Fatalf("failed to clear playlist: %v", err)
		}
		playlist, err = c.GetPlaylist(ctx, playlist.ID)
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}
		if playlist.TrackCount != 0 {
			t.Errorf("expected empty playlist, got %d tracks", playlist.TrackCount)
		}
	})
}

func TestUser(t *testing.T) {
	ctx := context.Background()

	t.Run("AuthenticateWrongPassword", func(t *testing.T) {
		c := newTestCatalog(t)
		createTestUser(t, c, "alice")

		if _, err := c.Authenticate(ctx, "alice", "wrong"); shared.KindOf(err) != shared.KindUnauthorized {
			t.Errorf("expected unauthorized error, got %v", err)
		}
		if _, err := c.Authenticate(ctx, "nobody", "password"); shared.KindOf(err) != shared.KindUnauthorized {
			t.Errorf("expected unauthorized error, got %v", err)
		}
	})

	t.Run("LoginLogout", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")

		token, id, err := c.Login(ctx, "alice", "password")
		if err != nil {
			t.Fatalf("failed to login: %v", err)
		}
		if id != user.ID {
			t.Errorf("expected user %s, got %s", user.ID, id)
		}

		resolved, err := c.ValidateToken(token)
		if err != nil {
			t.Fatalf("failed to validate token: %v", err)
		}
		if resolved != user.ID {
			t.Errorf("expected user %s, got %s", user.ID, resolved)
		}

		c.Logout(token)
		if _, err := c.ValidateToken(token); shared.KindOf(err) != shared.KindUnauthorized {
			t.Errorf("expected unauthorized error after logout, got %v", err)
		}
	})

	t.Run("InvalidUsername", func(t *testing.T) {
		c := newTestCatalog(t)
		for _, username := range []string{"ab", "UPPER", "with space", "waaaaaaaaaaaaaaaaaaaaytoolong"} {
			if _, err := c.CreateUser(ctx, UserCreate{Username: Username(username), Password: "password"}); shared.KindOf(err) != shared.KindInvalid {
				t.Errorf("expected invalid error for username %q, got %v", username, err)
			}
		}
	})

	t.Run("UpdatePassword", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")

		if _, err := c.UpdateUser(ctx, user.ID, UserUpdate{Password: Set("changed")}); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}
		if _, err := c.Authenticate(ctx, "alice", "changed"); err != nil {
			t.Errorf("expected new password to work: %v", err)
		}
		if _, err := c.Authenticate(ctx, "alice", "password"); shared.KindOf(err) != shared.KindUnauthorized {
			t.Errorf("expected old password to fail, got %v", err)
		}
	})
}

func TestScrobble(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateWakesDispatchers", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")
		artist := createTestArtist(t, c, "a")
		album := createTestAlbum(t, c, artist.ID, "x")
		track := createTestTrack(t, c, album.ID, "song")

		if _, err := c.CreateScrobble(ctx, ScrobbleCreate{User: user.ID, Track: track.ID}); err != nil {
			t.Fatalf("failed to create scrobble: %v", err)
		}
		select {
		case <-c.ScrobbleWake():
		default:
			t.Error("expected scrobble wake signal")
		}
	})

	t.Run("ListenCountFlowsToViews", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")
		artist := createTestArtist(t, c, "a")
		album := createTestAlbum(t, c, artist.ID, "x")
		track := createTestTrack(t, c, album.ID, "song")

		for range 3 {
			if _, err := c.CreateScrobble(ctx, ScrobbleCreate{User: user.ID, Track: track.ID}); err != nil {
				t.Fatalf("failed to create scrobble: %v", err)
			}
		}

		track, err := c.GetTrack(ctx, track.ID)
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}
		if track.ListenCount != 3 {
			t.Errorf("expected listen count 3, got %d", track.ListenCount)
		}
		artist, err = c.GetArtist(ctx, artist.ID)
		if err != nil {
			t.Fatalf("failed to get artist: %v", err)
		}
		if artist.ListenCount != 3 {
			t.Errorf("expected artist listen count 3, got %d", artist.ListenCount)
		}
	})

	t.Run("SubmissionOnceOnly", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")
		artist := createTestArtist(t, c, "a")
		album := createTestAlbum(t, c, artist.ID, "x")
		track := createTestTrack(t, c, album.ID, "song")

		scrobble, err := c.CreateScrobble(ctx, ScrobbleCreate{User: user.ID, Track: track.ID})
		if err != nil {
			t.Fatalf("failed to create scrobble: %v", err)
		}

		pending, err := c.ListUnsubmittedScrobbles(ctx, "listenbrainz", 0, 10)
		if err != nil {
			t.Fatalf("failed to list unsubmitted: %v", err)
		}
		if len(pending) != 1 || pending[0].ID != scrobble.ID {
			t.Fatalf("expected one pending scrobble, got %d", len(pending))
		}

		if err := c.RegisterSubmission(ctx, scrobble.ID, "listenbrainz"); err != nil {
			t.Fatalf("failed to register submission: %v", err)
		}
		if err := c.RegisterSubmission(ctx, scrobble.ID, "listenbrainz"); err != nil {
			t.Fatalf("expected idempotent registration: %v", err)
		}

		pending, err = c.ListUnsubmittedScrobbles(ctx, "listenbrainz", 0, 10)
		if err != nil {
			t.Fatalf("failed to list unsubmitted: %v", err)
		}
		if len(pending) != 0 {
			t.Errorf("expected no pending scrobbles, got %d", len(pending))
		}

		pending, err = c.ListUnsubmittedScrobbles(ctx, "lastfm", 0, 10)
		if err != nil {
			t.Fatalf("failed to list unsubmitted: %v", err)
		}
		if len(pending) != 1 {
			t.Errorf("expected one pending scrobble for other scrobbler, got %d", len(pending))
		}
	})
}

func TestFavoriteAndPin(t *testing.T) {
	ctx := context.Background()

	t.Run("FavoriteRoundTrip", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")
		artist := createTestArtist(t, c, "a")

		if err := c.PutFavorite(ctx, user.ID, artist.ID.ID()); err != nil {
			t.Fatalf("failed to put favorite: %v", err)
		}
		if err := c.PutFavorite(ctx, user.ID, artist.ID.ID()); err != nil {
			t.Fatalf("expected idempotent favorite: %v", err)
		}

		favorites, err := c.ListFavorites(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to list favorites: %v", err)
		}
		if len(favorites) != 1 || favorites[0].Target != artist.ID.ID() {
			t.Fatalf("unexpected favorites: %+v", favorites)
		}

		if err := c.RemoveFavorite(ctx, user.ID, artist.ID.ID()); err != nil {
			t.Fatalf("failed to remove favorite: %v", err)
		}
		favorites, err = c.ListFavorites(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to list favorites: %v", err)
		}
		if len(favorites) != 0 {
			t.Errorf("expected no favorites, got %d", len(favorites))
		}
	})

	t.Run("FavoriteInvalidKind", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")

		if err := c.PutFavorite(ctx, user.ID, user.ID.ID()); shared.KindOf(err) != shared.KindInvalid {
			t.Errorf("expected invalid error, got %v", err)
		}
	})

	t.Run("UserProperties", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")
		artist := createTestArtist(t, c, "a")

		err := c.UpdateUserProperties(ctx, user.ID, artist.ID.ID(), []PropertyUpdate{
			PropertySet("rating", "5"),
		})
		if err != nil {
			t.Fatalf("failed to update user properties: %v", err)
		}

		props, err := c.GetUserProperties(ctx, user.ID, artist.ID.ID())
		if err != nil {
			t.Fatalf("failed to get user properties: %v", err)
		}
		if props["rating"] != "5" {
			t.Errorf("unexpected user properties: %v", props)
		}

		// user scope never leaks into the entity's global properties
		got, err := c.GetArtist(ctx, artist.ID)
		if err != nil {
			t.Fatalf("failed to get artist: %v", err)
		}
		if _, ok := got.Properties["rating"]; ok {
			t.Error("user property leaked into global scope")
		}
	})
}

func TestSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateIsIdempotent", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")

		first, err := c.CreateSubscription(ctx, SubscriptionCreate{User: user.ID, ExternalID: "spotify:album:1"})
		if err != nil {
			t.Fatalf("failed to create subscription: %v", err)
		}
		second, err := c.CreateSubscription(ctx, SubscriptionCreate{User: user.ID, ExternalID: "spotify:album:1"})
		if err != nil {
			t.Fatalf("failed to create duplicate subscription: %v", err)
		}
		if first.ID != second.ID {
			t.Errorf("expected same subscription, got %d and %d", first.ID, second.ID)
		}
	})

	t.Run("MarkSubmitted", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")

		sub, err := c.CreateSubscription(ctx, SubscriptionCreate{
			User:        user.ID,
			ExternalID:  "spotify:album:1",
			Interval:    time.Hour,
			HasInterval: true,
		})
		if err != nil {
			t.Fatalf("failed to create subscription: %v", err)
		}
		if !sub.LastSubmitted.IsZero() {
			t.Error("expected new subscription to be unsubmitted")
		}

		now := time.Now().Truncate(time.Second)
		if err := c.MarkSubscriptionSubmitted(ctx, user.ID, "spotify:album:1", now); err != nil {
			t.Fatalf("failed to mark submitted: %v", err)
		}

		subs, err := c.ListSubscriptionsByUser(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to list subscriptions: %v", err)
		}
		if len(subs) != 1 || !subs[0].LastSubmitted.Equal(now) {
			t.Errorf("unexpected subscriptions: %+v", subs)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c, "alice")

		if _, err := c.CreateSubscription(ctx, SubscriptionCreate{User: user.ID, ExternalID: "x"}); err != nil {
			t.Fatalf("failed to create subscription: %v", err)
		}
		if err := c.DeleteSubscription(ctx, user.ID, "x"); err != nil {
			t.Fatalf("failed to delete subscription: %v", err)
		}
		if err := c.DeleteSubscription(ctx, user.ID, "x"); shared.KindOf(err) != shared.KindNotFound {
			t.Errorf("expected not found error, got %v", err)
		}
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("RankedHydration", func(t *testing.T) {
		c := newTestCatalog(t)
		artist := createTestArtist(t, c, "Metallica")
		album := createTestAlbum(t, c, artist.ID, "Ride the Lightning")
		createTestTrack(t, c, album.ID, "Fade to Black")

		results, err := c.Search(ctx, "metallica", 10)
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		artists := results.Artists()
		if len(artists) != 1 || artists[0].Name != "Metallica" {
			t.Fatalf("expected artist hit, got %+v", results.Results)
		}
	})

	t.Run("DeletedEntitiesLeaveIndex", func(t *testing.T) {
		c := newTestCatalog(t)
		artist := createTestArtist(t, c, "Metallica")

		if err := c.DeleteArtist(ctx, artist.ID); err != nil {
			t.Fatalf("failed to delete artist: %v", err)
		}
		results, err := c.Search(ctx, "metallica", 10)
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results.Results) != 0 {
			t.Errorf("expected no hits, got %d", len(results.Results))
		}
	})
}

func TestGarbageCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("CollectsUnlinkedAudio", func(t *testing.T) {
		c := newTestCatalog(t)
		artist := createTestArtist(t, c, "a")
		album := createTestAlbum(t, c, artist.ID, "x")
		track := createTestTrack(t, c, album.ID, "song")

		linked, err := c.CreateAudio(ctx, AudioCreate{MimeType: "audio/mpeg", Content: bytes.NewReader([]byte("a"))})
		if err != nil {
			t.Fatalf("failed to create audio: %v", err)
		}
		if err := c.LinkAudio(ctx, track.ID, linked.ID); err != nil {
			t.Fatalf("failed to link audio: %v", err)
		}
		orphan, err := c.CreateAudio(ctx, AudioCreate{MimeType: "audio/mpeg", Content: bytes.NewReader([]byte("b"))})
		if err != nil {
			t.Fatalf("failed to create audio: %v", err)
		}

		stats, err := c.CollectGarbage(ctx)
		if err != nil {
			t.Fatalf("garbage collection failed: %v", err)
		}
		if stats.Audios != 1 {
			t.Errorf("expected 1 collected audio, got %d", stats.Audios)
		}
		if _, err := c.GetAudio(ctx, orphan.ID); shared.KindOf(err) != shared.KindNotFound {
			t.Errorf("expected orphan audio to be deleted, got %v", err)
		}
		if _, err := c.GetAudio(ctx, linked.ID); err != nil {
			t.Errorf("expected linked audio to survive: %v", err)
		}
	})
}
