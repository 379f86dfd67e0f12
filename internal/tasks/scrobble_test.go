package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/shared"

	"io"
)

// fakeScrobbler records every submitted listen.
type fakeScrobbler struct {
	name string
	fail bool

	mu      sync.Mutex
	listens []Listen
}

func (s *fakeScrobbler) Name() string { return s.name }

func (s *fakeScrobbler) Scrobble(ctx context.Context, listen Listen) error {
	if s.fail {
		return shared.Internalf("scrobbler down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listens = append(s.listens, listen)
	return nil
}

func (s *fakeScrobbler) submitted() []Listen {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Listen(nil), s.listens...)
}

func createScrobbleFixture(t *testing.T, c *catalog.Catalog) (catalog.User, catalog.Track) {
	t.Helper()
	ctx := context.Background()

	user := createTestUser(t, c)
	artist, err := c.CreateArtist(ctx, catalog.ArtistCreate{Name: "Metallica"})
	if err != nil {
		t.Fatalf("failed to create artist: %v", err)
	}
	album, err := c.CreateAlbum(ctx, catalog.AlbumCreate{Name: "Ride the Lightning", Artist: artist.ID})
	if err != nil {
		t.Fatalf("failed to create album: %v", err)
	}
	track, err := c.CreateTrack(ctx, catalog.TrackCreate{Name: "Fade to Black", Album: album.ID})
	if err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	return user, track
}

func waitUntil(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDispatcher(t *testing.T) {
	t.Run("SubmitsAndRecords", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := newTestCatalog(t)
		user, track := createScrobbleFixture(t, c)

		// created before the dispatcher starts; the startup drain picks
		// it up
		_, err := c.CreateScrobble(ctx, catalog.ScrobbleCreate{User: user.ID, Track: track.ID})
		if err != nil {
			t.Fatalf("failed to create scrobble: %v", err)
		}

		scrobbler := &fakeScrobbler{name: "fake"}
		dispatcher := NewDispatcher(c, shared.NewLogger(io.Discard), scrobbler)
		go dispatcher.Run(ctx)

		waitUntil(t, func() bool { return len(scrobbler.submitted()) == 1 })
		listen := scrobbler.submitted()[0]
		if listen.Artist.Name != "Metallica" || listen.Track.Name != "Fade to Black" {
			t.Errorf("listen was not hydrated: %+v", listen)
		}

		// created after startup; the wake channel drives this one
		if _, err := c.CreateScrobble(ctx, catalog.ScrobbleCreate{User: user.ID, Track: track.ID}); err != nil {
			t.Fatalf("failed to create scrobble: %v", err)
		}
		waitUntil(t, func() bool { return len(scrobbler.submitted()) == 2 })

		unsubmitted, err := c.ListUnsubmittedScrobbles(ctx, "fake", 0, 10)
		if err != nil {
			t.Fatalf("failed to list unsubmitted: %v", err)
		}
		if len(unsubmitted) != 0 {
			t.Errorf("expected every scrobble submitted, %d left", len(unsubmitted))
		}
	})

	t.Run("FailureLeavesUnsubmitted", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := newTestCatalog(t)
		user, track := createScrobbleFixture(t, c)
		if _, err := c.CreateScrobble(ctx, catalog.ScrobbleCreate{User: user.ID, Track: track.ID}); err != nil {
			t.Fatalf("failed to create scrobble: %v", err)
		}

		scrobbler := &fakeScrobbler{name: "broken", fail: true}
		dispatcher := NewDispatcher(c, shared.NewLogger(io.Discard), scrobbler)
		go dispatcher.Run(ctx)

		time.Sleep(100 * time.Millisecond)
		unsubmitted, err := c.ListUnsubmittedScrobbles(ctx, "broken", 0, 10)
		if err != nil {
			t.Fatalf("failed to list unsubmitted: %v", err)
		}
		if len(unsubmitted) != 1 {
			t.Errorf("expected the scrobble to stay unsubmitted, got %d", len(unsubmitted))
		}
	})

	t.Run("ScrobblersAreIndependent", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := newTestCatalog(t)
		user, track := createScrobbleFixture(t, c)
		if _, err := c.CreateScrobble(ctx, catalog.ScrobbleCreate{User: user.ID, Track: track.ID}); err != nil {
			t.Fatalf("failed to create scrobble: %v", err)
		}

		working := &fakeScrobbler{name: "working"}
		broken := &fakeScrobbler{name: "broken", fail: true}
		dispatcher := NewDispatcher(c, shared.NewLogger(io.Discard), working, broken)
		go dispatcher.Run(ctx)

		waitUntil(t, func() bool { return len(working.submitted()) == 1 })
		unsubmitted, err := c.ListUnsubmittedScrobbles(ctx, "broken", 0, 10)
		if err != nil {
			t.Fatalf("failed to list unsubmitted: %v", err)
		}
		if len(unsubmitted) != 1 {
			t.Errorf("broken scrobbler should still have a pending scrobble, got %d", len(unsubmitted))
		}
	})
}
