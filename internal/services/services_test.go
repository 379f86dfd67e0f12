package services

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// stubService recognizes ids with its own prefix and records calls.
type stubService struct {
	name       string
	enrichWith ExternalMediaRequest
	enriched   int
	extracts   int
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Enrich(ctx context.Context, req *ExternalMediaRequest) (bool, error) {
	s.enriched++
	return req.Merge(s.enrichWith), nil
}

func (s *stubService) Extract(ctx context.Context, req *ExternalMediaRequest) (catalog.MediaType, ExternalMediaID, error) {
	s.extracts++
	for _, id := range req.ExternalIDs {
		if strings.HasPrefix(string(id), s.name+":") {
			return catalog.MediaTypeArtist, id, nil
		}
	}
	return "", "", shared.NotFoundf("unknown id")
}

func (s *stubService) FetchArtist(context.Context, ExternalMediaID) (ExternalArtist, error) {
	return ExternalArtist{}, shared.NotFoundf("not implemented")
}
func (s *stubService) FetchAlbum(context.Context, ExternalMediaID) (ExternalAlbum, error) {
	return ExternalAlbum{}, shared.NotFoundf("not implemented")
}
func (s *stubService) FetchTrack(context.Context, ExternalMediaID) (ExternalTrack, error) {
	return ExternalTrack{}, shared.NotFoundf("not implemented")
}
func (s *stubService) FetchPlaylist(context.Context, ExternalMediaID) (ExternalPlaylist, error) {
	return ExternalPlaylist{}, shared.NotFoundf("not implemented")
}
func (s *stubService) DownloadTrack(context.Context, ExternalMediaID) (io.ReadCloser, error) {
	return nil, shared.Invalidf("no audio")
}

func TestExternalMediaRequest(t *testing.T) {
	t.Run("MergeIsIdempotent", func(t *testing.T) {
		req := ExternalMediaRequest{
			Artist:      "Metallica",
			Track:       "One",
			Duration:    7 * time.Minute,
			ExternalIDs: []ExternalMediaID{"spotify:track:1"},
		}
		if req.Merge(req) {
			t.Error("merging a request with itself should not modify it")
		}
	})

	t.Run("MergePresentFieldsWin", func(t *testing.T) {
		req := ExternalMediaRequest{Artist: "Metallica"}
		modified := req.Merge(ExternalMediaRequest{
			Artist:      "Other",
			Album:       "Black",
			ExternalIDs: []ExternalMediaID{"x:1"},
		})
		if !modified {
			t.Error("expected merge to report modification")
		}
		if req.Artist != "Metallica" {
			t.Errorf("expected present field to win, got %s", req.Artist)
		}
		if req.Album != "Black" || len(req.ExternalIDs) != 1 {
			t.Errorf("expected absent fields to fill: %+v", req)
		}
	})

	t.Run("MergeSkipsDuplicateIDs", func(t *testing.T) {
		req := ExternalMediaRequest{ExternalIDs: []ExternalMediaID{"x:1"}}
		if req.Merge(ExternalMediaRequest{ExternalIDs: []ExternalMediaID{"x:1"}}) {
			t.Error("duplicate id merge should not modify")
		}
	})
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(io.Discard)

	t.Run("EnrichRunsToFixedPoint", func(t *testing.T) {
		// first fills the artist, second needs the artist to fill the id;
		// a single round would miss the dependency
		first := &stubService{name: "a", enrichWith: ExternalMediaRequest{Artist: "Metallica"}}
		second := &stubService{name: "b", enrichWith: ExternalMediaRequest{ExternalIDs: []ExternalMediaID{"b:artist:1"}}}

		registry := NewRegistry(logger)
		registry.Register(first, 1, 0)
		registry.Register(second, 2, 0)

		req := ExternalMediaRequest{Track: "One"}
		if err := registry.Enrich(ctx, &req); err != nil {
			t.Fatalf("enrich failed: %v", err)
		}
		if req.Artist != "Metallica" || len(req.ExternalIDs) != 1 {
			t.Errorf("expected fully enriched request, got %+v", req)
		}
		// one extra round to observe the fixed point
		if first.enriched < 2 {
			t.Errorf("expected at least two rounds, got %d", first.enriched)
		}
	})

	t.Run("ExtractFirstSuccessWins", func(t *testing.T) {
		low := &stubService{name: "low"}
		high := &stubService{name: "high"}

		registry := NewRegistry(logger)
		// registration order differs from priority order on purpose
		registry.Register(high, 10, 0)
		registry.Register(low, 1, 0)

		req := ExternalMediaRequest{ExternalIDs: []ExternalMediaID{"high:artist:1", "low:artist:1"}}
		_, id, err := registry.Extract(ctx, &req)
		if err != nil {
			t.Fatalf("extract failed: %v", err)
		}
		if id != "low:artist:1" {
			t.Errorf("expected lowest priority service to win, got %s", id)
		}
	})

	t.Run("ResolveUnknownID", func(t *testing.T) {
		registry := NewRegistry(logger)
		registry.Register(&stubService{name: "a"}, 1, 0)

		if _, _, err := registry.Resolve(ctx, "unknown:1"); shared.KindOf(err) != shared.KindNotFound {
			t.Errorf("expected not found error, got %v", err)
		}
	})
}

func TestSpotifyIDParsing(t *testing.T) {
	cases := []struct {
		input string
		kind  string
		ok    bool
	}{
		{"spotify:artist:abc", "artist", true},
		{"spotify:track:xyz", "track", true},
		{"spotify:artist:", "", false},
		{"tidal:artist:abc", "", false},
		{"spotify:", "", false},
	}
	for _, tc := range cases {
		kind, _, ok := parseSpotifyID(ExternalMediaID(tc.input))
		if ok != tc.ok {
			t.Errorf("parseSpotifyID(%q) ok = %v, want %v", tc.input, ok, tc.ok)
			continue
		}
		if ok && kind != tc.kind {
			t.Errorf("parseSpotifyID(%q) kind = %s, want %s", tc.input, kind, tc.kind)
		}
	}
}
