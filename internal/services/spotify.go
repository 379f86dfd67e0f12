// Spotify implementation of [Service]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifyIDPrefix = "spotify:"
)

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type spotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []spotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

type spotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []spotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Images      []spotifyImage  `json:"images"`
	URI         string          `json:"uri"`
	Tracks      struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []spotifyArtist `json:"artists"`
	Album      spotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

type spotifyPlaylist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tracks struct {
		Items []struct {
			Track spotifyTrack `json:"track"`
		} `json:"items"`
	} `json:"tracks"`
}

type spotifySearchResponse struct {
	Artists struct {
		Items []spotifyArtist `json:"items"`
	} `json:"artists"`
	Albums struct {
		Items []spotifyAlbum `json:"items"`
	} `json:"albums"`
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SpotifyService implements [Service] against the Spotify Web API using
// the client-credentials grant. Spotify cannot serve raw audio, so
// DownloadTrack always fails; the adapter is used for enrichment and
// catalog graph traversal.
type SpotifyService struct {
	httpClient *http.Client
}

// NewSpotifyService creates a Spotify adapter with the given application
// credentials. Tokens refresh automatically.
func NewSpotifyService(clientID, clientSecret string) (*SpotifyService, error) {
	if clientID == "" || clientSecret == "" {
		return nil, shared.Invalidf("spotify client id and secret are required")
	}
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyTokenURL,
	}
	return &SpotifyService{httpClient: config.Client(context.Background())}, nil
}

func (s *SpotifyService) Name() string { return "spotify" }

// doRequest performs an authenticated GET against the Spotify API and
// decodes the JSON response into result.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spotifyBaseURL+endpoint, nil)
	if err != nil {
		return shared.Internalf("failed to create request: %v", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return shared.Internalf("spotify request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return shared.NotFoundf("spotify resource %s", endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return shared.Internalf("spotify API error: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return shared.Internalf("failed to decode spotify response: %v", err)
	}
	return nil
}

// parseSpotifyID splits a `spotify:<type>:<id>` URI.
func parseSpotifyID(id ExternalMediaID) (kind, rest string, ok bool) {
	s, ok := strings.CutPrefix(string(id), spotifyIDPrefix)
	if !ok {
		return "", "", false
	}
	kind, rest, ok = strings.Cut(s, ":")
	return kind, rest, ok && rest != ""
}

// Enrich searches Spotify for the request's names when no spotify id is
// present yet, and seeds the request with the best match.
func (s *SpotifyService) Enrich(ctx context.Context, req *ExternalMediaRequest) (bool, error) {
	for _, id := range req.ExternalIDs {
		if _, _, ok := parseSpotifyID(id); ok {
			return false, nil
		}
	}

	var (
		query string
		kind  string
	)
	switch {
	case req.Track != "":
		query, kind = req.Track+" "+req.Artist, "track"
	case req.Album != "":
		query, kind = req.Album+" "+req.Artist, "album"
	case req.Artist != "":
		query, kind = req.Artist, "artist"
	default:
		return false, nil
	}

	var result spotifySearchResponse
	endpoint := fmt.Sprintf("/search?q=%s&type=%s&limit=5", url.QueryEscape(strings.TrimSpace(query)), kind)
	if err := s.doRequest(ctx, endpoint, &result); err != nil {
		return false, err
	}

	merge := ExternalMediaRequest{}
	switch kind {
	case "track":
		for _, track := range result.Tracks.Items {
			if req.Duration > 0 {
				// allow two seconds of drift when the caller pinned a duration
				drift := time.Duration(track.DurationMS)*time.Millisecond - req.Duration
				if drift < -2*time.Second || drift > 2*time.Second {
					continue
				}
			}
			merge.ExternalIDs = append(merge.ExternalIDs, ExternalMediaID(track.URI))
			break
		}
	case "album":
		for _, album := range result.Albums.Items {
			merge.ExternalIDs = append(merge.ExternalIDs, ExternalMediaID(album.URI))
			break
		}
	case "artist":
		for _, artist := range result.Artists.Items {
			merge.ExternalIDs = append(merge.ExternalIDs, ExternalMediaID(artist.URI))
			break
		}
	}
	return req.Merge(merge), nil
}

// Extract resolves the first spotify URI in the request.
func (s *SpotifyService) Extract(ctx context.Context, req *ExternalMediaRequest) (catalog.MediaType, ExternalMediaID, error) {
	for _, id := range req.ExternalIDs {
		kind, _, ok := parseSpotifyID(id)
		if !ok {
			continue
		}
		switch kind {
		case "artist":
			return catalog.MediaTypeArtist, id, nil
		case "album":
			return catalog.MediaTypeAlbum, id, nil
		case "track":
			return catalog.MediaTypeTrack, id, nil
		case "playlist":
			return catalog.MediaTypePlaylist, id, nil
		}
	}
	return "", "", shared.NotFoundf("no spotify id in request")
}

func (s *SpotifyService) FetchArtist(ctx context.Context, id ExternalMediaID) (ExternalArtist, error) {
	kind, spotifyID, ok := parseSpotifyID(id)
	if !ok || kind != "artist" {
		return ExternalArtist{}, shared.Invalidf("%q is not a spotify artist id", id)
	}

	var artist spotifyArtist
	if err := s.doRequest(ctx, "/artists/"+url.PathEscape(spotifyID), &artist); err != nil {
		return ExternalArtist{}, err
	}

	var albums struct {
		Items []spotifyAlbum `json:"items"`
	}
	endpoint := fmt.Sprintf("/artists/%s/albums?include_groups=album&limit=50", url.PathEscape(spotifyID))
	if err := s.doRequest(ctx, endpoint, &albums); err != nil {
		return ExternalArtist{}, err
	}

	out := ExternalArtist{
		Name:       artist.Name,
		Properties: catalog.Properties{"external/spotify": catalog.PropertyValue(artist.URI)},
	}
	for _, genre := range artist.Genres {
		if g, err := catalog.CanonicalizeGenre(genre); err == nil {
			out.Genres = out.Genres.Insert(g)
		}
	}
	for _, album := range albums.Items {
		out.Albums = append(out.Albums, ExternalMediaID(album.URI))
	}
	return out, nil
}

func (s *SpotifyService) FetchAlbum(ctx context.Context, id ExternalMediaID) (ExternalAlbum, error) {
	kind, spotifyID, ok := parseSpotifyID(id)
	if !ok || kind != "album" {
		return ExternalAlbum{}, shared.Invalidf("%q is not a spotify album id", id)
	}

	var album spotifyAlbum
	if err := s.doRequest(ctx, "/albums/"+url.PathEscape(spotifyID), &album); err != nil {
		return ExternalAlbum{}, err
	}

	out := ExternalAlbum{
		Name:       album.Name,
		Properties: catalog.Properties{"external/spotify": catalog.PropertyValue(album.URI)},
	}
	if len(album.Artists) > 0 {
		out.Artist = ExternalMediaID(album.Artists[0].URI)
	}
	for _, track := range album.Tracks.Items {
		out.Tracks = append(out.Tracks, ExternalMediaID(track.URI))
	}
	return out, nil
}

func (s *SpotifyService) FetchTrack(ctx context.Context, id ExternalMediaID) (ExternalTrack, error) {
	kind, spotifyID, ok := parseSpotifyID(id)
	if !ok || kind != "track" {
		return ExternalTrack{}, shared.Invalidf("%q is not a spotify track id", id)
	}

	var track spotifyTrack
	if err := s.doRequest(ctx, "/tracks/"+url.PathEscape(spotifyID), &track); err != nil {
		return ExternalTrack{}, err
	}

	out := ExternalTrack{
		Name:       track.Name,
		Album:      ExternalMediaID(track.Album.URI),
		Duration:   time.Duration(track.DurationMS) * time.Millisecond,
		Properties: catalog.Properties{"external/spotify": catalog.PropertyValue(track.URI)},
	}
	if len(track.Artists) > 0 {
		out.Artist = ExternalMediaID(track.Artists[0].URI)
	}
	return out, nil
}

func (s *SpotifyService) FetchPlaylist(ctx context.Context, id ExternalMediaID) (ExternalPlaylist, error) {
	kind, spotifyID, ok := parseSpotifyID(id)
	if !ok || kind != "playlist" {
		return ExternalPlaylist{}, shared.Invalidf("%q is not a spotify playlist id", id)
	}

	var playlist spotifyPlaylist
	if err := s.doRequest(ctx, "/playlists/"+url.PathEscape(spotifyID), &playlist); err != nil {
		return ExternalPlaylist{}, err
	}

	out := ExternalPlaylist{
		Name:       playlist.Name,
		Properties: catalog.Properties{"external/spotify": catalog.PropertyValue(spotifyIDPrefix + "playlist:" + playlist.ID)},
	}
	for _, item := range playlist.Tracks.Items {
		out.Tracks = append(out.Tracks, ExternalMediaID(item.Track.URI))
	}
	return out, nil
}

// DownloadTrack always fails: the Spotify API does not expose raw audio.
func (s *SpotifyService) DownloadTrack(ctx context.Context, id ExternalMediaID) (io.ReadCloser, error) {
	return nil, shared.Invalidf("spotify does not serve audio downloads")
}
