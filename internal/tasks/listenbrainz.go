package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

const listenBrainzBaseURL = "https://api.listenbrainz.org"

type listenBrainzTrackMetadata struct {
	ArtistName  string `json:"artist_name"`
	TrackName   string `json:"track_name"`
	ReleaseName string `json:"release_name,omitempty"`
}

type listenBrainzListen struct {
	ListenedAt    int64                     `json:"listened_at"`
	TrackMetadata listenBrainzTrackMetadata `json:"track_metadata"`
}

type listenBrainzSubmission struct {
	ListenType string               `json:"listen_type"`
	Payload    []listenBrainzListen `json:"payload"`
}

// ListenBrainzScrobbler submits listens to the ListenBrainz API using a
// single user token.
type ListenBrainzScrobbler struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewListenBrainzScrobbler creates a scrobbler for the given user token.
func NewListenBrainzScrobbler(token string) (*ListenBrainzScrobbler, error) {
	if token == "" {
		return nil, shared.Invalidf("listenbrainz token is required")
	}
	return &ListenBrainzScrobbler{
		token:      token,
		baseURL:    listenBrainzBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *ListenBrainzScrobbler) Name() string { return "listenbrainz" }

// Scrobble submits one listen. Non-2xx responses fail the submission so
// the dispatcher retries on the next wake.
func (s *ListenBrainzScrobbler) Scrobble(ctx context.Context, listen Listen) error {
	submission := listenBrainzSubmission{
		ListenType: "single",
		Payload: []listenBrainzListen{{
			ListenedAt: listen.Scrobble.ListenAt.Unix(),
			TrackMetadata: listenBrainzTrackMetadata{
				ArtistName:  listen.Artist.Name,
				TrackName:   listen.Track.Name,
				ReleaseName: listen.Album.Name,
			},
		}},
	}

	body, err := json.Marshal(submission)
	if err != nil {
		return shared.Internalf("failed to encode listen: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/1/submit-listens", bytes.NewReader(body))
	if err != nil {
		return shared.Internalf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Token "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return shared.Internalf("listenbrainz request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return shared.Internalf("listenbrainz API error: status %d", resp.StatusCode)
	}
	return nil
}
