// package services defines the [Service] interface for external music
// catalogs and the priority-ordered [Registry] that drives them.
//
// A Service exposes a subset of capabilities: enriching an
// [ExternalMediaRequest] with identifiers, resolving an opaque external id
// to a media type, fetching artist/album/track/playlist records, and
// downloading audio. The registry consults services in ascending priority
// order and rate-limits each one independently.
package services

import (
	"context"
	"io"
	"time"

	"github.com/diogo464/sonar-sub000/internal/catalog"
)

// ExternalMediaID is an opaque provider identifier (a spotify URI, a
// video id, a URL). The registry never parses it; adapters do.
type ExternalMediaID string

// ExternalMediaRequest describes what a caller wants materialized from
// external providers. Adapters fill in fields during enrichment.
type ExternalMediaRequest struct {
	Artist      string
	Album       string
	Track       string
	Playlist    string
	Duration    time.Duration
	MediaType   catalog.MediaType
	ExternalIDs []ExternalMediaID
}

// Merge folds other into r and reports whether r changed. Present fields
// of r win; external ids union with duplicates skipped.
func (r *ExternalMediaRequest) Merge(other ExternalMediaRequest) bool {
	modified := false
	if r.Artist == "" && other.Artist != "" {
		r.Artist = other.Artist
		modified = true
	}
	if r.Album == "" && other.Album != "" {
		r.Album = other.Album
		modified = true
	}
	if r.Track == "" && other.Track != "" {
		r.Track = other.Track
		modified = true
	}
	if r.Playlist == "" && other.Playlist != "" {
		r.Playlist = other.Playlist
		modified = true
	}
	if r.Duration == 0 && other.Duration != 0 {
		r.Duration = other.Duration
		modified = true
	}
	if r.MediaType == "" && other.MediaType != "" {
		r.MediaType = other.MediaType
		modified = true
	}
	for _, id := range other.ExternalIDs {
		if r.hasExternalID(id) {
			continue
		}
		r.ExternalIDs = append(r.ExternalIDs, id)
		modified = true
	}
	return modified
}

func (r *ExternalMediaRequest) hasExternalID(id ExternalMediaID) bool {
	for _, existing := range r.ExternalIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// ExternalArtist is a provider's view of an artist.
type ExternalArtist struct {
	Name       string
	Albums     []ExternalMediaID
	Genres     catalog.Genres
	Properties catalog.Properties
	Cover      []byte
	CoverMime  string
}

// ExternalAlbum is a provider's view of an album.
type ExternalAlbum struct {
	Name       string
	Artist     ExternalMediaID
	Tracks     []ExternalMediaID
	Genres     catalog.Genres
	Properties catalog.Properties
	Cover      []byte
	CoverMime  string
}

// ExternalTrack is a provider's view of a track.
type ExternalTrack struct {
	Name       string
	Artist     ExternalMediaID
	Album      ExternalMediaID
	Duration   time.Duration
	Properties catalog.Properties
	Cover      []byte
	CoverMime  string
}

// ExternalPlaylist is a provider's view of a playlist.
type ExternalPlaylist struct {
	Name       string
	Tracks     []ExternalMediaID
	Properties catalog.Properties
}

// Service is one external provider adapter. Every method may return a
// not-found error for identifiers the provider does not recognize;
// capabilities the provider lacks return an invalid error.
type Service interface {
	// Name identifies the adapter in configuration and logs.
	Name() string

	// Enrich fills fields of the request from provider data and reports
	// whether it modified the request.
	Enrich(ctx context.Context, req *ExternalMediaRequest) (bool, error)

	// Extract resolves one of the request's external ids to a media type
	// and the id to fetch it under.
	Extract(ctx context.Context, req *ExternalMediaRequest) (catalog.MediaType, ExternalMediaID, error)

	FetchArtist(ctx context.Context, id ExternalMediaID) (ExternalArtist, error)
	FetchAlbum(ctx context.Context, id ExternalMediaID) (ExternalAlbum, error)
	FetchTrack(ctx context.Context, id ExternalMediaID) (ExternalTrack, error)
	FetchPlaylist(ctx context.Context, id ExternalMediaID) (ExternalPlaylist, error)

	// DownloadTrack returns the raw audio stream for a track id.
	DownloadTrack(ctx context.Context, id ExternalMediaID) (io.ReadCloser, error)
}
