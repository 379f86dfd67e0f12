// package metadata queries third-party metadata providers and folds their
// answers into one record per entity. Viewing returns the folded record;
// fetching additionally commits it to the catalog.
//
// Providers are queried in parallel; answers fold in registration order.
// Merge rules: name is first-present in provider registration order,
// properties merge with the earlier provider winning, and the cover is
// the larger of the candidates by byte length.
package metadata

import (
	"bytes"
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// ArtistMetadata is one provider's answer for an artist.
type ArtistMetadata struct {
	Name       string
	Genres     catalog.Genres
	Properties catalog.Properties
	Cover      []byte
	CoverMime  string
}

// AlbumMetadata is one provider's answer for an album.
type AlbumMetadata struct {
	Name       string
	Genres     catalog.Genres
	Properties catalog.Properties
	Cover      []byte
	CoverMime  string
}

// TrackMetadata is one provider's answer for a track.
type TrackMetadata struct {
	Name       string
	Properties catalog.Properties
	Cover      []byte
	CoverMime  string
	Lyrics     *catalog.Lyrics
}

// AlbumTracksMetadata maps album track ids to their candidate metadata.
type AlbumTracksMetadata struct {
	Tracks map[catalog.TrackID]TrackMetadata
}

// Provider answers metadata queries for catalog entities. A provider may
// return a not-found error for entities it knows nothing about; those are
// skipped during folding.
type Provider interface {
	Name() string
	ArtistMetadata(ctx context.Context, artist catalog.Artist) (ArtistMetadata, error)
	AlbumMetadata(ctx context.Context, artist catalog.Artist, album catalog.Album) (AlbumMetadata, error)
	AlbumTracksMetadata(ctx context.Context, artist catalog.Artist, album catalog.Album, tracks []catalog.Track) (AlbumTracksMetadata, error)
	TrackMetadata(ctx context.Context, artist catalog.Artist, album catalog.Album, track catalog.Track) (TrackMetadata, error)
}

// FetchMask selects which merged fields a fetch writes back.
type FetchMask uint32

const (
	FetchName FetchMask = 1 << iota
	FetchProperties
	FetchCover
	FetchGenres

	FetchAll = FetchName | FetchProperties | FetchCover | FetchGenres
)

// Manager folds providers over catalog entities.
type Manager struct {
	catalog   *catalog.Catalog
	providers []Provider
	logger    *log.Logger
}

// NewManager creates a manager; providers are consulted in the given
// order.
func NewManager(c *catalog.Catalog, logger *log.Logger, providers ...Provider) *Manager {
	return &Manager{catalog: c, providers: providers, logger: logger}
}

// Providers returns the registered provider names in order.
func (m *Manager) Providers() []string {
	names := make([]string, 0, len(m.providers))
	for _, p := range m.providers {
		names = append(names, p.Name())
	}
	return names
}

// selectProviders filters the registered providers to the named subset;
// an empty filter keeps all of them.
func (m *Manager) selectProviders(filter []string) []Provider {
	if len(filter) == 0 {
		return m.providers
	}
	var out []Provider
	for _, p := range m.providers {
		for _, name := range filter {
			if strings.EqualFold(p.Name(), name) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// queryProviders asks every provider in parallel and returns the answers
// in provider order; failed providers yield nil and are skipped when
// folding.
func queryProviders[T any](providers []Provider, query func(Provider) (T, error)) []*T {
	answers := make([]*T, len(providers))
	var group errgroup.Group
	for idx, provider := range providers {
		group.Go(func() error {
			answer, err := query(provider)
			if err == nil {
				answers[idx] = &answer
			}
			return nil
		})
	}
	group.Wait()
	return answers
}

func mergeCover(primary []byte, primaryMime string, secondary []byte, secondaryMime string) ([]byte, string) {
	if len(secondary) > len(primary) {
		return secondary, secondaryMime
	}
	return primary, primaryMime
}

// ViewArtist folds every provider's answer for an artist.
func (m *Manager) ViewArtist(ctx context.Context, id catalog.ArtistID, filter []string) (ArtistMetadata, error) {
	artist, err := m.catalog.GetArtist(ctx, id)
	if err != nil {
		return ArtistMetadata{}, err
	}

	answers := queryProviders(m.selectProviders(filter), func(provider Provider) (ArtistMetadata, error) {
		answer, err := provider.ArtistMetadata(ctx, artist)
		if err != nil {
			m.logger.Debug("artist metadata provider failed", "provider", provider.Name(), "artist", id, "err", err)
		}
		return answer, err
	})

	merged := ArtistMetadata{Properties: catalog.Properties{}}
	for _, answer := range answers {
		if answer == nil {
			continue
		}
		if merged.Name == "" {
			merged.Name = answer.Name
		}
		merged.Properties = catalog.MergeProperties(merged.Properties, answer.Properties)
		for _, genre := range answer.Genres {
			merged.Genres = merged.Genres.Insert(genre)
		}
		merged.Cover, merged.CoverMime = mergeCover(merged.Cover, merged.CoverMime, answer.Cover, answer.CoverMime)
	}
	return merged, nil
}

// ViewAlbum folds every provider's answer for an album.
func (m *Manager) ViewAlbum(ctx context.Context, id catalog.AlbumID, filter []string) (AlbumMetadata, error) {
	album, err := m.catalog.GetAlbum(ctx, id)
	if err != nil {
		return AlbumMetadata{}, err
	}
	artist, err := m.catalog.GetArtist(ctx, album.Artist)
	if err != nil {
		return AlbumMetadata{}, err
	}

	answers := queryProviders(m.selectProviders(filter), func(provider Provider) (AlbumMetadata, error) {
		answer, err := provider.AlbumMetadata(ctx, artist, album)
		if err != nil {
			m.logger.Debug("album metadata provider failed", "provider", provider.Name(), "album", id, "err", err)
		}
		return answer, err
	})

	merged := AlbumMetadata{Properties: catalog.Properties{}}
	for _, answer := range answers {
		if answer == nil {
			continue
		}
		if merged.Name == "" {
			merged.Name = answer.Name
		}
		merged.Properties = catalog.MergeProperties(merged.Properties, answer.Properties)
		for _, genre := range answer.Genres {
			merged.Genres = merged.Genres.Insert(genre)
		}
		merged.Cover, merged.CoverMime = mergeCover(merged.Cover, merged.CoverMime, answer.Cover, answer.CoverMime)
	}
	return merged, nil
}

// ViewTrack folds every provider's answer for a track.
func (m *Manager) ViewTrack(ctx context.Context, id catalog.TrackID, filter []string) (TrackMetadata, error) {
	track, err := m.catalog.GetTrack(ctx, id)
	if err != nil {
		return TrackMetadata{}, err
	}
	album, err := m.catalog.GetAlbum(ctx, track.Album)
	if err != nil {
		return TrackMetadata{}, err
	}
	artist, err := m.catalog.GetArtist(ctx, album.Artist)
	if err != nil {
		return TrackMetadata{}, err
	}

	answers := queryProviders(m.selectProviders(filter), func(provider Provider) (TrackMetadata, error) {
		answer, err := provider.TrackMetadata(ctx, artist, album, track)
		if err != nil {
			m.logger.Debug("track metadata provider failed", "provider", provider.Name(), "track", id, "err", err)
		}
		return answer, err
	})

	merged := TrackMetadata{Properties: catalog.Properties{}}
	for _, answer := range answers {
		if answer == nil {
			continue
		}
		if merged.Name == "" {
			merged.Name = answer.Name
		}
		merged.Properties = catalog.MergeProperties(merged.Properties, answer.Properties)
		merged.Cover, merged.CoverMime = mergeCover(merged.Cover, merged.CoverMime, answer.Cover, answer.CoverMime)
		if merged.Lyrics == nil {
			merged.Lyrics = answer.Lyrics
		}
	}
	return merged, nil
}

// ViewAlbumTracks folds every provider's per-track answers for an album.
func (m *Manager) ViewAlbumTracks(ctx context.Context, id catalog.AlbumID, filter []string) (AlbumTracksMetadata, error) {
	album, err := m.catalog.GetAlbum(ctx, id)
	if err != nil {
		return AlbumTracksMetadata{}, err
	}
	artist, err := m.catalog.GetArtist(ctx, album.Artist)
	if err != nil {
		return AlbumTracksMetadata{}, err
	}
	tracks, err := m.catalog.ListTracksByAlbum(ctx, id, catalog.ListParams{})
	if err != nil {
		return AlbumTracksMetadata{}, err
	}

	answers := queryProviders(m.selectProviders(filter), func(provider Provider) (AlbumTracksMetadata, error) {
		answer, err := provider.AlbumTracksMetadata(ctx, artist, album, tracks)
		if err != nil {
			m.logger.Debug("album tracks metadata provider failed", "provider", provider.Name(), "album", id, "err", err)
		}
		return answer, err
	})

	merged := AlbumTracksMetadata{Tracks: make(map[catalog.TrackID]TrackMetadata)}
	for _, answer := range answers {
		if answer == nil {
			continue
		}
		for trackID, candidate := range answer.Tracks {
			current := merged.Tracks[trackID]
			if current.Name == "" {
				current.Name = candidate.Name
			}
			current.Properties = catalog.MergeProperties(current.Properties, candidate.Properties)
			current.Cover, current.CoverMime = mergeCover(current.Cover, current.CoverMime, candidate.Cover, candidate.CoverMime)
			if current.Lyrics == nil {
				current.Lyrics = candidate.Lyrics
			}
			merged.Tracks[trackID] = current
		}
	}
	return merged, nil
}

// FetchArtist views and commits the merged artist record.
func (m *Manager) FetchArtist(ctx context.Context, id catalog.ArtistID, filter []string, mask FetchMask) error {
	merged, err := m.ViewArtist(ctx, id, filter)
	if err != nil {
		return err
	}
	artist, err := m.catalog.GetArtist(ctx, id)
	if err != nil {
		return err
	}

	update := catalog.ArtistUpdate{}
	if mask&FetchName != 0 && merged.Name != "" && merged.Name != artist.Name {
		update.Name = catalog.Set(merged.Name)
	}
	if mask&FetchProperties != 0 {
		wanted := catalog.MergeProperties(merged.Properties, artist.Properties)
		update.Properties = catalog.PropertyUpdatesFor(artist.Properties, wanted)
	}
	if mask&FetchGenres != 0 {
		for _, genre := range merged.Genres {
			update.Genres = append(update.Genres, catalog.GenreSet(genre))
		}
	}
	if mask&FetchCover != 0 {
		if cover, err := m.uploadCover(ctx, merged.Cover, merged.CoverMime); err == nil && !cover.IsZero() {
			update.CoverArt = catalog.Set(cover)
		}
	}
	_, err = m.catalog.UpdateArtist(ctx, id, update)
	return err
}

// FetchAlbum views and commits the merged album record.
func (m *Manager) FetchAlbum(ctx context.Context, id catalog.AlbumID, filter []string, mask FetchMask) error {
	merged, err := m.ViewAlbum(ctx, id, filter)
	if err != nil {
		return err
	}
	album, err := m.catalog.GetAlbum(ctx, id)
	if err != nil {
		return err
	}

	update := catalog.AlbumUpdate{}
	if mask&FetchName != 0 && merged.Name != "" && merged.Name != album.Name {
		update.Name = catalog.Set(merged.Name)
	}
	if mask&FetchProperties != 0 {
		wanted := catalog.MergeProperties(merged.Properties, album.Properties)
		update.Properties = catalog.PropertyUpdatesFor(album.Properties, wanted)
	}
	if mask&FetchGenres != 0 {
		for _, genre := range merged.Genres {
			update.Genres = append(update.Genres, catalog.GenreSet(genre))
		}
	}
	if mask&FetchCover != 0 {
		if cover, err := m.uploadCover(ctx, merged.Cover, merged.CoverMime); err == nil && !cover.IsZero() {
			update.CoverArt = catalog.Set(cover)
		}
	}
	_, err = m.catalog.UpdateAlbum(ctx, id, update)
	return err
}

// FetchTrack views and commits the merged track record.
func (m *Manager) FetchTrack(ctx context.Context, id catalog.TrackID, filter []string, mask FetchMask) error {
	merged, err := m.ViewTrack(ctx, id, filter)
	if err != nil {
		return err
	}
	track, err := m.catalog.GetTrack(ctx, id)
	if err != nil {
		return err
	}

	update := catalog.TrackUpdate{}
	if mask&FetchName != 0 && merged.Name != "" && merged.Name != track.Name {
		update.Name = catalog.Set(merged.Name)
	}
	if mask&FetchProperties != 0 {
		wanted := catalog.MergeProperties(merged.Properties, track.Properties)
		update.Properties = catalog.PropertyUpdatesFor(track.Properties, wanted)
	}
	if mask&FetchCover != 0 {
		if cover, err := m.uploadCover(ctx, merged.Cover, merged.CoverMime); err == nil && !cover.IsZero() {
			update.CoverArt = catalog.Set(cover)
		}
	}
	update.Lyrics = merged.Lyrics
	_, err = m.catalog.UpdateTrack(ctx, id, update)
	return err
}

// FetchAlbumTracks views and commits merged records for every album track.
func (m *Manager) FetchAlbumTracks(ctx context.Context, id catalog.AlbumID, filter []string, mask FetchMask) error {
	merged, err := m.ViewAlbumTracks(ctx, id, filter)
	if err != nil {
		return err
	}
	for trackID, candidate := range merged.Tracks {
		track, err := m.catalog.GetTrack(ctx, trackID)
		if err != nil {
			m.logger.Warn("album track vanished during metadata fetch", "track", trackID, "err", err)
			continue
		}
		update := catalog.TrackUpdate{}
		if mask&FetchName != 0 && candidate.Name != "" && candidate.Name != track.Name {
			update.Name = catalog.Set(candidate.Name)
		}
		if mask&FetchProperties != 0 {
			wanted := catalog.MergeProperties(candidate.Properties, track.Properties)
			update.Properties = catalog.PropertyUpdatesFor(track.Properties, wanted)
		}
		if mask&FetchCover != 0 {
			if cover, err := m.uploadCover(ctx, candidate.Cover, candidate.CoverMime); err == nil && !cover.IsZero() {
				update.CoverArt = catalog.Set(cover)
			}
		}
		update.Lyrics = candidate.Lyrics
		if _, err := m.catalog.UpdateTrack(ctx, trackID, update); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) uploadCover(ctx context.Context, cover []byte, mime string) (catalog.ImageID, error) {
	if len(cover) == 0 || mime == "" {
		return 0, shared.NotFoundf("no cover")
	}
	image, err := m.catalog.CreateImage(ctx, catalog.ImageCreate{
		MimeType: mime,
		Content:  bytes.NewReader(cover),
	})
	if err != nil {
		return 0, err
	}
	return image.ID, nil
}
