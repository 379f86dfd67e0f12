package metadata

import (
	"context"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/services"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// ServiceProvider answers metadata queries from one external service
// adapter. It only knows entities that carry an `external/<service>`
// property, written when the entity was materialized from that service.
type ServiceProvider struct {
	registry *services.Registry
	service  services.Service
}

// NewServiceProvider wraps a registered service as a metadata provider.
func NewServiceProvider(registry *services.Registry, service services.Service) *ServiceProvider {
	return &ServiceProvider{registry: registry, service: service}
}

func (p *ServiceProvider) Name() string { return p.service.Name() }

// externalID extracts the service's external id from entity properties.
func (p *ServiceProvider) externalID(properties catalog.Properties) (services.ExternalMediaID, error) {
	key := catalog.PropertyKey("external/" + p.service.Name())
	value, ok := properties[key]
	if !ok {
		return "", shared.NotFoundf("no %s external id", p.service.Name())
	}
	return services.ExternalMediaID(value), nil
}

func (p *ServiceProvider) ArtistMetadata(ctx context.Context, artist catalog.Artist) (ArtistMetadata, error) {
	id, err := p.externalID(artist.Properties)
	if err != nil {
		return ArtistMetadata{}, err
	}
	external, err := p.registry.FetchArtist(ctx, p.service, id)
	if err != nil {
		return ArtistMetadata{}, err
	}
	return ArtistMetadata{
		Name:       external.Name,
		Genres:     external.Genres,
		Properties: external.Properties,
		Cover:      external.Cover,
		CoverMime:  external.CoverMime,
	}, nil
}

func (p *ServiceProvider) AlbumMetadata(ctx context.Context, artist catalog.Artist, album catalog.Album) (AlbumMetadata, error) {
	id, err := p.externalID(album.Properties)
	if err != nil {
		return AlbumMetadata{}, err
	}
	external, err := p.registry.FetchAlbum(ctx, p.service, id)
	if err != nil {
		return AlbumMetadata{}, err
	}
	return AlbumMetadata{
		Name:       external.Name,
		Genres:     external.Genres,
		Properties: external.Properties,
		Cover:      external.Cover,
		CoverMime:  external.CoverMime,
	}, nil
}

func (p *ServiceProvider) TrackMetadata(ctx context.Context, artist catalog.Artist, album catalog.Album, track catalog.Track) (TrackMetadata, error) {
	id, err := p.externalID(track.Properties)
	if err != nil {
		return TrackMetadata{}, err
	}
	external, err := p.registry.FetchTrack(ctx, p.service, id)
	if err != nil {
		return TrackMetadata{}, err
	}
	return TrackMetadata{
		Name:       external.Name,
		Properties: external.Properties,
		Cover:      external.Cover,
		CoverMime:  external.CoverMime,
	}, nil
}

func (p *ServiceProvider) AlbumTracksMetadata(ctx context.Context, artist catalog.Artist, album catalog.Album, tracks []catalog.Track) (AlbumTracksMetadata, error) {
	answers := make(map[catalog.TrackID]TrackMetadata)
	for _, track := range tracks {
		metadata, err := p.TrackMetadata(ctx, artist, album, track)
		if err != nil {
			if shared.KindOf(err) == shared.KindNotFound {
				continue
			}
			return AlbumTracksMetadata{}, err
		}
		answers[track.ID] = metadata
	}
	if len(answers) == 0 {
		return AlbumTracksMetadata{}, shared.NotFoundf("no %s external ids on album tracks", p.service.Name())
	}
	return AlbumTracksMetadata{Tracks: answers}, nil
}
