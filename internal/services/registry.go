package services

import (
	"context"
	"io"
	"sort"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

const enrichMaxRounds = 16

type registration struct {
	service  Service
	priority int
	limiter  *rate.Limiter
}

// Registry is a priority-ordered set of external services. Services are
// consulted in ascending priority order; each service is rate limited
// independently so one slow provider cannot starve the rest.
type Registry struct {
	registrations []registration
	logger        *log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a service with the given priority and request rate.
// A zero rps disables rate limiting for that service.
func (r *Registry) Register(service Service, priority int, rps float64) {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	r.registrations = append(r.registrations, registration{
		service:  service,
		priority: priority,
		limiter:  limiter,
	})
	sort.SliceStable(r.registrations, func(i, j int) bool {
		return r.registrations[i].priority < r.registrations[j].priority
	})
}

// Services returns the registered services in priority order.
func (r *Registry) Services() []Service {
	services := make([]Service, 0, len(r.registrations))
	for _, reg := range r.registrations {
		services = append(services, reg.service)
	}
	return services
}

func (r *Registry) wait(ctx context.Context, reg registration) error {
	if err := reg.limiter.Wait(ctx); err != nil {
		return shared.Internalf("rate limit wait for %s: %v", reg.service.Name(), err)
	}
	return nil
}

// Enrich runs every service over the request until a full round reports
// no modification. The round count is capped so a misbehaving adapter
// cannot loop forever.
func (r *Registry) Enrich(ctx context.Context, req *ExternalMediaRequest) error {
	for round := 0; round < enrichMaxRounds; round++ {
		modified := false
		for _, reg := range r.registrations {
			if err := r.wait(ctx, reg); err != nil {
				return err
			}
			m, err := reg.service.Enrich(ctx, req)
			if err != nil {
				r.logger.Debug("enrich failed", "service", reg.service.Name(), "err", err)
				continue
			}
			modified = modified || m
		}
		if !modified {
			return nil
		}
	}
	return nil
}

// Extract returns the first successful media type resolution.
func (r *Registry) Extract(ctx context.Context, req *ExternalMediaRequest) (catalog.MediaType, ExternalMediaID, error) {
	for _, reg := range r.registrations {
		if err := r.wait(ctx, reg); err != nil {
			return "", "", err
		}
		mediaType, id, err := reg.service.Extract(ctx, req)
		if err != nil {
			r.logger.Debug("extract failed", "service", reg.service.Name(), "err", err)
			continue
		}
		return mediaType, id, nil
	}
	return "", "", shared.NotFoundf("no service could resolve the request")
}

// Resolve finds the service and media type for a single external id.
func (r *Registry) Resolve(ctx context.Context, id ExternalMediaID) (Service, catalog.MediaType, error) {
	req := ExternalMediaRequest{ExternalIDs: []ExternalMediaID{id}}
	for _, reg := range r.registrations {
		if err := r.wait(ctx, reg); err != nil {
			return nil, "", err
		}
		mediaType, _, err := reg.service.Extract(ctx, &req)
		if err != nil {
			continue
		}
		return reg.service, mediaType, nil
	}
	return nil, "", shared.NotFoundf("no service recognizes id %q", id)
}

func (r *Registry) registrationFor(service Service) (registration, bool) {
	for _, reg := range r.registrations {
		if reg.service == service {
			return reg, true
		}
	}
	return registration{}, false
}

// FetchArtist fetches an artist through a specific service, honoring its
// rate limit.
func (r *Registry) FetchArtist(ctx context.Context, service Service, id ExternalMediaID) (ExternalArtist, error) {
	if reg, ok := r.registrationFor(service); ok {
		if err := r.wait(ctx, reg); err != nil {
			return ExternalArtist{}, err
		}
	}
	return service.FetchArtist(ctx, id)
}

// FetchAlbum fetches an album through a specific service.
func (r *Registry) FetchAlbum(ctx context.Context, service Service, id ExternalMediaID) (ExternalAlbum, error) {
	if reg, ok := r.registrationFor(service); ok {
		if err := r.wait(ctx, reg); err != nil {
			return ExternalAlbum{}, err
		}
	}
	return service.FetchAlbum(ctx, id)
}

// FetchTrack fetches a track through a specific service.
func (r *Registry) FetchTrack(ctx context.Context, service Service, id ExternalMediaID) (ExternalTrack, error) {
	if reg, ok := r.registrationFor(service); ok {
		if err := r.wait(ctx, reg); err != nil {
			return ExternalTrack{}, err
		}
	}
	return service.FetchTrack(ctx, id)
}

// FetchPlaylist fetches a playlist through a specific service.
func (r *Registry) FetchPlaylist(ctx context.Context, service Service, id ExternalMediaID) (ExternalPlaylist, error) {
	if reg, ok := r.registrationFor(service); ok {
		if err := r.wait(ctx, reg); err != nil {
			return ExternalPlaylist{}, err
		}
	}
	return service.FetchPlaylist(ctx, id)
}

// DownloadTrack streams a track's audio through a specific service.
func (r *Registry) DownloadTrack(ctx context.Context, service Service, id ExternalMediaID) (io.ReadCloser, error) {
	if reg, ok := r.registrationFor(service); ok {
		if err := r.wait(ctx, reg); err != nil {
			return nil, err
		}
	}
	return service.DownloadTrack(ctx, id)
}
