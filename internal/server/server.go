// package server exposes the catalog as a typed JSON RPC over HTTP.
// Every catalog verb is a POST under /api/v1/<verb> with a JSON request
// and response; binary transfers (audio, images, imports) use dedicated
// streaming endpoints. Authentication is a bearer token obtained from
// login; admin-only verbs reject non-admin callers.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/importer"
	"github.com/diogo464/sonar-sub000/internal/metadata"
	"github.com/diogo464/sonar-sub000/internal/shared"
	"github.com/diogo464/sonar-sub000/internal/tasks"
)

type contextKey int

const userContextKey contextKey = iota

// Server wires the catalog and the background subsystems into one HTTP
// surface.
type Server struct {
	catalog       *catalog.Catalog
	importer      *importer.Importer
	downloader    *tasks.Downloader
	subscriptions *tasks.SubscriptionController
	metadata      *metadata.Manager
	logger        *log.Logger
}

// NewServer creates an RPC server. Importer, downloader, subscriptions
// and metadata may be nil; their verbs then fail with an internal error.
func NewServer(
	c *catalog.Catalog,
	imp *importer.Importer,
	downloader *tasks.Downloader,
	subscriptions *tasks.SubscriptionController,
	meta *metadata.Manager,
	logger *log.Logger,
) *Server {
	return &Server{
		catalog:       c,
		importer:      imp,
		downloader:    downloader,
		subscriptions: subscriptions,
		metadata:      meta,
		logger:        logger,
	}
}

// Router mounts every verb under /api/v1/.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Post("/api/v1/user/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/api/v1/user/logout", s.handleLogout)
		r.Post("/api/v1/user/list", s.admin(s.handleUserList))
		r.Post("/api/v1/user/create", s.admin(s.handleUserCreate))
		r.Post("/api/v1/user/update", s.admin(s.handleUserUpdate))
		r.Post("/api/v1/user/delete", s.admin(s.handleUserDelete))

		r.Post("/api/v1/artist/list", s.handleArtistList)
		r.Post("/api/v1/artist/get", s.handleArtistGet)
		r.Post("/api/v1/artist/get_bulk", s.handleArtistGetBulk)
		r.Post("/api/v1/artist/lookup", s.handleArtistLookup)
		r.Post("/api/v1/artist/create", s.admin(s.handleArtistCreate))
		r.Post("/api/v1/artist/update", s.admin(s.handleArtistUpdate))
		r.Post("/api/v1/artist/delete", s.admin(s.handleArtistDelete))

		r.Post("/api/v1/album/list", s.handleAlbumList)
		r.Post("/api/v1/album/list_by_artist", s.handleAlbumListByArtist)
		r.Post("/api/v1/album/get", s.handleAlbumGet)
		r.Post("/api/v1/album/get_bulk", s.handleAlbumGetBulk)
		r.Post("/api/v1/album/create", s.admin(s.handleAlbumCreate))
		r.Post("/api/v1/album/update", s.admin(s.handleAlbumUpdate))
		r.Post("/api/v1/album/delete", s.admin(s.handleAlbumDelete))

		r.Post("/api/v1/track/list", s.handleTrackList)
		r.Post("/api/v1/track/list_by_album", s.handleTrackListByAlbum)
		r.Post("/api/v1/track/get", s.handleTrackGet)
		r.Post("/api/v1/track/get_bulk", s.handleTrackGetBulk)
		r.Post("/api/v1/track/lyrics", s.handleTrackLyrics)
		r.Post("/api/v1/track/stat", s.handleTrackStat)
		r.Post("/api/v1/track/create", s.admin(s.handleTrackCreate))
		r.Post("/api/v1/track/update", s.admin(s.handleTrackUpdate))
		r.Post("/api/v1/track/delete", s.admin(s.handleTrackDelete))
		r.Get("/api/v1/track/download", s.handleTrackDownload)

		r.Post("/api/v1/playlist/list", s.handlePlaylistList)
		r.Post("/api/v1/playlist/get", s.handlePlaylistGet)
		r.Post("/api/v1/playlist/get_bulk", s.handlePlaylistGetBulk)
		r.Post("/api/v1/playlist/create", s.handlePlaylistCreate)
		r.Post("/api/v1/playlist/update", s.handlePlaylistUpdate)
		r.Post("/api/v1/playlist/delete", s.handlePlaylistDelete)
		r.Post("/api/v1/playlist/duplicate", s.handlePlaylistDuplicate)
		r.Post("/api/v1/playlist/track_list", s.handlePlaylistTrackList)
		r.Post("/api/v1/playlist/track_insert", s.handlePlaylistTrackInsert)
		r.Post("/api/v1/playlist/track_remove", s.handlePlaylistTrackRemove)
		r.Post("/api/v1/playlist/track_clear", s.handlePlaylistTrackClear)
		r.Get("/api/v1/playlist/export", s.handlePlaylistExport)

		r.Post("/api/v1/image/delete", s.admin(s.handleImageDelete))
		r.Post("/api/v1/image/create", s.handleImageCreate)
		r.Get("/api/v1/image/download", s.handleImageDownload)

		r.Post("/api/v1/favorite/list", s.handleFavoriteList)
		r.Post("/api/v1/favorite/add", s.handleFavoriteAdd)
		r.Post("/api/v1/favorite/remove", s.handleFavoriteRemove)

		r.Post("/api/v1/pin/list", s.handlePinList)
		r.Post("/api/v1/pin/set", s.handlePinSet)
		r.Post("/api/v1/pin/unset", s.handlePinUnset)

		r.Post("/api/v1/scrobble/list", s.handleScrobbleList)
		r.Post("/api/v1/scrobble/create", s.handleScrobbleCreate)
		r.Post("/api/v1/scrobble/delete", s.handleScrobbleDelete)

		r.Post("/api/v1/subscription/list", s.handleSubscriptionList)
		r.Post("/api/v1/subscription/create", s.handleSubscriptionCreate)
		r.Post("/api/v1/subscription/delete", s.handleSubscriptionDelete)
		r.Post("/api/v1/subscription/submit", s.handleSubscriptionSubmit)

		r.Post("/api/v1/download/list", s.handleDownloadList)
		r.Post("/api/v1/download/request", s.handleDownloadRequest)
		r.Post("/api/v1/download/delete", s.handleDownloadDelete)

		r.Post("/api/v1/search", s.handleSearch)
		r.Post("/api/v1/genre/list", s.handleGenreList)
		r.Post("/api/v1/import", s.handleImport)

		r.Post("/api/v1/metadata/providers", s.handleMetadataProviders)
		r.Post("/api/v1/metadata/view", s.handleMetadataView)
		r.Post("/api/v1/metadata/fetch", s.handleMetadataFetch)
	})

	return r
}

// authMiddleware resolves the bearer token to a user.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.respondError(w, shared.Unauthorizedf("missing bearer token"))
			return
		}
		userID, err := s.catalog.ValidateToken(token)
		if err != nil {
			s.respondError(w, err)
			return
		}
		user, err := s.catalog.GetUser(r.Context(), userID)
		if err != nil {
			s.respondError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestUser(r *http.Request) catalog.User {
	user, _ := r.Context().Value(userContextKey).(catalog.User)
	return user
}

// admin gates a handler to admin users.
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requestUser(r).Admin {
			s.respondError(w, shared.Unauthorizedf("admin privileges required"))
			return
		}
		next(w, r)
	}
}

func statusFor(err error) int {
	switch shared.KindOf(err) {
	case shared.KindInvalid:
		return http.StatusBadRequest
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *Server) respond(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if body == nil {
		body = struct{}{}
	}
	json.NewEncoder(w).Encode(body)
}

func decode[T any](r *http.Request) (T, error) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, shared.Invalidf("invalid request body: %v", err)
	}
	return req, nil
}
