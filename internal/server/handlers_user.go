package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/metadata"
	"github.com/diogo464/sonar-sub000/internal/services"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// ------- auth -------

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string  `json:"token"`
	User  userDTO `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := decode[loginRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	username, err := catalog.ParseUsername(req.Username)
	if err != nil {
		s.respondError(w, shared.Unauthorizedf("wrong username or password"))
		return
	}
	token, userID, err := s.catalog.Login(r.Context(), username, req.Password)
	if err != nil {
		s.respondError(w, shared.Unauthorizedf("wrong username or password"))
		return
	}
	user, err := s.catalog.GetUser(r.Context(), userID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, loginResponse{Token: token, User: renderUser(user)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.catalog.Logout(token)
	s.respond(w, nil)
}

// ------- users -------

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	req, err := decode[listRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	users, err := s.catalog.ListUsers(r.Context(), req.params())
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]userDTO, 0, len(users))
	for _, user := range users {
		out = append(out, renderUser(user))
	}
	s.respond(w, out)
}

type userCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
	Avatar   string `json:"avatar"`
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	req, err := decode[userCreateRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	username, err := catalog.ParseUsername(req.Username)
	if err != nil {
		s.respondError(w, err)
		return
	}
	avatar, err := parseImageRef(req.Avatar)
	if err != nil {
		s.respondError(w, shared.Invalidf("invalid image id %q", req.Avatar))
		return
	}
	user, err := s.catalog.CreateUser(r.Context(), catalog.UserCreate{
		Username: username,
		Password: req.Password,
		Admin:    req.Admin,
		Avatar:   avatar,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderUser(user))
}

type userUpdateRequest struct {
	ID       string  `json:"id"`
	Password *string `json:"password"`
	Admin    *bool   `json:"admin"`
	Avatar   *string `json:"avatar"`
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	req, err := decode[userUpdateRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseUserID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown user %q", req.ID))
		return
	}
	var update catalog.UserUpdate
	if req.Password != nil {
		update.Password = catalog.Set(*req.Password)
	}
	if req.Admin != nil {
		update.Admin = catalog.Set(*req.Admin)
	}
	update.Avatar, err = imageUpdate(req.Avatar)
	if err != nil {
		s.respondError(w, err)
		return
	}
	user, err := s.catalog.UpdateUser(r.Context(), id, update)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderUser(user))
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseUserID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown user %q", req.ID))
		return
	}
	if err := s.catalog.DeleteUser(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

// ------- favorites -------

type targetRequest struct {
	Target string `json:"target"`
}

func parseTarget(raw string) (catalog.ID, error) {
	id, err := catalog.ParseID(raw)
	if err != nil {
		return 0, shared.NotFoundf("unknown id %q", raw)
	}
	return id, nil
}

func (s *Server) handleFavoriteList(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.catalog.ListFavorites(r.Context(), requestUser(r).ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]favoriteDTO, 0, len(favorites))
	for _, favorite := range favorites {
		out = append(out, renderFavorite(favorite))
	}
	s.respond(w, out)
}

func (s *Server) handleFavoriteAdd(w http.ResponseWriter, r *http.Request) {
	req, err := decode[targetRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	target, err := parseTarget(req.Target)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.catalog.PutFavorite(r.Context(), requestUser(r).ID, target); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

func (s *Server) handleFavoriteRemove(w http.ResponseWriter, r *http.Request) {
	req, err := decode[targetRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	target, err := parseTarget(req.Target)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.catalog.RemoveFavorite(r.Context(), requestUser(r).ID, target); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

// ------- pins -------

func (s *Server) handlePinList(w http.ResponseWriter, r *http.Request) {
	pins, err := s.catalog.ListPins(r.Context(), requestUser(r).ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]string, 0, len(pins))
	for _, pin := range pins {
		out = append(out, pin.String())
	}
	s.respond(w, out)
}

func (s *Server) handlePinSet(w http.ResponseWriter, r *http.Request) {
	req, err := decode[targetRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	target, err := parseTarget(req.Target)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.catalog.Pin(r.Context(), requestUser(r).ID, target); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

func (s *Server) handlePinUnset(w http.ResponseWriter, r *http.Request) {
	req, err := decode[targetRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	target, err := parseTarget(req.Target)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.catalog.Unpin(r.Context(), requestUser(r).ID, target); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

// ------- scrobbles -------

func (s *Server) handleScrobbleList(w http.ResponseWriter, r *http.Request) {
	req, err := decode[listRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	scrobbles, err := s.catalog.ListScrobblesByUser(r.Context(), requestUser(r).ID, req.params())
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]scrobbleDTO, 0, len(scrobbles))
	for _, scrobble := range scrobbles {
		out = append(out, renderScrobble(scrobble))
	}
	s.respond(w, out)
}

type scrobbleCreateRequest struct {
	Track            string    `json:"track"`
	ListenAt         time.Time `json:"listen_at"`
	ListenDurationMS int64     `json:"listen_duration_ms"`
	ListenDevice     string    `json:"listen_device"`
}

func (s *Server) handleScrobbleCreate(w http.ResponseWriter, r *http.Request) {
	req, err := decode[scrobbleCreateRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	track, err := catalog.ParseTrackID(req.Track)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown track %q", req.Track))
		return
	}
	listenAt := req.ListenAt
	if listenAt.IsZero() {
		listenAt = time.Now()
	}
	scrobble, err := s.catalog.CreateScrobble(r.Context(), catalog.ScrobbleCreate{
		User:           requestUser(r).ID,
		Track:          track,
		ListenAt:       listenAt,
		ListenDuration: time.Duration(req.ListenDurationMS) * time.Millisecond,
		ListenDevice:   req.ListenDevice,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderScrobble(scrobble))
}

func (s *Server) handleScrobbleDelete(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseScrobbleID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown scrobble %q", req.ID))
		return
	}
	if err := s.catalog.DeleteScrobble(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

// ------- subscriptions -------

func (s *Server) handleSubscriptionList(w http.ResponseWriter, r *http.Request) {
	subscriptions, err := s.catalog.ListSubscriptionsByUser(r.Context(), requestUser(r).ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]subscriptionDTO, 0, len(subscriptions))
	for _, sub := range subscriptions {
		out = append(out, renderSubscription(sub))
	}
	s.respond(w, out)
}

type subscriptionCreateRequest struct {
	ExternalID  string `json:"external_id"`
	MediaType   string `json:"media_type"`
	IntervalSec int64  `json:"interval_sec"`
	Description string `json:"description"`
}

func (s *Server) handleSubscriptionCreate(w http.ResponseWriter, r *http.Request) {
	req, err := decode[subscriptionCreateRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	create := catalog.SubscriptionCreate{
		User:        requestUser(r).ID,
		ExternalID:  req.ExternalID,
		Description: req.Description,
	}
	if req.MediaType != "" {
		mediaType, err := catalog.ParseMediaType(req.MediaType)
		if err != nil {
			s.respondError(w, err)
			return
		}
		create.MediaType = mediaType
	}
	if req.IntervalSec > 0 {
		create.Interval = time.Duration(req.IntervalSec) * time.Second
		create.HasInterval = true
	}
	sub, err := s.catalog.CreateSubscription(r.Context(), create)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderSubscription(sub))
}

type externalIDRequest struct {
	ExternalID string `json:"external_id"`
}

func (s *Server) handleSubscriptionDelete(w http.ResponseWriter, r *http.Request) {
	req, err := decode[externalIDRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.catalog.DeleteSubscription(r.Context(), requestUser(r).ID, req.ExternalID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

// handleSubscriptionSubmit forces an immediate submission regardless of
// the subscription's interval.
func (s *Server) handleSubscriptionSubmit(w http.ResponseWriter, r *http.Request) {
	if s.subscriptions == nil {
		s.respondError(w, shared.Internalf("subscriptions are not configured"))
		return
	}
	req, err := decode[externalIDRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.subscriptions.Submit(r.Context(), requestUser(r).ID, req.ExternalID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

// ------- downloads -------

func (s *Server) handleDownloadList(w http.ResponseWriter, r *http.Request) {
	if s.downloader == nil {
		s.respondError(w, shared.Internalf("downloads are not configured"))
		return
	}
	downloads := s.downloader.List(requestUser(r).ID)
	out := make([]downloadDTO, 0, len(downloads))
	for _, download := range downloads {
		out = append(out, renderDownload(download))
	}
	s.respond(w, out)
}

func (s *Server) handleDownloadRequest(w http.ResponseWriter, r *http.Request) {
	if s.downloader == nil {
		s.respondError(w, shared.Internalf("downloads are not configured"))
		return
	}
	req, err := decode[externalIDRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if req.ExternalID == "" {
		s.respondError(w, shared.Invalidf("external id is required"))
		return
	}
	s.downloader.Request(requestUser(r).ID, services.ExternalMediaID(req.ExternalID))
	s.respond(w, nil)
}

func (s *Server) handleDownloadDelete(w http.ResponseWriter, r *http.Request) {
	if s.downloader == nil {
		s.respondError(w, shared.Internalf("downloads are not configured"))
		return
	}
	req, err := decode[externalIDRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.downloader.Delete(requestUser(r).ID, services.ExternalMediaID(req.ExternalID))
	s.respond(w, nil)
}

// ------- metadata -------

func (s *Server) handleMetadataProviders(w http.ResponseWriter, r *http.Request) {
	if s.metadata == nil {
		s.respondError(w, shared.Internalf("metadata is not configured"))
		return
	}
	s.respond(w, s.metadata.Providers())
}

type metadataViewRequest struct {
	ID        string   `json:"id"`
	Providers []string `json:"providers"`
	Tracks    bool     `json:"tracks"`
}

func (s *Server) handleMetadataView(w http.ResponseWriter, r *http.Request) {
	if s.metadata == nil {
		s.respondError(w, shared.Internalf("metadata is not configured"))
		return
	}
	req, err := decode[metadataViewRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := parseTarget(req.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	switch id.Kind() {
	case catalog.KindArtist:
		m, err := s.metadata.ViewArtist(r.Context(), catalog.ArtistID(id), req.Providers)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respond(w, renderArtistMetadata(m))
	case catalog.KindAlbum:
		if req.Tracks {
			m, err := s.metadata.ViewAlbumTracks(r.Context(), catalog.AlbumID(id), req.Providers)
			if err != nil {
				s.respondError(w, err)
				return
			}
			s.respond(w, renderAlbumTracksMetadata(m))
			return
		}
		m, err := s.metadata.ViewAlbum(r.Context(), catalog.AlbumID(id), req.Providers)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respond(w, renderAlbumMetadata(m))
	case catalog.KindTrack:
		m, err := s.metadata.ViewTrack(r.Context(), catalog.TrackID(id), req.Providers)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respond(w, renderTrackMetadata(m))
	default:
		s.respondError(w, shared.Invalidf("metadata is not available for %s", id))
	}
}

type metadataFetchRequest struct {
	ID        string   `json:"id"`
	Providers []string `json:"providers"`
	Fields    []string `json:"fields"`
	Tracks    bool     `json:"tracks"`
}

func parseFetchMask(fields []string) (metadata.FetchMask, error) {
	if len(fields) == 0 {
		return metadata.FetchAll, nil
	}
	var mask metadata.FetchMask
	for _, field := range fields {
		switch field {
		case "name":
			mask |= metadata.FetchName
		case "properties":
			mask |= metadata.FetchProperties
		case "cover":
			mask |= metadata.FetchCover
		case "genres":
			mask |= metadata.FetchGenres
		default:
			return 0, shared.Invalidf("unknown metadata field %q", field)
		}
	}
	return mask, nil
}

// handleMetadataFetch commits provider answers to the catalog. For an
// album with Tracks set, the album's tracks are refreshed instead of the
// album row itself.
func (s *Server) handleMetadataFetch(w http.ResponseWriter, r *http.Request) {
	if s.metadata == nil {
		s.respondError(w, shared.Internalf("metadata is not configured"))
		return
	}
	req, err := decode[metadataFetchRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := parseTarget(req.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	mask, err := parseFetchMask(req.Fields)
	if err != nil {
		s.respondError(w, err)
		return
	}
	switch id.Kind() {
	case catalog.KindArtist:
		err = s.metadata.FetchArtist(r.Context(), catalog.ArtistID(id), req.Providers, mask)
	case catalog.KindAlbum:
		if req.Tracks {
			err = s.metadata.FetchAlbumTracks(r.Context(), catalog.AlbumID(id), req.Providers, mask)
		} else {
			err = s.metadata.FetchAlbum(r.Context(), catalog.AlbumID(id), req.Providers, mask)
		}
	case catalog.KindTrack:
		err = s.metadata.FetchTrack(r.Context(), catalog.TrackID(id), req.Providers, mask)
	default:
		err = shared.Invalidf("metadata is not available for %s", id)
	}
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}
