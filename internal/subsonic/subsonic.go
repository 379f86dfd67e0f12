// package subsonic exposes the catalog over the legacy subsonic HTTP
// API. Every method is an HTTP GET under /rest/<name> or
// /rest/<name>.view with all parameters in the query string; responses
// are a `subsonic-response` envelope rendered as XML (default) or JSON.
package subsonic

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// handlerFunc serves one subsonic method. A nil body renders an empty ok
// envelope; returning errStreamed means the handler wrote the response
// itself.
type handlerFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error)

// errStreamed is returned by streaming handlers that bypass the envelope.
var errStreamed = codedErrorf(CodeGeneric, "response already streamed")

// Server dispatches subsonic methods against the catalog.
type Server struct {
	catalog *catalog.Catalog
	logger  *log.Logger
	methods map[string]handlerFunc
}

// NewServer creates a subsonic server.
func NewServer(c *catalog.Catalog, logger *log.Logger) *Server {
	s := &Server{catalog: c, logger: logger}
	s.methods = map[string]handlerFunc{
		"ping":            s.handlePing,
		"getLicense":      s.handleGetLicense,
		"getMusicFolders": s.handleGetMusicFolders,
		"getIndexes":      s.handleGetIndexes,
		"getArtists":      s.handleGetArtists,
		"getArtist":       s.handleGetArtist,
		"getAlbum":        s.handleGetAlbum,
		"getAlbumList2":   s.handleGetAlbumList2,
		"getSong":         s.handleGetSong,
		"getRandomSongs":  s.handleGetRandomSongs,
		"getGenres":       s.handleGetGenres,
		"search3":         s.handleSearch3,
		"getPlaylists":    s.handleGetPlaylists,
		"getPlaylist":     s.handleGetPlaylist,
		"createPlaylist":  s.handleCreatePlaylist,
		"updatePlaylist":  s.handleUpdatePlaylist,
		"deletePlaylist":  s.handleDeletePlaylist,
		"getCoverArt":     s.handleGetCoverArt,
		"getAvatar":       s.handleGetAvatar,
		"stream":          s.handleStream,
		"download":        s.handleStream,
		"scrobble":        s.handleScrobble,
		"star":            s.handleStar,
		"unstar":          s.handleUnstar,
		"setRating":       s.handleSetRating,
		"getStarred2":     s.handleGetStarred2,
	}
	return s
}

// Router mounts every method under /rest/.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/rest/{method}", s.dispatch)
	return r
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimSuffix(chi.URLParam(r, "method"), ".view")
	q := parseQuery(r.URL.Query())
	auth := parseAuthParams(q)
	f := auth.format()

	if auth.Format == "jsonp" {
		writeError(w, formatXML, codedErrorf(CodeGeneric, "jsonp is not supported"))
		return
	}

	handler, ok := s.methods[method]
	if !ok {
		writeError(w, f, codedErrorf(CodeDataNotFound, "unknown method %q", method))
		return
	}

	user, err := s.authenticate(r.Context(), auth)
	if err != nil {
		s.logger.Debug("subsonic authentication failed", "method", method, "user", auth.Username, "err", err)
		writeError(w, f, err)
		return
	}

	body, err := handler(r.Context(), w, r, user, q)
	if err == errStreamed {
		return
	}
	if err != nil {
		s.logger.Debug("subsonic method failed", "method", method, "user", auth.Username, "err", err)
		writeError(w, f, err)
		return
	}
	writeOK(w, f, body)
}

// authenticate resolves the request's credentials to a user. Password
// hashes are salted, so the token+salt scheme cannot be verified; clients
// must send a password.
func (s *Server) authenticate(ctx context.Context, auth authParams) (catalog.User, error) {
	if auth.Username == "" {
		return catalog.User{}, codedErrorf(CodeRequiredParamMissing, "required parameter %q is missing", "u")
	}
	if auth.Token != "" || auth.Salt != "" {
		return catalog.User{}, codedErrorf(CodeTokenAuthNotSupported, "token authentication is not supported")
	}
	password, ok := auth.password()
	if !ok {
		return catalog.User{}, codedErrorf(CodeRequiredParamMissing, "required parameter %q is missing", "p")
	}

	username, err := catalog.ParseUsername(auth.Username)
	if err != nil {
		return catalog.User{}, codedErrorf(CodeWrongUsernameOrPass, "wrong username or password")
	}
	userID, err := s.catalog.Authenticate(ctx, username, password)
	if err != nil {
		return catalog.User{}, codedErrorf(CodeWrongUsernameOrPass, "wrong username or password")
	}
	user, err := s.catalog.GetUser(ctx, userID)
	if err != nil {
		return catalog.User{}, shared.Internalf("failed to load user: %v", err)
	}
	return user, nil
}

// starredAt maps a user's favorites by target id.
func (s *Server) starredAt(ctx context.Context, user catalog.UserID) (map[catalog.ID]time.Time, error) {
	favorites, err := s.catalog.ListFavorites(ctx, user)
	if err != nil {
		return nil, err
	}
	out := make(map[catalog.ID]time.Time, len(favorites))
	for _, favorite := range favorites {
		out[favorite.Target] = favorite.FavoriteAt
	}
	return out, nil
}
