package server

import (
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/formatter"
	"github.com/diogo464/sonar-sub000/internal/importer"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

type listRequest struct {
	Offset int64 `json:"offset"`
	Limit  int64 `json:"limit"`
}

func (r listRequest) params() catalog.ListParams {
	return catalog.ListParams{Offset: r.Offset, Limit: r.Limit}
}

type idRequest struct {
	ID string `json:"id"`
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

type nameRequest struct {
	Name string `json:"name"`
}

// imageUpdate maps an optional wire image reference to a field update:
// absent keeps the current value, empty clears it.
func imageUpdate(raw *string) (catalog.ValueUpdate[catalog.ImageID], error) {
	if raw == nil {
		return catalog.ValueUpdate[catalog.ImageID]{}, nil
	}
	if *raw == "" {
		return catalog.Unset[catalog.ImageID](), nil
	}
	id, err := catalog.ParseImageID(*raw)
	if err != nil {
		return catalog.ValueUpdate[catalog.ImageID]{}, shared.Invalidf("invalid image id %q", *raw)
	}
	return catalog.Set(id), nil
}

func nameUpdate(raw *string) catalog.ValueUpdate[string] {
	if raw == nil {
		return catalog.ValueUpdate[string]{}
	}
	return catalog.Set(*raw)
}

func parseImageRef(raw string) (catalog.ImageID, error) {
	if raw == "" {
		return 0, nil
	}
	return catalog.ParseImageID(raw)
}

// ------- artists -------

func (s *Server) handleArtistList(w http.ResponseWriter, r *http.Request) {
	req, err := decode[listRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	artists, err := s.catalog.ListArtists(r.Context(), req.params())
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]artistDTO, 0, len(artists))
	for _, artist := range artists {
		out = append(out, renderArtist(artist))
	}
	s.respond(w, out)
}

func (s *Server) handleArtistGet(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseArtistID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown artist %q", req.ID))
		return
	}
	artist, err := s.catalog.GetArtist(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderArtist(artist))
}

func (s *Server) handleArtistGetBulk(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idsRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	ids := make([]catalog.ArtistID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := catalog.ParseArtistID(raw)
		if err != nil {
			s.respondError(w, shared.NotFoundf("unknown artist %q", raw))
			return
		}
		ids = append(ids, id)
	}
	artists, err := s.catalog.GetArtistBulk(r.Context(), ids)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]artistDTO, 0, len(artists))
	for _, artist := range artists {
		out = append(out, renderArtist(artist))
	}
	s.respond(w, out)
}

func (s *Server) handleArtistLookup(w http.ResponseWriter, r *http.Request) {
	req, err := decode[nameRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	artist, err := s.catalog.GetArtistByName(r.Context(), req.Name)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderArtist(artist))
}

type artistCreateRequest struct {
	Name       string            `json:"name"`
	CoverArt   string            `json:"cover_art"`
	Genres     []string          `json:"genres"`
	Properties map[string]string `json:"properties"`
}

func (s *Server) handleArtistCreate(w http.ResponseWriter, r *http.Request) {
	req, err := decode[artistCreateRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	coverArt, err := parseImageRef(req.CoverArt)
	if err != nil {
		s.respondError(w, shared.Invalidf("invalid image id %q", req.CoverArt))
		return
	}
	genres, err := catalog.ParseGenres(req.Genres)
	if err != nil {
		s.respondError(w, err)
		return
	}
	properties, err := parseProperties(req.Properties)
	if err != nil {
		s.respondError(w, err)
		return
	}
	artist, err := s.catalog.CreateArtist(r.Context(), catalog.ArtistCreate{
		Name:       req.Name,
		CoverArt:   coverArt,
		Genres:     genres,
		Properties: properties,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderArtist(artist))
}

type artistUpdateRequest struct {
	ID               string            `json:"id"`
	Name             *string           `json:"name"`
	CoverArt         *string           `json:"cover_art"`
	PropertiesSet    map[string]string `json:"properties_set"`
	PropertiesRemove []string          `json:"properties_remove"`
	GenresSet        []string          `json:"genres_set"`
	GenresRemove     []string          `json:"genres_remove"`
}

func (s *Server) handleArtistUpdate(w http.ResponseWriter, r *http.Request) {
	req, err := decode[artistUpdateRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseArtistID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown artist %q", req.ID))
		return
	}
	coverArt, err := imageUpdate(req.CoverArt)
	if err != nil {
		s.respondError(w, err)
		return
	}
	properties, err := propertyUpdates(req.PropertiesSet, req.PropertiesRemove)
	if err != nil {
		s.respondError(w, err)
		return
	}
	genres, err := genreUpdates(req.GenresSet, req.GenresRemove)
	if err != nil {
		s.respondError(w, err)
		return
	}
	artist, err := s.catalog.UpdateArtist(r.Context(), id, catalog.ArtistUpdate{
		Name:       nameUpdate(req.Name),
		CoverArt:   coverArt,
		Properties: properties,
		Genres:     genres,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderArtist(artist))
}

func (s *Server) handleArtistDelete(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseArtistID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown artist %q", req.ID))
		return
	}
	if err := s.catalog.DeleteArtist(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

// ------- albums -------

func (s *Server) handleAlbumList(w http.ResponseWriter, r *http.Request) {
	req, err := decode[listRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	albums, err := s.catalog.ListAlbums(r.Context(), req.params())
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]albumDTO, 0, len(albums))
	for _, album := range albums {
		out = append(out, renderAlbum(album))
	}
	s.respond(w, out)
}

type listByRequest struct {
	ID     string `json:"id"`
	Offset int64  `json:"offset"`
	Limit  int64  `json:"limit"`
}

func (s *Server) handleAlbumListByArtist(w http.ResponseWriter, r *http.Request) {
	req, err := decode[listByRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	artist, err := catalog.ParseArtistID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown artist %q", req.ID))
		return
	}
	albums, err := s.catalog.ListAlbumsByArtist(r.Context(), artist, catalog.ListParams{Offset: req.Offset, Limit: req.Limit})
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]albumDTO, 0, len(albums))
	for _, album := range albums {
		out = append(out, renderAlbum(album))
	}
	s.respond(w, out)
}

func (s *Server) handleAlbumGet(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseAlbumID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown album %q", req.ID))
		return
	}
	album, err := s.catalog.GetAlbum(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderAlbum(album))
}

func (s *Server) handleAlbumGetBulk(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idsRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	ids := make([]catalog.AlbumID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := catalog.ParseAlbumID(raw)
		if err != nil {
			s.respondError(w, shared.NotFoundf("unknown album %q", raw))
			return
		}
		ids = append(ids, id)
	}
	albums, err := s.catalog.GetAlbumBulk(r.Context(), ids)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]albumDTO, 0, len(albums))
	for _, album := range albums {
		out = append(out, renderAlbum(album))
	}
	s.respond(w, out)
}

type albumCreateRequest struct {
	Name       string            `json:"name"`
	Artist     string            `json:"artist"`
	CoverArt   string            `json:"cover_art"`
	Genres     []string          `json:"genres"`
	Properties map[string]string `json:"properties"`
}

func (s *Server) handleAlbumCreate(w http.ResponseWriter, r *http.Request) {
	req, err := decode[albumCreateRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	artist, err := catalog.ParseArtistID(req.Artist)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown artist %q", req.Artist))
		return
	}
	coverArt, err := parseImageRef(req.CoverArt)
	if err != nil {
		s.respondError(w, shared.Invalidf("invalid image id %q", req.CoverArt))
		return
	}
	genres, err := catalog.ParseGenres(req.Genres)
	if err != nil {
		s.respondError(w, err)
		return
	}
	properties, err := parseProperties(req.Properties)
	if err != nil {
		s.respondError(w, err)
		return
	}
	album, err := s.catalog.CreateAlbum(r.Context(), catalog.AlbumCreate{
		Name:       req.Name,
		Artist:     artist,
		CoverArt:   coverArt,
		Genres:     genres,
		Properties: properties,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderAlbum(album))
}

type albumUpdateRequest struct {
	ID               string            `json:"id"`
	Name             *string           `json:"name"`
	Artist           *string           `json:"artist"`
	CoverArt         *string           `json:"cover_art"`
	PropertiesSet    map[string]string `json:"properties_set"`
	PropertiesRemove []string          `json:"properties_remove"`
	GenresSet        []string          `json:"genres_set"`
	GenresRemove     []string          `json:"genres_remove"`
}

func (s *Server) handleAlbumUpdate(w http.ResponseWriter, r *http.Request) {
	req, err := decode[albumUpdateRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseAlbumID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown album %q", req.ID))
		return
	}
	update := catalog.AlbumUpdate{Name: nameUpdate(req.Name)}
	if req.Artist != nil {
		artist, err := catalog.ParseArtistID(*req.Artist)
		if err != nil {
			s.respondError(w, shared.NotFoundf("unknown artist %q", *req.Artist))
			return
		}
		update.Artist = catalog.Set(artist)
	}
	update.CoverArt, err = imageUpdate(req.CoverArt)
	if err != nil {
		s.respondError(w, err)
		return
	}
	update.Properties, err = propertyUpdates(req.PropertiesSet, req.PropertiesRemove)
	if err != nil {
		s.respondError(w, err)
		return
	}
	update.Genres, err = genreUpdates(req.GenresSet, req.GenresRemove)
	if err != nil {
		s.respondError(w, err)
		return
	}
	album, err := s.catalog.UpdateAlbum(r.Context(), id, update)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderAlbum(album))
}

func (s *Server) handleAlbumDelete(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseAlbumID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown album %q", req.ID))
		return
	}
	if err := s.catalog.DeleteAlbum(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

// ------- tracks -------

func (s *Server) handleTrackList(w http.ResponseWriter, r *http.Request) {
	req, err := decode[listRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	tracks, err := s.catalog.ListTracks(r.Context(), req.params())
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]trackDTO, 0, len(tracks))
	for _, track := range tracks {
		out = append(out, renderTrack(track))
	}
	s.respond(w, out)
}

func (s *Server) handleTrackListByAlbum(w http.ResponseWriter, r *http.Request) {
	req, err := decode[listByRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	album, err := catalog.ParseAlbumID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown album %q", req.ID))
		return
	}
	tracks, err := s.catalog.ListTracksByAlbum(r.Context(), album, catalog.ListParams{Offset: req.Offset, Limit: req.Limit})
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]trackDTO, 0, len(tracks))
	for _, track := range tracks {
		out = append(out, renderTrack(track))
	}
	s.respond(w, out)
}

func (s *Server) handleTrackGet(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseTrackID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown track %q", req.ID))
		return
	}
	track, err := s.catalog.GetTrack(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderTrack(track))
}

func (s *Server) handleTrackGetBulk(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idsRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	ids := make([]catalog.TrackID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := catalog.ParseTrackID(raw)
		if err != nil {
			s.respondError(w, shared.NotFoundf("unknown track %q", raw))
			return
		}
		ids = append(ids, id)
	}
	tracks, err := s.catalog.GetTrackBulk(r.Context(), ids)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]trackDTO, 0, len(tracks))
	for _, track := range tracks {
		out = append(out, renderTrack(track))
	}
	s.respond(w, out)
}

func (s *Server) handleTrackLyrics(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseTrackID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown track %q", req.ID))
		return
	}
	lyrics, err := s.catalog.GetTrackLyrics(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderLyrics(lyrics))
}

// handleTrackStat reports the preferred audio of a track.
func (s *Server) handleTrackStat(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseTrackID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown track %q", req.ID))
		return
	}
	track, err := s.catalog.GetTrack(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if track.Audio.IsZero() {
		s.respondError(w, shared.NotFoundf("track %s has no audio", id))
		return
	}
	audio, err := s.catalog.GetAudio(r.Context(), track.Audio)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderAudio(audio))
}

type trackCreateRequest struct {
	Name       string            `json:"name"`
	Album      string            `json:"album"`
	CoverArt   string            `json:"cover_art"`
	Properties map[string]string `json:"properties"`
}

func (s *Server) handleTrackCreate(w http.ResponseWriter, r *http.Request) {
	req, err := decode[trackCreateRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	album, err := catalog.ParseAlbumID(req.Album)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown album %q", req.Album))
		return
	}
	coverArt, err := parseImageRef(req.CoverArt)
	if err != nil {
		s.respondError(w, shared.Invalidf("invalid image id %q", req.CoverArt))
		return
	}
	properties, err := parseProperties(req.Properties)
	if err != nil {
		s.respondError(w, err)
		return
	}
	track, err := s.catalog.CreateTrack(r.Context(), catalog.TrackCreate{
		Name:       req.Name,
		Album:      album,
		CoverArt:   coverArt,
		Properties: properties,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderTrack(track))
}

type trackUpdateRequest struct {
	ID               string            `json:"id"`
	Name             *string           `json:"name"`
	Album            *string           `json:"album"`
	CoverArt         *string           `json:"cover_art"`
	Lyrics           *lyricsDTO        `json:"lyrics"`
	PropertiesSet    map[string]string `json:"properties_set"`
	PropertiesRemove []string          `json:"properties_remove"`
}

func (s *Server) handleTrackUpdate(w http.ResponseWriter, r *http.Request) {
	req, err := decode[trackUpdateRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseTrackID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown track %q", req.ID))
		return
	}
	update := catalog.TrackUpdate{Name: nameUpdate(req.Name)}
	if req.Album != nil {
		album, err := catalog.ParseAlbumID(*req.Album)
		if err != nil {
			s.respondError(w, shared.NotFoundf("unknown album %q", *req.Album))
			return
		}
		update.Album = catalog.Set(album)
	}
	update.CoverArt, err = imageUpdate(req.CoverArt)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if req.Lyrics != nil {
		lyrics := parseLyrics(*req.Lyrics)
		update.Lyrics = &lyrics
	}
	update.Properties, err = propertyUpdates(req.PropertiesSet, req.PropertiesRemove)
	if err != nil {
		s.respondError(w, err)
		return
	}
	track, err := s.catalog.UpdateTrack(r.Context(), id, update)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderTrack(track))
}

func parseLyrics(dto lyricsDTO) catalog.Lyrics {
	lines := make([]catalog.LyricsLine, 0, len(dto.Lines))
	for _, line := range dto.Lines {
		lines = append(lines, catalog.LyricsLine{
			Offset:   time.Duration(line.OffsetMS) * time.Millisecond,
			Duration: time.Duration(line.DurationMS) * time.Millisecond,
			Text:     line.Text,
		})
	}
	return catalog.Lyrics{Kind: catalog.LyricsKind(dto.Kind), Lines: lines}
}

func (s *Server) handleTrackDelete(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseTrackID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown track %q", req.ID))
		return
	}
	if err := s.catalog.DeleteTrack(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

// handleTrackDownload streams the preferred audio. A single byte range of
// the form `bytes=start-end` is honored with a 206.
func (s *Server) handleTrackDownload(w http.ResponseWriter, r *http.Request) {
	id, err := catalog.ParseTrackID(r.URL.Query().Get("id"))
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown track %q", r.URL.Query().Get("id")))
		return
	}

	audio, err := s.trackAudio(r, id)
	if err != nil {
		s.respondError(w, err)
		return
	}

	rng, ok := parseByteRange(r.Header.Get("Range"), audio.Size)
	reader, audio, err := s.catalog.DownloadTrack(r.Context(), id, rng)
	if err != nil {
		s.respondError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", audio.MimeType)
	w.Header().Set("Accept-Ranges", "bytes")
	if ok {
		end := rng.Offset + rng.Length - 1
		w.Header().Set("Content-Length", strconv.FormatInt(rng.Length, 10))
		w.Header().Set("Content-Range",
			"bytes "+strconv.FormatInt(rng.Offset, 10)+"-"+strconv.FormatInt(end, 10)+"/"+strconv.FormatInt(audio.Size, 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(audio.Size, 10))
	}
	io.Copy(w, reader)
}

func (s *Server) trackAudio(r *http.Request, id catalog.TrackID) (catalog.Audio, error) {
	track, err := s.catalog.GetTrack(r.Context(), id)
	if err != nil {
		return catalog.Audio{}, err
	}
	if track.Audio.IsZero() {
		return catalog.Audio{}, shared.NotFoundf("track %s has no audio", id)
	}
	return s.catalog.GetAudio(r.Context(), track.Audio)
}

// parseByteRange parses a single `bytes=start-end` header against the
// content size. Open-ended and malformed ranges fall back to the full
// content.
func parseByteRange(header string, size int64) (catalog.ByteRange, bool) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return catalog.ByteRange{}, false
	}
	startRaw, endRaw, ok := strings.Cut(spec, "-")
	if !ok {
		return catalog.ByteRange{}, false
	}
	start, err := strconv.ParseInt(startRaw, 10, 64)
	if err != nil || start < 0 || start >= size {
		return catalog.ByteRange{}, false
	}
	end := size - 1
	if endRaw != "" {
		end, err = strconv.ParseInt(endRaw, 10, 64)
		if err != nil || end < start {
			return catalog.ByteRange{}, false
		}
		if end >= size {
			end = size - 1
		}
	}
	return catalog.ByteRange{Offset: start, Length: end - start + 1}, true
}

// ------- playlists -------

func (s *Server) handlePlaylistList(w http.ResponseWriter, r *http.Request) {
	req, err := decode[listRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	playlists, err := s.catalog.ListPlaylistsByUser(r.Context(), requestUser(r).ID, req.params())
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]playlistDTO, 0, len(playlists))
	for _, playlist := range playlists {
		out = append(out, renderPlaylist(playlist))
	}
	s.respond(w, out)
}

func (s *Server) playlistByID(r *http.Request, raw string) (catalog.Playlist, error) {
	id, err := catalog.ParsePlaylistID(raw)
	if err != nil {
		return catalog.Playlist{}, shared.NotFoundf("unknown playlist %q", raw)
	}
	return s.catalog.GetPlaylist(r.Context(), id)
}

// ownedPlaylist resolves a playlist id and checks that the requesting
// user owns it or is an admin.
func (s *Server) ownedPlaylist(r *http.Request, raw string) (catalog.Playlist, error) {
	playlist, err := s.playlistByID(r, raw)
	if err != nil {
		return catalog.Playlist{}, err
	}
	user := requestUser(r)
	if playlist.Owner != user.ID && !user.Admin {
		return catalog.Playlist{}, shared.Unauthorizedf("playlist %s is not owned by %s", playlist.ID, user.Username)
	}
	return playlist, nil
}

func (s *Server) handlePlaylistGet(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	playlist, err := s.playlistByID(r, req.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderPlaylist(playlist))
}

func (s *Server) handlePlaylistGetBulk(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idsRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	ids := make([]catalog.PlaylistID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := catalog.ParsePlaylistID(raw)
		if err != nil {
			s.respondError(w, shared.NotFoundf("unknown playlist %q", raw))
			return
		}
		ids = append(ids, id)
	}
	playlists, err := s.catalog.GetPlaylistBulk(r.Context(), ids)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]playlistDTO, 0, len(playlists))
	for _, playlist := range playlists {
		out = append(out, renderPlaylist(playlist))
	}
	s.respond(w, out)
}

type playlistCreateRequest struct {
	Name       string            `json:"name"`
	Tracks     []string          `json:"tracks"`
	Properties map[string]string `json:"properties"`
}

func (s *Server) handlePlaylistCreate(w http.ResponseWriter, r *http.Request) {
	req, err := decode[playlistCreateRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	tracks, err := parseTrackIDs(req.Tracks)
	if err != nil {
		s.respondError(w, err)
		return
	}
	properties, err := parseProperties(req.Properties)
	if err != nil {
		s.respondError(w, err)
		return
	}
	playlist, err := s.catalog.CreatePlaylist(r.Context(), catalog.PlaylistCreate{
		Name:       req.Name,
		Owner:      requestUser(r).ID,
		Tracks:     tracks,
		Properties: properties,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderPlaylist(playlist))
}

func parseTrackIDs(raw []string) ([]catalog.TrackID, error) {
	tracks := make([]catalog.TrackID, 0, len(raw))
	for _, s := range raw {
		id, err := catalog.ParseTrackID(s)
		if err != nil {
			return nil, shared.NotFoundf("unknown track %q", s)
		}
		tracks = append(tracks, id)
	}
	return tracks, nil
}

type playlistUpdateRequest struct {
	ID               string            `json:"id"`
	Name             *string           `json:"name"`
	CoverArt         *string           `json:"cover_art"`
	PropertiesSet    map[string]string `json:"properties_set"`
	PropertiesRemove []string          `json:"properties_remove"`
}

func (s *Server) handlePlaylistUpdate(w http.ResponseWriter, r *http.Request) {
	req, err := decode[playlistUpdateRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	playlist, err := s.ownedPlaylist(r, req.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	update := catalog.PlaylistUpdate{Name: nameUpdate(req.Name)}
	update.CoverArt, err = imageUpdate(req.CoverArt)
	if err != nil {
		s.respondError(w, err)
		return
	}
	update.Properties, err = propertyUpdates(req.PropertiesSet, req.PropertiesRemove)
	if err != nil {
		s.respondError(w, err)
		return
	}
	playlist, err = s.catalog.UpdatePlaylist(r.Context(), playlist.ID, update)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderPlaylist(playlist))
}

func (s *Server) handlePlaylistDelete(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	playlist, err := s.ownedPlaylist(r, req.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.catalog.DeletePlaylist(r.Context(), playlist.ID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

type playlistDuplicateRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handlePlaylistDuplicate(w http.ResponseWriter, r *http.Request) {
	req, err := decode[playlistDuplicateRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	playlist, err := s.playlistByID(r, req.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	duplicate, err := s.catalog.DuplicatePlaylist(r.Context(), playlist.ID, req.Name)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderPlaylist(duplicate))
}

func (s *Server) handlePlaylistTrackList(w http.ResponseWriter, r *http.Request) {
	req, err := decode[listByRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	playlist, err := s.playlistByID(r, req.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	tracks, err := s.catalog.ListPlaylistTracks(r.Context(), playlist.ID, catalog.ListParams{Offset: req.Offset, Limit: req.Limit})
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]trackDTO, 0, len(tracks))
	for _, track := range tracks {
		out = append(out, renderTrack(track))
	}
	s.respond(w, out)
}

type playlistTracksRequest struct {
	ID     string   `json:"id"`
	Tracks []string `json:"tracks"`
}

func (s *Server) handlePlaylistTrackInsert(w http.ResponseWriter, r *http.Request) {
	req, err := decode[playlistTracksRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	playlist, err := s.ownedPlaylist(r, req.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	tracks, err := parseTrackIDs(req.Tracks)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.catalog.InsertPlaylistTracks(r.Context(), playlist.ID, tracks); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

func (s *Server) handlePlaylistTrackRemove(w http.ResponseWriter, r *http.Request) {
	req, err := decode[playlistTracksRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	playlist, err := s.ownedPlaylist(r, req.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	tracks, err := parseTrackIDs(req.Tracks)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.catalog.RemovePlaylistTracks(r.Context(), playlist.ID, tracks); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

func (s *Server) handlePlaylistTrackClear(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	playlist, err := s.ownedPlaylist(r, req.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.catalog.ClearPlaylistTracks(r.Context(), playlist.ID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

// handlePlaylistExport renders the playlist in an interchange format.
// The `format` query parameter is one of csv, m3u or text (default).
func (s *Server) handlePlaylistExport(w http.ResponseWriter, r *http.Request) {
	playlist, err := s.playlistByID(r, r.URL.Query().Get("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	tracks, err := s.catalog.ListPlaylistTracks(r.Context(), playlist.ID, catalog.ListParams{})
	if err != nil {
		s.respondError(w, err)
		return
	}

	export := &formatter.PlaylistExport{Playlist: playlist}
	albums := make(map[catalog.AlbumID]catalog.Album)
	artists := make(map[catalog.ArtistID]catalog.Artist)
	for _, track := range tracks {
		album, ok := albums[track.Album]
		if !ok {
			if album, err = s.catalog.GetAlbum(r.Context(), track.Album); err != nil {
				s.respondError(w, err)
				return
			}
			albums[track.Album] = album
		}
		artist, ok := artists[album.Artist]
		if !ok {
			if artist, err = s.catalog.GetArtist(r.Context(), album.Artist); err != nil {
				s.respondError(w, err)
				return
			}
			artists[album.Artist] = artist
		}
		export.Entries = append(export.Entries, formatter.Entry{Track: track, Album: album, Artist: artist})
	}

	switch r.URL.Query().Get("format") {
	case "csv":
		data, err := formatter.ExportToCSV(export)
		if err != nil {
			s.respondError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write(data)
	case "m3u":
		w.Header().Set("Content-Type", "audio/x-mpegurl")
		w.Write(formatter.ExportToM3U(export))
	case "", "text":
		w.Header().Set("Content-Type", "text/plain")
		w.Write(formatter.ExportToText(export))
	default:
		s.respondError(w, shared.Invalidf("unknown export format %q", r.URL.Query().Get("format")))
	}
}

// ------- images -------

// handleImageCreate stores the raw request body as an image; the mime
// type comes from the Content-Type header.
func (s *Server) handleImageCreate(w http.ResponseWriter, r *http.Request) {
	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" || strings.HasPrefix(mimeType, "application/json") {
		s.respondError(w, shared.Invalidf("image content type is required"))
		return
	}
	image, err := s.catalog.CreateImage(r.Context(), catalog.ImageCreate{
		MimeType: mimeType,
		Content:  r.Body,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderImage(image))
}

func (s *Server) handleImageDelete(w http.ResponseWriter, r *http.Request) {
	req, err := decode[idRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, err := catalog.ParseImageID(req.ID)
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown image %q", req.ID))
		return
	}
	if err := s.catalog.DeleteImage(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, nil)
}

func (s *Server) handleImageDownload(w http.ResponseWriter, r *http.Request) {
	id, err := catalog.ParseImageID(r.URL.Query().Get("id"))
	if err != nil {
		s.respondError(w, shared.NotFoundf("unknown image %q", r.URL.Query().Get("id")))
		return
	}
	reader, image, err := s.catalog.DownloadImage(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	defer reader.Close()
	w.Header().Set("Content-Type", image.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(image.Size, 10))
	io.Copy(w, reader)
}

// ------- search, genres, import -------

type searchRequest struct {
	Query string `json:"query"`
	Limit uint32 `json:"limit"`
}

type searchResponse struct {
	Artists   []artistDTO   `json:"artists"`
	Albums    []albumDTO    `json:"albums"`
	Tracks    []trackDTO    `json:"tracks"`
	Playlists []playlistDTO `json:"playlists"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, err := decode[searchRequest](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}
	results, err := s.catalog.Search(r.Context(), req.Query, int64(limit))
	if err != nil {
		s.respondError(w, err)
		return
	}
	resp := searchResponse{
		Artists:   []artistDTO{},
		Albums:    []albumDTO{},
		Tracks:    []trackDTO{},
		Playlists: []playlistDTO{},
	}
	for _, artist := range results.Artists() {
		resp.Artists = append(resp.Artists, renderArtist(artist))
	}
	for _, album := range results.Albums() {
		resp.Albums = append(resp.Albums, renderAlbum(album))
	}
	for _, track := range results.Tracks() {
		resp.Tracks = append(resp.Tracks, renderTrack(track))
	}
	for _, playlist := range results.Playlists() {
		resp.Playlists = append(resp.Playlists, renderPlaylist(playlist))
	}
	s.respond(w, resp)
}

type genreEntry struct {
	Genre      string `json:"genre"`
	AlbumCount uint32 `json:"album_count"`
	TrackCount uint32 `json:"track_count"`
}

func (s *Server) handleGenreList(w http.ResponseWriter, r *http.Request) {
	genres, err := s.catalog.ListGenres(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]genreEntry, 0, len(genres))
	for genre, counts := range genres {
		out = append(out, genreEntry{
			Genre:      string(genre),
			AlbumCount: counts[0],
			TrackCount: counts[1],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Genre < out[j].Genre })
	s.respond(w, out)
}

// handleImport ingests an audio file. Multipart uploads take the content
// and filename from the `file` part; raw uploads take the body with the
// filename in the `filename` query parameter. The filename drives both
// tag extraction fallbacks and the stored audio name. Optional `artist`
// and `album` query parameters pin the owners to existing rows instead
// of resolving them from the extracted names.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		s.respondError(w, shared.Internalf("import is not configured"))
		return
	}

	req := importer.Request{Filename: r.URL.Query().Get("filename"), Content: r.Body}
	if raw := r.URL.Query().Get("artist"); raw != "" {
		artist, err := catalog.ParseArtistID(raw)
		if err != nil {
			s.respondError(w, shared.NotFoundf("unknown artist %q", raw))
			return
		}
		req.Artist = artist
	}
	if raw := r.URL.Query().Get("album"); raw != "" {
		album, err := catalog.ParseAlbumID(raw)
		if err != nil {
			s.respondError(w, shared.NotFoundf("unknown album %q", raw))
			return
		}
		req.Album = album
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		reader, err := r.MultipartReader()
		if err != nil {
			s.respondError(w, shared.Invalidf("invalid multipart body: %v", err))
			return
		}
		part, err := reader.NextPart()
		for err == nil && part.FormName() != "file" {
			part, err = reader.NextPart()
		}
		if err != nil {
			s.respondError(w, shared.Invalidf("multipart body has no file part"))
			return
		}
		req.Content = part
		req.Filename = part.FileName()
	}
	if req.Filename == "" {
		s.respondError(w, shared.Invalidf("filename is required"))
		return
	}

	track, err := s.importer.Import(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, renderTrack(track))
}
