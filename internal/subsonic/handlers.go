package subsonic

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/diogo464/sonar-sub000/internal/catalog"
)

func (s *Server) handlePing(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	return nil, nil
}

func (s *Server) handleGetLicense(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	return License{Valid: true}, nil
}

func (s *Server) handleGetMusicFolders(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	return MusicFolders{Folder: []MusicFolder{{ID: 1, Name: "Music"}}}, nil
}

// artistIndexes groups all artists into subsonic letter indexes.
func (s *Server) artistIndexes(ctx context.Context, user catalog.User) ([]IndexID3, error) {
	artists, err := s.catalog.ListArtists(ctx, catalog.ListParams{})
	if err != nil {
		return nil, err
	}
	starred, err := s.starredAt(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]ArtistID3)
	for _, artist := range artists {
		letter := "#"
		for _, r := range artist.Name {
			if unicode.IsLetter(r) {
				letter = strings.ToUpper(string(r))
			}
			break
		}
		grouped[letter] = append(grouped[letter], renderArtist(artist, starred))
	}

	letters := make([]string, 0, len(grouped))
	for letter := range grouped {
		letters = append(letters, letter)
	}
	sort.Strings(letters)

	indexes := make([]IndexID3, 0, len(letters))
	for _, letter := range letters {
		entries := grouped[letter]
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		indexes = append(indexes, IndexID3{Name: letter, Artist: entries})
	}
	return indexes, nil
}

func (s *Server) handleGetArtists(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	indexes, err := s.artistIndexes(ctx, user)
	if err != nil {
		return nil, err
	}
	return ArtistsID3{IgnoredArticles: "", Index: indexes}, nil
}

func (s *Server) handleGetIndexes(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	indexes, err := s.artistIndexes(ctx, user)
	if err != nil {
		return nil, err
	}
	return Indexes{LastModified: time.Now().UnixMilli(), IgnoredArticles: "", Index: indexes}, nil
}

func (s *Server) handleGetArtist(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	value, err := q.required("id")
	if err != nil {
		return nil, err
	}
	id, err := catalog.ParseArtistID(value)
	if err != nil {
		return nil, codedErrorf(CodeDataNotFound, "unknown artist id %q", value)
	}

	artist, err := s.catalog.GetArtist(ctx, id)
	if err != nil {
		return nil, err
	}
	albums, err := s.catalog.ListAlbumsByArtist(ctx, id, catalog.ListParams{})
	if err != nil {
		return nil, err
	}
	starred, err := s.starredAt(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	out := renderArtist(artist, starred)
	for _, album := range albums {
		out.Album = append(out.Album, renderAlbum(album, artist, starred))
	}
	return ArtistWithAlbums{ArtistID3: out}, nil
}

func (s *Server) handleGetAlbum(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	value, err := q.required("id")
	if err != nil {
		return nil, err
	}
	id, err := catalog.ParseAlbumID(value)
	if err != nil {
		return nil, codedErrorf(CodeDataNotFound, "unknown album id %q", value)
	}

	album, err := s.catalog.GetAlbum(ctx, id)
	if err != nil {
		return nil, err
	}
	artist, err := s.catalog.GetArtist(ctx, album.Artist)
	if err != nil {
		return nil, err
	}
	tracks, err := s.catalog.ListTracksByAlbum(ctx, id, catalog.ListParams{})
	if err != nil {
		return nil, err
	}
	starred, err := s.starredAt(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	out := renderAlbum(album, artist, starred)
	for _, track := range tracks {
		out.Song = append(out.Song, renderTrack(track, album, artist, starred))
	}
	return AlbumWithSongs{AlbumID3: out}, nil
}

func (s *Server) handleGetAlbumList2(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	listType, err := q.required("type")
	if err != nil {
		return nil, err
	}
	size := q.int("size", 10)
	offset := q.int("offset", 0)

	albums, err := s.catalog.ListAlbums(ctx, catalog.ListParams{})
	if err != nil {
		return nil, err
	}
	starred, err := s.starredAt(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	switch listType {
	case "newest", "recent":
		sort.Slice(albums, func(i, j int) bool { return albums[i].CreatedAt.After(albums[j].CreatedAt) })
	case "frequent":
		sort.Slice(albums, func(i, j int) bool { return albums[i].ListenCount > albums[j].ListenCount })
	case "random":
		rand.Shuffle(len(albums), func(i, j int) { albums[i], albums[j] = albums[j], albums[i] })
	default:
		sort.Slice(albums, func(i, j int) bool { return albums[i].Name < albums[j].Name })
	}

	if offset > len(albums) {
		offset = len(albums)
	}
	end := offset + size
	if end > len(albums) {
		end = len(albums)
	}

	out := AlbumList2{}
	artists := make(map[catalog.ArtistID]catalog.Artist)
	for _, album := range albums[offset:end] {
		artist, ok := artists[album.Artist]
		if !ok {
			if artist, err = s.catalog.GetArtist(ctx, album.Artist); err != nil {
				return nil, err
			}
			artists[album.Artist] = artist
		}
		out.Album = append(out.Album, renderAlbum(album, artist, starred))
	}
	return out, nil
}

// trackChild hydrates a track's album and artist for rendering.
func (s *Server) trackChild(ctx context.Context, track catalog.Track, starred map[catalog.ID]time.Time) (Child, error) {
	album, err := s.catalog.GetAlbum(ctx, track.Album)
	if err != nil {
		return Child{}, err
	}
	artist, err := s.catalog.GetArtist(ctx, album.Artist)
	if err != nil {
		return Child{}, err
	}
	return renderTrack(track, album, artist, starred), nil
}

func (s *Server) trackChildren(ctx context.Context, tracks []catalog.Track, starred map[catalog.ID]time.Time) ([]Child, error) {
	var out []Child
	for _, track := range tracks {
		child, err := s.trackChild(ctx, track, starred)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

func (s *Server) handleGetSong(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	id, err := q.trackID("id")
	if err != nil {
		return nil, err
	}
	track, err := s.catalog.GetTrack(ctx, id)
	if err != nil {
		return nil, err
	}
	starred, err := s.starredAt(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	child, err := s.trackChild(ctx, track, starred)
	if err != nil {
		return nil, err
	}
	return Song{Child: child}, nil
}

func (s *Server) handleGetRandomSongs(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	size := q.int("size", 10)
	tracks, err := s.catalog.ListRandomTracks(ctx, int64(size))
	if err != nil {
		return nil, err
	}
	starred, err := s.starredAt(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	songs, err := s.trackChildren(ctx, tracks, starred)
	if err != nil {
		return nil, err
	}
	return RandomSongs{Song: songs}, nil
}

func (s *Server) handleGetGenres(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	genres, err := s.catalog.ListGenres(ctx)
	if err != nil {
		return nil, err
	}
	out := GenreList{}
	for genre, counts := range genres {
		out.Genre = append(out.Genre, GenreEntry{
			Value:      genre.String(),
			AlbumCount: counts[0],
			SongCount:  counts[1],
		})
	}
	sort.Slice(out.Genre, func(i, j int) bool { return out.Genre[i].Value < out.Genre[j].Value })
	return out, nil
}

func (s *Server) handleSearch3(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	queryString, err := q.required("query")
	if err != nil {
		return nil, err
	}
	limit := q.int("songCount", 20) + q.int("albumCount", 20) + q.int("artistCount", 20)

	results, err := s.catalog.Search(ctx, queryString, int64(limit))
	if err != nil {
		return nil, err
	}
	starred, err := s.starredAt(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	out := SearchResult3{}
	for _, artist := range results.Artists() {
		out.Artist = append(out.Artist, renderArtist(artist, starred))
	}
	for _, album := range results.Albums() {
		artist, err := s.catalog.GetArtist(ctx, album.Artist)
		if err != nil {
			return nil, err
		}
		out.Album = append(out.Album, renderAlbum(album, artist, starred))
	}
	songs, err := s.trackChildren(ctx, results.Tracks(), starred)
	if err != nil {
		return nil, err
	}
	out.Song = songs
	return out, nil
}

func (s *Server) handleGetPlaylists(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	playlists, err := s.catalog.ListPlaylistsByUser(ctx, user.ID, catalog.ListParams{})
	if err != nil {
		return nil, err
	}
	out := Playlists{}
	for _, playlist := range playlists {
		out.Playlist = append(out.Playlist, renderPlaylist(playlist, user))
	}
	return out, nil
}

func (s *Server) playlistWithSongs(ctx context.Context, user catalog.User, id catalog.PlaylistID) (PlaylistWithSongs, error) {
	playlist, err := s.catalog.GetPlaylist(ctx, id)
	if err != nil {
		return PlaylistWithSongs{}, err
	}
	owner, err := s.catalog.GetUser(ctx, playlist.Owner)
	if err != nil {
		return PlaylistWithSongs{}, err
	}
	tracks, err := s.catalog.ListPlaylistTracks(ctx, id, catalog.ListParams{})
	if err != nil {
		return PlaylistWithSongs{}, err
	}
	starred, err := s.starredAt(ctx, user.ID)
	if err != nil {
		return PlaylistWithSongs{}, err
	}

	out := renderPlaylist(playlist, owner)
	if out.Entry, err = s.trackChildren(ctx, tracks, starred); err != nil {
		return PlaylistWithSongs{}, err
	}
	return PlaylistWithSongs{PlaylistID3: out}, nil
}

func (s *Server) handleGetPlaylist(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	id, err := q.playlistID("id")
	if err != nil {
		return nil, err
	}
	return s.playlistWithSongs(ctx, user, id)
}

func (s *Server) parseSongIDs(values []string) ([]catalog.TrackID, error) {
	var out []catalog.TrackID
	for _, value := range values {
		id, err := catalog.ParseTrackID(value)
		if err != nil {
			return nil, codedErrorf(CodeDataNotFound, "unknown song id %q", value)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Server) handleCreatePlaylist(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	songs, err := s.parseSongIDs(q.list("songId"))
	if err != nil {
		return nil, err
	}

	// with playlistId this overwrites an existing playlist's tracks
	if value := q.string("playlistId"); value != "" {
		id, err := catalog.ParsePlaylistID(value)
		if err != nil {
			return nil, codedErrorf(CodeDataNotFound, "unknown playlist id %q", value)
		}
		if err := s.checkPlaylistOwner(ctx, user, id); err != nil {
			return nil, err
		}
		if err := s.catalog.ClearPlaylistTracks(ctx, id); err != nil {
			return nil, err
		}
		if len(songs) > 0 {
			if err := s.catalog.InsertPlaylistTracks(ctx, id, songs); err != nil {
				return nil, err
			}
		}
		return s.playlistWithSongs(ctx, user, id)
	}

	name, err := q.required("name")
	if err != nil {
		return nil, err
	}
	playlist, err := s.catalog.CreatePlaylist(ctx, catalog.PlaylistCreate{
		Name:   name,
		Owner:  user.ID,
		Tracks: songs,
	})
	if err != nil {
		return nil, err
	}
	return s.playlistWithSongs(ctx, user, playlist.ID)
}

func (s *Server) checkPlaylistOwner(ctx context.Context, user catalog.User, id catalog.PlaylistID) error {
	playlist, err := s.catalog.GetPlaylist(ctx, id)
	if err != nil {
		return err
	}
	if playlist.Owner != user.ID && !user.Admin {
		return codedErrorf(CodeNotAuthorized, "user is not authorized for this playlist")
	}
	return nil
}

func (s *Server) handleUpdatePlaylist(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	id, err := q.playlistID("playlistId")
	if err != nil {
		return nil, err
	}
	if err := s.checkPlaylistOwner(ctx, user, id); err != nil {
		return nil, err
	}

	if name := q.string("name"); name != "" {
		if _, err := s.catalog.UpdatePlaylist(ctx, id, catalog.PlaylistUpdate{Name: catalog.Set(name)}); err != nil {
			return nil, err
		}
	}
	if add, err := s.parseSongIDs(q.list("songIdToAdd")); err != nil {
		return nil, err
	} else if len(add) > 0 {
		if err := s.catalog.InsertPlaylistTracks(ctx, id, add); err != nil {
			return nil, err
		}
	}
	if indexes := q.list("songIndexToRemove"); len(indexes) > 0 {
		tracks, err := s.catalog.ListPlaylistTracks(ctx, id, catalog.ListParams{})
		if err != nil {
			return nil, err
		}
		var remove []catalog.TrackID
		for _, value := range indexes {
			index, err := strconv.Atoi(value)
			if err != nil || index < 0 || index >= len(tracks) {
				return nil, codedErrorf(CodeGeneric, "song index %q is out of range", value)
			}
			remove = append(remove, tracks[index].ID)
		}
		if err := s.catalog.RemovePlaylistTracks(ctx, id, remove); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (s *Server) handleDeletePlaylist(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	id, err := q.playlistID("id")
	if err != nil {
		return nil, err
	}
	if err := s.checkPlaylistOwner(ctx, user, id); err != nil {
		return nil, err
	}
	return nil, s.catalog.DeletePlaylist(ctx, id)
}

// coverImageID resolves a cover art parameter, which may name an image
// directly or any entity that carries one.
func (s *Server) coverImageID(ctx context.Context, id catalog.ID) (catalog.ImageID, error) {
	switch id.Kind() {
	case catalog.KindImage:
		return catalog.ImageID(id), nil
	case catalog.KindArtist:
		artist, err := s.catalog.GetArtist(ctx, catalog.ArtistID(id))
		if err != nil {
			return 0, err
		}
		return artist.CoverArt, nil
	case catalog.KindAlbum:
		album, err := s.catalog.GetAlbum(ctx, catalog.AlbumID(id))
		if err != nil {
			return 0, err
		}
		return album.CoverArt, nil
	case catalog.KindTrack:
		track, err := s.catalog.GetTrack(ctx, catalog.TrackID(id))
		if err != nil {
			return 0, err
		}
		if track.CoverArt.IsZero() {
			album, err := s.catalog.GetAlbum(ctx, track.Album)
			if err != nil {
				return 0, err
			}
			return album.CoverArt, nil
		}
		return track.CoverArt, nil
	case catalog.KindPlaylist:
		playlist, err := s.catalog.GetPlaylist(ctx, catalog.PlaylistID(id))
		if err != nil {
			return 0, err
		}
		return playlist.CoverArt, nil
	default:
		return 0, codedErrorf(CodeDataNotFound, "no cover art for %q", id)
	}
}

func (s *Server) handleGetCoverArt(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	id, err := q.id("id")
	if err != nil {
		return nil, err
	}
	imageID, err := s.coverImageID(ctx, id)
	if err != nil {
		return nil, err
	}
	if imageID.IsZero() {
		return nil, codedErrorf(CodeDataNotFound, "no cover art for %q", id)
	}

	content, image, err := s.catalog.DownloadImage(ctx, imageID)
	if err != nil {
		return nil, err
	}
	defer content.Close()

	w.Header().Set("Content-Type", image.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(image.Size, 10))
	io.Copy(w, content)
	return nil, errStreamed
}

func (s *Server) handleGetAvatar(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	raw, err := q.required("username")
	if err != nil {
		return nil, err
	}
	username, err := catalog.ParseUsername(raw)
	if err != nil {
		return nil, codedErrorf(CodeDataNotFound, "unknown user %q", raw)
	}
	target, err := s.catalog.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if target.Avatar.IsZero() {
		return nil, codedErrorf(CodeDataNotFound, "no avatar for %q", raw)
	}

	content, image, err := s.catalog.DownloadImage(ctx, target.Avatar)
	if err != nil {
		return nil, err
	}
	defer content.Close()

	w.Header().Set("Content-Type", image.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(image.Size, 10))
	io.Copy(w, content)
	return nil, errStreamed
}

// parseRangeHeader parses a single `bytes=start-end` range.
func parseRangeHeader(header string, size int64) (catalog.ByteRange, bool) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return catalog.ByteRange{}, false
	}
	start, end, ok := strings.Cut(spec, "-")
	if !ok || start == "" {
		return catalog.ByteRange{}, false
	}
	offset, err := strconv.ParseInt(start, 10, 64)
	if err != nil || offset < 0 || offset >= size {
		return catalog.ByteRange{}, false
	}
	length := size - offset
	if end != "" {
		last, err := strconv.ParseInt(end, 10, 64)
		if err != nil || last < offset {
			return catalog.ByteRange{}, false
		}
		if last >= size {
			last = size - 1
		}
		length = last - offset + 1
	}
	return catalog.ByteRange{Offset: offset, Length: length}, true
}

func (s *Server) handleStream(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	id, err := q.trackID("id")
	if err != nil {
		return nil, err
	}
	track, err := s.catalog.GetTrack(ctx, id)
	if err != nil {
		return nil, err
	}
	if track.Audio.IsZero() {
		return nil, codedErrorf(CodeDataNotFound, "track %q has no audio", id)
	}
	audio, err := s.catalog.GetAudio(ctx, track.Audio)
	if err != nil {
		return nil, err
	}

	rng := catalog.ByteRange{}
	partial := false
	if header := r.Header.Get("Range"); header != "" {
		if parsed, ok := parseRangeHeader(header, audio.Size); ok {
			rng = parsed
			partial = !parsed.IsFull()
		}
	}

	content, _, err := s.catalog.DownloadTrack(ctx, id, rng)
	if err != nil {
		return nil, err
	}
	defer content.Close()

	w.Header().Set("Content-Type", audio.MimeType)
	w.Header().Set("Accept-Ranges", "bytes")
	if partial {
		w.Header().Set("Content-Length", strconv.FormatInt(rng.Length, 10))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Offset, rng.Offset+rng.Length-1, audio.Size))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(audio.Size, 10))
	}
	io.Copy(w, content)
	return nil, errStreamed
}

func (s *Server) handleScrobble(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	ids, err := s.parseSongIDs(q.list("id"))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, codedErrorf(CodeRequiredParamMissing, "required parameter %q is missing", "id")
	}
	// submission=false is a now-playing notification; nothing to record
	if q.string("submission") == "false" {
		return nil, nil
	}

	listenAt := time.Now()
	if value := q.string("time"); value != "" {
		if millis, err := strconv.ParseInt(value, 10, 64); err == nil {
			listenAt = time.UnixMilli(millis)
		}
	}
	for _, id := range ids {
		_, err := s.catalog.CreateScrobble(ctx, catalog.ScrobbleCreate{
			User:         user.ID,
			Track:        id,
			ListenAt:     listenAt,
			ListenDevice: q.string("c"),
		})
		if err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (s *Server) starTargets(q query) ([]catalog.ID, error) {
	var out []catalog.ID
	for _, key := range []string{"id", "albumId", "artistId"} {
		for _, value := range q.list(key) {
			id, err := catalog.ParseID(value)
			if err != nil {
				return nil, codedErrorf(CodeDataNotFound, "unknown id %q", value)
			}
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, codedErrorf(CodeRequiredParamMissing, "required parameter %q is missing", "id")
	}
	return out, nil
}

func (s *Server) handleStar(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	targets, err := s.starTargets(q)
	if err != nil {
		return nil, err
	}
	for _, target := range targets {
		if err := s.catalog.PutFavorite(ctx, user.ID, target); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (s *Server) handleUnstar(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	targets, err := s.starTargets(q)
	if err != nil {
		return nil, err
	}
	for _, target := range targets {
		if err := s.catalog.RemoveFavorite(ctx, user.ID, target); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (s *Server) handleSetRating(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	id, err := q.id("id")
	if err != nil {
		return nil, err
	}
	value, err := q.required("rating")
	if err != nil {
		return nil, err
	}
	rating, err := strconv.Atoi(value)
	if err != nil || rating < 1 || rating > 5 {
		return nil, codedErrorf(CodeGeneric, "rating %q is out of range", value)
	}

	update := catalog.PropertySet("rating", catalog.PropertyValue(strconv.Itoa(rating)))
	return nil, s.catalog.UpdateUserProperties(ctx, user.ID, id, []catalog.PropertyUpdate{update})
}

func (s *Server) handleGetStarred2(ctx context.Context, w http.ResponseWriter, r *http.Request, user catalog.User, q query) (responseBody, error) {
	favorites, err := s.catalog.ListFavorites(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	starred := make(map[catalog.ID]time.Time, len(favorites))
	for _, favorite := range favorites {
		starred[favorite.Target] = favorite.FavoriteAt
	}

	out := Starred2{}
	for _, favorite := range favorites {
		switch favorite.Target.Kind() {
		case catalog.KindArtist:
			artist, err := s.catalog.GetArtist(ctx, catalog.ArtistID(favorite.Target))
			if err != nil {
				continue
			}
			out.Artist = append(out.Artist, renderArtist(artist, starred))
		case catalog.KindAlbum:
			album, err := s.catalog.GetAlbum(ctx, catalog.AlbumID(favorite.Target))
			if err != nil {
				continue
			}
			artist, err := s.catalog.GetArtist(ctx, album.Artist)
			if err != nil {
				continue
			}
			out.Album = append(out.Album, renderAlbum(album, artist, starred))
		case catalog.KindTrack:
			track, err := s.catalog.GetTrack(ctx, catalog.TrackID(favorite.Target))
			if err != nil {
				continue
			}
			child, err := s.trackChild(ctx, track, starred)
			if err != nil {
				continue
			}
			out.Song = append(out.Song, child)
		}
	}
	return out, nil
}
