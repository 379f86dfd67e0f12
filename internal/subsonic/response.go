package subsonic

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"strconv"
	"time"

	"github.com/diogo464/sonar-sub000/internal/catalog"
)

const (
	apiVersion    = "1.16.1"
	serverType    = "sonar"
	serverVersion = "0.1.0"
)

// responseBody is the single tagged element inside the envelope. bodyKey
// names the JSON field; the XML element name comes from the type's
// XMLName.
type responseBody interface {
	bodyKey() string
}

// Scalar fields render as XML attributes, lists as child elements.

type License struct {
	XMLName xml.Name `json:"-" xml:"license"`
	Valid   bool     `json:"valid" xml:"valid,attr"`
}

func (License) bodyKey() string { return "license" }

type MusicFolder struct {
	ID   int    `json:"id" xml:"id,attr"`
	Name string `json:"name" xml:"name,attr"`
}

type MusicFolders struct {
	XMLName xml.Name      `json:"-" xml:"musicFolders"`
	Folder  []MusicFolder `json:"musicFolder" xml:"musicFolder"`
}

func (MusicFolders) bodyKey() string { return "musicFolders" }

type ArtistID3 struct {
	ID         string     `json:"id" xml:"id,attr"`
	Name       string     `json:"name" xml:"name,attr"`
	CoverArt   string     `json:"coverArt,omitempty" xml:"coverArt,attr,omitempty"`
	AlbumCount uint32     `json:"albumCount" xml:"albumCount,attr"`
	Starred    string     `json:"starred,omitempty" xml:"starred,attr,omitempty"`
	Album      []AlbumID3 `json:"album,omitempty" xml:"album,omitempty"`
}

type AlbumID3 struct {
	ID        string  `json:"id" xml:"id,attr"`
	Name      string  `json:"name" xml:"name,attr"`
	Artist    string  `json:"artist,omitempty" xml:"artist,attr,omitempty"`
	ArtistID  string  `json:"artistId,omitempty" xml:"artistId,attr,omitempty"`
	CoverArt  string  `json:"coverArt,omitempty" xml:"coverArt,attr,omitempty"`
	SongCount uint32  `json:"songCount" xml:"songCount,attr"`
	Duration  int64   `json:"duration" xml:"duration,attr"`
	PlayCount uint32  `json:"playCount" xml:"playCount,attr"`
	Created   string  `json:"created" xml:"created,attr"`
	Starred   string  `json:"starred,omitempty" xml:"starred,attr,omitempty"`
	Genre     string  `json:"genre,omitempty" xml:"genre,attr,omitempty"`
	Song      []Child `json:"song,omitempty" xml:"song,omitempty"`
}

// Child is the subsonic song record.
type Child struct {
	ID          string `json:"id" xml:"id,attr"`
	Parent      string `json:"parent,omitempty" xml:"parent,attr,omitempty"`
	IsDir       bool   `json:"isDir" xml:"isDir,attr"`
	Title       string `json:"title" xml:"title,attr"`
	Album       string `json:"album,omitempty" xml:"album,attr,omitempty"`
	Artist      string `json:"artist,omitempty" xml:"artist,attr,omitempty"`
	AlbumID     string `json:"albumId,omitempty" xml:"albumId,attr,omitempty"`
	ArtistID    string `json:"artistId,omitempty" xml:"artistId,attr,omitempty"`
	CoverArt    string `json:"coverArt,omitempty" xml:"coverArt,attr,omitempty"`
	Duration    int64  `json:"duration" xml:"duration,attr"`
	PlayCount   uint32 `json:"playCount" xml:"playCount,attr"`
	Track       int    `json:"track,omitempty" xml:"track,attr,omitempty"`
	ContentType string `json:"contentType,omitempty" xml:"contentType,attr,omitempty"`
	Suffix      string `json:"suffix,omitempty" xml:"suffix,attr,omitempty"`
	Size        int64  `json:"size,omitempty" xml:"size,attr,omitempty"`
	Starred     string `json:"starred,omitempty" xml:"starred,attr,omitempty"`
	Created     string `json:"created" xml:"created,attr"`
	Type        string `json:"type" xml:"type,attr"`
}

type IndexID3 struct {
	Name   string      `json:"name" xml:"name,attr"`
	Artist []ArtistID3 `json:"artist" xml:"artist"`
}

type ArtistsID3 struct {
	XMLName         xml.Name   `json:"-" xml:"artists"`
	IgnoredArticles string     `json:"ignoredArticles" xml:"ignoredArticles,attr"`
	Index           []IndexID3 `json:"index,omitempty" xml:"index,omitempty"`
}

func (ArtistsID3) bodyKey() string { return "artists" }

type Indexes struct {
	XMLName         xml.Name   `json:"-" xml:"indexes"`
	LastModified    int64      `json:"lastModified" xml:"lastModified,attr"`
	IgnoredArticles string     `json:"ignoredArticles" xml:"ignoredArticles,attr"`
	Index           []IndexID3 `json:"index,omitempty" xml:"index,omitempty"`
}

func (Indexes) bodyKey() string { return "indexes" }

type ArtistWithAlbums struct {
	XMLName xml.Name `json:"-" xml:"artist"`
	ArtistID3
}

func (ArtistWithAlbums) bodyKey() string { return "artist" }

type AlbumWithSongs struct {
	XMLName xml.Name `json:"-" xml:"album"`
	AlbumID3
}

func (AlbumWithSongs) bodyKey() string { return "album" }

type Song struct {
	XMLName xml.Name `json:"-" xml:"song"`
	Child
}

func (Song) bodyKey() string { return "song" }

type AlbumList2 struct {
	XMLName xml.Name   `json:"-" xml:"albumList2"`
	Album   []AlbumID3 `json:"album,omitempty" xml:"album,omitempty"`
}

func (AlbumList2) bodyKey() string { return "albumList2" }

type SearchResult3 struct {
	XMLName xml.Name    `json:"-" xml:"searchResult3"`
	Artist  []ArtistID3 `json:"artist,omitempty" xml:"artist,omitempty"`
	Album   []AlbumID3  `json:"album,omitempty" xml:"album,omitempty"`
	Song    []Child     `json:"song,omitempty" xml:"song,omitempty"`
}

func (SearchResult3) bodyKey() string { return "searchResult3" }

type PlaylistID3 struct {
	ID        string  `json:"id" xml:"id,attr"`
	Name      string  `json:"name" xml:"name,attr"`
	Owner     string  `json:"owner,omitempty" xml:"owner,attr,omitempty"`
	SongCount uint32  `json:"songCount" xml:"songCount,attr"`
	Duration  int64   `json:"duration" xml:"duration,attr"`
	Created   string  `json:"created" xml:"created,attr"`
	CoverArt  string  `json:"coverArt,omitempty" xml:"coverArt,attr,omitempty"`
	Entry     []Child `json:"entry,omitempty" xml:"entry,omitempty"`
}

type Playlists struct {
	XMLName  xml.Name      `json:"-" xml:"playlists"`
	Playlist []PlaylistID3 `json:"playlist,omitempty" xml:"playlist,omitempty"`
}

func (Playlists) bodyKey() string { return "playlists" }

type PlaylistWithSongs struct {
	XMLName xml.Name `json:"-" xml:"playlist"`
	PlaylistID3
}

func (PlaylistWithSongs) bodyKey() string { return "playlist" }

type Starred2 struct {
	XMLName xml.Name    `json:"-" xml:"starred2"`
	Artist  []ArtistID3 `json:"artist,omitempty" xml:"artist,omitempty"`
	Album   []AlbumID3  `json:"album,omitempty" xml:"album,omitempty"`
	Song    []Child     `json:"song,omitempty" xml:"song,omitempty"`
}

func (Starred2) bodyKey() string { return "starred2" }

type GenreEntry struct {
	SongCount  uint32 `json:"songCount" xml:"songCount,attr"`
	AlbumCount uint32 `json:"albumCount" xml:"albumCount,attr"`
	Value      string `json:"value" xml:",chardata"`
}

type GenreList struct {
	XMLName xml.Name     `json:"-" xml:"genres"`
	Genre   []GenreEntry `json:"genre,omitempty" xml:"genre,omitempty"`
}

func (GenreList) bodyKey() string { return "genres" }

type RandomSongs struct {
	XMLName xml.Name `json:"-" xml:"randomSongs"`
	Song    []Child  `json:"song,omitempty" xml:"song,omitempty"`
}

func (RandomSongs) bodyKey() string { return "randomSongs" }

type wireErrorBody struct {
	XMLName xml.Name  `json:"-" xml:"error"`
	Code    ErrorCode `json:"code" xml:"code,attr"`
	Message string    `json:"message,omitempty" xml:"message,attr,omitempty"`
}

func (wireErrorBody) bodyKey() string { return "error" }

// format is the response rendering selected by the `f` parameter.
type format string

const (
	formatXML  format = "xml"
	formatJSON format = "json"
)

type xmlEnvelope struct {
	XMLName       xml.Name `xml:"subsonic-response"`
	Status        string   `xml:"status,attr"`
	Version       string   `xml:"version,attr"`
	Type          string   `xml:"type,attr"`
	ServerVersion string   `xml:"serverVersion,attr"`
	OpenSubsonic  bool     `xml:"openSubsonic,attr"`
	Body          any
}

func writeEnvelope(w http.ResponseWriter, f format, status string, body responseBody) {
	switch f {
	case formatJSON:
		payload := map[string]any{
			"status":        status,
			"version":       apiVersion,
			"type":          serverType,
			"serverVersion": serverVersion,
			"openSubsonic":  true,
		}
		if body != nil {
			payload[body.bodyKey()] = body
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"subsonic-response": payload})
	default:
		envelope := xmlEnvelope{
			Status:        status,
			Version:       apiVersion,
			Type:          serverType,
			ServerVersion: serverVersion,
			OpenSubsonic:  true,
		}
		if body != nil {
			envelope.Body = body
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(xml.Header))
		xml.NewEncoder(w).Encode(envelope)
	}
}

func writeOK(w http.ResponseWriter, f format, body responseBody) {
	writeEnvelope(w, f, "ok", body)
}

func writeError(w http.ResponseWriter, f format, err error) {
	code, message := errorCodeFor(err)
	writeEnvelope(w, f, "failed", wireErrorBody{Code: code, Message: message})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func renderArtist(artist catalog.Artist, starred map[catalog.ID]time.Time) ArtistID3 {
	out := ArtistID3{
		ID:         artist.ID.String(),
		Name:       artist.Name,
		AlbumCount: artist.AlbumCount,
	}
	if !artist.CoverArt.IsZero() {
		out.CoverArt = artist.CoverArt.String()
	}
	if at, ok := starred[artist.ID.ID()]; ok {
		out.Starred = formatTime(at)
	}
	return out
}

func renderAlbum(album catalog.Album, artist catalog.Artist, starred map[catalog.ID]time.Time) AlbumID3 {
	out := AlbumID3{
		ID:        album.ID.String(),
		Name:      album.Name,
		Artist:    artist.Name,
		ArtistID:  artist.ID.String(),
		SongCount: album.TrackCount,
		Duration:  int64(album.Duration.Seconds()),
		PlayCount: album.ListenCount,
		Created:   formatTime(album.CreatedAt),
	}
	if !album.CoverArt.IsZero() {
		out.CoverArt = album.CoverArt.String()
	}
	if len(album.Genres) > 0 {
		out.Genre = album.Genres[0].String()
	}
	if at, ok := starred[album.ID.ID()]; ok {
		out.Starred = formatTime(at)
	}
	return out
}

func renderTrack(track catalog.Track, album catalog.Album, artist catalog.Artist, starred map[catalog.ID]time.Time) Child {
	out := Child{
		ID:        track.ID.String(),
		Parent:    album.ID.String(),
		Title:     track.Name,
		Album:     album.Name,
		Artist:    artist.Name,
		AlbumID:   album.ID.String(),
		ArtistID:  artist.ID.String(),
		Duration:  int64(track.Duration.Seconds()),
		PlayCount: track.ListenCount,
		Created:   formatTime(track.CreatedAt),
		Type:      "music",
	}
	if !track.CoverArt.IsZero() {
		out.CoverArt = track.CoverArt.String()
	} else if !album.CoverArt.IsZero() {
		out.CoverArt = album.CoverArt.String()
	}
	if number, ok := track.Properties["track-number"]; ok {
		if n, err := strconv.Atoi(string(number)); err == nil {
			out.Track = n
		}
	}
	if at, ok := starred[track.ID.ID()]; ok {
		out.Starred = formatTime(at)
	}
	return out
}

func renderPlaylist(playlist catalog.Playlist, owner catalog.User) PlaylistID3 {
	out := PlaylistID3{
		ID:        playlist.ID.String(),
		Name:      playlist.Name,
		Owner:     owner.Username.String(),
		SongCount: playlist.TrackCount,
		Duration:  int64(playlist.Duration.Seconds()),
		Created:   formatTime(playlist.CreatedAt),
	}
	if !playlist.CoverArt.IsZero() {
		out.CoverArt = playlist.CoverArt.String()
	}
	return out
}
