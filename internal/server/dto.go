package server

import (
	"time"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/metadata"
	"github.com/diogo464/sonar-sub000/internal/tasks"
)

// Entity ids travel on the wire in their textual sonar:<kind>:<hex> form;
// the raw integers are an internal detail. Optional image references
// render as empty strings when unset.

type artistDTO struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	CoverArt    string            `json:"cover_art,omitempty"`
	Genres      []string          `json:"genres,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	AlbumCount  uint32            `json:"album_count"`
	ListenCount uint32            `json:"listen_count"`
	CreatedAt   time.Time         `json:"created_at"`
}

type albumDTO struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Artist      string            `json:"artist"`
	CoverArt    string            `json:"cover_art,omitempty"`
	Genres      []string          `json:"genres,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	TrackCount  uint32            `json:"track_count"`
	DurationMS  int64             `json:"duration_ms"`
	ListenCount uint32            `json:"listen_count"`
	CreatedAt   time.Time         `json:"created_at"`
}

type trackDTO struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Album       string            `json:"album"`
	CoverArt    string            `json:"cover_art,omitempty"`
	Audio       string            `json:"audio,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	DurationMS  int64             `json:"duration_ms"`
	ListenCount uint32            `json:"listen_count"`
	CreatedAt   time.Time         `json:"created_at"`
}

type playlistDTO struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Owner      string            `json:"owner"`
	CoverArt   string            `json:"cover_art,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	TrackCount uint32            `json:"track_count"`
	DurationMS int64             `json:"duration_ms"`
	CreatedAt  time.Time         `json:"created_at"`
}

type userDTO struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Admin     bool      `json:"admin"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type audioDTO struct {
	ID          string    `json:"id"`
	Bitrate     uint32    `json:"bitrate"`
	DurationMS  int64     `json:"duration_ms"`
	NumChannels uint32    `json:"num_channels"`
	SampleFreq  uint32    `json:"sample_freq"`
	MimeType    string    `json:"mime_type"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

type imageDTO struct {
	ID        string    `json:"id"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

type lyricsLineDTO struct {
	OffsetMS   int64  `json:"offset_ms"`
	DurationMS int64  `json:"duration_ms"`
	Text       string `json:"text"`
}

type lyricsDTO struct {
	Kind  string          `json:"kind"`
	Lines []lyricsLineDTO `json:"lines"`
}

type scrobbleDTO struct {
	ID               string    `json:"id"`
	User             string    `json:"user"`
	Track            string    `json:"track"`
	ListenAt         time.Time `json:"listen_at"`
	ListenDurationMS int64     `json:"listen_duration_ms"`
	ListenDevice     string    `json:"listen_device,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type favoriteDTO struct {
	Target     string    `json:"target"`
	FavoriteAt time.Time `json:"favorite_at"`
}

type subscriptionDTO struct {
	User          string     `json:"user"`
	ExternalID    string     `json:"external_id"`
	MediaType     string     `json:"media_type,omitempty"`
	IntervalSec   int64      `json:"interval_sec,omitempty"`
	Description   string     `json:"description,omitempty"`
	LastSubmitted *time.Time `json:"last_submitted,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type downloadDTO struct {
	User        string `json:"user"`
	ExternalID  string `json:"external_id"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

type metadataDTO struct {
	Name       string            `json:"name,omitempty"`
	Genres     []string          `json:"genres,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	HasCover   bool              `json:"has_cover"`
	CoverMime  string            `json:"cover_mime,omitempty"`
	Lyrics     *lyricsDTO        `json:"lyrics,omitempty"`
}

func renderImageRef(id catalog.ImageID) string {
	if id.IsZero() {
		return ""
	}
	return id.String()
}

func renderAudioRef(id catalog.AudioID) string {
	if id.IsZero() {
		return ""
	}
	return id.String()
}

func renderGenres(genres catalog.Genres) []string {
	out := make([]string, 0, len(genres))
	for _, genre := range genres {
		out = append(out, string(genre))
	}
	return out
}

func renderProperties(properties catalog.Properties) map[string]string {
	out := make(map[string]string, len(properties))
	for k, v := range properties {
		out[string(k)] = string(v)
	}
	return out
}

func renderArtist(artist catalog.Artist) artistDTO {
	return artistDTO{
		ID:          artist.ID.String(),
		Name:        artist.Name,
		CoverArt:    renderImageRef(artist.CoverArt),
		Genres:      renderGenres(artist.Genres),
		Properties:  renderProperties(artist.Properties),
		AlbumCount:  artist.AlbumCount,
		ListenCount: artist.ListenCount,
		CreatedAt:   artist.CreatedAt.UTC(),
	}
}

func renderAlbum(album catalog.Album) albumDTO {
	return albumDTO{
		ID:          album.ID.String(),
		Name:        album.Name,
		Artist:      album.Artist.String(),
		CoverArt:    renderImageRef(album.CoverArt),
		Genres:      renderGenres(album.Genres),
		Properties:  renderProperties(album.Properties),
		TrackCount:  album.TrackCount,
		DurationMS:  album.Duration.Milliseconds(),
		ListenCount: album.ListenCount,
		CreatedAt:   album.CreatedAt.UTC(),
	}
}

func renderTrack(track catalog.Track) trackDTO {
	return trackDTO{
		ID:          track.ID.String(),
		Name:        track.Name,
		Album:       track.Album.String(),
		CoverArt:    renderImageRef(track.CoverArt),
		Audio:       renderAudioRef(track.Audio),
		Properties:  renderProperties(track.Properties),
		DurationMS:  track.Duration.Milliseconds(),
		ListenCount: track.ListenCount,
		CreatedAt:   track.CreatedAt.UTC(),
	}
}

func renderPlaylist(playlist catalog.Playlist) playlistDTO {
	return playlistDTO{
		ID:         playlist.ID.String(),
		Name:       playlist.Name,
		Owner:      playlist.Owner.String(),
		CoverArt:   renderImageRef(playlist.CoverArt),
		Properties: renderProperties(playlist.Properties),
		TrackCount: playlist.TrackCount,
		DurationMS: playlist.Duration.Milliseconds(),
		CreatedAt:  playlist.CreatedAt.UTC(),
	}
}

func renderUser(user catalog.User) userDTO {
	return userDTO{
		ID:        user.ID.String(),
		Username:  string(user.Username),
		Admin:     user.Admin,
		Avatar:    renderImageRef(user.Avatar),
		CreatedAt: user.CreatedAt.UTC(),
	}
}

func renderAudio(audio catalog.Audio) audioDTO {
	return audioDTO{
		ID:          audio.ID.String(),
		Bitrate:     audio.Bitrate,
		DurationMS:  audio.Duration.Milliseconds(),
		NumChannels: audio.NumChannels,
		SampleFreq:  audio.SampleFreq,
		MimeType:    audio.MimeType,
		Filename:    audio.Filename,
		Size:        audio.Size,
		CreatedAt:   audio.CreatedAt.UTC(),
	}
}

func renderImage(image catalog.Image) imageDTO {
	return imageDTO{
		ID:        image.ID.String(),
		MimeType:  image.MimeType,
		Size:      image.Size,
		CreatedAt: image.CreatedAt.UTC(),
	}
}

func renderLyrics(lyrics catalog.Lyrics) lyricsDTO {
	lines := make([]lyricsLineDTO, 0, len(lyrics.Lines))
	for _, line := range lyrics.Lines {
		lines = append(lines, lyricsLineDTO{
			OffsetMS:   line.Offset.Milliseconds(),
			DurationMS: line.Duration.Milliseconds(),
			Text:       line.Text,
		})
	}
	return lyricsDTO{Kind: string(lyrics.Kind), Lines: lines}
}

func renderScrobble(scrobble catalog.Scrobble) scrobbleDTO {
	return scrobbleDTO{
		ID:               scrobble.ID.String(),
		User:             scrobble.User.String(),
		Track:            scrobble.Track.String(),
		ListenAt:         scrobble.ListenAt.UTC(),
		ListenDurationMS: scrobble.ListenDuration.Milliseconds(),
		ListenDevice:     scrobble.ListenDevice,
		CreatedAt:        scrobble.CreatedAt.UTC(),
	}
}

func renderFavorite(favorite catalog.Favorite) favoriteDTO {
	return favoriteDTO{
		Target:     favorite.Target.String(),
		FavoriteAt: favorite.FavoriteAt.UTC(),
	}
}

func renderSubscription(sub catalog.Subscription) subscriptionDTO {
	dto := subscriptionDTO{
		User:        sub.User.String(),
		ExternalID:  sub.ExternalID,
		MediaType:   string(sub.MediaType),
		Description: sub.Description,
		CreatedAt:   sub.CreatedAt.UTC(),
	}
	if sub.HasInterval {
		dto.IntervalSec = int64(sub.Interval.Seconds())
	}
	if !sub.LastSubmitted.IsZero() {
		at := sub.LastSubmitted.UTC()
		dto.LastSubmitted = &at
	}
	return dto
}

func renderDownload(download tasks.Download) downloadDTO {
	return downloadDTO{
		User:        download.User.String(),
		ExternalID:  string(download.ExternalID),
		Status:      download.Status.String(),
		Description: download.Description,
	}
}

func renderArtistMetadata(m metadata.ArtistMetadata) metadataDTO {
	return metadataDTO{
		Name:       m.Name,
		Genres:     renderGenres(m.Genres),
		Properties: renderProperties(m.Properties),
		HasCover:   len(m.Cover) > 0,
		CoverMime:  m.CoverMime,
	}
}

func renderAlbumMetadata(m metadata.AlbumMetadata) metadataDTO {
	return metadataDTO{
		Name:       m.Name,
		Genres:     renderGenres(m.Genres),
		Properties: renderProperties(m.Properties),
		HasCover:   len(m.Cover) > 0,
		CoverMime:  m.CoverMime,
	}
}

func renderTrackMetadata(m metadata.TrackMetadata) metadataDTO {
	dto := metadataDTO{
		Name:       m.Name,
		Properties: renderProperties(m.Properties),
		HasCover:   len(m.Cover) > 0,
		CoverMime:  m.CoverMime,
	}
	if m.Lyrics != nil {
		lyrics := renderLyrics(*m.Lyrics)
		dto.Lyrics = &lyrics
	}
	return dto
}

func renderAlbumTracksMetadata(m metadata.AlbumTracksMetadata) map[string]metadataDTO {
	out := make(map[string]metadataDTO, len(m.Tracks))
	for id, track := range m.Tracks {
		out[id.String()] = renderTrackMetadata(track)
	}
	return out
}

// parseProperties validates a wire property map.
func parseProperties(raw map[string]string) (catalog.Properties, error) {
	properties := make(catalog.Properties, len(raw))
	for k, v := range raw {
		key, err := catalog.ParsePropertyKey(k)
		if err != nil {
			return nil, err
		}
		value, err := catalog.ParsePropertyValue(v)
		if err != nil {
			return nil, err
		}
		properties[key] = value
	}
	return properties, nil
}

// propertyUpdates turns a set map and a remove list into update entries.
func propertyUpdates(set map[string]string, remove []string) ([]catalog.PropertyUpdate, error) {
	setProperties, err := parseProperties(set)
	if err != nil {
		return nil, err
	}
	var updates []catalog.PropertyUpdate
	for _, k := range setProperties.Keys() {
		updates = append(updates, catalog.PropertySet(k, setProperties[k]))
	}
	for _, k := range remove {
		key, err := catalog.ParsePropertyKey(k)
		if err != nil {
			return nil, err
		}
		updates = append(updates, catalog.PropertyRemove(key))
	}
	return updates, nil
}

// genreUpdates turns a set list and a remove list into update entries.
func genreUpdates(set, remove []string) ([]catalog.GenreUpdate, error) {
	var updates []catalog.GenreUpdate
	for _, s := range set {
		genre, err := catalog.ParseGenre(s)
		if err != nil {
			return nil, err
		}
		updates = append(updates, catalog.GenreSet(genre))
	}
	for _, s := range remove {
		genre, err := catalog.ParseGenre(s)
		if err != nil {
			return nil, err
		}
		updates = append(updates, catalog.GenreRemove(genre))
	}
	return updates, nil
}
