package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the entity kind encoded in the high byte of a tagged identifier.
type Kind uint8

const (
	KindArtist   Kind = 1
	KindAlbum    Kind = 2
	KindTrack    Kind = 3
	KindPlaylist Kind = 4
	KindAudio    Kind = 5
	KindImage    Kind = 6
	KindUser     Kind = 7
	KindLyrics   Kind = 8
	KindScrobble Kind = 9
)

// String returns the textual kind used in the `sonar:<kind>:<hex>` form.
func (k Kind) String() string {
	switch k {
	case KindArtist:
		return "artist"
	case KindAlbum:
		return "album"
	case KindTrack:
		return "track"
	case KindPlaylist:
		return "playlist"
	case KindAudio:
		return "audio"
	case KindImage:
		return "image"
	case KindUser:
		return "user"
	case KindLyrics:
		return "lyrics"
	case KindScrobble:
		return "scrobble"
	default:
		return "unknown"
	}
}

func kindFromString(s string) (Kind, bool) {
	switch s {
	case "artist":
		return KindArtist, true
	case "album":
		return KindAlbum, true
	case "track":
		return KindTrack, true
	case "playlist":
		return KindPlaylist, true
	case "audio":
		return KindAudio, true
	case "image":
		return KindImage, true
	case "user":
		return KindUser, true
	case "lyrics":
		return KindLyrics, true
	case "scrobble":
		return KindScrobble, true
	default:
		return 0, false
	}
}

// ID is a tagged 32-bit identifier: the high byte encodes the entity kind,
// the low 24 bits are a per-kind sequence. The zero value means "no id".
//
// Two entities with the same ID are the same entity; equality of ids implies
// equality of kind.
type ID uint32

const idKindShift = 24

// MakeID builds a tagged id from a kind and a per-kind sequence number.
func MakeID(kind Kind, num uint32) ID {
	return ID(uint32(kind)<<idKindShift | num&0x00FFFFFF)
}

// Kind returns the entity kind encoded in the high byte.
func (id ID) Kind() Kind { return Kind(uint32(id) >> idKindShift) }

// Num returns the per-kind sequence encoded in the low 24 bits.
func (id ID) Num() uint32 { return uint32(id) & 0x00FFFFFF }

// IsZero reports whether the id is absent.
func (id ID) IsZero() bool { return id == 0 }

// String renders the reversible textual form `sonar:<kind>:<hex>` where hex
// is the full tagged 32-bit value.
func (id ID) String() string {
	return fmt.Sprintf("sonar:%s:%x", id.Kind(), uint32(id))
}

// ParseID parses the `sonar:<kind>:<hex>` textual form. The kind name must
// match the kind encoded in the hexadecimal value.
func ParseID(s string) (ID, error) {
	rest, ok := strings.CutPrefix(s, "sonar:")
	if !ok {
		return 0, fmt.Errorf("%q is not a sonar id", s)
	}
	kindStr, value, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, fmt.Errorf("%q is not a sonar id", s)
	}
	kind, ok := kindFromString(kindStr)
	if !ok {
		return 0, fmt.Errorf("%q is not a sonar id: unknown kind %q", s, kindStr)
	}
	raw, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not a sonar id: value must be a 32-bit hexadecimal number", s)
	}
	id := ID(raw)
	if id.Kind() != kind {
		return 0, fmt.Errorf("%q is not a sonar id: kind mismatch", s)
	}
	return id, nil
}

// ParseIDKind parses an id and checks it is of the wanted kind.
func ParseIDKind(s string, kind Kind) (ID, error) {
	id, err := ParseID(s)
	if err != nil {
		return 0, err
	}
	if id.Kind() != kind {
		return 0, fmt.Errorf("%q is not a %s id", s, kind)
	}
	return id, nil
}

// Typed identifiers. Each is a tagged [ID] restricted to one kind; the
// conversion to ID is infallible.

type ArtistID uint32

func ArtistIDFromDB(n int64) ArtistID { return ArtistID(MakeID(KindArtist, uint32(n))) }

func (id ArtistID) ID() ID         { return ID(id) }
func (id ArtistID) DB() int64      { return int64(ID(id).Num()) }
func (id ArtistID) IsZero() bool   { return id == 0 }
func (id ArtistID) String() string { return ID(id).String() }

type AlbumID uint32

func AlbumIDFromDB(n int64) AlbumID { return AlbumID(MakeID(KindAlbum, uint32(n))) }

func (id AlbumID) ID() ID         { return ID(id) }
func (id AlbumID) DB() int64      { return int64(ID(id).Num()) }
func (id AlbumID) IsZero() bool   { return id == 0 }
func (id AlbumID) String() string { return ID(id).String() }

type TrackID uint32

func TrackIDFromDB(n int64) TrackID { return TrackID(MakeID(KindTrack, uint32(n))) }

func (id TrackID) ID() ID         { return ID(id) }
func (id TrackID) DB() int64      { return int64(ID(id).Num()) }
func (id TrackID) IsZero() bool   { return id == 0 }
func (id TrackID) String() string { return ID(id).String() }

type PlaylistID uint32

func PlaylistIDFromDB(n int64) PlaylistID { return PlaylistID(MakeID(KindPlaylist, uint32(n))) }

func (id PlaylistID) ID() ID         { return ID(id) }
func (id PlaylistID) DB() int64      { return int64(ID(id).Num()) }
func (id PlaylistID) IsZero() bool   { return id == 0 }
func (id PlaylistID) String() string { return ID(id).String() }

type AudioID uint32

func AudioIDFromDB(n int64) AudioID { return AudioID(MakeID(KindAudio, uint32(n))) }

func (id AudioID) ID() ID         { return ID(id) }
func (id AudioID) DB() int64      { return int64(ID(id).Num()) }
func (id AudioID) IsZero() bool   { return id == 0 }
func (id AudioID) String() string { return ID(id).String() }

type ImageID uint32

func ImageIDFromDB(n int64) ImageID { return ImageID(MakeID(KindImage, uint32(n))) }

func (id ImageID) ID() ID         { return ID(id) }
func (id ImageID) DB() int64      { return int64(ID(id).Num()) }
func (id ImageID) IsZero() bool   { return id == 0 }
func (id ImageID) String() string { return ID(id).String() }

type UserID uint32

func UserIDFromDB(n int64) UserID { return UserID(MakeID(KindUser, uint32(n))) }

func (id UserID) ID() ID         { return ID(id) }
func (id UserID) DB() int64      { return int64(ID(id).Num()) }
func (id UserID) IsZero() bool   { return id == 0 }
func (id UserID) String() string { return ID(id).String() }

type LyricsID uint32

func LyricsIDFromDB(n int64) LyricsID { return LyricsID(MakeID(KindLyrics, uint32(n))) }

func (id LyricsID) ID() ID         { return ID(id) }
func (id LyricsID) DB() int64      { return int64(ID(id).Num()) }
func (id LyricsID) IsZero() bool   { return id == 0 }
func (id LyricsID) String() string { return ID(id).String() }

type ScrobbleID uint32

func ScrobbleIDFromDB(n int64) ScrobbleID { return ScrobbleID(MakeID(KindScrobble, uint32(n))) }

func (id ScrobbleID) ID() ID         { return ID(id) }
func (id ScrobbleID) DB() int64      { return int64(ID(id).Num()) }
func (id ScrobbleID) IsZero() bool   { return id == 0 }
func (id ScrobbleID) String() string { return ID(id).String() }

// ParseArtistID parses an artist id from its textual form.
func ParseArtistID(s string) (ArtistID, error) {
	id, err := ParseIDKind(s, KindArtist)
	return ArtistID(id), err
}

// ParseAlbumID parses an album id from its textual form.
func ParseAlbumID(s string) (AlbumID, error) {
	id, err := ParseIDKind(s, KindAlbum)
	return AlbumID(id), err
}

// ParseTrackID parses a track id from its textual form.
func ParseTrackID(s string) (TrackID, error) {
	id, err := ParseIDKind(s, KindTrack)
	return TrackID(id), err
}

// ParsePlaylistID parses a playlist id from its textual form.
func ParsePlaylistID(s string) (PlaylistID, error) {
	id, err := ParseIDKind(s, KindPlaylist)
	return PlaylistID(id), err
}

// ParseAudioID parses an audio id from its textual form.
func ParseAudioID(s string) (AudioID, error) {
	id, err := ParseIDKind(s, KindAudio)
	return AudioID(id), err
}

// ParseImageID parses an image id from its textual form.
func ParseImageID(s string) (ImageID, error) {
	id, err := ParseIDKind(s, KindImage)
	return ImageID(id), err
}

// ParseUserID parses a user id from its textual form.
func ParseUserID(s string) (UserID, error) {
	id, err := ParseIDKind(s, KindUser)
	return UserID(id), err
}

// ParseScrobbleID parses a scrobble id from its textual form.
func ParseScrobbleID(s string) (ScrobbleID, error) {
	id, err := ParseIDKind(s, KindScrobble)
	return ScrobbleID(id), err
}
