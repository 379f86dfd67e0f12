package importer

import (
	"os"
	"time"

	"github.com/dhowden/tag"

	"github.com/diogo464/sonar-sub000/internal/catalog"
)

// Metadata is what an extractor recovered from an audio file. Zero-valued
// fields mean "unknown" and may be filled by later extractors or the
// upload path.
type Metadata struct {
	Artist      string
	Album       string
	Title       string
	TrackNumber int
	DiscNumber  int
	Genres      catalog.Genres
	Duration    time.Duration
	Bitrate     uint32
	NumChannels uint32
	SampleFreq  uint32
	CoverArt    []byte
	CoverMime   string
}

// Extractor pulls metadata out of an on-disk audio file.
type Extractor interface {
	Name() string
	Extract(path string) (Metadata, error)
}

// mergeMetadata fills zero-valued fields of primary from secondary;
// primary wins on conflict.
func mergeMetadata(primary, secondary Metadata) Metadata {
	merged := primary
	if merged.Artist == "" {
		merged.Artist = secondary.Artist
	}
	if merged.Album == "" {
		merged.Album = secondary.Album
	}
	if merged.Title == "" {
		merged.Title = secondary.Title
	}
	if merged.TrackNumber == 0 {
		merged.TrackNumber = secondary.TrackNumber
	}
	if merged.DiscNumber == 0 {
		merged.DiscNumber = secondary.DiscNumber
	}
	if len(merged.Genres) == 0 {
		merged.Genres = secondary.Genres
	}
	if merged.Duration == 0 {
		merged.Duration = secondary.Duration
	}
	if merged.Bitrate == 0 {
		merged.Bitrate = secondary.Bitrate
	}
	if merged.NumChannels == 0 {
		merged.NumChannels = secondary.NumChannels
	}
	if merged.SampleFreq == 0 {
		merged.SampleFreq = secondary.SampleFreq
	}
	if len(merged.CoverArt) == 0 {
		merged.CoverArt = secondary.CoverArt
		merged.CoverMime = secondary.CoverMime
	}
	return merged
}

// TagExtractor reads embedded tags (ID3, Vorbis comments, MP4 atoms).
type TagExtractor struct{}

func (TagExtractor) Name() string { return "tag" }

func (TagExtractor) Extract(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return Metadata{}, err
	}

	m := Metadata{
		Artist: meta.AlbumArtist(),
		Album:  meta.Album(),
		Title:  meta.Title(),
	}
	if m.Artist == "" {
		m.Artist = meta.Artist()
	}
	m.TrackNumber, _ = meta.Track()
	m.DiscNumber, _ = meta.Disc()
	if genre, err := catalog.CanonicalizeGenre(meta.Genre()); err == nil {
		m.Genres = catalog.Genres{genre}
	}
	if picture := meta.Picture(); picture != nil {
		m.CoverArt = picture.Data
		m.CoverMime = picture.MIMEType
	}
	return m, nil
}
