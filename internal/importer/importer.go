// package importer turns uploaded audio files into catalog entities. An
// import drains the upload to a bounded temporary file, runs the metadata
// extractors over it, falls back to path components for anything the
// extractors missed, and materializes artist, album, track, audio and
// cover art through the catalog in one transaction.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dhowden/tag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// Config bounds the import pipeline.
type Config struct {
	// MaxSize is the largest accepted upload in bytes.
	MaxSize int64
	// MaxParallel caps concurrently running imports; further imports
	// block until a slot frees up.
	MaxParallel int64
}

// Request is one file to import. Artist and Album pin the owners to
// existing rows; when unset they resolve by the extracted (or
// path-derived) names. An import with no artist or album name and no
// override is invalid.
type Request struct {
	// Filename names the upload; a path shaped like
	// `<artist>/<album>/<title>.<ext>` fills any field the extractors
	// could not provide.
	Filename string
	Artist   catalog.ArtistID
	Album    catalog.AlbumID
	Content  io.Reader
}

// Importer is the import pipeline. Extractors run in parallel; on
// conflicting fields the earlier registered extractor wins.
type Importer struct {
	catalog    *catalog.Catalog
	extractors []Extractor
	sem        *semaphore.Weighted
	maxSize    int64
	logger     *log.Logger
}

// New creates an importer over the catalog with the given extractors.
func New(c *catalog.Catalog, config Config, logger *log.Logger, extractors ...Extractor) *Importer {
	maxParallel := config.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 8
	}
	maxSize := config.MaxSize
	if maxSize <= 0 {
		maxSize = 1 << 30
	}
	return &Importer{
		catalog:    c,
		extractors: extractors,
		sem:        semaphore.NewWeighted(maxParallel),
		maxSize:    maxSize,
		logger:     logger,
	}
}

// Import ingests one audio file and returns the resulting track.
func (i *Importer) Import(ctx context.Context, req Request) (catalog.Track, error) {
	if err := i.sem.Acquire(ctx, 1); err != nil {
		return catalog.Track{}, shared.Internalf("import canceled: %v", err)
	}
	defer i.sem.Release(1)

	tmp, err := os.CreateTemp("", "import-*")
	if err != nil {
		return catalog.Track{}, shared.Internalf("failed to create temporary file: %v", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	n, err := io.Copy(tmp, io.LimitReader(req.Content, i.maxSize+1))
	if err != nil {
		return catalog.Track{}, shared.Internalf("failed to drain upload: %v", err)
	}
	if n == 0 {
		return catalog.Track{}, shared.Invalidf("upload is empty")
	}
	if n > i.maxSize {
		return catalog.Track{}, shared.Invalidf("upload exceeds maximum size of %d bytes", i.maxSize)
	}

	metadata := i.extract(tmp.Name(), req.Filename)
	fillFromPath(&metadata, req.Filename)
	if metadata.Title == "" {
		return catalog.Track{}, shared.Invalidf("could not determine track title for %q", req.Filename)
	}
	if req.Artist.IsZero() && metadata.Artist == "" {
		return catalog.Track{}, shared.Invalidf("could not determine artist for %q", req.Filename)
	}
	if req.Album.IsZero() && metadata.Album == "" {
		return catalog.Track{}, shared.Invalidf("could not determine album for %q", req.Filename)
	}

	mimeType := probeMimeType(tmp, req.Filename)

	properties := catalog.Properties{}
	if metadata.TrackNumber > 0 {
		properties["track-number"] = catalog.PropertyValue(fmt.Sprint(metadata.TrackNumber))
	}
	if metadata.DiscNumber > 0 {
		properties["disc-number"] = catalog.PropertyValue(fmt.Sprint(metadata.DiscNumber))
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return catalog.Track{}, shared.Internalf("failed to rewind upload: %v", err)
	}
	return i.catalog.ImportTrack(ctx, catalog.ImportCreate{
		Artist:     req.Artist,
		ArtistName: metadata.Artist,
		Album:      req.Album,
		AlbumName:  metadata.Album,
		TrackName:  metadata.Title,
		Genres:     metadata.Genres,
		Properties: properties,
		Cover:      metadata.CoverArt,
		CoverMime:  metadata.CoverMime,
		Audio: catalog.AudioCreate{
			Bitrate:     metadata.Bitrate,
			Duration:    metadata.Duration,
			NumChannels: metadata.NumChannels,
			SampleFreq:  metadata.SampleFreq,
			MimeType:    mimeType,
			Filename:    filepath.Base(req.Filename),
			Content:     tmp,
		},
	})
}

// extract fans out to every extractor in parallel and merges the results
// in registration order, earlier extractors winning per field.
func (i *Importer) extract(path, filename string) Metadata {
	results := make([]*Metadata, len(i.extractors))
	var group errgroup.Group
	for idx, extractor := range i.extractors {
		group.Go(func() error {
			metadata, err := extractor.Extract(path)
			if err != nil {
				i.logger.Debug("extractor failed", "extractor", extractor.Name(), "file", filename, "err", err)
				return nil
			}
			results[idx] = &metadata
			return nil
		})
	}
	group.Wait()

	var merged Metadata
	for _, result := range results {
		if result != nil {
			merged = mergeMetadata(merged, *result)
		}
	}
	return merged
}

// fillFromPath fills missing fields from the upload path, interpreted as
// `<artist>/<album>/<title>.<ext>` with shorter paths filling from the
// right.
func fillFromPath(m *Metadata, filename string) {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(filename)), "/")
	title := strings.TrimSuffix(parts[len(parts)-1], filepath.Ext(parts[len(parts)-1]))
	if m.Title == "" {
		m.Title = strings.TrimSpace(title)
	}
	if m.Album == "" && len(parts) >= 2 {
		m.Album = strings.TrimSpace(parts[len(parts)-2])
	}
	if m.Artist == "" && len(parts) >= 3 {
		m.Artist = strings.TrimSpace(parts[len(parts)-3])
	}
}

// probeMimeType identifies the audio container from the file's content,
// falling back to the filename extension for containers the probe does
// not recognize.
func probeMimeType(f io.ReadSeeker, filename string) string {
	if _, err := f.Seek(0, io.SeekStart); err == nil {
		if _, fileType, err := tag.Identify(f); err == nil {
			if mimeType, ok := mimeTypeForFileType(fileType); ok {
				return mimeType
			}
		}
	}
	return mimeTypeForFilename(filename)
}

func mimeTypeForFileType(fileType tag.FileType) (string, bool) {
	switch fileType {
	case tag.MP3:
		return "audio/mpeg", true
	case tag.FLAC:
		return "audio/flac", true
	case tag.OGG:
		return "audio/ogg", true
	case tag.M4A, tag.M4B, tag.M4P, tag.ALAC:
		return "audio/mp4", true
	default:
		return "", false
	}
}

func mimeTypeForFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
