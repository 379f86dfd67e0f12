// package tasks hosts the long-lived background workers: the download
// orchestrator, the scrobble dispatcher, and the subscription controller.
// Workers read and write through the catalog and communicate over
// channels; none of them hold database state of their own.
package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/services"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// downloadParallelism bounds how many albums or tracks one task
// materializes at a time.
const downloadParallelism = 4

// DownloadStatus is the lifecycle state of one download entry.
type DownloadStatus int

const (
	DownloadStatusDownloading DownloadStatus = iota
	DownloadStatusComplete
	DownloadStatusFailed
)

func (s DownloadStatus) String() string {
	switch s {
	case DownloadStatusDownloading:
		return "downloading"
	case DownloadStatusComplete:
		return "complete"
	case DownloadStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Download is a caller-visible snapshot of one download entry.
type Download struct {
	User        catalog.UserID
	ExternalID  services.ExternalMediaID
	Status      DownloadStatus
	Description string
}

type downloadKey struct {
	user catalog.UserID
	id   services.ExternalMediaID
}

type downloadTask struct {
	status      DownloadStatus
	description string
	cancel      context.CancelFunc
}

// Downloader materializes external media into the catalog. It keeps one
// entry per (user, external id); distinct entries run in parallel subject
// to the adapter registry's rate limits.
type Downloader struct {
	catalog  *catalog.Catalog
	registry *services.Registry
	logger   *log.Logger

	mu    sync.Mutex
	tasks map[downloadKey]*downloadTask
}

// NewDownloader creates a downloader with no entries.
func NewDownloader(c *catalog.Catalog, registry *services.Registry, logger *log.Logger) *Downloader {
	return &Downloader{
		catalog:  c,
		registry: registry,
		logger:   logger,
		tasks:    make(map[downloadKey]*downloadTask),
	}
}

// List returns the user's download entries.
func (d *Downloader) List(user catalog.UserID) []Download {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Download
	for key, task := range d.tasks {
		if key.user != user {
			continue
		}
		out = append(out, Download{
			User:        key.user,
			ExternalID:  key.id,
			Status:      task.status,
			Description: task.description,
		})
	}
	return out
}

// Request starts materializing an external id for a user. An in-flight
// entry is reattached to; a complete or failed entry is restarted.
func (d *Downloader) Request(user catalog.UserID, id services.ExternalMediaID) {
	key := downloadKey{user: user, id: id}

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.tasks[key]; ok && existing.status == DownloadStatusDownloading {
		return
	}

	// the task outlives the caller's request context
	ctx, cancel := context.WithCancel(context.Background())
	d.tasks[key] = &downloadTask{
		status:      DownloadStatusDownloading,
		description: string(id),
		cancel:      cancel,
	}
	go d.run(ctx, key)
}

// Delete cancels and removes an entry; missing entries are a no-op.
func (d *Downloader) Delete(user catalog.UserID, id services.ExternalMediaID) {
	key := downloadKey{user: user, id: id}

	d.mu.Lock()
	defer d.mu.Unlock()
	if task, ok := d.tasks[key]; ok {
		task.cancel()
		delete(d.tasks, key)
	}
}

// Close cancels every in-flight task.
func (d *Downloader) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, task := range d.tasks {
		task.cancel()
	}
}

func (d *Downloader) run(ctx context.Context, key downloadKey) {
	d.logger.Info("download started", "user", key.user, "external_id", key.id)
	description, err := d.materialize(ctx, key)

	d.mu.Lock()
	defer d.mu.Unlock()
	task, ok := d.tasks[key]
	if !ok {
		// deleted mid-flight
		return
	}
	if err != nil {
		d.logger.Error("download failed", "user", key.user, "external_id", key.id, "err", err)
		task.status = DownloadStatusFailed
		task.description = err.Error()
		return
	}
	d.logger.Info("download complete", "user", key.user, "external_id", key.id, "description", description)
	task.status = DownloadStatusComplete
	if description != "" {
		task.description = description
	}
}

func (d *Downloader) materialize(ctx context.Context, key downloadKey) (string, error) {
	service, mediaType, err := d.registry.Resolve(ctx, key.id)
	if err != nil {
		return "", err
	}

	switch mediaType {
	case catalog.MediaTypeArtist:
		artist, err := d.materializeArtist(ctx, service, key.id)
		if err != nil {
			return "", err
		}
		return artist.Name, nil
	case catalog.MediaTypeAlbum:
		album, err := d.materializeAlbum(ctx, service, key.id)
		if err != nil {
			return "", err
		}
		return album.Name, nil
	case catalog.MediaTypeTrack:
		track, err := d.materializeTrack(ctx, service, key.id)
		if err != nil {
			return "", err
		}
		return track.Name, nil
	case catalog.MediaTypePlaylist:
		playlist, err := d.materializePlaylist(ctx, service, key.user, key.id)
		if err != nil {
			return "", err
		}
		return playlist.Name, nil
	default:
		return "", shared.Invalidf("unsupported media type %q for %q", mediaType, key.id)
	}
}

func externalProperty(service services.Service, id services.ExternalMediaID) catalog.Properties {
	return catalog.Properties{
		catalog.PropertyKey("external/" + service.Name()): catalog.PropertyValue(id),
	}
}

func (d *Downloader) materializeArtist(ctx context.Context, service services.Service, id services.ExternalMediaID) (catalog.Artist, error) {
	external, err := d.registry.FetchArtist(ctx, service, id)
	if err != nil {
		return catalog.Artist{}, err
	}

	artist, err := d.catalog.FindOrCreateArtistByName(ctx, catalog.ArtistCreate{
		Name:       external.Name,
		Genres:     external.Genres,
		Properties: externalProperty(service, id),
	})
	if err != nil {
		return catalog.Artist{}, err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(downloadParallelism)
	for _, albumID := range external.Albums {
		group.Go(func() error {
			_, err := d.materializeAlbum(ctx, service, albumID)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return catalog.Artist{}, err
	}
	return artist, nil
}

func (d *Downloader) materializeAlbum(ctx context.Context, service services.Service, id services.ExternalMediaID) (catalog.Album, error) {
	external, err := d.registry.FetchAlbum(ctx, service, id)
	if err != nil {
		return catalog.Album{}, err
	}
	if external.Artist == "" {
		return catalog.Album{}, shared.Internalf("album %q has no artist", id)
	}

	externalArtist, err := d.registry.FetchArtist(ctx, service, external.Artist)
	if err != nil {
		return catalog.Album{}, err
	}
	artist, err := d.catalog.FindOrCreateArtistByName(ctx, catalog.ArtistCreate{
		Name:       externalArtist.Name,
		Genres:     externalArtist.Genres,
		Properties: externalProperty(service, external.Artist),
	})
	if err != nil {
		return catalog.Album{}, err
	}

	album, err := d.catalog.FindOrCreateAlbumByName(ctx, catalog.AlbumCreate{
		Name:       external.Name,
		Artist:     artist.ID,
		Genres:     external.Genres,
		Properties: externalProperty(service, id),
	})
	if err != nil {
		return catalog.Album{}, err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(downloadParallelism)
	for _, trackID := range external.Tracks {
		group.Go(func() error {
			_, err := d.materializeTrack(ctx, service, trackID)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return catalog.Album{}, err
	}
	return album, nil
}

func (d *Downloader) materializeTrack(ctx context.Context, service services.Service, id services.ExternalMediaID) (catalog.Track, error) {
	external, err := d.registry.FetchTrack(ctx, service, id)
	if err != nil {
		return catalog.Track{}, err
	}
	if external.Album == "" {
		return catalog.Track{}, shared.Internalf("track %q has no album", id)
	}

	album, err := d.materializeAlbumRow(ctx, service, external.Album)
	if err != nil {
		return catalog.Track{}, err
	}

	track, err := d.catalog.FindOrCreateTrackByName(ctx, catalog.TrackCreate{
		Name:       external.Name,
		Album:      album.ID,
		Properties: externalProperty(service, id),
	})
	if err != nil {
		return catalog.Track{}, err
	}
	if !track.Audio.IsZero() {
		return track, nil
	}

	content, err := d.registry.DownloadTrack(ctx, service, id)
	if err != nil {
		if shared.KindOf(err) == shared.KindInvalid {
			// adapter cannot serve audio; keep the bare track
			d.logger.Warn("no audio available", "service", service.Name(), "external_id", id)
			return track, nil
		}
		return catalog.Track{}, err
	}
	defer content.Close()

	audio, err := d.catalog.CreateAudio(ctx, catalog.AudioCreate{
		Duration: external.Duration,
		MimeType: "audio/mpeg",
		Filename: fmt.Sprintf("%s.mp3", external.Name),
		Content:  content,
	})
	if err != nil {
		return catalog.Track{}, err
	}
	if err := d.catalog.LinkAudio(ctx, track.ID, audio.ID); err != nil {
		return catalog.Track{}, err
	}
	return d.catalog.GetTrack(ctx, track.ID)
}

// materializeAlbumRow creates the album row and its artist without
// recursing into the album's tracks.
func (d *Downloader) materializeAlbumRow(ctx context.Context, service services.Service, id services.ExternalMediaID) (catalog.Album, error) {
	external, err := d.registry.FetchAlbum(ctx, service, id)
	if err != nil {
		return catalog.Album{}, err
	}
	if external.Artist == "" {
		return catalog.Album{}, shared.Internalf("album %q has no artist", id)
	}

	externalArtist, err := d.registry.FetchArtist(ctx, service, external.Artist)
	if err != nil {
		return catalog.Album{}, err
	}
	artist, err := d.catalog.FindOrCreateArtistByName(ctx, catalog.ArtistCreate{
		Name:       externalArtist.Name,
		Genres:     externalArtist.Genres,
		Properties: externalProperty(service, external.Artist),
	})
	if err != nil {
		return catalog.Album{}, err
	}
	return d.catalog.FindOrCreateAlbumByName(ctx, catalog.AlbumCreate{
		Name:       external.Name,
		Artist:     artist.ID,
		Genres:     external.Genres,
		Properties: externalProperty(service, id),
	})
}

func (d *Downloader) materializePlaylist(ctx context.Context, service services.Service, user catalog.UserID, id services.ExternalMediaID) (catalog.Playlist, error) {
	external, err := d.registry.FetchPlaylist(ctx, service, id)
	if err != nil {
		return catalog.Playlist{}, err
	}

	// fetched order is the playlist order, so slots are indexed
	trackIDs := make([]catalog.TrackID, len(external.Tracks))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(downloadParallelism)
	for i, externalTrack := range external.Tracks {
		group.Go(func() error {
			track, err := d.materializeTrack(groupCtx, service, externalTrack)
			if err != nil {
				return err
			}
			trackIDs[i] = track.ID
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return catalog.Playlist{}, err
	}

	playlist, err := d.catalog.FindOrCreatePlaylistByName(ctx, catalog.PlaylistCreate{
		Name:       external.Name,
		Owner:      user,
		Properties: externalProperty(service, id),
	})
	if err != nil {
		return catalog.Playlist{}, err
	}
	if err := d.catalog.ClearPlaylistTracks(ctx, playlist.ID); err != nil {
		return catalog.Playlist{}, err
	}
	if err := d.catalog.InsertPlaylistTracks(ctx, playlist.ID, trackIDs); err != nil {
		return catalog.Playlist{}, err
	}
	return playlist, nil
}
