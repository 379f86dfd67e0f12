package catalog

import (
	"context"

	"github.com/diogo464/sonar-sub000/internal/search"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// Search index synchronization. Every create and update of a searchable
// entity re-indexes it after commit; deletions remove the documents of
// the deleted entity and everything that cascaded with it. Index failures
// are logged and never fail the catalog operation.

func (c *Catalog) indexArtist(ctx context.Context, artist Artist) {
	err := c.search.Index(ctx, search.Document{
		ID:     artist.ID.String(),
		Artist: artist.Name,
	})
	if err != nil {
		c.logger.Warn("failed to index artist", "id", artist.ID, "err", err)
	}
}

func (c *Catalog) indexAlbum(ctx context.Context, album Album) {
	doc := search.Document{
		ID:    album.ID.String(),
		Album: album.Name,
	}
	if artist, err := c.GetArtist(ctx, album.Artist); err == nil {
		doc.Artist = artist.Name
	}
	if err := c.search.Index(ctx, doc); err != nil {
		c.logger.Warn("failed to index album", "id", album.ID, "err", err)
	}
}

func (c *Catalog) indexTrack(ctx context.Context, track Track, lyrics *Lyrics) {
	doc := search.Document{
		ID:    track.ID.String(),
		Track: track.Name,
	}
	if album, err := c.GetAlbum(ctx, track.Album); err == nil {
		doc.Album = album.Name
		if artist, err := c.GetArtist(ctx, album.Artist); err == nil {
			doc.Artist = artist.Name
		}
	}
	if lyrics != nil {
		doc.Lyrics = lyrics.Text()
	} else if existing, err := c.GetTrackLyrics(ctx, track.ID); err == nil {
		doc.Lyrics = existing.Text()
	}
	if err := c.search.Index(ctx, doc); err != nil {
		c.logger.Warn("failed to index track", "id", track.ID, "err", err)
	}
}

func (c *Catalog) indexPlaylist(ctx context.Context, playlist Playlist) {
	err := c.search.Index(ctx, search.Document{
		ID:       playlist.ID.String(),
		Playlist: playlist.Name,
	})
	if err != nil {
		c.logger.Warn("failed to index playlist", "id", playlist.ID, "err", err)
	}
}

func (c *Catalog) removeFromIndex(ctx context.Context, ids []ID) {
	for _, id := range ids {
		if err := c.search.Remove(ctx, id.String()); err != nil {
			c.logger.Warn("failed to remove from index", "id", id, "err", err)
		}
	}
}

// SearchResult is one ranked hit with the matching entity hydrated.
// Exactly one of the entity fields is set.
type SearchResult struct {
	ID       ID
	Artist   *Artist
	Album    *Album
	Track    *Track
	Playlist *Playlist
}

// SearchResults is a ranked result list.
type SearchResults struct {
	Results []SearchResult
}

// Artists returns the artist hits in rank order.
func (r SearchResults) Artists() []Artist {
	var artists []Artist
	for _, result := range r.Results {
		if result.Artist != nil {
			artists = append(artists, *result.Artist)
		}
	}
	return artists
}

// Albums returns the album hits in rank order.
func (r SearchResults) Albums() []Album {
	var albums []Album
	for _, result := range r.Results {
		if result.Album != nil {
			albums = append(albums, *result.Album)
		}
	}
	return albums
}

// Tracks returns the track hits in rank order.
func (r SearchResults) Tracks() []Track {
	var tracks []Track
	for _, result := range r.Results {
		if result.Track != nil {
			tracks = append(tracks, *result.Track)
		}
	}
	return tracks
}

// Playlists returns the playlist hits in rank order.
func (r SearchResults) Playlists() []Playlist {
	var playlists []Playlist
	for _, result := range r.Results {
		if result.Playlist != nil {
			playlists = append(playlists, *result.Playlist)
		}
	}
	return playlists
}

// Search queries the search engine and hydrates the ranked ids into
// entities, preserving rank order. Hits whose entity vanished between
// ranking and hydration are dropped.
func (c *Catalog) Search(ctx context.Context, query string, limit int64) (SearchResults, error) {
	if limit <= 0 {
		limit = 50
	}
	hits, err := c.search.Search(ctx, query, int(limit))
	if err != nil {
		return SearchResults{}, shared.Internalf("search failed: %v", err)
	}

	var results SearchResults
	for _, hit := range hits {
		id, err := ParseID(hit)
		if err != nil {
			c.logger.Warn("search returned invalid id", "id", hit, "err", err)
			continue
		}
		result := SearchResult{ID: id}
		switch id.Kind() {
		case KindArtist:
			artist, err := c.GetArtist(ctx, ArtistID(id))
			if err != nil {
				continue
			}
			result.Artist = &artist
		case KindAlbum:
			album, err := c.GetAlbum(ctx, AlbumID(id))
			if err != nil {
				continue
			}
			result.Album = &album
		case KindTrack:
			track, err := c.GetTrack(ctx, TrackID(id))
			if err != nil {
				continue
			}
			result.Track = &track
		case KindPlaylist:
			playlist, err := c.GetPlaylist(ctx, PlaylistID(id))
			if err != nil {
				continue
			}
			result.Playlist = &playlist
		default:
			continue
		}
		results.Results = append(results.Results, result)
	}
	return results, nil
}

// ListGenres returns every distinct genre in the catalog together with how
// many albums and tracks carry it.
func (c *Catalog) ListGenres(ctx context.Context) (map[Genre][2]uint32, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT genre, namespace, COUNT(*) FROM genre WHERE namespace IN (?, ?) GROUP BY genre, namespace",
		int64(KindAlbum), int64(KindTrack))
	if err != nil {
		return nil, shared.Internalf("failed to list genres: %v", err)
	}
	defer rows.Close()

	genres := make(map[Genre][2]uint32)
	for rows.Next() {
		var (
			genre     string
			namespace int64
			count     uint32
		)
		if err := rows.Scan(&genre, &namespace, &count); err != nil {
			return nil, shared.Internalf("failed to scan genre count: %v", err)
		}
		counts := genres[Genre(genre)]
		if Kind(namespace) == KindAlbum {
			counts[0] = count
		} else {
			counts[1] = count
		}
		genres[Genre(genre)] = counts
	}
	return genres, rows.Err()
}
