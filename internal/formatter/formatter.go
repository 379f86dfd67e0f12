// package formatter exports playlists to interchange formats (CSV, M3U,
// plain text) for use outside the server.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/diogo464/sonar-sub000/internal/catalog"
)

// PlaylistExport is a fully hydrated playlist ready for formatting.
type PlaylistExport struct {
	Playlist catalog.Playlist
	Entries  []Entry
}

// Entry is one playlist track with its album and artist rows.
type Entry struct {
	Track  catalog.Track
	Album  catalog.Album
	Artist catalog.Artist
}

// ExportToCSV renders the export with columns: ID, Title, Artist, Album,
// Duration (seconds).
func ExportToCSV(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range export.Entries {
		record := []string{
			entry.Track.ID.String(),
			entry.Track.Name,
			entry.Artist.Name,
			entry.Album.Name,
			strconv.FormatInt(int64(entry.Track.Duration.Seconds()), 10),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToM3U renders an extended M3U playlist. Each entry carries the
// track duration in seconds and `<artist> - <title>` as the display name;
// the location is the track's download path on the RPC surface.
func ExportToM3U(export *PlaylistExport) []byte {
	var buf bytes.Buffer
	buf.WriteString("#EXTM3U\n")
	fmt.Fprintf(&buf, "#PLAYLIST:%s\n", export.Playlist.Name)
	for _, entry := range export.Entries {
		fmt.Fprintf(&buf, "#EXTINF:%d,%s - %s\n",
			int64(entry.Track.Duration.Seconds()), entry.Artist.Name, entry.Track.Name)
		fmt.Fprintf(&buf, "/api/v1/track/download?id=%s\n", entry.Track.ID)
	}
	return buf.Bytes()
}

// ExportToText renders a human-readable listing.
func ExportToText(export *PlaylistExport) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s (%d tracks)\n", export.Playlist.Name, len(export.Entries))
	for i, entry := range export.Entries {
		fmt.Fprintf(&buf, "%d. %s - %s (%s)\n",
			i+1, entry.Artist.Name, entry.Track.Name, entry.Album.Name)
	}
	return buf.Bytes()
}
