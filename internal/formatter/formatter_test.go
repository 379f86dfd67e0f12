package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/diogo464/sonar-sub000/internal/catalog"
)

func testExport() *PlaylistExport {
	artist := catalog.Artist{ID: catalog.ArtistIDFromDB(1), Name: "Metallica"}
	album := catalog.Album{ID: catalog.AlbumIDFromDB(1), Name: "Ride the Lightning", Artist: artist.ID}
	return &PlaylistExport{
		Playlist: catalog.Playlist{
			ID:         catalog.PlaylistIDFromDB(1),
			Name:       "thrash",
			TrackCount: 2,
		},
		Entries: []Entry{
			{
				Track:  catalog.Track{ID: catalog.TrackIDFromDB(1), Name: "Fight Fire with Fire", Album: album.ID, Duration: 285 * time.Second},
				Album:  album,
				Artist: artist,
			},
			{
				Track:  catalog.Track{ID: catalog.TrackIDFromDB(2), Name: "Fade to Black", Album: album.ID, Duration: 417 * time.Second},
				Album:  album,
				Artist: artist,
			},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, "ID,Title,Artist,Album,Duration") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "Fade to Black") {
			t.Errorf("CSV missing track title")
		}
		if !strings.Contains(output, "Metallica") {
			t.Errorf("CSV missing artist")
		}
		if !strings.Contains(output, ",417") {
			t.Errorf("CSV missing duration in seconds, got: %s", output)
		}
		lines := strings.Split(strings.TrimSpace(output), "\n")
		if len(lines) != 3 {
			t.Errorf("expected header plus 2 records, got %d lines", len(lines))
		}
	})

	t.Run("ExportToM3U", func(t *testing.T) {
		output := string(ExportToM3U(testExport()))

		if !strings.HasPrefix(output, "#EXTM3U\n") {
			t.Errorf("M3U missing header, got: %s", output)
		}
		if !strings.Contains(output, "#PLAYLIST:thrash") {
			t.Errorf("M3U missing playlist name")
		}
		if !strings.Contains(output, "#EXTINF:417,Metallica - Fade to Black") {
			t.Errorf("M3U missing extinf line, got: %s", output)
		}
		if !strings.Contains(output, "/api/v1/track/download?id="+catalog.TrackIDFromDB(2).String()) {
			t.Errorf("M3U missing track location")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		output := string(ExportToText(testExport()))

		if !strings.Contains(output, "thrash (2 tracks)") {
			t.Errorf("text missing title line, got: %s", output)
		}
		if !strings.Contains(output, "1. Metallica - Fight Fire with Fire (Ride the Lightning)") {
			t.Errorf("text missing first entry, got: %s", output)
		}
	})

	t.Run("EmptyPlaylist", func(t *testing.T) {
		export := &PlaylistExport{Playlist: catalog.Playlist{Name: "empty"}}
		data, err := ExportToCSV(export)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 1 {
			t.Errorf("expected only headers, got %q", data)
		}
	})
}
