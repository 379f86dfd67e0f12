package catalog

import (
	"context"
)

// GarbageStats reports what a garbage collection pass removed.
type GarbageStats struct {
	Audios int
	Images int
}

// CollectGarbage removes audio rows no track links to and image rows no
// entity references, together with their blobs. Safe to run while the
// catalog is live; rows created mid-pass are picked up next time.
func (c *Catalog) CollectGarbage(ctx context.Context) (GarbageStats, error) {
	var stats GarbageStats

	audioIDs, err := collectIDs(ctx, c.db,
		"SELECT id FROM audio WHERE id NOT IN (SELECT audio FROM track_audio)")
	if err != nil {
		return stats, err
	}
	for _, row := range audioIDs {
		if err := c.DeleteAudio(ctx, AudioIDFromDB(row)); err != nil {
			c.logger.Warn("failed to collect audio", "id", AudioIDFromDB(row), "err", err)
			continue
		}
		stats.Audios++
	}

	imageIDs, err := collectIDs(ctx, c.db,
		`SELECT id FROM image WHERE id NOT IN (
			SELECT cover_art FROM artist WHERE cover_art IS NOT NULL
			UNION SELECT cover_art FROM album WHERE cover_art IS NOT NULL
			UNION SELECT cover_art FROM track WHERE cover_art IS NOT NULL
			UNION SELECT cover_art FROM playlist WHERE cover_art IS NOT NULL
			UNION SELECT avatar FROM user WHERE avatar IS NOT NULL)`)
	if err != nil {
		return stats, err
	}
	for _, row := range imageIDs {
		if err := c.DeleteImage(ctx, ImageIDFromDB(row)); err != nil {
			c.logger.Warn("failed to collect image", "id", ImageIDFromDB(row), "err", err)
			continue
		}
		stats.Images++
	}

	c.logger.Info("garbage collection finished", "audios", stats.Audios, "images", stats.Images)
	return stats, nil
}
