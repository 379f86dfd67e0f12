package catalog

import (
	"context"
	"time"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

// Favorite marks an entity as favorited by a user.
type Favorite struct {
	User       UserID
	Target     ID
	FavoriteAt time.Time
}

// ListFavorites returns a user's favorites, most recent first.
func (c *Catalog) ListFavorites(ctx context.Context, user UserID) ([]Favorite, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT namespace, identifier, favorite_at FROM favorite WHERE user = ? ORDER BY favorite_at DESC, namespace ASC, identifier ASC",
		user.DB())
	if err != nil {
		return nil, shared.Internalf("failed to list favorites: %v", err)
	}
	defer rows.Close()

	var favorites []Favorite
	for rows.Next() {
		var namespace, identifier, favoriteAt int64
		if err := rows.Scan(&namespace, &identifier, &favoriteAt); err != nil {
			return nil, shared.Internalf("failed to scan favorite: %v", err)
		}
		favorites = append(favorites, Favorite{
			User:       user,
			Target:     MakeID(Kind(namespace), uint32(identifier)),
			FavoriteAt: time.Unix(favoriteAt, 0),
		})
	}
	return favorites, rows.Err()
}

// IsFavorite reports whether the user has favorited the entity.
func (c *Catalog) IsFavorite(ctx context.Context, user UserID, target ID) (bool, error) {
	var count int64
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM favorite WHERE user = ? AND namespace = ? AND identifier = ?",
		user.DB(), int64(target.Kind()), int64(target.Num())).Scan(&count)
	if err != nil {
		return false, shared.Internalf("failed to query favorite: %v", err)
	}
	return count > 0, nil
}

// PutFavorite favorites an entity for the user. Idempotent; the original
// favorite time is preserved.
func (c *Catalog) PutFavorite(ctx context.Context, user UserID, target ID) error {
	if err := c.checkTarget(ctx, target); err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO favorite (user, namespace, identifier) VALUES (?, ?, ?)",
		user.DB(), int64(target.Kind()), int64(target.Num())); err != nil {
		return shared.Internalf("failed to put favorite: %v", err)
	}
	return nil
}

// RemoveFavorite unfavorites an entity. Removing an absent favorite is a
// no-op.
func (c *Catalog) RemoveFavorite(ctx context.Context, user UserID, target ID) error {
	if _, err := c.db.ExecContext(ctx,
		"DELETE FROM favorite WHERE user = ? AND namespace = ? AND identifier = ?",
		user.DB(), int64(target.Kind()), int64(target.Num())); err != nil {
		return shared.Internalf("failed to remove favorite: %v", err)
	}
	return nil
}

// checkTarget verifies that a favorite or pin target exists and is of a
// favoritable kind.
func (c *Catalog) checkTarget(ctx context.Context, target ID) error {
	var err error
	switch target.Kind() {
	case KindArtist:
		_, err = c.GetArtist(ctx, ArtistID(target))
	case KindAlbum:
		_, err = c.GetAlbum(ctx, AlbumID(target))
	case KindTrack:
		_, err = c.GetTrack(ctx, TrackID(target))
	case KindPlaylist:
		_, err = c.GetPlaylist(ctx, PlaylistID(target))
	default:
		return shared.Invalidf("%s cannot be favorited or pinned", target.Kind())
	}
	return err
}
