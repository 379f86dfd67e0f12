package catalog

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/diogo464/sonar-sub000/internal/blob"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// Image is cover art or an avatar stored in the blob store.
type Image struct {
	ID        ImageID
	MimeType  string
	BlobKey   string
	Size      int64
	CreatedAt time.Time
}

// ImageCreate carries the metadata and content of a new image.
type ImageCreate struct {
	MimeType string
	Content  io.Reader
}

const imageColumns = "id, mime_type, blob_key, blob_size, created_at"

func scanImage(row interface{ Scan(...any) error }) (Image, error) {
	var (
		image   Image
		id      int64
		created int64
	)
	err := row.Scan(&id, &image.MimeType, &image.BlobKey, &image.Size, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Image{}, shared.NotFoundf("image")
	}
	if err != nil {
		return Image{}, shared.Internalf("failed to scan image: %v", err)
	}
	image.ID = ImageIDFromDB(id)
	image.CreatedAt = time.Unix(created, 0)
	return image, nil
}

// GetImage returns the image with the given id.
func (c *Catalog) GetImage(ctx context.Context, id ImageID) (Image, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM image WHERE id = ?", id.DB())
	return scanImage(row)
}

// CreateImage drains the content into the blob store and inserts the image
// row. The blob is removed again if the insert fails.
func (c *Catalog) CreateImage(ctx context.Context, create ImageCreate) (Image, error) {
	if create.MimeType == "" {
		return Image{}, shared.Invalidf("image mime type is empty")
	}
	if create.Content == nil {
		return Image{}, shared.Invalidf("image content is required")
	}

	key := blob.RandomKey("image")
	size, err := c.blobs.Write(ctx, key, create.Content)
	if err != nil {
		return Image{}, shared.Internalf("failed to store image blob: %v", err)
	}

	res, err := c.db.ExecContext(ctx,
		"INSERT INTO image (mime_type, blob_key, blob_size) VALUES (?, ?, ?)",
		create.MimeType, key, size)
	if err != nil {
		c.blobs.Delete(ctx, key)
		return Image{}, shared.Internalf("failed to insert image: %v", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return Image{}, shared.Internalf("failed to read image id: %v", err)
	}
	return c.GetImage(ctx, ImageIDFromDB(rowID))
}

// DownloadImage returns a reader over the full image blob.
func (c *Catalog) DownloadImage(ctx context.Context, id ImageID) (io.ReadCloser, Image, error) {
	image, err := c.GetImage(ctx, id)
	if err != nil {
		return nil, Image{}, err
	}
	r, err := c.blobs.Read(ctx, image.BlobKey, blob.Range{})
	if err != nil {
		return nil, Image{}, err
	}
	return r, image, nil
}

// DeleteImage removes the image row and its blob. References from artists,
// albums, tracks, playlists and users are set to NULL by the schema.
func (c *Catalog) DeleteImage(ctx context.Context, id ImageID) error {
	image, err := c.GetImage(ctx, id)
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM image WHERE id = ?", id.DB()); err != nil {
		return shared.Internalf("failed to delete image: %v", err)
	}
	if err := c.blobs.Delete(ctx, image.BlobKey); err != nil {
		c.logger.Warn("failed to delete image blob", "key", image.BlobKey, "err", err)
	}
	return nil
}
