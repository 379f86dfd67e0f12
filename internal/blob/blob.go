// package blob provides content-addressed opaque byte storage with ranged
// reads. Keys are opaque strings with a kind prefix (e.g. "audio/…",
// "image/…") followed by a random suffix; blob hashes and sizes live on the
// owning catalog row, not in the store.
package blob

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Range is a window into a blob. A zero Offset starts at the beginning; a
// Length <= 0 reads to the end.
type Range struct {
	Offset int64
	Length int64
}

// Storage is the capability interface over a blob backend. The memory and
// filesystem backends are behavioral substitutes.
type Storage interface {
	// Write stores the full contents of r under key, replacing any previous
	// blob, and returns the number of bytes written.
	Write(ctx context.Context, key string, r io.Reader) (int64, error)

	// Read returns a reader over the requested range of the blob. Reading
	// past the end yields fewer bytes; a missing key or a negative range
	// offset is an error.
	Read(ctx context.Context, key string, rng Range) (io.ReadCloser, error)

	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// RandomKey generates a new key under the given kind prefix.
func RandomKey(prefix string) string {
	return prefix + "/" + uuid.New().String()
}
