// package search defines the search backend capability interface and the
// built-in engine. The catalog projects denormalized documents into the
// engine on every CRUD; searches return ranked ids that the catalog
// re-hydrates in order.
package search

import "context"

// Document is the denormalized projection of a catalog entity.
type Document struct {
	ID       string // textual tagged id
	Artist   string
	Album    string
	Track    string
	Playlist string
	Lyrics   string
}

// Engine is the search backend interface. Only the built-in engine ships;
// an external backend can substitute behind the same interface.
type Engine interface {
	// Index inserts or replaces the document for doc.ID.
	Index(ctx context.Context, doc Document) error

	// Remove drops the document for id, if present.
	Remove(ctx context.Context, id string) error

	// Search returns up to limit ids ranked by relevance.
	Search(ctx context.Context, query string, limit int) ([]string, error)
}
