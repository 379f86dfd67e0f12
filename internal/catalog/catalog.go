// package catalog implements the library engine: the identifier and
// property kernel, the transactional persistence layer over the relational
// schema, and the entity services for artists, albums, tracks, playlists,
// users, audio, images, scrobbles, pins, favorites and subscriptions.
//
// All mutating calls run inside a single write transaction; aggregate
// columns (album duration and track count, artist album count, listen
// counts) are derived by SQL views and never written by services. CRUD on
// searchable entities fans out to the search engine after commit, and
// scrobble creation wakes the scrobble dispatch workers.
package catalog

import (
	"context"
	"database/sql"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/diogo464/sonar-sub000/internal/blob"
	"github.com/diogo464/sonar-sub000/internal/search"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// Catalog is the entry point for every catalog service. It owns the
// database handle, the blob store, the search engine and the in-process
// session and wake state.
type Catalog struct {
	db     *sql.DB
	blobs  blob.Storage
	search search.Engine
	logger *log.Logger

	// level-triggered: any number of wakes collapse into one pending scan
	scrobbleWake chan struct{}

	sessionsMu sync.Mutex
	sessions   map[string]UserID
}

// New creates a Catalog over an already-migrated database.
func New(db *sql.DB, blobs blob.Storage, engine search.Engine, logger *log.Logger) *Catalog {
	return &Catalog{
		db:           db,
		blobs:        blobs,
		search:       engine,
		logger:       logger,
		scrobbleWake: make(chan struct{}, 1),
		sessions:     make(map[string]UserID),
	}
}

// ScrobbleWake returns the channel scrobble dispatch workers block on. It is
// signaled whenever a scrobble is created.
func (c *Catalog) ScrobbleWake() <-chan struct{} { return c.scrobbleWake }

// WakeScrobblers signals the scrobble dispatchers to scan for unsubmitted
// scrobbles.
func (c *Catalog) WakeScrobblers() {
	select {
	case c.scrobbleWake <- struct{}{}:
	default:
	}
}

// withTx runs fn inside a write transaction, committing on success and
// rolling back every side effect on failure.
func (c *Catalog) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return shared.Internalf("failed to begin transaction: %v", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return shared.Internalf("failed to commit transaction: %v", err)
	}
	return nil
}
