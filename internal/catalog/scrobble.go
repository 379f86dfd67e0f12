package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

// Scrobble records a single listen of a track by a user.
type Scrobble struct {
	ID             ScrobbleID
	User           UserID
	Track          TrackID
	ListenAt       time.Time
	ListenDuration time.Duration
	ListenDevice   string
	CreatedAt      time.Time
}

// ScrobbleCreate carries the fields of a new scrobble.
type ScrobbleCreate struct {
	User           UserID
	Track          TrackID
	ListenAt       time.Time
	ListenDuration time.Duration
	ListenDevice   string
}

const scrobbleColumns = "id, user, track, listen_at, listen_duration_ms, listen_device, created_at"

func scanScrobble(row interface{ Scan(...any) error }) (Scrobble, error) {
	var (
		scrobble         Scrobble
		id, user, track  int64
		listenAt         int64
		listenDurationMS int64
		created          int64
	)
	err := row.Scan(&id, &user, &track, &listenAt, &listenDurationMS, &scrobble.ListenDevice, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Scrobble{}, shared.NotFoundf("scrobble")
	}
	if err != nil {
		return Scrobble{}, shared.Internalf("failed to scan scrobble: %v", err)
	}
	scrobble.ID = ScrobbleIDFromDB(id)
	scrobble.User = UserIDFromDB(user)
	scrobble.Track = TrackIDFromDB(track)
	scrobble.ListenAt = time.Unix(listenAt, 0)
	scrobble.ListenDuration = time.Duration(listenDurationMS) * time.Millisecond
	scrobble.CreatedAt = time.Unix(created, 0)
	return scrobble, nil
}

func (c *Catalog) listScrobbles(ctx context.Context, query string, args ...any) ([]Scrobble, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, shared.Internalf("failed to list scrobbles: %v", err)
	}
	defer rows.Close()

	var scrobbles []Scrobble
	for rows.Next() {
		scrobble, err := scanScrobble(rows)
		if err != nil {
			return nil, err
		}
		scrobbles = append(scrobbles, scrobble)
	}
	return scrobbles, rows.Err()
}

// ListScrobbles returns scrobbles ordered by id.
func (c *Catalog) ListScrobbles(ctx context.Context, params ListParams) ([]Scrobble, error) {
	offset, limit := params.offsetLimit()
	return c.listScrobbles(ctx,
		"SELECT "+scrobbleColumns+" FROM scrobble ORDER BY id ASC LIMIT ? OFFSET ?", limit, offset)
}

// ListScrobblesByUser returns a user's scrobbles ordered by id.
func (c *Catalog) ListScrobblesByUser(ctx context.Context, user UserID, params ListParams) ([]Scrobble, error) {
	offset, limit := params.offsetLimit()
	return c.listScrobbles(ctx,
		"SELECT "+scrobbleColumns+" FROM scrobble WHERE user = ? ORDER BY id ASC LIMIT ? OFFSET ?",
		user.DB(), limit, offset)
}

// GetScrobble returns the scrobble with the given id.
func (c *Catalog) GetScrobble(ctx context.Context, id ScrobbleID) (Scrobble, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+scrobbleColumns+" FROM scrobble WHERE id = ?", id.DB())
	return scanScrobble(row)
}

// CreateScrobble records a listen and wakes the scrobble dispatchers.
func (c *Catalog) CreateScrobble(ctx context.Context, create ScrobbleCreate) (Scrobble, error) {
	if create.User.IsZero() {
		return Scrobble{}, shared.Invalidf("scrobble user is required")
	}
	if create.Track.IsZero() {
		return Scrobble{}, shared.Invalidf("scrobble track is required")
	}
	listenAt := create.ListenAt
	if listenAt.IsZero() {
		listenAt = time.Now()
	}

	var scrobble Scrobble
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUserTx(ctx, tx, create.User); err != nil {
			return err
		}
		if _, err := getTrackTx(ctx, tx, create.Track); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO scrobble (user, track, listen_at, listen_duration_ms, listen_device) VALUES (?, ?, ?, ?, ?)",
			create.User.DB(), create.Track.DB(), listenAt.Unix(),
			create.ListenDuration.Milliseconds(), create.ListenDevice)
		if err != nil {
			return shared.Internalf("failed to insert scrobble: %v", err)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return shared.Internalf("failed to read scrobble id: %v", err)
		}
		row := tx.QueryRowContext(ctx, "SELECT "+scrobbleColumns+" FROM scrobble WHERE id = ?", rowID)
		scrobble, err = scanScrobble(row)
		return err
	})
	if err != nil {
		return Scrobble{}, err
	}
	c.WakeScrobblers()
	return scrobble, nil
}

// DeleteScrobble removes a scrobble and its submission records.
func (c *Catalog) DeleteScrobble(ctx context.Context, id ScrobbleID) error {
	if _, err := c.GetScrobble(ctx, id); err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM scrobble WHERE id = ?", id.DB()); err != nil {
		return shared.Internalf("failed to delete scrobble: %v", err)
	}
	return nil
}

// ListUnsubmittedScrobbles returns scrobbles that have no submission record
// for the named scrobbler, oldest first. A zero user matches every user.
func (c *Catalog) ListUnsubmittedScrobbles(ctx context.Context, scrobbler string, user UserID, limit int64) ([]Scrobble, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + scrobbleColumns + ` FROM scrobble
		 WHERE id NOT IN (SELECT scrobble FROM scrobble_submission WHERE scrobbler = ?)`
	args := []any{scrobbler}
	if !user.IsZero() {
		query += " AND user = ?"
		args = append(args, user.DB())
	}
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, limit)
	return c.listScrobbles(ctx, query, args...)
}

// RegisterSubmission marks a scrobble as submitted to a scrobbler.
// Registration is idempotent.
func (c *Catalog) RegisterSubmission(ctx context.Context, id ScrobbleID, scrobbler string) error {
	if scrobbler == "" {
		return shared.Invalidf("scrobbler name is empty")
	}
	if _, err := c.GetScrobble(ctx, id); err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO scrobble_submission (scrobble, scrobbler) VALUES (?, ?)",
		id.DB(), scrobbler); err != nil {
		return shared.Internalf("failed to register submission: %v", err)
	}
	return nil
}
