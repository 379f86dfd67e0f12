package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

// MediaType classifies what an external identifier resolves to.
type MediaType string

const (
	MediaTypeArtist   MediaType = "artist"
	MediaTypeAlbum    MediaType = "album"
	MediaTypeTrack    MediaType = "track"
	MediaTypePlaylist MediaType = "playlist"
)

// ParseMediaType validates s as a media type.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(s) {
	case MediaTypeArtist, MediaTypeAlbum, MediaTypeTrack, MediaTypePlaylist:
		return MediaType(s), nil
	default:
		return "", shared.Invalidf("unknown media type %q", s)
	}
}

// Subscription is a user's standing request to keep an external identifier
// downloaded. The controller re-submits it every Interval; a nil Interval
// means submit once.
type Subscription struct {
	ID            uint32
	User          UserID
	ExternalID    string
	MediaType     MediaType // empty when unknown
	Interval      time.Duration
	HasInterval   bool
	Description   string
	LastSubmitted time.Time
	CreatedAt     time.Time
}

// SubscriptionCreate carries the fields of a new subscription.
type SubscriptionCreate struct {
	User        UserID
	ExternalID  string
	MediaType   MediaType
	Interval    time.Duration
	HasInterval bool
	Description string
}

const subscriptionColumns = "id, user, external_id, media_type, interval_sec, description, last_submitted, created_at"

func scanSubscription(row interface{ Scan(...any) error }) (Subscription, error) {
	var (
		sub           Subscription
		id, user      int64
		mediaType     sql.NullString
		intervalSec   sql.NullInt64
		lastSubmitted sql.NullInt64
		created       int64
	)
	err := row.Scan(&id, &user, &sub.ExternalID, &mediaType, &intervalSec, &sub.Description, &lastSubmitted, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, shared.NotFoundf("subscription")
	}
	if err != nil {
		return Subscription{}, shared.Internalf("failed to scan subscription: %v", err)
	}
	sub.ID = uint32(id)
	sub.User = UserIDFromDB(user)
	sub.MediaType = MediaType(mediaType.String)
	if intervalSec.Valid {
		sub.Interval = time.Duration(intervalSec.Int64) * time.Second
		sub.HasInterval = true
	}
	if lastSubmitted.Valid {
		sub.LastSubmitted = time.Unix(lastSubmitted.Int64, 0)
	}
	sub.CreatedAt = time.Unix(created, 0)
	return sub, nil
}

func (c *Catalog) listSubscriptions(ctx context.Context, query string, args ...any) ([]Subscription, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, shared.Internalf("failed to list subscriptions: %v", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ListSubscriptions returns every subscription ordered by id.
func (c *Catalog) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	return c.listSubscriptions(ctx,
		"SELECT "+subscriptionColumns+" FROM subscription ORDER BY id ASC")
}

// ListSubscriptionsByUser returns a user's subscriptions ordered by id.
func (c *Catalog) ListSubscriptionsByUser(ctx context.Context, user UserID) ([]Subscription, error) {
	return c.listSubscriptions(ctx,
		"SELECT "+subscriptionColumns+" FROM subscription WHERE user = ? ORDER BY id ASC", user.DB())
}

// CreateSubscription inserts a subscription. At most one subscription
// exists per (user, external id); creating a duplicate returns the
// existing row.
func (c *Catalog) CreateSubscription(ctx context.Context, create SubscriptionCreate) (Subscription, error) {
	if create.User.IsZero() {
		return Subscription{}, shared.Invalidf("subscription user is required")
	}
	if strings.TrimSpace(create.ExternalID) == "" {
		return Subscription{}, shared.Invalidf("subscription external id is empty")
	}
	if _, err := c.GetUser(ctx, create.User); err != nil {
		return Subscription{}, err
	}

	var interval sql.NullInt64
	if create.HasInterval {
		interval = sql.NullInt64{Int64: int64(create.Interval / time.Second), Valid: true}
	}
	if _, err := c.db.ExecContext(ctx,
		`INSERT INTO subscription (user, external_id, media_type, interval_sec, description)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user, external_id) DO NOTHING`,
		create.User.DB(), create.ExternalID, nullString(string(create.MediaType)),
		interval, create.Description); err != nil {
		return Subscription{}, shared.Internalf("failed to insert subscription: %v", err)
	}

	row := c.db.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscription WHERE user = ? AND external_id = ?",
		create.User.DB(), create.ExternalID)
	return scanSubscription(row)
}

// DeleteSubscription removes a user's subscription to an external id.
func (c *Catalog) DeleteSubscription(ctx context.Context, user UserID, externalID string) error {
	res, err := c.db.ExecContext(ctx,
		"DELETE FROM subscription WHERE user = ? AND external_id = ?", user.DB(), externalID)
	if err != nil {
		return shared.Internalf("failed to delete subscription: %v", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return shared.NotFoundf("subscription %q", externalID)
	}
	return nil
}

// MarkSubscriptionSubmitted records that the subscription was handed to
// the download orchestrator at the given time.
func (c *Catalog) MarkSubscriptionSubmitted(ctx context.Context, user UserID, externalID string, at time.Time) error {
	if _, err := c.db.ExecContext(ctx,
		"UPDATE subscription SET last_submitted = ? WHERE user = ? AND external_id = ?",
		at.Unix(), user.DB(), externalID); err != nil {
		return shared.Internalf("failed to mark subscription submitted: %v", err)
	}
	return nil
}
