package catalog

import (
	"context"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

// Pins mark entities a user wants kept available locally; the download
// orchestrator keeps pinned media fetched.

// ListPins returns the entities pinned by a user.
func (c *Catalog) ListPins(ctx context.Context, user UserID) ([]ID, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT namespace, identifier FROM pin WHERE user = ? ORDER BY namespace ASC, identifier ASC",
		user.DB())
	if err != nil {
		return nil, shared.Internalf("failed to list pins: %v", err)
	}
	defer rows.Close()

	var pins []ID
	for rows.Next() {
		var namespace, identifier int64
		if err := rows.Scan(&namespace, &identifier); err != nil {
			return nil, shared.Internalf("failed to scan pin: %v", err)
		}
		pins = append(pins, MakeID(Kind(namespace), uint32(identifier)))
	}
	return pins, rows.Err()
}

// Pin pins an entity for the user. Idempotent.
func (c *Catalog) Pin(ctx context.Context, user UserID, target ID) error {
	if err := c.checkTarget(ctx, target); err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO pin (user, namespace, identifier) VALUES (?, ?, ?)",
		user.DB(), int64(target.Kind()), int64(target.Num())); err != nil {
		return shared.Internalf("failed to pin: %v", err)
	}
	return nil
}

// Unpin removes a pin. Removing an absent pin is a no-op.
func (c *Catalog) Unpin(ctx context.Context, user UserID, target ID) error {
	if _, err := c.db.ExecContext(ctx,
		"DELETE FROM pin WHERE user = ? AND namespace = ? AND identifier = ?",
		user.DB(), int64(target.Kind()), int64(target.Num())); err != nil {
		return shared.Internalf("failed to unpin: %v", err)
	}
	return nil
}

// GetUserProperties returns the properties a user attached to an entity.
// These are disjoint from the entity's global properties.
func (c *Catalog) GetUserProperties(ctx context.Context, user UserID, target ID) (Properties, error) {
	return propertyGetUser(ctx, c.db, target, user)
}

// UpdateUserProperties applies property updates in the user's scope.
func (c *Catalog) UpdateUserProperties(ctx context.Context, user UserID, target ID, updates []PropertyUpdate) error {
	if err := c.checkTarget(ctx, target); err != nil {
		return err
	}
	if _, err := c.GetUser(ctx, user); err != nil {
		return err
	}
	return propertyApplyUser(ctx, c.db, target, user, updates)
}
