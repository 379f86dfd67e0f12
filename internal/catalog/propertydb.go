package catalog

import (
	"context"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

// Property and genre sub-services. Both are keyed on (namespace,
// identifier) where namespace is the entity kind and identifier the
// per-kind sequence; properties additionally carry an optional user column
// partitioning user-scoped entries from global ones.

func propertyGet(ctx context.Context, q querier, id ID) (Properties, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT key, value FROM property WHERE namespace = ? AND identifier = ? AND user IS NULL",
		int64(id.Kind()), int64(id.Num()))
	if err != nil {
		return nil, shared.Internalf("failed to query properties: %v", err)
	}
	defer rows.Close()

	props := Properties{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, shared.Internalf("failed to scan property: %v", err)
		}
		props[PropertyKey(key)] = PropertyValue(value)
	}
	return props, rows.Err()
}

func propertyGetUser(ctx context.Context, q querier, id ID, user UserID) (Properties, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT key, value FROM property WHERE namespace = ? AND identifier = ? AND user = ?",
		int64(id.Kind()), int64(id.Num()), user.DB())
	if err != nil {
		return nil, shared.Internalf("failed to query user properties: %v", err)
	}
	defer rows.Close()

	props := Properties{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, shared.Internalf("failed to scan property: %v", err)
		}
		props[PropertyKey(key)] = PropertyValue(value)
	}
	return props, rows.Err()
}

func propertyReplace(ctx context.Context, q querier, id ID, props Properties) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM property WHERE namespace = ? AND identifier = ? AND user IS NULL",
		int64(id.Kind()), int64(id.Num())); err != nil {
		return shared.Internalf("failed to clear properties: %v", err)
	}
	for _, key := range props.Keys() {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO property (namespace, identifier, key, value) VALUES (?, ?, ?, ?)",
			int64(id.Kind()), int64(id.Num()), string(key), string(props[key])); err != nil {
			return shared.Internalf("failed to insert property: %v", err)
		}
	}
	return nil
}

func propertyApply(ctx context.Context, q querier, id ID, updates []PropertyUpdate) error {
	for _, update := range updates {
		switch update.Action {
		case PropertyActionSet:
			if _, err := q.ExecContext(ctx,
				`INSERT INTO property (namespace, identifier, key, value) VALUES (?, ?, ?, ?)
				 ON CONFLICT (namespace, identifier, key) WHERE user IS NULL DO UPDATE SET value = excluded.value`,
				int64(id.Kind()), int64(id.Num()), string(update.Key), string(update.Value)); err != nil {
				return shared.Internalf("failed to set property %q: %v", update.Key, err)
			}
		case PropertyActionRemove:
			if _, err := q.ExecContext(ctx,
				"DELETE FROM property WHERE namespace = ? AND identifier = ? AND key = ? AND user IS NULL",
				int64(id.Kind()), int64(id.Num()), string(update.Key)); err != nil {
				return shared.Internalf("failed to remove property %q: %v", update.Key, err)
			}
		}
	}
	return nil
}

func propertyApplyUser(ctx context.Context, q querier, id ID, user UserID, updates []PropertyUpdate) error {
	for _, update := range updates {
		switch update.Action {
		case PropertyActionSet:
			if _, err := q.ExecContext(ctx,
				`INSERT INTO property (namespace, identifier, user, key, value) VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT (namespace, identifier, user, key) WHERE user IS NOT NULL DO UPDATE SET value = excluded.value`,
				int64(id.Kind()), int64(id.Num()), user.DB(), string(update.Key), string(update.Value)); err != nil {
				return shared.Internalf("failed to set user property %q: %v", update.Key, err)
			}
		case PropertyActionRemove:
			if _, err := q.ExecContext(ctx,
				"DELETE FROM property WHERE namespace = ? AND identifier = ? AND user = ? AND key = ?",
				int64(id.Kind()), int64(id.Num()), user.DB(), string(update.Key)); err != nil {
				return shared.Internalf("failed to remove user property %q: %v", update.Key, err)
			}
		}
	}
	return nil
}

// propertyClearAll removes every property row, global and user-scoped,
// attached to id. Used on entity deletion.
func propertyClearAll(ctx context.Context, q querier, id ID) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM property WHERE namespace = ? AND identifier = ?",
		int64(id.Kind()), int64(id.Num())); err != nil {
		return shared.Internalf("failed to clear properties: %v", err)
	}
	return nil
}

func genreGet(ctx context.Context, q querier, id ID) (Genres, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT genre FROM genre WHERE namespace = ? AND identifier = ? ORDER BY genre ASC",
		int64(id.Kind()), int64(id.Num()))
	if err != nil {
		return nil, shared.Internalf("failed to query genres: %v", err)
	}
	defer rows.Close()

	var genres Genres
	for rows.Next() {
		var genre string
		if err := rows.Scan(&genre); err != nil {
			return nil, shared.Internalf("failed to scan genre: %v", err)
		}
		genres = genres.Insert(Genre(genre))
	}
	return genres, rows.Err()
}

func genreReplace(ctx context.Context, q querier, id ID, genres Genres) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM genre WHERE namespace = ? AND identifier = ?",
		int64(id.Kind()), int64(id.Num())); err != nil {
		return shared.Internalf("failed to clear genres: %v", err)
	}
	for _, genre := range genres {
		if _, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO genre (namespace, identifier, genre) VALUES (?, ?, ?)",
			int64(id.Kind()), int64(id.Num()), string(genre)); err != nil {
			return shared.Internalf("failed to insert genre: %v", err)
		}
	}
	return nil
}

func genreApply(ctx context.Context, q querier, id ID, updates []GenreUpdate) error {
	for _, update := range updates {
		switch update.Action {
		case GenreActionSet:
			if _, err := q.ExecContext(ctx,
				"INSERT OR IGNORE INTO genre (namespace, identifier, genre) VALUES (?, ?, ?)",
				int64(id.Kind()), int64(id.Num()), string(update.Genre)); err != nil {
				return shared.Internalf("failed to insert genre: %v", err)
			}
		case GenreActionRemove:
			if _, err := q.ExecContext(ctx,
				"DELETE FROM genre WHERE namespace = ? AND identifier = ? AND genre = ?",
				int64(id.Kind()), int64(id.Num()), string(update.Genre)); err != nil {
				return shared.Internalf("failed to remove genre: %v", err)
			}
		}
	}
	return nil
}

func genreClear(ctx context.Context, q querier, id ID) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM genre WHERE namespace = ? AND identifier = ?",
		int64(id.Kind()), int64(id.Num())); err != nil {
		return shared.Internalf("failed to clear genres: %v", err)
	}
	return nil
}
