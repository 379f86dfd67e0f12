package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

// querier is satisfied by both *sql.DB and *sql.Tx so that service helpers
// can run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// valueUpdateString applies a [ValueUpdate] to a non-nullable text column.
// Unset writes the empty string.
func valueUpdateString(ctx context.Context, q querier, table, field string, id int64, update ValueUpdate[string]) error {
	value := ""
	switch {
	case update.IsUnchanged():
		return nil
	case update.IsUnset():
	default:
		value, _ = update.Get()
	}

	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", table, field)
	if _, err := q.ExecContext(ctx, query, value, id); err != nil {
		return shared.Internalf("failed to update %s.%s: %v", table, field, err)
	}
	return nil
}

// valueUpdateIDNonNull applies a [ValueUpdate] to a non-nullable id column.
// Unset is a domain error.
func valueUpdateIDNonNull(ctx context.Context, q querier, table, field string, id int64, update ValueUpdate[int64]) error {
	if update.IsUnchanged() {
		return nil
	}
	if update.IsUnset() {
		return shared.Invalidf("cannot unset %s on %s update", field, table)
	}

	value, _ := update.Get()
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", table, field)
	if _, err := q.ExecContext(ctx, query, value, id); err != nil {
		return shared.Internalf("failed to update %s.%s: %v", table, field, err)
	}
	return nil
}

// valueUpdateIDNullable applies a [ValueUpdate] to a nullable id column.
func valueUpdateIDNullable(ctx context.Context, q querier, table, field string, id int64, update ValueUpdate[int64]) error {
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", table, field)
	switch {
	case update.IsUnchanged():
		return nil
	case update.IsUnset():
		if _, err := q.ExecContext(ctx, query, nil, id); err != nil {
			return shared.Internalf("failed to clear %s.%s: %v", table, field, err)
		}
	default:
		value, _ := update.Get()
		if _, err := q.ExecContext(ctx, query, value, id); err != nil {
			return shared.Internalf("failed to update %s.%s: %v", table, field, err)
		}
	}
	return nil
}

// valueUpdateBool applies a [ValueUpdate] to a non-nullable boolean column.
// Unset writes false.
func valueUpdateBool(ctx context.Context, q querier, table, field string, id int64, update ValueUpdate[bool]) error {
	value := false
	switch {
	case update.IsUnchanged():
		return nil
	case update.IsUnset():
	default:
		value, _ = update.Get()
	}

	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", table, field)
	if _, err := q.ExecContext(ctx, query, value, id); err != nil {
		return shared.Internalf("failed to update %s.%s: %v", table, field, err)
	}
	return nil
}

func nullID(n int64, valid bool) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: valid}
}
