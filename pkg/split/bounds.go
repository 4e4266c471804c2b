package split

import (
	"context"
	"database/sql"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// QueryBounds runs a bounding query and returns the first two columns of its first row.
func QueryBounds(ctx context.Context, q Querier, boundingQuery string) (Bounds, error) {
	rows, err := q.QueryContext(ctx, boundingQuery)
	if err != nil {
		return Bounds{}, errors.Wrap(err, errors.ErrorTypeQuery, "failed to run bounding query").
			WithDetail("query", boundingQuery)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Bounds{}, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read bounding query columns")
	}
	if len(cols) != 2 {
		return Bounds{}, errors.Newf(errors.ErrorTypeValidation,
			"bounding query must return exactly two columns (min, max), got %d", len(cols)).
			WithDetail("query", boundingQuery)
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Bounds{}, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read bounding query result")
		}
		return Bounds{}, errors.New(errors.ErrorTypeValidation, "bounding query returned no rows").
			WithDetail("query", boundingQuery)
	}

	var b Bounds
	if err := rows.Scan(&b.Min, &b.Max); err != nil {
		return Bounds{}, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan bounding query result")
	}
	if err := rows.Err(); err != nil {
		return Bounds{}, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read bounding query result")
	}
	return b, nil
}
