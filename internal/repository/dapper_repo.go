package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// RawQuery executes a Dapper-style raw SQL query and scans the rows into R,
// for queries whose shape (a join projection, a distinct id list) doesn't
// map to any repository's entity type.
func RawQuery[R any](db *sqlx.DB, ctx context.Context, sql string, args ...interface{}) ([]R, error) {
	var results []R
	err := db.SelectContext(ctx, &results, sql, args...)
	return results, err
}
