// Package sqlxrepos implements the reporting repositories (audit trail, dashboard figures) with sqlx.
package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
)

// named compiles a :name query against arg into a postgres ($N) query.
func named(query string, arg interface{}) (string, []interface{}, error) {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return "", nil, errors.Wrap(err, "compiling named query")
	}
	return sqlx.Rebind(sqlx.DOLLAR, q), args, nil
}

// selectAll scans every row of query into dest, a pointer to a slice of structs.
func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	rows, err := exec.QueryContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return sqlx.StructScan(rows, dest)
}

// scalar scans the single value returned by query into dest.
func scalar(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return exec.QueryRowContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...).Scan(dest)
}
