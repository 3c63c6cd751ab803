package store

import (
	"context"
	"database/sql"
	"errors"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// builder renders ent SQL builders in the SQLite dialect.
var builder = entsql.Dialect(dialect.SQLite)

func execQuery(ctx context.Context, tx *sql.Tx, q entsql.Querier) (sql.Result, error) {
	query, args := q.Query()
	return tx.ExecContext(ctx, query, args...)
}

func queryRows(ctx context.Context, tx *sql.Tx, q entsql.Querier) (*sql.Rows, error) {
	query, args := q.Query()
	return tx.QueryContext(ctx, query, args...)
}

func queryRow(ctx context.Context, tx *sql.Tx, q entsql.Querier) *sql.Row {
	query, args := q.Query()
	return tx.QueryRowContext(ctx, query, args...)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
