package repositories

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect captures what differs between the supported SQL backends.
// Queries are written with '?' placeholders and rebound per dialect.
type Dialect struct {
	Name   string
	schema []string

	numbered bool

	// isConflict reports a lost write race: a uniqueness violation or a
	// serialization/busy failure.
	isConflict func(err error) bool
	// isMissingRef reports a foreign key violation.
	isMissingRef func(err error) bool
}

var Postgres = Dialect{
	Name:         "postgres",
	schema:       postgresSchema,
	numbered:     true,
	isConflict:   pgIsConflict,
	isMissingRef: pgIsMissingRef,
}

var SQLite = Dialect{
	Name:         "sqlite",
	schema:       sqliteSchema,
	isConflict:   sqliteIsConflict,
	isMissingRef: sqliteIsMissingRef,
}

func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func pgIsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "23505", "40001", "40P01": // unique_violation, serialization_failure, deadlock_detected
		return true
	}
	return false
}

func pgIsMissingRef(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func sqliteIsConflict(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
		sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func sqliteIsMissingRef(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}
