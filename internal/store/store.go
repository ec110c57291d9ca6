// Package store is the thin adapter between the feed directory and its
// relational store.
//
// It only knows how to run single statements built with squirrel and how to
// turn driver failures into the podindex error taxonomy. Every call is
// independent; nothing here spans a transaction or retries.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/jdholdren/podindex/internal/podindex"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// sqlite extended result codes for unique and primary key violations.
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// pq's SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

type (
	// Store runs single statements against the database.
	Store struct {
		db      *sqlx.DB
		builder sq.StatementBuilderType
		driver  string
	}

	// Config says which database to open.
	Config struct {
		Driver string
		DSN    string
	}
)

// Open connects to the database described by cfg.
func Open(cfg Config) (*sqlx.DB, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		dsn := cfg.DSN
		if !strings.Contains(dsn, "?") {
			dsn = fmt.Sprintf("%s?_txlock=immediate&_journal_mode=WAL&_busy_timeout=5000", dsn)
		}
		dbx, err := sqlx.Open(DriverSQLite, dsn)
		if err != nil {
			return nil, fmt.Errorf("error opening sqlite database: %s", err)
		}
		// One writer at a time keeps sqlite from handing out SQLITE_BUSY.
		dbx.SetMaxOpenConns(1)
		return dbx, nil
	case DriverPostgres:
		dbx, err := sqlx.Open(DriverPostgres, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("error opening postgres database: %s", err)
		}
		return dbx, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q: %w", cfg.Driver, podindex.ErrInvalidInput)
	}
}

// New wraps an open connection. The placeholder style follows the driver.
func New(db *sqlx.DB) Store {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if db.DriverName() == DriverPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}

	return Store{
		db:      db,
		builder: builder,
		driver:  db.DriverName(),
	}
}

// Builder hands out a statement builder using this store's placeholders.
func (s Store) Builder() sq.StatementBuilderType {
	return s.builder
}

// Ping checks that the database is reachable.
func (s Store) Ping(ctx context.Context) error {
	return translate(s.db.PingContext(ctx), "error pinging database")
}

// QueryOne scans the single row matched by q into dest.
//
// No match is reported as [podindex.ErrNotFound].
func (s Store) QueryOne(ctx context.Context, dest any, q sq.SelectBuilder) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}

	return translate(s.db.GetContext(ctx, dest, query, args...), "error querying row")
}

// QueryMany scans every row matched by q into dest, which must be a pointer
// to a slice. No match leaves the slice empty.
func (s Store) QueryMany(ctx context.Context, dest any, q sq.SelectBuilder) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}

	return translate(s.db.SelectContext(ctx, dest, query, args...), "error querying rows")
}

// Insert adds a row to a table with an integer "id" primary key and returns
// the generated ID.
func (s Store) Insert(ctx context.Context, table string, fields map[string]any) (int64, error) {
	q := s.builder.Insert(table).SetMap(fields)

	if s.driver == DriverPostgres {
		query, args, err := q.Suffix("RETURNING id").ToSql()
		if err != nil {
			return 0, fmt.Errorf("error constructing sql: %s", err)
		}
		var id int64
		if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, translate(err, "error inserting into "+table)
		}
		return id, nil
	}

	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("error constructing sql: %s", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translate(err, "error inserting into "+table)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, translate(err, "error reading generated id for "+table)
	}

	return id, nil
}

// Put adds a row to a table that is keyed by something other than a
// generated ID, such as a feed's GUID record.
func (s Store) Put(ctx context.Context, table string, fields map[string]any) error {
	query, args, err := s.builder.Insert(table).SetMap(fields).ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return translate(err, "error inserting into "+table)
	}

	return nil
}

// Update sets fields on every row of table matched by where and reports how
// many rows were touched.
func (s Store) Update(ctx context.Context, table string, where sq.Sqlizer, fields map[string]any) (int64, error) {
	query, args, err := s.builder.Update(table).SetMap(fields).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("error constructing sql: %s", err)
	}

	return s.exec(ctx, "error updating "+table, query, args)
}

// Delete removes every row of table matched by where.
func (s Store) Delete(ctx context.Context, table string, where sq.Sqlizer) (int64, error) {
	query, args, err := s.builder.Delete(table).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("error constructing sql: %s", err)
	}

	return s.exec(ctx, "error deleting from "+table, query, args)
}

func (s Store) exec(ctx context.Context, action, query string, args []any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translate(err, action)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, translate(err, action)
	}

	return n, nil
}

// translate maps a driver error onto the podindex taxonomy, keeping the
// original error in the chain.
func translate(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", action, podindex.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", action, podindex.ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w: %w", action, podindex.ErrStore, err)
	}
}

func isUniqueViolation(err error) bool {
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqliteConstraintUnique || code == sqliteConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}

	return false
}
