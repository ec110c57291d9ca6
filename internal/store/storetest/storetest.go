// Package storetest opens throwaway sqlite stores for tests.
package storetest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jdholdren/podindex/internal/migrations"
	"github.com/jdholdren/podindex/internal/store"
)

var dbCounter atomic.Int64

// New returns a migrated, empty in-memory store that is closed when the test ends.
func New(t *testing.T) (store.Store, *sqlx.DB) {
	t.Helper()

	// Each test gets its own named memory database so parallel tests don't share rows.
	dsn := fmt.Sprintf("file:podindex-test-%d?mode=memory&cache=shared", dbCounter.Add(1))
	dbx, err := sqlx.Open(store.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("error opening test database: %s", err)
	}
	dbx.SetMaxOpenConns(1)
	t.Cleanup(func() { dbx.Close() })

	if err := migrations.Run(dbx); err != nil {
		t.Fatalf("error migrating test database: %s", err)
	}

	return store.New(dbx), dbx
}

// MustExec runs raw statements for seeding fixtures.
func MustExec(t *testing.T, dbx *sqlx.DB, query string, args ...any) {
	t.Helper()

	if _, err := dbx.Exec(query, args...); err != nil {
		t.Fatalf("error seeding fixture %q: %s", query, err)
	}
}
