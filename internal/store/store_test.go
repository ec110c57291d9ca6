package store_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/podindex/internal/podindex"
	"github.com/jdholdren/podindex/internal/store"
	"github.com/jdholdren/podindex/internal/store/storetest"
)

type feedRow struct {
	ID  int64  `db:"id"`
	URL string `db:"url"`
}

func TestInsertAndQuery(t *testing.T) {
	var (
		ctx  = context.Background()
		s, _ = storetest.New(t)
	)

	id, err := s.Insert(ctx, "feeds", map[string]any{"url": "https://example.com/feed"})
	require.NoError(t, err)
	assert.NotZero(t, id)

	var row feedRow
	err = s.QueryOne(ctx, &row, s.Builder().Select("id", "url").From("feeds").Where(sq.Eq{"id": id}))
	require.NoError(t, err)
	assert.Equal(t, feedRow{ID: id, URL: "https://example.com/feed"}, row)

	var rows []feedRow
	err = s.QueryMany(ctx, &rows, s.Builder().Select("id", "url").From("feeds").Where(sq.Eq{"url": "nope"}))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestQueryOne_NotFound(t *testing.T) {
	s, _ := storetest.New(t)

	var row feedRow
	err := s.QueryOne(context.Background(), &row, s.Builder().Select("id", "url").From("feeds").Where(sq.Eq{"id": 42}))
	assert.ErrorIs(t, err, podindex.ErrNotFound)
}

func TestInsert_DuplicateURLIsConflict(t *testing.T) {
	var (
		ctx  = context.Background()
		s, _ = storetest.New(t)
	)

	_, err := s.Insert(ctx, "feeds", map[string]any{"url": "https://example.com/feed"})
	require.NoError(t, err)

	_, err = s.Insert(ctx, "feeds", map[string]any{"url": "https://example.com/feed"})
	assert.ErrorIs(t, err, podindex.ErrConflict)
}

func TestPut_DuplicateKeyIsConflict(t *testing.T) {
	var (
		ctx  = context.Background()
		s, _ = storetest.New(t)
	)

	id, err := s.Insert(ctx, "feeds", map[string]any{"url": "https://example.com/feed"})
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "feed_guids", map[string]any{"feed_id": id, "guid": "abc"}))
	err = s.Put(ctx, "feed_guids", map[string]any{"feed_id": id, "guid": "def"})
	assert.ErrorIs(t, err, podindex.ErrConflict)
}

func TestUpdateAndDelete(t *testing.T) {
	var (
		ctx  = context.Background()
		s, _ = storetest.New(t)
	)

	id, err := s.Insert(ctx, "feeds", map[string]any{"url": "https://example.com/feed"})
	require.NoError(t, err)

	n, err := s.Update(ctx, "feeds", sq.Eq{"id": id}, map[string]any{"title": "Hello"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.Update(ctx, "feeds", sq.Eq{"id": id + 1}, map[string]any{"title": "Nobody"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = s.Delete(ctx, "feeds", sq.Eq{"id": id})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func newMockStore(t *testing.T, driver string) (store.Store, sqlmock.Sqlmock) {
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { mockDb.Close() })

	return store.New(sqlx.NewDb(mockDb, driver)), mock
}

func TestTranslate_DriverErrors(t *testing.T) {
	tests := []struct {
		name    string
		dbErr   error
		wantErr error
	}{
		{
			name:    "postgres unique violation",
			dbErr:   &pq.Error{Code: "23505"},
			wantErr: podindex.ErrConflict,
		},
		{
			name:    "other postgres error",
			dbErr:   &pq.Error{Code: "42P01"},
			wantErr: podindex.ErrStore,
		},
		{
			name:    "timeout",
			dbErr:   context.DeadlineExceeded,
			wantErr: podindex.ErrStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t, "sqlmock")
			mock.ExpectExec(`UPDATE feeds SET title = \? WHERE id = \?`).
				WithArgs("x", 1).
				WillReturnError(tt.dbErr)

			_, err := s.Update(context.Background(), "feeds", sq.Eq{"id": 1}, map[string]any{"title": "x"})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, tt.dbErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestInsert_PostgresUsesReturning(t *testing.T) {
	s, mock := newMockStore(t, store.DriverPostgres)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO feeds (original_url,url) VALUES ($1,$2) RETURNING id`)).
		WithArgs("https://example.com/feed", "https://example.com/feed").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := s.Insert(context.Background(), "feeds", map[string]any{
		"url":          "https://example.com/feed",
		"original_url": "https://example.com/feed",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
