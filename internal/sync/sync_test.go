package sync_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/podindex/internal/catalog"
	"github.com/jdholdren/podindex/internal/podindex"
	"github.com/jdholdren/podindex/internal/store/storetest"
	"github.com/jdholdren/podindex/internal/sync"
)

var fixedNow = time.Unix(1_000_000, 0)

func newTestEngine(t *testing.T, cfg sync.Config) (*sync.Engine, *sqlx.DB) {
	s, dbx := storetest.New(t)
	storetest.MustExec(t, dbx, `INSERT INTO feeds (id, url, title) VALUES (1, 'https://a.example.com/feed', 'A'), (2, 'https://b.example.com/feed', 'B')`)
	storetest.MustExec(t, dbx, `INSERT INTO feeds (id, url, title, dead) VALUES (3, 'https://c.example.com/feed', 'C', 1)`)

	return sync.New(s, catalog.New(s), cfg, sync.WithClock(func() time.Time { return fixedNow })), dbx
}

func addItem(t *testing.T, dbx *sqlx.DB, id, feedID, timeAdded int64) {
	storetest.MustExec(t, dbx, `INSERT INTO items (id, feed_id, guid, time_added) VALUES (?, ?, ?, ?)`,
		id, feedID, fmt.Sprintf("guid-%d", id), timeAdded)
}

func ptr(i int64) *int64 { return &i }

func itemIDs(items []podindex.Episode) []int64 {
	ids := []int64{}
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

func feedIDs(feeds []podindex.Feed) []int64 {
	ids := []int64{}
	for _, f := range feeds {
		ids = append(ids, f.ID)
	}
	return ids
}

func TestSync_SharedTimestamp(t *testing.T) {
	var (
		ctx         = context.Background()
		engine, dbx = newTestEngine(t, sync.Config{})
	)
	addItem(t, dbx, 1, 1, 100)
	addItem(t, dbx, 2, 1, 100)
	addItem(t, dbx, 3, 2, 101)

	first, err := engine.Sync(ctx, sync.Cursor{Since: ptr(100)}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, itemIDs(first.Items))
	assert.Equal(t, []int64{1}, feedIDs(first.Feeds))
	assert.EqualValues(t, 100, first.NextSince)
	assert.EqualValues(t, 2, first.Position)

	second, err := engine.Sync(ctx, sync.Cursor{Since: ptr(first.NextSince), Position: first.Position}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, itemIDs(second.Items))
	assert.Equal(t, []int64{2}, feedIDs(second.Feeds))
	assert.EqualValues(t, 101, second.NextSince)
	assert.EqualValues(t, 3, second.Position)
}

func TestSync_PositionIsLastRowNotMaxID(t *testing.T) {
	var (
		ctx         = context.Background()
		engine, dbx = newTestEngine(t, sync.Config{})
	)
	addItem(t, dbx, 9, 1, 100)
	addItem(t, dbx, 2, 1, 101)
	addItem(t, dbx, 5, 2, 101)

	first, err := engine.Sync(ctx, sync.Cursor{Since: ptr(100)}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 2}, itemIDs(first.Items))
	assert.EqualValues(t, 101, first.NextSince)
	assert.EqualValues(t, 2, first.Position)

	// Resuming at the largest id would have skipped episode 5.
	second, err := engine.Sync(ctx, sync.Cursor{Since: ptr(first.NextSince), Position: first.Position}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, itemIDs(second.Items))
}

func TestSync_Completeness(t *testing.T) {
	ctx := context.Background()

	// Ids are deliberately out of step with time so the cursor can't lean on
	// either one alone, and one timestamp is shared by more rows than a page holds.
	type item struct{ id, feedID, timeAdded int64 }
	items := []item{
		{9, 1, 500}, {2, 2, 500}, {5, 1, 500}, {7, 3, 500}, {1, 2, 500},
		{4, 1, 501},
		{3, 2, 510}, {8, 2, 510},
		{6, 3, 520},
		{10, 1, 530}, {12, 1, 530}, {11, 2, 530},
	}

	for limit := 1; limit <= len(items)+1; limit++ {
		t.Run(fmt.Sprintf("max=%d", limit), func(t *testing.T) {
			engine, dbx := newTestEngine(t, sync.Config{})
			for _, it := range items {
				addItem(t, dbx, it.id, it.feedID, it.timeAdded)
			}

			var (
				seen = map[int64]int{}
				cur  = sync.Cursor{Since: ptr(500)}
			)
			for calls := 0; ; calls++ {
				require.Less(t, calls, len(items)+2, "walk did not terminate")

				batch, err := engine.Sync(ctx, cur, limit)
				require.NoError(t, err)
				for _, it := range batch.Items {
					seen[it.ID]++
				}
				if len(batch.Items) < limit {
					break
				}
				cur = sync.Cursor{Since: ptr(batch.NextSince), Position: batch.Position}
			}

			require.Len(t, seen, len(items))
			for id, n := range seen {
				assert.Equal(t, 1, n, "item %d", id)
			}
		})
	}
}

func TestSync_DefaultWindow(t *testing.T) {
	var (
		ctx         = context.Background()
		engine, dbx = newTestEngine(t, sync.Config{Window: time.Minute})
		now         = fixedNow.Unix()
	)
	addItem(t, dbx, 1, 1, now-120)
	addItem(t, dbx, 2, 1, now-60)
	addItem(t, dbx, 3, 2, now-1)
	addItem(t, dbx, 4, 2, now+60)

	batch, err := engine.Sync(ctx, sync.Cursor{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, itemIDs(batch.Items), "window is inclusive of since and stops at now")
}

func TestSync_DeadFeedsAreListed(t *testing.T) {
	var (
		ctx         = context.Background()
		engine, dbx = newTestEngine(t, sync.Config{})
	)
	addItem(t, dbx, 1, 3, 100)
	addItem(t, dbx, 2, 1, 100)
	addItem(t, dbx, 3, 3, 100)

	batch, err := engine.Sync(ctx, sync.Cursor{Since: ptr(100)}, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, feedIDs(batch.Feeds))
	assert.True(t, batch.Feeds[0].Dead)
}

func TestSync_EmptyKeepsCursor(t *testing.T) {
	engine, _ := newTestEngine(t, sync.Config{})

	batch, err := engine.Sync(context.Background(), sync.Cursor{Since: ptr(700), Position: 42}, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 700, batch.NextSince)
	assert.EqualValues(t, 42, batch.Position)
	assert.NotNil(t, batch.Items)
	assert.NotNil(t, batch.Feeds)
}

func TestSync_InvalidCursor(t *testing.T) {
	engine, _ := newTestEngine(t, sync.Config{})

	_, err := engine.Sync(context.Background(), sync.Cursor{Since: ptr(-1)}, 10)
	assert.ErrorIs(t, err, podindex.ErrInvalidInput)

	_, err = engine.Sync(context.Background(), sync.Cursor{Since: ptr(1), Position: -5}, 10)
	assert.ErrorIs(t, err, podindex.ErrInvalidInput)
}

func TestLimit(t *testing.T) {
	engine, _ := newTestEngine(t, sync.Config{MaxResults: 50, DefaultResults: 10})

	assert.Equal(t, 10, engine.Limit(0))
	assert.Equal(t, 10, engine.Limit(-3))
	assert.Equal(t, 25, engine.Limit(25))
	assert.Equal(t, 50, engine.Limit(5000))
}
