// Package sync walks the stream of newly added episodes for polling clients.
//
// The client holds the cursor. Each call returns the next page of episodes in
// (time added, id) order along with the (since, position) pair to send on the
// next call, so every episode is handed out exactly once however many share a
// timestamp.
//
// position on the wire is the id of the last episode in the page, not the
// largest id in it. Ids aren't ordered by time added, so a client that sends
// back the largest id instead can skip episodes at the final timestamp.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/podindex/internal/assemble"
	"github.com/jdholdren/podindex/internal/catalog"
	"github.com/jdholdren/podindex/internal/podindex"
	"github.com/jdholdren/podindex/internal/store"
)

type (
	Config struct {
		// Window is how far back a call without a since starts.
		Window time.Duration
		// MaxResults caps a page no matter what the client asks for.
		MaxResults int
		// DefaultResults is the page size when the client doesn't ask for one.
		DefaultResults int
	}

	Engine struct {
		store   store.Store
		catalog catalog.Repo
		cfg     Config
		now     func() time.Time
	}

	Option func(*Engine)

	// Cursor is where a client left off.
	Cursor struct {
		// Since is an epoch second; nil starts a new walk at now minus the window.
		Since *int64
		// Position is the id of the last episode the client saw at Since.
		Position int64
	}

	// Batch is one page of the walk. NextSince and Position are the time
	// added and id of the page's last episode; an empty page echoes the cursor.
	Batch struct {
		NextSince int64              `json:"nextSince"`
		Position  int64              `json:"position"`
		Feeds     []podindex.Feed    `json:"feeds"`
		Items     []podindex.Episode `json:"items"`
	}

	cursorRow struct {
		ID        int64 `db:"id"`
		FeedID    int64 `db:"feed_id"`
		TimeAdded int64 `db:"time_added"`
	}
)

// DefaultConfig is what the engine runs with when nothing is configured.
var DefaultConfig = Config{
	Window:         15 * time.Minute,
	MaxResults:     1000,
	DefaultResults: 100,
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func New(s store.Store, repo catalog.Repo, cfg Config, opts ...Option) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig.Window
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig.MaxResults
	}
	if cfg.DefaultResults <= 0 || cfg.DefaultResults > cfg.MaxResults {
		cfg.DefaultResults = min(DefaultConfig.DefaultResults, cfg.MaxResults)
	}

	e := &Engine{
		store:   s,
		catalog: repo,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Limit clamps a requested page size to the configured bounds.
func (e *Engine) Limit(requested int) int {
	switch {
	case requested <= 0:
		return e.cfg.DefaultResults
	case requested > e.cfg.MaxResults:
		return e.cfg.MaxResults
	default:
		return requested
	}
}

// Sync returns the episodes added after the cursor, oldest first, with each
// episode's feed listed once.
//
// An empty batch hands the cursor back unchanged so the client can poll again
// from the same place.
func (e *Engine) Sync(ctx context.Context, cur Cursor, max int) (Batch, error) {
	now := e.now().Unix()

	since := now - int64(e.cfg.Window/time.Second)
	if cur.Since != nil {
		since = *cur.Since
	}
	if since < 0 {
		return Batch{}, fmt.Errorf("since %d is before the epoch: %w", since, podindex.ErrInvalidInput)
	}
	if cur.Position < 0 {
		return Batch{}, fmt.Errorf("position %d is negative: %w", cur.Position, podindex.ErrInvalidInput)
	}
	limit := e.Limit(max)

	// A row is past the cursor when it was added later, or at the same second
	// with a higher id.
	q := e.store.Builder().
		Select("id", "feed_id", "time_added").
		From("items").
		Where(sq.Or{
			sq.Gt{"time_added": since},
			sq.And{sq.Eq{"time_added": since}, sq.Gt{"id": cur.Position}},
		}).
		Where(sq.LtOrEq{"time_added": now}).
		OrderBy("time_added ASC", "id ASC").
		Limit(uint64(limit))

	var rows []cursorRow
	if err := e.store.QueryMany(ctx, &rows, q); err != nil {
		return Batch{}, fmt.Errorf("error walking episodes: %w", err)
	}

	batch := Batch{
		NextSince: since,
		Position:  cur.Position,
		Feeds:     []podindex.Feed{},
		Items:     []podindex.Episode{},
	}
	if len(rows) == 0 {
		return batch, nil
	}

	var (
		itemIDs = make([]int64, 0, len(rows))
		feedIDs = make([]int64, 0, len(rows))
	)
	for _, r := range rows {
		itemIDs = append(itemIDs, r.ID)
		feedIDs = append(feedIDs, r.FeedID)
	}

	items, err := e.catalog.EpisodesByID(ctx, itemIDs, catalog.AllEpisodeFacets)
	if err != nil {
		return Batch{}, fmt.Errorf("error assembling sync items: %w", err)
	}
	// Dead feeds are listed too: their episodes are still in the stream.
	feeds, err := e.catalog.FeedsByID(ctx, assemble.Distinct(feedIDs), true)
	if err != nil {
		return Batch{}, fmt.Errorf("error assembling sync feeds: %w", err)
	}

	last := rows[len(rows)-1]
	batch.NextSince = last.TimeAdded
	batch.Position = last.ID
	batch.Items = items
	batch.Feeds = feeds

	slog.DebugContext(ctx, "sync batch",
		"since", since,
		"position", cur.Position,
		"items", len(items),
		"feeds", len(feeds),
		"next_since", batch.NextSince,
		"next_position", batch.Position,
	)

	return batch, nil
}
