package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Facet tables are cleared before the episodes they hang off of, so a failure
// part way through leaves episodes that a retry will finish deleting rather
// than orphaned facets.
var episodeFacetTables = []string{
	"item_soundbites",
	"item_transcripts",
	"item_persons",
	"item_socialinteract",
	"item_valuetimesplits",
	"item_chapters",
}

// deleteBatchSize bounds how many IDs go into a single IN clause.
const deleteBatchSize = 500

// DeleteEpisodesByFeed removes every episode of a feed along with its facets.
func (r Repo) DeleteEpisodesByFeed(ctx context.Context, feedID int64) (int64, error) {
	return r.deleteEpisodes(ctx, sq.Eq{"feed_id": feedID})
}

// DeleteEpisodesBefore removes every episode published before cutoff (epoch
// seconds) along with its facets.
func (r Repo) DeleteEpisodesBefore(ctx context.Context, cutoff int64) (int64, error) {
	return r.deleteEpisodes(ctx, sq.Lt{"date_published": cutoff})
}

func (r Repo) deleteEpisodes(ctx context.Context, where sq.Sqlizer) (int64, error) {
	var ids []int64
	if err := r.store.QueryMany(ctx, &ids, r.store.Builder().Select("id").From("items").Where(where)); err != nil {
		return 0, fmt.Errorf("error selecting episodes to delete: %w", err)
	}

	var deleted int64
	for start := 0; start < len(ids); start += deleteBatchSize {
		batch := ids[start:min(start+deleteBatchSize, len(ids))]
		for _, table := range episodeFacetTables {
			if _, err := r.store.Delete(ctx, table, sq.Eq{"item_id": batch}); err != nil {
				return deleted, fmt.Errorf("error deleting episode facets: %w", err)
			}
		}
		n, err := r.store.Delete(ctx, "items", sq.Eq{"id": batch})
		if err != nil {
			return deleted, fmt.Errorf("error deleting episodes: %w", err)
		}
		deleted += n
	}
	slog.InfoContext(ctx, "deleted episodes", "count", deleted)

	return deleted, nil
}

// Pruner periodically drops episodes older than a retention window.
type Pruner struct {
	repo      Repo
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewPruner(repo Repo, retention, interval time.Duration, now func() time.Time) Pruner {
	if now == nil {
		now = time.Now
	}
	return Pruner{repo: repo, retention: retention, interval: interval, now: now}
}

// PruneOnce deletes everything published before now minus the retention window.
func (p Pruner) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention).Unix()
	return p.repo.DeleteEpisodesBefore(ctx, cutoff)
}

// Run prunes on every tick until ctx is done. A failed pass is logged and
// tried again on the next tick.
func (p Pruner) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("prune interval must be positive, got %s", p.interval)
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.PruneOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "error pruning episodes", "error", err)
			}
		}
	}
}
