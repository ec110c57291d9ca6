package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/podindex/internal/canonical"
	"github.com/jdholdren/podindex/internal/podindex"
)

// LinkITunesID sets a feed's iTunes ID only when it doesn't have one yet.
//
// The returned bool is false when the feed already carried an ID, in which case
// nothing was written. An iTunes ID owned by another feed is a conflict.
func (r Resolver) LinkITunesID(ctx context.Context, feedID, itunesID int64) (bool, error) {
	if feedID <= 0 || itunesID <= 0 {
		return false, fmt.Errorf("feed %d / itunes id %d: %w", feedID, itunesID, podindex.ErrInvalidInput)
	}

	n, err := r.store.Update(ctx, "feeds",
		sq.And{
			sq.Eq{"id": feedID},
			sq.Or{sq.Eq{"itunes_id": nil}, sq.Eq{"itunes_id": 0}},
		},
		map[string]any{"itunes_id": itunesID},
	)
	if err != nil {
		return false, fmt.Errorf("error linking itunes id: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	// Nothing changed: either the feed is missing or it's already linked.
	if _, err := r.Feed(ctx, feedID, true); err != nil {
		return false, err
	}

	return false, nil
}

// MarkDead retires a feed. It also drops the feed off of the crawl and parse
// queues; everything else about the row is left alone.
func (r Resolver) MarkDead(ctx context.Context, feedID int64) error {
	return r.setDead(ctx, feedID, map[string]any{
		"dead":      true,
		"pull_now":  false,
		"parse_now": false,
	})
}

// MarkAlive revives a dead feed without touching any other field.
func (r Resolver) MarkAlive(ctx context.Context, feedID int64) error {
	return r.setDead(ctx, feedID, map[string]any{"dead": false})
}

func (r Resolver) setDead(ctx context.Context, feedID int64, fields map[string]any) error {
	n, err := r.store.Update(ctx, "feeds", sq.Eq{"id": feedID}, fields)
	if err != nil {
		return fmt.Errorf("error updating feed %d: %w", feedID, err)
	}
	if n == 0 {
		return fmt.Errorf("feed %d: %w", feedID, podindex.ErrNotFound)
	}
	slog.InfoContext(ctx, "updated feed liveness", "feed_id", feedID, "dead", fields["dead"])

	return nil
}

// ErrURLUnchanged is returned by [Resolver.ChangeURL] when the new URL is the
// one the feed already has.
var ErrURLUnchanged = fmt.Errorf("the url entered is not different: %w", podindex.ErrInvalidInput)

// ChangeURL points an existing feed at a new URL and schedules an immediate
// re-crawl. The change is refused before anything is written if the new URL
// canonically belongs to a different feed.
func (r Resolver) ChangeURL(ctx context.Context, feedID int64, url string) error {
	url = strings.TrimSpace(url)
	if !canonical.Valid(url) {
		return fmt.Errorf("new feed url %q is not valid: %w", url, podindex.ErrInvalidInput)
	}

	current, err := r.Feed(ctx, feedID, true)
	if err != nil {
		return err
	}
	if current.URL == url {
		return ErrURLUnchanged
	}

	owner, ok, err := r.urls.Exists(ctx, url)
	if err != nil {
		return err
	}
	if ok && owner != feedID {
		return URLTakenError{FeedID: owner}
	}

	_, err = r.store.Update(ctx, "feeds", sq.Eq{"id": feedID}, map[string]any{
		"url":       url,
		"pull_now":  true,
		"parse_now": true,
	})
	if errors.Is(err, podindex.ErrConflict) {
		// Lost a race with another writer claiming the same url.
		if owner, ok, lookupErr := r.urls.Exists(ctx, url); lookupErr == nil && ok && owner != feedID {
			return URLTakenError{FeedID: owner}
		}
	}
	if err != nil {
		return fmt.Errorf("error changing feed url: %w", err)
	}
	slog.InfoContext(ctx, "changed feed url", "feed_id", feedID, "url", url)

	return nil
}
