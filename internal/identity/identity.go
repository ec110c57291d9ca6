// Package identity decides whether a feed is already known and creates the
// canonical record when it isn't.
//
// Feed rows are never removed: a feed that goes away is marked dead, which
// also takes it off of the crawl queue.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/podindex/internal/canonical"
	"github.com/jdholdren/podindex/internal/podindex"
	"github.com/jdholdren/podindex/internal/store"
)

type (
	// Resolver owns feed identity: URLs, podcast GUIDs, iTunes IDs and content hashes.
	Resolver struct {
		store store.Store
		urls  canonical.Resolver
		now   func() time.Time
	}

	Option func(*Resolver)

	// Record is the identity portion of a feed row.
	Record struct {
		ID          int64  `db:"id"`
		URL         string `db:"url"`
		OriginalURL string `db:"original_url"`
		CHash       string `db:"chash"`
		ITunesID    *int64 `db:"itunes_id"`
		Dead        bool   `db:"dead"`
		PullNow     bool   `db:"pull_now"`
		ParseNow    bool   `db:"parse_now"`
		CreatedOn   int64  `db:"created_on"`
	}

	// CreateArgs are the optional parts of a feed submission.
	CreateArgs struct {
		// Content is the raw feed body, when the submitter already fetched it.
		Content string
		Title   string
	}

	// URLTakenError is returned when a URL already belongs to another feed.
	URLTakenError struct {
		FeedID int64
	}
)

func (e URLTakenError) Error() string {
	return fmt.Sprintf("url already exists as podcast id: [%d]", e.FeedID)
}

func (e URLTakenError) Unwrap() error {
	return podindex.ErrConflict
}

// WithClock overrides the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

func New(s store.Store, opts ...Option) Resolver {
	r := Resolver{
		store: s,
		urls:  canonical.NewResolver(s),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(&r)
	}

	return r
}

var recordColumns = []string{
	"id", "url", "original_url", "chash", "itunes_id", "dead", "pull_now", "parse_now", "created_on",
}

// ResolveOrCreate returns the ID of the feed that url canonically names,
// creating it (and its podcast GUID) when there is none.
//
// A feed whose podcast GUID already belongs to another feed resolves to that
// feed. A feed row is never left behind without its GUID: when the GUID can't
// be written the row is removed again and the error returned.
func (r Resolver) ResolveOrCreate(ctx context.Context, url string, args CreateArgs) (int64, error) {
	url = strings.TrimSpace(url)
	if !canonical.Valid(url) {
		slog.DebugContext(ctx, "rejected feed url", "url", url)
		return 0, fmt.Errorf("feed url %q is not valid: %w", url, podindex.ErrInvalidInput)
	}

	id, ok, err := r.urls.Exists(ctx, url)
	if err != nil {
		return 0, err
	}
	if ok {
		return id, nil
	}

	return r.create(ctx, url, args)
}

// ResolveOrCreateByContent works like [Resolver.ResolveOrCreate] but also
// treats a feed whose content hash matches content as the same feed, which
// catches a feed that moved to a URL outside of its canonical class.
func (r Resolver) ResolveOrCreateByContent(ctx context.Context, url string, args CreateArgs) (int64, error) {
	url = strings.TrimSpace(url)
	if !canonical.Valid(url) {
		slog.DebugContext(ctx, "rejected feed url", "url", url)
		return 0, fmt.Errorf("feed url %q is not valid: %w", url, podindex.ErrInvalidInput)
	}

	id, ok, err := r.urls.Exists(ctx, url)
	if err != nil {
		return 0, err
	}
	if ok {
		return id, nil
	}

	if args.Content != "" {
		id, err := r.FeedIDByContentHash(ctx, ContentHash(args.Content))
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, podindex.ErrNotFound) {
			return 0, err
		}
	}

	return r.create(ctx, url, args)
}

func (r Resolver) create(ctx context.Context, url string, args CreateArgs) (int64, error) {
	guid := PodcastGUID(url)
	owner, ok, err := r.guidOwner(ctx, guid)
	if err != nil {
		return 0, err
	}
	if ok {
		slog.DebugContext(ctx, "url resolved through podcast guid", "url", url, "feed_id", owner)
		return owner, nil
	}

	fields := map[string]any{
		"url":          url,
		"original_url": url,
		"created_on":   r.now().Unix(),
		"updated":      args.Content != "",
		"pull_now":     true,
		"parse_now":    true,
	}
	if args.Content != "" {
		fields["chash"] = ContentHash(args.Content)
	}
	if args.Title != "" {
		fields["title"] = args.Title
	}

	id, err := r.store.Insert(ctx, "feeds", fields)
	if errors.Is(err, podindex.ErrConflict) {
		// Somebody else registered a member of this URL's class between our
		// lookup and insert; theirs is the canonical record.
		winner, ok, lookupErr := r.urls.Exists(ctx, url)
		if lookupErr == nil && ok {
			return winner, nil
		}
		return 0, fmt.Errorf("error creating feed: %w", err)
	}
	if err != nil {
		return 0, fmt.Errorf("error creating feed: %w", err)
	}

	if err := r.AssignGUID(ctx, id, url); err != nil {
		// Lost a race for the GUID, or couldn't write it at all. Either way
		// the row we just made goes.
		if _, delErr := r.store.Delete(ctx, "feeds", sq.Eq{"id": id}); delErr != nil {
			slog.ErrorContext(ctx, "error removing feed without podcast guid", "feed_id", id, "err", delErr)
			return id, fmt.Errorf("feed %d created without podcast guid: %w", id, err)
		}
		if errors.Is(err, podindex.ErrConflict) {
			if owner, ok, lookupErr := r.guidOwner(ctx, guid); lookupErr == nil && ok {
				return owner, nil
			}
		}
		return 0, fmt.Errorf("error creating feed: %w", err)
	}
	slog.InfoContext(ctx, "created feed", "feed_id", id, "url", url)

	return id, nil
}

// guidOwner returns the feed holding a podcast GUID, dead or not.
func (r Resolver) guidOwner(ctx context.Context, guid string) (int64, bool, error) {
	var feedID int64
	q := r.store.Builder().Select("feed_id").From("feed_guids").Where(sq.Eq{"guid": guid})
	err := r.store.QueryOne(ctx, &feedID, q)
	if errors.Is(err, podindex.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("error checking podcast guid: %w", err)
	}

	return feedID, true, nil
}

// AssignGUID persists the podcast GUID derived from url for a feed.
func (r Resolver) AssignGUID(ctx context.Context, feedID int64, url string) error {
	if err := r.store.Put(ctx, "feed_guids", map[string]any{
		"feed_id": feedID,
		"guid":    PodcastGUID(url),
	}); err != nil {
		return fmt.Errorf("error assigning podcast guid: %w", err)
	}

	return nil
}

// Feed fetches a feed's identity record. Dead feeds are only returned when
// withDead is set.
func (r Resolver) Feed(ctx context.Context, id int64, withDead bool) (Record, error) {
	return r.record(ctx, sq.Eq{"id": id}, withDead)
}

// FeedByURL fetches the feed that url canonically names.
func (r Resolver) FeedByURL(ctx context.Context, url string, withDead bool) (Record, error) {
	id, ok, err := r.urls.Exists(ctx, url)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, fmt.Errorf("no feed for url %q: %w", url, podindex.ErrNotFound)
	}

	return r.Feed(ctx, id, withDead)
}

// FeedByGUID fetches the feed owning a podcast GUID.
func (r Resolver) FeedByGUID(ctx context.Context, guid string, withDead bool) (Record, error) {
	var feedID int64
	q := r.store.Builder().Select("feed_id").From("feed_guids").Where(sq.Eq{"guid": strings.TrimSpace(guid)})
	if err := r.store.QueryOne(ctx, &feedID, q); err != nil {
		return Record{}, fmt.Errorf("error fetching feed by guid: %w", err)
	}

	return r.Feed(ctx, feedID, withDead)
}

// FeedByITunesID fetches the feed linked to an iTunes ID.
func (r Resolver) FeedByITunesID(ctx context.Context, itunesID int64, withDead bool) (Record, error) {
	if itunesID <= 0 {
		return Record{}, fmt.Errorf("itunes id %d is not valid: %w", itunesID, podindex.ErrInvalidInput)
	}

	return r.record(ctx, sq.Eq{"itunes_id": itunesID}, withDead)
}

// FeedIDByContentHash finds a live feed with the given content hash.
func (r Resolver) FeedIDByContentHash(ctx context.Context, chash string) (int64, error) {
	if chash == "" {
		return 0, fmt.Errorf("empty content hash: %w", podindex.ErrInvalidInput)
	}

	var id int64
	q := r.store.Builder().
		Select("id").
		From("feeds").
		Where(sq.Eq{"chash": chash, "dead": false}).
		OrderBy("id ASC").
		Limit(1)
	if err := r.store.QueryOne(ctx, &id, q); err != nil {
		return 0, fmt.Errorf("error fetching feed by content hash: %w", err)
	}

	return id, nil
}

func (r Resolver) record(ctx context.Context, where sq.Eq, withDead bool) (Record, error) {
	q := r.store.Builder().Select(recordColumns...).From("feeds").Where(where)
	if !withDead {
		q = q.Where(sq.Eq{"dead": false})
	}

	var rec Record
	if err := r.store.QueryOne(ctx, &rec, q); err != nil {
		return Record{}, fmt.Errorf("error fetching feed: %w", err)
	}

	return rec, nil
}
