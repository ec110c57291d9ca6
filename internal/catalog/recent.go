package catalog

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/podindex/internal/podindex"
)

// RecentSort picks which timestamp recent feeds are ranked (and windowed) by.
type RecentSort string

const (
	// SortNewestItem ranks by the publish date of each feed's newest episode.
	SortNewestItem RecentSort = ""
	// SortDiscovery ranks by when the feed was added to the directory.
	SortDiscovery RecentSort = "discovery"
)

// RecentFeedsArgs are the filters of the recent feeds listing.
type RecentFeedsArgs struct {
	// Since, when non-zero, drops feeds older than this epoch second.
	Since             int64
	Max               uint64
	Languages         []string
	IncludeCategories []int
	ExcludeCategories []int
	Sort              RecentSort
}

var categoryColumns = func() []string {
	cols := make([]string, podindex.MaxCategories)
	for i := range cols {
		cols[i] = fmt.Sprintf("c.catid%d", i+1)
	}
	return cols
}()

// RecentFeeds lists live feeds, newest first, matching the filters.
func (r Repo) RecentFeeds(ctx context.Context, args RecentFeedsArgs) ([]podindex.Feed, error) {
	column := "f.newest_item_pubdate"
	if args.Sort == SortDiscovery {
		column = "f.created_on"
	}

	where := sq.And{}
	if args.Since > 0 {
		where = append(where, sq.GtOrEq{column: args.Since})
	}
	if len(args.Languages) > 0 {
		langs := make([]string, 0, len(args.Languages))
		for _, l := range args.Languages {
			langs = append(langs, strings.ToLower(strings.TrimSpace(l)))
		}
		where = append(where, sq.Eq{"LOWER(f.language)": langs})
	}
	if len(args.IncludeCategories) > 0 {
		anyCategory := sq.Or{}
		for _, col := range categoryColumns {
			anyCategory = append(anyCategory, sq.Eq{col: args.IncludeCategories})
		}
		where = append(where, anyCategory)
	}
	if len(args.ExcludeCategories) > 0 {
		none := sq.And{}
		for _, col := range categoryColumns {
			none = append(none, sq.NotEq{col: args.ExcludeCategories})
		}
		// Feeds without a categories row can't be in an excluded category.
		where = append(where, sq.Or{sq.Eq{"c.feed_id": nil}, none})
	}

	return r.Feeds(ctx, FeedQuery{
		Where:   where,
		OrderBy: []string{column + " DESC"},
		Limit:   args.Max,
	})
}
