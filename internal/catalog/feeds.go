package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/podindex/internal/assemble"
	"github.com/jdholdren/podindex/internal/podindex"
)

type (
	// FeedQuery selects feeds. The zero value selects every live feed.
	FeedQuery struct {
		IDs      []int64
		WithDead bool
		Where    sq.Sqlizer
		// OrderBy holds qualified columns (alias "f"); feed id breaks ties.
		OrderBy []string
		Limit   uint64
	}

	feedRow struct {
		ID                int64          `db:"id"`
		URL               string         `db:"url"`
		OriginalURL       string         `db:"original_url"`
		CHash             string         `db:"chash"`
		ITunesID          sql.NullInt64  `db:"itunes_id"`
		Title             string         `db:"title"`
		Description       string         `db:"description"`
		Image             string         `db:"image"`
		Language          string         `db:"language"`
		Popularity        int            `db:"popularity"`
		Dead              bool           `db:"dead"`
		DuplicateOf       sql.NullInt64  `db:"duplicate_of"`
		Locked            bool           `db:"locked"`
		CreatedOn         int64          `db:"created_on"`
		LastUpdate        int64          `db:"last_update"`
		LastCheck         int64          `db:"last_check"`
		LastParse         int64          `db:"last_parse"`
		NewestItemPubdate int64          `db:"newest_item_pubdate"`
		PodcastGUID       sql.NullString `db:"podcast_guid"`
		CategoriesFeedID  sql.NullInt64  `db:"categories_feed_id"`
		Cat1              sql.NullInt64  `db:"catid1"`
		Cat2              sql.NullInt64  `db:"catid2"`
		Cat3              sql.NullInt64  `db:"catid3"`
		Cat4              sql.NullInt64  `db:"catid4"`
		Cat5              sql.NullInt64  `db:"catid5"`
		Cat6              sql.NullInt64  `db:"catid6"`
		Cat7              sql.NullInt64  `db:"catid7"`
		Cat8              sql.NullInt64  `db:"catid8"`
		Cat9              sql.NullInt64  `db:"catid9"`
		Cat10             sql.NullInt64  `db:"catid10"`
		ValueBlock        sql.NullString `db:"value_block"`
		FundingURL        sql.NullString `db:"funding_url"`
		FundingMessage    sql.NullString `db:"funding_message"`
		Medium            sql.NullString `db:"medium"`
	}
)

var feedColumns = []string{
	"f.id", "f.url", "f.original_url", "f.chash", "f.itunes_id", "f.title", "f.description",
	"f.image", "f.language", "f.popularity", "f.dead", "f.duplicate_of", "f.locked",
	"f.created_on", "f.last_update", "f.last_check", "f.last_parse", "f.newest_item_pubdate",
	"g.guid AS podcast_guid",
	"c.feed_id AS categories_feed_id",
	"c.catid1", "c.catid2", "c.catid3", "c.catid4", "c.catid5",
	"c.catid6", "c.catid7", "c.catid8", "c.catid9", "c.catid10",
	"v.value AS value_block",
	"fu.url AS funding_url", "fu.message AS funding_message",
	"m.medium",
}

func (r feedRow) categoryIDs() []int {
	ids := make([]int, 0, podindex.MaxCategories)
	for _, c := range []sql.NullInt64{r.Cat1, r.Cat2, r.Cat3, r.Cat4, r.Cat5, r.Cat6, r.Cat7, r.Cat8, r.Cat9, r.Cat10} {
		if c.Valid && c.Int64 > 0 {
			ids = append(ids, int(c.Int64))
		}
	}
	return ids
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// Every feed facet is a singleton, so feed rows never fan out; the assembler
// still owns the NULL handling and the integrity warnings.
var feedAssembler = assemble.Assembler[feedRow, podindex.Feed]{
	ParentID: func(r feedRow) int64 { return r.ID },
	Build: func(r feedRow) podindex.Feed {
		itunesID := nullInt(r.ITunesID)
		if itunesID != nil && *itunesID == 0 {
			itunesID = nil
		}

		return podindex.Feed{
			ID:                r.ID,
			URL:               r.URL,
			OriginalURL:       r.OriginalURL,
			Title:             r.Title,
			Description:       sanitize(r.Description),
			Image:             r.Image,
			Language:          r.Language,
			ITunesID:          itunesID,
			CHash:             r.CHash,
			Dead:              r.Dead,
			DuplicateOf:       nullInt(r.DuplicateOf),
			Locked:            r.Locked,
			Popularity:        r.Popularity,
			CreatedOn:         r.CreatedOn,
			LastUpdate:        r.LastUpdate,
			LastCheck:         r.LastCheck,
			LastParse:         r.LastParse,
			NewestItemPubdate: r.NewestItemPubdate,
			Medium:            podindex.MediumPodcast,
			Categories:        podindex.Categories{},
		}
	},
	Facets: []assemble.Facet[feedRow, podindex.Feed]{
		{
			Name:      "guid",
			Singleton: true,
			Present:   func(r feedRow) bool { return r.PodcastGUID.Valid },
			Key:       func(r feedRow) string { return r.PodcastGUID.String },
			Attach: func(f *podindex.Feed, r feedRow) {
				f.PodcastGUID = r.PodcastGUID.String
			},
		},
		{
			Name:      "categories",
			Singleton: true,
			Present:   func(r feedRow) bool { return r.CategoriesFeedID.Valid },
			Key:       func(r feedRow) string { return fmt.Sprint(r.categoryIDs()) },
			Attach: func(f *podindex.Feed, r feedRow) {
				f.Categories = podindex.NewCategories(r.categoryIDs()...)
			},
		},
		{
			Name:      "value",
			Singleton: true,
			Present:   func(r feedRow) bool { return r.ValueBlock.Valid && r.ValueBlock.String != "" },
			Key:       func(r feedRow) string { return r.ValueBlock.String },
			Attach: func(f *podindex.Feed, r feedRow) {
				v, err := podindex.ParseValue(r.ValueBlock.String)
				if err != nil {
					slog.Warn("skipping unreadable value block", "feed_id", r.ID, "error", err)
					return
				}
				f.Value = v
			},
		},
		{
			Name:      "funding",
			Singleton: true,
			Present:   func(r feedRow) bool { return r.FundingURL.Valid },
			Key: func(r feedRow) string {
				return r.FundingURL.String + "|" + r.FundingMessage.String
			},
			Attach: func(f *podindex.Feed, r feedRow) {
				f.Funding = &podindex.Funding{URL: r.FundingURL.String, Message: r.FundingMessage.String}
			},
		},
		{
			Name:      "medium",
			Singleton: true,
			Present:   func(r feedRow) bool { return r.Medium.Valid },
			Key:       func(r feedRow) string { return r.Medium.String },
			Attach: func(f *podindex.Feed, r feedRow) {
				f.Medium = podindex.ParseMedium(r.Medium.String)
			},
		},
	},
}

// Feeds runs a feed query and assembles the results in query order.
func (r Repo) Feeds(ctx context.Context, fq FeedQuery) ([]podindex.Feed, error) {
	q := r.store.Builder().
		Select(feedColumns...).
		From("feeds f").
		LeftJoin("feed_guids g ON g.feed_id = f.id").
		LeftJoin("feed_categories c ON c.feed_id = f.id").
		LeftJoin("feed_value v ON v.feed_id = f.id").
		LeftJoin("feed_funding fu ON fu.feed_id = f.id").
		LeftJoin("feed_medium m ON m.feed_id = f.id")

	if fq.IDs != nil {
		if len(fq.IDs) == 0 {
			return []podindex.Feed{}, nil
		}
		q = q.Where(sq.Eq{"f.id": fq.IDs})
	}
	if !fq.WithDead {
		q = q.Where(sq.Eq{"f.dead": false})
	}
	if fq.Where != nil {
		q = q.Where(fq.Where)
	}
	q = q.OrderBy(append(append([]string{}, fq.OrderBy...), "f.id ASC")...)
	if fq.Limit > 0 {
		q = q.Limit(fq.Limit)
	}

	var rows []feedRow
	if err := r.store.QueryMany(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("error fetching feeds: %w", err)
	}

	return feedAssembler.Assemble(ctx, rows, int(fq.Limit)), nil
}

// FeedsByID fetches feeds and returns them in the order of ids. IDs with no
// matching feed are skipped.
func (r Repo) FeedsByID(ctx context.Context, ids []int64, withDead bool) ([]podindex.Feed, error) {
	ids = assemble.Distinct(ids)
	feeds, err := r.Feeds(ctx, FeedQuery{IDs: ids, WithDead: withDead})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]podindex.Feed, len(feeds))
	for _, f := range feeds {
		byID[f.ID] = f
	}
	ordered := make([]podindex.Feed, 0, len(feeds))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			ordered = append(ordered, f)
		}
	}

	return ordered, nil
}

// Feed fetches a single feed.
func (r Repo) Feed(ctx context.Context, id int64, withDead bool) (podindex.Feed, error) {
	feeds, err := r.Feeds(ctx, FeedQuery{IDs: []int64{id}, WithDead: withDead})
	if err != nil {
		return podindex.Feed{}, err
	}
	if len(feeds) == 0 {
		return podindex.Feed{}, fmt.Errorf("feed %d: %w", id, podindex.ErrNotFound)
	}

	return feeds[0], nil
}
