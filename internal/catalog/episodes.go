package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/podindex/internal/assemble"
	"github.com/jdholdren/podindex/internal/podindex"
)

// EpisodeFacet names a child relation that can be joined onto episodes.
type EpisodeFacet int

const (
	FacetSoundbites EpisodeFacet = iota
	FacetTranscripts
	FacetPersons
	FacetSocialInteract
	FacetValueTimeSplits
	FacetChapters
)

// AllEpisodeFacets is every facet, in join order.
var AllEpisodeFacets = []EpisodeFacet{
	FacetSoundbites,
	FacetTranscripts,
	FacetPersons,
	FacetSocialInteract,
	FacetValueTimeSplits,
	FacetChapters,
}

type (
	// EpisodeQuery selects a page of episodes and the facets to fill in.
	EpisodeQuery struct {
		Where sq.Sqlizer
		// OrderBy holds qualified columns (alias "i"); episode id breaks ties.
		OrderBy []string
		Limit   uint64
		Facets  []EpisodeFacet
	}

	episodeRow struct {
		ID              int64         `db:"id"`
		FeedID          int64         `db:"feed_id"`
		GUID            string        `db:"guid"`
		Title           string        `db:"title"`
		Link            string        `db:"link"`
		Description     string        `db:"description"`
		DatePublished   int64         `db:"date_published"`
		TimeAdded       int64         `db:"time_added"`
		EnclosureURL    string        `db:"enclosure_url"`
		EnclosureType   string        `db:"enclosure_type"`
		EnclosureLength int64         `db:"enclosure_length"`
		Duration        int           `db:"duration"`
		Explicit        int           `db:"explicit"`
		Episode         sql.NullInt64 `db:"episode"`
		EpisodeType     string        `db:"episode_type"`
		Season          sql.NullInt64 `db:"season"`
		Image           string        `db:"image"`

		SbStartTime sql.NullFloat64 `db:"sb_start_time"`
		SbDuration  sql.NullFloat64 `db:"sb_duration"`
		SbTitle     sql.NullString  `db:"sb_title"`

		TrURL  sql.NullString `db:"tr_url"`
		TrType sql.NullInt64  `db:"tr_type"`

		PID    sql.NullInt64  `db:"p_id"`
		PName  sql.NullString `db:"p_name"`
		PRole  sql.NullString `db:"p_role"`
		PGroup sql.NullString `db:"p_grp"`
		PHref  sql.NullString `db:"p_href"`
		PImg   sql.NullString `db:"p_img"`

		SiURI        sql.NullString `db:"si_uri"`
		SiProtocol   sql.NullString `db:"si_protocol"`
		SiAccountID  sql.NullString `db:"si_account_id"`
		SiAccountURL sql.NullString `db:"si_account_url"`
		SiPriority   sql.NullInt64  `db:"si_priority"`

		VtsID               sql.NullInt64   `db:"vts_id"`
		VtsStartTime        sql.NullFloat64 `db:"vts_start_time"`
		VtsDuration         sql.NullFloat64 `db:"vts_duration"`
		VtsRemoteStartTime  sql.NullFloat64 `db:"vts_remote_start_time"`
		VtsRemotePercentage sql.NullInt64   `db:"vts_remote_percentage"`
		VtsFeedGUID         sql.NullString  `db:"vts_feed_guid"`
		VtsItemGUID         sql.NullString  `db:"vts_item_guid"`

		ChURL sql.NullString `db:"ch_url"`
	}

	// episodeFacet is everything needed to join and fold one facet.
	episodeFacet struct {
		join    string
		columns []string
		orderBy []string
		facet   assemble.Facet[episodeRow, podindex.Episode]
	}
)

var episodeColumns = []string{
	"i.id", "i.feed_id", "i.guid", "i.title", "i.link", "i.description", "i.date_published",
	"i.time_added", "i.enclosure_url", "i.enclosure_type", "i.enclosure_length", "i.duration",
	"i.explicit", "i.episode", "i.episode_type", "i.season", "i.image",
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

var episodeFacets = map[EpisodeFacet]episodeFacet{
	FacetSoundbites: {
		join:    "item_soundbites sb ON sb.item_id = i.id",
		columns: []string{"sb.start_time AS sb_start_time", "sb.duration AS sb_duration", "sb.title AS sb_title"},
		orderBy: []string{"sb.start_time ASC", "sb.duration ASC"},
		facet: assemble.Facet[episodeRow, podindex.Episode]{
			Name:    "soundbite",
			Present: func(r episodeRow) bool { return r.SbStartTime.Valid && r.SbDuration.Valid },
			Key: func(r episodeRow) string {
				return formatFloat(r.SbStartTime.Float64) + "|" + formatFloat(r.SbDuration.Float64)
			},
			Attach: func(e *podindex.Episode, r episodeRow) {
				e.Soundbites = append(e.Soundbites, podindex.Soundbite{
					StartTime: r.SbStartTime.Float64,
					Duration:  r.SbDuration.Float64,
					Title:     r.SbTitle.String,
				})
			},
		},
	},
	FacetTranscripts: {
		join:    "item_transcripts tr ON tr.item_id = i.id",
		columns: []string{"tr.url AS tr_url", "tr.type AS tr_type"},
		orderBy: []string{"tr.url ASC"},
		facet: assemble.Facet[episodeRow, podindex.Episode]{
			Name:    "transcript",
			Present: func(r episodeRow) bool { return r.TrURL.Valid },
			Key:     func(r episodeRow) string { return r.TrURL.String },
			Attach: func(e *podindex.Episode, r episodeRow) {
				e.Transcripts = append(e.Transcripts, podindex.Transcript{
					URL:  r.TrURL.String,
					Type: podindex.TranscriptType(int(r.TrType.Int64)),
				})
			},
		},
	},
	FacetPersons: {
		join: "item_persons p ON p.item_id = i.id",
		columns: []string{
			"p.id AS p_id", "p.name AS p_name", "p.role AS p_role",
			"p.grp AS p_grp", "p.href AS p_href", "p.img AS p_img",
		},
		orderBy: []string{"p.id ASC"},
		facet: assemble.Facet[episodeRow, podindex.Episode]{
			Name:    "person",
			Present: func(r episodeRow) bool { return r.PID.Valid },
			Key:     func(r episodeRow) string { return strconv.FormatInt(r.PID.Int64, 10) },
			Attach: func(e *podindex.Episode, r episodeRow) {
				e.Persons = append(e.Persons, podindex.Person{
					ID:    r.PID.Int64,
					Name:  r.PName.String,
					Role:  r.PRole.String,
					Group: r.PGroup.String,
					Href:  r.PHref.String,
					Img:   r.PImg.String,
				})
			},
		},
	},
	FacetSocialInteract: {
		join: "item_socialinteract si ON si.item_id = i.id",
		columns: []string{
			"si.uri AS si_uri", "si.protocol AS si_protocol", "si.account_id AS si_account_id",
			"si.account_url AS si_account_url", "si.priority AS si_priority",
		},
		orderBy: []string{"si.priority ASC", "si.uri ASC"},
		facet: assemble.Facet[episodeRow, podindex.Episode]{
			Name:    "socialInteract",
			Present: func(r episodeRow) bool { return r.SiURI.Valid },
			Key:     func(r episodeRow) string { return r.SiURI.String },
			Attach: func(e *podindex.Episode, r episodeRow) {
				e.SocialInteract = append(e.SocialInteract, podindex.SocialInteract{
					URI:        r.SiURI.String,
					Protocol:   r.SiProtocol.String,
					AccountID:  r.SiAccountID.String,
					AccountURL: r.SiAccountURL.String,
					Priority:   int(r.SiPriority.Int64),
				})
			},
		},
	},
	FacetValueTimeSplits: {
		join: "item_valuetimesplits vts ON vts.item_id = i.id",
		columns: []string{
			"vts.id AS vts_id", "vts.start_time AS vts_start_time", "vts.duration AS vts_duration",
			"vts.remote_start_time AS vts_remote_start_time", "vts.remote_percentage AS vts_remote_percentage",
			"vts.feed_guid AS vts_feed_guid", "vts.item_guid AS vts_item_guid",
		},
		orderBy: []string{"vts.start_time ASC", "vts.id ASC"},
		facet: assemble.Facet[episodeRow, podindex.Episode]{
			Name:    "valueTimeSplit",
			Present: func(r episodeRow) bool { return r.VtsID.Valid },
			Key:     func(r episodeRow) string { return strconv.FormatInt(r.VtsID.Int64, 10) },
			Attach: func(e *podindex.Episode, r episodeRow) {
				e.ValueTimeSplits = append(e.ValueTimeSplits, podindex.ValueTimeSplit{
					ID:               r.VtsID.Int64,
					StartTime:        r.VtsStartTime.Float64,
					Duration:         r.VtsDuration.Float64,
					RemoteStartTime:  r.VtsRemoteStartTime.Float64,
					RemotePercentage: int(r.VtsRemotePercentage.Int64),
					FeedGUID:         r.VtsFeedGUID.String,
					ItemGUID:         r.VtsItemGUID.String,
				})
			},
		},
	},
	FacetChapters: {
		join:    "item_chapters ch ON ch.item_id = i.id",
		columns: []string{"ch.url AS ch_url"},
		facet: assemble.Facet[episodeRow, podindex.Episode]{
			Name:      "chapters",
			Singleton: true,
			Present:   func(r episodeRow) bool { return r.ChURL.Valid },
			Key:       func(r episodeRow) string { return r.ChURL.String },
			Attach: func(e *podindex.Episode, r episodeRow) {
				e.ChaptersURL = r.ChURL.String
			},
		},
	},
}

func buildEpisode(r episodeRow) podindex.Episode {
	return podindex.Episode{
		ID:              r.ID,
		FeedID:          r.FeedID,
		GUID:            r.GUID,
		Title:           r.Title,
		Link:            r.Link,
		Description:     sanitize(r.Description),
		DatePublished:   r.DatePublished,
		TimeAdded:       r.TimeAdded,
		EnclosureURL:    r.EnclosureURL,
		EnclosureType:   r.EnclosureType,
		EnclosureLength: r.EnclosureLength,
		Duration:        r.Duration,
		Explicit:        r.Explicit,
		Episode:         nullIntPtr(r.Episode),
		EpisodeType:     r.EpisodeType,
		Season:          nullIntPtr(r.Season),
		Image:           r.Image,
		Soundbites:      []podindex.Soundbite{},
		Transcripts:     []podindex.Transcript{},
		Persons:         []podindex.Person{},
		SocialInteract:  []podindex.SocialInteract{},
		ValueTimeSplits: []podindex.ValueTimeSplit{},
	}
}

// Episodes selects a page of episode IDs and then assembles those episodes
// with the requested facets.
//
// Paging on IDs first means the fan-out rows of the last episode on the page
// can never be cut off by a row limit.
func (r Repo) Episodes(ctx context.Context, eq EpisodeQuery) ([]podindex.Episode, error) {
	q := r.store.Builder().Select("i.id").From("items i")
	if eq.Where != nil {
		q = q.Where(eq.Where)
	}
	q = q.OrderBy(append(append([]string{}, eq.OrderBy...), "i.id ASC")...)
	if eq.Limit > 0 {
		q = q.Limit(eq.Limit)
	}

	var ids []int64
	if err := r.store.QueryMany(ctx, &ids, q); err != nil {
		return nil, fmt.Errorf("error selecting episode ids: %w", err)
	}

	return r.EpisodesByID(ctx, ids, eq.Facets)
}

// EpisodesByID assembles the given episodes with the requested facets,
// returned in the order of ids. IDs that don't exist are skipped.
func (r Repo) EpisodesByID(ctx context.Context, ids []int64, facets []EpisodeFacet) ([]podindex.Episode, error) {
	ids = assemble.Distinct(ids)
	if len(ids) == 0 {
		return []podindex.Episode{}, nil
	}

	var (
		columns   = append([]string{}, episodeColumns...)
		orderBy   = []string{"i.id ASC"}
		assembler = assemble.Assembler[episodeRow, podindex.Episode]{
			ParentID: func(r episodeRow) int64 { return r.ID },
			Build:    buildEpisode,
		}
		joins []string
	)
	for _, name := range canonicalFacets(facets) {
		ef := episodeFacets[name]
		columns = append(columns, ef.columns...)
		orderBy = append(orderBy, ef.orderBy...)
		joins = append(joins, ef.join)
		assembler.Facets = append(assembler.Facets, ef.facet)
	}

	q := r.store.Builder().Select(columns...).From("items i")
	for _, join := range joins {
		q = q.LeftJoin(join)
	}
	q = q.Where(sq.Eq{"i.id": ids}).OrderBy(orderBy...)

	var rows []episodeRow
	if err := r.store.QueryMany(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("error fetching episodes: %w", err)
	}

	assembled := assembler.Assemble(ctx, rows, len(ids))
	byID := make(map[int64]int, len(assembled))
	for i, e := range assembled {
		byID[e.ID] = i
	}
	episodes := make([]podindex.Episode, 0, len(assembled))
	for _, id := range ids {
		if i, ok := byID[id]; ok {
			episodes = append(episodes, assembled[i])
		}
	}

	return episodes, nil
}

// canonicalFacets dedupes the requested facets and puts them in join order.
func canonicalFacets(requested []EpisodeFacet) []EpisodeFacet {
	want := map[EpisodeFacet]bool{}
	for _, f := range requested {
		want[f] = true
	}

	var out []EpisodeFacet
	for _, f := range AllEpisodeFacets {
		if want[f] {
			out = append(out, f)
		}
	}
	return out
}

// Episode fetches a single fully assembled episode.
func (r Repo) Episode(ctx context.Context, id int64) (podindex.Episode, error) {
	episodes, err := r.EpisodesByID(ctx, []int64{id}, AllEpisodeFacets)
	if err != nil {
		return podindex.Episode{}, err
	}
	if len(episodes) == 0 {
		return podindex.Episode{}, fmt.Errorf("episode %d: %w", id, podindex.ErrNotFound)
	}

	return episodes[0], nil
}

// EpisodesByFeed fetches a feed's newest episodes, optionally only those
// published at or after since.
func (r Repo) EpisodesByFeed(ctx context.Context, feedID int64, since int64, max uint64) ([]podindex.Episode, error) {
	where := sq.And{sq.Eq{"i.feed_id": feedID}}
	if since > 0 {
		where = append(where, sq.GtOrEq{"i.date_published": since})
	}

	return r.Episodes(ctx, EpisodeQuery{
		Where:   where,
		OrderBy: []string{"i.date_published DESC"},
		Limit:   max,
		Facets:  AllEpisodeFacets,
	})
}
