package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	feedsv1 "github.com/jdholdren/podindex/api/feeds/v1"
	"github.com/jdholdren/podindex/internal/catalog"
	"github.com/jdholdren/podindex/internal/identity"
	"github.com/jdholdren/podindex/internal/podindex"
)

// recentFeedsArgs reads the recent feeds filters. Unreadable numbers are
// ignored rather than rejected. The applied max and since are handed back for
// echoing, nil when the client didn't send them.
func (s Server) recentFeedsArgs(r *http.Request) (args catalog.RecentFeedsArgs, echoMax *int, echoSince *int64, none bool) {
	q := r.URL.Query()

	args.Max = uint64(limit(r, s.defaultResults, s.maxResults))
	if _, err := strconv.Atoi(strings.TrimSpace(q.Get("max"))); err == nil {
		m := int(args.Max)
		echoMax = &m
	}

	if since, err := strconv.ParseInt(strings.TrimSpace(q.Get("since")), 10, 64); err == nil && since != 0 {
		if since < 0 {
			since = s.now().Unix() + since
		}
		args.Since = since
		echoSince = &since
	}

	args.Languages = listParam(r, "lang")
	if strings.EqualFold(strings.TrimSpace(q.Get("sort")), string(catalog.SortDiscovery)) {
		args.Sort = catalog.SortDiscovery
	}

	include, given := categoryParam(r, "cat")
	if given && len(include) == 0 {
		// Only unknown categories were asked for, so nothing can match.
		none = true
	}
	args.IncludeCategories = include
	args.ExcludeCategories, _ = categoryParam(r, "notcat")

	return args, echoMax, echoSince, none
}

func (s Server) getRecentFeeds(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	if s.recentCache != nil {
		if resp, ok := s.recentCache.Get(r.URL.RawQuery); ok {
			return write(w, r, resp)
		}
	}

	args, echoMax, echoSince, none := s.recentFeedsArgs(r)
	feeds := []podindex.Feed{}
	if !none {
		var err error
		feeds, err = s.catalog.RecentFeeds(ctx, args)
		if err != nil {
			return err
		}
	}

	resp := feedsv1.RecentFeedsResponse{
		Status:      "true",
		Feeds:       feeds,
		Count:       len(feeds),
		Max:         echoMax,
		Since:       echoSince,
		Description: "Found matching feeds.",
	}
	if len(feeds) == 0 {
		resp.Description = "No recent feeds found."
	}
	if s.recentCache != nil {
		s.recentCache.Add(r.URL.RawQuery, resp)
	}

	return write(w, r, resp)
}

// writeFeed loads the full feed behind an identity lookup.
func (s Server) writeFeed(w http.ResponseWriter, r *http.Request, query any, rec identity.Record, err error) error {
	if err != nil {
		return err
	}

	feed, err := s.catalog.Feed(r.Context(), rec.ID, false)
	if err != nil {
		return err
	}

	return write(w, r, feedsv1.PodcastResponse{
		Status:      "true",
		Query:       query,
		Feed:        feed,
		Description: "Found matching feed.",
	})
}

func (s Server) getPodcastByFeedID(w http.ResponseWriter, r *http.Request) error {
	id, err := requiredID(r, "id")
	if err != nil {
		return err
	}

	rec, err := s.identity.Feed(r.Context(), id, false)
	return s.writeFeed(w, r, map[string]int64{"id": id}, rec, err)
}

func (s Server) getPodcastByFeedURL(w http.ResponseWriter, r *http.Request) error {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		return fmt.Errorf("url is required: %w", podindex.ErrInvalidInput)
	}

	rec, err := s.identity.FeedByURL(r.Context(), url, false)
	return s.writeFeed(w, r, map[string]string{"url": url}, rec, err)
}

func (s Server) getPodcastByGUID(w http.ResponseWriter, r *http.Request) error {
	guid := strings.TrimSpace(r.URL.Query().Get("guid"))
	if guid == "" {
		return fmt.Errorf("guid is required: %w", podindex.ErrInvalidInput)
	}

	rec, err := s.identity.FeedByGUID(r.Context(), guid, false)
	return s.writeFeed(w, r, map[string]string{"guid": guid}, rec, err)
}

func (s Server) getPodcastByITunesID(w http.ResponseWriter, r *http.Request) error {
	id, err := requiredID(r, "id")
	if err != nil {
		return err
	}

	rec, err := s.identity.FeedByITunesID(r.Context(), id, false)
	return s.writeFeed(w, r, map[string]int64{"id": id}, rec, err)
}
