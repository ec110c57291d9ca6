package api

import (
	"net/http"

	episodesv1 "github.com/jdholdren/podindex/api/episodes/v1"
	"github.com/jdholdren/podindex/internal/sync"
)

func (s Server) getEpisodesByFeedID(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id, err := requiredID(r, "id")
	if err != nil {
		return err
	}
	since, _, err := optionalInt(r, "since")
	if err != nil {
		return err
	}
	if since < 0 {
		since = s.now().Unix() + since
	}

	// An unknown or dead feed is a 404 rather than an empty list.
	if _, err := s.identity.Feed(ctx, id, false); err != nil {
		return err
	}
	episodes, err := s.catalog.EpisodesByFeed(ctx, id, since, uint64(limit(r, s.defaultResults, s.maxResults)))
	if err != nil {
		return err
	}

	resp := episodesv1.EpisodesResponse{
		Status:      "true",
		Items:       episodes,
		Count:       len(episodes),
		Query:       id,
		Description: "Found matching items.",
	}
	if len(episodes) == 0 {
		resp.Description = "No items found."
	}

	return write(w, r, resp)
}

func (s Server) getEpisodeByID(w http.ResponseWriter, r *http.Request) error {
	id, err := requiredID(r, "id")
	if err != nil {
		return err
	}

	episode, err := s.catalog.Episode(r.Context(), id)
	if err != nil {
		return err
	}

	return write(w, r, episodesv1.EpisodeResponse{
		Status:      "true",
		ID:          id,
		Episode:     episode,
		Description: "Found matching item.",
	})
}

func (s Server) getSync(w http.ResponseWriter, r *http.Request) error {
	var cur sync.Cursor

	since, ok, err := optionalInt(r, "since")
	if err != nil {
		return err
	}
	if ok {
		cur.Since = &since
	}
	if cur.Position, _, err = optionalInt(r, "position"); err != nil {
		return err
	}
	n, _, err := optionalInt(r, "max")
	if err != nil {
		return err
	}

	batch, err := s.syncer.Sync(r.Context(), cur, int(n))
	if err != nil {
		return err
	}

	resp := episodesv1.SyncResponse{
		Status:      "true",
		NextSince:   batch.NextSince,
		Position:    batch.Position,
		Feeds:       batch.Feeds,
		Items:       batch.Items,
		Count:       len(batch.Items),
		Description: "Found matching items.",
	}
	if len(batch.Items) == 0 {
		resp.Description = "No new items found."
	}

	return write(w, r, resp)
}
