package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	feedsv1 "github.com/jdholdren/podindex/api/feeds/v1"
	pierrs "github.com/jdholdren/podindex/internal/errors"
	"github.com/jdholdren/podindex/internal/identity"
	"github.com/jdholdren/podindex/internal/podindex"
	"github.com/jdholdren/podindex/internal/serverutil"
)

func done(w http.ResponseWriter, r *http.Request, feedID int64, description string) error {
	return write(w, r, feedsv1.AdminResponse{Status: "true", FeedID: feedID, Description: description})
}

func (s Server) postFeed(w http.ResponseWriter, r *http.Request) error {
	body, err := serverutil.DecodeValid[feedsv1.CreateFeedRequest](r.Body)
	if err != nil {
		return err
	}

	id, err := s.identity.ResolveOrCreateByContent(r.Context(), body.URL, identity.CreateArgs{
		Content: body.Content,
		Title:   body.Title,
	})
	if err != nil {
		return err
	}

	return done(w, r, id, "Feed registered.")
}

func (s Server) postChangeURL(w http.ResponseWriter, r *http.Request) error {
	id, err := requiredID(r, "id")
	if err != nil {
		return err
	}
	url := strings.TrimSpace(r.FormValue("url"))
	if url == "" {
		return fmt.Errorf("url is required: %w", podindex.ErrInvalidInput)
	}

	err = s.identity.ChangeURL(r.Context(), id, url)
	var taken identity.URLTakenError
	switch {
	case errors.Is(err, identity.ErrURLUnchanged):
		return pierrs.E(http.StatusBadRequest, "The url entered is not different.")
	case errors.As(err, &taken):
		return pierrs.E(http.StatusConflict, fmt.Sprintf("This url already exists as podcast id: [%d].", taken.FeedID))
	case err != nil:
		return err
	}

	return done(w, r, id, "Feed url changed. It will be re-crawled shortly.")
}

func (s Server) postMarkDead(w http.ResponseWriter, r *http.Request) error {
	id, err := requiredID(r, "id")
	if err != nil {
		return err
	}
	if err := s.identity.MarkDead(r.Context(), id); err != nil {
		return err
	}

	return done(w, r, id, "Feed marked dead.")
}

func (s Server) postMarkAlive(w http.ResponseWriter, r *http.Request) error {
	id, err := requiredID(r, "id")
	if err != nil {
		return err
	}
	if err := s.identity.MarkAlive(r.Context(), id); err != nil {
		return err
	}

	return done(w, r, id, "Feed marked alive.")
}

func (s Server) postITunesID(w http.ResponseWriter, r *http.Request) error {
	id, err := requiredID(r, "id")
	if err != nil {
		return err
	}
	itunesID, err := requiredID(r, "itunesId")
	if err != nil {
		return err
	}

	applied, err := s.identity.LinkITunesID(r.Context(), id, itunesID)
	if err != nil {
		return err
	}
	if !applied {
		return done(w, r, id, "Feed already has an iTunes id; nothing changed.")
	}

	return done(w, r, id, "iTunes id linked.")
}

func (s Server) deleteEpisodes(w http.ResponseWriter, r *http.Request) error {
	id, err := requiredID(r, "id")
	if err != nil {
		return err
	}
	if _, err := s.identity.Feed(r.Context(), id, true); err != nil {
		return err
	}

	n, err := s.catalog.DeleteEpisodesByFeed(r.Context(), id)
	if err != nil {
		return err
	}

	return write(w, r, feedsv1.DeleteEpisodesResponse{
		AdminResponse: feedsv1.AdminResponse{Status: "true", FeedID: id, Description: "Episodes deleted."},
		Deleted:       n,
	})
}
