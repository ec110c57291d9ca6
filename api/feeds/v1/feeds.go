package v1

import (
	"strings"

	"github.com/jdholdren/podindex/api"
	"github.com/jdholdren/podindex/internal/podindex"
)

type CreateFeedRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	// Content is the raw feed body, if the caller already fetched it. It lets
	// a feed that moved be matched by content.
	Content string `json:"content"`
}

// Validate checks that the body (minus logic checks) is valid.
//
// Returns an api.Error if the request is invalid.
func (r CreateFeedRequest) Validate() error {
	errs := []api.ErrorDetail{}
	if strings.TrimSpace(r.URL) == "" {
		errs = append(errs, api.ErrorDetail{
			Field: "url",
			Error: "url is required",
		})
	}
	if len(errs) > 0 {
		return api.Error{
			Status:      "false",
			Description: "request was invalid",
			Details:     errs,
		}
	}

	return nil
}

// AdminResponse answers every admin operation on a feed.
type AdminResponse struct {
	Status      string `json:"status"`
	FeedID      int64  `json:"feedId"`
	Description string `json:"description"`
}

type DeleteEpisodesResponse struct {
	AdminResponse
	Deleted int64 `json:"deleted"`
}

type RecentFeedsResponse struct {
	Status string          `json:"status"`
	Feeds  []podindex.Feed `json:"feeds"`
	Count  int             `json:"count"`
	// Max and Since echo what was applied; null when the client left them out.
	Max         *int   `json:"max"`
	Since       *int64 `json:"since"`
	Description string `json:"description"`
}

type PodcastResponse struct {
	Status      string        `json:"status"`
	Query       any           `json:"query"`
	Feed        podindex.Feed `json:"feed"`
	Description string        `json:"description"`
}
