package v1

import (
	"github.com/jdholdren/podindex/internal/podindex"
)

type EpisodesResponse struct {
	Status      string             `json:"status"`
	Items       []podindex.Episode `json:"items"`
	Count       int                `json:"count"`
	Query       int64              `json:"query"`
	Description string             `json:"description"`
}

type EpisodeResponse struct {
	Status      string           `json:"status"`
	ID          int64            `json:"id"`
	Episode     podindex.Episode `json:"episode"`
	Description string           `json:"description"`
}

// SyncResponse is one page of the recently added episode stream. NextSince
// and Position are sent back as since and position to get the next page.
type SyncResponse struct {
	Status      string             `json:"status"`
	NextSince   int64              `json:"nextSince"`
	Position    int64              `json:"position"`
	Feeds       []podindex.Feed    `json:"feeds"`
	Items       []podindex.Episode `json:"items"`
	Count       int                `json:"count"`
	Description string             `json:"description"`
}
