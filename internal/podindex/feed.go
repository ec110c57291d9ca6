package podindex

import (
	"encoding/json"
	"fmt"
)

type (
	// Feed is a podcast feed as served by the API.
	Feed struct {
		ID                int64      `json:"id"`
		PodcastGUID       string     `json:"podcastGuid"`
		URL               string     `json:"url"`
		OriginalURL       string     `json:"originalUrl"`
		Title             string     `json:"title"`
		Description       string     `json:"description"`
		Image             string     `json:"image"`
		Language          string     `json:"language"`
		ITunesID          *int64     `json:"itunesId"`
		CHash             string     `json:"chash"`
		Dead              bool       `json:"dead"`
		DuplicateOf       *int64     `json:"duplicateOf"`
		Locked            bool       `json:"locked"`
		Popularity        int        `json:"popularity"`
		CreatedOn         int64      `json:"createdOn"`
		LastUpdate        int64      `json:"lastUpdateTime"`
		LastCheck         int64      `json:"lastCrawlTime"`
		LastParse         int64      `json:"lastParseTime"`
		NewestItemPubdate int64      `json:"newestItemPubdate"`
		Medium            Medium     `json:"medium"`
		Categories        Categories `json:"categories"`
		Funding           *Funding   `json:"funding,omitempty"`
		Value             *Value     `json:"value,omitempty"`
	}

	// Funding is the single funding link a feed may declare.
	Funding struct {
		URL     string `json:"url"`
		Message string `json:"message"`
	}

	// Value is the payment routing document attached to a feed.
	Value struct {
		Model        ValueModel         `json:"model"`
		Destinations []ValueDestination `json:"destinations"`
	}

	ValueModel struct {
		Type      string `json:"type"`
		Method    string `json:"method"`
		Suggested string `json:"suggested,omitempty"`
	}

	ValueDestination struct {
		Name        string `json:"name"`
		Address     string `json:"address"`
		Type        string `json:"type"`
		Split       int    `json:"split"`
		Fee         bool   `json:"fee,omitempty"`
		CustomKey   string `json:"customKey,omitempty"`
		CustomValue string `json:"customValue,omitempty"`
	}
)

// ParseValue decodes a stored value block.
func ParseValue(raw string) (*Value, error) {
	var v Value
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("error decoding value block: %w", err)
	}

	return &v, nil
}
