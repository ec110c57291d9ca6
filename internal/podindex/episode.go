package podindex

type (
	// Episode is a single item of a feed, together with its facets.
	Episode struct {
		ID              int64            `json:"id"`
		FeedID          int64            `json:"feedId"`
		GUID            string           `json:"guid"`
		Title           string           `json:"title"`
		Link            string           `json:"link"`
		Description     string           `json:"description"`
		DatePublished   int64            `json:"datePublished"`
		TimeAdded       int64            `json:"dateCrawled"`
		EnclosureURL    string           `json:"enclosureUrl"`
		EnclosureType   string           `json:"enclosureType"`
		EnclosureLength int64            `json:"enclosureLength"`
		Duration        int              `json:"duration"`
		Explicit        int              `json:"explicit"`
		Episode         *int             `json:"episode"`
		EpisodeType     string           `json:"episodeType"`
		Season          *int             `json:"season"`
		Image           string           `json:"image"`
		ChaptersURL     string           `json:"chaptersUrl,omitempty"`
		Soundbites      []Soundbite      `json:"soundbites"`
		Transcripts     []Transcript     `json:"transcripts"`
		Persons         []Person         `json:"persons"`
		SocialInteract  []SocialInteract `json:"socialInteract"`
		ValueTimeSplits []ValueTimeSplit `json:"valueTimeSplits"`
	}

	Soundbite struct {
		StartTime float64 `json:"startTime"`
		Duration  float64 `json:"duration"`
		Title     string  `json:"title"`
	}

	Transcript struct {
		URL  string `json:"url"`
		Type string `json:"type"`
	}

	Person struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Role  string `json:"role"`
		Group string `json:"group"`
		Href  string `json:"href"`
		Img   string `json:"img"`
	}

	SocialInteract struct {
		URI        string `json:"uri"`
		Protocol   string `json:"protocol"`
		AccountID  string `json:"accountId"`
		AccountURL string `json:"accountUrl"`
		Priority   int    `json:"priority"`
	}

	// ValueTimeSplit redirects a share of the value stream to another feed or
	// item for a stretch of the episode.
	ValueTimeSplit struct {
		ID               int64   `json:"id"`
		StartTime        float64 `json:"startTime"`
		Duration         float64 `json:"duration"`
		RemoteStartTime  float64 `json:"remoteStartTime"`
		RemotePercentage int     `json:"remotePercentage"`
		FeedGUID         string  `json:"feedGuid"`
		ItemGUID         string  `json:"itemGuid"`
	}
)

var transcriptTypes = map[int]string{
	0: "text/html",
	1: "application/json",
	2: "application/srt",
	3: "text/vtt",
}

// TranscriptType maps the stored numeric transcript type onto its MIME type.
func TranscriptType(t int) string {
	if mime, ok := transcriptTypes[t]; ok {
		return mime
	}

	return "text/plain"
}
