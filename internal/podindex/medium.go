package podindex

import "strings"

// Medium tells what kind of content a feed carries.
//
// "podcast" is implied when nothing is stored for a feed.
type Medium string

const (
	MediumPodcast    Medium = "podcast"
	MediumMusic      Medium = "music"
	MediumVideo      Medium = "video"
	MediumFilm       Medium = "film"
	MediumAudiobook  Medium = "audiobook"
	MediumNewsletter Medium = "newsletter"
	MediumBlog       Medium = "blog"
)

var storedMediums = map[Medium]bool{
	MediumMusic:      true,
	MediumVideo:      true,
	MediumFilm:       true,
	MediumAudiobook:  true,
	MediumNewsletter: true,
	MediumBlog:       true,
}

// ParseMedium maps a stored tag onto the enum, falling back to podcast for
// anything absent or unknown.
func ParseMedium(s string) Medium {
	m := Medium(strings.ToLower(strings.TrimSpace(s)))
	if storedMediums[m] {
		return m
	}

	return MediumPodcast
}
