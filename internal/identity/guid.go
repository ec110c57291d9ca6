package identity

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// podcastNamespace is the UUIDv5 namespace podcast GUIDs are derived in.
var podcastNamespace = uuid.MustParse("ead4c236-bf58-58c6-a2c6-a6b28d128cb6")

// PodcastGUID derives a feed's podcast GUID from its URL: a UUIDv5 over the
// URL with the scheme and any trailing slashes removed, so every member of a
// URL's canonical class gets the same GUID.
func PodcastGUID(url string) string {
	url = strings.TrimSpace(url)
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[i+len("://"):]
	}
	url = strings.TrimRight(url, "/")

	return uuid.NewSHA1(podcastNamespace, []byte(url)).String()
}

// ContentHash fingerprints a feed body for duplicate detection.
func ContentHash(content string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(content))
}
