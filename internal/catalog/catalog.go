// Package catalog is the read side of the feed directory.
//
// Every lookup goes through one of two parameterized queries, one for feeds
// and one for episodes, each LEFT JOINing the parent to the facets the call
// site asks for. The flat rows are folded back into nested objects by the
// assemble package.
package catalog

import (
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/jdholdren/podindex/internal/store"
)

// Repo serves feed and episode reads.
type Repo struct {
	store store.Store
}

func New(s store.Store) Repo {
	return Repo{store: s}
}

var descriptionPolicy = bluemonday.UGCPolicy()

// sanitize drops markup that isn't safe to hand to a client from a description.
func sanitize(s string) string {
	return strings.TrimSpace(descriptionPolicy.Sanitize(s))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
