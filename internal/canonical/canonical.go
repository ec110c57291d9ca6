// Package canonical decides whether two feed URLs name the same feed.
//
// The equivalence is deliberately narrow: a URL is equal to itself with the
// scheme flipped between http and https and with or without one trailing
// slash. Host case, query strings and fragments are not normalized.
package canonical

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/podindex/internal/podindex"
	"github.com/jdholdren/podindex/internal/store"
)

// Variants returns the equivalence class of a feed URL: the trimmed URL as
// given, without its trailing slash, with exactly one trailing slash, and the
// scheme-flipped forms of the last two. Duplicates are kept so the class
// always has five members.
func Variants(url string) []string {
	url = strings.TrimSpace(url)
	noSlash := strings.TrimSuffix(url, "/")
	flipped := flipScheme(noSlash)

	return []string{
		url,
		noSlash,
		noSlash + "/",
		flipped,
		flipped + "/",
	}
}

// flipScheme swaps https for http and the other way around, matching the
// scheme in any case. Anything else is returned untouched.
func flipScheme(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, "https://"):
		return "http://" + url[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		return "https://" + url[len("http://"):]
	default:
		return url
	}
}

// Valid reports whether url looks like something we can crawl.
func Valid(url string) bool {
	url = strings.TrimSpace(url)
	return url != "" && strings.HasPrefix(strings.ToLower(url), "http")
}

// Resolver looks up feeds by the equivalence class of their URL.
type Resolver struct {
	store store.Store
}

func NewResolver(s store.Store) Resolver {
	return Resolver{store: s}
}

// Exists returns the ID of a feed whose url or original url matches any
// variant of url. The bool is false when no feed matches.
//
// Dead feeds count: they still own their URL.
func (r Resolver) Exists(ctx context.Context, url string) (int64, bool, error) {
	if !Valid(url) {
		return 0, false, fmt.Errorf("url %q does not start with http: %w", url, podindex.ErrInvalidInput)
	}

	variants := Variants(url)
	q := r.store.Builder().
		Select("id").
		From("feeds").
		Where(sq.Or{
			sq.Eq{"url": variants},
			sq.Eq{"original_url": variants},
		}).
		OrderBy("dead ASC", "id ASC").
		Limit(1)

	var id int64
	err := r.store.QueryOne(ctx, &id, q)
	if err != nil {
		if errors.Is(err, podindex.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("error checking feed existence: %w", err)
	}

	return id, true, nil
}
