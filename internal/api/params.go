package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jdholdren/podindex/internal/podindex"
)

const (
	// List parameters are cut to this many characters before splitting...
	maxListChars = 200
	// ...and then to this many entries.
	maxListEntries = 10
)

// limit parses max, clamping it into (0, maxLimit]. Anything missing or
// unreadable gets the default.
func limit(r *http.Request, defaultLimit, maxLimit int) int {
	n, _ := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("max")))
	switch {
	case n <= 0:
		return defaultLimit
	case n > maxLimit:
		return maxLimit
	default:
		return n
	}
}

// optionalInt reads an integer parameter. ok is false when it is absent.
func optionalInt(r *http.Request, name string) (v int64, ok bool, err error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return 0, false, nil
	}

	v, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", name, podindex.ErrInvalidInput)
	}

	return v, true, nil
}

// requiredID reads a positive id from the form, or from the route when the
// route declares one.
func requiredID(r *http.Request, name string) (int64, error) {
	raw, ok := mux.Vars(r)[name]
	if !ok {
		raw = r.FormValue(name)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%s is required: %w", name, podindex.ErrInvalidInput)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer: %w", name, podindex.ErrInvalidInput)
	}

	return id, nil
}

// listParam splits a comma separated parameter, dropping blank entries.
func listParam(r *http.Request, name string) []string {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	if len(raw) > maxListChars {
		raw = raw[:maxListChars]
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if len(out) == maxListEntries {
			break
		}
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

// categoryParam resolves a list of category IDs or names. Tokens that name no
// category are dropped.
func categoryParam(r *http.Request, name string) (ids []int, given bool) {
	tokens := listParam(r, name)
	for _, tok := range tokens {
		if id, ok := podindex.CategoryID(tok); ok {
			ids = append(ids, id)
		}
	}

	return ids, len(tokens) > 0
}

func pretty(r *http.Request) bool {
	_, ok := r.URL.Query()["pretty"]
	return ok
}
