// Package assemble turns the flat rows of a parent-plus-facets LEFT JOIN back
// into one object per parent.
//
// Joining a parent to several independent one-to-many tables in a single
// statement yields every combination of child rows, so the same child shows up
// many times. The assembler keeps the first sighting of each child per parent,
// identified by the facet's natural key, and keeps parents in the order the
// query produced them. It does no sorting of its own.
package assemble

import (
	"context"
	"log/slog"
)

type (
	// Facet describes one child relation of a parent built from rows of type R
	// into objects of type P.
	Facet[R, P any] struct {
		// Name is used in log lines.
		Name string
		// Present reports whether the row carries an instance of this facet.
		// All-NULL facet columns must report false.
		Present func(R) bool
		// Key is the facet's natural key within one parent.
		Key func(R) string
		// Attach adds the facet instance in the row to the parent.
		Attach func(*P, R)
		// Singleton facets hold at most one instance per parent: the one on the
		// last row that carries the facet.
		Singleton bool
	}

	// Assembler is configured once per call site with the facets it should build.
	Assembler[R, P any] struct {
		// ParentID identifies the parent a row belongs to.
		ParentID func(R) int64
		// Build makes the parent object from the parent-level columns of a row.
		Build  func(R) P
		Facets []Facet[R, P]
	}
)

// Assemble folds rows into parents, in first-seen order, and truncates to
// max assembled parents. A max of zero or less means no limit.
func (a Assembler[R, P]) Assemble(ctx context.Context, rows []R, max int) []P {
	var (
		parents = []P{}
		index   = map[int64]int{}
		seen    = map[int64][]map[string]bool{}
		// current holds the key of each singleton facet's attached instance.
		current = map[int64]map[int]string{}
	)

	for _, row := range rows {
		pid := a.ParentID(row)
		i, ok := index[pid]
		if !ok {
			i = len(parents)
			index[pid] = i
			parents = append(parents, a.Build(row))
			seen[pid] = make([]map[string]bool, len(a.Facets))
		}

		for f, facet := range a.Facets {
			if !facet.Present(row) {
				continue
			}
			key := facet.Key(row)
			if facet.Singleton {
				cur, ok := current[pid][f]
				if ok && cur == key {
					continue
				}
				if ok {
					slog.WarnContext(ctx, "singleton facet has more than one instance; keeping the last one",
						"facet", facet.Name,
						"parent_id", pid,
						"key", key,
					)
				}
				if current[pid] == nil {
					current[pid] = map[int]string{}
				}
				current[pid][f] = key
				facet.Attach(&parents[i], row)
				continue
			}

			keys := seen[pid][f]
			if keys[key] {
				continue
			}
			if keys == nil {
				keys = map[string]bool{}
				seen[pid][f] = keys
			}
			keys[key] = true
			facet.Attach(&parents[i], row)
		}
	}

	if max > 0 && len(parents) > max {
		parents = parents[:max]
	}

	return parents
}

// Distinct returns ids with repeats removed, keeping first occurrences in order.
func Distinct(ids []int64) []int64 {
	var (
		out  = make([]int64, 0, len(ids))
		seen = make(map[int64]bool, len(ids))
	)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}

	return out
}
