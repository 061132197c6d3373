// Package search orders catalog results by where the query text matches.
package search

import (
	"slices"
	"strings"
)

type Item struct {
	Title       string
	Description string
	Features    []string
}

// Tier is the priority bucket of a result; lower sorts first.
type Tier int

const (
	TierTitle Tier = iota
	TierDescription
	TierFeatures
	TierNone
)

// matchTier returns the first field the query matches, checking title, then
// description, then features. The query must already be normalized.
func matchTier(query string, it Item) Tier {
	if fieldMatches(query, it.Title) {
		return TierTitle
	}
	if fieldMatches(query, it.Description) {
		return TierDescription
	}
	for _, f := range it.Features {
		if fieldMatches(query, f) {
			return TierFeatures
		}
	}
	return TierNone
}

func fieldMatches(query, field string) bool {
	field = strings.ToLower(field)
	return field == query ||
		strings.Contains(field, query) ||
		strings.HasPrefix(field, query)
}

func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// MatchTier is the exported, case-insensitive form of the tier lookup.
func MatchTier(query string, it Item) Tier {
	q := normalize(query)
	if q == "" {
		return TierNone
	}
	return matchTier(q, it)
}

// Matches is the filtering predicate callers use to drop results that match
// nothing. Rank itself never drops results.
func Matches(query string, it Item) bool {
	return MatchTier(query, it) < TierNone
}

// Rank returns items stably sorted by ascending tier. Ties keep their input
// order so that paging over the result is deterministic. An empty query
// returns items unchanged.
func Rank[T any](query string, items []T, item func(T) Item) []T {
	q := normalize(query)
	if q == "" {
		return items
	}

	type ranked struct {
		tier Tier
		v    T
	}
	tmp := make([]ranked, len(items))
	for i, v := range items {
		tmp[i] = ranked{tier: matchTier(q, item(v)), v: v}
	}
	slices.SortStableFunc(tmp, func(a, b ranked) int {
		return int(a.tier) - int(b.tier)
	})

	out := make([]T, len(tmp))
	for i, r := range tmp {
		out[i] = r.v
	}
	return out
}
