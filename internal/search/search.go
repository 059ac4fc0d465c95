// Package search filters content keys and ranks media assets for the editor.
package search

import (
	"path"
	"sort"
	"strings"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"
)

// Match is one filtered entry.
type Match struct {
	Index          int   // Index in the source slice
	MatchedIndexes []int // Character positions that matched (for highlighting)
	Score          int   // Higher is better
}

// index implements sahilm/fuzzy.Source over pre-lowered strings
type index struct {
	lower []string
}

func (idx index) String(i int) string { return idx.lower[i] }
func (idx index) Len() int { return len(idx.lower) }

// FilterKeys matches query against items case-insensitively, best first.
// An empty query keeps every item in order.
func FilterKeys(query string, items []string) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		out := make([]Match, len(items))
		for i := range items {
			out[i] = Match{Index: i}
		}
		return out
	}

	idx := index{lower: make([]string, len(items))}
	for i, s := range items {
		idx.lower[i] = strings.ToLower(s)
	}

	matches := fuzzy.FindFrom(strings.ToLower(query), idx)
	out := make([]Match, len(matches))
	for i, m := range matches {
		out[i] = Match{Index: m.Index, MatchedIndexes: m.MatchedIndexes, Score: m.Score}
	}
	return out
}

// RankMedia orders media URLs by how well they match query: exact, then
// prefix, then substring, then fuzzy distance. An empty query returns the
// list unchanged.
func RankMedia(query string, urls []string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return append([]string(nil), urls...)
	}

	ranks := lfuzzy.RankFindFold(query, urls)
	type scored struct {
		url   string
		score int
		order int
	}
	out := make([]scored, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, scored{url: r.Target, score: matchScore(strings.ToLower(r.Target), query, r.Distance), order: r.OriginalIndex})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score < out[j].score
		}
		return out[i].order < out[j].order
	})

	result := make([]string, len(out))
	for i, s := range out {
		result[i] = s.url
	}
	return result
}

// matchScore ranks a candidate; lower is better.
func matchScore(target, query string, distance int) int {
	name := target[strings.LastIndex(target, "/")+1:]
	stem := strings.TrimSuffix(name, path.Ext(name))
	switch {
	case target == query || name == query || stem == query:
		return 0
	case strings.HasPrefix(name, query):
		return 10
	case strings.Contains(target, query):
		return 50
	default:
		return 100 + distance
	}
}
