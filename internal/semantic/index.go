// Package semantic implements the bilingual (Chinese/English) natural
// language resolver that maps human references like "走廊灯" or "living
// room light" onto canonical device/rule/workflow ids.
package semantic

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// ResourceEntry is one resolvable target: a device, rule, or workflow.
type ResourceEntry struct {
	ID         string
	Name       string
	Location   string
	DeviceType string
	Kind       string // "device", "rule", "workflow"
}

// Index is the queryable set of resolvable resources.
type Index struct {
	entries []ResourceEntry
}

func NewIndex(entries ...ResourceEntry) *Index {
	return &Index{entries: entries}
}

func (idx *Index) Add(e ResourceEntry) {
	idx.entries = append(idx.entries, e)
}

// Match is one scored candidate from a fuzzy search.
type Match struct {
	Entry ResourceEntry
	Score float64
}

// Search scores every entry's Name against query via normalized
// Levenshtein similarity and returns matches at or above minScore,
// highest score first.
func (idx *Index) Search(query string, minScore float64) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Match
	for _, e := range idx.entries {
		score := similarity(q, strings.ToLower(e.Name))
		if score >= minScore {
			out = append(out, Match{Entry: e, Score: score})
		}
	}
	sortMatchesDesc(out)
	return out
}

// SearchInLocation restricts Search to entries whose Location exactly or
// substring-matches locationHint.
func (idx *Index) SearchInLocation(query, locationHint string, minScore float64) []Match {
	hint := strings.ToLower(locationHint)
	var out []Match
	for _, e := range idx.entries {
		if !strings.Contains(strings.ToLower(e.Location), hint) {
			continue
		}
		score := similarity(strings.ToLower(query), strings.ToLower(e.Name))
		if score < minScore {
			continue
		}
		out = append(out, Match{Entry: e, Score: score})
	}
	sortMatchesDesc(out)
	return out
}

func sortMatchesDesc(matches []Match) {
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Score > matches[j-1].Score; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
}

// similarity returns a normalized [0,1] score, 1 meaning identical.
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}
