package semantic

import (
	"sort"
	"strings"

	"github.com/neomind/edge/internal/neoerr"
)

// MatchType classifies how a reference was resolved.
type MatchType string

const (
	MatchExact      MatchType = "Exact"
	MatchPartial    MatchType = "Partial"
	MatchTranslated MatchType = "Translated"
	MatchAlias      MatchType = "Alias"
	MatchLocation   MatchType = "Location"
)

// Resolution is the outcome of resolving one natural-language reference.
type Resolution struct {
	DeviceID     string
	OriginalName string
	MatchType    MatchType
	Score        float64
}

// Resolver resolves natural-language device/rule/workflow references
// against a resource Index using the seeded/extended AliasTables.
type Resolver struct {
	Index   *Index
	Aliases *AliasTables
}

func NewResolver(idx *Index, aliases *AliasTables) *Resolver {
	return &Resolver{Index: idx, Aliases: aliases}
}

// ResolveDevice implements resolve_device(ref): compound decomposition
// first, then translated/expanded fuzzy search.
func (r *Resolver) ResolveDevice(ref string) (*Resolution, error) {
	if res := r.tryCompoundDecomposition(ref); res != nil {
		return res, nil
	}
	if res := r.tryQueryExpansion(ref); res != nil {
		return res, nil
	}
	return nil, neoerr.NotFoundf("could not resolve device reference %q", ref)
}

// tryCompoundDecomposition splits ref into a location part and a
// device-type part, first against known alias tokens, then (for strings
// that are purely Chinese and matched nothing) against every
// character-level split point.
func (r *Resolver) tryCompoundDecomposition(ref string) *Resolution {
	type split struct{ loc, typ string }
	var candidates []split

	for _, token := range r.Aliases.LocationTokens() {
		if token == "" || !strings.Contains(ref, token) {
			continue
		}
		typePart := strings.Replace(ref, token, "", 1)
		candidates = append(candidates, split{loc: token, typ: typePart})
	}

	if len(candidates) == 0 && DetectLanguage(ref) == LangChinese {
		runes := []rune(ref)
		for i := 1; i < len(runes); i++ {
			candidates = append(candidates, split{loc: string(runes[:i]), typ: string(runes[i:])})
		}
	}

	var best *Resolution
	for _, c := range candidates {
		typePart := strings.TrimSpace(c.typ)
		if typePart == "" {
			continue
		}
		_, typeKnown := r.Aliases.MatchTypeToken(typePart)
		if !typeKnown && len([]rune(typePart)) > 2 {
			continue
		}

		matches := r.Index.SearchInLocation(ref, c.loc, 0)
		for _, m := range matches {
			if !confirmsType(m.Entry, typePart) {
				continue
			}
			if best == nil || m.Score > best.Score {
				best = &Resolution{
					DeviceID:     m.Entry.ID,
					OriginalName: ref,
					MatchType:    MatchLocation,
					Score:        m.Score,
				}
			}
		}
	}
	return best
}

// confirmsType reports whether typePart appears in entry's name or
// equals its device_type attribute, case-insensitively. typePart is
// compared as written; the type alias table is not consulted.
func confirmsType(e ResourceEntry, typePart string) bool {
	if strings.Contains(e.Name, typePart) {
		return true
	}
	return strings.EqualFold(e.DeviceType, typePart)
}

// tryQueryExpansion computes literal translations of ref (by substituting
// every recognized location/type token with its canonical English form),
// then nickname variants of each, searching the full index with a score
// threshold that depends on how many candidate queries were generated.
func (r *Resolver) tryQueryExpansion(ref string) *Resolution {
	queries := []string{ref}
	queries = append(queries, r.translations(ref)...)

	expanded := append([]string(nil), queries...)
	for _, q := range queries {
		expanded = append(expanded, r.Aliases.Nicknames(q)...)
	}
	expanded = dedupe(expanded)

	threshold := thresholdFor(len(expanded))

	var best *Resolution
	for _, q := range expanded {
		isDirect := q == ref
		matches := r.Index.Search(q, threshold)
		if len(matches) == 0 {
			continue
		}
		top := matches[0]
		if best == nil || top.Score > best.Score {
			best = &Resolution{
				DeviceID:     top.Entry.ID,
				OriginalName: ref,
				Score:        top.Score,
				MatchType:    classify(top.Score, isDirect, q, ref),
			}
		}
	}
	return best
}

func classify(score float64, isDirect bool, query, ref string) MatchType {
	switch {
	case isDirect && score > 0.8:
		return MatchExact
	case isDirect:
		return MatchPartial
	case !strings.EqualFold(query, ref):
		return MatchTranslated
	default:
		return MatchAlias
	}
}

func thresholdFor(numCandidates int) float64 {
	switch {
	case numCandidates > 2:
		return 0.3
	case numCandidates == 2:
		return 0.4
	default:
		return 0.7
	}
}

// translations produces a single best-effort literal translation of ref
// by replacing every recognized location/device-type token with its
// canonical English form. Returns no candidates if nothing matched.
func (r *Resolver) translations(ref string) []string {
	translated := ref
	changed := false
	for _, token := range r.Aliases.LocationTokens() {
		if canon, ok := r.Aliases.MatchLocationToken(token); ok && strings.Contains(translated, token) {
			translated = strings.ReplaceAll(translated, token, canon)
			changed = true
		}
	}
	for _, token := range r.Aliases.TypeTokens() {
		if canon, ok := r.Aliases.MatchTypeToken(token); ok && strings.Contains(translated, token) {
			translated = strings.ReplaceAll(translated, token, canon)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return []string{translated}
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
