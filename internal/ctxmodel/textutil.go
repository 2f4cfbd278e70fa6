package ctxmodel

import "strings"

// Words splits content into a lower-cased word set, used by SessionStore's
// relevance scoring and the orchestrator's recency/relevance blend
// (spec.md §4.2, §4.8). This is distinct from bm25's tokenizer: it keeps
// punctuation-adjacent words intact via simple whitespace splitting, which
// is what the spec's word-overlap and Jaccard formulas call for.
func Words(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// WordSet returns the distinct lower-cased words of s.
func WordSet(s string) map[string]struct{} {
	words := Words(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard computes the Jaccard similarity between the word sets of a and b.
func Jaccard(a, b string) float64 {
	setA := WordSet(a)
	setB := WordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// WordMatchFraction returns the fraction of query's distinct words present
// anywhere in content (spec.md §4.2 relevance component (a)).
func WordMatchFraction(query, content string) float64 {
	queryWords := WordSet(query)
	if len(queryWords) == 0 {
		return 0
	}
	contentWords := WordSet(content)
	matches := 0
	for w := range queryWords {
		if _, ok := contentWords[w]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryWords))
}
