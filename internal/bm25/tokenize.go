// Package bm25 implements the classical Okapi BM25 keyword index used by
// the LongTerm tier's keyword retrieval path (spec.md §4.3).
package bm25

import (
	"regexp"
	"strings"
)

var nonAlnumRun = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Tokenize lower-cases, splits on any non-alphanumeric boundary, and drops
// tokens shorter than 2 characters. Tokenization is language-agnostic by
// design and shared by indexing and querying (spec.md §4.3).
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	parts := nonAlnumRun.Split(lowered, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) >= 2 {
			out = append(out, p)
		}
	}
	return out
}
