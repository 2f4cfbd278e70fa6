// Package ingest provides content normalization (SPEC_FULL.md §4.11):
// HTML-sniffed readability extraction and markdown conversion before
// content reaches the chunker or any tier.
package ingest

import (
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"
)

var tagRe = regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9]*[^>]*>`)

// looksLikeHTML sniffs for HTML via explicit markers or tag density, mirroring
// the teacher's internal/tools/web fetch pipeline's readability trigger.
func looksLikeHTML(raw string) bool {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "<html") || strings.Contains(lower, "<body") {
		return true
	}
	if len(raw) == 0 {
		return false
	}
	tagBytes := 0
	for _, m := range tagRe.FindAllString(raw, -1) {
		tagBytes += len(m)
	}
	return float64(tagBytes)/float64(len(raw)) > 0.05
}

// Normalizer converts raw content into plain/markdown text (spec.md §4.4's
// adaptive chunker and every tier consume its output, never raw HTML).
type Normalizer struct {
	BaseURL string
}

func New(baseURL string) *Normalizer {
	return &Normalizer{BaseURL: baseURL}
}

// Normalize is pure and synchronous: on any internal failure it returns the
// original input, unchanged, plus a non-fatal error the caller may log
// (SPEC_FULL.md §4.11 — it never fails the store path).
func (n *Normalizer) Normalize(raw string) (string, error) {
	if !looksLikeHTML(raw) {
		return raw, nil
	}
	base, err := url.Parse(n.BaseURL)
	if err != nil || n.BaseURL == "" {
		base = &url.URL{Scheme: "https", Host: "localhost"}
	}
	art, err := readability.FromReader(strings.NewReader(raw), base)
	if err != nil || strings.TrimSpace(art.Content) == "" {
		return raw, err
	}
	md, err := htmltomarkdown.ConvertString(art.Content, converter.WithDomain(base.String()))
	if err != nil {
		return raw, err
	}
	return strings.TrimSpace(md), nil
}
