package bm25

import (
	"math"
	"sort"
	"sync"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

const (
	k1      = 1.5
	b       = 0.75
	idfFloor = 0.25
)

// Result is one BM25 hit (spec.md §4.3 Search).
type Result struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]ctxmodel.Value
	Method   string
}

type document struct {
	content  string
	tokens   []string
	metadata map[string]ctxmodel.Value
	termFreq map[string]int
}

// Index is an in-memory inverted-index BM25 implementation (spec.md §4.3).
// Guarded by a single lock; the IDF cache invalidates on any mutation.
type Index struct {
	mu sync.RWMutex

	docs     map[string]document
	postings map[string]map[string]struct{} // token -> set of doc ids
	docFreq  map[string]int                  // token -> number of docs containing it

	totalLength int
	idfCache    map[string]float64
	idfValid    bool
}

func New() *Index {
	return &Index{
		docs:     make(map[string]document),
		postings: make(map[string]map[string]struct{}),
		docFreq:  make(map[string]int),
	}
}

// AddDocument replaces-or-inserts id (spec.md §4.3). Empty content is
// allowed and contributes zero tokens, so the document is never retrieved.
func (idx *Index) AddDocument(id, content string, metadata map[string]ctxmodel.Value) {
	tokens := Tokenize(content)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.docs[id]; exists {
		idx.removeLocked(id)
	}
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	idx.docs[id] = document{content: content, tokens: tokens, metadata: metadata, termFreq: tf}
	for t := range tf {
		set, ok := idx.postings[t]
		if !ok {
			set = make(map[string]struct{})
			idx.postings[t] = set
		}
		set[id] = struct{}{}
		idx.docFreq[t]++
	}
	idx.totalLength += len(tokens)
	idx.idfValid = false
}

// Remove deletes a document from the index.
func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

func (idx *Index) removeLocked(id string) {
	doc, ok := idx.docs[id]
	if !ok {
		return
	}
	for t := range doc.termFreq {
		if set, ok := idx.postings[t]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(idx.postings, t)
			}
		}
		idx.docFreq[t]--
		if idx.docFreq[t] <= 0 {
			delete(idx.docFreq, t)
		}
	}
	idx.totalLength -= len(doc.tokens)
	delete(idx.docs, id)
	idx.idfValid = false
}

// idf computes idf(t) = max(eps, ln((N-df+0.5)/(df+0.5) + 1)) with a
// per-mutation cache (spec.md §4.3 "IDF formula").
func (idx *Index) idf(t string) float64 {
	if !idx.idfValid {
		idx.idfCache = make(map[string]float64)
		idx.idfValid = true
	}
	if v, ok := idx.idfCache[t]; ok {
		return v
	}
	n := float64(len(idx.docs))
	df := float64(idx.docFreq[t])
	v := math.Log((n-df+0.5)/(df+0.5) + 1)
	if v < idfFloor {
		v = idfFloor
	}
	idx.idfCache[t] = v
	return v
}

func (idx *Index) avgDocLen() float64 {
	if len(idx.docs) == 0 {
		return 0
	}
	return float64(idx.totalLength) / float64(len(idx.docs))
}

// Search scores every document containing at least one query token via
// Okapi BM25 and returns the top max_results sorted descending (spec.md
// §4.3). An empty query returns no results.
func (idx *Index) Search(query string, maxResults int, filters map[string]ctxmodel.Value) []Result {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	avgdl := idx.avgDocLen()
	scores := make(map[string]float64)
	for _, t := range dedupe(queryTokens) {
		set, ok := idx.postings[t]
		if !ok {
			continue
		}
		idfT := idx.idf(t)
		for id := range set {
			doc := idx.docs[id]
			if !matchesFilters(doc.metadata, filters) {
				continue
			}
			tf := float64(doc.termFreq[t])
			dl := float64(len(doc.tokens))
			denom := tf + k1*(1-b+b*dl/safeAvgdl(avgdl))
			scores[id] += idfT * tf * (k1 + 1) / denom
		}
	}
	out := make([]Result, 0, len(scores))
	for id, sc := range scores {
		doc := idx.docs[id]
		out = append(out, Result{ID: id, Content: doc.content, Score: sc, Metadata: doc.metadata, Method: "bm25"})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

func safeAvgdl(avgdl float64) float64 {
	if avgdl == 0 {
		return 1
	}
	return avgdl
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func matchesFilters(md map[string]ctxmodel.Value, filters map[string]ctxmodel.Value) bool {
	for k, want := range filters {
		got, ok := md[k]
		if !ok {
			return false
		}
		if list, isList := want.AsStringList(); isList {
			s, isStr := got.AsString()
			if !isStr {
				return false
			}
			matched := false
			for _, w := range list {
				if w == s {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}
		if !got.Equal(want) {
			return false
		}
	}
	return true
}
