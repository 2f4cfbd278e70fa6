package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memRecord struct {
	content  string
	vec      []float32
	metadata map[string]string
}

// Memory is the zero-config in-memory cosine-similarity stub (SPEC_FULL.md
// §4.5), grounded on the teacher's memory_vector.go store idiom: a
// sync.RWMutex guarding a map, copy-out accessors.
type Memory struct {
	mu      sync.RWMutex
	records map[string]memRecord
	embed   EmbedFunc
}

func NewMemory(embed EmbedFunc) *Memory {
	return &Memory{records: make(map[string]memRecord), embed: embed}
}

func (m *Memory) Add(_ context.Context, id, content string, metadata map[string]string, embedding []float32) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = memRecord{content: content, vec: cloneVec(embedding), metadata: cloneMap(metadata)}
	return id, nil
}

func (m *Memory) AddBatch(ctx context.Context, items []Item) ([]string, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		id, err := m.Add(ctx, it.ID, it.Content, it.Metadata, it.Embedding)
		if err != nil {
			return ids, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (m *Memory) Search(ctx context.Context, query string, maxResults int, scoreThreshold float64, filters map[string]string) ([]Result, error) {
	if m.embed == nil {
		return nil, nil
	}
	vec, err := m.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return m.SearchByEmbedding(ctx, vec, maxResults, scoreThreshold, filters)
}

func (m *Memory) SearchByEmbedding(_ context.Context, vec []float32, maxResults int, scoreThreshold float64, filters map[string]string) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	qnorm := norm(vec)
	out := make([]Result, 0, len(m.records))
	for id, r := range m.records {
		if !matchesFilter(r.metadata, filters) {
			continue
		}
		score := cosine(vec, r.vec, qnorm)
		if score < scoreThreshold {
			continue
		}
		out = append(out, Result{ID: id, Content: r.content, Score: score, Metadata: cloneMap(r.metadata)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.records[id]
	delete(m.records, id)
	return existed, nil
}

func matchesFilter(md, f map[string]string) bool {
	for k, v := range f {
		if md[k] != v {
			return false
		}
	}
	return true
}

func cloneMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneVec(in []float32) []float32 {
	out := make([]float32, len(in))
	copy(out, in)
	return out
}

func norm(a []float32) float64 {
	var s float64
	for _, x := range a {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func cosine(a, b []float32, anorm float64) float64 {
	if anorm == 0 {
		anorm = norm(a)
	}
	bnorm := norm(b)
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	return dot(a, b) / (anorm * bnorm)
}
