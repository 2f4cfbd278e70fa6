package graph

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

type edgeKey struct {
	src, relType string
}

// Memory is the zero-config in-memory adjacency-map stub (SPEC_FULL.md
// §4.6), grounded on the teacher's memory_graph.go: a sync.RWMutex guarding
// a node map and an edge-key-to-targets map, copy-out accessors.
type Memory struct {
	mu    sync.RWMutex
	nodes map[string]Entity
	out   map[edgeKey]map[string]map[string]string // (src,relType) -> dst -> props
	edges []Relationship                           // insertion-ordered, for traversal/statistics
}

func NewMemory() *Memory {
	return &Memory{
		nodes: make(map[string]Entity),
		out:   make(map[edgeKey]map[string]map[string]string),
	}
}

func cloneProps(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *Memory) AddEntity(_ context.Context, id, typ, name string, props map[string]string) (Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := Entity{ID: id, Type: typ, Name: name, Props: cloneProps(props)}
	m.nodes[id] = e
	return e, nil
}

func (m *Memory) AddRelationship(_ context.Context, fromID, toID, relType string, props map[string]string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[fromID]; !ok {
		return false, nil
	}
	if _, ok := m.nodes[toID]; !ok {
		return false, nil
	}
	key := edgeKey{src: fromID, relType: relType}
	if m.out[key] == nil {
		m.out[key] = make(map[string]map[string]string)
	}
	m.out[key][toID] = cloneProps(props)
	m.edges = append(m.edges, Relationship{Source: fromID, Target: toID, Type: relType, Props: cloneProps(props)})
	return true, nil
}

func (m *Memory) GetEntity(_ context.Context, id string) (Entity, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.nodes[id]
	return e, ok, nil
}

func (m *Memory) FindEntities(_ context.Context, filter FindFilter) ([]Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entity
	for _, e := range m.nodes {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.NamePattern != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(filter.NamePattern)) {
			continue
		}
		if !matchesProps(e.Props, filter.Props) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesProps(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func (m *Memory) Relationships(_ context.Context, id string, dir Direction, relType string) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Relationship
	if dir == DirectionOut || dir == DirectionBoth {
		for _, r := range m.edges {
			if r.Source != id {
				continue
			}
			if relType != "" && r.Type != relType {
				continue
			}
			out = append(out, r)
		}
	}
	if dir == DirectionIn || dir == DirectionBoth {
		for _, r := range m.edges {
			if r.Target != id {
				continue
			}
			if relType != "" && r.Type != relType {
				continue
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) Traverse(_ context.Context, startID string, maxDepth int, relTypes []string) (Subgraph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.nodes[startID]; !ok {
		return Subgraph{}, nil
	}
	allowed := make(map[string]bool, len(relTypes))
	for _, t := range relTypes {
		allowed[t] = true
	}
	visited := map[string]int{startID: 0}
	var sub Subgraph
	sub.Nodes = append(sub.Nodes, m.nodes[startID])
	frontier := []string{startID}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, cur := range frontier {
			for _, r := range m.edges {
				if r.Source != cur {
					continue
				}
				if len(allowed) > 0 && !allowed[r.Type] {
					continue
				}
				if _, seen := visited[r.Target]; seen {
					sub.Relationships = append(sub.Relationships, r)
					continue
				}
				visited[r.Target] = depth + 1
				sub.Relationships = append(sub.Relationships, r)
				if e, ok := m.nodes[r.Target]; ok {
					sub.Nodes = append(sub.Nodes, e)
				}
				next = append(next, r.Target)
			}
		}
		frontier = next
	}
	return sub, nil
}

func (m *Memory) SemanticSearch(_ context.Context, query string, types []string, maxResults int) ([]ScoredEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	var out []ScoredEntity
	for _, e := range m.nodes {
		if len(allowed) > 0 && !allowed[e.Type] {
			continue
		}
		hay := e.Name
		for _, v := range e.Props {
			hay += " " + v
		}
		score := ctxmodel.WordMatchFraction(query, hay)
		if score <= 0 {
			continue
		}
		out = append(out, ScoredEntity{Entity: e, Score: score})
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
	return out, nil
}

func (m *Memory) ShortestPath(_ context.Context, fromID, toID string, maxDepth int) (Path, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.nodes[fromID]; !ok {
		return Path{}, false, nil
	}
	if _, ok := m.nodes[toID]; !ok {
		return Path{}, false, nil
	}
	if fromID == toID {
		return Path{Nodes: []Entity{m.nodes[fromID]}}, true, nil
	}
	visited := map[string]pathStep{fromID: {id: fromID}}
	frontier := []string{fromID}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, cur := range frontier {
			for _, r := range m.edges {
				if r.Source != cur {
					continue
				}
				if _, seen := visited[r.Target]; seen {
					continue
				}
				rCopy := r
				visited[r.Target] = pathStep{id: r.Target, via: &rCopy, prev: cur}
				if r.Target == toID {
					return reconstructPath(m.nodes, visited, toID), true, nil
				}
				next = append(next, r.Target)
			}
		}
		frontier = next
	}
	return Path{}, false, nil
}

type pathStep struct {
	id   string
	via  *Relationship
	prev string
}

func reconstructPath(nodes map[string]Entity, visited map[string]pathStep, target string) Path {
	var relPath []Relationship
	var idPath []string
	cur := target
	for {
		idPath = append([]string{cur}, idPath...)
		s := visited[cur]
		if s.via == nil {
			break
		}
		relPath = append([]Relationship{*s.via}, relPath...)
		cur = s.prev
	}
	var p Path
	for _, id := range idPath {
		p.Nodes = append(p.Nodes, nodes[id])
	}
	p.Relationships = relPath
	return p
}

func (m *Memory) DeleteEntity(_ context.Context, id string, detach bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; !ok {
		return false, nil
	}
	if !detach {
		for _, r := range m.edges {
			if r.Source == id || r.Target == id {
				return false, nil
			}
		}
	}
	delete(m.nodes, id)
	kept := m.edges[:0]
	for _, r := range m.edges {
		if r.Source == id || r.Target == id {
			continue
		}
		kept = append(kept, r)
	}
	m.edges = kept
	for key := range m.out {
		if key.src == id {
			delete(m.out, key)
		}
	}
	return true, nil
}

func (m *Memory) Statistics(_ context.Context) (Statistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Statistics{NodesByType: make(map[string]int), RelationshipsByType: make(map[string]int)}
	for _, e := range m.nodes {
		st.NodesByType[e.Type]++
	}
	for _, r := range m.edges {
		st.RelationshipsByType[r.Type]++
	}
	return st, nil
}
