// Package graph defines the pluggable GraphBackend contract (spec.md §6.2)
// and ships an in-memory stub alongside Postgres and Neo4j implementations
// (SPEC_FULL.md §4.6).
package graph

import "context"

// Direction selects which edges Relationships walks relative to an entity.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// Entity is a graph node (spec.md §6.2).
type Entity struct {
	ID    string
	Type  string
	Name  string
	Props map[string]string
}

// Relationship is one edge, oriented from Source to Target.
type Relationship struct {
	Source string
	Target string
	Type   string
	Props  map[string]string
}

// ScoredEntity is an Entity ranked by SemanticSearch.
type ScoredEntity struct {
	Entity
	Score float64
}

// Subgraph is the result of Traverse: the set of nodes reached and the
// edges connecting them, within max_depth hops of the start node.
type Subgraph struct {
	Nodes         []Entity
	Relationships []Relationship
}

// Path is one shortest path between two entities, as an ordered node list
// and the edges connecting consecutive nodes.
type Path struct {
	Nodes         []Entity
	Relationships []Relationship
}

// Statistics summarizes graph population (spec.md §6.2).
type Statistics struct {
	NodesByType         map[string]int
	RelationshipsByType map[string]int
}

// FindFilter narrows FindEntities.
type FindFilter struct {
	Type        string
	NamePattern string
	Props       map[string]string
	Limit       int
}

// Backend is the external graph-search contract. Implementations own their
// own synchronization and persistence.
type Backend interface {
	AddEntity(ctx context.Context, id, typ, name string, props map[string]string) (Entity, error)
	AddRelationship(ctx context.Context, fromID, toID, relType string, props map[string]string) (bool, error)
	GetEntity(ctx context.Context, id string) (Entity, bool, error)
	FindEntities(ctx context.Context, filter FindFilter) ([]Entity, error)
	Relationships(ctx context.Context, id string, dir Direction, relType string) ([]Relationship, error)
	Traverse(ctx context.Context, startID string, maxDepth int, relTypes []string) (Subgraph, error)
	SemanticSearch(ctx context.Context, query string, types []string, maxResults int) ([]ScoredEntity, error)
	ShortestPath(ctx context.Context, fromID, toID string, maxDepth int) (Path, bool, error)
	DeleteEntity(ctx context.Context, id string, detach bool) (bool, error)
	Statistics(ctx context.Context) (Statistics, error)
}
