package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4j is a Cypher-backed Backend using the official driver, adopted from
// the rest of the retrieved pack's dependency set (the teacher itself has
// no native graph-DB client; this is wired in specifically so Traverse and
// ShortestPath get real variable-length-path and shortestPath() queries
// instead of the in-Go BFS the Postgres backend falls back to).
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewNeo4j(uri, username, password, database string) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4j{driver: driver, database: database}, nil
}

func (g *Neo4j) Close(ctx context.Context) error { return g.driver.Close(ctx) }

func (g *Neo4j) session(ctx context.Context) neo4j.SessionWithContext {
	return g.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: g.database})
}

func (g *Neo4j) AddEntity(ctx context.Context, id, typ, name string, props map[string]string) (Entity, error) {
	session := g.session(ctx)
	defer session.Close(ctx)
	params := map[string]any{"id": id, "type": typ, "name": name, "props": toAnyMap(props)}
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
MERGE (e:Entity {id: $id})
SET e.type = $type, e.name = $name, e.props = $props
`, params)
	})
	if err != nil {
		return Entity{}, err
	}
	return Entity{ID: id, Type: typ, Name: name, Props: props}, nil
}

func (g *Neo4j) AddRelationship(ctx context.Context, fromID, toID, relType string, props map[string]string) (bool, error) {
	session := g.session(ctx)
	defer session.Close(ctx)
	params := map[string]any{"from": fromID, "to": toID, "props": toAnyMap(props)}
	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`
MATCH (a:Entity {id: $from}), (b:Entity {id: $to})
MERGE (a)-[r:%s]->(b)
SET r.props = $props
RETURN count(r) AS c
`, sanitizeRelType(relType)), params)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		c, _ := rec.Get("c")
		return c, nil
	})
	if err != nil {
		return false, err
	}
	count, _ := result.(int64)
	return count > 0, nil
}

func (g *Neo4j) GetEntity(ctx context.Context, id string) (Entity, bool, error) {
	session := g.session(ctx)
	defer session.Close(ctx)
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (e:Entity {id: $id}) RETURN e.type, e.name, e.props`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, nil
		}
		return rec, nil
	})
	if err != nil {
		return Entity{}, false, err
	}
	rec, ok := result.(*neo4j.Record)
	if !ok || rec == nil {
		return Entity{}, false, nil
	}
	typ, _ := rec.Get("e.type")
	name, _ := rec.Get("e.name")
	props, _ := rec.Get("e.props")
	return Entity{ID: id, Type: asString(typ), Name: asString(name), Props: fromAnyMap(props)}, true, nil
}

func (g *Neo4j) FindEntities(ctx context.Context, filter FindFilter) ([]Entity, error) {
	session := g.session(ctx)
	defer session.Close(ctx)
	query := `MATCH (e:Entity) WHERE ($type = '' OR e.type = $type) AND ($pattern = '' OR toLower(e.name) CONTAINS toLower($pattern)) RETURN e.id, e.type, e.name, e.props ORDER BY e.id`
	params := map[string]any{"type": filter.Type, "pattern": filter.NamePattern}
	if filter.Limit > 0 {
		query += " LIMIT $limit"
		params["limit"] = filter.Limit
	}
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := result.([]*neo4j.Record)
	out := make([]Entity, 0, len(records))
	for _, rec := range records {
		id, _ := rec.Get("e.id")
		typ, _ := rec.Get("e.type")
		name, _ := rec.Get("e.name")
		props, _ := rec.Get("e.props")
		e := Entity{ID: asString(id), Type: asString(typ), Name: asString(name), Props: fromAnyMap(props)}
		if !matchesProps(e.Props, filter.Props) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (g *Neo4j) Relationships(ctx context.Context, id string, dir Direction, relType string) ([]Relationship, error) {
	session := g.session(ctx)
	defer session.Close(ctx)
	var pattern string
	switch dir {
	case DirectionOut:
		pattern = `(a:Entity {id: $id})-[r]->(b:Entity)`
	case DirectionIn:
		pattern = `(a:Entity)-[r]->(b:Entity {id: $id})`
	default:
		pattern = `(a:Entity {id: $id})-[r]-(b:Entity)`
	}
	query := fmt.Sprintf(`MATCH %s WHERE ($rel = '' OR type(r) = $rel) RETURN a.id, type(r), b.id, r.props`, pattern)
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": id, "rel": relType})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := result.([]*neo4j.Record)
	out := make([]Relationship, 0, len(records))
	for _, rec := range records {
		src, _ := rec.Get("a.id")
		typ, _ := rec.Get("type(r)")
		dst, _ := rec.Get("b.id")
		props, _ := rec.Get("r.props")
		out = append(out, Relationship{Source: asString(src), Target: asString(dst), Type: asString(typ), Props: fromAnyMap(props)})
	}
	return out, nil
}

func (g *Neo4j) Traverse(ctx context.Context, startID string, maxDepth int, relTypes []string) (Subgraph, error) {
	session := g.session(ctx)
	defer session.Close(ctx)
	relPattern := ""
	if len(relTypes) > 0 {
		relPattern = ":" + joinOr(relTypes)
	}
	query := fmt.Sprintf(`
MATCH path = (start:Entity {id: $id})-[%s*0..%d]-(e:Entity)
UNWIND nodes(path) AS n
UNWIND relationships(path) AS r
RETURN DISTINCT n.id AS nid, n.type AS ntype, n.name AS nname, n.props AS nprops,
       startNode(r).id AS src, type(r) AS rtype, endNode(r).id AS dst, r.props AS rprops
`, relPattern, maxDepth)
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": startID})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return Subgraph{}, err
	}
	records, _ := result.([]*neo4j.Record)
	var sub Subgraph
	seenNode := map[string]bool{}
	seenEdge := map[string]bool{}
	for _, rec := range records {
		if nid, ok := rec.Get("nid"); ok && nid != nil {
			id := asString(nid)
			if !seenNode[id] {
				seenNode[id] = true
				ntype, _ := rec.Get("ntype")
				nname, _ := rec.Get("nname")
				nprops, _ := rec.Get("nprops")
				sub.Nodes = append(sub.Nodes, Entity{ID: id, Type: asString(ntype), Name: asString(nname), Props: fromAnyMap(nprops)})
			}
		}
		if src, ok := rec.Get("src"); ok && src != nil {
			dst, _ := rec.Get("dst")
			rtype, _ := rec.Get("rtype")
			rprops, _ := rec.Get("rprops")
			key := asString(src) + "|" + asString(rtype) + "|" + asString(dst)
			if !seenEdge[key] {
				seenEdge[key] = true
				sub.Relationships = append(sub.Relationships, Relationship{Source: asString(src), Target: asString(dst), Type: asString(rtype), Props: fromAnyMap(rprops)})
			}
		}
	}
	return sub, nil
}

func (g *Neo4j) SemanticSearch(ctx context.Context, query string, types []string, maxResults int) ([]ScoredEntity, error) {
	entities, err := g.FindEntities(ctx, FindFilter{NamePattern: query, Limit: 0})
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	out := make([]ScoredEntity, 0, len(entities))
	for _, e := range entities {
		if len(allowed) > 0 && !allowed[e.Type] {
			continue
		}
		out = append(out, ScoredEntity{Entity: e, Score: 1.0})
	}
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (g *Neo4j) ShortestPath(ctx context.Context, fromID, toID string, maxDepth int) (Path, bool, error) {
	session := g.session(ctx)
	defer session.Close(ctx)
	query := fmt.Sprintf(`
MATCH p = shortestPath((a:Entity {id: $from})-[*..%d]-(b:Entity {id: $to}))
RETURN [n IN nodes(p) | {id: n.id, type: n.type, name: n.name, props: n.props}] AS nodes,
       [r IN relationships(p) | {source: startNode(r).id, target: endNode(r).id, type: type(r), props: r.props}] AS rels
`, maxDepth)
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"from": fromID, "to": toID})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, nil
		}
		return rec, nil
	})
	if err != nil {
		return Path{}, false, err
	}
	rec, ok := result.(*neo4j.Record)
	if !ok || rec == nil {
		return Path{}, false, nil
	}
	var p Path
	if nodesVal, ok := rec.Get("nodes"); ok {
		if list, ok := nodesVal.([]any); ok {
			for _, item := range list {
				m, _ := item.(map[string]any)
				p.Nodes = append(p.Nodes, Entity{
					ID:    asString(m["id"]),
					Type:  asString(m["type"]),
					Name:  asString(m["name"]),
					Props: fromAnyMap(m["props"]),
				})
			}
		}
	}
	if relsVal, ok := rec.Get("rels"); ok {
		if list, ok := relsVal.([]any); ok {
			for _, item := range list {
				m, _ := item.(map[string]any)
				p.Relationships = append(p.Relationships, Relationship{
					Source: asString(m["source"]),
					Target: asString(m["target"]),
					Type:   asString(m["type"]),
					Props:  fromAnyMap(m["props"]),
				})
			}
		}
	}
	return p, len(p.Nodes) > 0, nil
}

func (g *Neo4j) DeleteEntity(ctx context.Context, id string, detach bool) (bool, error) {
	session := g.session(ctx)
	defer session.Close(ctx)
	query := `MATCH (e:Entity {id: $id}) DELETE e RETURN count(e) AS c`
	if detach {
		query = `MATCH (e:Entity {id: $id}) DETACH DELETE e RETURN count(e) AS c`
	}
	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return summary.Counters().NodesDeleted() > 0, nil
	})
	if err != nil {
		return false, err
	}
	deleted, _ := result.(bool)
	return deleted, nil
}

func (g *Neo4j) Statistics(ctx context.Context) (Statistics, error) {
	session := g.session(ctx)
	defer session.Close(ctx)
	st := Statistics{NodesByType: make(map[string]int), RelationshipsByType: make(map[string]int)}
	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (e:Entity) RETURN e.type AS t, count(*) AS c`, nil)
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			t, _ := rec.Get("t")
			c, _ := rec.Get("c")
			count, _ := c.(int64)
			st.NodesByType[asString(t)] = int(count)
		}
		return nil, nil
	})
	if err != nil {
		return st, err
	}
	_, err = session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH ()-[r]->() RETURN type(r) AS t, count(*) AS c`, nil)
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			t, _ := rec.Get("t")
			c, _ := rec.Get("c")
			count, _ := c.(int64)
			st.RelationshipsByType[asString(t)] = int(count)
		}
		return nil, nil
	})
	return st, err
}

func toAnyMap(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func fromAnyMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = asString(val)
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func joinOr(relTypes []string) string {
	out := ""
	for i, t := range relTypes {
		if i > 0 {
			out += "|"
		}
		out += sanitizeRelType(t)
	}
	return out
}

// sanitizeRelType keeps relationship type names to a safe identifier subset
// since Cypher doesn't allow parameterizing a relationship type in MERGE/MATCH.
func sanitizeRelType(t string) string {
	out := make([]byte, 0, len(t))
	for i := 0; i < len(t); i++ {
		c := t[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return "RELATED_TO"
	}
	return string(out)
}
