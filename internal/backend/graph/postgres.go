package graph

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a plain-tables graph backend, grounded on the teacher's
// postgres_graph.go nodes/edges schema, generalized from its minimal
// UpsertNode/UpsertEdge/Neighbors/GetNode contract up to the full Backend
// interface (traversal and shortest path done in Go over fetched edges,
// since the teacher's schema carries no recursive-CTE helpers).
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, pool *pgxpool.Pool) *Postgres {
	_, _ = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS nodes (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL DEFAULT '',
  props JSONB NOT NULL DEFAULT '{}'::jsonb
);
`)
	_, _ = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS edges (
  id BIGSERIAL PRIMARY KEY,
  source TEXT NOT NULL,
  rel TEXT NOT NULL,
  target TEXT NOT NULL,
  props JSONB NOT NULL DEFAULT '{}'::jsonb
);
`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS edges_src_rel ON edges(source, rel)`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS edges_dst_rel ON edges(target, rel)`)
	return &Postgres{pool: pool}
}

func (g *Postgres) AddEntity(ctx context.Context, id, typ, name string, props map[string]string) (Entity, error) {
	if props == nil {
		props = map[string]string{}
	}
	_, err := g.pool.Exec(ctx, `
INSERT INTO nodes(id, type, name, props) VALUES($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET type=EXCLUDED.type, name=EXCLUDED.name, props=EXCLUDED.props
`, id, typ, name, props)
	if err != nil {
		return Entity{}, err
	}
	return Entity{ID: id, Type: typ, Name: name, Props: props}, nil
}

func (g *Postgres) AddRelationship(ctx context.Context, fromID, toID, relType string, props map[string]string) (bool, error) {
	if props == nil {
		props = map[string]string{}
	}
	tag, err := g.pool.Exec(ctx, `
INSERT INTO edges(source, rel, target, props) VALUES($1,$2,$3,$4)
`, fromID, relType, toID, props)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (g *Postgres) GetEntity(ctx context.Context, id string) (Entity, bool, error) {
	row := g.pool.QueryRow(ctx, `SELECT type, name, props FROM nodes WHERE id=$1`, id)
	var e Entity
	e.ID = id
	if err := row.Scan(&e.Type, &e.Name, &e.Props); err != nil {
		if err == pgx.ErrNoRows {
			return Entity{}, false, nil
		}
		return Entity{}, false, err
	}
	return e, true, nil
}

func (g *Postgres) FindEntities(ctx context.Context, filter FindFilter) ([]Entity, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT id, type, name, props FROM nodes WHERE 1=1`)
	args := []any{}
	if filter.Type != "" {
		args = append(args, filter.Type)
		q.WriteString(` AND type=$` + strconv.Itoa(len(args)))
	}
	if filter.NamePattern != "" {
		args = append(args, "%"+filter.NamePattern+"%")
		q.WriteString(` AND name ILIKE $` + strconv.Itoa(len(args)))
	}
	if len(filter.Props) > 0 {
		args = append(args, filter.Props)
		q.WriteString(` AND props @> $` + strconv.Itoa(len(args)))
	}
	q.WriteString(` ORDER BY id`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}
	rows, err := g.pool.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Type, &e.Name, &e.Props); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (g *Postgres) Relationships(ctx context.Context, id string, dir Direction, relType string) ([]Relationship, error) {
	var out []Relationship
	if dir == DirectionOut || dir == DirectionBoth {
		rows, err := g.queryEdges(ctx, `SELECT source, rel, target, props FROM edges WHERE source=$1`, id, relType)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	if dir == DirectionIn || dir == DirectionBoth {
		rows, err := g.queryEdges(ctx, `SELECT source, rel, target, props FROM edges WHERE target=$1`, id, relType)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (g *Postgres) queryEdges(ctx context.Context, base string, id, relType string) ([]Relationship, error) {
	query := base
	args := []any{id}
	if relType != "" {
		args = append(args, relType)
		query += ` AND rel=$2`
	}
	rows, err := g.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.Source, &r.Type, &r.Target, &r.Props); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Traverse and ShortestPath load the full edge table and walk it in Go; the
// teacher's schema has no recursive-CTE support wired up, and graph sizes
// for a conversational context store stay small enough for this to be fine.
func (g *Postgres) Traverse(ctx context.Context, startID string, maxDepth int, relTypes []string) (Subgraph, error) {
	m, err := g.loadMemory(ctx)
	if err != nil {
		return Subgraph{}, err
	}
	return m.Traverse(ctx, startID, maxDepth, relTypes)
}

func (g *Postgres) ShortestPath(ctx context.Context, fromID, toID string, maxDepth int) (Path, bool, error) {
	m, err := g.loadMemory(ctx)
	if err != nil {
		return Path{}, false, err
	}
	return m.ShortestPath(ctx, fromID, toID, maxDepth)
}

func (g *Postgres) SemanticSearch(ctx context.Context, query string, types []string, maxResults int) ([]ScoredEntity, error) {
	m, err := g.loadMemory(ctx)
	if err != nil {
		return nil, err
	}
	return m.SemanticSearch(ctx, query, types, maxResults)
}

func (g *Postgres) loadMemory(ctx context.Context) (*Memory, error) {
	m := NewMemory()
	rows, err := g.pool.Query(ctx, `SELECT id, type, name, props FROM nodes`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Type, &e.Name, &e.Props); err != nil {
			rows.Close()
			return nil, err
		}
		m.nodes[e.ID] = e
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	erows, err := g.pool.Query(ctx, `SELECT source, rel, target, props FROM edges`)
	if err != nil {
		return nil, err
	}
	defer erows.Close()
	for erows.Next() {
		var r Relationship
		if err := erows.Scan(&r.Source, &r.Type, &r.Target, &r.Props); err != nil {
			return nil, err
		}
		m.edges = append(m.edges, r)
	}
	return m, erows.Err()
}

func (g *Postgres) DeleteEntity(ctx context.Context, id string, detach bool) (bool, error) {
	if !detach {
		var count int
		if err := g.pool.QueryRow(ctx, `SELECT count(*) FROM edges WHERE source=$1 OR target=$1`, id).Scan(&count); err != nil {
			return false, err
		}
		if count > 0 {
			return false, nil
		}
	} else {
		if _, err := g.pool.Exec(ctx, `DELETE FROM edges WHERE source=$1 OR target=$1`, id); err != nil {
			return false, err
		}
	}
	tag, err := g.pool.Exec(ctx, `DELETE FROM nodes WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (g *Postgres) Statistics(ctx context.Context) (Statistics, error) {
	st := Statistics{NodesByType: make(map[string]int), RelationshipsByType: make(map[string]int)}
	rows, err := g.pool.Query(ctx, `SELECT type, count(*) FROM nodes GROUP BY type`)
	if err != nil {
		return st, err
	}
	for rows.Next() {
		var t string
		var c int
		if err := rows.Scan(&t, &c); err != nil {
			rows.Close()
			return st, err
		}
		st.NodesByType[t] = c
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, err
	}
	erows, err := g.pool.Query(ctx, `SELECT rel, count(*) FROM edges GROUP BY rel`)
	if err != nil {
		return st, err
	}
	defer erows.Close()
	for erows.Next() {
		var t string
		var c int
		if err := erows.Scan(&t, &c); err != nil {
			return st, err
		}
		st.RelationshipsByType[t] = c
	}
	return st, erows.Err()
}
