package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a pgvector-backed Backend using raw SQL vector literals
// rather than a pgvector client library, matching the teacher's own
// postgres_vector.go approach (no pgvector-go dependency exists anywhere in
// the retrieved pack's go.mod/go.sum).
type Postgres struct {
	pool   *pgxpool.Pool
	dims   int
	metric string // cosine|l2|ip
	embed  EmbedFunc
}

func NewPostgres(ctx context.Context, pool *pgxpool.Pool, dims int, metric string, embed EmbedFunc) *Postgres {
	_, _ = pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	vecType := "vector"
	if dims > 0 {
		vecType = fmt.Sprintf("vector(%d)", dims)
	}
	_, _ = pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS context_embeddings (
  id TEXT PRIMARY KEY,
  content TEXT NOT NULL,
  vec %s,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb
);
`, vecType))
	return &Postgres{pool: pool, dims: dims, metric: strings.ToLower(strings.TrimSpace(metric)), embed: embed}
}

func (p *Postgres) Add(ctx context.Context, id, content string, metadata map[string]string, embedding []float32) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	vecLit := toVectorLiteral(embedding)
	_, err := p.pool.Exec(ctx, `
INSERT INTO context_embeddings(id, content, vec, metadata) VALUES($1,$2,$3::vector,$4)
ON CONFLICT (id) DO UPDATE SET content=EXCLUDED.content, vec=EXCLUDED.vec, metadata=EXCLUDED.metadata
`, id, content, vecLit, metadata)
	return id, err
}

func (p *Postgres) AddBatch(ctx context.Context, items []Item) ([]string, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		id, err := p.Add(ctx, it.ID, it.Content, it.Metadata, it.Embedding)
		if err != nil {
			return ids, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (p *Postgres) Search(ctx context.Context, query string, maxResults int, scoreThreshold float64, filters map[string]string) ([]Result, error) {
	if p.embed == nil {
		return nil, nil
	}
	vec, err := p.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return p.SearchByEmbedding(ctx, vec, maxResults, scoreThreshold, filters)
}

func (p *Postgres) SearchByEmbedding(ctx context.Context, vec []float32, maxResults int, scoreThreshold float64, filters map[string]string) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	vecLit := toVectorLiteral(vec)
	op := "<=>"
	scoreExpr := "1 - (vec <=> $1::vector)"
	switch p.metric {
	case "l2", "euclidean":
		op = "<->"
		scoreExpr = "-(vec <-> $1::vector)"
	case "ip", "dot":
		op = "<#>"
		scoreExpr = "-(vec <#> $1::vector)"
	}
	args := []any{vecLit, maxResults}
	where := ""
	if len(filters) > 0 {
		where = "WHERE metadata @> $3"
		args = []any{vecLit, maxResults, filters}
	}
	query := fmt.Sprintf(`SELECT id, content, %s AS score, metadata FROM context_embeddings %s ORDER BY vec %s $1::vector LIMIT $2`, scoreExpr, where, op)
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Result, 0, maxResults)
	for rows.Next() {
		var r Result
		var md map[string]string
		if err := rows.Scan(&r.ID, &r.Content, &r.Score, &md); err != nil {
			return nil, err
		}
		if r.Score < scoreThreshold {
			continue
		}
		r.Metadata = md
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM context_embeddings WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	b := strings.Builder{}
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fmt.Sprintf("%g", x))
	}
	b.WriteByte(']')
	return b.String()
}
