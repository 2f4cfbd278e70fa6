package vector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadOriginalID and payloadContent carry fields Qdrant's UUID/integer
// point-id restriction can't: our caller-supplied id and the chunk content
// itself, both stashed in the point payload (mirrors the teacher's
// qdrant_vector.go _original_id trick).
const (
	payloadOriginalID = "_original_id"
	payloadContent    = "_content"
)

// Qdrant is a Backend implementation over Qdrant's gRPC API.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
	embed      EmbedFunc
}

// NewQdrant connects to dsn (e.g. "http://localhost:6334?api_key=...") and
// ensures the target collection exists with the requested metric.
func NewQdrant(dsn, collection string, dimensions int, metric string, embed EmbedFunc) (*Qdrant, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	q := &Qdrant{client: client, collection: collection, dimension: dimensions, metric: strings.ToLower(strings.TrimSpace(metric)), embed: embed}
	if err := q.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return q, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: distance,
		}),
	})
}

func pointID(id string) (string, string) {
	if _, err := uuid.Parse(id); err == nil {
		return id, ""
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), id
}

func (q *Qdrant) Add(ctx context.Context, id, content string, metadata map[string]string, embedding []float32) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	uuidStr, original := pointID(id)
	payloadMap := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		payloadMap[k] = v
	}
	payloadMap[payloadContent] = content
	if original != "" {
		payloadMap[payloadOriginalID] = original
	}
	vec := cloneVec(embedding)
	points := []*qdrant.PointStruct{{
		Id:      qdrant.NewIDUUID(uuidStr),
		Vectors: qdrant.NewVectorsDense(vec),
		Payload: qdrant.NewValueMap(payloadMap),
	}}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: q.collection, Points: points})
	return id, err
}

func (q *Qdrant) AddBatch(ctx context.Context, items []Item) ([]string, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		id, err := q.Add(ctx, it.ID, it.Content, it.Metadata, it.Embedding)
		if err != nil {
			return ids, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (q *Qdrant) Search(ctx context.Context, query string, maxResults int, scoreThreshold float64, filters map[string]string) ([]Result, error) {
	if q.embed == nil {
		return nil, nil
	}
	vec, err := q.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return q.SearchByEmbedding(ctx, vec, maxResults, scoreThreshold, filters)
}

func (q *Qdrant) SearchByEmbedding(ctx context.Context, vec []float32, maxResults int, scoreThreshold float64, filters map[string]string) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	var queryFilter *qdrant.Filter
	if len(filters) > 0 {
		must := make([]*qdrant.Condition, 0, len(filters))
		for k, v := range filters {
			must = append(must, qdrant.NewMatch(k, v))
		}
		queryFilter = &qdrant.Filter{Must: must}
	}
	limit := uint64(maxResults)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(cloneVec(vec)),
		Limit:          &limit,
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if float64(hit.Score) < scoreThreshold {
			continue
		}
		uuidStr := hit.Id.GetUuid()
		if uuidStr == "" {
			uuidStr = hit.Id.String()
		}
		md := make(map[string]string)
		var originalID, content string
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				switch k {
				case payloadOriginalID:
					originalID = v.GetStringValue()
				case payloadContent:
					content = v.GetStringValue()
				default:
					md[k] = v.GetStringValue()
				}
			}
		}
		id := originalID
		if id == "" {
			id = uuidStr
		}
		out = append(out, Result{ID: id, Content: content, Score: float64(hit.Score), Metadata: md})
	}
	return out, nil
}

func (q *Qdrant) Delete(ctx context.Context, id string) (bool, error) {
	uuidStr, _ := pointID(id)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(uuidStr)),
	})
	return err == nil, err
}

func (q *Qdrant) Close() error { return q.client.Close() }
