package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini wraps Google's genai embeddings endpoint, grounded on the
// teacher's internal/llm/google/client.go genai.NewClient construction
// idiom, generalized from content generation to embeddings.
type Gemini struct {
	client *genai.Client
	model  string
	dim    int
}

func NewGemini(ctx context.Context, apiKey, model string, dim int) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model, dim: dim}, nil
}

func (g *Gemini) Dimension() int { return g.dim }

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("gemini embeddings: empty response")
	}
	return vecs[0], nil
}

func (g *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
