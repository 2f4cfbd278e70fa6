package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic prompts a Claude model for a structured JSON list of entities
// and relationships, grounded on the teacher's internal/llm/anthropic
// client construction idiom (option.WithAPIKey/WithBaseURL,
// anthropic.MessageNewParams, anthropic.NewUserMessage).
type Anthropic struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropic(apiKey, baseURL, model string) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(baseURL, "/")))
	}
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &Anthropic{sdk: anthropic.NewClient(opts...), model: model, maxTokens: 1024}
}

type extractionPayload struct {
	Entities []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"entities"`
	Relationships []struct {
		FromID  string `json:"from_id"`
		ToID    string `json:"to_id"`
		RelType string `json:"rel_type"`
	} `json:"relationships"`
}

const extractionPrompt = `Extract named entities and the relationships between them from the text below. Respond with ONLY a JSON object of the shape {"entities":[{"id":"","type":"","name":""}],"relationships":[{"from_id":"","to_id":"","rel_type":""}]}. Use stable lowercase-hyphenated ids derived from entity names. No prose, no markdown fences.

Text:
`

func (a *Anthropic) Extract(ctx context.Context, text string) ([]Entity, []Relationship, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(extractionPrompt + text)),
		},
	}
	resp, err := a.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, nil, fmt.Errorf("anthropic extraction: %w", err)
	}
	var raw string
	for _, block := range resp.Content {
		if block.Type == "text" {
			raw += block.Text
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	var payload extractionPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return nil, nil, fmt.Errorf("anthropic extraction: parse response: %w", err)
	}
	entities := make([]Entity, 0, len(payload.Entities))
	for _, e := range payload.Entities {
		entities = append(entities, Entity{ID: e.ID, Type: e.Type, Name: e.Name})
	}
	relationships := make([]Relationship, 0, len(payload.Relationships))
	for _, r := range payload.Relationships {
		relationships = append(relationships, Relationship{FromID: r.FromID, ToID: r.ToID, RelType: r.RelType})
	}
	return entities, relationships, nil
}
