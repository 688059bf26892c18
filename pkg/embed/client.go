// Package embed implements the phase-aware embedding client (spec's
// Component D): query-time and document-time vectors over the same
// genai SDK pkg/llm uses for chat completion.
package embed

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/nextlevelbuilder/acontext/pkg/config"
	"github.com/nextlevelbuilder/acontext/pkg/store"
)

// Client wraps a genai client bound to one embedding model.
type Client struct {
	genai     *genai.Client
	model     string
	dimension int
}

// NewClient constructs a Client from embedding configuration.
func NewClient(ctx context.Context, cfg *config.EmbedConfig) (*Client, error) {
	clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	gc, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{genai: gc, model: cfg.Model, dimension: cfg.Dimension}, nil
}

// Embed produces one vector for text, tagged with the phase it was
// embedded for. Gemini's embedding API takes a task type hint so query
// and document embeddings of the same text can differ slightly.
func (c *Client) Embed(ctx context.Context, phase store.EmbeddingPhase, text string) ([]float32, error) {
	taskType := "RETRIEVAL_DOCUMENT"
	if phase == store.EmbeddingPhaseQuery {
		taskType = "RETRIEVAL_QUERY"
	}

	contents := []*genai.Content{{Parts: []*genai.Part{{Text: text}}}}
	resp, err := c.genai.Models.EmbedContent(ctx, c.model, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: genai.Ptr(int32(c.dimension)),
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding API returned no vectors")
	}
	return resp.Embeddings[0].Values, nil
}

// EmbedBatch embeds several texts of the same phase in one call.
func (c *Client) EmbedBatch(ctx context.Context, phase store.EmbeddingPhase, texts []string) ([][]float32, error) {
	taskType := "RETRIEVAL_DOCUMENT"
	if phase == store.EmbeddingPhaseQuery {
		taskType = "RETRIEVAL_QUERY"
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	resp, err := c.genai.Models.EmbedContent(ctx, c.model, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: genai.Ptr(int32(c.dimension)),
	})
	if err != nil {
		return nil, fmt.Errorf("embed content batch: %w", err)
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}
