// Package embed produces and caches embedding vectors for note content and
// search queries. One provider instance is shared by search, tagging and
// enrichment through the bounded Cache.
package embed

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// VectorDimension is the embedding width stored per note. Gemini embedding
// models support Matryoshka truncation to this size, so different models can
// share the column.
const VectorDimension = 768

// Provider produces embedding vectors for text. Implemented by the
// genkit-backed embedder and by the Cache that wraps it.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// GenkitProvider adapts a Genkit ai.Embedder to the Provider interface,
// pinning the output dimensionality to VectorDimension.
type GenkitProvider struct {
	embedder ai.Embedder
	model    string
}

// NewGenkitProvider wraps a Genkit embedder. The model name is recorded with
// every stored vector and keys the cache.
func NewGenkitProvider(embedder ai.Embedder, model string) (*GenkitProvider, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	return &GenkitProvider{embedder: embedder, model: model}, nil
}

// Embed generates a vector embedding for the given text.
func (p *GenkitProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := int32(VectorDimension)
	resp, err := p.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return resp.Embeddings[0].Embedding, nil
}

// Model returns the configured model name.
func (p *GenkitProvider) Model() string {
	return p.model
}
