package embedder

import (
	"context"

	"google.golang.org/genai"

	"github.com/flakysignal/detective/internal/apperrors"
)

// GenAIProvider implements Provider against Gemini's embedding API and is
// the default provider (spec.md §6), selected by EmbeddingConfig.Provider
// == "genai" and keyed by GENAI_API_KEY.
type GenAIProvider struct {
	client *genai.Client
	model  string
}

// NewGenAIProvider builds a GenAIProvider. apiKey is read from
// EmbeddingConfig.APIKey, which config.Load binds to GENAI_API_KEY.
func NewGenAIProvider(ctx context.Context, apiKey, model string) (*GenAIProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperrors.Provider(err, "creating genai client")
	}
	return &GenAIProvider{client: client, model: model}, nil
}

// GenerateEmbeddings issues a single EmbedContent call carrying every text
// as a separate content item, matching Gemini's multi-input embedding API.
func (p *GenAIProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, apperrors.Provider(err, "calling genai EmbedContent")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, apperrors.Provider(nil, "genai returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vecs[i] = e.Values
	}
	return vecs, nil
}
