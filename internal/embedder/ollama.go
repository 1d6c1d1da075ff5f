package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flakysignal/detective/internal/apperrors"
)

const (
	ollamaHTTPTimeout  = 30 * time.Second
	ollamaConcLimit    = 5
	ollamaDefaultModel = "nomic-embed-text"
)

// OllamaProvider implements Provider against a local Ollama server,
// selected by EmbeddingConfig.Provider == "ollama". Ollama's embeddings
// endpoint accepts one prompt per request, so GenerateEmbeddings dispatches
// one goroutine per text, bounded by ollamaConcLimit, rather than batching
// into a single HTTP call the way the genai and openai providers do.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaProvider builds an OllamaProvider. model defaults to
// "nomic-embed-text" when empty.
func NewOllamaProvider(baseURL, model string, logger *slog.Logger) *OllamaProvider {
	if model == "" {
		model = ollamaDefaultModel
	}
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: ollamaHTTPTimeout},
		logger:  logger,
	}
}

// GenerateEmbeddings embeds each text concurrently, up to ollamaConcLimit
// requests in flight, and writes each result to its input position so
// output order matches input order regardless of completion order.
func (o *OllamaProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	sem := make(chan struct{}, ollamaConcLimit)

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			vec, err := o.embedOne(gctx, text)
			if err != nil {
				return apperrors.Provider(err, "embedding text at index %d", i)
			}
			mu.Lock()
			results[i] = vec
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *OllamaProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	bodyBytes, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.Provider(nil, "ollama API returned %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Embedding) == 0 {
		return nil, apperrors.Provider(nil, "ollama returned an empty embedding")
	}

	vec := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		vec[i] = float32(v)
	}

	o.logger.Debug("generated embedding via ollama", "model", o.model, "dimension", len(vec))
	return vec, nil
}
