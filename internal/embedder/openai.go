package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/flakysignal/detective/internal/apperrors"
)

const (
	openAIEmbedURL     = "https://api.openai.com/v1/embeddings"
	openAIHTTPTimeout  = 30 * time.Second
	openAIDefaultModel = "text-embedding-3-small"

	openAIMaxRetries    = 3
	openAIMaxRetryAfter = 60 * time.Second
	maxResponseSize     = 10 * 1024 * 1024 // 10 MB
)

// OpenAIProvider implements Provider against any OpenAI-compatible
// embeddings endpoint, selected by EmbeddingConfig.Provider == "openai".
type OpenAIProvider struct {
	apiKey      string
	model       string
	endpointURL string
	client      *http.Client
	logger      *slog.Logger
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type openAIEmbedResponse struct {
	Data []openAIEmbedData `json:"data"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewOpenAIProvider builds an OpenAIProvider against the real OpenAI API.
func NewOpenAIProvider(apiKey, model string, logger *slog.Logger) *OpenAIProvider {
	return NewOpenAIProviderWithURL(openAIEmbedURL, apiKey, model, logger)
}

// NewOpenAIProviderWithURL builds an OpenAIProvider against a custom
// endpoint, for tests using an httptest server or an OpenAI-compatible
// self-hosted gateway.
func NewOpenAIProviderWithURL(endpointURL, apiKey, model string, logger *slog.Logger) *OpenAIProvider {
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAIProvider{
		apiKey:      apiKey,
		model:       model,
		endpointURL: endpointURL,
		client:      &http.Client{Timeout: openAIHTTPTimeout},
		logger:      logger,
	}
}

// GenerateEmbeddings calls the embeddings endpoint once with every text as a
// separate input entry, retrying on 429 and 5xx, and sorts the response by
// its index field so output order always matches input order.
func (o *OpenAIProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	bodyBytes, err := json.Marshal(openAIEmbedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, apperrors.Provider(err, "marshalling request")
	}

	var (
		resp    *http.Response
		rawBody []byte
	)

	for attempt := 0; attempt < openAIMaxRetries; attempt++ {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, o.endpointURL, bytes.NewReader(bodyBytes))
		if reqErr != nil {
			return nil, apperrors.Provider(reqErr, "creating request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+o.apiKey)

		resp, err = o.client.Do(req)
		if err != nil {
			return nil, apperrors.Provider(err, "calling openai API")
		}

		rawBody, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			return nil, apperrors.Provider(err, "reading response body")
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < openAIMaxRetries-1 {
			wait := parseRetryAfter(resp.Header.Get("Retry-After"), openAIMaxRetryAfter)
			o.logger.Warn("openai rate limited, retrying", "attempt", attempt+1, "wait", wait)
			if err := sleepOrCancel(ctx, wait); err != nil {
				return nil, apperrors.Cancelled(err)
			}
			continue
		}
		if resp.StatusCode >= 500 && attempt < openAIMaxRetries-1 {
			wait := time.Duration(1<<attempt) * time.Second
			o.logger.Warn("openai server error, retrying", "attempt", attempt+1, "status", resp.StatusCode, "wait", wait)
			if err := sleepOrCancel(ctx, wait); err != nil {
				return nil, apperrors.Cancelled(err)
			}
			continue
		}
		break
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr openAIErrorResponse
		if jsonErr := json.Unmarshal(rawBody, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
			return nil, apperrors.Provider(nil, "openai API error %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		bodyPreview := string(rawBody)
		if len(bodyPreview) > 512 {
			bodyPreview = bodyPreview[:512] + "..."
		}
		return nil, apperrors.Provider(nil, "openai API returned %d: %s", resp.StatusCode, bodyPreview)
	}

	var result openAIEmbedResponse
	if err := json.Unmarshal(rawBody, &result); err != nil {
		return nil, apperrors.Provider(err, "decoding response")
	}
	if len(result.Data) == 0 {
		return nil, apperrors.Provider(nil, "no embeddings in response")
	}

	sort.Slice(result.Data, func(i, j int) bool {
		return result.Data[i].Index < result.Data[j].Index
	})

	vecs := make([][]float32, len(result.Data))
	for i := range result.Data {
		vecs[i] = result.Data[i].Embedding
	}

	o.logger.Debug("generated embeddings via openai", "model", o.model, "count", len(vecs))
	return vecs, nil
}

func parseRetryAfter(header string, maxWait time.Duration) time.Duration {
	if header == "" {
		return time.Second
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return time.Second
	}
	wait := time.Duration(secs) * time.Second
	if wait > maxWait {
		return maxWait
	}
	return wait
}

func sleepOrCancel(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
