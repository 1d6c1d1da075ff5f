package embedder

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/flakysignal/detective/internal/apperrors"
	"github.com/flakysignal/detective/internal/metrics"
)

// Orchestrator wraps a Provider with the batching, inter-batch pacing, and
// post-condition validation spec.md §4.4 requires of every provider binding,
// so individual Provider implementations only need to worry about talking to
// their API.
type Orchestrator struct {
	provider     Provider
	providerName string
	maxBatchSize int
	limiter      *rate.Limiter
}

// NewOrchestrator builds an Orchestrator. batchDelayMS <= 0 disables
// inter-batch pacing entirely. name labels the provider metrics.
func NewOrchestrator(name string, provider Provider, maxBatchSize, batchDelayMS int) *Orchestrator {
	if maxBatchSize <= 0 {
		maxBatchSize = 1
	}
	var limiter *rate.Limiter
	if batchDelayMS > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(batchDelayMS)*time.Millisecond), 1)
	}
	return &Orchestrator{provider: provider, providerName: name, maxBatchSize: maxBatchSize, limiter: limiter}
}

// GenerateEmbeddings chunks texts into batches of at most maxBatchSize,
// calls the wrapped provider once per chunk (passing every chunk through the
// rate limiter, so successive chunks start at least batchDelayMS apart and
// the first starts at once), concatenates the results in input order,
// and validates the post-conditions spec.md §4.4 names: the same number of
// vectors as inputs, all vectors non-empty, all vectors the same length, and
// every value finite.
func (o *Orchestrator) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += o.maxBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Cancelled(err)
		}

		end := start + o.maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := texts[start:end]

		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return nil, apperrors.Cancelled(err)
			}
		}

		metrics.BatchesEmbedded.WithLabelValues(o.providerName).Inc()
		vecs, err := o.provider.GenerateEmbeddings(ctx, chunk)
		if err != nil {
			metrics.ProviderErrors.WithLabelValues(o.providerName).Inc()
			return nil, apperrors.Provider(err, "generating embeddings for batch at offset %d", start)
		}
		if len(vecs) != len(chunk) {
			return nil, apperrors.Validation("provider returned %d vectors for %d inputs at offset %d", len(vecs), len(chunk), start)
		}
		result = append(result, vecs...)
	}

	if err := validateVectors(result, len(texts)); err != nil {
		return nil, err
	}
	return result, nil
}

// validateVectors enforces the S4 post-condition contract (spec.md §4.4,
// §7): mismatched dimensionality, empty vectors, and non-finite components
// are ValidationErrors, not ProviderErrors — the provider returned a
// well-formed response, it just didn't satisfy the shape the pass requires.
func validateVectors(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return apperrors.Validation("expected %d embeddings, got %d", want, len(vecs))
	}

	dim := -1
	for i, v := range vecs {
		if len(v) == 0 {
			return apperrors.Validation("embedding at index %d is empty", i)
		}
		if dim == -1 {
			dim = len(v)
		} else if len(v) != dim {
			return apperrors.Validation("embedding at index %d has dimension %d, want %d", i, len(v), dim)
		}
		for _, f := range v {
			if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
				return apperrors.Validation("embedding at index %d contains a non-finite value", i)
			}
		}
	}
	return nil
}
