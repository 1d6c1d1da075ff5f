// Package pipeline wires S1 through S8 of the detection pipeline together:
// fetch the failure population, validate it, enrich it, embed it, cluster
// it, assemble and rank the clusters, and persist the result.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flakysignal/detective/internal/apperrors"
	"github.com/flakysignal/detective/internal/assembly"
	"github.com/flakysignal/detective/internal/cluster"
	ctxbuild "github.com/flakysignal/detective/internal/context"
	"github.com/flakysignal/detective/internal/embedder"
	"github.com/flakysignal/detective/internal/extractor"
	"github.com/flakysignal/detective/internal/metrics"
	"github.com/flakysignal/detective/internal/models"
	"github.com/flakysignal/detective/internal/store"
)

// ClusteringParams carries the Config.Clustering fields the pipeline needs,
// decoupling it from the config package so it can be unit tested with
// literal values.
type ClusteringParams struct {
	Epsilon        float64
	MinPoints      int
	MinClusterSize int
	MaxClusters    int
	Distance       string
}

// Pipeline runs detection passes against a fixed DataStore and Provider.
type Pipeline struct {
	Store      store.DataStore
	Embedder   embedder.Provider
	Clustering ClusteringParams

	// Now returns the current instant; overridable so tests get a fixed
	// cluster-id date without depending on wall-clock time.
	Now func() time.Time

	// Logger receives each pass's structured lines (start, fetched count,
	// completion or failure), all tagged with a per-pass uuid so
	// concurrent invocations' log lines can be told
	// apart (§5: independent invocations share no mutable state).
	Logger *slog.Logger
}

// New builds a Pipeline ready to run Detect.
func New(s store.DataStore, p embedder.Provider, params ClusteringParams) *Pipeline {
	return &Pipeline{Store: s, Embedder: p, Clustering: params, Now: time.Now, Logger: slog.Default()}
}

// Detect runs one full pass (S1–S8) over the failures reported in the last
// days days and returns the ranked, persisted clusters.
func (pl *Pipeline) Detect(ctx context.Context, days int) ([]models.FailureCluster, error) {
	passID := uuid.New().String()
	logger := pl.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("pass_id", passID)

	start := time.Now()
	logger.Info("detection pass started", "days", days)
	defer func() { metrics.PassDuration.Observe(time.Since(start).Seconds()) }()

	clusters, err := pl.detect(ctx, days, logger)
	if err != nil {
		metrics.PassErrors.WithLabelValues(string(kindOf(err))).Inc()
		logger.Error("detection pass failed", "error", err)
		return nil, err
	}
	logger.Info("detection pass complete", "clusters", len(clusters))
	return clusters, nil
}

func (pl *Pipeline) detect(ctx context.Context, days int, logger *slog.Logger) ([]models.FailureCluster, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Cancelled(err)
	}

	failures, err := pl.Store.FetchFailures(ctx, days)
	if err != nil {
		return nil, apperrors.Storage(err, "fetching failures")
	}
	logger.Info("fetched failure population", "count", len(failures))
	metrics.FailuresProcessed.Add(float64(len(failures)))

	if err := validate(failures); err != nil {
		return nil, err
	}
	if len(failures) == 0 {
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Cancelled(err)
	}

	enriched := make([]models.TestFailure, len(failures))
	for i, f := range failures {
		enriched[i] = extractor.Extract(f)
	}

	texts := make([]string, len(enriched))
	for i, f := range enriched {
		texts[i] = ctxbuild.Build(f)
	}

	vectors, err := pl.Embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return nil, err // already an *apperrors.Error from the orchestrator
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Cancelled(err)
	}

	indexSets, err := cluster.DBSCAN(vectors, pl.Clustering.Epsilon, pl.Clustering.MinPoints, cluster.ByName(pl.Clustering.Distance))
	if err != nil {
		return nil, apperrors.Validation("clustering: %v", err)
	}

	baseKey := pl.Now().UTC().Format("2006-01-02")
	clusters := assembly.Assemble(indexSets, enriched, baseKey, pl.Clustering.MinClusterSize)
	ranked := assembly.RankAndCap(clusters, pl.Clustering.MaxClusters)

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Cancelled(err)
	}

	if err := pl.Store.SaveClusters(ctx, ranked); err != nil {
		return nil, apperrors.Storage(err, "saving clusters")
	}
	metrics.ClustersEmitted.Add(float64(len(ranked)))

	return ranked, nil
}

// validate implements S1: reject any record missing id, testTitle,
// testFilePath, or errorMessage, or carrying an invalid (zero) timestamp.
// The error names the first offending record's index and field.
func validate(failures []models.TestFailure) error {
	for i, f := range failures {
		switch {
		case f.ID == "":
			return apperrors.Validation("record %d: id is required", i)
		case f.TestTitle == "":
			return apperrors.Validation("record %d: testTitle is required", i)
		case f.TestFilePath == "":
			return apperrors.Validation("record %d: testFilePath is required", i)
		case f.ErrorMessage == "":
			return apperrors.Validation("record %d: errorMessage is required", i)
		case f.Timestamp.IsZero():
			return apperrors.Validation("record %d: timestamp is invalid", i)
		}
	}
	return nil
}

func kindOf(err error) apperrors.Kind {
	if ae, ok := err.(*apperrors.Error); ok {
		return ae.Kind
	}
	return apperrors.KindValidation
}
