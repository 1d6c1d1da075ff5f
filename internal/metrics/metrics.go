// Package metrics exposes the detection pipeline's operational counters and
// histograms via github.com/prometheus/client_golang, registered against the
// default registry so a binary only needs to mount promhttp.Handler().
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesEmbedded counts embedding batches sent to a provider, labeled
	// by provider name.
	BatchesEmbedded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detective_embedding_batches_total",
		Help: "Embedding batches sent to a provider.",
	}, []string{"provider"})

	// ProviderErrors counts failed provider calls, labeled by provider name.
	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detective_embedding_provider_errors_total",
		Help: "Embedding provider calls that returned an error.",
	}, []string{"provider"})

	// ClustersEmitted counts the clusters a pass emitted after ranking and
	// the max-clusters cap. It carries no labels.
	ClustersEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detective_clusters_emitted_total",
		Help: "Failure clusters emitted by a detection pass, after ranking and capping.",
	})

	// FailuresProcessed counts the failure population a pass pulled from
	// the configured DataStore.
	FailuresProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detective_failures_processed_total",
		Help: "Test failures pulled from the store and fed into a detection pass.",
	})

	// PassDuration records wall-clock time for a full detection pass.
	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "detective_pass_duration_seconds",
		Help:    "Wall-clock duration of a full detection pass.",
		Buckets: prometheus.DefBuckets,
	})

	// PassErrors counts failed passes, labeled by the apperrors.Kind that
	// ended the pass.
	PassErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detective_pass_errors_total",
		Help: "Detection passes that ended in an error, by error kind.",
	}, []string{"kind"})
)
