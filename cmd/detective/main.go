package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flakysignal/detective/internal/apperrors"
	"github.com/flakysignal/detective/internal/config"
	"github.com/flakysignal/detective/internal/embedder"
	"github.com/flakysignal/detective/internal/store"
)

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "detective",
		Short: "detective finds recurring flaky-test patterns in a test-failure population",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return cfg.Validate()
		},
	}

	rootCmd.AddCommand(detectCmd(), reportCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		return ae.Kind.ExitCode()
	}
	return 1
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// newProvider builds the embedding provider selected by cfg.Embedding,
// wrapped in an Orchestrator (spec.md §4.4's batching/pacing/validation).
func newProvider(ctx context.Context, logger *slog.Logger) (embedder.Provider, error) {
	var (
		raw  embedder.Provider
		name = cfg.Embedding.Provider
	)

	switch name {
	case "openai":
		if cfg.Embedding.APIKey == "" {
			return nil, apperrors.Config("embedding.api_key is required for the openai provider")
		}
		raw = embedder.NewOpenAIProvider(cfg.Embedding.APIKey, cfg.Embedding.Model, logger)
	case "ollama":
		raw = embedder.NewOllamaProvider(cfg.Embedding.OllamaBaseURL, cfg.Embedding.Model, logger)
	default:
		if cfg.Embedding.APIKey == "" {
			return nil, apperrors.Config("GENAI_API_KEY is required for the genai provider")
		}
		p, err := embedder.NewGenAIProvider(ctx, cfg.Embedding.APIKey, cfg.Embedding.Model)
		if err != nil {
			return nil, apperrors.Provider(err, "constructing genai provider")
		}
		raw = p
		name = "genai"
	}

	return embedder.NewOrchestrator(name, raw, cfg.Embedding.MaxBatchSize, cfg.Embedding.BatchDelayMS), nil
}

// newStore builds the DataStore selected by cfg.Store.Backend.
func newStore(ctx context.Context) (store.DataStore, error) {
	switch cfg.Store.Backend {
	case "file":
		return store.NewFileStore(cfg.Store.FilePath)
	case "firestore":
		if cfg.Store.GoogleCloudProjectID == "" {
			return nil, apperrors.Config("store.google_cloud_project_id is required for the firestore backend")
		}
		return store.NewFirestoreStore(ctx, cfg.Store.GoogleCloudProjectID)
	case "neo4j":
		return store.NewNeo4jStore(ctx, cfg.Store.Neo4jURI, cfg.Store.Neo4jUsername, cfg.Store.Neo4jPassword)
	default:
		return store.NewMemoryStore(nil), nil
	}
}
