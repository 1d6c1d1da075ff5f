// Package config loads detective's configuration from a config file and
// environment variables, following the same viper-based layering the
// teacher uses: defaults, then a config file, then environment overrides,
// unmarshalled into a typed Config.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/flakysignal/detective/internal/apperrors"
)

// Config holds all configuration for a detection pass.
type Config struct {
	Clustering ClusteringConfig `mapstructure:"clustering"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Store      StoreConfig      `mapstructure:"store"`
	TimeWindow TimeWindowConfig `mapstructure:"time_window"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ClusteringConfig controls DBSCAN and the cluster assembly/ranking stages.
type ClusteringConfig struct {
	Epsilon        float64 `mapstructure:"epsilon"`
	MinPoints      int     `mapstructure:"min_points"`
	MinClusterSize int     `mapstructure:"min_cluster_size"`
	MaxClusters    int     `mapstructure:"max_clusters"`
	Distance       string  `mapstructure:"distance"` // "cosine" | "euclidean"
}

// EmbeddingConfig controls the embedding orchestrator.
type EmbeddingConfig struct {
	Provider      string `mapstructure:"provider"` // "genai" | "openai" | "ollama"
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	MaxBatchSize  int    `mapstructure:"max_batch_size"`
	BatchDelayMS  int    `mapstructure:"batch_delay_ms"`
	OllamaBaseURL string `mapstructure:"ollama_base_url"`
}

// String returns a safe representation of EmbeddingConfig with the API key masked.
func (c EmbeddingConfig) String() string {
	return fmt.Sprintf("EmbeddingConfig{Provider:%s, APIKey:%s, Model:%s}", c.Provider, maskAPIKey(c.APIKey), c.Model)
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// StoreConfig selects and configures the DataStore binding.
type StoreConfig struct {
	Backend              string `mapstructure:"backend"` // "memory" | "file" | "firestore" | "neo4j"
	FilePath             string `mapstructure:"file_path"`
	GoogleCloudProjectID string `mapstructure:"google_cloud_project_id"`
	Neo4jURI             string `mapstructure:"neo4j_uri"`
	Neo4jUsername        string `mapstructure:"neo4j_username"`
	Neo4jPassword        string `mapstructure:"neo4j_password"`
}

// TimeWindowConfig controls how far back fetchFailures looks.
type TimeWindowConfig struct {
	Days int `mapstructure:"days"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("clustering.epsilon", 0.15)
	v.SetDefault("clustering.min_points", 2)
	v.SetDefault("clustering.min_cluster_size", 2)
	v.SetDefault("clustering.max_clusters", 5)
	v.SetDefault("clustering.distance", "cosine")

	v.SetDefault("embedding.provider", "genai")
	v.SetDefault("embedding.model", "gemini-embedding-001")
	v.SetDefault("embedding.max_batch_size", 5)
	v.SetDefault("embedding.batch_delay_ms", 100)
	v.SetDefault("embedding.ollama_base_url", "http://localhost:11434")

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.file_path", filepath.Join(homeDir(), ".flakydetective", "clusters.json"))

	v.SetDefault("time_window.days", 14)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".flakydetective"))
	v.AddConfigPath(".")

	v.SetEnvPrefix("FLAKYDETECTIVE")
	v.AutomaticEnv()

	_ = v.BindEnv("embedding.api_key", "GENAI_API_KEY")
	_ = v.BindEnv("store.google_cloud_project_id", "GOOGLE_CLOUD_PROJECT_ID")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the clustering parameters named in spec.md §7 and returns
// a ConfigError naming the first offending field.
func (c *Config) Validate() error {
	if c.Clustering.Epsilon <= 0 {
		return apperrors.Config("epsilon must be greater than 0")
	}
	if c.Clustering.MinPoints < 1 {
		return apperrors.Config("minPoints must be at least 1")
	}
	if c.Clustering.MinClusterSize < 1 {
		return apperrors.Config("minClusterSize must be at least 1")
	}
	if c.Clustering.MaxClusters < 0 {
		return apperrors.Config("maxClusters must not be negative")
	}
	switch c.Clustering.Distance {
	case "cosine", "euclidean":
	default:
		return apperrors.Config("distance must be one of cosine, euclidean (got %q)", c.Clustering.Distance)
	}
	if c.TimeWindow.Days < 1 {
		return apperrors.Config("timeWindow.days must be a positive integer")
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
