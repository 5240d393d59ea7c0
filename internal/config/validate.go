package config

import (
	"time"

	"github.com/hyperjump/tansaku/internal/models"
)

// ValidateChunking checks a chunk size/overlap pair.
func ValidateChunking(chunkSize, chunkOverlap int) error {
	if chunkSize <= 0 {
		return models.NewConfigurationError("chunk_size", "must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return models.NewConfigurationError("chunk_overlap", "must not be negative, got %d", chunkOverlap)
	}
	if chunkSize <= chunkOverlap {
		return models.NewConfigurationError("chunk_overlap",
			"must be smaller than chunk_size (%d <= %d)", chunkSize, chunkOverlap)
	}
	return nil
}

// Validate checks cfg for settings that would make processing impossible.
// It returns a *models.ConfigurationError describing the first problem found.
func Validate(cfg *Config) error {
	if err := ValidateChunking(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap); err != nil {
		return err
	}
	if t := cfg.Chunking.BoundaryThreshold; t <= 0 || t >= 1 {
		return models.NewConfigurationError("chunking.boundary_threshold", "must be in (0, 1), got %g", t)
	}
	switch cfg.Embedding.Provider {
	case "mock", "onnx":
	case "openai":
		if cfg.Embedding.APIKey == "" {
			return models.NewConfigurationError("embedding.api_key", "required for the openai provider")
		}
	default:
		return models.NewConfigurationError("embedding.provider", "unknown provider %q (supported: mock, onnx, openai)", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return models.NewConfigurationError("embedding.dimensions", "must be positive, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.RequestsPerSecond < 0 {
		return models.NewConfigurationError("embedding.requests_per_second", "must not be negative")
	}
	switch cfg.Vector.Backend {
	case "memory", "redis":
	default:
		return models.NewConfigurationError("vector.backend", "unknown backend %q (supported: memory, redis)", cfg.Vector.Backend)
	}
	if cfg.Vector.Dimensions != cfg.Embedding.Dimensions {
		return models.NewConfigurationError("vector.dimensions",
			"embedding produces %d dimensions but the vector index expects %d",
			cfg.Embedding.Dimensions, cfg.Vector.Dimensions)
	}
	switch cfg.Graph.Backend {
	case "none", "neo4j":
	default:
		return models.NewConfigurationError("graph.backend", "unknown backend %q (supported: none, neo4j)", cfg.Graph.Backend)
	}
	if cfg.Graph.MaxRelationships <= 0 {
		return models.NewConfigurationError("graph.max_relationships", "must be positive")
	}
	if cfg.Retrieval.IngestWorkers < 1 {
		return models.NewConfigurationError("retrieval.ingest_workers", "must be at least 1, got %d", cfg.Retrieval.IngestWorkers)
	}
	if cfg.Retrieval.DefaultLimit <= 0 || cfg.Retrieval.MaxLimit < cfg.Retrieval.DefaultLimit {
		return models.NewConfigurationError("retrieval.max_limit", "must be >= default_limit > 0")
	}
	timeouts := []struct {
		field string
		d     time.Duration
	}{
		{"retrieval.embed_timeout", cfg.Retrieval.EmbedTimeout},
		{"retrieval.vector_timeout", cfg.Retrieval.VectorTimeout},
		{"retrieval.resolve_timeout", cfg.Retrieval.ResolveTimeout},
		{"retrieval.expand_timeout", cfg.Retrieval.ExpandTimeout},
		{"retrieval.write_timeout", cfg.Retrieval.WriteTimeout},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			return models.NewConfigurationError(t.field, "must be positive, got %s", t.d)
		}
	}
	return nil
}
