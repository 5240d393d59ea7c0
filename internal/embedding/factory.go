package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/models"
)

// New builds the configured provider, wrapped with a rate limiter when
// requests_per_second is set and an LRU cache when cache_size is positive.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		base Embedder
		err  error
	)
	switch cfg.Provider {
	case "mock", "":
		base = NewMockEmbedder(cfg.Dimensions)
	case "onnx":
		base, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case "openai":
		base, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	default:
		return nil, models.NewConfigurationError("embedding.provider", "unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s embedder: %w", cfg.Provider, err)
	}

	e := base
	if cfg.RequestsPerSecond > 0 {
		e = NewRateLimited(e, cfg.RequestsPerSecond, cfg.Burst)
	}
	if cfg.CacheSize > 0 {
		e = NewCached(e, cfg.CacheSize)
	}
	logger.Info("embedder initialized",
		zap.String("provider", cfg.Provider),
		zap.Int("dimensions", e.Dimensions()),
		zap.Float64("requests_per_second", cfg.RequestsPerSecond),
		zap.Int("cache_size", cfg.CacheSize))
	return e, nil
}
