package vector

import (
	"context"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/models"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeRedis uses RediSearch HNSW over Redis hashes.
	IndexTypeRedis IndexType = "redis"
)

// New creates the vector index selected by cfg.
func New(ctx context.Context, cfg config.VectorConfig) (VectorIndex, error) {
	switch IndexType(cfg.Backend) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(cfg.Dimensions)
	case IndexTypeRedis:
		return NewRedisIndex(ctx, RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			IndexName: cfg.Redis.IndexName,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, cfg.Dimensions)
	default:
		return nil, models.NewConfigurationError("vector.backend", "unknown backend %q (supported: memory, redis)", cfg.Backend)
	}
}
