// Package vector provides the vector index used for nearest-neighbor chunk search.
package vector

import (
	"context"

	"github.com/hyperjump/tansaku/internal/models"
)

// DefaultNamespace is used when a record or query leaves the namespace empty.
const DefaultNamespace = "default"

// Record is one vector to upsert.
type Record struct {
	ID        string
	Values    []float32
	Metadata  map[string]string
	Namespace string
}

// QueryOptions bounds and scopes a nearest-neighbor query.
type QueryOptions struct {
	TopK      int
	Filter    map[string]string // exact match on every key
	Namespace string
}

// VectorIndex defines vector storage and similarity search.
type VectorIndex interface {
	// Upsert inserts or replaces records and returns how many were written.
	Upsert(ctx context.Context, records []Record) (int, error)
	// Query returns up to TopK matches ordered by descending score.
	Query(ctx context.Context, vector []float32, opts QueryOptions) ([]*models.VectorMatch, error)
	Delete(ctx context.Context, namespace string, ids []string) error
	Dimensions() int
	Size() int
	Type() string
	Close() error
}

func namespaceOrDefault(ns string) string {
	if ns == "" {
		return DefaultNamespace
	}
	return ns
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
