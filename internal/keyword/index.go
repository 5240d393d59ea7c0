// Package keyword provides keyword (BM25) lookup over chunk bodies.
package keyword

import (
	"context"

	"github.com/hyperjump/tansaku/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// DocumentID restricts hits to one document.
	DocumentID string
	// FuzzyEnabled matches terms within Fuzziness edits for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance (1 or 2). Default 2.
	Fuzziness int
}

// KeywordIndex defines keyword search operations over chunks.
type KeywordIndex interface {
	IndexChunks(ctx context.Context, chunks []*models.Chunk) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	DeleteDocument(ctx context.Context, documentID string) (int, error)
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
}
