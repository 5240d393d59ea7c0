// Package embedding provides the embedding providers (mock, ONNX, OpenAI) and
// wrappers for caching and rate limiting.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/tansaku/internal/models"
)

// Embedder produces vector embeddings for text. Implementations must be safe
// for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

func checkInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty text: %w", models.ErrInvalidInput)
	}
	return nil
}

// embedEach implements EmbedBatch on top of a single-text embed function.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}
