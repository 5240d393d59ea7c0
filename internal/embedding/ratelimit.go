package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/hyperjump/tansaku/internal/models"
)

// RateLimited throttles calls to the wrapped Embedder with a token bucket.
// EmbedBatch consumes one token per text.
type RateLimited struct {
	Embedder
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limiter of rps requests per second and the given burst.
func NewRateLimited(next Embedder, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{Embedder: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Embed waits for a token and then embeds text.
func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.wait(ctx, 1); err != nil {
		return nil, err
	}
	return r.Embedder.Embed(ctx, text)
}

// EmbedBatch waits for one token per text and then embeds the batch.
func (r *RateLimited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.wait(ctx, len(texts)); err != nil {
		return nil, err
	}
	return r.Embedder.EmbedBatch(ctx, texts)
}

func (r *RateLimited) wait(ctx context.Context, n int) error {
	// WaitN rejects n above the burst, so larger batches wait token by token.
	for n > 0 {
		step := n
		if b := r.limiter.Burst(); step > b {
			step = b
		}
		if err := r.limiter.WaitN(ctx, step); err != nil {
			return fmt.Errorf("rate limit wait: %w: %w", models.ErrProviderUnavailable, err)
		}
		n -= step
	}
	return nil
}
