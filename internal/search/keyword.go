package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/keyword"
	"github.com/hyperjump/tansaku/internal/models"
)

// SnippetLength is the rune budget for keyword hit previews.
const SnippetLength = 200

// KeywordQuery is a keyword lookup request.
type KeywordQuery struct {
	Query      string `json:"query"`
	Limit      int    `json:"limit,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Fuzzy      bool   `json:"fuzzy,omitempty"`
}

// KeywordHit is a keyword result with a preview of the chunk body.
type KeywordHit struct {
	*keyword.KeywordResult
	Snippet string `json:"snippet,omitempty"`
}

// KeywordSearch looks the query up in the keyword index and attaches chunk
// previews from the structured store. A store failure drops the previews but
// keeps the hits.
func (e *Engine) KeywordSearch(ctx context.Context, q *KeywordQuery) ([]*KeywordHit, error) {
	if e.keywordIndex == nil {
		return nil, fmt.Errorf("keyword index not configured: %w", models.ErrConfiguration)
	}
	if strings.TrimSpace(q.Query) == "" {
		return nil, fmt.Errorf("query cannot be empty: %w", models.ErrInvalidInput)
	}
	sq := models.SearchQuery{Query: q.Query, Limit: q.Limit}
	if err := sq.Validate(e.opts.DefaultLimit, e.opts.MaxLimit); err != nil {
		return nil, err
	}

	results, err := e.keywordIndex.Search(ctx, q.Query, sq.Limit, &keyword.SearchOptions{
		DocumentID:   q.DocumentID,
		FuzzyEnabled: q.Fuzzy,
	})
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]*KeywordHit, 0, len(results))
	ids := make([]string, 0, len(results))
	for _, r := range results {
		hits = append(hits, &KeywordHit{KeywordResult: r})
		ids = append(ids, r.ID)
	}
	if len(ids) == 0 {
		return hits, nil
	}
	chunks, err := e.storage.BatchGetChunks(ctx, ids)
	if err != nil {
		e.logger.Warn("keyword snippets unavailable", zap.Error(err))
		return hits, nil
	}
	for _, h := range hits {
		if c, ok := chunks[h.ID]; ok {
			h.Snippet = Snippet(c.Text, SnippetLength)
		}
	}
	return hits, nil
}
