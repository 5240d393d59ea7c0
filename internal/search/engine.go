// Package search runs the retrieval pipeline: embed the query, search the
// vector index, resolve chunk bodies and expand graph relationships.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/embedding"
	"github.com/hyperjump/tansaku/internal/graph"
	"github.com/hyperjump/tansaku/internal/keyword"
	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/internal/storage"
	"github.com/hyperjump/tansaku/internal/vector"
)

// Options bounds the pipeline. Each stage gets its own timeout.
type Options struct {
	DefaultLimit     int
	MaxLimit         int
	MaxRelationships int
	Namespace        string
	EmbedTimeout     time.Duration
	VectorTimeout    time.Duration
	ResolveTimeout   time.Duration
	ExpandTimeout    time.Duration
}

// OptionsFromConfig collects the retrieval settings from a loaded config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultLimit:     cfg.Retrieval.DefaultLimit,
		MaxLimit:         cfg.Retrieval.MaxLimit,
		MaxRelationships: cfg.Graph.MaxRelationships,
		Namespace:        cfg.Vector.Namespace,
		EmbedTimeout:     cfg.Retrieval.EmbedTimeout,
		VectorTimeout:    cfg.Retrieval.VectorTimeout,
		ResolveTimeout:   cfg.Retrieval.ResolveTimeout,
		ExpandTimeout:    cfg.Retrieval.ExpandTimeout,
	}
}

// Engine runs retrieval queries. It holds no per-query state and is safe for
// concurrent use.
type Engine struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	graph        graph.Store
	keywordIndex keyword.KeywordIndex
	opts         Options
	logger       *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithKeywordIndex enables KeywordSearch.
func WithKeywordIndex(k keyword.KeywordIndex) EngineOption {
	return func(e *Engine) { e.keywordIndex = k }
}

// NewEngine creates a search engine. A nil graph store disables expansion.
func NewEngine(
	store storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	graphStore graph.Store,
	opts Options,
	options ...EngineOption,
) *Engine {
	if graphStore == nil {
		graphStore = graph.NopStore{}
	}
	if opts.MaxRelationships <= 0 {
		opts.MaxRelationships = config.DefaultMaxRelationships
	}
	e := &Engine{
		storage:     store,
		embedder:    embedder,
		vectorIndex: vectorIndex,
		graph:       graphStore,
		opts:        opts,
		logger:      zap.NewNop(),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Search runs the four stages in order. Embedding and vector search failures
// produce an unsuccessful result with no matches. Resolve and expand failures
// degrade the result and keep the matches. The error is non-nil only when the
// query itself is invalid.
func (e *Engine) Search(ctx context.Context, q *models.SearchQuery) (*models.RetrievalResult, error) {
	if err := q.Validate(e.opts.DefaultLimit, e.opts.MaxLimit); err != nil {
		return nil, err
	}
	result := models.NewRetrievalResult(q.Query)
	log := e.logger.With(zap.String("query", q.Query), zap.Int("limit", q.Limit))

	var queryVec []float32
	if !e.runStage(ctx, log, result, models.StageEmbedding, e.opts.EmbedTimeout, models.StageFailed, func(ctx context.Context) error {
		v, err := e.embedder.Embed(ctx, q.Query)
		queryVec = v
		return err
	}) {
		return result, nil
	}

	var matches []*models.VectorMatch
	if !e.runStage(ctx, log, result, models.StageVectorSearch, e.opts.VectorTimeout, models.StageFailed, func(ctx context.Context) error {
		namespace := q.Namespace
		if namespace == "" {
			namespace = e.opts.Namespace
		}
		m, err := e.vectorIndex.Query(ctx, queryVec, vector.QueryOptions{TopK: q.Limit, Filter: q.Filter, Namespace: namespace})
		matches = m
		return err
	}) {
		return result, nil
	}
	if matches != nil {
		result.Matches = matches
	}
	result.TotalResults = len(result.Matches)

	ids := distinctIDs(result.Matches)
	if len(ids) == 0 {
		result.Record(models.StageOutcome{Stage: models.StageResolve, Status: models.StageSkipped})
		result.Record(models.StageOutcome{Stage: models.StageExpand, Status: models.StageSkipped})
		return result, nil
	}

	e.runStage(ctx, log, result, models.StageResolve, e.opts.ResolveTimeout, models.StageDegraded, func(ctx context.Context) error {
		chunks, err := e.storage.BatchGetChunks(ctx, ids)
		if err != nil {
			return err
		}
		result.Chunks = chunks
		return nil
	})

	if !e.graph.Enabled() {
		result.Record(models.StageOutcome{Stage: models.StageExpand, Status: models.StageSkipped})
		return result, nil
	}
	e.runStage(ctx, log, result, models.StageExpand, e.opts.ExpandTimeout, models.StageDegraded, func(ctx context.Context) error {
		records, err := e.graph.Run(ctx, graph.RelatedToChunks, map[string]any{
			"chunk_ids": ids,
			"limit":     e.opts.MaxRelationships,
		}, graph.ModeRead)
		if err != nil {
			return err
		}
		rels := make([]*models.Relationship, 0, len(records))
		for _, rec := range records {
			if len(rels) == e.opts.MaxRelationships {
				break
			}
			if rel, ok := graph.ToRelationship(rec); ok {
				rels = append(rels, &rel)
			}
		}
		result.Relationships = rels
		return nil
	})
	return result, nil
}

// runStage calls fn under the stage timeout and records its outcome. On error
// the stage is recorded with failStatus. Reports whether fn succeeded.
func (e *Engine) runStage(
	ctx context.Context,
	log *zap.Logger,
	result *models.RetrievalResult,
	stage models.Stage,
	timeout time.Duration,
	failStatus models.StageStatus,
	fn func(context.Context) error,
) bool {
	stageCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	start := time.Now()
	err := fn(stageCtx)
	cancel()
	outcome := models.StageOutcome{Stage: stage, Status: models.StageOK, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		err = classify(stage, timeout, err)
		outcome.Status = failStatus
		outcome.Error = err.Error()
		log.Warn("search stage "+string(failStatus), zap.String("stage", string(stage)), zap.Error(err))
	} else {
		log.Debug("search stage ok", zap.String("stage", string(stage)), zap.Int64("duration_ms", outcome.DurationMs))
	}
	result.Record(outcome)
	return err == nil
}

func classify(stage models.Stage, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w after %s", stage, models.ErrTimeout, timeout)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

// distinctIDs returns match ids in first-seen order.
func distinctIDs(matches []*models.VectorMatch) []string {
	seen := make(map[string]struct{}, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		ids = append(ids, m.ID)
	}
	return ids
}
