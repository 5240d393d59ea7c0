// Package app wires the configured collaborators into one application context
// shared by the HTTP server, the CLI and the inbox watcher.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/embedding"
	"github.com/hyperjump/tansaku/internal/extract"
	"github.com/hyperjump/tansaku/internal/graph"
	"github.com/hyperjump/tansaku/internal/indexer"
	"github.com/hyperjump/tansaku/internal/keyword"
	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/internal/search"
	"github.com/hyperjump/tansaku/internal/storage"
	"github.com/hyperjump/tansaku/internal/vector"
)

// App holds every collaborator built from one config.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Storage  storage.Storage
	Embedder embedding.Embedder
	Vectors  vector.VectorIndex
	Keywords keyword.KeywordIndex
	Graph    graph.Store
	Registry *extract.Registry
	Indexer  *indexer.Indexer
	Engine   *search.Engine

	closers []func() error
}

// New validates cfg and builds the application. Anything opened before a
// failure is closed again.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger}
	built := false
	defer func() {
		if !built {
			_ = a.closeAll()
		}
	}()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.Storage = store
	a.closers = append(a.closers, store.Close)

	a.Embedder, err = embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Embedder.Close)
	if d := a.Embedder.Dimensions(); d != cfg.Vector.Dimensions {
		return nil, models.NewConfigurationError("embedding.dimensions",
			"provider produces %d dimensions but the vector index expects %d", d, cfg.Vector.Dimensions)
	}

	a.Vectors, err = vector.New(ctx, cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	a.closers = append(a.closers, a.Vectors.Close)
	if mem, ok := a.Vectors.(*vector.MemoryIndex); ok && cfg.Storage.VectorIndexPath != "" {
		if loadErr := mem.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped", zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}
	logger.Info("vector index initialized",
		zap.String("type", a.Vectors.Type()),
		zap.Int("size", a.Vectors.Size()))

	if p := cfg.Storage.BleveIndexPath; p != "" {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, fmt.Errorf("failed to create keyword index directory: %w", err)
		}
	}
	keywords, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	a.Keywords = keywords
	a.closers = append(a.closers, keywords.Close)

	a.Graph, err = graph.New(ctx, cfg.Graph, logger)
	if err != nil {
		return nil, err
	}
	graphStore := a.Graph
	a.closers = append(a.closers, func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return graphStore.Close(closeCtx)
	})

	a.Registry = extract.NewRegistry()
	a.Indexer = indexer.NewIndexer(store, a.Embedder, a.Vectors, indexer.OptionsFromConfig(cfg),
		indexer.WithLogger(logger),
		indexer.WithKeywordIndex(keywords),
		indexer.WithGraph(a.Graph),
		indexer.WithRegistry(a.Registry),
	)
	a.Engine = search.NewEngine(store, a.Embedder, a.Vectors, a.Graph, search.OptionsFromConfig(cfg),
		search.WithLogger(logger),
		search.WithKeywordIndex(keywords),
	)
	built = true
	return a, nil
}

// SaveVectors persists the in-memory vector index when a path is configured.
// Remote backends persist on their own.
func (a *App) SaveVectors() error {
	mem, ok := a.Vectors.(*vector.MemoryIndex)
	if !ok || a.Config.Storage.VectorIndexPath == "" {
		return nil
	}
	return mem.Save(a.Config.Storage.VectorIndexPath)
}

// Close saves the vector index and releases every collaborator.
func (a *App) Close() error {
	if err := a.SaveVectors(); err != nil {
		a.Logger.Warn("vector index save failed", zap.String("path", a.Config.Storage.VectorIndexPath), zap.Error(err))
	}
	return a.closeAll()
}

// closeAll closes in reverse construction order and returns the first error.
func (a *App) closeAll() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
