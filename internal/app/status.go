package app

import (
	"context"

	"github.com/hyperjump/tansaku/internal/storage"
)

// ConfigSummary is the part of the configuration reported by status.
type ConfigSummary struct {
	EmbeddingProvider   string `json:"embedding_provider"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	VectorBackend       string `json:"vector_backend"`
	GraphBackend        string `json:"graph_backend"`
	ChunkSize           int    `json:"chunk_size"`
	ChunkOverlap        int    `json:"chunk_overlap"`
	IngestWorkers       int    `json:"ingest_workers"`
	DatabasePath        string `json:"database_path,omitempty"`
	BleveIndexPath      string `json:"bleve_index_path,omitempty"`
	VectorIndexPath     string `json:"vector_index_path,omitempty"`
}

// Status is the shape of GET /api/v1/status and `tansaku status`.
type Status struct {
	Documents       int64          `json:"documents"`
	Chunks          int64          `json:"chunks"`
	VectorIndexSize int            `json:"vector_index_size"`
	KeywordDocs     uint64         `json:"keyword_docs"`
	GraphEnabled    bool           `json:"graph_enabled"`
	DiskUsageBytes  *int64         `json:"disk_usage_bytes,omitempty"`
	Config          *ConfigSummary `json:"config,omitempty"`
}

// Status collects counts and configuration. Disk usage is omitted when it
// cannot be measured.
func (a *App) Status(ctx context.Context) (*Status, error) {
	docs, err := a.Storage.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := a.Storage.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	kwDocs, err := a.Keywords.DocCount()
	if err != nil {
		return nil, err
	}
	cfg := a.Config
	st := &Status{
		Documents:       docs,
		Chunks:          chunks,
		VectorIndexSize: a.Vectors.Size(),
		KeywordDocs:     kwDocs,
		GraphEnabled:    a.Graph.Enabled(),
		Config: &ConfigSummary{
			EmbeddingProvider:   cfg.Embedding.Provider,
			EmbeddingDimensions: a.Embedder.Dimensions(),
			VectorBackend:       a.Vectors.Type(),
			GraphBackend:        cfg.Graph.Backend,
			ChunkSize:           cfg.Chunking.ChunkSize,
			ChunkOverlap:        cfg.Chunking.ChunkOverlap,
			IngestWorkers:       cfg.Retrieval.IngestWorkers,
			DatabasePath:        cfg.Storage.DatabasePath,
			BleveIndexPath:      cfg.Storage.BleveIndexPath,
			VectorIndexPath:     cfg.Storage.VectorIndexPath,
		},
	}
	if n, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath, cfg.Storage.VectorIndexPath); err == nil {
		st.DiskUsageBytes = &n
	}
	return st, nil
}
