package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/models"
)

// testConfig returns a valid config with every local path under a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimensions = 16
	cfg.Storage.DatabasePath = filepath.Join(dir, "db", "chunks.db")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "indices", "bleve")
	cfg.Storage.VectorIndexPath = filepath.Join(dir, "indices", "vectors.bin")
	config.ApplyDefaults(cfg)
	return cfg
}

func TestNew_ingestAndSearch(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	report, err := a.Indexer.Ingest(ctx, &models.DocumentInput{ID: "doc-1", Content: "Tansaku resolves chunks through SQLite."}, 1000, 200)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, report.Status)

	res, err := a.Engine.Search(ctx, &models.SearchQuery{Query: "Tansaku resolves chunks through SQLite."})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Matches, 1)
	assert.Contains(t, res.Chunks, res.Matches[0].ID)

	st, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Documents)
	assert.Equal(t, int64(1), st.Chunks)
	assert.Equal(t, 1, st.VectorIndexSize)
	assert.Equal(t, uint64(1), st.KeywordDocs)
	assert.False(t, st.GraphEnabled)
	assert.Equal(t, "memory", st.Config.VectorBackend)
	assert.Equal(t, 16, st.Config.EmbeddingDimensions)
	require.NotNil(t, st.DiskUsageBytes)
	assert.Greater(t, *st.DiskUsageBytes, int64(0))
}

func TestClose_persistsVectors(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	_, err = a.Indexer.Ingest(ctx, &models.DocumentInput{ID: "doc-1", Content: "persist me"}, 1000, 200)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = os.Stat(cfg.Storage.VectorIndexPath)
	require.NoError(t, err)

	b, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, 1, b.Vectors.Size())
}

func TestNew_rejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"overlap too large", func(c *config.Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }, "chunk_overlap"},
		{"dimension mismatch", func(c *config.Config) { c.Vector.Dimensions = 8 }, "vector.dimensions"},
		{"unknown graph backend", func(c *config.Config) { c.Graph.Backend = "arango" }, "graph.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			a, err := New(context.Background(), cfg, nil)
			assert.Nil(t, a)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrConfiguration)
			var ce *models.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}
