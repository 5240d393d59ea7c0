package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/tansaku/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
retrieval:
  embed_timeout: 3s
  ingest_workers: 8
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Retrieval.EmbedTimeout != 3*time.Second {
		t.Errorf("embed_timeout = %s", cfg.Retrieval.EmbedTimeout)
	}
	if cfg.Retrieval.IngestWorkers != 8 {
		t.Errorf("ingest_workers = %d", cfg.Retrieval.IngestWorkers)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/chunks.db"
watch:
  directories: ["./inbox"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "chunks.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Watch.Directories) != 1 || cfg.Watch.Directories[0] != filepath.Join(dir, "inbox") {
		t.Errorf("watch directories = %v", cfg.Watch.Directories)
	}
	if !cfg.Watch.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
}

func TestLoad_memoryDatabaseUntouched(t *testing.T) {
	path := writeConfig(t, "storage:\n  database_path: \":memory:\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DatabasePath != ":memory:" {
		t.Errorf("database_path = %s", cfg.Storage.DatabasePath)
	}
}

func TestLoad_dotEnvOverridesSecrets(t *testing.T) {
	_ = os.Unsetenv(EnvNeo4jPassword)
	t.Cleanup(func() { _ = os.Unsetenv(EnvNeo4jPassword) })

	path := writeConfig(t, "graph:\n  backend: neo4j\n  password: from-file\n")
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envPath, []byte(EnvNeo4jPassword+"=from-env\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Graph.Password)
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "")
	t.Setenv(EnvOpenAIKeyAlt, "sk-alt")
	t.Setenv(EnvRedisPassword, "redis-secret")
	cfg := &Config{}
	ApplyEnv(cfg)
	assert.Equal(t, "sk-alt", cfg.Embedding.APIKey)
	assert.Equal(t, "redis-secret", cfg.Vector.Redis.Password)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: %+v", cfg.Server)
	}
	if cfg.Chunking.ChunkSize != 1000 || cfg.Chunking.ChunkOverlap != 200 {
		t.Errorf("default chunking: %+v", cfg.Chunking)
	}
	if cfg.Chunking.BoundaryThreshold != 0.5 {
		t.Errorf("default threshold: %v", cfg.Chunking.BoundaryThreshold)
	}
	if cfg.Vector.Namespace != "default" {
		t.Errorf("default namespace: %s", cfg.Vector.Namespace)
	}
	if cfg.Vector.Dimensions != cfg.Embedding.Dimensions || cfg.Embedding.Dimensions != 384 {
		t.Errorf("dimensions: embedding %d, vector %d", cfg.Embedding.Dimensions, cfg.Vector.Dimensions)
	}
	if cfg.Graph.MaxRelationships != 10 {
		t.Errorf("max relationships: %d", cfg.Graph.MaxRelationships)
	}
	if cfg.Retrieval.IngestWorkers != 4 {
		t.Errorf("ingest workers: %d", cfg.Retrieval.IngestWorkers)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_explicitChunkSizeKeepsZeroOverlap(t *testing.T) {
	cfg := &Config{Chunking: ChunkingConfig{ChunkSize: 100}}
	ApplyDefaults(cfg)
	if cfg.Chunking.ChunkOverlap != 0 {
		t.Errorf("overlap = %d, want 0", cfg.Chunking.ChunkOverlap)
	}
}

func TestApplyDefaults_openAIDimensions(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-large"}}
	ApplyDefaults(cfg)
	if cfg.Embedding.Dimensions != 3072 || cfg.Vector.Dimensions != 3072 {
		t.Errorf("dimensions: embedding %d, vector %d", cfg.Embedding.Dimensions, cfg.Vector.Dimensions)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = -1 }, "chunk_size"},
		{"negative overlap", func(c *Config) { c.Chunking.ChunkOverlap = -1 }, "chunk_overlap"},
		{"overlap equals size", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }, "chunk_overlap"},
		{"threshold out of range", func(c *Config) { c.Chunking.BoundaryThreshold = 1.5 }, "chunking.boundary_threshold"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "magic" }, "embedding.provider"},
		{"openai without key", func(c *Config) { c.Embedding.Provider = "openai" }, "embedding.api_key"},
		{"dimension mismatch", func(c *Config) { c.Vector.Dimensions = 768 }, "vector.dimensions"},
		{"unknown vector backend", func(c *Config) { c.Vector.Backend = "faiss" }, "vector.backend"},
		{"unknown graph backend", func(c *Config) { c.Graph.Backend = "tinkerpop" }, "graph.backend"},
		{"no workers", func(c *Config) { c.Retrieval.IngestWorkers = -2 }, "retrieval.ingest_workers"},
		{"negative timeout", func(c *Config) { c.Retrieval.ExpandTimeout = -time.Second }, "retrieval.expand_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			ApplyDefaults(cfg)
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrConfiguration))
			var ce *models.ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Server.Port = 9191
	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, loaded.Server.Port)
	assert.Equal(t, cfg.Retrieval.ResolveTimeout, loaded.Retrieval.ResolveTimeout)
}
