package config

import "time"

// Default values applied by ApplyDefaults.
const (
	DefaultChunkSize         = 1000
	DefaultChunkOverlap      = 200
	DefaultBoundaryThreshold = 0.5
	DefaultNamespace         = "default"
	DefaultMaxRelationships  = 10
	DefaultIngestWorkers     = 4
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/tansaku/data/db/chunks.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/tansaku/data/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/tansaku/data/indices/vectors.bin"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/tansaku/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-ada-002"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = defaultDimensions(cfg.Embedding)
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Burst == 0 {
		cfg.Embedding.Burst = 1
	}

	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "memory"
	}
	if cfg.Vector.Dimensions == 0 {
		cfg.Vector.Dimensions = cfg.Embedding.Dimensions
	}
	if cfg.Vector.Namespace == "" {
		cfg.Vector.Namespace = DefaultNamespace
	}
	if cfg.Vector.Redis.Addr == "" {
		cfg.Vector.Redis.Addr = "localhost:6379"
	}
	if cfg.Vector.Redis.PoolSize == 0 {
		cfg.Vector.Redis.PoolSize = 10
	}
	if cfg.Vector.Redis.IndexName == "" {
		cfg.Vector.Redis.IndexName = "tansaku-chunks"
	}
	if cfg.Vector.Redis.KeyPrefix == "" {
		cfg.Vector.Redis.KeyPrefix = "chunk:"
	}

	if cfg.Graph.Backend == "" {
		cfg.Graph.Backend = "none"
	}
	if cfg.Graph.URI == "" {
		cfg.Graph.URI = "neo4j://localhost:7687"
	}
	if cfg.Graph.Username == "" {
		cfg.Graph.Username = "neo4j"
	}
	if cfg.Graph.MaxRelationships == 0 {
		cfg.Graph.MaxRelationships = DefaultMaxRelationships
	}

	// An explicit chunk_size without chunk_overlap means no overlap.
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = DefaultChunkSize
		if cfg.Chunking.ChunkOverlap == 0 {
			cfg.Chunking.ChunkOverlap = DefaultChunkOverlap
		}
	}
	if cfg.Chunking.BoundaryThreshold == 0 {
		cfg.Chunking.BoundaryThreshold = DefaultBoundaryThreshold
	}

	if cfg.Retrieval.DefaultLimit == 0 {
		cfg.Retrieval.DefaultLimit = 5
	}
	if cfg.Retrieval.MaxLimit == 0 {
		cfg.Retrieval.MaxLimit = 100
	}
	if cfg.Retrieval.EmbedTimeout == 0 {
		cfg.Retrieval.EmbedTimeout = 10 * time.Second
	}
	if cfg.Retrieval.VectorTimeout == 0 {
		cfg.Retrieval.VectorTimeout = 10 * time.Second
	}
	if cfg.Retrieval.ResolveTimeout == 0 {
		cfg.Retrieval.ResolveTimeout = 5 * time.Second
	}
	if cfg.Retrieval.ExpandTimeout == 0 {
		cfg.Retrieval.ExpandTimeout = 5 * time.Second
	}
	if cfg.Retrieval.WriteTimeout == 0 {
		cfg.Retrieval.WriteTimeout = 10 * time.Second
	}
	if cfg.Retrieval.IngestWorkers == 0 {
		cfg.Retrieval.IngestWorkers = DefaultIngestWorkers
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

// modelDimensions lists output sizes of known embedding models.
var modelDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

func defaultDimensions(e EmbeddingConfig) int {
	if e.Provider == "openai" {
		if d, ok := modelDimensions[e.Model]; ok {
			return d
		}
		if e.Model == "" {
			return modelDimensions["text-embedding-ada-002"]
		}
	}
	return 384
}
