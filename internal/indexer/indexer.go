// Package indexer chunks documents and writes them to the vector index, the
// structured store and the optional keyword and graph enrichments.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/embedding"
	"github.com/hyperjump/tansaku/internal/extract"
	"github.com/hyperjump/tansaku/internal/fileid"
	"github.com/hyperjump/tansaku/internal/graph"
	"github.com/hyperjump/tansaku/internal/keyword"
	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/internal/storage"
	"github.com/hyperjump/tansaku/internal/vector"
)

// Per-chunk steps reported in ChunkFailure.Stage.
const (
	StepEmbed        = "embedding"
	StepVectorUpsert = "vector_upsert"
	StepStoreWrite   = "store_write"
)

const (
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
)

// Options are the ingest settings taken from config.
type Options struct {
	ChunkSize         int
	ChunkOverlap      int
	BoundaryThreshold float64
	Workers           int
	Namespace         string
	EmbedTimeout      time.Duration
	WriteTimeout      time.Duration
}

// OptionsFromConfig collects the ingest settings from a loaded config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ChunkSize:         cfg.Chunking.ChunkSize,
		ChunkOverlap:      cfg.Chunking.ChunkOverlap,
		BoundaryThreshold: cfg.Chunking.BoundaryThreshold,
		Workers:           cfg.Retrieval.IngestWorkers,
		Namespace:         cfg.Vector.Namespace,
		EmbedTimeout:      cfg.Retrieval.EmbedTimeout,
		WriteTimeout:      cfg.Retrieval.WriteTimeout,
	}
}

// Indexer ingests documents into the vector index and structured store.
type Indexer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	graph        graph.Store
	registry     *extract.Registry
	opts         Options
	logger       *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithKeywordIndex indexes persisted chunk bodies for keyword lookup.
func WithKeywordIndex(k keyword.KeywordIndex) IndexerOption {
	return func(idx *Indexer) { idx.keywordIndex = k }
}

// WithGraph links documents to their chunks in the graph store.
func WithGraph(g graph.Store) IndexerOption {
	return func(idx *Indexer) { idx.graph = g }
}

// WithRegistry sets the extractor registry used by IngestFile.
func WithRegistry(r *extract.Registry) IndexerOption {
	return func(idx *Indexer) { idx.registry = r }
}

// NewIndexer creates an indexer. Zero-valued options fall back to the config defaults.
func NewIndexer(
	store storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	opts Options,
	options ...IndexerOption,
) *Indexer {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = config.DefaultChunkSize
		opts.ChunkOverlap = config.DefaultChunkOverlap
	}
	if opts.BoundaryThreshold == 0 {
		opts.BoundaryThreshold = config.DefaultBoundaryThreshold
	}
	if opts.Workers <= 0 {
		opts.Workers = config.DefaultIngestWorkers
	}
	idx := &Indexer{
		storage:     store,
		embedder:    embedder,
		vectorIndex: vectorIndex,
		graph:       graph.NopStore{},
		registry:    extract.NewRegistry(),
		opts:        opts,
		logger:      zap.NewNop(),
	}
	for _, o := range options {
		o(idx)
	}
	return idx
}

// Options returns the effective ingest settings.
func (idx *Indexer) Options() Options { return idx.opts }

// Registry returns the extractor registry used for files.
func (idx *Indexer) Registry() *extract.Registry { return idx.registry }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrTimeout, err).Error()
	}
	return err.Error()
}

// Ingest chunks input, then embeds and persists every chunk with at most
// Options.Workers chunks in flight. A chunk failing any step is reported in
// FailedChunks and the remaining chunks continue. The returned error is
// non-nil only for a *models.ConfigurationError or empty text.
func (idx *Indexer) Ingest(ctx context.Context, input *models.DocumentInput, chunkSize, chunkOverlap int) (*models.IngestReport, error) {
	chunker, err := NewChunker(chunkSize, chunkOverlap, WithBoundaryThreshold(idx.opts.BoundaryThreshold))
	if err != nil {
		return nil, err
	}
	if input == nil || strings.TrimSpace(input.Content) == "" {
		return nil, fmt.Errorf("document text is empty: %w", models.ErrInvalidInput)
	}

	docID := input.ID
	if docID == "" {
		docID = uuid.New().String()
	}
	log := idx.logger.With(zap.String("document_id", docID))

	chunks := chunker.Split(docID, input.Content)
	report := &models.IngestReport{
		DocumentID:        docID,
		TotalChunks:       len(chunks),
		PersistedChunkIDs: []string{},
		FailedChunks:      []models.ChunkFailure{},
	}

	// Re-ingesting an id replaces the previous version.
	if _, err := idx.storage.GetDocument(ctx, docID); err == nil {
		if err := idx.DeleteDocument(ctx, docID); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("remove previous version: %v", err))
		}
	}

	doc := &models.Document{
		ID:          docID,
		Source:      input.Source,
		Title:       input.Title,
		Content:     input.Content,
		ContentType: input.ContentType,
		Status:      models.StatusProcessing,
		Metadata:    input.Metadata,
	}
	if err := idx.storage.CreateDocument(ctx, doc); err != nil {
		log.Warn("document record not stored", zap.Error(err))
		for _, c := range chunks {
			report.FailedChunks = append(report.FailedChunks, models.ChunkFailure{
				Index: c.ChunkIndex, ChunkID: c.ID, Stage: StepStoreWrite,
				Reason: "create document: " + failureReason(err),
			})
		}
		report.Status = models.StatusFailed
		return report, nil
	}
	log.Debug("ingest started", zap.Int("chunks", len(chunks)), zap.Int("workers", idx.opts.Workers))

	failures := make([]*models.ChunkFailure, len(chunks))
	var g errgroup.Group
	g.SetLimit(idx.opts.Workers)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			failures[i] = idx.ingestChunk(ctx, doc, c)
			return nil
		})
	}
	_ = g.Wait()

	persisted := make([]*models.Chunk, 0, len(chunks))
	for i, c := range chunks {
		if f := failures[i]; f != nil {
			log.Warn("chunk not persisted", zap.Int("chunk_index", f.Index), zap.String("step", f.Stage), zap.String("reason", f.Reason))
			report.FailedChunks = append(report.FailedChunks, *f)
			continue
		}
		report.PersistedChunkIDs = append(report.PersistedChunkIDs, c.ID)
		persisted = append(persisted, c)
	}

	report.Warnings = append(report.Warnings, idx.enrich(ctx, doc, persisted)...)

	report.Status = report.FinalStatus()
	if err := idx.storage.UpdateDocumentStatus(ctx, docID, report.Status); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("update document status: %v", err))
	}
	log.Info("ingest finished",
		zap.String("status", string(report.Status)),
		zap.Int("persisted", len(report.PersistedChunkIDs)),
		zap.Int("failed", len(report.FailedChunks)))
	return report, nil
}

// ingestChunk runs embed, vector upsert and store write for one chunk and
// returns the first failing step, or nil.
func (idx *Indexer) ingestChunk(ctx context.Context, doc *models.Document, c *models.Chunk) *models.ChunkFailure {
	fail := func(step string, err error) *models.ChunkFailure {
		return &models.ChunkFailure{Index: c.ChunkIndex, ChunkID: c.ID, Stage: step, Reason: failureReason(err)}
	}

	embedCtx, cancel := withTimeout(ctx, idx.opts.EmbedTimeout)
	vec, err := idx.embedder.Embed(embedCtx, c.Text)
	cancel()
	if err != nil {
		return fail(StepEmbed, err)
	}
	c.Embedding = vec

	writeCtx, cancel := withTimeout(ctx, idx.opts.WriteTimeout)
	_, err = idx.vectorIndex.Upsert(writeCtx, []vector.Record{{
		ID:     c.ID,
		Values: vec,
		Metadata: map[string]string{
			"document_id": c.DocumentID,
			"chunk_index": strconv.Itoa(c.ChunkIndex),
			"text":        c.Text,
			"source":      doc.Source,
		},
		Namespace: idx.opts.Namespace,
	}})
	cancel()
	if err != nil {
		return fail(StepVectorUpsert, err)
	}

	writeCtx, cancel = withTimeout(ctx, idx.opts.WriteTimeout)
	err = idx.storage.PutChunk(writeCtx, c)
	cancel()
	if err != nil {
		// A vector without a stored body would still match queries.
		delCtx, cancel := withTimeout(ctx, idx.opts.WriteTimeout)
		if derr := idx.vectorIndex.Delete(delCtx, idx.opts.Namespace, []string{c.ID}); derr != nil {
			idx.logger.Warn("orphan vector not removed", zap.String("chunk_id", c.ID), zap.Error(derr))
		}
		cancel()
		return fail(StepStoreWrite, err)
	}
	return nil
}

// enrich adds persisted chunks to the keyword index and links them in the graph.
// Failures become warnings.
func (idx *Indexer) enrich(ctx context.Context, doc *models.Document, chunks []*models.Chunk) []string {
	if len(chunks) == 0 {
		return nil
	}
	var warnings []string
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.IndexChunks(ctx, chunks); err != nil {
			warnings = append(warnings, fmt.Sprintf("keyword index: %v", err))
		}
	}
	if idx.graph != nil && idx.graph.Enabled() {
		links := make([]map[string]any, len(chunks))
		for i, c := range chunks {
			links[i] = map[string]any{"id": c.ID, "chunk_index": c.ChunkIndex}
		}
		gctx, cancel := withTimeout(ctx, idx.opts.WriteTimeout)
		_, err := idx.graph.Run(gctx, graph.LinkDocumentChunks, map[string]any{
			"document_id": doc.ID,
			"source":      doc.Source,
			"chunks":      links,
		}, graph.ModeWrite)
		cancel()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("graph link: %v", err))
		}
	}
	return warnings
}

// IngestFile extracts the text of path and ingests it under the file's stable id
// with the configured chunk sizes. An unchanged file (same mtime and size) is skipped.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (*models.IngestReport, error) {
	docID, absPath, err := fileid.FromPath(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if !idx.registry.Supports(ext) {
		return nil, fmt.Errorf("unsupported file type %q: %w", ext, models.ErrInvalidInput)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s: %w", absPath, models.ErrInvalidInput)
	}
	if doc, ok := idx.unchanged(ctx, docID, absPath, info); ok {
		idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
		return &models.IngestReport{DocumentID: docID, Status: doc.Status, Skipped: true,
			PersistedChunkIDs: []string{}, FailedChunks: []models.ChunkFailure{}}, nil
	}

	text, err := idx.registry.ExtractFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	input := &models.DocumentInput{
		ID:          docID,
		Source:      absPath,
		Title:       filepath.Base(absPath),
		Content:     Preprocess(text),
		ContentType: idx.registry.ContentType(ext),
		Metadata: map[string]interface{}{
			// Strings, since UnixNano exceeds float64 precision after a JSON round trip.
			metaKeySourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
			metaKeySourceSize:  strconv.FormatInt(info.Size(), 10),
		},
	}
	return idx.Ingest(ctx, input, idx.opts.ChunkSize, idx.opts.ChunkOverlap)
}

func (idx *Indexer) unchanged(ctx context.Context, docID, absPath string, info os.FileInfo) (*models.Document, bool) {
	doc, err := idx.storage.GetDocument(ctx, docID)
	if err != nil || doc.Source != absPath || doc.Status != models.StatusCompleted {
		return nil, false
	}
	mtime, _ := doc.Metadata[metaKeySourceMtime].(string)
	size, _ := doc.Metadata[metaKeySourceSize].(string)
	return doc, mtime == strconv.FormatInt(info.ModTime().UnixNano(), 10) &&
		size == strconv.FormatInt(info.Size(), 10)
}

// IngestDirectory walks dir and ingests every regular file the registry supports.
// Per-file errors are logged and counted; the walk continues.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, recursive bool) ([]*models.IngestReport, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var reports []*models.IngestReport
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !idx.registry.Supports(filepath.Ext(path)) {
			return nil
		}
		report, err := idx.IngestFile(ctx, path)
		if err != nil {
			idx.logger.Warn("file not ingested", zap.String("path", path), zap.Error(err))
			return nil
		}
		reports = append(reports, report)
		return nil
	})
	return reports, err
}

// DeleteDocument removes a document's vectors, keyword entries, graph nodes,
// chunks and record. Returns models.ErrNotFound for unknown ids.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	chunks, err := idx.storage.GetChunksByDocumentID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}
	chunkIDs := make([]string, len(chunks))
	for i, ch := range chunks {
		chunkIDs[i] = ch.ID
	}
	if err := idx.vectorIndex.Delete(ctx, idx.opts.Namespace, chunkIDs); err != nil {
		return fmt.Errorf("failed to delete from vector index: %w", err)
	}
	if idx.keywordIndex != nil {
		if _, err := idx.keywordIndex.DeleteDocument(ctx, id); err != nil {
			return fmt.Errorf("failed to delete from keyword index: %w", err)
		}
	}
	if idx.graph != nil && idx.graph.Enabled() {
		if _, err := idx.graph.Run(ctx, graph.DeleteDocument, map[string]any{"document_id": id}, graph.ModeWrite); err != nil {
			idx.logger.Warn("graph nodes not removed", zap.String("document_id", id), zap.Error(err))
		}
	}
	if err := idx.storage.DeleteDocument(ctx, id); err != nil {
		return err
	}
	idx.logger.Debug("indexer document deleted", zap.String("id", id), zap.Int("chunks", len(chunkIDs)))
	return nil
}
