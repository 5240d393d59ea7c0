package search

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/tansaku/internal/embedding"
	"github.com/hyperjump/tansaku/internal/graph"
	"github.com/hyperjump/tansaku/internal/indexer"
	"github.com/hyperjump/tansaku/internal/keyword"
	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/internal/storage"
	"github.com/hyperjump/tansaku/internal/vector"
)

const testDims = 8

type errEmbedder struct {
	*embedding.MockEmbedder
	err error
}

func (e *errEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, e.err }

// stubVector returns fixed matches, an error, or blocks until the context ends.
type stubVector struct {
	*vector.MemoryIndex
	matches []*models.VectorMatch
	err     error
	block   bool
	calls   int
}

func (v *stubVector) Query(ctx context.Context, _ []float32, _ vector.QueryOptions) ([]*models.VectorMatch, error) {
	v.calls++
	if v.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return v.matches, v.err
}

// recordingStore records BatchGetChunks ids and can fail them.
type recordingStore struct {
	*storage.SQLiteStorage
	ids [][]string
	err error
}

func (s *recordingStore) BatchGetChunks(ctx context.Context, ids []string) (map[string]*models.Chunk, error) {
	s.ids = append(s.ids, ids)
	if s.err != nil {
		return nil, s.err
	}
	return s.SQLiteStorage.BatchGetChunks(ctx, ids)
}

type stubGraph struct {
	graph.NopStore
	records []graph.Record
	err     error
	params  []map[string]any
}

func (g *stubGraph) Enabled() bool { return true }

func (g *stubGraph) Run(_ context.Context, template string, params map[string]any, mode graph.Mode) ([]graph.Record, error) {
	if template == graph.RelatedToChunks && mode == graph.ModeRead {
		g.params = append(g.params, params)
	}
	return g.records, g.err
}

type env struct {
	store    *recordingStore
	vectors  *vector.MemoryIndex
	keywords *keyword.BleveIndex
	embedder *embedding.MockEmbedder
	idx      *indexer.Indexer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	sqlite, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	vecIndex, err := vector.NewMemoryIndex(testDims)
	require.NoError(t, err)
	kwIndex, err := keyword.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kwIndex.Close() })
	emb := embedding.NewMockEmbedder(testDims)

	return &env{
		store:    &recordingStore{SQLiteStorage: sqlite},
		vectors:  vecIndex,
		keywords: kwIndex,
		embedder: emb,
		idx:      indexer.NewIndexer(sqlite, emb, vecIndex, indexer.Options{}, indexer.WithKeywordIndex(kwIndex)),
	}
}

func (e *env) engine(opts Options, emb embedding.Embedder, vec vector.VectorIndex, g graph.Store) *Engine {
	if emb == nil {
		emb = e.embedder
	}
	if vec == nil {
		vec = e.vectors
	}
	return NewEngine(e.store, emb, vec, g, opts, WithKeywordIndex(e.keywords))
}

func (e *env) ingest(t *testing.T, id, content string, size, overlap int) *models.IngestReport {
	t.Helper()
	report, err := e.idx.Ingest(context.Background(), &models.DocumentInput{ID: id, Content: content}, size, overlap)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, report.Status)
	return report
}

func stageStatus(t *testing.T, r *models.RetrievalResult, stage models.Stage) models.StageStatus {
	t.Helper()
	o, ok := r.Outcome(stage)
	require.True(t, ok, "no outcome for %s", stage)
	return o.Status
}

func TestSearch_FindsIngestedChunk(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	text := "Retrieval pipelines embed the query first. " +
		"Vector search then ranks candidate chunks by cosine similarity. " +
		"Chunk bodies come from the structured store."
	e.ingest(t, "doc-1", text, 60, 10)
	chunks, err := e.store.GetChunksByDocumentID(ctx, "doc-1")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	target := chunks[1]

	res, err := e.engine(Options{}, nil, nil, nil).Search(ctx, &models.SearchQuery{Query: target.Text, Limit: 3})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Empty(t, res.FailedStage)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, target.ID, res.Matches[0].ID)
	assert.InDelta(t, 1.0, res.Matches[0].Score, 1e-5)
	assert.Equal(t, "doc-1", res.Matches[0].Metadata["document_id"])
	assert.Equal(t, len(res.Matches), res.TotalResults)
	for _, m := range res.Matches {
		require.Contains(t, res.Chunks, m.ID)
	}
	assert.Equal(t, target.Text, res.Chunks[target.ID].Text)
	assert.Empty(t, res.Relationships)

	assert.Equal(t, models.StageOK, stageStatus(t, res, models.StageEmbedding))
	assert.Equal(t, models.StageOK, stageStatus(t, res, models.StageVectorSearch))
	assert.Equal(t, models.StageOK, stageStatus(t, res, models.StageResolve))
	assert.Equal(t, models.StageSkipped, stageStatus(t, res, models.StageExpand))
}

func TestSearch_ExpandReturnsDocumentContainment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	report := e.ingest(t, "doc-1", "Graph expansion links chunks back to their document.", 1000, 200)
	require.Len(t, report.PersistedChunkIDs, 1)
	chunkID := report.PersistedChunkIDs[0]
	g := &stubGraph{records: []graph.Record{{
		"source_id": chunkID,
		"type":      "CONTAINS",
		"target_id": "doc-1",
		"labels":    []any{"Document"},
	}}}

	res, err := e.engine(Options{}, nil, nil, g).Search(ctx, &models.SearchQuery{Query: "Graph expansion links chunks back to their document."})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, models.StageOK, stageStatus(t, res, models.StageExpand))
	require.Len(t, g.params, 1)
	assert.Equal(t, []string{chunkID}, g.params[0]["chunk_ids"])
	require.Len(t, res.Relationships, 1)
	rel := res.Relationships[0]
	assert.Equal(t, chunkID, rel.SourceID)
	assert.Equal(t, "CONTAINS", rel.Type)
	assert.Equal(t, "doc-1", rel.TargetID)
	assert.Equal(t, []string{"Document"}, rel.TargetLabels)
}

func TestSearch_InvalidQuery(t *testing.T) {
	e := newEnv(t)
	res, err := e.engine(Options{}, nil, nil, nil).Search(context.Background(), &models.SearchQuery{Query: "  "})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestSearch_LimitDefaultsAndCap(t *testing.T) {
	e := newEnv(t)
	e.ingest(t, "doc-1", strings.Repeat("alpha beta gamma delta. ", 40), 50, 10)
	eng := e.engine(Options{DefaultLimit: 2, MaxLimit: 4}, nil, nil, nil)

	res, err := eng.Search(context.Background(), &models.SearchQuery{Query: "alpha"})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)

	res, err = eng.Search(context.Background(), &models.SearchQuery{Query: "alpha", Limit: 50})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 4)
}

func TestSearch_EmbeddingFailureAborts(t *testing.T) {
	e := newEnv(t)
	vec := &stubVector{MemoryIndex: e.vectors}
	emb := &errEmbedder{MockEmbedder: e.embedder, err: fmt.Errorf("dial: %w", models.ErrProviderUnavailable)}

	res, err := e.engine(Options{}, emb, vec, nil).Search(context.Background(), &models.SearchQuery{Query: "q"})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, models.StageEmbedding, res.FailedStage)
	assert.Contains(t, res.Error, "embedding provider unavailable")
	assert.Empty(t, res.Matches)
	assert.Empty(t, res.Chunks)
	assert.Empty(t, res.Relationships)
	assert.Zero(t, vec.calls)
	assert.Empty(t, e.store.ids)
	assert.Len(t, res.Stages, 1)
}

func TestSearch_VectorFailureAborts(t *testing.T) {
	e := newEnv(t)
	vec := &stubVector{MemoryIndex: e.vectors, err: fmt.Errorf("redis: %w", models.ErrIndexUnavailable)}
	g := &stubGraph{}

	res, err := e.engine(Options{}, nil, vec, g).Search(context.Background(), &models.SearchQuery{Query: "q"})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, models.StageVectorSearch, res.FailedStage)
	assert.Empty(t, res.Matches)
	assert.Zero(t, res.TotalResults)
	assert.Empty(t, e.store.ids)
	assert.Empty(t, g.params)
	assert.Equal(t, models.StageOK, stageStatus(t, res, models.StageEmbedding))
	assert.Equal(t, models.StageFailed, stageStatus(t, res, models.StageVectorSearch))
}

func TestSearch_ResolveFailureDegrades(t *testing.T) {
	e := newEnv(t)
	matches := []*models.VectorMatch{{ID: "c1", Score: 0.9}, {ID: "c2", Score: 0.8}}
	vec := &stubVector{MemoryIndex: e.vectors, matches: matches}
	e.store.err = fmt.Errorf("locked: %w", models.ErrStoreUnavailable)
	g := &stubGraph{records: []graph.Record{{"source_id": "c1", "type": "MENTIONS", "target_id": "e1"}}}

	res, err := e.engine(Options{}, nil, vec, g).Search(context.Background(), &models.SearchQuery{Query: "q"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, models.StageResolve, res.FailedStage)
	assert.Equal(t, []models.Stage{models.StageResolve}, res.DegradedStages)
	assert.Equal(t, matches, res.Matches)
	assert.Empty(t, res.Chunks)
	assert.Equal(t, 2, res.TotalResults)
	// expand still runs on the candidate ids
	require.Len(t, res.Relationships, 1)
	assert.Equal(t, models.StageOK, stageStatus(t, res, models.StageExpand))
}

func TestSearch_ExpandFailureDegrades(t *testing.T) {
	e := newEnv(t)
	e.ingest(t, "doc-1", "Graph expansion adds relationships around candidate chunks.", 1000, 200)
	g := &stubGraph{err: fmt.Errorf("bolt: %w", models.ErrGraphUnavailable)}

	res, err := e.engine(Options{}, nil, nil, g).Search(context.Background(), &models.SearchQuery{Query: "graph"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, models.StageExpand, res.FailedStage)
	assert.Len(t, res.Matches, 1)
	assert.Len(t, res.Chunks, 1)
	assert.Empty(t, res.Relationships)
	o, _ := res.Outcome(models.StageExpand)
	assert.Equal(t, models.StageDegraded, o.Status)
	assert.Contains(t, o.Error, "graph store unavailable")
	assert.Empty(t, res.Error)
}

func TestSearch_NoMatchesSkipsLaterStages(t *testing.T) {
	e := newEnv(t)
	g := &stubGraph{}

	res, err := e.engine(Options{}, nil, nil, g).Search(context.Background(), &models.SearchQuery{Query: "nothing indexed"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Empty(t, res.FailedStage)
	assert.Empty(t, res.Matches)
	assert.Equal(t, models.StageSkipped, stageStatus(t, res, models.StageResolve))
	assert.Equal(t, models.StageSkipped, stageStatus(t, res, models.StageExpand))
	assert.Empty(t, e.store.ids)
	assert.Empty(t, g.params)
}

func TestSearch_DedupesIDsAndKeepsMatches(t *testing.T) {
	e := newEnv(t)
	matches := []*models.VectorMatch{{ID: "b", Score: 0.9}, {ID: "a", Score: 0.8}, {ID: "b", Score: 0.7}}
	vec := &stubVector{MemoryIndex: e.vectors, matches: matches}
	g := &stubGraph{records: []graph.Record{
		{"source_id": "a", "type": "CITES", "target_id": "x", "labels": []any{"Paper"}, "properties": map[string]any{"weight": 0.5}},
		{"source_id": "b", "type": "CITES"},
		{"source_id": "b", "type": "CITES", "target_id": "y"},
		{"source_id": "b", "type": "CITES", "target_id": "z"},
	}}

	res, err := e.engine(Options{MaxRelationships: 2}, nil, vec, g).Search(context.Background(), &models.SearchQuery{Query: "q", Limit: 3})
	require.NoError(t, err)

	assert.Equal(t, matches, res.Matches)
	assert.Equal(t, 3, res.TotalResults)
	require.Len(t, e.store.ids, 1)
	assert.Equal(t, []string{"b", "a"}, e.store.ids[0])
	require.Len(t, g.params, 1)
	assert.Equal(t, []string{"b", "a"}, g.params[0]["chunk_ids"])
	assert.Equal(t, 2, g.params[0]["limit"])

	// the record without a target is dropped and the cap applies
	require.Len(t, res.Relationships, 2)
	assert.Equal(t, models.Relationship{
		SourceID:     "a",
		Type:         "CITES",
		TargetID:     "x",
		TargetLabels: []string{"Paper"},
		Properties:   map[string]interface{}{"weight": 0.5},
	}, *res.Relationships[0])
	assert.Equal(t, "y", res.Relationships[1].TargetID)
	// unknown ids are simply absent from the chunks map
	assert.Empty(t, res.Chunks)
	assert.Equal(t, models.StageOK, stageStatus(t, res, models.StageResolve))
}

func TestSearch_StageTimeout(t *testing.T) {
	e := newEnv(t)
	vec := &stubVector{MemoryIndex: e.vectors, block: true}

	start := time.Now()
	res, err := e.engine(Options{VectorTimeout: 20 * time.Millisecond}, nil, vec, nil).
		Search(context.Background(), &models.SearchQuery{Query: "q"})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, models.StageVectorSearch, res.FailedStage)
	assert.Contains(t, res.Error, models.ErrTimeout.Error())
	assert.Equal(t, 1, vec.calls)
}

func TestClassify(t *testing.T) {
	err := classify(models.StageResolve, time.Second, fmt.Errorf("query: %w", context.DeadlineExceeded))
	assert.True(t, errors.Is(err, models.ErrTimeout))
	assert.Contains(t, err.Error(), "resolve")

	err = classify(models.StageResolve, time.Second, models.ErrStoreUnavailable)
	assert.True(t, errors.Is(err, models.ErrStoreUnavailable))
	assert.False(t, errors.Is(err, models.ErrTimeout))
}

func TestKeywordSearch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.ingest(t, "doc-1", "The watcher ingests files dropped into the inbox directory.", 1000, 200)
	e.ingest(t, "doc-2", "Neo4j stores relationships between chunks and entities.", 1000, 200)
	eng := e.engine(Options{}, nil, nil, nil)

	hits, err := eng.KeywordSearch(ctx, &KeywordQuery{Query: "inbox"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc-1", hits[0].DocumentID)
	assert.Contains(t, hits[0].Snippet, "inbox")

	hits, err = eng.KeywordSearch(ctx, &KeywordQuery{Query: "relationshps", Fuzzy: true})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc-2", hits[0].DocumentID)

	hits, err = eng.KeywordSearch(ctx, &KeywordQuery{Query: "inbox", DocumentID: "doc-2"})
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = eng.KeywordSearch(ctx, &KeywordQuery{Query: ""})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	bare := NewEngine(e.store, e.embedder, e.vectors, nil, Options{})
	_, err = bare.KeywordSearch(ctx, &KeywordQuery{Query: "inbox"})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}
