package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperjump/tansaku/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_Documents(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:          "doc1",
		Source:      "notes.txt",
		Title:       "Title",
		Content:     "Content",
		ContentType: "text/plain",
		Metadata:    map[string]interface{}{"k": "v"},
	}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if doc.Status != models.StatusPending {
		t.Errorf("default status = %s", doc.Status)
	}

	got, err := store.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Title" || got.Content != "Content" || got.Source != "notes.txt" || got.Metadata["k"] != "v" {
		t.Errorf("got %+v", got)
	}

	if err := store.UpdateDocumentStatus(ctx, "doc1", models.StatusPartial); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetDocument(ctx, "doc1")
	if got.Status != models.StatusPartial {
		t.Errorf("status = %s", got.Status)
	}
	if err := store.UpdateDocumentStatus(ctx, "nope", models.StatusFailed); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("update unknown: %v", err)
	}

	list, err := store.ListDocuments(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 doc, got %d", len(list))
	}

	if err := store.DeleteDocument(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetDocument(ctx, "doc1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteDocument(ctx, "doc1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestSQLiteStorage_Chunks(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_ = store.CreateDocument(ctx, &models.Document{ID: "d1", Content: "C"})

	for i := 0; i < 3; i++ {
		c := &models.Chunk{
			ID: fmt.Sprintf("d1_c%d", i), DocumentID: "d1", ChunkIndex: i,
			StartPos: i * 10, EndPos: i*10 + 12, Text: fmt.Sprintf("chunk%d", i), Size: 12,
		}
		if err := store.PutChunk(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	// Upsert by id.
	if err := store.PutChunk(ctx, &models.Chunk{ID: "d1_c1", DocumentID: "d1", ChunkIndex: 1, StartPos: 10, EndPos: 22, Text: "replaced", Size: 12}); err != nil {
		t.Fatal(err)
	}

	list, err := store.GetChunksByDocumentID(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(list))
	}
	for i, c := range list {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
	}

	got, err := store.BatchGetChunks(ctx, []string{"d1_c1", "missing", "d1_c2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got["d1_c1"].Text != "replaced" || got["d1_c2"].StartPos != 20 || got["d1_c2"].Size != 12 {
		t.Errorf("got %+v %+v", got["d1_c1"], got["d1_c2"])
	}
	if _, ok := got["missing"]; ok {
		t.Error("missing id must be absent")
	}

	empty, err := store.BatchGetChunks(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("empty batch: %v %v", empty, err)
	}

	if err := store.DeleteChunksByDocumentID(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	list, _ = store.GetChunksByDocumentID(ctx, "d1")
	if len(list) != 0 {
		t.Errorf("expected 0 chunks after delete, got %d", len(list))
	}
}

func TestSQLiteStorage_BatchGetChunksLarge(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	_ = store.CreateDocument(ctx, &models.Document{ID: "d", Content: "C"})

	ids := make([]string, 0, maxBatchIDs+20)
	for i := 0; i < maxBatchIDs+20; i++ {
		id := fmt.Sprintf("c%04d", i)
		ids = append(ids, id)
		_ = store.PutChunk(ctx, &models.Chunk{ID: id, DocumentID: "d", ChunkIndex: i, Text: id, Size: len(id)})
	}
	got, err := store.BatchGetChunks(ctx, ids)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(ids) {
		t.Errorf("expected %d chunks, got %d", len(ids), len(got))
	}
}

func TestSQLiteStorage_DeleteDocumentCascades(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	_ = store.CreateDocument(ctx, &models.Document{ID: "d", Content: "C"})
	_ = store.PutChunk(ctx, &models.Chunk{ID: "c", DocumentID: "d", Text: "t", Size: 1})

	if err := store.DeleteDocument(ctx, "d"); err != nil {
		t.Fatal(err)
	}
	n, _ := store.CountChunks(ctx)
	if n != 0 {
		t.Errorf("expected chunks removed with document, got %d", n)
	}
}

func TestSQLiteStorage_Counts(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	n, err := store.CountDocuments(ctx)
	if err != nil || n != 0 {
		t.Errorf("CountDocuments: %v, %d", err, n)
	}
	_ = store.CreateDocument(ctx, &models.Document{ID: "x", Content: "c"})
	_ = store.PutChunk(ctx, &models.Chunk{ID: "x0", DocumentID: "x", Text: "c", Size: 1})
	n, _ = store.CountDocuments(ctx)
	if n != 1 {
		t.Errorf("expected 1 document, got %d", n)
	}
	n, _ = store.CountChunks(ctx)
	if n != 1 {
		t.Errorf("expected 1 chunk, got %d", n)
	}
}
