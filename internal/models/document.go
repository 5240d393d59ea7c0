// Package models defines core data structures for documents, chunks, and retrieval results.
package models

import "time"

// DocumentStatus is the processing state of an ingested document.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusPartial    DocumentStatus = "partial"
	StatusFailed     DocumentStatus = "failed"
)

// Document represents a stored source document. Everything except Status is
// fixed once the document is created.
type Document struct {
	ID          string                 `json:"id" db:"id"`
	Source      string                 `json:"source,omitempty" db:"source"`
	Title       string                 `json:"title,omitempty" db:"title"`
	Content     string                 `json:"content" db:"content"`
	ContentType string                 `json:"content_type,omitempty" db:"content_type"`
	Status      DocumentStatus         `json:"status" db:"status"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at" db:"updated_at"`
}

// Chunk is a retrievable unit cut from a document. StartPos and EndPos are
// code point offsets into the parent text, EndPos exclusive.
type Chunk struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	StartPos   int       `json:"start_pos" db:"start_pos"`
	EndPos     int       `json:"end_pos" db:"end_pos"`
	Text       string    `json:"text" db:"text"`
	Size       int       `json:"chunk_size" db:"chunk_size"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at,omitempty" db:"created_at"`
}

// DocumentInput is the input for ingesting a document.
type DocumentInput struct {
	ID          string                 `json:"id,omitempty"`
	Source      string                 `json:"source,omitempty"`
	Title       string                 `json:"title,omitempty"`
	Content     string                 `json:"content"`
	ContentType string                 `json:"content_type,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
