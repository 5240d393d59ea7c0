package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/indexer"
	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/internal/search"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	result, err := s.app.Engine.Search(r.Context(), &query)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleKeyword(w http.ResponseWriter, r *http.Request) {
	var query search.KeywordQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	hits, err := s.app.Engine.KeywordSearch(r.Context(), &query)
	if err != nil {
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": hits, "total": len(hits)})
}

type ingestRequest struct {
	models.DocumentInput
	ChunkSize    int `json:"chunk_size,omitempty"`
	ChunkOverlap int `json:"chunk_overlap,omitempty"`
}

// chunkSizes falls back to the configured sizes when the request leaves both unset.
func (s *Server) chunkSizes(size, overlap int) (int, int) {
	if size == 0 && overlap == 0 {
		return s.app.Config.Chunking.ChunkSize, s.app.Config.Chunking.ChunkOverlap
	}
	return size, overlap
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	size, overlap := s.chunkSizes(req.ChunkSize, req.ChunkOverlap)
	s.logger.Debug("ingest request", zap.String("id", req.ID), zap.Int("chunk_size", size), zap.Int("chunk_overlap", overlap))
	s.ingest(w, r, &req.DocumentInput, size, overlap)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request, input *models.DocumentInput, size, overlap int) {
	report, err := s.app.Indexer.Ingest(r.Context(), input, size, overlap)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	code := http.StatusCreated
	if report.Status != models.StatusCompleted {
		code = http.StatusMultiStatus
	}
	s.respondJSON(w, code, report)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.app.Config.Server.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if !s.app.Registry.Supports(ext) {
		s.respondError(w, http.StatusUnsupportedMediaType, "unsupported file type "+ext)
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	text, err := s.app.Registry.ExtractBytes(content, ext)
	if err != nil {
		s.logger.Warn("upload extraction failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	size, _ := strconv.Atoi(r.FormValue("chunk_size"))
	overlap, _ := strconv.Atoi(r.FormValue("chunk_overlap"))
	size, overlap = s.chunkSizes(size, overlap)

	input := &models.DocumentInput{
		ID:          r.FormValue("id"),
		Source:      header.Filename,
		Title:       header.Filename,
		Content:     indexer.Preprocess(text),
		ContentType: s.app.Registry.ContentType(ext),
	}
	s.ingest(w, r, input, size, overlap)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	docs, err := s.app.Storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	// Bodies can be large; the list only carries metadata.
	for _, d := range docs {
		d.Content = ""
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "offset": offset, "limit": limit})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.app.Storage.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.app.Storage.GetDocument(r.Context(), id); err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	chunks, err := s.app.Storage.GetChunksByDocumentID(r.Context(), id)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"document_id": id, "chunks": chunks, "total": len(chunks)})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.app.Indexer.DeleteDocument(r.Context(), id); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("deletion failed", zap.Error(err))
		}
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

type chunkPreviewRequest struct {
	Text         string `json:"text"`
	ChunkSize    int    `json:"chunk_size,omitempty"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty"`
}

type chunkPreview struct {
	Index int    `json:"index"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Size  int    `json:"size"`
	Text  string `json:"text"`
}

func (s *Server) handleChunkPreview(w http.ResponseWriter, r *http.Request) {
	var req chunkPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	size, overlap := s.chunkSizes(req.ChunkSize, req.ChunkOverlap)
	chunker, err := indexer.NewChunker(size, overlap, indexer.WithBoundaryThreshold(s.app.Config.Chunking.BoundaryThreshold))
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	spans := chunker.Spans(req.Text)
	out := make([]chunkPreview, 0, len(spans))
	for _, sp := range spans {
		out = append(out, chunkPreview{Index: sp.Index, Start: sp.Start, End: sp.End, Size: sp.Size(), Text: sp.Text})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"chunks":          out,
		"total_chunks":    len(out),
		"original_length": utf8.RuneCountInString(req.Text),
		"chunk_size":      size,
		"chunk_overlap":   overlap,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	switch {
	case os.IsNotExist(err):
		s.respondError(w, http.StatusNotFound, "directory not found")
		return
	case err != nil:
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	case !info.IsDir():
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := req.Sync == nil || *req.Sync
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatchDirectories writes the current roots back to the config file.
func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.app.Config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.app.Config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
