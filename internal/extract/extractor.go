// Package extract turns uploaded and watched files into plain text for ingest.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/tansaku/internal/models"
)

// Extractor turns raw file content into plain text.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(content []byte) (string, error)

// Extract calls f(content).
func (f ExtractorFunc) Extract(content []byte) (string, error) { return f(content) }

type entry struct {
	extractor   Extractor
	contentType string
}

// Registry maps lowercase file extensions (with the leading dot) to extractors.
type Registry struct {
	entries map[string]entry
}

// NewRegistry returns a registry with every built-in format registered.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]entry)}
	plain := ExtractorFunc(extractPlain)
	for _, ext := range []string{".txt", ".md", ".rst", ".csv", ".log"} {
		r.Register(ext, "text/plain", plain)
	}
	r.Register(".pdf", "application/pdf", ExtractorFunc(extractPDF))
	r.Register(".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", ExtractorFunc(extractDOCX))
	r.Register(".pptx", "application/vnd.openxmlformats-officedocument.presentationml.presentation", ExtractorFunc(extractPPTX))
	r.Register(".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ExtractorFunc(extractExcel))
	od := ExtractorFunc(extractOpenDocument)
	r.Register(".odt", "application/vnd.oasis.opendocument.text", od)
	r.Register(".odp", "application/vnd.oasis.opendocument.presentation", od)
	r.Register(".ods", "application/vnd.oasis.opendocument.spreadsheet", od)
	return r
}

// Register adds or replaces the extractor for ext.
func (r *Registry) Register(ext, contentType string, e Extractor) {
	r.entries[normalizeExt(ext)] = entry{extractor: e, contentType: contentType}
}

// Supports reports whether ext has a registered extractor.
func (r *Registry) Supports(ext string) bool {
	_, ok := r.entries[normalizeExt(ext)]
	return ok
}

// ContentType returns the MIME type registered for ext, or "" when unknown.
func (r *Registry) ContentType(ext string) string {
	return r.entries[normalizeExt(ext)].contentType
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.entries))
	for ext := range r.entries {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ExtractFile reads path and extracts its text using the file's extension.
func (r *Registry) ExtractFile(path string) (string, error) {
	ext := filepath.Ext(path)
	if !r.Supports(ext) {
		return "", unsupported(ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return r.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content. ext includes the leading dot (".pdf").
func (r *Registry) ExtractBytes(content []byte, ext string) (string, error) {
	e, ok := r.entries[normalizeExt(ext)]
	if !ok {
		return "", unsupported(ext)
	}
	return e.extractor.Extract(content)
}

func unsupported(ext string) error {
	return fmt.Errorf("unsupported file type %q: %w", ext, models.ErrInvalidInput)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
