package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/tansaku/internal/app"
	"github.com/hyperjump/tansaku/internal/indexer"
	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/internal/search"
	"github.com/hyperjump/tansaku/pkg/utils"
)

// OutputFormat selects how command results are printed.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is indented JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

const previewRunes = 200

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRetrieval prints a search result.
func WriteRetrieval(w io.Writer, res *models.RetrievalResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if !res.Success {
		fmt.Fprintf(w, "Search failed at %s: %s\n", res.FailedStage, res.Error)
		return nil
	}
	fmt.Fprintf(w, "\nFound %d matches for %q\n", res.TotalResults, res.Query)
	if res.Degraded() {
		fmt.Fprintf(w, "Degraded stages: %s\n", joinStages(res.DegradedStages))
	}
	fmt.Fprintln(w)
	for i, m := range res.Matches {
		fmt.Fprintln(w, "─────────────────────────────────────────────────────────")
		fmt.Fprintf(w, "[%d] %s | Score: %.4f\n", i+1, m.ID, m.Score)
		if doc := m.Metadata["document_id"]; doc != "" {
			fmt.Fprintf(w, "Document: %s\n", doc)
		}
		if c, ok := res.Chunks[m.ID]; ok {
			fmt.Fprintf(w, "\n%s\n", search.Snippet(c.Text, previewRunes))
		}
		for _, rel := range res.Relationships {
			if rel.SourceID == m.ID {
				fmt.Fprintf(w, "  -[%s]-> %s %s\n", rel.Type, rel.TargetID, strings.Join(rel.TargetLabels, ","))
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

func joinStages(stages []models.Stage) string {
	parts := make([]string, len(stages))
	for i, s := range stages {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// WriteReports prints ingest reports, one per document.
func WriteReports(w io.Writer, reports []*models.IngestReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, reports)
	}
	for _, r := range reports {
		if r.Skipped {
			fmt.Fprintf(w, "%s  unchanged, skipped\n", r.DocumentID)
			continue
		}
		fmt.Fprintf(w, "%s  %s  %d/%d chunks persisted\n", r.DocumentID, r.Status, len(r.PersistedChunkIDs), r.TotalChunks)
		for _, f := range r.FailedChunks {
			fmt.Fprintf(w, "  chunk %d failed at %s: %s\n", f.Index, f.Stage, f.Reason)
		}
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warn)
		}
	}
	return nil
}

// WriteSpans prints a chunk preview.
func WriteSpans(w io.Writer, spans []indexer.Span, format OutputFormat) error {
	if format == OutputJSON {
		type span struct {
			Index int    `json:"index"`
			Start int    `json:"start"`
			End   int    `json:"end"`
			Text  string `json:"text"`
		}
		out := make([]span, len(spans))
		for i, s := range spans {
			out[i] = span{Index: s.Index, Start: s.Start, End: s.End, Text: s.Text}
		}
		return writeJSON(w, map[string]interface{}{"chunks": out, "total_chunks": len(out)})
	}
	fmt.Fprintf(w, "%d chunks\n", len(spans))
	for _, s := range spans {
		fmt.Fprintf(w, "\n#%d [%d, %d) %d chars\n%s\n", s.Index, s.Start, s.End, s.Size(), utils.Truncate(s.Text, previewRunes))
	}
	return nil
}

// WriteStatus prints counts and configuration.
func WriteStatus(w io.Writer, st *app.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "documents:          %d\n", st.Documents)
	fmt.Fprintf(w, "chunks:             %d\n", st.Chunks)
	fmt.Fprintf(w, "vector_index_size:  %d\n", st.VectorIndexSize)
	fmt.Fprintf(w, "keyword_docs:       %d\n", st.KeywordDocs)
	fmt.Fprintf(w, "graph_enabled:      %t\n", st.GraphEnabled)
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage:         %s\n", utils.FormatBytes(*st.DiskUsageBytes))
	}
	if c := st.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "embedding:          %s (%d dims)\n", c.EmbeddingProvider, c.EmbeddingDimensions)
		fmt.Fprintf(w, "vector_backend:     %s\n", c.VectorBackend)
		fmt.Fprintf(w, "graph_backend:      %s\n", c.GraphBackend)
		fmt.Fprintf(w, "chunk_size:         %d\n", c.ChunkSize)
		fmt.Fprintf(w, "chunk_overlap:      %d\n", c.ChunkOverlap)
		fmt.Fprintf(w, "ingest_workers:     %d\n", c.IngestWorkers)
		if c.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:      %s\n", c.DatabasePath)
		}
	}
	return nil
}
