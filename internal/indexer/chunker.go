package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/models"
)

// Span is one window produced by the chunker. Start and End are code point
// offsets into the source text; Text is the trimmed window body.
type Span struct {
	Index int
	Start int
	End   int
	Text  string
}

// Size returns the number of code points in the trimmed body.
func (s Span) Size() int {
	return utf8.RuneCountInString(s.Text)
}

// Chunker splits text into overlapping windows whose ends prefer sentence
// boundaries, then word boundaries, then a hard cut.
type Chunker struct {
	size      int
	overlap   int
	threshold float64
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithBoundaryThreshold sets the minimum fraction of the window size a relocated
// window must keep. Values outside (0, 1) are ignored.
func WithBoundaryThreshold(t float64) ChunkerOption {
	return func(c *Chunker) {
		if t > 0 && t < 1 {
			c.threshold = t
		}
	}
}

// NewChunker returns a chunker for the given window size and overlap. It fails
// with a *models.ConfigurationError unless 0 <= overlap < size.
func NewChunker(size, overlap int, opts ...ChunkerOption) (*Chunker, error) {
	if err := config.ValidateChunking(size, overlap); err != nil {
		return nil, err
	}
	c := &Chunker{size: size, overlap: overlap, threshold: config.DefaultBoundaryThreshold}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Chunk splits text with the default boundary threshold.
func Chunk(text string, size, overlap int) ([]Span, error) {
	c, err := NewChunker(size, overlap)
	if err != nil {
		return nil, err
	}
	return c.Spans(text), nil
}

// Spans returns the windows for text in order. Empty input yields no spans.
func (c *Chunker) Spans(text string) []Span {
	runes := []rune(text)
	n := len(runes)
	minKeep := int(float64(c.size) * c.threshold)

	var spans []Span
	start := 0
	for start < n {
		end := start + c.size
		if end < n {
			end = c.relocate(runes, start, end, minKeep)
		}
		// The next start steps back from the proposed end, even past the text.
		stop := min(end, n)

		if body := strings.TrimSpace(string(runes[start:stop])); body != "" {
			spans = append(spans, Span{Index: len(spans), Start: start, End: stop, Text: body})
		}

		next := end - c.overlap
		if next <= start {
			// A relocated window shorter than the overlap would stall; continue
			// from its end with no overlap instead.
			next = end
		}
		start = next
	}
	return spans
}

// relocate moves end back to just after the last '.' in [start, end), or to
// the last space, as long as the window keeps more than minKeep code points.
func (c *Chunker) relocate(runes []rune, start, end, minKeep int) int {
	if i := lastIndex(runes, start, end, '.'); i > start+minKeep {
		return i + 1
	}
	if i := lastIndex(runes, start, end, ' '); i > start+minKeep {
		return i
	}
	return end
}

func lastIndex(runes []rune, start, end int, r rune) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// Split chunks a document's text into models.Chunk values with content-derived IDs.
func (c *Chunker) Split(docID, text string) []*models.Chunk {
	spans := c.Spans(text)
	if len(spans) == 0 {
		return nil
	}
	chunks := make([]*models.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = &models.Chunk{
			ID:         ChunkID(docID, s.Index, s.Text),
			DocumentID: docID,
			ChunkIndex: s.Index,
			StartPos:   s.Start,
			EndPos:     s.End,
			Text:       s.Text,
			Size:       s.Size(),
		}
	}
	return chunks
}

// ChunkID derives a stable chunk identifier from its document, position and body.
func ChunkID(docID string, index int, text string) string {
	h := sha256.New()
	h.Write([]byte(docID))
	h.Write([]byte{':'})
	h.Write([]byte(strconv.Itoa(index)))
	h.Write([]byte{':'})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Size returns the configured window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }
