package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/tansaku/internal/models"
)

const (
	fieldText       = "text"
	fieldDocumentID = "document_id"
	fieldChunkIndex = "chunk_index"

	deletePageSize = 1000
)

type chunkDoc struct {
	Text       string  `json:"text"`
	DocumentID string  `json:"document_id"`
	ChunkIndex float64 `json:"chunk_index"`
}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func newChunkMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// No stemming, so "bayes" matches "Bayes" but not "Bayesian".
	textFieldMapping.Analyzer = standard.Name
	textFieldMapping.Store = false
	docMapping.AddFieldMappingsAt(fieldText, textFieldMapping)
	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keywordanalyzer.Name
	docMapping.AddFieldMappingsAt(fieldDocumentID, idFieldMapping)
	docMapping.AddFieldMappingsAt(fieldChunkIndex, bleve.NewNumericFieldMapping())
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates
// a memory-only index. Remove the directory after changing the mapping.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newChunkMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newChunkMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks indexes chunk bodies in one batch, keyed by chunk id.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, chunkDoc{
			Text:       c.Text,
			DocumentID: c.DocumentID,
			ChunkIndex: float64(c.ChunkIndex),
		}); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.index.Batch(batch)
}

// Search runs a match query over chunk text and returns up to limit results.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty keyword query: %w", models.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = models.DefaultSearchLimit
	}
	fuzziness := 2
	var fuzzy bool
	var docID string
	if opts != nil {
		fuzzy = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
		docID = opts.DocumentID
	}

	var q blevequery.Query
	if fuzzy {
		q = buildFuzzyQuery(query, fuzziness)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(fieldText)
		q = mq
	}
	if docID != "" {
		tq := bleve.NewTermQuery(docID)
		tq.SetField(fieldDocumentID)
		q = bleve.NewConjunctionQuery(q, tq)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{fieldDocumentID}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		docID, _ := hit.Fields[fieldDocumentID].(string)
		out = append(out, &KeywordResult{ID: hit.ID, DocumentID: docID, Score: hit.Score})
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries over the text field, one per term.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(fieldText)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DeleteDocument removes every chunk of documentID and returns how many were removed.
func (b *BleveIndex) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	deleted := 0
	for {
		tq := bleve.NewTermQuery(documentID)
		tq.SetField(fieldDocumentID)
		req := bleve.NewSearchRequest(tq)
		req.Size = deletePageSize
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return deleted, fmt.Errorf("find chunks of %s: %w", documentID, err)
		}
		if len(results.Hits) == 0 {
			return deleted, nil
		}
		batch := b.index.NewBatch()
		for _, hit := range results.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return deleted, fmt.Errorf("delete chunks of %s: %w", documentID, err)
		}
		deleted += len(results.Hits)
	}
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
