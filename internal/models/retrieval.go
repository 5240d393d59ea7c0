package models

// Stage names the steps of the query pipeline.
type Stage string

const (
	StageEmbedding    Stage = "embedding"
	StageVectorSearch Stage = "vector_search"
	StageResolve      Stage = "resolve"
	StageExpand       Stage = "expand"
)

// StageStatus tags the outcome of one stage.
type StageStatus string

const (
	StageOK       StageStatus = "ok"
	StageDegraded StageStatus = "degraded"
	StageFailed   StageStatus = "failed"
	StageSkipped  StageStatus = "skipped"
)

// StageOutcome records what happened in one stage of a search.
type StageOutcome struct {
	Stage      Stage       `json:"stage"`
	Status     StageStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

// VectorMatch is one nearest-neighbor hit from the vector index.
type VectorMatch struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Relationship is one graph edge touching a candidate chunk.
type Relationship struct {
	SourceID     string                 `json:"source_id"`
	Type         string                 `json:"type"`
	TargetID     string                 `json:"target_id,omitempty"`
	TargetLabels []string               `json:"target_labels,omitempty"`
	Properties   map[string]interface{} `json:"properties,omitempty"`
}

// RetrievalResult is the fused response of one search call.
type RetrievalResult struct {
	Success        bool              `json:"success"`
	Query          string            `json:"query"`
	Matches        []*VectorMatch    `json:"matches"`
	Chunks         map[string]*Chunk `json:"chunks"`
	Relationships  []*Relationship   `json:"relationships"`
	TotalResults   int               `json:"total_results"`
	FailedStage    Stage             `json:"failed_stage,omitempty"`
	Error          string            `json:"error,omitempty"`
	Stages         []StageOutcome    `json:"stages"`
	DegradedStages []Stage           `json:"degraded_stages,omitempty"`
}

// NewRetrievalResult returns an empty successful result for query.
func NewRetrievalResult(query string) *RetrievalResult {
	return &RetrievalResult{
		Success:       true,
		Query:         query,
		Matches:       []*VectorMatch{},
		Chunks:        map[string]*Chunk{},
		Relationships: []*Relationship{},
	}
}

// Record appends a stage outcome and updates the failure bookkeeping.
// Failed marks the whole result unsuccessful; degraded keeps success.
func (r *RetrievalResult) Record(o StageOutcome) {
	r.Stages = append(r.Stages, o)
	switch o.Status {
	case StageFailed:
		r.Success = false
		r.FailedStage = o.Stage
		r.Error = o.Error
	case StageDegraded:
		r.DegradedStages = append(r.DegradedStages, o.Stage)
		if r.FailedStage == "" {
			r.FailedStage = o.Stage
		}
	}
}

// Outcome returns the recorded outcome for stage, if any.
func (r *RetrievalResult) Outcome(stage Stage) (StageOutcome, bool) {
	for _, o := range r.Stages {
		if o.Stage == stage {
			return o, true
		}
	}
	return StageOutcome{}, false
}

// Degraded reports whether any non-essential stage degraded.
func (r *RetrievalResult) Degraded() bool {
	return len(r.DegradedStages) > 0
}

// ChunkFailure records why one chunk could not be persisted during ingest.
type ChunkFailure struct {
	Index   int    `json:"index"`
	ChunkID string `json:"chunk_id,omitempty"`
	Stage   string `json:"stage"`
	Reason  string `json:"reason"`
}

// IngestReport summarizes one ingest call. Ingest is not transactional across
// chunks, so both persisted and failed sets can be non-empty.
type IngestReport struct {
	DocumentID        string         `json:"document_id"`
	Status            DocumentStatus `json:"status"`
	TotalChunks       int            `json:"total_chunks"`
	PersistedChunkIDs []string       `json:"persisted_chunk_ids"`
	FailedChunks      []ChunkFailure `json:"failed_chunks"`
	Warnings          []string       `json:"warnings,omitempty"`
	// Skipped is set when a file was already ingested unchanged.
	Skipped bool `json:"skipped,omitempty"`
}

// FinalStatus derives the document status from the chunk outcomes.
func (r *IngestReport) FinalStatus() DocumentStatus {
	switch {
	case len(r.FailedChunks) == 0:
		return StatusCompleted
	case len(r.PersistedChunkIDs) == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}
