package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/models"
)

// New creates the graph store selected by cfg.Backend.
func New(ctx context.Context, cfg config.GraphConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return NopStore{}, nil
	case "neo4j":
		return NewNeo4jStore(ctx, Neo4jOptions{
			URI:      cfg.URI,
			Username: cfg.Username,
			Password: cfg.Password,
			Database: cfg.Database,
		}, logger)
	default:
		return nil, models.NewConfigurationError("graph.backend", "unknown backend %q (supported: none, neo4j)", cfg.Backend)
	}
}

// ToRelationship converts a RelatedToChunks record. ok is false when the
// record lacks a source or target id.
func ToRelationship(rec Record) (rel models.Relationship, ok bool) {
	rel.SourceID = asString(rec["source_id"])
	rel.Type = asString(rec["type"])
	rel.TargetID = asString(rec["target_id"])
	if rel.SourceID == "" || rel.TargetID == "" {
		return rel, false
	}
	switch labels := rec["labels"].(type) {
	case []any:
		for _, l := range labels {
			rel.TargetLabels = append(rel.TargetLabels, asString(l))
		}
	case []string:
		rel.TargetLabels = append(rel.TargetLabels, labels...)
	}
	if props, ok := rec["properties"].(map[string]any); ok && len(props) > 0 {
		rel.Properties = props
	}
	return rel, true
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
