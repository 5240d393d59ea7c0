package models

import (
	"fmt"
	"strings"
)

// Limits applied by SearchQuery.Validate when the caller does not override them.
const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 100
)

// SearchQuery represents a search request with optional namespace and metadata filter.
type SearchQuery struct {
	Query     string            `json:"query"`
	Limit     int               `json:"limit,omitempty"`
	Namespace string            `json:"namespace,omitempty"`
	Filter    map[string]string `json:"filter,omitempty"`
}

// Validate ensures the query is non-empty and clamps the limit to [1, maxLimit].
// Zero or negative defaultLimit/maxLimit fall back to the package defaults.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query cannot be empty: %w", ErrInvalidInput)
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultSearchLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxSearchLimit
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}
