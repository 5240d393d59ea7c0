// Package graph provides the graph store used to expand retrieval candidates
// with their stored relationships.
package graph

import (
	"context"
)

// Mode routes a query to readers or writers.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// Record is one result row keyed by column name.
type Record map[string]any

// Store runs parameterized query templates against a graph database.
type Store interface {
	Run(ctx context.Context, template string, params map[string]any, mode Mode) ([]Record, error)
	// Enabled reports whether the store is backed by a real database.
	Enabled() bool
	Close(ctx context.Context) error
}
