package graph

import "context"

// NopStore is used when no graph backend is configured.
type NopStore struct{}

func (NopStore) Run(context.Context, string, map[string]any, Mode) ([]Record, error) {
	return nil, nil
}

func (NopStore) Enabled() bool { return false }

func (NopStore) Close(context.Context) error { return nil }
