package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/models"
)

// Neo4jOptions configures the Neo4j driver.
type Neo4jOptions struct {
	URI      string
	Username string
	Password string
	Database string
}

// Neo4jStore runs templates through the driver's managed transactions.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewNeo4jStore creates a driver and verifies connectivity.
func NewNeo4jStore(ctx context.Context, opts Neo4jOptions, logger *zap.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.Username, opts.Password, ""))
	if err != nil {
		return nil, models.NewConfigurationError("graph.uri", "%v", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w: %v", opts.URI, models.ErrGraphUnavailable, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Neo4jStore{driver: driver, database: opts.Database, logger: logger}, nil
}

// Run executes template with params and returns every record.
func (s *Neo4jStore) Run(ctx context.Context, template string, params map[string]any, mode Mode) ([]Record, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if mode == ModeWrite {
		opts[0] = neo4j.ExecuteQueryWithWritersRouting()
	}
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}
	result, err := neo4j.ExecuteQuery(ctx, s.driver, template, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		s.logger.Debug("graph query failed", zap.Stringer("mode", mode), zap.Error(err))
		return nil, classifyError(err)
	}
	records := make([]Record, 0, len(result.Records))
	for _, rec := range result.Records {
		records = append(records, Record(rec.AsMap()))
	}
	return records, nil
}

// Enabled returns true.
func (s *Neo4jStore) Enabled() bool { return true }

// Close closes the driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && strings.HasPrefix(neoErr.Code, "Neo.ClientError.Statement.") {
		return fmt.Errorf("%w: %s", models.ErrQuerySyntax, neoErr.Msg)
	}
	return fmt.Errorf("%w: %v", models.ErrGraphUnavailable, err)
}
