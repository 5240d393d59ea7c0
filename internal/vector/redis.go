package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hyperjump/tansaku/internal/models"
)

// Hash fields stored per vector. Only the tag fields can be used in filters.
const (
	fieldVector     = "vector"
	fieldID         = "id"
	fieldNamespace  = "namespace"
	fieldDocumentID = "document_id"
	fieldSource     = "source"
	fieldChunkIndex = "chunk_index"
	fieldMetadata   = "metadata"
	fieldDistance   = "__dist"
)

var redisTagFields = map[string]bool{fieldDocumentID: true, fieldSource: true}

// RedisOptions configures a RediSearch-backed index.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	IndexName string
	KeyPrefix string
}

// RedisIndex implements VectorIndex on RediSearch (HNSW, cosine distance)
// over Redis hashes.
type RedisIndex struct {
	client     *redis.Client
	dimensions int
	indexName  string
	keyPrefix  string
}

// NewRedisIndex connects to Redis and creates the search index if it does not exist.
func NewRedisIndex(ctx context.Context, opts RedisOptions, dimensions int) (*RedisIndex, error) {
	if dimensions <= 0 {
		return nil, models.NewConfigurationError("vector.dimensions", "must be positive, got %d", dimensions)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
		Protocol: 2, // FT.* replies are parsed as RESP2 arrays
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w: %w", opts.Addr, models.ErrIndexUnavailable, err)
	}
	idx := &RedisIndex{
		client:     client,
		dimensions: dimensions,
		indexName:  opts.IndexName,
		keyPrefix:  opts.KeyPrefix,
	}
	if err := idx.ensureIndex(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

func (r *RedisIndex) ensureIndex(ctx context.Context) error {
	if _, err := r.client.Do(ctx, "FT.INFO", r.indexName).Result(); err == nil {
		return r.checkIndexDimensions(ctx)
	}
	_, err := r.client.Do(ctx, "FT.CREATE", r.indexName,
		"ON", "HASH",
		"PREFIX", "1", r.keyPrefix,
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(r.dimensions),
		"DISTANCE_METRIC", "COSINE",
		fieldNamespace, "TAG",
		fieldDocumentID, "TAG",
		fieldSource, "TAG",
		fieldChunkIndex, "NUMERIC",
	).Result()
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w: %w", r.indexName, models.ErrIndexUnavailable, err)
	}
	return nil
}

// checkIndexDimensions compares an existing index's vector DIM with ours.
func (r *RedisIndex) checkIndexDimensions(ctx context.Context) error {
	info, err := r.client.Do(ctx, "FT.INFO", r.indexName).Slice()
	if err != nil {
		return nil
	}
	if dim, ok := findVectorDim(info); ok && dim != r.dimensions {
		return models.NewConfigurationError("vector.dimensions",
			"redis index %s has %d dimensions, embedding produces %d", r.indexName, dim, r.dimensions)
	}
	return nil
}

// findVectorDim walks an FT.INFO reply looking for the "dim" attribute of a VECTOR field.
func findVectorDim(v interface{}) (int, bool) {
	list, ok := v.([]interface{})
	if !ok {
		return 0, false
	}
	for i, item := range list {
		if key, ok := item.(string); ok && strings.EqualFold(key, "dim") && i+1 < len(list) {
			switch d := list[i+1].(type) {
			case int64:
				return int(d), true
			case string:
				if n, err := strconv.Atoi(d); err == nil {
					return n, true
				}
			}
		}
		if dim, ok := findVectorDim(item); ok {
			return dim, true
		}
	}
	return 0, false
}

func (r *RedisIndex) key(namespace, id string) string {
	return r.keyPrefix + namespaceOrDefault(namespace) + ":" + id
}

// Upsert writes each record as a hash in one pipeline.
func (r *RedisIndex) Upsert(ctx context.Context, records []Record) (int, error) {
	for _, rec := range records {
		if rec.ID == "" {
			return 0, fmt.Errorf("record without id: %w", models.ErrInvalidInput)
		}
		if len(rec.Values) != r.dimensions {
			return 0, fmt.Errorf("vector %s has %d dimensions, expected %d: %w",
				rec.ID, len(rec.Values), r.dimensions, models.ErrDimensionMismatch)
		}
	}
	if len(records) == 0 {
		return 0, nil
	}
	pipe := r.client.Pipeline()
	for _, rec := range records {
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encode metadata for %s: %w", rec.ID, err)
		}
		fields := []interface{}{
			fieldVector, float32SliceToBytes(rec.Values),
			fieldID, rec.ID,
			fieldNamespace, namespaceOrDefault(rec.Namespace),
			fieldMetadata, string(meta),
		}
		for tag := range redisTagFields {
			if v, ok := rec.Metadata[tag]; ok {
				fields = append(fields, tag, v)
			}
		}
		if v, ok := rec.Metadata[fieldChunkIndex]; ok {
			fields = append(fields, fieldChunkIndex, v)
		}
		pipe.HSet(ctx, r.key(rec.Namespace, rec.ID), fields...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis upsert: %w: %w", models.ErrIndexUnavailable, err)
	}
	return len(records), nil
}

// Query runs a KNN search restricted to the namespace and tag filter.
func (r *RedisIndex) Query(ctx context.Context, vector []float32, opts QueryOptions) ([]*models.VectorMatch, error) {
	if len(vector) != r.dimensions {
		return nil, fmt.Errorf("query has %d dimensions, expected %d: %w", len(vector), r.dimensions, models.ErrDimensionMismatch)
	}
	if opts.TopK <= 0 {
		return []*models.VectorMatch{}, nil
	}
	q, err := buildKNNQuery(opts)
	if err != nil {
		return nil, err
	}
	reply, err := r.client.Do(ctx, "FT.SEARCH", r.indexName, q,
		"PARAMS", "2", "vec", float32SliceToBytes(vector),
		"RETURN", "3", fieldID, fieldMetadata, fieldDistance,
		"SORTBY", fieldDistance, "ASC",
		"LIMIT", "0", strconv.Itoa(opts.TopK),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("redis vector search: %w: %w", models.ErrIndexUnavailable, err)
	}
	return parseSearchReply(reply)
}

func buildKNNQuery(opts QueryOptions) (string, error) {
	clauses := []string{fmt.Sprintf("@%s:{%s}", fieldNamespace, escapeTag(namespaceOrDefault(opts.Namespace)))}
	keys := make([]string, 0, len(opts.Filter))
	for k := range opts.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !redisTagFields[k] {
			return "", fmt.Errorf("filter on %q is not supported by the redis index: %w", k, models.ErrInvalidInput)
		}
		clauses = append(clauses, fmt.Sprintf("@%s:{%s}", k, escapeTag(opts.Filter[k])))
	}
	return fmt.Sprintf("(%s)=>[KNN %d @%s $vec AS %s]",
		strings.Join(clauses, " "), opts.TopK, fieldVector, fieldDistance), nil
}

// parseSearchReply decodes a RESP2 FT.SEARCH reply: [total, key, [field, value, ...], ...].
func parseSearchReply(reply interface{}) ([]*models.VectorMatch, error) {
	values, ok := reply.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected FT.SEARCH reply %T: %w", reply, models.ErrIndexUnavailable)
	}
	matches := []*models.VectorMatch{}
	for i := 1; i+1 < len(values); i += 2 {
		fields, ok := values[i+1].([]interface{})
		if !ok {
			continue
		}
		m := &models.VectorMatch{}
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			val, _ := fields[j+1].(string)
			switch name {
			case fieldID:
				m.ID = val
			case fieldMetadata:
				if val != "" && val != "null" {
					if err := json.Unmarshal([]byte(val), &m.Metadata); err != nil {
						return nil, fmt.Errorf("decode metadata: %w", err)
					}
				}
			case fieldDistance:
				d, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return nil, fmt.Errorf("parse distance %q: %w", val, err)
				}
				m.Score = 1 - d
			}
		}
		if m.ID == "" {
			if key, ok := values[i].(string); ok {
				m.ID = key[strings.LastIndex(key, ":")+1:]
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// escapeTag backslash-escapes characters that RediSearch treats as tag syntax.
func escapeTag(s string) string {
	var b strings.Builder
	for _, c := range s {
		if strings.ContainsRune(",.<>{}[]\"':;!@#$%^&*()-+=~|/\\ ", c) {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Delete removes the given ids from the namespace.
func (r *RedisIndex) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(namespace, id)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis delete: %w: %w", models.ErrIndexUnavailable, err)
	}
	return nil
}

// Dimensions returns the configured vector length.
func (r *RedisIndex) Dimensions() int {
	return r.dimensions
}

// Size returns num_docs from FT.INFO, or 0 when Redis cannot be reached.
func (r *RedisIndex) Size() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	info, err := r.client.Do(ctx, "FT.INFO", r.indexName).Slice()
	if err != nil {
		return 0
	}
	for i := 0; i+1 < len(info); i += 2 {
		if name, _ := info[i].(string); name == "num_docs" {
			switch v := info[i+1].(type) {
			case int64:
				return int(v)
			case string:
				n, _ := strconv.Atoi(v)
				return n
			}
		}
	}
	return 0
}

// Type returns the index type identifier.
func (r *RedisIndex) Type() string {
	return string(IndexTypeRedis)
}

// Close closes the Redis client.
func (r *RedisIndex) Close() error {
	return r.client.Close()
}
