package vector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/tansaku/internal/models"
)

type memoryEntry struct {
	id       string
	vector   []float32
	metadata map[string]string
}

// MemoryIndex is an in-memory vector index using brute-force cosine search.
// Suitable for tests and small corpora.
type MemoryIndex struct {
	dimensions int
	spaces     map[string]map[string]*memoryEntry
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, models.NewConfigurationError("vector.dimensions", "must be positive, got %d", dimensions)
	}
	return &MemoryIndex{
		dimensions: dimensions,
		spaces:     make(map[string]map[string]*memoryEntry),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Dimensions returns the configured vector length.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Upsert stores copies of the records, replacing existing IDs in the same namespace.
// All records are checked before any is written.
func (m *MemoryIndex) Upsert(ctx context.Context, records []Record) (int, error) {
	for _, r := range records {
		if r.ID == "" {
			return 0, fmt.Errorf("record without id: %w", models.ErrInvalidInput)
		}
		if len(r.Values) != m.dimensions {
			return 0, fmt.Errorf("vector %s has %d dimensions, expected %d: %w",
				r.ID, len(r.Values), m.dimensions, models.ErrDimensionMismatch)
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		ns := namespaceOrDefault(r.Namespace)
		space, ok := m.spaces[ns]
		if !ok {
			space = make(map[string]*memoryEntry)
			m.spaces[ns] = space
		}
		vec := make([]float32, m.dimensions)
		copy(vec, r.Values)
		meta := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		space[r.ID] = &memoryEntry{id: r.ID, vector: vec, metadata: meta}
	}
	return len(records), nil
}

// Query returns the TopK most similar vectors in the namespace that pass the filter.
// Ties are broken by ID so results are deterministic.
func (m *MemoryIndex) Query(ctx context.Context, query []float32, opts QueryOptions) ([]*models.VectorMatch, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query has %d dimensions, expected %d: %w", len(query), m.dimensions, models.ErrDimensionMismatch)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	space := m.spaces[namespaceOrDefault(opts.Namespace)]
	if opts.TopK <= 0 || len(space) == 0 {
		return []*models.VectorMatch{}, nil
	}
	matches := make([]*models.VectorMatch, 0, len(space))
	for _, e := range space {
		if !matchesFilter(e.metadata, opts.Filter) {
			continue
		}
		meta := make(map[string]string, len(e.metadata))
		for k, v := range e.metadata {
			meta[k] = v
		}
		matches = append(matches, &models.VectorMatch{
			ID:       e.id,
			Score:    CosineSimilarity(query, e.vector),
			Metadata: meta,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > opts.TopK {
		matches = matches[:opts.TopK]
	}
	return matches, nil
}

// Delete removes ids from the namespace. Unknown ids are ignored.
func (m *MemoryIndex) Delete(ctx context.Context, namespace string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	space := m.spaces[namespaceOrDefault(namespace)]
	for _, id := range ids {
		delete(space, id)
	}
	return nil
}

// Size returns the number of vectors across all namespaces.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, space := range m.spaces {
		n += len(space)
	}
	return n
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

// Save persists the index to path, creating the directory if needed. Format
// (little endian): dimension u32, count u32, then per record: namespace, id and
// metadata JSON as u32-length-prefixed bytes followed by dimension*4 vector bytes.
func (m *MemoryIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := m.writeTo(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	return os.Rename(tmp, path)
}

func (m *MemoryIndex) writeTo(w io.Writer) error {
	n := 0
	for _, space := range m.spaces {
		n += len(space)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(n)); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for ns, space := range m.spaces {
		for _, e := range space {
			meta, err := json.Marshal(e.metadata)
			if err != nil {
				return fmt.Errorf("encode metadata: %w", err)
			}
			for _, b := range [][]byte{[]byte(ns), []byte(e.id), meta} {
				if err := writeBytes(w, b); err != nil {
					return err
				}
			}
			if _, err := w.Write(float32SliceToBytes(e.vector)); err != nil {
				return fmt.Errorf("write vector: %w", err)
			}
		}
	}
	return nil
}

// Load replaces the in-memory contents with the index stored at path.
// A missing file leaves the index unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("file has %d dimensions, index expects %d: %w", dim, m.dimensions, models.ErrDimensionMismatch)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	spaces := make(map[string]map[string]*memoryEntry)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		ns, err := readBytes(f)
		if err != nil {
			return fmt.Errorf("read namespace: %w", err)
		}
		id, err := readBytes(f)
		if err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		rawMeta, err := readBytes(f)
		if err != nil {
			return fmt.Errorf("read metadata: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		var meta map[string]string
		if err := json.Unmarshal(rawMeta, &meta); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}
		space, ok := spaces[string(ns)]
		if !ok {
			space = make(map[string]*memoryEntry)
			spaces[string(ns)] = space
		}
		space[string(id)] = &memoryEntry{id: string(id), vector: bytesToFloat32Slice(buf), metadata: meta}
	}
	m.mu.Lock()
	m.spaces = spaces
	m.mu.Unlock()
	return nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	_, err := io.ReadFull(r, b)
	return b, err
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
