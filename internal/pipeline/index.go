package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// DefaultTopK is the number of chunks retrieved for the prompt context.
const DefaultTopK = 4

// DefaultMaxQueryChars bounds one query window sent to the embeddings endpoint.
const DefaultMaxQueryChars = 8000

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is a nearest-neighbour index over vectors identified by their
// insertion position.
type VectorStore interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]int, error)
	Close(ctx context.Context) error
}

// VectorStoreFactory creates an empty store for vectors of the given dimension.
type VectorStoreFactory func(ctx context.Context, dims int) (VectorStore, error)

// RetrievalIndex serves similarity lookups over one document's chunks. It is
// built for a single extraction and must be closed afterwards.
type RetrievalIndex struct {
	chunks        []string
	store         VectorStore
	embedder      Embedder
	maxQueryChars int
}

// BuildIndex embeds chunks and loads them into a fresh store.
func BuildIndex(ctx context.Context, embedder Embedder, newStore VectorStoreFactory, chunks []string, maxQueryChars int) (*RetrievalIndex, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyContent
	}
	if newStore == nil {
		newStore = NewMemoryStore
	}
	if maxQueryChars <= 0 {
		maxQueryChars = DefaultMaxQueryChars
	}

	vectors, err := embedder.CreateEmbeddings(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	store, err := newStore(ctx, len(vectors[0]))
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	if err := store.Add(ctx, vectors); err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("load vector store: %w", err)
	}
	return &RetrievalIndex{
		chunks:        chunks,
		store:         store,
		embedder:      embedder,
		maxQueryChars: maxQueryChars,
	}, nil
}

// Retrieve returns up to k chunks ordered by decreasing similarity to query.
func (idx *RetrievalIndex) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	vector, err := idx.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	ids, err := idx.store.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search vector store: %w", err)
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id >= 0 && id < len(idx.chunks) {
			out = append(out, idx.chunks[id])
		}
	}
	return out, nil
}

// Close releases the underlying store.
func (idx *RetrievalIndex) Close(ctx context.Context) error {
	return idx.store.Close(ctx)
}

// embedQuery embeds queries longer than maxQueryChars window by window and
// combines the window vectors into a length-weighted, unit-length average.
func (idx *RetrievalIndex) embedQuery(ctx context.Context, query string) ([]float32, error) {
	runes := []rune(query)
	if len(runes) <= idx.maxQueryChars {
		vectors, err := idx.embedder.CreateEmbeddings(ctx, []string{query})
		if err != nil {
			return nil, err
		}
		if len(vectors) != 1 {
			return nil, fmt.Errorf("got %d vectors for 1 query", len(vectors))
		}
		return vectors[0], nil
	}

	var windows []string
	var weights []float64
	for i := 0; i < len(runes); i += idx.maxQueryChars {
		end := i + idx.maxQueryChars
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[i:end]))
		weights = append(weights, float64(end-i))
	}
	vectors, err := idx.embedder.CreateEmbeddings(ctx, windows)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(windows) {
		return nil, fmt.Errorf("got %d vectors for %d query windows", len(vectors), len(windows))
	}

	avg := make([]float64, len(vectors[0]))
	var total float64
	for i, v := range vectors {
		for j, x := range v {
			avg[j] += float64(x) * weights[i]
		}
		total += weights[i]
	}
	var norm float64
	for j := range avg {
		avg[j] /= total
		norm += avg[j] * avg[j]
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(avg))
	for j, x := range avg {
		if norm > 0 {
			x /= norm
		}
		out[j] = float32(x)
	}
	return out, nil
}

// memoryStore is an exact cosine-similarity index held in process memory.
type memoryStore struct {
	dims    int
	vectors [][]float32
}

// NewMemoryStore is the default VectorStoreFactory.
func NewMemoryStore(_ context.Context, dims int) (VectorStore, error) {
	return &memoryStore{dims: dims}, nil
}

func (m *memoryStore) Add(_ context.Context, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != m.dims {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), m.dims)
		}
	}
	m.vectors = append(m.vectors, vectors...)
	return nil
}

func (m *memoryStore) Search(_ context.Context, query []float32, k int) ([]int, error) {
	if len(query) != m.dims {
		return nil, fmt.Errorf("query has dimension %d, want %d", len(query), m.dims)
	}
	scores := make([]float64, len(m.vectors))
	ids := make([]int, len(m.vectors))
	for i, v := range m.vectors {
		ids[i] = i
		scores[i] = cosine(query, v)
	}
	sort.SliceStable(ids, func(a, b int) bool {
		return scores[ids[a]] > scores[ids[b]]
	})
	if k > len(ids) {
		k = len(ids)
	}
	return ids[:k], nil
}

func (m *memoryStore) Close(context.Context) error {
	m.vectors = nil
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
