package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

var keywords = []string{"precio", "solvencia", "social"}

// keywordEmbedder maps a text to keyword counts, which is enough to make
// cosine ranking predictable.
type keywordEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (e *keywordEmbedder) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]string(nil), texts...))
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := make([]float32, len(keywords)+1)
		for j, kw := range keywords {
			v[j] = float32(strings.Count(lower, kw))
		}
		v[len(keywords)] = 0.01
		out[i] = v
	}
	return out, nil
}

type fakeChat struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

func (c *fakeChat) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	return c.answer, nil
}

type mapCache struct {
	data map[string]string
	err  error
}

func (m *mapCache) GetAnswer(_ context.Context, key string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) SetAnswer(_ context.Context, key, answer string) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = answer
	return nil
}

type fakeExtractor struct {
	text string
	err  error
	seen string
}

func (f *fakeExtractor) ExtractText(_ context.Context, r io.Reader, fileName string) (string, error) {
	f.seen = fileName
	if f.err != nil {
		return "", f.err
	}
	_, _ = io.ReadAll(r)
	return f.text, nil
}

// closeTrackingStore wraps the memory store and records Close calls.
type closeTrackingStore struct {
	VectorStore
	closed *int
}

func (s closeTrackingStore) Close(ctx context.Context) error {
	*s.closed++
	return s.VectorStore.Close(ctx)
}

func trackingFactory(closed *int) VectorStoreFactory {
	return func(ctx context.Context, dims int) (VectorStore, error) {
		inner, err := NewMemoryStore(ctx, dims)
		if err != nil {
			return nil, err
		}
		return closeTrackingStore{VectorStore: inner, closed: closed}, nil
	}
}

var errProvider = errors.New(`embedding api returned non-200 status: 429 Too Many Requests, body: {"error":{"code":"rate_limit_exceeded"}}`)
