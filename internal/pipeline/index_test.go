package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrievalIndex_RanksBySimilarity(t *testing.T) {
	chunks := []string{
		"medidas de inclusión social y empleo social",
		"el precio supone 60 puntos, precio más bajo",
		"solvencia económica y solvencia técnica",
	}
	emb := &keywordEmbedder{}
	idx, err := BuildIndex(context.Background(), emb, NewMemoryStore, chunks, 0)
	require.NoError(t, err)
	defer idx.Close(context.Background())

	got, err := idx.Retrieve(context.Background(), "requisitos de solvencia", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, chunks[2], got[0])

	// k larger than the index returns every chunk
	got, err = idx.Retrieve(context.Background(), "precio", 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, chunks[1], got[0])

	// chunks are embedded in one request
	assert.Equal(t, chunks, emb.calls[0])
}

func TestBuildIndex_PropagatesEmbeddingErrors(t *testing.T) {
	emb := &keywordEmbedder{err: errProvider}
	_, err := BuildIndex(context.Background(), emb, NewMemoryStore, []string{"precio"}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errProvider))
	assert.True(t, IsRateLimited(err, ""))
}

func TestBuildIndex_NoChunks(t *testing.T) {
	_, err := BuildIndex(context.Background(), &keywordEmbedder{}, nil, nil, 0)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestRetrievalIndex_LongQueryIsAveraged(t *testing.T) {
	emb := &keywordEmbedder{}
	idx, err := BuildIndex(context.Background(), emb, nil, []string{"precio", "social"}, 6)
	require.NoError(t, err)

	query := "precio" + "social" + "soc"
	vector, err := idx.embedQuery(context.Background(), query)
	require.NoError(t, err)

	// one call for the chunks, one for the three query windows
	require.Len(t, emb.calls, 2)
	assert.Equal(t, []string{"precio", "social", "soc"}, emb.calls[1])

	var norm float64
	for _, x := range vector {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	// "precio" and "social" windows have equal weight
	assert.InDelta(t, vector[0], vector[2], 1e-6)
}

func TestRetrievalIndex_CloseReleasesStore(t *testing.T) {
	closed := 0
	idx, err := BuildIndex(context.Background(), &keywordEmbedder{}, trackingFactory(&closed), []string{strings.Repeat("x", 3)}, 0)
	require.NoError(t, err)
	require.NoError(t, idx.Close(context.Background()))
	assert.Equal(t, 1, closed)
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	store, err := NewMemoryStore(context.Background(), 2)
	require.NoError(t, err)
	assert.Error(t, store.Add(context.Background(), [][]float32{{1, 2, 3}}))
	_, err = store.Search(context.Background(), []float32{1}, 1)
	assert.Error(t, err)
}
