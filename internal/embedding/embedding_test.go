package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHashEmbedder(t *testing.T) {
	h := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := h.EmbedQuery(ctx, "bacterial biofilm formation")
	require.NoError(t, err)
	b, err := h.EmbedQuery(ctx, "Biofilm formation in bacterial cultures")
	require.NoError(t, err)
	c, err := h.EmbedQuery(ctx, "quarterly revenue guidance")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-5)
	assert.Greater(t, cosine(a, b), cosine(a, c))

	again, err := h.EmbedQuery(ctx, "bacterial biofilm formation")
	require.NoError(t, err)
	assert.Equal(t, a, again)

	blank, err := h.EmbedQuery(ctx, "   ")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cosine(blank, blank), 1e-5)
}

func TestEmbedChunks(t *testing.T) {
	chunks := []models.Chunk{
		{ElementID: "e1", Text: "first", PageNumber: 1, Filename: "a.pdf", ChunkID: 1},
		{ElementID: "e2", Text: "second", PageNumber: 2, Filename: "a.pdf", ChunkID: 2},
	}

	records, err := EmbedChunks(context.Background(), NewHashEmbedder(32), chunks)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for i, r := range records {
		assert.Equal(t, chunks[i].Text, r.Text)
		assert.Equal(t, chunks[i].ChunkID, r.ChunkID)
		assert.Equal(t, chunks[i].PageNumber, r.PageNumber)
		assert.Len(t, r.Vector, 32)
	}

	none, err := EmbedChunks(context.Background(), NewHashEmbedder(32), nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

type shortEmbedder struct{ HashEmbedder }

func (s *shortEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return [][]float32{{1}}, nil
}

func TestEmbedChunksMismatch(t *testing.T) {
	_, err := EmbedChunks(context.Background(), &shortEmbedder{}, []models.Chunk{{Text: "a"}, {Text: "b"}})
	assert.Error(t, err)
}

type failingEmbedder struct{ HashEmbedder }

func (f *failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func TestEmbedChunksError(t *testing.T) {
	_, err := EmbedChunks(context.Background(), &failingEmbedder{}, []models.Chunk{{Text: "a"}})
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestNewEmbedderHash(t *testing.T) {
	e, err := NewEmbedder(&config.LLMConfig{Provider: ProviderHash})
	require.NoError(t, err)
	v, err := ChromemFunc(e)(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, v, hashDimensions)
}
