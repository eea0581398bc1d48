package chromemdb

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/corpus"
	"github.com/h20-studio-tech/aipatent/internal/embedding"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

func records(t *testing.T, texts ...string) []models.IndexedRecord {
	t.Helper()
	h := embedding.NewHashEmbedder(64)
	out := make([]models.IndexedRecord, len(texts))
	for i, text := range texts {
		vec, err := h.EmbedQuery(context.Background(), text)
		require.NoError(t, err)
		out[i] = models.IndexedRecord{
			ElementID:  strings.Repeat("e", i+1),
			Text:       text,
			PageNumber: i + 1,
			Filename:   "paper.pdf",
			ChunkID:    i + 1,
			Vector:     vec,
		}
	}
	return out
}

func TestVectorDBManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m, err := NewVectorDBManager(&config.VectorDBConfig{InMemory: true}, nil)
	require.NoError(t, err)

	exists, err := m.TableExists(ctx, "paper")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = m.Search(ctx, "paper", []float32{1, 0}, 4)
	assert.ErrorIs(t, err, corpus.ErrTableNotFound)

	require.NoError(t, m.CreateTable(ctx, "paper"))
	exists, err = m.TableExists(ctx, "paper")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, m.Insert(ctx, "paper", nil))
	res, err := m.Search(ctx, "paper", []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, res)

	recs := records(t, "phage lysis of bacteria", "revenue forecast", "bacteria phage resistance")
	require.NoError(t, m.Insert(ctx, "paper", recs))

	count, err := m.Count(ctx, "paper")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	query := embedding.NewHashEmbedder(64)
	vec, err := query.EmbedQuery(ctx, "phage lysis of bacteria")
	require.NoError(t, err)

	res, err = m.Search(ctx, "paper", vec, 10)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "phage lysis of bacteria", res[0].Text)
	assert.Equal(t, 1, res[0].PageNumber)
	assert.Equal(t, 1, res[0].ChunkID)
	assert.Equal(t, "e", res[0].ElementID)
	assert.Equal(t, "paper.pdf", res[0].Filename)

	res, err = m.Search(ctx, "paper", vec, 1)
	require.NoError(t, err)
	assert.Len(t, res, 1)

	tables, err := m.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"paper"}, tables)

	require.NoError(t, m.DropTable(ctx, "paper"))
	require.NoError(t, m.DropTable(ctx, "paper"))
	exists, err = m.TableExists(ctx, "paper")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, m.Insert(ctx, "paper", recs), corpus.ErrTableNotFound)
	_, err = m.Count(ctx, "paper")
	assert.ErrorIs(t, err, corpus.ErrTableNotFound)
}

func TestVectorDBManagerPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &config.VectorDBConfig{Path: dir}

	m, err := NewVectorDBManager(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, m.CreateTable(ctx, "empty"))
	require.NoError(t, m.CreateTable(ctx, "paper"))
	require.NoError(t, m.Insert(ctx, "paper", records(t, "phage lysis")))

	reopened, err := NewVectorDBManager(cfg, nil)
	require.NoError(t, err)
	for _, name := range []string{"empty", "paper"} {
		exists, err := reopened.TableExists(ctx, name)
		require.NoError(t, err)
		assert.True(t, exists, name)
	}
	count, err := reopened.Count(ctx, "paper")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVectorDBManagerExportImport(t *testing.T) {
	ctx := context.Background()
	key := strings.Repeat("k", 32)
	exportDir := t.TempDir()

	m, err := NewVectorDBManager(&config.VectorDBConfig{InMemory: true, EncryptionKey: key, ExportDir: exportDir}, nil)
	require.NoError(t, err)

	_, err = m.Export(ctx, "paper")
	assert.ErrorIs(t, err, corpus.ErrTableNotFound)

	require.NoError(t, m.CreateTable(ctx, "paper"))
	require.NoError(t, m.Insert(ctx, "paper", records(t, "phage lysis", "titer")))

	path, err := m.Export(ctx, "paper")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exportDir, "paper.gob.enc"), path)

	restored, err := NewVectorDBManager(&config.VectorDBConfig{InMemory: true, EncryptionKey: key}, nil)
	require.NoError(t, err)
	require.NoError(t, restored.Import(ctx, path))
	count, err := restored.Count(ctx, "paper")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	noKey, err := NewVectorDBManager(&config.VectorDBConfig{InMemory: true}, nil)
	require.NoError(t, err)
	_, err = noKey.Export(ctx, "paper")
	assert.Error(t, err)
}
