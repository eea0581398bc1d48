package db

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/corpus"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

func TestTableQuoting(t *testing.T) {
	s := &Store{schema: "corpus"}
	assert.Equal(t, `"corpus"."paper_one"`, string(s.table("paper_one")))
	assert.Equal(t, `"corpus"."we""ird"`, string(s.table(`we"ird`)))
}

func TestIndexName(t *testing.T) {
	long := corpus.NormalizeFilename(strings.Repeat("phage_cocktail_", 7) + ".pdf")
	similar := corpus.NormalizeFilename(strings.Repeat("phage_cocktail_", 7) + "b.pdf")

	assert.LessOrEqual(t, len(indexName(long)), maxIdentLen)
	assert.Equal(t, indexName(long), indexName(long))
	assert.NotEqual(t, indexName(long), indexName(similar))
	assert.NotEqual(t, indexName("paper"), indexName("paper_two"))
}

func TestCreateTableRejectsLongName(t *testing.T) {
	s := &Store{schema: "corpus"}
	err := s.CreateTable(context.Background(), strings.Repeat("a", maxIdentLen+1))
	assert.ErrorContains(t, err, "exceeds")
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "abc", sanitizeUTF8("a\x00b\xffc"))
	assert.Equal(t, "phage λ", sanitizeUTF8("phage λ"))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("AIPATENT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("AIPATENT_TEST_DATABASE_URL not set")
	}
	cfg := &config.DatabaseConfig{DSN: dsn, Schema: "aipatent_test", VectorDim: 3, Timeout: 10 * time.Second}
	bunDB := NewDB(ConnectDB(cfg), false)
	t.Cleanup(func() { _ = bunDB.Close() })

	s := NewStore(bunDB, cfg)
	require.NoError(t, s.InitDB(context.Background()))
	return s
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	name := "lifecycle_paper"
	t.Cleanup(func() { _ = s.DropTable(ctx, name) })

	require.NoError(t, s.DropTable(ctx, name))
	exists, err := s.TableExists(ctx, name)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.CreateTable(ctx, name))
	records := []models.IndexedRecord{
		{ElementID: "a", Text: "phage", PageNumber: 1, Filename: "p.pdf", ChunkID: 1, Vector: []float32{1, 0, 0}},
		{ElementID: "b", Text: "biofilm", PageNumber: 2, Filename: "p.pdf", ChunkID: 2, Vector: []float32{0, 1, 0}},
		{ElementID: "c", Text: "titer", PageNumber: 3, Filename: "p.pdf", ChunkID: 3, Vector: []float32{0.9, 0.1, 0}},
	}
	require.NoError(t, s.Insert(ctx, name, records))

	count, err := s.Count(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	res, err := s.Search(ctx, name, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "phage", res[0].Text)
	assert.Equal(t, "titer", res[1].Text)

	tables, err := s.ListTables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, name)
}

func TestStoreMissingTable(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Search(context.Background(), "never_created", []float32{1, 0, 0}, 4)
	assert.True(t, errors.Is(err, corpus.ErrTableNotFound))
}
