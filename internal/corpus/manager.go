package corpus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/embedding"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

// Manager maps documents to corpus tables and keeps them populated
type Manager struct {
	backend  Backend
	embedder embeddings.Embedder
	identity string
}

func NewManager(backend Backend, embedder embeddings.Embedder, identity string) *Manager {
	if identity == "" {
		identity = config.IdentityFilename
	}
	return &Manager{backend: backend, embedder: embedder, identity: identity}
}

// TableName derives the table for a document. In content_hash mode the
// digest of content is part of the name.
func (m *Manager) TableName(filename string, content []byte) string {
	if m.identity == config.IdentityContentHash {
		return ContentHashName(filename, content)
	}
	return NormalizeFilename(filename)
}

func (m *Manager) TableExists(ctx context.Context, name string) (bool, error) {
	ok, err := m.backend.TableExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return ok, nil
}

// BuildTable replaces the named table with chunks and returns how many rows
// were stored. Zero stored rows leaves an empty table behind. Chunks are
// embedded before the old table is touched, and a failed insert drops the
// new table so a retry is not mistaken for a finished ingest.
func (m *Manager) BuildTable(ctx context.Context, name string, chunks []models.Chunk) (int, error) {
	records, err := m.embed(ctx, name, chunks)
	if err != nil {
		return 0, err
	}
	if err := m.backend.DropTable(ctx, name); err != nil {
		return 0, fmt.Errorf("failed to drop table %s: %w", name, err)
	}
	if err := m.backend.CreateTable(ctx, name); err != nil {
		m.discard(name)
		return 0, fmt.Errorf("failed to create table %s: %w", name, err)
	}
	n, err := m.store(ctx, name, records)
	if err != nil {
		m.discard(name)
		return 0, err
	}
	return n, nil
}

// AppendRows adds chunks to an existing table
func (m *Manager) AppendRows(ctx context.Context, name string, chunks []models.Chunk) (int, error) {
	exists, err := m.TableExists(ctx, name)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%s: %w", name, ErrTableNotFound)
	}
	records, err := m.embed(ctx, name, chunks)
	if err != nil {
		return 0, err
	}
	return m.store(ctx, name, records)
}

func (m *Manager) embed(ctx context.Context, name string, chunks []models.Chunk) ([]models.IndexedRecord, error) {
	kept := make([]models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.IsBlank() {
			continue
		}
		kept = append(kept, c)
	}
	if dropped := len(chunks) - len(kept); dropped > 0 {
		log.Warn().Str("table", name).Int("dropped", dropped).Msg("skipping chunks without text")
	}
	if len(kept) == 0 {
		return nil, nil
	}
	return embedding.EmbedChunks(ctx, m.embedder, kept)
}

func (m *Manager) store(ctx context.Context, name string, records []models.IndexedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := m.backend.Insert(ctx, name, records); err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", name, err)
	}
	log.Info().Str("table", name).Int("rows", len(records)).Msg("stored records")
	return len(records), nil
}

// discard removes a half-built table. It runs detached from the request
// context, which may already be cancelled.
func (m *Manager) discard(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.backend.DropTable(ctx, name); err != nil {
		log.Error().Err(err).Str("table", name).Msg("failed to drop partial table")
	}
}

// ResolveForFilename returns the table holding a previous ingest of filename.
// In content_hash mode any table for the same normalized filename matches.
func (m *Manager) ResolveForFilename(ctx context.Context, filename string) (string, bool, error) {
	name := NormalizeFilename(filename)
	exists, err := m.TableExists(ctx, name)
	if err != nil {
		return "", false, err
	}
	if exists {
		return name, true, nil
	}
	if m.identity != config.IdentityContentHash {
		return "", false, nil
	}

	tables, err := m.ListTables(ctx)
	if err != nil {
		return "", false, err
	}
	base := contentHashBase(filename)
	for _, t := range tables {
		if isHashedName(t, base) {
			return t, true, nil
		}
	}
	return "", false, nil
}

func isHashedName(table, base string) bool {
	suffix, ok := strings.CutPrefix(table, base+"_")
	if !ok || len(suffix) != hashSuffixLen {
		return false
	}
	for _, r := range suffix {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

func (m *Manager) ListTables(ctx context.Context) ([]string, error) {
	tables, err := m.backend.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	sort.Strings(tables)
	return tables, nil
}

// DropTable removes a table. Dropping a missing table yields ErrTableNotFound.
func (m *Manager) DropTable(ctx context.Context, name string) error {
	exists, err := m.TableExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", name, ErrTableNotFound)
	}
	if err := m.backend.DropTable(ctx, name); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", name, err)
	}
	return nil
}

func (m *Manager) Count(ctx context.Context, name string) (int, error) {
	return m.backend.Count(ctx, name)
}

// Search embeds query and returns the k nearest records in name
func (m *Manager) Search(ctx context.Context, name, query string, k int) ([]models.IndexedRecord, error) {
	exists, err := m.TableExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, ErrTableNotFound)
	}
	vector, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return m.backend.Search(ctx, name, vector, k)
}
