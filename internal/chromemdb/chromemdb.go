package chromemdb

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/corpus"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

// meta data keys stored with every document
const (
	metaElementID  = "element_id"
	metaPageNumber = "page_number"
	metaFilename   = "filename"
	metaChunkID    = "chunk_id"
)

// VectorDBManager stores each corpus table as a chromem collection
type VectorDBManager struct {
	db            *chromem.DB
	embed         chromem.EmbeddingFunc
	dbPath        string
	compress      bool
	encryptionKey string
	exportDir     string
}

// NewVectorDBManager opens a persistent database at cfg.Path, or an in-memory one
func NewVectorDBManager(cfg *config.VectorDBConfig, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	exportDir := cfg.ExportDir
	if exportDir == "" {
		exportDir = cfg.Path
	}
	return &VectorDBManager{
		db:            db,
		embed:         embed,
		dbPath:        cfg.Path,
		compress:      cfg.Compress,
		encryptionKey: cfg.EncryptionKey,
		exportDir:     exportDir,
	}, nil
}

var _ corpus.Backend = (*VectorDBManager)(nil)

func (m *VectorDBManager) TableExists(_ context.Context, name string) (bool, error) {
	return m.db.GetCollection(name, m.embed) != nil, nil
}

func (m *VectorDBManager) CreateTable(_ context.Context, name string) error {
	meta := map[string]string{"created_at": time.Now().UTC().Format(time.RFC3339)}
	if _, err := m.db.CreateCollection(name, meta, m.embed); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// DropTable is a no-op for missing collections
func (m *VectorDBManager) DropTable(_ context.Context, name string) error {
	if err := m.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// add multiple documents
func (m *VectorDBManager) Insert(ctx context.Context, name string, records []models.IndexedRecord) error {
	c := m.db.GetCollection(name, m.embed)
	if c == nil {
		return fmt.Errorf("%s: %w", name, corpus.ErrTableNotFound)
	}
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        documentID(r),
			Content:   r.Text,
			Embedding: r.Vector,
			Metadata: map[string]string{
				metaElementID:  r.ElementID,
				metaPageNumber: strconv.Itoa(r.PageNumber),
				metaFilename:   r.Filename,
				metaChunkID:    strconv.Itoa(r.ChunkID),
			},
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (m *VectorDBManager) Count(_ context.Context, name string) (int, error) {
	c := m.db.GetCollection(name, m.embed)
	if c == nil {
		return 0, fmt.Errorf("%s: %w", name, corpus.ErrTableNotFound)
	}
	return c.Count(), nil
}

func (m *VectorDBManager) Search(ctx context.Context, name string, vector []float32, k int) ([]models.IndexedRecord, error) {
	c := m.db.GetCollection(name, m.embed)
	if c == nil {
		return nil, fmt.Errorf("%s: %w", name, corpus.ErrTableNotFound)
	}
	// chromem rejects k larger than the collection
	if n := c.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := c.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	records := make([]models.IndexedRecord, len(results))
	for i, res := range results {
		records[i] = toRecord(res)
	}
	return records, nil
}

func (m *VectorDBManager) ListTables(_ context.Context) ([]string, error) {
	collections := m.db.ListCollections()
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	return names, nil
}

// Export writes the named collection to an encrypted file and returns its path
func (m *VectorDBManager) Export(_ context.Context, name string) (string, error) {
	if m.encryptionKey == "" {
		return "", fmt.Errorf("encryption key is required")
	}
	if m.db.GetCollection(name, m.embed) == nil {
		return "", fmt.Errorf("%s: %w", name, corpus.ErrTableNotFound)
	}

	path := m.exportPath(name)
	log.Debug().Str("collection", name).Str("path", path).Bool("compress", m.compress).Msg("exporting collection")
	if err := m.db.ExportToFile(path, m.compress, m.encryptionKey, name); err != nil {
		return "", fmt.Errorf("failed to export database: %w", err)
	}
	return path, nil
}

// import from file
func (m *VectorDBManager) Import(_ context.Context, path string) error {
	if err := m.db.ImportFromFile(path, m.encryptionKey); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	return nil
}

func (m *VectorDBManager) exportPath(name string) string {
	file := name + ".gob"
	if m.compress {
		file += ".gz"
	}
	return filepath.Join(m.exportDir, file+".enc")
}

func documentID(r models.IndexedRecord) string {
	return fmt.Sprintf("%06d-%s", r.ChunkID, r.ElementID)
}

func toRecord(res chromem.Result) models.IndexedRecord {
	page, _ := strconv.Atoi(res.Metadata[metaPageNumber])
	chunkID, _ := strconv.Atoi(res.Metadata[metaChunkID])
	return models.IndexedRecord{
		ElementID:  res.Metadata[metaElementID],
		Text:       res.Content,
		PageNumber: page,
		Filename:   res.Metadata[metaFilename],
		ChunkID:    chunkID,
		Vector:     res.Embedding,
	}
}
