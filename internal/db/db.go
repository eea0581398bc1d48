package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/corpus"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

// tableComment marks tables owned by the corpus manager
const tableComment = "aipatent corpus table"

// maxIdentLen is the postgres NAMEDATALEN limit; longer identifiers are
// silently truncated by the server.
const maxIdentLen = 63

type Document struct {
	bun.BaseModel `bun:"alias:d"`
	ID            int64           `bun:"id,pk,autoincrement"`
	ElementID     string          `bun:"element_id,notnull"`
	Text          string          `bun:"text,notnull"`
	PageNumber    int             `bun:"page_number,notnull"`
	Filename      string          `bun:"filename,notnull"`
	ChunkID       int             `bun:"chunk_id,notnull"`
	Vector        pgvector.Vector `bun:"vector,notnull,type:vector"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DatabaseConfig) *sql.DB {
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, pgdriver.WithTimeout(cfg.Timeout))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...))
}

// Store keeps one pgvector table per document inside a schema
type Store struct {
	db     *bun.DB
	schema string
	dim    int
}

func NewStore(db *bun.DB, cfg *config.DatabaseConfig) *Store {
	return &Store{db: db, schema: cfg.Schema, dim: cfg.VectorDim}
}

var _ corpus.Backend = (*Store)(nil)

// InitDB makes sure the vector extension and the schema exist
func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.NewRaw("CREATE EXTENSION IF NOT EXISTS vector").Exec(ctx); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	if _, err := s.db.NewRaw("CREATE SCHEMA IF NOT EXISTS ?", bun.Safe(pq.QuoteIdentifier(s.schema))).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// table returns the quoted, schema qualified table name
func (s *Store) table(name string) bun.Safe {
	return bun.Safe(pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(name))
}

// indexName derives a fixed length index identifier so long table names
// never push it past maxIdentLen.
func indexName(table string) string {
	sum := sha256.Sum256([]byte(table))
	return "vidx_" + hex.EncodeToString(sum[:])[:24]
}

func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.NewRaw(
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = ? AND table_name = ?)",
		s.schema, name,
	).Scan(ctx, &exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) CreateTable(ctx context.Context, name string) error {
	if len(name) > maxIdentLen {
		return fmt.Errorf("table name %q exceeds %d bytes", name, maxIdentLen)
	}
	table := s.table(name)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewCreateTable().Model((*Document)(nil)).ModelTableExpr("?", table).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("ALTER TABLE ? ALTER COLUMN vector TYPE vector(?)", table, bun.Safe(strconv.Itoa(s.dim))).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("COMMENT ON TABLE ? IS ?", table, tableComment).Exec(ctx); err != nil {
			return err
		}
		index := bun.Safe(pq.QuoteIdentifier(indexName(name)))
		if _, err := tx.NewRaw("CREATE INDEX ? ON ? USING hnsw (vector vector_cosine_ops)", index, table).Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}

func (s *Store) DropTable(ctx context.Context, name string) error {
	_, err := s.db.NewDropTable().TableExpr("?", s.table(name)).IfExists().Exec(ctx)
	return err
}

func (s *Store) Insert(ctx context.Context, name string, records []models.IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]Document, len(records))
	for i, r := range records {
		docs[i] = Document{
			ElementID:  r.ElementID,
			Text:       sanitizeUTF8(r.Text),
			PageNumber: r.PageNumber,
			Filename:   r.Filename,
			ChunkID:    r.ChunkID,
			Vector:     pgvector.NewVector(r.Vector),
		}
	}
	_, err := s.db.NewInsert().Model(&docs).ModelTableExpr("?", s.table(name)).Exec(ctx)
	return err
}

func (s *Store) Count(ctx context.Context, name string) (int, error) {
	exists, err := s.TableExists(ctx, name)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%s: %w", name, corpus.ErrTableNotFound)
	}
	return s.db.NewSelect().TableExpr("?", s.table(name)).Count(ctx)
}

// Search orders by cosine distance, closest first
func (s *Store) Search(ctx context.Context, name string, vector []float32, k int) ([]models.IndexedRecord, error) {
	exists, err := s.TableExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, corpus.ErrTableNotFound)
	}

	var docs []Document
	err = s.db.NewSelect().
		Model(&docs).
		ModelTableExpr("? AS d", s.table(name)).
		Column("element_id", "text", "page_number", "filename", "chunk_id", "vector").
		OrderExpr("vector <=> ?", pgvector.NewVector(vector)).
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]models.IndexedRecord, len(docs))
	for i, d := range docs {
		records[i] = models.IndexedRecord{
			ElementID:  d.ElementID,
			Text:       d.Text,
			PageNumber: d.PageNumber,
			Filename:   d.Filename,
			ChunkID:    d.ChunkID,
			Vector:     d.Vector.Slice(),
		}
	}
	return records, nil
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.NewRaw(`SELECT c.relname FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = ? AND c.relkind = 'r' AND obj_description(c.oid, 'pg_class') = ?`,
		s.schema, tableComment,
	).Scan(ctx, &names)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("tables", len(names)).Str("schema", s.schema).Msg("listed corpus tables")
	return names, nil
}
