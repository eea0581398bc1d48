// Package partition turns raw documents into ordered chunks, skipping the
// partition service entirely for documents that are already indexed.
package partition

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/helper"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

var ErrEmptyDocument = errors.New("document is empty")

// PartitionError wraps any failure that prevents a document from being chunked
type PartitionError struct {
	Filename string
	Err      error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("failed to partition %s: %v", e.Filename, e.Err)
}

func (e *PartitionError) Unwrap() error {
	return e.Err
}

// Service splits a document into elements
type Service interface {
	Partition(ctx context.Context, content []byte, filename string, opts models.PartitionOptions) ([]models.Element, error)
}

// Corpus is the part of the table manager the adapter needs
type Corpus interface {
	TableName(filename string, content []byte) string
	TableExists(ctx context.Context, name string) (bool, error)
}

type Result struct {
	TableName      string
	Chunks         []models.Chunk
	AlreadyIndexed bool
}

type Adapter struct {
	service     Service
	corpus      Corpus
	opts        models.PartitionOptions
	artifactDir string
	timeout     time.Duration
}

func NewAdapter(service Service, corpus Corpus, cfg *config.PartitionConfig) *Adapter {
	return &Adapter{
		service:     service,
		corpus:      corpus,
		opts:        Options(cfg),
		artifactDir: cfg.ArtifactDir,
		timeout:     cfg.Timeout,
	}
}

// Options maps the partition config onto service options
func Options(cfg *config.PartitionConfig) models.PartitionOptions {
	return models.PartitionOptions{
		Strategy:            cfg.Strategy,
		ChunkingStrategy:    cfg.ChunkingStrategy,
		CombineUnderNChars:  cfg.CombineUnderNChars,
		MaxCharacters:       cfg.MaxCharacters,
		Overlap:             cfg.Overlap,
		Languages:           cfg.Languages,
		SplitPDFPage:        cfg.SplitPDFPage,
		SplitPDFAllowFailed: cfg.SplitPDFAllowFailed,
		SplitPDFConcurrency: cfg.SplitPDFConcurrency,
		SimilarityThreshold: cfg.SimilarityThreshold,
	}
}

// Partition returns the chunks of a document in service emission order with
// chunk ids 1..N. If the document already has a corpus table no service call
// is made.
func (a *Adapter) Partition(ctx context.Context, content []byte, filename string) (*Result, error) {
	if len(content) == 0 {
		return nil, &PartitionError{Filename: filename, Err: ErrEmptyDocument}
	}

	table := a.corpus.TableName(filename, content)
	exists, err := a.corpus.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if exists {
		log.Info().Str("filename", filename).Str("table", table).Msg("document already indexed, skipping partition")
		return &Result{TableName: table, AlreadyIndexed: true}, nil
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	elements, err := a.service.Partition(callCtx, content, filename, a.opts)
	if err != nil {
		return nil, &PartitionError{Filename: filename, Err: err}
	}

	chunks := ToChunks(elements, filepath.Base(filename))
	log.Info().
		Str("filename", filename).
		Int("chunks", len(chunks)).
		Dur("took", time.Since(start)).
		Msg("partitioned document")

	a.writeArtifact(table, chunks)

	return &Result{TableName: table, Chunks: chunks}, nil
}

// ToChunks assigns running chunk ids in element order
func ToChunks(elements []models.Element, filename string) []models.Chunk {
	chunks := make([]models.Chunk, len(elements))
	for i, el := range elements {
		name := el.Metadata.Filename
		if name == "" {
			name = filename
		}
		chunks[i] = models.Chunk{
			ElementID:  el.ElementID,
			Text:       el.Text,
			PageNumber: el.Metadata.PageNumber,
			Filename:   name,
			ChunkID:    i + 1,
		}
	}
	return chunks
}

func (a *Adapter) writeArtifact(table string, chunks []models.Chunk) {
	if a.artifactDir == "" {
		return
	}
	if err := helper.CreateFolder(a.artifactDir); err != nil {
		log.Warn().Err(err).Msg("failed to create artifact dir")
		return
	}
	path := filepath.Join(a.artifactDir, table+".json")
	if err := helper.WriteJSON(path, chunks); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to write partition artifact")
		return
	}
	log.Debug().Str("path", path).Msg("wrote partition artifact")
}
