package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/h20-studio-tech/aipatent/internal/corpus"
	"github.com/h20-studio-tech/aipatent/internal/metrics"
	"github.com/h20-studio-tech/aipatent/internal/models"
	"github.com/h20-studio-tech/aipatent/internal/partition"
	"github.com/h20-studio-tech/aipatent/internal/review"
)

type IngestStatus string

const (
	StatusProcessed        IngestStatus = "processed"
	StatusAlreadyProcessed IngestStatus = "already_processed"
	StatusEmpty            IngestStatus = "empty"
)

type IngestResult struct {
	Status      IngestStatus       `json:"status"`
	TableName   string             `json:"table"`
	Partitioned int                `json:"partitioned"`
	Reviewed    int                `json:"reviewed"`
	Failed      int                `json:"failed"`
	Stored      int                `json:"stored"`
	Metadata    *models.Extraction `json:"metadata,omitempty"`
}

type Partitioner interface {
	Partition(ctx context.Context, content []byte, filename string) (*partition.Result, error)
}

type Reviewer interface {
	ReviewAll(ctx context.Context, chunks []models.Chunk) review.Report
}

type MetadataExtractor interface {
	Extract(ctx context.Context, chunks []models.Chunk) (*models.Extraction, error)
}

// Engine runs ingestion (partition, review, index) and section queries
type Engine struct {
	partitioner Partitioner
	reviewer    Reviewer
	corpus      *corpus.Manager
	retriever   *Retriever
	extractor   MetadataExtractor
	answerer    Streamer
	queries     int
}

type EngineOption func(*Engine)

// WithExtractor enables metadata extraction after each successful build
func WithExtractor(e MetadataExtractor) EngineOption {
	return func(en *Engine) { en.extractor = e }
}

func WithAnswerer(s Streamer) EngineOption {
	return func(en *Engine) { en.answerer = s }
}

func NewEngine(p Partitioner, r Reviewer, c *corpus.Manager, retriever *Retriever, queries int, opts ...EngineOption) *Engine {
	if queries <= 0 {
		queries = 3
	}
	e := &Engine{
		partitioner: p,
		reviewer:    r,
		corpus:      c,
		retriever:   retriever,
		queries:     queries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ingest indexes a document unless a table for it already exists. A build
// that stores nothing is reported as StatusEmpty, not as an error.
func (e *Engine) Ingest(ctx context.Context, content []byte, filename string) (*IngestResult, error) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("ingest").Observe(time.Since(start).Seconds())
	}()

	part, err := e.partitioner.Partition(ctx, content, filename)
	if err != nil {
		return nil, err
	}
	if part.AlreadyIndexed {
		return &IngestResult{Status: StatusAlreadyProcessed, TableName: part.TableName}, nil
	}
	metrics.ChunksPartitioned.Add(float64(len(part.Chunks)))

	report := e.reviewer.ReviewAll(ctx, part.Chunks)
	relevant := report.Relevant()

	stored, err := e.corpus.BuildTable(ctx, part.TableName, relevant)
	if err != nil {
		return nil, fmt.Errorf("failed to build table: %w", err)
	}
	metrics.RecordsStored.Add(float64(stored))

	res := &IngestResult{
		Status:      StatusProcessed,
		TableName:   part.TableName,
		Partitioned: len(part.Chunks),
		Reviewed:    len(report.Reviewed),
		Failed:      report.Failed,
		Stored:      stored,
	}
	if stored == 0 {
		log.Warn().
			Str("filename", filename).
			Str("table", part.TableName).
			Int("partitioned", res.Partitioned).
			Msg("no records stored, every chunk was rejected or blank")
		res.Status = StatusEmpty
		return res, nil
	}

	if e.extractor != nil {
		meta, err := e.extractor.Extract(ctx, relevant)
		if err != nil {
			log.Warn().Err(err).Str("table", part.TableName).Msg("metadata extraction failed")
		} else {
			res.Metadata = meta
		}
	}

	log.Info().
		Str("filename", filename).
		Str("table", res.TableName).
		Int("partitioned", res.Partitioned).
		Int("failed", res.Failed).
		Int("stored", res.Stored).
		Msg("document ingested")
	return res, nil
}

// Query runs a multi-query search against target, which may be either the
// uploaded filename or the table name. Callers keep the returned trace id
// per step for their own session.
func (e *Engine) Query(ctx context.Context, text, target string, step models.GenerationStep) (*SearchResult, error) {
	table, err := e.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	res, err := e.retriever.MultiQuerySearch(ctx, text, table, e.queries)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("step", step.String()).Str("trace_id", res.TraceID).Msg("query traced")
	return res, nil
}

// Answer streams an LLM answer to question grounded on target
func (e *Engine) Answer(ctx context.Context, question, target string, fn func(ctx context.Context, chunk []byte) error) (string, error) {
	table, err := e.resolve(ctx, target)
	if err != nil {
		return "", err
	}
	return e.retriever.Answer(ctx, e.answerer, question, table, fn)
}

func (e *Engine) Tables(ctx context.Context) ([]string, error) {
	return e.corpus.ListTables(ctx)
}

func (e *Engine) Drop(ctx context.Context, name string) error {
	return e.corpus.DropTable(ctx, name)
}

func (e *Engine) resolve(ctx context.Context, target string) (string, error) {
	table, ok, err := e.corpus.ResolveForFilename(ctx, target)
	if err != nil {
		return "", err
	}
	if ok {
		return table, nil
	}
	return target, nil
}
