// Package rag retrieves context for patent section generation from the
// corpus tables and wires the ingestion pipeline together.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/corpus"
	"github.com/h20-studio-tech/aipatent/internal/metrics"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

const defaultTopK = 4

// ErrSearchFailed reports that no sub-query of a multi-query search succeeded
var ErrSearchFailed = errors.New("search failed")

// TableNotFoundError distinguishes a never ingested corpus from an empty result
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Table)
}

func (e *TableNotFoundError) Unwrap() error {
	return corpus.ErrTableNotFound
}

// Corpus is the read side of the corpus table manager
type Corpus interface {
	TableExists(ctx context.Context, name string) (bool, error)
	Search(ctx context.Context, name, query string, k int) ([]models.IndexedRecord, error)
}

type QueryExpander interface {
	Expand(ctx context.Context, query string, n int) models.MultiQuery
}

type Tracer interface {
	Dispatch(name string, input, output any) string
}

type SearchResult struct {
	Text    string                 `json:"message"`
	TraceID string                 `json:"trace_id"`
	Queries []string               `json:"questions"`
	Records []models.IndexedRecord `json:"-"`
}

type Retriever struct {
	corpus      Corpus
	expander    QueryExpander
	tracer      Tracer
	topK        int
	concurrency int
	dedupe      bool
}

func NewRetriever(corpus Corpus, expander QueryExpander, tracer Tracer, cfg *config.RAGConfig) *Retriever {
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Retriever{
		corpus:      corpus,
		expander:    expander,
		tracer:      tracer,
		topK:        topK,
		concurrency: cfg.SearchConcurrency,
		dedupe:      cfg.Dedupe,
	}
}

// Search returns up to k records of table nearest to query, most similar
// first. k <= 0 uses the configured default.
func (r *Retriever) Search(ctx context.Context, query, table string, k int) ([]models.IndexedRecord, error) {
	if k <= 0 {
		k = r.topK
	}
	if err := r.requireTable(ctx, table); err != nil {
		return nil, err
	}
	records, err := r.corpus.Search(ctx, table, query, k)
	if errors.Is(err, corpus.ErrTableNotFound) {
		return nil, &TableNotFoundError{Table: table}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", table, err)
	}
	return records, nil
}

// MultiQuerySearch expands query into n sub-queries, searches table for each
// and concatenates the hits in sub-query order. When expansion yields nothing
// the raw query is searched alone. A failing sub-query is skipped.
func (r *Retriever) MultiQuerySearch(ctx context.Context, query, table string, n int) (*SearchResult, error) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("multiquery_search").Observe(time.Since(start).Seconds())
	}()

	if err := r.requireTable(ctx, table); err != nil {
		return nil, err
	}

	expansion := r.expander.Expand(ctx, query, n)
	traceID := r.trace(query, expansion)

	queries := expansion.Questions
	if len(queries) == 0 {
		log.Warn().Str("query", query).Msg("no sub-queries generated, searching raw query")
		queries = []string{query}
	}

	perQuery := make([][]models.IndexedRecord, len(queries))
	errs := make([]error, len(queries))
	g := new(errgroup.Group)
	limit := r.concurrency
	if limit <= 0 {
		limit = len(queries)
	}
	g.SetLimit(limit)
	for i, q := range queries {
		g.Go(func() error {
			records, err := r.Search(ctx, q, table, r.topK)
			if err != nil {
				log.Warn().Err(err).Str("sub_query", q).Msg("sub-query search failed, skipping")
				errs[i] = err
				return nil
			}
			perQuery[i] = records
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(queries) {
		return nil, fmt.Errorf("all %d sub-queries failed: %w: %w", failed, ErrSearchFailed, errors.Join(errs...))
	}

	merged := make([]models.IndexedRecord, 0, len(queries)*r.topK)
	for _, records := range perQuery {
		merged = append(merged, records...)
	}
	if r.dedupe {
		merged = dedupe(merged)
	}

	log.Info().
		Str("table", table).
		Int("sub_queries", len(queries)).
		Int("records", len(merged)).
		Msg("multiquery search finished")

	return &SearchResult{
		Text:    FormatChunks(merged),
		TraceID: traceID,
		Queries: queries,
		Records: merged,
	}, nil
}

func (r *Retriever) requireTable(ctx context.Context, table string) error {
	exists, err := r.corpus.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		return &TableNotFoundError{Table: table}
	}
	return nil
}

func (r *Retriever) trace(query string, expansion models.MultiQuery) string {
	if r.tracer == nil {
		return ""
	}
	return r.tracer.Dispatch(models.MultiQueryTraceKey, query, expansion)
}

// dedupe keeps the first occurrence of each record
func dedupe(records []models.IndexedRecord) []models.IndexedRecord {
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, rec := range records {
		key := fmt.Sprintf("%d|%s|%s", rec.ChunkID, rec.ElementID, rec.Text)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// FormatChunks renders records as numbered blocks for a generation prompt
func FormatChunks(records []models.IndexedRecord) string {
	var sb strings.Builder
	for i, rec := range records {
		fmt.Fprintf(&sb, models.ChunkHeaderFormat, i+1)
		sb.WriteString(strings.TrimSpace(rec.Text))
		fmt.Fprintf(&sb, "\npage number: %d\nfilename: %s\n\n", rec.PageNumber, rec.Filename)
	}
	return sb.String()
}
