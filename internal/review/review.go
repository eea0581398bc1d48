// Package review filters partitioned chunks through an LLM relevance check
// before they are indexed.
package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/llmservice"
	"github.com/h20-studio-tech/aipatent/internal/metrics"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

var ErrMissingVerdict = errors.New("review response has no relevant field")

type verdict struct {
	Relevant *bool `json:"relevant"`
}

// Report is the outcome of a review pass. Reviewed keeps the input order and
// holds only chunks whose review completed.
type Report struct {
	Reviewed []models.ReviewedChunk
	Failed   int
}

// Relevant returns the chunks marked relevant, in order
func (r Report) Relevant() []models.Chunk {
	out := make([]models.Chunk, 0, len(r.Reviewed))
	for _, rc := range r.Reviewed {
		if rc.Relevant {
			out = append(out, rc.Chunk)
		}
	}
	return out
}

type Filter struct {
	llm         llmservice.StructuredCompleter
	enabled     bool
	concurrency int64
	timeout     time.Duration

	// OnProgress is called after each chunk settles
	OnProgress func(done, total int)
}

func NewFilter(llm llmservice.StructuredCompleter, cfg *config.ReviewConfig) *Filter {
	concurrency := int64(cfg.Concurrency)
	if concurrency <= 0 {
		concurrency = 20
	}
	return &Filter{
		llm:         llm,
		enabled:     cfg.Enabled,
		concurrency: concurrency,
		timeout:     cfg.Timeout,
	}
}

// ReviewAll judges every chunk concurrently. A review that fails or times out
// drops its chunk and is counted in Report.Failed; it never aborts the pass.
// Cancelling ctx does not cancel reviews already in flight.
func (f *Filter) ReviewAll(ctx context.Context, chunks []models.Chunk) Report {
	if !f.enabled {
		return passThrough(chunks)
	}

	type outcome struct {
		relevant bool
		ok       bool
	}
	outcomes := make([]outcome, len(chunks))

	detached := context.WithoutCancel(ctx)
	sem := semaphore.NewWeighted(f.concurrency)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for i, c := range chunks {
		if c.IsBlank() {
			outcomes[i] = outcome{relevant: false, ok: true}
			f.progress(&mu, &done, len(chunks))
			continue
		}
		// the detached context is never cancelled so Acquire only blocks
		_ = sem.Acquire(detached, 1)
		wg.Add(1)
		go func(i int, c models.Chunk) {
			defer wg.Done()
			defer sem.Release(1)

			relevant, err := f.review(detached, c)
			if err != nil {
				log.Warn().Err(err).Int("chunk_id", c.ChunkID).Msg("chunk review failed, dropping chunk")
				metrics.ChunksReviewed.WithLabelValues(metrics.VerdictFailed).Inc()
			} else {
				outcomes[i] = outcome{relevant: relevant, ok: true}
				if relevant {
					metrics.ChunksReviewed.WithLabelValues(metrics.VerdictRelevant).Inc()
				} else {
					metrics.ChunksReviewed.WithLabelValues(metrics.VerdictIrrelevant).Inc()
				}
			}
			f.progress(&mu, &done, len(chunks))
		}(i, c)
	}
	wg.Wait()

	report := Report{Reviewed: make([]models.ReviewedChunk, 0, len(chunks))}
	for i, o := range outcomes {
		if !o.ok {
			report.Failed++
			continue
		}
		report.Reviewed = append(report.Reviewed, models.ReviewedChunk{Chunk: chunks[i], Relevant: o.relevant})
	}

	log.Info().
		Int("chunks", len(chunks)).
		Int("relevant", len(report.Relevant())).
		Int("failed", report.Failed).
		Msg("chunk review finished")
	return report
}

func (f *Filter) review(ctx context.Context, c models.Chunk) (bool, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	var v verdict
	if err := f.llm.Complete(ctx, fmt.Sprintf(models.ChunkReviewPromptTemplate, c.Text), &v); err != nil {
		return false, err
	}
	if v.Relevant == nil {
		return false, ErrMissingVerdict
	}
	return *v.Relevant, nil
}

func (f *Filter) progress(mu *sync.Mutex, done *int, total int) {
	if f.OnProgress == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	*done++
	f.OnProgress(*done, total)
}

func passThrough(chunks []models.Chunk) Report {
	report := Report{Reviewed: make([]models.ReviewedChunk, len(chunks))}
	for i, c := range chunks {
		report.Reviewed[i] = models.ReviewedChunk{Chunk: c, Relevant: !c.IsBlank()}
	}
	return report
}
