// Package expand rewrites a user query into several retrieval-oriented
// sub-queries.
package expand

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/h20-studio-tech/aipatent/internal/llmservice"
	"github.com/h20-studio-tech/aipatent/internal/metrics"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

type Expander struct {
	llm     llmservice.StructuredCompleter
	domain  string
	timeout time.Duration
}

func NewExpander(llm llmservice.StructuredCompleter, domain string, timeout time.Duration) *Expander {
	if domain == "" {
		domain = models.DefaultDomain
	}
	return &Expander{llm: llm, domain: domain, timeout: timeout}
}

// Expand asks for n sub-queries. Blank questions are removed and the list is
// cut to n; fewer than n are returned as is. Any failure yields an empty
// MultiQuery, never an error.
func (e *Expander) Expand(ctx context.Context, query string, n int) models.MultiQuery {
	if n <= 0 || strings.TrimSpace(query) == "" {
		return models.MultiQuery{}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var out models.MultiQuery
	prompt := fmt.Sprintf(models.MultiQueryPromptTemplate, n, e.domain, query)
	if err := e.llm.Complete(ctx, prompt, &out); err != nil {
		log.Warn().Err(err).Str("query", query).Msg("query expansion failed")
		metrics.ExpansionFailures.Inc()
		return models.MultiQuery{}
	}

	questions := make([]string, 0, n)
	for _, q := range out.Questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		questions = append(questions, q)
		if len(questions) == n {
			break
		}
	}
	if len(questions) < n {
		log.Debug().Int("requested", n).Int("got", len(questions)).Msg("expansion returned fewer queries")
	}
	return models.MultiQuery{Questions: questions}
}
