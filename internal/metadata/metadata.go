// Package metadata pulls document level descriptors (methods, questions the
// document answers, keywords) out of the first chunks of a document.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/h20-studio-tech/aipatent/internal/llmservice"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

const defaultMaxChars = 8000

var ErrNoContent = errors.New("no content to extract metadata from")

type Extractor struct {
	llm      llmservice.StructuredCompleter
	maxChars int
}

func NewExtractor(llm llmservice.StructuredCompleter, maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Extractor{llm: llm, maxChars: maxChars}
}

func (e *Extractor) Extract(ctx context.Context, chunks []models.Chunk) (*models.Extraction, error) {
	excerpt := e.excerpt(chunks)
	if excerpt == "" {
		return nil, ErrNoContent
	}

	var out models.Extraction
	if err := e.llm.Complete(ctx, fmt.Sprintf(models.MetadataPromptTemplate, excerpt), &out); err != nil {
		return nil, fmt.Errorf("failed to extract metadata: %w", err)
	}
	out.Methods = clean(out.Methods)
	out.HypotheticalQuestions = clean(out.HypotheticalQuestions)
	out.Keywords = clean(out.Keywords)

	log.Debug().
		Int("methods", len(out.Methods)).
		Int("questions", len(out.HypotheticalQuestions)).
		Int("keywords", len(out.Keywords)).
		Msg("extracted document metadata")
	return &out, nil
}

// excerpt joins chunk texts until the character budget is reached
func (e *Extractor) excerpt(chunks []models.Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		remaining := e.maxChars - sb.Len()
		if remaining <= 0 {
			break
		}
		if len(text) > remaining {
			text = strings.ToValidUTF8(text[:remaining], "")
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

func clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
