package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/h20-studio-tech/aipatent/internal/models"
)

var ErrNoAnswerModel = errors.New("no answer model configured")

// Streamer generates a reply and passes chunks to fn as they arrive
type Streamer interface {
	Stream(ctx context.Context, prompt string, fn func(ctx context.Context, chunk []byte) error) (string, error)
}

// Answer searches table for question and streams an answer grounded on the
// retrieved chunks.
func (r *Retriever) Answer(ctx context.Context, llm Streamer, question, table string, fn func(ctx context.Context, chunk []byte) error) (string, error) {
	if llm == nil {
		return "", ErrNoAnswerModel
	}
	records, err := r.Search(ctx, question, table, r.topK)
	if err != nil {
		return "", err
	}
	if fn == nil {
		fn = func(context.Context, []byte) error { return nil }
	}
	prompt := fmt.Sprintf(models.AnswerPromptTemplate, FormatChunks(records), question)
	answer, err := llm.Stream(ctx, prompt, fn)
	if err != nil {
		return "", fmt.Errorf("failed to answer: %w", err)
	}
	return answer, nil
}
