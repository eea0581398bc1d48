package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h20-studio-tech/aipatent/internal/models"
)

type fakeLLM struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeLLM) Complete(_ context.Context, prompt string, out any) error {
	f.prompt = prompt
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), out)
}

func TestExtract(t *testing.T) {
	llm := &fakeLLM{reply: `{"method":["plaque assay"," "],"hypothetical_questions":["How do phages lyse biofilms?"],"keywords":["phage","biofilm"]}`}
	e := NewExtractor(llm, 0)

	out, err := e.Extract(context.Background(), []models.Chunk{{Text: "Phage lysis of biofilms."}, {Text: "  "}})
	require.NoError(t, err)
	assert.Equal(t, []string{"plaque assay"}, out.Methods)
	assert.Equal(t, []string{"How do phages lyse biofilms?"}, out.HypotheticalQuestions)
	assert.Equal(t, []string{"phage", "biofilm"}, out.Keywords)
	assert.Contains(t, llm.prompt, "Phage lysis of biofilms.")
}

func TestExtractBudget(t *testing.T) {
	llm := &fakeLLM{reply: `{}`}
	e := NewExtractor(llm, 10)

	_, err := e.Extract(context.Background(), []models.Chunk{{Text: strings.Repeat("a", 8)}, {Text: strings.Repeat("b", 8)}})
	require.NoError(t, err)
	assert.Contains(t, llm.prompt, strings.Repeat("a", 8))
	assert.NotContains(t, llm.prompt, strings.Repeat("b", 3))
}

func TestExtractErrors(t *testing.T) {
	e := NewExtractor(&fakeLLM{err: errors.New("timeout")}, 0)

	_, err := e.Extract(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = e.Extract(context.Background(), []models.Chunk{{Text: "text"}})
	assert.ErrorContains(t, err, "timeout")
}
