package expand

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h20-studio-tech/aipatent/internal/metrics"
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

func TestExpand(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		n     int
		want  []string
	}{
		{"exact", `{"questions":["a","b","c"]}`, 3, []string{"a", "b", "c"}},
		{"truncated", `{"questions":["a","b","c","d"]}`, 2, []string{"a", "b"}},
		{"fewer accepted", `{"questions":["a"]}`, 3, []string{"a"}},
		{"blanks removed", `{"questions":[" a ","","  ","b"]}`, 3, []string{"a", "b"}},
		{"empty list", `{"questions":[]}`, 3, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExpander(&fakeLLM{reply: tt.reply}, "", 0)
			mq := e.Expand(context.Background(), "mechanism of action", tt.n)
			assert.Equal(t, tt.want, mq.Questions)
		})
	}
}

func TestExpandPrompt(t *testing.T) {
	llm := &fakeLLM{reply: `{"questions":["a"]}`}
	e := NewExpander(llm, "microbiology paper", 0)
	e.Expand(context.Background(), "mechanism of action", 3)

	assert.Contains(t, llm.prompt, "Generate 3 search queries")
	assert.Contains(t, llm.prompt, "microbiology paper")
	assert.Contains(t, llm.prompt, "mechanism of action")
}

func TestExpandFailureDegrades(t *testing.T) {
	before := testutil.ToFloat64(metrics.ExpansionFailures)

	e := NewExpander(&fakeLLM{err: errors.New("bad json")}, "", 0)
	mq := e.Expand(context.Background(), "mechanism of action", 3)

	require.Empty(t, mq.Questions)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ExpansionFailures))
}
