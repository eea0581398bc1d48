// Package trace records LLM generations (sub-query expansions and the like)
// so downstream generation steps can be linked back to them.
package trace

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// Record is one traced generation
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Input     any       `json:"input"`
	Output    any       `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

type Sink interface {
	Emit(ctx context.Context, r Record) error
}

// LogSink writes records to the global logger
type LogSink struct{}

func (LogSink) Emit(_ context.Context, r Record) error {
	output, err := json.Marshal(r.Output)
	if err != nil {
		return err
	}
	log.Info().
		Str("trace_id", r.ID).
		Str("name", r.Name).
		Interface("input", r.Input).
		RawJSON("output", output).
		Time("timestamp", r.Timestamp).
		Msg("trace")
	return nil
}

// NopSink discards records
type NopSink struct{}

func (NopSink) Emit(context.Context, Record) error { return nil }
