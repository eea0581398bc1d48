package trace

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/h20-studio-tech/aipatent/internal/helper"
	"github.com/h20-studio-tech/aipatent/internal/metrics"
)

const emitTimeout = 5 * time.Second

// Dispatcher hands records to a sink from a single background worker so
// callers never wait on the sink.
type Dispatcher struct {
	sink  Sink
	queue chan Record

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(sink Sink, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &Dispatcher{
		sink:  sink,
		queue: make(chan Record, buffer),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Dispatch builds a record with a fresh id and enqueues it. The id is
// returned even when the record is dropped.
func (d *Dispatcher) Dispatch(name string, input, output any) string {
	id, err := helper.GenerateUUID()
	if err != nil {
		log.Warn().Err(err).Msg("failed to generate trace id")
		return ""
	}
	d.Enqueue(Record{ID: id, Name: name, Input: input, Output: output, Timestamp: time.Now()})
	return id
}

// Enqueue drops r when the buffer is full or the dispatcher is closed
func (d *Dispatcher) Enqueue(r Record) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.TracesDropped.Inc()
		return false
	}
	select {
	case d.queue <- r:
		return true
	default:
		log.Warn().Str("trace_id", r.ID).Str("name", r.Name).Msg("trace buffer full, dropping record")
		metrics.TracesDropped.Inc()
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for r := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		if err := d.sink.Emit(ctx, r); err != nil {
			log.Warn().Err(err).Str("trace_id", r.ID).Msg("failed to emit trace")
			metrics.TracesDropped.Inc()
		}
		cancel()
	}
}

// Close stops accepting records and waits for the queue to drain or ctx to end
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
