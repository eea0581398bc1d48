package trace

import (
	"sync"

	"github.com/h20-studio-tech/aipatent/internal/models"
)

// Handles links generation steps of one drafting session to the trace of
// the search that fed them.
type Handles struct {
	mu  sync.Mutex
	ids map[models.GenerationStep]string
}

func NewHandles() *Handles {
	return &Handles{ids: make(map[models.GenerationStep]string)}
}

func (h *Handles) Set(step models.GenerationStep, id string) {
	if step == models.StepUnknown || id == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids[step] = id
}

func (h *Handles) Get(step models.GenerationStep) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.ids[step]
	return id, ok
}

// Snapshot returns a copy keyed by step name
func (h *Handles) Snapshot() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]string, len(h.ids))
	for step, id := range h.ids {
		out[step.String()] = id
	}
	return out
}
