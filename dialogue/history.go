package dialogue

import (
	"sync"

	"github.com/dgnsrekt/troupe/agent"
)

// DefaultHistoryLimit is how many utterances a History keeps.
const DefaultHistoryLimit = 200

// History is the bounded, ordered record of a session. Only the scheduler
// writes to it.
type History struct {
	mu    sync.RWMutex
	items []agent.Utterance
	limit int
}

// NewHistory creates a history holding at most limit utterances.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

func (h *History) append(u agent.Utterance) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, u)
	if over := len(h.items) - h.limit; over > 0 {
		n := copy(h.items, h.items[over:])
		h.items = h.items[:n]
	}
}

func (h *History) reset() {
	h.mu.Lock()
	h.items = nil
	h.mu.Unlock()
}

// Snapshot returns a copy of every utterance, oldest first.
func (h *History) Snapshot() []agent.Utterance {
	return h.Recent(0)
}

// Recent returns a copy of the last n utterances. n <= 0 returns all.
func (h *History) Recent(n int) []agent.Utterance {
	h.mu.RLock()
	defer h.mu.RUnlock()
	items := h.items
	if n > 0 && len(items) > n {
		items = items[len(items)-n:]
	}
	out := make([]agent.Utterance, len(items))
	copy(out, items)
	return out
}

// Len returns the number of utterances.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}
