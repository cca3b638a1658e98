package tutor

import "sync"

const MaxHintLevel = 3

// Hints tracks how much help was given per question within one quiz
// session. Create a fresh value (or Reset) whenever a quiz starts.
type Hints struct {
	mu     sync.Mutex
	levels map[string]int
}

func NewHints() *Hints { return &Hints{levels: map[string]int{}} }

func (h *Hints) Level(questionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.levels[questionID]
}

// Increment raises the level for a question, capped at MaxHintLevel.
func (h *Hints) Increment(questionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.levels == nil {
		h.levels = map[string]int{}
	}
	n := h.levels[questionID] + 1
	if n > MaxHintLevel {
		n = MaxHintLevel
	}
	h.levels[questionID] = n
	return n
}

func (h *Hints) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.levels = map[string]int{}
}
