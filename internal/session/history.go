package session

// History is the ordered sequence of visited steps backing back-navigation.
// It is never empty: the bottom entry is always the initial step.
type History struct {
	steps []Step
}

func NewHistory(initial Step) *History {
	return &History{steps: []Step{initial}}
}

// Push appends a step unless it equals the current top, so the stack never
// holds duplicate consecutive entries.
func (h *History) Push(step Step) {
	if h.Top() == step {
		return
	}
	h.steps = append(h.steps, step)
}

// Pop removes and returns the top entry. The bottom entry is never removed.
func (h *History) Pop() (Step, bool) {
	if len(h.steps) <= 1 {
		return h.Top(), false
	}
	top := h.steps[len(h.steps)-1]
	h.steps = h.steps[:len(h.steps)-1]
	return top, true
}

func (h *History) Top() Step {
	return h.steps[len(h.steps)-1]
}

func (h *History) Len() int {
	return len(h.steps)
}

// Collapse discards everything and restarts the stack at the given step.
func (h *History) Collapse(initial Step) {
	h.steps = h.steps[:0]
	h.steps = append(h.steps, initial)
}
