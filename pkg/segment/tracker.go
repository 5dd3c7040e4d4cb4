package segment

import (
	"context"
	"sync"
)

// Tracker hands out request generations. Starting a new request cancels the
// context of the previous one, and only the newest generation is current.
type Tracker struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// Begin starts a new generation derived from parent and cancels the one
// before it.
func (t *Tracker) Begin(parent context.Context) (context.Context, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	t.gen++
	t.cancel = cancel
	return ctx, t.gen
}

// IsCurrent reports whether gen is still the newest generation.
func (t *Tracker) IsCurrent(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.gen
}

// Finish releases the context of gen if it is still current.
func (t *Tracker) Finish(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen == t.gen && t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Generation returns the newest generation number.
func (t *Tracker) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}
