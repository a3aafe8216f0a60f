package session

import (
	"strings"
	"sync"
)

// Accumulator is one growing text buffer fed by delta events. Only the
// dispatch loop writes; reads may come from any goroutine.
type Accumulator struct {
	mu  sync.RWMutex
	buf strings.Builder
}

// Append concatenates one delta fragment in arrival order.
func (a *Accumulator) Append(delta string) {
	a.mu.Lock()
	a.buf.WriteString(delta)
	a.mu.Unlock()
}

// SetFinal replaces the accumulated value with the authoritative final.
func (a *Accumulator) SetFinal(v string) {
	a.mu.Lock()
	a.buf.Reset()
	a.buf.WriteString(v)
	a.mu.Unlock()
}

// Reset clears the buffer for the next turn.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.buf.Reset()
	a.mu.Unlock()
}

func (a *Accumulator) String() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.buf.String()
}
