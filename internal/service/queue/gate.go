package queue

import "sync"

// Gate is the global admission switch, held as explicit state rather than
// a package-level flag so it injects and mocks cleanly.
type Gate struct {
	mu      sync.RWMutex
	enabled bool
}

// NewGate creates a gate in the given initial state (from config).
func NewGate(enabled bool) *Gate {
	return &Gate{enabled: enabled}
}

// Enabled reports whether admissions are currently open.
func (g *Gate) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.enabled
}

func (g *Gate) set(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = enabled
}
