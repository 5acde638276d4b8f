package events

import (
	"context"
	"sync"
)

// Recorded is a single captured event.
type Recorded struct {
	UserID    uint64 // 0 for broadcasts
	Broadcast bool
	Type      Type
	Payload   any
}

// MemoryPublisher records events in memory. Used in tests and suitable for
// single-instance deployments without Redis.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Recorded

	// FailWith, when set, is returned from every publish call. Lets tests
	// prove that publish failures never reach the caller's error path.
	FailWith error
}

// NewMemoryPublisher creates an empty recorder.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(ctx context.Context, userID uint64, event Type, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailWith != nil {
		return p.FailWith
	}
	p.events = append(p.events, Recorded{UserID: userID, Type: event, Payload: payload})
	return nil
}

func (p *MemoryPublisher) Broadcast(ctx context.Context, event Type, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailWith != nil {
		return p.FailWith
	}
	p.events = append(p.events, Recorded{Broadcast: true, Type: event, Payload: payload})
	return nil
}

// Events returns a copy of everything recorded so far.
func (p *MemoryPublisher) Events() []Recorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Recorded, len(p.events))
	copy(out, p.events)
	return out
}

// ByType filters recorded events by type.
func (p *MemoryPublisher) ByType(event Type) []Recorded {
	var out []Recorded
	for _, e := range p.Events() {
		if e.Type == event {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops everything recorded so far.
func (p *MemoryPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
