// Package events defines the engine's publish sink for lifecycle
// notifications. Delivery is best-effort: callers publish after commit and
// treat failures as log-and-continue, so a slow channel can never roll back
// a committed pairing or queue mutation.
package events

import (
	"context"
	"time"
)

// Type identifies a lifecycle event.
type Type string

const (
	// MatchFound - sent to both participants with the full pairing snapshot.
	MatchFound Type = "MATCH_FOUND"

	// QueueRemoved - sent to a user evicted from the pool, with a reason.
	QueueRemoved Type = "QUEUE_REMOVED"

	// QueueSizeChanged - broadcast with the new waiting-pool size.
	QueueSizeChanged Type = "QUEUE_SIZE_CHANGED"

	// PairingEnded - sent to both participants when their pairing ends.
	PairingEnded Type = "PAIRING_ENDED"
)

// Envelope is the wire shape of a published event.
type Envelope struct {
	Type    Type      `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Publisher is the abstract fan-out sink. Any pub/sub mechanism satisfies
// it: Redis channels in production, the in-memory recorder in tests.
type Publisher interface {
	// Publish delivers an event to a single user.
	Publish(ctx context.Context, userID uint64, event Type, payload any) error

	// Broadcast delivers an event to every connected listener.
	Broadcast(ctx context.Context, event Type, payload any) error
}
