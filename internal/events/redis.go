package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BroadcastChannel receives events addressed to every listener.
const BroadcastChannel = "events:all"

// UserChannel returns the pub/sub channel for a single user's events.
func UserChannel(userID uint64) string {
	return fmt.Sprintf("events:user:%d", userID)
}

// RedisPublisher fans events out over Redis pub/sub. Gateway instances
// subscribe to the per-user and broadcast channels and forward envelopes
// to live connections.
type RedisPublisher struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisPublisher creates a publisher on top of an existing client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, now: time.Now}
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, event Type, payload any) error {
	body, err := json.Marshal(Envelope{
		Type:    event,
		Payload: payload,
		At:      p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", event, err)
	}
	return p.client.Publish(ctx, channel, body).Err()
}

// Publish delivers an event to a single user's channel.
func (p *RedisPublisher) Publish(ctx context.Context, userID uint64, event Type, payload any) error {
	return p.publish(ctx, UserChannel(userID), event, payload)
}

// Broadcast delivers an event to the shared channel.
func (p *RedisPublisher) Broadcast(ctx context.Context, event Type, payload any) error {
	return p.publish(ctx, BroadcastChannel, event, payload)
}
