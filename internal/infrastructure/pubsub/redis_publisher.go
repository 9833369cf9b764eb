package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"push-relay/internal/domain"
)

const DefaultChannel = "notifications.dispatched"

// RedisPublisher forwards notification records to a Redis channel so other
// services can pick them up.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher parses redisURL and verifies the server answers.
func NewRedisPublisher(ctx context.Context, redisURL, channel string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}, nil
}

func (p *RedisPublisher) Name() string { return "redis:" + p.channel }

// Deliver publishes one message per record.
func (p *RedisPublisher) Deliver(ctx context.Context, records []domain.Notification) error {
	if len(records) == 0 {
		return nil
	}

	pipe := p.client.Pipeline()
	for _, n := range records {
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal notification %s: %w", n.ID, err)
		}
		pipe.Publish(ctx, p.channel, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
