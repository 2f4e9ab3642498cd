package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Iron-Ham/cowork/internal/event"
)

// Redis publishes envelopes as JSON on one pub/sub channel per session,
// named prefix + session ID.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis broadcaster from a redis:// URL.
func NewRedis(ctx context.Context, redisURL, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisWithClient(client, prefix), nil
}

// NewRedisWithClient creates a Redis broadcaster from an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Channel returns the channel name for sessionID.
func (r *Redis) Channel(sessionID string) string {
	return r.prefix + sessionID
}

// Broadcast implements Broadcaster.
func (r *Redis) Broadcast(ctx context.Context, env event.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.Channel(env.SessionID), data).Err(); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}
	return nil
}

// Subscribe listens on every session channel matching sessionPattern, a
// Redis glob such as "*" or "team-*". It returns once Redis has confirmed
// the subscription.
func (r *Redis) Subscribe(ctx context.Context, sessionPattern string) (*Subscription, error) {
	ps := r.client.PSubscribe(ctx, r.prefix+sessionPattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return &Subscription{ps: ps, prefix: r.prefix}, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Subscription is an open pattern subscription.
type Subscription struct {
	ps     *redis.PubSub
	prefix string
}

// Each calls fn for every envelope received until ctx is done or the
// subscription is closed. Messages that are not envelopes are passed to
// onInvalid when it is non-nil and otherwise skipped.
func (s *Subscription) Each(ctx context.Context, fn func(event.Envelope), onInvalid func(channel string, err error)) error {
	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env event.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				if onInvalid != nil {
					onInvalid(msg.Channel, err)
				}
				continue
			}
			if env.SessionID == "" {
				env.SessionID = strings.TrimPrefix(msg.Channel, s.prefix)
			}
			fn(env)
		}
	}
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	return s.ps.Close()
}
