package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces the per-learner channels.
	Prefix string
}

// RedisBus publishes learner events on one redis channel per learner.
type RedisBus struct {
	client *redis.Client
	prefix string
}

func NewRedisBus(ctx context.Context, cfg RedisConfig) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "practice:learner:"
	}
	return &RedisBus{client: client, prefix: prefix}, nil
}

func (b *RedisBus) channel(learnerID string) string { return b.prefix + learnerID }

func (b *RedisBus) Publish(ctx context.Context, learnerID string, e Event) error {
	e.LearnerID = learnerID
	if e.At.IsZero() {
		e.At = time.Now()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel(learnerID), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, learnerID string) (<-chan Event, error) {
	ps := b.client.Subscribe(ctx, b.channel(learnerID))
	// wait for the subscription confirmation so no event published after
	// Subscribe returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", learnerID, err)
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					slog.Warn("bad learner event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBus) Close() error { return b.client.Close() }
