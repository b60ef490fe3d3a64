package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBroker fans events out through Redis pub/sub so sessions held by
// different service instances see each other's broadcasts.
type RedisBroker struct {
	client *redis.Client
	prefix string

	mu   sync.Mutex
	subs map[*redisSubscription]struct{}
}

type redisEnvelope struct {
	Origin string `json:"origin,omitempty"`
	Event  Event  `json:"event"`
}

// NewRedisBroker wraps an existing client. Channel names are namespaced with prefix.
func NewRedisBroker(client *redis.Client, prefix string) *RedisBroker {
	return &RedisBroker{
		client: client,
		prefix: prefix,
		subs:   make(map[*redisSubscription]struct{}),
	}
}

// Subscribe waits for Redis to confirm the subscription before returning.
func (b *RedisBroker) Subscribe(ctx context.Context, channel string, handler Handler) (Subscription, error) {
	name := b.prefix + channel
	pubsub := b.client.Subscribe(ctx, name)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", name, err)
	}

	sub := &redisSubscription{
		broker:  b,
		id:      uuid.NewString(),
		channel: name,
		pubsub:  pubsub,
		handler: handler,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go sub.run(pubsub.Channel())
	return sub, nil
}

// Publish sends event to every subscriber of channel.
func (b *RedisBroker) Publish(ctx context.Context, channel string, event Event) error {
	return b.publish(ctx, b.prefix+channel, redisEnvelope{Event: event})
}

// Close closes every open subscription. The Redis client is owned by the caller.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	subs := make([]*redisSubscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[*redisSubscription]struct{})
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.pubsub.Close()
	}
	return nil
}

func (b *RedisBroker) publish(ctx context.Context, name string, env redisEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := b.client.Publish(ctx, name, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	return nil
}

type redisSubscription struct {
	broker  *RedisBroker
	id      string
	channel string
	pubsub  *redis.PubSub
	handler Handler
}

func (s *redisSubscription) Publish(ctx context.Context, event Event) error {
	return s.broker.publish(ctx, s.channel, redisEnvelope{Origin: s.id, Event: event})
}

func (s *redisSubscription) Close() error {
	s.broker.mu.Lock()
	delete(s.broker.subs, s)
	s.broker.mu.Unlock()
	return s.pubsub.Close()
}

func (s *redisSubscription) run(messages <-chan *redis.Message) {
	for msg := range messages {
		var env redisEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			log.Printf("realtime redis: invalid envelope channel=%s: %v", s.channel, err)
			continue
		}
		if env.Origin == s.id {
			continue
		}
		s.handler(env.Event)
	}
}
