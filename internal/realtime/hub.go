package realtime

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"classroom-chat/internal/observability"
)

const defaultQueueSize = 256

// Hub is an in-process Broker. Every subscriber owns a buffered queue drained
// by its own goroutine, so handlers never run on the publisher's goroutine.
type Hub struct {
	channels  map[string]map[*hubSubscription]struct{}
	queueSize int
	closed    bool
	dropped   atomic.Uint64
	mu        sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return NewHubWithQueueSize(defaultQueueSize)
}

// NewHubWithQueueSize creates a hub whose subscribers buffer up to size events.
func NewHubWithQueueSize(size int) *Hub {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Hub{
		channels:  make(map[string]map[*hubSubscription]struct{}),
		queueSize: size,
	}
}

// Subscribe registers handler on channel.
func (h *Hub) Subscribe(ctx context.Context, channel string, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &hubSubscription{
		hub:     h,
		channel: channel,
		handler: handler,
		queue:   make(chan Event, h.queueSize),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*hubSubscription]struct{})
	}
	h.channels[channel][sub] = struct{}{}
	h.mu.Unlock()

	go sub.run()
	return sub, nil
}

// Publish sends event to every subscriber of channel.
func (h *Hub) Publish(_ context.Context, channel string, event Event) error {
	return h.publish(channel, event, nil)
}

// Subscribers reports the number of live subscriptions on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Dropped reports how many deliveries were discarded because a subscriber's
// queue was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close drops every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	subs := make([]*hubSubscription, 0)
	for _, set := range h.channels {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	h.channels = make(map[string]map[*hubSubscription]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	return nil
}

func (h *Hub) publish(channel string, event Event, origin *hubSubscription) error {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrBrokerClosed
	}
	targets := make([]*hubSubscription, 0, len(h.channels[channel]))
	for sub := range h.channels[channel] {
		if sub != origin {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.queue <- event:
		default:
			log.Printf("realtime hub queue full, dropping event channel=%s type=%s", channel, event.Type)
			h.dropped.Add(1)
			observability.IncBroadcastDropped()
		}
	}
	return nil
}

func (h *Hub) remove(sub *hubSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.channels[sub.channel]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.channels, sub.channel)
		}
	}
}

type hubSubscription struct {
	hub      *Hub
	channel  string
	handler  Handler
	queue    chan Event
	done     chan struct{}
	stopOnce sync.Once
}

func (s *hubSubscription) Publish(_ context.Context, event Event) error {
	return s.hub.publish(s.channel, event, s)
}

func (s *hubSubscription) Close() error {
	s.hub.remove(s)
	s.stop()
	return nil
}

func (s *hubSubscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *hubSubscription) run() {
	for {
		select {
		case <-s.done:
			return
		case event := <-s.queue:
			s.handler(event)
		}
	}
}
