// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package gateway

import (
	"log/slog"
	"sync"
	"time"
)

// Hub fans auth events out to registered handlers. Gateway implementations
// embed one to provide OnAuthEvent.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]Handler
	logger *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets where handler panics are reported. A nil logger keeps
// the default.
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{subs: make(map[uint64]Handler), logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnAuthEvent registers handler and returns its unsubscribe handle.
func (h *Hub) OnAuthEvent(handler Handler) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.subs[id] = handler
	return &hubSubscription{hub: h, id: id}
}

// Publish delivers an event to every current handler. Handlers are called
// outside the hub lock, so they may unsubscribe themselves.
func (h *Hub) Publish(kind EventKind, user *User) {
	event := AuthEvent{Kind: kind, User: user, At: time.Now()}

	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs))
	for _, handler := range h.subs {
		handlers = append(handlers, handler)
	}
	h.mu.RUnlock()

	for _, handler := range handlers {
		h.deliver(handler, event)
	}
}

// Len returns the number of registered handlers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) deliver(handler Handler, event AuthEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("auth event handler panicked", "event", event.Kind, "panic", r)
		}
	}()
	handler(event)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

type hubSubscription struct {
	hub  *Hub
	id   uint64
	once sync.Once
}

func (s *hubSubscription) Unsubscribe() {
	s.once.Do(func() { s.hub.remove(s.id) })
}
