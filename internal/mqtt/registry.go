package mqtt

import (
	"sort"
	"sync"
)

// RegisteredHandler holds runtime information about a registered handler.
type RegisteredHandler struct {
	HandlerID    string
	Type         string
	HeartbeatSec int
	Topics       map[string]string // event kind -> topic
}

func (h *RegisteredHandler) clone() *RegisteredHandler {
	cpy := *h
	cpy.Topics = make(map[string]string, len(h.Topics))
	for k, v := range h.Topics {
		cpy.Topics[k] = v
	}
	return &cpy
}

// HandlerRegistry maps event kinds to the handler topics that serve them.
// When two handlers bind the same kind the later registration wins.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]*RegisteredHandler
	byEvent  map[string]string // event kind -> handler ID
}

// NewHandlerRegistry creates a new empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]*RegisteredHandler),
		byEvent:  make(map[string]string),
	}
}

// Register adds or replaces a handler and takes over its event kinds.
func (r *HandlerRegistry) Register(h *RegisteredHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(h.clone())
}

func (r *HandlerRegistry) registerLocked(h *RegisteredHandler) {
	r.unregisterLocked(h.HandlerID)
	r.handlers[h.HandlerID] = h
	for event := range h.Topics {
		if prev, ok := r.byEvent[event]; ok && prev != h.HandlerID {
			delete(r.handlers[prev].Topics, event)
		}
		r.byEvent[event] = h.HandlerID
	}
}

// Unregister removes a handler and the event kinds it served.
func (r *HandlerRegistry) Unregister(handlerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(handlerID)
}

func (r *HandlerRegistry) unregisterLocked(handlerID string) {
	h, ok := r.handlers[handlerID]
	if !ok {
		return
	}
	for event := range h.Topics {
		if r.byEvent[event] == handlerID {
			delete(r.byEvent, event)
		}
	}
	delete(r.handlers, handlerID)
}

// Get returns a copy of a handler, or nil if not found.
func (r *HandlerRegistry) Get(handlerID string) *RegisteredHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[handlerID]; ok {
		return h.clone()
	}
	return nil
}

// Exists returns true if the handler is registered.
func (r *HandlerRegistry) Exists(handlerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[handlerID]
	return ok
}

// TopicFor returns the topic serving an event kind, or empty string if none.
func (r *HandlerRegistry) TopicFor(event string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEvent[event]
	if !ok {
		return ""
	}
	return r.handlers[id].Topics[event]
}

// HandlerFor returns the ID of the handler serving an event kind.
func (r *HandlerRegistry) HandlerFor(event string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byEvent[event]
}

// Events returns the served event kinds, sorted.
func (r *HandlerRegistry) Events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byEvent))
	for e := range r.byEvent {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// All returns copies of all registered handlers ordered by ID.
func (r *HandlerRegistry) All() []*RegisteredHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*RegisteredHandler, 0, len(r.handlers))
	for _, h := range r.handlers {
		result = append(result, h.clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].HandlerID < result[j].HandlerID })
	return result
}

// RegisterFromPayload registers the handler described by a registration
// payload and returns what was stored.
func (r *HandlerRegistry) RegisterFromPayload(payload *RegistrationPayload) *RegisteredHandler {
	h := &RegisteredHandler{
		HandlerID:    payload.Handler.ID,
		Type:         payload.Handler.Type,
		HeartbeatSec: payload.Handler.HeartbeatSec,
		Topics:       make(map[string]string, len(payload.Events)),
	}
	for _, b := range payload.Events {
		h.Topics[b.Event] = b.Topic
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(h)
	return h.clone()
}

// Len returns the number of registered handlers.
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Clear removes all handlers from the registry.
func (r *HandlerRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string]*RegisteredHandler)
	r.byEvent = make(map[string]string)
}
