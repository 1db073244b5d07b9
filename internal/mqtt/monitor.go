package mqtt

import (
	"sort"
	"sync"
	"time"

	"github.com/AaronLay10/SentientDialogue/internal/events"
)

// HandlerState tracks a registered handler's health.
type HandlerState struct {
	HandlerID    string
	LastSeen     time.Time
	HeartbeatSec int
	Events       []string
	Connected    bool
}

// Monitor admits handler registrations into a registry and drops handlers
// whose registrations stop arriving.
type Monitor struct {
	mu        sync.RWMutex
	registry  *HandlerRegistry
	handlers  map[string]*HandlerState
	required  []string
	tolerance float64 // multiplier for heartbeat interval (e.g., 2.0 = 2x heartbeat)
	now       func() time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewMonitor creates a new handler monitor. tolerance is the multiplier for
// the heartbeat interval before a handler is considered gone.
func NewMonitor(registry *HandlerRegistry, required []string, tolerance float64) *Monitor {
	if tolerance <= 1.0 {
		tolerance = 2.0 // default: miss 1 heartbeat
	}
	return &Monitor{
		registry:  registry,
		handlers:  make(map[string]*HandlerState),
		required:  required,
		tolerance: tolerance,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// HandleRegistration validates a registration and, if valid, registers the
// handler and refreshes its heartbeat.
func (m *Monitor) HandleRegistration(payload *RegistrationPayload) *ValidationResult {
	result := ValidateRegistration(payload, m.required)
	id := payload.Handler.ID

	if !result.Valid {
		events.Emit("error", "handler.error", "registration validation failed", map[string]interface{}{
			"handler_id": id,
			"errors":     result.Errors,
		})
		return result
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, known := m.handlers[id]
	isReconnect := known && !existing.Connected
	isNew := !known || isReconnect

	var kinds []string
	for _, b := range payload.Events {
		kinds = append(kinds, b.Event)
	}
	sort.Strings(kinds)

	m.handlers[id] = &HandlerState{
		HandlerID:    id,
		LastSeen:     m.now(),
		HeartbeatSec: payload.Handler.HeartbeatSec,
		Events:       kinds,
		Connected:    true,
	}
	m.registry.RegisterFromPayload(payload)

	if isNew {
		events.Emit("info", "handler.registered", "", map[string]interface{}{
			"handler_id": id,
			"type":       payload.Handler.Type,
			"events":     kinds,
			"reconnect":  isReconnect,
			"warnings":   result.Warnings,
		})
	}
	return result
}

// Start begins the background health check loop.
func (m *Monitor) Start(checkInterval time.Duration) {
	m.wg.Add(1)
	go m.healthCheckLoop(checkInterval)
}

// Stop stops the background health check loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) healthCheckLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkHealth(m.now())
		}
	}
}

func (m *Monitor) checkHealth(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, state := range m.handlers {
		if !state.Connected || state.HeartbeatSec <= 0 {
			continue
		}

		timeout := time.Duration(float64(state.HeartbeatSec)*m.tolerance) * time.Second
		if now.Sub(state.LastSeen) <= timeout {
			continue
		}
		state.Connected = false
		m.registry.Unregister(id)

		events.Emit("warning", "handler.disconnected", "heartbeat timeout", map[string]interface{}{
			"handler_id":  id,
			"events":      state.Events,
			"last_seen":   state.LastSeen.Format(time.RFC3339),
			"timeout_sec": timeout.Seconds(),
		})
	}
}

// GetHandlerState returns the state of a handler (for testing/inspection).
func (m *Monitor) GetHandlerState(handlerID string) *HandlerState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.handlers[handlerID]; ok {
		cpy := *state
		cpy.Events = append([]string{}, state.Events...)
		return &cpy
	}
	return nil
}

// ConnectedHandlers returns the IDs of handlers currently alive, sorted.
func (m *Monitor) ConnectedHandlers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, state := range m.handlers {
		if state.Connected {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
