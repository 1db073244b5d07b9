package mqtt

import (
	"testing"
	"time"

	"github.com/AaronLay10/SentientDialogue/internal/events"
)

func teleportRegistration(id string) *RegistrationPayload {
	return &RegistrationPayload{
		Version: 1,
		Handler: HandlerInfo{ID: id, Type: "unity", HeartbeatSec: 5},
		Events:  []EventBinding{{Event: "teleport", Topic: "game/" + id + "/teleport"}},
	}
}

func countEvents(name string) int {
	n := 0
	for _, e := range events.Snapshot() {
		if e.Name == name {
			n++
		}
	}
	return n
}

func TestMonitor_RegistrationEmitsOnce(t *testing.T) {
	events.Clear()
	m := NewMonitor(NewHandlerRegistry(), nil, 2)

	m.HandleRegistration(teleportRegistration("world"))
	m.HandleRegistration(teleportRegistration("world")) // heartbeat

	if n := countEvents("handler.registered"); n != 1 {
		t.Errorf("expected 1 handler.registered, got %d", n)
	}
	if ids := m.ConnectedHandlers(); len(ids) != 1 || ids[0] != "world" {
		t.Errorf("unexpected connected handlers: %v", ids)
	}
}

func TestMonitor_HeartbeatTimeout(t *testing.T) {
	events.Clear()
	registry := NewHandlerRegistry()
	m := NewMonitor(registry, nil, 2)

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }
	m.HandleRegistration(teleportRegistration("world"))

	m.checkHealth(start.Add(9 * time.Second))
	if !m.GetHandlerState("world").Connected {
		t.Fatal("handler should still be connected within tolerance")
	}

	m.checkHealth(start.Add(11 * time.Second))
	if m.GetHandlerState("world").Connected {
		t.Fatal("handler should be disconnected after timeout")
	}
	if registry.TopicFor("teleport") != "" {
		t.Error("timed out handler should be unregistered")
	}
	if n := countEvents("handler.disconnected"); n != 1 {
		t.Errorf("expected 1 handler.disconnected, got %d", n)
	}

	// Reconnect
	m.now = func() time.Time { return start.Add(20 * time.Second) }
	m.HandleRegistration(teleportRegistration("world"))
	if registry.TopicFor("teleport") == "" {
		t.Error("expected binding restored on reconnect")
	}
	if n := countEvents("handler.registered"); n != 2 {
		t.Errorf("expected handler.registered on reconnect, got %d", n)
	}
}

func TestMonitor_InvalidRegistration(t *testing.T) {
	events.Clear()
	registry := NewHandlerRegistry()
	m := NewMonitor(registry, nil, 2)

	p := teleportRegistration("world")
	p.Events[0].Topic = ""
	if res := m.HandleRegistration(p); res.Valid {
		t.Fatal("expected invalid result")
	}
	if registry.Exists("world") {
		t.Error("invalid handler must not be registered")
	}
	if n := countEvents("handler.error"); n != 1 {
		t.Errorf("expected 1 handler.error, got %d", n)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	m := NewMonitor(NewHandlerRegistry(), nil, 0)
	m.Start(5 * time.Millisecond)
	time.Sleep(15 * time.Millisecond)
	m.Stop()
}
