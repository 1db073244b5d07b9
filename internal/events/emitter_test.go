package events

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type appendCall struct {
	level     string
	event     string
	sessionID string
}

type mockSink struct {
	mu    sync.Mutex
	calls []appendCall
	err   error
}

func (m *mockSink) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, appendCall{level: level, event: event, sessionID: sessionID})
	return m.err
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestEmitRejectsUnknownEvent(t *testing.T) {
	Clear()
	if _, err := Emit("info", "node.started", "", nil); err == nil {
		t.Fatal("expected error for unknown event")
	}
	if len(Snapshot()) != 0 {
		t.Error("rejected event should not be buffered")
	}
}

func TestEmitReturnsJSON(t *testing.T) {
	Clear()
	b, err := Emit("info", "scenario.started", "hello", map[string]interface{}{"scenario_id": 7})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["event"] != "scenario.started" || decoded["msg"] != "hello" {
		t.Errorf("unexpected event JSON: %s", b)
	}
	if _, ok := decoded["ts"]; !ok {
		t.Error("expected ts field")
	}
}

func TestEmitPersistsWithSessionID(t *testing.T) {
	Clear()
	sink := &mockSink{}
	SetSink(sink)
	defer SetSink(nil)

	Emit("info", "line.shown", "", map[string]interface{}{"session_id": "s-1", "line_guid": "t1"})
	Emit("info", "system.startup", "", nil)

	if sink.count() != 2 {
		t.Fatalf("expected 2 appends, got %d", sink.count())
	}
	if sink.calls[0].sessionID != "s-1" {
		t.Errorf("expected session s-1, got %q", sink.calls[0].sessionID)
	}
	if sink.calls[1].sessionID != "" {
		t.Errorf("expected empty session, got %q", sink.calls[1].sessionID)
	}
}

func TestSinkFailureReportedOnce(t *testing.T) {
	Clear()
	sink := &mockSink{err: errors.New("connection refused")}
	SetSink(sink)
	defer SetSink(nil)

	for i := 0; i < 3; i++ {
		if _, err := Emit("info", "line.shown", "", nil); err != nil {
			t.Fatalf("emit should not fail on sink error: %v", err)
		}
	}

	errorsSeen := 0
	for _, e := range Snapshot() {
		if e.Name == "system.error" {
			errorsSeen++
		}
	}
	if errorsSeen != 1 {
		t.Errorf("expected exactly 1 system.error, got %d", errorsSeen)
	}
	if sink.count() != 3 {
		t.Errorf("expected every event to reach the sink, got %d", sink.count())
	}
}

func TestRingBufferWraps(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Add(Event{Name: "line.shown", Fields: map[string]interface{}{"i": i}})
	}
	snap := rb.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 events, got %d", len(snap))
	}
	if snap[0].Fields["i"] != 2 || snap[2].Fields["i"] != 4 {
		t.Errorf("unexpected order: %v", snap)
	}
	if rb.TotalCount() != 5 {
		t.Errorf("expected total 5, got %d", rb.TotalCount())
	}
	if rb.Len() != 3 {
		t.Errorf("expected len 3, got %d", rb.Len())
	}

	rb.Clear()
	if rb.Len() != 0 || rb.TotalCount() != 0 {
		t.Error("expected empty buffer after Clear")
	}
}
