// Package events records what happens during playback. Every emitted event
// lands in an in-memory ring buffer, is pushed to websocket subscribers and,
// when a sink is set, is appended to the persistent event log.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AaronLay10/SentientDialogue/internal/log"
)

const BufferSize = 256

var buffer = NewRingBuffer(BufferSize)

// Sink persists events. *postgres.Client satisfies it.
type Sink interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error
}

var (
	sink            Sink
	sinkMu          sync.RWMutex
	sinkErrorLogged bool
)

// SetSink sets where events are persisted. Pass nil to stop persisting.
func SetSink(s Sink) {
	sinkMu.Lock()
	sink = s
	sinkErrorLogged = false
	sinkMu.Unlock()
}

// GetSink returns the current sink, or nil.
func GetSink() Sink {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return sink
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Emit records an event and returns its JSON form. Names outside the
// allow-list are rejected. A "session_id" string field is also stored in
// the sink's session column.
func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	broadcast(e)
	persist(ts, e)

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

func persist(ts time.Time, e Event) {
	sinkMu.RLock()
	s := sink
	sinkMu.RUnlock()
	if s == nil {
		return
	}

	sessionID, _ := e.Fields["session_id"].(string)
	err := s.Append(ts, e.Level, e.Name, e.Message, e.Fields, sessionID)
	if err == nil {
		return
	}

	// Report the first failure only. The error event goes straight to the
	// buffer so a failing sink cannot recurse through Emit.
	sinkMu.Lock()
	if sinkErrorLogged {
		sinkMu.Unlock()
		return
	}
	sinkErrorLogged = true
	sinkMu.Unlock()

	log.WithComponent("events").Error("event sink append failed",
		slog.String("event", e.Name),
		slog.Any("error", err))
	errEvent := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     "error",
		Name:      "system.error",
		Message:   "event sink append failed",
		Fields: map[string]interface{}{
			"error": err.Error(),
		},
	}
	buffer.Add(errEvent)
	broadcast(errEvent)
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// TotalCount returns how many events were emitted since start or Clear.
func TotalCount() uint64 {
	return buffer.TotalCount()
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}
