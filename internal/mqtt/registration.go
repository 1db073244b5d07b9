package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/AaronLay10/SentientDialogue/internal/scenario"
)

// RegistrationPayload represents a v1 event handler registration message.
// Handlers re-send it every heartbeat_sec seconds.
type RegistrationPayload struct {
	Version int            `json:"version"`
	Handler HandlerInfo    `json:"handler"`
	Events  []EventBinding `json:"events"`
}

// HandlerInfo contains handler metadata.
type HandlerInfo struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Version      string `json:"version"`
	HeartbeatSec int    `json:"heartbeat_sec"`
}

// EventBinding routes one event kind to the topic the handler listens on.
type EventBinding struct {
	Event string `json:"event"`
	Topic string `json:"topic"`
}

// ParseRegistration parses a registration payload from JSON bytes.
func ParseRegistration(data []byte) (*RegistrationPayload, error) {
	var payload RegistrationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid registration JSON: %w", err)
	}

	if payload.Version != 1 {
		return nil, fmt.Errorf("unsupported registration version: %d", payload.Version)
	}

	if payload.Handler.ID == "" {
		return nil, fmt.Errorf("handler.id is required")
	}

	return &payload, nil
}

// ValidationResult contains validation outcome.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateRegistration checks that every binding names a dispatchable event
// kind and a topic. required lists event kinds the project expects a
// handler for; missing ones are warnings since another handler may
// register them.
func ValidateRegistration(payload *RegistrationPayload, required []string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	seen := make(map[string]bool)
	for _, b := range payload.Events {
		kind, ok := scenario.ParseEventKind(b.Event)
		switch {
		case b.Event == "":
			result.Errors = append(result.Errors, "binding with empty event")
			result.Valid = false
			continue
		case !ok:
			result.Errors = append(result.Errors, fmt.Sprintf("unknown event kind: %s", b.Event))
			result.Valid = false
			continue
		case kind == scenario.EventNone:
			result.Errors = append(result.Errors, "event kind none cannot be handled")
			result.Valid = false
			continue
		}
		if b.Topic == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("event %s: topic is required", b.Event))
			result.Valid = false
		}
		if seen[b.Event] {
			result.Errors = append(result.Errors, fmt.Sprintf("event %s bound twice", b.Event))
			result.Valid = false
		}
		seen[b.Event] = true
	}

	for _, kind := range required {
		if !seen[kind] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("handler %s does not serve required event %s", payload.Handler.ID, kind))
		}
	}

	return result
}
