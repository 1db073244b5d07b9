package playback

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AaronLay10/SentientDialogue/internal/mqtt"
	"github.com/AaronLay10/SentientDialogue/internal/scenario"
)

// Step is one shown line, as handed to a LineExecutor.
type Step struct {
	SessionID  string
	ScenarioID int
	Line       *scenario.Line
	View       LineView
}

// LineExecutor puts shown lines in front of the player.
// This allows for testing with mock implementations.
type LineExecutor interface {
	ShowLine(step Step) error
}

// Publisher is the part of the MQTT client the executor needs.
type Publisher interface {
	IsConnected() bool
	Publish(topic string, payload []byte) error
}

var ErrNotConnected = errors.New("mqtt client not connected")

// HandlerError reports a line that could not be delivered.
type HandlerError struct {
	Topic  string
	Reason string
	Err    error
}

func (e *HandlerError) Error() string {
	if e.Topic == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s (topic %s)", e.Reason, e.Topic)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Topics are the fixed MQTT destinations of an MQTTExecutor.
type Topics struct {
	Display string
	Stage   string
}

// MQTTExecutor publishes text and options lines to the display topic,
// sprite lines to the stage topic and event lines to the topic of the
// handler registered for the event kind.
type MQTTExecutor struct {
	client   Publisher
	handlers *mqtt.HandlerRegistry
	topics   Topics
}

func NewMQTTExecutor(client Publisher, handlers *mqtt.HandlerRegistry, topics Topics) *MQTTExecutor {
	return &MQTTExecutor{
		client:   client,
		handlers: handlers,
		topics:   topics,
	}
}

type lineMessage struct {
	SessionID  string   `json:"session_id"`
	ScenarioID int      `json:"scenario_id"`
	Line       LineView `json:"line"`
}

type eventMessage struct {
	SessionID  string                 `json:"session_id"`
	ScenarioID int                    `json:"scenario_id"`
	LineGUID   string                 `json:"line_guid"`
	Event      string                 `json:"event"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

func (e *MQTTExecutor) ShowLine(step Step) error {
	switch p := step.Line.Payload.(type) {
	case scenario.TextPayload, scenario.SelectPayload:
		return e.publish(e.topics.Display, lineMessage{step.SessionID, step.ScenarioID, step.View})
	case scenario.ImagePayload, scenario.TransformPayload, scenario.DestroyPayload:
		return e.publish(e.topics.Stage, lineMessage{step.SessionID, step.ScenarioID, step.View})
	case scenario.EventPayload:
		if p.Event == scenario.EventNone {
			return nil
		}
		return e.dispatchEvent(step, p)
	default:
		return &HandlerError{Reason: fmt.Sprintf("no route for line kind %s", step.Line.Kind())}
	}
}

func (e *MQTTExecutor) dispatchEvent(step Step, p scenario.EventPayload) error {
	if e.handlers == nil {
		return &HandlerError{Reason: "handler registry not available"}
	}
	topic := e.handlers.TopicFor(string(p.Event))
	if topic == "" {
		return &HandlerError{Reason: fmt.Sprintf("no handler registered for event %s", p.Event)}
	}
	return e.publish(topic, eventMessage{
		SessionID:  step.SessionID,
		ScenarioID: step.ScenarioID,
		LineGUID:   step.Line.GUID,
		Event:      string(p.Event),
		Params:     p.Params,
	})
}

func (e *MQTTExecutor) publish(topic string, msg interface{}) error {
	if topic == "" {
		return &HandlerError{Reason: "no topic configured"}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return &HandlerError{Topic: topic, Reason: "failed to marshal payload", Err: err}
	}
	if e.client == nil || !e.client.IsConnected() {
		return &HandlerError{Topic: topic, Reason: "MQTT client not connected", Err: ErrNotConnected}
	}
	if err := e.client.Publish(topic, payload); err != nil {
		return &HandlerError{Topic: topic, Reason: "MQTT publish failed", Err: err}
	}
	return nil
}
